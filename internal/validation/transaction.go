package validation

import (
	"fmt"
	"strings"
	"time"

	"github.com/portfoliovalue/backend/internal/api/request"
	"github.com/portfoliovalue/backend/internal/model"
)

// ValidTransactionType contains the allowed transaction type values.
var ValidTransactionType = map[string]bool{
	model.TransactionBuy: true, model.TransactionSell: true,
	model.TransactionDividend: true, model.TransactionDeposit: true,
	model.TransactionWithdrawal: true,
}

// ValidateCreateTransaction validates a transaction creation request.
// Checks all required fields and validates their formats and constraints.
//
// Required fields:
//   - portfolioId: Must be a valid UUID
//   - date: Must be in YYYY-MM-DD format
//   - type: Must be one of: buy, sell, dividend, deposit, withdrawal
//   - ticker + shares + price: Required for buy/sell; shares and price must be positive
//   - amount: Required for dividend/deposit/withdrawal; must be positive
//
// Returns a validation Error with field-specific error messages if validation fails.
func ValidateCreateTransaction(req request.CreateTransactionRequest) error {
	if err := ValidateUUID(req.PortfolioID); err != nil {
		return err
	}

	errors := make(map[string]string)

	if strings.TrimSpace(req.Date) == "" {
		errors["date"] = "date is required"
	} else if _, err := time.Parse("2006-01-02", req.Date); err != nil {
		errors["date"] = err.Error()
	}

	if strings.TrimSpace(req.Type) == "" {
		errors["type"] = "type is required"
	} else if !ValidTransactionType[req.Type] {
		errors["type"] = fmt.Sprintf("invalid type: %s", req.Type)
	}

	switch req.Type {
	case model.TransactionBuy, model.TransactionSell:
		if strings.TrimSpace(req.Ticker) == "" {
			errors["ticker"] = "ticker is required for trade transactions"
		}
		if !req.Shares.Valid || !req.Shares.Decimal.IsPositive() {
			errors["shares"] = "shares must be positive"
		}
		if !req.Price.Valid || !req.Price.Decimal.IsPositive() {
			errors["price"] = "price must be positive"
		}
	case model.TransactionDividend, model.TransactionDeposit, model.TransactionWithdrawal:
		if !req.Amount.Valid || !req.Amount.Decimal.IsPositive() {
			errors["amount"] = "amount must be positive"
		}
	}

	if len(errors) > 0 {
		return &Error{Fields: errors}
	}
	return nil
}

// ValidateUpdateTransaction validates a transaction update request.
// All fields are optional, but if provided, they must meet the same constraints as create.
func ValidateUpdateTransaction(req request.UpdateTransactionRequest) error {
	errors := make(map[string]string)

	if req.Date != nil {
		if strings.TrimSpace(*req.Date) == "" {
			errors["date"] = "date cannot be empty"
		} else if _, err := time.Parse("2006-01-02", *req.Date); err != nil {
			errors["date"] = err.Error()
		}
	}
	if req.Type != nil {
		if strings.TrimSpace(*req.Type) == "" {
			errors["type"] = "type cannot be empty"
		} else if !ValidTransactionType[*req.Type] {
			errors["type"] = fmt.Sprintf("invalid type: %s", *req.Type)
		}
	}
	if req.Ticker != nil && strings.TrimSpace(*req.Ticker) == "" {
		errors["ticker"] = "ticker cannot be empty"
	}
	if req.Shares.Valid && !req.Shares.Decimal.IsPositive() {
		errors["shares"] = "shares must be positive"
	}
	if req.Price.Valid && !req.Price.Decimal.IsPositive() {
		errors["price"] = "price must be positive"
	}
	if req.Amount.Valid && !req.Amount.Decimal.IsPositive() {
		errors["amount"] = "amount must be positive"
	}

	if len(errors) > 0 {
		return &Error{Fields: errors}
	}
	return nil
}

// ValidateTransaction checks a fully assembled transaction before it is
// written: the invariants here hold regardless of which request produced it.
func ValidateTransaction(t *model.Transaction) error {
	errors := make(map[string]string)

	if t.Date.IsZero() {
		errors["date"] = "date is required"
	}
	if !ValidTransactionType[t.Type] {
		errors["type"] = fmt.Sprintf("invalid type: %s", t.Type)
	}

	switch t.Type {
	case model.TransactionBuy, model.TransactionSell:
		if strings.TrimSpace(t.Ticker) == "" {
			errors["ticker"] = "ticker is required for trade transactions"
		}
		if !t.Shares.Valid || !t.Shares.Decimal.IsPositive() {
			errors["shares"] = "shares must be positive"
		}
		if !t.Price.Valid || !t.Price.Decimal.IsPositive() {
			errors["price"] = "price must be positive"
		}
	case model.TransactionDividend, model.TransactionDeposit, model.TransactionWithdrawal:
		if !t.Amount.Valid || !t.Amount.Decimal.IsPositive() {
			errors["amount"] = "amount must be positive"
		}
	}

	if len(errors) > 0 {
		return &Error{Fields: errors}
	}
	return nil
}

package apperrors

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Domain entity errors represent missing or invalid entities in the system.
// These errors indicate that a requested resource does not exist.
var (
	// ErrPortfolioNotFound indicates that a portfolio with the given ID does not exist.
	ErrPortfolioNotFound = errors.New("portfolio not found")

	// ErrTransactionNotFound indicates that a transaction with the given ID does not exist.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrPriceNotFound indicates no closing price record for a ticker and date combination.
	ErrPriceNotFound = errors.New("closing price not found")

	// ErrValuationNotFound indicates that no daily valuation row exists for a portfolio and date.
	ErrValuationNotFound = errors.New("daily valuation not found")
)

// Business logic errors represent validation failures or constraint violations.
var (
	// ErrInvalidDateRange indicates that the provided date range is invalid
	// (e.g., start date is after end date).
	ErrInvalidDateRange = errors.New("invalid date range")

	// ErrInvalidUUID indicates that a provided ID is not a valid UUID format.
	ErrInvalidUUID = errors.New("invalid UUID format")

	// ErrEmptyID indicates that a required ID parameter is empty or missing.
	ErrEmptyID = errors.New("ID cannot be empty")
)

// Operation failure errors represent system-level failures when retrieving or processing data.
var (
	ErrFailedToRetrieveTransactions = errors.New("failed to retrieve transactions")
	ErrFailedToRetrieveTransaction  = errors.New("failed to retrieve transaction")
	ErrFailedToRetrievePortfolios   = errors.New("failed to retrieve portfolios")
	ErrFailedToRetrievePortfolio    = errors.New("failed to retrieve portfolio")
	ErrFailedToRetrieveValuations   = errors.New("failed to retrieve valuations")
	ErrFailedToRetrievePrices       = errors.New("failed to retrieve prices")
	ErrFailedToRecalculate          = errors.New("failed to recalculate valuations")
	ErrFailedToCalculateValue       = errors.New("failed to calculate portfolio value")
	ErrFailedToRefreshPrices        = errors.New("failed to refresh prices")
)

// ValidationError indicates that an operation carries a non-positive quantity,
// a negative price, or an otherwise unusable field combination. The ledger rejects
// the operation before any state change.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// InsufficientSharesError indicates an oversell attempt: a sale requested more
// shares than the position holds. The sale is rejected atomically; no lot is
// touched when this error is returned.
type InsufficientSharesError struct {
	Ticker    string
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientSharesError) Error() string {
	return fmt.Sprintf("insufficient shares for sale of %s: requested %s, available %s",
		e.Ticker, e.Requested, e.Available)
}

// PersistenceError indicates that storage was unavailable mid-operation. A window
// recomputation hitting this aborts without a partial commit.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ConfigurationError indicates contradictory or unknown flags passed to the
// valuation service.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "invalid valuation options: " + e.Reason
}

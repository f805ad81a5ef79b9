package request

import "github.com/shopspring/decimal"

// Monetary fields are decimals parsed from the raw JSON number text, so the
// exact value the client sent is what the ledger records.

type CreateTransactionRequest struct {
	PortfolioID string              `json:"portfolioId"`
	Ticker      string              `json:"ticker,omitempty"`
	Date        string              `json:"date"`
	Type        string              `json:"type"`
	Shares      decimal.NullDecimal `json:"shares,omitempty"`
	Price       decimal.NullDecimal `json:"price,omitempty"`
	Amount      decimal.NullDecimal `json:"amount,omitempty"`
}

type UpdateTransactionRequest struct {
	Ticker *string             `json:"ticker,omitempty"`
	Date   *string             `json:"date,omitempty"`
	Type   *string             `json:"type,omitempty"`
	Shares decimal.NullDecimal `json:"shares,omitempty"`
	Price  decimal.NullDecimal `json:"price,omitempty"`
	Amount decimal.NullDecimal `json:"amount,omitempty"`
}

package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction types accepted by the ledger.
const (
	TransactionBuy        = "buy"
	TransactionSell       = "sell"
	TransactionDividend   = "dividend"
	TransactionDeposit    = "deposit"
	TransactionWithdrawal = "withdrawal"
)

// Transaction represents a single immutable portfolio event.
//
// Buy and sell carry Ticker, Shares and Price. Dividend carries Ticker and
// Amount. Deposit and withdrawal are pure cash events carrying only Amount.
// Seq is the insertion sequence assigned by storage; together with Date it
// forms the total ordering key for ledger replay. Same-day events are applied
// in insertion order, never reshuffled.
type Transaction struct {
	ID          string              `json:"id"`
	PortfolioID string              `json:"portfolioId"`
	Ticker      string              `json:"ticker,omitempty"`
	Date        time.Time           `json:"date"`
	Type        string              `json:"type"`
	Shares      decimal.NullDecimal `json:"shares"`
	Price       decimal.NullDecimal `json:"price"`
	Amount      decimal.NullDecimal `json:"amount"`
	Seq         int64               `json:"seq,omitempty"`
	CreatedAt   time.Time           `json:"createdAt,omitempty"`
}

// IsCash reports whether the transaction is a pure cash event without a ticker.
func (t Transaction) IsCash() bool {
	return t.Type == TransactionDeposit || t.Type == TransactionWithdrawal
}

// IsTrade reports whether the transaction affects lot state.
func (t Transaction) IsTrade() bool {
	return t.Type == TransactionBuy || t.Type == TransactionSell
}

// RealizedGainLoss is the per-sale audit record written when a sell consumes
// lots. It survives lot exhaustion so realized history stays reconstructible.
type RealizedGainLoss struct {
	ID               string          `json:"id"`
	PortfolioID      string          `json:"portfolioId"`
	Ticker           string          `json:"ticker"`
	TransactionID    string          `json:"transactionId"`
	SaleDate         time.Time       `json:"saleDate"`
	SharesSold       decimal.Decimal `json:"sharesSold"`
	CostBasis        decimal.Decimal `json:"costBasis"`
	SaleProceeds     decimal.Decimal `json:"saleProceeds"`
	RealizedGainLoss decimal.Decimal `json:"realizedGainLoss"`
	CreatedAt        time.Time       `json:"createdAt,omitempty"`
}

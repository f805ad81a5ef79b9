package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DailyValuation is a pre-calculated snapshot of a portfolio's worth for one
// date. It is the only long-lived derived state in the system: a cache of a
// pure computation, always reproducible from transactions and price history.
//
// Stale marks rows where at least one held ticker had no closing price for the
// exact date and the most recent known price was carried forward instead.
type DailyValuation struct {
	ID             string          `json:"id"`
	PortfolioID    string          `json:"portfolioId"`
	Date           time.Time       `json:"date"`
	HoldingsValue  decimal.Decimal `json:"holdingsValue"`
	CashBalance    decimal.Decimal `json:"cashBalance"`
	TotalDividends decimal.Decimal `json:"totalDividends"`
	TotalValue     decimal.Decimal `json:"totalValue"`
	Stale          bool            `json:"stale"`
	CalculatedAt   time.Time       `json:"calculatedAt"`
}

// Valuation freshness states for a portfolio.
const (
	ValuationClean = "clean"
	ValuationDirty = "dirty"
)

// ValuationState tracks whether a portfolio's daily valuation series is
// current. After a transaction write the state moves to dirty with
// WindowStart set to the earliest date whose rows are no longer guaranteed
// valid. Concurrent writes while dirty keep the minimum window start.
type ValuationState struct {
	PortfolioID string     `json:"portfolioId"`
	Status      string     `json:"status"`
	WindowStart *time.Time `json:"windowStart,omitempty"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// PriceRecord represents one persisted closing price for a ticker.
type PriceRecord struct {
	ID     string          `json:"id"`
	Ticker string          `json:"ticker"`
	Date   time.Time       `json:"date"`
	Close  decimal.Decimal `json:"close"`
}

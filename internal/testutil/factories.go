package testutil

import (
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/portfoliovalue/backend/internal/model"
)

// MakeID returns a fresh UUID string for test fixtures.
func MakeID() string {
	return uuid.New().String()
}

// Dec parses a decimal literal, failing the test on malformed input.
func Dec(t *testing.T, value string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(value)
	if err != nil {
		t.Fatalf("invalid decimal literal %q: %v", value, err)
	}
	return d
}

// Day builds a UTC calendar day without the time component.
func Day(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// PortfolioBuilder provides a fluent interface for creating test portfolios.
//
// Example usage:
//
//	// Simple creation with defaults
//	portfolio := testutil.NewPortfolio().Build(t, db)
//
//	// Customized portfolio
//	portfolio := testutil.NewPortfolio().
//	    WithName("Custom Portfolio").
//	    Archived().
//	    Build(t, db)
type PortfolioBuilder struct {
	ID          string
	Name        string
	Description string
	IsArchived  bool
}

// NewPortfolio creates a PortfolioBuilder with sensible defaults.
func NewPortfolio() *PortfolioBuilder {
	return &PortfolioBuilder{
		ID:          MakeID(),
		Name:        "Test Portfolio",
		Description: "Test description",
	}
}

// WithID sets a specific ID (must be a valid UUID).
func (b *PortfolioBuilder) WithID(id string) *PortfolioBuilder {
	b.ID = id
	return b
}

// WithName sets the portfolio name.
func (b *PortfolioBuilder) WithName(name string) *PortfolioBuilder {
	b.Name = name
	return b
}

// Archived marks the portfolio as archived.
func (b *PortfolioBuilder) Archived() *PortfolioBuilder {
	b.IsArchived = true
	return b
}

// Build inserts the portfolio into the database and returns the model.
func (b *PortfolioBuilder) Build(t *testing.T, db *sql.DB) model.Portfolio {
	t.Helper()

	_, err := db.Exec(
		`INSERT INTO portfolio (id, name, description, is_archived) VALUES (?, ?, ?, ?)`,
		b.ID, b.Name, b.Description, b.IsArchived,
	)
	if err != nil {
		t.Fatalf("Failed to create test portfolio: %v", err)
	}

	return model.Portfolio{
		ID:          b.ID,
		Name:        b.Name,
		Description: b.Description,
		IsArchived:  b.IsArchived,
	}
}

// TransactionBuilder provides a fluent interface for creating test
// transactions. Seq is allocated from txn_seq exactly as production inserts
// do, so same-day ordering in tests matches real behavior.
//
// Example usage:
//
//	buy := testutil.NewTransaction(portfolio.ID).
//	    WithTicker("AAPL").
//	    WithType(model.TransactionBuy).
//	    WithShares("100").
//	    WithPrice("150.00").
//	    WithDate(testutil.Day(2024, 1, 2)).
//	    Build(t, db)
type TransactionBuilder struct {
	ID          string
	PortfolioID string
	Ticker      string
	Date        time.Time
	Type        string
	Shares      decimal.NullDecimal
	Price       decimal.NullDecimal
	Amount      decimal.NullDecimal
}

// NewTransaction creates a TransactionBuilder defaulting to a buy.
func NewTransaction(portfolioID string) *TransactionBuilder {
	return &TransactionBuilder{
		ID:          MakeID(),
		PortfolioID: portfolioID,
		Ticker:      "TEST",
		Date:        Day(2024, time.January, 2),
		Type:        model.TransactionBuy,
	}
}

// WithID sets a specific ID (must be a valid UUID).
func (b *TransactionBuilder) WithID(id string) *TransactionBuilder {
	b.ID = id
	return b
}

// WithTicker sets the ticker symbol.
func (b *TransactionBuilder) WithTicker(ticker string) *TransactionBuilder {
	b.Ticker = ticker
	return b
}

// WithDate sets the transaction date.
func (b *TransactionBuilder) WithDate(date time.Time) *TransactionBuilder {
	b.Date = date
	return b
}

// WithType sets the transaction type. Cash movements drop the default
// ticker; set one explicitly after WithType if the test needs it.
func (b *TransactionBuilder) WithType(txType string) *TransactionBuilder {
	b.Type = txType
	if txType == model.TransactionDeposit || txType == model.TransactionWithdrawal {
		b.Ticker = ""
	}
	return b
}

// WithShares sets the share count from a decimal literal.
func (b *TransactionBuilder) WithShares(shares string) *TransactionBuilder {
	b.Shares = decimal.NullDecimal{Decimal: decimal.RequireFromString(shares), Valid: true}
	return b
}

// WithPrice sets the unit price from a decimal literal.
func (b *TransactionBuilder) WithPrice(price string) *TransactionBuilder {
	b.Price = decimal.NullDecimal{Decimal: decimal.RequireFromString(price), Valid: true}
	return b
}

// WithAmount sets the cash amount from a decimal literal.
func (b *TransactionBuilder) WithAmount(amount string) *TransactionBuilder {
	b.Amount = decimal.NullDecimal{Decimal: decimal.RequireFromString(amount), Valid: true}
	return b
}

// Build inserts the transaction into the database and returns the model
// with its allocated seq.
func (b *TransactionBuilder) Build(t *testing.T, db *sql.DB) model.Transaction {
	t.Helper()

	result, err := db.Exec(`INSERT INTO txn_seq DEFAULT VALUES`)
	if err != nil {
		t.Fatalf("Failed to allocate transaction seq: %v", err)
	}
	seq, err := result.LastInsertId()
	if err != nil {
		t.Fatalf("Failed to read transaction seq: %v", err)
	}

	_, err = db.Exec(
		`INSERT INTO txn (id, portfolio_id, ticker, date, type, shares, price, amount, seq)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.PortfolioID, nullString(b.Ticker), b.Date.Format("2006-01-02"), b.Type,
		nullDecimal(b.Shares), nullDecimal(b.Price), nullDecimal(b.Amount), seq,
	)
	if err != nil {
		t.Fatalf("Failed to create test transaction: %v", err)
	}

	return model.Transaction{
		ID:          b.ID,
		PortfolioID: b.PortfolioID,
		Ticker:      b.Ticker,
		Date:        b.Date,
		Type:        b.Type,
		Shares:      b.Shares,
		Price:       b.Price,
		Amount:      b.Amount,
		Seq:         seq,
	}
}

// PriceBuilder provides a fluent interface for creating closing price rows.
type PriceBuilder struct {
	ID     string
	Ticker string
	Date   time.Time
	Close  decimal.Decimal
}

// NewPrice creates a PriceBuilder with defaults.
func NewPrice(ticker string) *PriceBuilder {
	return &PriceBuilder{
		ID:     MakeID(),
		Ticker: ticker,
		Date:   Day(2024, time.January, 2),
		Close:  decimal.NewFromInt(100),
	}
}

// WithDate sets the price date.
func (b *PriceBuilder) WithDate(date time.Time) *PriceBuilder {
	b.Date = date
	return b
}

// WithClose sets the closing price from a decimal literal.
func (b *PriceBuilder) WithClose(close string) *PriceBuilder {
	b.Close = decimal.RequireFromString(close)
	return b
}

// Build inserts the price row and returns the model.
func (b *PriceBuilder) Build(t *testing.T, db *sql.DB) model.PriceRecord {
	t.Helper()

	_, err := db.Exec(
		`INSERT INTO price_history (id, ticker, date, close) VALUES (?, ?, ?, ?)`,
		b.ID, b.Ticker, b.Date.Format("2006-01-02"), b.Close.String(),
	)
	if err != nil {
		t.Fatalf("Failed to create test price: %v", err)
	}

	return model.PriceRecord{
		ID:     b.ID,
		Ticker: b.Ticker,
		Date:   b.Date,
		Close:  b.Close,
	}
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullDecimal(d decimal.NullDecimal) any {
	if !d.Valid {
		return nil
	}
	return d.Decimal.String()
}

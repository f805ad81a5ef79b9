package testutil

import (
	"database/sql"
	"testing"

	_ "modernc.org/sqlite" // Test Package
)

// SetupTestDB creates an in-memory SQLite database for testing.
// The database is automatically cleaned up when the test completes.
//
// Example usage:
//
//	func TestSomething(t *testing.T) {
//	    db := testutil.SetupTestDB(t)
//	    // db is ready to use with schema created
//	}
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	// In-memory database (destroyed when connection closes)
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		t.Fatalf("Failed to ping test database: %v", err)
	}

	// Configure SQLite for testing
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = MEMORY", // Faster for tests
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			t.Fatalf("Failed to set pragma: %v", err)
		}
	}

	// Create schema
	if err := createTestSchema(db); err != nil {
		t.Fatalf("Failed to create test schema: %v", err)
	}

	// Cleanup when test ends
	t.Cleanup(func() {
		db.Close()
	})

	return db
}

// createTestSchema creates all database tables for testing.
// Schema is synchronized with the production migrations.
func createTestSchema(db *sql.DB) error {
	schema := `
		-- Portfolio table
		CREATE TABLE portfolio (
			id VARCHAR(36) NOT NULL PRIMARY KEY,
			name VARCHAR(100) NOT NULL,
			description TEXT,
			is_archived BOOLEAN NOT NULL DEFAULT FALSE,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);

		-- Transaction table. seq is the insertion sequence used as the
		-- tie-break for same-day ordering during ledger replay.
		CREATE TABLE txn (
			id VARCHAR(36) NOT NULL PRIMARY KEY,
			portfolio_id VARCHAR(36) NOT NULL,
			ticker VARCHAR(10),
			date DATE NOT NULL,
			type VARCHAR(10) NOT NULL,
			shares TEXT,
			price TEXT,
			amount TEXT,
			seq INTEGER NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY(portfolio_id) REFERENCES portfolio(id) ON DELETE CASCADE
		);
		CREATE INDEX idx_txn_portfolio_date ON txn(portfolio_id, date, seq);

		CREATE TABLE txn_seq (
			seq INTEGER PRIMARY KEY AUTOINCREMENT
		);

		CREATE TABLE price_history (
			id VARCHAR(36) NOT NULL PRIMARY KEY,
			ticker VARCHAR(10) NOT NULL,
			date DATE NOT NULL,
			close TEXT NOT NULL,
			CONSTRAINT unique_ticker_date UNIQUE (ticker, date)
		);
		CREATE INDEX idx_price_history_ticker_date ON price_history(ticker, date);

		CREATE TABLE realized_gain_loss (
			id VARCHAR(36) NOT NULL PRIMARY KEY,
			portfolio_id VARCHAR(36) NOT NULL,
			ticker VARCHAR(10) NOT NULL,
			transaction_id VARCHAR(36) NOT NULL,
			sale_date DATE NOT NULL,
			shares_sold TEXT NOT NULL,
			cost_basis TEXT NOT NULL,
			sale_proceeds TEXT NOT NULL,
			realized_gain_loss TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY(portfolio_id) REFERENCES portfolio(id) ON DELETE CASCADE,
			FOREIGN KEY(transaction_id) REFERENCES txn(id) ON DELETE CASCADE
		);
		CREATE INDEX idx_rgl_portfolio_date ON realized_gain_loss(portfolio_id, sale_date);

		CREATE TABLE daily_valuation (
			id VARCHAR(36) NOT NULL PRIMARY KEY,
			portfolio_id VARCHAR(36) NOT NULL,
			date DATE NOT NULL,
			holdings_value TEXT NOT NULL,
			cash_balance TEXT NOT NULL,
			total_dividends TEXT NOT NULL,
			total_value TEXT NOT NULL,
			stale BOOLEAN NOT NULL DEFAULT FALSE,
			calculated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY(portfolio_id) REFERENCES portfolio(id) ON DELETE CASCADE,
			CONSTRAINT unique_portfolio_date UNIQUE (portfolio_id, date)
		);
		CREATE INDEX idx_daily_valuation_portfolio_date ON daily_valuation(portfolio_id, date);

		CREATE TABLE valuation_state (
			portfolio_id VARCHAR(36) NOT NULL PRIMARY KEY,
			status VARCHAR(10) NOT NULL DEFAULT 'clean',
			window_start DATE,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY(portfolio_id) REFERENCES portfolio(id) ON DELETE CASCADE
		);
	`

	_, err := db.Exec(schema)
	return err
}

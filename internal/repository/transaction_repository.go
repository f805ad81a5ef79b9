package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/portfoliovalue/backend/internal/apperrors"
	"github.com/portfoliovalue/backend/internal/model"
)

// TransactionRepository provides data access methods for the txn table.
// Transactions are the system's source of truth: every derived figure is
// reconstructible from the ordered list this repository returns.
type TransactionRepository struct {
	db *sql.DB
}

// NewTransactionRepository creates a new TransactionRepository with the provided database connection.
func NewTransactionRepository(db *sql.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

const transactionColumns = `id, portfolio_id, ticker, date, type, shares, price, amount, seq, created_at`

func scanTransaction(scan func(dest ...any) error) (model.Transaction, error) {
	var t model.Transaction
	var ticker sql.NullString
	var shares, price, amount sql.NullString
	var dateStr, createdAtStr string

	err := scan(&t.ID, &t.PortfolioID, &ticker, &dateStr, &t.Type, &shares, &price, &amount, &t.Seq, &createdAtStr)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("failed to scan txn table results: %w", err)
	}

	t.Ticker = ticker.String
	if t.Date, err = ParseTime(dateStr); err != nil {
		return model.Transaction{}, err
	}
	if t.CreatedAt, err = ParseTime(createdAtStr); err != nil {
		return model.Transaction{}, err
	}
	if t.Shares, err = ParseNullDecimal(shares); err != nil {
		return model.Transaction{}, err
	}
	if t.Price, err = ParseNullDecimal(price); err != nil {
		return model.Transaction{}, err
	}
	if t.Amount, err = ParseNullDecimal(amount); err != nil {
		return model.Transaction{}, err
	}
	return t, nil
}

// GetByPortfolio retrieves all transactions for a portfolio ordered by
// (date, seq), the replay order the ledger depends on.
func (r *TransactionRepository) GetByPortfolio(portfolioID string) ([]model.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM txn
		WHERE portfolio_id = ?
		ORDER BY date ASC, seq ASC
	`
	rows, err := r.db.Query(query, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to query txn table: %w", err)
	}
	defer rows.Close()

	transactions := []model.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows.Scan)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, t)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating txn table: %w", err)
	}

	return transactions, nil
}

// GetByID retrieves a single transaction. Returns ErrTransactionNotFound if no row exists.
func (r *TransactionRepository) GetByID(transactionID string) (model.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM txn
		WHERE id = ?
	`
	row := r.db.QueryRow(query, transactionID)
	t, err := scanTransaction(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Transaction{}, apperrors.ErrTransactionNotFound
	}
	if err != nil {
		return model.Transaction{}, err
	}
	return t, nil
}

// Insert persists a new transaction, assigning the next insertion sequence.
// The sequence comes from a dedicated AUTOINCREMENT table so it stays
// monotonic even after deletes, keeping same-day tie-breaks stable.
func (r *TransactionRepository) Insert(ctx context.Context, t *model.Transaction) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	res, err := tx.ExecContext(ctx, `INSERT INTO txn_seq DEFAULT VALUES`)
	if err != nil {
		return fmt.Errorf("failed to allocate insertion sequence: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read insertion sequence: %w", err)
	}
	t.Seq = seq

	query := `
		INSERT INTO txn (id, portfolio_id, ticker, date, type, shares, price, amount, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = tx.ExecContext(ctx, query,
		t.ID,
		t.PortfolioID,
		NullString(t.Ticker),
		t.Date.Format("2006-01-02"),
		t.Type,
		NullDecimalArg(t.Shares),
		NullDecimalArg(t.Price),
		NullDecimalArg(t.Amount),
		t.Seq,
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction insert: %w", err)
	}
	return nil
}

// Update rewrites a transaction's mutable fields. The insertion sequence is
// preserved so already-applied same-day ordering never reshuffles.
func (r *TransactionRepository) Update(ctx context.Context, t *model.Transaction) error {
	query := `
		UPDATE txn
		SET ticker = ?, date = ?, type = ?, shares = ?, price = ?, amount = ?
		WHERE id = ?
	`
	res, err := r.db.ExecContext(ctx, query,
		NullString(t.Ticker),
		t.Date.Format("2006-01-02"),
		t.Type,
		NullDecimalArg(t.Shares),
		NullDecimalArg(t.Price),
		NullDecimalArg(t.Amount),
		t.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return apperrors.ErrTransactionNotFound
	}
	return nil
}

// Delete removes a transaction by ID.
func (r *TransactionRepository) Delete(ctx context.Context, transactionID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM txn WHERE id = ?`, transactionID)
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result: %w", err)
	}
	if affected == 0 {
		return apperrors.ErrTransactionNotFound
	}
	return nil
}

// GetOldestDate finds the date of the earliest transaction for a portfolio.
// Returns time.Time{} (zero value) if the portfolio has no transactions.
func (r *TransactionRepository) GetOldestDate(portfolioID string) time.Time {
	var oldestDateStr sql.NullString

	err := r.db.QueryRow(`SELECT MIN(date) FROM txn WHERE portfolio_id = ?`, portfolioID).Scan(&oldestDateStr)
	if err != nil || !oldestDateStr.Valid {
		return time.Time{}
	}
	oldestDate, err := time.Parse("2006-01-02", oldestDateStr.String)
	if err != nil {
		return time.Time{}
	}
	return oldestDate
}

// GetDistinctTickers returns every ticker that appears in trade transactions.
// When portfolioID is empty the result spans all portfolios; the scheduler
// uses that form to know which tickers need price refreshes.
func (r *TransactionRepository) GetDistinctTickers(portfolioID string) ([]string, error) {
	query := `SELECT DISTINCT ticker FROM txn WHERE ticker IS NOT NULL`
	var args []any
	if portfolioID != "" {
		query += ` AND portfolio_id = ?`
		args = append(args, portfolioID)
	}
	query += ` ORDER BY ticker ASC`

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query distinct tickers: %w", err)
	}
	defer rows.Close()

	tickers := []string{}
	for rows.Next() {
		var ticker string
		if err := rows.Scan(&ticker); err != nil {
			return nil, fmt.Errorf("failed to scan ticker: %w", err)
		}
		tickers = append(tickers, ticker)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tickers: %w", err)
	}

	return tickers, nil
}

package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/portfoliovalue/backend/internal/apperrors"
	"github.com/portfoliovalue/backend/internal/model"
)

// ValuationRepository provides data access methods for the daily_valuation table,
// the persisted cache of per-day portfolio values.
type ValuationRepository struct {
	db *sql.DB
}

// NewValuationRepository creates a new repository instance.
func NewValuationRepository(db *sql.DB) *ValuationRepository {
	return &ValuationRepository{db: db}
}

func scanValuation(scan func(dest ...any) error) (model.DailyValuation, error) {
	var row model.DailyValuation
	var dateStr, calculatedAtStr string
	var holdingsStr, cashStr, dividendsStr, totalStr string

	err := scan(
		&row.ID,
		&row.PortfolioID,
		&dateStr,
		&holdingsStr,
		&cashStr,
		&dividendsStr,
		&totalStr,
		&row.Stale,
		&calculatedAtStr,
	)
	if err != nil {
		return model.DailyValuation{}, fmt.Errorf("failed to scan daily_valuation results: %w", err)
	}

	if row.Date, err = ParseTime(dateStr); err != nil {
		return model.DailyValuation{}, err
	}
	if row.CalculatedAt, err = ParseTime(calculatedAtStr); err != nil {
		return model.DailyValuation{}, err
	}
	if row.HoldingsValue, err = ParseDecimal(holdingsStr); err != nil {
		return model.DailyValuation{}, err
	}
	if row.CashBalance, err = ParseDecimal(cashStr); err != nil {
		return model.DailyValuation{}, err
	}
	if row.TotalDividends, err = ParseDecimal(dividendsStr); err != nil {
		return model.DailyValuation{}, err
	}
	if row.TotalValue, err = ParseDecimal(totalStr); err != nil {
		return model.DailyValuation{}, err
	}
	return row, nil
}

const valuationColumns = `id, portfolio_id, date, holdings_value, cash_balance,
	total_dividends, total_value, stale, calculated_at`

// GetRange streams daily valuation rows for [startDate, endDate] in date order
// using a callback, so large ranges never load fully into memory.
func (r *ValuationRepository) GetRange(
	portfolioID string,
	startDate, endDate time.Time,
	callback func(row model.DailyValuation) error,
) error {
	query := `
		SELECT ` + valuationColumns + `
		FROM daily_valuation
		WHERE portfolio_id = ? AND date >= ? AND date <= ?
		ORDER BY date ASC
	`
	rows, err := r.db.Query(query, portfolioID, startDate.Format("2006-01-02"), endDate.Format("2006-01-02"))
	if err != nil {
		return fmt.Errorf("failed to query daily_valuation: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		row, err := scanValuation(rows.Scan)
		if err != nil {
			return err
		}
		if err := callback(row); err != nil {
			return err
		}
	}

	if err = rows.Err(); err != nil {
		return fmt.Errorf("error iterating daily_valuation: %w", err)
	}
	return nil
}

// GetByDate retrieves the valuation row for one portfolio and date.
func (r *ValuationRepository) GetByDate(portfolioID string, date time.Time) (model.DailyValuation, error) {
	query := `
		SELECT ` + valuationColumns + `
		FROM daily_valuation
		WHERE portfolio_id = ? AND date = ?
	`
	row, err := scanValuation(r.db.QueryRow(query, portfolioID, date.Format("2006-01-02")).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return model.DailyValuation{}, apperrors.ErrValuationNotFound
	}
	if err != nil {
		return model.DailyValuation{}, err
	}
	return row, nil
}

// ReplaceWindow atomically rewrites the valuation rows for
// [windowStart, windowEnd]: existing rows in the window are deleted and the
// provided rows inserted inside a single database transaction. Rows dated
// before windowStart are never touched.
//
// If any step fails the whole window is rolled back, so a partially written
// window can never be observed.
func (r *ValuationRepository) ReplaceWindow(
	portfolioID string,
	windowStart, windowEnd time.Time,
	valuations []model.DailyValuation,
) error {
	tx, err := r.db.Begin()
	if err != nil {
		return &apperrors.PersistenceError{Op: "begin valuation window", Err: err}
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	_, err = tx.Exec(
		`DELETE FROM daily_valuation WHERE portfolio_id = ? AND date >= ? AND date <= ?`,
		portfolioID, windowStart.Format("2006-01-02"), windowEnd.Format("2006-01-02"),
	)
	if err != nil {
		return &apperrors.PersistenceError{Op: "clear valuation window", Err: err}
	}

	stmt, err := tx.Prepare(`
		INSERT INTO daily_valuation
			(id, portfolio_id, date, holdings_value, cash_balance, total_dividends,
			 total_value, stale, calculated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return &apperrors.PersistenceError{Op: "prepare valuation insert", Err: err}
	}
	defer stmt.Close()

	for _, row := range valuations {
		_, err := stmt.Exec(
			row.ID,
			row.PortfolioID,
			row.Date.Format("2006-01-02"),
			row.HoldingsValue.String(),
			row.CashBalance.String(),
			row.TotalDividends.String(),
			row.TotalValue.String(),
			row.Stale,
			row.CalculatedAt.UTC().Format(time.RFC3339),
		)
		if err != nil {
			return &apperrors.PersistenceError{Op: "insert valuation row", Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &apperrors.PersistenceError{Op: "commit valuation window", Err: err}
	}
	return nil
}

// GetLatestDate returns the date of the most recent valuation row for a
// portfolio. Returns time.Time{} (zero value) if no rows exist.
func (r *ValuationRepository) GetLatestDate(portfolioID string) time.Time {
	var dateStr sql.NullString
	err := r.db.QueryRow(
		`SELECT MAX(date) FROM daily_valuation WHERE portfolio_id = ?`, portfolioID,
	).Scan(&dateStr)
	if err != nil || !dateStr.Valid {
		return time.Time{}
	}
	latest, err := time.Parse("2006-01-02", dateStr.String)
	if err != nil {
		return time.Time{}
	}
	return latest
}

// GetEarliestStaleDate returns the date of the oldest stale valuation row
// for a portfolio. Returns time.Time{} (zero value) if no stale rows exist.
func (r *ValuationRepository) GetEarliestStaleDate(portfolioID string) time.Time {
	var dateStr sql.NullString
	err := r.db.QueryRow(
		`SELECT MIN(date) FROM daily_valuation WHERE portfolio_id = ? AND stale = 1`, portfolioID,
	).Scan(&dateStr)
	if err != nil || !dateStr.Valid {
		return time.Time{}
	}
	earliest, err := time.Parse("2006-01-02", dateStr.String)
	if err != nil {
		return time.Time{}
	}
	return earliest
}

// CountBefore returns how many valuation rows exist strictly before the given
// date. The recalculator reports this as the preserved-row count so callers
// can verify the incremental path was taken.
func (r *ValuationRepository) CountBefore(portfolioID string, date time.Time) (int, error) {
	var count int
	err := r.db.QueryRow(
		`SELECT COUNT(*) FROM daily_valuation WHERE portfolio_id = ? AND date < ?`,
		portfolioID, date.Format("2006-01-02"),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count preserved valuations: %w", err)
	}
	return count, nil
}

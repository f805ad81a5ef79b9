package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/portfoliovalue/backend/internal/apperrors"
	"github.com/portfoliovalue/backend/internal/model"
)

// PriceRepository provides data access methods for the price_history table.
type PriceRepository struct {
	db *sql.DB
}

// NewPriceRepository creates a new PriceRepository with the provided database connection.
func NewPriceRepository(db *sql.DB) *PriceRepository {
	return &PriceRepository{db: db}
}

// ClosingPrice returns the closing price for the exact ticker and date.
// Returns ErrPriceNotFound when no row exists for that date.
func (r *PriceRepository) ClosingPrice(ticker string, date time.Time) (decimal.Decimal, error) {
	var closeStr string
	err := r.db.QueryRow(
		`SELECT close FROM price_history WHERE ticker = ? AND date = ?`,
		ticker, date.Format("2006-01-02"),
	).Scan(&closeStr)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Decimal{}, apperrors.ErrPriceNotFound
	}
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("failed to query price_history: %w", err)
	}
	return ParseDecimal(closeStr)
}

// LatestOnOrBefore returns the most recent closing price on or before the
// given date, the forward-fill source for stale valuation rows.
func (r *PriceRepository) LatestOnOrBefore(ticker string, date time.Time) (model.PriceRecord, error) {
	query := `
		SELECT id, ticker, date, close
		FROM price_history
		WHERE ticker = ? AND date <= ?
		ORDER BY date DESC
		LIMIT 1
	`
	var record model.PriceRecord
	var dateStr, closeStr string

	err := r.db.QueryRow(query, ticker, date.Format("2006-01-02")).
		Scan(&record.ID, &record.Ticker, &dateStr, &closeStr)
	if errors.Is(err, sql.ErrNoRows) {
		return model.PriceRecord{}, apperrors.ErrPriceNotFound
	}
	if err != nil {
		return model.PriceRecord{}, fmt.Errorf("failed to query price_history: %w", err)
	}

	if record.Date, err = ParseTime(dateStr); err != nil {
		return model.PriceRecord{}, err
	}
	if record.Close, err = ParseDecimal(closeStr); err != nil {
		return model.PriceRecord{}, err
	}
	return record, nil
}

// GetRange retrieves all closing prices for a ticker within [startDate, endDate],
// sorted ascending by date. The recalculator preloads these once per window.
func (r *PriceRepository) GetRange(ticker string, startDate, endDate time.Time) ([]model.PriceRecord, error) {
	query := `
		SELECT id, ticker, date, close
		FROM price_history
		WHERE ticker = ? AND date >= ? AND date <= ?
		ORDER BY date ASC
	`
	rows, err := r.db.Query(query, ticker, startDate.Format("2006-01-02"), endDate.Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("failed to query price_history: %w", err)
	}
	defer rows.Close()

	records := []model.PriceRecord{}
	for rows.Next() {
		var record model.PriceRecord
		var dateStr, closeStr string

		if err := rows.Scan(&record.ID, &record.Ticker, &dateStr, &closeStr); err != nil {
			return nil, fmt.Errorf("failed to scan price_history results: %w", err)
		}
		if record.Date, err = ParseTime(dateStr); err != nil {
			return nil, err
		}
		if record.Close, err = ParseDecimal(closeStr); err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating price_history: %w", err)
	}

	return records, nil
}

// Upsert inserts or replaces closing prices. Existing (ticker, date) rows are
// overwritten so corrected feed data wins.
func (r *PriceRepository) Upsert(records []model.PriceRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin price upsert: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	stmt, err := tx.Prepare(`
		INSERT INTO price_history (id, ticker, date, close)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(ticker, date) DO UPDATE SET close = excluded.close
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare price upsert: %w", err)
	}
	defer stmt.Close()

	count := 0
	for _, record := range records {
		id := record.ID
		if id == "" {
			id = uuid.New().String()
		}
		if _, err := stmt.Exec(id, record.Ticker, record.Date.Format("2006-01-02"), record.Close.String()); err != nil {
			return 0, fmt.Errorf("failed to upsert price for %s on %s: %w",
				record.Ticker, record.Date.Format("2006-01-02"), err)
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit price upsert: %w", err)
	}
	return count, nil
}

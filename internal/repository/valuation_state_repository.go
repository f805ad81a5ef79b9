package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/portfoliovalue/backend/internal/model"
)

// ValuationStateRepository tracks per-portfolio valuation freshness: clean
// when every daily row is valid, dirty with a window start after a
// transaction mutation until the recalculator catches up.
type ValuationStateRepository struct {
	db *sql.DB
}

// NewValuationStateRepository creates a new repository instance.
func NewValuationStateRepository(db *sql.DB) *ValuationStateRepository {
	return &ValuationStateRepository{db: db}
}

// Get retrieves the state row for a portfolio. A portfolio with no recorded
// state is reported clean.
func (r *ValuationStateRepository) Get(portfolioID string) (model.ValuationState, error) {
	query := `
		SELECT portfolio_id, status, window_start, updated_at
		FROM valuation_state
		WHERE portfolio_id = ?
	`
	var state model.ValuationState
	var windowStartStr sql.NullString
	var updatedAtStr string

	err := r.db.QueryRow(query, portfolioID).
		Scan(&state.PortfolioID, &state.Status, &windowStartStr, &updatedAtStr)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ValuationState{
			PortfolioID: portfolioID,
			Status:      model.ValuationClean,
		}, nil
	}
	if err != nil {
		return model.ValuationState{}, fmt.Errorf("failed to query valuation_state: %w", err)
	}

	if state.UpdatedAt, err = ParseTime(updatedAtStr); err != nil {
		return model.ValuationState{}, err
	}
	if windowStartStr.Valid {
		windowStart, err := ParseTime(windowStartStr.String)
		if err != nil {
			return model.ValuationState{}, err
		}
		state.WindowStart = &windowStart
	}
	return state, nil
}

// MarkDirty records that valuation rows from windowStart onward are no longer
// guaranteed valid. If the portfolio is already dirty the earlier of the two
// window starts wins, so a concurrent backdated write is never lost.
func (r *ValuationStateRepository) MarkDirty(portfolioID string, windowStart time.Time) error {
	query := `
		INSERT INTO valuation_state (portfolio_id, status, window_start, updated_at)
		VALUES (?, 'dirty', ?, CURRENT_TIMESTAMP)
		ON CONFLICT(portfolio_id) DO UPDATE SET
			status = 'dirty',
			window_start = CASE
				WHEN valuation_state.status = 'dirty'
					AND valuation_state.window_start IS NOT NULL
					AND valuation_state.window_start < excluded.window_start
				THEN valuation_state.window_start
				ELSE excluded.window_start
			END,
			updated_at = CURRENT_TIMESTAMP
	`
	if _, err := r.db.Exec(query, portfolioID, windowStart.Format("2006-01-02")); err != nil {
		return fmt.Errorf("failed to mark valuation state dirty: %w", err)
	}
	return nil
}

// MarkClean records that the valuation series is current again.
func (r *ValuationStateRepository) MarkClean(portfolioID string) error {
	query := `
		INSERT INTO valuation_state (portfolio_id, status, window_start, updated_at)
		VALUES (?, 'clean', NULL, CURRENT_TIMESTAMP)
		ON CONFLICT(portfolio_id) DO UPDATE SET
			status = 'clean',
			window_start = NULL,
			updated_at = CURRENT_TIMESTAMP
	`
	if _, err := r.db.Exec(query, portfolioID); err != nil {
		return fmt.Errorf("failed to mark valuation state clean: %w", err)
	}
	return nil
}

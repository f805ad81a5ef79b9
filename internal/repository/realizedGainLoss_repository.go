package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/portfoliovalue/backend/internal/model"
)

// RealizedGainLossRepository provides data access methods for the realized_gain_loss table.
type RealizedGainLossRepository struct {
	db *sql.DB
}

// NewRealizedGainLossRepository creates a new repository instance.
func NewRealizedGainLossRepository(db *sql.DB) *RealizedGainLossRepository {
	return &RealizedGainLossRepository{db: db}
}

// Insert persists one realized gain/loss audit record.
func (r *RealizedGainLossRepository) Insert(record *model.RealizedGainLoss) error {
	query := `
		INSERT INTO realized_gain_loss
			(id, portfolio_id, ticker, transaction_id, sale_date, shares_sold,
			 cost_basis, sale_proceeds, realized_gain_loss)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Exec(query,
		record.ID,
		record.PortfolioID,
		record.Ticker,
		record.TransactionID,
		record.SaleDate.Format("2006-01-02"),
		record.SharesSold.String(),
		record.CostBasis.String(),
		record.SaleProceeds.String(),
		record.RealizedGainLoss.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert realized gain/loss: %w", err)
	}
	return nil
}

// DeleteByPortfolio removes all audit records for a portfolio with a sale
// date on or after the given date. The transaction service rewrites these
// when a backdated mutation invalidates previously recorded sales.
func (r *RealizedGainLossRepository) DeleteByPortfolio(portfolioID string, fromDate time.Time) error {
	_, err := r.db.Exec(
		`DELETE FROM realized_gain_loss WHERE portfolio_id = ? AND sale_date >= ?`,
		portfolioID, fromDate.Format("2006-01-02"),
	)
	if err != nil {
		return fmt.Errorf("failed to delete realized gain/loss records: %w", err)
	}
	return nil
}

// GetByPortfolio retrieves realized gain/loss records for a portfolio sorted
// ascending by sale date.
func (r *RealizedGainLossRepository) GetByPortfolio(portfolioID string) ([]model.RealizedGainLoss, error) {
	query := `
		SELECT id, portfolio_id, ticker, transaction_id, sale_date, shares_sold,
		       cost_basis, sale_proceeds, realized_gain_loss, created_at
		FROM realized_gain_loss
		WHERE portfolio_id = ?
		ORDER BY sale_date ASC
	`
	rows, err := r.db.Query(query, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to query realized_gain_loss table: %w", err)
	}
	defer rows.Close()

	records := []model.RealizedGainLoss{}
	for rows.Next() {
		var record model.RealizedGainLoss
		var saleDateStr, createdAtStr string
		var sharesStr, costStr, proceedsStr, gainStr string

		err := rows.Scan(
			&record.ID,
			&record.PortfolioID,
			&record.Ticker,
			&record.TransactionID,
			&saleDateStr,
			&sharesStr,
			&costStr,
			&proceedsStr,
			&gainStr,
			&createdAtStr,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan realized_gain_loss results: %w", err)
		}

		if record.SaleDate, err = ParseTime(saleDateStr); err != nil {
			return nil, err
		}
		if record.CreatedAt, err = ParseTime(createdAtStr); err != nil {
			return nil, err
		}
		if record.SharesSold, err = ParseDecimal(sharesStr); err != nil {
			return nil, err
		}
		if record.CostBasis, err = ParseDecimal(costStr); err != nil {
			return nil, err
		}
		if record.SaleProceeds, err = ParseDecimal(proceedsStr); err != nil {
			return nil, err
		}
		if record.RealizedGainLoss, err = ParseDecimal(gainStr); err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating realized_gain_loss table: %w", err)
	}

	return records, nil
}

package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/portfoliovalue/backend/internal/apperrors"
	"github.com/portfoliovalue/backend/internal/model"
)

// PortfolioRepository provides data access methods for the portfolio table.
type PortfolioRepository struct {
	db *sql.DB
}

// NewPortfolioRepository creates a new PortfolioRepository with the provided database connection.
func NewPortfolioRepository(db *sql.DB) *PortfolioRepository {
	return &PortfolioRepository{db: db}
}

// GetAll retrieves portfolios, optionally including archived ones.
func (r *PortfolioRepository) GetAll(filter model.PortfolioFilter) ([]model.Portfolio, error) {
	query := `
		SELECT id, name, description, is_archived, created_at
		FROM portfolio
	`
	if !filter.IncludeArchived {
		query += ` WHERE is_archived = FALSE`
	}
	query += ` ORDER BY name ASC`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query portfolio table: %w", err)
	}
	defer rows.Close()

	portfolios := []model.Portfolio{}
	for rows.Next() {
		var p model.Portfolio
		var description sql.NullString
		var createdAtStr string

		if err := rows.Scan(&p.ID, &p.Name, &description, &p.IsArchived, &createdAtStr); err != nil {
			return nil, fmt.Errorf("failed to scan portfolio table results: %w", err)
		}
		p.Description = description.String
		p.CreatedAt, err = ParseTime(createdAtStr)
		if err != nil {
			return nil, err
		}
		portfolios = append(portfolios, p)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating portfolio table: %w", err)
	}

	return portfolios, nil
}

// GetByID retrieves a single portfolio. Returns ErrPortfolioNotFound if no row exists.
func (r *PortfolioRepository) GetByID(portfolioID string) (model.Portfolio, error) {
	query := `
		SELECT id, name, description, is_archived, created_at
		FROM portfolio
		WHERE id = ?
	`
	var p model.Portfolio
	var description sql.NullString
	var createdAtStr string

	err := r.db.QueryRow(query, portfolioID).Scan(&p.ID, &p.Name, &description, &p.IsArchived, &createdAtStr)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Portfolio{}, apperrors.ErrPortfolioNotFound
	}
	if err != nil {
		return model.Portfolio{}, fmt.Errorf("failed to scan portfolio table results: %w", err)
	}

	p.Description = description.String
	p.CreatedAt, err = ParseTime(createdAtStr)
	if err != nil {
		return model.Portfolio{}, err
	}

	return p, nil
}

// Insert creates a new portfolio row.
func (r *PortfolioRepository) Insert(p *model.Portfolio) error {
	query := `
		INSERT INTO portfolio (id, name, description, is_archived)
		VALUES (?, ?, ?, ?)
	`
	if _, err := r.db.Exec(query, p.ID, p.Name, NullString(p.Description), p.IsArchived); err != nil {
		return fmt.Errorf("failed to insert portfolio: %w", err)
	}
	return nil
}

// Update rewrites the mutable columns of a portfolio row.
// Returns ErrPortfolioNotFound if no row exists.
func (r *PortfolioRepository) Update(p *model.Portfolio) error {
	query := `
		UPDATE portfolio
		SET name = ?, description = ?, is_archived = ?
		WHERE id = ?
	`
	result, err := r.db.Exec(query, p.Name, NullString(p.Description), p.IsArchived, p.ID)
	if err != nil {
		return fmt.Errorf("failed to update portfolio: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return apperrors.ErrPortfolioNotFound
	}
	return nil
}

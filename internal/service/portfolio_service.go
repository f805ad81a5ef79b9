package service

import (
	"time"

	"github.com/google/uuid"

	"github.com/portfoliovalue/backend/internal/model"
	"github.com/portfoliovalue/backend/internal/repository"
)

// PortfolioService handles portfolio lifecycle operations.
type PortfolioService struct {
	portfolioRepo *repository.PortfolioRepository
}

// NewPortfolioService creates a new PortfolioService with the provided dependencies.
func NewPortfolioService(portfolioRepo *repository.PortfolioRepository) *PortfolioService {
	return &PortfolioService{portfolioRepo: portfolioRepo}
}

// GetAll returns portfolios matching the filter.
func (s *PortfolioService) GetAll(filter model.PortfolioFilter) ([]model.Portfolio, error) {
	return s.portfolioRepo.GetAll(filter)
}

// GetByID returns a single portfolio.
func (s *PortfolioService) GetByID(portfolioID string) (model.Portfolio, error) {
	return s.portfolioRepo.GetByID(portfolioID)
}

// Create records a new portfolio and returns it with its generated ID.
func (s *PortfolioService) Create(name, description string) (model.Portfolio, error) {
	p := model.Portfolio{
		ID:          uuid.New().String(),
		Name:        name,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.portfolioRepo.Insert(&p); err != nil {
		return model.Portfolio{}, err
	}
	return p, nil
}

// Update applies the provided fields to an existing portfolio. Nil fields
// are left unchanged.
func (s *PortfolioService) Update(portfolioID string, name, description *string, isArchived *bool) (model.Portfolio, error) {
	p, err := s.portfolioRepo.GetByID(portfolioID)
	if err != nil {
		return model.Portfolio{}, err
	}
	if name != nil {
		p.Name = *name
	}
	if description != nil {
		p.Description = *description
	}
	if isArchived != nil {
		p.IsArchived = *isArchived
	}
	if err := s.portfolioRepo.Update(&p); err != nil {
		return model.Portfolio{}, err
	}
	return p, nil
}

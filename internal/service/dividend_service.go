package service

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/portfoliovalue/backend/internal/model"
	"github.com/portfoliovalue/backend/internal/repository"
)

// DividendService tracks cumulative dividends received by a portfolio.
// Dividends are recorded as transactions carrying an amount; they are kept
// out of the cash balance so the valuation service can include or exclude
// them independently.
type DividendService struct {
	transactionRepo *repository.TransactionRepository
}

// NewDividendService creates a new DividendService with the provided repository dependency.
func NewDividendService(transactionRepo *repository.TransactionRepository) *DividendService {
	return &DividendService{transactionRepo: transactionRepo}
}

// CumulativeDividends returns the sum of all dividends received by the
// portfolio on or before the given date.
func (s *DividendService) CumulativeDividends(portfolioID string, date time.Time) (decimal.Decimal, error) {
	transactions, err := s.transactionRepo.GetByPortfolio(portfolioID)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return dividendsFromTransactions(transactions, date), nil
}

// dividendsFromTransactions folds cumulative dividends out of an already
// loaded transaction list.
func dividendsFromTransactions(transactions []model.Transaction, date time.Time) decimal.Decimal {
	var total decimal.Decimal
	for _, t := range transactions {
		if t.Type != model.TransactionDividend || t.Date.After(date) {
			continue
		}
		if t.Amount.Valid {
			total = total.Add(t.Amount.Decimal)
		}
	}
	return total
}

package service

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/portfoliovalue/backend/internal/model"
	"github.com/portfoliovalue/backend/internal/repository"
)

// CashService answers "how much cash did this portfolio hold on date D".
// The balance is derived purely from the transaction list: deposits and
// withdrawals move cash directly, trades settle against it (sale proceeds in,
// purchase cost out).
type CashService struct {
	transactionRepo *repository.TransactionRepository
}

// NewCashService creates a new CashService with the provided repository dependency.
func NewCashService(transactionRepo *repository.TransactionRepository) *CashService {
	return &CashService{transactionRepo: transactionRepo}
}

// CashBalanceAsOf returns the cash balance of a portfolio at end of the given day.
func (s *CashService) CashBalanceAsOf(portfolioID string, date time.Time) (decimal.Decimal, error) {
	transactions, err := s.transactionRepo.GetByPortfolio(portfolioID)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return cashBalanceFromTransactions(transactions, date), nil
}

// cashBalanceFromTransactions folds cash movement out of an already loaded
// transaction list. Shared with the recalculator, which carries the balance
// forward day by day instead of re-querying per date.
func cashBalanceFromTransactions(transactions []model.Transaction, date time.Time) decimal.Decimal {
	var balance decimal.Decimal
	for _, t := range transactions {
		if t.Date.After(date) {
			continue
		}
		balance = balance.Add(cashDelta(t))
	}
	return balance
}

// cashDelta returns the signed cash movement of one transaction.
func cashDelta(t model.Transaction) decimal.Decimal {
	switch t.Type {
	case model.TransactionDeposit:
		if t.Amount.Valid {
			return t.Amount.Decimal
		}
	case model.TransactionWithdrawal:
		if t.Amount.Valid {
			return t.Amount.Decimal.Neg()
		}
	case model.TransactionBuy:
		if t.Shares.Valid && t.Price.Valid {
			return t.Shares.Decimal.Mul(t.Price.Decimal).Neg()
		}
	case model.TransactionSell:
		if t.Shares.Valid && t.Price.Valid {
			return t.Shares.Decimal.Mul(t.Price.Decimal)
		}
	}
	return decimal.Decimal{}
}

package testutil

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/portfoliovalue/backend/internal/pricefeed"
	"github.com/portfoliovalue/backend/internal/repository"
	"github.com/portfoliovalue/backend/internal/service"
)

// TestServices bundles fully wired services over a shared test database.
type TestServices struct {
	Portfolio    *service.PortfolioService
	Transaction  *service.TransactionService
	Valuation    *service.ValuationService
	Recalculator *service.RecalculatorService
	Price        *service.PriceService
	Scheduler    *service.SchedulerService
	Cash         *service.CashService
	Dividend     *service.DividendService

	PortfolioRepo    *repository.PortfolioRepository
	TransactionRepo  *repository.TransactionRepository
	PriceRepo        *repository.PriceRepository
	ValuationRepo    *repository.ValuationRepository
	StateRepo        *repository.ValuationStateRepository
	RealizedGainRepo *repository.RealizedGainLossRepository
}

// NewTestServices wires the full service graph against the given database,
// with stubbed price sources.
func NewTestServices(t *testing.T, db *sql.DB, quoter service.LiveQuoter, source service.HistoricalSource) *TestServices {
	t.Helper()

	s := &TestServices{
		PortfolioRepo:    repository.NewPortfolioRepository(db),
		TransactionRepo:  repository.NewTransactionRepository(db),
		PriceRepo:        repository.NewPriceRepository(db),
		ValuationRepo:    repository.NewValuationRepository(db),
		StateRepo:        repository.NewValuationStateRepository(db),
		RealizedGainRepo: repository.NewRealizedGainLossRepository(db),
	}

	locks := service.NewPortfolioLocks()
	s.Portfolio = service.NewPortfolioService(s.PortfolioRepo)
	s.Recalculator = service.NewRecalculatorService(
		s.TransactionRepo, s.PriceRepo, s.ValuationRepo, s.StateRepo, s.PortfolioRepo, locks,
	)
	s.Transaction = service.NewTransactionService(
		s.TransactionRepo, s.RealizedGainRepo, s.PortfolioRepo, s.StateRepo, s.Recalculator, locks,
	)
	s.Valuation = service.NewValuationService(s.TransactionRepo, s.PriceRepo, s.PortfolioRepo, quoter)
	s.Price = service.NewPriceService(s.PriceRepo, s.TransactionRepo, source)
	s.Scheduler = service.NewSchedulerService(
		s.Price, s.Recalculator, s.PortfolioRepo, s.ValuationRepo, s.StateRepo,
	)
	s.Cash = service.NewCashService(s.TransactionRepo)
	s.Dividend = service.NewDividendService(s.TransactionRepo)
	return s
}

// StubQuoter returns a fixed live price per symbol; symbols without an
// entry return ErrNoQuote.
type StubQuoter struct {
	Prices map[string]decimal.Decimal
	Err    error
}

// ErrNoQuote is returned by StubQuoter for unknown symbols.
var ErrNoQuote = errNoQuote{}

type errNoQuote struct{}

func (errNoQuote) Error() string { return "no quote available" }

// LivePrice implements service.LiveQuoter.
func (s *StubQuoter) LivePrice(_ context.Context, symbol string) (decimal.Decimal, error) {
	if s.Err != nil {
		return decimal.Decimal{}, s.Err
	}
	price, ok := s.Prices[symbol]
	if !ok {
		return decimal.Decimal{}, ErrNoQuote
	}
	return price, nil
}

// StubHistoricalSource serves canned daily closes per symbol, filtered to
// the requested range.
type StubHistoricalSource struct {
	Closes map[string][]pricefeed.DailyClose
	Err    error
}

// HistoricalCloses implements service.HistoricalSource.
func (s *StubHistoricalSource) HistoricalCloses(_ context.Context, symbol string, startDate, endDate time.Time) ([]pricefeed.DailyClose, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	var out []pricefeed.DailyClose
	for _, c := range s.Closes[symbol] {
		if !c.Date.Before(startDate) && !c.Date.After(endDate) {
			out = append(out, c)
		}
	}
	return out, nil
}

package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/portfoliovalue/backend/internal/ledger"
	"github.com/portfoliovalue/backend/internal/model"
	"github.com/portfoliovalue/backend/internal/repository"
	"github.com/portfoliovalue/backend/internal/validation"
)

// TransactionService owns all transaction mutations. Every create, update
// and delete is validated by replaying the would-be ledger before anything
// is written, so an oversell is rejected with the database untouched. After
// a successful write the affected valuation window is marked dirty and
// recomputed synchronously, and the realized gain/loss history is rebuilt.
type TransactionService struct {
	transactionRepo  *repository.TransactionRepository
	realizedGainRepo *repository.RealizedGainLossRepository
	portfolioRepo    *repository.PortfolioRepository
	stateRepo        *repository.ValuationStateRepository
	recalculator     *RecalculatorService
	locks            *PortfolioLocks
}

// NewTransactionService creates a new TransactionService with the provided dependencies.
func NewTransactionService(
	transactionRepo *repository.TransactionRepository,
	realizedGainRepo *repository.RealizedGainLossRepository,
	portfolioRepo *repository.PortfolioRepository,
	stateRepo *repository.ValuationStateRepository,
	recalculator *RecalculatorService,
	locks *PortfolioLocks,
) *TransactionService {
	return &TransactionService{
		transactionRepo:  transactionRepo,
		realizedGainRepo: realizedGainRepo,
		portfolioRepo:    portfolioRepo,
		stateRepo:        stateRepo,
		recalculator:     recalculator,
		locks:            locks,
	}
}

// GetByPortfolio returns all transactions for a portfolio in (date, seq) order.
func (s *TransactionService) GetByPortfolio(portfolioID string) ([]model.Transaction, error) {
	if _, err := s.portfolioRepo.GetByID(portfolioID); err != nil {
		return nil, err
	}
	return s.transactionRepo.GetByPortfolio(portfolioID)
}

// GetByID returns a single transaction.
func (s *TransactionService) GetByID(transactionID string) (model.Transaction, error) {
	return s.transactionRepo.GetByID(transactionID)
}

// GetRealizedGains returns the realized gain/loss history for a portfolio
// in sale-date order.
func (s *TransactionService) GetRealizedGains(portfolioID string) ([]model.RealizedGainLoss, error) {
	if _, err := s.portfolioRepo.GetByID(portfolioID); err != nil {
		return nil, err
	}
	return s.realizedGainRepo.GetByPortfolio(portfolioID)
}

// Create validates and records a new transaction, then recomputes the
// valuation series from the transaction date forward.
//
// For a sell, the full ledger including the new transaction is replayed
// first; if any sale would exceed available shares the whole operation is
// rejected and nothing is persisted.
func (s *TransactionService) Create(ctx context.Context, t *model.Transaction) (*RecalculationResult, error) {
	if err := validation.ValidateTransaction(t); err != nil {
		return nil, err
	}
	if _, err := s.portfolioRepo.GetByID(t.PortfolioID); err != nil {
		return nil, err
	}

	lock := s.locks.get(t.PortfolioID)
	lock.Lock()
	defer lock.Unlock()

	t.ID = uuid.New().String()
	t.Date = dateOnly(t.Date)

	// A new transaction sorts after every existing same-day transaction,
	// mirroring the seq the insert will allocate.
	if err := s.validateLedger(t.PortfolioID, t.ID, func(txns []model.Transaction) []model.Transaction {
		candidate := *t
		candidate.Seq = maxSeq(txns) + 1
		return append(txns, candidate)
	}); err != nil {
		return nil, err
	}

	if err := s.transactionRepo.Insert(ctx, t); err != nil {
		return nil, err
	}
	return s.finishMutation(ctx, t.PortfolioID, t.Date)
}

// Update applies an edit to an existing transaction. The rebuild window
// starts at the earlier of the old and new dates, since positions on either
// day may change.
func (s *TransactionService) Update(ctx context.Context, t *model.Transaction) (*RecalculationResult, error) {
	if err := validation.ValidateTransaction(t); err != nil {
		return nil, err
	}
	existing, err := s.transactionRepo.GetByID(t.ID)
	if err != nil {
		return nil, err
	}
	// Transactions never move between portfolios.
	t.PortfolioID = existing.PortfolioID
	t.Seq = existing.Seq
	t.Date = dateOnly(t.Date)

	lock := s.locks.get(t.PortfolioID)
	lock.Lock()
	defer lock.Unlock()

	if err := s.validateLedger(t.PortfolioID, t.ID, func(txns []model.Transaction) []model.Transaction {
		out := make([]model.Transaction, 0, len(txns))
		for _, cur := range txns {
			if cur.ID == t.ID {
				out = append(out, *t)
			} else {
				out = append(out, cur)
			}
		}
		return out
	}); err != nil {
		return nil, err
	}

	if err := s.transactionRepo.Update(ctx, t); err != nil {
		return nil, err
	}

	earliest := t.Date
	if existing.Date.Before(earliest) {
		earliest = existing.Date
	}
	return s.finishMutation(ctx, t.PortfolioID, earliest)
}

// Delete removes a transaction. Deleting a buy that later sales depend on
// is rejected, because the remaining ledger would oversell on replay.
func (s *TransactionService) Delete(ctx context.Context, transactionID string) (*RecalculationResult, error) {
	existing, err := s.transactionRepo.GetByID(transactionID)
	if err != nil {
		return nil, err
	}

	lock := s.locks.get(existing.PortfolioID)
	lock.Lock()
	defer lock.Unlock()

	if err := s.validateLedger(existing.PortfolioID, transactionID, func(txns []model.Transaction) []model.Transaction {
		out := make([]model.Transaction, 0, len(txns))
		for _, t := range txns {
			if t.ID != transactionID {
				out = append(out, t)
			}
		}
		return out
	}); err != nil {
		return nil, err
	}

	if err := s.transactionRepo.Delete(ctx, transactionID); err != nil {
		return nil, err
	}
	return s.finishMutation(ctx, existing.PortfolioID, existing.Date)
}

// validateLedger replays every affected ticker's ledger with the mutation
// applied in memory. The caller must hold the portfolio lock.
func (s *TransactionService) validateLedger(
	portfolioID, mutatedID string,
	mutate func([]model.Transaction) []model.Transaction,
) error {
	txns, err := s.transactionRepo.GetByPortfolio(portfolioID)
	if err != nil {
		return err
	}
	candidate := mutate(txns)

	seen := make(map[string]bool)
	for _, t := range candidate {
		if !t.IsTrade() || seen[t.Ticker] {
			continue
		}
		seen[t.Ticker] = true
		if _, err := ledger.Replay(t.Ticker, candidate); err != nil {
			return err
		}
	}
	// An edit can move a transaction off a ticker entirely; that ticker's
	// remaining ledger must still replay cleanly.
	for _, t := range txns {
		if t.ID != mutatedID || !t.IsTrade() || seen[t.Ticker] {
			continue
		}
		if _, err := ledger.Replay(t.Ticker, candidate); err != nil {
			return err
		}
	}
	return nil
}

// finishMutation marks the portfolio dirty from the earliest affected date,
// rebuilds realized gains from that date, and recomputes the valuation
// window. The caller must hold the portfolio lock.
func (s *TransactionService) finishMutation(ctx context.Context, portfolioID string, earliestAffected time.Time) (*RecalculationResult, error) {
	if err := s.stateRepo.MarkDirty(portfolioID, earliestAffected); err != nil {
		return nil, err
	}
	if err := s.rebuildRealizedGains(portfolioID, earliestAffected); err != nil {
		return nil, err
	}
	return s.recalculator.recalculateLocked(ctx, portfolioID, earliestAffected, time.Time{})
}

// rebuildRealizedGains deletes realized gain/loss rows with a sale date on
// or after fromDate and re-derives them from a full ledger replay. The
// replay itself is cheap; only persistence is scoped to the window.
func (s *TransactionService) rebuildRealizedGains(portfolioID string, fromDate time.Time) error {
	txns, err := s.transactionRepo.GetByPortfolio(portfolioID)
	if err != nil {
		return err
	}
	tickers, err := s.transactionRepo.GetDistinctTickers(portfolioID)
	if err != nil {
		return err
	}

	if err := s.realizedGainRepo.DeleteByPortfolio(portfolioID, fromDate); err != nil {
		return err
	}

	for _, ticker := range tickers {
		_, sales, err := ledger.ReplaySales(ticker, txns)
		if err != nil {
			return err
		}
		for _, sale := range sales {
			if sale.Result.SaleDate.Before(fromDate) {
				continue
			}
			record := &model.RealizedGainLoss{
				ID:               uuid.New().String(),
				PortfolioID:      portfolioID,
				Ticker:           ticker,
				TransactionID:    sale.TransactionID,
				SaleDate:         sale.Result.SaleDate,
				SharesSold:       sale.Result.SharesSold,
				CostBasis:        sale.Result.CostBasis,
				SaleProceeds:     sale.Result.Proceeds,
				RealizedGainLoss: sale.Result.RealizedGainLoss,
				CreatedAt:        time.Now().UTC(),
			}
			if err := s.realizedGainRepo.Insert(record); err != nil {
				return err
			}
		}
	}
	return nil
}

func maxSeq(txns []model.Transaction) int64 {
	var max int64
	for _, t := range txns {
		if t.Seq > max {
			max = t.Seq
		}
	}
	return max
}

package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/portfoliovalue/backend/internal/apperrors"
	"github.com/portfoliovalue/backend/internal/ledger"
	"github.com/portfoliovalue/backend/internal/model"
	"github.com/portfoliovalue/backend/internal/repository"
)

// RecalculationResult reports what a window recomputation actually did.
// DaysPreserved counts rows before the window start that were left untouched;
// tests and callers use the two counters to verify the incremental path was
// taken instead of a silent full recompute.
type RecalculationResult struct {
	PortfolioID    string    `json:"portfolioId"`
	WindowStart    time.Time `json:"windowStart"`
	WindowEnd      time.Time `json:"windowEnd"`
	DaysRecomputed int       `json:"daysRecomputed"`
	DaysPreserved  int       `json:"daysPreserved"`
	// StaleDates lists every recomputed day that carries a forward-filled
	// price, so the caller can explain degraded rows.
	StaleDates []string `json:"staleDates,omitempty"`
}

// RecalculatorService maintains the daily_valuation series for each
// portfolio, recomputing only the window affected by a transaction change.
//
// Writes are serialized per portfolio; see PortfolioLocks. The whole window
// is persisted in one database transaction, so a cancelled or failed run
// leaves the previous series intact and the portfolio marked dirty.
type RecalculatorService struct {
	transactionRepo *repository.TransactionRepository
	priceRepo       *repository.PriceRepository
	valuationRepo   *repository.ValuationRepository
	stateRepo       *repository.ValuationStateRepository
	portfolioRepo   *repository.PortfolioRepository
	locks           *PortfolioLocks
}

// NewRecalculatorService creates a new RecalculatorService with the provided dependencies.
func NewRecalculatorService(
	transactionRepo *repository.TransactionRepository,
	priceRepo *repository.PriceRepository,
	valuationRepo *repository.ValuationRepository,
	stateRepo *repository.ValuationStateRepository,
	portfolioRepo *repository.PortfolioRepository,
	locks *PortfolioLocks,
) *RecalculatorService {
	return &RecalculatorService{
		transactionRepo: transactionRepo,
		priceRepo:       priceRepo,
		valuationRepo:   valuationRepo,
		stateRepo:       stateRepo,
		portfolioRepo:   portfolioRepo,
		locks:           locks,
	}
}

// RecalculateFrom recomputes the daily valuation series for
// [earliestAffectedDate, throughDate]. A zero throughDate means today.
//
// Rows strictly before the window start are never rewritten; they are
// preserved as-is and only the running cash/dividend totals are carried
// across the boundary. If the portfolio is already dirty with an earlier
// window start, the earlier date wins so no invalidated row is skipped.
//
// The operation is idempotent: identical transaction state and price history
// produce identical rows on every run.
func (s *RecalculatorService) RecalculateFrom(
	ctx context.Context,
	portfolioID string,
	earliestAffectedDate time.Time,
	throughDate time.Time,
) (*RecalculationResult, error) {
	lock := s.locks.get(portfolioID)
	lock.Lock()
	defer lock.Unlock()

	return s.recalculateLocked(ctx, portfolioID, earliestAffectedDate, throughDate)
}

// FullRecalculate rebuilds the entire series from the first transaction date.
// Used only for backfill and corruption recovery; routine edits must go
// through RecalculateFrom so cost stays proportional to the affected window.
func (s *RecalculatorService) FullRecalculate(ctx context.Context, portfolioID string) (*RecalculationResult, error) {
	lock := s.locks.get(portfolioID)
	lock.Lock()
	defer lock.Unlock()

	oldest := s.transactionRepo.GetOldestDate(portfolioID)
	if oldest.IsZero() {
		// Nothing to rebuild; an empty portfolio has no valuation series.
		if _, err := s.portfolioRepo.GetByID(portfolioID); err != nil {
			return nil, err
		}
		if err := s.stateRepo.MarkClean(portfolioID); err != nil {
			return nil, err
		}
		return &RecalculationResult{PortfolioID: portfolioID}, nil
	}
	return s.recalculateLocked(ctx, portfolioID, oldest, time.Time{})
}

// State reports whether the portfolio's valuation series is current. A dirty
// state carries the start of the window still awaiting recomputation.
func (s *RecalculatorService) State(portfolioID string) (model.ValuationState, error) {
	if _, err := s.portfolioRepo.GetByID(portfolioID); err != nil {
		return model.ValuationState{}, err
	}
	return s.stateRepo.Get(portfolioID)
}

// recalculateLocked is the recomputation body. The caller must hold the
// portfolio lock.
func (s *RecalculatorService) recalculateLocked(
	ctx context.Context,
	portfolioID string,
	earliestAffectedDate time.Time,
	throughDate time.Time,
) (*RecalculationResult, error) {
	if _, err := s.portfolioRepo.GetByID(portfolioID); err != nil {
		return nil, err
	}

	if throughDate.IsZero() {
		throughDate = today()
	}
	windowStart := dateOnly(earliestAffectedDate)
	windowEnd := dateOnly(throughDate)

	// An earlier pending dirty window must not be forgotten.
	state, err := s.stateRepo.Get(portfolioID)
	if err != nil {
		return nil, err
	}
	if state.Status == model.ValuationDirty && state.WindowStart != nil && state.WindowStart.Before(windowStart) {
		windowStart = dateOnly(*state.WindowStart)
	}

	// No valuation can exist before the first transaction.
	oldest := s.transactionRepo.GetOldestDate(portfolioID)
	if oldest.IsZero() {
		if err := s.stateRepo.MarkClean(portfolioID); err != nil {
			return nil, err
		}
		return &RecalculationResult{PortfolioID: portfolioID}, nil
	}
	if windowStart.Before(oldest) {
		windowStart = oldest
	}
	if windowEnd.Before(windowStart) {
		return nil, apperrors.ErrInvalidDateRange
	}

	transactions, err := s.transactionRepo.GetByPortfolio(portfolioID)
	if err != nil {
		return nil, err
	}

	rows, staleDates, err := s.computeWindow(ctx, portfolioID, transactions, windowStart, windowEnd)
	if err != nil {
		return nil, err
	}

	preserved, err := s.valuationRepo.CountBefore(portfolioID, windowStart)
	if err != nil {
		return nil, err
	}

	if err := s.valuationRepo.ReplaceWindow(portfolioID, windowStart, windowEnd, rows); err != nil {
		return nil, err
	}
	if err := s.stateRepo.MarkClean(portfolioID); err != nil {
		return nil, err
	}

	return &RecalculationResult{
		PortfolioID:    portfolioID,
		WindowStart:    windowStart,
		WindowEnd:      windowEnd,
		DaysRecomputed: len(rows),
		DaysPreserved:  preserved,
		StaleDates:     staleDates,
	}, nil
}

// tickerSeries is the per-ticker computation state carried across days:
// the replaying position, the transactions not yet applied, and the price
// cursor used for exact lookups and forward-filling.
type tickerSeries struct {
	position  *ledger.Position
	pending   []model.Transaction
	prices    []model.PriceRecord
	priceIdx  int
	lastKnown decimal.Decimal
	hasPrice  bool
}

// computeWindow walks the window one day at a time, maintaining per-ticker
// positions and running cash/dividend totals in a single pass so cost stays
// O(days in window x tickers held), independent of total history length.
func (s *RecalculatorService) computeWindow(
	ctx context.Context,
	portfolioID string,
	transactions []model.Transaction,
	windowStart, windowEnd time.Time,
) ([]model.DailyValuation, []string, error) {
	// Split history at the window boundary. Everything before the boundary
	// only seeds opening positions and running totals.
	var before, inWindow []model.Transaction
	for _, t := range transactions {
		if t.Date.Before(windowStart) {
			before = append(before, t)
		} else if !t.Date.After(windowEnd) {
			inWindow = append(inWindow, t)
		}
	}
	sort.SliceStable(inWindow, func(i, j int) bool {
		if !inWindow[i].Date.Equal(inWindow[j].Date) {
			return inWindow[i].Date.Before(inWindow[j].Date)
		}
		return inWindow[i].Seq < inWindow[j].Seq
	})

	series := make(map[string]*tickerSeries)
	ensureSeries := func(ticker string) (*tickerSeries, error) {
		if ts, ok := series[ticker]; ok {
			return ts, nil
		}
		position, err := ledger.Replay(ticker, before)
		if err != nil {
			return nil, err
		}
		ts := &tickerSeries{position: position}

		prices, err := s.priceRepo.GetRange(ticker, windowStart, windowEnd)
		if err != nil {
			return nil, err
		}
		ts.prices = prices

		// Seed forward-fill with the last close before the window.
		seed, err := s.priceRepo.LatestOnOrBefore(ticker, windowStart.AddDate(0, 0, -1))
		if err == nil {
			ts.lastKnown = seed.Close
			ts.hasPrice = true
		} else if !errors.Is(err, apperrors.ErrPriceNotFound) {
			return nil, err
		}
		return ts, nil
	}

	// Tickers traded before the window still need valuing inside it.
	for _, t := range before {
		if t.IsTrade() {
			if _, err := ensureSeries(t.Ticker); err != nil {
				return nil, nil, err
			}
		}
	}

	openingCash := cashBalanceFromTransactions(before, windowStart.AddDate(0, 0, -1))
	openingDividends := dividendsFromTransactions(before, windowStart.AddDate(0, 0, -1))

	cash := openingCash
	dividends := openingDividends

	var rows []model.DailyValuation
	var staleDates []string
	txIdx := 0

	for day := windowStart; !day.After(windowEnd); day = day.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		// Apply this day's transactions in (date, seq) order.
		for txIdx < len(inWindow) && !inWindow[txIdx].Date.After(day) {
			t := inWindow[txIdx]
			txIdx++

			cash = cash.Add(cashDelta(t))
			if t.Type == model.TransactionDividend && t.Amount.Valid {
				dividends = dividends.Add(t.Amount.Decimal)
			}
			if !t.IsTrade() {
				continue
			}

			ts, err := ensureSeries(t.Ticker)
			if err != nil {
				return nil, nil, err
			}
			if !t.Shares.Valid || !t.Price.Valid {
				return nil, nil, &apperrors.ValidationError{Field: "shares/price", Reason: "required for trade transactions"}
			}
			switch t.Type {
			case model.TransactionBuy:
				if err := ts.position.ApplyPurchase(t.Shares.Decimal, t.Price.Decimal, t.Date); err != nil {
					return nil, nil, err
				}
			case model.TransactionSell:
				if _, err := ts.position.ApplySale(t.Shares.Decimal, t.Price.Decimal, t.Date); err != nil {
					return nil, nil, err
				}
			}
		}

		// Value held positions at this day's close, forward-filling when the
		// exact close is missing. A day with any forward-filled or absent
		// price is written stale rather than dropped: a degraded row keeps
		// the series continuous and is overwritten once prices arrive.
		var holdings decimal.Decimal
		stale := false
		for _, ts := range series {
			shares := ts.position.RemainingShares()

			// Advance the price cursor through this day regardless of
			// holdings so the forward-fill seed stays current.
			for ts.priceIdx < len(ts.prices) && !ts.prices[ts.priceIdx].Date.After(day) {
				ts.lastKnown = ts.prices[ts.priceIdx].Close
				ts.hasPrice = true
				ts.priceIdx++
			}
			if !shares.IsPositive() {
				continue
			}

			exact := ts.priceIdx > 0 && ts.prices[ts.priceIdx-1].Date.Equal(day)
			if !exact {
				stale = true
			}
			if ts.hasPrice {
				holdings = holdings.Add(shares.Mul(ts.lastKnown))
			}
		}

		if stale {
			staleDates = append(staleDates, day.Format("2006-01-02"))
		}

		roundedHoldings := holdings.Round(2)
		roundedCash := cash.Round(2)
		roundedDividends := dividends.Round(2)

		rows = append(rows, model.DailyValuation{
			ID:             valuationRowID(portfolioID, day),
			PortfolioID:    portfolioID,
			Date:           day,
			HoldingsValue:  roundedHoldings,
			CashBalance:    roundedCash,
			TotalDividends: roundedDividends,
			TotalValue:     roundedHoldings.Add(roundedCash).Add(roundedDividends),
			Stale:          stale,
			CalculatedAt:   time.Now().UTC(),
		})
	}

	return rows, staleDates, nil
}

// valuationRowID derives a stable UUID for a (portfolio, date) valuation row,
// so recomputing a window with unchanged inputs rewrites each day under the
// same identity instead of minting a fresh one.
func valuationRowID(portfolioID string, day time.Time) string {
	name := portfolioID + "/" + day.Format("2006-01-02")
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}

// dateOnly truncates a timestamp to its UTC calendar day.
func dateOnly(t time.Time) time.Time {
	return time.Date(t.UTC().Year(), t.UTC().Month(), t.UTC().Day(), 0, 0, 0, 0, time.UTC)
}

func today() time.Time {
	return dateOnly(time.Now())
}

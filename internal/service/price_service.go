package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/portfoliovalue/backend/internal/apperrors"
	"github.com/portfoliovalue/backend/internal/model"
	"github.com/portfoliovalue/backend/internal/pricefeed"
	"github.com/portfoliovalue/backend/internal/repository"
)

// defaultBackfillDays bounds the first fetch for a ticker with no stored
// history. Five years of dailies covers any realistic backfill request
// without hammering the feed.
const defaultBackfillDays = 365 * 5

// HistoricalSource supplies daily closes for a date range. Satisfied by
// pricefeed.Client; tests substitute a stub.
type HistoricalSource interface {
	HistoricalCloses(ctx context.Context, symbol string, startDate, endDate time.Time) ([]pricefeed.DailyClose, error)
}

// PriceService keeps the price_history table current from the upstream feed.
type PriceService struct {
	priceRepo       *repository.PriceRepository
	transactionRepo *repository.TransactionRepository
	source          HistoricalSource
}

// NewPriceService creates a new PriceService with the provided dependencies.
func NewPriceService(
	priceRepo *repository.PriceRepository,
	transactionRepo *repository.TransactionRepository,
	source HistoricalSource,
) *PriceService {
	return &PriceService{
		priceRepo:       priceRepo,
		transactionRepo: transactionRepo,
		source:          source,
	}
}

// RefreshTicker fetches closes from the day after the last stored close
// through today and upserts them. Returns the number of rows written.
func (s *PriceService) RefreshTicker(ctx context.Context, ticker string) (int, error) {
	end := today()
	start := end.AddDate(0, 0, -defaultBackfillDays)

	latest, err := s.priceRepo.LatestOnOrBefore(ticker, end)
	switch {
	case err == nil:
		if !latest.Date.Before(end) {
			return 0, nil
		}
		start = latest.Date.AddDate(0, 0, 1)
	case errors.Is(err, apperrors.ErrPriceNotFound):
		// First fetch for this ticker; use the full backfill range.
	default:
		return 0, err
	}

	closes, err := s.source.HistoricalCloses(ctx, ticker, start, end)
	if err != nil {
		return 0, err
	}
	if len(closes) == 0 {
		return 0, nil
	}

	records := make([]model.PriceRecord, 0, len(closes))
	for _, c := range closes {
		records = append(records, model.PriceRecord{
			ID:     uuid.New().String(),
			Ticker: ticker,
			Date:   c.Date,
			Close:  c.Close,
		})
	}
	return s.priceRepo.Upsert(records)
}

// RefreshAll refreshes every ticker that appears in any portfolio's
// transactions. Per-ticker failures are collected, not fatal: one delisted
// symbol must not block the rest of the refresh.
func (s *PriceService) RefreshAll(ctx context.Context) (int, error) {
	tickers, err := s.transactionRepo.GetDistinctTickers("")
	if err != nil {
		return 0, err
	}

	total := 0
	var errs []error
	for _, ticker := range tickers {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		written, err := s.RefreshTicker(ctx, ticker)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		total += written
	}
	if len(errs) > 0 {
		return total, errors.Join(apperrors.ErrFailedToRefreshPrices, errors.Join(errs...))
	}
	return total, nil
}

package service

import (
	"context"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/portfoliovalue/backend/internal/model"
	"github.com/portfoliovalue/backend/internal/repository"
)

// maxConcurrentRecalcs bounds the fan-out of the nightly update. Portfolio
// recalculations are independent of each other, so they run in parallel up
// to this limit.
const maxConcurrentRecalcs = 4

// SchedulerService runs the nightly maintenance: refresh prices, then
// extend and repair each portfolio's valuation series.
type SchedulerService struct {
	priceService  *PriceService
	recalculator  *RecalculatorService
	portfolioRepo *repository.PortfolioRepository
	valuationRepo *repository.ValuationRepository
	stateRepo     *repository.ValuationStateRepository
}

// NewSchedulerService creates a new SchedulerService with the provided dependencies.
func NewSchedulerService(
	priceService *PriceService,
	recalculator *RecalculatorService,
	portfolioRepo *repository.PortfolioRepository,
	valuationRepo *repository.ValuationRepository,
	stateRepo *repository.ValuationStateRepository,
) *SchedulerService {
	return &SchedulerService{
		priceService:  priceService,
		recalculator:  recalculator,
		portfolioRepo: portfolioRepo,
		valuationRepo: valuationRepo,
		stateRepo:     stateRepo,
	}
}

// RunDailyUpdate refreshes price history, then brings every active
// portfolio's valuation series up to today. Dirty portfolios recompute from
// their pending window start; clean ones only extend from the day after
// their last stored row, so stale rows written during feed gaps get
// overwritten once the missing closes arrive.
func (s *SchedulerService) RunDailyUpdate(ctx context.Context) error {
	written, err := s.priceService.RefreshAll(ctx)
	if err != nil {
		// Forward-fill covers the gap; recalculation still proceeds.
		log.Printf("price refresh incomplete (wrote %d rows): %v", written, err)
	} else {
		log.Printf("price refresh complete: %d rows written", written)
	}

	portfolios, err := s.portfolioRepo.GetAll(model.PortfolioFilter{})
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentRecalcs)
	for _, p := range portfolios {
		p := p
		g.Go(func() error {
			start, err := s.updateStart(p.ID)
			if err != nil {
				return err
			}
			if start.IsZero() {
				return nil
			}
			result, err := s.recalculator.RecalculateFrom(ctx, p.ID, start, time.Time{})
			if err != nil {
				log.Printf("daily recalculation failed for portfolio %s: %v", p.ID, err)
				return err
			}
			log.Printf("daily recalculation complete for portfolio %s: %d days recomputed, %d stale",
				p.ID, result.DaysRecomputed, len(result.StaleDates))
			return nil
		})
	}
	return g.Wait()
}

// updateStart picks where tonight's recomputation should begin for one
// portfolio. Zero means there is nothing to do.
func (s *SchedulerService) updateStart(portfolioID string) (time.Time, error) {
	state, err := s.stateRepo.Get(portfolioID)
	if err != nil {
		return time.Time{}, err
	}
	if state.Status == model.ValuationDirty && state.WindowStart != nil {
		return *state.WindowStart, nil
	}

	latest := s.valuationRepo.GetLatestDate(portfolioID)
	if latest.IsZero() {
		// No series yet; recalculateLocked clamps to the first transaction.
		return time.Unix(0, 0).UTC(), nil
	}
	// Stale rows carry forward-filled prices. If tonight's refresh brought
	// the missing closes, recomputing from the oldest stale row replaces the
	// whole degraded tail.
	if stale := s.valuationRepo.GetEarliestStaleDate(portfolioID); !stale.IsZero() {
		return stale, nil
	}
	// Otherwise recompute the last stored day too: its close may have been
	// published after yesterday's run.
	return latest, nil
}

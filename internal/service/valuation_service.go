package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/portfoliovalue/backend/internal/apperrors"
	"github.com/portfoliovalue/backend/internal/ledger"
	"github.com/portfoliovalue/backend/internal/model"
	"github.com/portfoliovalue/backend/internal/repository"
)

// Price modes for ValueOptions.PriceMode.
const (
	PriceModeAuto       = "auto"
	PriceModeLive       = "live"
	PriceModeHistorical = "historical"
)

// ValueOptions controls a single valuation request.
type ValueOptions struct {
	// Date is the as-of day; zero means today.
	Date time.Time
	// IncludeCash adds the cash ledger balance to the total.
	IncludeCash bool
	// IncludeDividends adds cumulative dividends received to the total.
	IncludeDividends bool
	// PriceMode selects the price source: auto (live for today, stored
	// close otherwise), live, or historical. Empty means auto.
	PriceMode string
}

// HoldingValue is one ticker's contribution to a valuation: market value
// alongside the cost-basis view, so callers never need a second query to
// answer "what is it worth and what did it cost".
type HoldingValue struct {
	Ticker    string          `json:"ticker"`
	Shares    decimal.Decimal `json:"shares"`
	Price     decimal.Decimal `json:"price"`
	PriceDate time.Time       `json:"priceDate"`
	Value     decimal.Decimal `json:"value"`
	CostBasis decimal.Decimal `json:"costBasis"`
	// Unrealized gain/loss is zero when the holding could not be priced;
	// a missing price degrades the holding rather than reporting a loss.
	UnrealizedGainLoss    decimal.Decimal `json:"unrealizedGainLoss"`
	UnrealizedGainLossPct decimal.Decimal `json:"unrealizedGainLossPct"`
	// Weight is this holding's share of the portfolio's holdings value,
	// in percent.
	Weight     decimal.Decimal `json:"weight"`
	Stale      bool            `json:"stale"`
	PriceFound bool            `json:"priceFound"`
}

// ValueResult is the full valuation breakdown. Components are exact
// decimals; rounding happens at the API layer so that
// Total(dividends on) always equals Total(dividends off) plus Dividends.
type ValueResult struct {
	PortfolioID   string          `json:"portfolioId"`
	Date          time.Time       `json:"date"`
	Holdings      []HoldingValue  `json:"holdings"`
	HoldingsValue decimal.Decimal `json:"holdingsValue"`
	CashBalance   decimal.Decimal `json:"cashBalance"`
	Dividends     decimal.Decimal `json:"dividends"`
	Total         decimal.Decimal `json:"total"`
	// Partial is set when any holding was valued with a forward-filled
	// price or could not be valued at all.
	Partial bool `json:"partial"`
}

// LiveQuoter supplies a current market price for a symbol. Satisfied by
// pricefeed.Client; tests substitute a stub.
type LiveQuoter interface {
	LivePrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// ValuationService answers point-in-time valuation queries by replaying the
// transaction ledger and pricing the resulting positions. It never consults
// the materialized daily series, so its answers are correct even while a
// recalculation is pending.
type ValuationService struct {
	transactionRepo *repository.TransactionRepository
	priceRepo       *repository.PriceRepository
	portfolioRepo   *repository.PortfolioRepository
	quoter          LiveQuoter
}

// NewValuationService creates a new ValuationService with the provided dependencies.
func NewValuationService(
	transactionRepo *repository.TransactionRepository,
	priceRepo *repository.PriceRepository,
	portfolioRepo *repository.PortfolioRepository,
	quoter LiveQuoter,
) *ValuationService {
	return &ValuationService{
		transactionRepo: transactionRepo,
		priceRepo:       priceRepo,
		portfolioRepo:   portfolioRepo,
		quoter:          quoter,
	}
}

// CalculateValue values the portfolio as of opts.Date under the requested
// composition and price mode.
//
// A missing or forward-filled price degrades the result (Partial, per-holding
// Stale/PriceFound flags) instead of failing the whole request; an unpriceable
// holding contributes zero. Only structural problems error: unknown portfolio,
// unknown price mode, a request dated before the first transaction.
func (s *ValuationService) CalculateValue(ctx context.Context, portfolioID string, opts ValueOptions) (*ValueResult, error) {
	if _, err := s.portfolioRepo.GetByID(portfolioID); err != nil {
		return nil, err
	}

	mode := opts.PriceMode
	if mode == "" {
		mode = PriceModeAuto
	}
	switch mode {
	case PriceModeAuto, PriceModeLive, PriceModeHistorical:
	default:
		return nil, &apperrors.ConfigurationError{Reason: fmt.Sprintf("unknown price mode %q", opts.PriceMode)}
	}

	asOf := opts.Date
	if asOf.IsZero() {
		asOf = today()
	} else {
		asOf = dateOnly(asOf)
	}

	transactions, err := s.transactionRepo.GetByPortfolio(portfolioID)
	if err != nil {
		return nil, err
	}
	oldest := s.transactionRepo.GetOldestDate(portfolioID)
	if !oldest.IsZero() && asOf.Before(oldest) {
		return nil, apperrors.ErrInvalidDateRange
	}

	var asOfTxns []model.Transaction
	for _, t := range transactions {
		if !t.Date.After(asOf) {
			asOfTxns = append(asOfTxns, t)
		}
	}

	tickers, err := s.transactionRepo.GetDistinctTickers(portfolioID)
	if err != nil {
		return nil, err
	}

	result := &ValueResult{
		PortfolioID: portfolioID,
		Date:        asOf,
	}

	useLive := mode == PriceModeLive || (mode == PriceModeAuto && asOf.Equal(today()))

	for _, ticker := range tickers {
		position, err := ledger.Replay(ticker, asOfTxns)
		if err != nil {
			return nil, err
		}
		shares := position.RemainingShares()
		if !shares.IsPositive() {
			continue
		}

		hv := HoldingValue{Ticker: ticker, Shares: shares}
		price, priceDate, stale, found := s.resolvePrice(ctx, ticker, asOf, useLive)
		hv.Price = price
		hv.PriceDate = priceDate
		hv.Stale = stale
		hv.PriceFound = found

		summary := position.Summary(price)
		hv.CostBasis = summary.CostBasis
		if found {
			hv.Value = shares.Mul(price)
			hv.UnrealizedGainLoss = summary.UnrealizedGainLoss
			hv.UnrealizedGainLossPct = summary.UnrealizedGainLossPct
		}
		if stale || !found {
			result.Partial = true
		}

		result.Holdings = append(result.Holdings, hv)
		result.HoldingsValue = result.HoldingsValue.Add(hv.Value)
	}

	// Weights need the final holdings total, so they are assigned after the
	// pricing pass.
	if result.HoldingsValue.IsPositive() {
		hundred := decimal.NewFromInt(100)
		for i := range result.Holdings {
			result.Holdings[i].Weight = result.Holdings[i].Value.Div(result.HoldingsValue).Mul(hundred)
		}
	}

	result.Total = result.HoldingsValue
	if opts.IncludeCash {
		result.CashBalance = cashBalanceFromTransactions(asOfTxns, asOf)
		result.Total = result.Total.Add(result.CashBalance)
	}
	if opts.IncludeDividends {
		result.Dividends = dividendsFromTransactions(asOfTxns, asOf)
		result.Total = result.Total.Add(result.Dividends)
	}
	return result, nil
}

// PositionSummaries returns the cost-basis view of every ticker the
// portfolio has ever traded, valued at the latest close on or before asOf.
// Fully closed positions are kept when they carry realized gain/loss, so
// the history of exited holdings stays visible.
func (s *ValuationService) PositionSummaries(ctx context.Context, portfolioID string, asOf time.Time) ([]ledger.Summary, error) {
	if _, err := s.portfolioRepo.GetByID(portfolioID); err != nil {
		return nil, err
	}
	if asOf.IsZero() {
		asOf = today()
	} else {
		asOf = dateOnly(asOf)
	}

	transactions, err := s.transactionRepo.GetByPortfolio(portfolioID)
	if err != nil {
		return nil, err
	}
	var asOfTxns []model.Transaction
	for _, t := range transactions {
		if !t.Date.After(asOf) {
			asOfTxns = append(asOfTxns, t)
		}
	}
	tickers, err := s.transactionRepo.GetDistinctTickers(portfolioID)
	if err != nil {
		return nil, err
	}

	var summaries []ledger.Summary
	for _, ticker := range tickers {
		position, err := ledger.Replay(ticker, asOfTxns)
		if err != nil {
			return nil, err
		}
		if !position.RemainingShares().IsPositive() && position.RealizedGainLoss().IsZero() {
			continue
		}
		price, _, _, _ := s.resolvePrice(ctx, ticker, asOf, false)
		summaries = append(summaries, position.Summary(price))
	}
	return summaries, nil
}

// resolvePrice finds the price for one ticker as of a date. Live failures
// fall back to the stored series; a close older than the requested date is
// reported stale.
func (s *ValuationService) resolvePrice(ctx context.Context, ticker string, asOf time.Time, useLive bool) (price decimal.Decimal, priceDate time.Time, stale, found bool) {
	if useLive && s.quoter != nil {
		if live, err := s.quoter.LivePrice(ctx, ticker); err == nil {
			return live, asOf, false, true
		}
	}

	record, err := s.priceRepo.LatestOnOrBefore(ticker, asOf)
	if errors.Is(err, apperrors.ErrPriceNotFound) {
		return decimal.Decimal{}, time.Time{}, true, false
	}
	if err != nil {
		return decimal.Decimal{}, time.Time{}, true, false
	}
	return record.Close, record.Date, !record.Date.Equal(asOf), true
}

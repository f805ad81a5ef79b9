package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/portfoliovalue/backend/internal/apperrors"
	"github.com/portfoliovalue/backend/internal/model"
	"github.com/portfoliovalue/backend/internal/service"
	"github.com/portfoliovalue/backend/internal/testutil"
)

// TestValuationService_CalculateValue tests the on-demand valuation query.
//
// WHY: calculateValue is the single entry point replacing separate
// market-value, cash and dividend queries. These tests pin the composition
// rules: component inclusion flags change the total by exactly the
// component, price modes select the right source, and missing prices
// degrade the result instead of failing it.
func TestValuationService_CalculateValue(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (string, *testutil.TestServices) {
		t.Helper()
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestServices(t, db, &testutil.StubQuoter{Err: testutil.ErrNoQuote}, &testutil.StubHistoricalSource{})
		p := testutil.NewPortfolio().Build(t, db)

		testutil.NewTransaction(p.ID).
			WithType(model.TransactionDeposit).
			WithAmount("20000").
			WithDate(testutil.Day(2024, time.January, 2)).
			Build(t, db)
		testutil.NewTransaction(p.ID).
			WithTicker("AAPL").
			WithShares("100").
			WithPrice("150").
			WithDate(testutil.Day(2024, time.January, 2)).
			Build(t, db)
		testutil.NewTransaction(p.ID).
			WithTicker("AAPL").
			WithType(model.TransactionDividend).
			WithAmount("75").
			WithDate(testutil.Day(2024, time.January, 10)).
			Build(t, db)

		testutil.NewPrice("AAPL").WithDate(testutil.Day(2024, time.January, 15)).WithClose("160").Build(t, db)
		return p.ID, svc
	}

	t.Run("holdings only by default", func(t *testing.T) {
		// Setup
		portfolioID, svc := setup(t)

		// Execute
		result, err := svc.Valuation.CalculateValue(ctx, portfolioID, service.ValueOptions{
			Date: testutil.Day(2024, time.January, 15),
		})

		// Assert
		if err != nil {
			t.Fatalf("CalculateValue() returned unexpected error: %v", err)
		}
		if result.Total.String() != "16000" {
			t.Errorf("Total = %s, want 16000 (100 shares at 160)", result.Total)
		}
		if result.Partial {
			t.Error("Result should not be partial with an exact close")
		}
	})

	t.Run("holdings carry cost basis, unrealized gain/loss and weight", func(t *testing.T) {
		// Setup: two holdings so the weights are meaningful.
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestServices(t, db, &testutil.StubQuoter{Err: testutil.ErrNoQuote}, &testutil.StubHistoricalSource{})
		p := testutil.NewPortfolio().Build(t, db)
		testutil.NewTransaction(p.ID).
			WithTicker("AAPL").
			WithShares("10").
			WithPrice("100").
			WithDate(testutil.Day(2024, time.January, 2)).
			Build(t, db)
		testutil.NewTransaction(p.ID).
			WithTicker("MSFT").
			WithShares("10").
			WithPrice("50").
			WithDate(testutil.Day(2024, time.January, 2)).
			Build(t, db)
		testutil.NewPrice("AAPL").WithDate(testutil.Day(2024, time.January, 15)).WithClose("150").Build(t, db)
		testutil.NewPrice("MSFT").WithDate(testutil.Day(2024, time.January, 15)).WithClose("50").Build(t, db)

		// Execute
		result, err := svc.Valuation.CalculateValue(ctx, p.ID, service.ValueOptions{
			Date: testutil.Day(2024, time.January, 15),
		})

		// Assert: 10 AAPL at 150 is 1500 on a 1000 basis, 10 MSFT at 50 is
		// flat, so the 2000 holdings total splits 75/25.
		if err != nil {
			t.Fatalf("CalculateValue() returned unexpected error: %v", err)
		}
		if len(result.Holdings) != 2 {
			t.Fatalf("Expected 2 holdings, got %d", len(result.Holdings))
		}
		byTicker := make(map[string]service.HoldingValue)
		for _, h := range result.Holdings {
			byTicker[h.Ticker] = h
		}
		aapl := byTicker["AAPL"]
		if aapl.CostBasis.String() != "1000" {
			t.Errorf("AAPL CostBasis = %s, want 1000", aapl.CostBasis)
		}
		if aapl.UnrealizedGainLoss.String() != "500" {
			t.Errorf("AAPL UnrealizedGainLoss = %s, want 500", aapl.UnrealizedGainLoss)
		}
		if aapl.UnrealizedGainLossPct.String() != "50" {
			t.Errorf("AAPL UnrealizedGainLossPct = %s, want 50", aapl.UnrealizedGainLossPct)
		}
		if aapl.Weight.String() != "75" {
			t.Errorf("AAPL Weight = %s, want 75", aapl.Weight)
		}
		msft := byTicker["MSFT"]
		if !msft.UnrealizedGainLoss.IsZero() {
			t.Errorf("MSFT UnrealizedGainLoss = %s, want 0", msft.UnrealizedGainLoss)
		}
		if msft.Weight.String() != "25" {
			t.Errorf("MSFT Weight = %s, want 25", msft.Weight)
		}
	})

	t.Run("unpriceable holding reports cost basis but no gain/loss", func(t *testing.T) {
		// Setup
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestServices(t, db, &testutil.StubQuoter{Err: testutil.ErrNoQuote}, &testutil.StubHistoricalSource{})
		p := testutil.NewPortfolio().Build(t, db)
		testutil.NewTransaction(p.ID).
			WithTicker("OBSCURE").
			WithShares("10").
			WithPrice("5").
			WithDate(testutil.Day(2024, time.January, 2)).
			Build(t, db)

		// Execute
		result, err := svc.Valuation.CalculateValue(ctx, p.ID, service.ValueOptions{
			Date: testutil.Day(2024, time.January, 10),
		})

		// Assert: the basis is known from the ledger even without a price,
		// but a missing price must not masquerade as a total loss.
		if err != nil {
			t.Fatalf("CalculateValue() returned unexpected error: %v", err)
		}
		if len(result.Holdings) != 1 {
			t.Fatalf("Expected 1 holding, got %d", len(result.Holdings))
		}
		h := result.Holdings[0]
		if h.CostBasis.String() != "50" {
			t.Errorf("CostBasis = %s, want 50", h.CostBasis)
		}
		if !h.UnrealizedGainLoss.IsZero() {
			t.Errorf("UnrealizedGainLoss = %s, want 0 without a price", h.UnrealizedGainLoss)
		}
	})

	t.Run("includeCash adds exactly the cash balance", func(t *testing.T) {
		// Setup
		portfolioID, svc := setup(t)
		opts := service.ValueOptions{Date: testutil.Day(2024, time.January, 15)}

		// Execute
		without, err := svc.Valuation.CalculateValue(ctx, portfolioID, opts)
		if err != nil {
			t.Fatalf("CalculateValue() returned unexpected error: %v", err)
		}
		opts.IncludeCash = true
		with, err := svc.Valuation.CalculateValue(ctx, portfolioID, opts)
		if err != nil {
			t.Fatalf("CalculateValue() returned unexpected error: %v", err)
		}

		// Assert: deposit 20000 minus 15000 spent on the buy.
		if with.CashBalance.String() != "5000" {
			t.Errorf("CashBalance = %s, want 5000", with.CashBalance)
		}
		if !with.Total.Equal(without.Total.Add(with.CashBalance)) {
			t.Errorf("Total with cash (%s) != total without (%s) + cash (%s)",
				with.Total, without.Total, with.CashBalance)
		}
	})

	t.Run("includeDividends adds exactly the cumulative dividends", func(t *testing.T) {
		// Setup
		portfolioID, svc := setup(t)
		opts := service.ValueOptions{Date: testutil.Day(2024, time.January, 15)}

		// Execute
		without, err := svc.Valuation.CalculateValue(ctx, portfolioID, opts)
		if err != nil {
			t.Fatalf("CalculateValue() returned unexpected error: %v", err)
		}
		opts.IncludeDividends = true
		with, err := svc.Valuation.CalculateValue(ctx, portfolioID, opts)
		if err != nil {
			t.Fatalf("CalculateValue() returned unexpected error: %v", err)
		}

		// Assert
		if with.Dividends.String() != "75" {
			t.Errorf("Dividends = %s, want 75", with.Dividends)
		}
		if !with.Total.Equal(without.Total.Add(with.Dividends)) {
			t.Errorf("Total with dividends (%s) != total without (%s) + dividends (%s)",
				with.Total, without.Total, with.Dividends)
		}
	})

	t.Run("dividends before the as-of date only", func(t *testing.T) {
		// Setup
		portfolioID, svc := setup(t)

		// Execute: as-of before the dividend was paid.
		result, err := svc.Valuation.CalculateValue(ctx, portfolioID, service.ValueOptions{
			Date:             testutil.Day(2024, time.January, 5),
			IncludeDividends: true,
		})

		// Assert
		if err != nil {
			t.Fatalf("CalculateValue() returned unexpected error: %v", err)
		}
		if !result.Dividends.IsZero() {
			t.Errorf("Dividends = %s, want 0 before pay date", result.Dividends)
		}
	})

	t.Run("forward-fills historical prices and flags staleness", func(t *testing.T) {
		// Setup
		portfolioID, svc := setup(t)

		// Execute: as-of two days after the only stored close.
		result, err := svc.Valuation.CalculateValue(ctx, portfolioID, service.ValueOptions{
			Date: testutil.Day(2024, time.January, 17),
		})

		// Assert
		if err != nil {
			t.Fatalf("CalculateValue() returned unexpected error: %v", err)
		}
		if !result.Partial {
			t.Error("Result should be partial with a forward-filled price")
		}
		if len(result.Holdings) != 1 {
			t.Fatalf("Expected 1 holding, got %d", len(result.Holdings))
		}
		h := result.Holdings[0]
		if !h.Stale {
			t.Error("Holding should be stale")
		}
		if h.Price.String() != "160" {
			t.Errorf("Forward-filled price = %s, want 160", h.Price)
		}
		if !h.PriceDate.Equal(testutil.Day(2024, time.January, 15)) {
			t.Errorf("PriceDate = %s, want 2024-01-15", h.PriceDate.Format("2006-01-02"))
		}
	})

	t.Run("degrades to zero value when no price exists at all", func(t *testing.T) {
		// Setup
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestServices(t, db, &testutil.StubQuoter{Err: testutil.ErrNoQuote}, &testutil.StubHistoricalSource{})
		p := testutil.NewPortfolio().Build(t, db)
		testutil.NewTransaction(p.ID).
			WithTicker("OBSCURE").
			WithShares("10").
			WithPrice("5").
			WithDate(testutil.Day(2024, time.January, 2)).
			Build(t, db)

		// Execute
		result, err := svc.Valuation.CalculateValue(ctx, p.ID, service.ValueOptions{
			Date: testutil.Day(2024, time.January, 10),
		})

		// Assert
		if err != nil {
			t.Fatalf("CalculateValue() returned unexpected error: %v", err)
		}
		if !result.Partial {
			t.Error("Result should be partial when a holding has no price")
		}
		if len(result.Holdings) != 1 || result.Holdings[0].PriceFound {
			t.Error("Holding should be reported without a found price")
		}
		if !result.Total.IsZero() {
			t.Errorf("Total = %s, want 0 for unpriceable holding", result.Total)
		}
	})

	t.Run("live mode uses the quoter", func(t *testing.T) {
		// Setup
		db := testutil.SetupTestDB(t)
		quoter := &testutil.StubQuoter{Prices: map[string]decimal.Decimal{
			"AAPL": decimal.RequireFromString("171.25"),
		}}
		svc := testutil.NewTestServices(t, db, quoter, &testutil.StubHistoricalSource{})
		p := testutil.NewPortfolio().Build(t, db)
		testutil.NewTransaction(p.ID).
			WithTicker("AAPL").
			WithShares("10").
			WithPrice("150").
			WithDate(testutil.Day(2024, time.January, 2)).
			Build(t, db)

		// Execute
		result, err := svc.Valuation.CalculateValue(ctx, p.ID, service.ValueOptions{
			PriceMode: service.PriceModeLive,
		})

		// Assert
		if err != nil {
			t.Fatalf("CalculateValue() returned unexpected error: %v", err)
		}
		if result.Total.String() != "1712.5" {
			t.Errorf("Total = %s, want 1712.5 from live quote", result.Total)
		}
		if result.Partial {
			t.Error("Live-quoted result should not be partial")
		}
	})

	t.Run("sold positions do not contribute", func(t *testing.T) {
		// Setup
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestServices(t, db, &testutil.StubQuoter{Err: testutil.ErrNoQuote}, &testutil.StubHistoricalSource{})
		p := testutil.NewPortfolio().Build(t, db)
		testutil.NewTransaction(p.ID).
			WithTicker("AAPL").
			WithShares("100").
			WithPrice("150").
			WithDate(testutil.Day(2024, time.January, 2)).
			Build(t, db)
		testutil.NewTransaction(p.ID).
			WithTicker("AAPL").
			WithType(model.TransactionSell).
			WithShares("100").
			WithPrice("160").
			WithDate(testutil.Day(2024, time.January, 5)).
			Build(t, db)
		testutil.NewPrice("AAPL").WithDate(testutil.Day(2024, time.January, 10)).WithClose("170").Build(t, db)

		// Execute
		result, err := svc.Valuation.CalculateValue(ctx, p.ID, service.ValueOptions{
			Date: testutil.Day(2024, time.January, 10),
		})

		// Assert
		if err != nil {
			t.Fatalf("CalculateValue() returned unexpected error: %v", err)
		}
		if len(result.Holdings) != 0 {
			t.Errorf("Expected no holdings after full exit, got %d", len(result.Holdings))
		}
		if !result.Total.IsZero() {
			t.Errorf("Total = %s, want 0", result.Total)
		}
	})

	t.Run("rejects unknown price mode", func(t *testing.T) {
		// Setup
		portfolioID, svc := setup(t)

		// Execute
		_, err := svc.Valuation.CalculateValue(ctx, portfolioID, service.ValueOptions{
			PriceMode: "psychic",
		})

		// Assert
		var confErr *apperrors.ConfigurationError
		if !errors.As(err, &confErr) {
			t.Fatalf("Expected ConfigurationError, got %v", err)
		}
	})

	t.Run("rejects a date before the first transaction", func(t *testing.T) {
		// Setup
		portfolioID, svc := setup(t)

		// Execute
		_, err := svc.Valuation.CalculateValue(ctx, portfolioID, service.ValueOptions{
			Date: testutil.Day(2023, time.June, 1),
		})

		// Assert
		if !errors.Is(err, apperrors.ErrInvalidDateRange) {
			t.Fatalf("Expected ErrInvalidDateRange, got %v", err)
		}
	})

	t.Run("rejects unknown portfolio", func(t *testing.T) {
		// Setup
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestServices(t, db, &testutil.StubQuoter{}, &testutil.StubHistoricalSource{})

		// Execute
		_, err := svc.Valuation.CalculateValue(ctx, testutil.MakeID(), service.ValueOptions{})

		// Assert
		if !errors.Is(err, apperrors.ErrPortfolioNotFound) {
			t.Fatalf("Expected ErrPortfolioNotFound, got %v", err)
		}
	})
}

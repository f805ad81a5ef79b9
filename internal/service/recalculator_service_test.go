package service_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/portfoliovalue/backend/internal/model"
	"github.com/portfoliovalue/backend/internal/testutil"
)

func setupRecalcTest(t *testing.T) (*sql.DB, *testutil.TestServices) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	svc := testutil.NewTestServices(t, db, &testutil.StubQuoter{}, &testutil.StubHistoricalSource{})
	return db, svc
}

func valuationRows(t *testing.T, svc *testutil.TestServices, portfolioID string, start, end time.Time) []model.DailyValuation {
	t.Helper()
	var rows []model.DailyValuation
	err := svc.ValuationRepo.GetRange(portfolioID, start, end, func(v model.DailyValuation) error {
		rows = append(rows, v)
		return nil
	})
	if err != nil {
		t.Fatalf("GetRange() returned unexpected error: %v", err)
	}
	return rows
}

// TestRecalculatorService_RecalculateFrom tests the windowed valuation
// recomputation.
//
// WHY: The daily series is the product users chart and export. These tests
// pin down the exact arithmetic of a recomputed window (holdings at close,
// running cash, cumulative dividends) and that days with missing closes are
// forward-filled and flagged stale instead of dropped.
func TestRecalculatorService_RecalculateFrom(t *testing.T) {
	t.Run("computes holdings, cash and dividends per day", func(t *testing.T) {
		// Setup
		db, svc := setupRecalcTest(t)
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
			WithAmount("50").
			WithDate(testutil.Day(2024, time.January, 3)).
			Build(t, db)

		testutil.NewPrice("AAPL").WithDate(testutil.Day(2024, time.January, 2)).WithClose("150").Build(t, db)
		testutil.NewPrice("AAPL").WithDate(testutil.Day(2024, time.January, 3)).WithClose("155").Build(t, db)
		testutil.NewPrice("AAPL").WithDate(testutil.Day(2024, time.January, 4)).WithClose("160").Build(t, db)

		// Execute
		result, err := svc.Recalculator.RecalculateFrom(
			context.Background(), p.ID,
			testutil.Day(2024, time.January, 2), testutil.Day(2024, time.January, 4),
		)

		// Assert
		if err != nil {
			t.Fatalf("RecalculateFrom() returned unexpected error: %v", err)
		}
		if result.DaysRecomputed != 3 {
			t.Errorf("Expected 3 days recomputed, got %d", result.DaysRecomputed)
		}

		rows := valuationRows(t, svc, p.ID, testutil.Day(2024, time.January, 2), testutil.Day(2024, time.January, 4))
		if len(rows) != 3 {
			t.Fatalf("Expected 3 valuation rows, got %d", len(rows))
		}

		// Day 1: 100 shares at 150 plus 5000 cash remaining after the buy.
		if rows[0].HoldingsValue.String() != "15000" {
			t.Errorf("Day 1 holdings = %s, want 15000", rows[0].HoldingsValue)
		}
		if rows[0].CashBalance.String() != "5000" {
			t.Errorf("Day 1 cash = %s, want 5000", rows[0].CashBalance)
		}
		if rows[0].TotalValue.String() != "20000" {
			t.Errorf("Day 1 total = %s, want 20000", rows[0].TotalValue)
		}

		// Day 2: price 155, dividend 50 received.
		if rows[1].HoldingsValue.String() != "15500" {
			t.Errorf("Day 2 holdings = %s, want 15500", rows[1].HoldingsValue)
		}
		if rows[1].TotalDividends.String() != "50" {
			t.Errorf("Day 2 dividends = %s, want 50", rows[1].TotalDividends)
		}
		if rows[1].TotalValue.String() != "20550" {
			t.Errorf("Day 2 total = %s, want 20550", rows[1].TotalValue)
		}

		// Day 3: price 160, dividend total carried forward.
		if rows[2].TotalValue.String() != "21050" {
			t.Errorf("Day 3 total = %s, want 21050", rows[2].TotalValue)
		}
		for _, row := range rows {
			if row.Stale {
				t.Errorf("Day %s unexpectedly stale", row.Date.Format("2006-01-02"))
			}
		}
	})

	t.Run("forward-fills missing closes and marks days stale", func(t *testing.T) {
		// Setup
		db, svc := setupRecalcTest(t)
		p := testutil.NewPortfolio().Build(t, db)

		testutil.NewTransaction(p.ID).
			WithTicker("MSFT").
			WithShares("10").
			WithPrice("300").
			WithDate(testutil.Day(2024, time.March, 4)).
			Build(t, db)

		// Friday close only; Monday recomputation covers the weekend.
		testutil.NewPrice("MSFT").WithDate(testutil.Day(2024, time.March, 4)).WithClose("310").Build(t, db)

		// Execute
		result, err := svc.Recalculator.RecalculateFrom(
			context.Background(), p.ID,
			testutil.Day(2024, time.March, 4), testutil.Day(2024, time.March, 6),
		)

		// Assert
		if err != nil {
			t.Fatalf("RecalculateFrom() returned unexpected error: %v", err)
		}
		if len(result.StaleDates) != 2 {
			t.Fatalf("Expected 2 stale dates, got %v", result.StaleDates)
		}
		if result.StaleDates[0] != "2024-03-05" || result.StaleDates[1] != "2024-03-06" {
			t.Errorf("Unexpected stale dates: %v", result.StaleDates)
		}

		rows := valuationRows(t, svc, p.ID, testutil.Day(2024, time.March, 4), testutil.Day(2024, time.March, 6))
		if len(rows) != 3 {
			t.Fatalf("Expected 3 rows, got %d", len(rows))
		}
		if rows[0].Stale {
			t.Error("Day with exact close should not be stale")
		}
		for _, row := range rows[1:] {
			if !row.Stale {
				t.Errorf("Day %s should be stale", row.Date.Format("2006-01-02"))
			}
			// Forward-filled at the last known close.
			if row.HoldingsValue.String() != "3100" {
				t.Errorf("Forward-filled holdings = %s, want 3100", row.HoldingsValue)
			}
		}
	})

	t.Run("is idempotent for identical inputs", func(t *testing.T) {
		// Setup
		db, svc := setupRecalcTest(t)
		p := testutil.NewPortfolio().Build(t, db)

		testutil.NewTransaction(p.ID).
			WithTicker("AAPL").
			WithShares("100").
			WithPrice("150").
			WithDate(testutil.Day(2024, time.January, 2)).
			Build(t, db)
		testutil.NewPrice("AAPL").WithDate(testutil.Day(2024, time.January, 2)).WithClose("150").Build(t, db)
		testutil.NewPrice("AAPL").WithDate(testutil.Day(2024, time.January, 3)).WithClose("152.50").Build(t, db)

		window := func() []model.DailyValuation {
			_, err := svc.Recalculator.RecalculateFrom(
				context.Background(), p.ID,
				testutil.Day(2024, time.January, 2), testutil.Day(2024, time.January, 3),
			)
			if err != nil {
				t.Fatalf("RecalculateFrom() returned unexpected error: %v", err)
			}
			return valuationRows(t, svc, p.ID, testutil.Day(2024, time.January, 2), testutil.Day(2024, time.January, 3))
		}

		// Execute
		first := window()
		second := window()

		// Assert
		if len(first) != len(second) {
			t.Fatalf("Row count changed between runs: %d vs %d", len(first), len(second))
		}
		for i := range first {
			if !first[i].TotalValue.Equal(second[i].TotalValue) ||
				!first[i].HoldingsValue.Equal(second[i].HoldingsValue) ||
				first[i].Stale != second[i].Stale {
				t.Errorf("Row %d differs between identical runs: %+v vs %+v", i, first[i], second[i])
			}
			// Row identity is derived from (portfolio, date), so a rerun
			// rewrites the same rows instead of minting new ones.
			if first[i].ID != second[i].ID {
				t.Errorf("Row %d ID changed between runs: %s vs %s", i, first[i].ID, second[i].ID)
			}
		}
	})

	t.Run("preserves rows before the window start", func(t *testing.T) {
		// Setup
		db, svc := setupRecalcTest(t)
		p := testutil.NewPortfolio().Build(t, db)

		testutil.NewTransaction(p.ID).
			WithTicker("AAPL").
			WithShares("100").
			WithPrice("150").
			WithDate(testutil.Day(2024, time.January, 2)).
			Build(t, db)
		for day := 2; day <= 5; day++ {
			testutil.NewPrice("AAPL").WithDate(testutil.Day(2024, time.January, day)).WithClose("150").Build(t, db)
		}

		if _, err := svc.Recalculator.RecalculateFrom(
			context.Background(), p.ID,
			testutil.Day(2024, time.January, 2), testutil.Day(2024, time.January, 5),
		); err != nil {
			t.Fatalf("Initial recalculation failed: %v", err)
		}

		// Plant a sentinel in a pre-window row; a correct windowed
		// recomputation must never touch it.
		if _, err := db.Exec(
			`UPDATE daily_valuation SET holdings_value = '999999' WHERE portfolio_id = ? AND date = ?`,
			p.ID, "2024-01-02",
		); err != nil {
			t.Fatalf("Failed to plant sentinel: %v", err)
		}

		// Execute
		result, err := svc.Recalculator.RecalculateFrom(
			context.Background(), p.ID,
			testutil.Day(2024, time.January, 4), testutil.Day(2024, time.January, 5),
		)

		// Assert
		if err != nil {
			t.Fatalf("RecalculateFrom() returned unexpected error: %v", err)
		}
		if result.DaysRecomputed != 2 {
			t.Errorf("Expected 2 days recomputed, got %d", result.DaysRecomputed)
		}
		if result.DaysPreserved != 2 {
			t.Errorf("Expected 2 days preserved, got %d", result.DaysPreserved)
		}

		rows := valuationRows(t, svc, p.ID, testutil.Day(2024, time.January, 2), testutil.Day(2024, time.January, 2))
		if len(rows) != 1 || rows[0].HoldingsValue.String() != "999999" {
			t.Error("Pre-window row was rewritten by a windowed recomputation")
		}
	})

	t.Run("honors an earlier pending dirty window", func(t *testing.T) {
		// Setup
		db, svc := setupRecalcTest(t)
		p := testutil.NewPortfolio().Build(t, db)

		testutil.NewTransaction(p.ID).
			WithTicker("AAPL").
			WithShares("100").
			WithPrice("150").
			WithDate(testutil.Day(2024, time.January, 2)).
			Build(t, db)
		for day := 2; day <= 5; day++ {
			testutil.NewPrice("AAPL").WithDate(testutil.Day(2024, time.January, day)).WithClose("150").Build(t, db)
		}

		if err := svc.StateRepo.MarkDirty(p.ID, testutil.Day(2024, time.January, 3)); err != nil {
			t.Fatalf("MarkDirty() returned unexpected error: %v", err)
		}

		// Execute: request a later start than the pending dirty window.
		result, err := svc.Recalculator.RecalculateFrom(
			context.Background(), p.ID,
			testutil.Day(2024, time.January, 5), testutil.Day(2024, time.January, 5),
		)

		// Assert: the earlier pending date wins.
		if err != nil {
			t.Fatalf("RecalculateFrom() returned unexpected error: %v", err)
		}
		if !result.WindowStart.Equal(testutil.Day(2024, time.January, 3)) {
			t.Errorf("Window start = %s, want 2024-01-03", result.WindowStart.Format("2006-01-02"))
		}
		if result.DaysRecomputed != 3 {
			t.Errorf("Expected 3 days recomputed, got %d", result.DaysRecomputed)
		}

		state, err := svc.StateRepo.Get(p.ID)
		if err != nil {
			t.Fatalf("Get() returned unexpected error: %v", err)
		}
		if state.Status != model.ValuationClean {
			t.Errorf("Expected clean state after recalculation, got %s", state.Status)
		}
	})

	t.Run("clamps the window to the first transaction date", func(t *testing.T) {
		// Setup
		db, svc := setupRecalcTest(t)
		p := testutil.NewPortfolio().Build(t, db)

		testutil.NewTransaction(p.ID).
			WithTicker("AAPL").
			WithShares("10").
			WithPrice("100").
			WithDate(testutil.Day(2024, time.June, 3)).
			Build(t, db)
		testutil.NewPrice("AAPL").WithDate(testutil.Day(2024, time.June, 3)).WithClose("100").Build(t, db)

		// Execute: ask for a window starting long before any transaction.
		result, err := svc.Recalculator.RecalculateFrom(
			context.Background(), p.ID,
			testutil.Day(2020, time.January, 1), testutil.Day(2024, time.June, 4),
		)

		// Assert
		if err != nil {
			t.Fatalf("RecalculateFrom() returned unexpected error: %v", err)
		}
		if !result.WindowStart.Equal(testutil.Day(2024, time.June, 3)) {
			t.Errorf("Window start = %s, want first transaction date", result.WindowStart.Format("2006-01-02"))
		}
		if result.DaysRecomputed != 2 {
			t.Errorf("Expected 2 days recomputed, got %d", result.DaysRecomputed)
		}
	})
}

// TestRecalculatorService_FullRecalculate tests the full series rebuild.
//
// WHY: Backfill and corruption recovery rebuild from the first transaction.
// The rebuild must produce the same series a sequence of incremental
// updates would have.
func TestRecalculatorService_FullRecalculate(t *testing.T) {
	t.Run("rebuilds the whole series from the first transaction", func(t *testing.T) {
		// Setup
		db, svc := setupRecalcTest(t)
		p := testutil.NewPortfolio().Build(t, db)

		testutil.NewTransaction(p.ID).
			WithTicker("AAPL").
			WithShares("50").
			WithPrice("100").
			WithDate(testutil.Day(2024, time.February, 1)).
			Build(t, db)
		testutil.NewPrice("AAPL").WithDate(testutil.Day(2024, time.February, 1)).WithClose("100").Build(t, db)

		// Execute
		result, err := svc.Recalculator.FullRecalculate(context.Background(), p.ID)

		// Assert
		if err != nil {
			t.Fatalf("FullRecalculate() returned unexpected error: %v", err)
		}
		if !result.WindowStart.Equal(testutil.Day(2024, time.February, 1)) {
			t.Errorf("Window start = %s, want 2024-02-01", result.WindowStart.Format("2006-01-02"))
		}
		if result.DaysPreserved != 0 {
			t.Errorf("Full rebuild should preserve 0 days, got %d", result.DaysPreserved)
		}
		if result.DaysRecomputed < 1 {
			t.Errorf("Expected at least one recomputed day, got %d", result.DaysRecomputed)
		}
	})

	t.Run("is a no-op for a portfolio without transactions", func(t *testing.T) {
		// Setup
		db, svc := setupRecalcTest(t)
		p := testutil.NewPortfolio().Build(t, db)

		// Execute
		result, err := svc.Recalculator.FullRecalculate(context.Background(), p.ID)

		// Assert
		if err != nil {
			t.Fatalf("FullRecalculate() returned unexpected error: %v", err)
		}
		if result.DaysRecomputed != 0 {
			t.Errorf("Expected 0 days recomputed, got %d", result.DaysRecomputed)
		}
	})
}

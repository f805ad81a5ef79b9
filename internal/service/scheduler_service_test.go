package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/portfoliovalue/backend/internal/pricefeed"
	"github.com/portfoliovalue/backend/internal/testutil"
)

// TestSchedulerService_RunDailyUpdate tests the nightly maintenance pass.
//
// WHY: The scheduler is what keeps valuation series current without manual
// triggers. It must refresh prices first, then bring every portfolio up to
// today, re-examining the last stored day so stale rows written during feed
// gaps are overwritten once real closes arrive.
func TestSchedulerService_RunDailyUpdate(t *testing.T) {
	day := func(offset int) time.Time {
		now := time.Now().UTC()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, offset)
	}

	t.Run("builds the series from the first transaction through today", func(t *testing.T) {
		// Setup: a buy three days ago, with closes served by the feed stub.
		db := testutil.SetupTestDB(t)
		source := &testutil.StubHistoricalSource{
			Closes: map[string][]pricefeed.DailyClose{
				"AAPL": {
					{Date: day(-3), Close: testutil.Dec(t, "150")},
					{Date: day(-2), Close: testutil.Dec(t, "152")},
					{Date: day(-1), Close: testutil.Dec(t, "155")},
				},
			},
		}
		svc := testutil.NewTestServices(t, db, &testutil.StubQuoter{}, source)
		p := testutil.NewPortfolio().Build(t, db)
		testutil.NewTransaction(p.ID).
			WithTicker("AAPL").
			WithShares("10").
			WithPrice("150").
			WithDate(day(-3)).
			Build(t, db)

		// Execute
		if err := svc.Scheduler.RunDailyUpdate(context.Background()); err != nil {
			t.Fatalf("RunDailyUpdate() returned unexpected error: %v", err)
		}

		// Assert: one row per day from the buy through today.
		var count int
		if err := db.QueryRow(
			"SELECT COUNT(*) FROM daily_valuation WHERE portfolio_id = ?", p.ID,
		).Scan(&count); err != nil {
			t.Fatalf("Failed to count valuations: %v", err)
		}
		if count != 4 {
			t.Errorf("Expected 4 daily rows, got %d", count)
		}

		// Prices were persisted by the refresh.
		var prices int
		if err := db.QueryRow(
			"SELECT COUNT(*) FROM price_history WHERE ticker = 'AAPL'",
		).Scan(&prices); err != nil {
			t.Fatalf("Failed to count prices: %v", err)
		}
		if prices != 3 {
			t.Errorf("Expected 3 stored closes, got %d", prices)
		}
	})

	t.Run("overwrites a stale last day once the close arrives", func(t *testing.T) {
		// Setup: first run sees closes only through two days ago, so
		// yesterday and today are forward-filled.
		db := testutil.SetupTestDB(t)
		source := &testutil.StubHistoricalSource{
			Closes: map[string][]pricefeed.DailyClose{
				"AAPL": {
					{Date: day(-3), Close: testutil.Dec(t, "150")},
					{Date: day(-2), Close: testutil.Dec(t, "152")},
				},
			},
		}
		svc := testutil.NewTestServices(t, db, &testutil.StubQuoter{}, source)
		p := testutil.NewPortfolio().Build(t, db)
		testutil.NewTransaction(p.ID).
			WithTicker("AAPL").
			WithShares("10").
			WithPrice("150").
			WithDate(day(-3)).
			Build(t, db)

		if err := svc.Scheduler.RunDailyUpdate(context.Background()); err != nil {
			t.Fatalf("First RunDailyUpdate() returned unexpected error: %v", err)
		}

		var staleBefore int
		if err := db.QueryRow(
			"SELECT COUNT(*) FROM daily_valuation WHERE portfolio_id = ? AND stale = 1", p.ID,
		).Scan(&staleBefore); err != nil {
			t.Fatalf("Failed to count stale rows: %v", err)
		}
		if staleBefore == 0 {
			t.Fatal("Expected forward-filled rows after the first run")
		}

		// Execute: the missing closes arrive, second run repairs the tail.
		source.Closes["AAPL"] = append(source.Closes["AAPL"],
			pricefeed.DailyClose{Date: day(-1), Close: testutil.Dec(t, "155")},
			pricefeed.DailyClose{Date: day(0), Close: testutil.Dec(t, "157")},
		)
		if err := svc.Scheduler.RunDailyUpdate(context.Background()); err != nil {
			t.Fatalf("Second RunDailyUpdate() returned unexpected error: %v", err)
		}

		// Assert: no stale rows remain and no duplicate dates were written.
		var staleAfter int
		if err := db.QueryRow(
			"SELECT COUNT(*) FROM daily_valuation WHERE portfolio_id = ? AND stale = 1", p.ID,
		).Scan(&staleAfter); err != nil {
			t.Fatalf("Failed to count stale rows: %v", err)
		}
		if staleAfter != 0 {
			t.Errorf("Expected stale rows to be repaired, %d remain", staleAfter)
		}

		var rows, dates int
		if err := db.QueryRow(
			"SELECT COUNT(*), COUNT(DISTINCT date) FROM daily_valuation WHERE portfolio_id = ?", p.ID,
		).Scan(&rows, &dates); err != nil {
			t.Fatalf("Failed to count valuations: %v", err)
		}
		if rows != dates {
			t.Errorf("Expected one row per date, got %d rows over %d dates", rows, dates)
		}
	})
}

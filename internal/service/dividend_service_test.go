package service_test

import (
	"testing"
	"time"

	"github.com/portfoliovalue/backend/internal/model"
	"github.com/portfoliovalue/backend/internal/testutil"
)

// TestDividendService_CumulativeDividends tests the dividend accumulator.
//
// WHY: Dividends are tracked apart from cash so valuation can include or
// exclude them independently. Only dividend transactions on or before the
// as-of date may count.
func TestDividendService_CumulativeDividends(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := testutil.NewTestServices(t, db, &testutil.StubQuoter{}, &testutil.StubHistoricalSource{})
	p := testutil.NewPortfolio().Build(t, db)

	testutil.NewTransaction(p.ID).
		WithType(model.TransactionDividend).
		WithTicker("AAPL").
		WithAmount("50").
		WithDate(testutil.Day(2024, time.February, 1)).
		Build(t, db)
	testutil.NewTransaction(p.ID).
		WithType(model.TransactionDividend).
		WithTicker("AAPL").
		WithAmount("52.5").
		WithDate(testutil.Day(2024, time.May, 1)).
		Build(t, db)
	// A deposit must never count as a dividend.
	testutil.NewTransaction(p.ID).
		WithType(model.TransactionDeposit).
		WithAmount("1000").
		WithDate(testutil.Day(2024, time.March, 1)).
		Build(t, db)

	t.Run("accumulates dividends up to the as-of date", func(t *testing.T) {
		total, err := svc.Dividend.CumulativeDividends(p.ID, testutil.Day(2024, time.March, 15))
		if err != nil {
			t.Fatalf("CumulativeDividends() returned unexpected error: %v", err)
		}
		if total.String() != "50" {
			t.Errorf("Total = %s, want 50", total)
		}
	})

	t.Run("includes a dividend paid on the as-of date", func(t *testing.T) {
		total, err := svc.Dividend.CumulativeDividends(p.ID, testutil.Day(2024, time.May, 1))
		if err != nil {
			t.Fatalf("CumulativeDividends() returned unexpected error: %v", err)
		}
		if total.String() != "102.5" {
			t.Errorf("Total = %s, want 102.5", total)
		}
	})

	t.Run("is zero before the first dividend", func(t *testing.T) {
		total, err := svc.Dividend.CumulativeDividends(p.ID, testutil.Day(2024, time.January, 15))
		if err != nil {
			t.Fatalf("CumulativeDividends() returned unexpected error: %v", err)
		}
		if !total.IsZero() {
			t.Errorf("Total = %s, want 0", total)
		}
	})
}

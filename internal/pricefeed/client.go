// Package pricefeed fetches daily closing prices from the Yahoo Finance chart
// API. No correctness guarantee is assumed of the feed itself; missing days
// are normal (weekends, holidays, outages) and handled downstream by
// forward-filling with a stale marker.
package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// Client provides methods for fetching closing prices from the Yahoo Finance
// chart API.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a new price feed client with default HTTP settings.
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// LivePrice returns the most recent available close for a symbol, fetched
// from a five-day daily chart. Used for "value as of today" requests where a
// persisted close may not yet exist.
func (c *Client) LivePrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	chart, err := c.fetchChart(ctx, fmt.Sprintf(
		"https://query1.finance.yahoo.com/v8/finance/chart/%s?interval=1d&range=5d", symbol))
	if err != nil {
		return decimal.Decimal{}, err
	}
	latest, ok := chart.Latest()
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("no recent prices returned for symbol %s", symbol)
	}
	return latest.Close, nil
}

// HistoricalCloses fetches daily closes for a symbol within [startDate, endDate].
// Used by the scheduler to backfill the price_history table.
func (c *Client) HistoricalCloses(ctx context.Context, symbol string, startDate, endDate time.Time) ([]DailyClose, error) {
	chart, err := c.fetchChart(ctx, fmt.Sprintf(
		"https://query1.finance.yahoo.com/v8/finance/chart/%s?interval=1d&period1=%d&period2=%d",
		symbol,
		startDate.Unix(),
		endDate.AddDate(0, 0, 1).Unix(),
	))
	if err != nil {
		return nil, err
	}
	return chart.Closes, nil
}

// fetchChart executes the HTTP request and parses the response into a Chart.
func (c *Client) fetchChart(ctx context.Context, url string) (Chart, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Chart{}, err
	}

	// Yahoo blocks requests without a browser-like user agent.
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Chart{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Chart{}, err
	}

	var response Response
	if err := json.Unmarshal(data, &response); err != nil {
		return Chart{}, err
	}
	if response.Chart.Error != nil {
		return Chart{}, fmt.Errorf("price feed error: %s", *response.Chart.Error)
	}
	if len(response.Chart.Result) == 0 {
		return Chart{}, fmt.Errorf("no results returned")
	}

	return parseChart(response)
}

// parseChart converts a raw feed response into a Chart, validating that
// timestamp and close arrays are present and aligned.
func parseChart(response Response) (Chart, error) {
	result := response.Chart.Result[0]

	if len(result.Timestamp) == 0 {
		return Chart{}, fmt.Errorf("no price data returned")
	}
	if len(result.Indicators.Quote) == 0 || len(result.Indicators.Quote[0].Close) == 0 {
		return Chart{}, fmt.Errorf("no close prices returned")
	}
	if len(result.Indicators.Quote[0].Close) != len(result.Timestamp) {
		return Chart{}, fmt.Errorf("mismatched data lengths")
	}

	closes := make([]DailyClose, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		closePrice := result.Indicators.Quote[0].Close[i]
		if closePrice == 0 {
			// Missing data point inside the range; skip rather than record a zero close.
			continue
		}
		closes = append(closes, DailyClose{
			Date:  time.Unix(ts, 0).UTC().Truncate(24 * time.Hour),
			Close: decimal.NewFromFloat(closePrice),
		})
	}

	return Chart{
		Symbol:   result.Meta.Symbol,
		Currency: result.Meta.Currency,
		Closes:   closes,
	}, nil
}

package pricefeed

import (
	"time"

	"github.com/shopspring/decimal"
)

// Response represents the raw JSON response structure from the Yahoo Finance
// chart API: nested structures for metadata, timestamps, and price indicators.
type Response struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Currency     string `json:"currency"`
				Symbol       string `json:"symbol"`
				ExchangeName string `json:"exchangeName"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []float64 `json:"open"`
					Close  []float64 `json:"close"`
					Volume []int64   `json:"volume"`
					High   []float64 `json:"high"`
					Low    []float64 `json:"low"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *string `json:"error"`
	} `json:"chart"`
}

// DailyClose is one parsed trading day for a symbol. Close is converted to
// decimal at the feed boundary so float64 never reaches ledger math.
type DailyClose struct {
	Date  time.Time
	Close decimal.Decimal
}

// Chart is the parsed, application-facing view of a Yahoo chart response.
type Chart struct {
	Symbol   string
	Currency string
	Closes   []DailyClose
}

// CloseForDate returns the closing price for the given date, comparing by
// calendar day in UTC.
func (c Chart) CloseForDate(target time.Time) (DailyClose, bool) {
	targetDay := target.UTC().Truncate(24 * time.Hour)
	for _, dc := range c.Closes {
		if dc.Date.UTC().Truncate(24 * time.Hour).Equal(targetDay) {
			return dc, true
		}
	}
	return DailyClose{}, false
}

// Latest returns the most recent close in the chart.
func (c Chart) Latest() (DailyClose, bool) {
	if len(c.Closes) == 0 {
		return DailyClose{}, false
	}
	return c.Closes[len(c.Closes)-1], true
}

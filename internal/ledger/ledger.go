// Package ledger implements FIFO cost-basis accounting for a single
// (portfolio, ticker) position. A Position is a pure function of the ordered
// transaction list that produced it: replaying the same transactions always
// yields identical lot state and realized gain/loss.
package ledger

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/portfoliovalue/backend/internal/apperrors"
	"github.com/portfoliovalue/backend/internal/model"
)

// Lot is a discrete purchased block of shares with its own acquisition date
// and unit cost. Lots are mutable only by consumption: RemainingShares
// decreases as sales match against the lot. An exhausted lot is retained for
// audit but excluded from future sale matching.
type Lot struct {
	AcquisitionDate time.Time
	OriginalShares  decimal.Decimal
	RemainingShares decimal.Decimal
	UnitCost        decimal.Decimal
}

// Exhausted reports whether the lot has been fully consumed by sales.
func (l Lot) Exhausted() bool {
	return !l.RemainingShares.IsPositive()
}

// CostBasis returns the remaining cost basis of the lot.
func (l Lot) CostBasis() decimal.Decimal {
	return l.RemainingShares.Mul(l.UnitCost)
}

// LotConsumption records how much of one lot a sale consumed.
type LotConsumption struct {
	AcquisitionDate time.Time
	Shares          decimal.Decimal
	UnitCost        decimal.Decimal
	CostBasis       decimal.Decimal
	Proceeds        decimal.Decimal
	GainLoss        decimal.Decimal
}

// SaleResult summarizes a fully applied sale.
type SaleResult struct {
	SaleDate         time.Time
	SharesSold       decimal.Decimal
	SalePrice        decimal.Decimal
	Proceeds         decimal.Decimal
	CostBasis        decimal.Decimal
	RealizedGainLoss decimal.Decimal
	LotsUsed         []LotConsumption
	RemainingShares  decimal.Decimal
}

// Summary is the point-in-time view of a position against a market price.
type Summary struct {
	Ticker                string
	Shares                decimal.Decimal
	AverageCost           decimal.Decimal
	CostBasis             decimal.Decimal
	MarketValue           decimal.Decimal
	UnrealizedGainLoss    decimal.Decimal
	UnrealizedGainLossPct decimal.Decimal
	RealizedGainLoss      decimal.Decimal
}

// Position holds the ordered lot sequence and cumulative realized gain/loss
// for one (portfolio, ticker) pair. It is not safe for concurrent use;
// callers serialize access per portfolio.
type Position struct {
	ticker   string
	lots     []Lot
	realized decimal.Decimal
}

// NewPosition creates an empty position for the given ticker.
func NewPosition(ticker string) *Position {
	return &Position{ticker: ticker}
}

// Ticker returns the ticker this position tracks.
func (p *Position) Ticker() string { return p.ticker }

// ApplyPurchase appends a new lot to the position.
// Returns a ValidationError if shares is not positive or price is negative.
func (p *Position) ApplyPurchase(shares, price decimal.Decimal, date time.Time) error {
	if !shares.IsPositive() {
		return &apperrors.ValidationError{Field: "shares", Reason: "must be positive"}
	}
	if price.IsNegative() {
		return &apperrors.ValidationError{Field: "price", Reason: "must not be negative"}
	}

	p.lots = append(p.lots, Lot{
		AcquisitionDate: date,
		OriginalShares:  shares,
		RemainingShares: shares,
		UnitCost:        price,
	})
	return nil
}

// ApplySale consumes lots oldest-first until the requested share count is
// covered, accumulating realized gain/loss per consumed lot.
//
// The sale is atomic: if the position holds fewer remaining shares than
// requested, an InsufficientSharesError is returned and no lot is modified.
func (p *Position) ApplySale(shares, price decimal.Decimal, date time.Time) (SaleResult, error) {
	if !shares.IsPositive() {
		return SaleResult{}, &apperrors.ValidationError{Field: "shares", Reason: "must be positive"}
	}
	if !price.IsPositive() {
		return SaleResult{}, &apperrors.ValidationError{Field: "price", Reason: "must be positive"}
	}

	available := p.RemainingShares()
	if available.LessThan(shares) {
		return SaleResult{}, &apperrors.InsufficientSharesError{
			Ticker:    p.ticker,
			Requested: shares,
			Available: available,
		}
	}

	result := SaleResult{
		SaleDate:   date,
		SharesSold: shares,
		SalePrice:  price,
	}

	toSell := shares
	for i := range p.lots {
		if toSell.IsZero() {
			break
		}
		currentLot := &p.lots[i]
		if currentLot.Exhausted() {
			continue
		}

		consumed := currentLot.RemainingShares
		if consumed.GreaterThan(toSell) {
			consumed = toSell
		}

		costBasis := consumed.Mul(currentLot.UnitCost)
		proceeds := consumed.Mul(price)

		result.LotsUsed = append(result.LotsUsed, LotConsumption{
			AcquisitionDate: currentLot.AcquisitionDate,
			Shares:          consumed,
			UnitCost:        currentLot.UnitCost,
			CostBasis:       costBasis,
			Proceeds:        proceeds,
			GainLoss:        proceeds.Sub(costBasis),
		})

		result.CostBasis = result.CostBasis.Add(costBasis)
		result.Proceeds = result.Proceeds.Add(proceeds)

		currentLot.RemainingShares = currentLot.RemainingShares.Sub(consumed)
		toSell = toSell.Sub(consumed)
	}

	result.RealizedGainLoss = result.Proceeds.Sub(result.CostBasis)
	result.RemainingShares = p.RemainingShares()
	p.realized = p.realized.Add(result.RealizedGainLoss)

	return result, nil
}

// RemainingShares returns the sum of remaining shares across all lots.
func (p *Position) RemainingShares() decimal.Decimal {
	var total decimal.Decimal
	for _, l := range p.lots {
		total = total.Add(l.RemainingShares)
	}
	return total
}

// RealizedGainLoss returns the cumulative realized gain/loss of the position.
func (p *Position) RealizedGainLoss() decimal.Decimal {
	return p.realized
}

// Lots returns a copy of the lot sequence in acquisition order, including
// exhausted lots retained for audit.
func (p *Position) Lots() []Lot {
	out := make([]Lot, len(p.lots))
	copy(out, p.lots)
	return out
}

// OpenLots returns a copy of the lots that still carry remaining shares.
func (p *Position) OpenLots() []Lot {
	var out []Lot
	for _, l := range p.lots {
		if !l.Exhausted() {
			out = append(out, l)
		}
	}
	return out
}

// Summary computes the point-in-time view of the position against the given
// market price: remaining shares, weighted-average remaining unit cost, cost
// basis, market value and unrealized gain/loss.
func (p *Position) Summary(currentPrice decimal.Decimal) Summary {
	s := Summary{
		Ticker:           p.ticker,
		Shares:           p.RemainingShares(),
		RealizedGainLoss: p.realized,
	}

	for _, l := range p.lots {
		s.CostBasis = s.CostBasis.Add(l.CostBasis())
	}

	if s.Shares.IsPositive() {
		s.AverageCost = s.CostBasis.Div(s.Shares)
	}

	s.MarketValue = s.Shares.Mul(currentPrice)
	s.UnrealizedGainLoss = s.MarketValue.Sub(s.CostBasis)
	if s.CostBasis.IsPositive() {
		s.UnrealizedGainLossPct = s.UnrealizedGainLoss.Div(s.CostBasis).Mul(decimal.NewFromInt(100))
	}

	return s
}

// SaleRecord pairs an applied sale with the transaction that caused it.
type SaleRecord struct {
	TransactionID string
	Result        SaleResult
}

// Replay reconstructs a position from scratch by applying the given
// transactions strictly in (date, insertion sequence) order. Only buy and
// sell transactions matching the ticker affect lot state; cash and dividend
// events are ignored here.
//
// Replay is pure: the input slice is not modified, and replaying identical
// input yields identical lot state and realized gain/loss.
func Replay(ticker string, transactions []model.Transaction) (*Position, error) {
	position, _, err := ReplaySales(ticker, transactions)
	return position, err
}

// ReplaySales is Replay plus the per-sale results in application order, for
// callers that persist a realized gain/loss row per sale.
func ReplaySales(ticker string, transactions []model.Transaction) (*Position, []SaleRecord, error) {
	ordered := make([]model.Transaction, 0, len(transactions))
	for _, t := range transactions {
		if t.IsTrade() && t.Ticker == ticker {
			ordered = append(ordered, t)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].Date.Equal(ordered[j].Date) {
			return ordered[i].Date.Before(ordered[j].Date)
		}
		return ordered[i].Seq < ordered[j].Seq
	})

	position := NewPosition(ticker)
	var sales []SaleRecord
	for _, t := range ordered {
		if !t.Shares.Valid || !t.Price.Valid {
			return nil, nil, &apperrors.ValidationError{Field: "shares/price", Reason: "required for trade transactions"}
		}
		switch t.Type {
		case model.TransactionBuy:
			if err := position.ApplyPurchase(t.Shares.Decimal, t.Price.Decimal, t.Date); err != nil {
				return nil, nil, err
			}
		case model.TransactionSell:
			result, err := position.ApplySale(t.Shares.Decimal, t.Price.Decimal, t.Date)
			if err != nil {
				return nil, nil, err
			}
			sales = append(sales, SaleRecord{TransactionID: t.ID, Result: result})
		}
	}
	return position, sales, nil
}

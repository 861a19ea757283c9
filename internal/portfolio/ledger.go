package portfolio

import (
	"tradeduel/internal/decision"

	"github.com/shopspring/decimal"
)

// DefaultMinPrice is the lowest price a trade may execute at.
const DefaultMinPrice = 0.01

// Ledger applies decisions to portfolios. Prices below MinPrice turn the
// step into a hold.
type Ledger struct {
	MinPrice float64
}

func NewLedger(minPrice float64) *Ledger {
	if minPrice <= 0 {
		minPrice = DefaultMinPrice
	}
	return &Ledger{MinPrice: minPrice}
}

// Apply executes d at its price, clamping buys to what cash affords and
// sells to what is held, then appends a valuation point at ts.
func (l *Ledger) Apply(p *Portfolio, d decision.Decision, ts int64) Fill {
	fill := Fill{Requested: d.Amount, Action: d.Action, Price: d.Price}
	if p == nil {
		return fill
	}
	minPrice := DefaultMinPrice
	if l != nil && l.MinPrice > 0 {
		minPrice = l.MinPrice
	}
	if d.Price < minPrice {
		fill.Action = decision.ActionHold
		l.record(p, ts, p.LastPrice)
		return fill
	}

	price := decimal.NewFromFloat(d.Price)
	cash := decimal.NewFromFloat(p.Cash)
	requested := int64(d.Amount)
	if requested < 0 {
		requested = 0
	}

	switch d.Action {
	case decision.ActionBuy:
		affordable := cash.Div(price).Floor().IntPart()
		n := min(requested, affordable)
		if n > 0 {
			cost := price.Mul(decimal.NewFromInt(n))
			cash = cash.Sub(cost)
			p.Shares += int(n)
			fill.Executed = int(n)
			fill.Cost = cost.InexactFloat64()
		}
	case decision.ActionSell:
		n := min(requested, int64(p.Shares))
		if n > 0 {
			proceeds := price.Mul(decimal.NewFromInt(n))
			cash = cash.Add(proceeds)
			p.Shares -= int(n)
			fill.Executed = int(n)
			fill.Cost = proceeds.Neg().InexactFloat64()
		}
	}
	p.Cash = cash.InexactFloat64()
	l.record(p, ts, d.Price)
	return fill
}

func (l *Ledger) record(p *Portfolio, ts int64, price float64) {
	p.LastPrice = price
	p.History = append(p.History, HistoryPoint{Timestamp: ts, Value: p.Value(price)})
}

package portfolio

import (
	"tradeduel/internal/decision"

	"github.com/shopspring/decimal"
)

// DefaultInitialCash 是每个 agent 的起始资金。
const DefaultInitialCash = 10000.0

// HistoryPoint 记录一次估值。
type HistoryPoint struct {
	Timestamp int64   `json:"timestamp"`
	Value     float64 `json:"value"`
}

// Portfolio is a single-asset cash + shares account.
type Portfolio struct {
	Cash      float64        `json:"cash"`
	Shares    int            `json:"shares"`
	History   []HistoryPoint `json:"history"`
	LastPrice float64        `json:"lastPrice"`
}

func New(initialCash float64) *Portfolio {
	return &Portfolio{Cash: initialCash, History: []HistoryPoint{}}
}

// Value marks the account at price.
func (p *Portfolio) Value(price float64) float64 {
	if p == nil {
		return 0
	}
	v := decimal.NewFromFloat(p.Cash).Add(decimal.NewFromFloat(price).Mul(decimal.NewFromInt(int64(p.Shares))))
	return v.InexactFloat64()
}

// Clone returns a deep copy; History does not alias the original.
func (p *Portfolio) Clone() *Portfolio {
	if p == nil {
		return nil
	}
	out := *p
	out.History = append([]HistoryPoint(nil), p.History...)
	return &out
}

// Fill reports what Apply actually executed. Cost is cash spent; sells
// report negative cost.
type Fill struct {
	Requested int             `json:"requested"`
	Executed  int             `json:"executed"`
	Action    decision.Action `json:"action"`
	Price     float64         `json:"price"`
	Cost      float64         `json:"cost"`
}

// Clamped is true when fewer shares moved than were asked for.
func (f Fill) Clamped() bool { return f.Executed < f.Requested }

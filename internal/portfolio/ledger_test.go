package portfolio

import (
	"testing"

	"tradeduel/internal/decision"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buy(n int, price float64) decision.Decision {
	return decision.Decision{Action: decision.ActionBuy, Amount: n, Price: price}
}

func sell(n int, price float64) decision.Decision {
	return decision.Decision{Action: decision.ActionSell, Amount: n, Price: price}
}

func TestNew(t *testing.T) {
	p := New(DefaultInitialCash)
	assert.Equal(t, 10000.0, p.Cash)
	assert.Zero(t, p.Shares)
	assert.Empty(t, p.History)
	assert.Zero(t, p.LastPrice)
}

func TestApply_BuyClampsToCash(t *testing.T) {
	p := New(1000)
	fill := NewLedger(0).Apply(p, buy(10, 300), 1)
	assert.Equal(t, 3, fill.Executed)
	assert.True(t, fill.Clamped())
	assert.Equal(t, 900.0, fill.Cost)
	assert.Equal(t, 3, p.Shares)
	assert.InDelta(t, 100.0, p.Cash, 1e-9)
	require.Len(t, p.History, 1)
	assert.Equal(t, HistoryPoint{Timestamp: 1, Value: 1000}, p.History[0])
	assert.Equal(t, 300.0, p.LastPrice)
}

func TestApply_SellClampsToShares(t *testing.T) {
	p := &Portfolio{Cash: 0, Shares: 5}
	fill := NewLedger(0).Apply(p, sell(20, 100), 7)
	assert.Equal(t, 20, fill.Requested)
	assert.Equal(t, 5, fill.Executed)
	assert.Equal(t, -500.0, fill.Cost)
	assert.Zero(t, p.Shares)
	assert.Equal(t, 500.0, p.Cash)
	require.Len(t, p.History, 1)
	assert.Equal(t, 500.0, p.History[0].Value)
}

func TestApply_HoldRecordsValue(t *testing.T) {
	p := &Portfolio{Cash: 50, Shares: 2}
	fill := NewLedger(0).Apply(p, decision.Decision{Action: decision.ActionHold, Price: 20}, 3)
	assert.Zero(t, fill.Executed)
	assert.Equal(t, 50.0, p.Cash)
	assert.Equal(t, 2, p.Shares)
	assert.Equal(t, []HistoryPoint{{Timestamp: 3, Value: 90}}, p.History)
}

func TestApply_InvalidPriceHolds(t *testing.T) {
	p := &Portfolio{Cash: 100, Shares: 1, LastPrice: 40}
	fill := NewLedger(0).Apply(p, buy(5, 0), 9)
	assert.Equal(t, decision.ActionHold, fill.Action)
	assert.Zero(t, fill.Executed)
	assert.Equal(t, 100.0, p.Cash)
	assert.Equal(t, []HistoryPoint{{Timestamp: 9, Value: 140}}, p.History)
}

func TestApply_InvariantsOverManySteps(t *testing.T) {
	p := New(DefaultInitialCash)
	l := NewLedger(0)
	prices := []float64{99.99, 101.37, 250.01, 0.37, 12.5, 1999.99, 33.33}
	for i := 0; i < 200; i++ {
		price := prices[i%len(prices)]
		var d decision.Decision
		switch i % 3 {
		case 0:
			d = buy(10, price)
		case 1:
			d = sell(7, price)
		default:
			d = decision.Decision{Action: decision.ActionHold, Price: price}
		}
		before := len(p.History)
		l.Apply(p, d, int64(i))
		assert.GreaterOrEqual(t, p.Cash, 0.0)
		assert.GreaterOrEqual(t, p.Shares, 0)
		require.Len(t, p.History, before+1)
		assert.InDelta(t, p.Cash+float64(p.Shares)*price, p.History[before].Value, 1e-6)
	}
}

func TestClone(t *testing.T) {
	p := New(10)
	NewLedger(0).Apply(p, buy(1, 5), 1)
	c := p.Clone()
	c.History[0].Value = -1
	assert.NotEqual(t, c.History[0].Value, p.History[0].Value)
}

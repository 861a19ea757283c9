package indicator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tol = 1e-9

// wave is a deterministic, non-monotonic price path.
func wave(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 250 + 12*math.Sin(float64(i)/5) + 0.3*float64(i)
	}
	return out
}

func TestRSI_NeutralBeforeWarmup(t *testing.T) {
	prices := wave(15)
	for n := 0; n <= 14; n++ {
		assert.Equal(t, float64(NeutralRSI), RSI(prices[:n], 14), "len=%d", n)
	}
}

func TestRSI_NoLossesIsMax(t *testing.T) {
	prices := make([]float64, 30)
	for i := range prices {
		prices[i] = 100 + float64(i)
	}
	assert.Equal(t, 100.0, RSI(prices, 14))

	flat := []float64{5, 5, 5, 5}
	assert.Equal(t, 100.0, RSI(flat, 3), "zero average loss reports 100 even without gains")
}

func TestRSI_HandCalculated(t *testing.T) {
	cases := []struct {
		name   string
		prices []float64
		period int
		want   float64
	}{
		{"balanced", []float64{1, 2, 1}, 2, 50},
		{"two to one", []float64{1, 3, 2}, 2, 100 - 100.0/3},
		{"only last window counts", []float64{10, 5, 6, 7}, 2, 100},
		{"all losses", []float64{9, 8, 7, 6}, 3, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, RSI(tc.prices, tc.period), tol)
		})
	}
}

func TestRSI_StaysInRange(t *testing.T) {
	prices := wave(120)
	for i := 1; i <= len(prices); i++ {
		v := RSI(prices[:i], 14)
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 100.0)
	}
}

func TestSMA(t *testing.T) {
	assert.Equal(t, 0.0, SMA(nil, 20))
	assert.InDelta(t, 102.0, SMA([]float64{100, 102, 104}, 20), tol, "short history averages everything")
	assert.InDelta(t, 104.0, SMA([]float64{100, 102, 104, 103, 105}, 3), tol)
	assert.Equal(t, 100.0, SMA([]float64{100}, 50))
}

// referenceEMA is the textbook recurrence: SMA seed, then k = 2/(n+1).
func referenceEMA(prices []float64, period int) float64 {
	k := 2 / float64(period+1)
	ema := mean(prices[:period])
	for _, p := range prices[period:] {
		ema = (p-ema)*k + ema
	}
	return ema
}

func TestSMA_EveryPrefix(t *testing.T) {
	prices := wave(120)
	for _, period := range []int{12, 20, 26} {
		for n := period; n <= len(prices); n++ {
			want := mean(prices[n-period : n])
			require.InDelta(t, want, SMA(prices[:n], period), tol, "period=%d n=%d", period, n)
		}
	}
}

func TestEMA(t *testing.T) {
	assert.Equal(t, 7.0, EMA([]float64{3, 5, 7}, 12), "insufficient warm-up returns the latest price")
	// seed (1+2+3)/3 = 2, k = 0.5: 4 -> 3, 5 -> 4
	assert.InDelta(t, 4.0, EMA([]float64{1, 2, 3, 4, 5}, 3), tol)
	assert.InDelta(t, 2.0, EMA([]float64{1, 2, 3}, 3), tol, "exactly period prices is the SMA seed")
}

func TestEMA_EveryPrefix(t *testing.T) {
	prices := wave(120)
	for _, period := range []int{9, 12, 20, 26} {
		for n := period; n <= len(prices); n++ {
			require.InDelta(t, referenceEMA(prices[:n], period), EMA(prices[:n], period), 1e-7, "period=%d n=%d", period, n)
		}
	}
}

func TestEMASeries(t *testing.T) {
	assert.Equal(t, 0.0, EMASeries(nil, 9))
	assert.Equal(t, -1.5, EMASeries([]float64{0.2, -1.5}, 9))
	vals := []float64{0.1, -0.2, 0.4, 0.3, 0.9, 1.1, 0.7, 0.2, -0.1, 0.5}
	assert.InDelta(t, EMA(vals, 9), EMASeries(vals, 9), tol)
}

func TestMACD_ColdStart(t *testing.T) {
	prices := wave(26)
	for n := 0; n < 26; n++ {
		assert.Equal(t, MACDResult{}, MACD(prices[:n], nil, 12, 26, 9), "len=%d", n)
	}
}

func TestMACD_SignalFallsBackToLine(t *testing.T) {
	prices := wave(26)
	res := MACD(prices, nil, 12, 26, 9)
	want := EMA(prices, 12) - EMA(prices, 26)
	assert.InDelta(t, want, res.MACD, tol)
	assert.Equal(t, res.MACD, res.Signal)
	assert.Equal(t, 0.0, res.Histogram)
}

func TestMACD_SignalIsEMAOfHistory(t *testing.T) {
	prices := wave(60)
	var history []float64
	var last MACDResult
	for i := 26; i <= len(prices); i++ {
		last = MACD(prices[:i], history, 12, 26, 9)
		history = append(history, last.MACD)
	}
	require.Len(t, history, 35)
	assert.InDelta(t, EMASeries(history, 9), last.Signal, tol)
	assert.InDelta(t, last.MACD-last.Signal, last.Histogram, tol)
}

func TestMACD_DoesNotMutateHistory(t *testing.T) {
	prices := wave(40)
	history := make([]float64, 3, 16)
	history[0], history[1], history[2] = 0.1, 0.2, 0.3
	_ = MACD(prices, history, 12, 26, 9)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, history)
	assert.Equal(t, 0.0, history[:4][3], "spare capacity untouched")
}

func TestSettingsDefaults(t *testing.T) {
	s := DefaultSettings()
	assert.Equal(t, Settings{RSIPeriod: 14, SMAFast: 20, SMASlow: 50, MACDFast: 12, MACDSlow: 26, MACDSignal: 9}, s)
	custom := Settings{SMAFast: 10}.WithDefaults()
	assert.Equal(t, 10, custom.SMAFast)
	assert.Equal(t, 50, custom.SMASlow)
}

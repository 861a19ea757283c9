package indicator

import "github.com/markcheno/go-talib"

// Settings 描述指标周期，零值字段使用默认值。
type Settings struct {
	RSIPeriod  int `json:"rsi_period,omitempty"`
	SMAFast    int `json:"sma_fast,omitempty"`
	SMASlow    int `json:"sma_slow,omitempty"`
	MACDFast   int `json:"macd_fast,omitempty"`
	MACDSlow   int `json:"macd_slow,omitempty"`
	MACDSignal int `json:"macd_signal,omitempty"`
}

const (
	DefaultRSIPeriod  = 14
	DefaultSMAFast    = 20
	DefaultSMASlow    = 50
	DefaultMACDFast   = 12
	DefaultMACDSlow   = 26
	DefaultMACDSignal = 9

	// NeutralRSI is reported until period+1 prices exist.
	NeutralRSI = 50
)

func DefaultSettings() Settings {
	return Settings{}.WithDefaults()
}

func (s Settings) WithDefaults() Settings {
	if s.RSIPeriod <= 0 {
		s.RSIPeriod = DefaultRSIPeriod
	}
	if s.SMAFast <= 0 {
		s.SMAFast = DefaultSMAFast
	}
	if s.SMASlow <= 0 {
		s.SMASlow = DefaultSMASlow
	}
	if s.MACDFast <= 0 {
		s.MACDFast = DefaultMACDFast
	}
	if s.MACDSlow <= 0 {
		s.MACDSlow = DefaultMACDSlow
	}
	if s.MACDSignal <= 0 {
		s.MACDSignal = DefaultMACDSignal
	}
	return s
}

// RSI averages the last period gains and losses of successive differences.
// Fewer than period+1 prices yield the neutral 50; no losses yield 100.
func RSI(prices []float64, period int) float64 {
	if period <= 0 {
		period = DefaultRSIPeriod
	}
	if len(prices) < period+1 {
		return NeutralRSI
	}
	var gainSum, lossSum float64
	for i := len(prices) - period; i < len(prices); i++ {
		diff := prices[i] - prices[i-1]
		if diff > 0 {
			gainSum += diff
		} else if diff < 0 {
			lossSum += -diff
		}
	}
	avgGain := gainSum / float64(period)
	avgLoss := lossSum / float64(period)
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// SMA averages the last period prices, or every price when fewer exist.
// An empty slice returns 0.
func SMA(prices []float64, period int) float64 {
	if len(prices) == 0 {
		return 0
	}
	if period <= 0 || len(prices) < period {
		return mean(prices)
	}
	return last(talib.Sma(prices, period))
}

// EMA seeds with the SMA of the first period prices and smooths the rest with
// k = 2/(period+1). With fewer than period prices the latest price is returned.
func EMA(prices []float64, period int) float64 {
	if len(prices) == 0 {
		return 0
	}
	if period <= 0 || len(prices) < period {
		return prices[len(prices)-1]
	}
	return last(talib.Ema(prices, period))
}

func last(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return values[len(values)-1]
}

// EMASeries is EMA over an arbitrary series (the MACD line for the signal).
func EMASeries(values []float64, period int) float64 {
	if len(values) == 0 {
		return 0
	}
	return EMA(values, period)
}

// MACDResult 是单根 K 线上的 MACD 三元组。
type MACDResult struct {
	MACD      float64 `json:"macd"`
	Signal    float64 `json:"signal"`
	Histogram float64 `json:"histogram"`
}

// MACD computes EMA(fast)-EMA(slow) and its signal line over history+[macd].
// Fewer than slow prices return the zero result. history is not modified;
// the caller appends the returned MACD value for the next call.
func MACD(prices, history []float64, fast, slow, signal int) MACDResult {
	if fast <= 0 {
		fast = DefaultMACDFast
	}
	if slow <= 0 {
		slow = DefaultMACDSlow
	}
	if signal <= 0 {
		signal = DefaultMACDSignal
	}
	if len(prices) < slow {
		return MACDResult{}
	}
	macd := EMA(prices, fast) - EMA(prices, slow)

	series := make([]float64, 0, len(history)+1)
	series = append(series, history...)
	series = append(series, macd)

	sig := macd
	if len(series) >= signal {
		sig = EMASeries(series, signal)
	}
	return MACDResult{MACD: macd, Signal: sig, Histogram: macd - sig}
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

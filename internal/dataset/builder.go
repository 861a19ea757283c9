package dataset

import (
	"fmt"

	"tradeduel/internal/analysis/indicator"
	"tradeduel/internal/market"
)

// InsufficientDataError is returned when there is nothing to build from.
type InsufficientDataError struct {
	Got  int
	Need int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient candle data: got %d, need at least %d", e.Got, e.Need)
}

// MACDState 累积每根 K 线的 MACD 原值（未取整），供信号线计算。
type MACDState struct {
	History []float64
}

// Builder 按时间顺序逐根追加 K 线并计算指标，不做任何前视。
type Builder struct {
	settings indicator.Settings
	closes   []float64
	macd     MACDState
}

func NewBuilder(settings indicator.Settings) *Builder {
	return &Builder{settings: settings.WithDefaults()}
}

// Append extends the price history with raw.Close and returns the annotated
// candle. Indicators use the unrounded history; only the output is rounded.
func (b *Builder) Append(raw market.RawCandle) market.Candle {
	b.closes = append(b.closes, raw.Close)
	s := b.settings

	rsi := indicator.RSI(b.closes, s.RSIPeriod)
	smaFast := indicator.SMA(b.closes, s.SMAFast)
	smaSlow := indicator.SMA(b.closes, s.SMASlow)
	macd := indicator.MACD(b.closes, b.macd.History, s.MACDFast, s.MACDSlow, s.MACDSignal)
	b.macd.History = append(b.macd.History, macd.MACD)

	return market.Candle{
		Timestamp:  raw.Timestamp,
		Open:       market.Round2(raw.Open),
		High:       market.Round2(raw.High),
		Low:        market.Round2(raw.Low),
		Close:      market.Round2(raw.Close),
		Volume:     raw.Volume,
		RSI:        market.Round2(rsi),
		SMA20:      market.Round2(smaFast),
		SMA50:      market.Round2(smaSlow),
		MACD:       market.Round2(macd.MACD),
		MACDSignal: market.Round2(macd.Signal),
		MACDDiff:   market.Round2(macd.Histogram),
	}
}

// Len reports how many candles were appended.
func (b *Builder) Len() int { return len(b.closes) }

// MACDState returns a copy of the accumulated MACD history.
func (b *Builder) MACDState() MACDState {
	return MACDState{History: append([]float64(nil), b.macd.History...)}
}

// Build annotates the full raw sequence. Output length equals input length.
func Build(raw []market.RawCandle, settings indicator.Settings) ([]market.Candle, error) {
	if len(raw) == 0 {
		return nil, &InsufficientDataError{Got: 0, Need: 1}
	}
	b := NewBuilder(settings)
	out := make([]market.Candle, 0, len(raw))
	for _, rc := range raw {
		out = append(out, b.Append(rc))
	}
	return out, nil
}

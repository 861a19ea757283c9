package market

import (
	"fmt"
	"math"
	"time"
)

// RawCandle 是数据源产出的原始 OHLCV，不带任何指标。
type RawCandle struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    int64   `json:"volume"`
}

// Candle 是带指标的单根日线，也是导出给前端的 JSON 记录格式。
// 创建后不再修改。
type Candle struct {
	Timestamp  int64   `json:"timestamp"`
	Open       float64 `json:"open"`
	High       float64 `json:"high"`
	Low        float64 `json:"low"`
	Close      float64 `json:"close"`
	Volume     int64   `json:"volume"`
	RSI        float64 `json:"rsi"`
	SMA20      float64 `json:"sma20"`
	SMA50      float64 `json:"sma50"`
	MACD       float64 `json:"macd"`
	MACDSignal float64 `json:"macd_signal"`
	MACDDiff   float64 `json:"macd_diff"`
}

func (c Candle) Time() time.Time {
	return time.UnixMilli(c.Timestamp).UTC()
}

func (c Candle) TimeString() string {
	if c.Timestamp <= 0 {
		return "-"
	}
	return c.Time().Format("2006-01-02")
}

func (c Candle) Raw() RawCandle {
	return RawCandle{
		Timestamp: c.Timestamp,
		Open:      c.Open,
		High:      c.High,
		Low:       c.Low,
		Close:     c.Close,
		Volume:    c.Volume,
	}
}

// Closes extracts the closing prices in order.
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// ValidateRaw checks the data source contract: strictly positive prices,
// consistent high/low and strictly increasing timestamps.
func ValidateRaw(raw []RawCandle) error {
	for i, c := range raw {
		if c.Open <= 0 || c.High <= 0 || c.Low <= 0 || c.Close <= 0 {
			return fmt.Errorf("candle #%d (ts=%d): prices must be positive", i, c.Timestamp)
		}
		if c.High < math.Max(c.Open, c.Close) || c.Low > math.Min(c.Open, c.Close) {
			return fmt.Errorf("candle #%d (ts=%d): high/low do not bound open/close", i, c.Timestamp)
		}
		if i > 0 && c.Timestamp <= raw[i-1].Timestamp {
			return fmt.Errorf("candle #%d (ts=%d): timestamps must increase", i, c.Timestamp)
		}
	}
	return nil
}

// Round2 rounds to cents; applied only when a candle is serialized.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

package dataset

import (
	"context"
	"fmt"
	"time"

	"tradeduel/internal/analysis/indicator"
	"tradeduel/internal/logger"
	"tradeduel/internal/market"
)

// Load fetches raw candles from src, validates them and builds the series.
func Load(ctx context.Context, src market.Source, settings indicator.Settings) ([]market.Candle, error) {
	if src == nil {
		return nil, fmt.Errorf("dataset: nil source")
	}
	start := time.Now()
	raw, err := src.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch %s candles: %w", src.Name(), err)
	}
	if err := market.ValidateRaw(raw); err != nil {
		return nil, fmt.Errorf("validate %s candles: %w", src.Name(), err)
	}
	series, err := Build(raw, settings)
	if err != nil {
		return nil, err
	}
	logger.Infof("dataset: built %d candles from %s in %s", len(series), src.Name(), time.Since(start).Round(time.Millisecond))
	return series, nil
}

// Summary 对应数据脚本结束时打印的概要。
type Summary struct {
	Count      int
	Start, End time.Time
	FirstClose float64
	LastClose  float64
	First      market.Candle
}

func Summarize(series []market.Candle) (Summary, bool) {
	if len(series) == 0 {
		return Summary{}, false
	}
	first, last := series[0], series[len(series)-1]
	return Summary{
		Count:      len(series),
		Start:      first.Time(),
		End:        last.Time(),
		FirstClose: first.Close,
		LastClose:  last.Close,
		First:      first,
	}, true
}

package market

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

const dayMillis = int64(24 * time.Hour / time.Millisecond)

// Rand 抽象随机数来源，测试里用固定种子保证可复现。
type Rand interface {
	Float64() float64
}

// SyntheticConfig mirrors the sample generator used for the demo dataset.
type SyntheticConfig struct {
	Count      int
	BasePrice  float64
	FloorPrice float64
	Seed       uint64
	Now        func() time.Time
}

// SyntheticSource 生成有界随机游走的日线数据。
type SyntheticSource struct {
	cfg SyntheticConfig
	rnd Rand
}

func NewSyntheticSource(cfg SyntheticConfig) *SyntheticSource {
	if cfg.Count <= 0 {
		cfg.Count = 120
	}
	if cfg.BasePrice <= 0 {
		cfg.BasePrice = 250
	}
	if cfg.FloorPrice <= 0 {
		cfg.FloorPrice = 50
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(cfg.Now().UnixNano())
	}
	return &SyntheticSource{cfg: cfg, rnd: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// WithRand swaps the random source.
func (s *SyntheticSource) WithRand(r Rand) *SyntheticSource {
	if r != nil {
		s.rnd = r
	}
	return s
}

func (s *SyntheticSource) Name() string { return "synthetic" }

func (s *SyntheticSource) Fetch(ctx context.Context) ([]RawCandle, error) {
	if s.rnd == nil {
		return nil, fmt.Errorf("synthetic source: nil random source")
	}
	count := s.cfg.Count
	start := s.cfg.Now().UnixMilli() - int64(count)*dayMillis
	out := make([]RawCandle, 0, count)
	price := s.cfg.BasePrice
	for i := 0; i < count; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		change := (s.rnd.Float64() - 0.48) * 10
		price = math.Max(s.cfg.FloorPrice, price+change)

		open := s.cfg.BasePrice
		if i > 0 {
			open = out[i-1].Close
		}
		high := math.Max(open, price) + s.rnd.Float64()*8
		low := math.Min(open, price) - s.rnd.Float64()*8
		if low <= 0 {
			low = math.Min(open, price) / 2
		}
		out = append(out, RawCandle{
			Timestamp: start + int64(i)*dayMillis,
			Open:      open,
			High:      high,
			Low:       low,
			Close:     price,
			Volume:    int64(math.Floor(5_000_000 + s.rnd.Float64()*10_000_000)),
		})
	}
	return out, nil
}

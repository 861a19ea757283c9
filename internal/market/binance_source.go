package market

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	pair "tradeduel/internal/pkg/symbol"

	"github.com/adshao/go-binance/v2"
)

const maxKlineLimit = 1000

// BinanceConfig 描述现货 K 线拉取参数。
type BinanceConfig struct {
	BaseURL  string
	Symbol   string
	Interval string
	Limit    int
	Timeout  time.Duration
}

// BinanceSource 基于 go-binance SDK 拉取现货 K 线，作为真实数据的替代来源。
type BinanceSource struct {
	cfg    BinanceConfig
	client *binance.Client
}

func NewBinanceSource(cfg BinanceConfig) *BinanceSource {
	if cfg.Interval == "" {
		cfg.Interval = "1d"
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 120
	}
	if cfg.Limit > maxKlineLimit {
		cfg.Limit = maxKlineLimit
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	client := binance.NewClient("", "")
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		client.BaseURL = base
	}
	client.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	return &BinanceSource{cfg: cfg, client: client}
}

func (s *BinanceSource) Name() string { return "binance" }

func (s *BinanceSource) Fetch(ctx context.Context) ([]RawCandle, error) {
	symbol := pair.Parse(s.cfg.Symbol).Binance()
	if symbol == "" {
		return nil, fmt.Errorf("binance source: invalid symbol %q", s.cfg.Symbol)
	}
	kls, err := s.client.NewKlinesService().
		Symbol(symbol).
		Interval(strings.ToLower(s.cfg.Interval)).
		Limit(s.cfg.Limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance klines %s: %w", symbol, err)
	}
	out := make([]RawCandle, 0, len(kls))
	for _, kl := range kls {
		if kl == nil {
			continue
		}
		out = append(out, RawCandle{
			Timestamp: kl.OpenTime,
			Open:      parseFloat(kl.Open),
			High:      parseFloat(kl.High),
			Low:       parseFloat(kl.Low),
			Close:     parseFloat(kl.Close),
			Volume:    int64(math.Floor(parseFloat(kl.Volume))),
		})
	}
	return out, nil
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f
}

package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tradeduel/internal/config"
	"tradeduel/internal/dataset"
	"tradeduel/internal/logger"
	"tradeduel/internal/market"
	"tradeduel/internal/store"
)

// NewSource 按 data.source 选择 K 线来源。
func NewSource(cfg config.DataConfig) (market.Source, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Source)) {
	case "", "synthetic":
		return market.NewSyntheticSource(market.SyntheticConfig{
			Count:      cfg.Count,
			BasePrice:  cfg.BasePrice,
			FloorPrice: cfg.FloorPrice,
			Seed:       cfg.Seed,
		}), nil
	case "file":
		return market.NewFileSource(cfg.Path), nil
	case "binance":
		return market.NewBinanceSource(market.BinanceConfig{
			BaseURL:  cfg.Binance.BaseURL,
			Symbol:   cfg.Binance.Symbol,
			Interval: cfg.Binance.Interval,
			Limit:    cfg.Binance.Limit,
			Timeout:  15 * time.Second,
		}), nil
	default:
		return nil, fmt.Errorf("unknown data source %q", cfg.Source)
	}
}

// LoadSeries fetches and annotates the candle series.
func LoadSeries(ctx context.Context, src market.Source, cfg *config.Config) ([]market.Candle, error) {
	series, err := dataset.Load(ctx, src, cfg.IndicatorSettings())
	if err != nil {
		return nil, fmt.Errorf("加载 K 线失败: %w", err)
	}
	return series, nil
}

// ExportSeries 写出 JSON 数据集，并在配置了 sqlite_path 时同步一份 SQLite。
func ExportSeries(ctx context.Context, cfg *config.Config, name string, series []market.Candle) error {
	if path := strings.TrimSpace(cfg.Data.Path); path != "" {
		if err := store.WriteJSON(path, series); err != nil {
			return err
		}
		logger.Infof("✓ 写出 %d 根 K 线到 %s", len(series), path)
	}
	return exportCandleDB(ctx, cfg.Store.SQLitePath, name, series)
}

func exportCandleDB(ctx context.Context, path, name string, series []market.Candle) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	db, err := store.OpenCandleDB(path)
	if err != nil {
		return fmt.Errorf("open candle db: %w", err)
	}
	defer db.Close()
	if err := db.ReplaceSeries(ctx, name, series); err != nil {
		return err
	}
	logger.Infof("✓ K 线同步到 SQLite %s (series=%s)", path, name)
	return nil
}

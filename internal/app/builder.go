package app

import (
	"context"
	"fmt"
	"io"

	"tradeduel/internal/config"
	"tradeduel/internal/decision"
	"tradeduel/internal/logger"
	"tradeduel/internal/market"
	"tradeduel/internal/metrics"
	"tradeduel/internal/simulation"
	"tradeduel/internal/store"
	duelhttp "tradeduel/internal/transport/http/duel"
)

// AppBuilder 组装 App；各 Fn 字段可在测试中替换。
type AppBuilder struct {
	cfg *config.Config

	sourceFn      func(config.DataConfig) (market.Source, error)
	modelClientFn func(config.ModelConfig, *metrics.Metrics) decision.ModelClient
	httpFn        func(config.AppConfig, *App) (*duelhttp.Server, error)
	skipLogging   bool
	driverOpts    []simulation.DriverOption
}

type AppBuilderOption func(*AppBuilder)

// WithSource replaces the configured candle source.
func WithSource(src market.Source) AppBuilderOption {
	return func(b *AppBuilder) {
		b.sourceFn = func(config.DataConfig) (market.Source, error) { return src, nil }
	}
}

// WithModelClient replaces the OpenRouter client; nil forces the fallback policy.
func WithModelClient(client decision.ModelClient) AppBuilderOption {
	return func(b *AppBuilder) {
		b.modelClientFn = func(config.ModelConfig, *metrics.Metrics) decision.ModelClient { return client }
	}
}

// WithoutHTTP 用于无界面运行（run 命令与测试）。
func WithoutHTTP() AppBuilderOption {
	return func(b *AppBuilder) {
		b.httpFn = func(config.AppConfig, *App) (*duelhttp.Server, error) { return nil, nil }
	}
}

// WithoutLogFiles keeps the process log on stdout only.
func WithoutLogFiles() AppBuilderOption {
	return func(b *AppBuilder) { b.skipLogging = true }
}

func WithDriverOptions(opts ...simulation.DriverOption) AppBuilderOption {
	return func(b *AppBuilder) { b.driverOpts = append(b.driverOpts, opts...) }
}

func NewAppBuilder(cfg *config.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:           cfg,
		sourceFn:      NewSource,
		modelClientFn: buildModelClient,
		httpFn:        buildHTTPServer,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func (b *AppBuilder) Build(ctx context.Context) (_ *App, err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg
	logger.SetLevel(cfg.App.LogLevel)

	a := &App{cfg: cfg}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	if !b.skipLogging {
		closers, err := setupLogging(cfg.App)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, closers...)
	}

	src, err := b.sourceFn(cfg.Data)
	if err != nil {
		return nil, err
	}
	a.series, err = LoadSeries(ctx, src, cfg)
	if err != nil {
		return nil, err
	}
	if err := exportCandleDB(ctx, cfg.Store.SQLitePath, src.Name(), a.series); err != nil {
		return nil, err
	}

	a.metrics = metrics.New()
	client := b.modelClientFn(cfg.Model, a.metrics)
	a.protocol = buildProtocol(cfg.Model, client, a.metrics)

	observers := simulation.Observers{a.metrics}
	if path := cfg.Store.JournalPath; path != "" {
		a.journal, err = store.OpenJournal(path)
		if err != nil {
			return nil, fmt.Errorf("初始化决策日志失败: %w", err)
		}
		a.closers = append(a.closers, io.Closer(a.journal))
		observers = append(observers, a.journal)
		logger.Infof("✓ 决策日志写入 %s", path)
	}

	driverOpts := append([]simulation.DriverOption{simulation.WithObserver(observers)}, b.driverOpts...)
	a.driver, err = simulation.NewDriver(simulationConfig(cfg), a.series, a.protocol, driverOpts...)
	if err != nil {
		return nil, err
	}

	a.http, err = b.httpFn(cfg.App, a)
	if err != nil {
		return nil, err
	}
	a.Summary = newStartupSummary(cfg, a.series, client != nil, a.http)
	return a, nil
}

func simulationConfig(cfg *config.Config) simulation.Config {
	agents := make([]simulation.AgentSpec, 0, len(cfg.Agents))
	for _, ag := range cfg.Agents {
		agents = append(agents, simulation.AgentSpec{ID: ag.ID, Name: ag.Name, Model: ag.Model, Color: ag.Color})
	}
	return simulation.Config{
		InitialCash: cfg.Simulation.InitialCash,
		Interval:    cfg.Simulation.Interval(),
		MinPrice:    cfg.Trading.MinPrice,
		Agents:      agents,
	}
}

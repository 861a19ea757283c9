package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"tradeduel/internal/analysis/visual"
	"tradeduel/internal/config"
	"tradeduel/internal/decision"
	"tradeduel/internal/logger"
	"tradeduel/internal/market"
	"tradeduel/internal/metrics"
	"tradeduel/internal/simulation"
	"tradeduel/internal/store"
	duelhttp "tradeduel/internal/transport/http/duel"

	"golang.org/x/sync/errgroup"
)

// App 负责应用级编排：加载配置→准备数据→驱动模拟→对外提供 HTTP。
type App struct {
	cfg      *config.Config
	series   []market.Candle
	protocol *decision.Protocol
	driver   *simulation.Driver
	metrics  *metrics.Metrics
	journal  *store.Journal
	http     *duelhttp.Server
	closers  []io.Closer
	Summary  *StartupSummary
}

// NewApp 根据配置构建应用对象（不启动）。
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(ctx, cfg)
}

// Run 启动 HTTP 服务与模拟时钟，直到 ctx 取消。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.driver == nil {
		return fmt.Errorf("app not initialized")
	}
	if a.Summary != nil {
		a.Summary.Print(os.Stdout)
	}
	if a.cfg.Simulation.AutoPlay {
		a.driver.Play()
	}
	group, ctx := errgroup.WithContext(ctx)
	if a.http != nil {
		group.Go(func() error {
			if err := a.http.Start(ctx); err != nil {
				return fmt.Errorf("http server error: %w", err)
			}
			return nil
		})
	}
	group.Go(func() error {
		return a.driver.Run(ctx)
	})
	return group.Wait()
}

// RunHeadless 不等计时器，连续推进到最后一根 K 线并返回结果。
func (a *App) RunHeadless(ctx context.Context) (simulation.Results, error) {
	if a == nil || a.driver == nil {
		return simulation.Results{}, fmt.Errorf("app not initialized")
	}
	for {
		if err := ctx.Err(); err != nil {
			return simulation.Results{}, err
		}
		more, err := a.driver.Tick(ctx)
		if err != nil {
			return simulation.Results{}, err
		}
		if !more {
			return a.driver.FinalResults(), nil
		}
	}
}

// ApplyConfig pushes hot-reloadable settings into the running app.
func (a *App) ApplyConfig(cfg *config.Config) {
	if a == nil || cfg == nil || a.driver == nil {
		return
	}
	interval := cfg.Simulation.Interval()
	if interval == a.driver.Interval() {
		return
	}
	if err := a.driver.SetSpeed(interval); err != nil {
		logger.Warnf("config reload: interval %s rejected: %v", interval, err)
		return
	}
	logger.Infof("config reload: tick interval now %s", interval)
}

// RenderChart 渲染当前进度的价格与资产曲线页面。
func (a *App) RenderChart() ([]byte, error) {
	if a == nil || a.driver == nil {
		return nil, fmt.Errorf("app not initialized")
	}
	st := a.driver.Snapshot()
	in := visual.Input{
		Title:   "AI Trading Duel",
		Candles: a.driver.Candles(),
	}
	for _, ag := range st.Agents {
		in.Curves = append(in.Curves, visual.Curve{Name: ag.Name, Color: ag.Color, History: ag.Portfolio.History})
	}
	return visual.RenderHTML(in)
}

// WriteChart renders the chart to path; png additionally screenshots it.
func (a *App) WriteChart(ctx context.Context, path string, png bool) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	html, err := a.RenderChart()
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create chart dir: %w", err)
		}
	}
	if err := os.WriteFile(path, html, 0o644); err != nil {
		return fmt.Errorf("write chart: %w", err)
	}
	logger.Infof("chart written to %s", path)
	if !png {
		return nil
	}
	img, err := visual.RenderPNG(ctx, html, 0, 0)
	if err != nil {
		return err
	}
	pngPath := strings.TrimSuffix(path, filepath.Ext(path)) + ".png"
	if err := os.WriteFile(pngPath, img, 0o644); err != nil {
		return fmt.Errorf("write chart png: %w", err)
	}
	logger.Infof("chart screenshot written to %s", pngPath)
	return nil
}

func (a *App) Driver() *simulation.Driver { return a.driver }

func (a *App) Series() []market.Candle { return a.series }

func (a *App) Journal() *store.Journal { return a.journal }

func (a *App) Metrics() *metrics.Metrics { return a.metrics }

// Close 释放存储与日志文件。
func (a *App) Close() error {
	if a == nil {
		return nil
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"tradeduel/internal/app"
	"tradeduel/internal/config"
	"tradeduel/internal/logger"

	"github.com/spf13/cobra"
)

const defaultConfigPath = "configs/config.yaml"

type rootOptions struct {
	configPath string
	envFile    string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "tradeduel",
		Short:         "Two LLM traders compete on the same candle series",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file (default $TRADEDUEL_CONFIG or "+defaultConfigPath+")")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before the config")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override app.log_level")

	root.AddCommand(newGenerateCmd(opts))
	root.AddCommand(newRunCmd(opts))
	root.AddCommand(newServeCmd(opts))
	root.AddCommand(newConfigCmd(opts))
	return root
}

// resolvePath 依次取 --config、TRADEDUEL_CONFIG、默认路径；默认文件不存在时只用默认值。
func (o *rootOptions) resolvePath() string {
	if p := strings.TrimSpace(o.configPath); p != "" {
		return p
	}
	if p := strings.TrimSpace(os.Getenv(config.EnvPrefix + "_CONFIG")); p != "" {
		return p
	}
	if _, err := os.Stat(defaultConfigPath); errors.Is(err, fs.ErrNotExist) {
		return ""
	}
	return defaultConfigPath
}

func (o *rootOptions) load() (*config.Config, string, error) {
	if err := config.LoadDotEnv(o.envFile); err != nil {
		return nil, "", err
	}
	path := o.resolvePath()
	cfg, err := config.Load(path)
	if err != nil {
		return nil, path, fmt.Errorf("读取配置失败: %w", err)
	}
	if o.logLevel != "" {
		cfg.App.LogLevel = o.logLevel
	}
	logger.SetLevel(cfg.App.LogLevel)
	if path == "" {
		logger.Infof("✓ 使用默认配置（环境=%s）", cfg.App.Env)
	} else {
		logger.Infof("✓ 配置加载成功: %s（环境=%s）", path, cfg.App.Env)
	}
	return cfg, path, nil
}

func newGenerateCmd(opts *rootOptions) *cobra.Command {
	var out, source string
	var count int
	var seed uint64
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Build the indicator-annotated candle dataset and write it to disk",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := opts.load()
			if err != nil {
				return err
			}
			if out != "" {
				cfg.Data.Path = out
			}
			if source != "" {
				cfg.Data.Source = source
			}
			if count > 0 {
				cfg.Data.Count = count
				cfg.Data.Binance.Limit = count
			}
			if seed != 0 {
				cfg.Data.Seed = seed
			}
			if cfg.Data.Source == "file" {
				return fmt.Errorf("generate needs a synthetic or binance source")
			}
			src, err := app.NewSource(cfg.Data)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.Repeat("=", 60))
			fmt.Fprintln(cmd.OutOrStdout(), "AI Trading Simulation - Candle Data Generator")
			fmt.Fprintln(cmd.OutOrStdout(), strings.Repeat("=", 60))
			series, err := app.LoadSeries(cmd.Context(), src, cfg)
			if err != nil {
				return err
			}
			if err := app.ExportSeries(cmd.Context(), cfg, src.Name(), series); err != nil {
				return err
			}
			return app.PrintDatasetSummary(cmd.OutOrStdout(), cfg.Data.Path, series)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output JSON path (default data.path)")
	cmd.Flags().StringVar(&source, "source", "", "synthetic or binance (default data.source)")
	cmd.Flags().IntVar(&count, "count", 0, "number of candles")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "random seed for the synthetic source")
	return cmd
}

func newRunCmd(opts *rootOptions) *cobra.Command {
	var chartPath string
	var png bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Play the whole duel without waiting for the tick timer",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := opts.load()
			if err != nil {
				return err
			}
			a, err := app.NewAppBuilder(cfg, app.WithoutHTTP()).Build(cmd.Context())
			if err != nil {
				return fmt.Errorf("初始化应用失败: %w", err)
			}
			defer a.Close()
			a.Summary.Print(cmd.OutOrStdout())

			res, err := a.RunHeadless(cmd.Context())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintln(w, "=== FINAL RESULTS ===")
			for _, s := range res.Standings {
				fmt.Fprintf(w, "%s: $%.2f (cash $%.2f, %d shares)\n", s.Name, s.Value, s.Cash, s.Shares)
			}
			fmt.Fprintf(w, "Winner: %s with $%.2f\n", res.Winner.Name, res.Winner.Value)

			if chartPath == "" {
				chartPath = cfg.Store.ChartPath
			}
			return a.WriteChart(cmd.Context(), chartPath, png)
		},
	}
	cmd.Flags().StringVar(&chartPath, "chart", "", "write the chart HTML here (default store.chart_path)")
	cmd.Flags().BoolVar(&png, "png", false, "also screenshot the chart with headless Chrome")
	return cmd
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr string
	var play bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the live duel over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, path, err := opts.load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.App.HTTPAddr = addr
			}
			if play {
				cfg.Simulation.AutoPlay = true
			}
			a, err := app.NewApp(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("初始化应用失败: %w", err)
			}
			defer a.Close()
			if path != "" {
				if err := config.Watch(path, a.ApplyConfig); err != nil {
					logger.Warnf("config watch disabled: %v", err)
				}
			}
			if err := a.Run(cmd.Context()); err != nil {
				return fmt.Errorf("运行失败: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default app.http_addr)")
	cmd.Flags().BoolVar(&play, "play", false, "start ticking immediately")
	return cmd
}

func newConfigCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := opts.load()
			if err != nil {
				return err
			}
			out, err := cfg.YAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}

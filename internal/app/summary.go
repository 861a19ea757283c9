package app

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"tradeduel/internal/config"
	"tradeduel/internal/dataset"
	"tradeduel/internal/market"
	duelhttp "tradeduel/internal/transport/http/duel"
)

// StartupSummary 是启动时打印的配置摘要。
type StartupSummary struct {
	Data     DataSummary
	Agents   []AgentSummary
	Model    ModelSummary
	HTTPAddr string
	Interval time.Duration
	AutoPlay bool
	Journal  string
	CandleDB string
}

type DataSummary struct {
	Source string
	Count  int
	Start  string
	End    string
}

type AgentSummary struct {
	ID    string
	Name  string
	Model string
}

type ModelSummary struct {
	Endpoint string
	Ready    bool
	Timeout  time.Duration
}

func newStartupSummary(cfg *config.Config, series []market.Candle, modelReady bool, srv *duelhttp.Server) *StartupSummary {
	s := &StartupSummary{
		Data: DataSummary{Source: cfg.Data.Source, Count: len(series), Start: "-", End: "-"},
		Model: ModelSummary{
			Endpoint: cfg.Model.APIURL,
			Ready:    modelReady,
			Timeout:  time.Duration(cfg.Model.TimeoutSeconds) * time.Second,
		},
		HTTPAddr: srv.Addr(),
		Interval: cfg.Simulation.Interval(),
		AutoPlay: cfg.Simulation.AutoPlay,
		Journal:  cfg.Store.JournalPath,
		CandleDB: cfg.Store.SQLitePath,
	}
	if len(series) > 0 {
		s.Data.Start = series[0].TimeString()
		s.Data.End = series[len(series)-1].TimeString()
	}
	for _, ag := range cfg.Agents {
		s.Agents = append(s.Agents, AgentSummary{ID: ag.ID, Name: ag.Name, Model: ag.Model})
	}
	return s
}

func (s *StartupSummary) Print(w io.Writer) {
	title := "启动配置摘要 (STARTUP SUMMARY)"
	fmt.Fprintln(w, strings.Repeat("=", 80))
	fmt.Fprintf(w, "%*s\n", 40+len(title)/2, title)
	fmt.Fprintln(w, strings.Repeat("=", 80))

	fmt.Fprintln(w, "[K线数据 (CANDLES)]")
	fmt.Fprintf(w, "  来源: %s\n", s.Data.Source)
	fmt.Fprintf(w, "  数量: %d (%s → %s)\n", s.Data.Count, s.Data.Start, s.Data.End)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "[对手 (AGENTS)]")
	if len(s.Agents) == 0 {
		fmt.Fprintln(w, "  (无配置)")
	}
	for _, ag := range s.Agents {
		fmt.Fprintf(w, "  > %s (%s): %s\n", ag.Name, ag.ID, ag.Model)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "[模型网关 (MODEL)]")
	fmt.Fprintf(w, "  端点: %s\n", s.Model.Endpoint)
	if s.Model.Ready {
		fmt.Fprintf(w, "  状态: ready (timeout %s)\n", s.Model.Timeout)
	} else {
		fmt.Fprintln(w, "  状态: no API key, rule-based fallback only")
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "[运行 (RUNTIME)]")
	fmt.Fprintf(w, "  HTTP: %s\n", orDash(s.HTTPAddr))
	fmt.Fprintf(w, "  间隔: %s  自动开始: %t\n", s.Interval, s.AutoPlay)
	fmt.Fprintf(w, "  决策日志: %s\n", orDash(s.Journal))
	fmt.Fprintf(w, "  K线库: %s\n", orDash(s.CandleDB))
	fmt.Fprintln(w, strings.Repeat("=", 80))
}

// PrintDatasetSummary prints what the data generator reports after a run.
func PrintDatasetSummary(w io.Writer, path string, series []market.Candle) error {
	sum, ok := dataset.Summarize(series)
	if !ok {
		return fmt.Errorf("empty candle series")
	}
	fmt.Fprintf(w, "\n✅ Successfully saved %d candles to %s\n", sum.Count, orDash(path))
	fmt.Fprintf(w, "📅 Date range: %s to %s\n", sum.Start.Format(time.DateOnly), sum.End.Format(time.DateOnly))
	fmt.Fprintf(w, "💰 Price range: $%.2f to $%.2f\n", sum.FirstClose, sum.LastClose)
	first, err := json.MarshalIndent(sum.First, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "\n📋 Sample data (first candle):\n%s\n", first)
	return nil
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

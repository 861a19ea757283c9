package config

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError 汇总所有校验问题。
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid config: " + strings.Join(e.Problems, "; ")
}

type problems []string

func (p *problems) addf(format string, args ...any) {
	*p = append(*p, fmt.Sprintf(format, args...))
}

// validate 对配置进行基础校验，一次返回全部问题。
func validate(c *Config) error {
	var p problems
	c.App.validate(&p)
	c.Data.validate(&p)
	c.Indicators.validate(&p)
	c.Simulation.validate(&p)
	c.Model.validate(&p)
	validateAgents(c.Agents, &p)
	if c.Trading.MinPrice <= 0 {
		p.addf("trading.min_price must be > 0")
	}
	if len(p) == 0 {
		return nil
	}
	return &ValidationError{Problems: p}
}

// IsValidationError reports whether err came from config validation.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func (a *AppConfig) validate(p *problems) {
	switch strings.ToLower(a.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		p.addf("app.log_level %q is not one of debug/info/warn/error", a.LogLevel)
	}
}

func (d *DataConfig) validate(p *problems) {
	switch d.Source {
	case "synthetic":
		if d.Count <= 0 {
			p.addf("data.count must be > 0")
		}
		if d.FloorPrice <= 0 || d.BasePrice < d.FloorPrice {
			p.addf("data.base_price must be >= data.floor_price > 0")
		}
	case "file":
		if strings.TrimSpace(d.Path) == "" {
			p.addf("data.path is required for the file source")
		}
	case "binance":
		if strings.TrimSpace(d.Binance.Symbol) == "" {
			p.addf("data.binance.symbol is required")
		}
		if d.Binance.Limit <= 0 || d.Binance.Limit > 1000 {
			p.addf("data.binance.limit must be within 1..1000")
		}
	default:
		p.addf("data.source %q is not one of synthetic/file/binance", d.Source)
	}
}

func (i *IndicatorConfig) validate(p *problems) {
	if i.SMAFast >= i.SMASlow {
		p.addf("indicators.sma_fast must be < sma_slow")
	}
	if i.MACDFast >= i.MACDSlow {
		p.addf("indicators.macd_fast must be < macd_slow")
	}
}

func (s *SimulationConfig) validate(p *problems) {
	if s.InitialCash <= 0 {
		p.addf("simulation.initial_cash must be > 0")
	}
	if s.IntervalMS < 100 {
		p.addf("simulation.interval_ms must be >= 100")
	}
}

func (m *ModelConfig) validate(p *problems) {
	if m.Temperature < 0 || m.Temperature > 2 {
		p.addf("model.temperature must be within 0..2")
	}
	if m.MaxRetries < 0 {
		p.addf("model.max_retries must be >= 0")
	}
	if m.RatePerSecond < 0 {
		p.addf("model.rate_per_second must be >= 0")
	}
}

func validateAgents(agents []AgentConfig, p *problems) {
	seen := make(map[string]bool, len(agents))
	for i, a := range agents {
		id := strings.TrimSpace(a.ID)
		switch {
		case id == "":
			p.addf("agents[%d].id is required", i)
		case id == "system":
			p.addf("agents[%d].id %q is reserved", i, id)
		case seen[id]:
			p.addf("agents[%d].id %q is duplicated", i, id)
		}
		seen[id] = true
		if strings.TrimSpace(a.Model) == "" {
			p.addf("agents[%d].model is required", i)
		}
	}
}

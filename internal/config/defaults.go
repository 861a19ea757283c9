package config

import (
	"strings"

	"tradeduel/internal/analysis/indicator"
)

// 默认值常量
const (
	defaultAppEnv          = "dev"
	defaultAppLogLevel     = "info"
	defaultAppHTTPAddr     = ":3000"
	defaultLogMaxSizeMB    = 10
	defaultLogMaxBackups   = 3
	defaultLogMaxAgeDays   = 28
	defaultDataSource      = "synthetic"
	defaultDataPath        = "data/candles.json"
	defaultDataCount       = 120
	defaultDataBasePrice   = 250
	defaultDataFloorPrice  = 50
	defaultBinanceSymbol   = "BTCUSDT"
	defaultBinanceInterval = "1d"
	defaultInitialCash     = 10000
	defaultIntervalMS      = 30000
	defaultMinPrice        = 0.01
	defaultModelAPIURL     = "https://openrouter.ai/api/v1"
	defaultModelReferer    = "http://localhost:3000"
	defaultModelTitle      = "AI Trading Simulation"
	defaultTemperature     = 0.7
	defaultMaxTokens       = 500
	defaultModelTimeout    = 60
	defaultModelRetries    = 2
	defaultModelBurst      = 1
	defaultBreakerFailures = 5
	defaultBreakerCooldown = 30
)

// DefaultAgents 是两个默认对手：Claude 对 GPT-4。
func DefaultAgents() []AgentConfig {
	return []AgentConfig{
		{ID: "modelA", Name: "Claude", Model: "anthropic/claude-3.5-sonnet", Color: "#8B5CF6"},
		{ID: "modelB", Name: "GPT-4", Model: "openai/gpt-4o", Color: "#10B981"},
	}
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults(nil)
	return cfg
}

// applyDefaults 为所有子配置应用默认值，已显式设置的键不覆盖。
func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Data.applyDefaults(keys)
	c.Indicators.applyDefaults(keys)
	c.Simulation.applyDefaults(keys)
	c.Trading.applyDefaults(keys)
	c.Model.applyDefaults(keys)
	if len(c.Agents) == 0 {
		c.Agents = DefaultAgents()
	}
	for i := range c.Agents {
		if strings.TrimSpace(c.Agents[i].Name) == "" {
			c.Agents[i].Name = c.Agents[i].ID
		}
	}
}

func (a *AppConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
		intFieldDefault("app.log_max_size_mb", &a.LogMaxSizeMB, defaultLogMaxSizeMB),
		intFieldDefault("app.log_max_backups", &a.LogMaxBackups, defaultLogMaxBackups),
		intFieldDefault("app.log_max_age_days", &a.LogMaxAgeDays, defaultLogMaxAgeDays),
	)
}

func (d *DataConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("data.source", &d.Source, defaultDataSource),
		stringFieldDefault("data.path", &d.Path, defaultDataPath),
		intFieldDefault("data.count", &d.Count, defaultDataCount),
		floatFieldDefault("data.base_price", &d.BasePrice, defaultDataBasePrice),
		floatFieldDefault("data.floor_price", &d.FloorPrice, defaultDataFloorPrice),
		stringFieldDefault("data.binance.symbol", &d.Binance.Symbol, defaultBinanceSymbol),
		stringFieldDefault("data.binance.interval", &d.Binance.Interval, defaultBinanceInterval),
		intFieldDefault("data.binance.limit", &d.Binance.Limit, defaultDataCount),
	)
	d.Source = strings.ToLower(strings.TrimSpace(d.Source))
}

func (i *IndicatorConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		intFieldDefault("indicators.rsi_period", &i.RSIPeriod, indicator.DefaultRSIPeriod),
		intFieldDefault("indicators.sma_fast", &i.SMAFast, indicator.DefaultSMAFast),
		intFieldDefault("indicators.sma_slow", &i.SMASlow, indicator.DefaultSMASlow),
		intFieldDefault("indicators.macd_fast", &i.MACDFast, indicator.DefaultMACDFast),
		intFieldDefault("indicators.macd_slow", &i.MACDSlow, indicator.DefaultMACDSlow),
		intFieldDefault("indicators.macd_signal", &i.MACDSignal, indicator.DefaultMACDSignal),
	)
}

func (s *SimulationConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		floatFieldDefault("simulation.initial_cash", &s.InitialCash, defaultInitialCash),
		intFieldDefault("simulation.interval_ms", &s.IntervalMS, defaultIntervalMS),
	)
}

func (t *TradingConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		floatFieldDefault("trading.min_price", &t.MinPrice, defaultMinPrice),
	)
}

func (m *ModelConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("model.api_url", &m.APIURL, defaultModelAPIURL),
		stringFieldDefault("model.referer", &m.Referer, defaultModelReferer),
		stringFieldDefault("model.title", &m.Title, defaultModelTitle),
		floatFieldDefault("model.temperature", &m.Temperature, defaultTemperature),
		intFieldDefault("model.max_tokens", &m.MaxTokens, defaultMaxTokens),
		intFieldDefault("model.timeout_seconds", &m.TimeoutSeconds, defaultModelTimeout),
		fieldDefault{
			key:   "model.max_retries",
			apply: func() { m.MaxRetries = defaultModelRetries },
		},
		intFieldDefault("model.burst", &m.Burst, defaultModelBurst),
		intFieldDefault("model.breaker_threshold", &m.BreakerThreshold, defaultBreakerFailures),
		intFieldDefault("model.breaker_cooldown_seconds", &m.BreakerCooldownSeconds, defaultBreakerCooldown),
	)
}

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key:   key,
		need:  func() bool { return strings.TrimSpace(*target) == "" },
		apply: func() { *target = def },
	}
}

func intFieldDefault(key string, target *int, def int) fieldDefault {
	return fieldDefault{
		key:   key,
		need:  func() bool { return *target <= 0 },
		apply: func() { *target = def },
	}
}

func floatFieldDefault(key string, target *float64, def float64) fieldDefault {
	return fieldDefault{
		key:   key,
		need:  func() bool { return *target <= 0 },
		apply: func() { *target = def },
	}
}

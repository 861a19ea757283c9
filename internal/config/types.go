package config

import "strings"

// Config 是 tradeduel 的主配置载体。
type Config struct {
	App        AppConfig        `yaml:"app"`
	Data       DataConfig       `yaml:"data"`
	Indicators IndicatorConfig  `yaml:"indicators"`
	Simulation SimulationConfig `yaml:"simulation"`
	Trading    TradingConfig    `yaml:"trading"`
	Model      ModelConfig      `yaml:"model"`
	Agents     []AgentConfig    `yaml:"agents"`
	Store      StoreConfig      `yaml:"store"`
}

type AppConfig struct {
	Env           string `yaml:"env"`
	LogLevel      string `yaml:"log_level"`
	HTTPAddr      string `yaml:"http_addr"`
	LogPath       string `yaml:"log_path"`
	LogMaxSizeMB  int    `yaml:"log_max_size_mb"`
	LogMaxBackups int    `yaml:"log_max_backups"`
	LogMaxAgeDays int    `yaml:"log_max_age_days"`
	LLMLog        string `yaml:"llm_log_path"`
	LLMDump       bool   `yaml:"llm_dump_payload"`
}

// DataConfig 选择 K 线来源；source 取 synthetic / file / binance。
type DataConfig struct {
	Source     string        `yaml:"source"`
	Path       string        `yaml:"path"`
	Count      int           `yaml:"count"`
	BasePrice  float64       `yaml:"base_price"`
	FloorPrice float64       `yaml:"floor_price"`
	Seed       uint64        `yaml:"seed"`
	Binance    BinanceConfig `yaml:"binance"`
}

type BinanceConfig struct {
	BaseURL  string `yaml:"base_url"`
	Symbol   string `yaml:"symbol"`
	Interval string `yaml:"interval"`
	Limit    int    `yaml:"limit"`
}

type IndicatorConfig struct {
	RSIPeriod  int `yaml:"rsi_period"`
	SMAFast    int `yaml:"sma_fast"`
	SMASlow    int `yaml:"sma_slow"`
	MACDFast   int `yaml:"macd_fast"`
	MACDSlow   int `yaml:"macd_slow"`
	MACDSignal int `yaml:"macd_signal"`
}

type SimulationConfig struct {
	InitialCash float64 `yaml:"initial_cash"`
	IntervalMS  int     `yaml:"interval_ms"`
	AutoPlay    bool    `yaml:"auto_play"`
}

// TradingConfig 对应交易规则；单笔上限固定为 10 股。
type TradingConfig struct {
	MinPrice float64 `yaml:"min_price"`
}

type ModelConfig struct {
	APIURL                 string  `yaml:"api_url"`
	APIKey                 string  `yaml:"api_key"`
	Referer                string  `yaml:"referer"`
	Title                  string  `yaml:"title"`
	Temperature            float64 `yaml:"temperature"`
	MaxTokens              int     `yaml:"max_tokens"`
	TimeoutSeconds         int     `yaml:"timeout_seconds"`
	MaxRetries             int     `yaml:"max_retries"`
	RatePerSecond          float64 `yaml:"rate_per_second"`
	Burst                  int     `yaml:"burst"`
	BreakerThreshold       int     `yaml:"breaker_threshold"`
	BreakerCooldownSeconds int     `yaml:"breaker_cooldown_seconds"`
}

type AgentConfig struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	Model string `yaml:"model"`
	Color string `yaml:"color"`
}

// StoreConfig 中的路径留空即关闭对应的落盘。
type StoreConfig struct {
	SQLitePath  string `yaml:"sqlite_path"`
	JournalPath string `yaml:"journal_path"`
	ChartPath   string `yaml:"chart_path"`
}

type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	_, ok := k[strings.ToLower(strings.TrimSpace(path))]
	return ok
}

type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}

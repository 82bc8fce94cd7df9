package config

import "strings"

// Config 是 equilens 的主配置载体。
type Config struct {
	App         AppConfig         `toml:"app"`
	Feed        FeedConfig        `toml:"feed"`
	Reconstruct ReconstructConfig `toml:"reconstruct"`
	Drawdown    DrawdownConfig    `toml:"drawdown"`
	Analyzer    AnalyzerConfig    `toml:"analyzer"`
	Store       StoreConfig       `toml:"store"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	HTTPAddr string `toml:"http_addr"`
	LogPath  string `toml:"log_path"`
}

// FeedConfig 描述行情 REST 接口的访问方式。
type FeedConfig struct {
	BaseURL         string `toml:"base_url"`
	TimeoutSeconds  int    `toml:"timeout_seconds"`
	RateLimitPerMin int    `toml:"rate_limit_per_min"`
	Timeframe       string `toml:"timeframe"`
}

// ReconstructConfig 是盯市重建的缺省参数，单次提交可覆盖。
type ReconstructConfig struct {
	ContractMultiplier   float64 `toml:"contract_multiplier"`
	SyntheticStepMinutes int     `toml:"synthetic_step_minutes"`
	InitialBalance       float64 `toml:"initial_balance"`
	OffsetHours          float64 `toml:"offset_hours"`     // 文档时钟相对 UTC 的偏移
	InstrumentsPath      string  `toml:"instruments_path"` // 品种目录，空则全部走缺省乘数
}

type DrawdownConfig struct {
	// ThresholdPercent 为回撤事件的开启阈值；显式写 0 是合法配置
	// （任何下跌都开事件），与未配置走默认值是两回事。
	ThresholdPercent float64 `toml:"threshold_percent"`
}

type AnalyzerConfig struct {
	MaxConcurrent int `toml:"max_concurrent"`
}

type StoreConfig struct {
	Path string `toml:"path"`
}

// keySet 用于追踪配置文件中显式设置的字段路径。
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
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault 描述单个字段的默认值设置规则。
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}

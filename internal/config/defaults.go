package config

const (
	defaultEnv      = "dev"
	defaultLogLevel = "info"
	defaultHTTPAddr = ":9985"

	defaultFeedTimeoutSeconds  = 30
	defaultFeedRateLimitPerMin = 240
	defaultTimeframe           = "15m"

	defaultContractMultiplier   = 100_000
	defaultSyntheticStepMinutes = 15
	defaultInitialBalance       = 10_000
	defaultOffsetHours          = 0

	defaultDrawdownThreshold = 5

	defaultMaxConcurrent = 2

	defaultStorePath = "data/equilens.db"
)

// applyDefaults 按 setKeys 填补未显式配置的字段。
// 显式写入的零值（如 drawdown.threshold_percent: 0）会被保留。
func (c *Config) applyDefaults(setKeys keySet) {
	applyFieldDefaults(setKeys, []fieldDefault{
		stringFieldDefault("app.env", &c.App.Env, defaultEnv),
		stringFieldDefault("app.log_level", &c.App.LogLevel, defaultLogLevel),
		stringFieldDefault("app.http_addr", &c.App.HTTPAddr, defaultHTTPAddr),

		intFieldDefault("feed.timeout_seconds", &c.Feed.TimeoutSeconds, defaultFeedTimeoutSeconds),
		intFieldDefault("feed.rate_limit_per_min", &c.Feed.RateLimitPerMin, defaultFeedRateLimitPerMin),
		stringFieldDefault("feed.timeframe", &c.Feed.Timeframe, defaultTimeframe),

		floatFieldDefault("reconstruct.contract_multiplier", &c.Reconstruct.ContractMultiplier, defaultContractMultiplier),
		intFieldDefault("reconstruct.synthetic_step_minutes", &c.Reconstruct.SyntheticStepMinutes, defaultSyntheticStepMinutes),
		floatFieldDefault("reconstruct.initial_balance", &c.Reconstruct.InitialBalance, defaultInitialBalance),
		floatFieldDefault("reconstruct.offset_hours", &c.Reconstruct.OffsetHours, defaultOffsetHours),

		floatFieldDefault("drawdown.threshold_percent", &c.Drawdown.ThresholdPercent, defaultDrawdownThreshold),

		intFieldDefault("analyzer.max_concurrent", &c.Analyzer.MaxConcurrent, defaultMaxConcurrent),

		stringFieldDefault("store.path", &c.Store.Path, defaultStorePath),
	})
}

func applyFieldDefaults(setKeys keySet, defaults []fieldDefault) {
	for _, d := range defaults {
		if setKeys.isSet(d.key) {
			continue
		}
		if d.need == nil || d.need() {
			d.apply()
		}
	}
}

func stringFieldDefault(key string, target *string, value string) fieldDefault {
	return fieldDefault{
		key:   key,
		need:  func() bool { return *target == "" },
		apply: func() { *target = value },
	}
}

func intFieldDefault(key string, target *int, value int) fieldDefault {
	return fieldDefault{
		key:   key,
		need:  func() bool { return *target == 0 },
		apply: func() { *target = value },
	}
}

func floatFieldDefault(key string, target *float64, value float64) fieldDefault {
	return fieldDefault{
		key:   key,
		need:  func() bool { return *target == 0 },
		apply: func() { *target = value },
	}
}

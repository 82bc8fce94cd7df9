package config

import (
	"fmt"
	"strings"

	"equilens/internal/market"
)

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

func validate(c *Config) error {
	level := strings.ToLower(strings.TrimSpace(c.App.LogLevel))
	if !validLogLevels[level] {
		return fmt.Errorf("app.log_level 不支持: %s", c.App.LogLevel)
	}
	if strings.TrimSpace(c.App.HTTPAddr) == "" {
		return fmt.Errorf("app.http_addr 不能为空")
	}
	if c.Feed.TimeoutSeconds <= 0 {
		return fmt.Errorf("feed.timeout_seconds 必须为正数: %d", c.Feed.TimeoutSeconds)
	}
	if c.Feed.RateLimitPerMin <= 0 {
		return fmt.Errorf("feed.rate_limit_per_min 必须为正数: %d", c.Feed.RateLimitPerMin)
	}
	if c.Reconstruct.ContractMultiplier <= 0 {
		return fmt.Errorf("reconstruct.contract_multiplier 必须为正数: %v", c.Reconstruct.ContractMultiplier)
	}
	if c.Reconstruct.SyntheticStepMinutes <= 0 {
		return fmt.Errorf("reconstruct.synthetic_step_minutes 必须为正数: %d", c.Reconstruct.SyntheticStepMinutes)
	}
	if !market.ValidOffset(c.Reconstruct.OffsetHours) {
		return fmt.Errorf("reconstruct.offset_hours 超出范围 [%v, %v]: %v",
			market.MinOffsetHours, market.MaxOffsetHours, c.Reconstruct.OffsetHours)
	}
	if c.Drawdown.ThresholdPercent < 0 {
		return fmt.Errorf("drawdown.threshold_percent 不能为负数: %v", c.Drawdown.ThresholdPercent)
	}
	if c.Analyzer.MaxConcurrent <= 0 {
		return fmt.Errorf("analyzer.max_concurrent 必须为正数: %d", c.Analyzer.MaxConcurrent)
	}
	if strings.TrimSpace(c.Store.Path) == "" {
		return fmt.Errorf("store.path 不能为空")
	}
	return nil
}

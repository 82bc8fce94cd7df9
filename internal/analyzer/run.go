package analyzer

import (
	"equilens/internal/stats"
)

// 运行状态与 store 中的字符串列一一对应。
const (
	StatusPending = "pending"
	StatusRunning = "running"
	StatusDone    = "done"
	StatusFailed  = "failed"
)

// RunConfig 是单次分析的生效参数，提交时由服务端默认值
// 叠加请求覆盖生成，随运行记录持久化。
type RunConfig struct {
	Timeframe            string  `json:"timeframe"`
	InitialBalance       float64 `json:"initial_balance"`
	ContractMultiplier   float64 `json:"contract_multiplier"`
	SyntheticStepMinutes int     `json:"synthetic_step_minutes"`
	OffsetHours          float64 `json:"offset_hours"`
	ThresholdPercent     float64 `json:"threshold_percent"`
}

// RunStats 是运行完成后的统计摘要，序列化进 stats_json。
type RunStats struct {
	Summary            stats.Summary         `json:"summary"`
	MonthlyReturns     []stats.MonthlyReturn `json:"monthly_returns,omitempty"`
	OpenTradeCount     int                   `json:"open_trade_count"`
	EventCount         int                   `json:"event_count"`
	MaxDrawdownPercent float64               `json:"max_drawdown_percent"`
}

// SubmitRequest 携带待分析的原始行与可选的参数覆盖。
// 覆盖字段用指针区分"未提供"与"显式传 0"（阈值 0 是合法值）。
type SubmitRequest struct {
	RowsJSON string

	Timeframe            string
	InitialBalance       *float64
	ContractMultiplier   *float64
	SyntheticStepMinutes *int
	OffsetHours          *float64
	ThresholdPercent     *float64
}

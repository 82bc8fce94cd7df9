package store

// 所有时间列统一存文档时钟的 Unix 毫秒，与内存模型保持同一口径，
// 避免入库/出库时的时区换算。

type runModel struct {
	ID           string `gorm:"column:id;primaryKey"`
	Status       string `gorm:"column:status;index"`
	Timeframe    string `gorm:"column:timeframe"`
	SymbolsJSON  string `gorm:"column:symbols_json;type:TEXT"`
	ConfigJSON   string `gorm:"column:config_json;type:TEXT"`
	StatsJSON    string `gorm:"column:stats_json;type:TEXT"`
	Error        string `gorm:"column:error"`
	SubmittedAt  int64  `gorm:"column:submitted_at"`
	StartedAt    int64  `gorm:"column:started_at"`
	FinishedAt   int64  `gorm:"column:finished_at"`
	TradeCount   int    `gorm:"column:trade_count"`
	WarningCount int    `gorm:"column:warning_count"`
}

func (runModel) TableName() string { return "analysis_runs" }

type tradeModel struct {
	ID          int64   `gorm:"column:id;primaryKey"`
	RunID       string  `gorm:"column:run_id;index"`
	Symbol      string  `gorm:"column:symbol;index"`
	Direction   string  `gorm:"column:direction"`
	Volume      float64 `gorm:"column:volume"`
	OpenTime    int64   `gorm:"column:open_time"`
	CloseTime   int64   `gorm:"column:close_time"`
	OpenPrice   float64 `gorm:"column:open_price"`
	ClosePrice  float64 `gorm:"column:close_price"`
	Commission  float64 `gorm:"column:commission"`
	Swap        float64 `gorm:"column:swap"`
	Profit      float64 `gorm:"column:profit"`
	Realized    float64 `gorm:"column:realized"`
	DealIDOpen  string  `gorm:"column:deal_id_open"`
	DealIDClose string  `gorm:"column:deal_id_close"`
}

func (tradeModel) TableName() string { return "run_trades" }

type openTradeModel struct {
	ID        int64   `gorm:"column:id;primaryKey"`
	RunID     string  `gorm:"column:run_id;index"`
	Symbol    string  `gorm:"column:symbol"`
	Direction string  `gorm:"column:direction"`
	Volume    float64 `gorm:"column:volume"`
	OpenTime  int64   `gorm:"column:open_time"`
	OpenPrice float64 `gorm:"column:open_price"`
	DealID    string  `gorm:"column:deal_id"`
}

func (openTradeModel) TableName() string { return "run_open_trades" }

type warningModel struct {
	ID       int64  `gorm:"column:id;primaryKey"`
	RunID    string `gorm:"column:run_id;index"`
	Code     string `gorm:"column:code"`
	RowIndex int    `gorm:"column:row_index"`
	DealID   string `gorm:"column:deal_id"`
	Symbol   string `gorm:"column:symbol"`
	Message  string `gorm:"column:message"`
}

func (warningModel) TableName() string { return "run_warnings" }

type snapshotModel struct {
	ID               int64   `gorm:"column:id;primaryKey"`
	RunID            string  `gorm:"column:run_id;index:idx_snapshot_run_symbol,priority:1"`
	Symbol           string  `gorm:"column:symbol;index:idx_snapshot_run_symbol,priority:2"`
	TimeMs           int64   `gorm:"column:time_ms"`
	MarketPrice      float64 `gorm:"column:market_price"`
	NetPosition      float64 `gorm:"column:net_position"`
	RealizedPnL      float64 `gorm:"column:realized_pnl"`
	UnrealizedPnL    float64 `gorm:"column:unrealized_pnl"`
	TotalPnL         float64 `gorm:"column:total_pnl"`
	WeightedAvgEntry float64 `gorm:"column:weighted_avg_entry"`
	Balance          float64 `gorm:"column:balance"`
	PeakBalance      float64 `gorm:"column:peak_balance"`
	DrawdownPercent  float64 `gorm:"column:drawdown_percent"`
	OpenTradesJSON   string  `gorm:"column:open_trades_json;type:TEXT"`
}

func (snapshotModel) TableName() string { return "run_snapshots" }

type eventModel struct {
	ID              int64   `gorm:"column:id;primaryKey"`
	RunID           string  `gorm:"column:run_id;index"`
	Symbol          string  `gorm:"column:symbol"`
	StartTime       int64   `gorm:"column:start_time"`
	EndTime         int64   `gorm:"column:end_time"`
	RecoveryTime    int64   `gorm:"column:recovery_time"`
	PeakBalance     float64 `gorm:"column:peak_balance"`
	TroughBalance   float64 `gorm:"column:trough_balance"`
	DrawdownPercent float64 `gorm:"column:drawdown_percent"`
	DrawdownAmount  float64 `gorm:"column:drawdown_amount"`
	DurationHours   float64 `gorm:"column:duration_hours"`
	RecoveryHours   float64 `gorm:"column:recovery_hours"`
	TradesJSON      string  `gorm:"column:trades_json;type:TEXT"`
}

func (eventModel) TableName() string { return "run_drawdown_events" }

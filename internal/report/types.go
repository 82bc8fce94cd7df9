package report

import "errors"

// 报表归一化层的规范类型。上游（格式相关的提取器，属外部协作方）
// 负责把 CSV/HTML/XLSX 解析成 Row；本层只做撮合与清洗。

const (
	EntryIn  = "in"
	EntryOut = "out"

	TypeBuy  = "buy"
	TypeSell = "sell"

	DirectionLong  = "long"
	DirectionShort = "short"
)

// ErrEmptyReport 表示提交的报表没有任何可用行，对本次操作是致命的。
var ErrEmptyReport = errors.New("report contains no rows")

// Row 是单条原始成交腿（开仓或平仓）。时间为文档本地时钟的 Unix 毫秒，
// 数值字段原样保留，不做任何隐式时区平移。
type Row struct {
	Index      int     `json:"index"`
	Symbol     string  `json:"symbol"`
	Entry      string  `json:"entry"` // in / out
	Type       string  `json:"type"`  // buy / sell（out 行反映平仓动作方向）
	Volume     float64 `json:"volume"`
	Price      float64 `json:"price"`
	TimeMs     int64   `json:"time_ms"`
	Commission float64 `json:"commission"`
	Swap       float64 `json:"swap"`
	Profit     float64 `json:"profit"`
	DealID     string  `json:"deal_id"`
	PositionID string  `json:"position_id"`
}

// Trade 是两腿撮合完成的完整交易。
type Trade struct {
	Symbol      string  `json:"symbol"`
	Direction   string  `json:"direction"` // long / short，由开仓腿的 type 推导
	Volume      float64 `json:"volume"`
	OpenTimeMs  int64   `json:"open_time_ms"`
	CloseTimeMs int64   `json:"close_time_ms"`
	OpenPrice   float64 `json:"open_price"`
	ClosePrice  float64 `json:"close_price"`
	Commission  float64 `json:"commission"`
	Swap        float64 `json:"swap"`
	Profit      float64 `json:"profit"`
	DealIDOpen  string  `json:"deal_id_open"`
	DealIDClose string  `json:"deal_id_close"`
}

// Realized 返回该笔交易入账的已实现盈亏。
// 全局统一口径：profit + commission + swap。
func (t Trade) Realized() float64 {
	return t.Profit + t.Commission + t.Swap
}

// OpenTrade 是导出时刻仍未平仓的开仓腿。它不参与重建回放
// （缺少平仓腿，无法入账），单独透出给调用方展示。
type OpenTrade struct {
	Symbol     string  `json:"symbol"`
	Direction  string  `json:"direction"`
	Volume     float64 `json:"volume"`
	OpenTimeMs int64   `json:"open_time_ms"`
	OpenPrice  float64 `json:"open_price"`
	DealID     string  `json:"deal_id"`
}

// Warning 记录被跳过/降级处理的行，带原始行引用便于回溯。
type Warning struct {
	Code     string `json:"code"`
	RowIndex int    `json:"row_index"`
	DealID   string `json:"deal_id,omitempty"`
	Symbol   string `json:"symbol,omitempty"`
	Message  string `json:"message"`
}

const (
	WarnMalformedRow    = "malformed_row"
	WarnUnmatchedClose  = "unmatched_close"
	WarnInvalidInterval = "invalid_interval"
)

// Result 是归一化输出：撮合完成的交易、仍未平仓的腿、全部告警。
type Result struct {
	Trades   []Trade     `json:"trades"`
	Open     []OpenTrade `json:"open_trades"`
	Warnings []Warning   `json:"warnings"`
}

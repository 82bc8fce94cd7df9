package stats

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"equilens/internal/report"
)

// 交易集上的汇总统计：总盈亏、胜率、持仓时长、按月收益。
// 金额累加走 decimal，避免长报表逐笔累加的浮点漂移。

// Summary 汇总一个交易集的收益与风控指标。
type Summary struct {
	TotalProfit       float64 `json:"total_profit"` // profit+commission+swap 口径
	Trades            int     `json:"trades"`
	Wins              int     `json:"wins"`
	Losses            int     `json:"losses"`
	WinRate           float64 `json:"win_rate"`
	AvgHoldingMinutes float64 `json:"avg_holding_minutes"`
}

// MonthlyReturn 是一个自然月（文档时钟）的已实现收益。
type MonthlyReturn struct {
	Year   int     `json:"year"`
	Month  int     `json:"month"`
	Profit float64 `json:"profit"`
	Trades int     `json:"trades"`
}

// Summarize 计算交易集的整体统计。
func Summarize(trades []report.Trade) Summary {
	s := Summary{Trades: len(trades)}
	if len(trades) == 0 {
		return s
	}
	total := decimal.Zero
	holdingMs := int64(0)
	for _, tr := range trades {
		realized := tr.Realized()
		total = total.Add(decimal.NewFromFloat(realized))
		if realized >= 0 {
			s.Wins++
		} else {
			s.Losses++
		}
		holdingMs += tr.CloseTimeMs - tr.OpenTimeMs
	}
	s.TotalProfit, _ = total.Float64()
	s.WinRate = float64(s.Wins) / float64(len(trades))
	s.AvgHoldingMinutes = float64(holdingMs) / float64(len(trades)) / 60_000
	return s
}

// MonthlyReturns 按平仓时间归入自然月（文档时钟），升序返回。
func MonthlyReturns(trades []report.Trade) []MonthlyReturn {
	type bucket struct {
		profit decimal.Decimal
		count  int
	}
	buckets := make(map[int]*bucket)
	for _, tr := range trades {
		ts := time.UnixMilli(tr.CloseTimeMs).UTC()
		key := ts.Year()*100 + int(ts.Month())
		b, ok := buckets[key]
		if !ok {
			b = &bucket{}
			buckets[key] = b
		}
		b.profit = b.profit.Add(decimal.NewFromFloat(tr.Realized()))
		b.count++
	}
	keys := make([]int, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	out := make([]MonthlyReturn, 0, len(keys))
	for _, k := range keys {
		profit, _ := buckets[k].profit.Float64()
		out = append(out, MonthlyReturn{
			Year:   k / 100,
			Month:  k % 100,
			Profit: profit,
			Trades: buckets[k].count,
		})
	}
	return out
}

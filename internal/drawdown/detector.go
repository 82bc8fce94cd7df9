package drawdown

import (
	"github.com/shopspring/decimal"

	"equilens/internal/report"
)

// 回撤事件检测：在余额序列上跑一个 Normal / InDrawdown 两态状态机。
// 事件在首次越过阈值时创建，低点加深时原地更新（不会为同一段
// 回撤生成并行事件），余额回到开启事件时记录的峰值之上时收口。

const millisPerHour = 3_600_000.0

// BalancePoint 是余额序列上的一个点（文档时钟 Unix 毫秒）。
type BalancePoint struct {
	TimeMs  int64   `json:"time_ms"`
	Balance float64 `json:"balance"`
}

// Event 是一段回撤经历。RecoveryTimeMs 为 0 表示序列结束时仍未恢复
// （合法的终态，不是错误）。
type Event struct {
	StartTimeMs     int64   `json:"start_time_ms"`
	EndTimeMs       int64   `json:"end_time_ms"` // 迄今最深点的时间
	RecoveryTimeMs  int64   `json:"recovery_time_ms,omitempty"`
	PeakBalance     float64 `json:"peak_balance"`
	TroughBalance   float64 `json:"trough_balance"`
	DrawdownPercent float64 `json:"drawdown_percent"`
	DrawdownAmount  float64 `json:"drawdown_amount"`
	DurationHours   float64 `json:"duration_hours"`
	RecoveryHours   float64 `json:"recovery_hours,omitempty"`

	TriggeringTrades []report.Trade `json:"triggering_trades,omitempty"`
}

// Detect 扫描余额序列，返回全部超过阈值的回撤事件（按开始时间升序）。
// 阈值 0 合法：任何下跌立即开启事件。阈值比较走 decimal，
// 避免恰好压线时的浮点抖动。
func Detect(series []BalancePoint, thresholdPercent float64) []Event {
	if len(series) == 0 {
		return nil
	}
	if thresholdPercent < 0 {
		thresholdPercent = 0
	}
	threshold := decimal.NewFromFloat(thresholdPercent)

	var events []Event
	var current *Event

	peak := series[0].Balance
	for _, point := range series {
		if current == nil {
			if point.Balance > peak {
				peak = point.Balance
			}
			if peak <= 0 {
				continue
			}
			ddPct := (peak - point.Balance) / peak * 100
			if ddPct < 0 {
				ddPct = 0
			}
			if decimal.NewFromFloat(ddPct).Cmp(threshold) >= 0 && point.Balance < peak {
				events = append(events, Event{
					StartTimeMs:     point.TimeMs,
					EndTimeMs:       point.TimeMs,
					PeakBalance:     peak,
					TroughBalance:   point.Balance,
					DrawdownPercent: ddPct,
					DrawdownAmount:  peak - point.Balance,
				})
				current = &events[len(events)-1]
			}
			continue
		}

		// InDrawdown：回到开启时峰值之上 → 收口；更深 → 原地更新。
		if point.Balance > current.PeakBalance {
			current.RecoveryTimeMs = point.TimeMs
			current.RecoveryHours = hoursBetween(current.StartTimeMs, point.TimeMs)
			current = nil
			peak = point.Balance
			continue
		}
		if point.Balance < current.TroughBalance {
			current.EndTimeMs = point.TimeMs
			current.TroughBalance = point.Balance
			current.DrawdownAmount = current.PeakBalance - point.Balance
			current.DrawdownPercent = current.DrawdownAmount / current.PeakBalance * 100
			current.DurationHours = hoursBetween(current.StartTimeMs, point.TimeMs)
		}
	}
	// 没有 RecoveryTimeMs 的事件保持开放状态返回。
	return events
}

// AttachTrades 为每个事件填充 [start, end] 区间内平仓的交易。
func AttachTrades(events []Event, trades []report.Trade) {
	for i := range events {
		ev := &events[i]
		for _, tr := range trades {
			if tr.CloseTimeMs >= ev.StartTimeMs && tr.CloseTimeMs <= ev.EndTimeMs {
				ev.TriggeringTrades = append(ev.TriggeringTrades, tr)
			}
		}
	}
}

func hoursBetween(startMs, endMs int64) float64 {
	return float64(endMs-startMs) / millisPerHour
}

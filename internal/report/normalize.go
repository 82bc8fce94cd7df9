package report

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

const volumeEps = 1e-9

// Normalize 把乱序的原始行撮合为规范交易集。
//
// 撮合规则（按 symbol 独立进行）：
//  1. out 腿优先用 position_id 精确匹配（两腿都携带时）；
//  2. 否则按 FIFO 找第一条 volume 相等、type 相反的 in 腿
//     （out 行的 type 是平仓动作方向，平多单是 sell，平空单是 buy）；
//  3. 匹配不到的 out 腿记告警后丢弃，绝不中断；
//  4. 收尾时剩余的 in 腿视为导出时仍持仓，转为 OpenTrade。
//
// 输入先按 (time, index) 稳定排序，volume 唯一时结果与输入顺序无关；
// 相同 volume 的并列按出现顺序（FIFO）决定，保持确定性。
func Normalize(rows []Row) Result {
	sorted := make([]Row, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].TimeMs != sorted[j].TimeMs {
			return sorted[i].TimeMs < sorted[j].TimeMs
		}
		return sorted[i].Index < sorted[j].Index
	})

	res := Result{}
	pending := make(map[string][]Row) // symbol -> 未匹配 in 腿，保持先后顺序

	for _, row := range sorted {
		if warn, ok := checkRow(row); !ok {
			res.Warnings = append(res.Warnings, warn)
			continue
		}
		symbol := strings.ToUpper(strings.TrimSpace(row.Symbol))
		switch strings.ToLower(row.Entry) {
		case EntryIn:
			pending[symbol] = append(pending[symbol], row)
		case EntryOut:
			in, rest, found := takeMatch(pending[symbol], row)
			pending[symbol] = rest
			if !found {
				res.Warnings = append(res.Warnings, Warning{
					Code:     WarnUnmatchedClose,
					RowIndex: row.Index,
					DealID:   row.DealID,
					Symbol:   symbol,
					Message:  fmt.Sprintf("平仓腿无对应开仓腿 (volume=%v type=%s)", row.Volume, row.Type),
				})
				continue
			}
			trade, warn, ok := buildTrade(symbol, in, row)
			if !ok {
				res.Warnings = append(res.Warnings, warn)
				continue
			}
			res.Trades = append(res.Trades, trade)
		}
	}

	// 剩余 in 腿 = 导出时仍未平仓。
	symbols := make([]string, 0, len(pending))
	for sym := range pending {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	for _, sym := range symbols {
		for _, in := range pending[sym] {
			res.Open = append(res.Open, OpenTrade{
				Symbol:     sym,
				Direction:  directionOf(in.Type),
				Volume:     in.Volume,
				OpenTimeMs: in.TimeMs,
				OpenPrice:  in.Price,
				DealID:     in.DealID,
			})
		}
	}
	return res
}

// BySymbol 把交易按 symbol 分组，组内保持 close 时间先后。
func BySymbol(trades []Trade) map[string][]Trade {
	out := make(map[string][]Trade)
	for _, tr := range trades {
		out[tr.Symbol] = append(out[tr.Symbol], tr)
	}
	return out
}

func checkRow(row Row) (Warning, bool) {
	reason := ""
	switch {
	case strings.TrimSpace(row.Symbol) == "":
		reason = "symbol 为空"
	case row.Volume <= 0:
		reason = fmt.Sprintf("volume 非法: %v", row.Volume)
	case row.TimeMs <= 0:
		reason = fmt.Sprintf("time 非法: %d", row.TimeMs)
	case row.Price <= 0:
		reason = fmt.Sprintf("price 非法: %v", row.Price)
	default:
		entry := strings.ToLower(row.Entry)
		typ := strings.ToLower(row.Type)
		if entry != EntryIn && entry != EntryOut {
			reason = fmt.Sprintf("entry 标记无法识别: %q", row.Entry)
		} else if typ != TypeBuy && typ != TypeSell {
			reason = fmt.Sprintf("type 标记无法识别: %q", row.Type)
		}
	}
	if reason == "" {
		return Warning{}, true
	}
	return Warning{
		Code:     WarnMalformedRow,
		RowIndex: row.Index,
		DealID:   row.DealID,
		Symbol:   strings.ToUpper(strings.TrimSpace(row.Symbol)),
		Message:  reason,
	}, false
}

// takeMatch 从 pending 中取出与 out 腿匹配的 in 腿。
func takeMatch(pending []Row, out Row) (Row, []Row, bool) {
	byPosition := strings.TrimSpace(out.PositionID) != ""
	for i, in := range pending {
		if byPosition && strings.TrimSpace(in.PositionID) != "" {
			if in.PositionID != out.PositionID {
				continue
			}
		} else {
			if math.Abs(in.Volume-out.Volume) > volumeEps {
				continue
			}
			if !oppositeType(in.Type, out.Type) {
				continue
			}
		}
		rest := make([]Row, 0, len(pending)-1)
		rest = append(rest, pending[:i]...)
		rest = append(rest, pending[i+1:]...)
		return in, rest, true
	}
	return Row{}, pending, false
}

func buildTrade(symbol string, in, out Row) (Trade, Warning, bool) {
	if out.TimeMs < in.TimeMs {
		return Trade{}, Warning{
			Code:     WarnInvalidInterval,
			RowIndex: out.Index,
			DealID:   out.DealID,
			Symbol:   symbol,
			Message:  fmt.Sprintf("close 时间早于 open 时间 (%d < %d)", out.TimeMs, in.TimeMs),
		}, false
	}
	return Trade{
		Symbol:      symbol,
		Direction:   directionOf(in.Type),
		Volume:      in.Volume,
		OpenTimeMs:  in.TimeMs,
		CloseTimeMs: out.TimeMs,
		OpenPrice:   in.Price,
		ClosePrice:  out.Price,
		Commission:  in.Commission + out.Commission,
		Swap:        in.Swap + out.Swap,
		Profit:      in.Profit + out.Profit,
		DealIDOpen:  in.DealID,
		DealIDClose: out.DealID,
	}, Warning{}, true
}

func directionOf(inType string) string {
	if strings.ToLower(inType) == TypeSell {
		return DirectionShort
	}
	return DirectionLong
}

func oppositeType(inType, outType string) bool {
	a := strings.ToLower(inType)
	b := strings.ToLower(outType)
	return (a == TypeBuy && b == TypeSell) || (a == TypeSell && b == TypeBuy)
}

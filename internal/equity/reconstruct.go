package equity

import (
	"errors"
	"sort"
	"time"

	"equilens/internal/market"
	"equilens/internal/report"
)

// 按时间回放交易集，在每个行情时间点上重建账户状态：
// 净头寸、已实现/未实现盈亏、成交量加权开仓均价、峰值余额与回撤。
// 整个过程是输入上的纯折叠，状态全部显式地放在累加器里。

const (
	// DefaultContractMultiplier 是标准外汇手的单位换算系数。
	DefaultContractMultiplier = 100_000
	// DefaultSyntheticStep 是无行情数据时的合成时间轴步长。
	DefaultSyntheticStep = 15 * time.Minute
)

// ErrNoTrades 表示请求的交易集为空，对本次操作是致命的。
var ErrNoTrades = errors.New("no trades to reconstruct")

// Options 控制一次重建。
type Options struct {
	InitialBalance     float64
	ContractMultiplier float64
	SyntheticStep      time.Duration
	// OffsetHours 是文档时钟相对 UTC 的固定偏移；
	// K 线时间戳（UTC）会先换算回文档时钟再作为快照时间。
	OffsetHours float64
}

func (o Options) normalized() Options {
	if o.ContractMultiplier <= 0 {
		o.ContractMultiplier = DefaultContractMultiplier
	}
	if o.SyntheticStep <= 0 {
		o.SyntheticStep = DefaultSyntheticStep
	}
	return o
}

// TradePnL 是某一时刻单笔持仓的盯市明细，供下钻展示。
type TradePnL struct {
	DealIDOpen string  `json:"deal_id_open"`
	Direction  string  `json:"direction"`
	Volume     float64 `json:"volume"`
	OpenPrice  float64 `json:"open_price"`
	Unrealized float64 `json:"unrealized"`
}

// Snapshot 是一个时间点上的账户状态。时间为文档本地时钟的 Unix 毫秒。
// 产出后不可变，下游只读消费。
type Snapshot struct {
	TimeMs           int64      `json:"time_ms"`
	MarketPrice      float64    `json:"market_price"`
	NetPosition      float64    `json:"net_position"`
	RealizedPnL      float64    `json:"realized_pnl"`
	UnrealizedPnL    float64    `json:"unrealized_pnl"`
	TotalPnL         float64    `json:"total_pnl"`
	WeightedAvgEntry float64    `json:"weighted_avg_entry"`
	Balance          float64    `json:"balance"`
	PeakBalance      float64    `json:"peak_balance"`
	DrawdownPercent  float64    `json:"drawdown_percent"`
	OpenTrades       []TradePnL `json:"open_trades,omitempty"`
}

// replayState 是回放累加器。峰值余额显式存放在这里，
// 不依附任何函数级可变字段。
type replayState struct {
	realized       float64
	lastClosePrice float64
	peakBalance    float64

	byOpen   []int // trade 下标，按开仓时间升序
	byClose  []int // trade 下标，按平仓时间升序
	openPtr  int
	closePtr int
	openSet  []int // 当前持仓（保持开仓先后顺序）
}

// Reconstruct 对单一 symbol 的交易集做盯市重建。
//
// 时间轴取 K 线时间戳（换算回文档时钟，过滤掉首笔开仓之前的点）；
// 无可用 K 线时退化为 [firstOpen, lastClose] 上的固定步长合成轴，
// 行情价标记为 0 并按回退规则取价。行情拉取失败走的就是这条路径，
// 降级精度优于没有输出。
func Reconstruct(trades []report.Trade, candles []market.Candle, opts Options) ([]Snapshot, error) {
	if len(trades) == 0 {
		return nil, ErrNoTrades
	}
	opts = opts.normalized()

	firstOpen, lastClose := span(trades)
	axis := candleAxis(candles, firstOpen, opts.OffsetHours)
	if len(axis) == 0 {
		axis = syntheticAxis(firstOpen, lastClose, opts.SyntheticStep)
	}

	st := newReplayState(trades, opts.InitialBalance)
	snapshots := make([]Snapshot, 0, len(axis))
	for _, point := range axis {
		snapshots = append(snapshots, st.step(trades, point.timeMs, point.price, opts))
	}
	return snapshots, nil
}

type axisPoint struct {
	timeMs int64
	price  float64
}

func span(trades []report.Trade) (firstOpen, lastClose int64) {
	firstOpen = trades[0].OpenTimeMs
	lastClose = trades[0].CloseTimeMs
	for _, tr := range trades[1:] {
		if tr.OpenTimeMs < firstOpen {
			firstOpen = tr.OpenTimeMs
		}
		if tr.CloseTimeMs > lastClose {
			lastClose = tr.CloseTimeMs
		}
	}
	return firstOpen, lastClose
}

func candleAxis(candles []market.Candle, firstOpen int64, offsetHours float64) []axisPoint {
	out := make([]axisPoint, 0, len(candles))
	for _, c := range candles {
		ts := market.ToLocalClock(c.CloseTime, offsetHours)
		if ts < firstOpen {
			// 任何持仓出现之前的数据没有意义。
			continue
		}
		out = append(out, axisPoint{timeMs: ts, price: c.Close})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].timeMs < out[j].timeMs })
	return out
}

func syntheticAxis(firstOpen, lastClose int64, step time.Duration) []axisPoint {
	stepMs := step.Milliseconds()
	var out []axisPoint
	for ts := firstOpen; ts < lastClose; ts += stepMs {
		out = append(out, axisPoint{timeMs: ts})
	}
	out = append(out, axisPoint{timeMs: lastClose})
	return out
}

func newReplayState(trades []report.Trade, initialBalance float64) *replayState {
	st := &replayState{
		peakBalance: initialBalance,
		byOpen:      make([]int, len(trades)),
		byClose:     make([]int, len(trades)),
	}
	for i := range trades {
		st.byOpen[i] = i
		st.byClose[i] = i
	}
	sort.SliceStable(st.byOpen, func(a, b int) bool {
		return trades[st.byOpen[a]].OpenTimeMs < trades[st.byOpen[b]].OpenTimeMs
	})
	sort.SliceStable(st.byClose, func(a, b int) bool {
		return trades[st.byClose[a]].CloseTimeMs < trades[st.byClose[b]].CloseTimeMs
	})
	return st
}

// step 把回放推进到时间点 t 并产出快照。
func (st *replayState) step(trades []report.Trade, t int64, candlePrice float64, opts Options) Snapshot {
	// 激活 openTime <= t 的交易。
	for st.openPtr < len(st.byOpen) && trades[st.byOpen[st.openPtr]].OpenTimeMs <= t {
		st.openSet = append(st.openSet, st.byOpen[st.openPtr])
		st.openPtr++
	}
	// 结算 closeTime <= t 的交易（开放区间：closeTime == t 视为已平仓）。
	for st.closePtr < len(st.byClose) && trades[st.byClose[st.closePtr]].CloseTimeMs <= t {
		idx := st.byClose[st.closePtr]
		st.realized += trades[idx].Realized()
		st.lastClosePrice = trades[idx].ClosePrice
		st.closePtr++
		st.openSet = removeIndex(st.openSet, idx)
	}

	var sumVol, sumPxVol, netPos float64
	for _, idx := range st.openSet {
		tr := trades[idx]
		sumVol += tr.Volume
		sumPxVol += tr.OpenPrice * tr.Volume
		if tr.Direction == report.DirectionShort {
			netPos -= tr.Volume
		} else {
			netPos += tr.Volume
		}
	}

	price := candlePrice
	if price <= 0 {
		switch {
		case st.lastClosePrice > 0:
			price = st.lastClosePrice
		case sumVol > 0:
			price = sumPxVol / sumVol
		}
	}

	var unrealized float64
	details := make([]TradePnL, 0, len(st.openSet))
	for _, idx := range st.openSet {
		tr := trades[idx]
		pnl := 0.0
		if price > 0 {
			pnl = (price - tr.OpenPrice) * tr.Volume * opts.ContractMultiplier
			if tr.Direction == report.DirectionShort {
				pnl = -pnl
			}
		}
		unrealized += pnl
		details = append(details, TradePnL{
			DealIDOpen: tr.DealIDOpen,
			Direction:  tr.Direction,
			Volume:     tr.Volume,
			OpenPrice:  tr.OpenPrice,
			Unrealized: pnl,
		})
	}

	total := st.realized + unrealized
	balance := opts.InitialBalance + total
	if balance > st.peakBalance {
		st.peakBalance = balance
	}
	drawdown := 0.0
	if st.peakBalance > 0 {
		drawdown = (st.peakBalance - balance) / st.peakBalance * 100
		if drawdown < 0 {
			drawdown = 0
		}
	}
	avgEntry := 0.0
	if sumVol > 0 {
		avgEntry = sumPxVol / sumVol
	}
	if len(details) == 0 {
		details = nil
	}
	return Snapshot{
		TimeMs:           t,
		MarketPrice:      price,
		NetPosition:      netPos,
		RealizedPnL:      st.realized,
		UnrealizedPnL:    unrealized,
		TotalPnL:         total,
		WeightedAvgEntry: avgEntry,
		Balance:          balance,
		PeakBalance:      st.peakBalance,
		DrawdownPercent:  drawdown,
		OpenTrades:       details,
	}
}

func removeIndex(set []int, idx int) []int {
	for i, v := range set {
		if v == idx {
			return append(set[:i], set[i+1:]...)
		}
	}
	return set
}

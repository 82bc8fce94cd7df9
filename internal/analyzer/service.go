package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"equilens/internal/drawdown"
	"equilens/internal/equity"
	"equilens/internal/feed"
	"equilens/internal/logger"
	"equilens/internal/market"
	"equilens/internal/report"
	"equilens/internal/stats"
	"equilens/internal/store"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ServiceConfig 配置分析服务。
type ServiceConfig struct {
	Store         *store.Store
	Source        feed.Source
	Defaults      RunConfig
	Catalog       *market.Catalog
	MaxConcurrent int
}

// Service 负责接收分析请求、后台执行并落盘结果。
type Service struct {
	store    *store.Store
	source   feed.Source
	defaults RunConfig
	catalog  *market.Catalog

	sem     chan struct{}
	baseCtx context.Context
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store 不能为空")
	}
	if cfg.Source == nil {
		return nil, fmt.Errorf("行情数据源不能为空")
	}
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 2
	}
	return &Service{
		store:    cfg.Store,
		source:   cfg.Source,
		defaults: cfg.Defaults,
		catalog:  cfg.Catalog,
		sem:      make(chan struct{}, maxConcurrent),
		baseCtx:  context.Background(),
	}, nil
}

// SetContext 注入宿主 ctx，用于后台任务取消。
func (s *Service) SetContext(ctx context.Context) {
	if ctx != nil {
		s.baseCtx = ctx
	}
}

func (s *Service) ctx() context.Context {
	if s.baseCtx == nil {
		return context.Background()
	}
	return s.baseCtx
}

// StartRun 校验请求、登记运行记录并立即返回；实际分析在后台执行。
func (s *Service) StartRun(req SubmitRequest) (store.RunRecord, error) {
	if err := report.ValidateRowsJSON(req.RowsJSON); err != nil {
		return store.RunRecord{}, err
	}
	rows, err := report.ParseRowsJSON(req.RowsJSON)
	if err != nil {
		return store.RunRecord{}, err
	}
	cfg, err := s.effectiveConfig(req)
	if err != nil {
		return store.RunRecord{}, err
	}
	configJSON, err := json.Marshal(cfg)
	if err != nil {
		return store.RunRecord{}, err
	}

	rec := store.RunRecord{
		ID:          uuid.NewString(),
		Status:      StatusPending,
		Timeframe:   cfg.Timeframe,
		Symbols:     distinctSymbols(rows),
		Config:      configJSON,
		SubmittedAt: time.Now().UnixMilli(),
	}
	if err := s.store.InsertRun(s.ctx(), rec); err != nil {
		return store.RunRecord{}, err
	}
	logger.Infof("[analyzer] 运行 %s 提交：%d 行，品种=%v", rec.ID, len(rows), rec.Symbols)

	go s.runLoop(rec.ID, rows, cfg)
	return rec, nil
}

// effectiveConfig 用请求覆盖叠加服务端默认值并做参数校验。
func (s *Service) effectiveConfig(req SubmitRequest) (RunConfig, error) {
	cfg := s.defaults
	if req.Timeframe != "" {
		cfg.Timeframe = req.Timeframe
	}
	if req.InitialBalance != nil {
		cfg.InitialBalance = *req.InitialBalance
	}
	if req.ContractMultiplier != nil {
		cfg.ContractMultiplier = *req.ContractMultiplier
	}
	if req.SyntheticStepMinutes != nil {
		cfg.SyntheticStepMinutes = *req.SyntheticStepMinutes
	}
	if req.OffsetHours != nil {
		cfg.OffsetHours = *req.OffsetHours
	}
	if req.ThresholdPercent != nil {
		cfg.ThresholdPercent = *req.ThresholdPercent
	}

	if _, err := feed.ParseTimeframe(cfg.Timeframe); err != nil {
		return RunConfig{}, err
	}
	if cfg.ContractMultiplier <= 0 {
		return RunConfig{}, fmt.Errorf("contract_multiplier 必须为正数: %v", cfg.ContractMultiplier)
	}
	if cfg.SyntheticStepMinutes <= 0 {
		return RunConfig{}, fmt.Errorf("synthetic_step_minutes 必须为正数: %d", cfg.SyntheticStepMinutes)
	}
	if !market.ValidOffset(cfg.OffsetHours) {
		return RunConfig{}, fmt.Errorf("offset_hours 超出范围 [%v, %v]: %v",
			market.MinOffsetHours, market.MaxOffsetHours, cfg.OffsetHours)
	}
	if cfg.ThresholdPercent < 0 {
		return RunConfig{}, fmt.Errorf("threshold_percent 不能为负数: %v", cfg.ThresholdPercent)
	}
	return cfg, nil
}

func (s *Service) runLoop(runID string, rows []report.Row, cfg RunConfig) {
	select {
	case s.sem <- struct{}{}:
	case <-s.ctx().Done():
		s.failRun(runID, "服务已关闭")
		return
	}
	defer func() { <-s.sem }()

	ctx := s.ctx()
	if err := s.store.MarkRunRunning(ctx, runID, time.Now().UnixMilli()); err != nil {
		logger.Errorf("[analyzer] 运行 %s 置为 running 失败: %v", runID, err)
		return
	}

	result := report.Normalize(rows)
	logger.Infof("[analyzer] 运行 %s 归一化完成：成交=%d 未平仓=%d 告警=%d",
		runID, len(result.Trades), len(result.Open), len(result.Warnings))

	snapshots, events, err := s.reconstructAll(ctx, result.Trades, cfg)
	if err != nil {
		s.failRun(runID, err.Error())
		return
	}

	if err := s.store.SaveArtifacts(ctx, runID, result.Trades, result.Open, result.Warnings, snapshots, events); err != nil {
		s.failRun(runID, fmt.Sprintf("结果落盘失败: %v", err))
		return
	}

	runStats := buildRunStats(result, snapshots, events)
	statsJSON, err := json.Marshal(runStats)
	if err != nil {
		s.failRun(runID, fmt.Sprintf("统计序列化失败: %v", err))
		return
	}
	if err := s.store.MarkRunDone(ctx, runID, statsJSON, len(result.Trades), len(result.Warnings), time.Now().UnixMilli()); err != nil {
		logger.Errorf("[analyzer] 运行 %s 置为 done 失败: %v", runID, err)
		return
	}
	logger.Infof("[analyzer] 运行 %s 完成：回撤事件=%d 最大回撤=%.2f%%",
		runID, runStats.EventCount, runStats.MaxDrawdownPercent)
}

// reconstructAll 按品种并发重建权益曲线并检测回撤。
// 行情拉取失败只降级（无 K 线走合成时间轴），不判定运行失败。
func (s *Service) reconstructAll(ctx context.Context, trades []report.Trade, cfg RunConfig) (map[string][]equity.Snapshot, map[string][]drawdown.Event, error) {
	groups := report.BySymbol(trades)
	snapshots := make(map[string][]equity.Snapshot, len(groups))
	events := make(map[string][]drawdown.Event, len(groups))
	if len(groups) == 0 {
		return snapshots, events, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for symbol, symbolTrades := range groups {
		symbol, symbolTrades := symbol, symbolTrades
		g.Go(func() error {
			opts := equity.Options{
				InitialBalance:     cfg.InitialBalance,
				ContractMultiplier: s.catalog.Multiplier(symbol, cfg.ContractMultiplier),
				SyntheticStep:      time.Duration(cfg.SyntheticStepMinutes) * time.Minute,
				OffsetHours:        cfg.OffsetHours,
			}
			candles := s.fetchCandles(gctx, symbol, symbolTrades, cfg)
			snaps, err := equity.Reconstruct(symbolTrades, candles, opts)
			if err != nil {
				return fmt.Errorf("重建失败 (%s): %w", symbol, err)
			}
			evts := drawdown.Detect(balanceSeries(snaps), cfg.ThresholdPercent)
			drawdown.AttachTrades(evts, symbolTrades)

			mu.Lock()
			snapshots[symbol] = snaps
			events[symbol] = evts
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return snapshots, events, nil
}

// fetchCandles 拉取覆盖交易区间的 K 线。区间先换算到行情源时钟。
// 任何失败都返回 nil，让重建走降级路径。
func (s *Service) fetchCandles(ctx context.Context, symbol string, trades []report.Trade, cfg RunConfig) []market.Candle {
	firstOpen, lastClose := tradeSpan(trades)
	req := feed.Request{
		Symbol:    symbol,
		Timeframe: cfg.Timeframe,
		Start:     market.ToFeedClock(firstOpen, cfg.OffsetHours),
		End:       market.ToFeedClock(lastClose, cfg.OffsetHours),
	}
	candles, err := s.source.Fetch(ctx, req)
	if err != nil {
		logger.Warnf("[analyzer] %s 行情拉取失败，降级为合成时间轴: %v", symbol, err)
		return nil
	}
	return candles
}

func tradeSpan(trades []report.Trade) (firstOpen, lastClose int64) {
	for i, t := range trades {
		if i == 0 || t.OpenTimeMs < firstOpen {
			firstOpen = t.OpenTimeMs
		}
		if t.CloseTimeMs > lastClose {
			lastClose = t.CloseTimeMs
		}
	}
	return firstOpen, lastClose
}

func balanceSeries(snaps []equity.Snapshot) []drawdown.BalancePoint {
	series := make([]drawdown.BalancePoint, 0, len(snaps))
	for _, snap := range snaps {
		series = append(series, drawdown.BalancePoint{TimeMs: snap.TimeMs, Balance: snap.Balance})
	}
	return series
}

func buildRunStats(result report.Result, snapshots map[string][]equity.Snapshot, events map[string][]drawdown.Event) RunStats {
	rs := RunStats{
		Summary:        stats.Summarize(result.Trades),
		MonthlyReturns: stats.MonthlyReturns(result.Trades),
		OpenTradeCount: len(result.Open),
	}
	for _, evts := range events {
		rs.EventCount += len(evts)
		for _, e := range evts {
			if e.DrawdownPercent > rs.MaxDrawdownPercent {
				rs.MaxDrawdownPercent = e.DrawdownPercent
			}
		}
	}
	// 未触发事件时退回快照里的逐点回撤峰值
	if rs.EventCount == 0 {
		for _, snaps := range snapshots {
			for _, snap := range snaps {
				if snap.DrawdownPercent > rs.MaxDrawdownPercent {
					rs.MaxDrawdownPercent = snap.DrawdownPercent
				}
			}
		}
	}
	return rs
}

func (s *Service) failRun(runID, message string) {
	logger.Warnf("[analyzer] 运行 %s 失败: %s", runID, message)
	if err := s.store.MarkRunFailed(s.ctx(), runID, message, time.Now().UnixMilli()); err != nil {
		logger.Errorf("[analyzer] 运行 %s 置为 failed 失败: %v", runID, err)
	}
}

func distinctSymbols(rows []report.Row) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, row := range rows {
		if row.Symbol == "" {
			continue
		}
		if _, ok := seen[row.Symbol]; ok {
			continue
		}
		seen[row.Symbol] = struct{}{}
		out = append(out, row.Symbol)
	}
	sort.Strings(out)
	return out
}

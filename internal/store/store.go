package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"equilens/internal/drawdown"
	"equilens/internal/equity"
	"equilens/internal/report"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrRunNotFound 在按 ID 查询不到分析任务时返回。
var ErrRunNotFound = errors.New("store: run not found")

// RunRecord 是分析任务的存储视图。JSON 字段保持原样透传，
// 结构化解释交给 analyzer 层。
type RunRecord struct {
	ID           string          `json:"id"`
	Status       string          `json:"status"`
	Timeframe    string          `json:"timeframe"`
	Symbols      []string        `json:"symbols"`
	Config       json.RawMessage `json:"config,omitempty"`
	Stats        json.RawMessage `json:"stats,omitempty"`
	Error        string          `json:"error,omitempty"`
	SubmittedAt  int64           `json:"submitted_at"`
	StartedAt    int64           `json:"started_at,omitempty"`
	FinishedAt   int64           `json:"finished_at,omitempty"`
	TradeCount   int             `json:"trade_count"`
	WarningCount int             `json:"warning_count"`
}

// Store 基于 Gorm + SQLite 持久化分析任务及其产物。
type Store struct {
	db *gorm.DB
}

// New 打开（必要时创建）SQLite 库并完成建表。
func New(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("store: 数据库路径不能为空")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	models := []interface{}{
		&runModel{},
		&tradeModel{},
		&openTradeModel{},
		&warningModel{},
		&snapshotModel{},
		&eventModel{},
	}
	if err := db.AutoMigrate(models...); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite + WAL：给并发 HTTP 读留少量并行度，同时控制锁竞争。
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &Store{db: db}, nil
}

// Close 关闭底层数据库连接。
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// --------------------- Run 生命周期 -------------------------

func (s *Store) InsertRun(ctx context.Context, rec RunRecord) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("store 未初始化")
	}
	if strings.TrimSpace(rec.ID) == "" {
		return fmt.Errorf("run id 必填")
	}
	m, err := runRecordToModel(rec)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Create(&m).Error
}

func (s *Store) GetRun(ctx context.Context, id string) (RunRecord, error) {
	if s == nil || s.db == nil {
		return RunRecord{}, fmt.Errorf("store 未初始化")
	}
	var m runModel
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return RunRecord{}, ErrRunNotFound
	}
	if err != nil {
		return RunRecord{}, err
	}
	return runModelToRecord(m)
}

// ListRuns 按提交时间倒序返回最近的任务。limit <= 0 时取 50。
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("store 未初始化")
	}
	if limit <= 0 {
		limit = 50
	}
	var models []runModel
	if err := s.db.WithContext(ctx).
		Order("submitted_at DESC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}
	records := make([]RunRecord, 0, len(models))
	for _, m := range models {
		rec, err := runModelToRecord(m)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func (s *Store) MarkRunRunning(ctx context.Context, id string, startedAtMs int64) error {
	return s.updateRun(ctx, id, map[string]interface{}{
		"status":     "running",
		"started_at": startedAtMs,
	})
}

func (s *Store) MarkRunFailed(ctx context.Context, id, errMsg string, finishedAtMs int64) error {
	return s.updateRun(ctx, id, map[string]interface{}{
		"status":      "failed",
		"error":       errMsg,
		"finished_at": finishedAtMs,
	})
}

// MarkRunDone 写入终态与统计摘要。
func (s *Store) MarkRunDone(ctx context.Context, id string, stats json.RawMessage, tradeCount, warningCount int, finishedAtMs int64) error {
	return s.updateRun(ctx, id, map[string]interface{}{
		"status":        "done",
		"stats_json":    string(stats),
		"trade_count":   tradeCount,
		"warning_count": warningCount,
		"finished_at":   finishedAtMs,
	})
}

func (s *Store) updateRun(ctx context.Context, id string, fields map[string]interface{}) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("store 未初始化")
	}
	res := s.db.WithContext(ctx).Model(&runModel{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRunNotFound
	}
	return nil
}

// --------------------- 分析产物 -------------------------

// SaveArtifacts 在单个事务内落盘一次运行的全部产物。
// 重跑同一 run 时先清旧数据，保证幂等。
func (s *Store) SaveArtifacts(ctx context.Context, runID string,
	trades []report.Trade, open []report.OpenTrade, warnings []report.Warning,
	snapshots map[string][]equity.Snapshot, events map[string][]drawdown.Event) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("store 未初始化")
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []interface{}{&tradeModel{}, &openTradeModel{}, &warningModel{}, &snapshotModel{}, &eventModel{}} {
			if err := tx.Where("run_id = ?", runID).Delete(model).Error; err != nil {
				return err
			}
		}
		if len(trades) > 0 {
			models := make([]tradeModel, 0, len(trades))
			for _, t := range trades {
				models = append(models, tradeToModel(runID, t))
			}
			if err := tx.CreateInBatches(&models, 200).Error; err != nil {
				return err
			}
		}
		if len(open) > 0 {
			models := make([]openTradeModel, 0, len(open))
			for _, o := range open {
				models = append(models, openTradeToModel(runID, o))
			}
			if err := tx.CreateInBatches(&models, 200).Error; err != nil {
				return err
			}
		}
		if len(warnings) > 0 {
			models := make([]warningModel, 0, len(warnings))
			for _, w := range warnings {
				models = append(models, warningToModel(runID, w))
			}
			if err := tx.CreateInBatches(&models, 200).Error; err != nil {
				return err
			}
		}
		for symbol, snaps := range snapshots {
			models := make([]snapshotModel, 0, len(snaps))
			for _, snap := range snaps {
				m, err := snapshotToModel(runID, symbol, snap)
				if err != nil {
					return err
				}
				models = append(models, m)
			}
			if len(models) == 0 {
				continue
			}
			if err := tx.CreateInBatches(&models, 200).Error; err != nil {
				return err
			}
		}
		for symbol, evts := range events {
			models := make([]eventModel, 0, len(evts))
			for _, e := range evts {
				m, err := eventToModel(runID, symbol, e)
				if err != nil {
					return err
				}
				models = append(models, m)
			}
			if len(models) == 0 {
				continue
			}
			if err := tx.CreateInBatches(&models, 200).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) ListTrades(ctx context.Context, runID string) ([]report.Trade, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("store 未初始化")
	}
	var models []tradeModel
	if err := s.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("close_time ASC, id ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	trades := make([]report.Trade, 0, len(models))
	for _, m := range models {
		trades = append(trades, tradeModelToTrade(m))
	}
	return trades, nil
}

func (s *Store) ListOpenTrades(ctx context.Context, runID string) ([]report.OpenTrade, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("store 未初始化")
	}
	var models []openTradeModel
	if err := s.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("open_time ASC, id ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	open := make([]report.OpenTrade, 0, len(models))
	for _, m := range models {
		open = append(open, report.OpenTrade{
			Symbol:     m.Symbol,
			Direction:  m.Direction,
			Volume:     m.Volume,
			OpenTimeMs: m.OpenTime,
			OpenPrice:  m.OpenPrice,
			DealID:     m.DealID,
		})
	}
	return open, nil
}

func (s *Store) ListWarnings(ctx context.Context, runID string) ([]report.Warning, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("store 未初始化")
	}
	var models []warningModel
	if err := s.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("row_index ASC, id ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	warnings := make([]report.Warning, 0, len(models))
	for _, m := range models {
		warnings = append(warnings, report.Warning{
			Code:     m.Code,
			RowIndex: m.RowIndex,
			DealID:   m.DealID,
			Symbol:   m.Symbol,
			Message:  m.Message,
		})
	}
	return warnings, nil
}

// ListSnapshots 返回某次运行的权益曲线。symbol 为空时返回全部品种。
func (s *Store) ListSnapshots(ctx context.Context, runID, symbol string) (map[string][]equity.Snapshot, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("store 未初始化")
	}
	query := s.db.WithContext(ctx).Where("run_id = ?", runID)
	if symbol != "" {
		query = query.Where("symbol = ?", symbol)
	}
	var models []snapshotModel
	if err := query.Order("symbol ASC, time_ms ASC, id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make(map[string][]equity.Snapshot)
	for _, m := range models {
		snap, err := snapshotModelToSnapshot(m)
		if err != nil {
			return nil, err
		}
		out[m.Symbol] = append(out[m.Symbol], snap)
	}
	return out, nil
}

func (s *Store) ListEvents(ctx context.Context, runID string) (map[string][]drawdown.Event, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("store 未初始化")
	}
	var models []eventModel
	if err := s.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("symbol ASC, start_time ASC, id ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make(map[string][]drawdown.Event)
	for _, m := range models {
		evt, err := eventModelToEvent(m)
		if err != nil {
			return nil, err
		}
		out[m.Symbol] = append(out[m.Symbol], evt)
	}
	return out, nil
}

// --------------------- 模型转换 -------------------------

func runRecordToModel(rec RunRecord) (runModel, error) {
	symbols, err := json.Marshal(rec.Symbols)
	if err != nil {
		return runModel{}, err
	}
	return runModel{
		ID:           rec.ID,
		Status:       rec.Status,
		Timeframe:    rec.Timeframe,
		SymbolsJSON:  string(symbols),
		ConfigJSON:   string(rec.Config),
		StatsJSON:    string(rec.Stats),
		Error:        rec.Error,
		SubmittedAt:  rec.SubmittedAt,
		StartedAt:    rec.StartedAt,
		FinishedAt:   rec.FinishedAt,
		TradeCount:   rec.TradeCount,
		WarningCount: rec.WarningCount,
	}, nil
}

func runModelToRecord(m runModel) (RunRecord, error) {
	rec := RunRecord{
		ID:           m.ID,
		Status:       m.Status,
		Timeframe:    m.Timeframe,
		Error:        m.Error,
		SubmittedAt:  m.SubmittedAt,
		StartedAt:    m.StartedAt,
		FinishedAt:   m.FinishedAt,
		TradeCount:   m.TradeCount,
		WarningCount: m.WarningCount,
	}
	if m.SymbolsJSON != "" {
		if err := json.Unmarshal([]byte(m.SymbolsJSON), &rec.Symbols); err != nil {
			return RunRecord{}, fmt.Errorf("解析 symbols_json 失败 (run %s): %w", m.ID, err)
		}
	}
	if m.ConfigJSON != "" {
		rec.Config = json.RawMessage(m.ConfigJSON)
	}
	if m.StatsJSON != "" {
		rec.Stats = json.RawMessage(m.StatsJSON)
	}
	return rec, nil
}

func tradeToModel(runID string, t report.Trade) tradeModel {
	return tradeModel{
		RunID:       runID,
		Symbol:      t.Symbol,
		Direction:   t.Direction,
		Volume:      t.Volume,
		OpenTime:    t.OpenTimeMs,
		CloseTime:   t.CloseTimeMs,
		OpenPrice:   t.OpenPrice,
		ClosePrice:  t.ClosePrice,
		Commission:  t.Commission,
		Swap:        t.Swap,
		Profit:      t.Profit,
		Realized:    t.Realized(),
		DealIDOpen:  t.DealIDOpen,
		DealIDClose: t.DealIDClose,
	}
}

func tradeModelToTrade(m tradeModel) report.Trade {
	return report.Trade{
		Symbol:      m.Symbol,
		Direction:   m.Direction,
		Volume:      m.Volume,
		OpenTimeMs:  m.OpenTime,
		CloseTimeMs: m.CloseTime,
		OpenPrice:   m.OpenPrice,
		ClosePrice:  m.ClosePrice,
		Commission:  m.Commission,
		Swap:        m.Swap,
		Profit:      m.Profit,
		DealIDOpen:  m.DealIDOpen,
		DealIDClose: m.DealIDClose,
	}
}

func openTradeToModel(runID string, o report.OpenTrade) openTradeModel {
	return openTradeModel{
		RunID:     runID,
		Symbol:    o.Symbol,
		Direction: o.Direction,
		Volume:    o.Volume,
		OpenTime:  o.OpenTimeMs,
		OpenPrice: o.OpenPrice,
		DealID:    o.DealID,
	}
}

func warningToModel(runID string, w report.Warning) warningModel {
	return warningModel{
		RunID:    runID,
		Code:     w.Code,
		RowIndex: w.RowIndex,
		DealID:   w.DealID,
		Symbol:   w.Symbol,
		Message:  w.Message,
	}
}

func snapshotToModel(runID, symbol string, snap equity.Snapshot) (snapshotModel, error) {
	m := snapshotModel{
		RunID:            runID,
		Symbol:           symbol,
		TimeMs:           snap.TimeMs,
		MarketPrice:      snap.MarketPrice,
		NetPosition:      snap.NetPosition,
		RealizedPnL:      snap.RealizedPnL,
		UnrealizedPnL:    snap.UnrealizedPnL,
		TotalPnL:         snap.TotalPnL,
		WeightedAvgEntry: snap.WeightedAvgEntry,
		Balance:          snap.Balance,
		PeakBalance:      snap.PeakBalance,
		DrawdownPercent:  snap.DrawdownPercent,
	}
	if len(snap.OpenTrades) > 0 {
		raw, err := json.Marshal(snap.OpenTrades)
		if err != nil {
			return snapshotModel{}, err
		}
		m.OpenTradesJSON = string(raw)
	}
	return m, nil
}

func snapshotModelToSnapshot(m snapshotModel) (equity.Snapshot, error) {
	snap := equity.Snapshot{
		TimeMs:           m.TimeMs,
		MarketPrice:      m.MarketPrice,
		NetPosition:      m.NetPosition,
		RealizedPnL:      m.RealizedPnL,
		UnrealizedPnL:    m.UnrealizedPnL,
		TotalPnL:         m.TotalPnL,
		WeightedAvgEntry: m.WeightedAvgEntry,
		Balance:          m.Balance,
		PeakBalance:      m.PeakBalance,
		DrawdownPercent:  m.DrawdownPercent,
	}
	if m.OpenTradesJSON != "" {
		if err := json.Unmarshal([]byte(m.OpenTradesJSON), &snap.OpenTrades); err != nil {
			return equity.Snapshot{}, fmt.Errorf("解析 open_trades_json 失败: %w", err)
		}
	}
	return snap, nil
}

func eventToModel(runID, symbol string, e drawdown.Event) (eventModel, error) {
	m := eventModel{
		RunID:           runID,
		Symbol:          symbol,
		StartTime:       e.StartTimeMs,
		EndTime:         e.EndTimeMs,
		RecoveryTime:    e.RecoveryTimeMs,
		PeakBalance:     e.PeakBalance,
		TroughBalance:   e.TroughBalance,
		DrawdownPercent: e.DrawdownPercent,
		DrawdownAmount:  e.DrawdownAmount,
		DurationHours:   e.DurationHours,
		RecoveryHours:   e.RecoveryHours,
	}
	if len(e.TriggeringTrades) > 0 {
		raw, err := json.Marshal(e.TriggeringTrades)
		if err != nil {
			return eventModel{}, err
		}
		m.TradesJSON = string(raw)
	}
	return m, nil
}

func eventModelToEvent(m eventModel) (drawdown.Event, error) {
	evt := drawdown.Event{
		StartTimeMs:     m.StartTime,
		EndTimeMs:       m.EndTime,
		RecoveryTimeMs:  m.RecoveryTime,
		PeakBalance:     m.PeakBalance,
		TroughBalance:   m.TroughBalance,
		DrawdownPercent: m.DrawdownPercent,
		DrawdownAmount:  m.DrawdownAmount,
		DurationHours:   m.DurationHours,
		RecoveryHours:   m.RecoveryHours,
	}
	if m.TradesJSON != "" {
		if err := json.Unmarshal([]byte(m.TradesJSON), &evt.TriggeringTrades); err != nil {
			return drawdown.Event{}, fmt.Errorf("解析 trades_json 失败: %w", err)
		}
	}
	return evt, nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

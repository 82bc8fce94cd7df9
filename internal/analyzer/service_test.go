package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"equilens/internal/feed"
	"equilens/internal/market"
	"equilens/internal/report"
	"equilens/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSource struct {
	mock.Mock
}

func (m *MockSource) Fetch(ctx context.Context, req feed.Request) ([]market.Candle, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]market.Candle), args.Error(1)
}

func (m *MockSource) Name() string { return "mock" }

func testDefaults() RunConfig {
	return RunConfig{
		Timeframe:            "15m",
		InitialBalance:       10_000,
		ContractMultiplier:   100_000,
		SyntheticStepMinutes: 15,
		OffsetHours:          0,
		ThresholdPercent:     5,
	}
}

func newTestService(t *testing.T, source feed.Source) (*Service, *store.Store) {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "analyzer.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	svc, err := NewService(ServiceConfig{
		Store:         st,
		Source:        source,
		Defaults:      testDefaults(),
		MaxConcurrent: 2,
	})
	require.NoError(t, err)
	return svc, st
}

// 单笔 BUY 开平：0.5 手 2000 → 2010，profit 500，commission -2。
const singleTradeRows = `[
	{"index":0,"symbol":"XAUUSD","entry":"in","type":"buy","volume":0.5,"price":2000,"time_ms":1700000000000,"deal_id":"d1","position_id":"p1"},
	{"index":1,"symbol":"XAUUSD","entry":"out","type":"sell","volume":0.5,"price":2010,"time_ms":1700003600000,"profit":500,"commission":-2,"deal_id":"d2","position_id":"p1"}
]`

func waitForRun(t *testing.T, st *store.Store, id string) store.RunRecord {
	t.Helper()
	var rec store.RunRecord
	require.Eventually(t, func() bool {
		var err error
		rec, err = st.GetRun(context.Background(), id)
		if err != nil {
			return false
		}
		return rec.Status == StatusDone || rec.Status == StatusFailed
	}, 5*time.Second, 20*time.Millisecond)
	return rec
}

func TestStartRunCompletes(t *testing.T) {
	source := new(MockSource)
	source.On("Fetch", mock.Anything, mock.Anything).Return(nil, errors.New("feed down"))
	svc, st := newTestService(t, source)

	run, err := svc.StartRun(SubmitRequest{RowsJSON: singleTradeRows})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, run.Status)
	assert.Equal(t, []string{"XAUUSD"}, run.Symbols)

	final := waitForRun(t, st, run.ID)
	require.Equal(t, StatusDone, final.Status, "error: %s", final.Error)
	assert.Equal(t, 1, final.TradeCount)
	assert.Equal(t, 0, final.WarningCount)

	var rs RunStats
	require.NoError(t, json.Unmarshal(final.Stats, &rs))
	assert.InDelta(t, 498, rs.Summary.TotalProfit, 1e-9)
	assert.Equal(t, 1, rs.Summary.Trades)

	// 行情不可用：降级为合成时间轴，快照仍然产出
	snaps, err := st.ListSnapshots(context.Background(), run.ID, "XAUUSD")
	require.NoError(t, err)
	require.NotEmpty(t, snaps["XAUUSD"])
	last := snaps["XAUUSD"][len(snaps["XAUUSD"])-1]
	assert.InDelta(t, 10_498, last.Balance, 1e-6)
}

func TestStartRunWithCandles(t *testing.T) {
	source := new(MockSource)
	source.On("Fetch", mock.Anything, mock.MatchedBy(func(req feed.Request) bool {
		return req.Symbol == "XAUUSD" && req.Timeframe == "15m"
	})).Return([]market.Candle{
		{OpenTime: 1700000000000, CloseTime: 1700000000000, Close: 2002},
		{OpenTime: 1700003600000, CloseTime: 1700003600000, Close: 2010},
	}, nil)
	svc, st := newTestService(t, source)

	run, err := svc.StartRun(SubmitRequest{RowsJSON: singleTradeRows})
	require.NoError(t, err)
	final := waitForRun(t, st, run.ID)
	require.Equal(t, StatusDone, final.Status, "error: %s", final.Error)

	snaps, err := st.ListSnapshots(context.Background(), run.ID, "XAUUSD")
	require.NoError(t, err)
	require.Len(t, snaps["XAUUSD"], 2)
	assert.InDelta(t, 2002, snaps["XAUUSD"][0].MarketPrice, 1e-9)
	source.AssertExpectations(t)
}

func TestStartRunValidation(t *testing.T) {
	svc, _ := newTestService(t, new(MockSource))

	_, err := svc.StartRun(SubmitRequest{RowsJSON: `[]`})
	assert.ErrorIs(t, err, report.ErrEmptyReport)

	_, err = svc.StartRun(SubmitRequest{RowsJSON: `{"not":"array"}`})
	assert.Error(t, err)

	_, err = svc.StartRun(SubmitRequest{RowsJSON: singleTradeRows, Timeframe: "7m"})
	assert.Error(t, err)

	bad := -1.0
	_, err = svc.StartRun(SubmitRequest{RowsJSON: singleTradeRows, ThresholdPercent: &bad})
	assert.Error(t, err)

	offset := 20.0
	_, err = svc.StartRun(SubmitRequest{RowsJSON: singleTradeRows, OffsetHours: &offset})
	assert.Error(t, err)
}

func TestEffectiveConfigOverrides(t *testing.T) {
	svc, _ := newTestService(t, new(MockSource))

	zero := 0.0
	balance := 50_000.0
	cfg, err := svc.effectiveConfig(SubmitRequest{
		RowsJSON:         singleTradeRows,
		Timeframe:        "1h",
		InitialBalance:   &balance,
		ThresholdPercent: &zero,
	})
	require.NoError(t, err)
	assert.Equal(t, "1h", cfg.Timeframe)
	assert.Equal(t, 50_000.0, cfg.InitialBalance)
	// 显式传 0 与未提供不同：0 表示任何下跌都开事件
	assert.Equal(t, 0.0, cfg.ThresholdPercent)

	cfg, err = svc.effectiveConfig(SubmitRequest{RowsJSON: singleTradeRows})
	require.NoError(t, err)
	assert.Equal(t, 5.0, cfg.ThresholdPercent)
}

func TestTradeSpan(t *testing.T) {
	trades := []report.Trade{
		{OpenTimeMs: 500, CloseTimeMs: 900},
		{OpenTimeMs: 100, CloseTimeMs: 1500},
		{OpenTimeMs: 300, CloseTimeMs: 700},
	}
	first, last := tradeSpan(trades)
	assert.Equal(t, int64(100), first)
	assert.Equal(t, int64(1500), last)
}

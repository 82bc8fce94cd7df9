package analyzer

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"equilens/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func newTestHTTPServer(t *testing.T) (*HTTPServer, *Service) {
	t.Helper()
	source := new(MockSource)
	source.On("Fetch", mock.Anything, mock.Anything).Return(nil, errors.New("feed down")).Maybe()
	svc, st := newTestService(t, source)
	srv, err := NewHTTPServer(HTTPConfig{Addr: ":0", Svc: svc, Store: st})
	require.NoError(t, err)
	return srv, svc
}

func doRequest(srv *HTTPServer, method, path, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestHTTPHealth(t *testing.T) {
	srv, _ := newTestHTTPServer(t)
	rec := doRequest(srv, http.MethodGet, "/api/analysis/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", gjson.Get(rec.Body.String(), "status").String())
}

func TestHTTPRunFlow(t *testing.T) {
	srv, _ := newTestHTTPServer(t)

	body := `{"rows":` + singleTradeRows + `,"threshold_percent":0}`
	rec := doRequest(srv, http.MethodPost, "/api/analysis/runs", body)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	runID := gjson.Get(rec.Body.String(), "run.id").String()
	require.NotEmpty(t, runID)

	require.Eventually(t, func() bool {
		rec := doRequest(srv, http.MethodGet, "/api/analysis/runs/"+runID, "")
		status := gjson.Get(rec.Body.String(), "run.status").String()
		return status == StatusDone || status == StatusFailed
	}, 5*time.Second, 20*time.Millisecond)

	rec = doRequest(srv, http.MethodGet, "/api/analysis/runs/"+runID, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, StatusDone, gjson.Get(rec.Body.String(), "run.status").String())

	rec = doRequest(srv, http.MethodGet, "/api/analysis/runs/"+runID+"/trades", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), gjson.Get(rec.Body.String(), "trades.#").Int())

	rec = doRequest(srv, http.MethodGet, "/api/analysis/runs/"+runID+"/snapshots?symbol=XAUUSD", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, gjson.Get(rec.Body.String(), "snapshots.XAUUSD.#").Int() > 0)

	rec = doRequest(srv, http.MethodGet, "/api/analysis/runs/"+runID+"/stats", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.InDelta(t, 498, gjson.Get(rec.Body.String(), "stats.summary.total_profit").Float(), 1e-9)

	rec = doRequest(srv, http.MethodGet, "/api/analysis/runs", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), gjson.Get(rec.Body.String(), "runs.#").Int())
}

func TestHTTPRunNotFound(t *testing.T) {
	srv, _ := newTestHTTPServer(t)
	rec := doRequest(srv, http.MethodGet, "/api/analysis/runs/ghost", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHTTPRunStartRejectsEmptyReport(t *testing.T) {
	srv, _ := newTestHTTPServer(t)
	rec := doRequest(srv, http.MethodPost, "/api/analysis/runs", `{"rows":[]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHTTPRunStartRejectsBadBody(t *testing.T) {
	srv, _ := newTestHTTPServer(t)
	rec := doRequest(srv, http.MethodPost, "/api/analysis/runs", `{"timeframe":"15m"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHTTPStatsBeforeDone(t *testing.T) {
	srv, svc := newTestHTTPServer(t)

	// 直接插入一条 pending 运行，stats 查询应得 409
	require.NoError(t, svc.store.InsertRun(context.Background(), store.RunRecord{
		ID:          "pending-run",
		Status:      StatusPending,
		SubmittedAt: time.Now().UnixMilli(),
	}))
	resp := doRequest(srv, http.MethodGet, "/api/analysis/runs/pending-run/stats", "")
	assert.Equal(t, http.StatusConflict, resp.Code)
}

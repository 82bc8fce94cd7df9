package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeCandlesArray(t *testing.T) {
	body := `[
	  {"time":"2024-01-10T10:00:00Z","open":1.1,"high":1.2,"low":1.0,"close":1.15,"volume":100},
	  {"time":"2024-01-10T10:15:00Z","open":1.15,"high":1.3,"low":1.1,"close":1.25}
	]`
	candles, err := DecodeCandles(body)
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.Equal(t, time.Date(2024, 1, 10, 10, 0, 0, 0, time.UTC).UnixMilli(), candles[0].OpenTime)
	assert.Equal(t, 1.15, candles[0].Close)
	assert.Equal(t, 100.0, candles[0].Volume)
}

func TestDecodeCandlesEnvelope(t *testing.T) {
	body := `{"data":[{"time":1704880800000,"open":1,"high":2,"low":0.5,"close":1.5}]}`
	candles, err := DecodeCandles(body)
	require.NoError(t, err)
	require.Len(t, candles, 1)
	assert.Equal(t, int64(1704880800000), candles[0].OpenTime)
}

func TestDecodeCandlesNDJSON(t *testing.T) {
	body := "{\"time\":\"2024-01-10 10:00:00\",\"close\":1.2}\n\n{\"time\":\"2024-01-10 10:15:00\",\"close\":1.3}\n"
	candles, err := DecodeCandles(body)
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.Equal(t, 1.3, candles[1].Close)
}

func TestDecodeCandlesMalformed(t *testing.T) {
	_, err := DecodeCandles(`{"data":"oops"}`)
	assert.Error(t, err)
	_, err = DecodeCandles("plain text body")
	assert.Error(t, err)
	_, err = DecodeCandles(`[{"close":1.5}]`)
	assert.Error(t, err)
}

func TestDecodeCandlesEmpty(t *testing.T) {
	candles, err := DecodeCandles("")
	assert.NoError(t, err)
	assert.Empty(t, candles)
}

func TestClientFetch(t *testing.T) {
	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/market-data/get", r.URL.Path)
		gotQuery = map[string]string{
			"from_date": r.URL.Query().Get("from_date"),
			"to_date":   r.URL.Query().Get("to_date"),
			"timeframe": r.URL.Query().Get("timeframe"),
			"symbols":   r.URL.Query().Get("symbols"),
		}
		w.Header().Set("Content-Type", "application/json")
		// 响应覆盖整天，超出请求毫秒区间的部分应被裁剪。
		_, _ = w.Write([]byte(`[
		  {"time":"2024-03-05T09:45:00Z","close":1.0},
		  {"time":"2024-03-05T10:00:00Z","close":1.1},
		  {"time":"2024-03-05T10:15:00Z","close":1.2},
		  {"time":"2024-03-05T23:45:00Z","close":1.3}
		]`))
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL, RateLimitPerMin: 600})
	start := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC).UnixMilli()
	end := time.Date(2024, 3, 5, 11, 0, 0, 0, time.UTC).UnixMilli()
	candles, err := c.Fetch(context.Background(), Request{
		Symbol:    "EURUSD",
		Timeframe: "15m",
		Start:     start,
		End:       end,
	})
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.Equal(t, 1.1, candles[0].Close)
	assert.Equal(t, 1.2, candles[1].Close)

	assert.Equal(t, "2024-03-05", gotQuery["from_date"])
	assert.Equal(t, "2024-03-05", gotQuery["to_date"])
	assert.Equal(t, "M15", gotQuery["timeframe"])
	assert.Equal(t, "EURUSD", gotQuery["symbols"])
}

func TestClientFetchHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL, RateLimitPerMin: 600})
	_, err := c.Fetch(context.Background(), Request{Symbol: "EURUSD", Timeframe: "15m", Start: 1, End: 2})
	assert.Error(t, err)
}

func TestParseTimeframe(t *testing.T) {
	tf, err := ParseTimeframe("M15")
	require.NoError(t, err)
	assert.Equal(t, "15m", tf.Key)
	assert.Equal(t, 15*time.Minute, tf.Duration)

	_, err = ParseTimeframe("2w")
	assert.Error(t, err)

	assert.NotEmpty(t, SupportedTimeframes())
}

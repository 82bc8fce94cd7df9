package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRowsJSON(t *testing.T) {
	assert.ErrorIs(t, ValidateRowsJSON(""), ErrEmptyReport)
	assert.ErrorIs(t, ValidateRowsJSON("[]"), ErrEmptyReport)
	assert.Error(t, ValidateRowsJSON("{not json"))
	assert.Error(t, ValidateRowsJSON(`{"symbol":"EURUSD"}`))
	assert.Error(t, ValidateRowsJSON(`[1,2,3]`))
	assert.NoError(t, ValidateRowsJSON(`[{"symbol":"EURUSD"}]`))
}

func TestParseRowsJSON(t *testing.T) {
	raw := `[
	  {"symbol":"EURUSD","entry":"in","type":"buy","volume":1.5,"price":"1.1000","time":1700000000000,"deal_id":"10","position_id":"p1"},
	  {"symbol":"EURUSD","entry":"out","type":"sell","volume":1.5,"price":1.1050,"time":"2023-11-15T08:30:00","commission":-2,"swap":-0.5,"profit":750,"deal_id":"11","position_id":"p1"}
	]`
	rows, err := ParseRowsJSON(raw)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, 0, rows[0].Index)
	assert.Equal(t, "EURUSD", rows[0].Symbol)
	assert.Equal(t, 1.5, rows[0].Volume)
	assert.Equal(t, 1.1, rows[0].Price) // 字符串数字也接受
	assert.Equal(t, int64(1700000000000), rows[0].TimeMs)

	// ISO 字符串按字面时钟读取，不换算时区。
	want := time.Date(2023, 11, 15, 8, 30, 0, 0, time.UTC).UnixMilli()
	assert.Equal(t, want, rows[1].TimeMs)
	assert.Equal(t, -2.0, rows[1].Commission)
	assert.Equal(t, 750.0, rows[1].Profit)
}

func TestParseRowsJSONKeepsExplicitIndex(t *testing.T) {
	rows, err := ParseRowsJSON(`[{"index":7,"symbol":"EURUSD"}]`)
	require.NoError(t, err)
	assert.Equal(t, 7, rows[0].Index)
}

func TestParseTimeLiteralClock(t *testing.T) {
	// 带时区标记的 RFC3339 同样按字面时钟处理。
	rows, err := ParseRowsJSON(`[{"symbol":"X","time":"2024-02-01T12:00:00+03:00"}]`)
	require.NoError(t, err)
	want := time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC).UnixMilli()
	assert.Equal(t, want, rows[0].TimeMs)
}

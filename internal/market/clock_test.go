package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClockRoundTrip(t *testing.T) {
	instants := []int64{
		0,
		time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC).UnixMilli(),
		time.Date(1999, 12, 31, 23, 59, 59, 0, time.UTC).UnixMilli(),
		time.Date(2031, 7, 1, 0, 0, 0, 500_000_000, time.UTC).UnixMilli(),
	}
	offsets := []float64{-12, -9.5, -5, -0.25, 0, 1, 2, 3.5, 5.75, 8, 12.75, 14}
	for _, ts := range instants {
		for _, h := range offsets {
			feed := ToFeedClock(ts, h)
			back := ToLocalClock(feed, h)
			assert.Equal(t, ts, back, "offset=%v ts=%d", h, ts)
		}
	}
}

func TestClockDirection(t *testing.T) {
	// 文档时钟领先 UTC 两小时：本地 12:00 对应行情源 10:00。
	local := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC).UnixMilli()
	feed := ToFeedClock(local, 2)
	assert.Equal(t, time.Date(2024, 1, 10, 10, 0, 0, 0, time.UTC).UnixMilli(), feed)
	assert.Equal(t, local, ToLocalClock(feed, 2))
}

func TestClockFractionalOffsetExact(t *testing.T) {
	// 尼泊尔式 5.75 小时偏移必须是整毫秒，否则往返会漂移。
	local := int64(1_700_000_123_456)
	feed := ToFeedClock(local, 5.75)
	assert.Equal(t, local-20_700_000, feed)
}

func TestValidOffset(t *testing.T) {
	assert.True(t, ValidOffset(0))
	assert.True(t, ValidOffset(-12))
	assert.True(t, ValidOffset(14))
	assert.True(t, ValidOffset(5.75))
	assert.False(t, ValidOffset(-12.5))
	assert.False(t, ValidOffset(14.01))
}

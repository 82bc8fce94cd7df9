package market

import "math"

// 报表时钟与行情时钟的换算。报表时间戳按导出文档声明的固定偏移
// （用户指定，非政治时区，不做 DST 调整）记录；行情源一律 UTC。
// 两个方向共用同一份毫秒偏移，保证互为精确逆运算。

const (
	// MinOffsetHours / MaxOffsetHours 为允许的文档时钟偏移范围。
	MinOffsetHours = -12.0
	MaxOffsetHours = 14.0

	millisPerHour = 3_600_000
)

// ValidOffset 判断偏移是否落在 [-12, 14] 小时内。
func ValidOffset(offsetHours float64) bool {
	if math.IsNaN(offsetHours) || math.IsInf(offsetHours, 0) {
		return false
	}
	return offsetHours >= MinOffsetHours && offsetHours <= MaxOffsetHours
}

func offsetMillis(offsetHours float64) int64 {
	return int64(math.Round(offsetHours * millisPerHour))
}

// ToFeedClock 将文档本地时间戳（Unix ms）换算为行情源 UTC 时间戳。
func ToFeedClock(localMs int64, offsetHours float64) int64 {
	return localMs - offsetMillis(offsetHours)
}

// ToLocalClock 将行情源 UTC 时间戳换算回文档本地时钟。
func ToLocalClock(feedMs int64, offsetHours float64) int64 {
	return feedMs + offsetMillis(offsetHours)
}

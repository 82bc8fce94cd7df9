package feed

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Timeframe 描述拉取周期（内部 duration + 数据源 timeframe 参数）。
type Timeframe struct {
	Key            string
	Duration       time.Duration
	SourceInterval string
}

var supportedTimeframes = map[string]Timeframe{
	"5m":  {Key: "5m", Duration: 5 * time.Minute, SourceInterval: "M5"},
	"15m": {Key: "15m", Duration: 15 * time.Minute, SourceInterval: "M15"},
	"30m": {Key: "30m", Duration: 30 * time.Minute, SourceInterval: "M30"},
	"1h":  {Key: "1h", Duration: time.Hour, SourceInterval: "H1"},
	"4h":  {Key: "4h", Duration: 4 * time.Hour, SourceInterval: "H4"},
	"1d":  {Key: "1d", Duration: 24 * time.Hour, SourceInterval: "D1"},
}

// ParseTimeframe 返回标准化周期定义，同时接受 "15m" 与 "M15" 两种写法。
func ParseTimeframe(input string) (Timeframe, error) {
	key := strings.ToLower(strings.TrimSpace(input))
	if tf, ok := supportedTimeframes[key]; ok {
		return tf, nil
	}
	for _, tf := range supportedTimeframes {
		if strings.EqualFold(tf.SourceInterval, key) {
			return tf, nil
		}
	}
	return Timeframe{}, fmt.Errorf("不支持的周期: %s", input)
}

// SupportedTimeframes 返回所有支持的 key（排序后）。
func SupportedTimeframes() []string {
	keys := make([]string, 0, len(supportedTimeframes))
	for k := range supportedTimeframes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

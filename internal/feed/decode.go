package feed

import (
	"fmt"
	"strings"
	"time"

	"equilens/internal/market"

	"github.com/tidwall/gjson"
)

// 行情接口的响应形态不稳定：JSON 数组、{"data": [...]} 包裹、
// 或按行分隔的 NDJSON 文本都出现过。这里集中做形态判别，
// 把差异挡在重建逻辑之外。

// DecodeCandles 将响应体解码为 K 线序列。
func DecodeCandles(body string) ([]market.Candle, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, nil
	}
	if gjson.Valid(body) {
		parsed := gjson.Parse(body)
		switch {
		case parsed.IsArray():
			return decodeArray(parsed)
		case parsed.IsObject():
			data := parsed.Get("data")
			if !data.Exists() {
				return nil, fmt.Errorf("响应对象缺少 data 字段")
			}
			if !data.IsArray() {
				return nil, fmt.Errorf("data 字段不是数组")
			}
			return decodeArray(data)
		}
	}
	// 整体不是合法 JSON → 按 NDJSON 逐行解析。
	return decodeLines(body)
}

func decodeArray(arr gjson.Result) ([]market.Candle, error) {
	var out []market.Candle
	var badErr error
	idx := 0
	arr.ForEach(func(_, item gjson.Result) bool {
		idx++
		if !item.IsObject() {
			badErr = fmt.Errorf("candle#%d 不是对象", idx)
			return false
		}
		c, ok := decodeCandle(item)
		if !ok {
			badErr = fmt.Errorf("candle#%d 缺少 time 字段", idx)
			return false
		}
		out = append(out, c)
		return true
	})
	if badErr != nil {
		return nil, badErr
	}
	return out, nil
}

func decodeLines(body string) ([]market.Candle, error) {
	var out []market.Candle
	for i, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !gjson.Valid(line) {
			return nil, fmt.Errorf("第 %d 行不是合法 JSON", i+1)
		}
		item := gjson.Parse(line)
		if !item.IsObject() {
			return nil, fmt.Errorf("第 %d 行不是对象", i+1)
		}
		c, ok := decodeCandle(item)
		if !ok {
			return nil, fmt.Errorf("第 %d 行缺少 time 字段", i+1)
		}
		out = append(out, c)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("响应体无法解析为 K 线")
	}
	return out, nil
}

func decodeCandle(item gjson.Result) (market.Candle, bool) {
	ts := parseCandleTime(item.Get("time"))
	if ts == 0 {
		return market.Candle{}, false
	}
	return market.Candle{
		OpenTime:  ts,
		CloseTime: ts,
		Open:      item.Get("open").Float(),
		High:      item.Get("high").Float(),
		Low:       item.Get("low").Float(),
		Close:     item.Get("close").Float(),
		Volume:    item.Get("volume").Float(),
	}, true
}

func parseCandleTime(v gjson.Result) int64 {
	switch v.Type {
	case gjson.Number:
		return v.Int()
	case gjson.String:
		s := strings.TrimSpace(v.String())
		for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
			if t, err := time.Parse(layout, s); err == nil {
				if layout != time.RFC3339 {
					t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
				}
				return t.UnixMilli()
			}
		}
		return 0
	default:
		return 0
	}
}

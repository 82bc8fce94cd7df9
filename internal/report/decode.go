package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// row 载荷的宽松解码。字段形态不做强约束（数字可以是字符串，
// time 可以是 ISO8601 或 Unix 毫秒），粗粒度的结构问题才算致命；
// 单行内容问题留给 Normalize 以告警方式处理。

// ValidateRowsJSON 校验提交载荷的基本结构：合法 JSON、根为非空数组、
// 元素为对象。失败返回致命错误（InvalidInput 语义）。
func ValidateRowsJSON(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ErrEmptyReport
	}
	if !gjson.Valid(raw) {
		return fmt.Errorf("rows 载荷不是合法 JSON")
	}
	parsed := gjson.Parse(raw)
	if !parsed.IsArray() {
		return fmt.Errorf("rows 根节点必须是 JSON 数组")
	}
	count := 0
	var shapeErr error
	parsed.ForEach(func(_, value gjson.Result) bool {
		count++
		if !value.IsObject() {
			shapeErr = fmt.Errorf("rows#%d 不是对象", count)
			return false
		}
		return true
	})
	if shapeErr != nil {
		return shapeErr
	}
	if count == 0 {
		return ErrEmptyReport
	}
	return nil
}

// ParseRowsJSON 解码 rows 数组。调用前应先过 ValidateRowsJSON。
func ParseRowsJSON(raw string) ([]Row, error) {
	if err := ValidateRowsJSON(raw); err != nil {
		return nil, err
	}
	var rows []Row
	idx := 0
	gjson.Parse(raw).ForEach(func(_, value gjson.Result) bool {
		row := Row{
			Index:      idx,
			Symbol:     strings.TrimSpace(value.Get("symbol").String()),
			Entry:      strings.TrimSpace(value.Get("entry").String()),
			Type:       strings.TrimSpace(value.Get("type").String()),
			Volume:     value.Get("volume").Float(),
			Price:      value.Get("price").Float(),
			TimeMs:     parseTimeMs(value.Get("time")),
			Commission: value.Get("commission").Float(),
			Swap:       value.Get("swap").Float(),
			Profit:     value.Get("profit").Float(),
			DealID:     strings.TrimSpace(value.Get("deal_id").String()),
			PositionID: strings.TrimSpace(value.Get("position_id").String()),
		}
		if v := value.Get("index"); v.Exists() {
			row.Index = int(v.Int())
		}
		rows = append(rows, row)
		idx++
		return true
	})
	return rows, nil
}

// parseTimeMs 接受 Unix 毫秒数字或 ISO8601 字符串。
// 字符串按字面时钟解析（忽略自带时区标记），时区换算由调用方
// 用声明的文档偏移统一处理。
func parseTimeMs(v gjson.Result) int64 {
	switch v.Type {
	case gjson.Number:
		return v.Int()
	case gjson.String:
		s := strings.TrimSpace(v.String())
		if s == "" {
			return 0
		}
		layouts := []string{
			"2006-01-02T15:04:05",
			"2006-01-02 15:04:05",
			time.RFC3339,
		}
		for _, layout := range layouts {
			if t, err := time.Parse(layout, s); err == nil {
				return time.Date(t.Year(), t.Month(), t.Day(),
					t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC).UnixMilli()
			}
		}
		return 0
	default:
		return 0
	}
}

package market

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// 本文件集中处理来自外部数据源的松散类型字段：
// 时间戳可能是 ISO 字符串、epoch 毫秒数字或 time.Time，
// 价格可能是字符串或数字。解析失败一律返回 ok=false，由调用方丢弃整条记录。

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ToFloat64 将任意标量转换为有限浮点数。
func ToFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, isFinite(x)
	case float32:
		return float64(x), isFinite(float64(x))
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil && isFinite(f)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil && isFinite(f)
	default:
		return 0, false
	}
}

// ToMillis 将任意时间戳表示解析为 epoch 毫秒。
// 数字一律按毫秒处理（与 JS Date 及交易所 K 线字段一致）。
func ToMillis(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, x > 0
	case int:
		return int64(x), x > 0
	case float64:
		if !isFinite(x) || x <= 0 {
			return 0, false
		}
		return int64(x), true
	case json.Number:
		f, err := x.Float64()
		if err != nil || !isFinite(f) || f <= 0 {
			return 0, false
		}
		return int64(f), true
	case time.Time:
		if x.IsZero() {
			return 0, false
		}
		return x.UnixMilli(), true
	case string:
		return parseTimestampString(x)
	default:
		return 0, false
	}
}

func parseTimestampString(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		if !isFinite(f) || f <= 0 {
			return 0, false
		}
		return int64(f), true
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UnixMilli(), true
		}
	}
	return 0, false
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

package market

import "encoding/json"

// Candle 归一化后的单根 K 线，OpenTime 为 epoch 毫秒且在序列内严格递增。
type Candle struct {
	OpenTime int64   `json:"open_time"`
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	Volume   float64 `json:"volume,omitempty"`
}

// RawRecord 外部 OHLCV 记录：五个核心字段类型不定，
// 额外列（预计算指标值，键形如 "EMA_21"、"MACD_12_26_9"）收进 Extra。
type RawRecord struct {
	Timestamp any
	Open      any
	High      any
	Low       any
	Close     any
	Volume    any
	Extra     map[string]any
}

var coreRecordKeys = map[string]bool{
	"timestamp": true,
	"time":      true,
	"open_time": true,
	"open":      true,
	"high":      true,
	"low":       true,
	"close":     true,
	"volume":    true,
}

// UnmarshalJSON 接受任意对象：识别核心 OHLCV 键（含常见别名），
// 其余键保留为指标列。
func (r *RawRecord) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*r = FromMap(m)
	return nil
}

// FromMap 从松散 map 构造 RawRecord。
func FromMap(m map[string]any) RawRecord {
	r := RawRecord{}
	for _, k := range []string{"timestamp", "time", "open_time"} {
		if v, ok := m[k]; ok {
			r.Timestamp = v
			break
		}
	}
	r.Open = m["open"]
	r.High = m["high"]
	r.Low = m["low"]
	r.Close = m["close"]
	r.Volume = m["volume"]
	for k, v := range m {
		if coreRecordKeys[k] {
			continue
		}
		if r.Extra == nil {
			r.Extra = make(map[string]any)
		}
		r.Extra[k] = v
	}
	return r
}

// parse 尝试把记录解析为 Candle；任一核心字段解析失败则整条丢弃。
// Volume 是可选字段，缺失按 0 处理。
func (r RawRecord) parse() (Candle, bool) {
	ts, ok := ToMillis(r.Timestamp)
	if !ok {
		return Candle{}, false
	}
	open, ok := ToFloat64(r.Open)
	if !ok {
		return Candle{}, false
	}
	high, ok := ToFloat64(r.High)
	if !ok {
		return Candle{}, false
	}
	low, ok := ToFloat64(r.Low)
	if !ok {
		return Candle{}, false
	}
	closeP, ok := ToFloat64(r.Close)
	if !ok {
		return Candle{}, false
	}
	c := Candle{OpenTime: ts, Open: open, High: high, Low: low, Close: closeP}
	if r.Volume != nil {
		if vol, ok := ToFloat64(r.Volume); ok {
			c.Volume = vol
		}
	}
	return c, true
}

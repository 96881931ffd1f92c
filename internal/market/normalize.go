package market

import (
	"errors"
	"sort"
)

// MaxRenderCandles 限制单次渲染的 K 线数量，超出部分裁掉最旧的记录。
const MaxRenderCandles = 1000

// ErrEmptySeries 归一化后没有任何有效 K 线。
var ErrEmptySeries = errors.New("empty candle series")

// Normalize 将原始记录归一化为可渲染的 K 线序列：
//  1. 逐条解析，任一核心字段非法则丢弃整条记录；
//  2. 按时间升序稳定排序；
//  3. 相同时间戳只保留按输入顺序最后出现的一条；
//  4. 裁剪到最近 MaxRenderCandles 根。
//
// 结果为空时返回 ErrEmptySeries，下游据此渲染"无数据"状态。
func Normalize(records []RawRecord) ([]Candle, error) {
	parsed := make([]Candle, 0, len(records))
	for _, rec := range records {
		if c, ok := rec.parse(); ok {
			parsed = append(parsed, c)
		}
	}
	if len(parsed) == 0 {
		return nil, ErrEmptySeries
	}
	sort.SliceStable(parsed, func(i, j int) bool {
		return parsed[i].OpenTime < parsed[j].OpenTime
	})

	// 稳定排序保证相同时间戳维持输入顺序，后写覆盖前写。
	dedup := parsed[:0]
	for _, c := range parsed {
		n := len(dedup)
		if n > 0 && dedup[n-1].OpenTime == c.OpenTime {
			dedup[n-1] = c
			continue
		}
		dedup = append(dedup, c)
	}
	if len(dedup) > MaxRenderCandles {
		dedup = dedup[len(dedup)-MaxRenderCandles:]
	}
	out := make([]Candle, len(dedup))
	copy(out, dedup)
	return out, nil
}

// Timestamps 提取时间戳序列（升序）。
func Timestamps(candles []Candle) []int64 {
	out := make([]int64, len(candles))
	for i, c := range candles {
		out[i] = c.OpenTime
	}
	return out
}

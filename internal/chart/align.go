package chart

import (
	"sort"

	"backchart/internal/market"
)

// AlignOptions 控制对齐行为。零值可用。
type AlignOptions struct {
	// Matcher 为空时按 K 线时间戳构建默认的精确+最近邻匹配器。
	Matcher TimestampMatcher
	// OnExcluded 在某条指标一个点都没能对齐、被整体剔除时回调，
	// 供调试观测；静默吞掉这类指标在实践中造成过困惑。
	OnExcluded func(name string, rawPoints int)
}

// Align 把指标序列映射到 K 线时间轴：
//   - 原始点先裁剪到与 K 线相同的 MaxRenderCandles 上限（保留尾部）；
//   - 时间或数值解析失败的点丢弃；
//   - 时间戳精确命中 K 线集合时原位保留，否则落到一日容差内最近的
//     K 线上（等距取较早者），超出容差丢弃；
//   - 同一 K 线时间戳出现多个点时后写覆盖，策略与 K 线去重一致；
//   - 一条指标全部点都被丢弃时整体剔除，不出现在任何面板。
//
// 输出序列的每个时间戳都属于 K 线时间戳集合，且按时间升序。
func Align(candles []market.Candle, defs []IndicatorDefinition, opts AlignOptions) []AlignedSeries {
	if len(candles) == 0 || len(defs) == 0 {
		return nil
	}
	matcher := opts.Matcher
	if matcher == nil {
		matcher = NewNearestMatcher(market.Timestamps(candles), DayTolerance)
	}

	out := make([]AlignedSeries, 0, len(defs))
	for _, def := range defs {
		points := alignOne(def.RawPoints, matcher)
		if len(points) == 0 {
			if opts.OnExcluded != nil {
				opts.OnExcluded(def.Name, len(def.RawPoints))
			}
			continue
		}
		out = append(out, AlignedSeries{
			Name:        def.Name,
			Placement:   def.Placement,
			Color:       def.Color,
			StrokeWidth: def.StrokeWidth,
			Points:      points,
		})
	}
	return out
}

func alignOne(raw []RawPoint, matcher TimestampMatcher) []AlignedPoint {
	if len(raw) > market.MaxRenderCandles {
		raw = raw[len(raw)-market.MaxRenderCandles:]
	}
	byTS := make(map[int64]float64, len(raw))
	order := make([]int64, 0, len(raw))
	for _, p := range raw {
		ts, ok := market.ToMillis(p.Timestamp)
		if !ok {
			continue
		}
		val, ok := market.ToFloat64(p.Value)
		if !ok {
			continue
		}
		target, ok := matcher.Match(ts)
		if !ok {
			continue
		}
		if _, seen := byTS[target]; !seen {
			order = append(order, target)
		}
		byTS[target] = val
	}
	if len(order) == 0 {
		return nil
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })
	points := make([]AlignedPoint, 0, len(order))
	for _, ts := range order {
		points = append(points, AlignedPoint{Timestamp: ts, Value: byTS[ts]})
	}
	return points
}

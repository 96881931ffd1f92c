package chart

import "sort"

// DayTolerance 回退匹配允许的最大偏差：一个日历日（毫秒）。
const DayTolerance int64 = 24 * 60 * 60 * 1000

// TimestampMatcher 把任意时间戳映射到 K 线时间轴上的策略。
// Match 返回落点时间戳；无法匹配时 ok=false。
type TimestampMatcher interface {
	Match(ts int64) (int64, bool)
}

// nearestMatcher 默认实现：先查精确哈希，再二分找容差内最近的时间戳。
// 等距时取较早的 K 线。
type nearestMatcher struct {
	exact     map[int64]struct{}
	sorted    []int64
	tolerance int64
}

// NewNearestMatcher 基于升序 K 线时间戳构建默认匹配器。
// tolerance<=0 时使用 DayTolerance。
func NewNearestMatcher(timestamps []int64, tolerance int64) TimestampMatcher {
	if tolerance <= 0 {
		tolerance = DayTolerance
	}
	exact := make(map[int64]struct{}, len(timestamps))
	for _, ts := range timestamps {
		exact[ts] = struct{}{}
	}
	return &nearestMatcher{exact: exact, sorted: timestamps, tolerance: tolerance}
}

func (m *nearestMatcher) Match(ts int64) (int64, bool) {
	if _, ok := m.exact[ts]; ok {
		return ts, true
	}
	n := len(m.sorted)
	if n == 0 {
		return 0, false
	}
	// 第一个 >= ts 的下标；候选是它与它的前驱。
	idx := sort.Search(n, func(i int) bool { return m.sorted[i] >= ts })
	best, bestDiff := int64(0), int64(-1)
	if idx-1 >= 0 {
		if d := ts - m.sorted[idx-1]; d <= m.tolerance {
			best, bestDiff = m.sorted[idx-1], d
		}
	}
	if idx < n {
		if d := m.sorted[idx] - ts; d <= m.tolerance && (bestDiff < 0 || d < bestDiff) {
			best, bestDiff = m.sorted[idx], d
		}
	}
	if bestDiff < 0 {
		return 0, false
	}
	return best, true
}

package chart

// Partition 按挂载位置把对齐后的指标拆成两组：
// overlay 叠加在价格面板上，sub 每条各占一个副面板。
// 组内保持输入顺序。
func Partition(series []AlignedSeries) (overlay, sub []AlignedSeries) {
	for _, s := range series {
		if s.Placement == PlacementSub {
			sub = append(sub, s)
			continue
		}
		overlay = append(overlay, s)
	}
	return overlay, sub
}

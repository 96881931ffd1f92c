package chart

import "backchart/internal/market"

// ScaleRange 计算带 10% 呼吸空间的数值轴边界。
// 空输入返回 (0, 100)，保证空面板仍有合理的轴；
// 无极差（min==max）时不加衬边，原样返回；
// 下界只在数据本身非负时钳到 0；负值序列（MACD 柱等震荡指标）
// 保留真实下界，否则零轴以下的数据会整段被裁出可视区。
func ScaleRange(values []float64) ValueRange {
	if len(values) == 0 {
		return ValueRange{Min: 0, Max: 100}
	}
	minVal, maxVal := values[0], values[0]
	for _, v := range values[1:] {
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
	}
	span := maxVal - minVal
	if span == 0 {
		return ValueRange{Min: minVal, Max: maxVal}
	}
	pad := span * 0.1
	lo := minVal - pad
	if minVal >= 0 && lo < 0 {
		lo = 0
	}
	return ValueRange{Min: lo, Max: maxVal + pad}
}

// candleValues 汇总全部 OHLC 值，供主面板定轴。
func candleValues(candles []market.Candle) []float64 {
	out := make([]float64, 0, len(candles)*4)
	for _, c := range candles {
		out = append(out, c.Open, c.High, c.Low, c.Close)
	}
	return out
}

// seriesValues 提取对齐序列的数值。
func seriesValues(s AlignedSeries) []float64 {
	out := make([]float64, 0, len(s.Points))
	for _, p := range s.Points {
		out = append(out, p.Value)
	}
	return out
}

package chart

import (
	"errors"

	"backchart/internal/market"
)

// ErrPrimaryNotCandlestick 主面板首条序列不是 K 线。
// 这是防御性校验：指标数据被当成价格渲染会产出误导性的图，
// 宁可硬失败也不输出。
var ErrPrimaryNotCandlestick = errors.New("primary panel first series must be candlestick")

// Compose 把归一化 K 线、对齐指标与标记组合为面板序列：
//   - 主面板 = K 线 + main 指标 + 标记，轴取全部 OHLC 值；
//   - 每条 sub 指标独占一个副面板，轴只取该指标自身的值；
//   - 首条序列无数据的面板被抑制（不出现在输出里）；
//   - K 线为空时不产出主面板，模型可能只剩副面板甚至为空。
//
// 同样的输入必然产出结构相同的模型；组合过程不修改任何入参。
func Compose(candles []market.Candle, indicators []AlignedSeries, signals []Signal) (Model, error) {
	overlay, sub := Partition(indicators)

	var panels []Panel
	if len(candles) > 0 {
		primary := Panel{
			Kind: PanelPrimary,
			Series: []PanelSeries{{
				Name:    "price",
				Role:    RoleCandlestick,
				Candles: candles,
			}},
			ValueAxis: ScaleRange(candleValues(candles)),
			Markers:   signals,
		}
		for i := range overlay {
			s := overlay[i]
			primary.Series = append(primary.Series, PanelSeries{
				Name:      s.Name,
				Role:      RoleIndicator,
				Indicator: &s,
			})
		}
		if err := validatePrimary(primary); err != nil {
			return Model{}, err
		}
		panels = append(panels, primary)
	}

	for i := range sub {
		s := sub[i]
		if len(s.Points) == 0 {
			continue
		}
		panels = append(panels, Panel{
			Kind: PanelSecondary,
			Series: []PanelSeries{{
				Name:      s.Name,
				Role:      RoleIndicator,
				Indicator: &s,
			}},
			ValueAxis: ScaleRange(seriesValues(s)),
		})
	}
	return Model{Panels: panels}, nil
}

// validatePrimary 校验主面板不变量。
func validatePrimary(p Panel) error {
	if len(p.Series) == 0 || p.Series[0].Role != RoleCandlestick || len(p.Series[0].Candles) == 0 {
		return ErrPrimaryNotCandlestick
	}
	return nil
}

// Package chart 实现图表模型的拼装核心：把独立采样的指标序列对齐到
// K 线时间轴、从交易记录派生出入场/出场标记，并组合为主/副面板描述。
// 所有函数都是无状态纯变换，同样的输入必然产出同样的面板序列。
package chart

import "backchart/internal/market"

// Placement 指标挂载位置：main 叠加在价格面板，sub 独立副面板。
type Placement string

const (
	PlacementMain Placement = "main"
	PlacementSub  Placement = "sub"
)

// RawPoint 原始指标点，时间与数值的类型都不保证。
type RawPoint struct {
	Timestamp any
	Value     any
}

// IndicatorDefinition 一条待对齐的指标序列及其样式。
type IndicatorDefinition struct {
	Name        string
	Placement   Placement
	Color       string
	StrokeWidth float64
	RawPoints   []RawPoint
}

// AlignedPoint 对齐后的指标点，Timestamp 一定属于 K 线时间戳集合。
type AlignedPoint struct {
	Timestamp int64   `json:"timestamp"`
	Value     float64 `json:"value"`
}

// AlignedSeries 对齐到 K 线时间轴后的指标序列，点按时间升序，
// 每个 K 线时间戳至多一个点。
type AlignedSeries struct {
	Name        string         `json:"name"`
	Placement   Placement      `json:"placement"`
	Color       string         `json:"color,omitempty"`
	StrokeWidth float64        `json:"stroke_width,omitempty"`
	Points      []AlignedPoint `json:"points"`
}

// SignalKind 标记种类。
type SignalKind string

const (
	SignalEntry SignalKind = "entry"
	SignalExit  SignalKind = "exit"
)

// Signal 一个离散的交易标记，按绝对时间/价格绘制，不要求落在 K 线上。
type Signal struct {
	Timestamp    int64               `json:"timestamp"`
	Price        float64             `json:"price"`
	Kind         SignalKind          `json:"kind"`
	PositionType market.PositionMode `json:"position_type"`
	TradeID      string              `json:"trade_id,omitempty"`
}

// SeriesRole 面板内单条序列的角色。
type SeriesRole string

const (
	RoleCandlestick SeriesRole = "candlestick"
	RoleIndicator   SeriesRole = "indicator"
)

// PanelKind 面板种类。
type PanelKind string

const (
	PanelPrimary   PanelKind = "primary"
	PanelSecondary PanelKind = "secondary"
)

// PanelSeries 面板内的一条序列。Candles 与 Indicator 二选一，由 Role 决定。
type PanelSeries struct {
	Name      string          `json:"name"`
	Role      SeriesRole      `json:"role"`
	Candles   []market.Candle `json:"candles,omitempty"`
	Indicator *AlignedSeries  `json:"indicator,omitempty"`
}

// ValueRange 数值轴的上下界。
type ValueRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Panel 一个可渲染面板。主面板首条序列必为 K 线，且只有主面板携带标记。
type Panel struct {
	Kind      PanelKind     `json:"kind"`
	Series    []PanelSeries `json:"series"`
	ValueAxis ValueRange    `json:"value_axis"`
	Markers   []Signal      `json:"markers,omitempty"`
}

// Model 完整图表模型：面板按主、副顺序排列；没有面板即"无数据"。
type Model struct {
	Panels []Panel `json:"panels"`
}

// Primary 返回主面板，不存在时返回 nil。
func (m Model) Primary() *Panel {
	for i := range m.Panels {
		if m.Panels[i].Kind == PanelPrimary {
			return &m.Panels[i]
		}
	}
	return nil
}

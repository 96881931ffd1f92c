package chart

import (
	"errors"

	"backchart/internal/logger"
	"backchart/internal/market"
)

// BuildInput 一次完整图表构建的输入快照。
type BuildInput struct {
	Records     []market.RawRecord
	Assignments []Assignment
	Trades      []market.Trade
	Mode        market.PositionMode
	Align       AlignOptions
}

// Build 运行完整流水线：归一化 → 提取 → 对齐 → 派生 → 组合。
// 无有效 K 线时返回空模型（无任何面板），由 UI 渲染"无数据"；
// 指标与 K 线来自不同数据版本时只会表现为点被丢弃，不会中断构建。
func Build(in BuildInput) (Model, error) {
	candles, err := market.Normalize(in.Records)
	if err != nil {
		if errors.Is(err, market.ErrEmptySeries) {
			return Model{}, nil
		}
		return Model{}, err
	}

	opts := in.Align
	if opts.OnExcluded == nil {
		opts.OnExcluded = func(name string, rawPoints int) {
			logger.Warnf("[chart] indicator %q excluded: none of %d points aligned", name, rawPoints)
		}
	}
	defs := ExtractIndicators(in.Records, in.Assignments)
	aligned := Align(candles, defs, opts)

	_, signals := DeriveForMode(in.Trades, in.Mode)
	return Compose(candles, aligned, signals)
}

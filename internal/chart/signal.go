package chart

import "backchart/internal/market"

// FilterTrades 按选中的过滤维度筛选交易。
// mode=all 放行所有记录；long/short 按 Trade.ResolveMode 的归一化结果
// 等值过滤，显式打标 all 的记录只在 all 维度下出现。
func FilterTrades(trades []market.Trade, mode market.PositionMode) []market.Trade {
	if mode == market.ModeAll || mode == "" {
		out := make([]market.Trade, len(trades))
		copy(out, trades)
		return out
	}
	out := make([]market.Trade, 0, len(trades))
	for _, t := range trades {
		if t.ResolveMode() == mode {
			out = append(out, t)
		}
	}
	return out
}

// DeriveSignals 把筛选后的交易转换为标记序列：
// 每笔交易必产生一个入场标记；出场腿齐备时再产生一个出场标记。
// 标记方向始终由成交方向推断（buy→long、sell→short），与过滤标签无关。
func DeriveSignals(trades []market.Trade) []Signal {
	out := make([]Signal, 0, len(trades)*2)
	for _, t := range trades {
		pos := t.PositionType()
		out = append(out, Signal{
			Timestamp:    t.EntryTime,
			Price:        t.EntryPrice,
			Kind:         SignalEntry,
			PositionType: pos,
			TradeID:      t.ID,
		})
		if t.HasExit() {
			out = append(out, Signal{
				Timestamp:    t.ExitTime,
				Price:        t.ExitPrice,
				Kind:         SignalExit,
				PositionType: pos,
				TradeID:      t.ID,
			})
		}
	}
	return out
}

// DeriveForMode 组合筛选与派生，返回保留下来的交易及其标记。
func DeriveForMode(trades []market.Trade, mode market.PositionMode) ([]market.Trade, []Signal) {
	kept := FilterTrades(trades, mode)
	return kept, DeriveSignals(kept)
}

package market

// PositionMode 交易过滤维度：全部 / 只看多 / 只看空。
type PositionMode string

const (
	ModeAll   PositionMode = "all"
	ModeLong  PositionMode = "long"
	ModeShort PositionMode = "short"
)

// ParsePositionMode 非法值回退到 all。
func ParsePositionMode(s string) PositionMode {
	switch PositionMode(s) {
	case ModeLong:
		return ModeLong
	case ModeShort:
		return ModeShort
	default:
		return ModeAll
	}
}

// TradeSide 成交方向。
type TradeSide string

const (
	SideBuy  TradeSide = "buy"
	SideSell TradeSide = "sell"
)

// Trade 回测结果中的一笔交易。旧版记录不带 PositionMode（空串），
// 新版记录显式携带；两种形态的分流只发生在 ResolveMode 一处。
// ExitTime 为 0 表示仓位未平，此时仅入场腿产生标记。
type Trade struct {
	ID            string       `json:"id"`
	EntryTime     int64        `json:"entry_time"`
	EntryPrice    float64      `json:"entry_price"`
	ExitTime      int64        `json:"exit_time,omitempty"`
	ExitPrice     float64      `json:"exit_price,omitempty"`
	Side          TradeSide    `json:"trade_type"`
	PositionMode  PositionMode `json:"position_mode,omitempty"`
	PnL           float64      `json:"pnl,omitempty"`
	PnLPercentage float64      `json:"pnl_percentage,omitempty"`
}

// Legacy 该记录是否为未打标的旧版形态。
func (t Trade) Legacy() bool { return t.PositionMode == "" }

// PositionType 由成交方向推断持仓方向：buy→long、sell→short。
// 标记（Signal）的方向始终来自这里，与 PositionMode 标签无关。
func (t Trade) PositionType() PositionMode {
	if t.Side == SideSell {
		return ModeShort
	}
	return ModeLong
}

// ResolveMode 归一化记录的过滤维度。
// 旧版记录按成交方向推断，是兼容垫片：一旦所有生产方都写入显式标签，
// 删除这里的回退分支即可整体下线。
func (t Trade) ResolveMode() PositionMode {
	if !t.Legacy() {
		return t.PositionMode
	}
	return t.PositionType()
}

// HasExit 出场腿两个字段是否齐备。
func (t Trade) HasExit() bool { return t.ExitTime > 0 && isFinite(t.ExitPrice) }

// RawTrade 回测接口返回的原始交易记录，时间与价格字段类型不定。
type RawTrade struct {
	ID            string `json:"id"`
	EntryTime     any    `json:"entry_timestamp"`
	EntryPrice    any    `json:"entry_price"`
	ExitTime      any    `json:"exit_timestamp,omitempty"`
	ExitPrice     any    `json:"exit_price,omitempty"`
	Side          string `json:"trade_type"`
	PositionMode  string `json:"position_mode,omitempty"`
	PnL           any    `json:"pnl,omitempty"`
	PnLPercentage any    `json:"pnl_percentage,omitempty"`
}

// ParseTrades 解析原始交易：入场腿任一字段非法则整条丢弃；
// 出场腿解析失败只降级为未平仓（不产生出场标记），不影响入场腿。
func ParseTrades(raws []RawTrade) []Trade {
	out := make([]Trade, 0, len(raws))
	for _, r := range raws {
		entryTS, ok := ToMillis(r.EntryTime)
		if !ok {
			continue
		}
		entryPrice, ok := ToFloat64(r.EntryPrice)
		if !ok {
			continue
		}
		side := SideBuy
		if TradeSide(r.Side) == SideSell {
			side = SideSell
		}
		t := Trade{
			ID:         r.ID,
			EntryTime:  entryTS,
			EntryPrice: entryPrice,
			Side:       side,
		}
		switch PositionMode(r.PositionMode) {
		case ModeAll, ModeLong, ModeShort:
			t.PositionMode = PositionMode(r.PositionMode)
		}
		if exitTS, ok := ToMillis(r.ExitTime); ok {
			if exitPrice, ok := ToFloat64(r.ExitPrice); ok {
				t.ExitTime = exitTS
				t.ExitPrice = exitPrice
			}
		}
		if pnl, ok := ToFloat64(r.PnL); ok {
			t.PnL = pnl
		}
		if pct, ok := ToFloat64(r.PnLPercentage); ok {
			t.PnLPercentage = pct
		}
		out = append(out, t)
	}
	return out
}

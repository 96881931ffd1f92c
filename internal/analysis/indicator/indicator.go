// Package indicator 在服务端生成演示用的指标列。图表核心从不计算指标值，
// 它只消费记录上已有的列；本包扮演上游生产方，把 talib 的输出按
// "<Tool>_<param...>" 约定写回原始记录，使服务不依赖外部生产方也能
// 跑通完整的提取-对齐-组合链路。
package indicator

import (
	"fmt"
	"math"

	"github.com/markcheno/go-talib"

	"backchart/internal/market"
)

// Settings 控制生成哪些列。零值字段使用默认周期。
type Settings struct {
	EMAPeriods []int
	RSIPeriod  int
	MACDFast   int
	MACDSlow   int
	MACDSignal int
}

func (s Settings) withDefaults() Settings {
	out := s
	if len(out.EMAPeriods) == 0 {
		out.EMAPeriods = []int{21, 55}
	}
	if out.RSIPeriod <= 0 {
		out.RSIPeriod = 14
	}
	if out.MACDFast <= 0 {
		out.MACDFast = 12
	}
	if out.MACDSlow <= 0 {
		out.MACDSlow = 26
	}
	if out.MACDSignal <= 0 {
		out.MACDSignal = 9
	}
	return out
}

// DefaultAssignments 返回与 Decorate 产出的列对应的挂载元数据。
func DefaultAssignments(s Settings) []Assignment {
	s = s.withDefaults()
	var out []Assignment
	for _, p := range s.EMAPeriods {
		out = append(out, Assignment{Tool: fmt.Sprintf("EMA_%d", p), Subchart: false})
	}
	out = append(out, Assignment{Tool: fmt.Sprintf("RSI_%d", s.RSIPeriod), Subchart: true})
	out = append(out, Assignment{Tool: fmt.Sprintf("MACD_%d_%d_%d", s.MACDFast, s.MACDSlow, s.MACDSignal), Subchart: true})
	return out
}

// Assignment 生成列的挂载描述，避免本包反向依赖 chart。
type Assignment struct {
	Tool     string
	Subchart bool
}

// Decorate 基于 K 线计算指标并写回原始记录的附加列。
// 记录与 K 线按下标一一对应（调用方保证顺序一致）；
// 预热期内的 NaN 值不写列，对齐阶段自然跳过这些记录。
func Decorate(records []market.RawRecord, candles []market.Candle, cfg Settings) error {
	if len(records) != len(candles) {
		return fmt.Errorf("records/candles length mismatch: %d vs %d", len(records), len(candles))
	}
	if len(candles) == 0 {
		return nil
	}
	cfg = cfg.withDefaults()
	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}

	for _, period := range cfg.EMAPeriods {
		col := fmt.Sprintf("EMA_%d", period)
		writeColumn(records, col, talib.Ema(closes, period), period-1)
	}
	writeColumn(records, fmt.Sprintf("RSI_%d", cfg.RSIPeriod), talib.Rsi(closes, cfg.RSIPeriod), cfg.RSIPeriod)
	_, _, hist := talib.Macd(closes, cfg.MACDFast, cfg.MACDSlow, cfg.MACDSignal)
	writeColumn(records, fmt.Sprintf("MACD_%d_%d_%d", cfg.MACDFast, cfg.MACDSlow, cfg.MACDSignal),
		hist, cfg.MACDSlow+cfg.MACDSignal-2)
	return nil
}

// writeColumn 把有效值写回记录；warmup 之前的值视为预热期跳过。
func writeColumn(records []market.RawRecord, column string, series []float64, warmup int) {
	for i := range records {
		if i >= len(series) || i < warmup {
			continue
		}
		v := series[i]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		if records[i].Extra == nil {
			records[i].Extra = make(map[string]any)
		}
		records[i].Extra[column] = round4(v)
	}
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

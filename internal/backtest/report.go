package backtest

import (
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/shopspring/decimal"

	"backchart/internal/market"
)

// Summary 一组交易的汇总统计。
type Summary struct {
	Trades   int
	Open     int
	Wins     int
	Losses   int
	TotalPnL decimal.Decimal
}

// Summarize 统计交易结果。PnL 用 decimal 累加，避免长列表上的浮点漂移。
func Summarize(trades []market.Trade) Summary {
	sum := Summary{Trades: len(trades)}
	for _, t := range trades {
		if !t.HasExit() {
			sum.Open++
			continue
		}
		sum.TotalPnL = sum.TotalPnL.Add(decimal.NewFromFloat(t.PnL))
		switch {
		case t.PnL > 0:
			sum.Wins++
		case t.PnL < 0:
			sum.Losses++
		}
	}
	return sum
}

// RenderTradesTable 把交易列表渲染为终端表格。
func RenderTradesTable(w io.Writer, trades []market.Trade) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ID", "Side", "Mode", "Entry", "Entry Price", "Exit", "Exit Price", "PnL"})
	for _, tr := range trades {
		exitAt := "-"
		exitPrice := "-"
		if tr.HasExit() {
			exitAt = formatMillis(tr.ExitTime)
			exitPrice = decimal.NewFromFloat(tr.ExitPrice).String()
		}
		t.AppendRow(table.Row{
			tr.ID,
			string(tr.Side),
			string(tr.ResolveMode()),
			formatMillis(tr.EntryTime),
			decimal.NewFromFloat(tr.EntryPrice).String(),
			exitAt,
			exitPrice,
			decimal.NewFromFloat(tr.PnL).StringFixed(4),
		})
	}
	sum := Summarize(trades)
	t.AppendFooter(table.Row{"", "", "", "", "", "", "total", sum.TotalPnL.StringFixed(4)})
	t.Render()
}

func formatMillis(ms int64) string {
	return time.UnixMilli(ms).UTC().Format("01-02 15:04")
}

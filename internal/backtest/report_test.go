package backtest

import (
	"strings"
	"testing"

	"backchart/internal/market"
)

func TestSummarize(t *testing.T) {
	trades := []market.Trade{
		{ID: "a", EntryTime: 1, EntryPrice: 100, ExitTime: 2, ExitPrice: 110, PnL: 10},
		{ID: "b", EntryTime: 3, EntryPrice: 100, ExitTime: 4, ExitPrice: 95, PnL: -5},
		{ID: "c", EntryTime: 5, EntryPrice: 100},
	}
	sum := Summarize(trades)
	if sum.Trades != 3 || sum.Open != 1 || sum.Wins != 1 || sum.Losses != 1 {
		t.Fatalf("summary = %+v", sum)
	}
	if got := sum.TotalPnL.StringFixed(4); got != "5.0000" {
		t.Fatalf("TotalPnL = %s, want 5.0000", got)
	}
}

func TestRenderTradesTable(t *testing.T) {
	trades := []market.Trade{
		{ID: "a", Side: market.SideBuy, EntryTime: 1_700_000_000_000, EntryPrice: 100, ExitTime: 1_700_003_600_000, ExitPrice: 110, PnL: 10},
		{ID: "open", Side: market.SideSell, EntryTime: 1_700_007_200_000, EntryPrice: 108},
	}
	var sb strings.Builder
	RenderTradesTable(&sb, trades)
	out := sb.String()
	for _, want := range []string{"a", "open", "10.0000", "total"} {
		if !strings.Contains(out, want) {
			t.Fatalf("表格缺少 %q:\n%s", want, out)
		}
	}
}

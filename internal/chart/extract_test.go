package chart

import (
	"testing"

	"backchart/internal/market"
)

func extractRecords() []market.RawRecord {
	return []market.RawRecord{
		{Timestamp: int64(1000), Open: 1.0, High: 2.0, Low: 0.5, Close: 1.5,
			Extra: map[string]any{"EMA_21": 1.2, "MACD_12_26_9": -0.1, "RSI_14": 44.0}},
		{Timestamp: int64(2000), Open: 1.5, High: 2.5, Low: 1.0, Close: 2.0,
			Extra: map[string]any{"EMA_21": 1.4, "MACD_12_26_9": 0.2}},
	}
}

func TestExtractIndicatorsByConvention(t *testing.T) {
	defs := ExtractIndicators(extractRecords(), []Assignment{
		{ToolName: "EMA", DisplayName: "EMA", Color: "#ff0000", LineWidth: 2},
		{ToolName: "MACD", Subchart: true},
	})
	if len(defs) != 2 {
		t.Fatalf("expected 2 definitions, got %d", len(defs))
	}

	ema := defs[0]
	if ema.Name != "EMA 21" || ema.Placement != PlacementMain || ema.Color != "#ff0000" || ema.StrokeWidth != 2 {
		t.Errorf("ema definition: %+v", ema)
	}
	if len(ema.RawPoints) != 2 {
		t.Errorf("ema must collect a point per record, got %d", len(ema.RawPoints))
	}

	macd := defs[1]
	if macd.Placement != PlacementSub {
		t.Errorf("subchart assignment must map to sub placement")
	}
	if macd.Color == "" || macd.StrokeWidth != 1 {
		t.Errorf("defaults not applied: %+v", macd)
	}
}

func TestExtractSkipsUnassignedColumns(t *testing.T) {
	defs := ExtractIndicators(extractRecords(), []Assignment{{ToolName: "EMA"}})
	if len(defs) != 1 {
		t.Fatalf("RSI column has no assignment and must be ignored, got %d defs", len(defs))
	}
}

func TestExtractMissingValues(t *testing.T) {
	records := []market.RawRecord{
		{Timestamp: int64(1000), Open: 1.0, High: 1.0, Low: 1.0, Close: 1.0, Extra: map[string]any{"SMA_50": 0.9}},
		{Timestamp: int64(2000), Open: 1.0, High: 1.0, Low: 1.0, Close: 1.0}, // 该记录无指标列
	}
	defs := ExtractIndicators(records, []Assignment{{ToolName: "SMA"}})
	if len(defs) != 1 || len(defs[0].RawPoints) != 1 {
		t.Fatalf("records without the column contribute no point: %+v", defs)
	}
}

func TestExtractToolNameBoundary(t *testing.T) {
	records := []market.RawRecord{
		{Timestamp: int64(1000), Open: 1.0, High: 1.0, Low: 1.0, Close: 1.0,
			Extra: map[string]any{"EMA_21": 1.0, "EMAX_9": 2.0}},
	}
	defs := ExtractIndicators(records, []Assignment{{ToolName: "EMA"}})
	if len(defs) != 1 {
		t.Fatalf("EMAX must not match tool EMA: %+v", defs)
	}
}

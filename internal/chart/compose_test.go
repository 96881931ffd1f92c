package chart

import (
	"errors"
	"reflect"
	"testing"

	"backchart/internal/market"
)

func alignedSeries(name string, placement Placement, values ...float64) AlignedSeries {
	s := AlignedSeries{Name: name, Placement: placement}
	for i, v := range values {
		s.Points = append(s.Points, AlignedPoint{Timestamp: int64(i+1) * 1000, Value: v})
	}
	return s
}

func TestComposePanels(t *testing.T) {
	candles := dailyCandles(1, 2, 3)
	indicators := []AlignedSeries{
		alignedSeries("ema", PlacementMain, 10, 11, 12),
		alignedSeries("rsi", PlacementSub, 40, 50, 60),
		alignedSeries("macd", PlacementSub, -1, 0, 1),
	}
	signals := []Signal{{Timestamp: dayMs(2), Price: 10.5, Kind: SignalEntry, PositionType: market.ModeLong}}

	model, err := Compose(candles, indicators, signals)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if len(model.Panels) != 3 {
		t.Fatalf("expected primary + 2 secondary panels, got %d", len(model.Panels))
	}

	primary := model.Primary()
	if primary == nil {
		t.Fatal("missing primary panel")
	}
	if primary.Series[0].Role != RoleCandlestick {
		t.Fatalf("primary first series must be candlestick")
	}
	if len(primary.Series) != 2 || primary.Series[1].Name != "ema" {
		t.Errorf("main indicator must overlay on primary: %+v", primary.Series)
	}
	if len(primary.Markers) != 1 {
		t.Errorf("signals must attach to primary panel only")
	}
	// 主面板轴覆盖全部 OHLC：low=9 high=12 → 衬边后 (8.7, 12.3)。
	if primary.ValueAxis.Min >= 9 || primary.ValueAxis.Max <= 12 {
		t.Errorf("primary axis must pad beyond OHLC extremes: %+v", primary.ValueAxis)
	}

	for _, p := range model.Panels[1:] {
		if p.Kind != PanelSecondary {
			t.Errorf("expected secondary panel, got %s", p.Kind)
		}
		if len(p.Series) != 1 {
			t.Errorf("one indicator per secondary panel")
		}
		if len(p.Markers) != 0 {
			t.Errorf("secondary panels carry no markers")
		}
	}
	// 副面板独立定轴：macd 含负值，下界必须为负。
	macdPanel := model.Panels[2]
	if macdPanel.Series[0].Name != "macd" || macdPanel.ValueAxis.Min >= 0 {
		t.Errorf("macd panel must keep its negative bound: %+v", macdPanel.ValueAxis)
	}
}

func TestComposeNoCandles(t *testing.T) {
	model, err := Compose(nil, []AlignedSeries{alignedSeries("rsi", PlacementSub, 1, 2)}, nil)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if model.Primary() != nil {
		t.Fatalf("no candles means no primary panel")
	}
	if len(model.Panels) != 1 {
		t.Fatalf("secondary panels still render, got %d", len(model.Panels))
	}
}

func TestValidatePrimaryInvariant(t *testing.T) {
	bad := Panel{
		Kind:   PanelPrimary,
		Series: []PanelSeries{{Name: "ema", Role: RoleIndicator, Indicator: &AlignedSeries{}}},
	}
	if err := validatePrimary(bad); !errors.Is(err, ErrPrimaryNotCandlestick) {
		t.Fatalf("expected ErrPrimaryNotCandlestick, got %v", err)
	}
	if err := validatePrimary(Panel{Kind: PanelPrimary}); !errors.Is(err, ErrPrimaryNotCandlestick) {
		t.Fatalf("empty primary must be rejected, got %v", err)
	}
}

func TestBuildPipelineIdempotent(t *testing.T) {
	records := []market.RawRecord{
		{Timestamp: dayMs(1), Open: 10.0, High: 12.0, Low: 9.0, Close: 11.0, Extra: map[string]any{"EMA_21": 10.2, "RSI_14": 48.0}},
		{Timestamp: dayMs(2), Open: 11.0, High: 13.0, Low: 10.0, Close: 12.0, Extra: map[string]any{"EMA_21": 10.8, "RSI_14": 52.0}},
		{Timestamp: dayMs(3), Open: 12.0, High: 14.0, Low: 11.0, Close: 13.0, Extra: map[string]any{"EMA_21": 11.4, "RSI_14": 61.0}},
	}
	in := BuildInput{
		Records: records,
		Assignments: []Assignment{
			{ToolName: "EMA", Subchart: false},
			{ToolName: "RSI", Subchart: true},
		},
		Trades: []market.Trade{
			{ID: "t1", EntryTime: dayMs(1), EntryPrice: 10.5, ExitTime: dayMs(3), ExitPrice: 12.5, Side: market.SideBuy},
		},
		Mode: market.ModeAll,
	}
	first, err := Build(in)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	second, err := Build(in)
	if err != nil {
		t.Fatalf("Build (second run): %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("pipeline must be idempotent for identical inputs")
	}
	if len(first.Panels) != 2 {
		t.Fatalf("expected primary + rsi panel, got %d", len(first.Panels))
	}
	if got := len(first.Primary().Markers); got != 2 {
		t.Errorf("expected entry+exit markers, got %d", got)
	}
}

func TestBuildEmptyInputYieldsEmptyModel(t *testing.T) {
	model, err := Build(BuildInput{})
	if err != nil {
		t.Fatalf("Build on empty input must not fail: %v", err)
	}
	if len(model.Panels) != 0 {
		t.Fatalf("empty input yields the no-chart model, got %d panels", len(model.Panels))
	}
}

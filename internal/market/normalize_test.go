package market

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func rawCandle(ts any, o, h, l, c any) RawRecord {
	return RawRecord{Timestamp: ts, Open: o, High: h, Low: l, Close: c}
}

func TestNormalizeMixedTimestampTypes(t *testing.T) {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	records := []RawRecord{
		rawCandle(base.Format(time.RFC3339), 1.0, 2.0, 0.5, 1.5),
		rawCandle(base.Add(24*time.Hour).UnixMilli(), "2", "3", "1", "2.5"),
		rawCandle(base.Add(48*time.Hour), 3.0, 4.0, 2.0, 3.5),
	}
	out, err := Normalize(records)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 candles, got %d", len(out))
	}
	for i, c := range out {
		want := base.Add(time.Duration(i) * 24 * time.Hour).UnixMilli()
		if c.OpenTime != want {
			t.Errorf("candle %d: OpenTime=%d want %d", i, c.OpenTime, want)
		}
	}
	if out[1].Close != 2.5 {
		t.Errorf("string prices not parsed: %+v", out[1])
	}
}

func TestNormalizeDropsPartialRecords(t *testing.T) {
	records := []RawRecord{
		rawCandle(int64(1000), 1.0, 2.0, 0.5, 1.5),
		rawCandle(int64(2000), "not a number", 2.0, 0.5, 1.5), // 非法 open
		rawCandle(nil, 1.0, 2.0, 0.5, 1.5),                    // 缺时间戳
		rawCandle(int64(3000), 1.0, 2.0, 0.5, nil),            // 缺 close
	}
	out, err := Normalize(records)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(out) != 1 || out[0].OpenTime != 1000 {
		t.Fatalf("expected only the valid record, got %+v", out)
	}
}

func TestNormalizeEmpty(t *testing.T) {
	if _, err := Normalize(nil); !errors.Is(err, ErrEmptySeries) {
		t.Fatalf("expected ErrEmptySeries, got %v", err)
	}
	bad := []RawRecord{rawCandle("garbage", "x", "y", "z", "w")}
	if _, err := Normalize(bad); !errors.Is(err, ErrEmptySeries) {
		t.Fatalf("expected ErrEmptySeries for all-invalid input, got %v", err)
	}
}

func TestNormalizeSortsAndDeduplicates(t *testing.T) {
	records := []RawRecord{
		rawCandle(int64(3000), 3.0, 3.0, 3.0, 3.0),
		rawCandle(int64(1000), 1.0, 1.0, 1.0, 1.0),
		rawCandle(int64(2000), 2.0, 2.0, 2.0, 2.0),
		rawCandle(int64(2000), 9.0, 9.0, 9.0, 9.0), // 同时间戳，后出现者覆盖
	}
	out, err := Normalize(records)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 candles, got %d", len(out))
	}
	for i := 1; i < len(out); i++ {
		if out[i].OpenTime <= out[i-1].OpenTime {
			t.Fatalf("timestamps not strictly increasing: %v", Timestamps(out))
		}
	}
	if out[1].Close != 9.0 {
		t.Errorf("duplicate timestamp should keep last record, got close=%v", out[1].Close)
	}
}

func TestNormalizeKeepsChronologicalTail(t *testing.T) {
	n := MaxRenderCandles + 250
	records := make([]RawRecord, 0, n)
	for i := 0; i < n; i++ {
		ts := int64((i + 1) * 60_000)
		records = append(records, rawCandle(ts, 1.0, 2.0, 0.5, 1.5))
	}
	out, err := Normalize(records)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(out) != MaxRenderCandles {
		t.Fatalf("expected cap at %d, got %d", MaxRenderCandles, len(out))
	}
	wantFirst := int64(251 * 60_000)
	if out[0].OpenTime != wantFirst {
		t.Errorf("truncation must keep the tail: first=%d want %d", out[0].OpenTime, wantFirst)
	}
	if out[len(out)-1].OpenTime != int64(n*60_000) {
		t.Errorf("last candle missing after truncation")
	}
}

func TestParseTrades(t *testing.T) {
	raws := []RawTrade{
		{ID: "t1", EntryTime: int64(1000), EntryPrice: 10.0, ExitTime: int64(2000), ExitPrice: 12.0, Side: "buy"},
		{ID: "t2", EntryTime: "2024-03-01T00:00:00Z", EntryPrice: "99.5", Side: "sell", PositionMode: "short"},
		{ID: "t3", EntryTime: nil, EntryPrice: 5.0, Side: "buy"},                                  // 入场时间缺失，整条丢弃
		{ID: "t4", EntryTime: int64(4000), EntryPrice: 7.0, ExitTime: int64(5000), Side: "sell"}, // 出场价缺失，降级为未平仓
	}
	trades := ParseTrades(raws)
	if len(trades) != 3 {
		t.Fatalf("expected 3 trades, got %d", len(trades))
	}
	if !trades[0].HasExit() {
		t.Errorf("t1 should have a complete exit leg")
	}
	if trades[1].Legacy() {
		t.Errorf("t2 carries an explicit position mode")
	}
	if trades[1].EntryTime != time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC).UnixMilli() {
		t.Errorf("t2 entry timestamp: %d", trades[1].EntryTime)
	}
	if trades[2].HasExit() {
		t.Errorf("t4 exit leg is incomplete and must be dropped")
	}
}

func TestResolveMode(t *testing.T) {
	cases := []struct {
		trade Trade
		want  PositionMode
	}{
		{Trade{Side: SideBuy}, ModeLong},                           // 旧版记录按方向推断
		{Trade{Side: SideSell}, ModeShort},                         // 同上
		{Trade{Side: SideBuy, PositionMode: ModeShort}, ModeShort}, // 显式标签优先
		{Trade{Side: SideSell, PositionMode: ModeAll}, ModeAll},
	}
	for i, tc := range cases {
		t.Run(fmt.Sprintf("case_%d", i), func(t *testing.T) {
			if got := tc.trade.ResolveMode(); got != tc.want {
				t.Errorf("ResolveMode=%s want %s", got, tc.want)
			}
		})
	}
}

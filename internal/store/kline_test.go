package store

import (
	"context"
	"errors"
	"testing"

	"backchart/internal/market"
)

func candles(times ...int64) []market.Candle {
	out := make([]market.Candle, 0, len(times))
	for _, ts := range times {
		out = append(out, market.Candle{OpenTime: ts, Open: 1, High: 2, Low: 0.5, Close: 1.5})
	}
	return out
}

func TestMemoryStorePutTrim(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	if err := s.Put(ctx, "BTCUSDT", "1h", candles(1000, 2000, 3000, 4000), 3); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := s.Get(ctx, "BTCUSDT", "1h")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got) != 3 || got[0].OpenTime != 2000 {
		t.Fatalf("trim must keep the tail: %+v", got)
	}
}

func TestMemoryStorePutOverwritesSameOpenTime(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	_ = s.Put(ctx, "BTCUSDT", "1h", candles(1000), 10)
	update := []market.Candle{{OpenTime: 1000, Open: 1, High: 9, Low: 0.5, Close: 8}}
	_ = s.Put(ctx, "BTCUSDT", "1h", update, 10)
	got, _ := s.Get(ctx, "BTCUSDT", "1h")
	if len(got) != 1 || got[0].Close != 8 {
		t.Fatalf("same open time must overwrite in place: %+v", got)
	}
}

func TestMemoryStoreGetMissing(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.Get(context.Background(), "NOPE", "1h"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreExport(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	_ = s.Put(ctx, "ETHUSDT", "4h", candles(1000, 2000, 3000), 10)
	got, err := s.Export(ctx, "ETHUSDT", "4h", 2)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if len(got) != 2 || got[0].OpenTime != 2000 || got[1].OpenTime != 3000 {
		t.Fatalf("export must return the last N ascending: %+v", got)
	}
}

func TestMemoryStoreTrades(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	trades := []market.Trade{
		{ID: "a", EntryTime: 1000, EntryPrice: 10, Side: market.SideBuy},
		{ID: "b", EntryTime: 2000, EntryPrice: 20, ExitTime: 3000, ExitPrice: 25, Side: market.SideSell, PositionMode: market.ModeShort},
	}
	if err := s.SaveTrades(ctx, "BTCUSDT", "1h", trades); err != nil {
		t.Fatalf("SaveTrades: %v", err)
	}
	got, err := s.LoadTrades(ctx, "BTCUSDT", "1h")
	if err != nil {
		t.Fatalf("LoadTrades: %v", err)
	}
	if len(got) != 2 || got[1].PositionMode != market.ModeShort {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	// 返回的是拷贝，修改不应影响存储内容。
	got[0].EntryPrice = 999
	again, _ := s.LoadTrades(ctx, "BTCUSDT", "1h")
	if again[0].EntryPrice != 10 {
		t.Fatalf("LoadTrades must return copies")
	}
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	path := t.TempDir() + "/test.db"
	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	if err := s.Put(ctx, "BTCUSDT", "1d", candles(1000, 2000, 3000), 2); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := s.Get(ctx, "BTCUSDT", "1d")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got) != 2 || got[0].OpenTime != 2000 {
		t.Fatalf("sqlite trim must keep the tail: %+v", got)
	}

	trades := []market.Trade{
		{ID: "t1", EntryTime: 1000, EntryPrice: 10, Side: market.SideBuy}, // 旧版：无显式标签
		{ID: "t2", EntryTime: 2000, EntryPrice: 20, ExitTime: 2500, ExitPrice: 22, Side: market.SideBuy, PositionMode: market.ModeLong},
	}
	if err := s.SaveTrades(ctx, "BTCUSDT", "1d", trades); err != nil {
		t.Fatalf("SaveTrades: %v", err)
	}
	loaded, err := s.LoadTrades(ctx, "BTCUSDT", "1d")
	if err != nil {
		t.Fatalf("LoadTrades: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("expected 2 trades, got %d", len(loaded))
	}
	if !loaded[0].Legacy() {
		t.Errorf("NULL position_mode must round-trip to the legacy form")
	}
	if loaded[0].HasExit() {
		t.Errorf("open position must stay open")
	}
	if loaded[1].PositionMode != market.ModeLong || !loaded[1].HasExit() {
		t.Errorf("tagged trade round trip: %+v", loaded[1])
	}
}

func TestSQLiteStoreGetMissing(t *testing.T) {
	s, err := OpenSQLite(t.TempDir() + "/empty.db")
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer s.Close()
	if _, err := s.Get(context.Background(), "NOPE", "1h"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

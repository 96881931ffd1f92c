package store

import (
	"context"
	"errors"
	"sync"

	"backchart/internal/market"
)

// ErrNotFound 指定 symbol+interval 没有任何数据。
var ErrNotFound = errors.New("series not found")

// KlineStore 抽象：读写 symbol+interval 的 K 线序列。
type KlineStore interface {
	Put(ctx context.Context, symbol, interval string, ks []market.Candle, max int) error
	Get(ctx context.Context, symbol, interval string) ([]market.Candle, error)
}

// TradeStore 抽象：读写回测产生的交易记录。
type TradeStore interface {
	SaveTrades(ctx context.Context, symbol, interval string, trades []market.Trade) error
	LoadTrades(ctx context.Context, symbol, interval string) ([]market.Trade, error)
}

// SnapshotExporter 导出固定窗口 K 线的抽象。
type SnapshotExporter interface {
	Export(ctx context.Context, symbol, interval string, limit int) ([]market.Candle, error)
}

// MemoryStore 内存实现，K 线与交易都有。
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string][]market.Candle
	trades map[string][]market.Trade
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data:   make(map[string][]market.Candle),
		trades: make(map[string][]market.Trade),
	}
}

func key(symbol, interval string) string { return symbol + "@" + interval }

// Put 追加并裁剪；同一开盘时间的增量更新覆盖末尾而非重复追加。
func (s *MemoryStore) Put(ctx context.Context, symbol, interval string, ks []market.Candle, max int) error {
	if symbol == "" || interval == "" {
		return errors.New("symbol/interval 不能为空")
	}
	if len(ks) == 0 {
		return nil
	}
	if max <= 0 {
		max = market.MaxRenderCandles
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(symbol, interval)
	cur := s.data[k]
	for _, candle := range ks {
		n := len(cur)
		if n > 0 && cur[n-1].OpenTime == candle.OpenTime {
			cur[n-1] = candle
			continue
		}
		cur = append(cur, candle)
	}
	if len(cur) > max {
		cur = cur[len(cur)-max:]
	}
	s.data[k] = cur
	return nil
}

// Set 全量替换指定 symbol+interval 的序列。
func (s *MemoryStore) Set(ctx context.Context, symbol, interval string, ks []market.Candle) error {
	if symbol == "" || interval == "" {
		return errors.New("symbol/interval 不能为空")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	dst := make([]market.Candle, len(ks))
	copy(dst, ks)
	s.data[key(symbol, interval)] = dst
	return nil
}

// Get 返回拷贝。
func (s *MemoryStore) Get(ctx context.Context, symbol, interval string) ([]market.Candle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cur, ok := s.data[key(symbol, interval)]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]market.Candle, len(cur))
	copy(out, cur)
	return out, nil
}

// Export 返回最近 limit 根 K 线（按时间升序）。
func (s *MemoryStore) Export(ctx context.Context, symbol, interval string, limit int) ([]market.Candle, error) {
	if symbol == "" || interval == "" {
		return nil, errors.New("symbol/interval 不能为空")
	}
	if limit <= 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	cur := s.data[key(symbol, interval)]
	if len(cur) == 0 {
		return nil, nil
	}
	if limit > len(cur) {
		limit = len(cur)
	}
	out := make([]market.Candle, limit)
	copy(out, cur[len(cur)-limit:])
	return out, nil
}

// SaveTrades 全量替换指定序列的交易记录。
func (s *MemoryStore) SaveTrades(ctx context.Context, symbol, interval string, trades []market.Trade) error {
	if symbol == "" || interval == "" {
		return errors.New("symbol/interval 不能为空")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	dst := make([]market.Trade, len(trades))
	copy(dst, trades)
	s.trades[key(symbol, interval)] = dst
	return nil
}

// LoadTrades 返回拷贝；没有记录时返回空切片而非错误。
func (s *MemoryStore) LoadTrades(ctx context.Context, symbol, interval string) ([]market.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cur := s.trades[key(symbol, interval)]
	out := make([]market.Trade, len(cur))
	copy(out, cur)
	return out, nil
}

package binance

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/adshao/go-binance/v2/futures"

	"backchart/internal/logger"
	"backchart/internal/market"
)

const maxHistoryLimit = 1500

// Source 实现 market.Source，负责 Binance 合约 REST/WS 接入。
type Source struct {
	cfg    Config
	client *futures.Client

	mu     sync.Mutex
	ws     *combinedStreamsClient
	cancel context.CancelFunc
	stats  market.SourceStats
}

func New(cfg Config) (*Source, error) {
	final := cfg.withDefaults()
	client := futures.NewClient(final.APIKey, final.APISecret)
	client.HTTPClient.Timeout = final.HTTPTimeout
	return &Source{cfg: final, client: client}, nil
}

// FetchHistory 拉取最近 limit 根 K 线并按时间升序返回。
func (s *Source) FetchHistory(ctx context.Context, symbol, interval string, limit int) ([]market.Candle, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	interval = strings.ToLower(strings.TrimSpace(interval))
	if interval == "" {
		return nil, fmt.Errorf("interval is required")
	}
	logger.Debugf("[binance] klines %s %s limit=%d", symbol, interval, limit)
	klines, err := s.client.NewKlinesService().
		Symbol(symbol).Interval(interval).Limit(limit).Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance history error: %w", err)
	}
	out := make([]market.Candle, 0, len(klines))
	for _, k := range klines {
		if k == nil {
			continue
		}
		out = append(out, market.Candle{
			OpenTime: k.OpenTime,
			Open:     parseFloat(k.Open),
			High:     parseFloat(k.High),
			Low:      parseFloat(k.Low),
			Close:    parseFloat(k.Close),
			Volume:   parseFloat(k.Volume),
		})
	}
	return out, nil
}

// Subscribe 订阅实时 K 线。重复调用会替换上一次的订阅。
func (s *Source) Subscribe(ctx context.Context, symbols, intervals []string, opts market.SubscribeOptions) (<-chan market.CandleEvent, error) {
	if len(symbols) == 0 || len(intervals) == 0 {
		return nil, fmt.Errorf("symbols and intervals are required for subscription")
	}
	batch := opts.BatchSize
	if batch <= 0 {
		batch = s.cfg.WSBatchSize
	}
	ws := newCombinedStreamsClient(s.cfg.WSBaseURL, batch)
	ws.SetCallbacks(opts.OnConnect, opts.OnDisconnect)
	if err := ws.Connect(); err != nil {
		return nil, err
	}

	subCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	if s.ws != nil {
		s.ws.Close()
	}
	s.ws = ws
	s.cancel = cancel
	s.mu.Unlock()

	buffer := opts.Buffer
	if buffer <= 0 {
		buffer = 512
	}
	out := make(chan market.CandleEvent, buffer)
	var wg sync.WaitGroup
	for _, interval := range intervals {
		iv := strings.ToLower(strings.TrimSpace(interval))
		for _, symbol := range symbols {
			sym := strings.ToLower(strings.TrimSpace(symbol))
			stream := sym + "@kline_" + iv
			ch := ws.AddSubscriber(stream, buffer)
			wg.Add(1)
			go func(symbol, interval string, raw <-chan []byte) {
				defer wg.Done()
				forwardKlines(subCtx, symbol, interval, raw, out)
			}(strings.ToUpper(sym), iv, ch)
		}
		if err := ws.BatchSubscribeKlines(symbols, iv); err != nil {
			cancel()
			ws.Close()
			return nil, err
		}
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out, nil
}

func forwardKlines(ctx context.Context, symbol, interval string, raw <-chan []byte, out chan<- market.CandleEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-raw:
			if !ok {
				return
			}
			candle, ok := parseKlinePayload(payload)
			if !ok {
				continue
			}
			ev := market.CandleEvent{Symbol: symbol, Interval: interval, Candle: candle}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}
}

// Stats 返回当前 WS 运行状态。
func (s *Source) Stats() market.SourceStats {
	s.mu.Lock()
	ws := s.ws
	s.mu.Unlock()
	if ws == nil {
		return market.SourceStats{}
	}
	return ws.Stats()
}

// Close 释放底层资源。
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.ws != nil {
		s.ws.Close()
		s.ws = nil
	}
	return nil
}

var _ market.Source = (*Source)(nil)

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}

package backtest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"backchart/internal/market"
	"backchart/internal/store"
)

func newTestServer(t *testing.T) (*HTTPServer, *store.MemoryStore) {
	t.Helper()
	mem := store.NewMemoryStore()
	svc, err := NewService(ServiceParams{Klines: mem, Trades: mem})
	if err != nil {
		t.Fatal(err)
	}
	server, err := NewHTTPServer(HTTPConfig{Svc: svc})
	if err != nil {
		t.Fatal(err)
	}
	return server, mem
}

func doRequest(s *HTTPServer, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestTradesTextEndpoint(t *testing.T) {
	server, mem := newTestServer(t)
	ctx := context.Background()

	trades := []market.Trade{
		{ID: "t1", Side: market.SideBuy, EntryTime: 1_700_000_000_000, EntryPrice: 100, ExitTime: 1_700_003_600_000, ExitPrice: 110, PnL: 10},
	}
	if err := mem.SaveTrades(ctx, "BTCUSDT", "1h", trades); err != nil {
		t.Fatal(err)
	}

	w := doRequest(server, http.MethodGet, "/api/backtest/trades.txt?symbol=BTCUSDT&interval=1h")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("Content-Type = %s", ct)
	}
	body := w.Body.String()
	for _, want := range []string{"t1", "total", "10.0000"} {
		if !strings.Contains(body, want) {
			t.Fatalf("表格缺少 %q:\n%s", want, body)
		}
	}
}

func TestTradesTextRequiresParams(t *testing.T) {
	server, _ := newTestServer(t)
	w := doRequest(server, http.MethodGet, "/api/backtest/trades.txt")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestChartPNGRequiresParams(t *testing.T) {
	server, _ := newTestServer(t)
	// 参数校验在进入无头浏览器之前完成。
	w := doRequest(server, http.MethodGet, "/api/backtest/chart.png")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	w = doRequest(server, http.MethodGet, "/api/backtest/chart.png?symbol=BTCUSDT")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("缺 interval 时 status = %d, want 400", w.Code)
	}
}

func TestChartPNGNoData(t *testing.T) {
	server, _ := newTestServer(t)
	w := doRequest(server, http.MethodGet, "/api/backtest/chart.png?symbol=NONE&interval=1h")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestChartModelEndpoint(t *testing.T) {
	server, mem := newTestServer(t)
	ctx := context.Background()

	candles := hourlyCandles(20)
	if err := mem.Put(ctx, "BTCUSDT", "1h", candles, market.MaxRenderCandles); err != nil {
		t.Fatal(err)
	}
	w := doRequest(server, http.MethodGet, "/api/backtest/chart?symbol=BTCUSDT&interval=1h")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"candlestick"`) {
		t.Fatalf("响应缺少 K 线序列: %s", w.Body.String())
	}
}

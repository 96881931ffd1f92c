// Package main 启动回测图表服务：HTTP API + 页面渲染，可选实时 K 线订阅。
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"backchart/internal/analysis/indicator"
	"backchart/internal/backtest"
	"backchart/internal/config"
	"backchart/internal/gateway/binance"
	"backchart/internal/logger"
	"backchart/internal/market"
	"backchart/internal/render"
	"backchart/internal/store"
)

func main() {
	configPath := flag.String("config", "", "TOML 配置文件路径，留空用默认值")
	snapshot := flag.String("snapshot", "", "一次性截图模式：symbol@interval，截完即退出")
	snapshotOut := flag.String("out", "chart.png", "截图输出路径，配合 -snapshot 使用")
	flag.Parse()

	if err := run(*configPath, *snapshot, *snapshotOut); err != nil {
		fmt.Fprintln(os.Stderr, "backchart:", err)
		os.Exit(1)
	}
}

func run(configPath, snapshot, snapshotOut string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger.SetLevel(logger.ParseLevel(cfg.Log.Level))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	klines, trades, cleanup, err := buildStores(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	source, err := binance.New(binance.Config{
		APIKey:      cfg.Binance.APIKey,
		APISecret:   cfg.Binance.APISecret,
		WSBaseURL:   cfg.Binance.WSBaseURL,
		WSBatchSize: cfg.Binance.WSBatchSize,
	})
	if err != nil {
		return fmt.Errorf("init binance source: %w", err)
	}
	defer source.Close()

	svc, err := backtest.NewService(backtest.ServiceParams{
		Source:     source,
		Klines:     klines,
		Trades:     trades,
		Indicators: indicatorSettings(cfg.Indicator),
	})
	if err != nil {
		return err
	}
	if snapshot != "" {
		return snapshotOnce(ctx, svc, snapshot, snapshotOut)
	}

	server, err := backtest.NewHTTPServer(backtest.HTTPConfig{Addr: cfg.Server.Addr, Svc: svc})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(gctx)
	})
	if cfg.Stream.Enabled && len(cfg.Stream.Symbols) > 0 {
		g.Go(func() error {
			return consumeStream(gctx, source, klines, cfg.Stream)
		})
	}
	return g.Wait()
}

// snapshotOnce 从存储读取指定序列，截一张 PNG 后退出。
func snapshotOnce(ctx context.Context, svc *backtest.Service, target, outPath string) error {
	symbol, interval, ok := strings.Cut(target, "@")
	if !ok || symbol == "" || interval == "" {
		return fmt.Errorf("snapshot 目标格式应为 symbol@interval, got %q", target)
	}
	model, err := svc.ChartModel(ctx, symbol, interval, market.ModeAll)
	if err != nil {
		return err
	}
	if err := render.Snapshot(ctx, strings.ToUpper(symbol), model, outPath, render.SnapshotOptions{}); err != nil {
		return err
	}
	logger.Infof("截图已写入 %s", outPath)
	return nil
}

func buildStores(cfg *config.Config) (store.KlineStore, store.TradeStore, func(), error) {
	if cfg.Store.Path == "" {
		mem := store.NewMemoryStore()
		return mem, mem, func() {}, nil
	}
	db, err := store.OpenSQLite(cfg.Store.Path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open sqlite store: %w", err)
	}
	return db, db, func() { db.Close() }, nil
}

func indicatorSettings(cfg config.IndicatorConfig) *indicator.Settings {
	if !cfg.Enabled {
		return nil
	}
	return &indicator.Settings{
		EMAPeriods: cfg.EMAPeriods,
		RSIPeriod:  cfg.RSIPeriod,
		MACDFast:   cfg.MACDFast,
		MACDSlow:   cfg.MACDSlow,
		MACDSignal: cfg.MACDSignal,
	}
}

// consumeStream 持续把实时 K 线写入存储层，连接断开由订阅层自动重连。
func consumeStream(ctx context.Context, source market.Source, klines store.KlineStore, cfg config.StreamConfig) error {
	events, err := source.Subscribe(ctx, cfg.Symbols, cfg.Intervals, market.SubscribeOptions{
		OnConnect: func() {
			logger.Infof("行情流已连接 symbols=%d intervals=%d", len(cfg.Symbols), len(cfg.Intervals))
		},
		OnDisconnect: func(err error) {
			logger.Warnf("行情流断开: %v", err)
		},
	})
	if err != nil {
		return fmt.Errorf("subscribe klines: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := klines.Put(ctx, ev.Symbol, ev.Interval, []market.Candle{ev.Candle}, market.MaxRenderCandles); err != nil {
				logger.Errorf("写入 K 线失败 %s@%s: %v", ev.Symbol, ev.Interval, err)
				time.Sleep(time.Second)
			}
		}
	}
}

package backtest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"backchart/internal/analysis/indicator"
	"backchart/internal/chart"
	"backchart/internal/logger"
	"backchart/internal/market"
	"backchart/internal/store"
)

// ServiceParams 构造 Service 所需的依赖。
type ServiceParams struct {
	Source      market.Source
	Klines      store.KlineStore
	Trades      store.TradeStore
	Assignments []chart.Assignment
	// Indicators 非空时在拉取后为记录生成演示指标列。
	Indicators *indicator.Settings
}

// Service 串联数据拉取、存储与图表模型构建。
type Service struct {
	source      market.Source
	klines      store.KlineStore
	trades      store.TradeStore
	assignments []chart.Assignment
	indicators  *indicator.Settings

	mu   sync.Mutex
	jobs map[string]*FetchJob
}

func NewService(p ServiceParams) (*Service, error) {
	if p.Klines == nil {
		return nil, errors.New("kline store 不能为空")
	}
	return &Service{
		source:      p.Source,
		klines:      p.Klines,
		trades:      p.Trades,
		assignments: p.Assignments,
		indicators:  p.Indicators,
		jobs:        make(map[string]*FetchJob),
	}, nil
}

// SubmitFetch 提交异步拉取任务，立即返回任务快照。
func (s *Service) SubmitFetch(params FetchParams) (FetchJob, error) {
	if s.source == nil {
		return FetchJob{}, errors.New("没有配置行情源")
	}
	params.Symbol = strings.ToUpper(strings.TrimSpace(params.Symbol))
	params.Interval = strings.ToLower(strings.TrimSpace(params.Interval))
	if params.Symbol == "" || params.Interval == "" {
		return FetchJob{}, errors.New("symbol/interval 不能为空")
	}
	if params.Limit <= 0 || params.Limit > market.MaxRenderCandles {
		params.Limit = market.MaxRenderCandles
	}
	job := newFetchJob(params)
	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()

	go s.runFetch(job.ID, params)
	return job.copy(), nil
}

func (s *Service) runFetch(jobID string, params FetchParams) {
	s.setJobStatus(jobID, JobStatusRunning, 0, "")
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	candles, err := s.source.FetchHistory(ctx, params.Symbol, params.Interval, params.Limit)
	if err != nil {
		logger.Errorf("[backtest] fetch %s %s: %v", params.Symbol, params.Interval, err)
		s.setJobStatus(jobID, JobStatusFailed, 0, err.Error())
		return
	}
	if err := s.klines.Put(ctx, params.Symbol, params.Interval, candles, market.MaxRenderCandles); err != nil {
		s.setJobStatus(jobID, JobStatusFailed, len(candles), err.Error())
		return
	}
	s.setJobStatus(jobID, JobStatusDone, len(candles), "")
}

func (s *Service) setJobStatus(id, status string, fetched int, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return
	}
	job.Status = status
	job.Fetched = fetched
	job.Message = msg
	job.UpdatedAt = time.Now()
}

// JobSnapshot 返回指定任务的快照。
func (s *Service) JobSnapshot(id string) (FetchJob, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return FetchJob{}, false
	}
	return job.copy(), true
}

// JobsSnapshot 返回全部任务快照，按提交时间倒序。
func (s *Service) JobsSnapshot() []FetchJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]FetchJob, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j.copy())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out
}

// QueryCandles 读取指定序列最近 limit 根 K 线。
func (s *Service) QueryCandles(ctx context.Context, symbol, interval string, limit int) ([]market.Candle, error) {
	if exporter, ok := s.klines.(store.SnapshotExporter); ok && limit > 0 {
		return exporter.Export(ctx, symbol, interval, limit)
	}
	return s.klines.Get(ctx, symbol, interval)
}

// SaveTrades 持久化一次回测的交易记录（解析后形态）。
func (s *Service) SaveTrades(ctx context.Context, symbol, interval string, raws []market.RawTrade) (int, error) {
	if s.trades == nil {
		return 0, errors.New("没有配置 trade store")
	}
	parsed := market.ParseTrades(raws)
	if err := s.trades.SaveTrades(ctx, strings.ToUpper(symbol), strings.ToLower(interval), parsed); err != nil {
		return 0, err
	}
	return len(parsed), nil
}

// Trades 读取指定序列的交易记录，可按仓位维度过滤。
func (s *Service) Trades(ctx context.Context, symbol, interval string, mode market.PositionMode) ([]market.Trade, error) {
	if s.trades == nil {
		return nil, nil
	}
	all, err := s.trades.LoadTrades(ctx, strings.ToUpper(symbol), strings.ToLower(interval))
	if err != nil {
		return nil, err
	}
	return chart.FilterTrades(all, mode), nil
}

// ChartModel 运行完整流水线：存储 K 线 → 原始记录 → 指标列 → 图表模型。
func (s *Service) ChartModel(ctx context.Context, symbol, interval string, mode market.PositionMode) (chart.Model, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	interval = strings.ToLower(strings.TrimSpace(interval))
	if symbol == "" || interval == "" {
		return chart.Model{}, errors.New("symbol/interval 不能为空")
	}
	candles, err := s.klines.Get(ctx, symbol, interval)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return chart.Model{}, nil
		}
		return chart.Model{}, fmt.Errorf("load candles: %w", err)
	}

	records := recordsFromCandles(candles)
	assignments := s.assignments
	if s.indicators != nil {
		if err := indicator.Decorate(records, candles, *s.indicators); err != nil {
			return chart.Model{}, fmt.Errorf("decorate indicators: %w", err)
		}
		if len(assignments) == 0 {
			assignments = convertAssignments(indicator.DefaultAssignments(*s.indicators))
		}
	}

	var trades []market.Trade
	if s.trades != nil {
		trades, err = s.trades.LoadTrades(ctx, symbol, interval)
		if err != nil {
			return chart.Model{}, fmt.Errorf("load trades: %w", err)
		}
	}

	return chart.Build(chart.BuildInput{
		Records:     records,
		Assignments: assignments,
		Trades:      trades,
		Mode:        mode,
	})
}

func recordsFromCandles(candles []market.Candle) []market.RawRecord {
	out := make([]market.RawRecord, len(candles))
	for i, c := range candles {
		out[i] = market.RawRecord{
			Timestamp: c.OpenTime,
			Open:      c.Open,
			High:      c.High,
			Low:       c.Low,
			Close:     c.Close,
			Volume:    c.Volume,
		}
	}
	return out
}

func convertAssignments(in []indicator.Assignment) []chart.Assignment {
	out := make([]chart.Assignment, 0, len(in))
	for _, a := range in {
		out = append(out, chart.Assignment{ToolName: a.Tool, Subchart: a.Subchart})
	}
	return out
}

package backtest

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"backchart/internal/chart"
	"backchart/internal/market"
	"backchart/internal/render"
)

// HTTPServer 提供 Gin 接口，供前端触发拉取、查询 K 线与图表模型。
type HTTPServer struct {
	addr   string
	svc    *Service
	router *gin.Engine
}

type HTTPConfig struct {
	Addr string
	Svc  *Service
}

func NewHTTPServer(cfg HTTPConfig) (*HTTPServer, error) {
	if cfg.Svc == nil {
		return nil, errors.New("service 不能为空")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9991"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &HTTPServer{addr: cfg.Addr, svc: cfg.Svc, router: router}
	s.registerRoutes()
	return s, nil
}

func (s *HTTPServer) registerRoutes() {
	s.router.GET("/", s.handleChartHTML)
	api := s.router.Group("/api/backtest")
	api.POST("/fetch", s.handleFetch)
	api.GET("/fetch/:id", s.handleFetchStatus)
	api.GET("/jobs", s.handleJobs)
	api.GET("/candles", s.handleCandles)
	api.POST("/trades", s.handleSaveTrades)
	api.GET("/trades", s.handleTrades)
	api.GET("/trades.txt", s.handleTradesText)
	api.GET("/chart", s.handleChartModel)
	api.GET("/chart.html", s.handleChartHTML)
	api.GET("/chart.png", s.handleChartPNG)
}

func (s *HTTPServer) handleFetch(c *gin.Context) {
	var req struct {
		Symbol   string `json:"symbol" binding:"required"`
		Interval string `json:"interval" binding:"required"`
		Limit    int    `json:"limit"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	job, err := s.svc.SubmitFetch(FetchParams{Symbol: req.Symbol, Interval: req.Interval, Limit: req.Limit})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"job": job})
}

func (s *HTTPServer) handleFetchStatus(c *gin.Context) {
	id := c.Param("id")
	job, ok := s.svc.JobSnapshot(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"job": job})
}

func (s *HTTPServer) handleJobs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"jobs": s.svc.JobsSnapshot()})
}

func (s *HTTPServer) handleCandles(c *gin.Context) {
	symbol := c.Query("symbol")
	interval := c.Query("interval")
	if symbol == "" || interval == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol/interval 必填"})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "200"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit 非法"})
		return
	}
	data, err := s.svc.QueryCandles(c.Request.Context(), symbol, interval, limit)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"candles": data})
}

func (s *HTTPServer) handleSaveTrades(c *gin.Context) {
	symbol := c.Query("symbol")
	interval := c.Query("interval")
	if symbol == "" || interval == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol/interval 必填"})
		return
	}
	var req struct {
		Trades []market.RawTrade `json:"trades"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	kept, err := s.svc.SaveTrades(c.Request.Context(), symbol, interval, req.Trades)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"saved": kept, "dropped": len(req.Trades) - kept})
}

func (s *HTTPServer) handleTrades(c *gin.Context) {
	symbol := c.Query("symbol")
	interval := c.Query("interval")
	if symbol == "" || interval == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol/interval 必填"})
		return
	}
	mode := market.ParsePositionMode(c.DefaultQuery("mode", "all"))
	trades, err := s.svc.Trades(c.Request.Context(), symbol, interval, mode)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades, "summary": Summarize(trades)})
}

// handleTradesText 输出终端风格的交易表格，便于 curl 直接查看。
func (s *HTTPServer) handleTradesText(c *gin.Context) {
	symbol := c.Query("symbol")
	interval := c.Query("interval")
	if symbol == "" || interval == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol/interval 必填"})
		return
	}
	mode := market.ParsePositionMode(c.DefaultQuery("mode", "all"))
	trades, err := s.svc.Trades(c.Request.Context(), symbol, interval, mode)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.Header("Content-Type", "text/plain; charset=utf-8")
	RenderTradesTable(c.Writer, trades)
}

func (s *HTTPServer) handleChartModel(c *gin.Context) {
	model, symbol, ok := s.buildModel(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "panels": model.Panels})
}

func (s *HTTPServer) handleChartHTML(c *gin.Context) {
	model, symbol, ok := s.buildModel(c)
	if !ok {
		return
	}
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := render.WritePage(c.Writer, symbol, model); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// handleChartPNG 用无头浏览器把图表截成 PNG 返回，供不跑前端的
// 调用方落盘或嵌入报告。
func (s *HTTPServer) handleChartPNG(c *gin.Context) {
	model, symbol, ok := s.buildModel(c)
	if !ok {
		return
	}
	// 空模型没有 canvas 可等，直接 404 而不是让浏览器空转到超时。
	if len(model.Panels) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no data"})
		return
	}
	buf, err := render.Capture(c.Request.Context(), symbol, model, render.SnapshotOptions{})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "image/png", buf)
}

func (s *HTTPServer) buildModel(c *gin.Context) (chart.Model, string, bool) {
	symbol := c.Query("symbol")
	interval := c.Query("interval")
	if symbol == "" || interval == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol/interval 必填"})
		return chart.Model{}, "", false
	}
	mode := market.ParsePositionMode(c.DefaultQuery("mode", "all"))
	model, err := s.svc.ChartModel(c.Request.Context(), symbol, interval, mode)
	if err != nil {
		if errors.Is(err, chart.ErrPrimaryNotCandlestick) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		} else {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		}
		return chart.Model{}, "", false
	}
	return model, symbol, true
}

// Start 启动 HTTP 服务，阻塞直到 ctx 取消或出现错误。
func (s *HTTPServer) Start(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}

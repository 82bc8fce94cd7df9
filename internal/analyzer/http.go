package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"equilens/internal/report"
	"equilens/internal/store"

	"github.com/gin-gonic/gin"
)

// HTTPServer 提供 Gin 接口：提交分析、查询运行与产物。
type HTTPServer struct {
	addr   string
	svc    *Service
	store  *store.Store
	router *gin.Engine
}

type HTTPConfig struct {
	Addr  string
	Svc   *Service
	Store *store.Store
}

func NewHTTPServer(cfg HTTPConfig) (*HTTPServer, error) {
	if cfg.Svc == nil {
		return nil, errors.New("service 不能为空")
	}
	if cfg.Store == nil {
		return nil, errors.New("store 不能为空")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9985"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &HTTPServer{
		addr:   cfg.Addr,
		svc:    cfg.Svc,
		store:  cfg.Store,
		router: router,
	}
	s.registerRoutes()
	return s, nil
}

func (s *HTTPServer) registerRoutes() {
	api := s.router.Group("/api/analysis")
	api.GET("/health", s.handleHealth)
	api.POST("/runs", s.handleRunStart)
	api.GET("/runs", s.handleRunList)
	api.GET("/runs/:id", s.handleRunDetail)
	api.GET("/runs/:id/snapshots", s.handleRunSnapshots)
	api.GET("/runs/:id/events", s.handleRunEvents)
	api.GET("/runs/:id/trades", s.handleRunTrades)
	api.GET("/runs/:id/warnings", s.handleRunWarnings)
	api.GET("/runs/:id/stats", s.handleRunStats)
}

// Router 暴露底层路由，便于测试注入请求。
func (s *HTTPServer) Router() http.Handler {
	return s.router
}

func (s *HTTPServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *HTTPServer) handleRunStart(c *gin.Context) {
	var req struct {
		Rows                 json.RawMessage `json:"rows" binding:"required"`
		Timeframe            string          `json:"timeframe"`
		InitialBalance       *float64        `json:"initial_balance"`
		ContractMultiplier   *float64        `json:"contract_multiplier"`
		SyntheticStepMinutes *int            `json:"synthetic_step_minutes"`
		OffsetHours          *float64        `json:"offset_hours"`
		ThresholdPercent     *float64        `json:"threshold_percent"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	run, err := s.svc.StartRun(SubmitRequest{
		RowsJSON:             string(req.Rows),
		Timeframe:            req.Timeframe,
		InitialBalance:       req.InitialBalance,
		ContractMultiplier:   req.ContractMultiplier,
		SyntheticStepMinutes: req.SyntheticStepMinutes,
		OffsetHours:          req.OffsetHours,
		ThresholdPercent:     req.ThresholdPercent,
	})
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, report.ErrEmptyReport) {
			status = http.StatusUnprocessableEntity
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"run": run})
}

func (s *HTTPServer) handleRunList(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	runs, err := s.store.ListRuns(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (s *HTTPServer) handleRunDetail(c *gin.Context) {
	run, err := s.store.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrRunNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"run": run})
}

func (s *HTTPServer) handleRunSnapshots(c *gin.Context) {
	snaps, err := s.store.ListSnapshots(c.Request.Context(), c.Param("id"), c.Query("symbol"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"snapshots": snaps})
}

func (s *HTTPServer) handleRunEvents(c *gin.Context) {
	events, err := s.store.ListEvents(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (s *HTTPServer) handleRunTrades(c *gin.Context) {
	trades, err := s.store.ListTrades(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	open, err := s.store.ListOpenTrades(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades, "open_trades": open})
}

func (s *HTTPServer) handleRunWarnings(c *gin.Context) {
	warnings, err := s.store.ListWarnings(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"warnings": warnings})
}

func (s *HTTPServer) handleRunStats(c *gin.Context) {
	run, err := s.store.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrRunNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if run.Status != StatusDone {
		c.JSON(http.StatusConflict, gin.H{"error": "运行尚未完成", "status": run.Status})
		return
	}
	var runStats RunStats
	if len(run.Stats) > 0 {
		if err := json.Unmarshal(run.Stats, &runStats); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"stats": runStats})
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

package app

import (
	"context"
	"fmt"

	"equilens/internal/analyzer"
	"equilens/internal/config"
	"equilens/internal/logger"
	"equilens/internal/store"

	"golang.org/x/sync/errgroup"
)

// App 负责应用级编排：加载配置→初始化依赖→启动分析服务。
type App struct {
	cfg     *config.Config
	store   *store.Store
	svc     *analyzer.Service
	httpSrv *analyzer.HTTPServer
}

// NewApp 根据配置构建应用对象（不启动）。
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildApp(cfg)
}

// Run 启动 HTTP 服务并阻塞到 ctx 取消。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	defer func() {
		if err := a.store.Close(); err != nil {
			logger.Warnf("关闭数据库失败: %v", err)
		}
	}()

	a.svc.SetContext(ctx)
	logger.Infof("equilens 启动：addr=%s db=%s timeframe=%s",
		a.cfg.App.HTTPAddr, a.cfg.Store.Path, a.cfg.Feed.Timeframe)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := a.httpSrv.Start(ctx); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})
	return group.Wait()
}

// Service 暴露底层分析服务（供测试与回放工具使用）。
func (a *App) Service() *analyzer.Service {
	if a == nil {
		return nil
	}
	return a.svc
}

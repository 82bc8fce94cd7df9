package app

import (
	"time"

	"equilens/internal/analyzer"
	"equilens/internal/config"
	"equilens/internal/feed"
	"equilens/internal/market"
	"equilens/internal/store"
)

// buildApp 按依赖顺序构建全部组件：store → feed client →
// analyzer service → HTTP server。组件很少，手工装配足够。
func buildApp(cfg *config.Config) (*App, error) {
	catalog, err := market.LoadCatalog(cfg.Reconstruct.InstrumentsPath)
	if err != nil {
		return nil, err
	}

	st, err := store.New(cfg.Store.Path)
	if err != nil {
		return nil, err
	}

	client := feed.NewClient(feed.ClientConfig{
		BaseURL:         cfg.Feed.BaseURL,
		Timeout:         time.Duration(cfg.Feed.TimeoutSeconds) * time.Second,
		RateLimitPerMin: cfg.Feed.RateLimitPerMin,
	})

	svc, err := analyzer.NewService(analyzer.ServiceConfig{
		Store:  st,
		Source: client,
		Defaults: analyzer.RunConfig{
			Timeframe:            cfg.Feed.Timeframe,
			InitialBalance:       cfg.Reconstruct.InitialBalance,
			ContractMultiplier:   cfg.Reconstruct.ContractMultiplier,
			SyntheticStepMinutes: cfg.Reconstruct.SyntheticStepMinutes,
			OffsetHours:          cfg.Reconstruct.OffsetHours,
			ThresholdPercent:     cfg.Drawdown.ThresholdPercent,
		},
		Catalog:       catalog,
		MaxConcurrent: cfg.Analyzer.MaxConcurrent,
	})
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	httpSrv, err := analyzer.NewHTTPServer(analyzer.HTTPConfig{
		Addr:  cfg.App.HTTPAddr,
		Svc:   svc,
		Store: st,
	})
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	return &App{
		cfg:     cfg,
		store:   st,
		svc:     svc,
		httpSrv: httpSrv,
	}, nil
}

package feed

import (
	"context"

	"equilens/internal/market"
)

// Request 描述一次行情拉取。时间戳为行情源时钟（UTC）的 Unix 毫秒；
// 上游 API 以自然日为粒度，客户端负责把毫秒区间放大到整天再裁剪。
type Request struct {
	Symbol    string
	Timeframe string
	Start     int64
	End       int64
}

// Source 统一不同行情数据源的拉取行为。
type Source interface {
	Fetch(ctx context.Context, req Request) ([]market.Candle, error)
	Name() string
}

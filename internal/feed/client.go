package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"equilens/internal/market"

	"golang.org/x/time/rate"
)

const defaultTimeout = 30 * time.Second

// Client 基于行情 REST 接口 /market-data/get 拉取历史 K 线。
// 任何失败（超时、非 2xx、响应不可解析）都只返回 error，
// 由调用方降级为"无行情数据"，绝不致命。
type Client struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// ClientConfig 配置行情客户端。
type ClientConfig struct {
	BaseURL         string
	Timeout         time.Duration
	RateLimitPerMin int
}

func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	perSec := rate.Limit(float64(cfg.RateLimitPerMin) / 60.0)
	if cfg.RateLimitPerMin <= 0 {
		perSec = 4
	}
	return &Client{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(perSec, 4),
	}
}

func (c *Client) Name() string { return "market-data" }

// Fetch 拉取 [req.Start, req.End] 覆盖的 K 线（行情源时钟），
// 升序返回并裁剪到毫秒区间。
func (c *Client) Fetch(ctx context.Context, req Request) ([]market.Candle, error) {
	if req.Symbol == "" {
		return nil, fmt.Errorf("symbol 不能为空")
	}
	tf, err := ParseTimeframe(req.Timeframe)
	if err != nil {
		return nil, err
	}
	if req.End < req.Start {
		req.Start, req.End = req.End, req.Start
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("base url 无效: %w", err)
	}
	u.Path = "/market-data/get"
	q := u.Query()
	q.Set("from_date", time.UnixMilli(req.Start).UTC().Format("2006-01-02"))
	q.Set("to_date", time.UnixMilli(req.End).UTC().Format("2006-01-02"))
	q.Set("timeframe", tf.SourceInterval)
	q.Set("symbols", req.Symbol)
	u.RawQuery = q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("行情接口返回状态码 %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	candles, err := DecodeCandles(string(body))
	if err != nil {
		return nil, err
	}
	return clampRange(candles, req.Start, req.End), nil
}

// clampRange 升序排序并裁剪到毫秒区间（from/to 以天为粒度，响应会溢出边界）。
func clampRange(candles []market.Candle, start, end int64) []market.Candle {
	sort.Slice(candles, func(i, j int) bool {
		return candles[i].OpenTime < candles[j].OpenTime
	})
	out := candles[:0]
	for _, c := range candles {
		if c.OpenTime < start || c.OpenTime > end {
			continue
		}
		out = append(out, c)
	}
	return out
}

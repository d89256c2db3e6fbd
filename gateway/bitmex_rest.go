package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

// BitmexRESTEndpoint 生产环境 REST 根路径。
const BitmexRESTEndpoint = "https://www.bitmex.com/api/v1"

// Instrument /instrument 返回中用到的字段。
type Instrument struct {
	Symbol      string    `json:"symbol"`
	FundingRate float64   `json:"fundingRate"` // 每 8 小时
	MarkPrice   float64   `json:"markPrice"`
	Timestamp   time.Time `json:"timestamp"`
}

// BitmexRESTClient 只读公共接口客户端；HTTPClient 可注入 httptest。
type BitmexRESTClient struct {
	BaseURL    string
	HTTPClient *http.Client
	Limiter    *rate.Limiter
}

// NewBitmexRESTClient rps<=0 时不限流。
func NewBitmexRESTClient(baseURL string, rps float64, timeout time.Duration) *BitmexRESTClient {
	if baseURL == "" {
		baseURL = BitmexRESTEndpoint
	}
	lim := rate.NewLimiter(rate.Inf, 1)
	if rps > 0 {
		lim = rate.NewLimiter(rate.Limit(rps), 1)
	}
	return &BitmexRESTClient{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: timeout},
		Limiter:    lim,
	}
}

// Instrument 查询单个合约；返回空数组视为错误。
func (c *BitmexRESTClient) Instrument(ctx context.Context, symbol string) (Instrument, error) {
	if c == nil || c.HTTPClient == nil {
		return Instrument{}, fmt.Errorf("http client not set")
	}
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return Instrument{}, fmt.Errorf("rate limit: %w", err)
		}
	}
	endpoint := c.BaseURL + "/instrument?" + url.Values{"symbol": {symbol}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Instrument{}, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return Instrument{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return Instrument{}, fmt.Errorf("instrument status %d", resp.StatusCode)
	}
	var out []Instrument
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Instrument{}, fmt.Errorf("decode instrument: %w", err)
	}
	if len(out) == 0 {
		return Instrument{}, fmt.Errorf("instrument %s not found", symbol)
	}
	return out[0], nil
}

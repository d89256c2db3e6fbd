package strategy

import (
	"context"
	"errors"
	"sync"
	"time"

	"merton-mm-go/gateway"
	"merton-mm-go/infrastructure/logger"
	"merton-mm-go/metrics"
	"merton-mm-go/monitor/logschema"
)

// FundingPeriodsPerYear BitMEX 每 8 小时结算一次资金费率。
const FundingPeriodsPerYear = HoursPerYear / 8

// FundingAnnual 把每 8 小时的资金费率换算成年化连续收益率 q。
func FundingAnnual(rate8h float64) float64 {
	return rate8h * FundingPeriodsPerYear
}

// FundingCache 最近一次成功刷新的资金费率；刷新失败保留旧值。
type FundingCache struct {
	mu        sync.RWMutex
	rate8h    float64
	mark      float64
	updatedAt time.Time
}

func (c *FundingCache) Set(rate8h, mark float64, at time.Time) {
	c.mu.Lock()
	c.rate8h, c.mark, c.updatedAt = rate8h, mark, at
	c.mu.Unlock()
}

func (c *FundingCache) Rate() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rate8h
}

// Annual 年化后的 q。
func (c *FundingCache) Annual() float64 {
	return FundingAnnual(c.Rate())
}

func (c *FundingCache) Mark() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mark
}

func (c *FundingCache) UpdatedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.updatedAt
}

// InstrumentSource 由 gateway.BitmexRESTClient 实现。
type InstrumentSource interface {
	Instrument(ctx context.Context, symbol string) (gateway.Instrument, error)
}

// FundingPoller 周期性刷新 FundingCache。
type FundingPoller struct {
	src      InstrumentSource
	symbol   string
	interval time.Duration
	cache    *FundingCache
	log      *logger.Logger
	metrics  *metrics.Collector

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	lastErr error
}

func NewFundingPoller(src InstrumentSource, symbol string, interval time.Duration, cache *FundingCache, log *logger.Logger, m *metrics.Collector) *FundingPoller {
	if interval <= 0 {
		interval = time.Minute
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &FundingPoller{src: src, symbol: symbol, interval: interval, cache: cache, log: log, metrics: m}
}

func (p *FundingPoller) Name() string { return "funding_poller" }

// Refresh 拉取一次并写入缓存。
func (p *FundingPoller) Refresh(ctx context.Context) error {
	inst, err := p.src.Instrument(ctx, p.symbol)
	p.mu.Lock()
	p.lastErr = err
	p.mu.Unlock()
	if err != nil {
		if p.metrics != nil {
			p.metrics.RecordFunding(0, err)
		}
		p.log.LogError(err, map[string]interface{}{"component": p.Name(), "symbol": p.symbol})
		return err
	}
	p.cache.Set(inst.FundingRate, inst.MarkPrice, time.Now())
	annual := FundingAnnual(inst.FundingRate)
	if p.metrics != nil {
		p.metrics.RecordFunding(annual, nil)
	}
	p.log.LogEvent(logschema.EventFundingRefresh, map[string]interface{}{
		"symbol":   p.symbol,
		"rate_8h":  inst.FundingRate,
		"q_annual": annual,
		"mark":     inst.MarkPrice,
	})
	return nil
}

// Start 立即刷新一次，然后按 interval 轮询。
func (p *FundingPoller) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	p.mu.Lock()
	p.cancel, p.done = cancel, done
	p.mu.Unlock()

	go func() {
		defer close(done)
		_ = p.Refresh(ctx)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = p.Refresh(ctx)
			}
		}
	}()
	return nil
}

func (p *FundingPoller) Stop() error {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

// Health 最近一次刷新失败且缓存超过 3 个周期未更新时报错。
func (p *FundingPoller) Health() error {
	p.mu.Lock()
	lastErr := p.lastErr
	p.mu.Unlock()
	if lastErr == nil {
		return nil
	}
	if time.Since(p.cache.UpdatedAt()) > 3*p.interval {
		return errors.Join(errors.New("funding stale"), lastErr)
	}
	return nil
}

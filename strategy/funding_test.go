package strategy

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"merton-mm-go/gateway"
	"merton-mm-go/metrics"
)

type fakeInstruments struct {
	calls atomic.Int32
	rate  float64
	err   error
}

func (f *fakeInstruments) Instrument(ctx context.Context, symbol string) (gateway.Instrument, error) {
	f.calls.Add(1)
	if f.err != nil {
		return gateway.Instrument{}, f.err
	}
	return gateway.Instrument{Symbol: symbol, FundingRate: f.rate, MarkPrice: 62000}, nil
}

func TestFundingAnnual(t *testing.T) {
	assert.InDelta(t, 0.0001*1095.75, FundingAnnual(0.0001), 1e-15)
	assert.Equal(t, 0.0, FundingAnnual(0))
	assert.Less(t, FundingAnnual(-0.0002), 0.0)
}

func TestFundingPoller_Refresh(t *testing.T) {
	src := &fakeInstruments{rate: 0.0001}
	cache := &FundingCache{}
	p := NewFundingPoller(src, "XBTUSDT", time.Minute, cache, nil, metrics.New(metrics.DefaultConfig()))

	require.NoError(t, p.Refresh(context.Background()))
	assert.Equal(t, 0.0001, cache.Rate())
	assert.Equal(t, 62000.0, cache.Mark())
	assert.InDelta(t, FundingAnnual(0.0001), cache.Annual(), 1e-15)

	// 失败保留旧值
	src.err = errors.New("503")
	assert.Error(t, p.Refresh(context.Background()))
	assert.Equal(t, 0.0001, cache.Rate())
	assert.NoError(t, p.Health(), "cache is still fresh")
}

func TestFundingPoller_StartStop(t *testing.T) {
	src := &fakeInstruments{rate: 0.0002}
	cache := &FundingCache{}
	p := NewFundingPoller(src, "XBTUSDT", 10*time.Millisecond, cache, nil, nil)

	require.NoError(t, p.Start(context.Background()))
	assert.Eventually(t, func() bool { return src.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	require.NoError(t, p.Stop())
	assert.Equal(t, 0.0002, cache.Rate())
}

func TestFundingPoller_HealthStale(t *testing.T) {
	src := &fakeInstruments{err: errors.New("timeout")}
	p := NewFundingPoller(src, "XBTUSDT", time.Millisecond, &FundingCache{}, nil, nil)
	assert.Error(t, p.Refresh(context.Background()))
	assert.ErrorContains(t, p.Health(), "funding stale")
}

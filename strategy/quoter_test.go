package strategy

import (
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"merton-mm-go/infrastructure/alert"
	"merton-mm-go/infrastructure/logger"
	"merton-mm-go/market"
	"merton-mm-go/merton"
	"merton-mm-go/metrics"
	"merton-mm-go/monitor/logschema"
)

type recordingSink struct {
	mu       sync.Mutex
	quotes   []Quote
	monitors []MonitorRecord
	err      error
}

func (s *recordingSink) PublishQuote(q Quote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotes = append(s.quotes, q)
	return s.err
}

func (s *recordingSink) PublishMonitor(m MonitorRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.monitors = append(s.monitors, m)
	return s.err
}

type quoterFixture struct {
	quoter *MertonQuoter
	cal    *merton.Calibrator
	sink   *recordingSink
	alerts *alert.MockChannel
	logs   *observer.ObservedLogs
}

func newQuoterFixture(t *testing.T, qc QuoteConfig) quoterFixture {
	t.Helper()
	cc := merton.DefaultConfig()
	cc.WindowSize = 512
	cc.MinPointsForUpdate = 32
	cc.UpdateEveryNReturns = 32
	cc.NMax = 8
	cc.CoordinateSteps = 1
	cal, err := merton.NewCalibrator(merton.DefaultParams(), cc)
	require.NoError(t, err)

	core, logs := observer.New(zapcore.DebugLevel)
	ch := alert.NewMockChannel("mock")
	funding := &FundingCache{}
	funding.Set(0.0001, 68000, time.Now())
	sink := &recordingSink{}

	q, err := NewMertonQuoter("XBTUSDT", cal, qc, QuoterDeps{
		Funding: funding,
		Sink:    sink,
		Alerts:  alert.NewManager([]alert.Channel{ch}, time.Minute),
		Metrics: metrics.New(metrics.DefaultConfig()),
		Log:     logger.Wrap(zap.New(core)),
	})
	require.NoError(t, err)
	return quoterFixture{quoter: q, cal: cal, sink: sink, alerts: ch, logs: logs}
}

func defaultQuoteConfig() QuoteConfig {
	return QuoteConfig{
		HorizonHours:        8,
		MinHalfSpreadBps:    2,
		TickSize:            0.5,
		MonitorEveryNQuotes: 120,
		DivergenceAlertBps:  5,
	}
}

func tickAt(t *testing.T, bid, ask float64, ts time.Time) market.Tick {
	t.Helper()
	tk, err := market.NewTick("XBTUSDT", bid, ask, ts)
	require.NoError(t, err)
	return tk
}

func assertSchemaClean(t *testing.T, logs *observer.ObservedLogs) {
	t.Helper()
	for _, e := range logs.All() {
		assert.NotContains(t, e.ContextMap(), "_schema_error", "event %v", e.ContextMap()["event"])
	}
}

func TestMertonQuoter_OnTick(t *testing.T) {
	f := newQuoterFixture(t, defaultQuoteConfig())
	ts := time.UnixMicro(1_700_000_000_000_000)

	quote, err := f.quoter.OnTick(tickAt(t, 68000, 68001, ts))
	require.NoError(t, err)

	cfg := defaultQuoteConfig()
	qAnnual := FundingAnnual(0.0001)
	p := f.cal.Params()
	want := 68000.5 * math.Exp((-qAnnual-p.Lambda*p.Compensator())*cfg.HorizonYears())
	assert.InEpsilon(t, want, quote.Theo, 1e-12)
	assert.InDelta(t, 0.109575, quote.QAnnual, 1e-12)

	half := quote.Theo * 2 / 1e4
	assert.LessOrEqual(t, quote.Bid, quote.Theo-half)
	assert.GreaterOrEqual(t, quote.Ask, quote.Theo+half)
	assert.Equal(t, 0.0, math.Mod(quote.Bid, 0.5))
	assert.Equal(t, 0.0, math.Mod(quote.Ask, 0.5))
	assert.Less(t, quote.Ask-quote.Bid, 2*half+1.0+1e-9)

	require.Len(t, f.sink.quotes, 1)
	assert.Equal(t, quote, f.sink.quotes[0])
	assert.Equal(t, 1, f.logs.FilterField(zap.String("event", logschema.EventQuote)).Len())
	assertSchemaClean(t, f.logs)
}

func TestMertonQuoter_MarketSpreadWins(t *testing.T) {
	f := newQuoterFixture(t, defaultQuoteConfig())
	quote, err := f.quoter.OnTick(tickAt(t, 67900, 68100, time.UnixMicro(1)))
	require.NoError(t, err)
	assert.LessOrEqual(t, quote.Bid, quote.Theo-100)
	assert.GreaterOrEqual(t, quote.Ask, quote.Theo+100)
}

func TestMertonQuoter_RejectsOutOfOrderTick(t *testing.T) {
	f := newQuoterFixture(t, defaultQuoteConfig())
	ts := time.UnixMicro(1_700_000_000_000_000)
	_, err := f.quoter.OnTick(tickAt(t, 68000, 68001, ts))
	require.NoError(t, err)

	_, err = f.quoter.OnTick(tickAt(t, 68000, 68001, ts.Add(-time.Second)))
	assert.ErrorIs(t, err, ErrTickRejected)
	assert.Len(t, f.sink.quotes, 1)
	assert.Equal(t, 1, f.logs.FilterField(zap.String("event", logschema.EventTickRejected)).Len())
	assertSchemaClean(t, f.logs)
}

func TestMertonQuoter_ReferenceMonitor(t *testing.T) {
	cfg := defaultQuoteConfig()
	cfg.MonitorEveryNQuotes = 3
	f := newQuoterFixture(t, cfg)

	ts := time.UnixMicro(1_700_000_000_000_000)
	for i := 0; i < 7; i++ {
		_, err := f.quoter.OnTick(tickAt(t, 68000+float64(i), 68001+float64(i), ts.Add(time.Duration(i)*time.Second)))
		require.NoError(t, err)
	}

	require.Len(t, f.sink.monitors, 2)
	rec := f.sink.monitors[0]
	assert.Empty(t, rec.Error)
	assert.InEpsilon(t, rec.Fast, rec.Reference, 1e-9)
	assert.Less(t, math.Abs(rec.GapBps), 1e-3)
	assert.Equal(t, 0, f.alerts.Count())
	assert.Equal(t, 2, f.logs.FilterField(zap.String("event", logschema.EventReferenceMonitor)).Len())
	assertSchemaClean(t, f.logs)
}

func TestMertonQuoter_LogsCalibration(t *testing.T) {
	f := newQuoterFixture(t, defaultQuoteConfig())
	ts := time.UnixMicro(1_700_000_000_000_000)
	mid := 68000.0
	for i := 0; i <= 32; i++ {
		if i%2 == 0 {
			mid *= 1.0004
		} else {
			mid *= 0.9995
		}
		_, err := f.quoter.OnTick(tickAt(t, mid-0.5, mid+0.5, ts.Add(time.Duration(i)*5*time.Second)))
		require.NoError(t, err)
	}

	entries := f.logs.FilterField(zap.String("event", logschema.EventCalibrationUpdate)).All()
	require.Len(t, entries, 1)
	assert.EqualValues(t, 32, entries[0].ContextMap()["samples"])
	assertSchemaClean(t, f.logs)
}

func TestMertonQuoter_SinkErrorDoesNotFailQuote(t *testing.T) {
	f := newQuoterFixture(t, defaultQuoteConfig())
	f.sink.err = errors.New("broker down")
	_, err := f.quoter.OnTick(tickAt(t, 68000, 68001, time.UnixMicro(1)))
	assert.NoError(t, err)
	assert.Equal(t, 1, f.logs.FilterMessage("error_event").Len())
}

func TestMertonQuoter_UpdateConfig(t *testing.T) {
	f := newQuoterFixture(t, defaultQuoteConfig())

	bad := defaultQuoteConfig()
	bad.TickSize = 0
	assert.Error(t, f.quoter.UpdateConfig(bad))
	assert.Equal(t, 0.5, f.quoter.Config().TickSize)

	wide := defaultQuoteConfig()
	wide.MinHalfSpreadBps = 50
	require.NoError(t, f.quoter.UpdateConfig(wide))
	quote, err := f.quoter.OnTick(tickAt(t, 68000, 68001, time.UnixMicro(1)))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, quote.Ask-quote.Bid, 2*quote.Theo*50/1e4)
}

func TestNewMertonQuoter_Validation(t *testing.T) {
	_, err := NewMertonQuoter("XBTUSDT", nil, defaultQuoteConfig(), QuoterDeps{})
	assert.Error(t, err)

	cal, err := merton.NewCalibrator(merton.DefaultParams(), merton.DefaultConfig())
	require.NoError(t, err)
	cfg := defaultQuoteConfig()
	cfg.HorizonHours = 0
	_, err = NewMertonQuoter("XBTUSDT", cal, cfg, QuoterDeps{})
	assert.Error(t, err)
}

func TestRoundOutward(t *testing.T) {
	tests := []struct {
		bid, ask, tick   float64
		wantBid, wantAsk float64
	}{
		{100.26, 100.74, 0.5, 100, 101},
		{100.5, 101.0, 0.5, 100.5, 101},
		{0.123456, 0.123999, 0.0001, 0.1234, 0.124},
		{99.9, 100.1, 0, 99.9, 100.1},
	}
	for _, tt := range tests {
		b, a := roundOutward(tt.bid, tt.ask, tt.tick)
		assert.Equal(t, tt.wantBid, b)
		assert.Equal(t, tt.wantAsk, a)
	}
}

package strategy

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/shopspring/decimal"

	"merton-mm-go/infrastructure/alert"
	"merton-mm-go/infrastructure/logger"
	"merton-mm-go/market"
	"merton-mm-go/merton"
	"merton-mm-go/metrics"
	"merton-mm-go/monitor/logschema"
)

// ErrTickRejected 校准器拒绝了该 tick（价格非法或时间戳回退），不产生报价。
var ErrTickRejected = errors.New("tick rejected by calibrator")

// MertonQuoter 围绕 Merton 公允价做双边报价。
// OnTick 只能由行情线程单线程调用；UpdateConfig 可并发调用。
type MertonQuoter struct {
	symbol  string
	cal     *merton.Calibrator
	funding *FundingCache
	sink    Sink
	alerts  *alert.Manager
	metrics *metrics.Collector
	log     *logger.Logger

	cfg         atomic.Pointer[QuoteConfig]
	quotes      atomic.Uint64
	lastAttempt uint64
}

// QuoterDeps 可选依赖，nil 字段表示不启用。
type QuoterDeps struct {
	Funding *FundingCache
	Sink    Sink
	Alerts  *alert.Manager
	Metrics *metrics.Collector
	Log     *logger.Logger
}

func NewMertonQuoter(symbol string, cal *merton.Calibrator, cfg QuoteConfig, deps QuoterDeps) (*MertonQuoter, error) {
	if cal == nil {
		return nil, errors.New("calibrator required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Funding == nil {
		deps.Funding = &FundingCache{}
	}
	if deps.Log == nil {
		deps.Log = logger.NewNop()
	}
	q := &MertonQuoter{
		symbol:  symbol,
		cal:     cal,
		funding: deps.Funding,
		sink:    deps.Sink,
		alerts:  deps.Alerts,
		metrics: deps.Metrics,
		log:     deps.Log,
	}
	q.cfg.Store(&cfg)
	if q.metrics != nil {
		p := cal.Params()
		q.metrics.SetParams(p.Sigma, p.Lambda, p.MuJ, p.DeltaJ)
	}
	return q, nil
}

// UpdateConfig 热更新报价参数；非法配置被拒绝，旧配置保留。
func (q *MertonQuoter) UpdateConfig(cfg QuoteConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	q.cfg.Store(&cfg)
	return nil
}

func (q *MertonQuoter) Config() QuoteConfig { return *q.cfg.Load() }

// OnTick 接入一个 BBO：更新校准器、按需重新校准、计算公允价与报价，并周期性做参考定价监控。
func (q *MertonQuoter) OnTick(t market.Tick) (Quote, error) {
	cfg := q.Config()

	accepted := q.cal.UpdateTick(t.Mid, t.TsMicros())
	if q.metrics != nil {
		q.metrics.RecordTick(accepted, t.Mid)
	}
	if !accepted {
		q.log.LogEvent(logschema.EventTickRejected, map[string]interface{}{
			"symbol": t.Symbol,
			"price":  t.Mid,
			"ts":     t.TsMicros(),
		})
		return Quote{}, ErrTickRejected
	}

	q.cal.MaybeUpdateParams()
	q.reportFit(t.Symbol)
	if q.metrics != nil {
		q.metrics.SetSamples(q.cal.SampleCount())
	}

	qAnnual := q.funding.Annual()
	tYears := cfg.HorizonYears()
	theo, err := q.cal.FairValue(t.Mid, qAnnual, tYears, cfg.RiskFreeRate)
	if err != nil {
		q.log.LogError(err, map[string]interface{}{"symbol": t.Symbol, "mid": t.Mid})
		return Quote{}, fmt.Errorf("fair value: %w", err)
	}

	half := math.Max(theo*cfg.MinHalfSpreadBps/1e4, math.Max(t.HalfSpread(), 0))
	bid, ask := roundOutward(theo-half, theo+half, cfg.TickSize)
	quote := Quote{
		Symbol:  t.Symbol,
		Mid:     t.Mid,
		Theo:    theo,
		DiffBps: (theo - t.Mid) / t.Mid * 1e4,
		Bid:     bid,
		Ask:     ask,
		QAnnual: qAnnual,
		Ts:      t.Ts,
	}

	n := q.quotes.Add(1)
	if cfg.MonitorEveryNQuotes > 0 && n%uint64(cfg.MonitorEveryNQuotes) == 0 {
		q.monitor(t, qAnnual, tYears, cfg)
	}

	q.log.LogQuote(logschema.EventQuote, map[string]interface{}{
		"symbol":   quote.Symbol,
		"mid":      quote.Mid,
		"theo":     quote.Theo,
		"diff_bps": quote.DiffBps,
		"bid":      quote.Bid,
		"ask":      quote.Ask,
		"q_annual": quote.QAnnual,
	})
	if q.metrics != nil {
		q.metrics.RecordQuote(theo)
	}
	if q.sink != nil {
		if err := q.sink.PublishQuote(quote); err != nil {
			q.log.LogError(err, map[string]interface{}{"symbol": t.Symbol, "component": "sink"})
		}
	}
	return quote, nil
}

// QuoteCount 已生成的报价数。
func (q *MertonQuoter) QuoteCount() uint64 { return q.quotes.Load() }

// reportFit 有新的校准尝试时记录日志与指标。
func (q *MertonQuoter) reportFit(symbol string) {
	r, ok := q.cal.LastFit()
	if !ok || r.Attempt == q.lastAttempt {
		return
	}
	q.lastAttempt = r.Attempt
	p := q.cal.Params()
	if q.metrics != nil {
		q.metrics.RecordFit(r.Accepted, r.Duration, p.Sigma, p.Lambda, p.MuJ, p.DeltaJ)
	}
	q.log.LogCalibration(logschema.EventCalibrationUpdate, map[string]interface{}{
		"symbol":      symbol,
		"attempt":     r.Attempt,
		"accepted":    r.Accepted,
		"reason":      r.Reason,
		"samples":     r.Samples,
		"dt_years":    r.DtYears,
		"sigma":       p.Sigma,
		"lambda":      p.Lambda,
		"mu_j":        p.MuJ,
		"delta_j":     p.DeltaJ,
		"loglik":      r.LogLik,
		"seed_loglik": r.SeedLogLik,
		"evaluations": r.Evaluations,
		"duration_ms": r.Duration.Milliseconds(),
	})
}

// monitor 参考定价失败只记录告警级日志，不影响报价。
func (q *MertonQuoter) monitor(t market.Tick, qAnnual, tYears float64, cfg QuoteConfig) {
	fast, ref, gapBps, err := q.cal.Divergence(t.Mid, qAnnual, tYears, cfg.RiskFreeRate)
	if q.metrics != nil {
		q.metrics.RecordReference(gapBps, err)
	}
	rec := MonitorRecord{Symbol: t.Symbol, Mid: t.Mid, Fast: fast, Reference: ref, GapBps: gapBps, Ts: t.Ts}
	if err != nil {
		rec.Error = err.Error()
		q.log.LogMonitor(logschema.EventReferenceMonitor, true, map[string]interface{}{
			"symbol":    t.Symbol,
			"fast":      fast,
			"reference": nil,
			"gap_bps":   nil,
			"error":     err.Error(),
		})
	} else {
		breach := math.Abs(gapBps) > cfg.DivergenceAlertBps
		q.log.LogMonitor(logschema.EventReferenceMonitor, breach, map[string]interface{}{
			"symbol":    t.Symbol,
			"fast":      fast,
			"reference": ref,
			"gap_bps":   gapBps,
		})
		if breach && q.alerts != nil {
			_ = q.alerts.SendWarning("divergence:"+t.Symbol,
				fmt.Sprintf("%s reference gap %.2f bps exceeds %.2f", t.Symbol, gapBps, cfg.DivergenceAlertBps),
				map[string]interface{}{"fast": fast, "reference": ref, "gap_bps": gapBps})
		}
	}
	if q.sink != nil {
		if err := q.sink.PublishMonitor(rec); err != nil {
			q.log.LogError(err, map[string]interface{}{"symbol": t.Symbol, "component": "sink"})
		}
	}
}

// roundOutward bid 向下、ask 向上取整到最小报价单位，报价区间只会变宽。
func roundOutward(bid, ask, tick float64) (float64, float64) {
	if !(tick > 0) {
		return bid, ask
	}
	step := decimal.NewFromFloat(tick)
	b := decimal.NewFromFloat(bid).Div(step).Floor().Mul(step)
	a := decimal.NewFromFloat(ask).Div(step).Ceil().Mul(step)
	return b.InexactFloat64(), a.InexactFloat64()
}

package merton

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// TickSample 一个带时间戳的中间价。
type TickSample struct {
	Price    float64
	TsMicros int64 // epoch 微秒，单调不减
}

// FitReport 最近一次校准尝试的摘要，供日志/指标使用。
type FitReport struct {
	Attempt     uint64
	Samples     int
	DtYears     float64
	Seed        Params
	Candidate   Params
	SeedLogLik  float64
	LogLik      float64
	Evaluations int
	Accepted    bool
	Reason      string
	Duration    time.Duration
}

// Calibrator 在线 Merton 校准器：tick 接入、触发判断、坐标搜索 MLE 与两种定价。
//
// 写路径（UpdateTick/MaybeUpdateParams）由单一调用方驱动；读路径（Params、
// FairValue、FairValueReference、SampleCount）可与之并发。参数以不可变快照
// 原子发布，读方只会看到更新前或更新后的完整参数集。
type Calibrator struct {
	cfg       Config
	trigger   TriggerPolicy
	engine    *Engine
	fast      FastPricer
	reference ReferencePricer

	params  atomic.Pointer[Params]
	lastFit atomic.Pointer[FitReport]
	fits    atomic.Uint64

	mu        sync.Mutex
	window    *ReturnWindow
	counter   int // 上次尝试以来新增的收益率个数
	lastPrice float64
	lastTsUs  int64
	hasLast   bool
}

// NewCalibrator 用种子参数和配置构造校准器；种子会被夹紧到 cfg.Bounds 内。
func NewCalibrator(seed Params, cfg Config) (*Calibrator, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := seed.Validate(); err != nil {
		return nil, err
	}
	c := &Calibrator{
		cfg:       cfg,
		trigger:   NewTriggerPolicy(cfg),
		engine:    NewEngine(cfg),
		reference: NewReferencePricer(),
		window:    NewReturnWindow(cfg.WindowSize),
	}
	p := cfg.Bounds.Clamp(seed)
	c.params.Store(&p)
	return c, nil
}

// Config 返回构造时的配置副本。
func (c *Calibrator) Config() Config { return c.cfg }

// UpdateTick 接入一个价格。价格非正/非有限或时间戳回退时拒绝且不改变状态。
// 首个 tick 只作为参考点，不产生收益率。本方法不会触发校准。
func (c *Calibrator) UpdateTick(price float64, tsMicros int64) bool {
	if !(price > 0) || math.IsInf(price, 1) {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.hasLast {
		c.lastPrice, c.lastTsUs, c.hasLast = price, tsMicros, true
		return true
	}
	if tsMicros < c.lastTsUs {
		return false
	}
	r := math.Log(price / c.lastPrice)
	if !isFinite(r) {
		return false
	}
	c.window.Push(r, tsMicros-c.lastTsUs)
	c.counter++
	c.lastPrice, c.lastTsUs = price, tsMicros
	return true
}

// Ingest UpdateTick 的便捷形式。
func (c *Calibrator) Ingest(t TickSample) bool {
	return c.UpdateTick(t.Price, t.TsMicros)
}

// MaybeUpdateParams 触发到期时重置计数器并运行一次坐标搜索；
// 仅当新参数合法、确实变化且似然不差于种子（容忍 AcceptEpsilon）时安装并返回 true。
// 失败或无改进的拟合静默保留旧参数。
func (c *Calibrator) MaybeUpdateParams() bool {
	c.mu.Lock()
	if !c.trigger.Due(c.window.Len(), c.counter) {
		c.mu.Unlock()
		return false
	}
	c.counter = 0
	snap := c.window.Snapshot()
	c.mu.Unlock()
	returns := snap.Returns
	dt := c.dtYears(snap)

	start := time.Now()
	seed := c.Params()
	report := FitReport{
		Attempt: c.fits.Add(1),
		Samples: len(returns),
		DtYears: dt,
		Seed:    seed,
	}
	defer func() {
		report.Duration = time.Since(start)
		c.lastFit.Store(&report)
	}()

	if !(dt > 0) {
		report.Candidate = seed
		report.Reason = "non-positive dt"
		return false
	}

	res := c.engine.Fit(returns, dt, seed)
	report.Candidate = res.Params
	report.SeedLogLik = res.SeedLogLik
	report.LogLik = res.LogLik
	report.Evaluations = res.Evaluations

	switch {
	case !res.Improved:
		report.Reason = "no improvement"
		return false
	case res.Params.Validate() != nil:
		report.Reason = "candidate out of domain"
		return false
	case !isFinite(res.LogLik) || res.LogLik < res.SeedLogLik-c.cfg.AcceptEpsilon:
		report.Reason = "likelihood regressed"
		return false
	}

	p := res.Params
	c.params.Store(&p)
	report.Accepted = true
	return true
}

// dtYears 按 DtMode 解析 Δt（年）。
func (c *Calibrator) dtYears(snap WindowSnapshot) float64 {
	if c.cfg.DtMode == DtFixed {
		return c.cfg.FixedDtSeconds / SecondsPerYear
	}
	return float64(snap.MedianDtUs) / 1e6 / SecondsPerYear
}

// SampleCount 当前窗口内收益率个数。
func (c *Calibrator) SampleCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.window.Len()
}

// PendingReturns 距上次校准尝试累计的收益率个数。
func (c *Calibrator) PendingReturns() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counter
}

// Returns 窗口收益率副本（最旧在前）。
func (c *Calibrator) Returns() []float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.window.Returns()
}

// Params 当前参数快照（按值返回）。
func (c *Calibrator) Params() Params {
	return *c.params.Load()
}

// LastFit 最近一次校准尝试；从未尝试时 ok=false。
func (c *Calibrator) LastFit() (FitReport, bool) {
	r := c.lastFit.Load()
	if r == nil {
		return FitReport{}, false
	}
	return *r, true
}

// FairValue 快速定价：E[S_T] = S_0·exp((r − q − λk)·T)。
func (c *Calibrator) FairValue(spot, qAnnual, tYears, r float64) (float64, error) {
	return c.fast.FairValue(c.Params(), spot, qAnnual, tYears, r)
}

// FairValueReference 参考定价，仅用于监控；错误不影响 FairValue。
func (c *Calibrator) FairValueReference(spot, qAnnual, tYears, r float64) (float64, error) {
	return c.reference.FairValue(c.Params(), spot, qAnnual, tYears, r)
}

// Divergence 同一参数快照下参考价相对快速价的偏差（基点，以 spot 归一）。
func (c *Calibrator) Divergence(spot, qAnnual, tYears, r float64) (fast, ref, gapBps float64, err error) {
	p := c.Params()
	fast, err = c.fast.FairValue(p, spot, qAnnual, tYears, r)
	if err != nil {
		return 0, 0, 0, err
	}
	ref, err = c.reference.FairValue(p, spot, qAnnual, tYears, r)
	if err != nil {
		return fast, 0, 0, err
	}
	return fast, ref, (ref - fast) / spot * 1e4, nil
}

func (r FitReport) String() string {
	return fmt.Sprintf("fit#%d samples=%d accepted=%v ll=%.6g->%.6g %s",
		r.Attempt, r.Samples, r.Accepted, r.SeedLogLik, r.LogLik, r.Candidate)
}

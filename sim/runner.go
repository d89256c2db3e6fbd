package sim

import (
	"fmt"
	"sort"
	"time"

	"github.com/sourcegraph/conc/pool"

	"merton-mm-go/merton"
)

// RunnerConfig 回放参数；定价输入对所有 tick 相同。
type RunnerConfig struct {
	Seed         merton.Params
	Calibrator   merton.Config
	QAnnual      float64
	HorizonYears float64
	RiskFree     float64
}

// Summary 一次回放的结果。
type Summary struct {
	Label        string
	Ticks        int
	Accepted     int
	Rejected     int
	FitAttempts  uint64
	FitsAccepted int
	Samples      int
	Final        merton.Params
	LastFit      merton.FitReport
	FairValue    float64
	Reference    float64
	GapBps       float64
	ReferenceErr error
	Elapsed      time.Duration
}

func (s Summary) String() string {
	return fmt.Sprintf("%s ticks=%d accepted=%d rejected=%d fits=%d/%d samples=%d final=%s fv=%.4f ref=%.4f gap=%.4fbps",
		s.Label, s.Ticks, s.Accepted, s.Rejected, s.FitsAccepted, s.FitAttempts, s.Samples, s.Final, s.FairValue, s.Reference, s.GapBps)
}

// Runner 把 tick 序列逐个喂给校准器：每个被接受的 tick 后尝试一次校准。
type Runner struct {
	cfg RunnerConfig
}

func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if err := cfg.Seed.Validate(); err != nil {
		return nil, err
	}
	if _, err := merton.NewCalibrator(cfg.Seed, cfg.Calibrator); err != nil {
		return nil, err
	}
	return &Runner{cfg: cfg}, nil
}

// Replay 使用新的校准器回放 ticks；最后一个 tick 的价格作为定价现价。
func (r *Runner) Replay(label string, ticks []merton.TickSample) (Summary, error) {
	start := time.Now()
	cal, err := merton.NewCalibrator(r.cfg.Seed, r.cfg.Calibrator)
	if err != nil {
		return Summary{}, err
	}
	sum := Summary{Label: label, Ticks: len(ticks)}
	spot := 0.0
	for _, t := range ticks {
		if !cal.Ingest(t) {
			sum.Rejected++
			continue
		}
		sum.Accepted++
		spot = t.Price
		if cal.MaybeUpdateParams() {
			sum.FitsAccepted++
		}
	}
	sum.Samples = cal.SampleCount()
	sum.Final = cal.Params()
	if rep, ok := cal.LastFit(); ok {
		sum.LastFit = rep
		sum.FitAttempts = rep.Attempt
	}
	if spot > 0 {
		fv, ref, gap, err := cal.Divergence(spot, r.cfg.QAnnual, r.cfg.HorizonYears, r.cfg.RiskFree)
		sum.FairValue, sum.Reference, sum.GapBps, sum.ReferenceErr = fv, ref, gap, err
		if sum.FairValue == 0 && err != nil {
			return sum, fmt.Errorf("fair value: %w", err)
		}
	}
	sum.Elapsed = time.Since(start)
	return sum, nil
}

// Sweep 并发回放多条路径，每条路径一个独立校准器；结果按 label 排序。
func (r *Runner) Sweep(paths map[string][]merton.TickSample, workers int) ([]Summary, error) {
	if workers <= 0 {
		workers = 1
	}
	p := pool.NewWithResults[Summary]().WithErrors().WithMaxGoroutines(workers)
	for label, ticks := range paths {
		p.Go(func() (Summary, error) {
			return r.Replay(label, ticks)
		})
	}
	out, err := p.Wait()
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out, err
}

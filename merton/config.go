package merton

import (
	"fmt"
	"math"
)

// DtMode 决定似然函数中 Δt 的取法。
type DtMode string

const (
	// DtMedian 使用窗口内实际 tick 间隔的中位数。
	DtMedian DtMode = "median"
	// DtFixed 使用配置的固定间隔。
	DtFixed DtMode = "fixed"
)

// SecondsPerYear 365.25 天。
const SecondsPerYear = 365.25 * 24 * 3600

// Range 闭区间。
type Range struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

func (r Range) clamp(v float64) float64 {
	return math.Max(r.Min, math.Min(r.Max, v))
}

// Bounds 坐标搜索时的参数夹紧范围。
type Bounds struct {
	Sigma  Range `yaml:"sigma"`
	Lambda Range `yaml:"lambda"`
	MuJ    Range `yaml:"mu_j"`
	DeltaJ Range `yaml:"delta_j"`
}

// DefaultBounds 与离线校准保持一致的合理区间。
func DefaultBounds() Bounds {
	return Bounds{
		Sigma:  Range{Min: 0.05, Max: 3},
		Lambda: Range{Min: 0.01, Max: 40},
		MuJ:    Range{Min: -0.5, Max: 0.5},
		DeltaJ: Range{Min: 0.01, Max: 1},
	}
}

// Clamp 将参数夹紧到区间内。
func (b Bounds) Clamp(p Params) Params {
	return Params{
		Sigma:  b.Sigma.clamp(p.Sigma),
		Lambda: b.Lambda.clamp(p.Lambda),
		MuJ:    b.MuJ.clamp(p.MuJ),
		DeltaJ: b.DeltaJ.clamp(p.DeltaJ),
	}
}

func (b Bounds) validate() error {
	named := []struct {
		name string
		r    Range
	}{
		{"sigma", b.Sigma}, {"lambda", b.Lambda}, {"mu_j", b.MuJ}, {"delta_j", b.DeltaJ},
	}
	for _, n := range named {
		if !isFinite(n.r.Min) || !isFinite(n.r.Max) || n.r.Min > n.r.Max {
			return fmt.Errorf("%w: bounds.%s must be finite and ordered", ErrInvalidConfig, n.name)
		}
	}
	if b.Sigma.Min < 0 || b.Lambda.Min < 0 || b.DeltaJ.Min < 0 {
		return fmt.Errorf("%w: sigma/lambda/delta_j lower bounds must be >= 0", ErrInvalidConfig)
	}
	return nil
}

// Config 在线校准器配置，构造后不可变。
type Config struct {
	WindowSize          int     `yaml:"window_size"`            // 最多缓存的收益率个数
	MinPointsForUpdate  int     `yaml:"min_points_for_update"`  // 触发拟合的最小样本数
	UpdateEveryNReturns int     `yaml:"update_every_n_returns"` // 触发节奏
	NMax                int     `yaml:"n_max"`                  // 泊松混合截断
	CoordinateSteps     int     `yaml:"coordinate_steps"`       // 坐标搜索轮数
	ImprovementTol      float64 `yaml:"improvement_tol"`        // 单个候选被采纳的最小平均似然提升
	AcceptEpsilon       float64 `yaml:"accept_epsilon"`         // 安装新参数时容忍的似然回退
	DtMode              DtMode  `yaml:"dt_mode"`
	FixedDtSeconds      float64 `yaml:"fixed_dt_seconds"`
	Bounds              Bounds  `yaml:"bounds"`
}

// DefaultConfig 返回生产默认配置。
func DefaultConfig() Config {
	return Config{
		WindowSize:          4096,
		MinPointsForUpdate:  512,
		UpdateEveryNReturns: 128,
		NMax:                15,
		CoordinateSteps:     3,
		ImprovementTol:      1e-9,
		AcceptEpsilon:       1e-9,
		DtMode:              DtMedian,
		Bounds:              DefaultBounds(),
	}
}

// Validate 检查配置是否可用。
func (c Config) Validate() error {
	if c.WindowSize <= 0 {
		return fmt.Errorf("%w: window_size must be > 0", ErrInvalidConfig)
	}
	if c.MinPointsForUpdate <= 0 {
		return fmt.Errorf("%w: min_points_for_update must be > 0", ErrInvalidConfig)
	}
	if c.MinPointsForUpdate > c.WindowSize {
		return fmt.Errorf("%w: min_points_for_update (%d) exceeds window_size (%d)",
			ErrInvalidConfig, c.MinPointsForUpdate, c.WindowSize)
	}
	if c.UpdateEveryNReturns <= 0 {
		return fmt.Errorf("%w: update_every_n_returns must be > 0", ErrInvalidConfig)
	}
	if c.NMax < 0 {
		return fmt.Errorf("%w: n_max must be >= 0", ErrInvalidConfig)
	}
	if c.CoordinateSteps < 1 {
		return fmt.Errorf("%w: coordinate_steps must be >= 1", ErrInvalidConfig)
	}
	if c.ImprovementTol < 0 || c.AcceptEpsilon < 0 {
		return fmt.Errorf("%w: tolerances must be >= 0", ErrInvalidConfig)
	}
	switch c.DtMode {
	case DtMedian:
	case DtFixed:
		if !(c.FixedDtSeconds > 0) || math.IsInf(c.FixedDtSeconds, 0) {
			return fmt.Errorf("%w: fixed_dt_seconds must be > 0 when dt_mode=fixed", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown dt_mode %q", ErrInvalidConfig, c.DtMode)
	}
	return c.Bounds.validate()
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// withDefaults 为零值字段补默认值（零值 Bounds 会把所有参数夹到 0）。
func (c Config) withDefaults() Config {
	if c.DtMode == "" {
		c.DtMode = DtMedian
	}
	if c.Bounds == (Bounds{}) {
		c.Bounds = DefaultBounds()
	}
	return c
}

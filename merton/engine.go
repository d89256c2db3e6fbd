package merton

import "math"

// FitResult 一次坐标搜索的结果。
type FitResult struct {
	Params      Params
	LogLik      float64 // Params 处的平均对数似然
	SeedLogLik  float64 // 种子处的平均对数似然
	Improved    bool    // 是否找到了优于种子的参数
	Evaluations int
}

// Engine 以上一次参数为种子的循环坐标搜索 MLE。
// 局部优化器：只负责热启动增量拟合，冷启动质量由离线校准保证。
type Engine struct {
	nMax   int
	passes int
	tol    float64
	bounds Bounds
}

// NewEngine 按校准器配置构造引擎。
func NewEngine(cfg Config) *Engine {
	cfg = cfg.withDefaults()
	return &Engine{
		nMax:   cfg.NMax,
		passes: cfg.CoordinateSteps,
		tol:    cfg.ImprovementTol,
		bounds: cfg.Bounds,
	}
}

const numCoords = 4

func coord(p Params, i int) float64 {
	switch i {
	case 0:
		return p.Sigma
	case 1:
		return p.Lambda
	case 2:
		return p.MuJ
	default:
		return p.DeltaJ
	}
}

func withCoord(p Params, i int, v float64) Params {
	switch i {
	case 0:
		p.Sigma = v
	case 1:
		p.Lambda = v
	case 2:
		p.MuJ = v
	default:
		p.DeltaJ = v
	}
	return p
}

// initialSteps 步长取当前值的百分比，并设下限避免退化。
func initialSteps(p Params) [numCoords]float64 {
	return [numCoords]float64{
		math.Max(0.02, p.Sigma*0.08),
		math.Max(0.10, p.Lambda*0.10),
		math.Max(0.002, math.Abs(p.MuJ)*0.25),
		math.Max(0.002, p.DeltaJ*0.20),
	}
}

// Degenerate 少于两个不同取值（含全零）的样本没有可改进的方向。
func Degenerate(returns []float64) bool {
	return len(returns) < 2 || countDistinct(returns, 2) < 2
}

// Fit 从 seed 出发做 passes 轮坐标搜索。结果对相同输入确定。
// 退化输入直接返回种子（Improved=false），从不报错。
func (e *Engine) Fit(returns []float64, dtYears float64, seed Params) FitResult {
	res := FitResult{Params: seed, LogLik: math.Inf(-1), SeedLogLik: math.Inf(-1)}
	if !(dtYears > 0) || math.IsInf(dtYears, 0) || Degenerate(returns) || seed.Validate() != nil {
		return res
	}

	best := seed
	bestLL := LogLikelihood(returns, best, dtYears, e.nMax)
	res.Evaluations++
	res.SeedLogLik = bestLL
	step := initialSteps(best)

	for pass := 0; pass < e.passes; pass++ {
		improved := false
		for i := 0; i < numCoords; i++ {
			for _, sign := range [2]float64{1, -1} {
				cand := e.bounds.Clamp(withCoord(best, i, coord(best, i)+sign*step[i]))
				ll := LogLikelihood(returns, cand, dtYears, e.nMax)
				res.Evaluations++
				if isFinite(ll) && ll-bestLL > e.tol {
					best, bestLL = cand, ll
					improved = true
				}
			}
		}
		// 本轮无改进则所有步长减半
		if !improved {
			for i := range step {
				step[i] *= 0.5
			}
		}
	}

	res.Params = best
	res.LogLik = bestLL
	res.Improved = !best.Equal(seed, 1e-12)
	return res
}

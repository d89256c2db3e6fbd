package merton

import "math"

const (
	// invSqrt2Pi 1/sqrt(2π)，标准正态密度系数。
	invSqrt2Pi = 0.3989422804014326779399460599343818684759
	// densityFloor 防止 log(0)。
	densityFloor = 1e-300
)

// mixture 给定参数和 Δt 时截断泊松-高斯混合的各分量。
// 对每个候选参数只计算一次，再对整个窗口复用。
type mixture struct {
	weights []float64 // 泊松权重 / σ_n
	means   []float64
	invSd   []float64
}

func newMixture(p Params, dtYears float64, nMax int) mixture {
	m := mixture{
		weights: make([]float64, 0, nMax+1),
		means:   make([]float64, 0, nMax+1),
		invSd:   make([]float64, 0, nMax+1),
	}
	lambdaDt := p.Lambda * dtYears
	drift := (-p.Lambda*p.Compensator() - 0.5*p.Sigma*p.Sigma) * dtYears
	diffVar := p.Sigma * p.Sigma * dtYears
	jumpVar := p.DeltaJ * p.DeltaJ

	// w_n = e^{-λΔt}(λΔt)^n/n!，递推避免阶乘溢出
	w := math.Exp(-lambdaDt)
	for n := 0; n <= nMax; n++ {
		if n > 0 {
			w *= lambdaDt / float64(n)
		}
		v := diffVar + float64(n)*jumpVar
		if v <= 0 || w <= 0 {
			continue
		}
		inv := 1 / math.Sqrt(v)
		m.weights = append(m.weights, w*inv)
		m.means = append(m.means, drift+float64(n)*p.MuJ)
		m.invSd = append(m.invSd, inv)
	}
	return m
}

func (m mixture) density(x float64) float64 {
	pdf := 0.0
	for i, w := range m.weights {
		z := (x - m.means[i]) * m.invSd[i]
		pdf += w * invSqrt2Pi * math.Exp(-0.5*z*z)
	}
	if pdf < densityFloor || math.IsNaN(pdf) {
		return densityFloor
	}
	return pdf
}

// Density Merton 模型下单个对数收益率 x 的概率密度（截断到 nMax 次跳跃）。
func Density(x float64, p Params, dtYears float64, nMax int) float64 {
	return newMixture(p, dtYears, nMax).density(x)
}

// LogLikelihood 平均每个收益率的对数似然；参数非法、Δt<=0 或样本为空时返回 -Inf。
func LogLikelihood(returns []float64, p Params, dtYears float64, nMax int) float64 {
	if len(returns) == 0 || !(dtYears > 0) || p.Validate() != nil {
		return math.Inf(-1)
	}
	m := newMixture(p, dtYears, nMax)
	sum := 0.0
	for _, r := range returns {
		sum += math.Log(m.density(r))
	}
	return sum / float64(len(returns))
}

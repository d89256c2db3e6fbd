package merton

import (
	"math"
	"math/rand"
)

const fiveSecondsYears = 5.0 / SecondsPerYear

// simulateReturns 按 Merton 模型抽样对数收益率（风险中性漂移）。
func simulateReturns(seed int64, p Params, dtYears float64, n int) []float64 {
	rng := rand.New(rand.NewSource(seed))
	drift := (-0.5*p.Sigma*p.Sigma - p.Lambda*p.Compensator()) * dtYears
	limit := math.Exp(-p.Lambda * dtYears)
	out := make([]float64, n)
	for i := range out {
		r := drift + p.Sigma*math.Sqrt(dtYears)*rng.NormFloat64()
		// Knuth 泊松抽样
		for prod := rng.Float64(); prod > limit; prod *= rng.Float64() {
			r += p.MuJ + p.DeltaJ*rng.NormFloat64()
		}
		out[i] = r
	}
	return out
}

// feedReturns 把收益率序列转换成价格 tick，间隔 dtUs 微秒。
func feedReturns(c *Calibrator, start float64, tsUs, dtUs int64, returns []float64) (float64, int64) {
	price := start
	c.UpdateTick(price, tsUs)
	for _, r := range returns {
		price *= math.Exp(r)
		tsUs += dtUs
		c.UpdateTick(price, tsUs)
	}
	return price, tsUs
}

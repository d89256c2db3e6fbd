package sim

import (
	"math"

	"golang.org/x/exp/rand"

	"merton-mm-go/merton"
)

// PathGenerator 按风险中性 Merton 动态生成等间隔价格路径，同一 seed 结果可复现。
type PathGenerator struct {
	Params  merton.Params
	DtUs    int64 // tick 间隔（微秒）
	rng     *rand.Rand
	dtYears float64
}

func NewPathGenerator(p merton.Params, dtUs int64, seed uint64) *PathGenerator {
	return &PathGenerator{
		Params:  p,
		DtUs:    dtUs,
		rng:     rand.New(rand.NewSource(seed)),
		dtYears: float64(dtUs) / 1e6 / merton.SecondsPerYear,
	}
}

// NextReturn 一步对数收益率。λΔt 很小，每步最多一次跳跃。
func (g *PathGenerator) NextReturn() float64 {
	p := g.Params
	dt := g.dtYears
	r := (-0.5*p.Sigma*p.Sigma-p.Lambda*p.Compensator())*dt + p.Sigma*math.Sqrt(dt)*g.rng.NormFloat64()
	if g.rng.Float64() < p.Lambda*dt {
		r += p.MuJ + p.DeltaJ*g.rng.NormFloat64()
	}
	return r
}

// Ticks 生成 n 个 tick，第一个为 start 本身。
func (g *PathGenerator) Ticks(start float64, startTsUs int64, n int) []merton.TickSample {
	out := make([]merton.TickSample, 0, n)
	price, ts := start, startTsUs
	for i := 0; i < n; i++ {
		if i > 0 {
			price *= math.Exp(g.NextReturn())
			ts += g.DtUs
		}
		out = append(out, merton.TickSample{Price: price, TsMicros: ts})
	}
	return out
}

// AlternatingPath 每个 tick 前先推进时间，再按 (1±rel) 交替放大/缩小价格（偶数下标为 +）。
func AlternatingPath(start float64, startTsUs, stepUs int64, rel float64, n int) []merton.TickSample {
	out := make([]merton.TickSample, n)
	price, ts := start, startTsUs
	for i := 0; i < n; i++ {
		ts += stepUs
		if i%2 == 0 {
			price *= 1 + rel
		} else {
			price *= 1 - rel
		}
		out[i] = merton.TickSample{Price: price, TsMicros: ts}
	}
	return out
}

package merton

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DefaultReferencePrecision ExpTaylor 的小数位数。
const DefaultReferencePrecision int32 = 24

// MaxReferenceExponent 单个指数项 |x| 的上限。超过后 Taylor 展开既慢又会在固定小数位下
// 丢失有效数字，参考定价直接报不可用（快速定价不受影响）。
const MaxReferenceExponent = 30.0

// FlatForward 连续复利的平坦收益率曲线。
type FlatForward struct {
	Rate      decimal.Decimal
	Precision int32
}

// Discount 贴现因子 D(t) = exp(-rate·t)，Taylor 级数展开计算。
func (f FlatForward) Discount(t decimal.Decimal) (decimal.Decimal, error) {
	return boundedExp(f.Rate.Mul(t).Neg(), f.Precision)
}

// boundedExp |x| 超过 MaxReferenceExponent 时拒绝计算。
func boundedExp(x decimal.Decimal, prec int32) (decimal.Decimal, error) {
	if x.Abs().GreaterThan(decimal.NewFromFloat(MaxReferenceExponent)) {
		return decimal.Zero, fmt.Errorf("exponent %s exceeds %v", x.StringFixed(4), MaxReferenceExponent)
	}
	return x.ExpTaylor(prec)
}

// ReferencePricer 与 FastPricer 数学目标相同、代码路径独立的参考定价：
// 先由 r/q 两条贴现曲线得到无跳远期 F = S·Dq(T)/Dr(T)，再乘以跳跃补偿 exp(-λkT)。
// 全程使用十进制运算，两者的偏差本身就是模型或实现问题的监控信号。
type ReferencePricer struct {
	Precision int32
}

// NewReferencePricer 使用默认精度。
func NewReferencePricer() ReferencePricer {
	return ReferencePricer{Precision: DefaultReferencePrecision}
}

// FairValue 任何失败（包括库内 panic）都以 ErrReferenceUnavailable 返回。
func (rp ReferencePricer) FairValue(p Params, spot, qAnnual, tYears, r float64) (v float64, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			v, err = 0, fmt.Errorf("%w: %v", ErrReferenceUnavailable, rec)
		}
	}()
	if err := checkPricingArgs(spot, qAnnual, tYears, r); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrReferenceUnavailable, err)
	}
	if err := p.Validate(); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrReferenceUnavailable, err)
	}
	prec := rp.Precision
	if prec <= 0 {
		prec = DefaultReferencePrecision
	}

	t := decimal.NewFromFloat(tYears)
	dq, err := FlatForward{Rate: decimal.NewFromFloat(qAnnual), Precision: prec}.Discount(t)
	if err != nil {
		return 0, fmt.Errorf("%w: dividend discount: %w", ErrReferenceUnavailable, err)
	}
	dr, err := FlatForward{Rate: decimal.NewFromFloat(r), Precision: prec}.Discount(t)
	if err != nil {
		return 0, fmt.Errorf("%w: rate discount: %w", ErrReferenceUnavailable, err)
	}
	if !dr.IsPositive() || !dq.IsPositive() {
		return 0, fmt.Errorf("%w: discount factor underflow", ErrReferenceUnavailable)
	}

	k, err := referenceCompensator(p, prec)
	if err != nil {
		return 0, err
	}
	jump, err := boundedExp(decimal.NewFromFloat(p.Lambda).Mul(k).Mul(t).Neg(), prec)
	if err != nil {
		return 0, fmt.Errorf("%w: jump adjustment: %w", ErrReferenceUnavailable, err)
	}

	// 增长因子 Dq·J/Dr 用足够的小数位相除，最后才乘 spot，极小的 spot 不会被舍入成 0
	growth := dq.Mul(jump).DivRound(dr, 4*prec)
	out := spot * growth.InexactFloat64()
	if !isFinite(out) || out <= 0 {
		return 0, fmt.Errorf("%w: result %v is not finite and positive", ErrReferenceUnavailable, out)
	}
	return out, nil
}

// referenceCompensator k = exp(μ_J + δ_J²/2) − 1，十进制重算。
func referenceCompensator(p Params, prec int32) (decimal.Decimal, error) {
	delta := decimal.NewFromFloat(p.DeltaJ)
	exponent := decimal.NewFromFloat(p.MuJ).Add(delta.Mul(delta).Mul(decimal.NewFromFloat(0.5)))
	e, err := boundedExp(exponent, prec)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: compensator: %w", ErrReferenceUnavailable, err)
	}
	return e.Sub(decimal.NewFromInt(1)), nil
}

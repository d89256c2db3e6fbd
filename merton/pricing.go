package merton

import (
	"fmt"
	"math"
)

// Pricer 风险中性期望远期价格 E[S_T]。
type Pricer interface {
	FairValue(p Params, spot, qAnnual, tYears, r float64) (float64, error)
}

// FastPricer 闭式解 E[S_T] = S_0·exp((r − q − λk)·T)，热路径使用。
type FastPricer struct{}

// FairValue 对非法期限/利率直接报错，不返回非有限价格。
func (FastPricer) FairValue(p Params, spot, qAnnual, tYears, r float64) (float64, error) {
	if err := checkPricingArgs(spot, qAnnual, tYears, r); err != nil {
		return 0, err
	}
	drift := r - qAnnual - p.Lambda*p.Compensator()
	v := spot * math.Exp(drift*tYears)
	if !isFinite(v) || v <= 0 {
		return 0, fmt.Errorf("%w: fair value %v is not finite and positive", ErrInvalidArgument, v)
	}
	return v, nil
}

func checkPricingArgs(spot, qAnnual, tYears, r float64) error {
	switch {
	case !isFinite(spot) || spot <= 0:
		return fmt.Errorf("%w: spot must be finite and > 0, got %v", ErrInvalidArgument, spot)
	case !isFinite(tYears) || tYears < 0:
		return fmt.Errorf("%w: time to expiry must be finite and >= 0, got %v", ErrInvalidArgument, tYears)
	case !isFinite(qAnnual):
		return fmt.Errorf("%w: dividend yield is not finite", ErrInvalidArgument)
	case !isFinite(r):
		return fmt.Errorf("%w: risk-free rate is not finite", ErrInvalidArgument)
	}
	return nil
}

package merton

import (
	"fmt"
	"math"
)

// Params Merton 跳扩散模型参数（年化）。
// 作为不可变快照发布，校准成功时整体替换。
type Params struct {
	Sigma  float64 `yaml:"sigma" json:"sigma"`     // 扩散波动率
	Lambda float64 `yaml:"lambda" json:"lambda"`   // 跳跃强度（次/年）
	MuJ    float64 `yaml:"mu_j" json:"mu_j"`       // 对数跳幅均值
	DeltaJ float64 `yaml:"delta_j" json:"delta_j"` // 对数跳幅波动率
}

// DefaultParams 冷启动种子，离线 MLE 校准前的经验值。
func DefaultParams() Params {
	return Params{Sigma: 0.44, Lambda: 20.0, MuJ: 0.003, DeltaJ: 0.01}
}

// Validate 检查四个字段有限，且 sigma/lambda/delta_j 非负。
func (p Params) Validate() error {
	fields := []struct {
		name string
		v    float64
	}{
		{"sigma", p.Sigma}, {"lambda", p.Lambda}, {"mu_j", p.MuJ}, {"delta_j", p.DeltaJ},
	}
	for _, f := range fields {
		if !isFinite(f.v) {
			return fmt.Errorf("%w: %s is not finite", ErrInvalidParams, f.name)
		}
	}
	if p.Sigma < 0 {
		return fmt.Errorf("%w: sigma must be >= 0", ErrInvalidParams)
	}
	if p.Lambda < 0 {
		return fmt.Errorf("%w: lambda must be >= 0", ErrInvalidParams)
	}
	if p.DeltaJ < 0 {
		return fmt.Errorf("%w: delta_j must be >= 0", ErrInvalidParams)
	}
	return nil
}

// Compensator 跳跃补偿项 k = E[J-1] = exp(mu_j + delta_j²/2) - 1。
func (p Params) Compensator() float64 {
	return math.Exp(p.MuJ+0.5*p.DeltaJ*p.DeltaJ) - 1
}

// Equal 判断两组参数是否在 tol 内一致。
func (p Params) Equal(o Params, tol float64) bool {
	return math.Abs(p.Sigma-o.Sigma) <= tol &&
		math.Abs(p.Lambda-o.Lambda) <= tol &&
		math.Abs(p.MuJ-o.MuJ) <= tol &&
		math.Abs(p.DeltaJ-o.DeltaJ) <= tol
}

func (p Params) String() string {
	return fmt.Sprintf("Params(sigma=%.6g, lambda=%.6g, mu_j=%.6g, delta_j=%.6g)",
		p.Sigma, p.Lambda, p.MuJ, p.DeltaJ)
}

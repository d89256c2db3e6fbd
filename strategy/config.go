package strategy

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// HoursPerYear 365.25 天
const HoursPerYear = 365.25 * 24

// QuoteConfig 报价参数，可热更新。
type QuoteConfig struct {
	HorizonHours        float64 `yaml:"horizonHours" default:"8" validate:"gt=0"` // 下一个资金费率窗口
	RiskFreeRate        float64 `yaml:"riskFreeRate"`
	MinHalfSpreadBps    float64 `yaml:"minHalfSpreadBps" default:"2" validate:"gte=0"`
	TickSize            float64 `yaml:"tickSize" default:"0.5" validate:"gt=0"`
	MonitorEveryNQuotes int     `yaml:"monitorEveryNQuotes" default:"120" validate:"gte=0"` // 0 关闭参考定价监控
	DivergenceAlertBps  float64 `yaml:"divergenceAlertBps" default:"5" validate:"gt=0"`
}

// HorizonYears 定价期限（年）。
func (c QuoteConfig) HorizonYears() float64 {
	return c.HorizonHours / HoursPerYear
}

var validate = validator.New()

// Validate 校验结构体标签。
func (c QuoteConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid quote config: %w", err)
	}
	return nil
}

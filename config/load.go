package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"

	"merton-mm-go/infrastructure/logger"
	"merton-mm-go/merton"
	"merton-mm-go/metrics"
	"merton-mm-go/strategy"
)

// AppConfig holds the main runtime configuration.
type AppConfig struct {
	Env        string               `yaml:"env" default:"dev" validate:"required"`
	Symbol     string               `yaml:"symbol" default:"XBTUSDT" validate:"required,alphanum"`
	Seed       merton.Params        `yaml:"seed"`
	Calibrator CalibratorConfig     `yaml:"calibrator"`
	Quote      strategy.QuoteConfig `yaml:"quote"`
	Funding    FundingConfig        `yaml:"funding"`
	Feed       FeedConfig           `yaml:"feed"`
	Metrics    metrics.Config       `yaml:"metrics"`
	Log        logger.Config        `yaml:"log"`
	Sink       SinkConfig           `yaml:"sink"`
	Reload     ReloadConfig         `yaml:"reload"`
}

// CalibratorConfig 在线校准器参数，启动后不可变（不参与热更新）。
type CalibratorConfig struct {
	WindowSize          int            `yaml:"windowSize" default:"4096" validate:"gt=0"`
	MinPointsForUpdate  int            `yaml:"minPointsForUpdate" default:"512" validate:"gt=0,ltefield=WindowSize"`
	UpdateEveryNReturns int            `yaml:"updateEveryNReturns" default:"128" validate:"gt=0"`
	NMax                int            `yaml:"nMax" default:"15" validate:"gte=0,lte=64"`
	CoordinateSteps     int            `yaml:"coordinateSteps" default:"3" validate:"gte=1"`
	ImprovementTol      float64        `yaml:"improvementTol" default:"1e-9" validate:"gte=0"`
	AcceptEpsilon       float64        `yaml:"acceptEpsilon" default:"1e-9" validate:"gte=0"`
	DtMode              string         `yaml:"dtMode" default:"median" validate:"oneof=median fixed"`
	FixedDtSeconds      float64        `yaml:"fixedDtSeconds" validate:"required_if=DtMode fixed,gte=0"`
	Bounds              *merton.Bounds `yaml:"bounds"` // 为空时使用默认区间
}

// FundingConfig BitMEX instrument 接口轮询。
type FundingConfig struct {
	BaseURL           string  `yaml:"baseURL" default:"https://www.bitmex.com/api/v1" validate:"url"`
	RefreshSeconds    int     `yaml:"refreshSeconds" default:"60" validate:"gte=1"`
	RequestsPerSecond float64 `yaml:"requestsPerSecond" default:"1" validate:"gt=0"`
	TimeoutSeconds    int     `yaml:"timeoutSeconds" default:"10" validate:"gte=1"`
}

// FeedConfig 行情 websocket。
type FeedConfig struct {
	URL             string `yaml:"url" default:"wss://ws.bitmex.com/realtime" validate:"url"`
	ReconnectMinMs  int    `yaml:"reconnectMinMs" default:"500" validate:"gte=1"`
	ReconnectMaxMs  int    `yaml:"reconnectMaxMs" default:"30000" validate:"gtefield=ReconnectMinMs"`
	ReadTimeoutSecs int    `yaml:"readTimeoutSecs" default:"30" validate:"gte=1"`
}

// SinkConfig 报价/监控记录输出。
type SinkConfig struct {
	Type         string   `yaml:"type" default:"log" validate:"oneof=log kafka"`
	Brokers      []string `yaml:"brokers" validate:"required_if=Type kafka"`
	QuoteTopic   string   `yaml:"quoteTopic" default:"merton.quotes"`
	MonitorTopic string   `yaml:"monitorTopic" default:"merton.monitor"`
}

// ReloadConfig 配置文件热更新。
type ReloadConfig struct {
	Enabled    bool `yaml:"enabled" default:"true"`
	CooldownMs int  `yaml:"cooldownMs" default:"2000" validate:"gte=0"`
}

// Default 由 default 标签生成完整默认配置；种子参数取冷启动经验值。
func Default() AppConfig {
	var cfg AppConfig
	if err := defaults.Set(&cfg); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	cfg.Seed = merton.DefaultParams()
	return cfg
}

// Load reads YAML config from path over the defaults and validates it.
func Load(path string) (AppConfig, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadWithEnvOverrides loads config then overrides seed params and symbol from env vars if present.
func LoadWithEnvOverrides(path string) (AppConfig, error) {
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, Validate(cfg)
}

func applyEnv(cfg *AppConfig) error {
	floats := []struct {
		key string
		dst *float64
	}{
		{"MERTON_SIGMA", &cfg.Seed.Sigma},
		{"MERTON_LAMBDA", &cfg.Seed.Lambda},
		{"MERTON_MU_J", &cfg.Seed.MuJ},
		{"MERTON_DELTA_J", &cfg.Seed.DeltaJ},
	}
	for _, f := range floats {
		v := os.Getenv(f.key)
		if v == "" {
			continue
		}
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("env %s: %w", f.key, err)
		}
		*f.dst = parsed
	}
	if v := os.Getenv("MM_SYMBOL"); v != "" {
		cfg.Symbol = v
	}
	return nil
}

// CalibratorConfig 转换为 merton.Config。
func (c AppConfig) CalibratorConfig() merton.Config {
	cc := c.Calibrator
	out := merton.Config{
		WindowSize:          cc.WindowSize,
		MinPointsForUpdate:  cc.MinPointsForUpdate,
		UpdateEveryNReturns: cc.UpdateEveryNReturns,
		NMax:                cc.NMax,
		CoordinateSteps:     cc.CoordinateSteps,
		ImprovementTol:      cc.ImprovementTol,
		AcceptEpsilon:       cc.AcceptEpsilon,
		DtMode:              merton.DtMode(cc.DtMode),
		FixedDtSeconds:      cc.FixedDtSeconds,
		Bounds:              merton.DefaultBounds(),
	}
	// defaults.Set 会把空指针初始化为零值结构体，零值也视为未配置
	if cc.Bounds != nil && *cc.Bounds != (merton.Bounds{}) {
		out.Bounds = *cc.Bounds
	}
	return out
}

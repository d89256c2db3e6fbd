package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"merton-mm-go/merton"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, Validate(cfg))

	assert.Equal(t, "XBTUSDT", cfg.Symbol)
	assert.Equal(t, merton.DefaultParams(), cfg.Seed)
	assert.Equal(t, merton.DefaultConfig(), cfg.CalibratorConfig())
	assert.Equal(t, 8.0, cfg.Quote.HorizonHours)
	assert.Equal(t, 120, cfg.Quote.MonitorEveryNQuotes)
	assert.Equal(t, 60, cfg.Funding.RefreshSeconds)
	assert.Equal(t, []string{"stdout"}, cfg.Log.Outputs)
	assert.Equal(t, "log", cfg.Sink.Type)
}

func TestLoad(t *testing.T) {
	path := writeTempConfig(t, `
env: prod
symbol: XBTUSD
seed:
  sigma: 0.6
  mu_j: 0
calibrator:
  windowSize: 1024
  minPointsForUpdate: 256
  dtMode: fixed
  fixedDtSeconds: 5
  bounds:
    sigma: {min: 0.1, max: 2}
    lambda: {min: 0.1, max: 50}
    mu_j: {min: -0.2, max: 0.2}
    delta_j: {min: 0.005, max: 0.5}
quote:
  tickSize: 0.1
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "prod", cfg.Env)
	assert.Equal(t, "XBTUSD", cfg.Symbol)
	// 未出现的字段保留默认值，显式写 0 的字段保持 0
	assert.Equal(t, merton.Params{Sigma: 0.6, Lambda: 20, MuJ: 0, DeltaJ: 0.01}, cfg.Seed)

	cc := cfg.CalibratorConfig()
	assert.Equal(t, 1024, cc.WindowSize)
	assert.Equal(t, 128, cc.UpdateEveryNReturns)
	assert.Equal(t, merton.DtFixed, cc.DtMode)
	assert.Equal(t, 5.0, cc.FixedDtSeconds)
	assert.Equal(t, 2.0, cc.Bounds.Sigma.Max)
	assert.Equal(t, 0.1, cfg.Quote.TickSize)
}

func TestLoadWithEnvOverrides(t *testing.T) {
	path := writeTempConfig(t, "env: dev\n")
	t.Setenv("MERTON_SIGMA", "0.55")
	t.Setenv("MERTON_LAMBDA", "12")
	t.Setenv("MERTON_MU_J", "-0.001")
	t.Setenv("MERTON_DELTA_J", "0.02")
	t.Setenv("MM_SYMBOL", "ETHUSDT")

	cfg, err := LoadWithEnvOverrides(path)
	require.NoError(t, err)
	assert.Equal(t, merton.Params{Sigma: 0.55, Lambda: 12, MuJ: -0.001, DeltaJ: 0.02}, cfg.Seed)
	assert.Equal(t, "ETHUSDT", cfg.Symbol)
}

func TestLoadWithEnvOverrides_BadFloat(t *testing.T) {
	path := writeTempConfig(t, "env: dev\n")
	t.Setenv("MERTON_SIGMA", "fast")
	_, err := LoadWithEnvOverrides(path)
	assert.ErrorContains(t, err, "MERTON_SIGMA")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*AppConfig)
		wantErr string
	}{
		{"empty env", func(c *AppConfig) { c.Env = "" }, "Env is required"},
		{"bad dt mode", func(c *AppConfig) { c.Calibrator.DtMode = "mean" }, "Calibrator.DtMode must be one of"},
		{"fixed without dt", func(c *AppConfig) { c.Calibrator.DtMode = "fixed" }, "Calibrator.FixedDtSeconds is required"},
		{"min points over window", func(c *AppConfig) { c.Calibrator.MinPointsForUpdate = 5000 }, "MinPointsForUpdate"},
		{"kafka without brokers", func(c *AppConfig) { c.Sink.Type = "kafka" }, "Sink.Brokers"},
		{"negative seed sigma", func(c *AppConfig) { c.Seed.Sigma = -1 }, "seed"},
		{"inverted bounds", func(c *AppConfig) {
			b := merton.DefaultBounds()
			b.Sigma = merton.Range{Min: 2, Max: 1}
			c.Calibrator.Bounds = &b
		}, "bounds.sigma"},
		{"zero tick size", func(c *AppConfig) { c.Quote.TickSize = 0 }, "Quote.TickSize"},
		{"file output without path", func(c *AppConfig) { c.Log.Outputs = []string{"file"} }, "log.outputFile is required"},
		{"unknown log output", func(c *AppConfig) { c.Log.Outputs = []string{"syslog"} }, "Log.Outputs[0] must be one of"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.ErrorContains(t, Validate(cfg), tt.wantErr)
		})
	}
}

func TestLoad_ShippedConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "configs", "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "prod", cfg.Env)
	assert.Equal(t, merton.DefaultParams(), cfg.Seed)
	assert.Equal(t, merton.DefaultConfig(), cfg.CalibratorConfig())
	assert.True(t, cfg.Reload.Enabled)
}

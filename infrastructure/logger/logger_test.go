package logger

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(Config{Level: "loud", Outputs: []string{"stdout"}})
	assert.Error(t, err)
}

func TestNew_FileOutputRequiresPath(t *testing.T) {
	_, err := New(Config{Level: "info", Outputs: []string{"file"}, Format: "json"})
	assert.ErrorContains(t, err, "outputFile is empty")

	path := filepath.Join(t.TempDir(), "mm.log")
	l, err := New(Config{Level: "info", Outputs: []string{"file"}, OutputFile: path, Format: "json"})
	require.NoError(t, err)
	l.Info("hello")
	require.NoError(t, l.Sync())
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "hello")
}

func TestNew_Default(t *testing.T) {
	l, err := New(DefaultConfig())
	require.NoError(t, err)
	assert.NotNil(t, l.Logger)
}

func TestLogHelpers_StampEventAndTs(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := Wrap(zap.New(core))

	l.LogCalibration("calibration_update", map[string]interface{}{"sigma": 0.5})
	l.LogQuote("merton_quote", nil)
	l.LogMonitor("reference_monitor", true, map[string]interface{}{"gap_bps": 3.1})
	l.LogError(errors.New("boom"), nil)

	entries := logs.All()
	require.Len(t, entries, 4)

	assert.Equal(t, "calibration_update", entries[0].ContextMap()["event"])
	assert.Contains(t, entries[0].ContextMap(), "ts")
	assert.Equal(t, "merton_quote", entries[1].ContextMap()["event"])
	assert.Contains(t, entries[1].ContextMap()["_schema_error"], "missing fields")
	assert.Equal(t, zapcore.WarnLevel, entries[2].Level)
	assert.Equal(t, "boom", entries[3].ContextMap()["error"])
	assert.Equal(t, zapcore.ErrorLevel, entries[3].Level)
}

func TestWithFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := Wrap(zap.New(core)).WithFields(map[string]interface{}{"symbol": "XBTUSDT"})
	l.LogEvent("tick_rejected", nil)

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "XBTUSDT", logs.All()[0].ContextMap()["symbol"])
}

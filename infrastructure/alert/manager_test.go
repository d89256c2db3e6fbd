package alert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"merton-mm-go/infrastructure/logger"
)

func TestSendAlert(t *testing.T) {
	ch := NewMockChannel("mock")
	m := NewManager([]Channel{ch}, time.Minute)

	require.NoError(t, m.SendWarning("divergence:XBTUSDT", "reference gap 7.1 bps", map[string]interface{}{"gap_bps": 7.1}))
	alerts := ch.GetAlerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, LevelWarning, alerts[0].Level)
	assert.False(t, alerts[0].Timestamp.IsZero())
}

func TestThrottlingByKey(t *testing.T) {
	ch := NewMockChannel("mock")
	m := NewManager([]Channel{ch}, time.Minute)

	// 消息文本不同但 key 相同，仍被限流
	require.NoError(t, m.SendWarning("divergence:XBTUSDT", "gap 6 bps", nil))
	assert.ErrorIs(t, m.SendWarning("divergence:XBTUSDT", "gap 8 bps", nil), ErrThrottled)
	require.NoError(t, m.SendWarning("divergence:ETHUSDT", "gap 8 bps", nil))
	assert.Equal(t, 2, ch.Count())

	m.ResetThrottle()
	require.NoError(t, m.SendWarning("divergence:XBTUSDT", "gap 9 bps", nil))
	assert.Equal(t, 3, ch.Count())
}

func TestThrottler_Interval(t *testing.T) {
	th := NewThrottler(time.Second)
	now := time.Unix(1_700_000_000, 0)
	th.now = func() time.Time { return now }

	assert.True(t, th.Allow("k"))
	assert.False(t, th.Allow("k"))
	now = now.Add(time.Second)
	assert.True(t, th.Allow("k"))
}

func TestChannelFailures(t *testing.T) {
	bad := NewMockChannel("bad")
	bad.SetShouldError(true)
	good := NewMockChannel("good")

	m := NewManager([]Channel{bad}, 0)
	assert.ErrorContains(t, m.SendWarning("k", "msg", nil), "channel bad failed")

	m.AddChannel(good)
	assert.NoError(t, m.SendWarning("k", "msg", nil), "partial failure is not an error")
	assert.Equal(t, 1, good.Count())
	assert.Equal(t, []string{"bad", "good"}, m.GetChannels())
}

func TestLogChannel(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	ch := NewLogChannel("log", logger.Wrap(zap.New(core)))

	require.NoError(t, ch.Send(Alert{Level: LevelWarning, Key: "k", Message: "gap", Fields: map[string]interface{}{"gap_bps": 6.0}}))
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.WarnLevel, entry.Level)
	assert.Equal(t, 6.0, entry.ContextMap()["gap_bps"])
}

package gateway

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQuoteMessage(t *testing.T) {
	raw := []byte(`{
		"table":"quote",
		"action":"insert",
		"data":[
		  {"timestamp":"2024-03-01T08:00:00.123Z","symbol":"XBTUSDT","bidSize":1000,"bidPrice":61999.5,"askPrice":62000.5,"askSize":2000},
		  {"timestamp":"2024-03-01T08:00:00.200Z","symbol":"XBTUSDT","bidSize":0,"bidPrice":0,"askPrice":62000.5,"askSize":2000}
		]
	}`)
	ticks, err := ParseQuoteMessage(raw)
	require.NoError(t, err)
	require.Len(t, ticks, 1)

	tk := ticks[0]
	assert.Equal(t, "XBTUSDT", tk.Symbol)
	assert.Equal(t, 62000.0, tk.Mid)
	assert.Equal(t, time.Date(2024, 3, 1, 8, 0, 0, 123_000_000, time.UTC), tk.Ts.UTC())
}

func TestParseQuoteMessage_OtherTables(t *testing.T) {
	for _, raw := range []string{
		`{"info":"Welcome to the BitMEX Realtime API.","version":"2.0.0"}`,
		`{"success":true,"subscribe":"quote:XBTUSDT"}`,
		`{"table":"trade","action":"insert","data":[{"price":1}]}`,
	} {
		ticks, err := ParseQuoteMessage([]byte(raw))
		assert.NoError(t, err)
		assert.Empty(t, ticks)
	}

	_, err := ParseQuoteMessage([]byte(`not json`))
	assert.Error(t, err)
}

package logschema

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	err := Validate(EventQuote, map[string]interface{}{
		"symbol":   "XBTUSDT",
		"mid":      68000.0,
		"theo":     68001.2,
		"bid":      68000.5,
		"ask":      68002.0,
		"q_annual": 0.1095,
	})
	assert.NoError(t, err)

	err = Validate(EventQuote, map[string]interface{}{"symbol": "XBTUSDT"})
	assert.ErrorContains(t, err, "theo")

	assert.NoError(t, Validate("unknown_event", nil))
}

func TestKnownEvents(t *testing.T) {
	names := Known()
	assert.Len(t, names, 5)
	assert.Contains(t, names, EventReferenceMonitor)
	assert.IsIncreasing(t, names)
}

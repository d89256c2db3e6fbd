package logschema

import (
	"fmt"
	"sort"
	"strings"
)

// Schema 定义每个日志事件所需的关键字段，便于集中校验。
type Schema struct {
	Event    string
	Required []string
}

const (
	EventCalibrationUpdate = "calibration_update"
	EventQuote             = "merton_quote"
	EventReferenceMonitor  = "reference_monitor"
	EventFundingRefresh    = "funding_refresh"
	EventTickRejected      = "tick_rejected"
)

var schemas = map[string]Schema{
	EventCalibrationUpdate: {
		Event:    EventCalibrationUpdate,
		Required: []string{"symbol", "accepted", "samples", "sigma", "lambda", "mu_j", "delta_j", "loglik"},
	},
	EventQuote: {
		Event:    EventQuote,
		Required: []string{"symbol", "mid", "theo", "bid", "ask", "q_annual"},
	},
	EventReferenceMonitor: {
		Event:    EventReferenceMonitor,
		Required: []string{"symbol", "fast", "reference", "gap_bps"},
	},
	EventFundingRefresh: {
		Event:    EventFundingRefresh,
		Required: []string{"symbol", "rate_8h", "q_annual"},
	},
	EventTickRejected: {
		Event:    EventTickRejected,
		Required: []string{"symbol", "price", "ts"},
	},
}

// Known 返回所有事件名，便于外部生成文档。
func Known() []string {
	names := make([]string, 0, len(schemas))
	for k := range schemas {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Validate 检查日志字段是否包含 schema 中要求的 key；未知事件不校验。
func Validate(event string, fields map[string]interface{}) error {
	s, ok := schemas[event]
	if !ok {
		return nil
	}
	var missing []string
	for _, key := range s.Required {
		if _, exists := fields[key]; !exists {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%s missing fields: %s", event, strings.Join(missing, ","))
	}
	return nil
}

package sink

import (
	"merton-mm-go/infrastructure/logger"
	"merton-mm-go/strategy"
)

// LogSink 把报价/监控记录写入结构化日志，无外部依赖时的默认出口。
type LogSink struct {
	log *logger.Logger
}

func NewLogSink(log *logger.Logger) *LogSink {
	if log == nil {
		log = logger.NewNop()
	}
	return &LogSink{log: log.WithFields(map[string]interface{}{"component": "sink"})}
}

func (s *LogSink) PublishQuote(q strategy.Quote) error {
	s.log.LogEvent("merton_theo", map[string]interface{}{
		"sym":       q.Symbol,
		"market":    q.Mid,
		"theo":      q.Theo,
		"diff_bps":  q.DiffBps,
		"quote_bid": q.Bid,
		"quote_ask": q.Ask,
	})
	return nil
}

func (s *LogSink) PublishMonitor(m strategy.MonitorRecord) error {
	s.log.LogEvent("merton_monitor", map[string]interface{}{
		"sym":       m.Symbol,
		"fast":      m.Fast,
		"reference": m.Reference,
		"gap_bps":   m.GapBps,
		"error":     m.Error,
	})
	return nil
}

func (s *LogSink) Close() error { return nil }

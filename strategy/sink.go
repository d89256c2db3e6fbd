package strategy

import "time"

// Quote 一次双边报价决策，同时作为看板记录。
type Quote struct {
	Symbol  string    `json:"sym"`
	Mid     float64   `json:"market"`
	Theo    float64   `json:"theo"`
	DiffBps float64   `json:"diff_bps"`
	Bid     float64   `json:"quote_bid"`
	Ask     float64   `json:"quote_ask"`
	QAnnual float64   `json:"q_annual"`
	Ts      time.Time `json:"ts"`
}

// MonitorRecord 快速定价与参考定价的对比。
type MonitorRecord struct {
	Symbol    string    `json:"sym"`
	Mid       float64   `json:"market"`
	Fast      float64   `json:"fast"`
	Reference float64   `json:"reference"`
	GapBps    float64   `json:"gap_bps"`
	Error     string    `json:"error,omitempty"`
	Ts        time.Time `json:"ts"`
}

// Sink 报价与监控记录的出口。实现不得阻塞行情线程，失败只返回错误供记录。
type Sink interface {
	PublishQuote(q Quote) error
	PublishMonitor(m MonitorRecord) error
}

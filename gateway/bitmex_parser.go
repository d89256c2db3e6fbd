package gateway

import (
	"encoding/json"
	"fmt"
	"time"

	"merton-mm-go/market"
)

// TableMessage BitMEX realtime 推送的通用包装。
type TableMessage struct {
	Table  string          `json:"table"`
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data"`
}

// QuoteRow quote 表的一行。
type QuoteRow struct {
	Timestamp time.Time `json:"timestamp"`
	Symbol    string    `json:"symbol"`
	BidSize   float64   `json:"bidSize"`
	BidPrice  float64   `json:"bidPrice"`
	AskPrice  float64   `json:"askPrice"`
	AskSize   float64   `json:"askSize"`
}

// ParseQuoteMessage 解析 quote 表消息。非 quote 表（info、subscribe 回执等）返回 nil, nil；
// 单边缺失或交叉的行被跳过。
func ParseQuoteMessage(raw []byte) ([]market.Tick, error) {
	var msg TableMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("decode bitmex message: %w", err)
	}
	if msg.Table != "quote" || len(msg.Data) == 0 {
		return nil, nil
	}
	var rows []QuoteRow
	if err := json.Unmarshal(msg.Data, &rows); err != nil {
		return nil, fmt.Errorf("decode quote rows: %w", err)
	}
	ticks := make([]market.Tick, 0, len(rows))
	for _, r := range rows {
		t, err := market.NewTick(r.Symbol, r.BidPrice, r.AskPrice, r.Timestamp)
		if err != nil {
			continue
		}
		ticks = append(ticks, t)
	}
	return ticks, nil
}

// subscribeMessage {"op":"subscribe","args":["quote:XBTUSDT"]}
func subscribeMessage(symbol string) ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"op":   "subscribe",
		"args": []string{"quote:" + symbol},
	})
}

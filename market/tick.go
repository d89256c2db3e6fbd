package market

import (
	"errors"
	"math"
	"time"
)

// Tick 一次最优买卖价（BBO）更新。
type Tick struct {
	Symbol string
	Bid    float64
	Ask    float64
	Mid    float64
	Ts     time.Time
}

// ErrInvalidTick 买卖价缺失、非有限或交叉。
var ErrInvalidTick = errors.New("invalid tick")

// NewTick 由 bid/ask 计算 mid；任一侧非正或 bid > ask 时报错。
func NewTick(symbol string, bid, ask float64, ts time.Time) (Tick, error) {
	if !(bid > 0) || !(ask > 0) || math.IsInf(bid, 0) || math.IsInf(ask, 0) || bid > ask {
		return Tick{}, ErrInvalidTick
	}
	return Tick{Symbol: symbol, Bid: bid, Ask: ask, Mid: (bid + ask) / 2, Ts: ts}, nil
}

// HalfSpread (ask-bid)/2
func (t Tick) HalfSpread() float64 {
	return (t.Ask - t.Bid) / 2
}

// TsMicros epoch 微秒。
func (t Tick) TsMicros() int64 {
	return t.Ts.UnixMicro()
}

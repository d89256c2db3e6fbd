package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"merton-mm-go/infrastructure/logger"
	"merton-mm-go/market"
)

// BitmexRealtimeEndpoint 生产环境 realtime 地址。
const BitmexRealtimeEndpoint = "wss://ws.bitmex.com/realtime"

// TickHandler 每个解析出的 BBO 调用一次，在读协程内同步执行。
type TickHandler func(market.Tick)

// BitmexQuoteFeed 订阅 quote:<SYMBOL>，断线后指数退避重连直到 ctx 取消。
type BitmexQuoteFeed struct {
	URL          string
	Symbol       string
	Dialer       *websocket.Dialer
	ReconnectMin time.Duration
	ReconnectMax time.Duration
	ReadTimeout  time.Duration

	handler TickHandler
	log     *logger.Logger

	mu        sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	lastErr   error
	connected bool
}

func NewBitmexQuoteFeed(url, symbol string, handler TickHandler, log *logger.Logger) *BitmexQuoteFeed {
	if url == "" {
		url = BitmexRealtimeEndpoint
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &BitmexQuoteFeed{
		URL:          url,
		Symbol:       symbol,
		Dialer:       websocket.DefaultDialer,
		ReconnectMin: 500 * time.Millisecond,
		ReconnectMax: 30 * time.Second,
		ReadTimeout:  30 * time.Second,
		handler:      handler,
		log:          log,
	}
}

func (f *BitmexQuoteFeed) Name() string { return "bitmex_quote_feed" }

// Start 后台运行 Run。
func (f *BitmexQuoteFeed) Start(ctx context.Context) error {
	if f.Symbol == "" {
		return fmt.Errorf("symbol required")
	}
	ctx, cancel := context.WithCancel(ctx)
	f.mu.Lock()
	f.cancel = cancel
	f.done = make(chan struct{})
	done := f.done
	f.mu.Unlock()

	go func() {
		defer close(done)
		_ = f.Run(ctx)
	}()
	return nil
}

func (f *BitmexQuoteFeed) Stop() error {
	f.mu.Lock()
	cancel, done := f.cancel, f.done
	f.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		return errors.New("quote feed did not stop in time")
	}
	return nil
}

// Health 断线期间返回最近一次错误。
func (f *BitmexQuoteFeed) Health() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connected || f.lastErr == nil {
		return nil
	}
	return f.lastErr
}

// Run 阻塞直到 ctx 取消。
func (f *BitmexQuoteFeed) Run(ctx context.Context) error {
	backoff := f.ReconnectMin
	for {
		subscribed, err := f.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if subscribed {
			backoff = f.ReconnectMin
		}
		f.setState(false, err)
		f.log.LogError(err, map[string]interface{}{"component": f.Name(), "symbol": f.Symbol, "retry_in": backoff.String()})

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > f.ReconnectMax {
			backoff = f.ReconnectMax
		}
	}
}

// session 一次连接的完整生命周期；subscribed 表示订阅已发出，调用方据此重置退避。
func (f *BitmexQuoteFeed) session(ctx context.Context) (subscribed bool, err error) {
	conn, _, err := f.Dialer.DialContext(ctx, f.URL, nil)
	if err != nil {
		return false, fmt.Errorf("dial %s: %w", f.URL, err)
	}
	defer conn.Close()

	// ctx 取消时关闭连接以打断阻塞读
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	sub, err := subscribeMessage(f.Symbol)
	if err != nil {
		return false, err
	}
	if err := conn.WriteMessage(websocket.TextMessage, sub); err != nil {
		return false, fmt.Errorf("subscribe: %w", err)
	}
	f.setState(true, nil)

	for {
		if f.ReadTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(f.ReadTimeout))
		}
		_, message, err := conn.ReadMessage()
		if err != nil {
			return true, fmt.Errorf("read: %w", err)
		}
		ticks, err := ParseQuoteMessage(message)
		if err != nil {
			f.log.LogError(err, map[string]interface{}{"component": f.Name()})
			continue
		}
		for _, t := range ticks {
			if t.Symbol != f.Symbol || f.handler == nil {
				continue
			}
			f.handler(t)
		}
	}
}

func (f *BitmexQuoteFeed) setState(connected bool, err error) {
	f.mu.Lock()
	f.connected = connected
	if err != nil {
		f.lastErr = err
	}
	f.mu.Unlock()
}

package market

import (
	"sync"
	"time"
)

// Service 维护每个交易对的最新 tick，并向订阅者广播。
type Service struct {
	pub  *Publisher
	mu   sync.RWMutex
	last map[string]Tick
	now  func() time.Time
}

func NewService(pub *Publisher) *Service {
	if pub == nil {
		pub = NewPublisher()
	}
	return &Service{
		pub:  pub,
		last: make(map[string]Tick),
		now:  time.Now,
	}
}

// Publisher 底层分发器。
func (s *Service) Publisher() *Publisher { return s.pub }

// OnTick 更新并广播。
func (s *Service) OnTick(t Tick) {
	s.mu.Lock()
	s.last[t.Symbol] = t
	s.mu.Unlock()
	s.pub.Publish(t)
}

// Last 最新 tick。
func (s *Service) Last(symbol string) (Tick, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.last[symbol]
	return t, ok
}

// Mid 返回当前中间价；若缺失则返回 0。
func (s *Service) Mid(symbol string) float64 {
	t, ok := s.Last(symbol)
	if !ok {
		return 0
	}
	return t.Mid
}

// Staleness 返回距离上次更新的时间间隔；如无数据返回一年。
func (s *Service) Staleness(symbol string) time.Duration {
	t, ok := s.Last(symbol)
	if !ok {
		return time.Hour * 24 * 365
	}
	return s.now().Sub(t.Ts)
}

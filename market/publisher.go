package market

import "sync"

// Publisher 一个轻量事件分发器；慢订阅者丢弃，不阻塞行情线程。
type Publisher struct {
	mu      sync.RWMutex
	subs    []chan Tick
	dropped uint64
}

func NewPublisher() *Publisher {
	return &Publisher{subs: make([]chan Tick, 0)}
}

// Subscribe buffer<=0 时取 1。
func (p *Publisher) Subscribe(buffer int) <-chan Tick {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan Tick, buffer)
	p.mu.Lock()
	p.subs = append(p.subs, ch)
	p.mu.Unlock()
	return ch
}

func (p *Publisher) Publish(t Tick) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ch := range p.subs {
		select {
		case ch <- t:
		default:
			p.dropped++
		}
	}
}

// Dropped 因订阅者缓冲满而丢弃的次数。
func (p *Publisher) Dropped() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.dropped
}

// Close 关闭所有订阅通道；之后不得再 Publish。
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ch := range p.subs {
		close(ch)
	}
	p.subs = nil
}

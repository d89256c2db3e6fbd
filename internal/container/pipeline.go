package container

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sourcegraph/conc"

	"merton-mm-go/infrastructure/logger"
	"merton-mm-go/market"
	"merton-mm-go/strategy"
)

// tickQuoter 行情消费端，生产中是 *strategy.MertonQuoter。
type tickQuoter interface {
	OnTick(t market.Tick) (strategy.Quote, error)
}

// tickPipeline 从行情发布器取 tick，单协程串行驱动报价器。
// 校准器的写路径只允许一个调用方，所以这里只起一个消费协程。
type tickPipeline struct {
	ticks  <-chan market.Tick
	quoter tickQuoter
	log    *logger.Logger

	mu      sync.Mutex
	wg      *conc.WaitGroup
	cancel  context.CancelFunc
	running bool
	failure error
}

func newTickPipeline(ticks <-chan market.Tick, q tickQuoter, log *logger.Logger) *tickPipeline {
	if log == nil {
		log = logger.NewNop()
	}
	return &tickPipeline{ticks: ticks, quoter: q, log: log}
}

func (p *tickPipeline) Name() string { return "tick_pipeline" }

func (p *tickPipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return nil
	}
	ctx, p.cancel = context.WithCancel(ctx)
	p.wg = conc.NewWaitGroup()
	p.wg.Go(func() { p.loop(ctx) })
	p.running = true
	return nil
}

func (p *tickPipeline) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-p.ticks:
			if !ok {
				return
			}
			if _, err := p.quoter.OnTick(t); err != nil && !errors.Is(err, strategy.ErrTickRejected) {
				p.log.LogError(err, map[string]interface{}{"component": p.Name(), "symbol": t.Symbol})
			}
		}
	}
}

// Stop 取消消费协程并等待退出；协程内的 panic 在这里转成错误。
func (p *tickPipeline) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return nil
	}
	p.cancel()
	p.running = false
	if r := p.wg.WaitAndRecover(); r != nil {
		p.failure = fmt.Errorf("tick pipeline panicked: %w", r.AsError())
		return p.failure
	}
	return nil
}

func (p *tickPipeline) Health() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failure != nil {
		return p.failure
	}
	if !p.running {
		return errors.New("tick pipeline not running")
	}
	return nil
}

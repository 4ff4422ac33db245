package sandbox

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/GriffinCanCode/livepen/internal/shared/id"
	"go.uber.org/zap"
)

var ErrPoolClosed = errors.New("sandbox pool is closed")

// Pool keeps fresh runtimes ready so a rebuild does not pay for VM and
// globals setup. Runtimes are single use: nothing goes back into the pool.
type Pool struct {
	config  Config
	log     *zap.Logger
	ready   chan *Runtime
	mu      sync.RWMutex
	closed  bool
	wg      sync.WaitGroup
	created atomic.Int64
}

// PoolStats describes pool occupancy
type PoolStats struct {
	Capacity  int   `json:"capacity"`
	Available int   `json:"available"`
	Created   int64 `json:"created"`
	Closed    bool  `json:"closed"`
}

// NewPool creates a pool and pre-warms config.Prewarm runtimes
func NewPool(config Config, log *zap.Logger) (*Pool, error) {
	config = config.withDefaults()
	if log == nil {
		log = zap.NewNop()
	}

	pool := &Pool{
		config: config,
		log:    log,
		ready:  make(chan *Runtime, config.Prewarm),
	}

	for i := 0; i < config.Prewarm; i++ {
		rt, err := pool.spawn()
		if err != nil {
			pool.Close()
			return nil, err
		}
		pool.ready <- rt
	}

	return pool, nil
}

// Acquire hands out a runtime that has never run a document
func (p *Pool) Acquire(ctx context.Context) (*Runtime, error) {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return nil, ErrPoolClosed
	}
	p.mu.RUnlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	select {
	case rt := <-p.ready:
		p.refill()
		return rt, nil
	default:
	}

	// Pool drained, build one inline
	return p.spawn()
}

// refill replaces an acquired runtime in the background
func (p *Pool) refill() {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		rt, err := p.spawn()
		if err != nil {
			p.log.Warn("failed to pre-warm sandbox runtime", zap.Error(err))
			return
		}

		p.mu.RLock()
		defer p.mu.RUnlock()
		if p.closed {
			rt.Close()
			return
		}
		select {
		case p.ready <- rt:
		default:
			rt.Close()
		}
	}()
}

func (p *Pool) spawn() (*Runtime, error) {
	rt, err := New(p.config, id.NewHandleID(), p.log)
	if err != nil {
		return nil, err
	}
	p.created.Add(1)
	return rt, nil
}

// Close destroys every idle runtime. Runtimes already handed out belong to
// their caller.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	p.wg.Wait()
	for {
		select {
		case rt := <-p.ready:
			rt.Close()
		default:
			return nil
		}
	}
}

// Stats returns pool statistics
func (p *Pool) Stats() PoolStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return PoolStats{
		Capacity:  cap(p.ready),
		Available: len(p.ready),
		Created:   p.created.Load(),
		Closed:    p.closed,
	}
}

package sandbox

import (
	"context"
	"fmt"
	"sync"

	"github.com/GriffinCanCode/livepen/internal/domain/preview"
	"github.com/GriffinCanCode/livepen/internal/infrastructure/logging"
	"go.uber.org/zap"
)

// Boundary implements preview.Boundary with in-process goja runtimes
type Boundary struct {
	log  *zap.Logger
	pool *Pool

	mu   sync.Mutex
	live map[string]*Runtime
}

var _ preview.Boundary = (*Boundary)(nil)

// NewBoundary creates a boundary backed by a pre-warmed runtime pool
func NewBoundary(config Config, log *zap.Logger) (*Boundary, error) {
	if log == nil {
		log = zap.NewNop()
	}
	pool, err := NewPool(config, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create sandbox pool: %w", err)
	}
	return &Boundary{
		log:  log,
		pool: pool,
		live: make(map[string]*Runtime),
	}, nil
}

// Create loads document into a fresh runtime. Script faults never fail
// Create; they surface inside the runtime.
func (b *Boundary) Create(ctx context.Context, document string) (preview.Handle, error) {
	rt, err := b.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	if err := rt.Load(ctx, document); err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to load document: %w", err)
	}

	b.mu.Lock()
	b.live[rt.ID()] = rt
	b.mu.Unlock()

	b.log.Debug("sandbox context created", logging.Handle(rt.ID()))
	return rt, nil
}

// Destroy stops the runtime behind h and everything it scheduled
func (b *Boundary) Destroy(h preview.Handle) error {
	if h == nil {
		return nil
	}
	rt, ok := h.(*Runtime)
	if !ok {
		return fmt.Errorf("sandbox cannot destroy foreign handle %q", h.ID())
	}

	b.mu.Lock()
	delete(b.live, rt.ID())
	b.mu.Unlock()

	return rt.Close()
}

// Live returns the number of undestroyed contexts
func (b *Boundary) Live() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.live)
}

// Pool exposes pool statistics
func (b *Boundary) Pool() PoolStats {
	return b.pool.Stats()
}

// Close destroys every live context and the idle pool
func (b *Boundary) Close() error {
	b.mu.Lock()
	live := b.live
	b.live = make(map[string]*Runtime)
	b.mu.Unlock()

	for _, rt := range live {
		rt.Close()
	}
	return b.pool.Close()
}

package preview

import (
	"sync"
	"time"

	"github.com/GriffinCanCode/livepen/internal/domain/workspace"
	"github.com/GriffinCanCode/livepen/internal/infrastructure/logging"
	"github.com/GriffinCanCode/livepen/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/livepen/internal/shared/types"
	"go.uber.org/zap"
)

// DefaultDebounce is the quiescence window per kind.
const DefaultDebounce = 500 * time.Millisecond

// Source is the buffer store as seen by the aggregator.
type Source interface {
	ActiveContents() types.Composite
	Subscribe(fn func(workspace.Change)) (cancel func())
}

// Sink receives every settled composite.
type Sink func(types.Composite)

// Aggregator turns store changes into debounced composites. Each kind has
// its own window; an expiry replaces that kind's settled value and delivers
// the whole composite. There is no barrier across kinds.
type Aggregator struct {
	src     Source
	sink    Sink
	delay   time.Duration
	log     *logging.Logger
	metrics *monitoring.Metrics

	mu         sync.Mutex
	settled    types.Composite
	debouncers [len(types.Kinds)]*Debouncer[string]
	unsub      func()
	running    bool

	deliverMu sync.Mutex // orders deliveries
}

// NewAggregator creates an aggregator. A negative delay means DefaultDebounce.
func NewAggregator(src Source, delay time.Duration, sink Sink, log *logging.Logger) *Aggregator {
	if delay < 0 {
		delay = DefaultDebounce
	}
	if log == nil {
		log = logging.Nop()
	}
	a := &Aggregator{
		src:   src,
		sink:  sink,
		delay: delay,
		log:   log.Named("aggregator"),
	}
	for i, kind := range types.Kinds {
		kind := kind
		a.debouncers[i] = NewDebouncer(delay, func(v string) { a.settle(kind, v) })
	}
	return a
}

// WithMetrics adds metrics tracking to the aggregator
func (a *Aggregator) WithMetrics(metrics *monitoring.Metrics) *Aggregator {
	a.metrics = metrics
	return a
}

// Start delivers the current composite immediately and begins following
// store changes. Calling Start on a running aggregator does nothing.
func (a *Aggregator) Start() {
	a.deliverMu.Lock()
	defer a.deliverMu.Unlock()

	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return
	}
	a.running = true
	a.mu.Unlock()

	// Subscribe before seeding so no change between the two is lost
	unsub := a.src.Subscribe(a.onChange)

	a.mu.Lock()
	a.unsub = unsub
	a.settled = a.src.ActiveContents()
	initial := a.settled
	a.mu.Unlock()

	a.log.Debug("initial composite delivered")
	a.deliver(initial)
}

// Stop cancels all pending windows and unsubscribes. Values still in flight
// are discarded.
func (a *Aggregator) Stop() {
	a.deliverMu.Lock()
	defer a.deliverMu.Unlock()

	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	a.running = false
	unsub := a.unsub
	a.unsub = nil
	a.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	for _, d := range a.debouncers {
		d.Cancel()
	}
}

// Flush settles every pending kind now.
func (a *Aggregator) Flush() {
	for _, d := range a.debouncers {
		d.Flush()
	}
}

// Pending reports whether any kind is waiting for its window to close.
func (a *Aggregator) Pending() bool {
	for _, d := range a.debouncers {
		if d.IsPending() {
			return true
		}
	}
	return false
}

// Settled returns the last delivered composite.
func (a *Aggregator) Settled() types.Composite {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.settled
}

func (a *Aggregator) onChange(change workspace.Change) {
	if len(change.Kinds) == 0 {
		return
	}
	contents := a.src.ActiveContents()
	for _, kind := range change.Kinds {
		if i := kind.Index(); i >= 0 {
			a.debouncers[i].Push(contents.Get(kind))
		}
	}
}

func (a *Aggregator) settle(kind types.Kind, value string) {
	a.deliverMu.Lock()
	defer a.deliverMu.Unlock()

	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	a.settled.Set(kind, value)
	composite := a.settled
	a.mu.Unlock()

	a.log.Debug("kind settled", logging.Kind(string(kind)), zap.Int("bytes", len(value)))
	a.metrics.RecordDebounceEmit(string(kind))
	a.deliver(composite)
}

func (a *Aggregator) deliver(c types.Composite) {
	if a.sink != nil {
		a.sink(c)
	}
}

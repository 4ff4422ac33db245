package preview

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/GriffinCanCode/livepen/internal/infrastructure/logging"
	"github.com/GriffinCanCode/livepen/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/livepen/internal/shared/types"
	"github.com/GriffinCanCode/livepen/internal/shared/utils"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"
)

// ErrBoundaryClosed is returned once the renderer has been closed or when
// no execution context exists yet.
var ErrBoundaryClosed = errors.New("preview boundary closed")

// Handle is one live execution context
type Handle interface {
	ID() string
	// Snapshot serializes the visual output of the context
	Snapshot(ctx context.Context) (string, error)
}

// Boundary creates and destroys isolated execution contexts. Create fails
// only for host-side problems; faults raised by the document stay inside
// the context.
type Boundary interface {
	Create(ctx context.Context, document string) (Handle, error)
	Destroy(h Handle) error
}

// Frame describes the context currently displayed
type Frame struct {
	Seq         uint64    `json:"seq"`
	Fingerprint string    `json:"fingerprint"`
	HandleID    string    `json:"handle_id"`
	BuiltAt     time.Time `json:"built_at"`
	Reused      bool      `json:"reused"`
}

// EventType identifies the event payload.
type EventType string

const (
	EventFrame    EventType = "frame"
	EventViewport EventType = "viewport"
)

// Event is published to subscribers after a rebuild or viewport change.
type Event struct {
	Type     EventType
	Frame    Frame
	Viewport Viewport
}

// Stats summarizes render latency
type Stats struct {
	Built   uint64  `json:"built"`
	Reused  uint64  `json:"reused"`
	Failed  uint64  `json:"failed"`
	Samples int     `json:"samples"`
	MeanMs  float64 `json:"mean_ms"`
	P50Ms   float64 `json:"p50_ms"`
	P95Ms   float64 `json:"p95_ms"`
	MaxMs   float64 `json:"max_ms"`
}

const (
	maxSamples    = 512
	subscriberCap = 64
)

// Renderer owns the single live execution context of the preview. Each new
// composite destroys the previous context before a fresh one is created.
type Renderer struct {
	boundary Boundary
	hasher   *utils.Hasher
	log      *logging.Logger
	metrics  *monitoring.Metrics
	now      func() time.Time

	renderMu sync.Mutex // one Render at a time

	mu       sync.Mutex // guards the state below
	current  Handle
	frame    Frame
	document string
	seq      uint64
	viewport Viewport
	closed   bool

	built, reused, failed uint64
	samples               []float64 // milliseconds, ring of maxSamples
	next                  int

	subMu sync.Mutex
	subs  map[chan Event]struct{}
}

// NewRenderer creates a renderer over boundary
func NewRenderer(boundary Boundary, log *logging.Logger) *Renderer {
	if log == nil {
		log = logging.Nop()
	}
	return &Renderer{
		boundary: boundary,
		hasher:   utils.DefaultHasher(),
		log:      log.Named("renderer"),
		now:      time.Now,
		viewport: NewViewport(ViewDesktop, false),
		subs:     make(map[chan Event]struct{}),
	}
}

// WithMetrics adds metrics tracking to the renderer
func (r *Renderer) WithMetrics(metrics *monitoring.Metrics) *Renderer {
	r.metrics = metrics
	return r
}

// Render displays composite. An identical document keeps the current context;
// anything else tears it down and builds a fresh one.
func (r *Renderer) Render(ctx context.Context, composite types.Composite) (Frame, error) {
	document := Assemble(composite)
	fingerprint := r.hasher.HashString(document)

	r.renderMu.Lock()
	defer r.renderMu.Unlock()

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return Frame{}, ErrBoundaryClosed
	}
	if r.current != nil && r.frame.Fingerprint == fingerprint {
		r.reused++
		r.metrics.RecordRender("reused", 0)
		f := r.frame
		f.Reused = true
		r.mu.Unlock()
		return f, nil
	}

	start := r.now()
	r.destroyLocked()
	r.document = document
	r.mu.Unlock()

	// viewport reads and changes proceed while the boundary builds
	handle, createErr := r.boundary.Create(ctx, document)
	elapsed := r.now().Sub(start)

	r.mu.Lock()
	defer r.mu.Unlock()

	if createErr != nil {
		r.failed++
		r.frame = Frame{}
		r.metrics.RecordRender("failed", 0)
		r.log.Error("execution context create failed", zap.Error(createErr))
		return Frame{}, fmt.Errorf("create execution context: %w", createErr)
	}
	if r.closed {
		if err := r.boundary.Destroy(handle); err != nil {
			r.log.Warn("execution context destroy failed",
				logging.Handle(handle.ID()), zap.Error(err))
		}
		return Frame{}, ErrBoundaryClosed
	}

	r.current = handle
	r.metrics.IncBoundaries()
	r.seq++
	r.frame = Frame{
		Seq:         r.seq,
		Fingerprint: fingerprint,
		HandleID:    handle.ID(),
		BuiltAt:     r.now(),
	}
	r.built++
	r.observe(elapsed)
	r.metrics.RecordRender("built", elapsed)

	r.log.Debug("preview rebuilt",
		zap.Uint64("seq", r.seq),
		logging.Handle(handle.ID()),
		zap.String("fingerprint", utils.Short(fingerprint)),
		zap.Duration("elapsed", elapsed))

	r.publish(Event{Type: EventFrame, Frame: r.frame, Viewport: r.viewport})
	return r.frame, nil
}

// Current returns the displayed frame, if any
func (r *Renderer) Current() (Frame, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frame, r.current != nil
}

// Document returns the most recently assembled document
func (r *Renderer) Document() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.document
}

// Snapshot returns the visual output of the live context
func (r *Renderer) Snapshot(ctx context.Context) (string, error) {
	r.mu.Lock()
	h := r.current
	r.mu.Unlock()
	if h == nil {
		return "", ErrBoundaryClosed
	}
	return h.Snapshot(ctx)
}

// Handle returns the live context, if any
func (r *Renderer) Handle() (Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current, r.current != nil
}

// Viewport returns the presentation state
func (r *Renderer) Viewport() Viewport {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.viewport
}

// SetViewMode changes the frame dimensions without re-executing
func (r *Renderer) SetViewMode(mode ViewMode) error {
	if _, ok := mode.Dimensions(); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownViewMode, mode)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.viewport = NewViewport(mode, r.viewport.FullScreen)
	r.publishViewportLocked()
	return nil
}

// SetFullScreen toggles the full-screen presentation
func (r *Renderer) SetFullScreen(on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.viewport.FullScreen = on
	r.publishViewportLocked()
}

// ToggleFullScreen flips full-screen and returns the new state
func (r *Renderer) ToggleFullScreen() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.viewport.FullScreen = !r.viewport.FullScreen
	r.publishViewportLocked()
	return r.viewport.FullScreen
}

// Subscribe registers for frame and viewport events. Slow subscribers miss
// events rather than blocking the renderer.
func (r *Renderer) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberCap)
	r.subMu.Lock()
	r.subs[ch] = struct{}{}
	r.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			r.subMu.Lock()
			defer r.subMu.Unlock()
			// Close may already have ended the subscription
			if _, ok := r.subs[ch]; ok {
				delete(r.subs, ch)
				close(ch)
			}
		})
	}
}

// Stats returns render counters and latency percentiles
func (r *Renderer) Stats() Stats {
	r.mu.Lock()
	s := Stats{Built: r.built, Reused: r.reused, Failed: r.failed, Samples: len(r.samples)}
	xs := make([]float64, len(r.samples))
	copy(xs, r.samples)
	r.mu.Unlock()

	if len(xs) == 0 {
		return s
	}
	sort.Float64s(xs)
	s.MeanMs = stat.Mean(xs, nil)
	s.P50Ms = stat.Quantile(0.5, stat.Empirical, xs, nil)
	s.P95Ms = stat.Quantile(0.95, stat.Empirical, xs, nil)
	s.MaxMs = xs[len(xs)-1]
	return s
}

// Close destroys the live context. Later renders fail with ErrBoundaryClosed.
func (r *Renderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	r.destroyLocked()

	r.subMu.Lock()
	for ch := range r.subs {
		close(ch)
		delete(r.subs, ch)
	}
	r.subMu.Unlock()
	return nil
}

// destroyLocked discards the live context. Caller holds mu.
func (r *Renderer) destroyLocked() {
	if r.current == nil {
		return
	}
	old := r.current
	r.current = nil
	r.metrics.DecBoundaries()
	if err := r.boundary.Destroy(old); err != nil {
		r.log.Warn("execution context destroy failed",
			logging.Handle(old.ID()), zap.Error(err))
	}
}

func (r *Renderer) observe(d time.Duration) {
	ms := float64(d) / float64(time.Millisecond)
	if len(r.samples) < maxSamples {
		r.samples = append(r.samples, ms)
		return
	}
	r.samples[r.next] = ms
	r.next = (r.next + 1) % maxSamples
}

func (r *Renderer) publishViewportLocked() {
	r.publish(Event{Type: EventViewport, Frame: r.frame, Viewport: r.viewport})
}

func (r *Renderer) publish(event Event) {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	dropped := 0
	for ch := range r.subs {
		select {
		case ch <- event:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		r.log.Debug("preview events dropped", zap.Int("count", dropped))
	}
}

package preview

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/livepen/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/livepen/internal/shared/types"
)

type fakeHandle struct {
	id       string
	document string
}

func (h *fakeHandle) ID() string { return h.id }

func (h *fakeHandle) Snapshot(context.Context) (string, error) {
	return h.document, nil
}

// fakeBoundary records the order of Create and Destroy calls
type fakeBoundary struct {
	mu        sync.Mutex
	calls     []string
	live      map[string]bool
	next      int
	failNext  bool
	destroyed []string
}

func newFakeBoundary() *fakeBoundary {
	return &fakeBoundary{live: make(map[string]bool)}
}

func (b *fakeBoundary) Create(_ context.Context, document string) (Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failNext {
		b.failNext = false
		b.calls = append(b.calls, "create:fail")
		return nil, errors.New("boom")
	}
	b.next++
	h := &fakeHandle{id: fmt.Sprintf("h%d", b.next), document: document}
	b.live[h.id] = true
	b.calls = append(b.calls, "create:"+h.id)
	return h, nil
}

func (b *fakeBoundary) Destroy(h Handle) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.live, h.ID())
	b.destroyed = append(b.destroyed, h.ID())
	b.calls = append(b.calls, "destroy:"+h.ID())
	return nil
}

func (b *fakeBoundary) liveCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.live)
}

func (b *fakeBoundary) history() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

func composite(markup string) types.Composite {
	return types.Composite{Markup: markup, Style: "p{}", Script: "1;"}
}

func TestRenderBuildsFrame(t *testing.T) {
	b := newFakeBoundary()
	r := NewRenderer(b, nil)
	defer r.Close()

	frame, err := r.Render(context.Background(), composite("<p>a</p>"))
	require.NoError(t, err)

	assert.Equal(t, uint64(1), frame.Seq)
	assert.Equal(t, "h1", frame.HandleID)
	assert.Len(t, frame.Fingerprint, 64)
	assert.False(t, frame.Reused)

	current, ok := r.Current()
	require.True(t, ok)
	assert.Equal(t, frame, current)
	assert.Equal(t, Assemble(composite("<p>a</p>")), r.Document())

	out, err := r.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Contains(t, out, "<p>a</p>")
}

func TestRenderSkipsIdenticalDocument(t *testing.T) {
	b := newFakeBoundary()
	r := NewRenderer(b, nil)
	defer r.Close()
	ctx := context.Background()

	first, err := r.Render(ctx, composite("<p>a</p>"))
	require.NoError(t, err)
	again, err := r.Render(ctx, composite("<p>a</p>"))
	require.NoError(t, err)

	assert.True(t, again.Reused)
	assert.Equal(t, first.HandleID, again.HandleID)
	assert.Equal(t, first.Seq, again.Seq)
	assert.Equal(t, []string{"create:h1"}, b.history())
}

func TestRenderDestroysBeforeCreate(t *testing.T) {
	b := newFakeBoundary()
	r := NewRenderer(b, nil)
	defer r.Close()
	ctx := context.Background()

	_, err := r.Render(ctx, composite("<p>a</p>"))
	require.NoError(t, err)
	frame, err := r.Render(ctx, composite("<p>b</p>"))
	require.NoError(t, err)

	assert.Equal(t, uint64(2), frame.Seq)
	assert.Equal(t, "h2", frame.HandleID)
	assert.Equal(t, []string{"create:h1", "destroy:h1", "create:h2"}, b.history())
	assert.Equal(t, 1, b.liveCount(), "only one context is ever live")
}

func TestRenderFailureLeavesNoContext(t *testing.T) {
	b := newFakeBoundary()
	r := NewRenderer(b, nil)
	defer r.Close()
	ctx := context.Background()

	_, err := r.Render(ctx, composite("<p>a</p>"))
	require.NoError(t, err)

	b.failNext = true
	_, err = r.Render(ctx, composite("<p>b</p>"))
	require.Error(t, err)

	_, ok := r.Current()
	assert.False(t, ok)
	assert.Equal(t, 0, b.liveCount())

	_, err = r.Snapshot(ctx)
	assert.ErrorIs(t, err, ErrBoundaryClosed)

	// The same document builds once the boundary recovers
	frame, err := r.Render(ctx, composite("<p>b</p>"))
	require.NoError(t, err)
	assert.False(t, frame.Reused)
	assert.Equal(t, uint64(1), r.Stats().Failed)
}

func TestViewportChangesNeverRebuild(t *testing.T) {
	b := newFakeBoundary()
	r := NewRenderer(b, nil)
	defer r.Close()

	frame, err := r.Render(context.Background(), composite("<p>a</p>"))
	require.NoError(t, err)

	assert.Equal(t, NewViewport(ViewDesktop, false), r.Viewport())

	require.NoError(t, r.SetViewMode(ViewMobile))
	assert.Equal(t, Viewport{Mode: ViewMobile, Dimensions: Dimensions{Width: "375px", Height: "667px"}}, r.Viewport())

	assert.True(t, r.ToggleFullScreen())
	assert.True(t, r.Viewport().FullScreen)
	assert.Equal(t, ViewMobile, r.Viewport().Mode, "full screen keeps the mode")

	r.SetFullScreen(false)
	assert.False(t, r.Viewport().FullScreen)

	err = r.SetViewMode("watch")
	assert.ErrorIs(t, err, ErrUnknownViewMode)

	current, ok := r.Current()
	require.True(t, ok)
	assert.Equal(t, frame.HandleID, current.HandleID)
	assert.Equal(t, []string{"create:h1"}, b.history())
}

func TestSubscribeReceivesFramesAndViewport(t *testing.T) {
	r := NewRenderer(newFakeBoundary(), nil)
	events, cancel := r.Subscribe()
	defer cancel()

	_, err := r.Render(context.Background(), composite("<p>a</p>"))
	require.NoError(t, err)
	require.NoError(t, r.SetViewMode(ViewTablet))

	ev := <-events
	assert.Equal(t, EventFrame, ev.Type)
	assert.Equal(t, "h1", ev.Frame.HandleID)

	ev = <-events
	assert.Equal(t, EventViewport, ev.Type)
	assert.Equal(t, ViewTablet, ev.Viewport.Mode)
	assert.Equal(t, "768px", ev.Viewport.Width)

	// Reused frames publish nothing
	_, err = r.Render(context.Background(), composite("<p>a</p>"))
	require.NoError(t, err)
	select {
	case ev := <-events:
		t.Fatalf("unexpected event %v", ev.Type)
	case <-time.After(20 * time.Millisecond):
	}

	require.NoError(t, r.Close())
	_, open := <-events
	assert.False(t, open, "Close ends subscriptions")

	// cancel after Close is harmless
	cancel()
}

// gatedBoundary holds Create until release is closed
type gatedBoundary struct {
	*fakeBoundary
	entered chan struct{}
	release chan struct{}
}

func newGatedBoundary() *gatedBoundary {
	return &gatedBoundary{
		fakeBoundary: newFakeBoundary(),
		entered:      make(chan struct{}, 1),
		release:      make(chan struct{}),
	}
}

func (b *gatedBoundary) Create(ctx context.Context, document string) (Handle, error) {
	b.entered <- struct{}{}
	<-b.release
	return b.fakeBoundary.Create(ctx, document)
}

func TestViewportIsServedDuringSlowCreate(t *testing.T) {
	b := newGatedBoundary()
	r := NewRenderer(b, nil)
	defer r.Close()

	done := make(chan error, 1)
	go func() {
		_, err := r.Render(context.Background(), composite("<p>slow</p>"))
		done <- err
	}()
	<-b.entered

	served := make(chan struct{})
	go func() {
		defer close(served)
		assert.NoError(t, r.SetViewMode(ViewTablet))
		assert.Equal(t, ViewTablet, r.Viewport().Mode)
		_, ok := r.Current()
		assert.False(t, ok)
	}()
	select {
	case <-served:
	case <-time.After(2 * time.Second):
		t.Fatal("viewport blocked behind Create")
	}

	close(b.release)
	require.NoError(t, <-done)
	frame, ok := r.Current()
	require.True(t, ok)
	assert.Equal(t, "h1", frame.HandleID)
	assert.Equal(t, ViewTablet, r.Viewport().Mode)
}

func TestCloseDuringCreateDestroysLateContext(t *testing.T) {
	b := newGatedBoundary()
	r := NewRenderer(b, nil)

	done := make(chan error, 1)
	go func() {
		_, err := r.Render(context.Background(), composite("<p>late</p>"))
		done <- err
	}()
	<-b.entered

	require.NoError(t, r.Close())
	close(b.release)

	assert.ErrorIs(t, <-done, ErrBoundaryClosed)
	assert.Equal(t, 0, b.liveCount())
	_, ok := r.Handle()
	assert.False(t, ok)
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	r := NewRenderer(newFakeBoundary(), nil)
	defer r.Close()
	_, cancel := r.Subscribe()
	defer cancel()

	for i := 0; i < subscriberCap*2; i++ {
		r.ToggleFullScreen()
	}
	assert.False(t, r.Viewport().FullScreen)
}

func TestStatsSummarizeLatency(t *testing.T) {
	b := newFakeBoundary()
	r := NewRenderer(b, nil)
	defer r.Close()

	var tick time.Duration
	base := time.Unix(0, 0)
	r.now = func() time.Time {
		tick += 5 * time.Millisecond
		return base.Add(tick)
	}

	ctx := context.Background()
	for i := 0; i < 4; i++ {
		_, err := r.Render(ctx, composite(strings.Repeat("x", i+1)))
		require.NoError(t, err)
	}
	_, err := r.Render(ctx, composite("xxxx"))
	require.NoError(t, err)

	s := r.Stats()
	assert.Equal(t, uint64(4), s.Built)
	assert.Equal(t, uint64(1), s.Reused)
	assert.Equal(t, 4, s.Samples)
	assert.InDelta(t, 5.0, s.MeanMs, 0.001)
	assert.InDelta(t, 5.0, s.P50Ms, 0.001)
	assert.InDelta(t, 5.0, s.P95Ms, 0.001)
	assert.InDelta(t, 5.0, s.MaxMs, 0.001)
}

func TestStatsEmpty(t *testing.T) {
	r := NewRenderer(newFakeBoundary(), nil)
	assert.Equal(t, Stats{}, r.Stats())
}

func TestCloseDestroysAndRejects(t *testing.T) {
	b := newFakeBoundary()
	r := NewRenderer(b, nil)

	_, err := r.Render(context.Background(), composite("<p>a</p>"))
	require.NoError(t, err)

	require.NoError(t, r.Close())
	assert.Equal(t, 0, b.liveCount())
	assert.NoError(t, r.Close())

	_, err = r.Render(context.Background(), composite("<p>b</p>"))
	assert.ErrorIs(t, err, ErrBoundaryClosed)
}

func TestRenderRecordsMetrics(t *testing.T) {
	metrics := monitoring.NewMetrics()
	r := NewRenderer(newFakeBoundary(), nil).WithMetrics(metrics)
	defer r.Close()
	ctx := context.Background()

	_, err := r.Render(ctx, composite("<p>a</p>"))
	require.NoError(t, err)
	_, err = r.Render(ctx, composite("<p>a</p>"))
	require.NoError(t, err)
	_, err = r.Render(ctx, composite("<p>b</p>"))
	require.NoError(t, err)

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.Renders.WithLabelValues("built")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Renders.WithLabelValues("reused")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.BoundariesLive))
}

func TestParseViewMode(t *testing.T) {
	for _, m := range ViewModes {
		got, err := ParseViewMode(string(m))
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}
	_, err := ParseViewMode("DESKTOP")
	assert.ErrorIs(t, err, ErrUnknownViewMode)

	assert.Equal(t, ViewDesktop, NewViewport("bogus", true).Mode)
}

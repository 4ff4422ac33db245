package preview

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/livepen/internal/domain/workspace"
	"github.com/GriffinCanCode/livepen/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/livepen/internal/shared/id"
	"github.com/GriffinCanCode/livepen/internal/shared/types"
)

type compositeSink struct {
	mu  sync.Mutex
	got []types.Composite
}

func (s *compositeSink) receive(c types.Composite) {
	s.mu.Lock()
	s.got = append(s.got, c)
	s.mu.Unlock()
}

func (s *compositeSink) all() []types.Composite {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.Composite(nil), s.got...)
}

func (s *compositeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.got)
}

func (s *compositeSink) last() types.Composite {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.got[len(s.got)-1]
}

// seededStore has one active buffer per kind with contents "h", "c", "j"
func seededStore(t *testing.T) *workspace.Store {
	t.Helper()
	ctx := context.Background()
	s := workspace.NewStore(id.NewSequence(), nil, nil)
	for kind, content := range map[types.Kind]string{types.KindHTML: "h", types.KindCSS: "c", types.KindJS: "j"} {
		buf, err := s.Create(ctx, "f."+string(kind), kind)
		require.NoError(t, err)
		require.True(t, s.UpdateContent(ctx, buf.ID, content))
	}
	return s
}

func TestAggregatorDeliversInitialComposite(t *testing.T) {
	store := seededStore(t)
	var sink compositeSink
	agg := NewAggregator(store, 50*time.Millisecond, sink.receive, nil)
	agg.Start()
	defer agg.Stop()

	require.Equal(t, 1, sink.count(), "initial composite is delivered without waiting")
	assert.Equal(t, types.Composite{Markup: "h", Style: "c", Script: "j"}, sink.last())
	assert.Equal(t, sink.last(), agg.Settled())
}

func TestAggregatorCollapsesBurst(t *testing.T) {
	store := seededStore(t)
	var sink compositeSink
	agg := NewAggregator(store, 100*time.Millisecond, sink.receive, nil)
	agg.Start()
	defer agg.Stop()
	ctx := context.Background()

	for _, v := range []string{"<p>1</p>", "<p>12</p>", "<p>123</p>"} {
		require.True(t, store.UpdateActive(ctx, types.KindHTML, v))
		time.Sleep(10 * time.Millisecond)
	}
	assert.True(t, agg.Pending())
	assert.Equal(t, 1, sink.count(), "nothing settles inside the window")

	assert.Eventually(t, func() bool { return sink.count() == 2 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(150 * time.Millisecond)
	require.Equal(t, 2, sink.count(), "a burst settles once")
	assert.Equal(t, types.Composite{Markup: "<p>123</p>", Style: "c", Script: "j"}, sink.last())
	assert.False(t, agg.Pending())
}

func TestAggregatorKindsSettleIndependently(t *testing.T) {
	store := seededStore(t)
	var sink compositeSink
	agg := NewAggregator(store, 60*time.Millisecond, sink.receive, nil)
	agg.Start()
	defer agg.Stop()
	ctx := context.Background()

	require.True(t, store.UpdateActive(ctx, types.KindCSS, "c2"))
	assert.Eventually(t, func() bool { return sink.count() == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, types.Composite{Markup: "h", Style: "c2", Script: "j"}, sink.last())

	// JS keeps changing; CSS settling does not wait for it
	require.True(t, store.UpdateActive(ctx, types.KindJS, "j2"))
	require.True(t, store.UpdateActive(ctx, types.KindHTML, "h2"))
	assert.Eventually(t, func() bool { return sink.count() == 4 }, 2*time.Second, 5*time.Millisecond)

	got := sink.all()
	assert.Equal(t, types.Composite{Markup: "h2", Style: "c2", Script: "j2"}, got[3])
	for _, c := range got[2:] {
		assert.Equal(t, "c2", c.Style)
	}
}

func TestAggregatorSelectAndDeletePushKind(t *testing.T) {
	store := seededStore(t)
	ctx := context.Background()
	other, err := store.Import(ctx, "other.css", types.KindCSS, "other")
	require.NoError(t, err)
	active, ok := store.Active(types.KindCSS)
	require.True(t, ok)
	require.NotEqual(t, other.ID, active.ID, "the first css buffer stays active")
	assert.False(t, store.UpdateContent(ctx, other.ID, "ignored"))

	var sink compositeSink
	agg := NewAggregator(store, 0, sink.receive, nil)
	agg.Start()
	defer agg.Stop()

	require.True(t, store.Select(ctx, other.ID))
	assert.Eventually(t, func() bool { return sink.count() == 2 }, time.Second, 2*time.Millisecond)
	assert.Equal(t, types.Composite{Markup: "h", Style: "other", Script: "j"}, sink.last())

	require.True(t, store.Delete(ctx, other.ID))
	assert.Eventually(t, func() bool { return sink.count() == 3 }, time.Second, 2*time.Millisecond)
	assert.Equal(t, "c", sink.last().Style, "deleting the active buffer falls back to the first of its kind")
}

func TestAggregatorIgnoresInactiveEdits(t *testing.T) {
	store := seededStore(t)
	ctx := context.Background()
	other, err := store.Create(ctx, "other.js", types.KindJS)
	require.NoError(t, err)

	var sink compositeSink
	agg := NewAggregator(store, 10*time.Millisecond, sink.receive, nil)
	agg.Start()
	defer agg.Stop()

	assert.False(t, store.UpdateContent(ctx, other.ID, "not shown"))
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, 1, sink.count(), "stale writes never reach the preview")
	assert.Equal(t, "j", agg.Settled().Script)
	assert.False(t, agg.Pending())
}

func TestAggregatorFlush(t *testing.T) {
	store := seededStore(t)
	var sink compositeSink
	agg := NewAggregator(store, time.Hour, sink.receive, nil)
	agg.Start()
	defer agg.Stop()

	require.True(t, store.UpdateActive(context.Background(), types.KindJS, "now"))
	assert.True(t, agg.Pending())

	agg.Flush()
	require.Equal(t, 2, sink.count())
	assert.Equal(t, "now", sink.last().Script)
	assert.False(t, agg.Pending())
}

func TestAggregatorStopDiscardsPending(t *testing.T) {
	store := seededStore(t)
	var sink compositeSink
	agg := NewAggregator(store, 20*time.Millisecond, sink.receive, nil)
	agg.Start()

	require.True(t, store.UpdateActive(context.Background(), types.KindHTML, "late"))
	agg.Stop()
	time.Sleep(60 * time.Millisecond)

	assert.Equal(t, 1, sink.count())
	assert.False(t, agg.Pending())

	// No longer subscribed
	require.True(t, store.UpdateActive(context.Background(), types.KindHTML, "later"))
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 1, sink.count())

	// Stop twice is harmless
	agg.Stop()
}

func TestAggregatorStartIsIdempotent(t *testing.T) {
	store := seededStore(t)
	var sink compositeSink
	agg := NewAggregator(store, -1, sink.receive, nil)
	agg.Start()
	agg.Start()
	defer agg.Stop()

	assert.Equal(t, 1, sink.count())
	assert.Equal(t, DefaultDebounce, agg.debouncers[0].Delay())
}

func TestAggregatorRecordsEmits(t *testing.T) {
	store := seededStore(t)
	metrics := monitoring.NewMetrics()
	agg := NewAggregator(store, time.Hour, nil, nil).WithMetrics(metrics)
	agg.Start()
	defer agg.Stop()

	require.True(t, store.UpdateActive(context.Background(), types.KindCSS, "x"))
	agg.Flush()

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.DebounceEmits.WithLabelValues("css")))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.DebounceEmits.WithLabelValues("html")))
}

package browser

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/livepen/internal/domain/preview"
	"github.com/GriffinCanCode/livepen/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/livepen/internal/providers/browser/sandbox"
)

func TestNewBoundaryDefaultsToSandbox(t *testing.T) {
	b, err := NewBoundary(Config{ScriptTimeout: time.Second}, zap.NewNop())
	require.NoError(t, err)
	defer b.Close()

	_, ok := b.(*sandbox.Boundary)
	assert.True(t, ok)

	h, err := b.Create(context.Background(), "<p>x</p>")
	require.NoError(t, err)
	assert.Equal(t, 1, b.Live())
	require.NoError(t, b.Destroy(h))
	assert.Equal(t, 0, b.Live())
}

func TestNewBoundaryRejectsUnknownEngine(t *testing.T) {
	_, err := NewBoundary(Config{Engine: "webkit"}, nil)
	assert.Error(t, err)
}

type failingProvider struct {
	creates int
	err     error
}

func (p *failingProvider) Create(context.Context, string) (preview.Handle, error) {
	p.creates++
	return nil, p.err
}

func (p *failingProvider) Destroy(preview.Handle) error { return nil }
func (p *failingProvider) Live() int                    { return 0 }
func (p *failingProvider) Close() error                 { return nil }

func TestGuardOpensAfterRepeatedFailures(t *testing.T) {
	inner := &failingProvider{err: errors.New("browser crashed")}
	g := Guard(inner, "chrome", 2, time.Hour, nil)

	for i := 0; i < 2; i++ {
		_, err := g.Create(context.Background(), "<p>x</p>")
		assert.ErrorContains(t, err, "browser crashed")
	}
	assert.Equal(t, resilience.StateOpen, g.State())

	_, err := g.Create(context.Background(), "<p>x</p>")
	assert.ErrorIs(t, err, resilience.ErrOpen)
	assert.Equal(t, 2, inner.creates)
	assert.Equal(t, uint64(1), g.Counts().Rejected)
	assert.Same(t, inner, g.Unwrap())
}

func TestGuardPassesThrough(t *testing.T) {
	sb, err := sandbox.NewBoundary(sandbox.DefaultConfig(), zap.NewNop())
	require.NoError(t, err)
	g := Guard(sb, "sandbox", 0, 0, zap.NewNop())
	defer g.Close()

	h, err := g.Create(context.Background(), "<p>x</p>")
	require.NoError(t, err)
	assert.Equal(t, 1, g.Live())
	require.NoError(t, g.Destroy(h))
	assert.Equal(t, resilience.StateClosed, g.State())
}

package browser

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/livepen/internal/domain/preview"
	"github.com/GriffinCanCode/livepen/internal/infrastructure/resilience"
)

// Guarded fails Create fast while the engine keeps failing to start
// contexts. Destroy is never guarded.
type Guarded struct {
	Provider
	breaker *resilience.Breaker
}

// Guard wraps p with a breaker that opens after threshold consecutive
// Create failures and probes again after cooldown
func Guard(p Provider, name string, threshold int, cooldown time.Duration, log *zap.Logger) *Guarded {
	if log == nil {
		log = zap.NewNop()
	}
	return &Guarded{
		Provider: p,
		breaker: resilience.New(name, resilience.Settings{
			Threshold: threshold,
			Cooldown:  cooldown,
			OnStateChange: func(name string, from, to resilience.State) {
				log.Warn("preview engine breaker changed state",
					zap.String("engine", name),
					zap.Stringer("from", from),
					zap.Stringer("to", to))
			},
		}),
	}
}

// Create starts a context unless the breaker is open
func (g *Guarded) Create(ctx context.Context, document string) (preview.Handle, error) {
	var h preview.Handle
	err := g.breaker.Do(ctx, func(ctx context.Context) error {
		var err error
		h, err = g.Provider.Create(ctx, document)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s engine: %w", g.breaker.Name(), err)
	}
	return h, nil
}

// State reports the breaker state
func (g *Guarded) State() resilience.State {
	return g.breaker.State()
}

// Counts reports the breaker counters
func (g *Guarded) Counts() resilience.Counts {
	return g.breaker.Counts()
}

// Unwrap returns the guarded provider
func (g *Guarded) Unwrap() Provider {
	return g.Provider
}

package browser

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/livepen/internal/domain/preview"
	"github.com/GriffinCanCode/livepen/internal/providers/browser/chrome"
	"github.com/GriffinCanCode/livepen/internal/providers/browser/sandbox"
)

// Engine names a boundary implementation
type Engine string

const (
	EngineSandbox Engine = "sandbox"
	EngineChrome  Engine = "chrome"
)

// Config selects and tunes the engine
type Config struct {
	Engine        Engine
	ScriptTimeout time.Duration
	MaxCallStack  int
	ChromePath    string

	// Chrome only: consecutive Create failures before the engine is
	// refused for BreakerCooldown
	BreakerThreshold int
	BreakerCooldown  time.Duration
}

// Provider is a boundary that reports and releases its contexts
type Provider interface {
	preview.Boundary
	Live() int
	Close() error
}

// Interactive is implemented by handles that accept input after load
type Interactive interface {
	Dispatch(ctx context.Context, selector, eventType string) error
	Settle(ctx context.Context) error
	Eval(ctx context.Context, script string) (interface{}, error)
}

var (
	_ Interactive = (*sandbox.Runtime)(nil)
	_ Interactive = (*chrome.Tab)(nil)
)

// NewBoundary creates the boundary for config.Engine. An empty engine
// means sandbox.
func NewBoundary(config Config, log *zap.Logger) (Provider, error) {
	if log == nil {
		log = zap.NewNop()
	}

	switch config.Engine {
	case EngineSandbox, "":
		sc := sandbox.DefaultConfig()
		if config.ScriptTimeout > 0 {
			sc.Timeout = config.ScriptTimeout
		}
		if config.MaxCallStack > 0 {
			sc.MaxCallStack = config.MaxCallStack
		}
		b, err := sandbox.NewBoundary(sc, log.Named("sandbox"))
		if err != nil {
			return nil, err
		}
		return b, nil

	case EngineChrome:
		cc := chrome.DefaultConfig()
		cc.ExecPath = config.ChromePath
		b, err := chrome.NewBoundary(cc, log.Named("chrome"))
		if err != nil {
			return nil, err
		}
		return Guard(b, string(EngineChrome), config.BreakerThreshold, config.BreakerCooldown, log), nil

	default:
		return nil, fmt.Errorf("unknown preview engine %q", config.Engine)
	}
}

package sandbox

import (
	"errors"
	"time"
)

var (
	// ErrClosed is returned by operations on a destroyed runtime.
	ErrClosed = errors.New("sandbox runtime closed")
	// ErrNotLoaded is returned when a runtime has no document yet.
	ErrNotLoaded = errors.New("sandbox runtime has no document")
	// ErrNoMatch is returned by Dispatch when the selector matches nothing.
	ErrNoMatch = errors.New("selector matched no element")
)

// Config defines sandbox configuration
type Config struct {
	Timeout       time.Duration // Watchdog per task (script block, timer, listener)
	MaxCallStack  int           // goja call stack limit
	EnableConsole bool          // Allow console.log/warn/error
	ConsoleLimit  int           // Retained console entries per runtime
	QueueSize     int           // Pending task capacity
	Prewarm       int           // Idle runtimes kept ready by the pool
}

// LogEntry represents console output
type LogEntry struct {
	Level   string    `json:"level"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// Fault is an uncaught error raised inside the runtime
type Fault struct {
	Message string    `json:"message"`
	Source  string    `json:"source"` // script, timer, listener, microtask
	Time    time.Time `json:"time"`
}

// DefaultConfig returns the default sandbox configuration
func DefaultConfig() Config {
	return Config{
		Timeout:       5 * time.Second,
		MaxCallStack:  1024,
		EnableConsole: true,
		ConsoleLimit:  500,
		QueueSize:     256,
		Prewarm:       2,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.MaxCallStack <= 0 {
		c.MaxCallStack = d.MaxCallStack
	}
	if c.ConsoleLimit <= 0 {
		c.ConsoleLimit = d.ConsoleLimit
	}
	if c.QueueSize <= 0 {
		c.QueueSize = d.QueueSize
	}
	if c.Prewarm < 0 {
		c.Prewarm = 0
	}
	return c
}

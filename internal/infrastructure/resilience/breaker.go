package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned while the breaker refuses calls
var ErrOpen = errors.New("circuit breaker is open")

// State represents the circuit breaker state
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Settings configures the circuit breaker behavior
type Settings struct {
	// Threshold is the number of consecutive failures that opens the breaker
	Threshold int
	// Cooldown is how long the breaker stays open before a probe is allowed
	Cooldown time.Duration
	// OnStateChange is called outside the lock whenever the state changes
	OnStateChange func(name string, from, to State)
}

// Counts holds the statistics for the circuit breaker
type Counts struct {
	Calls               uint64 `json:"calls"`
	Failures            uint64 `json:"failures"`
	Rejected            uint64 `json:"rejected"`
	ConsecutiveFailures int    `json:"consecutive_failures"`
}

// Breaker stops calling a failing collaborator for a cooldown period. After
// the cooldown a single probe call decides whether to close again.
type Breaker struct {
	name     string
	settings Settings
	now      func() time.Time

	mu       sync.Mutex
	state    State
	counts   Counts
	openedAt time.Time
	probing  bool
}

// New creates a new circuit breaker with the given settings
func New(name string, settings Settings) *Breaker {
	if settings.Threshold <= 0 {
		settings.Threshold = 3
	}
	if settings.Cooldown <= 0 {
		settings.Cooldown = 30 * time.Second
	}
	return &Breaker{name: name, settings: settings, now: time.Now}
}

// Name returns the name of the circuit breaker
func (b *Breaker) Name() string {
	return b.name
}

// State returns the current state, moving from open to half-open once the
// cooldown has passed
func (b *Breaker) State() State {
	b.mu.Lock()
	state, change := b.advanceLocked()
	b.mu.Unlock()
	b.notify(change)
	return state
}

// Counts returns a copy of the internal counts
func (b *Breaker) Counts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counts
}

// Do runs fn unless the breaker is open. Cancellation of ctx is the
// caller's doing and never counts as a failure.
func (b *Breaker) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := b.before(); err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			b.after(outcomeFailure)
			panic(r)
		}
	}()

	err := fn(ctx)
	switch {
	case err == nil:
		b.after(outcomeSuccess)
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		b.after(outcomeNeutral)
	default:
		b.after(outcomeFailure)
	}
	return err
}

type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeFailure
	outcomeNeutral
)

func (b *Breaker) before() error {
	b.mu.Lock()
	state, change := b.advanceLocked()
	var err error
	switch {
	case state == StateOpen:
		err = ErrOpen
	case state == StateHalfOpen && b.probing:
		err = ErrOpen
	case state == StateHalfOpen:
		b.probing = true
	}
	if err != nil {
		b.counts.Rejected++
	} else {
		b.counts.Calls++
	}
	b.mu.Unlock()

	b.notify(change)
	return err
}

func (b *Breaker) after(o outcome) {
	b.mu.Lock()
	var change *transition
	switch o {
	case outcomeSuccess:
		b.counts.ConsecutiveFailures = 0
		if b.state == StateHalfOpen {
			change = b.setLocked(StateClosed)
		}
	case outcomeFailure:
		b.counts.Failures++
		b.counts.ConsecutiveFailures++
		if b.state == StateHalfOpen || b.counts.ConsecutiveFailures >= b.settings.Threshold {
			change = b.setLocked(StateOpen)
		}
	}
	b.probing = false
	b.mu.Unlock()

	b.notify(change)
}

type transition struct{ from, to State }

func (b *Breaker) advanceLocked() (State, *transition) {
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.settings.Cooldown {
		return StateHalfOpen, b.setLocked(StateHalfOpen)
	}
	return b.state, nil
}

func (b *Breaker) setLocked(state State) *transition {
	if b.state == state {
		return nil
	}
	t := &transition{from: b.state, to: state}
	b.state = state
	switch state {
	case StateOpen:
		b.openedAt = b.now()
	case StateClosed:
		b.counts.ConsecutiveFailures = 0
	}
	return t
}

func (b *Breaker) notify(t *transition) {
	if t != nil && b.settings.OnStateChange != nil {
		b.settings.OnStateChange(b.name, t.from, t.to)
	}
}

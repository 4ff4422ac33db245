// Package id hands out identifiers.
//
// Buffer ids come from a Source injected into the buffer store: Generator
// yields prefixed ULIDs, Sequence yields prefix_1, prefix_2, ... for
// deterministic fixtures. Boundary handles and WebSocket clients get
// random UUIDs since nothing persists them.
package id

import (
	"crypto/rand"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

const (
	BufferPrefix = "buf"
	HandlePrefix = "ctx"
	ClientPrefix = "ws"
)

// Source produces unique identifiers
type Source interface {
	NewID(prefix string) string
}

// Generator produces prefixed ULIDs. The time part orders buffer ids by
// creation, which Created recovers.
type Generator struct {
	mu      sync.Mutex
	entropy io.Reader
	now     func() time.Time
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the process-wide generator
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator with monotonic crypto entropy
func NewGenerator() *Generator {
	return NewGeneratorWith(time.Now, ulid.Monotonic(rand.Reader, 0))
}

// NewGeneratorWith pins the clock and entropy
func NewGeneratorWith(now func() time.Time, entropy io.Reader) *Generator {
	return &Generator{entropy: entropy, now: now}
}

// NewID implements Source
func (g *Generator) NewID(prefix string) string {
	g.mu.Lock()
	u := ulid.MustNew(ulid.Timestamp(g.now()), g.entropy)
	g.mu.Unlock()
	return join(prefix, u.String())
}

// Sequence hands out prefix_1, prefix_2, ... in call order
type Sequence struct {
	mu   sync.Mutex
	next uint64
}

// NewSequence creates a counter starting at 1
func NewSequence() *Sequence {
	return &Sequence{}
}

// NewID implements Source
func (s *Sequence) NewID(prefix string) string {
	s.mu.Lock()
	s.next++
	n := s.next
	s.mu.Unlock()
	return join(prefix, strconv.FormatUint(n, 10))
}

// NewHandleID identifies one execution context of the preview
func NewHandleID() string {
	return join(HandlePrefix, uuid.NewString())
}

// NewClientID identifies one WebSocket connection
func NewClientID() string {
	return join(ClientPrefix, uuid.NewString())
}

// Created returns the creation time encoded in a Generator id. Ids from
// any other source report false.
func Created(id string) (time.Time, bool) {
	if i := strings.LastIndexByte(id, '_'); i >= 0 {
		id = id[i+1:]
	}
	u, err := ulid.ParseStrict(id)
	if err != nil {
		return time.Time{}, false
	}
	return ulid.Time(u.Time()), true
}

func join(prefix, value string) string {
	if prefix == "" {
		return value
	}
	return prefix + "_" + value
}

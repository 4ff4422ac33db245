package workspace

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/GriffinCanCode/livepen/internal/infrastructure/logging"
	"github.com/GriffinCanCode/livepen/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/livepen/internal/infrastructure/storage"
	"github.com/GriffinCanCode/livepen/internal/shared/id"
	"github.com/GriffinCanCode/livepen/internal/shared/types"
	"go.uber.org/zap"
)

// ErrUnknownKind is returned when a buffer is created with an unsupported kind.
var ErrUnknownKind = errors.New("unknown buffer kind")

// Op names a store mutation
type Op string

const (
	OpLoad   Op = "load"
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpSelect Op = "select"
	OpRename Op = "rename"
	OpDelete Op = "delete"
)

// Change describes an applied mutation. Kinds lists the slots whose active
// content may differ afterwards; it is empty when only the file list moved.
type Change struct {
	Op     Op
	Buffer types.BufferID
	Kinds  []types.Kind
}

// Store holds the ordered buffers and the active selection
type Store struct {
	mu      sync.RWMutex
	buffers []types.Buffer // Protected by mu, creation order
	active  types.Selection
	opened  bool

	ids     id.Source
	kv      storage.KV
	log     *logging.Logger
	metrics *monitoring.Metrics

	subMu   sync.Mutex
	subs    []subscriber
	nextSub int
}

type subscriber struct {
	id int
	fn func(Change)
}

// NewStore creates an empty store. A nil kv keeps state in memory only.
func NewStore(ids id.Source, kv storage.KV, log *logging.Logger) *Store {
	if ids == nil {
		ids = id.Default()
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Store{
		ids: ids,
		kv:  kv,
		log: log.Named("workspace"),
	}
}

// WithMetrics adds metrics tracking to the store
func (s *Store) WithMetrics(metrics *monitoring.Metrics) *Store {
	s.metrics = metrics
	return s
}

// Create appends a buffer with placeholder content. It becomes active when
// its kind has no active buffer.
func (s *Store) Create(ctx context.Context, name string, kind types.Kind) (types.Buffer, error) {
	return s.insert(ctx, name, kind, placeholder(kind, name))
}

// Import appends a buffer holding content read from elsewhere. Selection
// follows the same rule as Create.
func (s *Store) Import(ctx context.Context, name string, kind types.Kind, content string) (types.Buffer, error) {
	return s.insert(ctx, name, kind, content)
}

func (s *Store) insert(ctx context.Context, name string, kind types.Kind, content string) (types.Buffer, error) {
	if !kind.Valid() {
		return types.Buffer{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	buf := types.Buffer{
		ID:      types.BufferID(s.ids.NewID(id.BufferPrefix)),
		Name:    name,
		Kind:    kind,
		Content: content,
	}

	s.mu.Lock()
	s.buffers = append(s.buffers, buf)
	change := Change{Op: OpCreate, Buffer: buf.ID}
	if _, ok := s.active.Get(kind); !ok {
		s.active.Set(kind, buf.ID)
		change.Kinds = []types.Kind{kind}
	}
	s.persistLocked(ctx)
	count := len(s.buffers)
	s.mu.Unlock()

	s.log.Debug("buffer created",
		logging.Buffer(buf.ID.String()),
		logging.Kind(string(kind)),
		zap.String("name", name))
	s.metrics.RecordStoreOp(string(OpCreate), true)
	s.metrics.SetBuffers(count)
	s.notify(change)
	return buf, nil
}

// UpdateContent replaces the content of id only while id is the active
// buffer of its kind. Stale or unknown ids are ignored.
func (s *Store) UpdateContent(ctx context.Context, bufID types.BufferID, content string) bool {
	s.mu.Lock()
	i := s.indexLocked(bufID)
	if i < 0 {
		s.mu.Unlock()
		return s.done(OpUpdate, false, Change{})
	}
	kind := s.buffers[i].Kind
	if cur, ok := s.active.Get(kind); !ok || cur != bufID {
		s.mu.Unlock()
		s.log.Debug("stale write ignored", logging.Buffer(bufID.String()))
		return s.done(OpUpdate, false, Change{})
	}
	s.buffers[i].Content = content
	s.persistLocked(ctx)
	s.mu.Unlock()

	return s.done(OpUpdate, true, Change{Op: OpUpdate, Buffer: bufID, Kinds: []types.Kind{kind}})
}

// UpdateActive writes content through the active slot of kind. It is a no-op
// when the slot is empty.
func (s *Store) UpdateActive(ctx context.Context, kind types.Kind, content string) bool {
	s.mu.RLock()
	cur, ok := s.active.Get(kind)
	s.mu.RUnlock()
	if !ok {
		return s.done(OpUpdate, false, Change{})
	}
	return s.UpdateContent(ctx, cur, content)
}

// Select makes id the active buffer of its kind
func (s *Store) Select(ctx context.Context, bufID types.BufferID) bool {
	s.mu.Lock()
	i := s.indexLocked(bufID)
	if i < 0 {
		s.mu.Unlock()
		return s.done(OpSelect, false, Change{})
	}
	kind := s.buffers[i].Kind
	s.active.Set(kind, bufID)
	s.persistLocked(ctx)
	s.mu.Unlock()

	return s.done(OpSelect, true, Change{Op: OpSelect, Buffer: bufID, Kinds: []types.Kind{kind}})
}

// Rename changes buffer metadata only
func (s *Store) Rename(ctx context.Context, bufID types.BufferID, name string) bool {
	s.mu.Lock()
	i := s.indexLocked(bufID)
	if i < 0 {
		s.mu.Unlock()
		return s.done(OpRename, false, Change{})
	}
	s.buffers[i].Name = name
	kind := s.buffers[i].Kind
	s.persistLocked(ctx)
	s.mu.Unlock()

	return s.done(OpRename, true, Change{Op: OpRename, Buffer: bufID, Kinds: []types.Kind{kind}})
}

// Delete removes id. When it was active, the first remaining buffer of the
// same kind in store order takes over, or the slot empties.
func (s *Store) Delete(ctx context.Context, bufID types.BufferID) bool {
	s.mu.Lock()
	i := s.indexLocked(bufID)
	if i < 0 {
		s.mu.Unlock()
		return s.done(OpDelete, false, Change{})
	}
	kind := s.buffers[i].Kind
	s.buffers = append(s.buffers[:i], s.buffers[i+1:]...)

	change := Change{Op: OpDelete, Buffer: bufID}
	if cur, ok := s.active.Get(kind); ok && cur == bufID {
		if next, found := s.firstOfKindLocked(kind); found {
			s.active.Set(kind, next)
		} else {
			s.active.Clear(kind)
		}
		change.Kinds = []types.Kind{kind}
	}
	s.persistLocked(ctx)
	count := len(s.buffers)
	s.mu.Unlock()

	s.metrics.SetBuffers(count)
	return s.done(OpDelete, true, change)
}

// Snapshot returns a copy of the read model
func (s *Store) Snapshot() types.Workspace {
	s.mu.RLock()
	defer s.mu.RUnlock()

	buffers := make([]types.Buffer, len(s.buffers))
	copy(buffers, s.buffers)
	return types.Workspace{Buffers: buffers, Active: s.active.Clone()}
}

// Get returns a copy of one buffer
func (s *Store) Get(bufID types.BufferID) (types.Buffer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexLocked(bufID)
	if i < 0 {
		return types.Buffer{}, false
	}
	return s.buffers[i], true
}

// Active returns the active buffer of kind
func (s *Store) Active(kind types.Kind) (types.Buffer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cur, ok := s.active.Get(kind)
	if !ok {
		return types.Buffer{}, false
	}
	i := s.indexLocked(cur)
	if i < 0 {
		return types.Buffer{}, false
	}
	return s.buffers[i], true
}

// ActiveContents returns the current content of each active buffer.
// Empty slots contribute the empty string.
func (s *Store) ActiveContents() types.Composite {
	var c types.Composite
	for _, kind := range types.Kinds {
		if buf, ok := s.Active(kind); ok {
			c.Set(kind, buf.Content)
		}
	}
	return c
}

// Subscribe registers fn for applied changes. Observers run synchronously on
// the mutating goroutine after the store lock is released.
func (s *Store) Subscribe(fn func(Change)) (cancel func()) {
	s.subMu.Lock()
	s.nextSub++
	subID := s.nextSub
	s.subs = append(s.subs, subscriber{id: subID, fn: fn})
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			defer s.subMu.Unlock()
			for i, sub := range s.subs {
				if sub.id == subID {
					s.subs = append(s.subs[:i], s.subs[i+1:]...)
					return
				}
			}
		})
	}
}

func (s *Store) done(op Op, applied bool, change Change) bool {
	s.metrics.RecordStoreOp(string(op), applied)
	if applied {
		s.notify(change)
	}
	return applied
}

func (s *Store) notify(change Change) {
	s.subMu.Lock()
	subs := make([]subscriber, len(s.subs))
	copy(subs, s.subs)
	s.subMu.Unlock()

	for _, sub := range subs {
		sub.fn(change)
	}
}

func (s *Store) indexLocked(bufID types.BufferID) int {
	for i := range s.buffers {
		if s.buffers[i].ID == bufID {
			return i
		}
	}
	return -1
}

func (s *Store) firstOfKindLocked(kind types.Kind) (types.BufferID, bool) {
	for i := range s.buffers {
		if s.buffers[i].Kind == kind {
			return s.buffers[i].ID, true
		}
	}
	return "", false
}

func placeholder(kind types.Kind, name string) string {
	return fmt.Sprintf("/* New %s file: %s */\n", kind, name)
}

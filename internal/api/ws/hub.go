package ws

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/livepen/internal/domain/preview"
	"github.com/GriffinCanCode/livepen/internal/domain/workspace"
	"github.com/GriffinCanCode/livepen/internal/infrastructure/logging"
	"github.com/GriffinCanCode/livepen/internal/infrastructure/monitoring"
)

const sendBuffer = 64

// client is one connection's outbound queue
type client struct {
	id   string
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// Hub fans store changes and preview events out to every client
type Hub struct {
	store    *workspace.Store
	renderer *preview.Renderer
	log      *logging.Logger
	metrics  *monitoring.Metrics

	mu      sync.RWMutex
	clients map[*client]struct{}

	startOnce   sync.Once
	stopOnce    sync.Once
	cancelStore func()
	cancelView  func()
	done        chan struct{}
}

// NewHub creates a hub over store and renderer
func NewHub(store *workspace.Store, renderer *preview.Renderer, log *logging.Logger) *Hub {
	if log == nil {
		log = logging.Nop()
	}
	return &Hub{
		store:    store,
		renderer: renderer,
		log:      log.Named("ws"),
		clients:  make(map[*client]struct{}),
		done:     make(chan struct{}),
	}
}

// WithMetrics adds metrics tracking to the hub
func (h *Hub) WithMetrics(metrics *monitoring.Metrics) *Hub {
	h.metrics = metrics
	return h
}

// Start subscribes to the store and renderer. Safe to call more than once.
func (h *Hub) Start() {
	h.startOnce.Do(func() {
		h.cancelStore = h.store.Subscribe(h.onChange)
		events, cancel := h.renderer.Subscribe()
		h.cancelView = cancel
		go h.forward(events)
	})
}

// Stop unsubscribes and disconnects every client
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		if h.cancelStore != nil {
			h.cancelStore()
		}
		if h.cancelView != nil {
			h.cancelView()
		}
		close(h.done)

		h.mu.Lock()
		for c := range h.clients {
			c.close()
			h.metrics.DecWSConnections()
		}
		h.clients = make(map[*client]struct{})
		h.mu.Unlock()
	})
}

// Clients returns the number of connected clients
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) register(id string) (*client, bool) {
	c := &client{id: id, send: make(chan []byte, sendBuffer)}
	select {
	case <-h.done:
		return nil, false
	default:
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.metrics.IncWSConnections()
	return c, true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok {
		c.close()
		h.metrics.DecWSConnections()
	}
}

// broadcast queues msg for every client. A client whose queue is full is
// dropped rather than stalling the others.
func (h *Hub) broadcast(msg ServerMessage) {
	data, err := encode(msg)
	if err != nil {
		h.log.Error("failed to encode message", zap.String("type", msg.Type), zap.Error(err))
		return
	}

	var slow []*client
	h.mu.RLock()
	for c := range h.clients {
		select {
		case c.send <- data:
			h.metrics.RecordWSMessage("out", msg.Type)
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.log.Warn("dropping slow client", logging.Client(c.id))
		h.unregister(c)
	}
}

// unicast queues msg for one client
func (h *Hub) unicast(c *client, msg ServerMessage) {
	data, err := encode(msg)
	if err != nil {
		h.log.Error("failed to encode message", zap.String("type", msg.Type), zap.Error(err))
		return
	}
	h.mu.RLock()
	_, live := h.clients[c]
	if live {
		select {
		case c.send <- data:
			h.metrics.RecordWSMessage("out", msg.Type)
		default:
		}
	}
	h.mu.RUnlock()
}

func (h *Hub) onChange(change workspace.Change) {
	ws := h.store.Snapshot()
	h.broadcast(ServerMessage{
		Type:      TypeWorkspace,
		Op:        string(change.Op),
		Buffer:    change.Buffer.String(),
		Workspace: &ws,
		Timestamp: time.Now().Unix(),
	})
}

func (h *Hub) forward(events <-chan preview.Event) {
	for {
		select {
		case <-h.done:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch ev.Type {
			case preview.EventFrame:
				frame := ev.Frame
				h.broadcast(ServerMessage{Type: TypeFrame, Frame: &frame, Timestamp: time.Now().Unix()})
			case preview.EventViewport:
				vp := ev.Viewport
				h.broadcast(ServerMessage{Type: TypeViewport, Viewport: &vp, Timestamp: time.Now().Unix()})
			}
		}
	}
}

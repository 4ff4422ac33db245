package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/livepen/internal/domain/preview"
	"github.com/GriffinCanCode/livepen/internal/infrastructure/logging"
	"github.com/GriffinCanCode/livepen/internal/shared/id"
	"github.com/GriffinCanCode/livepen/internal/shared/types"
	"github.com/GriffinCanCode/livepen/internal/shared/utils"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in dev
	},
}

// Handler manages WebSocket connections
type Handler struct {
	hub *Hub
}

// NewHandler creates a new WebSocket handler
func NewHandler(hub *Hub) *Handler {
	return &Handler{hub: hub}
}

// HandleConnection handles WebSocket upgrade and messages
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.hub.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	clientID := id.NewClientID()
	cl, ok := h.hub.register(clientID)
	if !ok {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(writeWait))
		return
	}
	defer h.hub.unregister(cl)

	log := h.hub.log.With(logging.Client(clientID))
	log.Debug("client connected")

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		h.writeLoop(conn, cl)
	}()

	h.greet(cl)

	// Request context ends with the handler, so edits run on their own
	ctx := context.WithoutCancel(c.Request.Context())

	conn.SetReadLimit(utils.MaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("websocket read error", zap.Error(err))
			}
			break
		}

		msg, err := decode(data)
		if err != nil {
			h.sendError(cl, "malformed message")
			continue
		}
		h.hub.metrics.RecordWSMessage("in", msg.Type)
		h.dispatch(ctx, cl, msg)
	}

	h.hub.unregister(cl)
	<-writerDone
	log.Debug("client disconnected")
}

// writeLoop is the only writer on conn
func (h *Handler) writeLoop(conn *websocket.Conn, cl *client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case data, ok := <-cl.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// greet sends the welcome and the current state
func (h *Handler) greet(cl *client) {
	now := time.Now().Unix()
	h.hub.unicast(cl, ServerMessage{
		Type:      TypeSystem,
		Message:   "Connected to LivePen",
		ClientID:  cl.id,
		Timestamp: now,
	})

	ws := h.hub.store.Snapshot()
	h.hub.unicast(cl, ServerMessage{Type: TypeWorkspace, Op: "load", Workspace: &ws, Timestamp: now})

	vp := h.hub.renderer.Viewport()
	h.hub.unicast(cl, ServerMessage{Type: TypeViewport, Viewport: &vp, Timestamp: now})

	if frame, ok := h.hub.renderer.Current(); ok {
		h.hub.unicast(cl, ServerMessage{Type: TypeFrame, Frame: &frame, Timestamp: now})
	}
}

func (h *Handler) dispatch(ctx context.Context, cl *client, msg ClientMessage) {
	store := h.hub.store

	switch msg.Type {
	case TypeUpdate:
		if msg.Content == nil {
			h.sendError(cl, "content is required")
			return
		}
		if err := utils.ValidateContent(*msg.Content); err != nil {
			h.sendError(cl, err.Error())
			return
		}
		var applied bool
		if msg.ID != "" {
			applied = store.UpdateContent(ctx, types.BufferID(msg.ID), *msg.Content)
		} else {
			kind, err := types.ParseKind(msg.Kind)
			if err != nil {
				h.sendError(cl, err.Error())
				return
			}
			applied = store.UpdateActive(ctx, kind, *msg.Content)
		}
		// Applied edits are echoed through the workspace broadcast
		if !applied {
			h.ack(cl, msg, false)
		}

	case TypeSelect:
		if !h.validID(cl, msg.ID) {
			return
		}
		h.ack(cl, msg, store.Select(ctx, types.BufferID(msg.ID)))

	case TypeRename:
		if !h.validID(cl, msg.ID) {
			return
		}
		if err := utils.ValidateName(msg.Name, "name"); err != nil {
			h.sendError(cl, err.Error())
			return
		}
		h.ack(cl, msg, store.Rename(ctx, types.BufferID(msg.ID), msg.Name))

	case TypeDelete:
		if !h.validID(cl, msg.ID) {
			return
		}
		h.ack(cl, msg, store.Delete(ctx, types.BufferID(msg.ID)))

	case TypeCreate:
		kind, err := types.ParseKind(msg.Kind)
		if err != nil {
			h.sendError(cl, err.Error())
			return
		}
		if err := utils.ValidateName(msg.Name, "name"); err != nil {
			h.sendError(cl, err.Error())
			return
		}
		buf, err := store.Create(ctx, msg.Name, kind)
		if err != nil {
			h.sendError(cl, err.Error())
			return
		}
		msg.ID = buf.ID.String()
		h.ack(cl, msg, true)

	case TypeViewport:
		if msg.Mode == "" && msg.FullScreen == nil {
			h.sendError(cl, "mode or full_screen is required")
			return
		}
		if msg.Mode != "" {
			mode, err := preview.ParseViewMode(msg.Mode)
			if err != nil {
				h.sendError(cl, err.Error())
				return
			}
			if err := h.hub.renderer.SetViewMode(mode); err != nil {
				h.sendError(cl, err.Error())
				return
			}
		}
		if msg.FullScreen != nil {
			h.hub.renderer.SetFullScreen(*msg.FullScreen)
		}

	case TypePing:
		h.hub.unicast(cl, ServerMessage{Type: TypePong, Timestamp: time.Now().Unix()})

	default:
		h.sendError(cl, "unknown message type: "+msg.Type)
	}
}

// ack reports the outcome of a mutation to the sender only
func (h *Handler) ack(cl *client, msg ClientMessage, applied bool) {
	h.hub.unicast(cl, ServerMessage{
		Type:      msg.Type,
		Buffer:    msg.ID,
		Applied:   &applied,
		Timestamp: time.Now().Unix(),
	})
}

func (h *Handler) validID(cl *client, raw string) bool {
	if err := utils.ValidateID(raw, "id", true); err != nil {
		h.sendError(cl, err.Error())
		return false
	}
	return true
}

func (h *Handler) sendError(cl *client, message string) {
	h.hub.unicast(cl, ServerMessage{Type: TypeError, Message: message, Timestamp: time.Now().Unix()})
}

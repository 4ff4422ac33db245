package ws

import (
	"github.com/bytedance/sonic"

	"github.com/GriffinCanCode/livepen/internal/domain/preview"
	"github.com/GriffinCanCode/livepen/internal/shared/types"
)

var codec = sonic.ConfigStd

// Message types
const (
	TypeSystem    = "system"
	TypeWorkspace = "workspace"
	TypeFrame     = "frame"
	TypeViewport  = "viewport"
	TypeError     = "error"
	TypePong      = "pong"

	TypeUpdate = "update"
	TypeSelect = "select"
	TypeRename = "rename"
	TypeCreate = "create"
	TypeDelete = "delete"
	TypePing   = "ping"
)

// ClientMessage is anything a client may send
type ClientMessage struct {
	Type       string  `json:"type"`
	ID         string  `json:"id,omitempty"`
	Kind       string  `json:"kind,omitempty"`
	Content    *string `json:"content,omitempty"`
	Name       string  `json:"name,omitempty"`
	Mode       string  `json:"mode,omitempty"`
	FullScreen *bool   `json:"full_screen,omitempty"`
}

// ServerMessage is anything the server pushes
type ServerMessage struct {
	Type      string            `json:"type"`
	Message   string            `json:"message,omitempty"`
	ClientID  string            `json:"client_id,omitempty"`
	Op        string            `json:"op,omitempty"`
	Buffer    string            `json:"buffer,omitempty"`
	Applied   *bool             `json:"applied,omitempty"`
	Workspace *types.Workspace  `json:"workspace,omitempty"`
	Frame     *preview.Frame    `json:"frame,omitempty"`
	Viewport  *preview.Viewport `json:"viewport,omitempty"`
	Timestamp int64             `json:"timestamp,omitempty"`
}

func encode(msg ServerMessage) ([]byte, error) {
	return codec.Marshal(msg)
}

func decode(data []byte) (ClientMessage, error) {
	var msg ClientMessage
	err := codec.Unmarshal(data, &msg)
	return msg, err
}

package session

import (
	"encoding/json"

	"github.com/momentum/momentum/internal/document"
	"github.com/momentum/momentum/internal/engine"
	"github.com/momentum/momentum/internal/render/command"
)

type Message struct {
	Type      string          `json:"type"`
	ProjectID string          `json:"projectId,omitempty"`
	ClientID  string          `json:"clientId,omitempty"`
	UserID    string          `json:"userId,omitempty"`
	Seq       int64           `json:"seq,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

const (
	TypePresenceUpdate = "presence.update"
	TypePresenceState  = "presence.state"
	TypePresenceJoin   = "presence.join"
	TypePresenceLeave  = "presence.leave"
	TypeError          = "error"

	// Connection
	TypeWelcome = "welcome"

	// Rendered output, server to clients
	TypeFrame         = "frame"
	TypePointerResult = "pointer.result"

	// Engine input, client to server
	TypePointerDown   = "input.pointerDown"
	TypeCreateRect    = "input.createRect"
	TypeCreateEllipse = "input.createEllipse"
	TypeCreateLine    = "input.createLine"
	TypeCreatePolygon = "input.createPolygon"
	TypeMoveStart     = "input.moveStart"
	TypeMoveUpdate    = "input.moveUpdate"
	TypeMoveEnd       = "input.moveEnd"
	TypeScaleStart    = "input.scaleStart"
	TypeScaleUpdate   = "input.scaleUpdate"
	TypeScaleEnd      = "input.scaleEnd"
	TypeCanvas        = "input.canvas"
)

// --- Presence ---

type PresencePayload struct {
	Cursor      *CursorPos          `json:"cursor,omitempty"`
	Selection   []document.EntityID `json:"selection,omitempty"`
	DisplayName string              `json:"displayName,omitempty"`
}

type CursorPos struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type PresenceStatePayload struct {
	Presences map[string]*PresencePayload `json:"presences"`
}

type PresenceJoinPayload struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}

type PresenceLeavePayload struct {
	UserID string `json:"userId"`
}

// --- Engine input (CSS pixels) ---

type PointerDownPayload struct {
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Additive    bool    `json:"additive,omitempty"`
	RangeSelect bool    `json:"rangeSelect,omitempty"`
}

type CreateRectPayload struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type CreateEllipsePayload struct {
	CX float64 `json:"cx"`
	CY float64 `json:"cy"`
	RX float64 `json:"rx"`
	RY float64 `json:"ry"`
}

type CreateLinePayload struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

type CreatePolygonPayload struct {
	X      float64     `json:"x"`
	Y      float64     `json:"y"`
	Points [][2]float64 `json:"points"`
}

type PointPayload struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type DeltaPayload struct {
	DX float64 `json:"dx"`
	DY float64 `json:"dy"`
}

type ScaleStartPayload struct {
	HandleType uint8   `json:"handleType"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
}

// CanvasPayload sets the physical canvas size and DPR.
type CanvasPayload struct {
	Width  int     `json:"width"`
	Height int     `json:"height"`
	DPR    float64 `json:"dpr"`
}

// --- Server to client ---

type WelcomePayload struct {
	ClientID  string              `json:"clientId"`
	Revision  int64               `json:"revision"`
	Document  json.RawMessage     `json:"document"`
	Selection []document.EntityID `json:"selection"`
}

type FramePayload struct {
	Frame     uint64                `json:"frame"`
	Commands  []command.DrawCommand `json:"commands"`
	Selection []document.EntityID   `json:"selection"`
	Moving    bool                  `json:"moving"`
	Scaling   bool                  `json:"scaling"`
}

type PointerResultPayload = engine.PointerDownResult

type ErrorPayload struct {
	Message string `json:"message"`
}

func newMessage(typ string, payload any) *Message {
	data, err := json.Marshal(payload)
	if err != nil {
		data = []byte("null")
	}
	return &Message{Type: typ, Payload: data}
}

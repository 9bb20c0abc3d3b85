package session

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"github.com/momentum/momentum/internal/document"
	"github.com/momentum/momentum/internal/engine"
	"github.com/momentum/momentum/internal/geom"
	"github.com/momentum/momentum/internal/render/command"
)

// Room is one live project: an engine, its draw-command recorder and the
// connected clients.
type Room struct {
	projectID string
	app       *engine.App
	recorder  *command.Recorder
	logger    *slog.Logger

	mu       sync.RWMutex
	clients  map[string]*Client // clientID -> client
	presence map[string]*PresencePayload
	revision int64

	inputs   atomic.Uint64 // bumped by every engine input
	refresh  atomic.Bool   // broadcast the next frame regardless of input
	rendered uint64        // inputs value at the last broadcast frame
	saved    uint64        // inputs value at the last save

	stopOnce sync.Once
	done     chan struct{}
	stopped  chan struct{}
}

func NewRoom(projectID string, doc *document.Document, revision int64, logger *slog.Logger) *Room {
	rec := command.NewRecorder()
	return &Room{
		projectID: projectID,
		app:       engine.New(engine.WithLogger(logger), engine.WithDocument(doc), engine.WithRenderer(rec)),
		recorder:  rec,
		logger:    logger,
		clients:   make(map[string]*Client),
		presence:  make(map[string]*PresencePayload),
		revision:  revision,
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}
}

// run ticks the engine until stop is called.
func (r *Room) run(interval time.Duration) {
	defer close(r.stopped)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.tick()
		case <-r.done:
			return
		}
	}
}

func (r *Room) stop() {
	r.stopOnce.Do(func() { close(r.done) })
	<-r.stopped
}

// tick runs one frame and broadcasts it when input arrived since the
// previous broadcast.
func (r *Room) tick() {
	if !r.app.RunFrame() {
		return
	}
	n := r.inputs.Load()
	if n == r.rendered && !r.refresh.Swap(false) {
		return
	}
	r.rendered = n
	r.broadcast(r.frameMessage(), "")
}

func (r *Room) frameMessage() *Message {
	sel := r.app.SelectedEntities()
	if sel == nil {
		sel = []document.EntityID{}
	}
	cmds := r.recorder.LastFrame()
	if cmds == nil {
		cmds = []command.DrawCommand{}
	}
	return newMessage(TypeFrame, FramePayload{
		Frame:     r.app.Frames(),
		Commands:  cmds,
		Selection: sel,
		Moving:    r.app.IsMoving(),
		Scaling:   r.app.IsScaling(),
	})
}

// dirty reports whether input arrived since the last save.
func (r *Room) dirty() bool {
	return r.inputs.Load() != r.saved
}

func (r *Room) markSaved(revision int64) {
	r.mu.Lock()
	r.revision = revision
	r.mu.Unlock()
	r.saved = r.inputs.Load()
}

func (r *Room) Revision() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.revision
}

func (r *Room) add(c *Client) {
	r.mu.Lock()
	r.clients[c.ClientID] = c
	r.mu.Unlock()
}

// remove drops c and reports how many clients remain. ok is false when c
// was not in the room.
func (r *Room) remove(c *Client) (remaining int, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.clients[c.ClientID]; !ok {
		return len(r.clients), false
	}
	delete(r.clients, c.ClientID)
	delete(r.presence, c.UserID)
	return len(r.clients), true
}

func (r *Room) updatePresence(userID string, p *PresencePayload) {
	r.mu.Lock()
	r.presence[userID] = p
	r.mu.Unlock()
}

func (r *Room) presenceState() *Message {
	r.mu.RLock()
	all := maps.Clone(r.presence)
	r.mu.RUnlock()
	return newMessage(TypePresenceState, PresenceStatePayload{Presences: all})
}

func (r *Room) welcome(c *Client) (*Message, error) {
	snap := r.app.Snapshot()
	doc, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	sel := r.app.SelectedEntities()
	if sel == nil {
		sel = []document.EntityID{}
	}
	return newMessage(TypeWelcome, WelcomePayload{
		ClientID:  c.ClientID,
		Revision:  r.Revision(),
		Document:  doc,
		Selection: sel,
	}), nil
}

func (r *Room) broadcast(msg *Message, excludeClientID string) {
	r.mu.RLock()
	clients := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		if c.ClientID != excludeClientID {
			clients = append(clients, c)
		}
	}
	r.mu.RUnlock()

	for _, c := range clients {
		c.Send(msg)
	}
}

// applyInput forwards an input message to the engine. Pointer-downs are
// answered with what they touched.
func (r *Room) applyInput(sender *Client, msg *Message) error {
	app := r.app
	switch msg.Type {
	case TypePointerDown:
		var p PointerDownPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return err
		}
		res := app.SendPointerDownWithModifiers(p.X, p.Y, p.Additive, p.RangeSelect)
		sender.Send(newMessage(TypePointerResult, res))
	case TypeCreateRect:
		var p CreateRectPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return err
		}
		app.SendCreateRect(p.X, p.Y, p.Width, p.Height)
	case TypeCreateEllipse:
		var p CreateEllipsePayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return err
		}
		app.SendCreateEllipse(p.CX, p.CY, p.RX, p.RY)
	case TypeCreateLine:
		var p CreateLinePayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return err
		}
		app.SendCreateLine(p.X1, p.Y1, p.X2, p.Y2)
	case TypeCreatePolygon:
		var p CreatePolygonPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return err
		}
		pts := make([]geom.Point, len(p.Points))
		for i, pt := range p.Points {
			pts[i] = geom.Point{X: pt[0], Y: pt[1]}
		}
		app.SendCreatePolygon(p.X, p.Y, pts)
	case TypeMoveStart:
		var p PointPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return err
		}
		app.SendMoveStart(p.X, p.Y)
	case TypeMoveUpdate:
		var p DeltaPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return err
		}
		app.SendMoveUpdate(p.DX, p.DY)
	case TypeMoveEnd:
		app.SendMoveEnd()
	case TypeScaleStart:
		var p ScaleStartPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return err
		}
		h, err := geom.ParseHandleType(p.HandleType)
		if err != nil {
			return err
		}
		app.SendScaleStart(h, p.X, p.Y)
	case TypeScaleUpdate:
		var p DeltaPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return err
		}
		app.SendScaleUpdate(p.DX, p.DY)
	case TypeScaleEnd:
		app.SendScaleEnd()
	case TypeCanvas:
		var p CanvasPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return err
		}
		app.SetCanvasSize(p.Width, p.Height)
		if p.DPR > 0 {
			app.SetCanvasDPR(p.DPR)
		}
	default:
		return fmt.Errorf("unknown input type %q", msg.Type)
	}
	r.inputs.Add(1)
	return nil
}

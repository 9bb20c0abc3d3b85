package session

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/momentum/momentum/internal/document"
	"github.com/momentum/momentum/internal/render/command"
)

type savedDoc struct {
	projectID string
	doc       *document.Document
	revision  int64
}

type fakeStore struct {
	mu    sync.Mutex
	saves []savedDoc
}

func (s *fakeStore) load(_ context.Context, projectID string) (*document.Document, int64, error) {
	if projectID == "proj_missing" {
		return nil, 0, errors.New("no such project")
	}
	return document.New(), 3, nil
}

func (s *fakeStore) save(_ context.Context, projectID string, doc *document.Document, revision int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves = append(s.saves, savedDoc{projectID, doc, revision})
	return revision + 1, nil
}

func (s *fakeStore) savedDocs() []savedDoc {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]savedDoc(nil), s.saves...)
}

func newTestHub(t *testing.T) (*Hub, *fakeStore) {
	t.Helper()
	store := &fakeStore{}
	h := NewHub(store.load, store.save,
		WithTick(2*time.Millisecond),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	go h.Run()
	t.Cleanup(h.Stop)
	return h, store
}

func join(t *testing.T, h *Hub, userID, projectID string) *Client {
	t.Helper()
	c := NewClient(h, nil, userID, "User "+userID, projectID, "client-"+userID)
	h.Register(c)
	return c
}

// next returns the next message of type typ, skipping others.
func next(t *testing.T, c *Client, typ string) *Message {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				t.Fatalf("send channel closed waiting for %s", typ)
			}
			var msg Message
			if err := json.Unmarshal(data, &msg); err != nil {
				t.Fatal(err)
			}
			if msg.Type == typ {
				return &msg
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", typ)
		}
	}
}

func send(t *testing.T, h *Hub, c *Client, typ string, payload any) {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	h.handleMessage(c, &Message{Type: typ, Payload: data, UserID: c.UserID, ClientID: c.ClientID})
}

// waitFrame reads frames until ok accepts one.
func waitFrame(t *testing.T, c *Client, ok func(FramePayload) bool) FramePayload {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		var f FramePayload
		if err := json.Unmarshal(next(t, c, TypeFrame).Payload, &f); err != nil {
			t.Fatal(err)
		}
		if ok(f) {
			return f
		}
	}
	t.Fatal("no matching frame")
	return FramePayload{}
}

func hasShape(cmds []command.DrawCommand, shape string) bool {
	for _, c := range cmds {
		if c.Op == command.OpShape && c.Shape == shape {
			return true
		}
	}
	return false
}

func TestJoinReceivesWelcome(t *testing.T) {
	h, _ := newTestHub(t)
	c := join(t, h, "u1", "proj_a")

	var w WelcomePayload
	if err := json.Unmarshal(next(t, c, TypeWelcome).Payload, &w); err != nil {
		t.Fatal(err)
	}
	if w.ClientID != "client-u1" || w.Revision != 3 || len(w.Selection) != 0 {
		t.Errorf("welcome = %+v", w)
	}
	next(t, c, TypePresenceState)
	next(t, c, TypeFrame)
}

func TestInputProducesFrames(t *testing.T) {
	h, _ := newTestHub(t)
	c := join(t, h, "u1", "proj_a")
	next(t, c, TypeWelcome)

	send(t, h, c, TypeCreateRect, CreateRectPayload{X: 10, Y: 10, Width: 100, Height: 50})

	waitFrame(t, c, func(f FramePayload) bool { return hasShape(f.Commands, "rectangle") })

	send(t, h, c, TypePointerDown, PointerDownPayload{X: 50, Y: 30})
	var res PointerResultPayload
	if err := json.Unmarshal(next(t, c, TypePointerResult).Payload, &res); err != nil {
		t.Fatal(err)
	}
	if !res.EntitySelected || res.Entity == nil || *res.Entity != 1 {
		t.Errorf("pointer result = %+v", res)
	}

	f := waitFrame(t, c, func(f FramePayload) bool { return len(f.Selection) == 1 })
	if f.Selection[0] != 1 || f.Moving {
		t.Errorf("frame = %+v", f)
	}
}

func TestMalformedInputIsReported(t *testing.T) {
	h, _ := newTestHub(t)
	c := join(t, h, "u1", "proj_a")
	next(t, c, TypeWelcome)

	tests := []struct {
		typ     string
		payload any
	}{
		{TypeCreateRect, "not an object"},
		{TypeScaleStart, ScaleStartPayload{HandleType: 42}},
		{"input.teleport", struct{}{}},
	}
	for _, tt := range tests {
		send(t, h, c, tt.typ, tt.payload)
		next(t, c, TypeError)
	}

	room, ok := h.Room("proj_a")
	if !ok {
		t.Fatal("room missing")
	}
	if room.dirty() {
		t.Error("rejected input should not dirty the room")
	}
}

func TestPresenceRelayed(t *testing.T) {
	h, _ := newTestHub(t)
	a := join(t, h, "a", "proj_a")
	next(t, a, TypeWelcome)
	b := join(t, h, "b", "proj_a")
	next(t, b, TypeWelcome)

	var joined PresenceJoinPayload
	if err := json.Unmarshal(next(t, a, TypePresenceJoin).Payload, &joined); err != nil {
		t.Fatal(err)
	}
	if joined.UserID != "b" {
		t.Errorf("join = %+v", joined)
	}

	send(t, h, b, TypePresenceUpdate, PresencePayload{Cursor: &CursorPos{X: 4, Y: 5}})
	msg := next(t, a, TypePresenceUpdate)
	var p PresencePayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		t.Fatal(err)
	}
	if msg.UserID != "b" || p.Cursor == nil || p.Cursor.X != 4 || p.DisplayName != "User b" {
		t.Errorf("presence = %s %+v", msg.UserID, p)
	}
}

func TestLastLeaveSavesDocument(t *testing.T) {
	h, store := newTestHub(t)
	c := join(t, h, "u1", "proj_a")
	next(t, c, TypeWelcome)

	send(t, h, c, TypeCreateEllipse, CreateEllipsePayload{CX: 50, CY: 50, RX: 20, RY: 10})
	waitFrame(t, c, func(f FramePayload) bool { return hasShape(f.Commands, "ellipse") })

	h.Unregister(c)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := h.Room("proj_a"); !ok {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if _, ok := h.Room("proj_a"); ok {
		t.Fatal("room should close after the last client leaves")
	}

	saves := store.savedDocs()
	if len(saves) != 1 {
		t.Fatalf("saves = %d, want 1", len(saves))
	}
	if saves[0].projectID != "proj_a" || saves[0].revision != 3 || saves[0].doc.Len() != 1 {
		t.Errorf("save = %+v (entities %d)", saves[0], saves[0].doc.Len())
	}
}

func TestUnmodifiedRoomIsNotSaved(t *testing.T) {
	h, store := newTestHub(t)
	c := join(t, h, "u1", "proj_a")
	next(t, c, TypeWelcome)
	h.Unregister(c)
	h.Stop()
	if n := len(store.savedDocs()); n != 0 {
		t.Errorf("saves = %d, want 0", n)
	}
}

func TestStopSavesOpenRooms(t *testing.T) {
	h, store := newTestHub(t)
	c := join(t, h, "u1", "proj_b")
	next(t, c, TypeWelcome)
	send(t, h, c, TypeCreateLine, CreateLinePayload{X1: 0, Y1: 0, X2: 10, Y2: 10})

	h.Stop()
	saves := store.savedDocs()
	if len(saves) != 1 || saves[0].projectID != "proj_b" {
		t.Fatalf("saves = %+v", saves)
	}
}

func TestQueuedInputIsSavedWithoutATick(t *testing.T) {
	store := &fakeStore{}
	h := NewHub(store.load, store.save,
		WithTick(time.Hour),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	go h.Run()
	t.Cleanup(h.Stop)

	c := join(t, h, "u1", "proj_q")
	next(t, c, TypeWelcome)
	send(t, h, c, TypeCreateRect, CreateRectPayload{X: 5, Y: 5, Width: 20, Height: 10})
	h.Unregister(c)
	h.Stop()

	saves := store.savedDocs()
	if len(saves) != 1 {
		t.Fatalf("saves = %d, want 1", len(saves))
	}
	if n := saves[0].doc.Len(); n != 1 {
		t.Errorf("saved entities = %d, want 1", n)
	}
}

func TestLoadFailureClosesClient(t *testing.T) {
	h, _ := newTestHub(t)
	c := join(t, h, "u1", "proj_missing")
	next(t, c, TypeError)

	select {
	case _, ok := <-c.send:
		if ok {
			t.Error("expected send channel to be closed")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("send channel not closed")
	}
	if _, ok := h.Room("proj_missing"); ok {
		t.Error("room should not exist")
	}
}

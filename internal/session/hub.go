// Package session runs live editing rooms over websocket. Each room owns
// one engine; clients send engine input and receive rendered frames.
package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/momentum/momentum/internal/document"
)

// DocLoader opens the document of a project that has no live room.
type DocLoader func(ctx context.Context, projectID string) (*document.Document, int64, error)

// DocSaver stores a room's document at revision and returns the new
// revision.
type DocSaver func(ctx context.Context, projectID string, doc *document.Document, revision int64) (int64, error)

const (
	DefaultTick = 16 * time.Millisecond
	ioTimeout   = 10 * time.Second
)

type Hub struct {
	mu    sync.RWMutex
	rooms map[string]*Room // projectID -> room

	register   chan *Client
	unregister chan *Client
	quit       chan struct{}
	done       chan struct{}
	stopOnce   sync.Once

	load   DocLoader
	save   DocSaver
	tick   time.Duration
	logger *slog.Logger
}

type Option func(*Hub)

func WithTick(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.tick = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}

func NewHub(load DocLoader, save DocSaver, opts ...Option) *Hub {
	h := &Hub{
		rooms:      make(map[string]*Room),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		load:       load,
		save:       save,
		tick:       DefaultTick,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run serialises joins and leaves until Stop is called.
func (h *Hub) Run() {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case <-h.quit:
			h.closeAll()
			return
		}
	}
}

// Stop closes every room, saving modified documents, and waits for Run
// to return.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.quit) })
	<-h.done
}

func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		client.close()
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Room returns the live room for projectID.
func (h *Hub) Room(projectID string) (*Room, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	r, ok := h.rooms[projectID]
	return r, ok
}

func (h *Hub) addClient(client *Client) {
	h.mu.RLock()
	room, ok := h.rooms[client.ProjectID]
	h.mu.RUnlock()

	if !ok {
		ctx, cancel := context.WithTimeout(context.Background(), ioTimeout)
		doc, revision, err := h.load(ctx, client.ProjectID)
		cancel()
		if err != nil {
			h.logger.Error("load document", "error", err, "project", client.ProjectID)
			client.Send(newMessage(TypeError, ErrorPayload{Message: "failed to load project"}))
			client.close()
			return
		}
		room = NewRoom(client.ProjectID, doc, revision, h.logger)
		go room.run(h.tick)

		h.mu.Lock()
		h.rooms[client.ProjectID] = room
		h.mu.Unlock()
	}
	room.add(client)

	welcome, err := room.welcome(client)
	if err != nil {
		h.logger.Error("build welcome", "error", err, "project", client.ProjectID)
	} else {
		client.Send(welcome)
	}
	client.Send(room.presenceState())
	room.refresh.Store(true)

	join := newMessage(TypePresenceJoin, PresenceJoinPayload{
		UserID:      client.UserID,
		DisplayName: client.DisplayName,
	})
	join.UserID = client.UserID
	room.broadcast(join, client.ClientID)

	h.logger.Info("client joined", "user", client.UserID, "project", client.ProjectID)
}

func (h *Hub) removeClient(client *Client) {
	h.mu.RLock()
	room, ok := h.rooms[client.ProjectID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	remaining, ok := room.remove(client)
	if !ok {
		return
	}
	client.close()

	leave := newMessage(TypePresenceLeave, PresenceLeavePayload{UserID: client.UserID})
	leave.UserID = client.UserID
	room.broadcast(leave, "")

	h.logger.Info("client left", "user", client.UserID, "project", client.ProjectID)

	if remaining == 0 {
		h.mu.Lock()
		delete(h.rooms, client.ProjectID)
		h.mu.Unlock()
		room.stop()
		h.saveRoom(room)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	rooms := h.rooms
	h.rooms = make(map[string]*Room)
	h.mu.Unlock()

	for _, room := range rooms {
		room.stop()
		h.saveRoom(room)

		room.mu.Lock()
		clients := make([]*Client, 0, len(room.clients))
		for _, c := range room.clients {
			clients = append(clients, c)
		}
		room.mu.Unlock()
		for _, c := range clients {
			c.close()
		}
	}
}

// saveRoom stores a stopped room's document. One last frame is run first
// so inputs still queued in the engine reach the document.
func (h *Hub) saveRoom(room *Room) {
	room.app.RunFrame()
	if !room.dirty() {
		return
	}
	doc := room.app.Snapshot()

	ctx, cancel := context.WithTimeout(context.Background(), ioTimeout)
	defer cancel()
	revision, err := h.save(ctx, room.projectID, doc, room.Revision())
	if err != nil {
		h.logger.Error("save document", "error", err, "project", room.projectID)
		return
	}
	room.markSaved(revision)
	h.logger.Info("document saved", "project", room.projectID, "revision", revision, "entities", doc.Len())
}

func (h *Hub) handleMessage(sender *Client, msg *Message) {
	room, ok := h.Room(sender.ProjectID)
	if !ok {
		return
	}

	switch {
	case msg.Type == TypePresenceUpdate:
		h.handlePresenceUpdate(room, sender, msg)
	case strings.HasPrefix(msg.Type, "input."):
		if err := room.applyInput(sender, msg); err != nil {
			h.logger.Warn("invalid input", "type", msg.Type, "error", err, "user", sender.UserID)
			sender.Send(newMessage(TypeError, ErrorPayload{Message: err.Error()}))
		}
	default:
		h.logger.Warn("unknown message type", "type", msg.Type, "user", sender.UserID)
	}
}

func (h *Hub) handlePresenceUpdate(room *Room, sender *Client, msg *Message) {
	var presence PresencePayload
	if err := json.Unmarshal(msg.Payload, &presence); err != nil {
		h.logger.Warn("invalid presence payload", "error", err)
		return
	}

	presence.DisplayName = sender.DisplayName
	room.updatePresence(sender.UserID, &presence)

	out := newMessage(TypePresenceUpdate, presence)
	out.UserID = sender.UserID
	room.broadcast(out, sender.ClientID)
}

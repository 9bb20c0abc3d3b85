package engine

import (
	"encoding/json"
	"log/slog"
	"slices"
	"sync"

	"github.com/momentum/momentum/internal/document"
	"github.com/momentum/momentum/internal/geom"
	"github.com/momentum/momentum/internal/render"
)

// App is the owning context around a World. Every mutator tries to take
// the world lock without blocking. When the lock is held, by a renderer
// calling back into the App mid-tick or by another goroutine's tick, the
// mutation is deferred and applied at the start of the next tick in call
// order. Queries that find the lock held read the view published when
// the lock was last released, so they never observe a half-run tick.
type App struct {
	mu    sync.Mutex
	world *World

	pendingMu sync.Mutex
	pending   []func(*World)

	viewMu sync.RWMutex
	view   view

	logger *slog.Logger
}

// view is a read-only copy of the query-visible world state.
type view struct {
	src       *document.Document // world document doc was cloned from
	doc       *document.Document
	selection []document.EntityID
	moving    bool
	scaling   bool
	frames    uint64
	dpr       float64
}

// scratch rebuilds enough of a World from v for hit testing.
func (v *view) scratch() *World {
	w := &World{Doc: v.doc, dpr: v.dpr}
	w.Selection.Set(v.selection)
	return w
}

type Option func(*App)

// WithLogger sets the logger used by the engine.
func WithLogger(l *slog.Logger) Option {
	return func(a *App) { a.logger = l }
}

// WithRenderer attaches a renderer at construction.
func WithRenderer(r render.Port) Option {
	return func(a *App) { a.world.renderer = r }
}

// WithDocument starts the engine on doc instead of an empty document.
func WithDocument(doc *document.Document) Option {
	return func(a *App) { a.world.LoadDocument(doc) }
}

// WithCanvas sets the initial physical canvas size and DPR.
func WithCanvas(width, height int, dpr float64) Option {
	return func(a *App) {
		a.world.SetCanvasSize(width, height)
		a.world.SetDPR(dpr)
	}
}

// New creates an engine with an empty document and no renderer.
func New(opts ...Option) *App {
	a := &App{world: NewWorld(nil), logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	a.world.logger = a.logger
	a.publish(true)
	return a
}

// --- Commands (host → engine) ---

// RunFrame applies deferred mutations and runs the schedule once. It
// returns false without doing anything when called from inside a tick.
func (a *App) RunFrame() bool {
	if !a.mu.TryLock() {
		return false
	}
	defer a.mu.Unlock()
	a.flushPending()
	a.world.Step()
	a.publish(true)
	return true
}

// Send queues an input event for the next tick.
func (a *App) Send(ev Event) {
	a.mutate(func(w *World) { w.Queue.Push(ev) })
}

func (a *App) SendPointerDown(x, y float64) {
	a.Send(PointerDown{X: x, Y: y})
}

// SendPointerDownWithModifiers queues a pointer-down and reports what it
// touches against the current state. When the engine is busy the report
// is taken from the last published view and the event is deferred.
func (a *App) SendPointerDownWithModifiers(x, y float64, additive, rangeSelect bool) PointerDownResult {
	ev := PointerDown{X: x, Y: y, Additive: additive, Range: rangeSelect}
	if !a.mu.TryLock() {
		a.enqueuePending(func(w *World) { w.Queue.Push(ev) })
		a.viewMu.RLock()
		defer a.viewMu.RUnlock()
		return a.view.scratch().Probe(x, y)
	}
	defer a.mu.Unlock()
	a.flushPending()
	res := a.world.Probe(x, y)
	a.world.Queue.Push(ev)
	a.publish(false)
	return res
}

func (a *App) SendCreateRect(x, y, w, h float64) {
	a.Send(CreateRect{X: x, Y: y, W: w, H: h})
}

func (a *App) SendCreateEllipse(cx, cy, rx, ry float64) {
	a.Send(CreateEllipse{X: cx, Y: cy, RX: rx, RY: ry})
}

func (a *App) SendCreateLine(x1, y1, x2, y2 float64) {
	a.Send(CreateLine{X1: x1, Y1: y1, X2: x2, Y2: y2})
}

func (a *App) SendCreatePolygon(x, y float64, points []geom.Point) {
	a.Send(CreatePolygon{X: x, Y: y, Points: append([]geom.Point(nil), points...)})
}

func (a *App) SendMoveStart(x, y float64)    { a.Send(MoveStart{X: x, Y: y}) }
func (a *App) SendMoveUpdate(dx, dy float64) { a.Send(MoveUpdate{DX: dx, DY: dy}) }
func (a *App) SendMoveEnd()                  { a.Send(MoveEnd{}) }

func (a *App) SendScaleStart(h geom.HandleType, x, y float64) {
	a.Send(ScaleStart{Handle: h, X: x, Y: y})
}

func (a *App) SendScaleUpdate(dx, dy float64) { a.Send(ScaleUpdate{DX: dx, DY: dy}) }
func (a *App) SendScaleEnd()                  { a.Send(ScaleEnd{}) }

// SetRenderer replaces the attached renderer. nil detaches it.
func (a *App) SetRenderer(r render.Port) {
	a.mutate(func(w *World) { w.SetRenderer(r) })
}

func (a *App) SetCanvasSize(width, height int) {
	a.mutate(func(w *World) { w.SetCanvasSize(width, height) })
}

func (a *App) SetCanvasDPR(dpr float64) {
	a.mutate(func(w *World) { w.SetDPR(dpr) })
}

func (a *App) SetCamera(m geom.Matrix2D) {
	a.mutate(func(w *World) { w.SetCamera(m) })
}

// SetSelection replaces the selection directly.
func (a *App) SetSelection(ids []document.EntityID) {
	ids = append([]document.EntityID(nil), ids...)
	a.mutate(func(w *World) { w.Selection.Set(ids) })
}

// LoadDocument swaps in doc and resets selection and gestures.
func (a *App) LoadDocument(doc *document.Document) {
	a.mutate(func(w *World) { w.LoadDocument(doc) })
}

// LoadSampleDocument loads the built-in sample scene.
func (a *App) LoadSampleDocument() {
	a.LoadDocument(document.NewSampleDocument())
}

// --- Queries (host ← engine) ---

func (a *App) Frames() uint64 {
	var n uint64
	a.query(func(w *World) { n = w.frames }, func(v *view) { n = v.frames })
	return n
}

func (a *App) SelectedEntities() []document.EntityID {
	var ids []document.EntityID
	a.query(func(w *World) { ids = w.Selection.IDs() }, func(v *view) { ids = slices.Clone(v.selection) })
	return ids
}

func (a *App) IsMoving() bool {
	var m bool
	a.query(func(w *World) { m = w.Move.Active() }, func(v *view) { m = v.moving })
	return m
}

func (a *App) IsScaling() bool {
	var s bool
	a.query(func(w *World) { s = w.Scale.Active() }, func(v *view) { s = v.scaling })
	return s
}

// DetectHandle reports which handle of the current selection lies under
// the CSS point (x, y), for hover cursors.
func (a *App) DetectHandle(x, y float64) (geom.HandleType, bool) {
	var (
		h  geom.HandleType
		ok bool
	)
	a.queryWorld(func(w *World) { h, ok = w.HandleAt(x*w.dpr, y*w.dpr) })
	return h, ok
}

// DetectEntity reports the entity under the CSS point (x, y).
func (a *App) DetectEntity(x, y float64) (document.EntityID, bool) {
	var (
		id document.EntityID
		ok bool
	)
	a.queryWorld(func(w *World) { id, ok = w.EntityAt(x*w.dpr, y*w.dpr) })
	return id, ok
}

// SelectionBounds returns the combined CSS-space box of the selection.
func (a *App) SelectionBounds() (geom.BoundingBox, bool) {
	var (
		b  geom.BoundingBox
		ok bool
	)
	a.queryWorld(func(w *World) { b, ok = SelectionBounds(w.Doc, &w.Selection) })
	return b, ok
}

// Snapshot returns a deep copy of the document. While a tick is running
// it is the document as of the end of the previous tick.
func (a *App) Snapshot() *document.Document {
	var doc *document.Document
	a.queryWorld(func(w *World) { doc = w.Doc.Clone() })
	return doc
}

// DocumentJSON serializes the document.
func (a *App) DocumentJSON() ([]byte, error) {
	return json.Marshal(a.Snapshot())
}

// SelectionJSON serializes the selected IDs.
func (a *App) SelectionJSON() string {
	ids := a.SelectedEntities()
	if ids == nil {
		ids = []document.EntityID{}
	}
	data, _ := json.Marshal(ids)
	return string(data)
}

func (a *App) mutate(fn func(*World)) {
	if !a.mu.TryLock() {
		a.enqueuePending(fn)
		return
	}
	defer a.mu.Unlock()
	a.flushPending()
	fn(a.world)
	a.publish(false)
}

func (a *App) enqueuePending(fn func(*World)) {
	a.pendingMu.Lock()
	a.pending = append(a.pending, fn)
	a.pendingMu.Unlock()
}

// query runs live against the world when the lock is free and against
// the published view otherwise.
func (a *App) query(live func(*World), published func(*view)) {
	if a.mu.TryLock() {
		defer a.mu.Unlock()
		live(a.world)
		return
	}
	a.viewMu.RLock()
	defer a.viewMu.RUnlock()
	published(&a.view)
}

// queryWorld is query for reads that need a whole World. The published
// form is a scratch world over the view's document clone; fn must not
// mutate it.
func (a *App) queryWorld(fn func(*World)) {
	a.query(fn, func(v *view) { fn(v.scratch()) })
}

// publish refreshes the view. The document is re-cloned after a tick or
// when the world's document was swapped. Caller holds mu.
func (a *App) publish(docChanged bool) {
	w := a.world
	a.viewMu.Lock()
	defer a.viewMu.Unlock()
	if docChanged || a.view.src != w.Doc {
		a.view.src = w.Doc
		a.view.doc = w.Doc.Clone()
	}
	a.view.selection = w.Selection.IDs()
	a.view.moving = w.Move.Active()
	a.view.scaling = w.Scale.Active()
	a.view.frames = w.frames
	a.view.dpr = w.dpr
}

// flushPending applies deferred mutations in order. Caller holds mu.
func (a *App) flushPending() {
	a.pendingMu.Lock()
	pending := a.pending
	a.pending = nil
	a.pendingMu.Unlock()

	if len(pending) > 0 {
		a.logger.Debug("applying deferred mutations", "count", len(pending))
	}
	for _, fn := range pending {
		fn(a.world)
	}
}

package engine

import (
	"log/slog"
	"math"

	"github.com/momentum/momentum/internal/document"
	"github.com/momentum/momentum/internal/geom"
	"github.com/momentum/momentum/internal/render"
)

// World owns every piece of engine state. It is mutated only by the
// systems in schedule, in order, once per tick.
type World struct {
	Doc       *document.Document
	Selection Selection
	Move      MoveGesture
	Scale     ScaleGesture
	Queue     InputQueue

	width, height int
	dpr           float64
	camera        geom.Matrix2D
	frames        uint64
	renderer      render.Port
	logger        *slog.Logger
}

// NewWorld returns a world with an empty document, a 1x1 canvas and DPR 1.
func NewWorld(logger *slog.Logger) *World {
	if logger == nil {
		logger = slog.Default()
	}
	return &World{
		Doc:    document.New(),
		width:  1,
		height: 1,
		dpr:    1,
		camera: geom.Identity(),
		logger: logger,
	}
}

type system struct {
	name string
	run  func(*World)
}

var schedule = []system{
	{"tick", tickSystem},
	{"pointer_down", pointerDownSystem},
	{"create_rect", createRectSystem},
	{"create_ellipse", createEllipseSystem},
	{"create_line", createLineSystem},
	{"create_polygon", createPolygonSystem},
	{"move_start", moveStartSystem},
	{"move_update", moveUpdateSystem},
	{"move_end", moveEndSystem},
	{"scale_start", scaleStartSystem},
	{"scale_update", scaleUpdateSystem},
	{"scale_end", scaleEndSystem},
	{"render", renderSystem},
}

// Step runs every system once.
func (w *World) Step() {
	for _, s := range schedule {
		s.run(w)
	}
}

// DPR returns the current device pixel ratio.
func (w *World) DPR() float64 { return w.dpr }

// CanvasSize returns the physical canvas size.
func (w *World) CanvasSize() (int, int) { return w.width, w.height }

// Frames returns the number of completed ticks.
func (w *World) Frames() uint64 { return w.frames }

// SetCanvasSize sets the physical canvas size, clamped to at least 1x1.
func (w *World) SetCanvasSize(width, height int) {
	w.width = max(width, 1)
	w.height = max(height, 1)
}

func (w *World) SetDPR(dpr float64) {
	w.dpr = ClampDPR(dpr)
}

func (w *World) SetCamera(m geom.Matrix2D) {
	w.camera = m
}

// SetRenderer attaches r, replacing any previous renderer. nil detaches.
func (w *World) SetRenderer(r render.Port) {
	w.renderer = r
}

// LoadDocument replaces the document and resets selection and gestures.
func (w *World) LoadDocument(doc *document.Document) {
	if doc == nil {
		doc = document.New()
	}
	w.Doc = doc
	w.Selection.Clear()
	w.Move.End()
	w.Scale.End()
}

func tickSystem(w *World) {
	w.frames++
}

func createRectSystem(w *World) {
	for _, ev := range drain(&w.Queue.createRects) {
		id := w.Doc.CreateEntity(document.NewTransform(ev.X, ev.Y), document.DefaultStyle(), document.Rectangle{W: ev.W, H: ev.H})
		w.logger.Debug("created rectangle", "id", id)
	}
}

func createEllipseSystem(w *World) {
	for _, ev := range drain(&w.Queue.createEllipses) {
		id := w.Doc.CreateEntity(document.NewTransform(ev.X, ev.Y), document.DefaultStyle(), document.Ellipse{RX: ev.RX, RY: ev.RY})
		w.logger.Debug("created ellipse", "id", id)
	}
}

func createLineSystem(w *World) {
	for _, ev := range drain(&w.Queue.createLines) {
		shape := document.Line{X2: ev.X2 - ev.X1, Y2: ev.Y2 - ev.Y1}
		id := w.Doc.CreateEntity(document.NewTransform(ev.X1, ev.Y1), document.DefaultStyle(), shape)
		w.logger.Debug("created line", "id", id)
	}
}

func createPolygonSystem(w *World) {
	for _, ev := range drain(&w.Queue.createPolygons) {
		pts := append([]geom.Point(nil), ev.Points...)
		id := w.Doc.CreateEntity(document.NewTransform(ev.X, ev.Y), document.DefaultStyle(), document.Polygon{Points: pts})
		w.logger.Debug("created polygon", "id", id, "points", len(pts))
	}
}

func moveStartSystem(w *World) {
	for range drain(&w.Queue.moveStarts) {
		w.Move.Start(w.Doc, &w.Selection)
	}
}

func moveUpdateSystem(w *World) {
	for _, ev := range drain(&w.Queue.moveUpdates) {
		w.Move.Update(w.Doc, ev.DX*w.dpr, ev.DY*w.dpr)
	}
}

func moveEndSystem(w *World) {
	for range drain(&w.Queue.moveEnds) {
		w.Move.End()
	}
}

func scaleStartSystem(w *World) {
	for _, ev := range drain(&w.Queue.scaleStarts) {
		w.Scale.Start(w.Doc, &w.Selection, ev.Handle, w.dpr)
	}
}

func scaleUpdateSystem(w *World) {
	for _, ev := range drain(&w.Queue.scaleUpdates) {
		w.Scale.Update(w.Doc, ev.DX*w.dpr, ev.DY*w.dpr)
	}
}

func scaleEndSystem(w *World) {
	for range drain(&w.Queue.scaleEnds) {
		w.Scale.End()
	}
}

// finite reports whether every value is a usable coordinate.
func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

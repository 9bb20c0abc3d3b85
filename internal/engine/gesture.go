package engine

import (
	"math"

	"github.com/momentum/momentum/internal/document"
	"github.com/momentum/momentum/internal/geom"
)

// MinScaleFactor is the lower clamp for a per-axis scale factor.
const MinScaleFactor = 0.1

type transformSnapshot struct {
	id        document.EntityID
	transform document.Transform
}

func snapshotSelection(doc *document.Document, sel *Selection) []transformSnapshot {
	snaps := make([]transformSnapshot, 0, sel.Len())
	for _, id := range sel.ids {
		if e, ok := doc.Entity(id); ok {
			snaps = append(snaps, transformSnapshot{id: id, transform: e.Transform})
		}
	}
	return snaps
}

// MoveGesture translates the selection. Every update re-derives positions
// from the snapshot taken at Start.
type MoveGesture struct {
	active  bool
	initial []transformSnapshot
}

// Start snapshots the selected transforms. It does nothing when no
// selected entity resolves.
func (g *MoveGesture) Start(doc *document.Document, sel *Selection) {
	snaps := snapshotSelection(doc, sel)
	if len(snaps) == 0 {
		return
	}
	g.active = true
	g.initial = snaps
}

// Update sets every snapshotted position to its initial value plus the
// physical-pixel delta measured from the gesture start.
func (g *MoveGesture) Update(doc *document.Document, dx, dy float64) {
	if !g.active {
		return
	}
	for _, s := range g.initial {
		e, ok := doc.Entity(s.id)
		if !ok {
			continue
		}
		e.Transform.X = s.transform.X + dx
		e.Transform.Y = s.transform.Y + dy
	}
}

// End finishes the gesture. Safe to call at any time.
func (g *MoveGesture) End() {
	g.active = false
	g.initial = nil
}

func (g *MoveGesture) Active() bool { return g.active }

// ScaleGesture resizes the selection from one handle.
type ScaleGesture struct {
	active  bool
	handle  geom.HandleType
	initial []transformSnapshot
	bounds  geom.BoundingBox
}

// Start snapshots the selected transforms and their combined physical
// bounds.
func (g *ScaleGesture) Start(doc *document.Document, sel *Selection, handle geom.HandleType, dpr float64) {
	snaps := snapshotSelection(doc, sel)
	if len(snaps) == 0 {
		return
	}
	bounds, _ := PhysicalSelectionBounds(doc, sel, dpr)
	g.active = true
	g.handle = handle
	g.initial = snaps
	g.bounds = bounds
}

// Update applies a physical-pixel delta measured from the gesture start.
func (g *ScaleGesture) Update(doc *document.Document, dx, dy float64) {
	if !g.active {
		return
	}
	fx, fy := ScaleFactors(g.handle, g.bounds, dx, dy)
	for _, s := range g.initial {
		e, ok := doc.Entity(s.id)
		if !ok {
			continue
		}
		e.Transform.ScaleX = s.transform.ScaleX * fx
		e.Transform.ScaleY = s.transform.ScaleY * fy
	}
}

// End finishes the gesture. Safe to call at any time.
func (g *ScaleGesture) End() {
	g.active = false
	g.handle = 0
	g.initial = nil
	g.bounds = geom.BoundingBox{}
}

func (g *ScaleGesture) Active() bool { return g.active }

// Handle returns the handle driving the gesture.
func (g *ScaleGesture) Handle() (geom.HandleType, bool) {
	return g.handle, g.active
}

// ScaleFactors converts a drag delta on a handle into per-axis factors
// relative to the initial box. Dragging away from the opposite side
// grows that axis.
func ScaleFactors(handle geom.HandleType, bounds geom.BoundingBox, dx, dy float64) (float64, float64) {
	w := math.Max(bounds.Width, 1)
	h := math.Max(bounds.Height, 1)

	fx, fy := 1.0, 1.0
	switch handle {
	case geom.HandleTopLeft:
		fx, fy = 1-dx/w, 1-dy/h
	case geom.HandleTopRight:
		fx, fy = 1+dx/w, 1-dy/h
	case geom.HandleBottomLeft:
		fx, fy = 1-dx/w, 1+dy/h
	case geom.HandleBottomRight:
		fx, fy = 1+dx/w, 1+dy/h
	case geom.HandleTop:
		fy = 1 - dy/h
	case geom.HandleBottom:
		fy = 1 + dy/h
	case geom.HandleLeft:
		fx = 1 - dx/w
	case geom.HandleRight:
		fx = 1 + dx/w
	}
	return math.Max(fx, MinScaleFactor), math.Max(fy, MinScaleFactor)
}

package engine

import (
	"github.com/momentum/momentum/internal/geom"
)

// Event is an input request from the host. Coordinates are CSS pixels.
type Event interface {
	enqueue(q *InputQueue)
}

type PointerDown struct {
	X, Y     float64
	Additive bool
	// Range is accepted for hosts that send shift-clicks. It has no
	// effect yet.
	Range bool
}

type CreateRect struct {
	X, Y, W, H float64
}

// CreateEllipse is centred on (X, Y).
type CreateEllipse struct {
	X, Y, RX, RY float64
}

type CreateLine struct {
	X1, Y1, X2, Y2 float64
}

// CreatePolygon places Points relative to (X, Y).
type CreatePolygon struct {
	X, Y   float64
	Points []geom.Point
}

type MoveStart struct {
	X, Y float64
}

// MoveUpdate carries the delta from the gesture start.
type MoveUpdate struct {
	DX, DY float64
}

type MoveEnd struct{}

type ScaleStart struct {
	Handle geom.HandleType
	X, Y   float64
}

// ScaleUpdate carries the delta from the gesture start.
type ScaleUpdate struct {
	DX, DY float64
}

type ScaleEnd struct{}

// InputQueue holds one FIFO per event kind. Each is drained once per tick.
type InputQueue struct {
	pointerDowns   []PointerDown
	createRects    []CreateRect
	createEllipses []CreateEllipse
	createLines    []CreateLine
	createPolygons []CreatePolygon
	moveStarts     []MoveStart
	moveUpdates    []MoveUpdate
	moveEnds       []MoveEnd
	scaleStarts    []ScaleStart
	scaleUpdates   []ScaleUpdate
	scaleEnds      []ScaleEnd
}

func (e PointerDown) enqueue(q *InputQueue)   { q.pointerDowns = append(q.pointerDowns, e) }
func (e CreateRect) enqueue(q *InputQueue)    { q.createRects = append(q.createRects, e) }
func (e CreateEllipse) enqueue(q *InputQueue) { q.createEllipses = append(q.createEllipses, e) }
func (e CreateLine) enqueue(q *InputQueue)    { q.createLines = append(q.createLines, e) }
func (e CreatePolygon) enqueue(q *InputQueue) { q.createPolygons = append(q.createPolygons, e) }
func (e MoveStart) enqueue(q *InputQueue)     { q.moveStarts = append(q.moveStarts, e) }
func (e MoveUpdate) enqueue(q *InputQueue)    { q.moveUpdates = append(q.moveUpdates, e) }
func (e MoveEnd) enqueue(q *InputQueue)       { q.moveEnds = append(q.moveEnds, e) }
func (e ScaleStart) enqueue(q *InputQueue)    { q.scaleStarts = append(q.scaleStarts, e) }
func (e ScaleUpdate) enqueue(q *InputQueue)   { q.scaleUpdates = append(q.scaleUpdates, e) }
func (e ScaleEnd) enqueue(q *InputQueue)      { q.scaleEnds = append(q.scaleEnds, e) }

// Push appends ev to the queue for its kind.
func (q *InputQueue) Push(ev Event) {
	ev.enqueue(q)
}

// Len returns the number of pending events across all kinds.
func (q *InputQueue) Len() int {
	return len(q.pointerDowns) + len(q.createRects) + len(q.createEllipses) +
		len(q.createLines) + len(q.createPolygons) + len(q.moveStarts) +
		len(q.moveUpdates) + len(q.moveEnds) + len(q.scaleStarts) +
		len(q.scaleUpdates) + len(q.scaleEnds)
}

// drain empties a queue and returns its contents in arrival order.
func drain[T any](q *[]T) []T {
	out := *q
	*q = nil
	return out
}

package engine

import (
	"github.com/momentum/momentum/internal/document"
	"github.com/momentum/momentum/internal/geom"
)

// PointerDownResult reports what a pointer-down at a position touches,
// evaluated against the state at the time of the call.
type PointerDownResult struct {
	ClickedHandle  *geom.HandleType   `json:"clickedHandleType"`
	EntitySelected bool               `json:"entitySelected"`
	Entity         *document.EntityID `json:"entity,omitempty"`
}

// HandleAt returns the first handle of the current selection whose hit
// circle contains the physical point (px, py).
func (w *World) HandleAt(px, py float64) (geom.HandleType, bool) {
	if w.Selection.Len() == 0 {
		return 0, false
	}
	bounds, ok := PhysicalSelectionBounds(w.Doc, &w.Selection, w.dpr)
	if !ok {
		return 0, false
	}
	size := HandleSize * w.dpr
	for _, h := range geom.GenerateHandles(bounds, size) {
		cx, cy := h.Center()
		target := document.HandleHitbox(cx, cy, size, w.dpr)
		if target.Hit(px, py, document.IdentityTransform(), nil) {
			return h.Type, true
		}
	}
	return 0, false
}

// EntityAt returns the first entity in paint order whose hitbox contains
// the physical point (px, py).
func (w *World) EntityAt(px, py float64) (document.EntityID, bool) {
	entities := w.Doc.Entities()
	for i := range entities {
		e := &entities[i]
		t, shape, hb := PhysicalEntity(w.Doc, e, w.dpr)
		if hb.Hit(px, py, t, shape) {
			return e.ID, true
		}
	}
	return 0, false
}

// Probe evaluates a CSS-space pointer position without changing state.
func (w *World) Probe(x, y float64) PointerDownResult {
	px, py := x*w.dpr, y*w.dpr
	var res PointerDownResult
	if h, ok := w.HandleAt(px, py); ok {
		res.ClickedHandle = &h
		return res
	}
	if id, ok := w.EntityAt(px, py); ok {
		res.EntitySelected = true
		res.Entity = &id
	}
	return res
}

func pointerDownSystem(w *World) {
	for _, ev := range drain(&w.Queue.pointerDowns) {
		if !finite(ev.X, ev.Y) {
			w.logger.Debug("dropping pointer down with invalid coordinates")
			continue
		}
		w.resolvePointerDown(ev)
	}
}

// resolvePointerDown gives handles priority over entities. A handle hit
// starts scaling immediately and skips entity testing.
func (w *World) resolvePointerDown(ev PointerDown) {
	px, py := ev.X*w.dpr, ev.Y*w.dpr

	if h, ok := w.HandleAt(px, py); ok {
		w.Scale.Start(w.Doc, &w.Selection, h, w.dpr)
		w.logger.Debug("pointer down on handle", "handle", h.String())
		return
	}

	id, ok := w.EntityAt(px, py)
	switch {
	case !ok:
		if !ev.Additive {
			w.Selection.Clear()
		}
	case ev.Additive:
		w.Selection.Toggle(id)
	default:
		w.Selection.Replace(id)
	}
	w.logger.Debug("pointer down resolved", "hit", ok, "entity", id, "selected", w.Selection.Len())
}

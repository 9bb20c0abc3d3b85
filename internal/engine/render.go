package engine

import (
	"math"

	"github.com/momentum/momentum/internal/geom"
	"github.com/momentum/momentum/internal/render"
)

// renderSystem draws the document and, while not moving, the handles of
// the current selection. Render failures are logged and dropped so the
// frame always completes.
func renderSystem(w *World) {
	r := w.renderer
	if r == nil {
		return
	}

	w.renderFailed("begin frame", r.BeginFrame(w.width, w.height))
	w.renderFailed("set camera", r.SetCamera(w.camera))

	entities := w.Doc.Entities()
	for i := range entities {
		e := &entities[i]
		t := PhysicalTransform(e.Transform, w.dpr)
		shape := e.Shape.Scaled(w.dpr)
		style := PhysicalStyle(e.Style, w.dpr)
		if w.Selection.IsSelected(e.ID) {
			highlight := render.SelectionStroke
			style.Stroke = &highlight
			style.StrokeWidth = math.Max(style.StrokeWidth, MinSelectedStrokeWidth*w.dpr)
		}
		w.renderFailed("draw shape", r.DrawShape(t, shape, style))
	}

	if w.Selection.Len() > 0 && !w.Move.Active() {
		if bounds, ok := PhysicalSelectionBounds(w.Doc, &w.Selection, w.dpr); ok {
			for _, h := range geom.GenerateHandles(bounds, HandleSize*w.dpr) {
				w.renderFailed("draw handle", r.DrawScaleHandle(h))
			}
		}
	}

	w.renderFailed("end frame", r.EndFrame())
}

func (w *World) renderFailed(op string, err error) {
	if err != nil {
		w.logger.Debug("render call failed", "op", op, "frame", w.frames, "error", err)
	}
}

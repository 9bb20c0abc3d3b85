package engine

import (
	"math"

	"github.com/momentum/momentum/internal/document"
	"github.com/momentum/momentum/internal/geom"
)

// Document data is stored in CSS pixels. Everything the engine tests or
// draws is first converted to physical pixels with the helpers below.

const (
	// MinDPR is the smallest accepted device pixel ratio.
	MinDPR = 0.5
	// HandleSize is the visual handle size in CSS pixels.
	HandleSize = 10.0
	// MinSelectedStrokeWidth is the highlight stroke floor in CSS pixels.
	MinSelectedStrokeWidth = 3.0
)

// ClampDPR keeps dpr at or above MinDPR. NaN and infinities fall back
// to 1.
func ClampDPR(dpr float64) float64 {
	if math.IsNaN(dpr) || math.IsInf(dpr, 0) {
		return 1
	}
	return math.Max(dpr, MinDPR)
}

// PhysicalTransform scales the position of t by dpr. Scale and rotation
// are ratios and stay as they are.
func PhysicalTransform(t document.Transform, dpr float64) document.Transform {
	t.X *= dpr
	t.Y *= dpr
	return t
}

// PhysicalStyle scales stroke width and dash values by dpr.
func PhysicalStyle(s document.Style, dpr float64) document.Style {
	out := s.Clone()
	out.StrokeWidth *= dpr
	for i := range out.Dash {
		out.Dash[i] *= dpr
	}
	out.DashOffset *= dpr
	return out
}

// PhysicalEntity returns the transform, shape and hitbox of e in
// physical pixels.
func PhysicalEntity(doc *document.Document, e *document.Entity, dpr float64) (document.Transform, document.Shape, document.Hitbox) {
	return PhysicalTransform(e.Transform, dpr), e.Shape.Scaled(dpr), doc.EffectiveHitbox(e).Scaled(dpr)
}

// PhysicalSelectionBounds is SelectionBounds in physical pixels.
func PhysicalSelectionBounds(doc *document.Document, sel *Selection, dpr float64) (geom.BoundingBox, bool) {
	b, ok := SelectionBounds(doc, sel)
	return b.Scaled(dpr), ok
}

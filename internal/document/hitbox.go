package document

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/momentum/momentum/internal/geom"
)

type HitboxKind string

const (
	HitboxFromShape HitboxKind = "fromShape"
	HitboxRect      HitboxKind = "rect"
	HitboxCircle    HitboxKind = "circle"
	HitboxPolygon   HitboxKind = "polygon"
	HitboxComposite HitboxKind = "composite"
	HitboxNone      HitboxKind = "none"
)

// Default tolerances for derived hitboxes, in CSS pixels.
const (
	AreaTolerance = 2.0
	LineTolerance = 8.0
)

var ErrUnknownHitbox = errors.New("unknown hitbox type")

// Hitbox is the interactive region of an entity, independent of how it
// is drawn. The set of implementations is closed.
type Hitbox interface {
	Kind() HitboxKind
	// Hit reports whether (x, y) lands inside the region for an entity
	// placed by t with shape s. Explicit regions are relative to the
	// transform origin and ignore s.
	Hit(x, y float64, t Transform, s Shape) bool
	// Scaled returns a copy with every length multiplied by k.
	Scaled(k float64) Hitbox

	sealed()
}

// FromShape tests against the entity's own geometry.
type FromShape struct {
	Tolerance float64 `json:"tolerance"`
}

// HitRect is an explicit rectangle relative to the transform origin.
type HitRect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// HitCircle is an explicit circle relative to the transform origin.
type HitCircle struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Radius float64 `json:"radius"`
}

// HitPolygon is an explicit outline relative to the transform origin.
type HitPolygon struct {
	Points []geom.Point `json:"points"`
}

// Composite hits when any part hits.
type Composite struct {
	Parts []Hitbox `json:"parts"`
}

// NoHitbox makes an entity non-interactive.
type NoHitbox struct{}

func (FromShape) sealed()  {}
func (HitRect) sealed()    {}
func (HitCircle) sealed()  {}
func (HitPolygon) sealed() {}
func (Composite) sealed()  {}
func (NoHitbox) sealed()   {}

func (FromShape) Kind() HitboxKind  { return HitboxFromShape }
func (HitRect) Kind() HitboxKind    { return HitboxRect }
func (HitCircle) Kind() HitboxKind  { return HitboxCircle }
func (HitPolygon) Kind() HitboxKind { return HitboxPolygon }
func (Composite) Kind() HitboxKind  { return HitboxComposite }
func (NoHitbox) Kind() HitboxKind   { return HitboxNone }

func (h FromShape) Hit(x, y float64, t Transform, s Shape) bool {
	if s == nil {
		return false
	}
	return s.Contains(x, y, t, h.Tolerance)
}

func (h HitRect) Hit(x, y float64, t Transform, _ Shape) bool {
	var acc geom.BoundsAccumulator
	x0 := t.X + h.X*t.ScaleX
	y0 := t.Y + h.Y*t.ScaleY
	acc.AddPoint(x0, y0)
	acc.AddPoint(x0+h.W*t.ScaleX, y0+h.H*t.ScaleY)
	return acc.Box().Contains(x, y)
}

func (h HitCircle) Hit(x, y float64, t Transform, _ Shape) bool {
	cx := t.X + h.X*t.ScaleX
	cy := t.Y + h.Y*t.ScaleY
	r := h.Radius * math.Max(math.Abs(t.ScaleX), math.Abs(t.ScaleY))
	dx, dy := x-cx, y-cy
	return dx*dx+dy*dy <= r*r
}

func (h HitPolygon) Hit(x, y float64, t Transform, _ Shape) bool {
	return Polygon{Points: h.Points}.Contains(x, y, t, 0)
}

func (h Composite) Hit(x, y float64, t Transform, s Shape) bool {
	for _, part := range h.Parts {
		if part != nil && part.Hit(x, y, t, s) {
			return true
		}
	}
	return false
}

func (NoHitbox) Hit(float64, float64, Transform, Shape) bool { return false }

func (h FromShape) Scaled(k float64) Hitbox { return FromShape{Tolerance: h.Tolerance * k} }

func (h HitRect) Scaled(k float64) Hitbox {
	return HitRect{X: h.X * k, Y: h.Y * k, W: h.W * k, H: h.H * k}
}

func (h HitCircle) Scaled(k float64) Hitbox {
	return HitCircle{X: h.X * k, Y: h.Y * k, Radius: h.Radius * k}
}

func (h HitPolygon) Scaled(k float64) Hitbox {
	return HitPolygon{Points: Polygon{Points: h.Points}.Scaled(k).(Polygon).Points}
}

func (h Composite) Scaled(k float64) Hitbox {
	parts := make([]Hitbox, len(h.Parts))
	for i, p := range h.Parts {
		if p != nil {
			parts[i] = p.Scaled(k)
		}
	}
	return Composite{Parts: parts}
}

func (h NoHitbox) Scaled(float64) Hitbox { return h }

// DefaultHitbox derives the hitbox used when an entity has no override.
func DefaultHitbox(s Shape) Hitbox {
	if s != nil && s.LineLike() {
		return FromShape{Tolerance: LineTolerance}
	}
	return FromShape{Tolerance: AreaTolerance}
}

// HandleHitbox returns a circular target around a handle centre that is
// larger than the visible handle. All values share one pixel space; the
// radius floor is scaled by dpr.
func HandleHitbox(cx, cy, visualSize, dpr float64) HitCircle {
	return HitCircle{X: cx, Y: cy, Radius: geom.HandleHitRadius(visualSize, dpr)}
}

// AccessibleRect pads a rectangle symmetrically so each side is at least
// minSize long.
func AccessibleRect(x, y, w, h, minSize float64) HitRect {
	if w < minSize {
		x -= (minSize - w) / 2
		w = minSize
	}
	if h < minSize {
		y -= (minSize - h) / 2
		h = minSize
	}
	return HitRect{X: x, Y: y, W: w, H: h}
}

// MarshalHitbox encodes a hitbox as {"type": kind, ...fields}.
func MarshalHitbox(h Hitbox) (json.RawMessage, error) {
	switch v := h.(type) {
	case FromShape:
		return json.Marshal(struct {
			Type HitboxKind `json:"type"`
			FromShape
		}{HitboxFromShape, v})
	case HitRect:
		return json.Marshal(struct {
			Type HitboxKind `json:"type"`
			HitRect
		}{HitboxRect, v})
	case HitCircle:
		return json.Marshal(struct {
			Type HitboxKind `json:"type"`
			HitCircle
		}{HitboxCircle, v})
	case HitPolygon:
		return json.Marshal(struct {
			Type HitboxKind `json:"type"`
			HitPolygon
		}{HitboxPolygon, v})
	case Composite:
		parts := make([]json.RawMessage, 0, len(v.Parts))
		for _, p := range v.Parts {
			raw, err := MarshalHitbox(p)
			if err != nil {
				return nil, err
			}
			parts = append(parts, raw)
		}
		return json.Marshal(struct {
			Type  HitboxKind        `json:"type"`
			Parts []json.RawMessage `json:"parts"`
		}{HitboxComposite, parts})
	case NoHitbox:
		return json.Marshal(struct {
			Type HitboxKind `json:"type"`
		}{HitboxNone})
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownHitbox, h)
	}
}

// UnmarshalHitbox decodes the envelope written by MarshalHitbox.
func UnmarshalHitbox(data []byte) (Hitbox, error) {
	var head struct {
		Type  HitboxKind        `json:"type"`
		Parts []json.RawMessage `json:"parts"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode hitbox: %w", err)
	}

	var (
		hb  Hitbox
		err error
	)
	switch head.Type {
	case HitboxFromShape:
		var v FromShape
		err = json.Unmarshal(data, &v)
		hb = v
	case HitboxRect:
		var v HitRect
		err = json.Unmarshal(data, &v)
		hb = v
	case HitboxCircle:
		var v HitCircle
		err = json.Unmarshal(data, &v)
		hb = v
	case HitboxPolygon:
		var v HitPolygon
		err = json.Unmarshal(data, &v)
		hb = v
	case HitboxComposite:
		parts := make([]Hitbox, 0, len(head.Parts))
		for _, raw := range head.Parts {
			p, perr := UnmarshalHitbox(raw)
			if perr != nil {
				return nil, perr
			}
			parts = append(parts, p)
		}
		hb = Composite{Parts: parts}
	case HitboxNone:
		hb = NoHitbox{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownHitbox, head.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s hitbox: %w", head.Type, err)
	}
	return hb, nil
}

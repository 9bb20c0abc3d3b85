package document

import (
	"encoding/json"
	"fmt"
	"math"
)

// EntityID identifies an entity within a document. IDs start at 1 and
// are never reused.
type EntityID uint64

// Transform places an entity. Rotation is in radians.
type Transform struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Rotation float64 `json:"rotation"`
	ScaleX   float64 `json:"scaleX"`
	ScaleY   float64 `json:"scaleY"`
}

// IdentityTransform returns a transform at the origin with unit scale.
func IdentityTransform() Transform {
	return Transform{ScaleX: 1, ScaleY: 1}
}

// NewTransform returns a transform at (x, y) with unit scale.
func NewTransform(x, y float64) Transform {
	return Transform{X: x, Y: y, ScaleX: 1, ScaleY: 1}
}

// UnmarshalJSON defaults missing scale fields to 1.
func (t *Transform) UnmarshalJSON(data []byte) error {
	type plain Transform
	p := plain(IdentityTransform())
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*t = Transform(p)
	return nil
}

// Color is a straight-alpha RGBA color with components in [0, 1].
type Color struct {
	R float64 `json:"r"`
	G float64 `json:"g"`
	B float64 `json:"b"`
	A float64 `json:"a"`
}

// RGBA builds a Color.
func RGBA(r, g, b, a float64) Color {
	return Color{R: r, G: g, B: b, A: a}
}

// CSS formats the color as a CSS rgba() string, multiplying alpha by opacity.
func (c Color) CSS(opacity float64) string {
	return fmt.Sprintf("rgba(%d,%d,%d,%g)",
		channel(c.R), channel(c.G), channel(c.B),
		math.Round(clamp01(c.A*opacity)*1000)/1000)
}

func channel(v float64) int {
	return int(math.Round(clamp01(v) * 255))
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

type StrokeCap string

const (
	CapButt   StrokeCap = "butt"
	CapSquare StrokeCap = "square"
	CapRound  StrokeCap = "round"
)

type StrokeJoin string

const (
	JoinMiter StrokeJoin = "miter"
	JoinBevel StrokeJoin = "bevel"
	JoinRound StrokeJoin = "round"
)

// Style describes how an entity is painted. A nil Fill or Stroke skips
// that pass.
type Style struct {
	Fill        *Color     `json:"fill,omitempty"`
	Stroke      *Color     `json:"stroke,omitempty"`
	StrokeWidth float64    `json:"strokeWidth"`
	Opacity     float64    `json:"opacity"`
	Cap         StrokeCap  `json:"cap,omitempty"`
	Join        StrokeJoin `json:"join,omitempty"`
	Dash        []float64  `json:"dash,omitempty"`
	DashOffset  float64    `json:"dashOffset,omitempty"`
}

// DefaultStyle is applied to shapes created through the input surface.
func DefaultStyle() Style {
	stroke := RGBA(0.10, 0.12, 0.16, 1)
	return Style{
		Stroke:      &stroke,
		StrokeWidth: 2,
		Opacity:     1,
		Cap:         CapButt,
		Join:        JoinMiter,
	}
}

// Clone returns a deep copy of the style.
func (s Style) Clone() Style {
	out := s
	if s.Fill != nil {
		f := *s.Fill
		out.Fill = &f
	}
	if s.Stroke != nil {
		c := *s.Stroke
		out.Stroke = &c
	}
	if s.Dash != nil {
		out.Dash = append([]float64(nil), s.Dash...)
	}
	return out
}

// Entity is a single editable shape.
type Entity struct {
	ID        EntityID  `json:"id"`
	Transform Transform `json:"transform"`
	Style     Style     `json:"style"`
	Shape     Shape     `json:"shape"`
}

// UnmarshalJSON decodes the shape envelope.
func (e *Entity) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID        EntityID        `json:"id"`
		Transform Transform       `json:"transform"`
		Style     Style           `json:"style"`
		Shape     json.RawMessage `json:"shape"`
	}
	raw.Transform = IdentityTransform()
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	shape, err := UnmarshalShape(raw.Shape)
	if err != nil {
		return fmt.Errorf("entity %d: %w", raw.ID, err)
	}
	e.ID = raw.ID
	e.Transform = raw.Transform
	e.Style = raw.Style
	e.Shape = shape
	return nil
}

// MarshalJSON encodes the shape envelope.
func (e Entity) MarshalJSON() ([]byte, error) {
	shape, err := MarshalShape(e.Shape)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		ID        EntityID        `json:"id"`
		Transform Transform       `json:"transform"`
		Style     Style           `json:"style"`
		Shape     json.RawMessage `json:"shape"`
	}{e.ID, e.Transform, e.Style, shape})
}

package document

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/momentum/momentum/internal/geom"
)

type ShapeKind string

const (
	ShapeRectangle ShapeKind = "rectangle"
	ShapeEllipse   ShapeKind = "ellipse"
	ShapeLine      ShapeKind = "line"
	ShapePolygon   ShapeKind = "polygon"
)

var ErrUnknownShape = errors.New("unknown shape type")

// Shape is the geometry of an entity, relative to its transform origin.
// The set of implementations is closed.
type Shape interface {
	Kind() ShapeKind
	// Bounds returns the axis-aligned box of the shape placed by t.
	Bounds(t Transform) geom.BoundingBox
	// Contains reports whether (x, y) hits the placed shape. tolerance
	// only widens thin geometry.
	Contains(x, y float64, t Transform, tolerance float64) bool
	// Scaled returns a copy with every extent multiplied by k.
	Scaled(k float64) Shape
	// LineLike reports whether the shape has no interior.
	LineLike() bool

	sealed()
}

// Rectangle has its origin at the top-left corner.
type Rectangle struct {
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Ellipse has its origin at the centre.
type Ellipse struct {
	RX float64 `json:"rx"`
	RY float64 `json:"ry"`
}

// Line runs from the transform origin to (X2, Y2) relative to it.
type Line struct {
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Polygon is a closed outline of vertices relative to the origin.
type Polygon struct {
	Points []geom.Point `json:"points"`
}

func (Rectangle) sealed() {}
func (Ellipse) sealed()   {}
func (Line) sealed()      {}
func (Polygon) sealed()   {}

func (Rectangle) Kind() ShapeKind { return ShapeRectangle }
func (Ellipse) Kind() ShapeKind   { return ShapeEllipse }
func (Line) Kind() ShapeKind      { return ShapeLine }
func (Polygon) Kind() ShapeKind   { return ShapePolygon }

func (Rectangle) LineLike() bool { return false }
func (Ellipse) LineLike() bool   { return false }
func (Line) LineLike() bool      { return true }
func (Polygon) LineLike() bool   { return false }

func (r Rectangle) Bounds(t Transform) geom.BoundingBox {
	var acc geom.BoundsAccumulator
	acc.AddPoint(t.X, t.Y)
	acc.AddPoint(t.X+r.W*t.ScaleX, t.Y+r.H*t.ScaleY)
	return acc.Box()
}

func (e Ellipse) Bounds(t Transform) geom.BoundingBox {
	rx := math.Abs(e.RX * t.ScaleX)
	ry := math.Abs(e.RY * t.ScaleY)
	return geom.BoundingBox{X: t.X - rx, Y: t.Y - ry, Width: 2 * rx, Height: 2 * ry}
}

func (l Line) Bounds(t Transform) geom.BoundingBox {
	var acc geom.BoundsAccumulator
	acc.AddPoint(t.X, t.Y)
	acc.AddPoint(t.X+l.X2*t.ScaleX, t.Y+l.Y2*t.ScaleY)
	return acc.Box()
}

func (p Polygon) Bounds(t Transform) geom.BoundingBox {
	var acc geom.BoundsAccumulator
	for _, pt := range p.Points {
		acc.AddPoint(t.X+pt.X*t.ScaleX, t.Y+pt.Y*t.ScaleY)
	}
	return acc.Box()
}

func (r Rectangle) Contains(x, y float64, t Transform, _ float64) bool {
	return r.Bounds(t).Contains(x, y)
}

func (e Ellipse) Contains(x, y float64, t Transform, _ float64) bool {
	rx := math.Abs(e.RX * t.ScaleX)
	ry := math.Abs(e.RY * t.ScaleY)
	if rx == 0 || ry == 0 {
		return false
	}
	dx := (x - t.X) / rx
	dy := (y - t.Y) / ry
	return dx*dx+dy*dy <= 1
}

func (l Line) Contains(x, y float64, t Transform, tolerance float64) bool {
	x2 := t.X + l.X2*t.ScaleX
	y2 := t.Y + l.Y2*t.ScaleY
	return segmentDistance(x, y, t.X, t.Y, x2, y2) <= tolerance
}

func (p Polygon) Contains(x, y float64, t Transform, _ float64) bool {
	pts := make([]geom.Point, len(p.Points))
	for i, pt := range p.Points {
		pts[i] = geom.Point{X: t.X + pt.X*t.ScaleX, Y: t.Y + pt.Y*t.ScaleY}
	}
	return pointInPolygon(x, y, pts)
}

func (r Rectangle) Scaled(k float64) Shape { return Rectangle{W: r.W * k, H: r.H * k} }
func (e Ellipse) Scaled(k float64) Shape   { return Ellipse{RX: e.RX * k, RY: e.RY * k} }
func (l Line) Scaled(k float64) Shape      { return Line{X2: l.X2 * k, Y2: l.Y2 * k} }

func (p Polygon) Scaled(k float64) Shape {
	pts := make([]geom.Point, len(p.Points))
	for i, pt := range p.Points {
		pts[i] = geom.Point{X: pt.X * k, Y: pt.Y * k}
	}
	return Polygon{Points: pts}
}

// segmentDistance returns the distance from (px, py) to the segment
// (x1, y1)-(x2, y2). A zero-length segment is infinitely far away.
func segmentDistance(px, py, x1, y1, x2, y2 float64) float64 {
	dx := x2 - x1
	dy := y2 - y1
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return math.Inf(1)
	}
	u := ((px-x1)*dx + (py-y1)*dy) / lenSq
	u = math.Max(0, math.Min(1, u))
	cx := x1 + u*dx
	cy := y1 + u*dy
	return math.Hypot(px-cx, py-cy)
}

// pointInPolygon is the even-odd crossing test.
func pointInPolygon(x, y float64, pts []geom.Point) bool {
	if len(pts) < 3 {
		return false
	}
	inside := false
	j := len(pts) - 1
	for i := range pts {
		pi, pj := pts[i], pts[j]
		if (pi.Y > y) != (pj.Y > y) &&
			x < (pj.X-pi.X)*(y-pi.Y)/(pj.Y-pi.Y)+pi.X {
			inside = !inside
		}
		j = i
	}
	return inside
}

// MarshalShape encodes a shape as {"type": kind, ...fields}.
func MarshalShape(s Shape) (json.RawMessage, error) {
	switch v := s.(type) {
	case Rectangle:
		return json.Marshal(struct {
			Type ShapeKind `json:"type"`
			Rectangle
		}{ShapeRectangle, v})
	case Ellipse:
		return json.Marshal(struct {
			Type ShapeKind `json:"type"`
			Ellipse
		}{ShapeEllipse, v})
	case Line:
		return json.Marshal(struct {
			Type ShapeKind `json:"type"`
			Line
		}{ShapeLine, v})
	case Polygon:
		return json.Marshal(struct {
			Type ShapeKind `json:"type"`
			Polygon
		}{ShapePolygon, v})
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownShape, s)
	}
}

// UnmarshalShape decodes the envelope written by MarshalShape.
func UnmarshalShape(data []byte) (Shape, error) {
	var head struct {
		Type ShapeKind `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode shape: %w", err)
	}

	var (
		shape Shape
		err   error
	)
	switch head.Type {
	case ShapeRectangle:
		var v Rectangle
		err = json.Unmarshal(data, &v)
		shape = v
	case ShapeEllipse:
		var v Ellipse
		err = json.Unmarshal(data, &v)
		shape = v
	case ShapeLine:
		var v Line
		err = json.Unmarshal(data, &v)
		shape = v
	case ShapePolygon:
		var v Polygon
		err = json.Unmarshal(data, &v)
		shape = v
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownShape, head.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", head.Type, err)
	}
	return shape, nil
}

package render

import (
	"fmt"

	"github.com/momentum/momentum/internal/document"
	"github.com/momentum/momentum/internal/geom"
)

// PathOp is a path verb.
type PathOp string

const (
	OpMoveTo  PathOp = "M"
	OpLineTo  PathOp = "L"
	OpQuadTo  PathOp = "Q"
	OpCubicTo PathOp = "C"
	OpClose   PathOp = "Z"
)

// PathCommand is one verb with its points: one for M/L, two for Q, three
// for C, none for Z.
type PathCommand struct {
	Op     PathOp       `json:"op"`
	Points []geom.Point `json:"points,omitempty"`
}

// Path is a sequence of commands relative to the transform origin.
type Path []PathCommand

func (p Path) MoveTo(x, y float64) Path {
	return append(p, PathCommand{Op: OpMoveTo, Points: []geom.Point{{X: x, Y: y}}})
}

func (p Path) LineTo(x, y float64) Path {
	return append(p, PathCommand{Op: OpLineTo, Points: []geom.Point{{X: x, Y: y}}})
}

func (p Path) QuadTo(cx, cy, x, y float64) Path {
	return append(p, PathCommand{Op: OpQuadTo, Points: []geom.Point{{X: cx, Y: cy}, {X: x, Y: y}}})
}

func (p Path) CubicTo(c1x, c1y, c2x, c2y, x, y float64) Path {
	return append(p, PathCommand{Op: OpCubicTo, Points: []geom.Point{{X: c1x, Y: c1y}, {X: c2x, Y: c2y}, {X: x, Y: y}}})
}

func (p Path) Close() Path {
	return append(p, PathCommand{Op: OpClose})
}

// Validate checks that every command carries the right number of points.
func (p Path) Validate() error {
	for i, cmd := range p {
		var want int
		switch cmd.Op {
		case OpMoveTo, OpLineTo:
			want = 1
		case OpQuadTo:
			want = 2
		case OpCubicTo:
			want = 3
		case OpClose:
			want = 0
		default:
			return fmt.Errorf("%w: path command %d has unknown op %q", ErrInvalidInput, i, cmd.Op)
		}
		if len(cmd.Points) != want {
			return fmt.Errorf("%w: path command %d (%s) needs %d points, got %d", ErrInvalidInput, i, cmd.Op, want, len(cmd.Points))
		}
	}
	return nil
}

// ShapePath converts a shape into path commands. Ellipses use four cubic
// arcs.
func ShapePath(shape document.Shape) Path {
	var p Path
	switch s := shape.(type) {
	case document.Rectangle:
		p = p.MoveTo(0, 0).LineTo(s.W, 0).LineTo(s.W, s.H).LineTo(0, s.H).Close()
	case document.Ellipse:
		const k = 0.5522847498
		ox, oy := s.RX*k, s.RY*k
		p = p.MoveTo(s.RX, 0).
			CubicTo(s.RX, oy, ox, s.RY, 0, s.RY).
			CubicTo(-ox, s.RY, -s.RX, oy, -s.RX, 0).
			CubicTo(-s.RX, -oy, -ox, -s.RY, 0, -s.RY).
			CubicTo(ox, -s.RY, s.RX, -oy, s.RX, 0).
			Close()
	case document.Line:
		p = p.MoveTo(0, 0).LineTo(s.X2, s.Y2)
	case document.Polygon:
		for i, pt := range s.Points {
			if i == 0 {
				p = p.MoveTo(pt.X, pt.Y)
			} else {
				p = p.LineTo(pt.X, pt.Y)
			}
		}
		if len(s.Points) > 0 {
			p = p.Close()
		}
	}
	return p
}

// TransformMatrix converts an entity transform into an affine matrix.
func TransformMatrix(t document.Transform) geom.Matrix2D {
	return geom.FromTransform(t.X, t.Y, t.Rotation, t.ScaleX, t.ScaleY)
}

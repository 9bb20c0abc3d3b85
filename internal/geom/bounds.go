package geom

import "math"

// Point is a 2D coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// BoundingBox is an axis-aligned box. Width and Height are never negative.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// MinX returns the left edge.
func (b BoundingBox) MinX() float64 { return b.X }

// MinY returns the top edge.
func (b BoundingBox) MinY() float64 { return b.Y }

// MaxX returns the right edge.
func (b BoundingBox) MaxX() float64 { return b.X + b.Width }

// MaxY returns the bottom edge.
func (b BoundingBox) MaxY() float64 { return b.Y + b.Height }

// Center returns the midpoint of the box.
func (b BoundingBox) Center() (float64, float64) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

// IsEmpty reports whether the box has no area.
func (b BoundingBox) IsEmpty() bool {
	return b.Width <= 0 || b.Height <= 0
}

// Contains reports whether (x, y) lies inside the box, edges included.
func (b BoundingBox) Contains(x, y float64) bool {
	return x >= b.X && x <= b.X+b.Width && y >= b.Y && y <= b.Y+b.Height
}

// Union returns the smallest box covering both. Degenerate boxes still
// contribute their extent, so a horizontal line widens the result.
func (b BoundingBox) Union(other BoundingBox) BoundingBox {
	minX := math.Min(b.X, other.X)
	minY := math.Min(b.Y, other.Y)
	maxX := math.Max(b.MaxX(), other.MaxX())
	maxY := math.Max(b.MaxY(), other.MaxY())
	return BoundingBox{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// Scaled multiplies every component by k.
func (b BoundingBox) Scaled(k float64) BoundingBox {
	return BoundingBox{X: b.X * k, Y: b.Y * k, Width: b.Width * k, Height: b.Height * k}
}

// Expand grows the box by d on every side.
func (b BoundingBox) Expand(d float64) BoundingBox {
	return BoundingBox{X: b.X - d, Y: b.Y - d, Width: b.Width + 2*d, Height: b.Height + 2*d}
}

// BoundsAccumulator builds a box from points or boxes. The zero value is empty.
type BoundsAccumulator struct {
	minX, minY, maxX, maxY float64
	any                    bool
}

// AddPoint extends the accumulated extent to include (x, y).
func (a *BoundsAccumulator) AddPoint(x, y float64) {
	if !a.any {
		a.minX, a.maxX = x, x
		a.minY, a.maxY = y, y
		a.any = true
		return
	}
	a.minX = math.Min(a.minX, x)
	a.minY = math.Min(a.minY, y)
	a.maxX = math.Max(a.maxX, x)
	a.maxY = math.Max(a.maxY, y)
}

// AddBox extends the accumulated extent to include b.
func (a *BoundsAccumulator) AddBox(b BoundingBox) {
	a.AddPoint(b.X, b.Y)
	a.AddPoint(b.MaxX(), b.MaxY())
}

// Empty reports whether nothing has been added.
func (a *BoundsAccumulator) Empty() bool {
	return !a.any
}

// Box returns the accumulated box, or the zero box when empty.
func (a *BoundsAccumulator) Box() BoundingBox {
	if !a.any {
		return BoundingBox{}
	}
	return BoundingBox{X: a.minX, Y: a.minY, Width: a.maxX - a.minX, Height: a.maxY - a.minY}
}

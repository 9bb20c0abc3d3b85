package geom

import (
	"fmt"
	"math"
)

// HandleType identifies one of the eight scale handles. The numeric
// value is the wire encoding used by hosts.
type HandleType uint8

const (
	HandleTopLeft HandleType = iota
	HandleTopRight
	HandleBottomLeft
	HandleBottomRight
	HandleTop
	HandleRight
	HandleBottom
	HandleLeft
)

// HandleTypes lists every handle in hit-test and draw order.
var HandleTypes = [8]HandleType{
	HandleTopLeft,
	HandleTopRight,
	HandleBottomLeft,
	HandleBottomRight,
	HandleTop,
	HandleRight,
	HandleBottom,
	HandleLeft,
}

var handleNames = [8]string{
	"top-left",
	"top-right",
	"bottom-left",
	"bottom-right",
	"top",
	"right",
	"bottom",
	"left",
}

func (h HandleType) String() string {
	if int(h) < len(handleNames) {
		return handleNames[h]
	}
	return fmt.Sprintf("handle(%d)", uint8(h))
}

// ParseHandleType converts a wire value into a HandleType.
func ParseHandleType(v uint8) (HandleType, error) {
	if int(v) >= len(HandleTypes) {
		return 0, fmt.Errorf("unknown handle type %d", v)
	}
	return HandleType(v), nil
}

// ScaleHandle is a handle positioned by its top-left corner.
type ScaleHandle struct {
	Type HandleType `json:"type"`
	X    float64    `json:"x"`
	Y    float64    `json:"y"`
	Size float64    `json:"size"`
}

// Center returns the point the handle is anchored on.
func (h ScaleHandle) Center() (float64, float64) {
	return h.X + h.Size/2, h.Y + h.Size/2
}

// GenerateHandles places the eight handles around box, each centred on
// its anchor coordinate.
func GenerateHandles(box BoundingBox, size float64) [8]ScaleHandle {
	half := size / 2
	midX := box.X + box.Width/2
	midY := box.Y + box.Height/2
	anchors := [8]Point{
		{box.X, box.Y},
		{box.MaxX(), box.Y},
		{box.X, box.MaxY()},
		{box.MaxX(), box.MaxY()},
		{midX, box.Y},
		{box.MaxX(), midY},
		{midX, box.MaxY()},
		{box.X, midY},
	}

	var handles [8]ScaleHandle
	for i, a := range anchors {
		handles[i] = ScaleHandle{
			Type: HandleTypes[i],
			X:    a.X - half,
			Y:    a.Y - half,
			Size: size,
		}
	}
	return handles
}

// MinHandleHitRadius is the smallest handle hit radius in CSS pixels.
const MinHandleHitRadius = 12.0

// HandleHitRadius returns the circular hit radius for a handle of the
// given visual size. The floor is scaled by dpr.
func HandleHitRadius(size, dpr float64) float64 {
	return math.Max(size*0.75, MinHandleHitRadius*dpr)
}

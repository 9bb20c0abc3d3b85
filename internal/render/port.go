// Package render defines the capability interface the engine draws
// through. Concrete backends live in subpackages.
package render

import (
	"errors"

	"github.com/momentum/momentum/internal/document"
	"github.com/momentum/momentum/internal/geom"
)

// Failure kinds. Backends wrap these with fmt.Errorf("%w: ...").
var (
	ErrInitialization = errors.New("render: initialization failed")
	ErrDeviceLost     = errors.New("render: device lost")
	ErrSurfaceLost    = errors.New("render: surface lost")
	ErrOutOfMemory    = errors.New("render: out of memory")
	ErrInvalidInput   = errors.New("render: invalid input")
	ErrUnsupported    = errors.New("render: unsupported")
	ErrTextShaping    = errors.New("render: text shaping failed")
	ErrUploadFailed   = errors.New("render: upload failed")
	ErrOther          = errors.New("render: failure")
)

// Port is a drawing backend. All coordinates are physical pixels.
type Port interface {
	BeginFrame(width, height int) error
	EndFrame() error
	SetCamera(m geom.Matrix2D) error
	DrawShape(t document.Transform, shape document.Shape, style document.Style) error
	DrawPath(t document.Transform, path Path, style document.Style) error
	DrawText(t document.Transform, span TextSpan) (TextMetrics, error)
	MeasureText(span TextSpan) (TextMetrics, error)
	UploadImage(id ImageID, data []byte) error
	DrawImage(id ImageID, dest Rect, t document.Transform, tint *document.Color) error
	DrawScaleHandle(h geom.ScaleHandle) error
}

// ImageID names an uploaded image.
type ImageID string

// Rect is a destination rectangle.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// TextSpan is a run of text in one style.
type TextSpan struct {
	Text       string         `json:"text"`
	Color      document.Color `json:"color"`
	Size       float64        `json:"size"`
	FontFamily string         `json:"fontFamily,omitempty"`
	Weight     int            `json:"weight,omitempty"`
}

// TextMetrics describes laid out text.
type TextMetrics struct {
	Width   float64 `json:"width"`
	Ascent  float64 `json:"ascent"`
	Descent float64 `json:"descent"`
	LineGap float64 `json:"lineGap"`
}

// Height is the distance from the top of the ascent to the bottom of the descent.
func (m TextMetrics) Height() float64 {
	return m.Ascent + m.Descent
}

// EstimateText approximates metrics for hosts without a shaper.
func EstimateText(span TextSpan) TextMetrics {
	n := float64(len([]rune(span.Text)))
	return TextMetrics{
		Width:   n * span.Size * 0.6,
		Ascent:  span.Size * 0.8,
		Descent: span.Size * 0.2,
		LineGap: span.Size * 0.1,
	}
}

// Highlight styling for selected entities and handles.
var (
	SelectionStroke = document.RGBA(0, 0.4, 0.8, 1)
	HandleFill      = document.RGBA(1, 1, 1, 1)
	HandleStroke    = document.RGBA(0x19/255.0, 0x71/255.0, 0xc2/255.0, 1)
)

// HandleStrokeWidth is the border of a drawn scale handle.
const HandleStrokeWidth = 1.5

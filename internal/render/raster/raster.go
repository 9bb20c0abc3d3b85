// Package raster implements render.Port on the gogpu/gg software
// rasterizer. It backs headless rendering: thumbnails, PNG export and the
// render CLI.
package raster

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"

	"github.com/gogpu/gg"
	"github.com/gogpu/gg/text"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/momentum/momentum/internal/document"
	"github.com/momentum/momentum/internal/geom"
	"github.com/momentum/momentum/internal/render"
)

// DefaultMaxSize caps either surface dimension.
const DefaultMaxSize = 8192

// Background is painted by BeginFrame.
var Background = gg.RGBA{R: 1, G: 1, B: 1, A: 1}

// Canvas draws into an in-memory pixmap. It is not safe for concurrent
// use; the engine only calls it from its tick.
type Canvas struct {
	logger  *slog.Logger
	maxSize int

	dc      *gg.Context
	inFrame bool
	camera  geom.Matrix2D

	font   *text.FontSource
	faces  map[float64]text.Face
	images map[render.ImageID]*gg.ImageBuf
}

var _ render.Port = (*Canvas)(nil)

type Option func(*Canvas)

func WithLogger(l *slog.Logger) Option {
	return func(c *Canvas) { c.logger = l }
}

// WithMaxSize overrides DefaultMaxSize.
func WithMaxSize(n int) Option {
	return func(c *Canvas) {
		if n > 0 {
			c.maxSize = n
		}
	}
}

// New creates a canvas with the embedded Go Regular font.
func New(opts ...Option) (*Canvas, error) {
	c := &Canvas{
		logger:  slog.Default(),
		maxSize: DefaultMaxSize,
		camera:  geom.Identity(),
		faces:   make(map[float64]text.Face),
		images:  make(map[render.ImageID]*gg.ImageBuf),
	}
	for _, opt := range opts {
		opt(c)
	}

	src, err := text.NewFontSource(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("%w: load font: %v", render.ErrInitialization, err)
	}
	c.font = src
	return c, nil
}

func (c *Canvas) BeginFrame(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: frame size %dx%d", render.ErrInvalidInput, width, height)
	}
	if width > c.maxSize || height > c.maxSize {
		return fmt.Errorf("%w: frame size %dx%d exceeds %d", render.ErrOutOfMemory, width, height, c.maxSize)
	}

	if c.dc == nil || c.dc.Width() != width || c.dc.Height() != height {
		if c.dc != nil {
			c.closeContext()
		}
		c.logger.Debug("allocating raster surface", "width", width, "height", height)
		c.dc = gg.NewContext(width, height)
	}
	c.dc.Identity()
	c.dc.ClearPath()
	c.dc.ClearWithColor(Background)
	c.inFrame = true
	return nil
}

func (c *Canvas) EndFrame() error {
	if !c.inFrame {
		return fmt.Errorf("%w: end without begin", render.ErrSurfaceLost)
	}
	c.inFrame = false
	return nil
}

func (c *Canvas) SetCamera(m geom.Matrix2D) error {
	if err := c.ready("set camera"); err != nil {
		return err
	}
	c.camera = m
	return nil
}

func (c *Canvas) DrawShape(t document.Transform, shape document.Shape, style document.Style) error {
	if shape == nil {
		return fmt.Errorf("%w: nil shape", render.ErrInvalidInput)
	}
	if err := c.ready("draw shape"); err != nil {
		return err
	}
	c.apply(t)
	traceShape(c.dc, shape)
	return c.paint(style, shape.LineLike())
}

func (c *Canvas) DrawPath(t document.Transform, path render.Path, style document.Style) error {
	if err := path.Validate(); err != nil {
		return err
	}
	if err := c.ready("draw path"); err != nil {
		return err
	}
	c.apply(t)
	tracePath(c.dc, path)
	return c.paint(style, false)
}

func (c *Canvas) DrawText(t document.Transform, span render.TextSpan) (render.TextMetrics, error) {
	if err := c.ready("draw text"); err != nil {
		return render.TextMetrics{}, err
	}
	m, err := c.MeasureText(span)
	if err != nil {
		return m, err
	}
	c.apply(t)
	c.dc.SetRGBA(span.Color.R, span.Color.G, span.Color.B, span.Color.A)
	c.dc.DrawString(span.Text, 0, m.Ascent)
	return m, nil
}

// MeasureText lays the span out with the embedded font. Family and weight
// are ignored.
func (c *Canvas) MeasureText(span render.TextSpan) (render.TextMetrics, error) {
	if span.Size <= 0 {
		return render.TextMetrics{}, fmt.Errorf("%w: font size %v", render.ErrInvalidInput, span.Size)
	}
	face := c.face(span.Size)
	if c.dc == nil {
		c.dc = gg.NewContext(1, 1)
	}
	c.dc.SetFont(face)
	w, _ := c.dc.MeasureString(span.Text)
	fm := face.Metrics()
	return render.TextMetrics{
		Width:   w,
		Ascent:  fm.Ascent,
		Descent: fm.Descent,
		LineGap: fm.LineGap,
	}, nil
}

// UploadImage decodes PNG, JPEG or GIF data and keeps it for DrawImage.
func (c *Canvas) UploadImage(id render.ImageID, data []byte) error {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: image %s: %v", render.ErrUploadFailed, id, err)
	}
	c.images[id] = gg.ImageBufFromImage(img)
	return nil
}

// DrawImage draws an uploaded image into dest. A tint's alpha becomes the
// image opacity.
func (c *Canvas) DrawImage(id render.ImageID, dest render.Rect, t document.Transform, tint *document.Color) error {
	buf, ok := c.images[id]
	if !ok {
		return fmt.Errorf("%w: image %s not uploaded", render.ErrInvalidInput, id)
	}
	if err := c.ready("draw image"); err != nil {
		return err
	}
	opacity := 1.0
	if tint != nil {
		opacity = tint.A
	}
	c.apply(t)
	c.dc.DrawImageEx(buf, gg.DrawImageOptions{
		X:         dest.X,
		Y:         dest.Y,
		DstWidth:  dest.Width,
		DstHeight: dest.Height,
		Opacity:   opacity,
	})
	return nil
}

// DrawScaleHandle draws a white disc with a blue border. Handles sit in
// screen space and ignore the camera.
func (c *Canvas) DrawScaleHandle(h geom.ScaleHandle) error {
	if err := c.ready("draw handle"); err != nil {
		return err
	}
	cx, cy := h.Center()
	c.dc.Identity()
	c.dc.ClearPath()
	c.dc.DrawCircle(cx, cy, h.Size/2)
	c.dc.SetRGBA(render.HandleFill.R, render.HandleFill.G, render.HandleFill.B, render.HandleFill.A)
	if err := c.dc.FillPreserve(); err != nil {
		return fmt.Errorf("%w: fill handle: %v", render.ErrOther, err)
	}
	c.dc.SetRGBA(render.HandleStroke.R, render.HandleStroke.G, render.HandleStroke.B, render.HandleStroke.A)
	c.dc.SetLineWidth(render.HandleStrokeWidth)
	c.dc.ClearDash()
	if err := c.dc.Stroke(); err != nil {
		return fmt.Errorf("%w: stroke handle: %v", render.ErrOther, err)
	}
	return nil
}

// Image returns the rendered surface, or nil before the first frame.
func (c *Canvas) Image() image.Image {
	if c.dc == nil {
		return nil
	}
	return c.dc.Image()
}

// EncodePNG writes the last frame as PNG.
func (c *Canvas) EncodePNG(w io.Writer) error {
	if c.dc == nil {
		return fmt.Errorf("%w: no frame rendered", render.ErrSurfaceLost)
	}
	return c.dc.EncodePNG(w)
}

// Close releases the surface.
func (c *Canvas) Close() error {
	if c.dc == nil {
		return nil
	}
	err := c.dc.Close()
	c.dc = nil
	c.inFrame = false
	return err
}

func (c *Canvas) closeContext() {
	if err := c.dc.Close(); err != nil {
		c.logger.Debug("closing raster surface", "error", err)
	}
	c.dc = nil
}

func (c *Canvas) ready(op string) error {
	if !c.inFrame || c.dc == nil {
		return fmt.Errorf("%w: %s outside a frame", render.ErrSurfaceLost, op)
	}
	return nil
}

func (c *Canvas) face(size float64) text.Face {
	if f, ok := c.faces[size]; ok {
		return f
	}
	f := c.font.Face(size)
	c.faces[size] = f
	return f
}

// apply loads camera * entity into the context and starts a new path.
func (c *Canvas) apply(t document.Transform) {
	m := c.camera.Multiply(render.TransformMatrix(t))
	c.dc.ClearPath()
	c.dc.SetTransform(toMatrix(m))
}

func (c *Canvas) paint(style document.Style, lineLike bool) error {
	if style.Fill != nil && !lineLike {
		f := style.Fill
		c.dc.SetRGBA(f.R, f.G, f.B, f.A*style.Opacity)
		if err := c.dc.FillPreserve(); err != nil {
			return fmt.Errorf("%w: fill: %v", render.ErrOther, err)
		}
	}
	if style.Stroke != nil && style.StrokeWidth > 0 {
		s := style.Stroke
		c.dc.SetRGBA(s.R, s.G, s.B, s.A*style.Opacity)
		c.dc.SetLineWidth(style.StrokeWidth)
		c.dc.SetLineCap(lineCap(style.Cap))
		c.dc.SetLineJoin(lineJoin(style.Join))
		if len(style.Dash) > 0 {
			c.dc.SetDash(style.Dash...)
			c.dc.SetDashOffset(style.DashOffset)
		} else {
			c.dc.ClearDash()
		}
		if err := c.dc.StrokePreserve(); err != nil {
			return fmt.Errorf("%w: stroke: %v", render.ErrOther, err)
		}
	}
	c.dc.ClearPath()
	return nil
}

// toMatrix converts canvas order [a b c d e f] to gg's row form.
func toMatrix(m geom.Matrix2D) gg.Matrix {
	return gg.Matrix{
		A: m[0], B: m[2], C: m[4],
		D: m[1], E: m[3], F: m[5],
	}
}

func lineCap(c document.StrokeCap) gg.LineCap {
	switch c {
	case document.CapRound:
		return gg.LineCapRound
	case document.CapSquare:
		return gg.LineCapSquare
	default:
		return gg.LineCapButt
	}
}

func lineJoin(j document.StrokeJoin) gg.LineJoin {
	switch j {
	case document.JoinRound:
		return gg.LineJoinRound
	case document.JoinBevel:
		return gg.LineJoinBevel
	default:
		return gg.LineJoinMiter
	}
}

func traceShape(dc *gg.Context, shape document.Shape) {
	switch s := shape.(type) {
	case document.Rectangle:
		dc.DrawRectangle(0, 0, s.W, s.H)
	case document.Ellipse:
		dc.DrawEllipse(0, 0, s.RX, s.RY)
	default:
		tracePath(dc, render.ShapePath(shape))
	}
}

func tracePath(dc *gg.Context, path render.Path) {
	for _, cmd := range path {
		p := cmd.Points
		switch cmd.Op {
		case render.OpMoveTo:
			dc.MoveTo(p[0].X, p[0].Y)
		case render.OpLineTo:
			dc.LineTo(p[0].X, p[0].Y)
		case render.OpQuadTo:
			dc.QuadraticTo(p[0].X, p[0].Y, p[1].X, p[1].Y)
		case render.OpCubicTo:
			dc.CubicTo(p[0].X, p[0].Y, p[1].X, p[1].Y, p[2].X, p[2].Y)
		case render.OpClose:
			dc.ClosePath()
		}
	}
}

// Package command implements render.Port by recording a JSON draw command
// buffer that a browser host replays onto a Canvas2D context.
package command

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"sync"

	"github.com/momentum/momentum/internal/document"
	"github.com/momentum/momentum/internal/geom"
	"github.com/momentum/momentum/internal/render"
)

// Op names understood by hosts.
const (
	OpClear  = "clear"
	OpCamera = "camera"
	OpShape  = "shape"
	OpPath   = "path"
	OpText   = "text"
	OpImage  = "image"
	OpHandle = "handle"
)

// DrawCommand is a single drawing operation for the host to execute.
type DrawCommand struct {
	Op          string       `json:"op"`
	Shape       string       `json:"shape,omitempty"`
	Transform   []float64    `json:"transform,omitempty"` // [a, b, c, d, e, f] affine matrix
	Path        render.Path  `json:"path,omitempty"`
	Fill        string       `json:"fill,omitempty"`
	Stroke      string       `json:"stroke,omitempty"`
	StrokeWidth float64      `json:"strokeWidth,omitempty"`
	LineCap     string       `json:"lineCap,omitempty"`
	LineJoin    string       `json:"lineJoin,omitempty"`
	Dash        []float64    `json:"dash,omitempty"`
	DashOffset  float64      `json:"dashOffset,omitempty"`
	Opacity     float64      `json:"opacity,omitempty"`
	Text        string       `json:"text,omitempty"`
	Font        string       `json:"font,omitempty"`
	ImageID     string       `json:"imageId,omitempty"`
	Dest        *render.Rect `json:"dest,omitempty"`
	Width       float64      `json:"width,omitempty"`
	Height      float64      `json:"height,omitempty"`
}

// Recorder buffers the commands of the frame in flight and keeps the last
// completed frame for readers on other goroutines.
type Recorder struct {
	mu      sync.Mutex
	inFrame bool
	buf     []DrawCommand
	last    []DrawCommand
	frames  uint64
	images  map[render.ImageID]image.Config
}

var _ render.Port = (*Recorder)(nil)

func NewRecorder() *Recorder {
	return &Recorder{images: make(map[render.ImageID]image.Config)}
}

func (r *Recorder) BeginFrame(width, height int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: frame size %dx%d", render.ErrInvalidInput, width, height)
	}
	r.inFrame = true
	r.buf = append(r.buf[:0:0], DrawCommand{Op: OpClear, Width: float64(width), Height: float64(height)})
	return nil
}

func (r *Recorder) EndFrame() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.inFrame {
		return fmt.Errorf("%w: end without begin", render.ErrSurfaceLost)
	}
	r.inFrame = false
	r.last = r.buf
	r.buf = nil
	r.frames++
	return nil
}

func (r *Recorder) SetCamera(m geom.Matrix2D) error {
	return r.record(DrawCommand{Op: OpCamera, Transform: m.ToSlice()})
}

func (r *Recorder) DrawShape(t document.Transform, shape document.Shape, style document.Style) error {
	if shape == nil {
		return fmt.Errorf("%w: nil shape", render.ErrInvalidInput)
	}
	cmd := styled(style, shape.LineLike())
	cmd.Op = OpShape
	cmd.Shape = string(shape.Kind())
	cmd.Transform = render.TransformMatrix(t).ToSlice()
	cmd.Path = render.ShapePath(shape)
	return r.record(cmd)
}

func (r *Recorder) DrawPath(t document.Transform, path render.Path, style document.Style) error {
	if err := path.Validate(); err != nil {
		return err
	}
	cmd := styled(style, false)
	cmd.Op = OpPath
	cmd.Transform = render.TransformMatrix(t).ToSlice()
	cmd.Path = path
	return r.record(cmd)
}

func (r *Recorder) DrawText(t document.Transform, span render.TextSpan) (render.TextMetrics, error) {
	m, err := r.MeasureText(span)
	if err != nil {
		return m, err
	}
	return m, r.record(DrawCommand{
		Op:        OpText,
		Transform: render.TransformMatrix(t).ToSlice(),
		Text:      span.Text,
		Font:      font(span),
		Fill:      span.Color.CSS(1),
		Width:     m.Width,
		Height:    m.Height(),
	})
}

func (r *Recorder) MeasureText(span render.TextSpan) (render.TextMetrics, error) {
	if span.Size <= 0 {
		return render.TextMetrics{}, fmt.Errorf("%w: font size %v", render.ErrInvalidInput, span.Size)
	}
	return render.EstimateText(span), nil
}

// UploadImage decodes just the image header to learn its natural size.
func (r *Recorder) UploadImage(id render.ImageID, data []byte) error {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: image %s: %v", render.ErrUploadFailed, id, err)
	}
	r.mu.Lock()
	r.images[id] = cfg
	r.mu.Unlock()
	return nil
}

func (r *Recorder) DrawImage(id render.ImageID, dest render.Rect, t document.Transform, tint *document.Color) error {
	r.mu.Lock()
	cfg, ok := r.images[id]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: image %s not uploaded", render.ErrInvalidInput, id)
	}
	cmd := DrawCommand{
		Op:        OpImage,
		Transform: render.TransformMatrix(t).ToSlice(),
		ImageID:   string(id),
		Dest:      &dest,
		Width:     float64(cfg.Width),
		Height:    float64(cfg.Height),
		Opacity:   1,
	}
	if tint != nil {
		cmd.Fill = tint.CSS(1)
	}
	return r.record(cmd)
}

func (r *Recorder) DrawScaleHandle(h geom.ScaleHandle) error {
	cx, cy := h.Center()
	return r.record(DrawCommand{
		Op:          OpHandle,
		Transform:   geom.Translate(cx, cy).ToSlice(),
		Fill:        render.HandleFill.CSS(1),
		Stroke:      render.HandleStroke.CSS(1),
		StrokeWidth: render.HandleStrokeWidth,
		Width:       h.Size,
		Height:      h.Size,
	})
}

// LastFrame returns a copy of the most recently completed frame.
func (r *Recorder) LastFrame() []DrawCommand {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]DrawCommand, len(r.last))
	copy(out, r.last)
	return out
}

// Frames counts completed frames.
func (r *Recorder) Frames() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

// FrameJSON serializes the last completed frame.
func (r *Recorder) FrameJSON() (string, error) {
	return ToJSON(r.LastFrame())
}

func (r *Recorder) record(cmd DrawCommand) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.inFrame {
		return fmt.Errorf("%w: %s outside a frame", render.ErrSurfaceLost, cmd.Op)
	}
	r.buf = append(r.buf, cmd)
	return nil
}

// ToJSON serializes draw commands to JSON.
func ToJSON(commands []DrawCommand) (string, error) {
	if commands == nil {
		commands = []DrawCommand{}
	}
	data, err := json.Marshal(commands)
	if err != nil {
		return "[]", err
	}
	return string(data), nil
}

// styled folds the style opacity into the fill and stroke colors.
func styled(style document.Style, lineLike bool) DrawCommand {
	cmd := DrawCommand{
		StrokeWidth: style.StrokeWidth,
		LineCap:     string(style.Cap),
		LineJoin:    string(style.Join),
		Dash:        style.Dash,
		DashOffset:  style.DashOffset,
	}
	if style.Fill != nil && !lineLike {
		cmd.Fill = style.Fill.CSS(style.Opacity)
	}
	if style.Stroke != nil {
		cmd.Stroke = style.Stroke.CSS(style.Opacity)
	}
	return cmd
}

func font(span render.TextSpan) string {
	family := span.FontFamily
	if family == "" {
		family = "sans-serif"
	}
	weight := span.Weight
	if weight == 0 {
		weight = 400
	}
	return fmt.Sprintf("%d %gpx %s", weight, span.Size, family)
}

package engine

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/momentum/momentum/internal/document"
	"github.com/momentum/momentum/internal/geom"
	"github.com/momentum/momentum/internal/render"
)

type shapeCall struct {
	t     document.Transform
	shape document.Shape
	style document.Style
}

// fakePort records calls. When fail is set every call returns it.
type fakePort struct {
	fail      error
	begins    [][2]int
	ends      int
	shapes    []shapeCall
	handles   []geom.ScaleHandle
	onDraw    func()
	callOrder []string
}

var errBoom = errors.New("boom")

func (p *fakePort) BeginFrame(w, h int) error {
	p.begins = append(p.begins, [2]int{w, h})
	p.callOrder = append(p.callOrder, "begin")
	return p.fail
}

func (p *fakePort) EndFrame() error {
	p.ends++
	p.callOrder = append(p.callOrder, "end")
	return p.fail
}

func (p *fakePort) SetCamera(geom.Matrix2D) error { return p.fail }

func (p *fakePort) DrawShape(t document.Transform, s document.Shape, st document.Style) error {
	p.shapes = append(p.shapes, shapeCall{t, s, st})
	p.callOrder = append(p.callOrder, "shape")
	if p.onDraw != nil {
		p.onDraw()
	}
	return p.fail
}

func (p *fakePort) DrawPath(document.Transform, render.Path, document.Style) error { return p.fail }

func (p *fakePort) DrawText(_ document.Transform, span render.TextSpan) (render.TextMetrics, error) {
	return render.EstimateText(span), p.fail
}

func (p *fakePort) MeasureText(span render.TextSpan) (render.TextMetrics, error) {
	return render.EstimateText(span), p.fail
}

func (p *fakePort) UploadImage(render.ImageID, []byte) error { return p.fail }

func (p *fakePort) DrawImage(render.ImageID, render.Rect, document.Transform, *document.Color) error {
	return p.fail
}

func (p *fakePort) DrawScaleHandle(h geom.ScaleHandle) error {
	p.handles = append(p.handles, h)
	p.callOrder = append(p.callOrder, "handle")
	return p.fail
}

func (p *fakePort) reset() {
	*p = fakePort{fail: p.fail, onDraw: p.onDraw}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestApp(opts ...Option) *App {
	return New(append([]Option{WithLogger(quietLogger())}, opts...)...)
}

// entity fetches an entity from the app's world or fails the test.
func entityOf(t testing.TB, a *App, id document.EntityID) document.Entity {
	t.Helper()
	e, ok := a.world.Doc.Entity(id)
	if !ok {
		t.Fatalf("entity %d not found", id)
	}
	return *e
}

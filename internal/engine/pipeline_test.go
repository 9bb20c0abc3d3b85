package engine

import (
	"math"
	"slices"
	"testing"

	"github.com/momentum/momentum/internal/document"
	"github.com/momentum/momentum/internal/geom"
)

func TestClickSelectsAndEmptyClickClears(t *testing.T) {
	a := newTestApp()
	a.SendCreateRect(10, 20, 100, 80)
	a.RunFrame()

	a.SendPointerDown(60, 60)
	a.RunFrame()
	if got := a.SelectedEntities(); !slices.Equal(got, []document.EntityID{1}) {
		t.Fatalf("selection = %v, want [1]", got)
	}

	a.SendPointerDown(5, 5)
	a.RunFrame()
	if got := a.SelectedEntities(); len(got) != 0 {
		t.Errorf("selection = %v, want empty", got)
	}
}

func TestHandleBeatsShape(t *testing.T) {
	tests := []struct {
		name       string
		dpr        float64
		x, y, w, h float64
		clickX     float64
		clickY     float64
	}{
		{"dpr 1", 1, 200, 200, 150, 100, 200, 200},
		{"dpr 2", 2, 100, 100, 75, 50, 100, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestApp(WithCanvas(800, 600, tt.dpr))
			a.SendCreateRect(tt.x, tt.y, tt.w, tt.h)
			a.RunFrame()
			a.SetSelection([]document.EntityID{1})

			if h, ok := a.DetectHandle(tt.clickX, tt.clickY); !ok || h != geom.HandleTopLeft {
				t.Fatalf("DetectHandle = %v, %v; want top-left", h, ok)
			}

			res := a.SendPointerDownWithModifiers(tt.clickX, tt.clickY, false, false)
			if res.ClickedHandle == nil || *res.ClickedHandle != geom.HandleTopLeft {
				t.Fatalf("ClickedHandle = %v, want top-left", res.ClickedHandle)
			}
			a.RunFrame()

			if !a.IsScaling() {
				t.Error("pointer down on a handle should start scaling")
			}
			if got := a.SelectedEntities(); !slices.Equal(got, []document.EntityID{1}) {
				t.Errorf("selection changed to %v", got)
			}
		})
	}
}

func TestMoveScenario(t *testing.T) {
	a := newTestApp()
	a.SendCreateRect(10, 20, 100, 80)
	a.RunFrame()
	a.SendPointerDown(60, 60)
	a.RunFrame()

	a.SendMoveStart(100, 100)
	a.SendMoveUpdate(30, 30)
	a.RunFrame()
	if !a.IsMoving() {
		t.Fatal("move should be active")
	}
	if e := entityOf(t, a, 1); e.Transform.X != 40 || e.Transform.Y != 50 {
		t.Fatalf("position = (%v, %v), want (40, 50)", e.Transform.X, e.Transform.Y)
	}

	a.SendMoveUpdate(5, 5)
	a.RunFrame()
	if e := entityOf(t, a, 1); e.Transform.X != 15 || e.Transform.Y != 25 {
		t.Fatalf("position = (%v, %v), want (15, 25)", e.Transform.X, e.Transform.Y)
	}

	a.SendMoveEnd()
	a.SendMoveEnd()
	a.RunFrame()
	if a.IsMoving() {
		t.Error("move should have ended")
	}
}

func TestMoveAtHighDPRAddsPhysicalDelta(t *testing.T) {
	a := newTestApp(WithCanvas(800, 600, 2))
	a.SendCreateRect(10, 20, 100, 80)
	a.RunFrame()
	a.SendPointerDown(60, 60)
	a.SendMoveStart(60, 60)
	a.SendMoveUpdate(30, 30)
	a.RunFrame()

	if e := entityOf(t, a, 1); e.Transform.X != 70 || e.Transform.Y != 80 {
		t.Errorf("position = (%v, %v), want (70, 80)", e.Transform.X, e.Transform.Y)
	}
}

func TestAdditiveClicksUnionBounds(t *testing.T) {
	a := newTestApp()
	a.SendCreateRect(0, 0, 50, 50)
	a.SendCreateRect(100, 80, 40, 20)
	a.RunFrame()

	a.SendPointerDownWithModifiers(25, 25, true, false)
	a.SendPointerDownWithModifiers(120, 90, true, false)
	a.RunFrame()

	if got := a.SelectedEntities(); !slices.Equal(got, []document.EntityID{1, 2}) {
		t.Fatalf("selection = %v, want [1 2]", got)
	}

	first := a.world.Doc.Entities()[0]
	second := a.world.Doc.Entities()[1]
	want := first.Shape.Bounds(first.Transform).Union(second.Shape.Bounds(second.Transform))
	got, ok := a.SelectionBounds()
	if !ok || got != want {
		t.Errorf("SelectionBounds = %+v, want %+v", got, want)
	}
}

func TestAdditiveClickTogglesAndKeepsOnMiss(t *testing.T) {
	a := newTestApp()
	a.SendCreateRect(0, 0, 50, 50)
	a.SendCreateRect(100, 0, 50, 50)
	a.RunFrame()
	a.SendPointerDown(10, 10)
	a.SendPointerDownWithModifiers(110, 10, true, false)
	a.SendPointerDownWithModifiers(10, 10, true, false)
	a.RunFrame()
	if got := a.SelectedEntities(); !slices.Equal(got, []document.EntityID{2}) {
		t.Fatalf("selection = %v, want [2]", got)
	}

	a.SendPointerDownWithModifiers(500, 500, true, false)
	a.RunFrame()
	if got := a.SelectedEntities(); !slices.Equal(got, []document.EntityID{2}) {
		t.Errorf("additive miss cleared selection: %v", got)
	}
}

func TestOverlapResolvesToFirstInPaintOrder(t *testing.T) {
	a := newTestApp()
	a.SendCreateRect(0, 0, 100, 100)
	a.SendCreateRect(50, 50, 100, 100)
	a.RunFrame()
	a.SendPointerDown(75, 75)
	a.RunFrame()

	if got := a.SelectedEntities(); !slices.Equal(got, []document.EntityID{1}) {
		t.Errorf("selection = %v, want [1]", got)
	}
}

func TestHitboxOverrideIsUsed(t *testing.T) {
	doc := document.New()
	doc.CreateEntityWithHitbox(document.NewTransform(0, 0), document.DefaultStyle(), document.Rectangle{W: 100, H: 100}, document.NoHitbox{})
	doc.CreateEntityWithHitbox(document.NewTransform(300, 300), document.DefaultStyle(), document.Line{X2: 10}, document.HitCircle{Radius: 40})

	a := newTestApp(WithDocument(doc), WithCanvas(800, 600, 2))
	if _, ok := a.DetectEntity(50, 50); ok {
		t.Error("entity with NoHitbox should not be hit")
	}
	if id, ok := a.DetectEntity(300, 335); !ok || id != 2 {
		t.Errorf("DetectEntity = %v, %v; want 2", id, ok)
	}
}

func TestLineHitAtHighDPR(t *testing.T) {
	a := newTestApp(WithCanvas(800, 600, 2))
	a.SendCreateLine(10, 10, 110, 10)
	a.RunFrame()

	if _, ok := a.DetectEntity(60, 17); !ok {
		t.Error("point 7 CSS px from the line should hit")
	}
	if _, ok := a.DetectEntity(60, 19); ok {
		t.Error("point 9 CSS px from the line should miss")
	}
}

func TestCreateEvents(t *testing.T) {
	a := newTestApp()
	a.SendCreateEllipse(100, 100, 30, 20)
	a.SendCreateLine(10, 20, 60, 80)
	a.SendCreatePolygon(5, 5, []geom.Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 5, Y: 10}})
	a.SendCreateRect(1, 2, 3, 4)
	a.RunFrame()

	entities := a.world.Doc.Entities()
	if len(entities) != 4 {
		t.Fatalf("created %d entities, want 4", len(entities))
	}
	// Rectangles are created before ellipses within a tick.
	if entities[0].Shape.Kind() != document.ShapeRectangle || entities[1].Shape.Kind() != document.ShapeEllipse {
		t.Errorf("creation order = %s, %s", entities[0].Shape.Kind(), entities[1].Shape.Kind())
	}

	line := entities[2]
	if line.Transform.X != 10 || line.Transform.Y != 20 || line.Shape != (document.Line{X2: 50, Y2: 60}) {
		t.Errorf("line = %+v", line)
	}
	style := line.Style
	if style.Stroke == nil || *style.Stroke != document.RGBA(0.10, 0.12, 0.16, 1) || style.StrokeWidth != 2 || style.Opacity != 1 || style.Fill != nil {
		t.Errorf("default style = %+v", style)
	}
}

func TestScaleThroughHandleDrag(t *testing.T) {
	a := newTestApp()
	a.SendCreateRect(100, 100, 100, 50)
	a.RunFrame()
	a.SendPointerDown(150, 120)
	a.RunFrame()

	a.SendPointerDown(200, 150)
	a.SendScaleUpdate(50, 25)
	a.RunFrame()
	if e := entityOf(t, a, 1); e.Transform.ScaleX != 1.5 || e.Transform.ScaleY != 1.5 {
		t.Errorf("scale = (%v, %v), want (1.5, 1.5)", e.Transform.ScaleX, e.Transform.ScaleY)
	}

	a.SendScaleEnd()
	a.RunFrame()
	if a.IsScaling() {
		t.Error("scale should have ended")
	}
}

func TestExplicitScaleStart(t *testing.T) {
	a := newTestApp()
	a.SendCreateRect(0, 0, 100, 100)
	a.RunFrame()
	a.SendPointerDown(50, 50)
	a.SendScaleStart(geom.HandleRight, 100, 50)
	a.SendScaleUpdate(-50, 99)
	a.RunFrame()

	if e := entityOf(t, a, 1); e.Transform.ScaleX != 0.5 || e.Transform.ScaleY != 1 {
		t.Errorf("scale = (%v, %v), want (0.5, 1)", e.Transform.ScaleX, e.Transform.ScaleY)
	}
}

func TestCanvasAndDPRClamp(t *testing.T) {
	a := newTestApp()
	a.SetCanvasSize(0, -5)
	a.SetCanvasDPR(0.1)

	w, h := a.world.CanvasSize()
	if w != 1 || h != 1 {
		t.Errorf("canvas = %dx%d, want 1x1", w, h)
	}
	if a.world.DPR() != MinDPR {
		t.Errorf("dpr = %v, want %v", a.world.DPR(), MinDPR)
	}
}

func TestNonFiniteDPRFallsBackToOne(t *testing.T) {
	tests := []struct {
		name string
		dpr  float64
	}{
		{"nan", math.NaN()},
		{"+inf", math.Inf(1)},
		{"-inf", math.Inf(-1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestApp()
			a.SendCreateRect(0, 0, 50, 50)
			a.SetCanvasDPR(tt.dpr)
			a.RunFrame()

			if a.world.DPR() != 1 {
				t.Fatalf("dpr = %v, want 1", a.world.DPR())
			}
			if id, ok := a.DetectEntity(25, 25); !ok || id != 1 {
				t.Errorf("DetectEntity = %v, %v; want 1", id, ok)
			}
		})
	}
}

func TestStaleSelectionIsIgnored(t *testing.T) {
	a := newTestApp()
	a.SendCreateRect(0, 0, 10, 10)
	a.RunFrame()
	a.SetSelection([]document.EntityID{77})

	a.SendMoveStart(0, 0)
	a.SendMoveUpdate(10, 10)
	a.RunFrame()
	if a.IsMoving() {
		t.Error("move should not start on a stale selection")
	}
	if e := entityOf(t, a, 1); e.Transform.X != 0 {
		t.Errorf("entity moved to %v", e.Transform.X)
	}

	a.SendPointerDown(5, 5)
	a.RunFrame()
	if got := a.SelectedEntities(); !slices.Equal(got, []document.EntityID{1}) {
		t.Errorf("selection = %v, want [1]", got)
	}
}

func TestFramesCountWithoutRenderer(t *testing.T) {
	a := newTestApp()
	for range 3 {
		a.RunFrame()
	}
	if a.Frames() != 3 {
		t.Errorf("Frames = %d, want 3", a.Frames())
	}
}

func TestHandleHitRadiusScalesWithDPR(t *testing.T) {
	a := newTestApp(WithCanvas(800, 600, 2))
	a.SendCreateRect(100, 100, 100, 100)
	a.RunFrame()
	a.SetSelection([]document.EntityID{1})

	// Top-left handle centre is physical (200, 200); the hit floor is 12*2.
	if h, ok := a.DetectHandle(89, 100); !ok || h != geom.HandleTopLeft {
		t.Errorf("22px away: DetectHandle = %v, %v; want top-left", h, ok)
	}
	if _, ok := a.DetectHandle(87, 100); ok {
		t.Error("26px away should miss every handle")
	}
}

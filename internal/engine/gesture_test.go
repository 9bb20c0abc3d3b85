package engine

import (
	"testing"

	"github.com/momentum/momentum/internal/document"
	"github.com/momentum/momentum/internal/geom"
)

func gestureFixture() (*document.Document, *Selection, document.EntityID) {
	doc := document.New()
	id := doc.CreateEntity(document.NewTransform(10, 20), document.DefaultStyle(), document.Rectangle{W: 100, H: 50})
	sel := &Selection{}
	sel.Select(id)
	return doc, sel, id
}

func TestMoveRederivesFromSnapshot(t *testing.T) {
	doc, sel, id := gestureFixture()

	var g MoveGesture
	g.Start(doc, sel)
	g.Update(doc, 30, 30)
	g.Update(doc, 5, 5)

	e, _ := doc.Entity(id)
	if e.Transform.X != 15 || e.Transform.Y != 25 {
		t.Errorf("position = (%v, %v), want (15, 25)", e.Transform.X, e.Transform.Y)
	}
}

func TestMoveAddsPhysicalDelta(t *testing.T) {
	doc, sel, id := gestureFixture()

	var g MoveGesture
	g.Start(doc, sel)
	g.Update(doc, 60, 40)

	e, _ := doc.Entity(id)
	if e.Transform.X != 70 || e.Transform.Y != 60 {
		t.Errorf("position = (%v, %v), want (70, 60)", e.Transform.X, e.Transform.Y)
	}
}

func TestMoveWithoutSelectionIsNoop(t *testing.T) {
	doc, _, id := gestureFixture()

	var g MoveGesture
	g.Start(doc, &Selection{})
	if g.Active() {
		t.Fatal("move should not start without a selection")
	}
	g.Update(doc, 10, 10)
	if e, _ := doc.Entity(id); e.Transform.X != 10 {
		t.Errorf("entity moved without an active gesture")
	}
}

func TestGestureEndIsIdempotent(t *testing.T) {
	var m MoveGesture
	var s ScaleGesture
	m.End()
	m.End()
	s.End()
	s.End()
	if m.Active() || s.Active() {
		t.Error("gestures should be inactive")
	}
	if _, ok := s.Handle(); ok {
		t.Error("inactive scale gesture should report no handle")
	}
}

func TestScaleFactors(t *testing.T) {
	box := geom.BoundingBox{Width: 100, Height: 50}
	tests := []struct {
		handle geom.HandleType
		dx, dy float64
		fx, fy float64
	}{
		{geom.HandleBottomRight, 50, 25, 1.5, 1.5},
		{geom.HandleTopLeft, 50, 25, 0.5, 0.5},
		{geom.HandleTopLeft, -50, -25, 1.5, 1.5},
		{geom.HandleTopRight, 50, 25, 1.5, 0.5},
		{geom.HandleBottomLeft, 50, 25, 0.5, 1.5},
		{geom.HandleTop, 50, -25, 1, 1.5},
		{geom.HandleBottom, 50, 25, 1, 1.5},
		{geom.HandleLeft, -50, 25, 1.5, 1},
		{geom.HandleRight, 50, 25, 1.5, 1},
		{geom.HandleBottomRight, -1000, -1000, MinScaleFactor, MinScaleFactor},
		{geom.HandleTopLeft, 1000, 1000, MinScaleFactor, MinScaleFactor},
	}
	for _, tt := range tests {
		fx, fy := ScaleFactors(tt.handle, box, tt.dx, tt.dy)
		if fx != tt.fx || fy != tt.fy {
			t.Errorf("%v (%v, %v): factors = (%v, %v), want (%v, %v)", tt.handle, tt.dx, tt.dy, fx, fy, tt.fx, tt.fy)
		}
	}
}

func TestScaleFactorsDegenerateBox(t *testing.T) {
	fx, fy := ScaleFactors(geom.HandleBottomRight, geom.BoundingBox{Width: 0, Height: 0.5}, 1, 1)
	if fx != 2 || fy != 2 {
		t.Errorf("factors = (%v, %v), want (2, 2)", fx, fy)
	}
}

func TestScaleUsesInitialBounds(t *testing.T) {
	doc, sel, id := gestureFixture()

	var g ScaleGesture
	g.Start(doc, sel, geom.HandleBottomRight, 1)
	g.Update(doc, 100, 50)
	g.Update(doc, 100, 50)

	e, _ := doc.Entity(id)
	if e.Transform.ScaleX != 2 || e.Transform.ScaleY != 2 {
		t.Errorf("scale = (%v, %v), want (2, 2)", e.Transform.ScaleX, e.Transform.ScaleY)
	}
	if h, ok := g.Handle(); !ok || h != geom.HandleBottomRight {
		t.Errorf("Handle = %v, %v", h, ok)
	}

	g.End()
	g.Update(doc, 500, 500)
	if e, _ := doc.Entity(id); e.Transform.ScaleX != 2 {
		t.Error("update after End should be ignored")
	}
}

func TestScaleNeverInverts(t *testing.T) {
	doc, sel, id := gestureFixture()

	var g ScaleGesture
	g.Start(doc, sel, geom.HandleBottomRight, 1)
	g.Update(doc, -10000, -10000)

	e, _ := doc.Entity(id)
	if e.Transform.ScaleX < MinScaleFactor || e.Transform.ScaleY < MinScaleFactor {
		t.Errorf("scale = (%v, %v), must stay >= %v", e.Transform.ScaleX, e.Transform.ScaleY, MinScaleFactor)
	}
}

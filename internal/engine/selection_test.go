package engine

import (
	"slices"
	"testing"

	"github.com/momentum/momentum/internal/document"
	"github.com/momentum/momentum/internal/geom"
)

func TestSelectionOperations(t *testing.T) {
	var s Selection

	s.Select(3)
	s.Select(1)
	s.Select(3)
	if got := s.IDs(); !slices.Equal(got, []document.EntityID{3, 1}) {
		t.Fatalf("IDs = %v, want [3 1]", got)
	}

	s.Toggle(3)
	if s.IsSelected(3) {
		t.Error("Toggle should remove a selected id")
	}
	s.Toggle(5)
	if !s.IsSelected(5) {
		t.Error("Toggle should add an absent id")
	}

	s.Replace(9)
	if got := s.IDs(); !slices.Equal(got, []document.EntityID{9}) {
		t.Errorf("after Replace IDs = %v, want [9]", got)
	}

	s.Deselect(42)
	s.Deselect(9)
	s.Clear()
	if s.Len() != 0 {
		t.Errorf("Len after Clear = %d", s.Len())
	}
}

func TestSelectionIDsIsACopy(t *testing.T) {
	var s Selection
	s.Select(1)
	ids := s.IDs()
	ids[0] = 7
	if !s.IsSelected(1) {
		t.Error("mutating IDs() result changed the selection")
	}
}

func TestSelectionBoundsSkipsStaleIDs(t *testing.T) {
	doc := document.New()
	a := doc.CreateEntity(document.NewTransform(0, 0), document.DefaultStyle(), document.Rectangle{W: 10, H: 10})
	b := doc.CreateEntity(document.NewTransform(50, 40), document.DefaultStyle(), document.Line{X2: 20})

	var s Selection
	s.Select(99)
	if _, ok := SelectionBounds(doc, &s); ok {
		t.Fatal("bounds of only stale ids should not resolve")
	}

	s.Select(a)
	s.Select(b)
	got, ok := SelectionBounds(doc, &s)
	want := geom.BoundingBox{X: 0, Y: 0, Width: 70, Height: 40}
	if !ok || got != want {
		t.Errorf("SelectionBounds = %+v, %v; want %+v", got, ok, want)
	}
}

package engine

import (
	"slices"

	"github.com/momentum/momentum/internal/document"
	"github.com/momentum/momentum/internal/geom"
)

// Selection is a set of entity IDs that remembers insertion order for
// display. Membership is not validated against the document.
type Selection struct {
	ids []document.EntityID
}

func (s *Selection) IsSelected(id document.EntityID) bool {
	return slices.Contains(s.ids, id)
}

// Select adds id if it is not already present.
func (s *Selection) Select(id document.EntityID) {
	if !s.IsSelected(id) {
		s.ids = append(s.ids, id)
	}
}

func (s *Selection) Deselect(id document.EntityID) {
	if i := slices.Index(s.ids, id); i >= 0 {
		s.ids = slices.Delete(s.ids, i, i+1)
	}
}

func (s *Selection) Clear() {
	s.ids = s.ids[:0]
}

// Toggle adds id if absent, else removes it.
func (s *Selection) Toggle(id document.EntityID) {
	if s.IsSelected(id) {
		s.Deselect(id)
		return
	}
	s.ids = append(s.ids, id)
}

// Replace makes id the only selected entity.
func (s *Selection) Replace(id document.EntityID) {
	s.ids = append(s.ids[:0], id)
}

// Set replaces the selection with ids, dropping duplicates.
func (s *Selection) Set(ids []document.EntityID) {
	s.Clear()
	for _, id := range ids {
		s.Select(id)
	}
}

// IDs returns a copy of the selected IDs in insertion order.
func (s *Selection) IDs() []document.EntityID {
	return slices.Clone(s.ids)
}

func (s *Selection) Len() int {
	return len(s.ids)
}

// SelectionBounds returns the union of the CSS-space boxes of every
// selected entity that still exists. ok is false when none resolve.
func SelectionBounds(doc *document.Document, sel *Selection) (geom.BoundingBox, bool) {
	var acc geom.BoundsAccumulator
	for _, id := range sel.ids {
		e, ok := doc.Entity(id)
		if !ok {
			continue
		}
		acc.AddBox(e.Shape.Bounds(e.Transform))
	}
	return acc.Box(), !acc.Empty()
}

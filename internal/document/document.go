package document

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Document is an ordered collection of entities plus optional per-entity
// hitbox overrides. Iteration order is insertion order, which is also
// paint order.
type Document struct {
	entities []Entity
	index    map[EntityID]int
	hitboxes map[EntityID]Hitbox
	nextID   EntityID
}

// New returns an empty document whose first entity will get ID 1.
func New() *Document {
	return &Document{
		index:    make(map[EntityID]int),
		hitboxes: make(map[EntityID]Hitbox),
		nextID:   1,
	}
}

// CreateEntity appends an entity and returns its new ID.
func (d *Document) CreateEntity(t Transform, style Style, shape Shape) EntityID {
	id := d.nextID
	d.nextID++
	d.index[id] = len(d.entities)
	d.entities = append(d.entities, Entity{ID: id, Transform: t, Style: style, Shape: shape})
	return id
}

// CreateEntityWithHitbox appends an entity and registers hb as its override.
func (d *Document) CreateEntityWithHitbox(t Transform, style Style, shape Shape, hb Hitbox) EntityID {
	id := d.CreateEntity(t, style, shape)
	d.SetHitbox(id, hb)
	return id
}

// SetHitbox replaces or inserts the override for id.
func (d *Document) SetHitbox(id EntityID, hb Hitbox) {
	if hb == nil {
		delete(d.hitboxes, id)
		return
	}
	d.hitboxes[id] = hb
}

// Hitbox returns the override for id, if any. Callers derive the default
// from the shape when ok is false.
func (d *Document) Hitbox(id EntityID) (Hitbox, bool) {
	hb, ok := d.hitboxes[id]
	return hb, ok
}

// EffectiveHitbox returns the override for e or the derived default.
func (d *Document) EffectiveHitbox(e *Entity) Hitbox {
	if hb, ok := d.hitboxes[e.ID]; ok {
		return hb
	}
	return DefaultHitbox(e.Shape)
}

// RemoveHitbox drops the override for id so the default applies again.
func (d *Document) RemoveHitbox(id EntityID) {
	delete(d.hitboxes, id)
}

// Entity returns a mutable reference to the entity with the given id.
// The pointer is invalidated by the next CreateEntity call.
func (d *Document) Entity(id EntityID) (*Entity, bool) {
	i, ok := d.index[id]
	if !ok {
		return nil, false
	}
	return &d.entities[i], true
}

// Entities returns the entities in paint order. Callers must not modify
// the returned slice.
func (d *Document) Entities() []Entity {
	return d.entities
}

// Len returns the number of entities.
func (d *Document) Len() int {
	return len(d.entities)
}

// NextID returns the ID the next created entity will receive.
func (d *Document) NextID() EntityID {
	return d.nextID
}

// Clone returns a deep copy.
func (d *Document) Clone() *Document {
	out := &Document{
		entities: make([]Entity, len(d.entities)),
		index:    make(map[EntityID]int, len(d.index)),
		hitboxes: make(map[EntityID]Hitbox, len(d.hitboxes)),
		nextID:   d.nextID,
	}
	for i, e := range d.entities {
		e.Style = e.Style.Clone()
		out.entities[i] = e
		out.index[e.ID] = i
	}
	for id, hb := range d.hitboxes {
		out.hitboxes[id] = hb
	}
	return out
}

type hitboxEntry struct {
	ID     EntityID        `json:"id"`
	Hitbox json.RawMessage `json:"hitbox"`
}

type documentJSON struct {
	NextID   EntityID      `json:"nextId"`
	Entities []Entity      `json:"entities"`
	Hitboxes []hitboxEntry `json:"hitboxes,omitempty"`
}

// MarshalJSON writes entities in paint order and overrides sorted by id.
func (d *Document) MarshalJSON() ([]byte, error) {
	out := documentJSON{NextID: d.nextID, Entities: d.entities}
	if out.Entities == nil {
		out.Entities = []Entity{}
	}

	ids := make([]EntityID, 0, len(d.hitboxes))
	for id := range d.hitboxes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		raw, err := MarshalHitbox(d.hitboxes[id])
		if err != nil {
			return nil, fmt.Errorf("hitbox %d: %w", id, err)
		}
		out.Hitboxes = append(out.Hitboxes, hitboxEntry{ID: id, Hitbox: raw})
	}
	return json.Marshal(out)
}

// UnmarshalJSON rebuilds the document. The id counter never falls at or
// below an existing entity id.
func (d *Document) UnmarshalJSON(data []byte) error {
	var in documentJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	fresh := New()
	for _, e := range in.Entities {
		if _, dup := fresh.index[e.ID]; dup || e.ID == 0 {
			return fmt.Errorf("invalid entity id %d", e.ID)
		}
		fresh.index[e.ID] = len(fresh.entities)
		fresh.entities = append(fresh.entities, e)
		if e.ID >= fresh.nextID {
			fresh.nextID = e.ID + 1
		}
	}
	if in.NextID > fresh.nextID {
		fresh.nextID = in.NextID
	}
	for _, entry := range in.Hitboxes {
		hb, err := UnmarshalHitbox(entry.Hitbox)
		if err != nil {
			return fmt.Errorf("hitbox %d: %w", entry.ID, err)
		}
		fresh.hitboxes[entry.ID] = hb
	}

	*d = *fresh
	return nil
}

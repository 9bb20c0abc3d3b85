package geom

import (
	"math"
	"testing"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestUnionKeepsDegenerateBoxes(t *testing.T) {
	line := BoundingBox{X: 10, Y: 50, Width: 100, Height: 0}
	rect := BoundingBox{X: 0, Y: 0, Width: 20, Height: 20}

	got := rect.Union(line)
	want := BoundingBox{X: 0, Y: 0, Width: 110, Height: 50}
	if got != want {
		t.Errorf("Union = %+v, want %+v", got, want)
	}
}

func TestBoundsAccumulator(t *testing.T) {
	var acc BoundsAccumulator
	if !acc.Empty() || acc.Box() != (BoundingBox{}) {
		t.Fatalf("zero accumulator should be empty, got %+v", acc.Box())
	}

	acc.AddPoint(5, 5)
	acc.AddBox(BoundingBox{X: -5, Y: 10, Width: 5, Height: 5})
	want := BoundingBox{X: -5, Y: 5, Width: 10, Height: 10}
	if got := acc.Box(); got != want {
		t.Errorf("Box = %+v, want %+v", got, want)
	}
}

func TestGenerateHandles(t *testing.T) {
	box := BoundingBox{X: 200, Y: 200, Width: 150, Height: 100}
	handles := GenerateHandles(box, 10)

	centers := map[HandleType][2]float64{
		HandleTopLeft:     {200, 200},
		HandleTopRight:    {350, 200},
		HandleBottomLeft:  {200, 300},
		HandleBottomRight: {350, 300},
		HandleTop:         {275, 200},
		HandleRight:       {350, 250},
		HandleBottom:      {275, 300},
		HandleLeft:        {200, 250},
	}

	var acc BoundsAccumulator
	for i, h := range handles {
		if h.Type != HandleTypes[i] {
			t.Errorf("handle %d type = %v, want %v", i, h.Type, HandleTypes[i])
		}
		if h.Size != 10 {
			t.Errorf("handle %v size = %v, want 10", h.Type, h.Size)
		}
		cx, cy := h.Center()
		want := centers[h.Type]
		if !approx(cx, want[0]) || !approx(cy, want[1]) {
			t.Errorf("handle %v center = (%v, %v), want %v", h.Type, cx, cy, want)
		}
		acc.AddBox(BoundingBox{X: h.X, Y: h.Y, Width: h.Size, Height: h.Size})
	}

	if got, want := acc.Box(), box.Expand(5); got != want {
		t.Errorf("handle extent = %+v, want %+v", got, want)
	}
}

func TestHandleTypeWireValues(t *testing.T) {
	tests := []struct {
		wire uint8
		want HandleType
	}{
		{0, HandleTopLeft},
		{1, HandleTopRight},
		{2, HandleBottomLeft},
		{3, HandleBottomRight},
		{4, HandleTop},
		{5, HandleRight},
		{6, HandleBottom},
		{7, HandleLeft},
	}
	for _, tt := range tests {
		got, err := ParseHandleType(tt.wire)
		if err != nil {
			t.Fatalf("ParseHandleType(%d): %v", tt.wire, err)
		}
		if got != tt.want {
			t.Errorf("ParseHandleType(%d) = %v, want %v", tt.wire, got, tt.want)
		}
	}

	if _, err := ParseHandleType(8); err == nil {
		t.Error("ParseHandleType(8) should fail")
	}
}

func TestHandleHitRadius(t *testing.T) {
	if got := HandleHitRadius(10, 1); got != 12 {
		t.Errorf("HandleHitRadius(10, 1) = %v, want 12", got)
	}
	if got := HandleHitRadius(20, 2); got != 24 {
		t.Errorf("HandleHitRadius(20, 2) = %v, want 24", got)
	}
	if got := HandleHitRadius(40, 1); got != 30 {
		t.Errorf("HandleHitRadius(40, 1) = %v, want 30", got)
	}
}

func TestFromTransform(t *testing.T) {
	m := FromTransform(10, 20, math.Pi/2, 2, 3)
	x, y := m.TransformPoint(1, 0)
	if !approx(x, 10) || !approx(y, 22) {
		t.Errorf("TransformPoint(1, 0) = (%v, %v), want (10, 22)", x, y)
	}

	inv := m.Invert()
	px, py := inv.TransformPoint(x, y)
	if !approx(px, 1) || !approx(py, 0) {
		t.Errorf("inverse round trip = (%v, %v), want (1, 0)", px, py)
	}
}

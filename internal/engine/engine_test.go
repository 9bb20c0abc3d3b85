package engine

import (
	"encoding/json"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/momentum/momentum/internal/document"
)

func TestReentrantMutationIsDeferred(t *testing.T) {
	port := &fakePort{}
	a := newTestApp(WithRenderer(port))

	calls := 0
	port.onDraw = func() {
		calls++
		if calls == 1 {
			a.SendCreateRect(100, 100, 10, 10)
			a.SetCanvasDPR(2)
			if a.RunFrame() {
				t.Error("nested RunFrame should refuse to run")
			}
		}
	}

	a.SendCreateRect(0, 0, 10, 10)
	a.RunFrame()
	if a.world.Doc.Len() != 1 {
		t.Fatalf("deferred mutation applied mid-tick: %d entities", a.world.Doc.Len())
	}

	a.RunFrame()
	if a.world.Doc.Len() != 2 {
		t.Fatalf("deferred create not applied on next tick: %d entities", a.world.Doc.Len())
	}
	if a.world.DPR() != 2 {
		t.Errorf("deferred dpr = %v, want 2", a.world.DPR())
	}
}

func TestQueriesDuringTickSeePreviousFrame(t *testing.T) {
	port := &fakePort{}
	a := newTestApp(WithRenderer(port))
	a.SendCreateRect(0, 0, 10, 10)
	a.RunFrame()
	a.SetSelection([]document.EntityID{1})

	var (
		inside []document.EntityID
		doc    *document.Document
	)
	port.onDraw = func() {
		inside = a.SelectedEntities()
		doc = a.Snapshot()
	}
	a.RunFrame()

	if !slices.Equal(inside, []document.EntityID{1}) {
		t.Errorf("selection inside tick = %v, want [1]", inside)
	}
	if doc == nil || doc.Len() != 1 {
		t.Errorf("snapshot inside tick = %v", doc)
	}
}

func TestQueriesFromOtherGoroutinesStayConsistent(t *testing.T) {
	port := &fakePort{}
	a := newTestApp(WithRenderer(port))
	a.SendCreateRect(0, 0, 100, 100)
	a.RunFrame()
	a.SetSelection([]document.EntityID{1})
	port.onDraw = func() { time.Sleep(50 * time.Microsecond) }

	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		for {
			select {
			case <-done:
				return
			default:
				a.RunFrame()
			}
		}
	}()

	var emptySel, emptyRes int
	for range 500 {
		if got := a.SelectedEntities(); !slices.Equal(got, []document.EntityID{1}) {
			emptySel++
		}
		res := a.SendPointerDownWithModifiers(50, 50, false, false)
		if !res.EntitySelected || res.Entity == nil || *res.Entity != 1 {
			emptyRes++
		}
		if a.Snapshot() == nil {
			t.Fatal("snapshot returned nil")
		}
	}
	close(done)
	<-stopped

	if emptySel != 0 || emptyRes != 0 {
		t.Errorf("inconsistent reads: selection %d/500, pointer results %d/500", emptySel, emptyRes)
	}
}

func TestConcurrentSendersAreNotDropped(t *testing.T) {
	a := newTestApp()
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.SendCreateRect(float64(i), 0, 1, 1)
		}()
	}

	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		for {
			select {
			case <-done:
				return
			default:
				a.RunFrame()
			}
		}
	}()
	wg.Wait()
	close(done)
	<-stopped

	// Two ticks: one to flush deferred sends, one to drain the queue.
	a.RunFrame()
	a.RunFrame()
	if got := a.Snapshot().Len(); got != 50 {
		t.Errorf("entities = %d, want 50", got)
	}
}

func TestPointerDownResultReportsEntity(t *testing.T) {
	a := newTestApp()
	a.SendCreateRect(0, 0, 10, 10)
	a.RunFrame()

	res := a.SendPointerDownWithModifiers(5, 5, false, false)
	if !res.EntitySelected || res.Entity == nil || *res.Entity != 1 || res.ClickedHandle != nil {
		t.Errorf("result = %+v", res)
	}

	miss := a.SendPointerDownWithModifiers(50, 50, false, false)
	if miss.EntitySelected || miss.ClickedHandle != nil {
		t.Errorf("miss result = %+v", miss)
	}
}

func TestDocumentJSONAndLoad(t *testing.T) {
	a := newTestApp()
	a.LoadSampleDocument()
	a.SetSelection([]document.EntityID{1})

	data, err := a.DocumentJSON()
	if err != nil {
		t.Fatal(err)
	}
	doc := document.New()
	if err := json.Unmarshal(data, doc); err != nil {
		t.Fatal(err)
	}
	if doc.Len() != document.NewSampleDocument().Len() {
		t.Errorf("round trip lost entities: %d", doc.Len())
	}

	a.LoadDocument(document.New())
	if len(a.SelectedEntities()) != 0 {
		t.Error("LoadDocument should clear the selection")
	}
	if got := a.SelectionJSON(); got != "[]" {
		t.Errorf("SelectionJSON = %s", got)
	}
}

func TestSnapshotIsIndependent(t *testing.T) {
	a := newTestApp()
	a.SendCreateRect(0, 0, 10, 10)
	a.RunFrame()

	snap := a.Snapshot()
	e, _ := snap.Entity(1)
	e.Transform.X = 500

	if got := entityOf(t, a, 1); got.Transform.X != 0 {
		t.Error("snapshot shares state with the engine")
	}
}

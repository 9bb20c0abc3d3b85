package project

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"

	"github.com/momentum/momentum/internal/auth"
	"github.com/momentum/momentum/internal/document"
	"github.com/momentum/momentum/internal/export"
	"github.com/momentum/momentum/internal/storage"
)

func newTestService() (*Service, *storage.Memory) {
	store := storage.NewMemory(storage.Options{})
	return NewService(store, 1024, slog.New(slog.NewTextHandler(io.Discard, nil))), store
}

func sampleJSON(t *testing.T) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(document.NewSampleDocument())
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestServiceLifecycle(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService()

	p, err := s.Create(ctx, "Poster", "user_a")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(p.ID, "proj_") || p.Revision != 1 || len(p.Thumbnails) != 0 {
		t.Fatalf("created = %+v", p)
	}

	if _, err := s.Get(ctx, p.ID, "user_b"); !errors.Is(err, ErrForbidden) {
		t.Errorf("Get by stranger err = %v", err)
	}
	if _, err := s.Get(ctx, "proj_nope", "user_a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get missing err = %v", err)
	}

	saved, err := s.SaveDocument(ctx, p.ID, "user_a", sampleJSON(t), p.Revision)
	if err != nil {
		t.Fatal(err)
	}
	if saved.Revision != 2 || len(saved.Thumbnails) != 1 {
		t.Errorf("saved = %+v", saved)
	}

	if _, err := s.SaveDocument(ctx, p.ID, "user_a", sampleJSON(t), 1); !errors.Is(err, ErrConflict) {
		t.Errorf("stale save err = %v", err)
	}
	if _, err := s.SaveDocument(ctx, p.ID, "user_a", json.RawMessage(`{"entities":[{"id":0}]}`), 2); !errors.Is(err, ErrInvalidDocument) {
		t.Errorf("invalid document err = %v", err)
	}

	thumb, err := s.Thumbnail(ctx, p.ID, "user_a")
	if err != nil {
		t.Fatal(err)
	}
	img, err := png.Decode(bytes.NewReader(thumb))
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != ThumbnailWidth || b.Dy() != ThumbnailHeight {
		t.Errorf("thumbnail size = %v", b)
	}

	list, err := s.List(ctx, "user_a")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].ID != p.ID {
		t.Errorf("list = %+v", list)
	}
	if others, _ := s.List(ctx, "user_b"); len(others) != 0 {
		t.Errorf("stranger list = %+v", others)
	}

	if err := s.Delete(ctx, p.ID, "user_b"); !errors.Is(err, ErrForbidden) {
		t.Errorf("Delete by stranger err = %v", err)
	}
	if err := s.Delete(ctx, p.ID, "user_a"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(ctx, p.ID, "user_a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete err = %v", err)
	}
}

func TestRender(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService()
	p, err := s.Create(ctx, "Render", "user_a")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.SaveDocument(ctx, p.ID, "user_a", sampleJSON(t), p.Revision); err != nil {
		t.Fatal(err)
	}

	data, err := s.Render(ctx, p.ID, "user_a", export.Options{Width: 200, Height: 100, DPR: 2})
	if err != nil {
		t.Fatal(err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 400 || b.Dy() != 200 {
		t.Errorf("render size = %v", b)
	}

	if _, err := s.Render(ctx, p.ID, "user_a", export.Options{Width: 1000, Height: 1000, DPR: 2}); !errors.Is(err, export.ErrInvalidSize) {
		t.Errorf("oversized render err = %v", err)
	}
}

func TestStoreDocumentCreatesOnFirstSave(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService()

	if _, _, err := s.LoadDocument(ctx, "proj_playground"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("LoadDocument missing err = %v", err)
	}

	rev, err := s.StoreDocument(ctx, "proj_playground", "Playground", "", document.NewSampleDocument(), 0)
	if err != nil {
		t.Fatal(err)
	}
	doc, loadedRev, err := s.LoadDocument(ctx, "proj_playground")
	if err != nil {
		t.Fatal(err)
	}
	if loadedRev != rev || doc.Len() != document.NewSampleDocument().Len() {
		t.Errorf("loaded rev %d (want %d), %d entities", loadedRev, rev, doc.Len())
	}

	if _, err := s.StoreDocument(ctx, "proj_playground", "Playground", "", doc, 0); !errors.Is(err, ErrConflict) {
		t.Errorf("stale StoreDocument err = %v", err)
	}
}

func newRouter(s *Service, userID string) http.Handler {
	r := mux.NewRouter()
	api := r.PathPrefix("/api/projects").Subrouter()
	api.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(auth.WithUserID(req.Context(), userID)))
		})
	})
	NewHandler(s).Routes(api)
	return r
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(data)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, rd))
	return rec
}

func TestHandlerRoutes(t *testing.T) {
	s, _ := newTestService()
	owner := newRouter(s, "user_a")
	stranger := newRouter(s, "user_b")

	rec := do(t, owner, http.MethodPost, "/api/projects", createRequest{Name: "Flyer"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create = %d: %s", rec.Code, rec.Body)
	}
	var p Project
	if err := json.NewDecoder(rec.Body).Decode(&p); err != nil {
		t.Fatal(err)
	}
	base := "/api/projects/" + p.ID

	tests := []struct {
		name   string
		router http.Handler
		method string
		path   string
		body   any
		want   int
	}{
		{"create without name", owner, http.MethodPost, "/api/projects", createRequest{}, http.StatusBadRequest},
		{"list", owner, http.MethodGet, "/api/projects", nil, http.StatusOK},
		{"get", owner, http.MethodGet, base, nil, http.StatusOK},
		{"get forbidden", stranger, http.MethodGet, base, nil, http.StatusForbidden},
		{"get missing", owner, http.MethodGet, "/api/projects/proj_nope", nil, http.StatusNotFound},
		{"thumbnail before save", owner, http.MethodGet, base + "/thumbnail.png", nil, http.StatusNotFound},
		{"save", owner, http.MethodPut, base + "/document", saveRequest{Document: sampleJSON(t), Revision: 1}, http.StatusOK},
		{"save stale", owner, http.MethodPut, base + "/document", saveRequest{Document: sampleJSON(t), Revision: 1}, http.StatusConflict},
		{"save invalid", owner, http.MethodPut, base + "/document", saveRequest{Document: json.RawMessage(`[1]`), Revision: 2}, http.StatusBadRequest},
		{"document", owner, http.MethodGet, base + "/document", nil, http.StatusOK},
		{"render", owner, http.MethodGet, base + "/render.png?w=120&h=90&dpr=2", nil, http.StatusOK},
		{"render bad dpr", owner, http.MethodGet, base + "/render.png?dpr=x", nil, http.StatusBadRequest},
		{"thumbnail", owner, http.MethodGet, base + "/thumbnail.png", nil, http.StatusOK},
		{"delete forbidden", stranger, http.MethodDelete, base, nil, http.StatusForbidden},
		{"delete", owner, http.MethodDelete, base, nil, http.StatusNoContent},
		{"get deleted", owner, http.MethodGet, base, nil, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, tt.router, tt.method, tt.path, tt.body)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.want, rec.Body)
			}
			if tt.want == http.StatusOK && strings.Contains(tt.path, ".png") {
				if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
					t.Errorf("content type = %q", ct)
				}
			}
		})
	}
}

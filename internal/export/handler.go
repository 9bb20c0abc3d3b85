package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/momentum/momentum/internal/document"
)

const maxDocumentSize = 8 << 20 // 8MB

type Handler struct {
	maxSize int
}

func NewHandler(maxSize int) *Handler {
	return &Handler{maxSize: maxSize}
}

// RenderPNG handles POST /api/export/png?w=&h=&dpr=&select=1,2 with a
// document JSON body.
func (h *Handler) RenderPNG(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxDocumentSize)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "request too large", http.StatusBadRequest)
		return
	}

	doc := document.New()
	if err := json.Unmarshal(body, doc); err != nil {
		http.Error(w, "invalid document: "+err.Error(), http.StatusBadRequest)
		return
	}

	opts, err := ParseQuery(r, h.maxSize)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	data, err := PNG(doc, opts)
	if err != nil {
		if errors.Is(err, ErrInvalidSize) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		slog.Error("export png failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}

// ParseQuery reads w, h, dpr and select from the URL. Size defaults to
// 800x600 at DPR 1.
func ParseQuery(r *http.Request, maxSize int) (Options, error) {
	q := r.URL.Query()
	opts := Options{Width: 800, Height: 600, DPR: 1, MaxSize: maxSize}

	var err error
	if v := q.Get("w"); v != "" {
		if opts.Width, err = strconv.Atoi(v); err != nil {
			return opts, fmt.Errorf("invalid w: %q", v)
		}
	}
	if v := q.Get("h"); v != "" {
		if opts.Height, err = strconv.Atoi(v); err != nil {
			return opts, fmt.Errorf("invalid h: %q", v)
		}
	}
	if v := q.Get("dpr"); v != "" {
		if opts.DPR, err = strconv.ParseFloat(v, 64); err != nil {
			return opts, fmt.Errorf("invalid dpr: %q", v)
		}
	}
	if v := q.Get("select"); v != "" {
		if opts.Selection, err = ParseSelection(v); err != nil {
			return opts, err
		}
	}
	return opts, nil
}

// ParseSelection parses a comma separated list of entity ids.
func ParseSelection(s string) ([]document.EntityID, error) {
	var ids []document.EntityID
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.ParseUint(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid entity id %q", part)
		}
		ids = append(ids, document.EntityID(n))
	}
	return ids, nil
}

package asset

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/momentum/momentum/internal/storage"
	"github.com/momentum/momentum/internal/typeid"
)

const maxUploadSize = 10 << 20 // 10MB

// UploadResponse is returned from the upload endpoint.
type UploadResponse struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Type   string `json:"type"`
	Name   string `json:"name"`
}

// Handler stores images as blobs and serves them back.
type Handler struct {
	store storage.Store
}

func NewHandler(store storage.Store) *Handler {
	return &Handler{store: store}
}

var accepted = []string{"image/png", "image/jpeg"}

// Upload handles POST /assets/upload (multipart form with "file" field).
// JPEGs are re-encoded as PNG.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	img, name, status, err := readImage(w, r)
	if err != nil {
		http.Error(w, err.Error(), status)
		return
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		slog.Error("encode png", "error", err)
		http.Error(w, "failed to encode image", http.StatusInternalServerError)
		return
	}

	blobID := typeid.NewBlobID()
	switch err := h.store.PutBlob(r.Context(), storage.BlobID(blobID), buf.Bytes()); {
	case errors.Is(err, storage.ErrQuotaExceeded):
		http.Error(w, "storage quota exceeded", http.StatusRequestEntityTooLarge)
		return
	case err != nil:
		slog.Error("store asset", "error", err)
		http.Error(w, "failed to save file", http.StatusInternalServerError)
		return
	}

	size := img.Bounds().Size()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(UploadResponse{
		ID:     blobID,
		URL:    fmt.Sprintf("/assets/%s", blobID),
		Width:  size.X,
		Height: size.Y,
		Type:   "png",
		Name:   name,
	})
}

// readImage pulls the "file" part out of a size-limited multipart body
// and decodes it. The returned status applies when err is non-nil.
func readImage(w http.ResponseWriter, r *http.Request) (image.Image, string, int, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		return nil, "", http.StatusBadRequest, errors.New("file too large (max 10MB)")
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, "", http.StatusBadRequest, errors.New("missing file field")
	}
	defer file.Close()

	ct := header.Header.Get("Content-Type")
	if !slices.ContainsFunc(accepted, func(t string) bool { return strings.HasPrefix(ct, t) }) {
		return nil, "", http.StatusBadRequest, errors.New("only PNG and JPEG images are supported")
	}

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, "", http.StatusBadRequest, fmt.Errorf("invalid image: %v", err)
	}
	return img, header.Filename, 0, nil
}

// Serve handles GET /assets/{blobId}.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSuffix(mux.Vars(r)["blobId"], ".png")
	if err := typeid.Validate(id, typeid.PrefixBlob); err != nil {
		http.Error(w, "invalid asset id", http.StatusBadRequest)
		return
	}

	data, ok, err := h.store.GetBlob(r.Context(), storage.BlobID(id))
	if err != nil {
		slog.Error("load asset", "error", err, "id", id)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !ok {
		http.NotFound(w, r)
		return
	}

	// Blob ids are never reused, so the bytes are immutable.
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}

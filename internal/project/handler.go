package project

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/momentum/momentum/internal/auth"
	"github.com/momentum/momentum/internal/export"
)

const maxDocumentSize = 8 << 20 // 8MB

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createRequest struct {
	Name string `json:"name"`
}

type saveRequest struct {
	Document json.RawMessage `json:"document"`
	Revision int64           `json:"revision"`
}

// Routes registers the project API on r. Every route expects an
// authenticated user in the request context.
func (h *Handler) Routes(r *mux.Router) {
	r.HandleFunc("", h.List).Methods(http.MethodGet)
	r.HandleFunc("", h.Create).Methods(http.MethodPost)
	r.HandleFunc("/{projectId}", h.Get).Methods(http.MethodGet)
	r.HandleFunc("/{projectId}", h.Delete).Methods(http.MethodDelete)
	r.HandleFunc("/{projectId}/document", h.GetDocument).Methods(http.MethodGet)
	r.HandleFunc("/{projectId}/document", h.SaveDocument).Methods(http.MethodPut)
	r.HandleFunc("/{projectId}/render.png", h.Render).Methods(http.MethodGet)
	r.HandleFunc("/{projectId}/thumbnail.png", h.Thumbnail).Methods(http.MethodGet)
}

// scope returns the caller and the {projectId} route variable.
func scope(r *http.Request) (userID, projectID string) {
	return auth.UserIDFromContext(r.Context()), mux.Vars(r)["projectId"]
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid request body"))
		return
	}

	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("name is required"))
		return
	}

	project, err := h.service.Create(r.Context(), req.Name, userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, project)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID, projectID := scope(r)

	project, err := h.service.Get(r.Context(), projectID, userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, project)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	projects, err := h.service.List(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, projects)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, projectID := scope(r)

	if err := h.service.Delete(r.Context(), projectID, userID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	userID, projectID := scope(r)

	doc, err := h.service.Document(r.Context(), projectID, userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(doc)
}

func (h *Handler) SaveDocument(w http.ResponseWriter, r *http.Request) {
	userID, projectID := scope(r)

	var req saveRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxDocumentSize)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid request body"))
		return
	}

	project, err := h.service.SaveDocument(r.Context(), projectID, userID, req.Document, req.Revision)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, project)
}

func (h *Handler) Render(w http.ResponseWriter, r *http.Request) {
	userID, projectID := scope(r)

	opts, err := export.ParseQuery(r, h.service.renderMaxSize)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	data, err := h.service.Render(r.Context(), projectID, userID, opts)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writePNG(w, data)
}

func (h *Handler) Thumbnail(w http.ResponseWriter, r *http.Request) {
	userID, projectID := scope(r)

	data, err := h.service.Thumbnail(r.Context(), projectID, userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writePNG(w, data)
}

func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrNoThumbnail):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, ErrForbidden):
		writeJSON(w, http.StatusForbidden, errorBody("forbidden"))
	case errors.Is(err, ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody("revision conflict"))
	case errors.Is(err, ErrInvalidDocument), errors.Is(err, export.ErrInvalidSize):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	default:
		slog.Error("service error", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

func writePNG(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

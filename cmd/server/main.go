package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/momentum/momentum/internal/asset"
	"github.com/momentum/momentum/internal/auth"
	"github.com/momentum/momentum/internal/config"
	"github.com/momentum/momentum/internal/document"
	"github.com/momentum/momentum/internal/export"
	mw "github.com/momentum/momentum/internal/middleware"
	"github.com/momentum/momentum/internal/project"
	"github.com/momentum/momentum/internal/session"
	"github.com/momentum/momentum/internal/storage"
)

// Playground project allows anonymous access
const playgroundProjectID = "proj_playground"

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Level()})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(ctx, storage.Options{
		Driver:      cfg.StorageDriver,
		DatabaseURL: cfg.DatabaseURL,
		SQLitePath:  cfg.SQLitePath,
		BlobQuota:   cfg.BlobQuotaBytes,
	})
	if err != nil {
		return fmt.Errorf("open %s storage: %w", cfg.StorageDriver, err)
	}
	defer store.Close()

	if err := store.Migrate(ctx, 0, storage.CurrentSchemaVersion); err != nil {
		return fmt.Errorf("migrate storage: %w", err)
	}

	authService := auth.NewService(store, cfg.JWTSecret)
	projects := project.NewService(store, cfg.RenderMaxSize, slog.Default())

	hub := session.NewHub(
		func(ctx context.Context, projectID string) (*document.Document, int64, error) {
			doc, revision, err := projects.LoadDocument(ctx, projectID)
			if errors.Is(err, project.ErrNotFound) && projectID == playgroundProjectID {
				return document.NewSampleDocument(), 0, nil
			}
			return doc, revision, err
		},
		func(ctx context.Context, projectID string, doc *document.Document, revision int64) (int64, error) {
			return projects.StoreDocument(ctx, projectID, "Playground", "", doc, revision)
		},
		session.WithTick(cfg.SessionTick()),
	)
	go hub.Run()

	ws := &wsHandler{
		hub:            hub,
		auth:           authService,
		projects:       projects,
		originPatterns: mw.OriginPatterns(cfg.Origins()),
	}
	r := newRouter(authService, projects, ws, asset.NewHandler(store), export.NewHandler(cfg.RenderMaxSize))

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      mw.CORS(cfg.Origins())(r),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", addr, "storage", cfg.StorageDriver)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			hub.Stop()
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down server")
	// Rooms are saved before connections are torn down.
	hub.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newRouter mounts every HTTP surface. CORS is applied by the caller
// around the whole router so preflights skip method matching.
func newRouter(authService *auth.Service, projects *project.Service, ws *wsHandler, assets *asset.Handler, exports *export.Handler) *mux.Router {
	authHandler := auth.NewHandler(authService)

	r := mux.NewRouter()
	r.Use(mw.Recovery)
	r.Use(mw.Logger)

	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods(http.MethodGet)

	r.HandleFunc("/auth/register", authHandler.Register).Methods(http.MethodPost)
	r.HandleFunc("/auth/login", authHandler.Login).Methods(http.MethodPost)

	// Public: the playground uploads and exports without an account.
	r.HandleFunc("/assets/upload", assets.Upload).Methods(http.MethodPost)
	r.HandleFunc("/assets/{blobId}", assets.Serve).Methods(http.MethodGet)
	r.HandleFunc("/export/png", exports.RenderPNG).Methods(http.MethodPost)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(authService.AuthMiddleware)
	api.HandleFunc("/me", authHandler.Me).Methods(http.MethodGet)
	project.NewHandler(projects).Routes(api.PathPrefix("/projects").Subrouter())

	r.Handle("/ws/project/{projectId}", ws)
	return r
}

type wsHandler struct {
	hub            *session.Hub
	auth           *auth.Service
	projects       *project.Service
	originPatterns []string
}

func (h *wsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["projectId"]

	userID, displayName, status, err := h.identify(r, projectID)
	if err != nil {
		msg := err.Error()
		if status == http.StatusInternalServerError {
			slog.Error("websocket identify", "error", err, "project", projectID)
			msg = "internal error"
		}
		http.Error(w, msg, status)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		slog.Error("websocket accept", "error", err)
		return
	}

	client := session.NewClient(h.hub, conn, userID, displayName, projectID, uuid.New().String())
	h.hub.Register(client)

	ctx := r.Context()
	go client.WritePump(ctx)
	client.ReadPump(ctx)
}

// identify resolves the connecting user. Real projects need a token in
// the query and must be owned by its subject.
func (h *wsHandler) identify(r *http.Request, projectID string) (userID, displayName string, status int, err error) {
	if projectID == playgroundProjectID {
		return "anon-" + uuid.New().String()[:8], "Anonymous", 0, nil
	}

	token := r.URL.Query().Get("token")
	if token == "" {
		return "", "", http.StatusUnauthorized, errors.New("missing token")
	}
	userID, err = h.auth.ValidateToken(token)
	if err != nil {
		return "", "", http.StatusUnauthorized, errors.New("invalid token")
	}

	if _, err := h.projects.Get(r.Context(), projectID, userID); err != nil {
		switch {
		case errors.Is(err, project.ErrNotFound):
			return "", "", http.StatusNotFound, errors.New("project not found")
		case errors.Is(err, project.ErrForbidden):
			return "", "", http.StatusForbidden, errors.New("forbidden")
		default:
			return "", "", http.StatusInternalServerError, fmt.Errorf("project lookup: %w", err)
		}
	}

	user, err := h.auth.GetUser(r.Context(), userID)
	if err != nil {
		return "", "", http.StatusInternalServerError, fmt.Errorf("user lookup: %w", err)
	}
	return userID, user.DisplayName, 0, nil
}

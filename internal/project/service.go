package project

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/momentum/momentum/internal/document"
	"github.com/momentum/momentum/internal/export"
	"github.com/momentum/momentum/internal/storage"
	"github.com/momentum/momentum/internal/typeid"
)

var (
	ErrNotFound        = errors.New("project not found")
	ErrForbidden       = errors.New("forbidden")
	ErrConflict        = errors.New("project was modified concurrently")
	ErrInvalidDocument = errors.New("invalid document")
	ErrNoThumbnail     = errors.New("project has no thumbnail")
)

// Thumbnail size in CSS pixels.
const (
	ThumbnailWidth  = 320
	ThumbnailHeight = 240
)

// maxThumbnails is how many revisions keep a thumbnail reference.
const maxThumbnails = 8

type Service struct {
	store         storage.Store
	renderMaxSize int
	logger        *slog.Logger
}

func NewService(store storage.Store, renderMaxSize int, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, renderMaxSize: renderMaxSize, logger: logger}
}

type Project struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	OwnerID    string   `json:"ownerId"`
	Revision   int64    `json:"revision"`
	Thumbnails []string `json:"thumbnails"`
	UpdatedAt  string   `json:"updatedAt"`
}

type Summary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	UpdatedAt string `json:"updatedAt"`
	Size      int    `json:"size"`
}

func toProject(p *storage.Project) *Project {
	thumbs := make([]string, len(p.Thumbnails))
	for i, id := range p.Thumbnails {
		thumbs[i] = string(id)
	}
	return &Project{
		ID:         string(p.ID),
		Name:       p.Name,
		OwnerID:    p.OwnerID,
		Revision:   p.Revision,
		Thumbnails: thumbs,
		UpdatedAt:  p.UpdatedAt.Format(time.RFC3339),
	}
}

func (s *Service) Create(ctx context.Context, name, ownerID string) (*Project, error) {
	emptyDoc, err := json.Marshal(document.New())
	if err != nil {
		return nil, fmt.Errorf("marshal empty document: %w", err)
	}

	p := &storage.Project{
		ID:       storage.ProjectID(typeid.NewProjectID()),
		Name:     name,
		OwnerID:  ownerID,
		Document: emptyDoc,
	}
	if _, err := s.store.SaveProject(ctx, p); err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	return toProject(p), nil
}

func (s *Service) Get(ctx context.Context, projectID, userID string) (*Project, error) {
	p, err := s.owned(ctx, projectID, userID)
	if err != nil {
		return nil, err
	}
	return toProject(p), nil
}

func (s *Service) List(ctx context.Context, userID string) ([]Summary, error) {
	metas, err := s.store.ListProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}

	out := []Summary{}
	for _, m := range metas {
		if m.OwnerID != userID {
			continue
		}
		out = append(out, Summary{
			ID:        string(m.ID),
			Name:      m.Name,
			UpdatedAt: m.UpdatedAt.Format(time.RFC3339),
			Size:      m.Size,
		})
	}
	return out, nil
}

func (s *Service) Delete(ctx context.Context, projectID, userID string) error {
	if _, err := s.owned(ctx, projectID, userID); err != nil {
		return err
	}
	if err := s.store.DeleteProject(ctx, storage.ProjectID(projectID)); err != nil {
		return mapStorageErr("delete project", err)
	}
	return nil
}

// Document returns the stored document JSON in the current format.
func (s *Service) Document(ctx context.Context, projectID, userID string) (json.RawMessage, error) {
	p, err := s.owned(ctx, projectID, userID)
	if err != nil {
		return nil, err
	}
	return p.Document, nil
}

// SaveDocument replaces the document of an owned project. revision must
// match the stored revision. A PNG thumbnail is rendered and stored with
// the new revision.
func (s *Service) SaveDocument(ctx context.Context, projectID, userID string, doc json.RawMessage, revision int64) (*Project, error) {
	p, err := s.owned(ctx, projectID, userID)
	if err != nil {
		return nil, err
	}
	p.Revision = revision
	if err := s.save(ctx, p, doc); err != nil {
		return nil, err
	}
	return toProject(p), nil
}

// Render draws the project document as a PNG with nothing selected.
func (s *Service) Render(ctx context.Context, projectID, userID string, opts export.Options) ([]byte, error) {
	p, err := s.owned(ctx, projectID, userID)
	if err != nil {
		return nil, err
	}
	doc, err := parseDocument(p.Document)
	if err != nil {
		return nil, err
	}
	opts.Selection = nil
	opts.MaxSize = s.renderMaxSize
	opts.Logger = s.logger
	return export.PNG(doc, opts)
}

// Thumbnail returns the newest thumbnail PNG.
func (s *Service) Thumbnail(ctx context.Context, projectID, userID string) ([]byte, error) {
	p, err := s.owned(ctx, projectID, userID)
	if err != nil {
		return nil, err
	}
	if len(p.Thumbnails) == 0 {
		return nil, ErrNoThumbnail
	}
	data, ok, err := s.store.GetBlob(ctx, p.Thumbnails[len(p.Thumbnails)-1])
	if err != nil {
		return nil, fmt.Errorf("get thumbnail: %w", err)
	}
	if !ok {
		return nil, ErrNoThumbnail
	}
	return data, nil
}

// LoadDocument opens a project for a live session without an ownership
// check.
func (s *Service) LoadDocument(ctx context.Context, projectID string) (*document.Document, int64, error) {
	p, err := s.store.LoadProject(ctx, storage.ProjectID(projectID))
	if err != nil {
		return nil, 0, mapStorageErr("load project", err)
	}
	doc, err := parseDocument(p.Document)
	if err != nil {
		return nil, 0, err
	}
	return doc, p.Revision, nil
}

// StoreDocument saves a live session's document and returns the new
// revision. A project that does not exist yet is created when revision
// is zero.
func (s *Service) StoreDocument(ctx context.Context, projectID, name, ownerID string, doc *document.Document, revision int64) (int64, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	p, err := s.store.LoadProject(ctx, storage.ProjectID(projectID))
	switch {
	case errors.Is(err, storage.ErrNotFound):
		p = &storage.Project{ID: storage.ProjectID(projectID), Name: name, OwnerID: ownerID}
	case err != nil:
		return 0, mapStorageErr("load project", err)
	}
	p.Revision = revision
	if err := s.save(ctx, p, raw); err != nil {
		return 0, err
	}
	return p.Revision, nil
}

func (s *Service) save(ctx context.Context, p *storage.Project, raw json.RawMessage) error {
	doc, err := parseDocument(raw)
	if err != nil {
		return err
	}

	thumb, err := export.PNG(doc, export.Options{
		Width:   ThumbnailWidth,
		Height:  ThumbnailHeight,
		DPR:     1,
		MaxSize: s.renderMaxSize,
		Logger:  s.logger,
	})
	if err != nil {
		s.logger.Warn("thumbnail render failed", "project", p.ID, "error", err)
	} else {
		blobID := storage.BlobID(typeid.NewBlobID())
		if err := s.store.PutBlob(ctx, blobID, thumb); err != nil {
			s.logger.Warn("thumbnail store failed", "project", p.ID, "error", err)
		} else {
			p.Thumbnails = append(p.Thumbnails, blobID)
			if n := len(p.Thumbnails); n > maxThumbnails {
				p.Thumbnails = p.Thumbnails[n-maxThumbnails:]
			}
		}
	}

	p.Document = raw
	p.SchemaVersion = storage.CurrentSchemaVersion
	if _, err := s.store.SaveProject(ctx, p); err != nil {
		return mapStorageErr("save project", err)
	}
	return nil
}

func (s *Service) owned(ctx context.Context, projectID, userID string) (*storage.Project, error) {
	p, err := s.store.LoadProject(ctx, storage.ProjectID(projectID))
	if err != nil {
		return nil, mapStorageErr("get project", err)
	}
	if p.OwnerID != userID {
		return nil, ErrForbidden
	}
	return p, nil
}

func parseDocument(raw json.RawMessage) (*document.Document, error) {
	doc := document.New()
	if err := json.Unmarshal(raw, doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return doc, nil
}

func mapStorageErr(op string, err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, storage.ErrConflict):
		return ErrConflict
	case errors.Is(err, storage.ErrSerialization), errors.Is(err, storage.ErrDeserialization):
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

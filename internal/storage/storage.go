// Package storage persists projects, blobs and user accounts. Backends:
// in-memory, SQLite (ncruces/go-sqlite3) and Postgres (pgx).
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound        = errors.New("storage: not found")
	ErrConflict        = errors.New("storage: conflict")
	ErrQuotaExceeded   = errors.New("storage: quota exceeded")
	ErrSerialization   = errors.New("storage: serialization failed")
	ErrDeserialization = errors.New("storage: deserialization failed")
	ErrBackend         = errors.New("storage: backend unavailable")
	ErrUnsupported     = errors.New("storage: unsupported")
	ErrOther           = errors.New("storage: failure")
)

// CurrentSchemaVersion is both the newest database schema and the
// document format written by SaveProject.
const CurrentSchemaVersion = 2

type (
	ProjectID string
	BlobID    string
)

// Project is a stored document with its metadata. Revision is the
// optimistic concurrency token: SaveProject only succeeds when it matches
// the stored value, and bumps it.
type Project struct {
	ID            ProjectID       `json:"id"`
	Name          string          `json:"name"`
	OwnerID       string          `json:"ownerId"`
	Document      json.RawMessage `json:"document"`
	SchemaVersion int             `json:"schemaVersion"`
	Thumbnails    []BlobID        `json:"thumbnails"`
	Revision      int64           `json:"revision"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

type ProjectMeta struct {
	ID        ProjectID `json:"id"`
	Name      string    `json:"name"`
	OwnerID   string    `json:"ownerId"`
	UpdatedAt time.Time `json:"updatedAt"`
	Size      int       `json:"size"`
}

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"displayName"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Store is the persistence port.
type Store interface {
	// SaveProject inserts p when p.ID is empty (assigning an id) or
	// updates it otherwise. On success p.Revision and p.UpdatedAt reflect
	// the stored row.
	SaveProject(ctx context.Context, p *Project) (ProjectID, error)
	// LoadProject returns the project with its document upgraded to
	// CurrentSchemaVersion.
	LoadProject(ctx context.Context, id ProjectID) (*Project, error)
	ListProjects(ctx context.Context) ([]ProjectMeta, error)
	DeleteProject(ctx context.Context, id ProjectID) error

	PutBlob(ctx context.Context, id BlobID, data []byte) error
	GetBlob(ctx context.Context, id BlobID) ([]byte, bool, error)

	Migrate(ctx context.Context, from, to int) error

	CreateUser(ctx context.Context, u *User) error
	UserByEmail(ctx context.Context, email string) (*User, error)
	UserByID(ctx context.Context, id string) (*User, error)

	Close() error
}

// Options select and configure a backend.
type Options struct {
	Driver      string // memory, sqlite or postgres
	DatabaseURL string
	SQLitePath  string
	BlobQuota   int64 // bytes, 0 means unlimited; memory and sqlite only
	NewID       func() ProjectID
}

// Open connects to the configured backend.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Driver {
	case "", "memory":
		return NewMemory(opts), nil
	case "sqlite":
		return OpenSQLite(ctx, opts)
	case "postgres":
		return OpenPostgres(ctx, opts)
	default:
		return nil, fmt.Errorf("%w: driver %q", ErrUnsupported, opts.Driver)
	}
}

// checkMigration validates a forward migration request.
func checkMigration(from, to int) error {
	if from < 0 || to > CurrentSchemaVersion {
		return fmt.Errorf("%w: schema version %d to %d (current %d)", ErrUnsupported, from, to, CurrentSchemaVersion)
	}
	if to < from {
		return fmt.Errorf("%w: downgrade from %d to %d", ErrUnsupported, from, to)
	}
	return nil
}

// UpgradeDocument rewrites a stored document into the current format.
// Version 1 documents were a bare entity array.
func UpgradeDocument(version int, doc json.RawMessage) (json.RawMessage, error) {
	switch {
	case version == CurrentSchemaVersion:
		return doc, nil
	case version == 1:
		var entities []json.RawMessage
		if err := json.Unmarshal(doc, &entities); err != nil {
			return nil, fmt.Errorf("%w: v1 document: %v", ErrDeserialization, err)
		}
		if entities == nil {
			entities = []json.RawMessage{}
		}
		out, err := json.Marshal(map[string]any{"entities": entities})
		if err != nil {
			return nil, fmt.Errorf("%w: upgrade document: %v", ErrSerialization, err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: document schema version %d", ErrUnsupported, version)
	}
}

func upgradeLoaded(p *Project) error {
	doc, err := UpgradeDocument(p.SchemaVersion, p.Document)
	if err != nil {
		return err
	}
	p.Document = doc
	p.SchemaVersion = CurrentSchemaVersion
	return nil
}

// validateProject checks the document and defaults its schema version.
func validateProject(p *Project) error {
	if len(p.Document) == 0 || !json.Valid(p.Document) {
		return fmt.Errorf("%w: project document is not valid JSON", ErrSerialization)
	}
	if p.SchemaVersion == 0 {
		p.SchemaVersion = CurrentSchemaVersion
	}
	if p.SchemaVersion < 0 || p.SchemaVersion > CurrentSchemaVersion {
		return fmt.Errorf("%w: document schema version %d", ErrUnsupported, p.SchemaVersion)
	}
	return nil
}

func encodeThumbnails(ids []BlobID) (string, error) {
	if ids == nil {
		ids = []BlobID{}
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return "", fmt.Errorf("%w: thumbnails: %v", ErrSerialization, err)
	}
	return string(data), nil
}

func decodeThumbnails(s string) ([]BlobID, error) {
	if s == "" {
		return []BlobID{}, nil
	}
	var ids []BlobID
	if err := json.Unmarshal([]byte(s), &ids); err != nil {
		return nil, fmt.Errorf("%w: thumbnails: %v", ErrDeserialization, err)
	}
	return ids, nil
}

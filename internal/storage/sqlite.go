package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ncruces/go-sqlite3"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// sqliteMigrations[v-1] moves the schema from v-1 to v.
var sqliteMigrations = [CurrentSchemaVersion][]string{
	{
		`CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			email         TEXT NOT NULL UNIQUE COLLATE NOCASE,
			display_name  TEXT NOT NULL,
			password_hash TEXT NOT NULL,
			created_at    TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS projects (
			id             TEXT PRIMARY KEY,
			name           TEXT NOT NULL,
			owner_id       TEXT NOT NULL,
			document       BLOB NOT NULL,
			schema_version INTEGER NOT NULL,
			revision       INTEGER NOT NULL,
			updated_at     TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS blobs (
			id   TEXT PRIMARY KEY,
			data BLOB NOT NULL
		)`,
	},
	{
		`ALTER TABLE projects ADD COLUMN thumbnails TEXT NOT NULL DEFAULT '[]'`,
		`CREATE INDEX IF NOT EXISTS projects_owner_idx ON projects (owner_id)`,
	},
}

// SQLite is a Store on a single database file.
type SQLite struct {
	db    *sql.DB
	quota int64
	newID func() ProjectID
}

var _ Store = (*SQLite)(nil)

// OpenSQLite opens (creating if needed) the database at opts.SQLitePath.
func OpenSQLite(ctx context.Context, opts Options) (*SQLite, error) {
	path := opts.SQLitePath
	if path == "" {
		return nil, fmt.Errorf("%w: sqlite path is empty", ErrBackend)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("%w: mkdir db dir: %v", ErrBackend, err)
	}

	dsn := fmt.Sprintf("file:%s?cache=shared&mode=rwc&_pragma=busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite: %v", ErrBackend, err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: ping sqlite: %v", ErrBackend, err)
	}

	s := &SQLite{db: db, quota: opts.BlobQuota, newID: opts.NewID}
	if s.newID == nil {
		s.newID = defaultProjectID
	}
	return s, nil
}

func (s *SQLite) Migrate(ctx context.Context, from, to int) error {
	if err := checkMigration(from, to); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at TEXT NOT NULL
	)`); err != nil {
		return sqliteErr("create schema_migrations", err)
	}

	for v := from + 1; v <= to; v++ {
		var n int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, v).Scan(&n); err != nil {
			return sqliteErr("read schema_migrations", err)
		}
		if n > 0 {
			continue
		}
		if err := s.applyMigration(ctx, v); err != nil {
			return fmt.Errorf("migrate to %d: %w", v, err)
		}
	}
	return nil
}

func (s *SQLite) applyMigration(ctx context.Context, version int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return sqliteErr("begin", err)
	}
	defer tx.Rollback()

	for _, stmt := range sqliteMigrations[version-1] {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return sqliteErr("apply migration", err)
		}
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`,
		version, formatTime(time.Now())); err != nil {
		return sqliteErr("record migration", err)
	}
	return sqliteErr("commit", tx.Commit())
}

func (s *SQLite) SaveProject(ctx context.Context, p *Project) (ProjectID, error) {
	if err := validateProject(p); err != nil {
		return "", err
	}
	thumbs, err := encodeThumbnails(p.Thumbnails)
	if err != nil {
		return "", err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", sqliteErr("begin", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	if p.ID == "" {
		p.ID = s.newID()
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE projects
		SET name = ?, owner_id = ?, document = ?, schema_version = ?, thumbnails = ?,
		    revision = revision + 1, updated_at = ?
		WHERE id = ? AND revision = ?`,
		p.Name, p.OwnerID, []byte(p.Document), p.SchemaVersion, thumbs, formatTime(now), p.ID, p.Revision)
	if err != nil {
		return "", sqliteErr("update project", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", sqliteErr("update project", err)
	}

	if n == 0 {
		var current int64
		err := tx.QueryRowContext(ctx, `SELECT revision FROM projects WHERE id = ?`, p.ID).Scan(&current)
		switch {
		case err == nil:
			return "", fmt.Errorf("%w: project %s at revision %d, saved from %d", ErrConflict, p.ID, current, p.Revision)
		case !errors.Is(err, sql.ErrNoRows):
			return "", sqliteErr("read revision", err)
		case p.Revision != 0:
			return "", fmt.Errorf("%w: project %s", ErrNotFound, p.ID)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO projects (id, name, owner_id, document, schema_version, thumbnails, revision, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, 1, ?)`,
			p.ID, p.Name, p.OwnerID, []byte(p.Document), p.SchemaVersion, thumbs, formatTime(now)); err != nil {
			return "", sqliteErr("insert project", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", sqliteErr("commit", err)
	}
	p.Revision++
	p.UpdatedAt = now
	return p.ID, nil
}

func (s *SQLite) LoadProject(ctx context.Context, id ProjectID) (*Project, error) {
	var (
		p       Project
		doc     []byte
		thumbs  string
		updated string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, owner_id, document, schema_version, thumbnails, revision, updated_at
		FROM projects WHERE id = ?`, id).
		Scan(&p.ID, &p.Name, &p.OwnerID, &doc, &p.SchemaVersion, &thumbs, &p.Revision, &updated)
	if err != nil {
		return nil, sqliteErr(fmt.Sprintf("load project %s", id), err)
	}

	p.Document = doc
	if p.Thumbnails, err = decodeThumbnails(thumbs); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	if err := upgradeLoaded(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *SQLite) ListProjects(ctx context.Context) ([]ProjectMeta, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, owner_id, updated_at, length(document)
		FROM projects ORDER BY updated_at DESC, id`)
	if err != nil {
		return nil, sqliteErr("list projects", err)
	}
	defer rows.Close()

	out := []ProjectMeta{}
	for rows.Next() {
		var (
			m       ProjectMeta
			updated string
		)
		if err := rows.Scan(&m.ID, &m.Name, &m.OwnerID, &updated, &m.Size); err != nil {
			return nil, sqliteErr("scan project", err)
		}
		if m.UpdatedAt, err = parseTime(updated); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, sqliteErr("list projects", rows.Err())
}

func (s *SQLite) DeleteProject(ctx context.Context, id ProjectID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return sqliteErr("delete project", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: project %s", ErrNotFound, id)
	}
	return nil
}

func (s *SQLite) PutBlob(ctx context.Context, id BlobID, data []byte) error {
	if s.quota > 0 {
		var used int64
		if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(length(data)), 0) FROM blobs WHERE id <> ?`, id).Scan(&used); err != nil {
			return sqliteErr("blob usage", err)
		}
		if total := used + int64(len(data)); total > s.quota {
			return fmt.Errorf("%w: %d of %d bytes", ErrQuotaExceeded, total, s.quota)
		}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO blobs (id, data) VALUES (?, ?)
		ON CONFLICT (id) DO UPDATE SET data = excluded.data`, id, data)
	return sqliteErr("put blob", err)
}

func (s *SQLite) GetBlob(ctx context.Context, id BlobID) ([]byte, bool, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM blobs WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, sqliteErr("get blob", err)
	}
	return data, true, nil
}

func (s *SQLite) CreateUser(ctx context.Context, u *User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, display_name, password_hash, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.DisplayName, u.PasswordHash, formatTime(u.CreatedAt))
	return sqliteErr("create user", err)
}

func (s *SQLite) UserByEmail(ctx context.Context, email string) (*User, error) {
	return s.user(ctx, `WHERE email = ?`, email)
}

func (s *SQLite) UserByID(ctx context.Context, id string) (*User, error) {
	return s.user(ctx, `WHERE id = ?`, id)
}

func (s *SQLite) user(ctx context.Context, where, arg string) (*User, error) {
	var (
		u       User
		created string
	)
	err := s.db.QueryRowContext(ctx, `SELECT id, email, display_name, password_hash, created_at FROM users `+where, arg).
		Scan(&u.ID, &u.Email, &u.DisplayName, &u.PasswordHash, &created)
	if err != nil {
		return nil, sqliteErr(fmt.Sprintf("get user %s", arg), err)
	}
	if u.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

// sqliteErr maps driver errors onto the storage taxonomy. nil stays nil.
func sqliteErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrNotFound, op)
	}
	var serr *sqlite3.Error
	if errors.As(err, &serr) && serr.Code() == sqlite3.CONSTRAINT {
		return fmt.Errorf("%w: %s: %v", ErrConflict, op, err)
	}
	return fmt.Errorf("%w: %s: %v", ErrBackend, op, err)
}

// timeLayout has fixed-width fractions so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: timestamp %q: %v", ErrDeserialization, s, err)
	}
	return t, nil
}

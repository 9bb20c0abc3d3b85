package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var postgresMigrations = [CurrentSchemaVersion][]string{
	{
		`CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			email         TEXT NOT NULL,
			display_name  TEXT NOT NULL,
			password_hash TEXT NOT NULL,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS users_email_idx ON users (lower(email))`,
		`CREATE TABLE IF NOT EXISTS projects (
			id             TEXT PRIMARY KEY,
			name           TEXT NOT NULL,
			owner_id       TEXT NOT NULL,
			document       JSONB NOT NULL,
			schema_version INTEGER NOT NULL,
			revision       BIGINT NOT NULL,
			updated_at     TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS blobs (
			id   TEXT PRIMARY KEY,
			data BYTEA NOT NULL
		)`,
	},
	{
		`ALTER TABLE projects ADD COLUMN IF NOT EXISTS thumbnails JSONB NOT NULL DEFAULT '[]'::jsonb`,
		`CREATE INDEX IF NOT EXISTS projects_owner_idx ON projects (owner_id)`,
	},
}

// Postgres is a Store on a pgx connection pool.
type Postgres struct {
	pool  *pgxpool.Pool
	newID func() ProjectID
}

var _ Store = (*Postgres)(nil)

func OpenPostgres(ctx context.Context, opts Options) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, opts.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: create pool: %v", ErrBackend, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: ping database: %v", ErrBackend, err)
	}
	p := &Postgres{pool: pool, newID: opts.NewID}
	if p.newID == nil {
		p.newID = defaultProjectID
	}
	return p, nil
}

func (s *Postgres) Migrate(ctx context.Context, from, to int) error {
	if err := checkMigration(from, to); err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`); err != nil {
		return pgErr("create schema_migrations", err)
	}

	for v := from + 1; v <= to; v++ {
		err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
			var applied bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)`, v).Scan(&applied); err != nil {
				return err
			}
			if applied {
				return nil
			}
			for _, stmt := range postgresMigrations[v-1] {
				if _, err := tx.Exec(ctx, stmt); err != nil {
					return err
				}
			}
			_, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, v)
			return err
		})
		if err != nil {
			return fmt.Errorf("migrate to %d: %w", v, pgErr("apply migration", err))
		}
	}
	return nil
}

func (s *Postgres) SaveProject(ctx context.Context, p *Project) (ProjectID, error) {
	if err := validateProject(p); err != nil {
		return "", err
	}
	thumbs, err := encodeThumbnails(p.Thumbnails)
	if err != nil {
		return "", err
	}
	if p.ID == "" {
		p.ID = s.newID()
	}

	var updated time.Time
	err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			UPDATE projects
			SET name = $1, owner_id = $2, document = $3, schema_version = $4, thumbnails = $5,
			    revision = revision + 1, updated_at = now()
			WHERE id = $6 AND revision = $7
			RETURNING updated_at`,
			p.Name, p.OwnerID, string(p.Document), p.SchemaVersion, thumbs, string(p.ID), p.Revision).Scan(&updated)
		if err == nil {
			return nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return pgErr("update project", err)
		}

		var current int64
		err = tx.QueryRow(ctx, `SELECT revision FROM projects WHERE id = $1`, string(p.ID)).Scan(&current)
		switch {
		case err == nil:
			return fmt.Errorf("%w: project %s at revision %d, saved from %d", ErrConflict, p.ID, current, p.Revision)
		case !errors.Is(err, pgx.ErrNoRows):
			return pgErr("read revision", err)
		case p.Revision != 0:
			return fmt.Errorf("%w: project %s", ErrNotFound, p.ID)
		}

		err = tx.QueryRow(ctx, `
			INSERT INTO projects (id, name, owner_id, document, schema_version, thumbnails, revision, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, 1, now())
			RETURNING updated_at`,
			string(p.ID), p.Name, p.OwnerID, string(p.Document), p.SchemaVersion, thumbs).Scan(&updated)
		return pgErr("insert project", err)
	})
	if err != nil {
		return "", err
	}
	p.Revision++
	p.UpdatedAt = updated.UTC()
	return p.ID, nil
}

func (s *Postgres) LoadProject(ctx context.Context, id ProjectID) (*Project, error) {
	var (
		p      Project
		pid    string
		doc    []byte
		thumbs string
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, owner_id, document::text, schema_version, thumbnails::text, revision, updated_at
		FROM projects WHERE id = $1`, string(id)).
		Scan(&pid, &p.Name, &p.OwnerID, &doc, &p.SchemaVersion, &thumbs, &p.Revision, &p.UpdatedAt)
	if err != nil {
		return nil, pgErr(fmt.Sprintf("load project %s", id), err)
	}
	p.ID = ProjectID(pid)
	p.Document = doc
	p.UpdatedAt = p.UpdatedAt.UTC()
	if p.Thumbnails, err = decodeThumbnails(thumbs); err != nil {
		return nil, err
	}
	if err := upgradeLoaded(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Postgres) ListProjects(ctx context.Context) ([]ProjectMeta, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, owner_id, updated_at, octet_length(document::text)
		FROM projects ORDER BY updated_at DESC, id`)
	if err != nil {
		return nil, pgErr("list projects", err)
	}
	defer rows.Close()

	out := []ProjectMeta{}
	for rows.Next() {
		var (
			m  ProjectMeta
			id string
		)
		if err := rows.Scan(&id, &m.Name, &m.OwnerID, &m.UpdatedAt, &m.Size); err != nil {
			return nil, pgErr("scan project", err)
		}
		m.ID = ProjectID(id)
		m.UpdatedAt = m.UpdatedAt.UTC()
		out = append(out, m)
	}
	return out, pgErr("list projects", rows.Err())
}

func (s *Postgres) DeleteProject(ctx context.Context, id ProjectID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM projects WHERE id = $1`, string(id))
	if err != nil {
		return pgErr("delete project", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: project %s", ErrNotFound, id)
	}
	return nil
}

func (s *Postgres) PutBlob(ctx context.Context, id BlobID, data []byte) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO blobs (id, data) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data`, string(id), data)
	return pgErr("put blob", err)
}

func (s *Postgres) GetBlob(ctx context.Context, id BlobID) ([]byte, bool, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM blobs WHERE id = $1`, string(id)).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, pgErr("get blob", err)
	}
	return data, true, nil
}

func (s *Postgres) CreateUser(ctx context.Context, u *User) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO users (id, email, display_name, password_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`,
		u.ID, u.Email, u.DisplayName, u.PasswordHash).Scan(&u.CreatedAt)
	return pgErr("create user", err)
}

func (s *Postgres) UserByEmail(ctx context.Context, email string) (*User, error) {
	return s.user(ctx, `WHERE lower(email) = lower($1)`, email)
}

func (s *Postgres) UserByID(ctx context.Context, id string) (*User, error) {
	return s.user(ctx, `WHERE id = $1`, id)
}

func (s *Postgres) user(ctx context.Context, where, arg string) (*User, error) {
	var u User
	err := s.pool.QueryRow(ctx, `SELECT id, email, display_name, password_hash, created_at FROM users `+where, arg).
		Scan(&u.ID, &u.Email, &u.DisplayName, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		return nil, pgErr(fmt.Sprintf("get user %s", arg), err)
	}
	return &u, nil
}

func (s *Postgres) Close() error {
	s.pool.Close()
	return nil
}

// pgErr maps pgx errors onto the storage taxonomy. nil stays nil, and
// errors already in the taxonomy pass through.
func pgErr(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, known := range []error{ErrNotFound, ErrConflict, ErrBackend, ErrSerialization, ErrDeserialization} {
		if errors.Is(err, known) {
			return err
		}
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrNotFound, op)
	}
	var pe *pgconn.PgError
	if errors.As(err, &pe) && pe.Code == "23505" {
		return fmt.Errorf("%w: %s: %s", ErrConflict, op, pe.Detail)
	}
	return fmt.Errorf("%w: %s: %v", ErrBackend, op, err)
}

package storage

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/momentum/momentum/internal/typeid"
)

// Memory is a process-local Store used by tests and the playground.
type Memory struct {
	mu        sync.RWMutex
	projects  map[ProjectID]Project
	blobs     map[BlobID][]byte
	blobBytes int64
	users     map[string]User

	quota int64
	newID func() ProjectID
	now   func() time.Time
}

var _ Store = (*Memory)(nil)

func NewMemory(opts Options) *Memory {
	m := &Memory{
		projects: make(map[ProjectID]Project),
		blobs:    make(map[BlobID][]byte),
		users:    make(map[string]User),
		quota:    opts.BlobQuota,
		newID:    opts.NewID,
		now:      time.Now,
	}
	if m.newID == nil {
		m.newID = defaultProjectID
	}
	return m
}

func defaultProjectID() ProjectID {
	return ProjectID(typeid.NewProjectID())
}

func (m *Memory) SaveProject(_ context.Context, p *Project) (ProjectID, error) {
	if err := validateProject(p); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if p.ID == "" {
		p.ID = m.newID()
	} else if cur, ok := m.projects[p.ID]; ok {
		if cur.Revision != p.Revision {
			return "", fmt.Errorf("%w: project %s at revision %d, saved from %d", ErrConflict, p.ID, cur.Revision, p.Revision)
		}
	} else if p.Revision != 0 {
		return "", fmt.Errorf("%w: project %s", ErrNotFound, p.ID)
	}

	p.Revision++
	p.UpdatedAt = m.now().UTC()
	m.projects[p.ID] = cloneProject(*p)
	return p.ID, nil
}

func (m *Memory) LoadProject(_ context.Context, id ProjectID) (*Project, error) {
	m.mu.RLock()
	stored, ok := m.projects[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: project %s", ErrNotFound, id)
	}
	p := cloneProject(stored)
	if err := upgradeLoaded(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (m *Memory) ListProjects(context.Context) ([]ProjectMeta, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]ProjectMeta, 0, len(m.projects))
	for _, p := range m.projects {
		out = append(out, ProjectMeta{
			ID:        p.ID,
			Name:      p.Name,
			OwnerID:   p.OwnerID,
			UpdatedAt: p.UpdatedAt,
			Size:      len(p.Document),
		})
	}
	slices.SortFunc(out, func(a, b ProjectMeta) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return strings.Compare(string(a.ID), string(b.ID))
	})
	return out, nil
}

func (m *Memory) DeleteProject(_ context.Context, id ProjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[id]; !ok {
		return fmt.Errorf("%w: project %s", ErrNotFound, id)
	}
	delete(m.projects, id)
	return nil
}

func (m *Memory) PutBlob(_ context.Context, id BlobID, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := m.blobBytes - int64(len(m.blobs[id])) + int64(len(data))
	if m.quota > 0 && total > m.quota {
		return fmt.Errorf("%w: %d of %d bytes", ErrQuotaExceeded, total, m.quota)
	}
	m.blobs[id] = slices.Clone(data)
	m.blobBytes = total
	return nil
}

func (m *Memory) GetBlob(_ context.Context, id BlobID) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.blobs[id]
	if !ok {
		return nil, false, nil
	}
	return slices.Clone(data), true, nil
}

// Migrate only validates the range; there is no schema to change.
func (m *Memory) Migrate(_ context.Context, from, to int) error {
	return checkMigration(from, to)
}

func (m *Memory) CreateUser(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[u.ID]; ok {
		return fmt.Errorf("%w: user %s", ErrConflict, u.ID)
	}
	for _, existing := range m.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return fmt.Errorf("%w: email %s", ErrConflict, u.Email)
		}
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = m.now().UTC()
	}
	m.users[u.ID] = *u
	return nil
}

func (m *Memory) UserByEmail(_ context.Context, email string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, fmt.Errorf("%w: user %s", ErrNotFound, email)
}

func (m *Memory) UserByID(_ context.Context, id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, id)
	}
	return &u, nil
}

func (m *Memory) Close() error { return nil }

func cloneProject(p Project) Project {
	p.Document = slices.Clone(p.Document)
	p.Thumbnails = slices.Clone(p.Thumbnails)
	if p.Thumbnails == nil {
		p.Thumbnails = []BlobID{}
	}
	return p
}

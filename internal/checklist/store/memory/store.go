// Package memory provides an in-memory checklist store for tests and
// local development.
package memory

import (
	"context"
	"sync"

	"admitdesk/internal/checklist/models"
)

type Store struct {
	mu       sync.RWMutex
	versions map[int64]*models.Version
	nextID   int64
}

func New() *Store {
	return &Store{versions: make(map[int64]*models.Version), nextID: 1}
}

// Seed installs a version, assigning IDs to it and its items. Intended
// for test and dev setup.
func (s *Store) Seed(v *models.Version) *models.Version {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := clone(v)
	cp.ID = s.nextID
	s.nextID++
	for i := range cp.Items {
		cp.Items[i].ID = int64(i + 1)
		cp.Items[i].VersionID = cp.ID
	}
	s.versions[cp.ID] = cp
	return clone(cp)
}

func (s *Store) Active(ctx context.Context) (*models.Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *models.Version
	for _, v := range s.versions {
		if !v.Active {
			continue
		}
		if latest == nil || v.ID > latest.ID {
			latest = v
		}
	}
	if latest == nil {
		return nil, models.ErrNotFound
	}
	return clone(latest), nil
}

func (s *Store) Get(ctx context.Context, id int64) (*models.Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.versions[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return clone(v), nil
}

func clone(v *models.Version) *models.Version {
	cp := *v
	cp.Items = make([]models.Item, len(v.Items))
	copy(cp.Items, v.Items)
	return &cp
}

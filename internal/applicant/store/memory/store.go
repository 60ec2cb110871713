// Package memory provides an in-memory applicant store for tests and
// local development.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"admitdesk/internal/applicant/models"
	"admitdesk/internal/applicant/store"
)

type Store struct {
	mu         sync.RWMutex
	applicants map[string]*models.Applicant
}

func New() *Store {
	return &Store{applicants: make(map[string]*models.Applicant)}
}

func (s *Store) Create(ctx context.Context, a *models.Applicant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.applicants[a.StudentCode]; ok {
		return store.ErrDuplicate
	}
	s.applicants[a.StudentCode] = clone(a)
	return nil
}

func (s *Store) Get(ctx context.Context, studentCode string, includeDeleted bool) (*models.Applicant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.applicants[studentCode]
	if !ok {
		return nil, store.ErrNotFound
	}
	if !includeDeleted && a.Deleted() {
		return nil, store.ErrNotFound
	}
	return clone(a), nil
}

// Update overwrites the stored record, documents included. The caller
// owns read-modify-write consistency; handlers serialize through the
// service's transaction scope.
func (s *Store) Update(ctx context.Context, a *models.Applicant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.applicants[a.StudentCode]; !ok {
		return store.ErrNotFound
	}
	s.applicants[a.StudentCode] = clone(a)
	return nil
}

func (s *Store) Search(ctx context.Context, q store.Query) ([]*models.Applicant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	text := strings.ToLower(strings.TrimSpace(q.Text))
	out := []*models.Applicant{}
	for _, a := range s.applicants {
		if !q.IncludeDeleted && a.Deleted() {
			continue
		}
		if text != "" && !matches(a, text) {
			continue
		}
		out = append(out, clone(a))
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].StudentCode < out[j].StudentCode
	})

	limit := q.Limit
	if limit <= 0 {
		limit = store.DefaultSearchLimit
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) HardDelete(ctx context.Context, studentCode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.applicants[studentCode]; !ok {
		return store.ErrNotFound
	}
	delete(s.applicants, studentCode)
	return nil
}

func matches(a *models.Applicant, text string) bool {
	return strings.Contains(strings.ToLower(a.StudentCode), text) ||
		strings.Contains(strings.ToLower(a.DossierCode), text) ||
		strings.Contains(strings.ToLower(a.FullName), text)
}

func clone(a *models.Applicant) *models.Applicant {
	cp := *a
	if a.DateOfBirth != nil {
		dob := *a.DateOfBirth
		cp.DateOfBirth = &dob
	}
	if a.DeletedAt != nil {
		at := *a.DeletedAt
		cp.DeletedAt = &at
	}
	cp.Docs = make([]models.Doc, len(a.Docs))
	copy(cp.Docs, a.Docs)
	return &cp
}

// Package memory provides in-memory user and session stores for tests
// and local development.
package memory

import (
	"context"
	"sync"
	"time"

	"admitdesk/internal/auth/models"
)

// UserStore keeps accounts in memory.
type UserStore struct {
	mu     sync.RWMutex
	users  map[string]*models.User
	nextID int64
}

func NewUserStore() *UserStore {
	return &UserStore{users: make(map[string]*models.User), nextID: 1}
}

func (s *UserStore) Create(ctx context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u.ID = s.nextID
	s.nextID++
	cp := cloneUser(u)
	s.users[u.Username] = cp
	return nil
}

func (s *UserStore) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[username]
	if !ok {
		return nil, models.ErrNotFound
	}
	return cloneUser(u), nil
}

func cloneUser(u *models.User) *models.User {
	cp := *u
	cp.Roles = append([]string(nil), u.Roles...)
	return &cp
}

// SessionStore keeps sessions in memory with TTL expiry.
type SessionStore struct {
	mu       sync.RWMutex
	ttl      time.Duration
	sessions map[string]sessionEntry
}

type sessionEntry struct {
	session models.Session
	expires time.Time
}

func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{ttl: ttl, sessions: make(map[string]sessionEntry)}
}

func (s *SessionStore) Create(ctx context.Context, sess *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[sess.ID] = sessionEntry{session: *sess, expires: time.Now().Add(s.ttl)}
	return nil
}

func (s *SessionStore) Get(ctx context.Context, id string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.sessions[id]
	if !ok || time.Now().After(entry.expires) {
		return nil, models.ErrSessionExpired
	}
	sess := entry.session
	return &sess, nil
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
	return nil
}

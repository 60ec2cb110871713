// Package postgres persists staff accounts.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"admitdesk/internal/auth/models"
)

type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) Create(ctx context.Context, u *models.User) error {
	const query = `
		INSERT INTO users (username, password_hash, full_name, roles, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (username) DO NOTHING
		RETURNING id
	`
	err := s.db.QueryRowContext(ctx, query,
		u.Username, u.PasswordHash, u.FullName, pq.Array(u.Roles), u.Active, u.CreatedAt,
	).Scan(&u.ID)
	if errors.Is(err, sql.ErrNoRows) {
		// Already present; bootstrap is idempotent.
		return nil
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *UserStore) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	const query = `
		SELECT id, username, password_hash, full_name, roles, active, created_at
		FROM users
		WHERE username = $1
	`
	var u models.User
	err := s.db.QueryRowContext(ctx, query, username).Scan(
		&u.ID, &u.Username, &u.PasswordHash, &u.FullName, pq.Array(&u.Roles), &u.Active, &u.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

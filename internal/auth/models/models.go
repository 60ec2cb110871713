// Package models defines the staff account and session entities.
package models

import (
	"errors"
	"time"
)

var (
	ErrNotFound       = errors.New("user not found")
	ErrSessionExpired = errors.New("session not found or expired")
)

// User is one staff account. Passwords are stored as bcrypt hashes
// only.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	FullName     string    `json:"full_name"`
	Roles        []string  `json:"roles"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

// Session is the server-side record behind one issued token. Deleting
// it invalidates the token before its expiry. Device is a short label
// derived from the login request's User-Agent so sessions can be told
// apart when reviewing or revoking them.
type Session struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username"`
	FullName  string    `json:"full_name"`
	Roles     []string  `json:"roles"`
	Device    string    `json:"device,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

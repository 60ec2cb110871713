// Package store holds errors and query types shared by the applicant
// store implementations.
package store

import "errors"

var (
	ErrNotFound  = errors.New("applicant not found")
	ErrDuplicate = errors.New("applicant already exists")
)

// Query narrows an applicant search. Text matches as a substring over
// the student code, dossier code, and full name. Soft-deleted records
// are excluded unless IncludeDeleted is set; only the journal's restore
// and hard-delete paths set it.
type Query struct {
	Text           string
	Limit          int
	IncludeDeleted bool
}

// DefaultSearchLimit caps result sets when the caller does not ask for
// a specific size.
const DefaultSearchLimit = 50

// Package models defines the document checklist entities. A checklist
// version is a named, immutable list of document types; applicants pin
// the version that was active when their dossier was received.
package models

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("checklist version not found")

// Version is one published checklist revision.
type Version struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	Items     []Item    `json:"items,omitempty"`
}

// Item is one document type on a checklist version.
type Item struct {
	ID          int64  `json:"id"`
	VersionID   int64  `json:"version_id"`
	Code        string `json:"code"`
	DisplayName string `json:"display_name"`
	OrderNo     int    `json:"order_no"`
	Required    bool   `json:"required"`
}

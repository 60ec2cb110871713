// Package audit implements the append-only journal: entry model, tamper
// evidence signature, and the writer services use to record every
// state-changing operation.
package audit

import (
	"errors"
	"time"
)

// Action tags the kind of operation an entry describes.
type Action string

const (
	ActionCreate     Action = "CREATE"
	ActionRead       Action = "READ"
	ActionUpdate     Action = "UPDATE"
	ActionDeleteSoft Action = "DELETE_SOFT"
	ActionDeleteHard Action = "DELETE_HARD"
	ActionRestore    Action = "RESTORE"
	ActionPrint      Action = "PRINT"
	ActionException  Action = "EXCEPTION"
)

// Status records whether the described operation succeeded.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailure Status = "FAILURE"
)

// Entry is one immutable journal row. Entries are never updated or
// deleted once appended; restores and hard deletes always produce new
// entries rather than editing history.
type Entry struct {
	ID            int64          `json:"id"`
	OccurredAt    time.Time      `json:"occurred_at"`
	Action        Action         `json:"action"`
	Status        Status         `json:"status"`
	TargetType    string         `json:"target_type"`
	TargetID      string         `json:"target_id"`
	ActorID       string         `json:"actor_id"`
	ActorName     string         `json:"actor_name"`
	IPAddress     string         `json:"ip_address"`
	Path          string         `json:"path"`
	CorrelationID string         `json:"correlation_id"`
	PrevValues    map[string]any `json:"prev_values"`
	NewValues     map[string]any `json:"new_values"`
	Signature     string         `json:"signature"`
}

// DeletionRequest tracks a pending request to remove an entity, filed
// when a record is soft-deleted and resolved by restore or hard delete.
type DeletionRequest struct {
	ID           int64      `json:"id"`
	ActorID      string     `json:"actor_id"`
	ActorName    string     `json:"actor_name"`
	TargetType   string     `json:"target_type"`
	TargetID     string     `json:"target_id"`
	Reason       string     `json:"reason"`
	Status       string     `json:"status"`
	AuditEntryID int64      `json:"audit_entry_id"`
	ConfirmedBy  string     `json:"confirmed_by,omitempty"`
	ConfirmedAt  *time.Time `json:"confirmed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// DeletionRequest lifecycle states.
const (
	RequestPending   = "PENDING"
	RequestApproved  = "APPROVED"
	RequestRejected  = "REJECTED"
	RequestCancelled = "CANCELLED"
	RequestExecuted  = "EXECUTED"
)

// Filter narrows a journal listing. All populated fields compose
// conjunctively. Query and Actor are case-insensitive substring matches;
// From/To bound occurred_at as a half-open interval [From, To).
type Filter struct {
	Action     string
	TargetType string
	TargetID   string
	Query      string
	Actor      string
	From       *time.Time
	To         *time.Time
}

// Sort orders a journal listing. Field must be one of the whitelisted
// entry columns; unknown fields fall back to occurred_at descending.
type Sort struct {
	Field string
	Desc  bool
}

// sortFields is the whitelist of entry columns a listing may order by.
var sortFields = map[string]bool{
	"id":          true,
	"occurred_at": true,
	"actor_name":  true,
	"action":      true,
	"status":      true,
	"target_id":   true,
}

// Normalize clamps a sort onto the whitelist, defaulting to
// occurred_at descending.
func (s Sort) Normalize() Sort {
	if !sortFields[s.Field] {
		return Sort{Field: "occurred_at", Desc: true}
	}
	return s
}

// Page is 1-indexed pagination input.
type Page struct {
	Number int
	Size   int
}

// MaxPageSize bounds a journal listing page.
const MaxPageSize = 500

// Clamp forces the page into valid bounds: page >= 1, 1 <= size <= MaxPageSize.
func (p Page) Clamp() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size < 1 {
		p.Size = 50
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	return p
}

// EntryPage is one page of a journal listing.
type EntryPage struct {
	Total int      `json:"total"`
	Page  int      `json:"page"`
	Size  int      `json:"size"`
	Items []*Entry `json:"items"`
}

// DeletionRequestPage is one page of a deletion-request listing.
type DeletionRequestPage struct {
	Total int                `json:"total"`
	Page  int                `json:"page"`
	Size  int                `json:"size"`
	Items []*DeletionRequest `json:"items"`
}

// ErrNotFound is returned by stores when an entry does not exist.
var ErrNotFound = errors.New("audit entry not found")

// Package softdelete implements the read-side gate for logically
// deleted records.
//
// Each entity type declares up front which deletion signals its schema
// carries (a capability Schema value) instead of probing fields at
// runtime, so the gate's behavior per type is statically known and
// testable. An entity is considered deleted when ANY supported signal
// fires.
package softdelete

import (
	"time"

	"admitdesk/pkg/apperrors"
)

// StatusDeleted is the status-field value treated as a deletion signal.
const StatusDeleted = "deleted"

// Schema states which deletion signals exist on an entity type. A type
// with no signals is never filtered.
type Schema struct {
	HasDeletedAt bool
	HasIsDeleted bool
	HasStatus    bool
}

// View exposes an entity's deletion-related fields to the gate. Fields
// whose signal the Schema does not declare are ignored.
type View struct {
	DeletedAt *time.Time
	IsDeleted bool
	Status    string
}

// Deleted reports whether any supported deletion signal fires.
func Deleted(s Schema, v View) bool {
	if s.HasDeletedAt && v.DeletedAt != nil {
		return true
	}
	if s.HasIsDeleted && v.IsDeleted {
		return true
	}
	if s.HasStatus && v.Status == StatusDeleted {
		return true
	}
	return false
}

// EnsureLive returns a gone error when the entity is soft-deleted.
// Callers that only need the boolean use Deleted directly.
func EnsureLive(s Schema, v View) error {
	if Deleted(s, v) {
		return apperrors.New(apperrors.CodeGone, "record has been soft-deleted")
	}
	return nil
}

// SQLPredicate returns the WHERE fragment excluding soft-deleted rows
// for the given schema, or the empty string when the type carries no
// deletion signals. The fragment references bare column names and is
// meant to be AND-ed into a query against the entity's own table.
func SQLPredicate(s Schema) string {
	var conds []string
	if s.HasDeletedAt {
		conds = append(conds, "deleted_at IS NULL")
	}
	if s.HasIsDeleted {
		conds = append(conds, "is_deleted = FALSE")
	}
	if s.HasStatus {
		conds = append(conds, "status <> '"+StatusDeleted+"'")
	}
	switch len(conds) {
	case 0:
		return ""
	case 1:
		return conds[0]
	default:
		out := conds[0]
		for _, c := range conds[1:] {
			out += " AND " + c
		}
		return out
	}
}

// Package snapshot converts domain records to and from the flat,
// JSON-safe field mappings stored on audit entries.
//
// Take is pure: two calls on an unmodified record yield identical
// output. Optional fields serialize as explicit nulls rather than being
// omitted, so consumers can distinguish "field was empty" from "field
// predates this snapshot version". Apply is the inverse used by the
// restore engine: known keys are set, unknown keys are ignored so old
// entries replay cleanly against a newer record shape.
package snapshot

import (
	"time"

	"admitdesk/internal/applicant/models"
)

// Version tags the snapshot field layout. Bump when keys are renamed or
// change meaning; Apply skips the tag itself.
const Version = 1

const (
	// DocsBefore and DocsAfter are the conventional keys callers use
	// to merge document quantities into prev/new value mappings.
	DocsBefore = "docs_before"
	DocsAfter  = "docs_after"
)

// Take captures an applicant's fields at one instant. Timestamps
// serialize as RFC 3339 strings, calendar dates as YYYY-MM-DD.
func Take(a *models.Applicant) map[string]any {
	return map[string]any{
		"_schema":              Version,
		"student_code":         a.StudentCode,
		"dossier_code":         a.DossierCode,
		"full_name":            a.FullName,
		"email":                nullableString(a.Email),
		"date_of_birth":        nullableDate(a.DateOfBirth),
		"received_at":          a.ReceivedAt.Format("2006-01-02"),
		"phone":                nullableString(a.Phone),
		"program":              nullableString(a.Program),
		"intake":               nullableString(a.Intake),
		"faculty":              nullableString(a.Faculty),
		"prior_degree":         nullableString(a.PriorDegree),
		"note":                 nullableString(a.Note),
		"receiver_name":        nullableString(a.ReceiverName),
		"checklist_version_id": a.ChecklistVersionID,
		"status":               a.Status,
		"printed":              a.Printed,
		"deleted_at":           nullableTime(a.DeletedAt),
		"deleted_by":           nullableString(a.DeletedBy),
		"deleted_reason":       nullableString(a.DeletedReason),
	}
}

// DocQuantities flattens attached documents to a code -> quantity
// mapping. Callers merge the result under DocsBefore / DocsAfter.
func DocQuantities(docs []models.Doc) map[string]int {
	out := make(map[string]int, len(docs))
	for _, d := range docs {
		out[d.Code] = d.Quantity
	}
	return out
}

// Apply writes snapshot values back onto the applicant, field by field.
// Only keys that exist on the record are applied; anything else
// (including the schema tag and doc-quantity mappings) is skipped.
func Apply(a *models.Applicant, values map[string]any) {
	for key, val := range values {
		switch key {
		case "dossier_code":
			a.DossierCode = asString(val)
		case "full_name":
			a.FullName = asString(val)
		case "email":
			a.Email = asString(val)
		case "date_of_birth":
			a.DateOfBirth = asTime(val)
		case "received_at":
			if t := asTime(val); t != nil {
				a.ReceivedAt = *t
			}
		case "phone":
			a.Phone = asString(val)
		case "program":
			a.Program = asString(val)
		case "intake":
			a.Intake = asString(val)
		case "faculty":
			a.Faculty = asString(val)
		case "prior_degree":
			a.PriorDegree = asString(val)
		case "note":
			a.Note = asString(val)
		case "receiver_name":
			a.ReceiverName = asString(val)
		case "checklist_version_id":
			a.ChecklistVersionID = asInt64(val)
		case "status":
			a.Status = asString(val)
		case "printed":
			if b, ok := val.(bool); ok {
				a.Printed = b
			}
		case "deleted_at":
			a.DeletedAt = asTime(val)
		case "deleted_by":
			a.DeletedBy = asString(val)
		case "deleted_reason":
			a.DeletedReason = asString(val)
		}
		// student_code is the natural key; snapshots never move a
		// record onto a different key.
	}
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format("2006-01-02")
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		// JSON round-trips numbers as float64.
		return int64(n)
	default:
		return 0
	}
}

func asTime(v any) *time.Time {
	s, ok := v.(string)
	if !ok || s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

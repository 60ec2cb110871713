package snapshot

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"admitdesk/internal/applicant/models"
)

func fixtureApplicant() *models.Applicant {
	dob := time.Date(2001, 7, 14, 0, 0, 0, 0, time.UTC)
	return &models.Applicant{
		StudentCode:        "2310000123",
		DossierCode:        "HS-2023-0042",
		FullName:           "Nguyen Van A",
		Email:              "a.nguyen@example.edu",
		DateOfBirth:        &dob,
		ReceivedAt:         time.Date(2023, 9, 5, 0, 0, 0, 0, time.UTC),
		Program:            "MSc Computer Science",
		Intake:             "2023B",
		ChecklistVersionID: 3,
		Status:             models.StatusSaved,
		CreatedAt:          time.Date(2023, 9, 5, 8, 30, 0, 0, time.UTC),
		Docs: []models.Doc{
			{Code: "transcript", Quantity: 2},
			{Code: "degree", Quantity: 1},
		},
	}
}

func TestTakeIsDeterministic(t *testing.T) {
	a := fixtureApplicant()

	first, err := json.Marshal(Take(a))
	require.NoError(t, err)
	second, err := json.Marshal(Take(a))
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestTakeEmitsExplicitNulls(t *testing.T) {
	a := fixtureApplicant()
	a.Email = ""
	a.DateOfBirth = nil
	a.Phone = ""

	snap := Take(a)

	for _, key := range []string{"email", "date_of_birth", "phone", "deleted_at", "deleted_by"} {
		val, ok := snap[key]
		require.True(t, ok, "key %q must be present", key)
		assert.Nil(t, val, "empty optional %q serializes as null", key)
	}
	assert.Equal(t, Version, snap["_schema"])
	assert.Equal(t, "2023-09-05", snap["received_at"])
	assert.Equal(t, "2001-07-14", Take(fixtureApplicant())["date_of_birth"])
}

func TestDocQuantities(t *testing.T) {
	got := DocQuantities(fixtureApplicant().Docs)
	assert.Equal(t, map[string]int{"transcript": 2, "degree": 1}, got)
	assert.Empty(t, DocQuantities(nil))
}

func TestApplyRoundTrip(t *testing.T) {
	orig := fixtureApplicant()
	snap := Take(orig)

	// Round-trip through JSON the way stored entries come back.
	raw, err := json.Marshal(snap)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))

	restored := &models.Applicant{StudentCode: orig.StudentCode}
	Apply(restored, decoded)

	assert.Equal(t, orig.DossierCode, restored.DossierCode)
	assert.Equal(t, orig.FullName, restored.FullName)
	assert.Equal(t, orig.Email, restored.Email)
	require.NotNil(t, restored.DateOfBirth)
	assert.True(t, orig.DateOfBirth.Equal(*restored.DateOfBirth))
	assert.True(t, orig.ReceivedAt.Equal(restored.ReceivedAt))
	assert.Equal(t, orig.ChecklistVersionID, restored.ChecklistVersionID)
	assert.Equal(t, orig.Status, restored.Status)
	assert.Nil(t, restored.DeletedAt)
}

func TestApplyIgnoresUnknownAndReservedKeys(t *testing.T) {
	a := &models.Applicant{StudentCode: "2310000123", FullName: "before"}

	Apply(a, map[string]any{
		"_schema":       float64(99),
		"full_name":     "after",
		"student_code":  "9999999999",
		"docs_before":   map[string]any{"transcript": float64(1)},
		"unknown_field": "whatever",
	})

	assert.Equal(t, "after", a.FullName)
	assert.Equal(t, "2310000123", a.StudentCode, "the natural key never changes")
}

func TestApplyCoercesJSONNumbers(t *testing.T) {
	a := &models.Applicant{}
	Apply(a, map[string]any{"checklist_version_id": float64(7), "printed": true})
	assert.Equal(t, int64(7), a.ChecklistVersionID)
	assert.True(t, a.Printed)
}

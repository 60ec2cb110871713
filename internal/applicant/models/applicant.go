// Package models defines the admissions dossier entities.
package models

import (
	"time"

	"admitdesk/internal/softdelete"
)

// TargetType is the audit target type for applicant records.
const TargetType = "Applicant"

// Applicant statuses.
const (
	StatusSaved   = "saved"
	StatusPrinted = "printed"
)

// Applicant is one admissions dossier, keyed by the ten-digit student
// code.
type Applicant struct {
	StudentCode        string     `json:"student_code"`
	DossierCode        string     `json:"dossier_code"`
	FullName           string     `json:"full_name"`
	Email              string     `json:"email,omitempty"`
	DateOfBirth        *time.Time `json:"date_of_birth,omitempty"`
	ReceivedAt         time.Time  `json:"received_at"`
	Phone              string     `json:"phone,omitempty"`
	Program            string     `json:"program,omitempty"`
	Intake             string     `json:"intake,omitempty"`
	Faculty            string     `json:"faculty,omitempty"`
	PriorDegree        string     `json:"prior_degree,omitempty"`
	Note               string     `json:"note,omitempty"`
	ReceiverName       string     `json:"receiver_name,omitempty"`
	ChecklistVersionID int64      `json:"checklist_version_id"`
	Status             string     `json:"status"`
	Printed            bool       `json:"printed"`
	CreatedAt          time.Time  `json:"created_at"`

	DeletedAt     *time.Time `json:"deleted_at,omitempty"`
	DeletedBy     string     `json:"deleted_by,omitempty"`
	DeletedReason string     `json:"deleted_reason,omitempty"`

	Docs []Doc `json:"docs,omitempty"`
}

// Doc is one checklist document attached to an applicant with its
// submitted quantity.
type Doc struct {
	Code        string `json:"code"`
	DisplayName string `json:"display_name,omitempty"`
	Quantity    int    `json:"quantity"`
	OrderNo     int    `json:"order_no,omitempty"`
}

// DeletionSchema declares which soft-delete signals the applicant table
// carries. There is no is_deleted column; legacy rows may carry
// status="deleted" from before deleted_at existed.
var DeletionSchema = softdelete.Schema{
	HasDeletedAt: true,
	HasStatus:    true,
}

// DeletionView exposes the applicant's deletion signals to the gate.
func (a *Applicant) DeletionView() softdelete.View {
	return softdelete.View{DeletedAt: a.DeletedAt, Status: a.Status}
}

// Deleted reports whether the applicant is soft-deleted.
func (a *Applicant) Deleted() bool {
	return softdelete.Deleted(DeletionSchema, a.DeletionView())
}

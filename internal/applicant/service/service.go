// Package service implements the applicant dossier operations. Every
// state-changing operation appends an audit entry inside the same
// transaction as the mutation it describes; reads of a single dossier
// log a best-effort READ entry.
package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"admitdesk/internal/applicant/models"
	"admitdesk/internal/applicant/store"
	"admitdesk/internal/audit"
	"admitdesk/internal/audit/snapshot"
	checklist "admitdesk/internal/checklist/models"
	"admitdesk/pkg/apperrors"
	txcontext "admitdesk/pkg/platform/tx"
	"admitdesk/pkg/requestcontext"
)

var studentCodePattern = regexp.MustCompile(`^\d{10}$`)

// Store is the persistence the service needs.
type Store interface {
	Create(ctx context.Context, a *models.Applicant) error
	Get(ctx context.Context, studentCode string, includeDeleted bool) (*models.Applicant, error)
	Update(ctx context.Context, a *models.Applicant) error
	Search(ctx context.Context, q store.Query) ([]*models.Applicant, error)
}

// Checklists resolves the checklist version a dossier pins.
type Checklists interface {
	Resolve(ctx context.Context, requestedID int64) (*checklist.Version, error)
}

// DeletionRequests files the pending request a soft delete creates.
type DeletionRequests interface {
	CreateDeletionRequest(ctx context.Context, req *audit.DeletionRequest) error
}

type Service struct {
	store      Store
	checklists Checklists
	requests   DeletionRequests
	auditor    *audit.Writer
	db         *sql.DB
	logger     *slog.Logger
}

// Option configures optional service collaborators.
type Option func(*Service)

// WithDB enables real transactions; without it each store call commits
// on its own, which is what the memory store setup wants.
func WithDB(db *sql.DB) Option {
	return func(s *Service) { s.db = db }
}

func New(store Store, checklists Checklists, requests DeletionRequests, auditor *audit.Writer, logger *slog.Logger, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if checklists == nil {
		return nil, errors.New("checklist resolver is required")
	}
	if requests == nil {
		return nil, errors.New("deletion request store is required")
	}
	if auditor == nil {
		return nil, errors.New("audit writer is required")
	}
	s := &Service{store: store, checklists: checklists, requests: requests, auditor: auditor, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// DocInput is one submitted document quantity, keyed by the checklist
// item code.
type DocInput struct {
	Code     string `json:"code" validate:"required"`
	Quantity int    `json:"quantity" validate:"gte=0"`
}

// CreateInput carries a new dossier.
type CreateInput struct {
	StudentCode        string     `json:"student_code" validate:"required"`
	DossierCode        string     `json:"dossier_code" validate:"required"`
	FullName           string     `json:"full_name" validate:"required"`
	Email              string     `json:"email,omitempty" validate:"omitempty,email"`
	DateOfBirth        *time.Time `json:"date_of_birth,omitempty"`
	ReceivedAt         *time.Time `json:"received_at" validate:"required"`
	Phone              string     `json:"phone,omitempty"`
	Program            string     `json:"program,omitempty"`
	Intake             string     `json:"intake,omitempty"`
	Faculty            string     `json:"faculty,omitempty"`
	PriorDegree        string     `json:"prior_degree,omitempty"`
	Note               string     `json:"note,omitempty"`
	ReceiverName       string     `json:"receiver_name,omitempty"`
	ChecklistVersionID int64      `json:"checklist_version_id,omitempty"`
	Docs               []DocInput `json:"docs,omitempty" validate:"dive"`
}

// Create registers a dossier and writes its CREATE entry atomically.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.Applicant, error) {
	if !studentCodePattern.MatchString(in.StudentCode) {
		return nil, apperrors.New(apperrors.CodeBadRequest, "student code must be exactly 10 digits")
	}

	version, err := s.checklists.Resolve(ctx, in.ChecklistVersionID)
	if err != nil {
		return nil, err
	}
	docs, err := buildDocs(version, in.Docs)
	if err != nil {
		return nil, err
	}

	a := &models.Applicant{
		StudentCode:        in.StudentCode,
		DossierCode:        strings.TrimSpace(in.DossierCode),
		FullName:           strings.TrimSpace(in.FullName),
		Email:              in.Email,
		DateOfBirth:        in.DateOfBirth,
		ReceivedAt:         *in.ReceivedAt,
		Phone:              in.Phone,
		Program:            in.Program,
		Intake:             in.Intake,
		Faculty:            in.Faculty,
		PriorDegree:        in.PriorDegree,
		Note:               in.Note,
		ReceiverName:       in.ReceiverName,
		ChecklistVersionID: version.ID,
		Status:             models.StatusSaved,
		CreatedAt:          requestcontext.Now(ctx),
		Docs:               docs,
	}

	err = txcontext.Run(ctx, s.db, func(ctx context.Context) error {
		if err := s.store.Create(ctx, a); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return apperrors.Newf(apperrors.CodeConflict, "applicant %s already exists", a.StudentCode)
			}
			return apperrors.Wrap(err, apperrors.CodeInternal, "failed to create applicant")
		}

		newValues := snapshot.Take(a)
		newValues[snapshot.DocsAfter] = snapshot.DocQuantities(a.Docs)
		_, err := s.auditor.Write(ctx, audit.Record{
			Action:     audit.ActionCreate,
			Status:     audit.StatusSuccess,
			TargetType: models.TargetType,
			TargetID:   a.StudentCode,
			New:        newValues,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Get fetches one live dossier and logs a best-effort READ entry.
// Soft-deleted dossiers answer gone rather than not found.
func (s *Service) Get(ctx context.Context, studentCode string) (*models.Applicant, error) {
	a, err := s.fetchLive(ctx, studentCode)
	if err != nil {
		return nil, err
	}

	s.auditor.WriteBestEffort(ctx, audit.Record{
		Action:     audit.ActionRead,
		Status:     audit.StatusSuccess,
		TargetType: models.TargetType,
		TargetID:   a.StudentCode,
	})
	return a, nil
}

// UpdateInput carries a partial dossier update. Nil pointers leave the
// field unchanged.
type UpdateInput struct {
	DossierCode  *string     `json:"dossier_code,omitempty"`
	FullName     *string     `json:"full_name,omitempty"`
	Email        *string     `json:"email,omitempty" validate:"omitempty,email"`
	DateOfBirth  *time.Time  `json:"date_of_birth,omitempty"`
	ReceivedAt   *time.Time  `json:"received_at,omitempty"`
	Phone        *string     `json:"phone,omitempty"`
	Program      *string     `json:"program,omitempty"`
	Intake       *string     `json:"intake,omitempty"`
	Faculty      *string     `json:"faculty,omitempty"`
	PriorDegree  *string     `json:"prior_degree,omitempty"`
	Note         *string     `json:"note,omitempty"`
	ReceiverName *string     `json:"receiver_name,omitempty"`
	Docs         *[]DocInput `json:"docs,omitempty" validate:"omitempty,dive"`
}

// Update applies changed fields and writes an UPDATE entry carrying the
// full before and after snapshots, document quantities included.
func (s *Service) Update(ctx context.Context, studentCode string, in UpdateInput) (*models.Applicant, error) {
	a, err := s.fetchLive(ctx, studentCode)
	if err != nil {
		return nil, err
	}

	prevValues := snapshot.Take(a)
	prevValues[snapshot.DocsBefore] = snapshot.DocQuantities(a.Docs)

	applyString := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	applyString(&a.DossierCode, in.DossierCode)
	applyString(&a.FullName, in.FullName)
	applyString(&a.Email, in.Email)
	applyString(&a.Phone, in.Phone)
	applyString(&a.Program, in.Program)
	applyString(&a.Intake, in.Intake)
	applyString(&a.Faculty, in.Faculty)
	applyString(&a.PriorDegree, in.PriorDegree)
	applyString(&a.Note, in.Note)
	applyString(&a.ReceiverName, in.ReceiverName)
	if in.DateOfBirth != nil {
		a.DateOfBirth = in.DateOfBirth
	}
	if in.ReceivedAt != nil {
		a.ReceivedAt = *in.ReceivedAt
	}
	if in.Docs != nil {
		version, err := s.checklists.Resolve(ctx, a.ChecklistVersionID)
		if err != nil {
			return nil, err
		}
		docs, err := buildDocs(version, *in.Docs)
		if err != nil {
			return nil, err
		}
		a.Docs = docs
	}
	if a.DossierCode == "" || a.FullName == "" {
		return nil, apperrors.New(apperrors.CodeBadRequest, "dossier code and full name cannot be cleared")
	}

	err = txcontext.Run(ctx, s.db, func(ctx context.Context) error {
		if err := s.store.Update(ctx, a); err != nil {
			return apperrors.Wrap(err, apperrors.CodeInternal, "failed to update applicant")
		}

		newValues := snapshot.Take(a)
		newValues[snapshot.DocsAfter] = snapshot.DocQuantities(a.Docs)
		_, err := s.auditor.Write(ctx, audit.Record{
			Action:     audit.ActionUpdate,
			Status:     audit.StatusSuccess,
			TargetType: models.TargetType,
			TargetID:   a.StudentCode,
			Prev:       prevValues,
			New:        newValues,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Search lists live dossiers matching the text, newest first.
func (s *Service) Search(ctx context.Context, text string, limit int) ([]*models.Applicant, error) {
	out, err := s.store.Search(ctx, store.Query{Text: text, Limit: limit})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to search applicants")
	}
	return out, nil
}

// Recent lists the most recently received live dossiers.
func (s *Service) Recent(ctx context.Context, limit int) ([]*models.Applicant, error) {
	out, err := s.store.Search(ctx, store.Query{Limit: limit})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to list recent applicants")
	}
	return out, nil
}

// SoftDelete marks a dossier deleted, writes the DELETE_SOFT entry with
// the full prior snapshot, and files a pending deletion request. Running
// it again on an already-deleted dossier keeps the original deletion
// time but refreshes who asked and why.
func (s *Service) SoftDelete(ctx context.Context, studentCode, reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return apperrors.New(apperrors.CodeBadRequest, "a deletion reason is required")
	}

	a, err := s.fetch(ctx, studentCode)
	if err != nil {
		return err
	}

	prevValues := snapshot.Take(a)
	prevValues[snapshot.DocsBefore] = snapshot.DocQuantities(a.Docs)

	actor := requestcontext.ActorFrom(ctx)
	now := requestcontext.Now(ctx)
	if a.DeletedAt == nil {
		a.DeletedAt = &now
	}
	a.DeletedBy = actor.Name
	a.DeletedReason = reason

	return txcontext.Run(ctx, s.db, func(ctx context.Context) error {
		if err := s.store.Update(ctx, a); err != nil {
			return apperrors.Wrap(err, apperrors.CodeInternal, "failed to soft-delete applicant")
		}

		entry, err := s.auditor.Write(ctx, audit.Record{
			Action:     audit.ActionDeleteSoft,
			Status:     audit.StatusSuccess,
			TargetType: models.TargetType,
			TargetID:   a.StudentCode,
			Prev:       prevValues,
			New: map[string]any{
				"deleted_at":     a.DeletedAt.UTC().Format(time.RFC3339),
				"deleted_by":     a.DeletedBy,
				"deleted_reason": a.DeletedReason,
			},
		})
		if err != nil {
			return err
		}

		req := &audit.DeletionRequest{
			ActorID:      actor.ID,
			ActorName:    actor.Name,
			TargetType:   models.TargetType,
			TargetID:     a.StudentCode,
			Reason:       reason,
			Status:       audit.RequestPending,
			AuditEntryID: entry.ID,
			CreatedAt:    now,
		}
		if err := s.requests.CreateDeletionRequest(ctx, req); err != nil {
			return apperrors.Wrap(err, apperrors.CodeInternal, "failed to file deletion request")
		}
		return nil
	})
}

// Print marks the dossier printed and records the PRINT entry.
func (s *Service) Print(ctx context.Context, studentCode string) (*models.Applicant, error) {
	a, err := s.fetchLive(ctx, studentCode)
	if err != nil {
		return nil, err
	}

	prev := map[string]any{"printed": a.Printed, "status": a.Status}
	a.Printed = true
	a.Status = models.StatusPrinted

	err = txcontext.Run(ctx, s.db, func(ctx context.Context) error {
		if err := s.store.Update(ctx, a); err != nil {
			return apperrors.Wrap(err, apperrors.CodeInternal, "failed to mark applicant printed")
		}
		_, err := s.auditor.Write(ctx, audit.Record{
			Action:     audit.ActionPrint,
			Status:     audit.StatusSuccess,
			TargetType: models.TargetType,
			TargetID:   a.StudentCode,
			Prev:       prev,
			New:        map[string]any{"printed": a.Printed, "status": a.Status},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// fetch loads a dossier regardless of deletion state.
func (s *Service) fetch(ctx context.Context, studentCode string) (*models.Applicant, error) {
	a, err := s.store.Get(ctx, studentCode, true)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.Newf(apperrors.CodeNotFound, "applicant %s not found", studentCode)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to load applicant")
	}
	return a, nil
}

// fetchLive loads a dossier and rejects soft-deleted ones with gone, so
// callers can tell "deleted" from "never existed".
func (s *Service) fetchLive(ctx context.Context, studentCode string) (*models.Applicant, error) {
	a, err := s.fetch(ctx, studentCode)
	if err != nil {
		return nil, err
	}
	if a.Deleted() {
		return nil, apperrors.Newf(apperrors.CodeGone, "applicant %s has been deleted", studentCode)
	}
	return a, nil
}

func buildDocs(version *checklist.Version, inputs []DocInput) ([]models.Doc, error) {
	byCode := make(map[string]checklist.Item, len(version.Items))
	for _, it := range version.Items {
		byCode[it.Code] = it
	}

	docs := make([]models.Doc, 0, len(inputs))
	seen := make(map[string]bool, len(inputs))
	for _, in := range inputs {
		item, ok := byCode[in.Code]
		if !ok {
			return nil, apperrors.Newf(apperrors.CodeBadRequest, "document %q is not on checklist version %d", in.Code, version.ID)
		}
		if seen[in.Code] {
			return nil, apperrors.Newf(apperrors.CodeBadRequest, "document %q listed twice", in.Code)
		}
		if in.Quantity < 0 {
			return nil, apperrors.Newf(apperrors.CodeBadRequest, "document %q has a negative quantity", in.Code)
		}
		seen[in.Code] = true
		docs = append(docs, models.Doc{
			Code:        item.Code,
			DisplayName: item.DisplayName,
			Quantity:    in.Quantity,
			OrderNo:     item.OrderNo,
		})
	}
	return docs, nil
}

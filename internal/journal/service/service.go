// Package service implements the audit journal API: listing and
// inspecting entries, restoring soft-deleted records from their
// journal snapshots, and the confirmed hard-delete path.
package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	applicantmodels "admitdesk/internal/applicant/models"
	applicantstore "admitdesk/internal/applicant/store"
	"admitdesk/internal/audit"
	"admitdesk/internal/audit/snapshot"
	"admitdesk/internal/platform/metrics"
	"admitdesk/pkg/apperrors"
	txcontext "admitdesk/pkg/platform/tx"
	"admitdesk/pkg/requestcontext"
)

// HardDeleteConfirmation is the sentinel a caller must type to execute
// a permanent delete. Anything else is rejected.
const HardDeleteConfirmation = "CONFIRM_DELETE"

// Journal is the audit store surface the service reads and resolves
// requests against. New entries go through the writer so they are
// signed and stamped like every other entry.
type Journal interface {
	GetEntry(ctx context.Context, id int64) (*audit.Entry, error)
	ListEntries(ctx context.Context, filter audit.Filter, sortBy audit.Sort, page audit.Page) (*audit.EntryPage, error)
	ListDeletionRequests(ctx context.Context, status string, page audit.Page) (*audit.DeletionRequestPage, error)
	ResolvePendingDeletionRequests(ctx context.Context, targetType, targetID, newStatus, confirmedBy string, confirmedAt time.Time) (int, error)
}

// Applicants is the slice of the applicant store the restore and
// hard-delete paths need. Both operate on soft-deleted rows, so every
// read includes them.
type Applicants interface {
	Get(ctx context.Context, studentCode string, includeDeleted bool) (*applicantmodels.Applicant, error)
	Update(ctx context.Context, a *applicantmodels.Applicant) error
	HardDelete(ctx context.Context, studentCode string) error
}

type Service struct {
	journal    Journal
	applicants Applicants
	auditor    *audit.Writer
	metrics    *metrics.Metrics
	logger     *slog.Logger
	tracer     trace.Tracer
	db         *sql.DB
}

type Option func(*Service)

// WithDB enables real transactions around restore and hard delete.
func WithDB(db *sql.DB) Option {
	return func(s *Service) { s.db = db }
}

// WithMetrics wires the restore and hard-delete counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(journal Journal, applicants Applicants, auditor *audit.Writer, logger *slog.Logger, opts ...Option) (*Service, error) {
	if journal == nil {
		return nil, errors.New("journal store is required")
	}
	if applicants == nil {
		return nil, errors.New("applicant store is required")
	}
	if auditor == nil {
		return nil, errors.New("audit writer is required")
	}
	s := &Service{
		journal:    journal,
		applicants: applicants,
		auditor:    auditor,
		logger:     logger,
		tracer:     otel.Tracer("admitdesk/journal"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// List returns one page of journal entries matching the filter.
func (s *Service) List(ctx context.Context, filter audit.Filter, sortBy audit.Sort, page audit.Page) (*audit.EntryPage, error) {
	out, err := s.journal.ListEntries(ctx, filter, sortBy, page)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to list journal entries")
	}
	return out, nil
}

// Get returns one journal entry by ID.
func (s *Service) Get(ctx context.Context, id int64) (*audit.Entry, error) {
	entry, err := s.journal.GetEntry(ctx, id)
	if errors.Is(err, audit.ErrNotFound) {
		return nil, apperrors.Newf(apperrors.CodeNotFound, "journal entry %d not found", id)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to load journal entry")
	}
	return entry, nil
}

// ListDeletionRequests returns one page of deletion requests, newest
// first, optionally filtered by status.
func (s *Service) ListDeletionRequests(ctx context.Context, status string, page audit.Page) (*audit.DeletionRequestPage, error) {
	out, err := s.journal.ListDeletionRequests(ctx, status, page)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to list deletion requests")
	}
	return out, nil
}

// Restore rebuilds a record from the prev_values snapshot of the given
// journal entry. It refuses entries describing hard deletes, targets it
// does not know how to rebuild, and records that were purged after the
// entry was written. On success the deletion markers are cleared, any
// pending deletion requests for the record are cancelled, and a RESTORE
// entry is appended.
func (s *Service) Restore(ctx context.Context, entryID int64) (*applicantmodels.Applicant, error) {
	ctx, span := s.tracer.Start(ctx, "journal.Restore",
		trace.WithAttributes(attribute.Int64("journal.entry_id", entryID)))
	defer span.End()

	entry, err := s.Get(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if describesHardDelete(entry) {
		return nil, apperrors.New(apperrors.CodeGone, "record was permanently deleted and cannot be restored")
	}
	if entry.TargetType != applicantmodels.TargetType {
		return nil, apperrors.Newf(apperrors.CodeUnsupportedTarget, "restore is not supported for target type %q", entry.TargetType)
	}
	if len(entry.PrevValues) == 0 {
		return nil, apperrors.New(apperrors.CodeBadRequest, "journal entry carries no previous values to restore")
	}

	a, err := s.applicants.Get(ctx, entry.TargetID, true)
	if errors.Is(err, applicantstore.ErrNotFound) {
		return nil, apperrors.Newf(apperrors.CodeNotFound, "record %s no longer exists", entry.TargetID)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to load record")
	}

	snapshot.Apply(a, entry.PrevValues)
	applied := make(map[string]any, len(entry.PrevValues)+4)
	for k, v := range entry.PrevValues {
		applied[k] = v
	}
	// A soft-delete entry snapshots the record before the markers were
	// set, so applying it already clears them. Clear explicitly as well
	// in case the snapshot predates a marker column, and fold the
	// clearing into the applied values the RESTORE entry reports.
	if entry.Action == audit.ActionDeleteSoft || hasKey(entry.NewValues, "deleted_at") {
		a.DeletedAt = nil
		a.DeletedBy = ""
		a.DeletedReason = ""
		if a.Status == "deleted" {
			a.Status = applicantmodels.StatusSaved
		}
		applied["deleted_at"] = nil
		applied["deleted_by"] = nil
		applied["deleted_reason"] = nil
		applied["status"] = a.Status
	}

	actor := requestcontext.ActorFrom(ctx)
	now := requestcontext.Now(ctx)

	err = txcontext.Run(ctx, s.db, func(ctx context.Context) error {
		if err := s.applicants.Update(ctx, a); err != nil {
			return apperrors.Wrap(err, apperrors.CodeInternal, "failed to write restored record")
		}

		cancelled, err := s.journal.ResolvePendingDeletionRequests(ctx,
			entry.TargetType, entry.TargetID, audit.RequestCancelled, actor.Name, now)
		if err != nil {
			return apperrors.Wrap(err, apperrors.CodeInternal, "failed to cancel deletion requests")
		}
		if cancelled > 0 {
			s.logger.InfoContext(ctx, "cancelled pending deletion requests",
				"target_id", entry.TargetID, "count", cancelled)
		}

		_, err = s.auditor.Write(ctx, audit.Record{
			Action:     audit.ActionRestore,
			Status:     audit.StatusSuccess,
			TargetType: entry.TargetType,
			TargetID:   entry.TargetID,
			Prev:       entry.NewValues,
			New:        applied,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RestoresTotal.Inc()
	}
	return a, nil
}

// HardDeleteInput names the record to purge. Confirm must equal
// HardDeleteConfirmation.
type HardDeleteInput struct {
	TargetType string `json:"target_type" validate:"required"`
	TargetID   string `json:"target_id" validate:"required"`
	Reason     string `json:"reason,omitempty"`
	Confirm    string `json:"confirm" validate:"required"`
}

// HardDelete permanently removes a record and its child rows. The prior
// state is preserved only in the DELETE_HARD journal entry; there is no
// way back afterwards.
func (s *Service) HardDelete(ctx context.Context, in HardDeleteInput) error {
	ctx, span := s.tracer.Start(ctx, "journal.HardDelete",
		trace.WithAttributes(attribute.String("journal.target_id", in.TargetID)))
	defer span.End()

	if in.Confirm != HardDeleteConfirmation {
		return apperrors.Newf(apperrors.CodeBadRequest, "hard delete requires confirm=%q", HardDeleteConfirmation)
	}
	if in.TargetType != applicantmodels.TargetType {
		return apperrors.Newf(apperrors.CodeUnsupportedTarget, "hard delete is not supported for target type %q", in.TargetType)
	}

	a, err := s.applicants.Get(ctx, in.TargetID, true)
	if errors.Is(err, applicantstore.ErrNotFound) {
		return apperrors.Newf(apperrors.CodeNotFound, "record %s not found", in.TargetID)
	}
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "failed to load record")
	}

	prevValues := snapshot.Take(a)
	prevValues[snapshot.DocsBefore] = snapshot.DocQuantities(a.Docs)

	actor := requestcontext.ActorFrom(ctx)
	now := requestcontext.Now(ctx)

	err = txcontext.Run(ctx, s.db, func(ctx context.Context) error {
		if err := s.applicants.HardDelete(ctx, a.StudentCode); err != nil {
			return apperrors.Wrap(err, apperrors.CodeInternal, "failed to hard-delete record")
		}

		if _, err := s.journal.ResolvePendingDeletionRequests(ctx,
			in.TargetType, in.TargetID, audit.RequestExecuted, actor.Name, now); err != nil {
			return apperrors.Wrap(err, apperrors.CodeInternal, "failed to resolve deletion requests")
		}

		_, err := s.auditor.Write(ctx, audit.Record{
			Action:     audit.ActionDeleteHard,
			Status:     audit.StatusSuccess,
			TargetType: in.TargetType,
			TargetID:   in.TargetID,
			Prev:       prevValues,
			New:        map[string]any{"hard_deleted": true, "reason": in.Reason},
		})
		return err
	})
	if err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.HardDeletesTotal.Inc()
	}
	return nil
}

// describesHardDelete reports whether an entry records a permanent
// delete. Entries migrated from the predecessor system tag those with
// the bare DELETE action or a hard_deleted flag instead of DELETE_HARD.
func describesHardDelete(e *audit.Entry) bool {
	if e.Action == audit.ActionDeleteHard || e.Action == "DELETE" {
		return true
	}
	return e.NewValues["hard_deleted"] == true
}

func hasKey(m map[string]any, key string) bool {
	_, ok := m[key]
	return ok
}

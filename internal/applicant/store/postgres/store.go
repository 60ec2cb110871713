// Package postgres persists applicants and their document rows.
// Mutations join any transaction carried in the context so they commit
// atomically with the audit entries describing them.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"admitdesk/internal/applicant/models"
	"admitdesk/internal/applicant/store"
	"admitdesk/internal/softdelete"
	txcontext "admitdesk/pkg/platform/tx"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) q(ctx context.Context) querier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const applicantColumns = `
	student_code, dossier_code, full_name, email, date_of_birth,
	received_at, phone, program, intake, faculty, prior_degree, note,
	receiver_name, checklist_version_id, status, printed, created_at,
	deleted_at, deleted_by, deleted_reason
`

func (s *Store) Create(ctx context.Context, a *models.Applicant) error {
	const query = `
		INSERT INTO applicants (` + applicantColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`
	_, err := s.q(ctx).ExecContext(ctx, query,
		a.StudentCode,
		a.DossierCode,
		a.FullName,
		nullString(a.Email),
		a.DateOfBirth,
		a.ReceivedAt,
		nullString(a.Phone),
		nullString(a.Program),
		nullString(a.Intake),
		nullString(a.Faculty),
		nullString(a.PriorDegree),
		nullString(a.Note),
		nullString(a.ReceiverName),
		a.ChecklistVersionID,
		a.Status,
		a.Printed,
		a.CreatedAt,
		a.DeletedAt,
		nullString(a.DeletedBy),
		nullString(a.DeletedReason),
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
		return store.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert applicant: %w", err)
	}
	return s.replaceDocs(ctx, a.StudentCode, a.Docs)
}

func (s *Store) Get(ctx context.Context, studentCode string, includeDeleted bool) (*models.Applicant, error) {
	query := `SELECT ` + applicantColumns + ` FROM applicants WHERE student_code = $1`
	if !includeDeleted {
		query += " AND " + softdelete.SQLPredicate(models.DeletionSchema)
	}

	a, err := scanApplicant(s.q(ctx).QueryRowContext(ctx, query, studentCode).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get applicant: %w", err)
	}

	docs, err := s.docs(ctx, studentCode)
	if err != nil {
		return nil, err
	}
	a.Docs = docs
	return a, nil
}

func (s *Store) Update(ctx context.Context, a *models.Applicant) error {
	const query = `
		UPDATE applicants SET
			dossier_code = $2, full_name = $3, email = $4,
			date_of_birth = $5, received_at = $6, phone = $7,
			program = $8, intake = $9, faculty = $10, prior_degree = $11,
			note = $12, receiver_name = $13, checklist_version_id = $14,
			status = $15, printed = $16, deleted_at = $17,
			deleted_by = $18, deleted_reason = $19
		WHERE student_code = $1
	`
	res, err := s.q(ctx).ExecContext(ctx, query,
		a.StudentCode,
		a.DossierCode,
		a.FullName,
		nullString(a.Email),
		a.DateOfBirth,
		a.ReceivedAt,
		nullString(a.Phone),
		nullString(a.Program),
		nullString(a.Intake),
		nullString(a.Faculty),
		nullString(a.PriorDegree),
		nullString(a.Note),
		nullString(a.ReceiverName),
		a.ChecklistVersionID,
		a.Status,
		a.Printed,
		a.DeletedAt,
		nullString(a.DeletedBy),
		nullString(a.DeletedReason),
	)
	if err != nil {
		return fmt.Errorf("update applicant: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update applicant: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return s.replaceDocs(ctx, a.StudentCode, a.Docs)
}

func (s *Store) Search(ctx context.Context, q store.Query) ([]*models.Applicant, error) {
	var conds []string
	var args []any

	if !q.IncludeDeleted {
		conds = append(conds, softdelete.SQLPredicate(models.DeletionSchema))
	}
	if text := strings.TrimSpace(q.Text); text != "" {
		args = append(args, "%"+text+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf(
			"(student_code ILIKE $%d OR dossier_code ILIKE $%d OR full_name ILIKE $%d)", n, n, n))
	}

	query := `SELECT ` + applicantColumns + ` FROM applicants`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	limit := q.Limit
	if limit <= 0 {
		limit = store.DefaultSearchLimit
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC, student_code LIMIT $%d", len(args))

	rows, err := s.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search applicants: %w", err)
	}
	defer rows.Close()

	out := []*models.Applicant{}
	for rows.Next() {
		a, err := scanApplicant(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan applicant: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applicants: %w", err)
	}

	for _, a := range out {
		docs, err := s.docs(ctx, a.StudentCode)
		if err != nil {
			return nil, err
		}
		a.Docs = docs
	}
	return out, nil
}

// HardDelete removes the applicant and its document rows for good.
// Callers gate this behind the typed confirmation sentinel.
func (s *Store) HardDelete(ctx context.Context, studentCode string) error {
	if _, err := s.q(ctx).ExecContext(ctx,
		`DELETE FROM applicant_docs WHERE student_code = $1`, studentCode); err != nil {
		return fmt.Errorf("delete applicant docs: %w", err)
	}
	res, err := s.q(ctx).ExecContext(ctx,
		`DELETE FROM applicants WHERE student_code = $1`, studentCode)
	if err != nil {
		return fmt.Errorf("delete applicant: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete applicant: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) replaceDocs(ctx context.Context, studentCode string, docs []models.Doc) error {
	if _, err := s.q(ctx).ExecContext(ctx,
		`DELETE FROM applicant_docs WHERE student_code = $1`, studentCode); err != nil {
		return fmt.Errorf("clear applicant docs: %w", err)
	}
	for _, d := range docs {
		_, err := s.q(ctx).ExecContext(ctx, `
			INSERT INTO applicant_docs (student_code, code, display_name, quantity, order_no)
			VALUES ($1, $2, $3, $4, $5)`,
			studentCode, d.Code, d.DisplayName, d.Quantity, d.OrderNo)
		if err != nil {
			return fmt.Errorf("insert applicant doc: %w", err)
		}
	}
	return nil
}

func (s *Store) docs(ctx context.Context, studentCode string) ([]models.Doc, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT code, display_name, quantity, order_no
		FROM applicant_docs
		WHERE student_code = $1
		ORDER BY order_no, code`, studentCode)
	if err != nil {
		return nil, fmt.Errorf("list applicant docs: %w", err)
	}
	defer rows.Close()

	docs := []models.Doc{}
	for rows.Next() {
		var d models.Doc
		if err := rows.Scan(&d.Code, &d.DisplayName, &d.Quantity, &d.OrderNo); err != nil {
			return nil, fmt.Errorf("scan applicant doc: %w", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applicant docs: %w", err)
	}
	return docs, nil
}

func scanApplicant(scan func(dest ...any) error) (*models.Applicant, error) {
	var (
		a             models.Applicant
		email         sql.NullString
		dob           sql.NullTime
		phone         sql.NullString
		program       sql.NullString
		intake        sql.NullString
		faculty       sql.NullString
		priorDegree   sql.NullString
		note          sql.NullString
		receiverName  sql.NullString
		deletedAt     sql.NullTime
		deletedBy     sql.NullString
		deletedReason sql.NullString
	)
	err := scan(
		&a.StudentCode,
		&a.DossierCode,
		&a.FullName,
		&email,
		&dob,
		&a.ReceivedAt,
		&phone,
		&program,
		&intake,
		&faculty,
		&priorDegree,
		&note,
		&receiverName,
		&a.ChecklistVersionID,
		&a.Status,
		&a.Printed,
		&a.CreatedAt,
		&deletedAt,
		&deletedBy,
		&deletedReason,
	)
	if err != nil {
		return nil, err
	}
	a.Email = email.String
	a.Phone = phone.String
	a.Program = program.String
	a.Intake = intake.String
	a.Faculty = faculty.String
	a.PriorDegree = priorDegree.String
	a.Note = note.String
	a.ReceiverName = receiverName.String
	a.DeletedBy = deletedBy.String
	a.DeletedReason = deletedReason.String
	if dob.Valid {
		t := dob.Time
		a.DateOfBirth = &t
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		a.DeletedAt = &t
	}
	return &a, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

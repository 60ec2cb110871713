// Package postgres persists the audit journal. Appends join any
// transaction carried in the context so an entry commits atomically with
// the domain mutation it describes. Every append also lands a row in the
// audit_outbox table; the outbox worker streams those to Kafka.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"admitdesk/internal/audit"
	txcontext "admitdesk/pkg/platform/tx"
)

// Store implements the audit entry and deletion request stores over
// PostgreSQL via database/sql (lib/pq driver).
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

func (s *Store) Append(ctx context.Context, entry *audit.Entry) error {
	prev, err := json.Marshal(entry.PrevValues)
	if err != nil {
		return fmt.Errorf("marshal prev_values: %w", err)
	}
	next, err := json.Marshal(entry.NewValues)
	if err != nil {
		return fmt.Errorf("marshal new_values: %w", err)
	}

	const insertEntry = `
		INSERT INTO audit_entries (
			occurred_at, action, status, target_type, target_id,
			actor_id, actor_name, ip_address, path, correlation_id,
			prev_values, new_values, signature
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id
	`
	err = s.q(ctx).QueryRowContext(ctx, insertEntry,
		entry.OccurredAt,
		string(entry.Action),
		string(entry.Status),
		entry.TargetType,
		entry.TargetID,
		entry.ActorID,
		entry.ActorName,
		entry.IPAddress,
		entry.Path,
		entry.CorrelationID,
		prev,
		next,
		entry.Signature,
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal outbox payload: %w", err)
	}
	const insertOutbox = `
		INSERT INTO audit_outbox (entry_id, payload, created_at)
		VALUES ($1, $2, $3)
	`
	if _, err := s.q(ctx).ExecContext(ctx, insertOutbox, entry.ID, payload, time.Now()); err != nil {
		return fmt.Errorf("insert outbox row: %w", err)
	}
	return nil
}

const entryColumns = `
	id, occurred_at, action, status, target_type, target_id,
	actor_id, actor_name, ip_address, path, correlation_id,
	prev_values, new_values, signature
`

func (s *Store) GetEntry(ctx context.Context, id int64) (*audit.Entry, error) {
	row := s.q(ctx).QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM audit_entries WHERE id = $1`, id)

	entry, err := scanEntry(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, audit.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get audit entry: %w", err)
	}
	return entry, nil
}

func (s *Store) ListEntries(ctx context.Context, filter audit.Filter, sortBy audit.Sort, page audit.Page) (*audit.EntryPage, error) {
	where, args := buildFilter(filter)

	var total int
	countQuery := `SELECT COUNT(*) FROM audit_entries` + where
	if err := s.q(ctx).QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count audit entries: %w", err)
	}

	sortBy = sortBy.Normalize()
	dir := "ASC"
	if sortBy.Desc {
		dir = "DESC"
	}
	page = page.Clamp()

	// sortBy.Field comes from the whitelist in Normalize, never from
	// raw caller input.
	query := fmt.Sprintf(
		`SELECT %s FROM audit_entries%s ORDER BY %s %s LIMIT $%d OFFSET $%d`,
		entryColumns, where, sortBy.Field, dir, len(args)+1, len(args)+2,
	)
	args = append(args, page.Size, (page.Number-1)*page.Size)

	rows, err := s.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	items := []*audit.Entry{}
	for rows.Next() {
		entry, err := scanEntry(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		items = append(items, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}

	return &audit.EntryPage{Total: total, Page: page.Number, Size: page.Size, Items: items}, nil
}

func buildFilter(f audit.Filter) (string, []any) {
	var conds []string
	var args []any

	add := func(cond string, val any) {
		args = append(args, val)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.Action != "" {
		add("action = $%d", f.Action)
	}
	if f.TargetType != "" {
		add("target_type = $%d", f.TargetType)
	}
	if f.TargetID != "" {
		add("target_id = $%d", f.TargetID)
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		args = append(args, "%"+q+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf(
			`(actor_name ILIKE $%d OR path ILIKE $%d OR ip_address ILIKE $%d OR correlation_id ILIKE $%d OR action ILIKE $%d OR target_id ILIKE $%d)`,
			n, n, n, n, n, n,
		))
	}
	if a := strings.TrimSpace(f.Actor); a != "" {
		add("actor_name ILIKE $%d", "%"+a+"%")
	}
	if f.From != nil {
		add("occurred_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("occurred_at < $%d", *f.To)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanEntry(scan func(dest ...any) error) (*audit.Entry, error) {
	var (
		entry audit.Entry
		prev  []byte
		next  []byte
	)
	err := scan(
		&entry.ID,
		&entry.OccurredAt,
		&entry.Action,
		&entry.Status,
		&entry.TargetType,
		&entry.TargetID,
		&entry.ActorID,
		&entry.ActorName,
		&entry.IPAddress,
		&entry.Path,
		&entry.CorrelationID,
		&prev,
		&next,
		&entry.Signature,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(prev, &entry.PrevValues); err != nil {
		return nil, fmt.Errorf("unmarshal prev_values: %w", err)
	}
	if err := json.Unmarshal(next, &entry.NewValues); err != nil {
		return nil, fmt.Errorf("unmarshal new_values: %w", err)
	}
	return &entry, nil
}

func (s *Store) CreateDeletionRequest(ctx context.Context, req *audit.DeletionRequest) error {
	const query = `
		INSERT INTO deletion_requests (
			actor_id, actor_name, target_type, target_id, reason,
			status, audit_entry_id, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	err := s.q(ctx).QueryRowContext(ctx, query,
		req.ActorID,
		req.ActorName,
		req.TargetType,
		req.TargetID,
		req.Reason,
		req.Status,
		req.AuditEntryID,
		req.CreatedAt,
	).Scan(&req.ID)
	if err != nil {
		return fmt.Errorf("insert deletion request: %w", err)
	}
	return nil
}

func (s *Store) ListDeletionRequests(ctx context.Context, status string, page audit.Page) (*audit.DeletionRequestPage, error) {
	where := ""
	var args []any
	if status != "" {
		where = " WHERE status = $1"
		args = append(args, status)
	}

	var total int
	if err := s.q(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM deletion_requests`+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count deletion requests: %w", err)
	}

	page = page.Clamp()
	query := fmt.Sprintf(`
		SELECT id, actor_id, actor_name, target_type, target_id, reason,
		       status, audit_entry_id, confirmed_by, confirmed_at, created_at
		FROM deletion_requests%s
		ORDER BY id DESC
		LIMIT $%d OFFSET $%d`, where, len(args)+1, len(args)+2)
	args = append(args, page.Size, (page.Number-1)*page.Size)

	rows, err := s.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list deletion requests: %w", err)
	}
	defer rows.Close()

	items := []*audit.DeletionRequest{}
	for rows.Next() {
		var (
			req         audit.DeletionRequest
			confirmedBy sql.NullString
			confirmedAt sql.NullTime
		)
		err := rows.Scan(
			&req.ID,
			&req.ActorID,
			&req.ActorName,
			&req.TargetType,
			&req.TargetID,
			&req.Reason,
			&req.Status,
			&req.AuditEntryID,
			&confirmedBy,
			&confirmedAt,
			&req.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan deletion request: %w", err)
		}
		req.ConfirmedBy = confirmedBy.String
		if confirmedAt.Valid {
			at := confirmedAt.Time
			req.ConfirmedAt = &at
		}
		items = append(items, &req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deletion requests: %w", err)
	}

	return &audit.DeletionRequestPage{Total: total, Page: page.Number, Size: page.Size, Items: items}, nil
}

func (s *Store) ResolvePendingDeletionRequests(ctx context.Context, targetType, targetID, newStatus, confirmedBy string, confirmedAt time.Time) (int, error) {
	const query = `
		UPDATE deletion_requests
		SET status = $1, confirmed_by = $2, confirmed_at = $3
		WHERE status = $4 AND target_type = $5 AND target_id = $6
	`
	res, err := s.q(ctx).ExecContext(ctx, query, newStatus, confirmedBy, confirmedAt, audit.RequestPending, targetType, targetID)
	if err != nil {
		return 0, fmt.Errorf("resolve deletion requests: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("resolve deletion requests: %w", err)
	}
	return int(n), nil
}

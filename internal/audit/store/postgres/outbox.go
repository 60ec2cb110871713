package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"

	"admitdesk/internal/audit"
)

// ListUnpublished returns up to limit outbox rows that have not been
// published yet, oldest first.
func (s *Store) ListUnpublished(ctx context.Context, limit int) ([]audit.OutboxRow, error) {
	const query = `
		SELECT id, entry_id, payload
		FROM audit_outbox
		WHERE published_at IS NULL
		ORDER BY id
		LIMIT $1
	`
	rows, err := s.q(ctx).QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list unpublished outbox rows: %w", err)
	}
	defer rows.Close()

	var out []audit.OutboxRow
	for rows.Next() {
		var row audit.OutboxRow
		if err := rows.Scan(&row.ID, &row.EntryID, &row.Payload); err != nil {
			return nil, fmt.Errorf("scan outbox row: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox rows: %w", err)
	}
	return out, nil
}

// MarkPublished stamps the given outbox rows as delivered.
func (s *Store) MarkPublished(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	const query = `UPDATE audit_outbox SET published_at = $1 WHERE id = ANY($2)`
	if _, err := s.q(ctx).ExecContext(ctx, query, time.Now(), pq.Array(ids)); err != nil {
		return fmt.Errorf("mark outbox rows published: %w", err)
	}
	return nil
}

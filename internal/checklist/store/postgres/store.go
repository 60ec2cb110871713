// Package postgres reads checklist versions seeded by migrations.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"admitdesk/internal/checklist/models"
	txcontext "admitdesk/pkg/platform/tx"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) q(ctx context.Context) querier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *Store) Active(ctx context.Context) (*models.Version, error) {
	row := s.q(ctx).QueryRowContext(ctx, `
		SELECT id, name, active, created_at
		FROM checklist_versions
		WHERE active
		ORDER BY id DESC
		LIMIT 1`)
	return s.scanWithItems(ctx, row)
}

func (s *Store) Get(ctx context.Context, id int64) (*models.Version, error) {
	row := s.q(ctx).QueryRowContext(ctx, `
		SELECT id, name, active, created_at
		FROM checklist_versions
		WHERE id = $1`, id)
	return s.scanWithItems(ctx, row)
}

func (s *Store) scanWithItems(ctx context.Context, row *sql.Row) (*models.Version, error) {
	var v models.Version
	err := row.Scan(&v.ID, &v.Name, &v.Active, &v.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get checklist version: %w", err)
	}

	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT id, version_id, code, display_name, order_no, required
		FROM checklist_items
		WHERE version_id = $1
		ORDER BY order_no, code`, v.ID)
	if err != nil {
		return nil, fmt.Errorf("list checklist items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var it models.Item
		if err := rows.Scan(&it.ID, &it.VersionID, &it.Code, &it.DisplayName, &it.OrderNo, &it.Required); err != nil {
			return nil, fmt.Errorf("scan checklist item: %w", err)
		}
		v.Items = append(v.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate checklist items: %w", err)
	}
	return &v, nil
}

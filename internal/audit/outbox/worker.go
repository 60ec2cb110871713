// Package outbox drains staged audit events to the Kafka sink. The
// journal's source of truth stays in Postgres; the stream exists for
// downstream consumers (SIEM, reporting).
package outbox

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"admitdesk/internal/audit"
)

// Source lists and acknowledges staged rows.
type Source interface {
	ListUnpublished(ctx context.Context, limit int) ([]audit.OutboxRow, error)
	MarkPublished(ctx context.Context, ids []int64) error
}

// Publisher delivers one event payload.
type Publisher interface {
	Publish(ctx context.Context, key string, payload []byte) error
}

// Worker polls the outbox table and publishes rows in order. Delivery is
// at-least-once: a crash between publish and acknowledge replays rows.
type Worker struct {
	source    Source
	publisher Publisher
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
}

func NewWorker(source Source, publisher Publisher, logger *slog.Logger) *Worker {
	return &Worker{
		source:    source,
		publisher: publisher,
		logger:    logger,
		interval:  2 * time.Second,
		batchSize: 100,
	}
}

// Run polls until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.drain(ctx); err != nil {
				// Transient broker/store trouble; keep polling.
				w.logger.ErrorContext(ctx, "outbox drain failed", "error", err)
			}
		}
	}
}

func (w *Worker) drain(ctx context.Context) error {
	rows, err := w.source.ListUnpublished(ctx, w.batchSize)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	var pubErr error
	published := make([]int64, 0, len(rows))
	for _, row := range rows {
		if err := w.publisher.Publish(ctx, strconv.FormatInt(row.EntryID, 10), row.Payload); err != nil {
			// Stop at the first failure to preserve ordering; the
			// already-published prefix is acknowledged below.
			pubErr = err
			break
		}
		published = append(published, row.ID)
	}

	if len(published) > 0 {
		if err := w.source.MarkPublished(ctx, published); err != nil {
			return err
		}
	}
	return pubErr
}

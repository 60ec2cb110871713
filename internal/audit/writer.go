package audit

import (
	"context"
	"encoding/json"
	"log/slog"

	"admitdesk/internal/platform/metrics"
	"admitdesk/pkg/apperrors"
	"admitdesk/pkg/requestcontext"
)

// Store is the append-only persistence behind the writer. Postgres and
// memory implementations live under store/.
type Store interface {
	// Append persists the entry and assigns its ID. It joins any
	// transaction present in ctx and never commits on its own, so
	// callers control whether the entry lands with the domain mutation
	// or in a best-effort follow-up transaction.
	Append(ctx context.Context, entry *Entry) error
}

// Record is the input to one audit write. Prev and New accept nil, a
// map, or a raw string; the writer normalizes them to JSON objects.
type Record struct {
	Action     Action
	Status     Status
	TargetType string
	TargetID   string
	Prev       any
	New        any
}

// Writer appends audit entries. Actor identity and request metadata are
// read from the context, never from ambient state.
type Writer struct {
	store   Store
	secret  []byte
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewWriter constructs an audit writer. The secret keys the tamper
// evidence signature and must match across replicas.
func NewWriter(store Store, secret []byte, logger *slog.Logger, m *metrics.Metrics) (*Writer, error) {
	if store == nil {
		return nil, apperrors.New(apperrors.CodeInternal, "audit store is required")
	}
	if len(secret) == 0 {
		return nil, apperrors.New(apperrors.CodeInternal, "audit HMAC secret is required")
	}
	return &Writer{store: store, secret: secret, logger: logger, metrics: m}, nil
}

// Write appends one entry and returns it with its assigned ID. The
// caller decides what an error means: bundled writes propagate it so the
// enclosing transaction rolls back, while error-path bookkeeping uses
// WriteBestEffort instead.
func (w *Writer) Write(ctx context.Context, rec Record) (*Entry, error) {
	actor := requestcontext.ActorFrom(ctx)

	entry := &Entry{
		OccurredAt:    requestcontext.Now(ctx),
		Action:        rec.Action,
		Status:        rec.Status,
		TargetType:    rec.TargetType,
		TargetID:      rec.TargetID,
		ActorID:       actor.ID,
		ActorName:     actor.Name,
		IPAddress:     requestcontext.ClientIP(ctx),
		Path:          requestcontext.RequestPath(ctx),
		CorrelationID: requestcontext.CorrelationID(ctx),
		PrevValues:    NormalizeValues(rec.Prev),
		NewValues:     NormalizeValues(rec.New),
	}

	sig, err := Sign(w.secret, entry.Action, entry.Status, entry.TargetType, entry.TargetID, entry.CorrelationID, entry.PrevValues, entry.NewValues)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to sign audit entry")
	}
	entry.Signature = sig

	if err := w.store.Append(ctx, entry); err != nil {
		if w.metrics != nil {
			w.metrics.AuditWriteFailures.Inc()
		}
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to append audit entry")
	}

	if w.metrics != nil {
		w.metrics.AuditEntriesWritten.WithLabelValues(string(entry.Action), string(entry.Status)).Inc()
	}
	return entry, nil
}

// WriteBestEffort appends an entry on a path where audit durability must
// never change the domain outcome. On failure it logs, counts, and makes
// one fallback attempt to record the failure itself; if that fails too
// the log line is all that remains.
func (w *Writer) WriteBestEffort(ctx context.Context, rec Record) {
	_, err := w.Write(ctx, rec)
	if err == nil {
		return
	}
	w.logger.ErrorContext(ctx, "best-effort audit write failed",
		"action", rec.Action,
		"target_type", rec.TargetType,
		"target_id", rec.TargetID,
		"correlation_id", requestcontext.CorrelationID(ctx),
		"error", err,
	)

	if _, err := w.Write(ctx, Record{
		Action:     ActionException,
		Status:     StatusFailure,
		TargetType: rec.TargetType,
		TargetID:   rec.TargetID,
		New: map[string]any{
			"error_kind": "audit_write_failed",
			"action":     string(rec.Action),
		},
	}); err != nil {
		w.logger.ErrorContext(ctx, "fallback audit write failed", "error", err)
	}
}

// NormalizeValues guarantees the stored snapshot column is always a JSON
// object: nil becomes an empty map, maps pass through, a string is
// parsed as a JSON object if possible, and anything else is wrapped
// under "_raw".
func NormalizeValues(v any) map[string]any {
	switch val := v.(type) {
	case nil:
		return map[string]any{}
	case map[string]any:
		if val == nil {
			return map[string]any{}
		}
		return val
	case string:
		var parsed any
		if err := json.Unmarshal([]byte(val), &parsed); err == nil {
			if obj, ok := parsed.(map[string]any); ok {
				return obj
			}
			return map[string]any{"_raw": parsed}
		}
		return map[string]any{"_raw": val}
	default:
		return map[string]any{"_raw": val}
	}
}

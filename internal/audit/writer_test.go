package audit

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"admitdesk/pkg/requestcontext"
)

type captureStore struct {
	entries []*Entry
}

func (s *captureStore) Append(_ context.Context, entry *Entry) error {
	entry.ID = int64(len(s.entries) + 1)
	s.entries = append(s.entries, entry)
	return nil
}

func newTestWriter(t *testing.T, store Store) *Writer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	w, err := NewWriter(store, testSecret, logger, nil)
	require.NoError(t, err)
	return w
}

func auditCtx() context.Context {
	ctx := context.Background()
	ctx = requestcontext.WithActor(ctx, requestcontext.Actor{ID: "7", Name: "Nguyen Van A"})
	ctx = requestcontext.WithClientIP(ctx, "10.0.0.5")
	ctx = requestcontext.WithRequestPath(ctx, "/api/applicants/2310000123")
	ctx = requestcontext.WithCorrelationID(ctx, "c9f1")
	ctx = requestcontext.WithTime(ctx, time.Date(2025, 3, 1, 9, 12, 44, 0, time.UTC))
	return ctx
}

func TestWriteFillsRequestMetadata(t *testing.T) {
	store := &captureStore{}
	w := newTestWriter(t, store)

	entry, err := w.Write(auditCtx(), Record{
		Action:     ActionDeleteSoft,
		Status:     StatusSuccess,
		TargetType: "Applicant",
		TargetID:   "2310000123",
		Prev:       map[string]any{"status": "saved"},
		New:        map[string]any{"deleted_reason": "duplicate"},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(1), entry.ID)
	assert.Equal(t, "7", entry.ActorID)
	assert.Equal(t, "Nguyen Van A", entry.ActorName)
	assert.Equal(t, "10.0.0.5", entry.IPAddress)
	assert.Equal(t, "/api/applicants/2310000123", entry.Path)
	assert.Equal(t, "c9f1", entry.CorrelationID)
	assert.Equal(t, time.Date(2025, 3, 1, 9, 12, 44, 0, time.UTC), entry.OccurredAt)
	assert.NotEmpty(t, entry.Signature, "signature is a non-null invariant")

	ok, err := Verify(testSecret, entry)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestWriteUnauthenticatedActorIsAbsent(t *testing.T) {
	store := &captureStore{}
	w := newTestWriter(t, store)

	entry, err := w.Write(context.Background(), Record{
		Action: ActionException,
		Status: StatusFailure,
	})
	require.NoError(t, err)

	assert.Empty(t, entry.ActorID)
	assert.Empty(t, entry.ActorName)
	assert.NotNil(t, entry.PrevValues)
	assert.NotNil(t, entry.NewValues)
}

func TestWriteStoreFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := NewMockStore(ctrl)
	store.EXPECT().Append(gomock.Any(), gomock.Any()).Return(errors.New("disk full"))

	w := newTestWriter(t, store)

	_, err := w.Write(auditCtx(), Record{Action: ActionCreate, Status: StatusSuccess})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to append audit entry")
}

func TestWriteBestEffortFallsBackOnFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := NewMockStore(ctrl)

	var fallback *Entry
	gomock.InOrder(
		store.EXPECT().Append(gomock.Any(), gomock.Any()).Return(errors.New("disk full")),
		store.EXPECT().Append(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, e *Entry) error {
			fallback = e
			return nil
		}),
	)

	w := newTestWriter(t, store)
	w.WriteBestEffort(auditCtx(), Record{
		Action: ActionRead, Status: StatusSuccess,
		TargetType: "Applicant", TargetID: "2310000123",
	})

	require.NotNil(t, fallback)
	assert.Equal(t, ActionException, fallback.Action)
	assert.Equal(t, StatusFailure, fallback.Status)
	assert.Equal(t, "2310000123", fallback.TargetID)
	assert.Equal(t, "audit_write_failed", fallback.NewValues["error_kind"])
	assert.Equal(t, "READ", fallback.NewValues["action"])
}

func TestWriteBestEffortSwallowsDoubleFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := NewMockStore(ctrl)
	store.EXPECT().Append(gomock.Any(), gomock.Any()).Return(errors.New("disk full")).Times(2)

	w := newTestWriter(t, store)

	// Must not panic or propagate; the domain outcome is unaffected.
	w.WriteBestEffort(auditCtx(), Record{Action: ActionException, Status: StatusFailure})
}

func TestNormalizeValues(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want map[string]any
	}{
		{"nil becomes empty object", nil, map[string]any{}},
		{"map passes through", map[string]any{"a": 1}, map[string]any{"a": 1}},
		{"JSON object string is parsed", `{"status":"saved"}`, map[string]any{"status": "saved"}},
		{"JSON scalar string is wrapped", `42`, map[string]any{"_raw": float64(42)}},
		{"non-JSON string is wrapped", "plain text", map[string]any{"_raw": "plain text"}},
		{"non-string scalar is wrapped", 7, map[string]any{"_raw": 7}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeValues(tt.in))
		})
	}
}

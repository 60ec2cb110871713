package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"admitdesk/internal/audit"
)

func seed(t *testing.T, s *Store) {
	t.Helper()
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	entries := []*audit.Entry{
		{OccurredAt: base, Action: audit.ActionCreate, Status: audit.StatusSuccess,
			TargetType: "Applicant", TargetID: "2310000123", ActorName: "Nguyen Van A",
			Path: "/api/applicants", CorrelationID: "c1"},
		{OccurredAt: base.Add(time.Hour), Action: audit.ActionUpdate, Status: audit.StatusSuccess,
			TargetType: "Applicant", TargetID: "2310000123", ActorName: "Nguyen Van A",
			Path: "/api/applicants/2310000123", CorrelationID: "c2"},
		{OccurredAt: base.Add(2 * time.Hour), Action: audit.ActionDeleteSoft, Status: audit.StatusSuccess,
			TargetType: "Applicant", TargetID: "2310000456", ActorName: "Pham Thi D",
			Path: "/api/applicants/2310000456", CorrelationID: "c3"},
	}
	for _, e := range entries {
		require.NoError(t, s.Append(context.Background(), e))
	}
}

func TestAppendAssignsSequentialIDs(t *testing.T) {
	s := New()
	seed(t, s)

	for i := 1; i <= 3; i++ {
		e, err := s.GetEntry(context.Background(), int64(i))
		require.NoError(t, err)
		assert.Equal(t, int64(i), e.ID)
	}

	_, err := s.GetEntry(context.Background(), 99)
	assert.ErrorIs(t, err, audit.ErrNotFound)
}

func TestListDefaultsToNewestFirst(t *testing.T) {
	s := New()
	seed(t, s)

	page, err := s.ListEntries(context.Background(), audit.Filter{}, audit.Sort{}, audit.Page{})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, audit.ActionDeleteSoft, page.Items[0].Action)
	assert.Equal(t, audit.ActionCreate, page.Items[2].Action)
}

func TestListFilters(t *testing.T) {
	s := New()
	seed(t, s)
	ctx := context.Background()

	tests := []struct {
		name   string
		filter audit.Filter
		want   int
	}{
		{"by action", audit.Filter{Action: "UPDATE"}, 1},
		{"by target id", audit.Filter{TargetID: "2310000123"}, 2},
		{"by actor substring, case folded", audit.Filter{Actor: "pham"}, 1},
		{"free text over path", audit.Filter{Query: "0456"}, 1},
		{"free text over correlation id", audit.Filter{Query: "c2"}, 1},
		{"filters compose", audit.Filter{TargetID: "2310000123", Action: "CREATE"}, 1},
		{"no match", audit.Filter{Action: "RESTORE"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := s.ListEntries(ctx, tt.filter, audit.Sort{}, audit.Page{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, page.Total)
		})
	}
}

func TestListDateRangeIsHalfOpen(t *testing.T) {
	s := New()
	seed(t, s)
	ctx := context.Background()

	from := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	to := time.Date(2025, 3, 1, 11, 0, 0, 0, time.UTC)

	page, err := s.ListEntries(ctx, audit.Filter{From: &from, To: &to}, audit.Sort{}, audit.Page{})
	require.NoError(t, err)
	require.Equal(t, 1, page.Total, "from is inclusive, to is exclusive")
	assert.Equal(t, audit.ActionUpdate, page.Items[0].Action)
}

func TestListPaginationClamps(t *testing.T) {
	s := New()
	for i := 0; i < 7; i++ {
		require.NoError(t, s.Append(context.Background(), &audit.Entry{
			OccurredAt: time.Date(2025, 3, 1, 9, i, 0, 0, time.UTC),
			Action:     audit.ActionCreate,
			Status:     audit.StatusSuccess,
			TargetID:   fmt.Sprintf("231000%04d", i),
		}))
	}
	ctx := context.Background()

	page, err := s.ListEntries(ctx, audit.Filter{}, audit.Sort{Field: "id"}, audit.Page{Number: 2, Size: 3})
	require.NoError(t, err)
	assert.Equal(t, 7, page.Total)
	require.Len(t, page.Items, 3)
	assert.Equal(t, int64(4), page.Items[0].ID)

	// Out-of-range pages come back empty, not failing.
	page, err = s.ListEntries(ctx, audit.Filter{}, audit.Sort{}, audit.Page{Number: 99, Size: 3})
	require.NoError(t, err)
	assert.Empty(t, page.Items)

	// Invalid input is clamped.
	page, err = s.ListEntries(ctx, audit.Filter{}, audit.Sort{}, audit.Page{Number: -1, Size: 9999})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, audit.MaxPageSize, page.Size)
}

func TestListSortWhitelist(t *testing.T) {
	s := New()
	seed(t, s)
	ctx := context.Background()

	page, err := s.ListEntries(ctx, audit.Filter{}, audit.Sort{Field: "actor_name"}, audit.Page{})
	require.NoError(t, err)
	assert.Equal(t, "Nguyen Van A", page.Items[0].ActorName)

	// Unknown fields fall back to occurred_at descending.
	page, err = s.ListEntries(ctx, audit.Filter{}, audit.Sort{Field: "signature; DROP TABLE"}, audit.Page{})
	require.NoError(t, err)
	assert.Equal(t, audit.ActionDeleteSoft, page.Items[0].Action)
}

func TestStoredEntriesAreImmutableToCallers(t *testing.T) {
	s := New()
	ctx := context.Background()

	entry := &audit.Entry{
		OccurredAt: time.Now(),
		Action:     audit.ActionCreate,
		Status:     audit.StatusSuccess,
		TargetID:   "2310000123",
		NewValues:  map[string]any{"full_name": "Tran Thi B"},
	}
	require.NoError(t, s.Append(ctx, entry))

	got, err := s.GetEntry(ctx, entry.ID)
	require.NoError(t, err)
	got.NewValues["full_name"] = "tampered"

	again, err := s.GetEntry(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, "Tran Thi B", again.NewValues["full_name"])
}

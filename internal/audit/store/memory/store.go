// Package memory provides the in-memory audit store used by unit tests
// and dev setups without Postgres.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"admitdesk/internal/audit"
)

// Store keeps audit entries and deletion requests in memory. Appended
// entries are copied on the way in and out so the journal stays
// immutable to callers.
type Store struct {
	mu       sync.RWMutex
	nextID   int64
	entries  []*audit.Entry
	reqID    int64
	requests []*audit.DeletionRequest
}

func New() *Store {
	return &Store{}
}

func (s *Store) Append(_ context.Context, entry *audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	entry.ID = s.nextID
	stored := cloneEntry(entry)
	s.entries = append(s.entries, stored)
	return nil
}

func (s *Store) GetEntry(_ context.Context, id int64) (*audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.entries {
		if e.ID == id {
			return cloneEntry(e), nil
		}
	}
	return nil, audit.ErrNotFound
}

func (s *Store) ListEntries(_ context.Context, filter audit.Filter, sortBy audit.Sort, page audit.Page) (*audit.EntryPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*audit.Entry
	for _, e := range s.entries {
		if matches(e, filter) {
			matched = append(matched, e)
		}
	}

	sortBy = sortBy.Normalize()
	sort.SliceStable(matched, func(i, j int) bool {
		less := entryLess(matched[i], matched[j], sortBy.Field)
		if sortBy.Desc {
			return !less && !entryEqual(matched[i], matched[j], sortBy.Field)
		}
		return less
	})

	page = page.Clamp()
	total := len(matched)
	start := (page.Number - 1) * page.Size
	if start > total {
		start = total
	}
	end := start + page.Size
	if end > total {
		end = total
	}

	items := make([]*audit.Entry, 0, end-start)
	for _, e := range matched[start:end] {
		items = append(items, cloneEntry(e))
	}

	return &audit.EntryPage{Total: total, Page: page.Number, Size: page.Size, Items: items}, nil
}

func (s *Store) CreateDeletionRequest(_ context.Context, req *audit.DeletionRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reqID++
	req.ID = s.reqID
	clone := *req
	s.requests = append(s.requests, &clone)
	return nil
}

func (s *Store) ListDeletionRequests(_ context.Context, status string, page audit.Page) (*audit.DeletionRequestPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*audit.DeletionRequest
	for _, r := range s.requests {
		if status == "" || r.Status == status {
			matched = append(matched, r)
		}
	}
	// Newest first, matching the postgres ORDER BY id DESC.
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })

	page = page.Clamp()
	total := len(matched)
	start := (page.Number - 1) * page.Size
	if start > total {
		start = total
	}
	end := start + page.Size
	if end > total {
		end = total
	}

	items := make([]*audit.DeletionRequest, 0, end-start)
	for _, r := range matched[start:end] {
		clone := *r
		items = append(items, &clone)
	}
	return &audit.DeletionRequestPage{Total: total, Page: page.Number, Size: page.Size, Items: items}, nil
}

func (s *Store) ResolvePendingDeletionRequests(_ context.Context, targetType, targetID, newStatus, confirmedBy string, confirmedAt time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resolved := 0
	for _, r := range s.requests {
		if r.Status == audit.RequestPending && r.TargetType == targetType && r.TargetID == targetID {
			r.Status = newStatus
			r.ConfirmedBy = confirmedBy
			at := confirmedAt
			r.ConfirmedAt = &at
			resolved++
		}
	}
	return resolved, nil
}

func matches(e *audit.Entry, f audit.Filter) bool {
	if f.Action != "" && string(e.Action) != f.Action {
		return false
	}
	if f.TargetType != "" && e.TargetType != f.TargetType {
		return false
	}
	if f.TargetID != "" && e.TargetID != f.TargetID {
		return false
	}
	if f.Actor != "" && !containsFold(e.ActorName, f.Actor) {
		return false
	}
	if f.Query != "" {
		q := strings.TrimSpace(f.Query)
		if !containsFold(e.ActorName, q) &&
			!containsFold(e.Path, q) &&
			!containsFold(e.IPAddress, q) &&
			!containsFold(e.CorrelationID, q) &&
			!containsFold(string(e.Action), q) &&
			!containsFold(e.TargetID, q) {
			return false
		}
	}
	if f.From != nil && e.OccurredAt.Before(*f.From) {
		return false
	}
	if f.To != nil && !e.OccurredAt.Before(*f.To) {
		return false
	}
	return true
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func entryLess(a, b *audit.Entry, field string) bool {
	switch field {
	case "id":
		return a.ID < b.ID
	case "actor_name":
		return a.ActorName < b.ActorName
	case "action":
		return a.Action < b.Action
	case "status":
		return a.Status < b.Status
	case "target_id":
		return a.TargetID < b.TargetID
	default:
		return a.OccurredAt.Before(b.OccurredAt)
	}
}

func entryEqual(a, b *audit.Entry, field string) bool {
	switch field {
	case "id":
		return a.ID == b.ID
	case "actor_name":
		return a.ActorName == b.ActorName
	case "action":
		return a.Action == b.Action
	case "status":
		return a.Status == b.Status
	case "target_id":
		return a.TargetID == b.TargetID
	default:
		return a.OccurredAt.Equal(b.OccurredAt)
	}
}

func cloneEntry(e *audit.Entry) *audit.Entry {
	clone := *e
	clone.PrevValues = cloneMap(e.PrevValues)
	clone.NewValues = cloneMap(e.NewValues)
	return &clone
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

package audit

import (
	"bytes"
	"context"
	"encoding/csv"
	"strings"
	"testing"
	"time"
)

type stubTimelineRepo struct {
	entries    []LogEntry
	lastLimit  int
	lastOffset int
	lastFilter TimelineFilters
}

func (s *stubTimelineRepo) Window(ctx context.Context, filters TimelineFilters, limit, offset int) ([]LogEntry, error) {
	s.lastFilter = filters
	s.lastLimit = limit
	s.lastOffset = offset
	if limit < len(s.entries) {
		return s.entries[:limit], nil
	}
	return s.entries, nil
}

func mockEntry(entity Entity, id int64, action, ts string) LogEntry {
	at, _ := time.Parse(time.RFC3339, ts)
	return LogEntry{Entity: entity, EntityID: id, ActorID: 7, Action: action, Details: []byte(`{}`), At: at}
}

func TestServiceTimelinePaging(t *testing.T) {
	repo := &stubTimelineRepo{
		entries: []LogEntry{
			mockEntry(EntityOrder, 3, "approve", "2025-03-10T10:00:00Z"),
			mockEntry(EntityPayment, 9, "record", "2025-03-09T09:00:00Z"),
			mockEntry(EntityOrder, 2, "create", "2025-03-08T08:00:00Z"),
		},
	}
	svc := NewService(repo)
	result, err := svc.Timeline(context.Background(), TimelineFilters{Page: 1, PageSize: 2})
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if len(result.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(result.Entries))
	}
	if !result.Paging.HasNext {
		t.Fatalf("expected hasNext true")
	}
	if result.Paging.NextPage != 2 {
		t.Fatalf("expected nextPage 2, got %d", result.Paging.NextPage)
	}
	if repo.lastLimit != 3 {
		t.Fatalf("expected limit 3, got %d", repo.lastLimit)
	}
	if repo.lastOffset != 0 {
		t.Fatalf("expected offset 0, got %d", repo.lastOffset)
	}
}

func TestServiceTimelineClampsPageSize(t *testing.T) {
	repo := &stubTimelineRepo{}
	svc := NewService(repo)
	if _, err := svc.Timeline(context.Background(), TimelineFilters{Page: 2, PageSize: 500}); err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if repo.lastLimit != 51 {
		t.Fatalf("expected limit 51 after clamp, got %d", repo.lastLimit)
	}
	if repo.lastOffset != 50 {
		t.Fatalf("expected offset 50, got %d", repo.lastOffset)
	}

	if _, err := svc.Timeline(context.Background(), TimelineFilters{}); err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if repo.lastLimit != 21 {
		t.Fatalf("expected default limit 21, got %d", repo.lastLimit)
	}
}

func TestServiceTimelinePassesFilters(t *testing.T) {
	repo := &stubTimelineRepo{}
	svc := NewService(repo)
	filters := TimelineFilters{Entity: EntityShop, EntityID: 12, Action: "update"}
	if _, err := svc.Timeline(context.Background(), filters); err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if repo.lastFilter.Entity != EntityShop || repo.lastFilter.EntityID != 12 || repo.lastFilter.Action != "update" {
		t.Fatalf("filters not forwarded: %+v", repo.lastFilter)
	}
}

func TestServiceTimelineWithoutRepo(t *testing.T) {
	svc := NewService(nil)
	if _, err := svc.Timeline(context.Background(), TimelineFilters{}); err == nil {
		t.Fatalf("expected error for missing repository")
	}
}

func TestExportTimelineCSV(t *testing.T) {
	repo := &stubTimelineRepo{
		entries: []LogEntry{
			mockEntry(EntityOrder, 3, "approve", "2025-03-10T10:00:00Z"),
			mockEntry(EntityPayment, 9, "record", "2025-03-09T09:00:00Z"),
		},
	}
	svc := NewService(repo)

	var buf bytes.Buffer
	if err := svc.ExportTimeline(context.Background(), TimelineFilters{}, &buf); err != nil {
		t.Fatalf("export: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d lines: %q", len(lines), buf.String())
	}
	if lines[0] != "entity,entity_id,actor_id,action,details,at" {
		t.Fatalf("unexpected header: %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "order,3,7,approve") {
		t.Fatalf("unexpected first row: %q", lines[1])
	}
	if !strings.Contains(lines[2], "2025-03-09T09:00:00Z") {
		t.Fatalf("timestamp missing from row: %q", lines[2])
	}
}

func TestExportTimelineQuotesDetails(t *testing.T) {
	entry := mockEntry(EntityShop, 5, "update", "2025-03-01T00:00:00Z")
	entry.Details = []byte(`{"name":{"from":"A, B","to":"C"}}`)
	repo := &stubTimelineRepo{entries: []LogEntry{entry}}
	svc := NewService(repo)

	var buf bytes.Buffer
	if err := svc.ExportTimeline(context.Background(), TimelineFilters{}, &buf); err != nil {
		t.Fatalf("export: %v", err)
	}
	reader := csv.NewReader(&buf)
	records, err := reader.ReadAll()
	if err != nil {
		t.Fatalf("read csv back: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[1][4] != `{"name":{"from":"A, B","to":"C"}}` {
		t.Fatalf("details mangled: %q", records[1][4])
	}
}

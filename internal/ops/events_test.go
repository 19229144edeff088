package ops

import (
	"testing"
	"time"

	"github.com/prepd/prepd/internal/analysis"
	"github.com/prepd/prepd/internal/db"
)

func TestEvents_NewestFirst(t *testing.T) {
	tmpDir := t.TempDir()
	database, err := db.Init(tmpDir)
	if err != nil {
		t.Fatalf("db.Init failed: %v", err)
	}
	defer database.Close()

	base := time.Date(2026, 9, 1, 18, 0, 0, 0, time.UTC).Unix()
	for i, id := range []string{"01EVT0000000000000000000001", "01EVT0000000000000000000002", "01EVT0000000000000000000003"} {
		rec := newTestRecord(id, "default", "evt-"+id[25:], "Event", base+int64(i)*86400)
		if _, err := db.UpsertAnalysis(database, rec, nil); err != nil {
			t.Fatalf("UpsertAnalysis failed: %v", err)
		}
	}

	out, err := Events(database, EventsInput{})
	if err != nil {
		t.Fatalf("Events failed: %v", err)
	}

	if len(out.Items) != 3 {
		t.Fatalf("len(Items) = %d, want 3", len(out.Items))
	}
	if out.Sort != "event_start_desc" {
		t.Errorf("Sort = %q, want event_start_desc", out.Sort)
	}
	// Latest start first.
	if out.Items[0].ID != "01EVT0000000000000000000003" {
		t.Errorf("Items[0].ID = %q, want the latest event", out.Items[0].ID)
	}
	if out.Items[2].ID != "01EVT0000000000000000000001" {
		t.Errorf("Items[2].ID = %q, want the earliest event", out.Items[2].ID)
	}
}

func TestEvents_Pagination(t *testing.T) {
	tmpDir := t.TempDir()
	database, err := db.Init(tmpDir)
	if err != nil {
		t.Fatalf("db.Init failed: %v", err)
	}
	defer database.Close()

	base := time.Date(2026, 9, 1, 18, 0, 0, 0, time.UTC).Unix()
	ids := []string{"01EVT0000000000000000000004", "01EVT0000000000000000000005", "01EVT0000000000000000000006"}
	for i, id := range ids {
		rec := newTestRecord(id, "default", "evt-"+id[25:], "Event", base+int64(i)*86400)
		if _, err := db.UpsertAnalysis(database, rec, nil); err != nil {
			t.Fatalf("UpsertAnalysis failed: %v", err)
		}
	}

	page1, err := Events(database, EventsInput{Limit: 2})
	if err != nil {
		t.Fatalf("Events failed: %v", err)
	}
	if len(page1.Items) != 2 {
		t.Errorf("len(Items) = %d, want 2", len(page1.Items))
	}
	if !page1.Pagination.HasMore {
		t.Error("HasMore = false, want true")
	}
	if page1.Pagination.Total != 3 {
		t.Errorf("Total = %d, want 3", page1.Pagination.Total)
	}

	page2, err := Events(database, EventsInput{Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("Events failed: %v", err)
	}
	if len(page2.Items) != 1 {
		t.Errorf("len(Items) = %d, want 1", len(page2.Items))
	}
	if page2.Pagination.HasMore {
		t.Error("HasMore = true, want false on last page")
	}
	if page2.Pagination.Offset != 2 {
		t.Errorf("Offset = %d, want 2", page2.Pagination.Offset)
	}
}

func TestEvents_TaskCounts(t *testing.T) {
	tmpDir := t.TempDir()
	database, err := db.Init(tmpDir)
	if err != nil {
		t.Fatalf("db.Init failed: %v", err)
	}
	defer database.Close()

	due := time.Now().Add(24 * time.Hour).Unix()
	rec := newTestRecord("01EVT0000000000000000000007", "default", "evt-counted", "Party", due)
	tasks := []analysis.Task{
		newTestTask("01EVTA000000000000000000001", "One", due, analysis.PriorityMedium),
		newTestTask("01EVTA000000000000000000002", "Two", due, analysis.PriorityMedium),
	}
	if _, err := db.UpsertAnalysis(database, rec, tasks); err != nil {
		t.Fatalf("UpsertAnalysis failed: %v", err)
	}
	bare := newTestRecord("01EVT0000000000000000000008", "default", "evt-bare", "Call", due)
	if _, err := db.UpsertAnalysis(database, bare, nil); err != nil {
		t.Fatalf("UpsertAnalysis failed: %v", err)
	}

	out, err := Events(database, EventsInput{})
	if err != nil {
		t.Fatalf("Events failed: %v", err)
	}

	counts := make(map[string]int)
	for _, item := range out.Items {
		counts[item.EventID] = item.TaskCount
	}
	if counts["evt-counted"] != 2 {
		t.Errorf("TaskCount[evt-counted] = %d, want 2", counts["evt-counted"])
	}
	if counts["evt-bare"] != 0 {
		t.Errorf("TaskCount[evt-bare] = %d, want 0", counts["evt-bare"])
	}
}

func TestEvents_HouseholdIsolation(t *testing.T) {
	tmpDir := t.TempDir()
	database, err := db.Init(tmpDir)
	if err != nil {
		t.Fatalf("db.Init failed: %v", err)
	}
	defer database.Close()

	start := time.Now().Unix()
	recA := newTestRecord("01EVT0000000000000000000009", "hargrove", "evt-1", "Theirs", start)
	recB := newTestRecord("01EVT000000000000000000000A", "larkin", "evt-1", "Ours", start)
	for _, rec := range []*analysis.AnalyzedEvent{recA, recB} {
		if _, err := db.UpsertAnalysis(database, rec, nil); err != nil {
			t.Fatalf("UpsertAnalysis failed: %v", err)
		}
	}

	out, err := Events(database, EventsInput{Household: "Larkin"})
	if err != nil {
		t.Fatalf("Events failed: %v", err)
	}
	if len(out.Items) != 1 {
		t.Fatalf("len(Items) = %d, want 1", len(out.Items))
	}
	if out.Items[0].Title != "Ours" {
		t.Errorf("Title = %q, want Ours", out.Items[0].Title)
	}
}

func TestEvents_ClampsLimit(t *testing.T) {
	tmpDir := t.TempDir()
	database, err := db.Init(tmpDir)
	if err != nil {
		t.Fatalf("db.Init failed: %v", err)
	}
	defer database.Close()

	out, err := Events(database, EventsInput{Limit: 1000})
	if err != nil {
		t.Fatalf("Events failed: %v", err)
	}
	if out.Pagination.Limit != MaxListLimit {
		t.Errorf("Limit = %d, want clamped to %d", out.Pagination.Limit, MaxListLimit)
	}

	out, err = Events(database, EventsInput{})
	if err != nil {
		t.Fatalf("Events failed: %v", err)
	}
	if out.Pagination.Limit != DefaultListLimit {
		t.Errorf("Limit = %d, want default %d", out.Pagination.Limit, DefaultListLimit)
	}
}

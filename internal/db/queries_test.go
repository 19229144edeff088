package db

import (
	"context"
	"testing"
	"time"

	"github.com/prepd/prepd/internal/analysis"
	"github.com/prepd/prepd/internal/errors"
)

// newTestAnalysis creates an analyzed event with default values for testing.
func newTestAnalysis(id, household, eventID string) *analysis.AnalyzedEvent {
	now := time.Now().Unix()
	return &analysis.AnalyzedEvent{
		ID:            id,
		HouseholdRaw:  household,
		HouseholdNorm: analysis.NormalizeHousehold(household),
		EventID:       eventID,
		EventTitle:    "Test Event",
		EventStart:    now + 86400,
		EventType:     string(analysis.EventSocial),
		Confidence:    0.9,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// newTestTask creates a task with default values; ownership fields are
// filled by UpsertAnalysis.
func newTestTask(id, title string, due int64) analysis.Task {
	now := time.Now().Unix()
	return analysis.Task{
		ID:        id,
		Title:     title,
		TaskType:  string(analysis.TaskPreparation),
		Priority:  string(analysis.PriorityMedium),
		DueDate:   due,
		Status:    analysis.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// stringPtr returns a pointer to the given string.
func stringPtr(s string) *string {
	return &s
}

// int64Ptr returns a pointer to the given int64.
func int64Ptr(n int64) *int64 {
	return &n
}

func TestUpsertAnalysis_InsertAndGet(t *testing.T) {
	tmpDir := t.TempDir()
	db, err := Init(tmpDir)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer db.Close()

	rec := newTestAnalysis("01ABC123", "The Smiths", "evt-birthday")
	rec.EventLocation = stringPtr("12 Oak Lane")
	rec.EventEnd = int64Ptr(rec.EventStart + 7200)
	rec.RequiresSitter = true
	rec.Reasoning = stringPtr("Birthday party for a classmate.")
	rec.Model = stringPtr("gpt-4o-mini")

	tasks := []analysis.Task{
		newTestTask("01TASK01", "Buy a gift", rec.EventStart-3*86400),
		newTestTask("01TASK02", "Book a sitter", rec.EventStart-5*86400),
	}

	replaced, err := UpsertAnalysis(db, rec, tasks)
	if err != nil {
		t.Fatalf("UpsertAnalysis failed: %v", err)
	}
	if replaced {
		t.Error("replaced = true, want false for first insert")
	}

	retrieved, err := GetAnalysisByEventID(db, "the smiths", "evt-birthday")
	if err != nil {
		t.Fatalf("GetAnalysisByEventID failed: %v", err)
	}

	if retrieved.ID != rec.ID {
		t.Errorf("ID = %q, want %q", retrieved.ID, rec.ID)
	}
	if retrieved.HouseholdRaw != "The Smiths" {
		t.Errorf("HouseholdRaw = %q, want %q", retrieved.HouseholdRaw, "The Smiths")
	}
	if retrieved.HouseholdNorm != "the smiths" {
		t.Errorf("HouseholdNorm = %q, want %q", retrieved.HouseholdNorm, "the smiths")
	}
	if *retrieved.EventLocation != "12 Oak Lane" {
		t.Errorf("EventLocation = %q, want %q", *retrieved.EventLocation, "12 Oak Lane")
	}
	if *retrieved.EventEnd != rec.EventStart+7200 {
		t.Errorf("EventEnd = %d, want %d", *retrieved.EventEnd, rec.EventStart+7200)
	}
	if !retrieved.RequiresSitter {
		t.Error("RequiresSitter = false, want true")
	}
	if retrieved.RequiresTravel {
		t.Error("RequiresTravel = true, want false")
	}
	if *retrieved.Reasoning != "Birthday party for a classmate." {
		t.Errorf("Reasoning = %q", *retrieved.Reasoning)
	}
	if *retrieved.Model != "gpt-4o-mini" {
		t.Errorf("Model = %q, want gpt-4o-mini", *retrieved.Model)
	}
	if retrieved.Confidence != 0.9 {
		t.Errorf("Confidence = %v, want 0.9", retrieved.Confidence)
	}

	owned, err := TasksForEvent(db, rec.ID)
	if err != nil {
		t.Fatalf("TasksForEvent failed: %v", err)
	}
	if len(owned) != 2 {
		t.Fatalf("len(tasks) = %d, want 2", len(owned))
	}
	for _, task := range owned {
		if task.AnalyzedEventID != rec.ID {
			t.Errorf("task %s AnalyzedEventID = %q, want %q", task.ID, task.AnalyzedEventID, rec.ID)
		}
		if task.HouseholdNorm != "the smiths" {
			t.Errorf("task %s HouseholdNorm = %q, want 'the smiths'", task.ID, task.HouseholdNorm)
		}
	}
}

func TestUpsertAnalysis_ReplaceKeepsIdentity(t *testing.T) {
	tmpDir := t.TempDir()
	db, err := Init(tmpDir)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer db.Close()

	first := newTestAnalysis("01FIRST1", "default", "evt-1")
	first.CreatedAt = 1000
	first.UpdatedAt = 1000
	firstTasks := []analysis.Task{
		newTestTask("01TASK01", "Old task A", 5000),
		newTestTask("01TASK02", "Old task B", 6000),
	}
	if _, err := UpsertAnalysis(db, first, firstTasks); err != nil {
		t.Fatalf("first UpsertAnalysis failed: %v", err)
	}

	// Re-analyze the same event under a fresh candidate id.
	second := newTestAnalysis("01SECOND", "default", "evt-1")
	second.EventType = string(analysis.EventFamily)
	second.CreatedAt = 2000
	second.UpdatedAt = 2000
	secondTasks := []analysis.Task{
		newTestTask("01TASK03", "New task", 7000),
	}

	replaced, err := UpsertAnalysis(db, second, secondTasks)
	if err != nil {
		t.Fatalf("second UpsertAnalysis failed: %v", err)
	}
	if !replaced {
		t.Error("replaced = false, want true")
	}

	// The record keeps the original id and creation time.
	if second.ID != "01FIRST1" {
		t.Errorf("ID after replace = %q, want 01FIRST1", second.ID)
	}
	if second.CreatedAt != 1000 {
		t.Errorf("CreatedAt after replace = %d, want 1000", second.CreatedAt)
	}

	retrieved, err := GetAnalysisByEventID(db, "default", "evt-1")
	if err != nil {
		t.Fatalf("GetAnalysisByEventID failed: %v", err)
	}
	if retrieved.ID != "01FIRST1" {
		t.Errorf("stored ID = %q, want 01FIRST1", retrieved.ID)
	}
	if retrieved.EventType != string(analysis.EventFamily) {
		t.Errorf("EventType = %q, want family", retrieved.EventType)
	}
	if retrieved.CreatedAt != 1000 {
		t.Errorf("CreatedAt = %d, want 1000", retrieved.CreatedAt)
	}
	if retrieved.UpdatedAt != 2000 {
		t.Errorf("UpdatedAt = %d, want 2000", retrieved.UpdatedAt)
	}

	// The old task set is gone, fully replaced by the new one.
	owned, err := TasksForEvent(db, "01FIRST1")
	if err != nil {
		t.Fatalf("TasksForEvent failed: %v", err)
	}
	if len(owned) != 1 {
		t.Fatalf("len(tasks) = %d, want 1", len(owned))
	}
	if owned[0].Title != "New task" {
		t.Errorf("task title = %q, want 'New task'", owned[0].Title)
	}
}

func TestUpsertAnalysis_ReplaceWithNoTasks(t *testing.T) {
	tmpDir := t.TempDir()
	db, err := Init(tmpDir)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer db.Close()

	rec := newTestAnalysis("01AAA001", "default", "evt-1")
	tasks := []analysis.Task{newTestTask("01TASK01", "Something", 5000)}
	if _, err := UpsertAnalysis(db, rec, tasks); err != nil {
		t.Fatalf("UpsertAnalysis failed: %v", err)
	}

	// A fallback re-analysis carries zero tasks; old ones must not linger.
	again := newTestAnalysis("01AAA002", "default", "evt-1")
	if _, err := UpsertAnalysis(db, again, nil); err != nil {
		t.Fatalf("replace UpsertAnalysis failed: %v", err)
	}

	owned, err := TasksForEvent(db, "01AAA001")
	if err != nil {
		t.Fatalf("TasksForEvent failed: %v", err)
	}
	if len(owned) != 0 {
		t.Errorf("len(tasks) = %d, want 0 after replace with empty set", len(owned))
	}
}

func TestGetAnalysisByEventID_NotFound(t *testing.T) {
	tmpDir := t.TempDir()
	db, err := Init(tmpDir)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer db.Close()

	_, err = GetAnalysisByEventID(db, "default", "nonexistent")
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("GetAnalysisByEventID should return ErrNotFound, got: %v", err)
	}
}

func TestGetAnalysisByID(t *testing.T) {
	tmpDir := t.TempDir()
	db, err := Init(tmpDir)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer db.Close()

	rec := newTestAnalysis("01BBB001", "default", "evt-1")
	if _, err := UpsertAnalysis(db, rec, nil); err != nil {
		t.Fatalf("UpsertAnalysis failed: %v", err)
	}

	retrieved, err := GetAnalysisByID(db, "01BBB001")
	if err != nil {
		t.Fatalf("GetAnalysisByID failed: %v", err)
	}
	if retrieved.EventID != "evt-1" {
		t.Errorf("EventID = %q, want evt-1", retrieved.EventID)
	}

	_, err = GetAnalysisByID(db, "nonexistent")
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("GetAnalysisByID should return ErrNotFound, got: %v", err)
	}
}

func TestListAnalyses(t *testing.T) {
	tmpDir := t.TempDir()
	db, err := Init(tmpDir)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer db.Close()

	// Three events in "default", staggered start times
	for i, id := range []string{"01CCC001", "01CCC002", "01CCC003"} {
		rec := newTestAnalysis(id, "default", "evt-"+id)
		rec.EventStart = int64(1000 + i)
		if _, err := UpsertAnalysis(db, rec, nil); err != nil {
			t.Fatalf("UpsertAnalysis failed: %v", err)
		}
	}

	// One event in a different household
	other := newTestAnalysis("01DDD001", "other", "evt-other")
	if _, err := UpsertAnalysis(db, other, nil); err != nil {
		t.Fatalf("UpsertAnalysis failed: %v", err)
	}

	records, total, err := ListAnalyses(db, "default", 10, 0)
	if err != nil {
		t.Fatalf("ListAnalyses failed: %v", err)
	}
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}
	if len(records) != 3 {
		t.Fatalf("len(records) = %d, want 3", len(records))
	}

	// Newest event start first
	if records[0].ID != "01CCC003" {
		t.Errorf("first ID = %q, want 01CCC003", records[0].ID)
	}

	// Pagination
	page2, total, err := ListAnalyses(db, "default", 2, 2)
	if err != nil {
		t.Fatalf("ListAnalyses page 2 failed: %v", err)
	}
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}
	if len(page2) != 1 {
		t.Errorf("page2 len = %d, want 1", len(page2))
	}
}

func TestListAnalyses_Empty(t *testing.T) {
	tmpDir := t.TempDir()
	db, err := Init(tmpDir)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer db.Close()

	records, total, err := ListAnalyses(db, "nonexistent", 10, 0)
	if err != nil {
		t.Fatalf("ListAnalyses failed: %v", err)
	}
	if total != 0 {
		t.Errorf("total = %d, want 0", total)
	}
	if len(records) != 0 {
		t.Errorf("len(records) = %d, want 0", len(records))
	}
}

func TestTaskCountsByEvent(t *testing.T) {
	tmpDir := t.TempDir()
	db, err := Init(tmpDir)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer db.Close()

	a := newTestAnalysis("01EEE001", "default", "evt-a")
	if _, err := UpsertAnalysis(db, a, []analysis.Task{
		newTestTask("01TASK01", "One", 1000),
		newTestTask("01TASK02", "Two", 2000),
	}); err != nil {
		t.Fatalf("UpsertAnalysis failed: %v", err)
	}

	b := newTestAnalysis("01EEE002", "default", "evt-b")
	if _, err := UpsertAnalysis(db, b, nil); err != nil {
		t.Fatalf("UpsertAnalysis failed: %v", err)
	}

	counts, err := TaskCountsByEvent(db, "default")
	if err != nil {
		t.Fatalf("TaskCountsByEvent failed: %v", err)
	}
	if counts["01EEE001"] != 2 {
		t.Errorf("counts[01EEE001] = %d, want 2", counts["01EEE001"])
	}
	if _, ok := counts["01EEE002"]; ok {
		t.Error("counts should not contain an entry for a taskless event")
	}
}

func TestFlushHousehold(t *testing.T) {
	tmpDir := t.TempDir()
	db, err := Init(tmpDir)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer db.Close()

	a := newTestAnalysis("01FFF001", "default", "evt-a")
	if _, err := UpsertAnalysis(db, a, []analysis.Task{
		newTestTask("01TASK01", "One", 1000),
		newTestTask("01TASK02", "Two", 2000),
	}); err != nil {
		t.Fatalf("UpsertAnalysis failed: %v", err)
	}

	b := newTestAnalysis("01FFF002", "default", "evt-b")
	if _, err := UpsertAnalysis(db, b, []analysis.Task{
		newTestTask("01TASK03", "Three", 3000),
	}); err != nil {
		t.Fatalf("UpsertAnalysis failed: %v", err)
	}

	// A different household must survive the flush.
	other := newTestAnalysis("01GGG001", "other", "evt-o")
	if _, err := UpsertAnalysis(db, other, []analysis.Task{
		newTestTask("01TASK04", "Keep", 4000),
	}); err != nil {
		t.Fatalf("UpsertAnalysis failed: %v", err)
	}

	events, tasks, err := FlushHousehold(db, "default")
	if err != nil {
		t.Fatalf("FlushHousehold failed: %v", err)
	}
	if events != 2 {
		t.Errorf("events removed = %d, want 2", events)
	}
	if tasks != 3 {
		t.Errorf("tasks removed = %d, want 3", tasks)
	}

	// Cascade wiped the owned tasks.
	var remaining int
	if err := db.QueryRow(`SELECT COUNT(*) FROM tasks WHERE household_norm = 'default'`).Scan(&remaining); err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	if remaining != 0 {
		t.Errorf("remaining default tasks = %d, want 0", remaining)
	}

	// Other household untouched.
	if _, err := GetAnalysisByEventID(db, "other", "evt-o"); err != nil {
		t.Errorf("other household should be untouched, got: %v", err)
	}
	kept, err := TasksForEvent(db, "01GGG001")
	if err != nil {
		t.Fatalf("TasksForEvent failed: %v", err)
	}
	if len(kept) != 1 {
		t.Errorf("other household tasks = %d, want 1", len(kept))
	}
}

func TestFlushHousehold_Empty(t *testing.T) {
	tmpDir := t.TempDir()
	db, err := Init(tmpDir)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer db.Close()

	events, tasks, err := FlushHousehold(db, "nonexistent")
	if err != nil {
		t.Fatalf("FlushHousehold failed: %v", err)
	}
	if events != 0 || tasks != 0 {
		t.Errorf("removed = (%d, %d), want (0, 0)", events, tasks)
	}
}

func TestStreamForExport(t *testing.T) {
	tmpDir := t.TempDir()
	db, err := Init(tmpDir)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer db.Close()

	// Insert out of creation order to prove the sort.
	late := newTestAnalysis("01HHH002", "default", "evt-late")
	late.CreatedAt = 2000
	if _, err := UpsertAnalysis(db, late, nil); err != nil {
		t.Fatalf("UpsertAnalysis failed: %v", err)
	}

	early := newTestAnalysis("01HHH001", "default", "evt-early")
	early.CreatedAt = 1000
	if _, err := UpsertAnalysis(db, early, nil); err != nil {
		t.Fatalf("UpsertAnalysis failed: %v", err)
	}

	other := newTestAnalysis("01III001", "other", "evt-other")
	other.CreatedAt = 1500
	if _, err := UpsertAnalysis(db, other, nil); err != nil {
		t.Fatalf("UpsertAnalysis failed: %v", err)
	}

	// Household-scoped export
	rows, err := StreamForExport(context.Background(), db, "default")
	if err != nil {
		t.Fatalf("StreamForExport failed: %v", err)
	}
	var ids []string
	for rows.Next() {
		rec, err := ScanAnalyzedEventFromRows(rows)
		if err != nil {
			rows.Close()
			t.Fatalf("scan failed: %v", err)
		}
		ids = append(ids, rec.ID)
	}
	rows.Close()

	if len(ids) != 2 {
		t.Fatalf("len(ids) = %d, want 2", len(ids))
	}
	if ids[0] != "01HHH001" || ids[1] != "01HHH002" {
		t.Errorf("ids = %v, want [01HHH001 01HHH002] (created_at order)", ids)
	}

	// Unscoped export covers every household
	rows, err = StreamForExport(context.Background(), db, "")
	if err != nil {
		t.Fatalf("StreamForExport failed: %v", err)
	}
	count := 0
	for rows.Next() {
		if _, err := ScanAnalyzedEventFromRows(rows); err != nil {
			rows.Close()
			t.Fatalf("scan failed: %v", err)
		}
		count++
	}
	rows.Close()

	if count != 3 {
		t.Errorf("unscoped export rows = %d, want 3", count)
	}
}

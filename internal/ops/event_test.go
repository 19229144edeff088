package ops

import (
	"testing"
	"time"

	"github.com/prepd/prepd/internal/analysis"
	"github.com/prepd/prepd/internal/db"
	"github.com/prepd/prepd/internal/errors"
)

func TestEvent_ReturnsRecordWithTasks(t *testing.T) {
	tmpDir := t.TempDir()
	database, err := db.Init(tmpDir)
	if err != nil {
		t.Fatalf("db.Init failed: %v", err)
	}
	defer database.Close()

	due := time.Now().Add(24 * time.Hour).Unix()
	rec := newTestRecord("01SHW0000000000000000000001", "default", "evt-1", "Recital", due)
	tasks := []analysis.Task{
		newTestTask("01SHWA000000000000000000001", "Buy flowers", due, analysis.PriorityMedium),
	}
	if _, err := db.UpsertAnalysis(database, rec, tasks); err != nil {
		t.Fatalf("UpsertAnalysis failed: %v", err)
	}

	out, err := Event(database, EventInput{ID: "01SHW0000000000000000000001"})
	if err != nil {
		t.Fatalf("Event failed: %v", err)
	}

	if out.Record.EventTitle != "Recital" {
		t.Errorf("EventTitle = %q, want Recital", out.Record.EventTitle)
	}
	if len(out.Tasks) != 1 || out.Tasks[0].Title != "Buy flowers" {
		t.Errorf("Tasks = %v, want [Buy flowers]", taskTitles(out.Tasks))
	}
}

func TestEvent_EmptyTasksIsNotNil(t *testing.T) {
	tmpDir := t.TempDir()
	database, err := db.Init(tmpDir)
	if err != nil {
		t.Fatalf("db.Init failed: %v", err)
	}
	defer database.Close()

	rec := newTestRecord("01SHW0000000000000000000002", "default", "evt-2", "Call", time.Now().Unix())
	if _, err := db.UpsertAnalysis(database, rec, nil); err != nil {
		t.Fatalf("UpsertAnalysis failed: %v", err)
	}

	out, err := Event(database, EventInput{ID: "01SHW0000000000000000000002"})
	if err != nil {
		t.Fatalf("Event failed: %v", err)
	}
	// JSON renders [] rather than null for taskless events.
	if out.Tasks == nil {
		t.Error("Tasks should be an empty slice, not nil")
	}
}

func TestEvent_NotFound(t *testing.T) {
	tmpDir := t.TempDir()
	database, err := db.Init(tmpDir)
	if err != nil {
		t.Fatalf("db.Init failed: %v", err)
	}
	defer database.Close()

	_, err = Event(database, EventInput{ID: "01NOPE000000000000000000001"})
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("Event should return ErrNotFound, got: %v", err)
	}
}

func TestEvent_RequiresID(t *testing.T) {
	tmpDir := t.TempDir()
	database, err := db.Init(tmpDir)
	if err != nil {
		t.Fatalf("db.Init failed: %v", err)
	}
	defer database.Close()

	_, err = Event(database, EventInput{ID: "  "})
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("Event should return ErrInvalidRequest, got: %v", err)
	}
}

package ops

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prepd/prepd/internal/analysis"
	"github.com/prepd/prepd/internal/config"
	"github.com/prepd/prepd/internal/db"
	"github.com/prepd/prepd/internal/errors"
)

func TestExport_HappyPath(t *testing.T) {
	tmpDir := t.TempDir()
	database, err := db.Init(tmpDir)
	if err != nil {
		t.Fatalf("db.Init failed: %v", err)
	}
	defer database.Close()

	due := time.Now().Add(48 * time.Hour).Unix()
	rec1 := newTestRecord("01EXP000000000000000000001", "default", "evt-1", "Recital", due)
	rec2 := newTestRecord("01EXP000000000000000000002", "default", "evt-2", "Potluck", due)

	if _, err := db.UpsertAnalysis(database, rec1, []analysis.Task{
		newTestTask("01EXPT00000000000000000001", "Book sitter", due, analysis.PriorityHigh),
		newTestTask("01EXPT00000000000000000002", "Pack camera", due, analysis.PriorityLow),
	}); err != nil {
		t.Fatalf("UpsertAnalysis failed: %v", err)
	}
	if _, err := db.UpsertAnalysis(database, rec2, []analysis.Task{
		newTestTask("01EXPT00000000000000000003", "Make casserole", due, analysis.PriorityMedium),
	}); err != nil {
		t.Fatalf("UpsertAnalysis failed: %v", err)
	}

	exportPath := filepath.Join(tmpDir, "export.jsonl")
	cfg := &config.Config{AllowedPaths: []string{tmpDir}}
	output, err := Export(context.Background(), database, cfg, ExportInput{Path: exportPath})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	if output.Path != exportPath {
		t.Errorf("Path = %q, want %q", output.Path, exportPath)
	}
	if output.Count != 2 {
		t.Errorf("Count = %d, want 2", output.Count)
	}
	if output.Tasks != 3 {
		t.Errorf("Tasks = %d, want 3", output.Tasks)
	}
	if output.ExportedAt == 0 {
		t.Error("ExportedAt should be set")
	}

	file, err := os.Open(exportPath)
	if err != nil {
		t.Fatalf("Failed to open export file: %v", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lines := 0
	for scanner.Scan() {
		lines++
	}

	// Header + 2 events = 3 lines; tasks ride inside the event lines.
	if lines != 3 {
		t.Errorf("lines = %d, want 3 (header + 2 events)", lines)
	}
}

func TestExport_HeaderLine(t *testing.T) {
	tmpDir := t.TempDir()
	database, err := db.Init(tmpDir)
	if err != nil {
		t.Fatalf("db.Init failed: %v", err)
	}
	defer database.Close()

	exportPath := filepath.Join(tmpDir, "export.jsonl")
	cfg := &config.Config{AllowedPaths: []string{tmpDir}}
	output, err := Export(context.Background(), database, cfg, ExportInput{Path: exportPath})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	file, err := os.Open(exportPath)
	if err != nil {
		t.Fatalf("Failed to open export file: %v", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	if !scanner.Scan() {
		t.Fatal("Failed to read header line")
	}

	var header ExportHeader
	if err := json.Unmarshal(scanner.Bytes(), &header); err != nil {
		t.Fatalf("Failed to parse header: %v", err)
	}

	if !header.PrepdExport {
		t.Error("_prepd_export should be true")
	}
	if header.SchemaVersion != "1.0" {
		t.Errorf("schema_version = %q, want 1.0", header.SchemaVersion)
	}
	if header.ExportedAt != output.ExportedAt {
		t.Errorf("exported_at = %d, want %d", header.ExportedAt, output.ExportedAt)
	}
}

func TestExport_RecordShape(t *testing.T) {
	tmpDir := t.TempDir()
	database, err := db.Init(tmpDir)
	if err != nil {
		t.Fatalf("db.Init failed: %v", err)
	}
	defer database.Close()

	start := time.Date(2026, 9, 12, 18, 0, 0, 0, time.UTC).Unix()
	end := start + 7200
	rec := newTestRecord("01EXP000000000000000000003", "Hargrove", "evt-bday", "Nora's birthday party", start)
	rec.EventLocation = stringPtr("Pinewood Park")
	rec.EventEnd = &end
	rec.EventType = string(analysis.EventFamily)
	rec.RequiresSitter = true
	rec.Reasoning = stringPtr("Evening party, kids need a sitter")
	rec.Model = stringPtr("llama3.2")

	due := start - 7*24*3600
	task := newTestTask("01EXPT00000000000000000004", "Book babysitter", due, analysis.PriorityHigh)
	task.Description = stringPtr("Evening slot, 3 hours")
	task.TaskType = string(analysis.TaskBooking)

	if _, err := db.UpsertAnalysis(database, rec, []analysis.Task{task}); err != nil {
		t.Fatalf("UpsertAnalysis failed: %v", err)
	}

	exportPath := filepath.Join(tmpDir, "export.jsonl")
	cfg := &config.Config{AllowedPaths: []string{tmpDir}}
	if _, err := Export(context.Background(), database, cfg, ExportInput{Path: exportPath}); err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	file, err := os.Open(exportPath)
	if err != nil {
		t.Fatalf("Failed to open export file: %v", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Scan() // skip header
	if !scanner.Scan() {
		t.Fatal("Failed to read event line")
	}

	var record analysis.ExportRecord
	if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
		t.Fatalf("Failed to parse event record: %v", err)
	}

	if record.ID != rec.ID {
		t.Errorf("ID = %q, want %q", record.ID, rec.ID)
	}
	if record.Household != "Hargrove" {
		t.Errorf("Household = %q, want raw %q", record.Household, "Hargrove")
	}
	if record.EventID != "evt-bday" {
		t.Errorf("EventID = %q, want evt-bday", record.EventID)
	}
	if record.EventLocation == nil || *record.EventLocation != "Pinewood Park" {
		t.Errorf("EventLocation = %v, want Pinewood Park", record.EventLocation)
	}
	if record.EventEnd == nil || *record.EventEnd != end {
		t.Errorf("EventEnd = %v, want %d", record.EventEnd, end)
	}
	if record.EventType != string(analysis.EventFamily) {
		t.Errorf("EventType = %q, want family", record.EventType)
	}
	if !record.RequiresSitter {
		t.Error("RequiresSitter should be true")
	}
	if record.Model == nil || *record.Model != "llama3.2" {
		t.Errorf("Model = %v, want llama3.2", record.Model)
	}

	if len(record.Tasks) != 1 {
		t.Fatalf("Tasks count = %d, want 1", len(record.Tasks))
	}
	exported := record.Tasks[0]
	if exported.Title != "Book babysitter" {
		t.Errorf("task Title = %q, want Book babysitter", exported.Title)
	}
	if exported.TaskType != string(analysis.TaskBooking) {
		t.Errorf("task TaskType = %q, want booking", exported.TaskType)
	}
	if exported.Priority != string(analysis.PriorityHigh) {
		t.Errorf("task Priority = %q, want high", exported.Priority)
	}
	if exported.DueDate != due {
		t.Errorf("task DueDate = %d, want %d", exported.DueDate, due)
	}
	if exported.Status != analysis.StatusPending {
		t.Errorf("task Status = %q, want pending", exported.Status)
	}
}

func TestExport_HouseholdFilter(t *testing.T) {
	tmpDir := t.TempDir()
	database, err := db.Init(tmpDir)
	if err != nil {
		t.Fatalf("db.Init failed: %v", err)
	}
	defer database.Close()

	start := time.Now().Unix()
	rec1 := newTestRecord("01EXP000000000000000000004", "Target", "evt-1", "In target", start)
	rec2 := newTestRecord("01EXP000000000000000000005", "Other", "evt-1", "In other", start)

	for _, rec := range []*analysis.AnalyzedEvent{rec1, rec2} {
		if _, err := db.UpsertAnalysis(database, rec, nil); err != nil {
			t.Fatalf("UpsertAnalysis failed: %v", err)
		}
	}

	exportPath := filepath.Join(tmpDir, "export.jsonl")
	cfg := &config.Config{AllowedPaths: []string{tmpDir}}
	output, err := Export(context.Background(), database, cfg, ExportInput{
		Path:      exportPath,
		Household: "target",
	})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	if output.Count != 1 {
		t.Errorf("Count = %d, want 1", output.Count)
	}
}

func TestExport_Empty(t *testing.T) {
	tmpDir := t.TempDir()
	database, err := db.Init(tmpDir)
	if err != nil {
		t.Fatalf("db.Init failed: %v", err)
	}
	defer database.Close()

	exportPath := filepath.Join(tmpDir, "export.jsonl")
	cfg := &config.Config{AllowedPaths: []string{tmpDir}}
	output, err := Export(context.Background(), database, cfg, ExportInput{Path: exportPath})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	if output.Count != 0 {
		t.Errorf("Count = %d, want 0", output.Count)
	}

	// File should still exist with just the header.
	file, err := os.Open(exportPath)
	if err != nil {
		t.Fatalf("Failed to open export file: %v", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lines := 0
	for scanner.Scan() {
		lines++
	}
	if lines != 1 {
		t.Errorf("lines = %d, want 1 (header only)", lines)
	}
}

func TestExport_FilePermissions(t *testing.T) {
	tmpDir := t.TempDir()
	database, err := db.Init(tmpDir)
	if err != nil {
		t.Fatalf("db.Init failed: %v", err)
	}
	defer database.Close()

	exportPath := filepath.Join(tmpDir, "export.jsonl")
	cfg := &config.Config{AllowedPaths: []string{tmpDir}}
	if _, err := Export(context.Background(), database, cfg, ExportInput{Path: exportPath}); err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	info, err := os.Stat(exportPath)
	if err != nil {
		t.Fatalf("Failed to stat export file: %v", err)
	}

	perm := info.Mode().Perm()
	if perm != 0600 {
		t.Errorf("file permissions = %o, want 0600", perm)
	}
}

func TestExport_DefaultPath(t *testing.T) {
	tmpDir := t.TempDir()
	database, err := db.Init(tmpDir)
	if err != nil {
		t.Fatalf("db.Init failed: %v", err)
	}
	defer database.Close()

	// Override HOME so the default path lands in the test dir.
	oldHome := os.Getenv("HOME")
	os.Setenv("HOME", tmpDir)
	defer os.Setenv("HOME", oldHome)

	output, err := Export(context.Background(), database, nil, ExportInput{})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	expectedDir := filepath.Join(tmpDir, ".prepd", "exports")
	if !strings.HasPrefix(output.Path, expectedDir) {
		t.Errorf("Path = %q, should start with %q", output.Path, expectedDir)
	}

	// Unfiltered exports are named all-<timestamp>.
	if !strings.Contains(filepath.Base(output.Path), "all-") {
		t.Errorf("Path = %q, should contain 'all-'", output.Path)
	}

	if _, err := os.Stat(output.Path); os.IsNotExist(err) {
		t.Error("Export file should exist at default path")
	}
}

func TestExport_DefaultPathWithHousehold(t *testing.T) {
	tmpDir := t.TempDir()
	database, err := db.Init(tmpDir)
	if err != nil {
		t.Fatalf("db.Init failed: %v", err)
	}
	defer database.Close()

	oldHome := os.Getenv("HOME")
	os.Setenv("HOME", tmpDir)
	defer os.Setenv("HOME", oldHome)

	output, err := Export(context.Background(), database, nil, ExportInput{Household: "MyHouse"})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	// The filename carries the normalized household.
	if !strings.Contains(filepath.Base(output.Path), "myhouse-") {
		t.Errorf("Path = %q, should contain 'myhouse-'", output.Path)
	}
}

func TestExport_CreatesDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	database, err := db.Init(tmpDir)
	if err != nil {
		t.Fatalf("db.Init failed: %v", err)
	}
	defer database.Close()

	// The allowed directory does not exist yet; export creates it.
	exportDir := filepath.Join(tmpDir, "nested", "dir")
	exportPath := filepath.Join(exportDir, "export.jsonl")
	cfg := &config.Config{AllowedPaths: []string{exportDir}}
	if _, err := Export(context.Background(), database, cfg, ExportInput{Path: exportPath}); err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	if _, err := os.Stat(exportPath); os.IsNotExist(err) {
		t.Error("Export file should exist")
	}
}

func TestExport_PreservesOrder(t *testing.T) {
	tmpDir := t.TempDir()
	database, err := db.Init(tmpDir)
	if err != nil {
		t.Fatalf("db.Init failed: %v", err)
	}
	defer database.Close()

	start := time.Now().Unix()
	rec1 := newTestRecord("01EXP000000000000000000006", "default", "evt-1", "First", start)
	rec1.CreatedAt = 1000
	rec2 := newTestRecord("01EXP000000000000000000007", "default", "evt-2", "Second", start)
	rec2.CreatedAt = 2000
	rec3 := newTestRecord("01EXP000000000000000000008", "default", "evt-3", "Third", start)
	rec3.CreatedAt = 3000

	// Insert out of order.
	for _, rec := range []*analysis.AnalyzedEvent{rec3, rec1, rec2} {
		if _, err := db.UpsertAnalysis(database, rec, nil); err != nil {
			t.Fatalf("UpsertAnalysis failed: %v", err)
		}
	}

	exportPath := filepath.Join(tmpDir, "export.jsonl")
	cfg := &config.Config{AllowedPaths: []string{tmpDir}}
	if _, err := Export(context.Background(), database, cfg, ExportInput{Path: exportPath}); err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	file, err := os.Open(exportPath)
	if err != nil {
		t.Fatalf("Failed to open export file: %v", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Scan() // skip header

	var ids []string
	for scanner.Scan() {
		var record analysis.ExportRecord
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			t.Fatalf("Failed to parse event record: %v", err)
		}
		ids = append(ids, record.ID)
	}

	want := []string{
		"01EXP000000000000000000006",
		"01EXP000000000000000000007",
		"01EXP000000000000000000008",
	}
	if len(ids) != 3 || ids[0] != want[0] || ids[1] != want[1] || ids[2] != want[2] {
		t.Errorf("IDs = %v, want %v (created_at order)", ids, want)
	}
}

func TestExport_PathTraversalRejected(t *testing.T) {
	tmpDir := t.TempDir()
	database, err := db.Init(tmpDir)
	if err != nil {
		t.Fatalf("db.Init failed: %v", err)
	}
	defer database.Close()

	tests := []struct {
		name string
		path string
	}{
		{"traversal with ..", "/tmp/../../../etc/cron.d/malicious.jsonl"},
		{"relative traversal", "../../../etc/passwd.jsonl"},
		{"hidden traversal", "/tmp/safe/../../etc/shadow.jsonl"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Export(context.Background(), database, nil, ExportInput{Path: tc.path})
			if err == nil {
				t.Error("Expected error for path traversal, got nil")
			}
			if !errors.Is(err, errors.ErrInvalidRequest) {
				t.Errorf("Expected ErrInvalidRequest, got: %v", err)
			}
		})
	}
}

func TestExport_RequiresJSONLExtension(t *testing.T) {
	tmpDir := t.TempDir()
	database, err := db.Init(tmpDir)
	if err != nil {
		t.Fatalf("db.Init failed: %v", err)
	}
	defer database.Close()

	cfg := &config.Config{AllowedPaths: []string{tmpDir}}
	_, err = Export(context.Background(), database, cfg, ExportInput{Path: filepath.Join(tmpDir, "export.txt")})
	if err == nil {
		t.Error("Expected error for non-.jsonl extension, got nil")
	}
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("Expected ErrInvalidRequest, got: %v", err)
	}
}

func TestExport_RejectsNestedPath(t *testing.T) {
	tmpDir := t.TempDir()
	database, err := db.Init(tmpDir)
	if err != nil {
		t.Fatalf("db.Init failed: %v", err)
	}
	defer database.Close()

	// tmpDir is allowed but a subdirectory of it is not.
	cfg := &config.Config{AllowedPaths: []string{tmpDir}}
	_, err = Export(context.Background(), database, cfg, ExportInput{
		Path: filepath.Join(tmpDir, "sub", "export.jsonl"),
	})
	if err == nil {
		t.Error("Expected error for nested path, got nil")
	}
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("Expected ErrInvalidRequest, got: %v", err)
	}
}

func TestExport_RejectsSymlinkDestination(t *testing.T) {
	tmpDir := t.TempDir()
	database, err := db.Init(tmpDir)
	if err != nil {
		t.Fatalf("db.Init failed: %v", err)
	}
	defer database.Close()

	target := filepath.Join(tmpDir, "target.jsonl")
	if err := os.WriteFile(target, []byte("{}\n"), 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	link := filepath.Join(tmpDir, "link.jsonl")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	cfg := &config.Config{AllowedPaths: []string{tmpDir}}
	_, err = Export(context.Background(), database, cfg, ExportInput{Path: link})
	if err == nil {
		t.Error("Expected error for symlink destination, got nil")
	}
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("Expected ErrInvalidRequest, got: %v", err)
	}
}

package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/prepd/prepd/internal/config"
	_ "modernc.org/sqlite"
)

// CurrentSchemaVersion is the latest schema version.
// Bump this when adding migrations.
const CurrentSchemaVersion = 1

// Init initializes the SQLite database at baseDir/prepd.db.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.prepd.
func Init(baseDir string) (*sql.DB, error) {
	// Create base directory with restricted permissions
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	// Explicit chmod (best-effort, may not work on all platforms)
	_ = os.Chmod(baseDir, 0700)

	// Create exports subdirectory
	exportsDir := filepath.Join(baseDir, "exports")
	if err := os.MkdirAll(exportsDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create exports directory: %w", err)
	}
	_ = os.Chmod(exportsDir, 0700)

	// Create the ICS response cache directory
	cacheDir := filepath.Join(baseDir, "ics-cache")
	if err := os.MkdirAll(cacheDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create ics-cache directory: %w", err)
	}
	_ = os.Chmod(cacheDir, 0700)

	// Open database with pragmas in connection string (applies to all
	// connections). Foreign keys are on: tasks cascade from their event.
	dbPath := filepath.Join(baseDir, "prepd.db")
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Verify WAL mode is active
	if err := verifyWALMode(db); err != nil {
		db.Close()
		return nil, err
	}

	// Run migrations (this creates the file if it doesn't exist)
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	// Set file permissions after file exists (best-effort)
	_ = os.Chmod(dbPath, 0600)

	return db, nil
}

// ConfigurePool applies connection pool settings from config.
// Only sets limits if explicitly configured (non-zero values).
// Call after Init if you need to tune pool behavior for contention.
func ConfigurePool(db *sql.DB, cfg *config.Config) {
	if cfg == nil {
		return
	}
	if cfg.DBMaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	}
	if cfg.DBMaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	}
}

// migrate applies schema migrations based on user_version.
func migrate(db *sql.DB) error {
	version, err := GetUserVersion(db)
	if err != nil {
		return err
	}

	// Migration 0 -> 1: Initial schema (v1)
	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS analyzed_events (
		  id                     TEXT PRIMARY KEY,
		  household_raw          TEXT NOT NULL,
		  household_norm         TEXT NOT NULL,
		  event_id               TEXT NOT NULL,
		  event_title            TEXT NOT NULL,
		  event_location         TEXT,
		  event_start            INTEGER NOT NULL,
		  event_end              INTEGER,
		  event_all_day          INTEGER NOT NULL DEFAULT 0,
		  event_type             TEXT NOT NULL,
		  requires_sitter        INTEGER NOT NULL DEFAULT 0,
		  requires_travel        INTEGER NOT NULL DEFAULT 0,
		  requires_formal_attire INTEGER NOT NULL DEFAULT 0,
		  reasoning              TEXT,
		  confidence             REAL NOT NULL,
		  model                  TEXT,
		  created_at             INTEGER NOT NULL,
		  updated_at             INTEGER NOT NULL
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_analyzed_events_household_event
		ON analyzed_events(household_norm, event_id);

		CREATE INDEX IF NOT EXISTS idx_analyzed_events_household_start
		ON analyzed_events(household_norm, event_start DESC);

		CREATE TABLE IF NOT EXISTS tasks (
		  id                TEXT PRIMARY KEY,
		  analyzed_event_id TEXT NOT NULL REFERENCES analyzed_events(id) ON DELETE CASCADE,
		  household_norm    TEXT NOT NULL,
		  title             TEXT NOT NULL,
		  description       TEXT,
		  task_type         TEXT NOT NULL,
		  priority          TEXT NOT NULL,
		  due_date          INTEGER NOT NULL,
		  status            TEXT NOT NULL DEFAULT 'pending',
		  completed_at      INTEGER,
		  dismissed_at      INTEGER,
		  created_at        INTEGER NOT NULL,
		  updated_at        INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_tasks_household_status_due
		ON tasks(household_norm, status, due_date);

		CREATE INDEX IF NOT EXISTS idx_tasks_event
		ON tasks(analyzed_event_id);
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if err := SetUserVersion(db, 1); err != nil {
			return err
		}
	}

	// Future migrations go here:
	// if version < 2 { ... }

	return nil
}

// verifyWALMode checks that WAL mode is active (set via connection string).
func verifyWALMode(db *sql.DB) error {
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to verify journal mode: %w", err)
	}
	if journalMode != "wal" {
		return fmt.Errorf("expected WAL mode, got %s", journalMode)
	}
	return nil
}

// GetUserVersion returns the current schema version (user_version pragma).
func GetUserVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get user_version: %w", err)
	}
	return version, nil
}

// SetUserVersion sets the schema version (user_version pragma).
func SetUserVersion(db *sql.DB, version int) error {
	_, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", version))
	if err != nil {
		return fmt.Errorf("failed to set user_version: %w", err)
	}
	return nil
}

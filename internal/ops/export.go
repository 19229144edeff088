package ops

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/prepd/prepd/internal/analysis"
	"github.com/prepd/prepd/internal/config"
	"github.com/prepd/prepd/internal/db"
	"github.com/prepd/prepd/internal/errors"
)

// ExportSchemaVersion identifies the export file layout.
const ExportSchemaVersion = "1.0"

// ExportInput contains parameters for the Export operation.
type ExportInput struct {
	Path      string // optional, default: ~/.prepd/exports/<household>-<timestamp>.jsonl
	Household string // optional filter; empty exports every household
}

// ExportOutput contains the result of the Export operation.
type ExportOutput struct {
	Path       string `json:"path"`
	Count      int    `json:"count"`
	Tasks      int    `json:"tasks"`
	ExportedAt int64  `json:"exported_at"`
}

// ExportHeader is the first line of a JSONL export file.
type ExportHeader struct {
	PrepdExport   bool   `json:"_prepd_export"`
	SchemaVersion string `json:"schema_version"`
	ExportedAt    int64  `json:"exported_at"`
}

// Export writes analyzed events, tasks nested, to a JSONL file: one header
// line, then one record per event in creation order. The file is written to
// a temp path and renamed into place, so a failure never clobbers an
// existing export.
func Export(ctx context.Context, database *sql.DB, cfg *config.Config, input ExportInput) (*ExportOutput, error) {
	now := time.Now()
	exportedAt := now.Unix()

	// Empty household means every household; normalization would turn it
	// into "default".
	var norm string
	if strings.TrimSpace(input.Household) != "" {
		norm = analysis.NormalizeHousehold(input.Household)
	}

	exportPath := input.Path
	if exportPath == "" {
		var err error
		exportPath, err = defaultExportPath(norm, now)
		if err != nil {
			return nil, err
		}
	}

	// Default paths are validated too: a hostile household string must not
	// be able to steer the file elsewhere.
	if err := ValidatePath(exportPath, PathCheckWrite, cfg); err != nil {
		return nil, err
	}

	dir := filepath.Dir(exportPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create export directory: %w", err))
	}

	// Write to a temp file first, then atomically rename into place.
	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := exportPath + "." + hex.EncodeToString(randBytes) + ".tmp"
	file, err := openFileNoFollow(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create export file: %w", err))
	}

	// Clean up the temp file on failure; the original file is untouched.
	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	header := ExportHeader{
		PrepdExport:   true,
		SchemaVersion: ExportSchemaVersion,
		ExportedAt:    exportedAt,
	}
	if err := writeJSONLine(file, header); err != nil {
		return nil, err
	}

	// Tasks are grouped up front so the event cursor is the only open
	// statement; a per-row task query would deadlock a single-connection
	// pool.
	taskGroups, err := db.AllTasksByEvent(database, norm)
	if err != nil {
		return nil, err
	}

	rows, err := db.StreamForExport(ctx, database, norm)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	count := 0
	taskCount := 0
	for rows.Next() {
		select {
		case <-ctx.Done():
			return nil, errors.NewCancelled()
		default:
		}

		rec, err := db.ScanAnalyzedEventFromRows(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}

		record := analysis.ToExportRecord(rec, taskGroups[rec.ID])
		if err := writeJSONLine(file, record); err != nil {
			return nil, err
		}

		count++
		taskCount += len(record.Tasks)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}

	if err := file.Sync(); err != nil {
		return nil, errors.NewInternal(err)
	}

	// Close before the rename; Windows requires it, elsewhere it's harmless.
	if err := file.Close(); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to close export file: %w", err))
	}
	file = nil

	// os.Rename would follow a symlink destination.
	if info, err := os.Lstat(exportPath); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return nil, errors.NewInternal(fmt.Errorf("export path is a symlink"))
	}

	// On Windows, os.Rename fails when the destination exists. Failing here
	// preserves the existing file, which beats a delete+rename that could
	// lose it.
	if err := os.Rename(tempPath, exportPath); err != nil {
		if runtime.GOOS == "windows" {
			if _, statErr := os.Stat(exportPath); statErr == nil {
				return nil, errors.NewInvalidRequest("export destination already exists; overwriting is not supported on Windows yet (choose a new path or delete the existing file)")
			}
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to finalize export: %w", err))
	}

	success = true
	return &ExportOutput{
		Path:       exportPath,
		Count:      count,
		Tasks:      taskCount,
		ExportedAt: exportedAt,
	}, nil
}

// writeJSONLine marshals v and writes it as one JSONL line.
func writeJSONLine(file *os.File, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.NewInternal(err)
	}
	if _, err := file.Write(data); err != nil {
		return errors.NewInternal(err)
	}
	if _, err := file.Write([]byte("\n")); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// defaultExportPath generates the default export path:
// ~/.prepd/exports/<household>-<timestamp>.jsonl, or all-<timestamp>.jsonl
// when no household filter is set.
func defaultExportPath(householdNorm string, now time.Time) (string, error) {
	exportsDir, err := DefaultExportsDir()
	if err != nil {
		return "", err
	}

	name := "all"
	if householdNorm != "" {
		// Already normalized; sanitizing guards the filename against
		// separator characters a household string could smuggle in.
		name = SanitizeForFilename(householdNorm)
	}

	timestamp := now.Format("2006-01-02T150405")
	return filepath.Join(exportsDir, fmt.Sprintf("%s-%s.jsonl", name, timestamp)), nil
}

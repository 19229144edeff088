package ops

import (
	"bufio"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/prepd/prepd/internal/analysis"
	"github.com/prepd/prepd/internal/config"
	"github.com/prepd/prepd/internal/db"
	"github.com/prepd/prepd/internal/errors"
)

// ImportMode controls collision behavior during import.
type ImportMode string

const (
	ImportModeError   ImportMode = "error"   // refuse the whole file on any collision
	ImportModeReplace ImportMode = "replace" // overwrite the stored analysis
	ImportModeSkip    ImportMode = "skip"    // keep the stored analysis
)

// ImportInput contains parameters for the Import operation.
type ImportInput struct {
	Path string     // required
	Mode ImportMode // default: error
}

// ImportOutput contains the result of the Import operation.
type ImportOutput struct {
	Imported int           `json:"imported"`
	Replaced int           `json:"replaced"`
	Skipped  int           `json:"skipped"`
	Tasks    int           `json:"tasks"`
	Errors   []ImportError `json:"errors"`
}

// ImportError describes one line or record that could not be imported.
type ImportError struct {
	Line    int    `json:"line,omitempty"`
	EventID string `json:"event_id,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Import loads analyzed events and their tasks from a JSONL export file.
// A collision is an incoming record whose (household, event id) pair is
// already analyzed: mode error refuses the whole file, replace overwrites
// the stored analysis, skip keeps it.
func Import(database *sql.DB, cfg *config.Config, input ImportInput) (*ImportOutput, error) {
	if strings.TrimSpace(input.Path) == "" {
		return nil, errors.NewInvalidRequest("path is required")
	}
	if input.Mode == "" {
		input.Mode = ImportModeError
	}
	if input.Mode != ImportModeError && input.Mode != ImportModeReplace && input.Mode != ImportModeSkip {
		return nil, errors.NewInvalidRequest("mode must be one of: error, replace, skip")
	}

	if err := ValidatePath(input.Path, PathCheckRead, cfg); err != nil {
		return nil, err
	}

	file, err := openFileNoFollowRead(input.Path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	records, parseErrors := parseExportFile(file)

	// Mode error refuses a file it cannot parse completely.
	if input.Mode == ImportModeError && len(parseErrors) > 0 {
		return &ImportOutput{Errors: parseErrors}, nil
	}

	switch input.Mode {
	case ImportModeError:
		return importModeError(database, records)
	case ImportModeReplace:
		return importModeReplace(database, records, parseErrors)
	default:
		return importModeSkip(database, records, parseErrors)
	}
}

// parseExportFile parses a JSONL export file, collecting per-line errors
// instead of failing on the first bad line. The header line is skipped.
func parseExportFile(file *os.File) ([]analysis.ExportRecord, []ImportError) {
	var records []analysis.ExportRecord
	var parseErrors []ImportError

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()

		var record analysis.ExportRecord
		if err := json.Unmarshal(line, &record); err != nil {
			parseErrors = append(parseErrors, ImportError{
				Line:    lineNum,
				Code:    "PARSE_ERROR",
				Message: fmt.Sprintf("invalid JSON: %v", err),
			})
			continue
		}

		// Header line carries no event.
		if record.PrepdExport {
			continue
		}

		if record.ID == "" || record.EventID == "" {
			parseErrors = append(parseErrors, ImportError{
				Line:    lineNum,
				Code:    "INVALID_RECORD",
				Message: "missing id or event_id field",
			})
			continue
		}

		records = append(records, record)
	}

	if err := scanner.Err(); err != nil {
		parseErrors = append(parseErrors, ImportError{
			Line:    lineNum,
			Code:    "READ_ERROR",
			Message: fmt.Sprintf("failed to read file: %v", err),
		})
	}

	return records, parseErrors
}

// importModeError imports every record in one transaction after verifying
// that no record collides with a stored analysis or with another record in
// the file. The collision pass runs before the transaction opens; the pool
// holds a single connection, so a query inside the transaction would block.
func importModeError(database *sql.DB, records []analysis.ExportRecord) (*ImportOutput, error) {
	var importErrors []ImportError
	seen := make(map[string]bool, len(records))
	for _, record := range records {
		norm := analysis.NormalizeHousehold(record.Household)
		key := norm + "\x00" + record.EventID
		if seen[key] {
			importErrors = append(importErrors, ImportError{
				EventID: record.EventID,
				Code:    "EVENT_COLLISION",
				Message: fmt.Sprintf("event %q appears more than once in the file for household %q", record.EventID, norm),
			})
			continue
		}
		seen[key] = true

		_, err := db.GetAnalysisByEventID(database, norm, record.EventID)
		if err == nil {
			importErrors = append(importErrors, ImportError{
				EventID: record.EventID,
				Code:    "EVENT_COLLISION",
				Message: fmt.Sprintf("event %q is already analyzed for household %q", record.EventID, norm),
			})
			continue
		}
		if !errors.Is(err, errors.ErrNotFound) {
			return nil, err
		}
	}
	if len(importErrors) > 0 {
		return &ImportOutput{Errors: importErrors}, nil
	}

	tx, err := database.Begin()
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer tx.Rollback()

	imported := 0
	taskCount := 0
	for i := range records {
		rec, tasks := records[i].ToAnalyzedEvent()
		if err := db.InsertAnalysisTx(tx, rec, tasks); err != nil {
			return nil, err
		}
		imported++
		taskCount += len(tasks)
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.NewInternal(err)
	}

	return &ImportOutput{Imported: imported, Tasks: taskCount}, nil
}

// importModeReplace imports records, overwriting the stored analysis when
// one exists for the same household and event. The existing row keeps its id
// and creation time. Lines that failed to parse are reported and counted as
// skipped.
func importModeReplace(database *sql.DB, records []analysis.ExportRecord, parseErrors []ImportError) (*ImportOutput, error) {
	out := &ImportOutput{Errors: parseErrors, Skipped: len(parseErrors)}

	for i := range records {
		rec, tasks := records[i].ToAnalyzedEvent()
		replaced, err := db.UpsertAnalysis(database, rec, tasks)
		if err != nil {
			return nil, err
		}
		if replaced {
			out.Replaced++
		} else {
			out.Imported++
		}
		out.Tasks += len(tasks)
	}

	return out, nil
}

// importModeSkip imports records, keeping the stored analysis when one
// exists for the same household and event. Lines that failed to parse are
// reported and counted as skipped.
func importModeSkip(database *sql.DB, records []analysis.ExportRecord, parseErrors []ImportError) (*ImportOutput, error) {
	out := &ImportOutput{Errors: parseErrors, Skipped: len(parseErrors)}

	for i := range records {
		rec, tasks := records[i].ToAnalyzedEvent()

		_, err := db.GetAnalysisByEventID(database, rec.HouseholdNorm, rec.EventID)
		if err == nil {
			out.Skipped++
			continue
		}
		if !errors.Is(err, errors.ErrNotFound) {
			return nil, err
		}

		if _, err := db.UpsertAnalysis(database, rec, tasks); err != nil {
			return nil, err
		}
		out.Imported++
		out.Tasks += len(tasks)
	}

	return out, nil
}

package db

import (
	"context"
	"database/sql"
	"strings"

	"github.com/prepd/prepd/internal/analysis"
	"github.com/prepd/prepd/internal/errors"
)

// ErrUniqueConstraint is returned when an insert violates a UNIQUE constraint.
var ErrUniqueConstraint = &errors.PrepdError{
	Code:    "UNIQUE_CONSTRAINT",
	Status:  409,
	Message: "unique constraint violation",
}

// isUniqueConstraintError checks if the error is a SQLite UNIQUE constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	// SQLite returns "UNIQUE constraint failed: ..." for unique violations
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// UpsertAnalysis persists an analyzed event together with its derived tasks
// in a single transaction.
//
// If a record already exists for (household_norm, event_id), it is replaced
// in place: the row keeps its id and created_at, every task it owned is
// deleted, and the new task set is inserted. The delete, update, and inserts
// commit atomically, so a crash can never leave an analyzed event with a
// stale or partial task set.
//
// rec.ID and rec.CreatedAt are rewritten to the surviving identity when an
// existing row is replaced. Task rows get their AnalyzedEventID and
// HouseholdNorm filled from rec. Returns whether an existing record was
// replaced.
func UpsertAnalysis(db *sql.DB, rec *analysis.AnalyzedEvent, tasks []analysis.Task) (bool, error) {
	tx, err := db.Begin()
	if err != nil {
		return false, errors.NewInternal(err)
	}
	defer tx.Rollback()

	var existingID string
	var existingCreatedAt int64
	err = tx.QueryRow(
		`SELECT id, created_at FROM analyzed_events WHERE household_norm = ? AND event_id = ?`,
		rec.HouseholdNorm, rec.EventID,
	).Scan(&existingID, &existingCreatedAt)
	if err != nil && err != sql.ErrNoRows {
		return false, errors.NewInternal(err)
	}
	replaced := err == nil

	if replaced {
		// Keep the original identity and creation time.
		rec.ID = existingID
		rec.CreatedAt = existingCreatedAt

		_, err = tx.Exec(`
			UPDATE analyzed_events
			SET household_raw = ?, event_title = ?, event_location = ?,
				event_start = ?, event_end = ?, event_all_day = ?,
				event_type = ?, requires_sitter = ?, requires_travel = ?,
				requires_formal_attire = ?, reasoning = ?, confidence = ?,
				model = ?, updated_at = ?
			WHERE id = ?`,
			rec.HouseholdRaw, rec.EventTitle, toNullString(rec.EventLocation),
			rec.EventStart, toNullInt64(rec.EventEnd), rec.EventAllDay,
			rec.EventType, rec.RequiresSitter, rec.RequiresTravel,
			rec.RequiresFormalAttire, toNullString(rec.Reasoning), rec.Confidence,
			toNullString(rec.Model), rec.UpdatedAt,
			rec.ID,
		)
		if err != nil {
			return false, errors.NewInternal(err)
		}

		if _, err := tx.Exec(`DELETE FROM tasks WHERE analyzed_event_id = ?`, rec.ID); err != nil {
			return false, errors.NewInternal(err)
		}
	} else {
		if err := insertAnalyzedEventTx(tx, rec); err != nil {
			return false, err
		}
	}

	for i := range tasks {
		tasks[i].AnalyzedEventID = rec.ID
		tasks[i].HouseholdNorm = rec.HouseholdNorm
		if err := insertTaskTx(tx, &tasks[i]); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return false, errors.NewInternal(err)
	}

	return replaced, nil
}

// InsertAnalysisTx inserts an analyzed event and its tasks inside a caller
// managed transaction, so an import can commit or roll back many events
// together. Task ownership fields are filled from rec.
func InsertAnalysisTx(tx *sql.Tx, rec *analysis.AnalyzedEvent, tasks []analysis.Task) error {
	if err := insertAnalyzedEventTx(tx, rec); err != nil {
		return err
	}
	for i := range tasks {
		tasks[i].AnalyzedEventID = rec.ID
		tasks[i].HouseholdNorm = rec.HouseholdNorm
		if err := insertTaskTx(tx, &tasks[i]); err != nil {
			return err
		}
	}
	return nil
}

// insertAnalyzedEventTx inserts one analyzed_events row.
func insertAnalyzedEventTx(tx *sql.Tx, rec *analysis.AnalyzedEvent) error {
	_, err := tx.Exec(`
		INSERT INTO analyzed_events (
			id, household_raw, household_norm, event_id, event_title,
			event_location, event_start, event_end, event_all_day,
			event_type, requires_sitter, requires_travel,
			requires_formal_attire, reasoning, confidence, model,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.HouseholdRaw, rec.HouseholdNorm, rec.EventID, rec.EventTitle,
		toNullString(rec.EventLocation), rec.EventStart, toNullInt64(rec.EventEnd), rec.EventAllDay,
		rec.EventType, rec.RequiresSitter, rec.RequiresTravel,
		rec.RequiresFormalAttire, toNullString(rec.Reasoning), rec.Confidence, toNullString(rec.Model),
		rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrUniqueConstraint
		}
		return errors.NewInternal(err)
	}
	return nil
}

// insertTaskTx inserts one tasks row.
func insertTaskTx(tx *sql.Tx, task *analysis.Task) error {
	_, err := tx.Exec(`
		INSERT INTO tasks (
			id, analyzed_event_id, household_norm, title, description,
			task_type, priority, due_date, status, completed_at,
			dismissed_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.AnalyzedEventID, task.HouseholdNorm,
		task.Title, toNullString(task.Description),
		task.TaskType, task.Priority, task.DueDate, task.Status,
		toNullInt64(task.CompletedAt), toNullInt64(task.DismissedAt),
		task.CreatedAt, task.UpdatedAt,
	)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

const analyzedEventColumns = `id, household_raw, household_norm, event_id, event_title,
	event_location, event_start, event_end, event_all_day,
	event_type, requires_sitter, requires_travel, requires_formal_attire,
	reasoning, confidence, model, created_at, updated_at`

// GetAnalysisByEventID retrieves the cached analysis for one source event.
func GetAnalysisByEventID(db *sql.DB, householdNorm, eventID string) (*analysis.AnalyzedEvent, error) {
	row := db.QueryRow(
		`SELECT `+analyzedEventColumns+` FROM analyzed_events WHERE household_norm = ? AND event_id = ?`,
		householdNorm, eventID,
	)
	rec, err := scanAnalyzedEvent(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("analyzed event", eventID)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return rec, nil
}

// GetAnalysisByID retrieves an analyzed event by its ULID.
func GetAnalysisByID(db *sql.DB, id string) (*analysis.AnalyzedEvent, error) {
	row := db.QueryRow(
		`SELECT `+analyzedEventColumns+` FROM analyzed_events WHERE id = ?`, id,
	)
	rec, err := scanAnalyzedEvent(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("analyzed event", id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return rec, nil
}

// ListAnalyses returns analyzed events for a household ordered by event
// start, newest first, plus the total count for pagination.
func ListAnalyses(db *sql.DB, householdNorm string, limit, offset int) ([]*analysis.AnalyzedEvent, int, error) {
	var total int
	if err := db.QueryRow(
		`SELECT COUNT(*) FROM analyzed_events WHERE household_norm = ?`, householdNorm,
	).Scan(&total); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	rows, err := db.Query(
		`SELECT `+analyzedEventColumns+` FROM analyzed_events
		WHERE household_norm = ?
		ORDER BY event_start DESC
		LIMIT ? OFFSET ?`,
		householdNorm, limit, offset,
	)
	if err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	defer rows.Close()

	var records []*analysis.AnalyzedEvent
	for rows.Next() {
		rec, err := scanAnalyzedEvent(rows)
		if err != nil {
			return nil, 0, errors.NewInternal(err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	return records, total, nil
}

// TaskCountsByEvent returns the number of tasks owned by each analyzed
// event in a household, keyed by analyzed_event_id.
func TaskCountsByEvent(db *sql.DB, householdNorm string) (map[string]int, error) {
	rows, err := db.Query(
		`SELECT analyzed_event_id, COUNT(*) FROM tasks WHERE household_norm = ? GROUP BY analyzed_event_id`,
		householdNorm,
	)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, errors.NewInternal(err)
		}
		counts[id] = n
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}

	return counts, nil
}

// StreamForExport returns a cursor over all analyzed events, optionally
// restricted to one household, ordered by creation time for stable exports.
// The caller owns the returned rows and must Close them.
func StreamForExport(ctx context.Context, db *sql.DB, householdNorm string) (*sql.Rows, error) {
	query := `SELECT ` + analyzedEventColumns + ` FROM analyzed_events`
	var args []any
	if householdNorm != "" {
		query += ` WHERE household_norm = ?`
		args = append(args, householdNorm)
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return rows, nil
}

// ScanAnalyzedEventFromRows scans the current row of an export cursor.
func ScanAnalyzedEventFromRows(rows *sql.Rows) (*analysis.AnalyzedEvent, error) {
	return scanAnalyzedEvent(rows)
}

// FlushHousehold deletes all analyzed events for a household. Owned tasks go
// with them via cascade. Returns the number of events and tasks removed.
func FlushHousehold(db *sql.DB, householdNorm string) (int64, int64, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, 0, errors.NewInternal(err)
	}
	defer tx.Rollback()

	var taskCount int64
	if err := tx.QueryRow(
		`SELECT COUNT(*) FROM tasks WHERE household_norm = ?`, householdNorm,
	).Scan(&taskCount); err != nil {
		return 0, 0, errors.NewInternal(err)
	}

	result, err := tx.Exec(`DELETE FROM analyzed_events WHERE household_norm = ?`, householdNorm)
	if err != nil {
		return 0, 0, errors.NewInternal(err)
	}
	eventCount, err := result.RowsAffected()
	if err != nil {
		return 0, 0, errors.NewInternal(err)
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, errors.NewInternal(err)
	}

	return eventCount, taskCount, nil
}

// scanAnalyzedEvent scans one analyzed_events row.
func scanAnalyzedEvent(row rowScanner) (*analysis.AnalyzedEvent, error) {
	var (
		rec           analysis.AnalyzedEvent
		eventLocation sql.NullString
		eventEnd      sql.NullInt64
		reasoning     sql.NullString
		model         sql.NullString
	)

	err := row.Scan(
		&rec.ID, &rec.HouseholdRaw, &rec.HouseholdNorm, &rec.EventID, &rec.EventTitle,
		&eventLocation, &rec.EventStart, &eventEnd, &rec.EventAllDay,
		&rec.EventType, &rec.RequiresSitter, &rec.RequiresTravel, &rec.RequiresFormalAttire,
		&reasoning, &rec.Confidence, &model, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.EventLocation = fromNullString(eventLocation)
	rec.EventEnd = fromNullInt64(eventEnd)
	rec.Reasoning = fromNullString(reasoning)
	rec.Model = fromNullString(model)

	return &rec, nil
}

// toNullString converts a *string to sql.NullString.
func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// fromNullString converts a sql.NullString to *string.
func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

// toNullInt64 converts a *int64 to sql.NullInt64.
func toNullInt64(n *int64) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *n, Valid: true}
}

// fromNullInt64 converts a sql.NullInt64 to *int64.
func fromNullInt64(nn sql.NullInt64) *int64 {
	if !nn.Valid {
		return nil
	}
	return &nn.Int64
}

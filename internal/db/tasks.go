package db

import (
	"database/sql"

	"github.com/prepd/prepd/internal/analysis"
	"github.com/prepd/prepd/internal/errors"
)

const taskColumns = `id, analyzed_event_id, household_norm, title, description,
	task_type, priority, due_date, status, completed_at, dismissed_at,
	created_at, updated_at`

// taskOrder sorts soonest-due first, ties broken by priority weight.
const taskOrder = `due_date ASC, CASE priority WHEN 'high' THEN 0 WHEN 'medium' THEN 1 ELSE 2 END`

// TasksForEvent returns every task owned by one analyzed event.
func TasksForEvent(db *sql.DB, analyzedEventID string) ([]analysis.Task, error) {
	rows, err := db.Query(
		`SELECT `+taskColumns+` FROM tasks WHERE analyzed_event_id = ? ORDER BY `+taskOrder,
		analyzedEventID,
	)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	return collectTasks(rows)
}

// ListTasksDueBefore returns a household's tasks with due_date strictly
// before the given unix cutoff. Only pending tasks are returned unless
// includeDone is set.
func ListTasksDueBefore(db *sql.DB, householdNorm string, dueBefore int64, includeDone bool) ([]analysis.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE household_norm = ? AND due_date < ?`
	args := []any{householdNorm, dueBefore}
	if !includeDone {
		query += ` AND status = ?`
		args = append(args, analysis.StatusPending)
	}
	query += ` ORDER BY ` + taskOrder

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	return collectTasks(rows)
}

// AllTasksByEvent returns every task grouped by owning analyzed event,
// optionally restricted to one household. Used by export to nest tasks
// under their event without a query per row.
func AllTasksByEvent(db *sql.DB, householdNorm string) (map[string][]analysis.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks`
	var args []any
	if householdNorm != "" {
		query += ` WHERE household_norm = ?`
		args = append(args, householdNorm)
	}
	query += ` ORDER BY ` + taskOrder

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	grouped := make(map[string][]analysis.Task)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		grouped[task.AnalyzedEventID] = append(grouped[task.AnalyzedEventID], *task)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}

	return grouped, nil
}

// GetTaskByID retrieves a task by its ULID.
func GetTaskByID(db *sql.DB, id string) (*analysis.Task, error) {
	row := db.QueryRow(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("task", id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return task, nil
}

// SetTaskStatus transitions a task to pending, completed, or dismissed.
// The matching timestamp column is set to now and the other cleared, so a
// task re-opened and completed again never carries a stale dismissal time.
func SetTaskStatus(db *sql.DB, id, status string, now int64) error {
	var completedAt, dismissedAt sql.NullInt64
	switch status {
	case analysis.StatusCompleted:
		completedAt = sql.NullInt64{Int64: now, Valid: true}
	case analysis.StatusDismissed:
		dismissedAt = sql.NullInt64{Int64: now, Valid: true}
	case analysis.StatusPending:
		// both cleared
	default:
		return errors.NewInvalidRequest("invalid task status: " + status)
	}

	result, err := db.Exec(
		`UPDATE tasks SET status = ?, completed_at = ?, dismissed_at = ?, updated_at = ? WHERE id = ?`,
		status, completedAt, dismissedAt, now, id,
	)
	if err != nil {
		return errors.NewInternal(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if affected == 0 {
		return errors.NewNotFound("task", id)
	}

	return nil
}

// collectTasks drains a task cursor.
func collectTasks(rows *sql.Rows) ([]analysis.Task, error) {
	var tasks []analysis.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		tasks = append(tasks, *task)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return tasks, nil
}

// scanTask scans one tasks row.
func scanTask(row rowScanner) (*analysis.Task, error) {
	var (
		task        analysis.Task
		description sql.NullString
		completedAt sql.NullInt64
		dismissedAt sql.NullInt64
	)

	err := row.Scan(
		&task.ID, &task.AnalyzedEventID, &task.HouseholdNorm, &task.Title, &description,
		&task.TaskType, &task.Priority, &task.DueDate, &task.Status,
		&completedAt, &dismissedAt, &task.CreatedAt, &task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	task.Description = fromNullString(description)
	task.CompletedAt = fromNullInt64(completedAt)
	task.DismissedAt = fromNullInt64(dismissedAt)

	return &task, nil
}

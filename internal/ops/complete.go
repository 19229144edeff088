package ops

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/prepd/prepd/internal/analysis"
	"github.com/prepd/prepd/internal/db"
	"github.com/prepd/prepd/internal/errors"
)

// CompleteInput contains parameters for the Complete operation.
type CompleteInput struct {
	ID string // required
}

// CompleteOutput contains the result of the Complete operation.
type CompleteOutput struct {
	Task    *analysis.Task `json:"task"`
	Message string         `json:"message"`
}

// Complete marks a task completed and stamps completed_at. Completing a
// dismissed task flips it to completed and clears the dismissal stamp.
func Complete(database *sql.DB, input CompleteInput) (*CompleteOutput, error) {
	id := strings.TrimSpace(input.ID)
	if id == "" {
		return nil, errors.NewInvalidRequest("id is required")
	}

	if err := db.SetTaskStatus(database, id, analysis.StatusCompleted, time.Now().Unix()); err != nil {
		return nil, err
	}

	task, err := db.GetTaskByID(database, id)
	if err != nil {
		return nil, err
	}

	return &CompleteOutput{
		Task:    task,
		Message: fmt.Sprintf("Completed %q", task.Title),
	}, nil
}

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

// DismissInput contains parameters for the Dismiss operation.
type DismissInput struct {
	ID string // required
}

// DismissOutput contains the result of the Dismiss operation.
type DismissOutput struct {
	Task    *analysis.Task `json:"task"`
	Message string         `json:"message"`
}

// Dismiss marks a task dismissed and stamps dismissed_at. Dismissing a
// completed task flips it to dismissed and clears the completion stamp.
func Dismiss(database *sql.DB, input DismissInput) (*DismissOutput, error) {
	id := strings.TrimSpace(input.ID)
	if id == "" {
		return nil, errors.NewInvalidRequest("id is required")
	}

	if err := db.SetTaskStatus(database, id, analysis.StatusDismissed, time.Now().Unix()); err != nil {
		return nil, err
	}

	task, err := db.GetTaskByID(database, id)
	if err != nil {
		return nil, err
	}

	return &DismissOutput{
		Task:    task,
		Message: fmt.Sprintf("Dismissed %q", task.Title),
	}, nil
}

package ops

import (
	"database/sql"
	"strings"

	"github.com/prepd/prepd/internal/analysis"
	"github.com/prepd/prepd/internal/db"
	"github.com/prepd/prepd/internal/errors"
)

// EventInput contains parameters for the Event operation.
type EventInput struct {
	ID string // analyzed event ULID, required
}

// EventOutput contains the result of the Event operation.
type EventOutput struct {
	Record *analysis.AnalyzedEvent `json:"record"`
	Tasks  []analysis.Task         `json:"tasks"`
}

// Event retrieves one analyzed event with its tasks.
func Event(database *sql.DB, input EventInput) (*EventOutput, error) {
	id := strings.TrimSpace(input.ID)
	if id == "" {
		return nil, errors.NewInvalidRequest("id is required")
	}

	rec, err := db.GetAnalysisByID(database, id)
	if err != nil {
		return nil, err
	}

	tasks, err := db.TasksForEvent(database, rec.ID)
	if err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []analysis.Task{}
	}

	return &EventOutput{Record: rec, Tasks: tasks}, nil
}

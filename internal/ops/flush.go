package ops

import (
	"database/sql"
	"fmt"

	"github.com/prepd/prepd/internal/analysis"
	"github.com/prepd/prepd/internal/db"
)

// FlushInput contains parameters for the Flush operation.
type FlushInput struct {
	Household string // optional, defaults to "default"
}

// FlushOutput contains the result of the Flush operation.
type FlushOutput struct {
	Household     string `json:"household"`
	EventsDeleted int64  `json:"events_deleted"`
	TasksDeleted  int64  `json:"tasks_deleted"`
	Message       string `json:"message"`
}

// Flush deletes every analyzed event and task for a household. The next
// analyze run rebuilds the cache from scratch.
func Flush(database *sql.DB, input FlushInput) (*FlushOutput, error) {
	norm := analysis.NormalizeHousehold(input.Household)

	events, tasks, err := db.FlushHousehold(database, norm)
	if err != nil {
		return nil, err
	}

	message := formatFlushMessage(norm, events, tasks)

	return &FlushOutput{
		Household:     norm,
		EventsDeleted: events,
		TasksDeleted:  tasks,
		Message:       message,
	}, nil
}

// formatFlushMessage creates a human-readable message for the flush result.
func formatFlushMessage(household string, events, tasks int64) string {
	if events == 0 {
		return fmt.Sprintf("No analyzed events for household %q", household)
	}

	eventWord := "event"
	if events != 1 {
		eventWord = "events"
	}
	taskWord := "task"
	if tasks != 1 {
		taskWord = "tasks"
	}

	return fmt.Sprintf("Removed %d analyzed %s and %d %s for household %q",
		events, eventWord, tasks, taskWord, household)
}

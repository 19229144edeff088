package ops

import (
	"database/sql"
	"strings"
	"time"

	"github.com/prepd/prepd/internal/analysis"
	"github.com/prepd/prepd/internal/db"
	"github.com/prepd/prepd/internal/errors"
	"github.com/prepd/prepd/internal/event"
)

// MaterializeInput contains parameters for the Materialize operation.
type MaterializeInput struct {
	Household string // optional, defaults to "default"
	Event     event.CalendarEvent
	Analysis  analysis.EventAnalysis
	Model     string // optional, recorded on the analyzed event
	Force     bool   // replace an existing record instead of returning it
}

// MaterializeOutput contains the result of the Materialize operation.
type MaterializeOutput struct {
	Record   *analysis.AnalyzedEvent `json:"record"`
	Tasks    []analysis.Task         `json:"tasks"`
	CacheHit bool                    `json:"cache_hit"`
	Replaced bool                    `json:"replaced"`
}

// Materialize persists one event's analysis: the analyzed-event record plus
// a durable task row per suggested task, due dates resolved against the
// event start. If a record already exists for (household, event id) and
// Force is unset, nothing is written and the cached record is returned with
// its tasks. With Force, the existing record is replaced in place: same id,
// fresh analysis, old tasks deleted and the new set inserted atomically.
func Materialize(database *sql.DB, input MaterializeInput) (*MaterializeOutput, error) {
	if strings.TrimSpace(input.Event.ID) == "" {
		return nil, errors.NewInvalidRequest("event id is required")
	}

	norm := analysis.NormalizeHousehold(input.Household)

	if !input.Force {
		cached, err := db.GetAnalysisByEventID(database, norm, input.Event.ID)
		if err == nil {
			tasks, terr := db.TasksForEvent(database, cached.ID)
			if terr != nil {
				return nil, terr
			}
			if tasks == nil {
				tasks = []analysis.Task{}
			}
			return &MaterializeOutput{Record: cached, Tasks: tasks, CacheHit: true}, nil
		}
		if !errors.Is(err, errors.ErrNotFound) {
			return nil, err
		}
	}

	// Repair out-of-range values before they reach the database. Parsed
	// replies arrive coerced already; direct callers may not be.
	a := input.Analysis
	a.Coerce()

	now := time.Now().Unix()
	rec := &analysis.AnalyzedEvent{
		ID:            generateULID(),
		HouseholdRaw:  householdRaw(input.Household),
		HouseholdNorm: norm,
		EventID:       input.Event.ID,
		EventTitle:    input.Event.DisplayTitle(),
		EventStart:    input.Event.Start.Unix(),
		EventAllDay:   input.Event.AllDay,

		EventType:            string(a.EventType),
		RequiresSitter:       a.RequiresSitter,
		RequiresTravel:       a.RequiresTravel,
		RequiresFormalAttire: a.RequiresFormalAttire,
		Confidence:           a.Confidence,

		CreatedAt: now,
		UpdatedAt: now,
	}
	if input.Event.Location != "" {
		loc := input.Event.Location
		rec.EventLocation = &loc
	}
	if !input.Event.End.IsZero() {
		end := input.Event.End.Unix()
		rec.EventEnd = &end
	}
	if a.Reasoning != "" {
		reasoning := a.Reasoning
		rec.Reasoning = &reasoning
	}
	if input.Model != "" {
		model := input.Model
		rec.Model = &model
	}

	tasks := make([]analysis.Task, 0, len(a.SuggestedTasks))
	for _, st := range a.SuggestedTasks {
		task := analysis.Task{
			ID:        generateULID(),
			Title:     st.Title,
			TaskType:  string(st.Type),
			Priority:  string(st.Priority),
			DueDate:   st.ResolveDueDate(input.Event.Start).Unix(),
			Status:    analysis.StatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if st.Description != "" {
			desc := st.Description
			task.Description = &desc
		}
		tasks = append(tasks, task)
	}

	replaced, err := db.UpsertAnalysis(database, rec, tasks)
	if err != nil {
		return nil, err
	}

	return &MaterializeOutput{Record: rec, Tasks: tasks, Replaced: replaced}, nil
}

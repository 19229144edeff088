package ops

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/prepd/prepd/internal/analysis"
	"github.com/prepd/prepd/internal/config"
	"github.com/prepd/prepd/internal/db"
	"github.com/prepd/prepd/internal/dispatch"
	"github.com/prepd/prepd/internal/errors"
	"github.com/prepd/prepd/internal/event"
	"github.com/prepd/prepd/internal/llm"
)

// AnalyzeInput contains parameters for the Analyze operation.
type AnalyzeInput struct {
	Household string // optional, defaults to "default"
	Events    []event.CalendarEvent
	Force     bool // re-analyze events that already have a cached record
	Limit     int  // max events analyzed this run, 0 = no cap
}

// AnalyzeResult is the per-event outcome row.
type AnalyzeResult struct {
	EventID      string `json:"event_id"`
	Title        string `json:"title"`
	CacheHit     bool   `json:"cache_hit"`
	EventType    string `json:"event_type"`
	TasksCreated int    `json:"tasks_created"`
	Fallback     bool   `json:"fallback"`
}

// AnalyzeOutput contains the result of the Analyze operation.
type AnalyzeOutput struct {
	Results      []AnalyzeResult `json:"results"`
	Analyzed     int             `json:"analyzed"`
	FromCache    int             `json:"from_cache"`
	TasksCreated int             `json:"tasks_created"`
	Fallbacks    int             `json:"fallbacks"`
	Message      string          `json:"message"`
}

// Analyze runs the batch pipeline over a set of calendar events: events with
// a cached analysis are skipped (no model spend) unless Force, the rest go
// through the paced dispatcher one at a time, and every result is
// materialized as it would be by Materialize. Results keep input order, with
// cache hits in place.
//
// A persistence failure aborts the batch; events persisted before the
// failure stay persisted. On cancellation the results gathered so far are
// persisted before the cancellation is reported.
func Analyze(ctx context.Context, database *sql.DB, cfg *config.Config, analyzer dispatch.Analyzer, input AnalyzeInput) (*AnalyzeOutput, error) {
	if analyzer == nil {
		return nil, errors.NewInvalidRequest("analyzer is required")
	}

	events := input.Events
	if input.Limit > 0 && len(events) > input.Limit {
		events = events[:input.Limit]
	}

	norm := analysis.NormalizeHousehold(input.Household)
	out := &AnalyzeOutput{Results: make([]AnalyzeResult, 0, len(events))}

	// Partition into cached rows and events still needing a model call.
	var pending []event.CalendarEvent
	pendingRow := make(map[string]int) // event id -> index into out.Results
	for i, ev := range events {
		if ev.ID == "" {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("event %d: id is required", i))
		}
		if !input.Force {
			rec, err := db.GetAnalysisByEventID(database, norm, ev.ID)
			if err == nil {
				out.Results = append(out.Results, AnalyzeResult{
					EventID:   ev.ID,
					Title:     rec.EventTitle,
					CacheHit:  true,
					EventType: rec.EventType,
				})
				out.FromCache++
				continue
			}
			if !errors.Is(err, errors.ErrNotFound) {
				return nil, err
			}
		}
		pendingRow[ev.ID] = len(out.Results)
		out.Results = append(out.Results, AnalyzeResult{EventID: ev.ID, Title: ev.DisplayTitle()})
		pending = append(pending, ev)
	}

	d := dispatch.New(analyzer)
	if cfg != nil {
		if p := cfg.Pace(); p > 0 {
			d.Pace = p
		}
		if c := cfg.Cooldown(); c > 0 {
			d.Cooldown = c
		}
	}

	results, runErr := d.Run(ctx, pending)

	model := modelName(cfg)
	for _, ev := range pending {
		a, ok := results[ev.ID]
		if !ok {
			continue // cancelled before this event was reached
		}
		mat, err := Materialize(database, MaterializeInput{
			Household: input.Household,
			Event:     ev,
			Analysis:  a,
			Model:     model,
			Force:     input.Force,
		})
		if err != nil {
			return nil, err
		}

		row := &out.Results[pendingRow[ev.ID]]
		row.EventType = mat.Record.EventType
		row.TasksCreated = len(mat.Tasks)
		row.Fallback = a.IsFallback()
		if row.Fallback {
			out.Fallbacks++
		}
		out.Analyzed++
		out.TasksCreated += len(mat.Tasks)
	}

	if runErr != nil {
		return nil, errors.NewCancelled()
	}

	out.Message = fmt.Sprintf("Analyzed %d events (%d from cache), created %d tasks",
		len(events), out.FromCache, out.TasksCreated)

	return out, nil
}

// modelName resolves the model name recorded on analyzed events.
func modelName(cfg *config.Config) string {
	if cfg == nil || cfg.Provider.Model == "" {
		return llm.DefaultModel
	}
	return cfg.Provider.Model
}

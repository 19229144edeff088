package ops

import (
	"database/sql"

	"github.com/prepd/prepd/internal/analysis"
	"github.com/prepd/prepd/internal/db"
)

// EventsInput contains parameters for the Events operation.
type EventsInput struct {
	Household string // optional, defaults to "default"
	Limit     int    // default: 20, max: 100
	Offset    int    // default: 0
}

// EventSummary is one analyzed event in a listing, with its task count.
type EventSummary struct {
	ID                   string  `json:"id"`
	EventID              string  `json:"event_id"`
	Title                string  `json:"title"`
	EventLocation        *string `json:"event_location,omitempty"`
	EventStart           int64   `json:"event_start"`
	EventEnd             *int64  `json:"event_end,omitempty"`
	EventAllDay          bool    `json:"event_all_day"`
	EventType            string  `json:"event_type"`
	RequiresSitter       bool    `json:"requires_sitter"`
	RequiresTravel       bool    `json:"requires_travel"`
	RequiresFormalAttire bool    `json:"requires_formal_attire"`
	Confidence           float64 `json:"confidence"`
	TaskCount            int     `json:"task_count"`
	UpdatedAt            int64   `json:"updated_at"`
}

// EventsOutput contains the result of the Events operation.
type EventsOutput struct {
	Items      []EventSummary `json:"items"`
	Pagination Pagination     `json:"pagination"`
	Sort       string         `json:"sort"`
}

// Events lists a household's analyzed events, newest event start first,
// with per-event task counts.
func Events(database *sql.DB, input EventsInput) (*EventsOutput, error) {
	norm := analysis.NormalizeHousehold(input.Household)

	limit := clampLimit(input.Limit)
	offset := max(input.Offset, 0)

	records, total, err := db.ListAnalyses(database, norm, limit, offset)
	if err != nil {
		return nil, err
	}

	counts, err := db.TaskCountsByEvent(database, norm)
	if err != nil {
		return nil, err
	}

	items := make([]EventSummary, 0, len(records))
	for _, rec := range records {
		items = append(items, EventSummary{
			ID:                   rec.ID,
			EventID:              rec.EventID,
			Title:                rec.EventTitle,
			EventLocation:        rec.EventLocation,
			EventStart:           rec.EventStart,
			EventEnd:             rec.EventEnd,
			EventAllDay:          rec.EventAllDay,
			EventType:            rec.EventType,
			RequiresSitter:       rec.RequiresSitter,
			RequiresTravel:       rec.RequiresTravel,
			RequiresFormalAttire: rec.RequiresFormalAttire,
			Confidence:           rec.Confidence,
			TaskCount:            counts[rec.ID],
			UpdatedAt:            rec.UpdatedAt,
		})
	}

	hasMore := offset+len(items) < total

	return &EventsOutput{
		Items: items,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: hasMore,
			Total:   total,
		},
		Sort: "event_start_desc",
	}, nil
}

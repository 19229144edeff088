package analysis

// AnalyzedEvent is the cached classification record for one source calendar
// event. At most one row exists per (household, event id); re-analysis
// replaces the row and its owned tasks in one transaction.
type AnalyzedEvent struct {
	// ID is a ULID that uniquely identifies this record
	ID string `json:"id"`

	// HouseholdRaw is the original household string as provided by the caller
	HouseholdRaw string `json:"household"`

	// HouseholdNorm is the normalized household (lowercased, trimmed, collapsed spaces)
	HouseholdNorm string `json:"household_norm"`

	// EventID is the external calendar event identifier (unique per household)
	EventID string `json:"event_id"`

	// Event snapshot at analysis time
	EventTitle    string  `json:"event_title"`
	EventLocation *string `json:"event_location,omitempty"`
	EventStart    int64   `json:"event_start"`         // Unix seconds
	EventEnd      *int64  `json:"event_end,omitempty"` // Unix seconds (nullable)
	EventAllDay   bool    `json:"event_all_day"`

	// Analysis result
	EventType            string  `json:"event_type"`
	RequiresSitter       bool    `json:"requires_sitter"`
	RequiresTravel       bool    `json:"requires_travel"`
	RequiresFormalAttire bool    `json:"requires_formal_attire"`
	Reasoning            *string `json:"reasoning,omitempty"`
	Confidence           float64 `json:"confidence"`

	// Model names the model that produced this analysis (nullable)
	Model *string `json:"model,omitempty"`

	// CreatedAt is the Unix timestamp when the record was created
	CreatedAt int64 `json:"created_at"`

	// UpdatedAt is the Unix timestamp when the record was last replaced
	UpdatedAt int64 `json:"updated_at"`
}

// Task statuses. Pending tasks appear on the board; completed and dismissed
// are terminal.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusDismissed = "dismissed"
)

// Task is a durable prep task derived from one SuggestedTask. It is owned by
// its AnalyzedEvent: re-analysis and flush delete it.
type Task struct {
	// ID is a ULID that uniquely identifies this task
	ID string `json:"id"`

	// AnalyzedEventID references the owning AnalyzedEvent
	AnalyzedEventID string `json:"analyzed_event_id"`

	// HouseholdNorm is denormalized from the owner for direct task queries
	HouseholdNorm string `json:"household_norm"`

	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	TaskType    string  `json:"task_type"`
	Priority    string  `json:"priority"`

	// DueDate is the Unix timestamp of midnight on the day the task is due
	DueDate int64 `json:"due_date"`

	// Status is one of pending, completed, dismissed
	Status string `json:"status"`

	// CompletedAt / DismissedAt are Unix timestamps for the status change (nullable)
	CompletedAt *int64 `json:"completed_at,omitempty"`
	DismissedAt *int64 `json:"dismissed_at,omitempty"`

	CreatedAt int64 `json:"created_at"`
	UpdatedAt int64 `json:"updated_at"`
}

package analysis

// ExportRecord is one analyzed event in JSONL export format, with its tasks
// nested. It doubles as the parse target during import: the header line sets
// only PrepdExport and the header fields, record lines set the rest.
type ExportRecord struct {
	// Header detection field - true only for the header line
	PrepdExport bool `json:"_prepd_export,omitempty"`

	// Header fields (only present in the header line)
	SchemaVersion string `json:"schema_version,omitempty"`
	ExportedAt    int64  `json:"exported_at,omitempty"`

	// Analyzed event fields
	ID            string  `json:"id"`
	Household     string  `json:"household"` // raw; the normalized form is recomputed on import
	EventID       string  `json:"event_id"`
	EventTitle    string  `json:"event_title"`
	EventLocation *string `json:"event_location"`
	EventStart    int64   `json:"event_start"`
	EventEnd      *int64  `json:"event_end"`
	EventAllDay   bool    `json:"event_all_day"`

	EventType            string  `json:"event_type"`
	RequiresSitter       bool    `json:"requires_sitter"`
	RequiresTravel       bool    `json:"requires_travel"`
	RequiresFormalAttire bool    `json:"requires_formal_attire"`
	Reasoning            *string `json:"reasoning"`
	Confidence           float64 `json:"confidence"`
	Model                *string `json:"model"`

	Tasks []TaskExportRecord `json:"tasks"`

	CreatedAt int64 `json:"created_at"`
	UpdatedAt int64 `json:"updated_at"`
}

// TaskExportRecord is one task nested inside an exported analyzed event.
// Ownership fields are omitted; they are rebuilt from the parent on import.
type TaskExportRecord struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description *string `json:"description"`
	TaskType    string  `json:"task_type"`
	Priority    string  `json:"priority"`
	DueDate     int64   `json:"due_date"`
	Status      string  `json:"status"`
	CompletedAt *int64  `json:"completed_at"`
	DismissedAt *int64  `json:"dismissed_at"`
	CreatedAt   int64   `json:"created_at"`
	UpdatedAt   int64   `json:"updated_at"`
}

// ToExportRecord flattens an analyzed event and its tasks into one record.
func ToExportRecord(rec *AnalyzedEvent, tasks []Task) *ExportRecord {
	out := &ExportRecord{
		ID:            rec.ID,
		Household:     rec.HouseholdRaw,
		EventID:       rec.EventID,
		EventTitle:    rec.EventTitle,
		EventLocation: rec.EventLocation,
		EventStart:    rec.EventStart,
		EventEnd:      rec.EventEnd,
		EventAllDay:   rec.EventAllDay,

		EventType:            rec.EventType,
		RequiresSitter:       rec.RequiresSitter,
		RequiresTravel:       rec.RequiresTravel,
		RequiresFormalAttire: rec.RequiresFormalAttire,
		Reasoning:            rec.Reasoning,
		Confidence:           rec.Confidence,
		Model:                rec.Model,

		Tasks: make([]TaskExportRecord, 0, len(tasks)),

		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}

	for _, t := range tasks {
		out.Tasks = append(out.Tasks, TaskExportRecord{
			ID:          t.ID,
			Title:       t.Title,
			Description: t.Description,
			TaskType:    t.TaskType,
			Priority:    t.Priority,
			DueDate:     t.DueDate,
			Status:      t.Status,
			CompletedAt: t.CompletedAt,
			DismissedAt: t.DismissedAt,
			CreatedAt:   t.CreatedAt,
			UpdatedAt:   t.UpdatedAt,
		})
	}

	return out
}

// ToAnalyzedEvent converts a parsed export record back into the row form,
// recomputing the normalized household. Task ownership fields are filled
// from the parent record; a task without a status becomes pending.
func (r *ExportRecord) ToAnalyzedEvent() (*AnalyzedEvent, []Task) {
	norm := NormalizeHousehold(r.Household)

	rec := &AnalyzedEvent{
		ID:            r.ID,
		HouseholdRaw:  r.Household,
		HouseholdNorm: norm, // recompute
		EventID:       r.EventID,
		EventTitle:    r.EventTitle,
		EventLocation: r.EventLocation,
		EventStart:    r.EventStart,
		EventEnd:      r.EventEnd,
		EventAllDay:   r.EventAllDay,

		EventType:            r.EventType,
		RequiresSitter:       r.RequiresSitter,
		RequiresTravel:       r.RequiresTravel,
		RequiresFormalAttire: r.RequiresFormalAttire,
		Reasoning:            r.Reasoning,
		Confidence:           r.Confidence,
		Model:                r.Model,

		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}

	tasks := make([]Task, 0, len(r.Tasks))
	for _, t := range r.Tasks {
		status := t.Status
		if status == "" {
			status = StatusPending
		}
		tasks = append(tasks, Task{
			ID:              t.ID,
			AnalyzedEventID: rec.ID,
			HouseholdNorm:   norm,
			Title:           t.Title,
			Description:     t.Description,
			TaskType:        t.TaskType,
			Priority:        t.Priority,
			DueDate:         t.DueDate,
			Status:          status,
			CompletedAt:     t.CompletedAt,
			DismissedAt:     t.DismissedAt,
			CreatedAt:       t.CreatedAt,
			UpdatedAt:       t.UpdatedAt,
		})
	}

	return rec, tasks
}

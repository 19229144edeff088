// Package analysis defines the event classification model: the JSON shape
// the model is asked to emit, the persisted records derived from it, and the
// client that turns one calendar event into one EventAnalysis.
package analysis

import (
	"strings"
	"time"
)

// EventType classifies a calendar event.
type EventType string

const (
	EventWork        EventType = "work"
	EventSocial      EventType = "social"
	EventTravel      EventType = "travel"
	EventAppointment EventType = "appointment"
	EventFamily      EventType = "family"
	EventOther       EventType = "other"
)

// Valid reports whether t is one of the known event types.
func (t EventType) Valid() bool {
	switch t {
	case EventWork, EventSocial, EventTravel, EventAppointment, EventFamily, EventOther:
		return true
	}
	return false
}

// TaskType classifies a suggested prep task.
type TaskType string

const (
	TaskBooking     TaskType = "booking"
	TaskShopping    TaskType = "shopping"
	TaskPreparation TaskType = "preparation"
	TaskReminder    TaskType = "reminder"
)

// Valid reports whether t is one of the known task types.
func (t TaskType) Valid() bool {
	switch t {
	case TaskBooking, TaskShopping, TaskPreparation, TaskReminder:
		return true
	}
	return false
}

// Priority orders tasks within a due date.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Rank maps priorities to sortable ranks, high first. Unknown values sort last.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	case PriorityLow:
		return 2
	}
	return 3
}

// SuggestedTask is one prep task proposed by the model. It is ephemeral:
// the materializer turns it into a durable Task row.
type SuggestedTask struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Type        TaskType `json:"type"`
	Priority    Priority `json:"priority"`

	// Exactly one of DueDate (YYYY-MM-DD) or DaysBeforeEvent is expected;
	// an explicit DueDate wins when both are present.
	DueDate         string `json:"dueDate,omitempty"`
	DaysBeforeEvent int    `json:"daysBeforeEvent,omitempty"`
}

// ResolveDueDate computes the task's absolute due date against its event
// start: an explicit parseable DueDate wins, otherwise the event's start date
// minus DaysBeforeEvent days (negative offsets treated as 0). The result is
// midnight in the event start's location.
func (t SuggestedTask) ResolveDueDate(eventStart time.Time) time.Time {
	if t.DueDate != "" {
		if d, err := time.ParseInLocation("2006-01-02", t.DueDate, eventStart.Location()); err == nil {
			return d
		}
	}
	days := t.DaysBeforeEvent
	if days < 0 {
		days = 0
	}
	y, m, d := eventStart.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, eventStart.Location()).AddDate(0, 0, -days)
}

// EventAnalysis is the model's classification of one event. Field names
// match the JSON the model is instructed to emit.
type EventAnalysis struct {
	EventType            EventType       `json:"eventType"`
	RequiresSitter       bool            `json:"requiresSitter"`
	RequiresTravel       bool            `json:"requiresTravel"`
	RequiresFormalAttire bool            `json:"requiresFormalAttire"`
	SuggestedTasks       []SuggestedTask `json:"suggestedTasks"`
	Reasoning            string          `json:"reasoning,omitempty"`
	Confidence           float64         `json:"confidence"`
}

// fallbackReasonPrefix marks analyses produced by Fallback.
const fallbackReasonPrefix = "analysis failed: "

// Fallback is the conservative analysis recorded when a real one could not
// be produced: type "other", no flags, no tasks, low confidence.
func Fallback(reason string) EventAnalysis {
	return EventAnalysis{
		EventType:      EventOther,
		SuggestedTasks: []SuggestedTask{},
		Reasoning:      fallbackReasonPrefix + reason,
		Confidence:     0.1,
	}
}

// IsFallback reports whether a was produced by Fallback rather than parsed
// from a model reply.
func (a EventAnalysis) IsFallback() bool {
	return strings.HasPrefix(a.Reasoning, fallbackReasonPrefix)
}

// Coerce repairs out-of-range values in place after unmarshalling: unknown
// enum values fall back to safe defaults, confidence is clamped to [0,1],
// and tasks without a title are dropped.
func (a *EventAnalysis) Coerce() {
	if !a.EventType.Valid() {
		a.EventType = EventOther
	}
	if a.Confidence < 0 {
		a.Confidence = 0
	}
	if a.Confidence > 1 {
		a.Confidence = 1
	}

	kept := make([]SuggestedTask, 0, len(a.SuggestedTasks))
	for _, t := range a.SuggestedTasks {
		if t.Title == "" {
			continue
		}
		if !t.Type.Valid() {
			t.Type = TaskPreparation
		}
		if !t.Priority.Valid() {
			t.Priority = PriorityMedium
		}
		if t.DaysBeforeEvent < 0 {
			t.DaysBeforeEvent = 0
		}
		kept = append(kept, t)
	}
	a.SuggestedTasks = kept
}

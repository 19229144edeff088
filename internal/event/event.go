// Package event defines the calendar event model the analysis pipeline
// consumes. Events arrive from ICS feeds, stdin JSON, or MCP callers; the
// pipeline never writes them back.
package event

import (
	"fmt"
	"strings"
	"time"
)

// DefaultTitle is substituted when an event arrives without a title.
const DefaultTitle = "Untitled"

// CalendarEvent is a read-only snapshot of one calendar entry (a single
// occurrence, after any recurrence expansion).
type CalendarEvent struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	AllDay      bool      `json:"all_day,omitempty"`
}

// DisplayTitle returns the title, or DefaultTitle when blank.
func (e CalendarEvent) DisplayTitle() string {
	if strings.TrimSpace(e.Title) == "" {
		return DefaultTitle
	}
	return strings.TrimSpace(e.Title)
}

// Duration returns the event length, or 0 when End is unset or precedes Start.
func (e CalendarEvent) Duration() time.Duration {
	if e.End.IsZero() || e.End.Before(e.Start) {
		return 0
	}
	return e.End.Sub(e.Start)
}

// When renders the event timing for prompts and display: weekday, date, and
// either "all day" or a start time with duration.
func (e CalendarEvent) When() string {
	day := e.Start.Format("Monday, January 2, 2006")
	if e.AllDay {
		return day + " (all day)"
	}
	s := day + " at " + e.Start.Format("3:04 PM")
	if d := e.Duration(); d > 0 {
		s += fmt.Sprintf(" (%s)", formatDuration(d))
	}
	return s
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Minute)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	switch {
	case h == 0:
		return fmt.Sprintf("%dm", m)
	case m == 0:
		return fmt.Sprintf("%dh", h)
	default:
		return fmt.Sprintf("%dh%02dm", h, m)
	}
}

// FallbackID builds a stable identifier for events whose source supplied no
// UID, from the source id, start time, and title.
func FallbackID(sourceID string, start time.Time, title string) string {
	return fmt.Sprintf("%s-%d-%s", sourceID, start.Unix(), strings.ReplaceAll(title, " ", "-"))
}

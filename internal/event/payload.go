package event

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// Payload is the JSON shape for caller-supplied events, used by CLI stdin
// and MCP arguments. Times are RFC 3339; a bare YYYY-MM-DD start marks the
// event all-day.
type Payload struct {
	ID          string `json:"id,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Location    string `json:"location,omitempty"`
	Start       string `json:"start"`
	End         string `json:"end,omitempty"`
	AllDay      bool   `json:"all_day,omitempty"`
}

// CalendarEvent converts the payload, parsing timestamps and filling a
// fallback id when the caller gave none.
func (p Payload) CalendarEvent() (CalendarEvent, error) {
	if p.Start == "" {
		return CalendarEvent{}, fmt.Errorf("start is required")
	}

	start, dateOnly, err := parsePayloadStamp(p.Start)
	if err != nil {
		return CalendarEvent{}, fmt.Errorf("invalid start %q: must be RFC 3339 or YYYY-MM-DD", p.Start)
	}

	ev := CalendarEvent{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		Location:    p.Location,
		Start:       start,
		AllDay:      p.AllDay || dateOnly,
	}

	if p.End != "" {
		end, _, err := parsePayloadStamp(p.End)
		if err != nil {
			return CalendarEvent{}, fmt.Errorf("invalid end %q: must be RFC 3339 or YYYY-MM-DD", p.End)
		}
		ev.End = end
	}

	if ev.ID == "" {
		ev.ID = FallbackID("manual", ev.Start, ev.DisplayTitle())
	}

	return ev, nil
}

// parsePayloadStamp accepts RFC 3339 or a bare date; the bare form reports
// date-only so the caller can mark the event all-day.
func parsePayloadStamp(s string) (time.Time, bool, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, false, nil
	}
	if t, err := time.ParseInLocation("2006-01-02", s, time.Local); err == nil {
		return t, true, nil
	}
	return time.Time{}, false, fmt.Errorf("unrecognized time %q", s)
}

// FromPayloads converts a batch, naming the index of the first bad entry.
func FromPayloads(payloads []Payload) ([]CalendarEvent, error) {
	events := make([]CalendarEvent, 0, len(payloads))
	for i, p := range payloads {
		ev, err := p.CalendarEvent()
		if err != nil {
			return nil, fmt.Errorf("events[%d]: %w", i, err)
		}
		events = append(events, ev)
	}
	return events, nil
}

// DecodePayloads reads a JSON array of payloads and converts each.
func DecodePayloads(r io.Reader) ([]CalendarEvent, error) {
	var payloads []Payload
	if err := json.NewDecoder(r).Decode(&payloads); err != nil {
		return nil, fmt.Errorf("invalid events JSON: %w", err)
	}
	return FromPayloads(payloads)
}

package ics

import (
	"bytes"
	"errors"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/prepd/prepd/internal/event"
	"github.com/prepd/prepd/internal/log"
)

// VEvent is one parsed VEVENT before recurrence expansion.
type VEvent struct {
	SourceID string

	UID         string
	Title       string
	Description string
	Location    string

	Start  time.Time
	End    time.Time
	AllDay bool

	// RRule holds the raw RRULE value; expansion happens in Expand.
	RRule        string
	ExDates      []time.Time
	RecurrenceID *time.Time
}

// isOverride reports whether this VEVENT replaces one instance of a
// recurring event rather than defining the series.
func (v VEvent) isOverride() bool {
	return v.RecurrenceID != nil
}

// Parse decodes an ICS payload into VEvents. Malformed VEVENTs are skipped
// with a log line; a calendar that fails to decode at all returns an error.
func Parse(src Source, body []byte) ([]VEvent, error) {
	if len(body) == 0 {
		return nil, errors.New("empty feed body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var events []VEvent
	for _, ve := range cal.Events() {
		parsed, err := parseVEvent(src, ve)
		if err != nil {
			log.Debug("skipping malformed vevent", "feed", src.ID, "reason", err.Error())
			continue
		}
		events = append(events, parsed)
	}

	return events, nil
}

func parseVEvent(src Source, ve *ical.VEvent) (VEvent, error) {
	out := VEvent{SourceID: src.ID}

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Title = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		out.Description = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		out.Location = p.Value
	}

	start, err := ve.GetStartAt()
	if err != nil || start.IsZero() {
		return out, errors.New("missing or unparseable DTSTART")
	}
	out.Start = start

	// All-day: DTSTART carries VALUE=DATE, or the value has no time part.
	if p := ve.GetProperty(ical.ComponentPropertyDtStart); p != nil {
		if params := p.ICalParameters; params != nil {
			if vs, ok := params["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
				out.AllDay = true
			}
		}
		if !strings.Contains(p.Value, "T") {
			out.AllDay = true
		}
	}

	end, _ := ve.GetEndAt()
	if end.IsZero() || end.Before(start) {
		// DTEND is optional; an all-day event spans its date, anything
		// else is treated as instantaneous.
		if out.AllDay {
			end = start.Add(24 * time.Hour)
		} else {
			end = start
		}
	}
	out.End = end

	if p := ve.GetProperty(ical.ComponentPropertyUniqueId); p != nil {
		out.UID = p.Value
	}
	if out.UID == "" {
		out.UID = event.FallbackID(src.ID, out.Start, out.Title)
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		out.RRule = p.Value
	}

	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if t, err := parseStamp(part); err == nil {
				out.ExDates = append(out.ExDates, t)
			}
		}
	}

	if p := ve.GetProperty("RECURRENCE-ID"); p != nil {
		if t, err := parseStamp(p.Value); err == nil {
			out.RecurrenceID = &t
		}
	}

	return out, nil
}

// parseStamp decodes the basic ICS date and date-time forms used by EXDATE
// and RECURRENCE-ID values.
func parseStamp(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	switch {
	case v == "":
		return time.Time{}, errors.New("empty time value")
	case strings.HasSuffix(v, "Z"):
		return time.Parse("20060102T150405Z", v)
	case strings.Contains(v, "T"):
		return time.ParseInLocation("20060102T150405", v, time.Local)
	default:
		return time.ParseInLocation("20060102", v, time.Local)
	}
}

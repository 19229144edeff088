package ics

import (
	"time"

	"github.com/teambition/rrule-go"

	"github.com/prepd/prepd/internal/event"
	"github.com/prepd/prepd/internal/log"
)

// maxOccurrencesPerEvent caps expansion per series. A 30 day window holds at
// most 31 daily occurrences, so the cap only trips on pathological rules.
const maxOccurrencesPerEvent = 500

// Expand materializes VEvents into concrete calendar events inside the
// window. Recurring series are expanded via their RRULE with EXDATEs removed
// and RECURRENCE-ID overrides applied; each occurrence gets the id
// "UID@start" (RFC 3339, UTC) so one occurrence's analysis never collides
// with another's. Non-recurring events keep their UID as the id.
func Expand(events []VEvent, w Window) []event.CalendarEvent {
	basesByUID := make(map[string][]VEvent)
	overridesByUID := make(map[string][]VEvent)
	var order []string

	for _, ev := range events {
		if ev.isOverride() {
			overridesByUID[ev.UID] = append(overridesByUID[ev.UID], ev)
			continue
		}
		if _, seen := basesByUID[ev.UID]; !seen {
			order = append(order, ev.UID)
		}
		basesByUID[ev.UID] = append(basesByUID[ev.UID], ev)
	}

	var out []event.CalendarEvent
	for _, uid := range order {
		overrides := overridesByUID[uid]
		for _, ev := range basesByUID[uid] {
			if ev.RRule == "" {
				out = append(out, expandSingle(ev, overrides, w)...)
			} else {
				out = append(out, expandSeries(ev, overrides, w)...)
			}
		}
	}

	return out
}

func expandSingle(ev VEvent, overrides []VEvent, w Window) []event.CalendarEvent {
	if !overlaps(ev.Start, ev.End, w) {
		return nil
	}
	if o, ok := overrideFor(overrides, ev.Start); ok {
		ev = o
	}
	return []event.CalendarEvent{toCalendarEvent(ev, ev.UID, ev.Start, ev.End)}
}

func expandSeries(ev VEvent, overrides []VEvent, w Window) []event.CalendarEvent {
	rule, err := rrule.StrToRRule(ev.RRule)
	if err != nil {
		// An unparseable rule still surfaces the base event once.
		log.Error("unparseable RRULE, keeping base event only", err, "uid", ev.UID)
		return expandSingle(ev, overrides, w)
	}
	rule.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(rule)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	// Between compares in the series' own timezone.
	loc := ev.Start.Location()
	starts := set.Between(w.Start.In(loc), w.End.In(loc), true)
	if len(starts) > maxOccurrencesPerEvent {
		log.Info("recurrence expansion capped", "uid", ev.UID, "cap", maxOccurrencesPerEvent)
		starts = starts[:maxOccurrencesPerEvent]
	}

	duration := ev.End.Sub(ev.Start)
	out := make([]event.CalendarEvent, 0, len(starts))
	for _, start := range starts {
		var end time.Time
		if ev.AllDay {
			start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
			end = start.Add(24 * time.Hour)
		} else {
			end = start.Add(duration)
		}

		id := ev.UID + "@" + start.UTC().Format(time.RFC3339)
		occ := ev
		if o, ok := overrideFor(overrides, start); ok {
			occ = o
			start, end = o.Start, o.End
		}
		out = append(out, toCalendarEvent(occ, id, start, end))
	}

	return out
}

// overrideFor matches a RECURRENCE-ID override against an occurrence start.
func overrideFor(overrides []VEvent, start time.Time) (VEvent, bool) {
	for _, ov := range overrides {
		if ov.RecurrenceID != nil && ov.RecurrenceID.In(start.Location()).Equal(start) {
			return ov, true
		}
	}
	return VEvent{}, false
}

func toCalendarEvent(ev VEvent, id string, start, end time.Time) event.CalendarEvent {
	return event.CalendarEvent{
		ID:          id,
		Title:       ev.Title,
		Description: ev.Description,
		Location:    ev.Location,
		Start:       start,
		End:         end,
		AllDay:      ev.AllDay,
	}
}

func overlaps(start, end time.Time, w Window) bool {
	return !end.Before(w.Start) && !start.After(w.End)
}

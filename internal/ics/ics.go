// Package ics loads calendar events from ICS feed subscriptions. Feeds are
// fetched with conditional HTTP requests backed by a disk cache, parsed with
// golang-ical, and recurring events are expanded into concrete occurrences
// with rrule-go.
package ics

import (
	"context"
	"sort"
	"time"

	"github.com/prepd/prepd/internal/event"
	"github.com/prepd/prepd/internal/log"
)

// Source is one ICS subscription.
type Source struct {
	// ID identifies the feed in logs and fallback event ids.
	ID string
	// URL is the ICS endpoint.
	URL string
}

// Window bounds recurrence expansion. Events are materialized for
// occurrences that overlap [Start, End].
type Window struct {
	Start time.Time
	End   time.Time
}

// DefaultWindow covers now through now plus the given lookahead.
func DefaultWindow(now time.Time, lookahead time.Duration) Window {
	return Window{Start: now, End: now.Add(lookahead)}
}

// Load fetches, parses, and expands every source into concrete calendar
// events within the window, sorted by start time. A feed that fails to
// fetch or parse is logged and skipped so one dead subscription does not
// hide the rest.
func (f *Fetcher) Load(ctx context.Context, sources []Source, window Window) []event.CalendarEvent {
	results, _ := f.FetchAll(ctx, sources)

	var all []event.CalendarEvent
	for _, res := range results {
		parsed, err := Parse(res.Source, res.Body)
		if err != nil {
			log.Error("feed parse failed", err, "feed", res.Source.ID, "url", redactURL(res.Source.URL))
			continue
		}
		all = append(all, Expand(parsed, window)...)
	}

	all = dedupeEvents(all)
	sort.Slice(all, func(i, j int) bool {
		if !all[i].Start.Equal(all[j].Start) {
			return all[i].Start.Before(all[j].Start)
		}
		return all[i].ID < all[j].ID
	})

	return all
}

// dedupeEvents drops events that repeat across feeds, either by id (same
// feed subscribed twice) or by title plus start (same event under two UIDs).
func dedupeEvents(events []event.CalendarEvent) []event.CalendarEvent {
	seenID := make(map[string]bool, len(events))
	seenKey := make(map[string]bool, len(events))

	out := events[:0]
	for _, ev := range events {
		key := ev.Title + "|" + ev.Start.UTC().Format(time.RFC3339)
		if seenID[ev.ID] || seenKey[key] {
			continue
		}
		seenID[ev.ID] = true
		seenKey[key] = true
		out = append(out, ev)
	}
	return out
}

package event

import (
	"strings"
	"testing"
	"time"
)

func TestDisplayTitle(t *testing.T) {
	tests := []struct {
		name  string
		title string
		want  string
	}{
		{"normal title", "Dinner with Smiths", "Dinner with Smiths"},
		{"empty title", "", DefaultTitle},
		{"whitespace only", "   ", DefaultTitle},
		{"trims whitespace", "  Recital  ", "Recital"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := CalendarEvent{Title: tt.title}
			if got := e.DisplayTitle(); got != tt.want {
				t.Errorf("DisplayTitle() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDuration(t *testing.T) {
	start := time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)

	t.Run("normal span", func(t *testing.T) {
		e := CalendarEvent{Start: start, End: start.Add(90 * time.Minute)}
		if got := e.Duration(); got != 90*time.Minute {
			t.Errorf("Duration() = %v, want 90m", got)
		}
	})

	t.Run("zero end", func(t *testing.T) {
		e := CalendarEvent{Start: start}
		if got := e.Duration(); got != 0 {
			t.Errorf("Duration() = %v, want 0", got)
		}
	})

	t.Run("end before start", func(t *testing.T) {
		e := CalendarEvent{Start: start, End: start.Add(-time.Hour)}
		if got := e.Duration(); got != 0 {
			t.Errorf("Duration() = %v, want 0", got)
		}
	})
}

func TestWhen(t *testing.T) {
	start := time.Date(2026, 3, 14, 18, 30, 0, 0, time.UTC)

	t.Run("timed event includes start and duration", func(t *testing.T) {
		e := CalendarEvent{Start: start, End: start.Add(2 * time.Hour)}
		got := e.When()
		if !strings.Contains(got, "Saturday, March 14, 2026") {
			t.Errorf("When() = %q, missing date", got)
		}
		if !strings.Contains(got, "6:30 PM") {
			t.Errorf("When() = %q, missing start time", got)
		}
		if !strings.Contains(got, "2h") {
			t.Errorf("When() = %q, missing duration", got)
		}
	})

	t.Run("all-day event", func(t *testing.T) {
		e := CalendarEvent{Start: start, AllDay: true}
		got := e.When()
		if !strings.Contains(got, "(all day)") {
			t.Errorf("When() = %q, want all-day marker", got)
		}
		if strings.Contains(got, "PM") {
			t.Errorf("When() = %q, should not include a clock time", got)
		}
	})
}

func TestFallbackID(t *testing.T) {
	start := time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)
	got := FallbackID("family", start, "Birthday Party")

	if !strings.HasPrefix(got, "family-") {
		t.Errorf("FallbackID() = %q, want source prefix", got)
	}
	if !strings.HasSuffix(got, "Birthday-Party") {
		t.Errorf("FallbackID() = %q, want hyphenated title suffix", got)
	}

	// Same inputs must produce the same id.
	if again := FallbackID("family", start, "Birthday Party"); again != got {
		t.Errorf("FallbackID() not stable: %q vs %q", got, again)
	}
}

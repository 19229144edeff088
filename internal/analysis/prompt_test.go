package analysis

import (
	"strings"
	"testing"
	"time"

	"github.com/prepd/prepd/internal/event"
)

func TestBuildUserPrompt(t *testing.T) {
	start := time.Date(2026, 9, 4, 18, 0, 0, 0, time.UTC)
	ev := event.CalendarEvent{
		ID:       "evt-1",
		Title:    "Company Gala",
		Location: "Grand Hotel, Boston",
		Start:    start,
		End:      start.Add(3 * time.Hour),
	}
	hh := HouseholdContext{
		FamilyMembers: []FamilyMember{
			{Name: "Mia", Age: 6, Notes: "allergic to peanuts"},
			{Name: "Ben", Age: 9},
		},
		HomeLocation: "Cambridge, MA",
		Notes:        "No car; we rely on transit.",
		Timing: TimingPreferences{
			SitterLeadDays:     5,
			DrivingRadiusMiles: 50,
		},
	}

	got := BuildUserPrompt(ev, hh)

	for _, want := range []string{
		"Event: Company Gala",
		"Location: Grand Hotel, Boston",
		"Friday, September 4, 2026",
		"Family: Mia (age 6; allergic to peanuts), Ben (age 9)",
		"Home location: Cambridge, MA",
		"Household notes: No car; we rely on transit.",
		"book sitters 5 days ahead",
		"beyond 50 miles",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("prompt missing %q:\n%s", want, got)
		}
	}
}

func TestBuildUserPrompt_SparseEvent(t *testing.T) {
	ev := event.CalendarEvent{
		ID:    "evt-2",
		Start: time.Date(2026, 9, 4, 0, 0, 0, 0, time.UTC),
	}

	got := BuildUserPrompt(ev, HouseholdContext{})

	if !strings.Contains(got, "Event: "+event.DefaultTitle) {
		t.Errorf("untitled event should use the default title:\n%s", got)
	}
	for _, absent := range []string{"Location:", "Description:", "Family:", "Home location:", "Household notes:", "Planning preferences:"} {
		if strings.Contains(got, absent) {
			t.Errorf("sparse prompt should omit %q:\n%s", absent, got)
		}
	}
}

func TestBuildUserPrompt_AllDayEvent(t *testing.T) {
	ev := event.CalendarEvent{
		ID:     "evt-3",
		Title:  "School Holiday",
		Start:  time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC),
		AllDay: true,
	}

	got := BuildUserPrompt(ev, HouseholdContext{})

	if !strings.Contains(got, "(all day)") {
		t.Errorf("all-day event should be marked:\n%s", got)
	}
}

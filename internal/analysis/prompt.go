package analysis

import (
	"fmt"
	"strings"

	"github.com/prepd/prepd/internal/event"
)

// FamilyMember describes one person in the household for prompt context.
type FamilyMember struct {
	Name  string
	Age   int // 0 = not stated
	Notes string
}

// TimingPreferences carry the household's booking lead times.
type TimingPreferences struct {
	SitterLeadDays     int
	FlightLeadDays     int
	HotelLeadDays      int
	DrivingRadiusMiles int
}

// HouseholdContext is the optional context threaded into every prompt.
// A zero value contributes nothing.
type HouseholdContext struct {
	FamilyMembers []FamilyMember
	HomeLocation  string
	Notes         string
	Timing        TimingPreferences
}

// BuildUserPrompt renders one event plus household context as the user
// message for the model.
func BuildUserPrompt(ev event.CalendarEvent, hh HouseholdContext) string {
	var b strings.Builder

	b.WriteString("Event: ")
	b.WriteString(ev.DisplayTitle())
	b.WriteString("\n")

	b.WriteString("When: ")
	b.WriteString(ev.When())
	b.WriteString("\n")

	if ev.Location != "" {
		b.WriteString("Location: ")
		b.WriteString(ev.Location)
		b.WriteString("\n")
	}

	if ev.Description != "" {
		b.WriteString("Description: ")
		b.WriteString(ev.Description)
		b.WriteString("\n")
	}

	if len(hh.FamilyMembers) > 0 {
		b.WriteString("Family: ")
		b.WriteString(formatFamily(hh.FamilyMembers))
		b.WriteString("\n")
	}

	if hh.HomeLocation != "" {
		b.WriteString("Home location: ")
		b.WriteString(hh.HomeLocation)
		b.WriteString("\n")
	}

	if hh.Notes != "" {
		b.WriteString("Household notes: ")
		b.WriteString(hh.Notes)
		b.WriteString("\n")
	}

	if prefs := formatTiming(hh.Timing); prefs != "" {
		b.WriteString("Planning preferences: ")
		b.WriteString(prefs)
		b.WriteString("\n")
	}

	b.WriteString("\nClassify this event and respond with the JSON object only.")

	return b.String()
}

func formatFamily(members []FamilyMember) string {
	parts := make([]string, 0, len(members))
	for _, m := range members {
		if m.Name == "" {
			continue
		}
		s := m.Name
		var extra []string
		if m.Age > 0 {
			extra = append(extra, fmt.Sprintf("age %d", m.Age))
		}
		if m.Notes != "" {
			extra = append(extra, m.Notes)
		}
		if len(extra) > 0 {
			s += " (" + strings.Join(extra, "; ") + ")"
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, ", ")
}

func formatTiming(t TimingPreferences) string {
	var parts []string
	if t.SitterLeadDays > 0 {
		parts = append(parts, fmt.Sprintf("book sitters %d days ahead", t.SitterLeadDays))
	}
	if t.FlightLeadDays > 0 {
		parts = append(parts, fmt.Sprintf("book flights %d days ahead", t.FlightLeadDays))
	}
	if t.HotelLeadDays > 0 {
		parts = append(parts, fmt.Sprintf("book hotels %d days ahead", t.HotelLeadDays))
	}
	if t.DrivingRadiusMiles > 0 {
		parts = append(parts, fmt.Sprintf("events beyond %d miles need travel arrangements", t.DrivingRadiusMiles))
	}
	return strings.Join(parts, "; ")
}

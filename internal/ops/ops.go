// Package ops implements prepd's operations: the analyze pipeline entry,
// the task board and its status changes, analyzed-event queries, and JSONL
// export/import. Each operation is one file with an XxxInput/XxxOutput pair
// so the CLI, MCP server, and web dashboard share identical semantics.
package ops

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/prepd/prepd/internal/analysis"
	"github.com/prepd/prepd/internal/config"
)

// Pagination limits
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// DefaultTaskWindowDays bounds the task board lookahead when the caller
// names no window.
const DefaultTaskWindowDays = 30

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

// generateULID generates a new ULID.
func generateULID() string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// householdRaw returns the household as provided, trimmed, for storage
// alongside the normalized form. Empty input takes the default household.
func householdRaw(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return analysis.DefaultHousehold
	}
	return s
}

// clampLimit applies the default and upper bound for list limits.
func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}

// HouseholdFromConfig converts configured household settings into the
// prompt context the analysis client consumes.
func HouseholdFromConfig(cfg *config.Config) analysis.HouseholdContext {
	if cfg == nil {
		return analysis.HouseholdContext{}
	}

	hh := analysis.HouseholdContext{
		HomeLocation: cfg.Household.HomeLocation,
		Notes:        cfg.Household.Notes,
		Timing: analysis.TimingPreferences{
			SitterLeadDays:     cfg.Household.Timing.SitterLeadDays,
			FlightLeadDays:     cfg.Household.Timing.FlightLeadDays,
			HotelLeadDays:      cfg.Household.Timing.HotelLeadDays,
			DrivingRadiusMiles: cfg.Household.Timing.DrivingRadiusMiles,
		},
	}
	for _, m := range cfg.Household.FamilyMembers {
		hh.FamilyMembers = append(hh.FamilyMembers, analysis.FamilyMember{
			Name:  m.Name,
			Age:   m.Age,
			Notes: m.Notes,
		})
	}

	return hh
}

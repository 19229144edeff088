package analysis

import (
	"regexp"
	"strings"
)

// DefaultHousehold is used when the caller supplies no household.
const DefaultHousehold = "default"

// whitespaceRegex matches one or more whitespace characters
var whitespaceRegex = regexp.MustCompile(`\s+`)

// NormalizeHousehold normalizes a household identifier:
// 1. Trim leading/trailing whitespace
// 2. Lowercase
// 3. Collapse internal whitespace to single spaces
// An empty result falls back to DefaultHousehold.
func NormalizeHousehold(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ToLower(s)
	s = whitespaceRegex.ReplaceAllString(s, " ")

	if s == "" {
		return DefaultHousehold
	}
	return s
}

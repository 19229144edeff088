package analysis

import (
	"encoding/json"
	"strings"
)

// ExtractJSONObject returns the first balanced JSON object found in text.
// Models are instructed to emit only JSON, but replies often arrive wrapped
// in prose or markdown fences, so the raw payload is never trusted whole.
//
// The scan walks candidate '{' offsets left to right and returns the first
// span that closes at depth zero. Braces inside JSON strings (including
// escaped quotes) do not count toward nesting.
func ExtractJSONObject(text string) (string, bool) {
	offset := 0
	for {
		rel := strings.IndexByte(text[offset:], '{')
		if rel == -1 {
			return "", false
		}
		start := offset + rel

		if end, ok := scanBalanced(text, start); ok {
			return text[start : end+1], true
		}

		// This '{' never closed; a later one may still open a complete object.
		offset = start + 1
	}
}

// scanBalanced scans from an opening brace at start and returns the offset
// of its matching closing brace.
func scanBalanced(text string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(text); i++ {
		c := text[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}

	return 0, false
}

// Parse turns a raw model reply into an EventAnalysis. All parse and
// validation failures are absorbed into the fallback analysis; callers
// always receive a usable result.
func Parse(reply string) EventAnalysis {
	raw, ok := ExtractJSONObject(reply)
	if !ok {
		return Fallback("no JSON object in model reply")
	}

	var a EventAnalysis
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		return Fallback("model reply was not valid JSON")
	}

	if strings.TrimSpace(string(a.EventType)) == "" {
		return Fallback("model reply missing event type")
	}

	a.Coerce()
	return a
}

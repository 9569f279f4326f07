package engine

import (
	"encoding/json"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"aster/internal/engine/ports"
	xerrors "aster/internal/errors"
)

// ParseVerdict extracts a structured goal verdict from free-form model
// text. It scans for the first balanced JSON object containing a goal_met
// key, repairing almost-JSON (trailing commas, single quotes, unquoted
// keys) before giving up. Parsing is pure: the same text always yields the
// same verdict.
func ParseVerdict(text string) (*ports.GoalVerdict, error) {
	for _, candidate := range balancedObjects(text) {
		if v, ok := decodeVerdict(candidate); ok {
			return v, nil
		}
		repaired, err := jsonrepair.JSONRepair(candidate)
		if err != nil {
			continue
		}
		if v, ok := decodeVerdict(repaired); ok {
			return v, nil
		}
	}
	return nil, &xerrors.UnparseableVerdictError{Text: text}
}

func decodeVerdict(candidate string) (*ports.GoalVerdict, bool) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(candidate), &probe); err != nil {
		return nil, false
	}
	if _, present := probe["goal_met"]; !present {
		return nil, false
	}
	var v ports.GoalVerdict
	if err := json.Unmarshal([]byte(candidate), &v); err != nil {
		return nil, false
	}
	return &v, true
}

// balancedObjects returns every top-level {...} span in the text, in
// order. Braces inside JSON strings are skipped.
func balancedObjects(text string) []string {
	var spans []string
	depth := 0
	start := -1
	inString := false
	escaped := false

	for i, r := range text {
		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
			continue
		}
		switch r {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 && start >= 0 {
					spans = append(spans, strings.TrimSpace(text[start:i+1]))
					start = -1
				}
			}
		}
	}
	return spans
}

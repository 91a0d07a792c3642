package tool

import (
	"encoding/json"
	"strings"
)

// RepairAndParse implements the robust argument-parsing algorithm of
// spec.md §4.7: strip whitespace and a surrounding markdown fence, try a
// raw parse, and on failure retry a fixed sequence of suffix repairs
// against streamed/truncated LLM tool-call argument JSON. Empty input
// parses as the empty object.
func RepairAndParse(raw string, v any) error {
	s := strings.TrimSpace(raw)
	s = stripFence(s)

	if s == "" {
		s = "{}"
	}

	if err := json.Unmarshal([]byte(s), v); err == nil {
		return nil
	} else {
		firstErr := err
		for _, repaired := range repairCandidates(s) {
			if err := json.Unmarshal([]byte(repaired), v); err == nil {
				return nil
			}
		}
		return firstErr
	}
}

// repairCandidates returns the five suffix-repair variants tried, in order,
// when a raw parse fails (spec.md §4.7).
func repairCandidates(s string) []string {
	return []string{
		s + "\"",
		s + "\"}",
		s + "}",
		s + "\"]",
		s + "]",
	}
}

// stripFence removes a single leading ``` fence line and a single trailing
// ``` fence line, when both are present, leaving the inner content intact.
func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	if len(lines) < 2 {
		return s
	}
	last := len(lines) - 1
	for last > 0 && strings.TrimSpace(lines[last]) == "" {
		last--
	}
	if strings.TrimSpace(lines[last]) != "```" {
		return s
	}
	inner := lines[1:last]
	return strings.TrimSpace(strings.Join(inner, "\n"))
}

package builtin

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pocketomega/agentrt/internal/util"
)

const (
	// searchDescMaxRunes is the maximum number of runes to show per result description.
	searchDescMaxRunes = 300
	// searchQueryMaxRunes is the maximum length of a search query string.
	// Prevents abnormally large HTTP requests from being sent to search APIs.
	searchQueryMaxRunes = 1000
)

// searchResult is a single result entry shared between search tools.
type searchResult struct {
	Title       string
	URL         string
	Description string
}

// truncateRunes truncates s to at most maxRunes Unicode code points.
func truncateRunes(s string, maxRunes int) string {
	return util.TruncateRunes(s, maxRunes)
}

// parseSearchQuery parses a JSON args blob and returns the trimmed query string.
// Returns an error if the JSON is malformed, the query is empty/whitespace,
// or the query exceeds searchQueryMaxRunes characters.
func parseSearchQuery(args json.RawMessage) (string, error) {
	var a struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(args, &a); err != nil {
		return "", fmt.Errorf("bad arguments: %v", err)
	}
	q := strings.TrimSpace(a.Query)
	if q == "" {
		return "", fmt.Errorf("query must not be empty")
	}
	if len([]rune(q)) > searchQueryMaxRunes {
		return "", fmt.Errorf("query too long (max %d characters)", searchQueryMaxRunes)
	}
	return q, nil
}

// formatSearchResults formats a slice of searchResult into a human-readable string.
func formatSearchResults(results []searchResult) string {
	if len(results) == 0 {
		return "no results found"
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("found %d results:\n\n", len(results)))
	for i, r := range results {
		desc := util.TruncateRunes(r.Description, searchDescMaxRunes)
		sb.WriteString(fmt.Sprintf("[%d] %s\n    %s\n    %s\n\n", i+1, r.Title, r.URL, desc))
	}
	return sb.String()
}

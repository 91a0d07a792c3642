package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pocketomega/agentrt/internal/tool"
)

const (
	braveAPIURL      = "https://api.search.brave.com/res/v1/web/search"
	braveMaxResults  = 5
	braveHTTPTimeout = 15 * time.Second
	braveMaxBody     = 5 << 20 // 5MB success response limit
	braveErrMaxBody  = 1 << 20 // 1MB error response limit
	braveErrBodyShow = 200     // max chars of error body shown to caller
)

// braveResponse is the Brave Search API response (simplified).
type braveResponse struct {
	Web struct {
		Results []braveResult `json:"results"`
	} `json:"web"`
}

type braveResult struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

// NewBraveSearchTool returns the web search tool backed by the Brave Search API.
func NewBraveSearchTool(apiKey string) tool.Tool {
	return newBraveSearchTool(apiKey, braveAPIURL, &http.Client{})
}

// newBraveSearchTool builds the tool with an injectable base URL and HTTP
// client so tests can point it at an httptest.Server instead of the live API.
func newBraveSearchTool(apiKey, baseURL string, client *http.Client) tool.Tool {
	schema := tool.BuildSchema(
		tool.SchemaParam{Name: "query", Type: "string", Description: "Search query", Required: true},
	)
	return tool.NewNative("brave_search", "Searches the web using the Brave Search engine", schema,
		func(ctx context.Context, _ *tool.ToolContext, args json.RawMessage) (tool.ToolResult, error) {
			if apiKey == "" {
				return tool.ToolResult{Output: "brave API key not configured"}, nil
			}

			query, err := parseSearchQuery(args)
			if err != nil {
				return tool.ToolResult{Output: err.Error()}, nil
			}

			// Build request URL using url.Parse to handle any existing query parameters
			// in baseURL safely (avoids double-? if baseURL already contains a query string).
			u, err := url.Parse(baseURL)
			if err != nil {
				return tool.ToolResult{Output: fmt.Sprintf("invalid request URL: %v", err)}, nil
			}
			q := u.Query()
			q.Set("q", query)
			q.Set("count", fmt.Sprintf("%d", braveMaxResults))
			u.RawQuery = q.Encode()
			requestURL := u.String()

			// Single timeout via context so the caller's deadline is always respected.
			httpCtx, cancel := context.WithTimeout(ctx, braveHTTPTimeout)
			defer cancel()

			req, err := http.NewRequestWithContext(httpCtx, http.MethodGet, requestURL, nil)
			if err != nil {
				return tool.ToolResult{Output: fmt.Sprintf("failed to build request: %v", err)}, nil
			}
			req.Header.Set("Accept", "application/json")
			// API key is sent via header (not body) per Brave's API design.
			req.Header.Set("X-Subscription-Token", apiKey)

			resp, err := client.Do(req)
			if err != nil {
				return tool.ToolResult{Output: fmt.Sprintf("search request failed: %v", err)}, nil
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				// LimitReader prevents OOM from unexpectedly large error bodies;
				// further truncated before returning to avoid exposing internal details.
				body, _ := io.ReadAll(io.LimitReader(resp.Body, braveErrMaxBody))
				bodyStr := truncateRunes(strings.TrimSpace(string(body)), braveErrBodyShow)
				return tool.ToolResult{Output: fmt.Sprintf("brave API error (HTTP %d): %s",
					resp.StatusCode, bodyStr)}, nil
			}

			// Decode with LimitReader to prevent OOM from unbounded success response bodies.
			var braveResp braveResponse
			if err := json.NewDecoder(io.LimitReader(resp.Body, braveMaxBody)).Decode(&braveResp); err != nil {
				return tool.ToolResult{Output: fmt.Sprintf("failed to parse response: %v", err)}, nil
			}

			results := make([]searchResult, len(braveResp.Web.Results))
			for i, r := range braveResp.Web.Results {
				results[i] = searchResult{Title: r.Title, URL: r.URL, Description: r.Description}
			}

			return tool.ToolResult{Success: true, Output: formatSearchResults(results)}, nil
		})
}

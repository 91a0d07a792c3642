package builtin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pocketomega/agentrt/internal/tool"
)

const (
	tavilyAPIURL      = "https://api.tavily.com/search"
	tavilyMaxResults  = 5
	tavilyHTTPTimeout = 15 * time.Second
	tavilyMaxBody     = 5 << 20 // 5MB success response limit
	tavilyErrMaxBody  = 1 << 20 // 1MB error response limit
	tavilyErrBodyShow = 200     // max chars of error body shown to caller
)

// tavilyRequest is the Tavily API request body.
type tavilyRequest struct {
	APIKey     string `json:"api_key"`
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

// String returns a log-safe representation with the API key masked,
// preventing accidental key exposure in fmt.Print / log output.
func (r tavilyRequest) String() string {
	return fmt.Sprintf("tavilyRequest{Query: %q, MaxResults: %d}", r.Query, r.MaxResults)
}

// tavilyResponse is the Tavily API response.
type tavilyResponse struct {
	Results []tavilyResult `json:"results"`
	Answer  string         `json:"answer,omitempty"`
}

type tavilyResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

// NewTavilySearchTool returns the web search tool backed by the Tavily API.
func NewTavilySearchTool(apiKey string) tool.Tool {
	return newTavilySearchTool(apiKey, tavilyAPIURL, &http.Client{})
}

// newTavilySearchTool builds the tool with an injectable base URL and HTTP
// client so tests can point it at an httptest.Server instead of the live API.
func newTavilySearchTool(apiKey, baseURL string, client *http.Client) tool.Tool {
	schema := tool.BuildSchema(
		tool.SchemaParam{Name: "query", Type: "string", Description: "Search query", Required: true},
	)
	return tool.NewNative("web_search", "Searches the web for information: real-time news, technical documentation, fact lookups, and similar queries", schema,
		func(ctx context.Context, _ *tool.ToolContext, args json.RawMessage) (tool.ToolResult, error) {
			if apiKey == "" {
				return tool.ToolResult{Output: "tavily API key not configured"}, nil
			}

			query, err := parseSearchQuery(args)
			if err != nil {
				return tool.ToolResult{Output: err.Error()}, nil
			}

			// Build request body (API key goes in body per Tavily's API design).
			reqBody := tavilyRequest{
				APIKey:     apiKey,
				Query:      query,
				MaxResults: tavilyMaxResults,
			}
			// SECURITY: bodyBytes contains the plaintext API key.
			// Do NOT log or expose bodyBytes in error messages or debug output.
			bodyBytes, err := json.Marshal(reqBody)
			if err != nil {
				return tool.ToolResult{Output: fmt.Sprintf("failed to build request: %v", err)}, nil
			}

			// Single timeout via context so the caller's deadline is always respected.
			httpCtx, cancel := context.WithTimeout(ctx, tavilyHTTPTimeout)
			defer cancel()

			req, err := http.NewRequestWithContext(httpCtx, http.MethodPost, baseURL, bytes.NewReader(bodyBytes))
			if err != nil {
				return tool.ToolResult{Output: fmt.Sprintf("failed to create request: %v", err)}, nil
			}
			req.Header.Set("Content-Type", "application/json")

			resp, err := client.Do(req)
			if err != nil {
				return tool.ToolResult{Output: fmt.Sprintf("search request failed: %v", err)}, nil
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				// LimitReader prevents OOM from unexpectedly large error bodies;
				// further truncated before returning to avoid exposing internal details.
				body, _ := io.ReadAll(io.LimitReader(resp.Body, tavilyErrMaxBody))
				bodyStr := truncateRunes(strings.TrimSpace(string(body)), tavilyErrBodyShow)
				return tool.ToolResult{Output: fmt.Sprintf("tavily API error (HTTP %d): %s",
					resp.StatusCode, bodyStr)}, nil
			}

			// Decode with LimitReader to prevent OOM from unbounded success response bodies.
			var tavilyResp tavilyResponse
			if err := json.NewDecoder(io.LimitReader(resp.Body, tavilyMaxBody)).Decode(&tavilyResp); err != nil {
				return tool.ToolResult{Output: fmt.Sprintf("failed to parse response: %v", err)}, nil
			}

			var sb strings.Builder
			if tavilyResp.Answer != "" {
				sb.WriteString(fmt.Sprintf("Summary: %s\n\n", tavilyResp.Answer))
			}

			results := make([]searchResult, len(tavilyResp.Results))
			for i, r := range tavilyResp.Results {
				results[i] = searchResult{Title: r.Title, URL: r.URL, Description: r.Content}
			}
			sb.WriteString(formatSearchResults(results))

			return tool.ToolResult{Success: true, Output: sb.String()}, nil
		})
}

package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pocketomega/agentrt/internal/tool"
)

// newTestBrave builds the brave_search tool pointed at a mock server.
func newTestBrave(server *httptest.Server) tool.Tool {
	return newBraveSearchTool("test-brave-key", server.URL, server.Client())
}

func TestBraveSearchTool_EmptyKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("should not make HTTP request with no API key")
	}))
	defer server.Close()

	tl := newBraveSearchTool("", server.URL, server.Client())
	result := execTool(t, tl, "", map[string]string{"query": "test"})
	if result.Success {
		t.Error("expected failure with empty API key")
	}
	if !strings.Contains(result.Output, "not configured") {
		t.Errorf("output %q should mention missing key", result.Output)
	}
}

func TestBraveSearchTool_EmptyQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("should not make HTTP request for empty query")
	}))
	defer server.Close()

	tl := newTestBrave(server)
	result := execTool(t, tl, "", map[string]string{"query": ""})
	if result.Success {
		t.Error("expected error for empty query")
	}
}

func TestBraveSearchTool_BadJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("should not make HTTP request for bad JSON")
	}))
	defer server.Close()

	tl := newTestBrave(server)
	result, err := tl.Execute(context.Background(), &tool.ToolContext{}, []byte(`not json`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success {
		t.Error("expected failure for invalid JSON")
	}
	if !strings.Contains(result.Output, "bad arguments") {
		t.Errorf("output %q should mention parse failure", result.Output)
	}
}

func TestBraveSearchTool_Success(t *testing.T) {
	response := braveResponse{}
	response.Web.Results = []braveResult{
		{Title: "Brave Search", URL: "https://brave.com", Description: "Privacy-first search engine"},
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Subscription-Token") != "test-brave-key" {
			t.Errorf("X-Subscription-Token = %q, want %q",
				r.Header.Get("X-Subscription-Token"), "test-brave-key")
		}
		if r.Header.Get("Accept") != "application/json" {
			t.Errorf("Accept = %q, want application/json", r.Header.Get("Accept"))
		}
		if r.URL.Query().Get("q") == "" {
			t.Error("expected non-empty 'q' query parameter")
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	tl := newTestBrave(server)
	result := execTool(t, tl, "", map[string]string{"query": "brave"})
	if !result.Success {
		t.Errorf("unexpected failure: %+v", result)
	}
	if !strings.Contains(result.Output, "Brave Search") {
		t.Errorf("output %q should contain result title", result.Output)
	}
	if !strings.Contains(result.Output, "https://brave.com") {
		t.Errorf("output %q should contain result URL", result.Output)
	}
}

func TestBraveSearchTool_EmptyResults(t *testing.T) {
	response := braveResponse{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	tl := newTestBrave(server)
	result := execTool(t, tl, "", map[string]string{"query": "xyzxyz123"})
	if !result.Success {
		t.Errorf("unexpected failure: %+v", result)
	}
	if !strings.Contains(result.Output, "no results") {
		t.Errorf("output %q should mention no results", result.Output)
	}
}

func TestBraveSearchTool_NonOKStatus(t *testing.T) {
	tests := []struct {
		name string
		code int
	}{
		{"401 Unauthorized", http.StatusUnauthorized},
		{"429 Too Many Requests", http.StatusTooManyRequests},
		{"500 Internal Server Error", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.code)
				fmt.Fprintln(w, "error body")
			}))
			defer server.Close()

			tl := newTestBrave(server)
			result := execTool(t, tl, "", map[string]string{"query": "test"})
			if result.Success {
				t.Errorf("expected failure for HTTP %d", tt.code)
			}
			if !strings.Contains(result.Output, fmt.Sprintf("%d", tt.code)) {
				t.Errorf("output %q should contain status code %d", result.Output, tt.code)
			}
		})
	}
}

func TestBraveSearchTool_InvalidJSONResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintln(w, "not valid json at all")
	}))
	defer server.Close()

	tl := newTestBrave(server)
	result := execTool(t, tl, "", map[string]string{"query": "test"})
	if result.Success {
		t.Error("expected failure for invalid JSON response")
	}
	if !strings.Contains(result.Output, "failed to parse") {
		t.Errorf("output %q should mention parse failure", result.Output)
	}
}

// TestBraveSearchTool_QueryEncoding verifies that the query string is correctly
// URL-encoded in the GET request parameters.
func TestBraveSearchTool_QueryEncoding(t *testing.T) {
	var receivedQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedQuery = r.URL.Query().Get("q")
		response := braveResponse{}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	tl := newTestBrave(server)
	execTool(t, tl, "", map[string]string{"query": "golang url encoding test"})
	if receivedQuery != "golang url encoding test" {
		t.Errorf("received query %q, want %q", receivedQuery, "golang url encoding test")
	}
}

// TestBraveSearchTool_ContentTruncation verifies that long result descriptions
// are truncated to searchDescMaxRunes in the formatted output.
func TestBraveSearchTool_ContentTruncation(t *testing.T) {
	longDesc := strings.Repeat("y", 400) // exceeds searchDescMaxRunes (300)
	response := braveResponse{}
	response.Web.Results = []braveResult{
		{Title: "Title", URL: "https://go.dev", Description: longDesc},
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	tl := newTestBrave(server)
	result := execTool(t, tl, "", map[string]string{"query": "test"})
	if !result.Success {
		t.Errorf("unexpected failure: %+v", result)
	}
	if !strings.Contains(result.Output, "...") {
		t.Error("long description should be truncated with '...'")
	}
	if strings.Count(result.Output, "y") > searchDescMaxRunes {
		t.Errorf("description not truncated to %d runes", searchDescMaxRunes)
	}
}

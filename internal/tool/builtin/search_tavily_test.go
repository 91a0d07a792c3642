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

// newTestTavily builds the web_search tool pointed at a mock server.
func newTestTavily(server *httptest.Server) tool.Tool {
	return newTavilySearchTool("test-key", server.URL, server.Client())
}

func TestTavilySearchTool_EmptyKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("should not make HTTP request with no API key")
	}))
	defer server.Close()

	tl := newTavilySearchTool("", server.URL, server.Client())
	result := execTool(t, tl, "", map[string]string{"query": "test"})
	if result.Success {
		t.Error("expected failure with empty API key")
	}
	if !strings.Contains(result.Output, "not configured") {
		t.Errorf("output %q should mention missing key", result.Output)
	}
}

func TestTavilySearchTool_EmptyQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("should not make HTTP request for empty query")
	}))
	defer server.Close()

	tl := newTestTavily(server)
	result := execTool(t, tl, "", map[string]string{"query": ""})
	if result.Success {
		t.Error("expected error for empty query")
	}
}

func TestTavilySearchTool_BadJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("should not make HTTP request for bad JSON")
	}))
	defer server.Close()

	tl := newTestTavily(server)
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

func TestTavilySearchTool_Success(t *testing.T) {
	response := tavilyResponse{
		Results: []tavilyResult{
			{Title: "Go Language", URL: "https://golang.org", Content: "Go is a programming language"},
		},
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Content-Type = %q, want application/json", r.Header.Get("Content-Type"))
		}
		var body tavilyRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		if body.APIKey != "test-key" {
			t.Errorf("APIKey in body = %q, want %q", body.APIKey, "test-key")
		}
		if body.Query != "golang" {
			t.Errorf("Query in body = %q, want %q", body.Query, "golang")
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	tl := newTestTavily(server)
	result := execTool(t, tl, "", map[string]string{"query": "golang"})
	if !result.Success {
		t.Errorf("unexpected failure: %+v", result)
	}
	if !strings.Contains(result.Output, "Go Language") {
		t.Errorf("output %q should contain result title", result.Output)
	}
	if !strings.Contains(result.Output, "https://golang.org") {
		t.Errorf("output %q should contain result URL", result.Output)
	}
}

func TestTavilySearchTool_WithAnswer(t *testing.T) {
	response := tavilyResponse{
		Answer:  "Go was created at Google",
		Results: []tavilyResult{{Title: "Go", URL: "https://golang.org", Content: "details"}},
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	tl := newTestTavily(server)
	result := execTool(t, tl, "", map[string]string{"query": "golang"})
	if !result.Success {
		t.Errorf("unexpected failure: %+v", result)
	}
	if !strings.Contains(result.Output, "Summary") {
		t.Errorf("output %q should contain answer summary label", result.Output)
	}
	if !strings.Contains(result.Output, "Go was created at Google") {
		t.Errorf("output %q should contain answer text", result.Output)
	}
}

func TestTavilySearchTool_EmptyResults(t *testing.T) {
	response := tavilyResponse{Results: []tavilyResult{}}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	tl := newTestTavily(server)
	result := execTool(t, tl, "", map[string]string{"query": "xyzxyz123"})
	if !result.Success {
		t.Errorf("unexpected failure: %+v", result)
	}
	if !strings.Contains(result.Output, "no results") {
		t.Errorf("output %q should mention no results", result.Output)
	}
}

func TestTavilySearchTool_NonOKStatus(t *testing.T) {
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

			tl := newTestTavily(server)
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

func TestTavilySearchTool_InvalidJSONResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintln(w, "not valid json at all")
	}))
	defer server.Close()

	tl := newTestTavily(server)
	result := execTool(t, tl, "", map[string]string{"query": "test"})
	if result.Success {
		t.Error("expected failure for invalid JSON response")
	}
	if !strings.Contains(result.Output, "failed to parse") {
		t.Errorf("output %q should mention parse failure", result.Output)
	}
}

// TestTavilySearchTool_ContentTruncation verifies that long result content is
// truncated to searchDescMaxRunes in the formatted output.
func TestTavilySearchTool_ContentTruncation(t *testing.T) {
	// Use a character that does not appear in any format string or URL so that
	// strings.Count gives an exact measure of the content portion only.
	longContent := strings.Repeat("喵", 400) // exceeds searchDescMaxRunes (300)
	response := tavilyResponse{
		Results: []tavilyResult{
			{Title: "Title", URL: "https://go.dev", Content: longContent},
		},
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	tl := newTestTavily(server)
	result := execTool(t, tl, "", map[string]string{"query": "test"})
	if !result.Success {
		t.Errorf("unexpected failure: %+v", result)
	}
	if !strings.Contains(result.Output, "...") {
		t.Error("long content should be truncated with '...'")
	}
	if strings.Count(result.Output, "喵") > searchDescMaxRunes {
		t.Errorf("content not truncated to %d runes", searchDescMaxRunes)
	}
}

// TestTavilyRequest_String_MasksAPIKey verifies the API key does not appear
// in the String() output, preventing accidental log exposure.
func TestTavilyRequest_String_MasksAPIKey(t *testing.T) {
	req := tavilyRequest{
		APIKey:     "secret-key-12345",
		Query:      "golang",
		MaxResults: 5,
	}
	s := req.String()
	if strings.Contains(s, "secret-key-12345") {
		t.Errorf("String() %q must not expose API key", s)
	}
	if !strings.Contains(s, "golang") {
		t.Errorf("String() %q should contain query", s)
	}
	if !strings.Contains(s, "5") {
		t.Errorf("String() %q should contain MaxResults", s)
	}
}

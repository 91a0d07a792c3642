package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/pocketomega/agentrt/internal/tool"
)

// The browser_* tools stand in for the out-of-scope browser-automation
// collaborator (spec.md §9): ToolContext.Browser is a scoped resource a
// launch call acquires and a close call releases, at most one per runtime.
// Pages are fetched and text-extracted the same way web_reader does rather
// than rendered by a real browser engine.

type browserLaunchArgs struct {
	URL string `json:"url"`
}

// NewBrowserLaunchTool returns the tool that opens a browser session on a
// URL, fetching and extracting its content up front.
func NewBrowserLaunchTool() tool.Tool {
	schema := tool.BuildSchema(
		tool.SchemaParam{Name: "url", Type: "string", Description: "URL to open (must start with http:// or https://)", Required: true},
	)
	return tool.NewNative("browser_launch", "Launches a browser session at the given URL", schema,
		func(ctx context.Context, tc *tool.ToolContext, args json.RawMessage) (tool.ToolResult, error) {
			var a browserLaunchArgs
			if err := json.Unmarshal(args, &a); err != nil {
				return tool.ToolResult{Output: fmt.Sprintf("bad arguments: %v", err)}, nil
			}
			if tc.Browser != nil && !tc.Browser.Closed {
				return tool.ToolResult{Output: "a browser session is already open; close it first"}, nil
			}
			session, result := fetchIntoSession(ctx, a.URL)
			tc.Browser = session
			return result, nil
		})
}

type browserNavigateArgs struct {
	URL string `json:"url"`
}

// NewBrowserNavigateTool returns the tool that moves an open session to a
// new URL, replacing its content.
func NewBrowserNavigateTool() tool.Tool {
	schema := tool.BuildSchema(
		tool.SchemaParam{Name: "url", Type: "string", Description: "URL to navigate to", Required: true},
	)
	return tool.NewNative("browser_navigate", "Navigates the open browser session to a new URL", schema,
		func(ctx context.Context, tc *tool.ToolContext, args json.RawMessage) (tool.ToolResult, error) {
			var a browserNavigateArgs
			if err := json.Unmarshal(args, &a); err != nil {
				return tool.ToolResult{Output: fmt.Sprintf("bad arguments: %v", err)}, nil
			}
			if tc.Browser == nil || tc.Browser.Closed {
				return tool.ToolResult{Output: "no browser session is open; call browser_launch first"}, nil
			}
			session, result := fetchIntoSession(ctx, a.URL)
			tc.Browser = session
			return result, nil
		})
}

// NewBrowserReadTool returns the tool that returns the open session's
// currently loaded content without re-fetching.
func NewBrowserReadTool() tool.Tool {
	return tool.NewNative("browser_read", "Returns the currently loaded page content of the open browser session", tool.BuildSchema(),
		func(_ context.Context, tc *tool.ToolContext, _ json.RawMessage) (tool.ToolResult, error) {
			if tc.Browser == nil || tc.Browser.Closed {
				return tool.ToolResult{Output: "no browser session is open; call browser_launch first"}, nil
			}
			return tool.ToolResult{Success: true, Output: tc.Browser.Content}, nil
		})
}

// NewBrowserCloseTool returns the tool that releases the open session.
func NewBrowserCloseTool() tool.Tool {
	return tool.NewNative("browser_close", "Closes the open browser session", tool.BuildSchema(),
		func(_ context.Context, tc *tool.ToolContext, _ json.RawMessage) (tool.ToolResult, error) {
			if tc.Browser == nil || tc.Browser.Closed {
				return tool.ToolResult{Output: "no browser session is open"}, nil
			}
			tc.Browser.Closed = true
			return tool.ToolResult{Success: true, Output: "browser session closed"}, nil
		})
}

// fetchIntoSession fetches url and returns a populated *tool.BrowserSession
// alongside the ToolResult describing the outcome. On failure it still
// returns a session (so the handle isn't silently dropped) with Content set
// to the error text, matching web_reader's "never error the tool call,
// report failure in Output" convention.
func fetchIntoSession(ctx context.Context, url string) (*tool.BrowserSession, tool.ToolResult) {
	url = strings.TrimSpace(url)
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		msg := "URL must start with http:// or https://"
		return &tool.BrowserSession{URL: url, Content: msg}, tool.ToolResult{Output: msg}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		msg := fmt.Sprintf("failed to create request: %v", err)
		return &tool.BrowserSession{URL: url, Content: msg}, tool.ToolResult{Output: msg}
	}
	req.Header.Set("User-Agent", webReaderUserAgent)

	resp, err := webReaderHTTPClient.Do(req)
	if err != nil {
		msg := fmt.Sprintf("request failed: %v", err)
		return &tool.BrowserSession{URL: url, Content: msg}, tool.ToolResult{Output: msg}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg := fmt.Sprintf("HTTP %d: %s", resp.StatusCode, resp.Status)
		return &tool.BrowserSession{URL: url, Content: msg}, tool.ToolResult{Output: msg}
	}

	title, _, content, err := extractContent(resp.Body)
	if err != nil {
		msg := fmt.Sprintf("failed to parse page: %v", err)
		return &tool.BrowserSession{URL: url, Content: msg}, tool.ToolResult{Output: msg}
	}
	content = truncateContent(content)

	session := &tool.BrowserSession{URL: url, Content: content}
	output := content
	if title != "" {
		output = title + "\n\n" + content
	}
	return session, tool.ToolResult{Success: true, Output: output}
}

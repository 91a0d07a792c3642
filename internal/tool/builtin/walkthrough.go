package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"github.com/pocketomega/agentrt/internal/tool"
	"github.com/pocketomega/agentrt/internal/walkthrough"
)

const maxContentRunes = 200

type walkthroughArgs struct {
	Operation string `json:"operation"`
	Content   string `json:"content"`
}

// NewWalkthroughTool returns the walkthrough tool: record or view pinned
// execution notes for a session. Entries recorded here survive the
// automatic FIFO eviction applied to tool-output notes.
func NewWalkthroughTool(store *walkthrough.Store, sessionID string) tool.Tool {
	schema := tool.BuildSchema(
		tool.SchemaParam{Name: "operation", Type: "string", Description: "add: record a key finding; list: view current notes", Required: true},
		tool.SchemaParam{Name: "content", Type: "string", Description: "Note content (required for add, max 200 characters)"},
	)
	return tool.NewNative("walkthrough", "Records or lists pinned execution notes for this session", schema,
		func(_ context.Context, _ *tool.ToolContext, args json.RawMessage) (tool.ToolResult, error) {
			var a walkthroughArgs
			if err := json.Unmarshal(args, &a); err != nil {
				return tool.ToolResult{Output: fmt.Sprintf("bad arguments: %v", err)}, nil
			}

			switch a.Operation {
			case "add":
				if a.Content == "" {
					return tool.ToolResult{Output: "add requires non-empty content"}, nil
				}
				content := a.Content
				if utf8.RuneCountInString(content) > maxContentRunes {
					runes := []rune(content)
					content = string(runes[:maxContentRunes]) + "..."
				}
				store.Append(sessionID, walkthrough.Entry{
					Source:  walkthrough.SourceManual,
					Content: content,
				})
				return tool.ToolResult{Success: true, Output: "noted"}, nil

			case "list":
				rendered := store.Render(sessionID)
				if rendered == "" {
					return tool.ToolResult{Success: true, Output: "no notes recorded"}, nil
				}
				return tool.ToolResult{Success: true, Output: rendered}, nil

			default:
				return tool.ToolResult{Output: fmt.Sprintf("unknown operation %q; supported: add/list", a.Operation)}, nil
			}
		})
}

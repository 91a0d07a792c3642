package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pocketomega/agentrt/internal/tool"
)

type timeArgs struct {
	Timezone string `json:"timezone"`
}

// NewTimeTool returns the get_time tool: the current time, optionally in a
// given IANA timezone.
func NewTimeTool() tool.Tool {
	schema := tool.BuildSchema(
		tool.SchemaParam{Name: "timezone", Type: "string", Description: "IANA timezone name, e.g. America/New_York (optional)"},
	)
	return tool.NewNative("get_time", "Returns the current date and time, optionally in a given timezone", schema,
		func(_ context.Context, _ *tool.ToolContext, args json.RawMessage) (tool.ToolResult, error) {
			var a timeArgs
			if len(args) > 0 {
				if err := json.Unmarshal(args, &a); err != nil {
					return tool.ToolResult{Output: fmt.Sprintf("bad arguments: %v", err)}, nil
				}
			}

			now := time.Now()
			if a.Timezone != "" {
				loc, err := time.LoadLocation(a.Timezone)
				if err != nil {
					return tool.ToolResult{Output: fmt.Sprintf("invalid timezone %q: %v", a.Timezone, err)}, nil
				}
				now = now.In(loc)
			}

			output := fmt.Sprintf("%s (%s)", now.Format("2006-01-02 15:04:05 MST"), now.Weekday())
			return tool.ToolResult{Success: true, Output: output}, nil
		})
}

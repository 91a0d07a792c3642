package builtin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pocketomega/agentrt/internal/tool"
)

type switchModeArgs struct {
	Mode   string `json:"mode"`
	Reason string `json:"reason"`
}

// NewSwitchModeTool returns the tool that changes ToolContext.Mode, the
// free-form mode tag spec.md's ToolContext names but leaves the transition
// mechanism unspecified.
func NewSwitchModeTool() tool.Tool {
	schema := tool.BuildSchema(
		tool.SchemaParam{Name: "mode", Type: "string", Description: "The mode to switch to (e.g. code, architect, ask)", Required: true},
		tool.SchemaParam{Name: "reason", Type: "string", Description: "Why this mode switch is needed"},
	)
	return tool.NewNative("switch_mode", "Switches the agent's current mode tag", schema,
		func(_ context.Context, tc *tool.ToolContext, args json.RawMessage) (tool.ToolResult, error) {
			var a switchModeArgs
			if err := json.Unmarshal(args, &a); err != nil {
				return tool.ToolResult{Output: fmt.Sprintf("bad arguments: %v", err)}, nil
			}
			if a.Mode == "" {
				return tool.ToolResult{Output: "mode must not be empty"}, nil
			}
			prev := tc.Mode
			tc.Mode = a.Mode
			out := fmt.Sprintf("switched mode: %s -> %s", prev, a.Mode)
			if a.Reason != "" {
				out += " (" + a.Reason + ")"
			}
			return tool.ToolResult{Success: true, Output: out,
				Data: map[string]any{"action": "mode_switched", "previous_mode": prev, "mode": a.Mode}}, nil
		})
}

type newTaskArgs struct {
	Mode    string `json:"mode"`
	Message string `json:"message"`
}

// NewNewTaskTool returns the tool that seeds a fresh task within the current
// runtime: it re-tags the mode and replaces the todo tree with a single
// root item describing the new task. It never spawns a second runtime —
// spec.md has no multi-session-forking concept, so this stays a
// single-runtime mode/todo reset rather than a clustering primitive.
func NewNewTaskTool() tool.Tool {
	schema := tool.BuildSchema(
		tool.SchemaParam{Name: "mode", Type: "string", Description: "Mode to start the new task in", Required: true},
		tool.SchemaParam{Name: "message", Type: "string", Description: "Description of the new task", Required: true},
	)
	return tool.NewNative("new_task", "Starts a new task within the current session, seeding its mode and todo list", schema,
		func(_ context.Context, tc *tool.ToolContext, args json.RawMessage) (tool.ToolResult, error) {
			var a newTaskArgs
			if err := json.Unmarshal(args, &a); err != nil {
				return tool.ToolResult{Output: fmt.Sprintf("bad arguments: %v", err)}, nil
			}
			if a.Mode == "" || a.Message == "" {
				return tool.ToolResult{Output: "mode and message must not be empty"}, nil
			}
			tc.Mode = a.Mode
			tc.Todos = []*tool.Todo{{ID: "root", Title: a.Message, Status: tool.TodoInProgress}}
			return tool.ToolResult{Success: true, Output: fmt.Sprintf("started new task in mode %q: %s", a.Mode, a.Message),
				Data: map[string]any{"action": "new_task", "mode": a.Mode}}, nil
		})
}

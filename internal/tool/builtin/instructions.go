package builtin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pocketomega/agentrt/internal/tool"
)

// fetchableInstructions holds the two fixed built-in instruction sets
// fetch_instructions can return, matching the original Python prototype's
// agent_tools/interaction.py task identifiers exactly.
var fetchableInstructions = map[string]string{
	"create_mcp_server": `To create an MCP server:
1. Choose stdio or HTTP transport.
2. Implement the JSON-RPC 2.0 methods: initialize, tools/list, tools/call.
3. Register the server in mcp.json with its command/args (stdio) or url (HTTP).
4. Reload the MCP manager with mcp_reload to pick it up.`,
	"create_mode": `To create a mode:
1. Pick a short lowercase identifier (e.g. "review", "debug").
2. Describe the mode's role and constraints in a sentence or two.
3. Switch to it with switch_mode; the agent's behavior is driven by the
   system prompt and its own judgment under that mode tag, not a config file.`,
}

type fetchInstructionsArgs struct {
	Task string `json:"task"`
}

// NewFetchInstructionsTool returns a tool that hands back static built-in
// instructions for a fixed set of task identifiers. Included as the
// registry's plain synchronous-handler exemplar: no I/O, no ToolContext
// mutation, unlike the file, shell and network tools in this package.
func NewFetchInstructionsTool() tool.Tool {
	schema := tool.BuildSchema(
		tool.SchemaParam{Name: "task", Type: "string", Description: "Which built-in instructions to fetch",
			Required: true, Enum: []string{"create_mcp_server", "create_mode"}},
	)
	return tool.NewNative("fetch_instructions", "Returns built-in instructions for a fixed set of task identifiers", schema,
		func(_ context.Context, _ *tool.ToolContext, args json.RawMessage) (tool.ToolResult, error) {
			var a fetchInstructionsArgs
			if err := json.Unmarshal(args, &a); err != nil {
				return tool.ToolResult{Output: fmt.Sprintf("bad arguments: %v", err)}, nil
			}
			instructions, ok := fetchableInstructions[a.Task]
			if !ok {
				return tool.ToolResult{Output: fmt.Sprintf("no instructions for task %q", a.Task)}, nil
			}
			return tool.ToolResult{Success: true, Output: instructions}, nil
		})
}

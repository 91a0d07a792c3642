package builtin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pocketomega/agentrt/internal/tool"
)

type attemptCompletionArgs struct {
	Result string `json:"result"`
}

// NewAttemptCompletionTool returns the distinguished completion tool
// (agent.CompletionTool): its success ends the current turn regardless of
// any further tool calls the assistant declared alongside it.
func NewAttemptCompletionTool() tool.Tool {
	schema := tool.BuildSchema(
		tool.SchemaParam{Name: "result", Type: "string", Description: "Final answer to present to the user", Required: true},
	)
	return tool.NewNative("attempt_completion", "Signals the task is finished and presents the final result", schema,
		func(_ context.Context, _ *tool.ToolContext, args json.RawMessage) (tool.ToolResult, error) {
			var a attemptCompletionArgs
			if err := json.Unmarshal(args, &a); err != nil {
				return tool.ToolResult{Output: fmt.Sprintf("bad arguments: %v", err)}, nil
			}
			if a.Result == "" {
				return tool.ToolResult{Output: "result must not be empty"}, nil
			}
			return tool.ToolResult{Success: true, Output: a.Result}, nil
		})
}

type askFollowupQuestionArgs struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

// NewAskFollowupQuestionTool returns the ask_followup_question tool: it
// never resolves on its own. It returns an ask_user control signal that
// tells the runtime to interrupt the turn and wait for the human (spec.md
// §4.6's "interrupt" terminal case).
func NewAskFollowupQuestionTool() tool.Tool {
	schema := json.RawMessage(`{
		"type": "object",
		"properties": {
			"question": {"type": "string", "description": "The question to ask the user"},
			"options": {
				"type": "array",
				"description": "Suggested answers the user can pick from",
				"items": {"type": "string"}
			}
		},
		"required": ["question"]
	}`)
	return tool.NewNative("ask_followup_question", "Asks the user a clarifying question and pauses the turn for their reply", schema,
		func(_ context.Context, _ *tool.ToolContext, args json.RawMessage) (tool.ToolResult, error) {
			var a askFollowupQuestionArgs
			if err := json.Unmarshal(args, &a); err != nil {
				return tool.ToolResult{Output: fmt.Sprintf("bad arguments: %v", err)}, nil
			}
			if a.Question == "" {
				return tool.ToolResult{Output: "question must not be empty"}, nil
			}
			return tool.ToolResult{Success: true, Output: a.Question,
				Data: map[string]any{"action": "ask_user", "question": a.Question, "options": a.Options}}, nil
		})
}

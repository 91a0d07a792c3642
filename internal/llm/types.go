package llm

import "encoding/json"

// Role identifies a chat message's sender, using the subset of roles the
// transport needs to see (system/user/assistant/tool). The richer tagged
// Message model used by the rest of the runtime lives in internal/message;
// this package only needs the flat wire shape the vendor API expects.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is one complete (fully assembled) tool invocation requested by
// the assistant, as carried on an outbound Message. It is converted from
// internal/message.ToolCall (which the stream interpreter produces).
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Message is the flat, wire-shaped chat message the transport sends to and
// receives from the vendor API. It is built from internal/message.Message
// at the call site (internal/agent) and is not the runtime's persisted
// conversation model.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
}

// ToolDefinition is one entry of the catalogue shown to the model, matching
// the `{type:"function", function:{name, description, parameters}}` shape
// spec.md §6 requires on the wire. Parameters is already-serialised
// JSON-Schema (tool.Tool.InputSchema()).
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

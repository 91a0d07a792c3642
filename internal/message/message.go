// Package message defines the conversation data model: a tagged sum over
// the four message roles the agent runtime ever produces or consumes.
package message

import (
	"encoding/json"
	"fmt"
)

// Role identifies which of the four message variants a Message carries.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is one assistant-requested invocation of a named tool.
// Arguments is the raw (possibly malformed) JSON blob the model emitted;
// it is repaired and validated at dispatch time, not at assembly time.
type ToolCall struct {
	CallID    string          `json:"call_id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Message is one entry in a conversation history. Exactly one of the
// variant-specific field groups is populated, selected by Role:
//
//	system:    Content
//	user:      Content
//	assistant: Content (optional), Reasoning (optional), ToolCalls (optional)
//	tool:      CallID, Content
//
// Message is deliberately a flat struct rather than an interface-based sum
// so that it serialises directly to the open-ended JSON shape used by the
// session file and the LLM transport; transport and session code are the
// only places that need to know which fields apply to which role.
type Message struct {
	Role Role `json:"role"`

	// Content holds the user/system text, or the assistant's visible reply,
	// or the tool result payload (when Role == RoleTool).
	Content *string `json:"content,omitempty"`

	// Reasoning holds the assistant's chain-of-thought text, when the
	// vendor streamed one. Persisted verbatim so session replay is
	// faithful (spec.md §9: "this spec mandates persistence of reasoning").
	Reasoning *string `json:"reasoning,omitempty"`

	// ToolCalls holds the assistant's requested tool invocations, in the
	// order the assistant declared them.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// CallID is set only on RoleTool messages; it must match exactly one
	// earlier assistant ToolCall.CallID in the same history.
	CallID string `json:"call_id,omitempty"`
}

// System builds a system message.
func System(text string) Message { return Message{Role: RoleSystem, Content: &text} }

// User builds a user message.
func User(text string) Message { return Message{Role: RoleUser, Content: &text} }

// Assistant builds an assistant message. content and reasoning may be empty
// strings, in which case the corresponding field is left nil (so that it is
// omitted from both JSON and HasContent/HasReasoning checks).
func Assistant(content, reasoning string, toolCalls []ToolCall) Message {
	m := Message{Role: RoleAssistant, ToolCalls: toolCalls}
	if content != "" {
		m.Content = &content
	}
	if reasoning != "" {
		m.Reasoning = &reasoning
	}
	return m
}

// Tool builds a tool-result message responding to callID.
func Tool(callID, text string) Message {
	return Message{Role: RoleTool, CallID: callID, Content: &text}
}

// HasToolCalls reports whether an assistant message carries any tool calls.
func (m Message) HasToolCalls() bool { return len(m.ToolCalls) > 0 }

// ContentText returns the Content field, or "" if unset.
func (m Message) ContentText() string {
	if m.Content == nil {
		return ""
	}
	return *m.Content
}

// ReasoningText returns the Reasoning field, or "" if unset.
func (m Message) ReasoningText() string {
	if m.Reasoning == nil {
		return ""
	}
	return *m.Reasoning
}

// Validate checks the invariants of spec.md §3/§8 that apply to a single
// history: index 0 is a system message, and every tool message's CallID
// matches exactly one preceding assistant tool-call, appearing at most once.
func Validate(history []Message) error {
	if len(history) == 0 {
		return fmt.Errorf("message: history must contain at least a system message")
	}
	if history[0].Role != RoleSystem {
		return fmt.Errorf("message: history[0] must be a system message, got %q", history[0].Role)
	}

	seenCalls := make(map[string]bool)
	answeredCalls := make(map[string]bool)
	for i, m := range history {
		switch m.Role {
		case RoleAssistant:
			for _, tc := range m.ToolCalls {
				if tc.CallID == "" {
					return fmt.Errorf("message: history[%d]: tool call missing call_id", i)
				}
				if seenCalls[tc.CallID] {
					return fmt.Errorf("message: history[%d]: duplicate call_id %q", i, tc.CallID)
				}
				seenCalls[tc.CallID] = true
			}
		case RoleTool:
			if !seenCalls[m.CallID] {
				return fmt.Errorf("message: history[%d]: tool message call_id %q has no matching assistant tool-call", i, m.CallID)
			}
			if answeredCalls[m.CallID] {
				return fmt.Errorf("message: history[%d]: call_id %q answered more than once", i, m.CallID)
			}
			answeredCalls[m.CallID] = true
		case RoleSystem, RoleUser:
			// no per-message invariant beyond role itself
		default:
			return fmt.Errorf("message: history[%d]: unknown role %q", i, m.Role)
		}
	}
	return nil
}

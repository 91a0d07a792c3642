// Package agent implements the agent runtime loop (spec.md §4.6, component
// C6): the think-act cycle that drives one conversational turn from a user
// message through repeated model calls and tool dispatches to a terminal
// event.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	convctx "github.com/pocketomega/agentrt/internal/context"
	"github.com/pocketomega/agentrt/internal/llm"
	"github.com/pocketomega/agentrt/internal/message"
	"github.com/pocketomega/agentrt/internal/stream"
	"github.com/pocketomega/agentrt/internal/tool"
)

// MaxSteps is the hard fatal cap on model round-trips within one turn
// (spec.md §4.6). It exists solely to bound a non-terminating model.
const MaxSteps = 100

// CompletionTool is the distinguished tool name whose success ends a turn
// regardless of any further planned tool calls.
const CompletionTool = "attempt_completion"

// EventType identifies one element of a Step's event stream. The values
// match the `type` field spec.md §6 puts on the wire, except FullMessage
// which is internal-only and must not cross the HTTP boundary.
type EventType string

const (
	EventThinkingDelta EventType = "thinking_delta"
	EventContentDelta  EventType = "content_delta"
	EventToolCall      EventType = "tool_call"
	EventToolOutput    EventType = "tool_output"
	EventInterrupt     EventType = "interrupt"
	EventFinished      EventType = "finished"
	EventError         EventType = "error"
)

// ToolCallInfo is the `tool_call.content` payload of spec.md §6.
type ToolCallInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Args string `json:"args"`
}

// ToolOutputInfo is the `tool_output.content` payload of spec.md §6.
type ToolOutputInfo struct {
	ID     string `json:"id"`
	Output string `json:"output"`
}

// Event is one element of a Step's event stream.
type Event struct {
	Type       EventType
	Text       string         // ThinkingDelta / ContentDelta
	ToolCall   ToolCallInfo   // ToolCall
	ToolOutput ToolOutputInfo // ToolOutput
	Interrupt  map[string]any // Interrupt — the tool result's Data payload
	Finished   string         // Finished — the terminal message
	Err        string         // Error
}

// MarshalJSON shapes an Event into the SSE wire record of spec.md §6: a
// JSON object with a `type` field plus whichever of `text`/`content`
// applies to that type. tool_call/tool_output nest {id, name/output, ...}
// under `content`; thinking_delta/content_delta/finished/error carry a
// flat `text`; interrupt carries the tool result's Data payload as `content`.
func (e Event) MarshalJSON() ([]byte, error) {
	switch e.Type {
	case EventThinkingDelta, EventContentDelta:
		return json.Marshal(struct {
			Type EventType `json:"type"`
			Text string    `json:"text"`
		}{e.Type, e.Text})
	case EventToolCall:
		return json.Marshal(struct {
			Type    EventType    `json:"type"`
			Content ToolCallInfo `json:"content"`
		}{e.Type, e.ToolCall})
	case EventToolOutput:
		return json.Marshal(struct {
			Type    EventType      `json:"type"`
			Content ToolOutputInfo `json:"content"`
		}{e.Type, e.ToolOutput})
	case EventInterrupt:
		return json.Marshal(struct {
			Type    EventType      `json:"type"`
			Content map[string]any `json:"content"`
		}{e.Type, e.Interrupt})
	case EventFinished:
		return json.Marshal(struct {
			Type EventType `json:"type"`
			Text string    `json:"text"`
		}{e.Type, e.Finished})
	case EventError:
		return json.Marshal(struct {
			Type EventType `json:"type"`
			Text string    `json:"text"`
		}{e.Type, e.Err})
	default:
		return json.Marshal(struct {
			Type EventType `json:"type"`
		}{e.Type})
	}
}

// Runtime bundles the collaborators one (user, session) conversation needs:
// the context manager, the tool registry, the per-call tool context, and
// the LLM transport (spec.md glossary "Runtime").
type Runtime struct {
	Transport llm.Transport
	Registry  *tool.Registry
	Context   *convctx.Manager
	ToolCtx   *tool.ToolContext

	// mu is the per-runtime mutex of spec.md §5: a turn must not be
	// re-entered on the same runtime before the previous turn yielded its
	// terminal event. Held for the lifetime of one Step call.
	mu sync.Mutex
}

// NewRuntime builds a Runtime from its collaborators.
func NewRuntime(transport llm.Transport, registry *tool.Registry, ctx *convctx.Manager, toolCtx *tool.ToolContext) *Runtime {
	return &Runtime{Transport: transport, Registry: registry, Context: ctx, ToolCtx: toolCtx}
}

// Step runs one turn: appends userText to history, then drives the
// think-act loop until a terminal event, emitting every intermediate event
// on the returned channel. The channel is closed after the terminal event.
//
// Step blocks until any in-flight Step on the same Runtime has completed,
// per spec.md §5's per-runtime serialisation requirement.
func (rt *Runtime) Step(ctx context.Context, userText string) <-chan Event {
	rt.mu.Lock()
	events := make(chan Event, 8)
	go func() {
		defer rt.mu.Unlock()
		defer close(events)
		rt.run(ctx, userText, events)
	}()
	return events
}

func (rt *Runtime) run(ctx context.Context, userText string, events chan<- Event) {
	rt.Context.AddUser(userText)

	for step := 0; step < MaxSteps; step++ {
		messages := toLLMMessages(rt.Context.History())
		if reminder := renderTodoReminder(rt.ToolCtx.Todos); reminder != "" {
			// Ephemeral: appended to the wire request only, never to history.
			messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: reminder})
		}

		it, err := rt.Transport.StreamChat(ctx, messages, toLLMToolDefs(rt.Registry.Catalogue()))
		if err != nil || it == nil {
			events <- errorEvent(err, "empty stream")
			return
		}

		full, err := rt.drainStream(ctx, it, events)
		it.Close()
		if err != nil {
			events <- errorEvent(err, "")
			return
		}
		if full == nil {
			events <- Event{Type: EventError, Err: "empty response"}
			return
		}

		hasContent := full.ContentText() != ""
		hasTools := full.HasToolCalls()
		hasReasoning := full.ReasoningText() != ""
		if !hasContent && !hasTools && !hasReasoning {
			events <- Event{Type: EventFinished, Finished: "Done"}
			return
		}

		rt.Context.AddAssistant(*full)
		if !hasTools {
			events <- Event{Type: EventFinished, Finished: "Done"}
			return
		}

		if done := rt.runToolCalls(ctx, full.ToolCalls, events); done {
			return
		}
	}

	events <- Event{Type: EventError, Err: fmt.Sprintf("MAX_STEPS (%d) exceeded", MaxSteps)}
}

// drainStream forwards thinking/content deltas as they arrive and returns
// the assembled message once the interpreter's EventFullMessage fires.
func (rt *Runtime) drainStream(ctx context.Context, it llm.ChunkIterator, events chan<- Event) (*message.Message, error) {
	evCh, errCh := stream.Parse(ctx, it)
	var full *message.Message
	for ev := range evCh {
		switch ev.Type {
		case stream.EventThinkingDelta:
			events <- Event{Type: EventThinkingDelta, Text: ev.Text}
		case stream.EventContentDelta:
			events <- Event{Type: EventContentDelta, Text: ev.Text}
		case stream.EventFullMessage:
			full = ev.Message
		}
	}
	if err := <-errCh; err != nil {
		return nil, err
	}
	return full, nil
}

// runToolCalls dispatches each tool call strictly sequentially in the
// assistant's declared order, per spec.md §4.6's ordering guarantee. It
// returns true once the turn has reached a terminal event (interrupt,
// completion, or an in-dispatch error).
func (rt *Runtime) runToolCalls(ctx context.Context, calls []message.ToolCall, events chan<- Event) bool {
	for _, tc := range calls {
		events <- Event{Type: EventToolCall, ToolCall: ToolCallInfo{ID: tc.CallID, Name: tc.Name, Args: string(tc.Arguments)}}

		result, err := rt.Registry.Dispatch(ctx, rt.ToolCtx, tc.Name, string(tc.Arguments))
		if err != nil {
			events <- Event{Type: EventError, Err: err.Error()}
			return true
		}

		rt.Context.AddTool(tc.CallID, result.Output)
		events <- Event{Type: EventToolOutput, ToolOutput: ToolOutputInfo{ID: tc.CallID, Output: result.Output}}

		if action, _ := result.Data["action"].(string); action == "ask_user" {
			events <- Event{Type: EventInterrupt, Interrupt: result.Data}
			return true
		}
		if tc.Name == CompletionTool {
			events <- Event{Type: EventFinished, Finished: result.Output}
			return true
		}
	}
	return false
}

func errorEvent(err error, fallback string) Event {
	if err != nil {
		return Event{Type: EventError, Err: err.Error()}
	}
	return Event{Type: EventError, Err: fallback}
}

// toLLMMessages converts the persisted tagged-variant history into the flat
// wire shape the transport sends. Reasoning is persisted in history
// (spec.md §9) but is not replayed to the vendor API — only content and
// tool_calls are part of the wire contract.
func toLLMMessages(history []message.Message) []llm.Message {
	out := make([]llm.Message, 0, len(history))
	for _, m := range history {
		switch m.Role {
		case message.RoleSystem:
			out = append(out, llm.Message{Role: llm.RoleSystem, Content: m.ContentText()})
		case message.RoleUser:
			out = append(out, llm.Message{Role: llm.RoleUser, Content: m.ContentText()})
		case message.RoleAssistant:
			lm := llm.Message{Role: llm.RoleAssistant, Content: m.ContentText()}
			if len(m.ToolCalls) > 0 {
				lm.ToolCalls = make([]llm.ToolCall, len(m.ToolCalls))
				for i, tc := range m.ToolCalls {
					lm.ToolCalls[i] = llm.ToolCall{ID: tc.CallID, Name: tc.Name, Arguments: tc.Arguments}
				}
			}
			out = append(out, lm)
		case message.RoleTool:
			out = append(out, llm.Message{Role: llm.RoleTool, ToolCallID: m.CallID, Content: m.ContentText()})
		}
	}
	return out
}

func toLLMToolDefs(defs []tool.FunctionToolDef) []llm.ToolDefinition {
	out := make([]llm.ToolDefinition, len(defs))
	for i, d := range defs {
		out[i] = llm.ToolDefinition{Name: d.Function.Name, Description: d.Function.Description, Parameters: d.Function.Parameters}
	}
	return out
}

// renderTodoReminder builds the ephemeral system message that reminds the
// model how to advance the todo list (spec.md §4.6). Recomputed from the
// current todo state on every step; returns "" when there are no todos.
func renderTodoReminder(todos []*tool.Todo) string {
	if len(todos) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("You have outstanding todo items. Advance them with update_todo_list " +
		"before declaring the task complete. Current state:\n")
	renderTodoTree(&sb, todos, 0)
	return sb.String()
}

func renderTodoTree(sb *strings.Builder, todos []*tool.Todo, depth int) {
	for _, t := range todos {
		sb.WriteString(strings.Repeat("  ", depth))
		fmt.Fprintf(sb, "- [%s] %s (%s)\n", t.ID, t.Title, t.Status)
		if len(t.Subtasks) > 0 {
			renderTodoTree(sb, t.Subtasks, depth+1)
		}
	}
}

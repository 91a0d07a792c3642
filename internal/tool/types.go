// Package tool implements the tool registry and dispatcher (spec.md §4.2,
// component C2): handler registration, schema validation, and the uniform
// success/failure envelope every tool call returns.
package tool

import (
	"context"
	"encoding/json"
)

// Tool is the unified interface every tool implements, whether a native
// built-in or an MCP adapter (internal/mcp wraps a remote tool behind this
// same interface so the registry never special-cases origin).
type Tool interface {
	// Name returns the tool identifier (the LLM uses this to invoke it).
	Name() string

	// Description returns a natural-language description for prompt/catalogue
	// injection.
	Description() string

	// InputSchema returns the JSON-Schema describing the tool's arguments.
	// Compatible with both MCP and OpenAI function-calling shapes.
	InputSchema() json.RawMessage

	// Execute runs the tool with already-validated, already-repaired
	// arguments and the current runtime context.
	Execute(ctx context.Context, tc *ToolContext, args json.RawMessage) (ToolResult, error)

	// Init initializes tool resources (e.g. an MCP client connection).
	// Native tools may return nil.
	Init(ctx context.Context) error

	// Close releases tool resources.
	Close() error
}

// ToolResult is the uniform envelope every tool invocation returns
// (spec.md §3). Data may carry a control signal such as
// {"action":"ask_user", ...} or {"action":"display_todo", ...}.
type ToolResult struct {
	Success bool           `json:"success"`
	Output  string         `json:"output"`
	Data    map[string]any `json:"data,omitempty"`
}

// TodoStatus enumerates the states of one node in ToolContext's todo tree.
type TodoStatus string

const (
	TodoPending    TodoStatus = "pending"
	TodoInProgress TodoStatus = "in_progress"
	TodoCompleted  TodoStatus = "completed"
	TodoFailed     TodoStatus = "failed"
	TodoSkipped    TodoStatus = "skipped"
)

// Todo is one node of the rose-tree todo structure carried on ToolContext.
type Todo struct {
	ID       string     `json:"id"`
	Title    string     `json:"title"`
	Status   TodoStatus `json:"status"`
	Subtasks []*Todo    `json:"subtasks,omitempty"`
}

// BrowserSession is the scoped resource handle a "launch" tool call
// acquires and a "close" call releases (spec.md §3, §9). The concrete
// browser-automation collaborator is out of scope; the runtime still owns
// its lifecycle so at most one session exists per runtime and it is
// drained on teardown.
type BrowserSession struct {
	URL     string
	Content string
	Closed  bool
}

// SkillsHandle is the minimal surface a tool needs from the skills
// catalogue (spec.md §3); the concrete type lives in package skill to
// avoid an import cycle between tool/builtin and skill.
type SkillsHandle interface {
	List() []SkillMeta
	Get(name string) (content string, err error)
}

// SkillMeta is catalogue-visible metadata for one skill; content is loaded
// lazily through SkillsHandle.Get, not carried here.
type SkillMeta struct {
	Name        string
	Description string
	Path        string
}

// ToolContext is the per-runtime value passed to every tool handler
// (spec.md §3).
type ToolContext struct {
	// WorkspaceRoot is the absolute path every path-accepting tool must
	// confine itself to via pathguard.Resolve.
	WorkspaceRoot string

	// Todos is the structured todo state (nil means empty/no todos yet).
	Todos []*Todo

	// Mode is the current mode tag (e.g. "code", "architect", "ask").
	Mode string

	// Browser is the optional active browser session handle.
	Browser *BrowserSession

	// Skills is the optional skills catalogue handle.
	Skills SkillsHandle

	// Env is "cli" or "web" — lets a tool adapt its interactive behaviour
	// (e.g. ask_followup_question blocks on stdin in "cli", but returns an
	// ask_user control signal in "web").
	Env string
}

// Handler is the function signature a native tool implements. NewNative
// wraps a Handler as a Tool so builtin tools can be plain functions instead
// of hand-written structs.
type Handler func(ctx context.Context, tc *ToolContext, args json.RawMessage) (ToolResult, error)

// nativeTool adapts a Handler plus static metadata to the Tool interface.
type nativeTool struct {
	name        string
	description string
	schema      json.RawMessage
	handler     Handler
}

// NewNative builds a Tool from a plain handler function and static
// metadata. Init and Close are no-ops.
func NewNative(name, description string, schema json.RawMessage, handler Handler) Tool {
	return &nativeTool{name: name, description: description, schema: schema, handler: handler}
}

func (t *nativeTool) Name() string               { return t.name }
func (t *nativeTool) Description() string        { return t.description }
func (t *nativeTool) InputSchema() json.RawMessage { return t.schema }
func (t *nativeTool) Init(ctx context.Context) error { return nil }
func (t *nativeTool) Close() error                   { return nil }
func (t *nativeTool) Execute(ctx context.Context, tc *ToolContext, args json.RawMessage) (ToolResult, error) {
	return t.handler(ctx, tc, args)
}

// SchemaParam describes a single parameter for the BuildSchema helper.
type SchemaParam struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"` // "string", "integer", "boolean", "number"
	Description string   `json:"description"`
	Required    bool     `json:"-"`
	Enum        []string `json:"enum,omitempty"`
}

// BuildSchema generates a standard JSON Schema object from a list of
// SchemaParams. This helper lets native tools avoid hand-writing JSON
// strings.
func BuildSchema(params ...SchemaParam) json.RawMessage {
	properties := make(map[string]any)
	var required []string

	for _, p := range params {
		prop := map[string]any{
			"type":        p.Type,
			"description": p.Description,
		}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}

	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}

	data, _ := json.Marshal(schema)
	return data
}

// FunctionToolDef is the {type:"function", function:{...}} shape the LLM
// transport sends as the tool catalogue (spec.md §6).
type FunctionToolDef struct {
	Type     string       `json:"type"`
	Function FunctionSpec `json:"function"`
}

// FunctionSpec is the inner "function" object of FunctionToolDef.
type FunctionSpec struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pocketomega/agentrt/internal/tool"
)

// validTodoStatuses mirrors tool.TodoStatus for runtime validation. LLMs may
// hallucinate invalid status values (e.g. "done" instead of "completed").
var validTodoStatuses = map[string]bool{
	string(tool.TodoPending):    true,
	string(tool.TodoInProgress): true,
	string(tool.TodoCompleted):  true,
	string(tool.TodoFailed):     true,
	string(tool.TodoSkipped):    true,
}

type todoEntry struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type updateTodoListArgs struct {
	Operation string      `json:"operation"`
	Todos     []todoEntry `json:"todos"`
	ID        string      `json:"id"`
	Status    string      `json:"status"`
}

// NewUpdateTodoListTool returns the update_todo_list tool: maintains the
// per-session todo tree carried on tool.ToolContext. "set" replaces the
// whole list; "update" changes a single item's status. Every successful
// call signals the runtime to re-render the todo panel via a
// display_todo control payload (spec.md §3).
func NewUpdateTodoListTool() tool.Tool {
	schema := json.RawMessage(`{
		"type": "object",
		"properties": {
			"operation": {"type": "string", "enum": ["set", "update"], "description": "set replaces the whole todo list; update changes one item's status"},
			"todos": {
				"type": "array",
				"description": "Full item list (required when operation=set)",
				"items": {
					"type": "object",
					"properties": {
						"id":    {"type": "string", "description": "Unique item id"},
						"title": {"type": "string", "description": "Item description"}
					},
					"required": ["id", "title"]
				}
			},
			"id":     {"type": "string", "description": "Item id (required when operation=update)"},
			"status": {"type": "string", "enum": ["pending","in_progress","completed","failed","skipped"], "description": "New status (required when operation=update)"}
		},
		"required": ["operation"]
	}`)
	return tool.NewNative("update_todo_list", "Maintains the task's todo list; set replaces it, update changes one item's status", schema,
		func(_ context.Context, tc *tool.ToolContext, args json.RawMessage) (tool.ToolResult, error) {
			var a updateTodoListArgs
			if err := json.Unmarshal(args, &a); err != nil {
				return tool.ToolResult{Output: fmt.Sprintf("bad arguments: %v", err)}, nil
			}

			switch a.Operation {
			case "set":
				if len(a.Todos) == 0 {
					return tool.ToolResult{Output: "set requires a non-empty todos list"}, nil
				}
				if todoListEqual(tc.Todos, a.Todos) {
					return tool.ToolResult{Output: "todo list unchanged (identical to the current list); proceed with the next step instead of resetting it"}, nil
				}
				tc.Todos = make([]*tool.Todo, len(a.Todos))
				for i, e := range a.Todos {
					tc.Todos[i] = &tool.Todo{ID: e.ID, Title: e.Title, Status: tool.TodoPending}
				}
				return tool.ToolResult{Success: true, Output: fmt.Sprintf("todo list set, %d items", len(a.Todos)),
					Data: map[string]any{"action": "display_todo", "todos": tc.Todos}}, nil

			case "update":
				if a.ID == "" || a.Status == "" {
					return tool.ToolResult{Output: "update requires id and status"}, nil
				}
				if !validTodoStatuses[a.Status] {
					return tool.ToolResult{Output: fmt.Sprintf("invalid status %q; supported: pending/in_progress/completed/failed/skipped", a.Status)}, nil
				}
				item := findTodo(tc.Todos, a.ID)
				if item == nil {
					ids := todoIDs(tc.Todos)
					return tool.ToolResult{Output: fmt.Sprintf("item %q not found; current ids: [%s]", a.ID, strings.Join(ids, ", "))}, nil
				}
				if string(item.Status) == a.Status {
					return tool.ToolResult{Output: fmt.Sprintf("item %s is already %s; call an action tool instead of repeating update_todo_list", a.ID, a.Status)}, nil
				}
				item.Status = tool.TodoStatus(a.Status)
				return tool.ToolResult{Success: true, Output: fmt.Sprintf("%s -> %s", a.ID, a.Status),
					Data: map[string]any{"action": "display_todo", "todos": tc.Todos}}, nil

			default:
				return tool.ToolResult{Output: fmt.Sprintf("unknown operation %q; supported: set/update", a.Operation)}, nil
			}
		})
}

// findTodo searches the todo tree (including subtasks) for an id.
func findTodo(todos []*tool.Todo, id string) *tool.Todo {
	for _, t := range todos {
		if t.ID == id {
			return t
		}
		if found := findTodo(t.Subtasks, id); found != nil {
			return found
		}
	}
	return nil
}

// todoIDs flattens the tree's top-level ids for error messages.
func todoIDs(todos []*tool.Todo) []string {
	ids := make([]string, len(todos))
	for i, t := range todos {
		ids[i] = t.ID
	}
	return ids
}

// todoListEqual compares the current top-level tree against a proposed flat
// list by id and title only (status is expected to evolve during execution).
func todoListEqual(current []*tool.Todo, proposed []todoEntry) bool {
	if len(current) != len(proposed) {
		return false
	}
	for i := range current {
		if current[i].ID != proposed[i].ID || current[i].Title != proposed[i].Title {
			return false
		}
	}
	return true
}

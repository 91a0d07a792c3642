package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/pocketomega/agentrt/internal/tool"
)

// config_edit reaches outside the workspace sandbox to edit configuration
// files (.env and similar) that live at the project root rather than inside
// WorkspaceRoot. An allowlist maps short aliases to absolute paths so the
// agent can only ever touch files the operator named in advance, never an
// arbitrary path it constructs itself.

type configEditArgs struct {
	File   string `json:"file"`
	Action string `json:"action"`
	Key    string `json:"key"`
	Value  string `json:"value"`
}

// NewConfigEditTool returns the config_edit tool, scoped to allowedFiles
// (alias -> absolute path).
func NewConfigEditTool(allowedFiles map[string]string) tool.Tool {
	aliases := make([]string, 0, len(allowedFiles))
	for alias := range allowedFiles {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)
	description := fmt.Sprintf("Reads and writes configuration files outside the workspace (e.g. .env). Supports get/set/list. Editable files: %s", strings.Join(aliases, ", "))

	schema := tool.BuildSchema(
		tool.SchemaParam{Name: "file", Type: "string", Description: "Configuration file alias (e.g. \".env\")", Required: true},
		tool.SchemaParam{Name: "action", Type: "string", Description: "Operation", Required: true, Enum: []string{"get", "set", "list"}},
		tool.SchemaParam{Name: "key", Type: "string", Description: "Config key (required for get/set)"},
		tool.SchemaParam{Name: "value", Type: "string", Description: "Config value (required for set)"},
	)

	return tool.NewNative("config_edit", description, schema,
		func(_ context.Context, _ *tool.ToolContext, args json.RawMessage) (tool.ToolResult, error) {
			var a configEditArgs
			if err := json.Unmarshal(args, &a); err != nil {
				return tool.ToolResult{Output: fmt.Sprintf("bad arguments: %v", err)}, nil
			}

			realPath, ok := allowedFiles[a.File]
			if !ok {
				return tool.ToolResult{Output: fmt.Sprintf("file %q is not in the allowlist; allowed files: %s", a.File, strings.Join(aliases, ", "))}, nil
			}

			switch a.Action {
			case "get":
				return configEditGet(realPath, a.Key)
			case "set":
				return configEditSet(realPath, a.Key, a.Value)
			case "list":
				return configEditList(realPath)
			default:
				return tool.ToolResult{Output: fmt.Sprintf("unknown action %q; supported: get, set, list", a.Action)}, nil
			}
		})
}

// ── .env format helpers ──────────────────────────────────────────────────

func configEditGet(path, key string) (tool.ToolResult, error) {
	if key == "" {
		return tool.ToolResult{Output: "get requires a key argument"}, nil
	}

	entries, err := parseEnvFile(path)
	if err != nil {
		return tool.ToolResult{Output: fmt.Sprintf("failed to read config file: %v", err)}, nil
	}

	for _, e := range entries {
		if e.key == key {
			return tool.ToolResult{Success: true, Output: fmt.Sprintf("%s=%s", key, e.value)}, nil
		}
	}

	return tool.ToolResult{Output: fmt.Sprintf("key %q does not exist", key)}, nil
}

// configEditSet sets a key=value in a .env-style file, preserving comments and blank lines.
func configEditSet(path, key, value string) (tool.ToolResult, error) {
	if key == "" {
		return tool.ToolResult{Output: "set requires a key argument"}, nil
	}

	data, _ := os.ReadFile(path) // missing file -> empty, we'll create it
	lines := strings.Split(string(data), "\n")

	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], "\r")
	}

	found := false
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		eqIdx := strings.Index(trimmed, "=")
		if eqIdx < 0 {
			continue
		}
		lineKey := strings.TrimSpace(trimmed[:eqIdx])
		if lineKey == key {
			lines[i] = key + "=" + value
			found = true
			break
		}
	}

	if !found {
		if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) != "" {
			lines = append(lines, "")
		}
		lines = append(lines, key+"="+value)
	}

	content := strings.Join(lines, "\n")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return tool.ToolResult{Output: fmt.Sprintf("write failed: %v", err)}, nil
	}

	verb := "updated"
	if !found {
		verb = "added"
	}
	return tool.ToolResult{Success: true, Output: fmt.Sprintf("%s %s=%s (file: %s)", verb, key, value, path)}, nil
}

func configEditList(path string) (tool.ToolResult, error) {
	entries, err := parseEnvFile(path)
	if err != nil {
		return tool.ToolResult{Output: fmt.Sprintf("failed to read config file: %v", err)}, nil
	}

	if len(entries) == 0 {
		return tool.ToolResult{Success: true, Output: "(config file is empty or has no key/value pairs)"}, nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("config file has %d entries:\n", len(entries)))
	for _, e := range entries {
		sb.WriteString(fmt.Sprintf("  %s=%s\n", e.key, e.value))
	}
	return tool.ToolResult{Success: true, Output: sb.String()}, nil
}

// envEntry represents one KEY=VALUE pair parsed from a .env file.
type envEntry struct {
	key   string
	value string
}

// parseEnvFile reads a .env-style file and returns all key=value entries.
// Comments (#) and blank lines are skipped.
func parseEnvFile(path string) ([]envEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var entries []envEntry
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		eqIdx := strings.Index(trimmed, "=")
		if eqIdx < 0 {
			continue
		}
		key := strings.TrimSpace(trimmed[:eqIdx])
		value := strings.TrimSpace(trimmed[eqIdx+1:])
		entries = append(entries, envEntry{key: key, value: value})
	}
	return entries, nil
}

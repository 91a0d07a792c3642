package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/pocketomega/agentrt/internal/tool"
)

// mcpConfig mirrors the top-level structure of mcp.json for read/write access.
// This is used by the management tools (mcp_server_add/remove/list).
// It is a local copy to avoid a circular dependency on the mcp package.
type mcpConfig struct {
	MCPServers map[string]mcpServerEntry `json:"mcpServers"`
}

// mcpServerEntry is the JSON representation of a single server in mcp.json.
// Fields mirror mcp.ServerConfig, plus _meta, so the fields listed here
// round-trip for entries this tool does not modify. Any other field of an
// entry is dropped when the file is rewritten.
type mcpServerEntry struct {
	Transport string            `json:"transport"`
	Command   string            `json:"command,omitempty"`
	Args      []string          `json:"args,omitempty"`
	URL       string            `json:"url,omitempty"`
	Env       []string          `json:"env,omitempty"`
	Lifecycle string            `json:"lifecycle,omitempty"`
	Meta      map[string]string `json:"_meta,omitempty"`
}

// readMCPConfig reads and parses mcp.json. Returns an empty MCPServers map if
// the file doesn't exist yet. Pure I/O helper, callers hold no locks.
func readMCPConfig(path string) (mcpConfig, error) {
	cfg := mcpConfig{MCPServers: make(map[string]mcpServerEntry)}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("failed to read mcp.json: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse mcp.json: %w", err)
	}
	if cfg.MCPServers == nil {
		cfg.MCPServers = make(map[string]mcpServerEntry)
	}
	return cfg, nil
}

// writeMCPConfig serialises cfg to path with indentation.
func writeMCPConfig(path string, cfg mcpConfig) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize mcp.json: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write mcp.json: %w", err)
	}
	return nil
}

type mcpServerAddArgs struct {
	Name      string `json:"name"`
	Transport string `json:"transport"`
	Command   string `json:"command"`
	Args      string `json:"args"` // JSON-encoded []string
	URL       string `json:"url"`
	Env       string `json:"env"` // JSON-encoded []string
	Lifecycle string `json:"lifecycle"`
}

// NewMCPServerAddTool registers a new MCP server entry in mcp.json.
// mcpConfigPath is the absolute path to mcp.json, typically injected from main.
func NewMCPServerAddTool(mcpConfigPath string) tool.Tool {
	schema := tool.BuildSchema(
		tool.SchemaParam{Name: "name", Type: "string", Required: true,
			Description: "Server name, globally unique (mcp.json map key). Example: excel-tool"},
		tool.SchemaParam{Name: "transport", Type: "string", Required: true,
			Description: `Transport protocol: "stdio" (local process) or "sse" (HTTP SSE). Example: stdio`,
			Enum:        []string{"stdio", "sse"}},
		tool.SchemaParam{Name: "command", Type: "string", Required: false,
			Description: `stdio only: executable path or name. Example: node`},
		tool.SchemaParam{Name: "args", Type: "string", Required: false,
			Description: `stdio only: command-line arguments as a JSON array string. Example: ["--import","tsx","skills/excel/server.ts"]`},
		tool.SchemaParam{Name: "url", Type: "string", Required: false,
			Description: `sse only: the SSE server URL. Example: http://localhost:8080`},
		tool.SchemaParam{Name: "env", Type: "string", Required: false,
			Description: `stdio only: extra environment variables as a JSON array string, e.g. ["KEY=VALUE"]. Example: ["API_KEY=abc123"]`},
		tool.SchemaParam{Name: "lifecycle", Type: "string", Required: false,
			Description: `Lifecycle: "persistent" (default, long-running process) or "per_call" (new process per call). Example: persistent`,
			Enum:        []string{"persistent", "per_call"}},
	)
	return tool.NewNative("mcp_server_add",
		"Registers a new MCP server entry in mcp.json. Call mcp_reload afterward to apply the change. "+
			"Fails if the name already exists (no overwrite) — use mcp_server_remove first.",
		schema,
		func(_ context.Context, _ *tool.ToolContext, raw json.RawMessage) (tool.ToolResult, error) {
			var a mcpServerAddArgs
			if err := json.Unmarshal(raw, &a); err != nil {
				return tool.ToolResult{Output: fmt.Sprintf("bad arguments: %v", err)}, nil
			}

			if a.Name == "" {
				return tool.ToolResult{Output: "name must not be empty"}, nil
			}
			if a.Transport != "stdio" && a.Transport != "sse" {
				return tool.ToolResult{Output: `transport must be "stdio" or "sse", got: ` + a.Transport}, nil
			}

			var args, env []string
			if a.Args != "" {
				if err := json.Unmarshal([]byte(a.Args), &args); err != nil {
					return tool.ToolResult{Output: fmt.Sprintf(`malformed args (expected a JSON array string, e.g. ["a","b"]): %v`, err)}, nil
				}
			}
			if a.Env != "" {
				if err := json.Unmarshal([]byte(a.Env), &env); err != nil {
					return tool.ToolResult{Output: fmt.Sprintf(`malformed env (expected a JSON array string, e.g. ["KEY=VAL"]): %v`, err)}, nil
				}
			}

			cfg, err := readMCPConfig(mcpConfigPath)
			if err != nil {
				return tool.ToolResult{Output: err.Error()}, nil
			}

			if _, exists := cfg.MCPServers[a.Name]; exists {
				return tool.ToolResult{
					Output: fmt.Sprintf("server %q already exists — remove it with mcp_server_remove before re-registering", a.Name),
				}, nil
			}

			entry := mcpServerEntry{
				Transport: a.Transport,
				Command:   a.Command,
				Args:      args,
				URL:       a.URL,
				Env:       env,
				Lifecycle: a.Lifecycle,
				Meta:      map[string]string{"origin": "agent"},
			}
			cfg.MCPServers[a.Name] = entry

			if err := writeMCPConfig(mcpConfigPath, cfg); err != nil {
				return tool.ToolResult{Output: err.Error()}, nil
			}

			lifecycle := a.Lifecycle
			if lifecycle == "" {
				lifecycle = "persistent (default)"
			}
			return tool.ToolResult{
				Success: true,
				Output: fmt.Sprintf(
					"server %q written to mcp.json (transport=%s, lifecycle=%s).\nCall mcp_reload to apply the change.",
					a.Name, a.Transport, lifecycle,
				),
			}, nil
		})
}

type mcpServerRemoveArgs struct {
	Name    string `json:"name"`
	Confirm string `json:"confirm"`
}

// NewMCPServerRemoveTool removes an MCP server entry from mcp.json.
func NewMCPServerRemoveTool(mcpConfigPath string) tool.Tool {
	schema := tool.BuildSchema(
		tool.SchemaParam{Name: "name", Type: "string", Required: true,
			Description: "Name of the server to remove (mcp.json map key). Example: excel-tool"},
		tool.SchemaParam{Name: "confirm", Type: "string", Required: true,
			Description: `Safety confirmation field; must be "yes" for the removal to proceed.`},
	)
	return tool.NewNative("mcp_server_remove",
		"Removes an MCP server entry from mcp.json. Call mcp_reload afterward to apply the change. "+
			"Destructive: requires confirm=\"yes\" to proceed.",
		schema,
		func(_ context.Context, _ *tool.ToolContext, raw json.RawMessage) (tool.ToolResult, error) {
			var a mcpServerRemoveArgs
			if err := json.Unmarshal(raw, &a); err != nil {
				return tool.ToolResult{Output: fmt.Sprintf("bad arguments: %v", err)}, nil
			}
			if a.Name == "" {
				return tool.ToolResult{Output: "name must not be empty"}, nil
			}
			if a.Confirm != "yes" {
				return tool.ToolResult{
					Output: fmt.Sprintf(
						"destructive operation: removing server %q unregisters every tool it provided; requires mcp_reload afterward.\n"+
							"Confirm by re-calling with confirm set to \"yes\".", a.Name),
				}, nil
			}

			cfg, err := readMCPConfig(mcpConfigPath)
			if err != nil {
				return tool.ToolResult{Output: err.Error()}, nil
			}

			if _, exists := cfg.MCPServers[a.Name]; !exists {
				return tool.ToolResult{
					Output: fmt.Sprintf("server %q not found in mcp.json — use mcp_server_list to see the current entries", a.Name),
				}, nil
			}

			delete(cfg.MCPServers, a.Name)
			if err := writeMCPConfig(mcpConfigPath, cfg); err != nil {
				return tool.ToolResult{Output: err.Error()}, nil
			}

			return tool.ToolResult{
				Success: true,
				Output:  fmt.Sprintf("server %q removed from mcp.json.\nCall mcp_reload to apply the change (any running process is shut down on reload).", a.Name),
			}, nil
		})
}

// NewMCPServerListTool reads mcp.json and returns all registered server entries.
func NewMCPServerListTool(mcpConfigPath string) tool.Tool {
	return tool.NewNative("mcp_server_list",
		"Lists all MCP server entries registered in mcp.json, including lifecycle and origin metadata. "+
			"Call this before registering a new server to check for name collisions.",
		tool.BuildSchema(),
		func(_ context.Context, _ *tool.ToolContext, _ json.RawMessage) (tool.ToolResult, error) {
			cfg, err := readMCPConfig(mcpConfigPath)
			if err != nil {
				return tool.ToolResult{Output: err.Error()}, nil
			}

			if len(cfg.MCPServers) == 0 {
				return tool.ToolResult{Success: true, Output: "no servers registered in mcp.json."}, nil
			}

			type row struct {
				name      string
				transport string
				lifecycle string
				origin    string
				scanRes   string
				scannedAt string
				command   string
			}
			rows := make([]row, 0, len(cfg.MCPServers))
			for name, e := range cfg.MCPServers {
				lc := e.Lifecycle
				if lc == "" {
					lc = "persistent"
				}
				origin := e.Meta["origin"]
				if origin == "" {
					origin = "user"
				}
				scanRes := e.Meta["scan_result"]
				if scanRes == "" {
					scanRes = "-"
				}
				scannedAt := e.Meta["scanned_at"]
				if scannedAt == "" {
					scannedAt = "-"
				}
				cmd := e.Command
				if len(e.Args) > 0 {
					argsBytes, _ := json.Marshal(e.Args)
					cmd += " " + string(argsBytes)
				}
				if e.URL != "" {
					cmd = e.URL
				}
				rows = append(rows, row{
					name:      name,
					transport: e.Transport,
					lifecycle: lc,
					origin:    origin,
					scanRes:   scanRes,
					scannedAt: scannedAt,
					command:   cmd,
				})
			}

			// Sort by name for deterministic output.
			for i := 0; i < len(rows)-1; i++ {
				for j := i + 1; j < len(rows); j++ {
					if rows[i].name > rows[j].name {
						rows[i], rows[j] = rows[j], rows[i]
					}
				}
			}

			out := fmt.Sprintf("%d server(s) registered in mcp.json (read at %s):\n\n",
				len(rows), time.Now().Format("2006-01-02 15:04:05"))
			for _, r := range rows {
				out += fmt.Sprintf("> %s\n  transport=%s  lifecycle=%s  origin=%s  scan=%s(%s)\n  cmd: %s\n\n",
					r.name, r.transport, r.lifecycle, r.origin, r.scanRes, r.scannedAt, r.command)
			}

			return tool.ToolResult{Success: true, Output: out}, nil
		})
}

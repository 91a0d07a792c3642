package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pocketomega/agentrt/internal/pathguard"
	"github.com/pocketomega/agentrt/internal/tool"
)

const (
	maxFileSize    = 1 << 20 // 1MB read limit
	maxWriteSize   = 1 << 20 // 1MB — reject oversized content before any filesystem access
	maxListItems   = 100
	maxFindResults = 50
)

type filePathArgs struct {
	Path string `json:"path"`
}

// NewFileReadTool returns the file_read tool (spec.md §9 file tools).
func NewFileReadTool() tool.Tool {
	schema := tool.BuildSchema(
		tool.SchemaParam{Name: "path", Type: "string", Description: "File path, relative to the workspace root", Required: true},
	)
	return tool.NewNative("file_read", "Reads the contents of a file", schema,
		func(_ context.Context, tc *tool.ToolContext, args json.RawMessage) (tool.ToolResult, error) {
			var a filePathArgs
			if err := json.Unmarshal(args, &a); err != nil {
				return tool.ToolResult{Output: fmt.Sprintf("bad arguments: %v", err)}, nil
			}

			path, err := pathguard.Resolve(a.Path, tc.WorkspaceRoot)
			if err != nil {
				return tool.ToolResult{Output: err.Error()}, nil
			}

			// Open first, then stat: avoids the TOCTOU race between os.Stat and
			// os.ReadFile where the file could be replaced between the two calls.
			f, err := os.Open(path)
			if err != nil {
				return tool.ToolResult{Output: fmt.Sprintf("file not found: %s", path)}, nil
			}
			defer f.Close()

			info, err := f.Stat()
			if err != nil {
				return tool.ToolResult{Output: fmt.Sprintf("stat failed: %v", err)}, nil
			}
			if info.IsDir() {
				return tool.ToolResult{Output: "path is a directory; use file_list instead"}, nil
			}
			if info.Size() > maxFileSize {
				return tool.ToolResult{Output: fmt.Sprintf("file too large (%d bytes), max %d", info.Size(), maxFileSize)}, nil
			}

			data, err := io.ReadAll(io.LimitReader(f, maxFileSize))
			if err != nil {
				return tool.ToolResult{Output: fmt.Sprintf("read failed: %v", err)}, nil
			}
			return tool.ToolResult{Success: true, Output: string(data)}, nil
		})
}

type fileWriteArgs struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// NewFileWriteTool returns the file_write tool (create or overwrite).
func NewFileWriteTool() tool.Tool {
	schema := tool.BuildSchema(
		tool.SchemaParam{Name: "path", Type: "string", Description: "File path, relative to the workspace root", Required: true},
		tool.SchemaParam{Name: "content", Type: "string", Description: "Content to write", Required: true},
	)
	return tool.NewNative("file_write", "Writes content to a file, creating or overwriting it", schema,
		func(_ context.Context, tc *tool.ToolContext, args json.RawMessage) (tool.ToolResult, error) {
			var a fileWriteArgs
			if err := json.Unmarshal(args, &a); err != nil {
				return tool.ToolResult{Output: fmt.Sprintf("bad arguments: %v", err)}, nil
			}
			if len(a.Content) > maxWriteSize {
				return tool.ToolResult{Output: fmt.Sprintf("content too large (%d bytes), max %d", len(a.Content), maxWriteSize)}, nil
			}

			path, err := pathguard.Resolve(a.Path, tc.WorkspaceRoot)
			if err != nil {
				return tool.ToolResult{Output: err.Error()}, nil
			}
			if msg := checkProtectedFile(path, tc.WorkspaceRoot); msg != "" {
				return tool.ToolResult{Output: msg}, nil
			}

			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return tool.ToolResult{Output: fmt.Sprintf("mkdir failed: %v", err)}, nil
			}
			if err := os.WriteFile(path, []byte(a.Content), 0o644); err != nil {
				return tool.ToolResult{Output: fmt.Sprintf("write failed: %v", err)}, nil
			}
			return tool.ToolResult{Success: true, Output: fmt.Sprintf("wrote %s (%d bytes)", path, len(a.Content))}, nil
		})
}

// NewFileListTool returns the file_list tool.
func NewFileListTool() tool.Tool {
	schema := tool.BuildSchema(
		tool.SchemaParam{Name: "path", Type: "string", Description: "Directory path, relative to the workspace root", Required: true},
	)
	return tool.NewNative("file_list", "Lists files and subdirectories under a directory", schema,
		func(_ context.Context, tc *tool.ToolContext, args json.RawMessage) (tool.ToolResult, error) {
			var a filePathArgs
			if err := json.Unmarshal(args, &a); err != nil {
				return tool.ToolResult{Output: fmt.Sprintf("bad arguments: %v", err)}, nil
			}

			path, err := pathguard.Resolve(a.Path, tc.WorkspaceRoot)
			if err != nil {
				return tool.ToolResult{Output: err.Error()}, nil
			}

			entries, err := os.ReadDir(path)
			if err != nil {
				return tool.ToolResult{Output: fmt.Sprintf("directory not found: %s", path)}, nil
			}

			var sb strings.Builder
			count := 0
			for _, entry := range entries {
				if count >= maxListItems {
					sb.WriteString(fmt.Sprintf("... (%d items total, showing first %d)\n", len(entries), maxListItems))
					break
				}
				info, _ := entry.Info()
				marker := "f"
				size := ""
				if entry.IsDir() {
					marker = "d"
				} else if info != nil {
					size = fmt.Sprintf(" (%d bytes)", info.Size())
				} else {
					size = " (size unknown)"
				}
				sb.WriteString(fmt.Sprintf("%s %s%s\n", marker, entry.Name(), size))
				count++
			}
			if count == 0 {
				return tool.ToolResult{Success: true, Output: "(empty directory)"}, nil
			}
			return tool.ToolResult{Success: true, Output: sb.String()}, nil
		})
}

// skipDirs names directories excluded from recursive search.
var skipDirs = map[string]bool{
	".git": true, "node_modules": true, ".idea": true, ".vscode": true,
	"vendor": true, "__pycache__": true, ".cache": true,
}

// NewFileFindTool returns the find tool (recursive filename search).
func NewFileFindTool() tool.Tool {
	schema := tool.BuildSchema(
		tool.SchemaParam{Name: "pattern", Type: "string", Description: "Search keyword or glob (e.g. 'config' or '*.go')", Required: true},
	)
	return tool.NewNative("find", "Recursively searches the workspace for matching file and directory names", schema,
		func(ctx context.Context, tc *tool.ToolContext, args json.RawMessage) (tool.ToolResult, error) {
			var a struct {
				Pattern string `json:"pattern"`
			}
			if err := json.Unmarshal(args, &a); err != nil {
				return tool.ToolResult{Output: fmt.Sprintf("bad arguments: %v", err)}, nil
			}
			pattern := strings.TrimSpace(a.Pattern)
			if pattern == "" {
				return tool.ToolResult{Output: "pattern must not be empty"}, nil
			}
			root := tc.WorkspaceRoot
			if root == "" {
				return tool.ToolResult{Output: "workspace root is not set"}, nil
			}

			var results []string
			lowerPattern := strings.ToLower(pattern)
			isGlob := strings.ContainsAny(pattern, "*?[")

			_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
				}
				if err != nil {
					return nil
				}
				if d.IsDir() && skipDirs[d.Name()] {
					return filepath.SkipDir
				}
				name := d.Name()
				var matched bool
				if isGlob {
					matched, _ = filepath.Match(lowerPattern, strings.ToLower(name))
				} else {
					matched = strings.Contains(strings.ToLower(name), lowerPattern)
				}
				if matched {
					rel, relErr := filepath.Rel(root, path)
					if relErr != nil {
						rel = path
					}
					prefix := "f "
					if d.IsDir() {
						prefix = "d "
					}
					results = append(results, prefix+rel)
					if len(results) >= maxFindResults {
						return fmt.Errorf("limit reached")
					}
				}
				return nil
			})

			if len(results) == 0 {
				return tool.ToolResult{Success: true, Output: fmt.Sprintf("no matches for %q", pattern)}, nil
			}
			var sb strings.Builder
			sb.WriteString(fmt.Sprintf("%d matches:\n", len(results)))
			for _, r := range results {
				sb.WriteString(r + "\n")
			}
			if len(results) >= maxFindResults {
				sb.WriteString(fmt.Sprintf("(truncated to %d results)\n", maxFindResults))
			}
			return tool.ToolResult{Success: true, Output: sb.String()}, nil
		})
}

// protectedFiles maps workspace-root filenames to the tool that should be
// used instead of generic file writes, preventing accidental corruption of
// files a dedicated tool maintains its own invariants over.
var protectedFiles = map[string]string{
	"mcp.json": "mcp_server_add/mcp_server_remove",
}

// checkProtectedFile returns a non-empty message if resolvedPath points at a
// protected workspace-root file that file_write/file_patch/file_delete must
// not touch directly.
func checkProtectedFile(resolvedPath, workspaceDir string) string {
	if workspaceDir == "" {
		return ""
	}
	base := filepath.Base(resolvedPath)
	dir := filepath.Dir(resolvedPath)
	absWorkspace, _ := filepath.Abs(workspaceDir)
	if dir != absWorkspace {
		return ""
	}
	if alt, ok := protectedFiles[base]; ok {
		return fmt.Sprintf("refusing to modify %s directly; use the %s tool instead", base, alt)
	}
	return ""
}

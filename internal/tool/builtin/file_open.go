package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/pocketomega/agentrt/internal/pathguard"
	"github.com/pocketomega/agentrt/internal/tool"
)

// blockedOpenExts blocks file_open from launching executables or scripts.
// file_open is for viewing media/documents, not for running payloads.
var blockedOpenExts = map[string]bool{
	".exe": true, ".com": true, ".msi": true, ".msp": true,
	".scr": true, ".pif": true,
	".bat": true, ".cmd": true,
	".ps1": true, ".ps2": true,
	".vbs": true, ".vbe": true,
	".js": true, ".jse": true,
	".wsf": true, ".wsh": true,
	".sh": true, ".bash": true, ".zsh": true,
	".jar": true,
	".py":  true, ".pyw": true,
	".rb":  true,
	".pl":  true,
	".php": true,
}

type fileOpenArgs struct {
	Path string `json:"path"`
}

// NewFileOpenTool returns the file_open tool: open a file with the OS
// default application (images, audio, video, documents). Executable and
// script extensions are refused.
func NewFileOpenTool() tool.Tool {
	schema := tool.BuildSchema(
		tool.SchemaParam{Name: "path", Type: "string", Description: "File to open, relative to the workspace root", Required: true},
	)
	return tool.NewNative("file_open", "Opens a file with the operating system's default application", schema,
		func(_ context.Context, tc *tool.ToolContext, args json.RawMessage) (tool.ToolResult, error) {
			var a fileOpenArgs
			if err := json.Unmarshal(args, &a); err != nil {
				return tool.ToolResult{Output: fmt.Sprintf("bad arguments: %v", err)}, nil
			}
			if strings.TrimSpace(a.Path) == "" {
				return tool.ToolResult{Output: "path must not be empty"}, nil
			}

			ext := strings.ToLower(filepath.Ext(a.Path))
			if blockedOpenExts[ext] {
				return tool.ToolResult{Output: fmt.Sprintf("refusing to open executable or script file (%s)", ext)}, nil
			}

			absPath, err := pathguard.Resolve(a.Path, tc.WorkspaceRoot)
			if err != nil {
				return tool.ToolResult{Output: err.Error()}, nil
			}

			info, err := os.Stat(absPath)
			if err != nil {
				if os.IsNotExist(err) {
					return tool.ToolResult{Output: fmt.Sprintf("file not found: %s", a.Path)}, nil
				}
				return tool.ToolResult{Output: fmt.Sprintf("cannot access file: %v", err)}, nil
			}
			if info.IsDir() {
				return tool.ToolResult{Output: "path is a directory; file_open only supports files"}, nil
			}

			cmd := openCmdFunc(absPath)
			if err := cmd.Start(); err != nil {
				return tool.ToolResult{Output: fmt.Sprintf("failed to launch default application: %v", err)}, nil
			}
			go func() { _ = cmd.Wait() }() // reap the child to avoid a zombie

			return tool.ToolResult{Success: true, Output: fmt.Sprintf("opened with default application: %s", relOrAbs(absPath, tc.WorkspaceRoot))}, nil
		})
}

// openCmdFunc is a package variable so tests can replace it with a no-op
// instead of popping a real GUI window.
var openCmdFunc = openCmd

// openCmd returns the "open with default application" command for the
// current OS.
func openCmd(absPath string) *exec.Cmd {
	switch runtime.GOOS {
	case "windows":
		return exec.Command("cmd", "/c", "start", "", absPath)
	case "darwin":
		return exec.Command("open", absPath)
	default:
		return exec.Command("xdg-open", absPath)
	}
}

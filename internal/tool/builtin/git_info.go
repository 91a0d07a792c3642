package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/pocketomega/agentrt/internal/tool"
)

const gitTimeout = 10 * time.Second

// allowedGitCommands is the whitelist of read-only git subcommands.
var allowedGitCommands = map[string]bool{
	"status": true, "diff": true, "log": true,
	"branch": true, "stash": true, "show": true,
}

// dangerousGitArgs are git-level write/escape parameters.
// Shell metacharacters (|;&`) are NOT listed — exec.Command doesn't use a shell,
// so they are passed as literal strings to git and pose no injection risk.
var dangerousGitArgs = []string{
	"--exec",         // code execution
	"--upload-pack",  // remote execution
	"--receive-pack", // remote execution
	"--output",       // git diff --output=file writes to disk
	"--output-directory",
	"--no-index",  // can read arbitrary files outside repo
	"--work-tree", // bypasses the workspace root constraint
	"--git-dir",   // same
}

type gitInfoArgs struct {
	Command string `json:"command"`
	Path    string `json:"path"`
	Args    string `json:"args"`
}

// isDangerousArg checks a single token against the blocklist using prefix
// matching to catch --output=file.txt, --work-tree=/foo, -ckey=val etc.
func isDangerousArg(token string) bool {
	lower := strings.ToLower(token)
	// -c can be followed directly by key=val without a separator (e.g.
	// git -chttp.sslVerify=false). Conservative: block anything starting
	// with "-c" that isn't a long option. Trade-off: blocks legitimate
	// "git log -c" (combined diff mode).
	if strings.HasPrefix(lower, "-c") && !strings.HasPrefix(lower, "--") {
		return true
	}
	for _, bad := range dangerousGitArgs {
		if lower == bad || strings.HasPrefix(lower, bad+"=") {
			return true
		}
	}
	return false
}

// splitArgs splits args by whitespace. Does not support quoted values with
// spaces — an intentional trade-off for simplicity; LLMs rarely pass
// quoted args.
func splitArgs(args string) []string {
	trimmed := strings.TrimSpace(args)
	if trimmed == "" {
		return nil
	}
	return strings.Fields(trimmed)
}

// NewGitInfoTool returns the git_info tool: safe, read-only git queries
// scoped to the session's workspace root.
func NewGitInfoTool() tool.Tool {
	schema := tool.BuildSchema(
		tool.SchemaParam{Name: "command", Type: "string", Description: "Git subcommand",
			Required: true, Enum: []string{"status", "diff", "log", "branch", "stash", "show"}},
		tool.SchemaParam{Name: "path", Type: "string", Description: "Optional: restrict to a path (e.g. internal/agent/)"},
		tool.SchemaParam{Name: "args", Type: "string", Description: "Optional: extra arguments (whitespace separated)"},
	)
	return tool.NewNative("git_info", "Read-only Git queries (status/diff/log/branch/stash/show)", schema,
		func(ctx context.Context, tc *tool.ToolContext, args json.RawMessage) (tool.ToolResult, error) {
			var a gitInfoArgs
			if err := json.Unmarshal(args, &a); err != nil {
				return tool.ToolResult{Output: fmt.Sprintf("bad arguments: %v", err)}, nil
			}

			if !allowedGitCommands[a.Command] {
				return tool.ToolResult{Output: fmt.Sprintf("unsupported command %q; allowed: status/diff/log/branch/stash/show", a.Command)}, nil
			}

			userArgs := splitArgs(a.Args)
			for _, token := range userArgs {
				if isDangerousArg(token) {
					return tool.ToolResult{Output: fmt.Sprintf("refusing argument %q", token)}, nil
				}
			}

			var cmdArgs []string
			path := strings.TrimSpace(a.Path)

			switch a.Command {
			case "status":
				if len(userArgs) > 0 {
					cmdArgs = append([]string{"status"}, userArgs...)
				} else {
					cmdArgs = []string{"status", "--short"}
				}
				if path != "" {
					cmdArgs = append(cmdArgs, "--", path)
				}

			case "diff":
				if len(userArgs) > 0 {
					cmdArgs = append([]string{"diff"}, userArgs...)
				} else {
					cmdArgs = []string{"diff", "--stat"}
				}
				if path != "" {
					cmdArgs = append(cmdArgs, "--", path)
				}

			case "log":
				if len(userArgs) > 0 {
					cmdArgs = append([]string{"log"}, userArgs...)
				} else {
					cmdArgs = []string{"log", "--oneline", "-20"}
				}
				if path != "" {
					cmdArgs = append(cmdArgs, "--", path)
				}

			case "branch":
				if len(userArgs) > 0 {
					cmdArgs = append([]string{"branch"}, userArgs...)
				} else {
					cmdArgs = []string{"branch", "-a"}
				}
				if path != "" {
					log.Printf("[git_info] branch does not support path (ignored); use args for filtering")
				}

			case "stash":
				if len(userArgs) > 0 {
					log.Printf("[git_info] stash ignores args=%v, always runs 'stash list'", userArgs)
				}
				cmdArgs = []string{"stash", "list"}

			case "show":
				if path != "" {
					log.Printf("[git_info] show does not support path (ignored); use args=\"<commit>:<path>\" instead")
				}
				cmdArgs = append([]string{"show"}, userArgs...)
			}

			ctx, cancel := context.WithTimeout(ctx, gitTimeout)
			defer cancel()

			cmd := exec.CommandContext(ctx, "git", cmdArgs...)
			cmd.Dir = tc.WorkspaceRoot
			cmd.Env = filterEnv(os.Environ())

			output, err := cmd.CombinedOutput()
			outStr := safeRuneTruncate(strings.TrimSpace(string(output)), maxOutputChars)

			if err != nil {
				if ctx.Err() == context.DeadlineExceeded {
					return tool.ToolResult{Output: fmt.Sprintf("git command timed out (%v): %s", gitTimeout, outStr)}, nil
				}
				return tool.ToolResult{Output: fmt.Sprintf("%s\ngit command error: %v", outStr, err)}, nil
			}

			return tool.ToolResult{Success: true, Output: outStr}, nil
		})
}

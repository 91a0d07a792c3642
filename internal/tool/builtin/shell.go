package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pocketomega/agentrt/internal/tool"
)

const (
	shellTimeout   = 30 * time.Second
	maxOutputChars = 8000
)

// dangerousPatterns are command substrings blocked for safety. This is a
// best-effort blocklist, not a security boundary — it guards against
// accidental damage from LLM-generated commands, not a determined attacker.
var dangerousPatterns = []string{
	"rm -rf /",
	"rm -r -f /",
	"rm --recursive",
	"rm -rf ~",
	"rm -rf $home",
	"rm -rf ${home}",
	"rm -rf -- /",
	"rm -r -f -- /",
	"mkfs",
	"dd if=",
	"shutdown",
	"reboot",
	"halt",
	"init 0",
	"init 6",
	"systemctl poweroff",
	"systemctl halt",
	"pkill -9",
	"chmod -r 000 /",
	":(){:|:&};:",
	"format c:",
	"format d:",
	"del /s /q c:\\",
	"del /s /q d:\\",
	"rd /s /q c:\\",
	"rd /s /q d:\\",
	"remove-item -recurse c:",
	"remove-item -recurse d:",
}

type shellArgs struct {
	Command string `json:"command"`
}

// NewShellTool returns the execute_command tool. Set enabled=false to
// refuse every invocation (used when the operator sets
// TOOL_SHELL_ENABLED=false).
func NewShellTool(enabled bool) tool.Tool {
	schema := tool.BuildSchema(
		tool.SchemaParam{Name: "command", Type: "string", Description: "Shell command to run", Required: true},
	)
	return tool.NewNative("execute_command", "Runs a shell command and returns its output", schema,
		func(ctx context.Context, tc *tool.ToolContext, args json.RawMessage) (tool.ToolResult, error) {
			if !enabled {
				return tool.ToolResult{Output: "execute_command is disabled"}, nil
			}

			var a shellArgs
			if err := json.Unmarshal(args, &a); err != nil {
				return tool.ToolResult{Output: fmt.Sprintf("bad arguments: %v", err)}, nil
			}
			if a.Command == "" {
				return tool.ToolResult{Output: "command must not be empty"}, nil
			}

			cmdLower := strings.ToLower(a.Command)
			for _, pattern := range dangerousPatterns {
				if strings.Contains(cmdLower, pattern) {
					return tool.ToolResult{Output: fmt.Sprintf("refusing to run command: matches blocked pattern %q", pattern)}, nil
				}
			}

			// "kill -9 1" needs a word-boundary guard: a naive substring match
			// would also block "kill -9 12345" since "kill -9 1" is a prefix of
			// it. Block only when the character after "1" ends the PID token,
			// and scan every occurrence so a compound command can't hide one
			// past the first hit.
			const killInitPattern = "kill -9 1"
			for search := cmdLower; ; {
				idx := strings.Index(search, killInitPattern)
				if idx < 0 {
					break
				}
				end := idx + len(killInitPattern)
				if end >= len(search) || !isDigitOrAlpha(search[end]) {
					return tool.ToolResult{Output: fmt.Sprintf("refusing to run command: matches blocked pattern %q", killInitPattern)}, nil
				}
				search = search[idx+1:]
			}

			ctx, cancel := context.WithTimeout(ctx, shellTimeout)
			defer cancel()

			cmd := newShellCmd(ctx, a.Command)
			if tc.WorkspaceRoot != "" {
				cmd.Dir = tc.WorkspaceRoot
			}
			cmd.Env = filterEnv(os.Environ())

			output, err := cmd.CombinedOutput()
			outStr := strings.TrimSpace(safeRuneTruncate(string(output), maxOutputChars))

			if err != nil {
				if ctx.Err() == context.DeadlineExceeded {
					return tool.ToolResult{Output: fmt.Sprintf("command timed out (%v): %s", shellTimeout, outStr)}, nil
				}
				if ctx.Err() == context.Canceled {
					return tool.ToolResult{Output: fmt.Sprintf("command cancelled: %s", outStr)}, nil
				}
				return tool.ToolResult{Output: fmt.Sprintf("%s\nexit error: %v", outStr, err)}, nil
			}
			return tool.ToolResult{Success: true, Output: outStr}, nil
		})
}

// safeRuneTruncate truncates s to maxRunes runes in a single pass,
// preserving valid UTF-8.
func safeRuneTruncate(s string, maxRunes int) string {
	count := 0
	for i := range s {
		count++
		if count > maxRunes {
			totalRunes := maxRunes + utf8.RuneCountInString(s[i:])
			return s[:i] + fmt.Sprintf("\n... (truncated, %d characters total)", totalRunes)
		}
	}
	return s
}

var sensitiveEnvSuffixes = []string{
	"_KEY", "_SECRET", "_TOKEN", "_PASSWORD", "_PASSWD",
	"_PASSPHRASE", "_CREDENTIALS", "_AUTH", "_DSN",
}

var sensitiveEnvPrefixes = []string{
	"DATABASE_URL", "REDIS_URL", "MONGO_URL",
}

// filterEnv returns env with secret-shaped variables removed before a
// child command inherits it.
func filterEnv(env []string) []string {
	filtered := make([]string, 0, len(env))
	for _, e := range env {
		parts := strings.SplitN(e, "=", 2)
		if len(parts) < 2 {
			continue
		}
		nameUpper := strings.ToUpper(parts[0])

		sensitive := false
		for _, suffix := range sensitiveEnvSuffixes {
			if strings.HasSuffix(nameUpper, suffix) {
				sensitive = true
				break
			}
		}
		if !sensitive {
			for _, prefix := range sensitiveEnvPrefixes {
				if strings.HasPrefix(nameUpper, prefix) {
					sensitive = true
					break
				}
			}
		}
		if !sensitive {
			filtered = append(filtered, e)
		}
	}
	return filtered
}

// isDigitOrAlpha reports whether b is an ASCII digit or lowercase letter.
func isDigitOrAlpha(b byte) bool {
	return (b >= '0' && b <= '9') || (b >= 'a' && b <= 'z')
}

package builtin

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"strings"
	"testing"

	"github.com/pocketomega/agentrt/internal/tool"
)

// setupTempRepo creates a temporary Git repo with user config for CI safety.
func setupTempRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", append([]string{"-C", dir}, args...)...)
		cmd.Env = os.Environ()
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v failed: %v\n%s", args, err, out)
		}
	}
	run("init")
	run("config", "user.email", "test@test.com")
	run("config", "user.name", "Test")
	run("commit", "--allow-empty", "-m", "initial commit")
	return dir
}

func execGitInfo(t *testing.T, tl tool.Tool, workspace, argsJSON string) tool.ToolResult {
	t.Helper()
	result, err := tl.Execute(context.Background(), &tool.ToolContext{WorkspaceRoot: workspace}, json.RawMessage(argsJSON))
	if err != nil {
		t.Fatalf("Execute returned Go error: %v", err)
	}
	return result
}

func TestGitInfo_Status(t *testing.T) {
	dir := setupTempRepo(t)
	tl := NewGitInfoTool()
	result := execGitInfo(t, tl, dir, `{"command":"status"}`)
	if !result.Success {
		t.Errorf("status should succeed, got: %+v", result)
	}
}

func TestGitInfo_Log(t *testing.T) {
	dir := setupTempRepo(t)
	tl := NewGitInfoTool()
	result := execGitInfo(t, tl, dir, `{"command":"log"}`)
	if !result.Success {
		t.Errorf("log failed: %+v", result)
	}
	if !strings.Contains(result.Output, "initial commit") {
		t.Errorf("log should contain 'initial commit', got: %s", result.Output)
	}
}

func TestGitInfo_Branch(t *testing.T) {
	dir := setupTempRepo(t)
	tl := NewGitInfoTool()
	result := execGitInfo(t, tl, dir, `{"command":"branch"}`)
	if !result.Success {
		t.Errorf("branch failed: %+v", result)
	}
	if !strings.Contains(result.Output, "main") && !strings.Contains(result.Output, "master") {
		t.Errorf("branch should contain 'main' or 'master', got: %s", result.Output)
	}
}

func TestGitInfo_Show(t *testing.T) {
	dir := setupTempRepo(t)
	tl := NewGitInfoTool()
	result := execGitInfo(t, tl, dir, `{"command":"show"}`)
	if !result.Success {
		t.Errorf("show failed: %+v", result)
	}
	if !strings.Contains(result.Output, "initial commit") {
		t.Errorf("show should contain commit info, got: %s", result.Output)
	}
}

func TestGitInfo_Stash(t *testing.T) {
	dir := setupTempRepo(t)
	tl := NewGitInfoTool()
	result := execGitInfo(t, tl, dir, `{"command":"stash"}`)
	if !result.Success {
		t.Errorf("stash list should succeed on clean repo, got: %+v", result)
	}
}

func TestGitInfo_DiffWithPath(t *testing.T) {
	dir := setupTempRepo(t)
	if err := os.WriteFile(dir+"/test.txt", []byte("hello\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if out, err := exec.Command("git", "-C", dir, "add", "test.txt").CombinedOutput(); err != nil {
		t.Fatalf("git add failed: %v\n%s", err, out)
	}
	if out, err := exec.Command("git", "-C", dir, "commit", "-m", "add test.txt").CombinedOutput(); err != nil {
		t.Fatalf("git commit failed: %v\n%s", err, out)
	}
	if err := os.WriteFile(dir+"/test.txt", []byte("hello\nworld\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	tl := NewGitInfoTool()
	result := execGitInfo(t, tl, dir, `{"command":"diff","path":"test.txt"}`)
	if !result.Success {
		t.Errorf("diff failed: %+v", result)
	}
	if result.Output == "" {
		t.Error("diff with path should produce output for modified file")
	}
}

func TestGitInfo_InvalidCommand(t *testing.T) {
	dir := setupTempRepo(t)
	tl := NewGitInfoTool()
	result := execGitInfo(t, tl, dir, `{"command":"push"}`)
	if result.Success {
		t.Error("push should be rejected")
	}
}

func TestGitInfo_DangerousArgs(t *testing.T) {
	dir := setupTempRepo(t)
	tl := NewGitInfoTool()
	result := execGitInfo(t, tl, dir, `{"command":"log","args":"--exec foo"}`)
	if result.Success {
		t.Error("--exec should be rejected")
	}
}

func TestGitInfo_DangerousArgsPrefix(t *testing.T) {
	dir := setupTempRepo(t)
	tl := NewGitInfoTool()

	tests := []struct {
		args string
		desc string
	}{
		{`{"command":"diff","args":"--output=file.txt"}`, "--output=value"},
		{`{"command":"diff","args":"--no-index"}`, "--no-index"},
		{`{"command":"log","args":"--work-tree=/tmp"}`, "--work-tree=value"},
		{`{"command":"log","args":"-ckey=val"}`, "-c prefix"},
	}
	for _, tc := range tests {
		result := execGitInfo(t, tl, dir, tc.args)
		if result.Success {
			t.Errorf("%s should be rejected", tc.desc)
		}
	}
}

func TestGitInfo_OutputTruncation(t *testing.T) {
	dir := setupTempRepo(t)
	run := func(args ...string) {
		cmd := exec.Command("git", append([]string{"-C", dir}, args...)...)
		cmd.Env = os.Environ()
		cmd.Run()
	}
	longMsg := strings.Repeat("x", 300)
	for i := 0; i < 27; i++ {
		run("commit", "--allow-empty", "-m", longMsg)
	}

	tl := NewGitInfoTool()
	result := execGitInfo(t, tl, dir, `{"command":"log","args":"--oneline"}`)
	if !result.Success {
		t.Errorf("log failed: %+v", result)
	}
	if !strings.Contains(result.Output, "truncated") {
		t.Errorf("output should be truncated, got %d chars", len(result.Output))
	}
}

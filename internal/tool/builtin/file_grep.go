package builtin

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pocketomega/agentrt/internal/pathguard"
	"github.com/pocketomega/agentrt/internal/tool"
)

const (
	grepTimeout         = 15 * time.Second
	grepDefaultMax      = 50
	grepHardMax         = 200
	grepMaxLineLen      = 200
	grepMaxContextLines = 3
)

type fileGrepArgs struct {
	Pattern       string `json:"pattern"`
	Path          string `json:"path"`
	CaseSensitive bool   `json:"case_sensitive"`
	FileGlob      string `json:"file_glob"`
	ContextLines  int    `json:"context_lines"`
	MaxResults    int    `json:"max_results"`
}

type grepMatch struct {
	File        string
	LineNum     int
	Line        string
	BeforeStart int
	Before      []string
	After       []string
}

// NewFileGrepTool returns the file_grep tool: regex/literal content search
// across the workspace with filename filtering and context lines.
func NewFileGrepTool() tool.Tool {
	schema := tool.BuildSchema(
		tool.SchemaParam{Name: "pattern", Type: "string", Description: "Search pattern (regex supported)", Required: true},
		tool.SchemaParam{Name: "path", Type: "string", Description: "Directory or file to search; defaults to the workspace root"},
		tool.SchemaParam{Name: "case_sensitive", Type: "boolean", Description: "Case-sensitive match (default false)"},
		tool.SchemaParam{Name: "file_glob", Type: "string", Description: "Filename filter, e.g. *.go or *.{ts,tsx}"},
		tool.SchemaParam{Name: "context_lines", Type: "integer", Description: "Lines of context before/after each match (default 0, max 3)"},
		tool.SchemaParam{Name: "max_results", Type: "integer", Description: "Maximum matches returned (default 50, max 200)"},
	)
	return tool.NewNative("file_grep", "Searches file contents in the workspace by regex or literal pattern", schema,
		func(ctx context.Context, tc *tool.ToolContext, args json.RawMessage) (tool.ToolResult, error) {
			var a fileGrepArgs
			if err := json.Unmarshal(args, &a); err != nil {
				return tool.ToolResult{Output: fmt.Sprintf("bad arguments: %v", err)}, nil
			}
			if strings.TrimSpace(a.Pattern) == "" {
				return tool.ToolResult{Output: "pattern must not be empty"}, nil
			}

			contextLines := clamp(a.ContextLines, 0, grepMaxContextLines)
			maxResults := a.MaxResults
			if maxResults <= 0 {
				maxResults = grepDefaultMax
			}
			if maxResults > grepHardMax {
				maxResults = grepHardMax
			}

			re, err := buildGrepRegexp(a.Pattern, a.CaseSensitive)
			if err != nil {
				return tool.ToolResult{Output: fmt.Sprintf("invalid regex: %v", err)}, nil
			}

			searchRoot := tc.WorkspaceRoot
			if a.Path != "" {
				resolved, err := pathguard.Resolve(a.Path, tc.WorkspaceRoot)
				if err != nil {
					return tool.ToolResult{Output: err.Error()}, nil
				}
				searchRoot = resolved
			}

			walkCtx, cancel := context.WithTimeout(ctx, grepTimeout)
			defer cancel()

			if _, err := os.Stat(searchRoot); err != nil {
				if os.IsNotExist(err) {
					return tool.ToolResult{Output: fmt.Sprintf("search path does not exist: %s", a.Path)}, nil
				}
				return tool.ToolResult{Output: fmt.Sprintf("cannot access search path: %v", err)}, nil
			}

			var matches []grepMatch
			limitReached := false

			_ = filepath.WalkDir(searchRoot, func(path string, d os.DirEntry, err error) error {
				select {
				case <-walkCtx.Done():
					return walkCtx.Err()
				default:
				}
				if err != nil {
					return nil
				}
				if d.IsDir() {
					if skipDirs[d.Name()] {
						return filepath.SkipDir
					}
					return nil
				}
				if a.FileGlob != "" {
					matched, _ := matchFileGlob(a.FileGlob, d.Name())
					if !matched {
						return nil
					}
				}
				fileMatches, err := searchInFile(walkCtx, path, re, contextLines)
				if err != nil {
					return nil
				}
				for _, m := range fileMatches {
					if len(matches) >= maxResults {
						limitReached = true
						return fmt.Errorf("limit reached")
					}
					matches = append(matches, m)
				}
				return nil
			})

			if len(matches) == 0 {
				return tool.ToolResult{Success: true, Output: "no matches found"}, nil
			}
			return tool.ToolResult{Success: true, Output: formatGrepResults(matches, tc.WorkspaceRoot, limitReached, maxResults)}, nil
		})
}

// buildGrepRegexp compiles the search pattern. Go's regexp package uses the
// RE2 engine, which guarantees linear-time execution, so ReDoS is not a
// concern here.
func buildGrepRegexp(pattern string, caseSensitive bool) (*regexp.Regexp, error) {
	prefix := "(?i)"
	if caseSensitive {
		prefix = ""
	}
	return regexp.Compile(prefix + pattern)
}

// matchFileGlob supports simple glob patterns and brace expansion like *.{ts,tsx}.
func matchFileGlob(pattern, name string) (bool, error) {
	if strings.Contains(pattern, "{") && strings.Contains(pattern, "}") {
		start := strings.Index(pattern, "{")
		end := strings.Index(pattern, "}")
		if start < end {
			prefix := pattern[:start]
			suffix := pattern[end+1:]
			for _, alt := range strings.Split(pattern[start+1:end], ",") {
				m, err := filepath.Match(prefix+strings.TrimSpace(alt)+suffix, name)
				if err != nil {
					return false, err
				}
				if m {
					return true, nil
				}
			}
			return false, nil
		}
	}
	return filepath.Match(pattern, name)
}

// searchInFile reads a file and returns all regex matches with optional
// context. Returns nil without error for binary files or files larger than
// 10MB (silently skipped).
func searchInFile(ctx context.Context, path string, re *regexp.Regexp, contextLines int) ([]grepMatch, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.Size() > 10<<20 {
		return nil, nil
	}

	sample := make([]byte, 512)
	n, err := f.Read(sample)
	if err != nil && n == 0 {
		return nil, err
	}
	if isGrepBinary(sample[:n]) {
		return nil, nil
	}
	if _, err := f.Seek(0, 0); err != nil {
		return nil, err
	}

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1<<20), 1<<20)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	var matches []grepMatch
	for i, line := range lines {
		if !re.MatchString(line) {
			continue
		}
		m := grepMatch{File: path, LineNum: i + 1, Line: truncateLine(line, grepMaxLineLen)}
		if contextLines > 0 {
			beforeStart := i - contextLines
			if beforeStart < 0 {
				beforeStart = 0
			}
			m.BeforeStart = beforeStart + 1
			for j := beforeStart; j < i; j++ {
				m.Before = append(m.Before, truncateLine(lines[j], grepMaxLineLen))
			}
			end := i + contextLines + 1
			if end > len(lines) {
				end = len(lines)
			}
			for j := i + 1; j < end; j++ {
				m.After = append(m.After, truncateLine(lines[j], grepMaxLineLen))
			}
		}
		matches = append(matches, m)
	}
	return matches, nil
}

// isGrepBinary returns true when the byte slice looks like binary content.
func isGrepBinary(data []byte) bool {
	if bytes.IndexByte(data, 0) >= 0 {
		return true
	}
	if utf8.Valid(data) {
		return false
	}
	nonPrintable := 0
	for _, b := range data {
		if b < 0x08 || (b >= 0x0E && b < 0x20 && b != 0x1B) {
			nonPrintable++
		}
	}
	return len(data) > 0 && nonPrintable*10 > len(data)
}

func truncateLine(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}

// formatGrepResults renders matches grouped by file; match lines are
// prefixed "> ", context lines with two spaces.
func formatGrepResults(matches []grepMatch, workspaceDir string, limitReached bool, maxResults int) string {
	var sb strings.Builder
	currentFile := ""
	fileCount := 0
	totalMatches := 0

	for _, m := range matches {
		relFile := m.File
		if rel, err := filepath.Rel(workspaceDir, m.File); err == nil {
			relFile = rel
		}
		if relFile != currentFile {
			if currentFile != "" {
				sb.WriteString("\n")
			}
			sb.WriteString(fmt.Sprintf("file: %s\n", relFile))
			currentFile = relFile
			fileCount++
		}
		for i, line := range m.Before {
			sb.WriteString(fmt.Sprintf("  %d:   %s\n", m.BeforeStart+i, line))
		}
		sb.WriteString(fmt.Sprintf("  %d: > %s\n", m.LineNum, m.Line))
		for i, line := range m.After {
			sb.WriteString(fmt.Sprintf("  %d:   %s\n", m.LineNum+1+i, line))
		}
		totalMatches++
	}

	suffix := ""
	if limitReached {
		suffix = fmt.Sprintf(" (capped at %d)", maxResults)
	}
	sb.WriteString(fmt.Sprintf("---\n%d files, %d matches%s", fileCount, totalMatches, suffix))
	return sb.String()
}

// clamp returns v clamped to [lo, hi].
func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

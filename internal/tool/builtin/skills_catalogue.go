package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pocketomega/agentrt/internal/tool"
)

// NewListSkillsTool returns the tool that lists every skill in the
// catalogue (spec.md §3's Skill record: name, description, path — no
// content, which stays lazy).
func NewListSkillsTool() tool.Tool {
	return tool.NewNative("list_skills", "Lists every skill in the catalogue (name, description, path)", tool.BuildSchema(),
		func(_ context.Context, tc *tool.ToolContext, _ json.RawMessage) (tool.ToolResult, error) {
			if tc.Skills == nil {
				return tool.ToolResult{Success: true, Output: "no skills catalogue is loaded"}, nil
			}
			metas := tc.Skills.List()
			if len(metas) == 0 {
				return tool.ToolResult{Success: true, Output: "no skills are loaded"}, nil
			}
			var b strings.Builder
			skills := make([]map[string]string, 0, len(metas))
			for _, m := range metas {
				fmt.Fprintf(&b, "- %s: %s\n", m.Name, m.Description)
				skills = append(skills, map[string]string{"name": m.Name, "description": m.Description, "path": m.Path})
			}
			return tool.ToolResult{Success: true, Output: strings.TrimRight(b.String(), "\n"),
				Data: map[string]any{"skills": skills}}, nil
		})
}

type getSkillArgs struct {
	Name string `json:"name"`
}

// NewGetSkillTool returns the tool that loads one skill's full content,
// triggering SkillsHandle's lazy render-and-cache on first call.
func NewGetSkillTool() tool.Tool {
	schema := tool.BuildSchema(
		tool.SchemaParam{Name: "name", Type: "string", Description: "The skill's name", Required: true},
	)
	return tool.NewNative("get_skill", "Loads the full content (parameters, usage guidance, examples) of one skill", schema,
		func(_ context.Context, tc *tool.ToolContext, args json.RawMessage) (tool.ToolResult, error) {
			var a getSkillArgs
			if err := json.Unmarshal(args, &a); err != nil {
				return tool.ToolResult{Output: fmt.Sprintf("bad arguments: %v", err)}, nil
			}
			if tc.Skills == nil {
				return tool.ToolResult{Output: "no skills catalogue is loaded"}, nil
			}
			content, err := tc.Skills.Get(a.Name)
			if err != nil {
				return tool.ToolResult{Output: err.Error()}, nil
			}
			return tool.ToolResult{Success: true, Output: content}, nil
		})
}

type searchSkillsArgs struct {
	Query string `json:"query"`
}

// NewSearchSkillsTool returns the tool that filters the catalogue by a
// case-insensitive substring match against each skill's name and
// description — a coarse keyword search, not semantic ranking.
func NewSearchSkillsTool() tool.Tool {
	schema := tool.BuildSchema(
		tool.SchemaParam{Name: "query", Type: "string", Description: "Keyword to search for in skill names and descriptions", Required: true},
	)
	return tool.NewNative("search_skills", "Searches the skills catalogue by keyword", schema,
		func(_ context.Context, tc *tool.ToolContext, args json.RawMessage) (tool.ToolResult, error) {
			var a searchSkillsArgs
			if err := json.Unmarshal(args, &a); err != nil {
				return tool.ToolResult{Output: fmt.Sprintf("bad arguments: %v", err)}, nil
			}
			if tc.Skills == nil {
				return tool.ToolResult{Success: true, Output: "no skills catalogue is loaded"}, nil
			}
			query := strings.ToLower(strings.TrimSpace(a.Query))
			var b strings.Builder
			var matches []map[string]string
			for _, m := range tc.Skills.List() {
				if query == "" || strings.Contains(strings.ToLower(m.Name), query) || strings.Contains(strings.ToLower(m.Description), query) {
					fmt.Fprintf(&b, "- %s: %s\n", m.Name, m.Description)
					matches = append(matches, map[string]string{"name": m.Name, "description": m.Description, "path": m.Path})
				}
			}
			if len(matches) == 0 {
				return tool.ToolResult{Success: true, Output: fmt.Sprintf("no skills match %q", a.Query)}, nil
			}
			return tool.ToolResult{Success: true, Output: strings.TrimRight(b.String(), "\n"),
				Data: map[string]any{"skills": matches}}, nil
		})
}

package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/pocketomega/agentrt/internal/tool"
)

type fakeSkillsHandle struct {
	metas []tool.SkillMeta
}

func (f *fakeSkillsHandle) List() []tool.SkillMeta { return f.metas }

func (f *fakeSkillsHandle) Get(name string) (string, error) {
	for _, m := range f.metas {
		if m.Name == name {
			return "# " + m.Name + "\n\n" + m.Description, nil
		}
	}
	return "", fmt.Errorf("no such skill %q", name)
}

func testSkills() *fakeSkillsHandle {
	return &fakeSkillsHandle{metas: []tool.SkillMeta{
		{Name: "git-commit", Description: "Writes conventional commit messages", Path: "skills/git-commit"},
		{Name: "pdf-extract", Description: "Extracts text from PDF files", Path: "skills/pdf-extract"},
	}}
}

func TestListSkills_ReturnsCatalogue(t *testing.T) {
	tc := &tool.ToolContext{Skills: testSkills()}
	tl := NewListSkillsTool()
	result, err := tl.Execute(context.Background(), tc, json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success || !strings.Contains(result.Output, "git-commit") || !strings.Contains(result.Output, "pdf-extract") {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestListSkills_NoCatalogue(t *testing.T) {
	tc := &tool.ToolContext{}
	tl := NewListSkillsTool()
	result, err := tl.Execute(context.Background(), tc, json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success || !strings.Contains(result.Output, "no skills catalogue") {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestGetSkill_RendersContent(t *testing.T) {
	tc := &tool.ToolContext{Skills: testSkills()}
	tl := NewGetSkillTool()
	args, _ := json.Marshal(getSkillArgs{Name: "git-commit"})
	result, err := tl.Execute(context.Background(), tc, args)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success || !strings.Contains(result.Output, "Writes conventional commit messages") {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestGetSkill_Unknown(t *testing.T) {
	tc := &tool.ToolContext{Skills: testSkills()}
	tl := NewGetSkillTool()
	args, _ := json.Marshal(getSkillArgs{Name: "nope"})
	result, err := tl.Execute(context.Background(), tc, args)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success {
		t.Fatalf("expected failure for unknown skill, got: %+v", result)
	}
}

func TestSearchSkills_MatchesByKeyword(t *testing.T) {
	tc := &tool.ToolContext{Skills: testSkills()}
	tl := NewSearchSkillsTool()
	args, _ := json.Marshal(searchSkillsArgs{Query: "PDF"})
	result, err := tl.Execute(context.Background(), tc, args)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success || !strings.Contains(result.Output, "pdf-extract") || strings.Contains(result.Output, "git-commit") {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestSearchSkills_NoMatches(t *testing.T) {
	tc := &tool.ToolContext{Skills: testSkills()}
	tl := NewSearchSkillsTool()
	args, _ := json.Marshal(searchSkillsArgs{Query: "nonexistent-topic"})
	result, err := tl.Execute(context.Background(), tc, args)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success || !strings.Contains(result.Output, "no skills match") {
		t.Fatalf("unexpected result: %+v", result)
	}
}

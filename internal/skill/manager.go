package skill

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"

	"github.com/pocketomega/agentrt/internal/tool"
)

// Manager owns the lifecycle of all workspace skill tools.
// It scans <workspaceDir>/skills/, registers tools on startup, and supports
// diff-based hot reload so newly created or modified skills take effect without restart.
//
// Manager also implements tool.SkillsHandle (spec.md §3's skills catalogue
// handle): List/Get expose the same skill.yaml definitions as
// {name, description, path} metadata plus lazily-rendered, cached doc
// content, so the system prompt builder and any tool holding a
// ToolContext can describe the catalogue without depending on package
// skill's richer executable-tool types.
//
// Concurrency: all state changes are guarded by mu.
type Manager struct {
	workspaceDir string
	mu           sync.Mutex
	skills       map[string]*SkillDef // tool name → SkillDef
	docs         map[string]string    // tool name → rendered, cached doc content
}

// NewManager creates a Manager for the given workspace directory.
// No scanning is performed until LoadAll or Reload is called.
func NewManager(workspaceDir string) *Manager {
	return &Manager{
		workspaceDir: workspaceDir,
		skills:       make(map[string]*SkillDef),
		docs:         make(map[string]string),
	}
}

// LoadAll scans the workspace skills directory and registers all valid skills.
// Go skills are compiled eagerly so build errors surface at startup rather than
// at first invocation.
//
// Returns the count of successfully loaded skills and any per-skill errors.
// Per-skill errors are non-fatal — other skills continue to load.
func (m *Manager) LoadAll(_ context.Context, registry *tool.Registry) (int, []error) {
	defs, errs := ScanDir(m.workspaceDir)

	m.mu.Lock()
	defer m.mu.Unlock()

	loaded := 0
	for _, def := range defs {
		if def.Runtime == "go" {
			if err := ensureCompiled(def); err != nil {
				errs = append(errs, fmt.Errorf("skill %q: compile: %w", def.Name, err))
				log.Printf("[Skill] Compile error: %q: %v", def.Name, err)
				continue
			}
		}
		registry.Register(NewSkillTool(def))
		m.skills[def.Name] = def
		loaded++
		log.Printf("[Skill] Loaded: %s (runtime: %s)", def.Name, def.Runtime)
	}

	return loaded, errs
}

// Reload re-scans the workspace skills directory and applies a diff:
//   - Added skills:   compiled (if Go) and registered.
//   - Removed skills: unregistered.
//   - Existing skills: re-compiled (if Go) and re-registered to pick up code changes.
//
// Returns a human-readable summary of changes. Per-skill errors are described in
// the summary but do not cause Reload to return an error — partial success is valid.
func (m *Manager) Reload(_ context.Context, registry *tool.Registry) string {
	defs, scanErrs := ScanDir(m.workspaceDir)

	// Build the new skills map, compiling Go skills as needed.
	newDefs := make(map[string]*SkillDef, len(defs))
	var warnings []string

	for _, def := range defs {
		if def.Runtime == "go" {
			// Always recompile on reload so code changes take effect.
			if err := CompileGoSkill(def.Dir); err != nil {
				warnings = append(warnings, fmt.Sprintf("[ERROR] compile %q: %v", def.Name, err))
				log.Printf("[Skill] Reload compile error: %q: %v", def.Name, err)
				m.mu.Lock()
				if old, ok := m.skills[def.Name]; ok {
					newDefs[def.Name] = old
				}
				m.mu.Unlock()
				continue // skip this skill — keep the old version if any
			}
		}
		newDefs[def.Name] = def
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Unregister skills that have been removed.
	removed := 0
	for name := range m.skills {
		if _, exists := newDefs[name]; !exists {
			registry.Unregister(name)
			delete(m.skills, name)
			delete(m.docs, name)
			removed++
			log.Printf("[Skill] Unloaded: %s", name)
		}
	}

	// Register new skills and re-register updated ones.
	added := 0
	for name, def := range newDefs {
		_, existed := m.skills[name]
		registry.Register(NewSkillTool(def))
		m.skills[name] = def
		delete(m.docs, name) // drop any cached content; re-rendered on next Get
		if !existed {
			added++
			log.Printf("[Skill] Loaded: %s (runtime: %s)", def.Name, def.Runtime)
		} else {
			log.Printf("[Skill] Reloaded: %s (runtime: %s)", def.Name, def.Runtime)
		}
	}
	updated := len(newDefs) - added

	// Compose human-readable summary.
	var parts []string
	parts = append(parts, fmt.Sprintf("Skill reload: +%d added, -%d removed, %d reloaded", added, removed, updated))
	for _, e := range scanErrs {
		parts = append(parts, fmt.Sprintf("[WARNING] %v", e))
	}
	parts = append(parts, warnings...)
	return strings.Join(parts, "\n")
}

// List returns {name, description, path} metadata for every currently
// loaded skill, satisfying tool.SkillsHandle for system-prompt injection
// (spec.md §3, §4's "one-line-per-skill summary").
func (m *Manager) List() []tool.SkillMeta {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]tool.SkillMeta, 0, len(m.skills))
	for _, def := range m.skills {
		out = append(out, tool.SkillMeta{Name: def.Name, Description: def.Description, Path: def.Dir})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Get returns the rendered doc content for a loaded skill, satisfying
// tool.SkillsHandle's lazy_content contract (spec.md §3): content is
// built from the skill's parameters and docs section on first request
// and cached thereafter.
func (m *Manager) Get(name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if content, ok := m.docs[name]; ok {
		return content, nil
	}
	def, ok := m.skills[name]
	if !ok {
		return "", fmt.Errorf("skill: no such skill %q", name)
	}
	content := renderSkillDoc(def)
	m.docs[name] = content
	return content, nil
}

// renderSkillDoc turns a SkillDef's parameters and docs section into the
// markdown content a skill catalogue entry lazily resolves to.
func renderSkillDoc(def *SkillDef) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n%s\n", def.Name, def.Description)

	if len(def.Parameters) > 0 {
		b.WriteString("\n## Parameters\n")
		for _, p := range def.Parameters {
			req := ""
			if p.Required {
				req = ", required"
			}
			fmt.Fprintf(&b, "- `%s` (%s%s): %s\n", p.Name, p.Type, req, p.Description)
		}
	}
	if len(def.Docs.WhenToUse) > 0 {
		b.WriteString("\n## When to use\n")
		for _, line := range def.Docs.WhenToUse {
			fmt.Fprintf(&b, "- %s\n", line)
		}
	}
	if len(def.Docs.WhenNotToUse) > 0 {
		b.WriteString("\n## When not to use\n")
		for _, line := range def.Docs.WhenNotToUse {
			fmt.Fprintf(&b, "- %s\n", line)
		}
	}
	if len(def.Docs.Examples) > 0 {
		b.WriteString("\n## Examples\n")
		for _, ex := range def.Docs.Examples {
			args, _ := json.Marshal(ex.Arguments)
			fmt.Fprintf(&b, "- %s: `%s`\n", ex.Scenario, args)
		}
	}
	return b.String()
}

// Package convctx owns one runtime's conversation history: message-shape
// invariants, system prompt construction, and session-file persistence
// (spec.md §4.5). Named convctx rather than context to avoid shadowing the
// standard library package every caller also needs.
package convctx

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/pocketomega/agentrt/internal/message"
	"github.com/pocketomega/agentrt/internal/prompt"
)

// SkillSummary is the one-line catalogue entry the system prompt lists for
// each available skill, per spec.md §4.5.
type SkillSummary struct {
	Name        string
	Description string
}

// Manager owns one runtime's message history. All mutators are safe for
// concurrent use; the agent loop additionally serialises whole steps with
// its own per-runtime mutex (spec.md §5), so Manager's lock only needs to
// protect individual field accesses.
type Manager struct {
	mu            sync.Mutex
	history       []message.Message
	workspaceRoot string
	skills        []SkillSummary
	loader        *prompt.PromptLoader
	autosavePath  string
}

// New creates a Manager with a freshly built system prompt at history[0].
func New(workspaceRoot string, skills []SkillSummary, loader *prompt.PromptLoader) *Manager {
	if loader == nil {
		loader = prompt.NewPromptLoader("", "", "")
	}
	m := &Manager{
		workspaceRoot: workspaceRoot,
		skills:        skills,
		loader:        loader,
	}
	m.history = []message.Message{message.System(m.buildSystemPrompt())}
	return m
}

// SetAutosavePath configures the path every mutator writes the full history
// to after it completes. A failed write is logged, never raised (spec.md §4.5).
func (m *Manager) SetAutosavePath(path string) {
	m.mu.Lock()
	m.autosavePath = path
	m.mu.Unlock()
}

// History returns a defensive copy of the current message list.
func (m *Manager) History() []message.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]message.Message, len(m.history))
	copy(out, m.history)
	return out
}

// AddUser appends a user message.
func (m *Manager) AddUser(text string) {
	m.mu.Lock()
	m.history = append(m.history, message.User(text))
	m.mu.Unlock()
	m.autosave()
}

// AddAssistant appends an already-assembled assistant message (produced by
// the stream interpreter).
func (m *Manager) AddAssistant(msg message.Message) {
	m.mu.Lock()
	m.history = append(m.history, msg)
	m.mu.Unlock()
	m.autosave()
}

// AddTool appends a tool-result message responding to callID.
func (m *Manager) AddTool(callID, text string) {
	m.mu.Lock()
	m.history = append(m.history, message.Tool(callID, text))
	m.mu.Unlock()
	m.autosave()
}

// Reset rebuilds the system prompt (so a stale working directory never
// lingers) and drops every message after it.
func (m *Manager) Reset() {
	m.mu.Lock()
	m.history = []message.Message{message.System(m.buildSystemPrompt())}
	m.mu.Unlock()
	m.autosave()
}

// Validate checks the invariants of spec.md §3/§8 against the current history.
func (m *Manager) Validate() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return message.Validate(m.history)
}

// Save writes the entire history as pretty-printed UTF-8 JSON to path,
// atomically: the history is written to a uniquely-named temp file in the
// same directory first, then renamed over path, so a crash mid-write (or
// two sessions autosaving concurrently to different temp names) never
// leaves a half-written session file behind.
func (m *Manager) Save(path string) error {
	m.mu.Lock()
	data, err := json.MarshalIndent(m.history, "", "  ")
	m.mu.Unlock()
	if err != nil {
		return fmt.Errorf("convctx: marshal history: %w", err)
	}
	tmp := path + ".tmp-" + uuid.NewString()
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("convctx: write %q: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("convctx: rename %q to %q: %w", tmp, path, err)
	}
	return nil
}

// Load reads path and replaces history[1:] with its contents, keeping the
// currently resident system prompt so prompt upgrades propagate to old
// sessions. A leading system message in the loaded file is skipped.
func (m *Manager) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("convctx: read %q: %w", path, err)
	}
	var loaded []message.Message
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("convctx: parse %q: %w", path, err)
	}
	if len(loaded) > 0 && loaded[0].Role == message.RoleSystem {
		loaded = loaded[1:]
	}

	m.mu.Lock()
	m.history = append(m.history[:1], loaded...)
	m.mu.Unlock()
	return nil
}

// buildSystemPrompt assembles the system message from the embedded L2
// prompt template, the workspace root, and a one-line-per-skill catalogue.
// Rebuilt on every Reset so the working directory it reports never goes stale.
func (m *Manager) buildSystemPrompt() string {
	var sb strings.Builder
	if body := m.loader.Load("system.md"); body != "" {
		sb.WriteString(strings.TrimRight(body, "\n"))
		sb.WriteString("\n\n")
	}
	fmt.Fprintf(&sb, "Workspace root: %s\n", m.workspaceRoot)
	if len(m.skills) > 0 {
		sb.WriteString("\nAvailable skills:\n")
		for _, s := range m.skills {
			fmt.Fprintf(&sb, "- %s: %s\n", s.Name, s.Description)
		}
	}
	return sb.String()
}

// autosave writes the history to m.autosavePath if one is configured. A
// write failure is logged, never propagated (spec.md §4.5, §7 "Silent").
func (m *Manager) autosave() {
	m.mu.Lock()
	path := m.autosavePath
	m.mu.Unlock()
	if path == "" {
		return
	}
	if err := m.Save(path); err != nil {
		log.Printf("[convctx] autosave to %q failed: %v", path, err)
	}
}

// Package session implements the per-(user, session) runtime registry
// (spec.md §4.8, component C8): creating, loading, listing, and deleting
// the file-backed sessions that back the HTTP surface's /sessions and
// /chat endpoints.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pocketomega/agentrt/internal/agent"
	convctx "github.com/pocketomega/agentrt/internal/context"
	"github.com/pocketomega/agentrt/internal/message"
	"github.com/pocketomega/agentrt/internal/tool"
)

// idPattern is the sole defence against path traversal at the HTTP
// boundary (spec.md §4.8): every session ID is validated against it before
// touching the filesystem. Filenames are built by formatting, never by
// concatenating user input beyond this token.
var idPattern = regexp.MustCompile(`^[A-Za-z0-9_\-]{1,64}$`)

// ErrInvalidSessionID is returned when a caller-supplied session ID fails
// idPattern; HTTP handlers map this to 400.
var ErrInvalidSessionID = errors.New("session: invalid session id")

// ErrNotFound is returned when a session file does not exist for the
// given user; HTTP handlers map this to 404.
var ErrNotFound = errors.New("session: not found")

// Runtime bundles every per-(user, session) collaborator: the agent loop,
// its conversation history, its tool registry and shared tool context, and
// whatever closer owns the freshly-connected MCP clients (nil when no MCP
// config is present). Close tears all of it down.
type Runtime struct {
	Agent    *agent.Runtime
	Context  *convctx.Manager
	Registry *tool.Registry
	ToolCtx  *tool.ToolContext
	closer   func()
}

// NewRuntime bundles a constructed runtime for caching by Manager. closer
// is invoked after the tool registry's own CloseAll, and may be nil.
func NewRuntime(agentRT *agent.Runtime, ctx *convctx.Manager, registry *tool.Registry, toolCtx *tool.ToolContext, closer func()) *Runtime {
	return &Runtime{Agent: agentRT, Context: ctx, Registry: registry, ToolCtx: toolCtx, closer: closer}
}

// Close releases every resource the runtime's factory acquired (tool
// init state, MCP subprocess/HTTP connections).
func (r *Runtime) Close() {
	r.Registry.CloseAll()
	if r.closer != nil {
		r.closer()
	}
}

// Factory builds a brand-new Runtime for (userID, sessionID): a fresh
// context manager, fresh tool context, fresh registry, freshly connected
// MCP clients (spec.md §4.8). The session manager calls it once per
// get_or_create/new and caches the result.
type Factory func(ctx context.Context, userID, sessionID string) (*Runtime, error)

// Info is one entry in a user's session listing.
type Info struct {
	ID     string    `json:"id"`
	MTime  time.Time `json:"mtime"`
	Active bool      `json:"active"`
}

// Manager is the single in-process (user, session) → Runtime registry
// (spec.md §5: "a single in-process map; all access is behind a mutex").
// GetOrCreate, New, Delete and CloseAll write the runtime map; New, Load
// and Delete write the active-session map.
type Manager struct {
	mu          sync.Mutex
	sessionsDir string
	factory     Factory
	runtimes    map[string]*Runtime
	active      map[string]string // userID -> active session id
}

// NewManager creates a Manager rooted at sessionsDir. sessionsDir is
// created lazily on first write.
func NewManager(sessionsDir string, factory Factory) *Manager {
	return &Manager{
		sessionsDir: sessionsDir,
		factory:     factory,
		runtimes:    make(map[string]*Runtime),
		active:      make(map[string]string),
	}
}

// Active returns the user's current active session ID, if any (spec.md
// glossary "Active session": where a /chat without an explicit session_id
// is routed).
func (m *Manager) Active(userID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.active[userID]
	return id, ok
}

func (m *Manager) key(userID, sessionID string) string {
	return userID + ":" + sessionID
}

// path returns the session file path: sessions/{user_id}_session_{session_id}.json.
// This naming pattern is the sole persistence key (spec.md §3).
func (m *Manager) path(userID, sessionID string) string {
	return filepath.Join(m.sessionsDir, fmt.Sprintf("%s_session_%s.json", userID, sessionID))
}

// GetOrCreate returns the cached runtime for (userID, sessionID), creating
// one via the factory if none is cached yet. If a session file already
// exists on disk, the runtime loads it before being returned.
func (m *Manager) GetOrCreate(ctx context.Context, userID, sessionID string) (*Runtime, error) {
	if !idPattern.MatchString(sessionID) {
		return nil, ErrInvalidSessionID
	}

	m.mu.Lock()
	if rt, ok := m.runtimes[m.key(userID, sessionID)]; ok {
		m.mu.Unlock()
		return rt, nil
	}
	m.mu.Unlock()

	rt, err := m.factory(ctx, userID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("session: build runtime for %s/%s: %w", userID, sessionID, err)
	}

	path := m.path(userID, sessionID)
	rt.Context.SetAutosavePath(path)
	if _, statErr := os.Stat(path); statErr == nil {
		if err := rt.Context.Load(path); err != nil {
			rt.Close()
			return nil, fmt.Errorf("session: load %q: %w", path, err)
		}
	}

	m.mu.Lock()
	key := m.key(userID, sessionID)
	if old, ok := m.runtimes[key]; ok {
		// Lost a race with a concurrent GetOrCreate for the same key; keep
		// the winner, tear down the runtime we just built.
		m.mu.Unlock()
		rt.Close()
		return old, nil
	}
	m.runtimes[key] = rt
	m.mu.Unlock()
	return rt, nil
}

// New generates a timestamped session ID (YYYYMMDD_HHMMSS), creates a
// fresh runtime, resets its context, writes the initial session file, and
// marks it as the user's active session.
func (m *Manager) New(ctx context.Context, userID string) (string, error) {
	sessionID := time.Now().Format("20060102_150405")

	rt, err := m.factory(ctx, userID, sessionID)
	if err != nil {
		return "", fmt.Errorf("session: build runtime for %s/%s: %w", userID, sessionID, err)
	}
	rt.Context.Reset()

	if err := os.MkdirAll(m.sessionsDir, 0o755); err != nil {
		rt.Close()
		return "", fmt.Errorf("session: create sessions dir: %w", err)
	}
	path := m.path(userID, sessionID)
	rt.Context.SetAutosavePath(path)
	if err := rt.Context.Save(path); err != nil {
		rt.Close()
		return "", fmt.Errorf("session: write initial session file: %w", err)
	}

	key := m.key(userID, sessionID)
	m.mu.Lock()
	if old, ok := m.runtimes[key]; ok {
		delete(m.runtimes, key)
		m.mu.Unlock()
		old.Close()
		m.mu.Lock()
	}
	m.runtimes[key] = rt
	m.active[userID] = sessionID
	m.mu.Unlock()
	return sessionID, nil
}

// List enumerates files matching the user's prefix on disk, returning
// {id, mtime} tuples sorted by mtime desc, each flagged Active if it is
// the user's current active session.
func (m *Manager) List(userID string) []Info {
	prefix := userID + "_session_"
	entries, err := os.ReadDir(m.sessionsDir)
	if err != nil {
		return nil
	}

	m.mu.Lock()
	active := m.active[userID]
	m.mu.Unlock()

	var out []Info
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".json") {
			continue
		}
		id := strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".json")
		if !idPattern.MatchString(id) {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, Info{ID: id, MTime: fi.ModTime(), Active: id == active})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MTime.After(out[j].MTime) })
	return out
}

// Load validates sessionID, confirms the file exists and belongs to
// userID, and returns the history tail (excluding the leading system
// prompt). It also marks the session as the user's active session.
func (m *Manager) Load(userID, sessionID string) ([]message.Message, error) {
	if !idPattern.MatchString(sessionID) {
		return nil, ErrInvalidSessionID
	}
	path := m.path(userID, sessionID)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("session: read %q: %w", path, err)
	}
	var history []message.Message
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("session: parse %q: %w", path, err)
	}
	if len(history) > 0 && history[0].Role == message.RoleSystem {
		history = history[1:]
	}

	m.mu.Lock()
	m.active[userID] = sessionID
	m.mu.Unlock()
	return history, nil
}

// Delete validates sessionID, then removes the session file and any
// cached runtime.
func (m *Manager) Delete(userID, sessionID string) error {
	if !idPattern.MatchString(sessionID) {
		return ErrInvalidSessionID
	}
	path := m.path(userID, sessionID)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("session: stat %q: %w", path, err)
	}

	key := m.key(userID, sessionID)
	m.mu.Lock()
	rt, ok := m.runtimes[key]
	if ok {
		delete(m.runtimes, key)
	}
	if m.active[userID] == sessionID {
		delete(m.active, userID)
	}
	m.mu.Unlock()
	if ok {
		rt.Close()
	}

	if err := os.Remove(path); err != nil {
		return fmt.Errorf("session: remove %q: %w", path, err)
	}
	return nil
}

// CloseAll tears down every cached runtime. Intended for process shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	runtimes := make([]*Runtime, 0, len(m.runtimes))
	for k, rt := range m.runtimes {
		runtimes = append(runtimes, rt)
		delete(m.runtimes, k)
	}
	m.mu.Unlock()
	for _, rt := range runtimes {
		rt.Close()
	}
}

// Count returns the number of cached runtimes. Used for diagnostics.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.runtimes)
}

// CloseLogger is a small helper factories can use to turn a fallible
// cleanup step (closing an MCP manager) into a logged best-effort Close.
func CloseLogger(label string, fn func() error) func() {
	return func() {
		if err := fn(); err != nil {
			log.Printf("[session] %s close: %v", label, err)
		}
	}
}

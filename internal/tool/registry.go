package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Registry manages all registered tools with thread-safe access.
//
// A Registry can be either a "root" registry (parent == nil) that owns its
// tools map, or a "view" registry (parent != nil) created by WithExtra that
// overlays additional tools on top of a parent. Views delegate Get/List to
// the parent, so changes to the parent (Register/Unregister) are immediately
// visible through the view. This matters for MCP hot-reload: the runtime
// holds a view over per-session tools while the MCP manager mutates the
// root registry underneath it.
type Registry struct {
	mu       sync.RWMutex
	tools    map[string]Tool
	schemas  map[string]*jsonschema.Schema // compiled, lazily populated
	parent   *Registry                     // non-nil -> view mode; tools map holds extras only
}

// NewRegistry creates an empty root tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:   make(map[string]Tool),
		schemas: make(map[string]*jsonschema.Schema),
	}
}

// Register adds a tool to the registry. If a tool with the same name
// already exists, it is overwritten and a warning is logged.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name()]; exists {
		log.Printf("[tool.Registry] overwriting existing tool %q", t.Name())
	}
	r.tools[t.Name()] = t
	delete(r.schemas, t.Name()) // force recompile on next dispatch
}

// Unregister removes a tool from the registry (used by MCP hot-reload).
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
	delete(r.schemas, name)
}

// Get retrieves a tool by name. View registries check extras first, then
// delegate to the parent.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	t, ok := r.tools[name]
	r.mu.RUnlock()
	if ok {
		return t, true
	}
	if r.parent != nil {
		return r.parent.Get(name)
	}
	return nil, false
}

// List returns all registered tools sorted by name. View registries merge
// parent tools with extras (extras override parent entries of the same name).
func (r *Registry) List() []Tool {
	if r.parent != nil {
		return r.listView()
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		result = append(result, t)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name() < result[j].Name()
	})
	return result
}

func (r *Registry) listView() []Tool {
	parentTools := r.parent.List()

	r.mu.RLock()
	extras := make(map[string]Tool, len(r.tools))
	for k, v := range r.tools {
		extras[k] = v
	}
	r.mu.RUnlock()

	result := make([]Tool, 0, len(parentTools)+len(extras))
	for _, t := range parentTools {
		if _, overridden := extras[t.Name()]; !overridden {
			result = append(result, t)
		}
	}
	for _, t := range extras {
		result = append(result, t)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name() < result[j].Name()
	})
	return result
}

// Catalogue builds the function-calling tool definitions sent to the LLM
// transport on every request (spec.md §6).
func (r *Registry) Catalogue() []FunctionToolDef {
	tools := r.List()
	defs := make([]FunctionToolDef, len(tools))
	for i, t := range tools {
		defs[i] = FunctionToolDef{
			Type: "function",
			Function: FunctionSpec{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.InputSchema(),
			},
		}
	}
	return defs
}

// InitAll initializes all registered tools.
func (r *Registry) InitAll(ctx context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for name, t := range r.tools {
		if err := t.Init(ctx); err != nil {
			return fmt.Errorf("init tool %q: %w", name, err)
		}
	}
	log.Printf("[tool.Registry] initialized %d tools", len(r.tools))
	return nil
}

// CloseAll closes all registered tools, logging errors but not failing.
func (r *Registry) CloseAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for name, t := range r.tools {
		if err := t.Close(); err != nil {
			log.Printf("[tool.Registry] error closing tool %s: %v", name, err)
		}
	}
}

// WithExtra returns a view of this Registry with additional tools overlaid.
// Used for per-request tool injection. Can be chained: root.WithExtra(a).
// WithExtra(b) creates a view chain where lookups check b's extras -> a's
// extras -> root's tools.
func (r *Registry) WithExtra(extras ...Tool) *Registry {
	extrasMap := make(map[string]Tool, len(extras))
	for _, t := range extras {
		extrasMap[t.Name()] = t
	}
	return &Registry{
		parent:  r,
		tools:   extrasMap,
		schemas: make(map[string]*jsonschema.Schema),
	}
}

// compiledSchema returns the compiled JSON-Schema for t, compiling and
// caching it on first use. A tool with an empty schema has no argument
// constraints and always validates.
func (r *Registry) compiledSchema(t Tool) (*jsonschema.Schema, error) {
	r.mu.RLock()
	sch, ok := r.schemas[t.Name()]
	r.mu.RUnlock()
	if ok {
		return sch, nil
	}

	raw := t.InputSchema()
	if len(raw) == 0 {
		return nil, nil
	}

	compiler := jsonschema.NewCompiler()
	url := "mem://" + t.Name() + ".json"
	if err := compiler.AddResource(url, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("tool %q: add schema resource: %w", t.Name(), err)
	}
	compiled, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("tool %q: compile schema: %w", t.Name(), err)
	}

	r.mu.Lock()
	r.schemas[t.Name()] = compiled
	r.mu.Unlock()
	return compiled, nil
}

// Dispatch implements the four-step tool-call dispatch of spec.md §4.2:
//  1. look up the tool by name, returning a failed ToolResult (not an error)
//     if it is unknown, so the agent loop can feed the failure back to the
//     model rather than aborting the run;
//  2. repair and parse the raw argument JSON per §4.7;
//  3. validate the parsed arguments against the tool's schema;
//  4. execute the handler, converting a panic into a failed ToolResult.
func (r *Registry) Dispatch(ctx context.Context, tc *ToolContext, name string, rawArgs string) (result ToolResult, err error) {
	t, ok := r.Get(name)
	if !ok {
		return ToolResult{Success: false, Output: fmt.Sprintf("unknown tool %q", name)}, nil
	}

	var parsed any
	if perr := RepairAndParse(rawArgs, &parsed); perr != nil {
		return ToolResult{Success: false, Output: fmt.Sprintf("invalid arguments for %q: %v", name, perr)}, nil
	}
	normalized, merr := json.Marshal(parsed)
	if merr != nil {
		return ToolResult{Success: false, Output: fmt.Sprintf("invalid arguments for %q: %v", name, merr)}, nil
	}

	schema, serr := r.compiledSchema(t)
	if serr != nil {
		return ToolResult{}, serr
	}
	if schema != nil {
		if verr := schema.Validate(parsed); verr != nil {
			return ToolResult{Success: false, Output: fmt.Sprintf("arguments for %q failed validation: %v", name, verr)}, nil
		}
	}

	defer func() {
		if rec := recover(); rec != nil {
			result = ToolResult{Success: false, Output: fmt.Sprintf("tool %q panicked: %v", name, rec)}
			err = nil
		}
	}()
	return t.Execute(ctx, tc, normalized)
}

package main

import (
	"context"
	"fmt"
	"log"

	"github.com/pocketomega/agentrt/internal/agent"
	convctx "github.com/pocketomega/agentrt/internal/context"
	"github.com/pocketomega/agentrt/internal/llm"
	"github.com/pocketomega/agentrt/internal/mcp"
	"github.com/pocketomega/agentrt/internal/prompt"
	"github.com/pocketomega/agentrt/internal/session"
	"github.com/pocketomega/agentrt/internal/skill"
	"github.com/pocketomega/agentrt/internal/tool"
	"github.com/pocketomega/agentrt/internal/tool/builtin"
	"github.com/pocketomega/agentrt/internal/walkthrough"
)

// runtimeConfig holds the process-wide settings every session runtime is
// built from. One value is shared across all sessions; each session still
// gets its own registry, skill manager, and (if mcp.json exists) MCP
// manager with freshly connected clients (spec.md §4.8).
type runtimeConfig struct {
	transport         llm.Transport
	workspaceDir      string
	promptLoader      *prompt.PromptLoader
	mcpConfigPath     string
	hasMCPConfig      bool
	walkthroughs      *walkthrough.Store
	shellEnabled      bool
	httpEnabled       bool
	httpAllowInternal bool
	tavilyAPIKey      string
	braveAPIKey       string
	configEditFiles   map[string]string
}

// registerStaticTools registers every builtin tool whose availability
// depends only on rtCfg, not on which session it ends up in. walkthroughKey
// scopes the walkthrough tool's pinned-note store to one session (or to a
// throwaway key when called for the startup tool-count probe).
func registerStaticTools(registry *tool.Registry, cfg runtimeConfig, walkthroughKey string) {
	registry.Register(builtin.NewShellTool(cfg.shellEnabled))
	registry.Register(builtin.NewFileReadTool())
	registry.Register(builtin.NewFileWriteTool())
	registry.Register(builtin.NewFileListTool())
	registry.Register(builtin.NewFileFindTool())
	registry.Register(builtin.NewFileGrepTool())
	registry.Register(builtin.NewFileMoveTool())
	registry.Register(builtin.NewFileOpenTool())
	registry.Register(builtin.NewFileDeleteTool())
	registry.Register(builtin.NewFilePatchTool())
	registry.Register(builtin.NewTimeTool())
	registry.Register(builtin.NewWebReaderTool())
	registry.Register(builtin.NewGitInfoTool())
	registry.Register(builtin.NewUpdateTodoListTool())
	registry.Register(builtin.NewAttemptCompletionTool())
	registry.Register(builtin.NewAskFollowupQuestionTool())
	registry.Register(builtin.NewWalkthroughTool(cfg.walkthroughs, walkthroughKey))
	registry.Register(builtin.NewMCPServerAddTool(cfg.mcpConfigPath))
	registry.Register(builtin.NewMCPServerRemoveTool(cfg.mcpConfigPath))
	registry.Register(builtin.NewMCPServerListTool(cfg.mcpConfigPath))
	registry.Register(builtin.NewSwitchModeTool())
	registry.Register(builtin.NewNewTaskTool())
	registry.Register(builtin.NewFetchInstructionsTool())
	registry.Register(builtin.NewListSkillsTool())
	registry.Register(builtin.NewGetSkillTool())
	registry.Register(builtin.NewSearchSkillsTool())
	registry.Register(builtin.NewBrowserLaunchTool())
	registry.Register(builtin.NewBrowserNavigateTool())
	registry.Register(builtin.NewBrowserReadTool())
	registry.Register(builtin.NewBrowserCloseTool())

	if cfg.httpEnabled {
		registry.Register(builtin.NewHTTPRequestTool(cfg.httpAllowInternal))
	}
	if cfg.tavilyAPIKey != "" {
		registry.Register(builtin.NewTavilySearchTool(cfg.tavilyAPIKey))
	}
	if cfg.braveAPIKey != "" {
		registry.Register(builtin.NewBraveSearchTool(cfg.braveAPIKey))
	}
	if len(cfg.configEditFiles) > 0 {
		registry.Register(builtin.NewConfigEditTool(cfg.configEditFiles))
	}
}

// newSessionFactory returns the session.Factory cfg's GetOrCreate/New calls
// use to build one session's full collaborator graph: registry, skills,
// MCP clients, conversation context, and the agent loop itself.
func newSessionFactory(cfg runtimeConfig) session.Factory {
	return func(ctx context.Context, userID, sessionID string) (*session.Runtime, error) {
		key := userID + ":" + sessionID
		registry := tool.NewRegistry()
		registerStaticTools(registry, cfg, key)

		if err := registry.InitAll(ctx); err != nil {
			return nil, fmt.Errorf("session %s: init tools: %w", key, err)
		}

		skillMgr := skill.NewManager(cfg.workspaceDir)
		if _, errs := skillMgr.LoadAll(ctx, registry); len(errs) > 0 {
			for _, e := range errs {
				log.Printf("[session %s] skill load: %v", key, e)
			}
		}
		registry.Register(skill.NewReloadTool(skillMgr, registry))

		var closer func()
		if cfg.hasMCPConfig {
			mcpMgr := mcp.NewManager(cfg.mcpConfigPath)
			mcpMgr.SetPromptLoader(cfg.promptLoader)
			mcpMgr.AddReloadHook(skillMgr.Reload)
			registry.Register(mcp.NewReloadTool(mcpMgr, registry))

			if n, errs := mcpMgr.ConnectAll(ctx); n > 0 {
				if err := mcpMgr.RegisterTools(ctx, registry); err != nil {
					log.Printf("[session %s] mcp register tools: %v", key, err)
				}
			} else {
				for _, e := range errs {
					log.Printf("[session %s] mcp connect: %v", key, e)
				}
			}
			closer = session.CloseLogger("mcp manager", func() error {
				mcpMgr.CloseAll()
				return nil
			})
		}

		skillSummaries := make([]convctx.SkillSummary, 0, len(skillMgr.List()))
		for _, s := range skillMgr.List() {
			skillSummaries = append(skillSummaries, convctx.SkillSummary{Name: s.Name, Description: s.Description})
		}
		ctxMgr := convctx.New(cfg.workspaceDir, skillSummaries, cfg.promptLoader)

		toolCtx := &tool.ToolContext{
			WorkspaceRoot: cfg.workspaceDir,
			Env:           "web",
			Skills:        skillMgr,
		}

		agentRT := agent.NewRuntime(cfg.transport, registry, ctxMgr, toolCtx)
		return session.NewRuntime(agentRT, ctxMgr, registry, toolCtx, closer), nil
	}
}

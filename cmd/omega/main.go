package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/pocketomega/agentrt/internal/config"
	"github.com/pocketomega/agentrt/internal/llm/openai"
	"github.com/pocketomega/agentrt/internal/mcp"
	"github.com/pocketomega/agentrt/internal/prompt"
	"github.com/pocketomega/agentrt/internal/runtime"
	"github.com/pocketomega/agentrt/internal/session"
	"github.com/pocketomega/agentrt/internal/tool"
	"github.com/pocketomega/agentrt/internal/walkthrough"
	"github.com/pocketomega/agentrt/internal/web"
)

func main() {
	config.LoadEnv()

	fmt.Println("╔══════════════════════════════════════╗")
	fmt.Println("║              agentrt                  ║")
	fmt.Println("║   LLM agent runtime · Go + SSE        ║")
	fmt.Println("╚══════════════════════════════════════╝")

	llmClient, err := openai.NewClientFromEnv()
	if err != nil {
		log.Fatalf("failed to initialize LLM client: %v", err)
	}
	fmt.Printf("llm: %s\n", llmClient.GetName())

	workspaceDir := os.Getenv("WORKSPACE_DIR")
	if workspaceDir == "" {
		workspaceDir, _ = os.Getwd()
	}
	if info, err := os.Stat(workspaceDir); err != nil || !info.IsDir() {
		log.Fatalf("WORKSPACE_DIR %q does not exist or is not a directory", workspaceDir)
	}
	fmt.Printf("workspace: %s\n", workspaceDir)

	nodeInfo := runtime.ProbeNodeRuntime()
	fmt.Println(nodeInfo.StatusString())

	promptsDir := os.Getenv("PROMPTS_DIR")
	if promptsDir == "" {
		promptsDir = filepath.Join(workspaceDir, "prompts")
	}
	rulesPath := os.Getenv("USER_RULES_PATH")
	if rulesPath == "" {
		rulesPath = filepath.Join(workspaceDir, "rules.md")
	}
	soulPath := os.Getenv("SOUL_PATH")
	if soulPath == "" {
		soulPath = filepath.Join(workspaceDir, "soul.md")
	}
	promptLoader := prompt.NewPromptLoader(promptsDir, rulesPath, soulPath)
	fmt.Printf("prompt loader: prompts=%s rules=%s soul=%s\n", promptsDir, rulesPath, soulPath)

	mcpConfigPath := os.Getenv("MCP_CONFIG")
	if mcpConfigPath == "" {
		mcpConfigPath = filepath.Join(workspaceDir, "mcp.json")
	}
	hasMCPConfig := false
	mcpServerCount := 0
	if _, statErr := os.Stat(mcpConfigPath); statErr == nil {
		hasMCPConfig = true
		if configs, err := mcp.LoadConfig(mcpConfigPath); err == nil {
			mcpServerCount = len(configs)
		} else {
			log.Printf("warning: mcp config %q unreadable: %v", mcpConfigPath, err)
		}
	}

	// config_edit is scoped to whatever .env file LoadEnv actually found —
	// never an arbitrary path the agent names itself.
	configEditFiles := map[string]string{}
	if envFile := config.EnvFilePath(); !strings.HasPrefix(envFile, "(not found") {
		configEditFiles["env"] = envFile
	}

	rtCfg := runtimeConfig{
		transport:         llmClient,
		workspaceDir:      workspaceDir,
		promptLoader:      promptLoader,
		mcpConfigPath:     mcpConfigPath,
		hasMCPConfig:      hasMCPConfig,
		walkthroughs:      walkthrough.NewStore(),
		shellEnabled:      os.Getenv("TOOL_SHELL_ENABLED") != "false",
		httpEnabled:       os.Getenv("TOOL_HTTP_ENABLED") != "false",
		httpAllowInternal: os.Getenv("TOOL_HTTP_ALLOW_INTERNAL") == "true",
		tavilyAPIKey:      os.Getenv("TAVILY_API_KEY"),
		braveAPIKey:       os.Getenv("BRAVE_API_KEY"),
		configEditFiles:   configEditFiles,
	}

	// A disposable registry, counted once at startup: every session's own
	// fresh registry ends up with this same static tool set (plus whatever
	// that session's skills/MCP servers add), so this count is a stable
	// stand-in for the health endpoint.
	probeRegistry := tool.NewRegistry()
	registerStaticTools(probeRegistry, rtCfg, "startup-probe")
	toolCount := len(probeRegistry.List())
	fmt.Printf("tools: %d static (+ per-session skills/MCP)\n", toolCount)
	if hasMCPConfig {
		fmt.Printf("mcp: %d server(s) configured at %s\n", mcpServerCount, mcpConfigPath)
	}

	sessionsDir := os.Getenv("SESSIONS_DIR")
	if sessionsDir == "" {
		sessionsDir = filepath.Join(workspaceDir, "sessions")
	}
	sessions := session.NewManager(sessionsDir, newSessionFactory(rtCfg))
	defer sessions.CloseAll()

	tokens := web.ParseTokenList(os.Getenv("AUTH_TOKENS"))
	if len(tokens) == 0 {
		log.Println("warning: AUTH_TOKENS is empty; every authenticated endpoint will reject all requests")
	}
	auth := web.NewTokenAuth(tokens)

	healthInfo := web.HealthInfo{
		LLMModel:       llmClient.GetName(),
		ToolCount:      toolCount,
		MCPServerCount: mcpServerCount,
		SessionCount:   sessions.Count,
	}

	server, err := web.NewServer(auth, sessions, healthInfo)
	if err != nil {
		log.Fatalf("failed to create web server: %v", err)
	}
	if err := server.Start(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

// Package mcp exposes the clarad CLI/IPC surface (§6) as MCP tools, so
// an AI host can drive the local LLM runtime supervisor the same way a
// desktop shell would.
package mcp

import (
	"context"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/clarad/clarad/internal/supervisor"
)

// Server wraps the MCP server instance.
type Server struct {
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP server with every CLI/IPC operation
// registered as a tool, backed by facade.
func NewServer(version string, facade *supervisor.Facade) *Server {
	s := server.NewMCPServer("clarad", version, server.WithLogging())
	registerTools(s, facade)
	return &Server{mcpServer: s}
}

// Start runs the server in stdio mode (blocking).
func (s *Server) Start(ctx context.Context) error {
	stdioServer := server.NewStdioServer(s.mcpServer)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// registerTools adds one tool per §6 CLI/IPC operation.
func registerTools(s *server.MCPServer, facade *supervisor.Facade) {
	h := &handlers{facade: facade}

	s.AddTool(mcp.NewTool("start",
		mcp.WithDescription("Start the swap proxy and the model it fronts, provisioning binaries and regenerating the config first unless skipConfigGeneration is set."),
		mcp.WithBoolean("skipConfigGeneration", mcp.Description("Skip config regeneration and reuse the config already on disk")),
	), h.handleStart)

	s.AddTool(mcp.NewTool("stop",
		mcp.WithDescription("Gracefully stop the swap proxy."),
	), h.handleStop)

	s.AddTool(mcp.NewTool("restart",
		mcp.WithDescription("Stop then start the swap proxy, optionally skipping config regeneration."),
		mcp.WithBoolean("skipConfigRegeneration", mcp.Description("Skip config regeneration on the way back up")),
	), h.handleRestart)

	s.AddTool(mcp.NewTool("getStatus",
		mcp.WithDescription("Return the current supervisor status without probing service health."),
	), h.handleGetStatus)

	s.AddTool(mcp.NewTool("getStatusWithHealthCheck",
		mcp.WithDescription("Return the current supervisor status, including every watchdog-monitored service's health record."),
	), h.handleGetStatusWithHealthCheck)

	s.AddTool(mcp.NewTool("getGPUDiagnostics",
		mcp.WithDescription("Return the detected platform, resolved binary set, and per-backend availability."),
	), h.handleGetGPUDiagnostics)

	s.AddTool(mcp.NewTool("getAvailableBackends",
		mcp.WithDescription("List every accelerator backend clarad knows about and whether it is available on this machine."),
	), h.handleGetAvailableBackends)

	s.AddTool(mcp.NewTool("setBackendOverride",
		mcp.WithDescription("Pin the accelerator used on the next start, or pass \"auto\" to clear the pin and resume automatic detection."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Accelerator id (cuda, rocm, vulkan, metal, cpu) or \"auto\"")),
	), h.handleSetBackendOverride)

	s.AddTool(mcp.NewTool("getModelConfigurations",
		mcp.WithDescription("Return every persisted per-model performance override, keyed by display name."),
	), h.handleGetModelConfigurations)

	s.AddTool(mcp.NewTool("saveModelConfiguration",
		mcp.WithDescription("Persist one model's performance override."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Model display name")),
		mcp.WithObject("cfg", mcp.Required(), mcp.Description("Partial PerformanceSettings fields to override for this model")),
	), h.handleSaveModelConfiguration)

	s.AddTool(mcp.NewTool("saveAllModelConfigurations",
		mcp.WithDescription("Replace the entire per-model override map."),
		mcp.WithObject("list", mcp.Required(), mcp.Description("Map of display name -> partial PerformanceSettings fields")),
	), h.handleSaveAllModelConfigurations)

	s.AddTool(mcp.NewTool("saveMmprojMappings",
		mcp.WithDescription("Replace the entire main-model -> projection mapping store."),
		mcp.WithObject("mappings", mcp.Required(), mcp.Description("Map of model path -> {projectionPath, projectionName, originIsManual}")),
	), h.handleSaveMmprojMappings)

	s.AddTool(mcp.NewTool("loadMmprojMappings",
		mcp.WithDescription("Return the persisted main-model -> projection mapping store."),
	), h.handleLoadMmprojMappings)

	s.AddTool(mcp.NewTool("forceReconfigure",
		mcp.WithDescription("Rescan models and rewrite the config without touching the proxy's running state."),
	), h.handleForceReconfigure)

	s.AddTool(mcp.NewTool("saveConfigAndRestart",
		mcp.WithDescription("Parse a hand-edited command line (as a JSON object keyed by model display name) back into per-model overrides, persist them, and restart."),
		mcp.WithObject("json", mcp.Required(), mcp.Description("Object keyed by model display name, each value a partial recognized-flag JSON document")),
	), h.handleSaveConfigAndRestart)

	s.AddTool(mcp.NewTool("runLlamaOptimizer",
		mcp.WithDescription("Apply a named performance-settings preset (balanced, max-context, max-speed) and regenerate the config."),
		mcp.WithString("preset", mcp.Required(), mcp.Description("Preset name: balanced, max-context, or max-speed")),
	), h.handleRunLlamaOptimizer)
}

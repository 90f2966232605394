package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/clarad/clarad/internal/mcp"
	"github.com/clarad/clarad/internal/supervisor"
)

// mcpCmd starts the MCP stdio server, exposing every §6 CLI/IPC
// operation as a tool.
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the Model Context Protocol (MCP) server",
	Long: `Starts a JSON-RPC server implementing the Model Context Protocol (MCP).
This allows AI agents (e.g. Claude Desktop, Cursor) to interactively
start, stop, and configure the local LLM runtime through clarad.

Communication happens over standard input/output (stdio).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		log := newLogger()
		facade := supervisor.New(facadePaths(), numCPU(), nil, desktopNotifier{log}, log.WithField("component", "supervisor"))
		go facade.Watchdog().Run(ctx)

		srv := mcp.NewServer(version, facade)
		return srv.Start(ctx)
	},
}

package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/clarad/clarad/internal/api"
	"github.com/clarad/clarad/internal/supervisor"
)

var apiPort int

// apiCmd starts the local-only HTTP control API mirroring the MCP tool
// surface, for host shells that prefer REST over stdio.
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the local-only HTTP control API",
	Long: `Starts an HTTP server bound to 127.0.0.1 exposing every §6 CLI/IPC
operation as a REST route. Never exposed beyond localhost.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		log := newLogger()
		facade := supervisor.New(facadePaths(), numCPU(), nil, desktopNotifier{log}, log.WithField("component", "supervisor"))
		go facade.Watchdog().Run(ctx)

		srv := api.NewServer(facade, log.WithField("component", "api"))
		return srv.Run(ctx, apiPort)
	},
}

func init() {
	apiCmd.Flags().IntVar(&apiPort, "port", 8099, "Port to bind the local control API to (127.0.0.1 only)")
}

package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/clarad/clarad/internal/supervisor"
)

var runSkipConfigGeneration bool

// runCmd starts the swap proxy in the foreground and keeps the
// watchdog's health-check cycle running until interrupted, for use
// under a process supervisor (systemd, launchd, a Windows service
// wrapper) rather than through MCP or the HTTP API.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the swap proxy and run the watchdog in the foreground",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		log := newLogger()
		facade := supervisor.New(facadePaths(), numCPU(), nil, desktopNotifier{log}, log.WithField("component", "supervisor"))

		res := facade.Start(ctx, runSkipConfigGeneration)
		if !res.Success {
			return fmt.Errorf("start failed: %s", res.Error)
		}
		facade.Watchdog().SignalSetupComplete()

		facade.Watchdog().Run(ctx)
		return facade.Stop(context.Background())
	},
}

func init() {
	runCmd.Flags().BoolVar(&runSkipConfigGeneration, "skip-config-generation", false, "Reuse the config already on disk instead of regenerating it")
}

// clarad — local LLM runtime supervisor.
//
// Detects the host's GPU/accelerator class, provisions the matching
// llama.cpp swap-proxy binaries, scans and classifies installed GGUF
// models, plans per-model launch flags, emits the swap-proxy config,
// and supervises the running proxy and its watched services. Exposes
// the same control surface over MCP (stdio) and a local-only HTTP API.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/clarad/clarad/internal/supervisor"
)

var version = "0.1.0"

var (
	userModelDir    string
	bundledModelDir string
	customModelDir  string
	binariesDir     string
	settingsDir     string
	configPath      string
	cpuCores        int
	verbose         bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "clarad",
		Short: "Local LLM runtime supervisor",
		Long: `clarad — single Go binary that supervises a local llama.cpp swap proxy.

Detects the host GPU/accelerator class, provisions matching binaries,
scans and classifies GGUF models, plans per-model launch flags, emits
the swap-proxy config, and watches the running proxy and any other
services that opt in. The same control surface is reachable over MCP
(stdio) for AI hosts and a local-only HTTP API for desktop shells.`,
		Version: version,
	}

	home, _ := os.UserHomeDir()
	defaultSettings := filepath.Join(home, ".clara", "settings")
	defaultModels := filepath.Join(home, ".clara", "llama-models")
	defaultBinaries := filepath.Join(home, ".clara", "bin")
	defaultConfig := filepath.Join(home, ".clara", "llama-swap-config.yaml")

	rootCmd.PersistentFlags().StringVar(&userModelDir, "user-model-dir", defaultModels, "Directory of user-installed GGUF models")
	rootCmd.PersistentFlags().StringVar(&bundledModelDir, "bundled-model-dir", filepath.Join(defaultBinaries, "bundled-models"), "Directory of bundled GGUF models")
	rootCmd.PersistentFlags().StringVar(&customModelDir, "custom-model-dir", "", "Additional user-configured model directory")
	rootCmd.PersistentFlags().StringVar(&binariesDir, "binaries-dir", defaultBinaries, "Base directory for resolved/downloaded runtime binaries")
	rootCmd.PersistentFlags().StringVar(&settingsDir, "settings-dir", defaultSettings, "Directory holding the persisted settings documents")
	rootCmd.PersistentFlags().StringVar(&configPath, "config-path", defaultConfig, "Path to the emitted swap-proxy config")
	rootCmd.PersistentFlags().IntVar(&cpuCores, "cpu-cores", 0, "Override detected CPU core count (0 = auto)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(mcpCmd, apiCmd, runCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger() *logrus.Entry {
	log := logrus.New()
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	return logrus.NewEntry(log)
}

func facadePaths() supervisor.Paths {
	return supervisor.Paths{
		UserModelDir:    userModelDir,
		BundledModelDir: bundledModelDir,
		CustomModelDir:  customModelDir,
		BinariesBaseDir: binariesDir,
		SettingsDir:     settingsDir,
		ConfigPath:      configPath,
	}
}

func numCPU() int {
	if cpuCores > 0 {
		return cpuCores
	}
	return defaultCPUCores()
}

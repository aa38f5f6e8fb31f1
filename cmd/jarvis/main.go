// Command jarvis is the entry point for the homelab control plane: a single
// process that loads one YAML config, wires the safety kernel, tool
// dispatcher, state tracker, autonomous monitor, session manager, and voice
// pipeline together, and serves the gateway's REST and websocket surface.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/homelab/jarvis/internal/observability"
)

// Build information, populated by ldflags during release builds.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := observability.NewLogger(observability.LogConfig{Level: "info", Format: "json", Output: os.Stderr})
	slog.SetDefault(logger)

	root := buildRootCmd()
	if err := root.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "jarvis",
		Short:        "Homelab automation control plane",
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "path to the YAML configuration file")

	root.AddCommand(
		buildServeCmd(),
		buildMigrateCmd(),
		buildDoctorCmd(),
		buildMonitorCmd(),
	)
	return root
}

var configPath string

func defaultConfigPath() string {
	if v := os.Getenv("JARVIS_CONFIG"); v != "" {
		return v
	}
	return "jarvis.yaml"
}

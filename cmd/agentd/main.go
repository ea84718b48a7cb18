// Package main provides the CLI entry point for agentd, the autonomous
// AI-agent execution fabric.
//
// agentd hosts the Agent Loop, Session Router, Multi-agent Orchestrator,
// Security Policy, Scheduler, and Lifecycle Supervisor behind an HTTP/
// WebSocket gateway.
//
// # Basic Usage
//
// Start the daemon:
//
//	agentd serve --config agentd.yaml
//
// Validate a configuration file without starting the server:
//
//	agentd config validate --config agentd.yaml
//
// # Environment Variables
//
//   - AGENTD_CONFIG: Path to configuration file (default: agentd.yaml)
//   - AGENTD_BEARER_TOKEN: Gateway bearer token override
//   - AGENTD_APPROVAL_TOKEN_SECRET: Approval-callback JWT signing secret override
//   - ANTHROPIC_API_KEY / OPENAI_API_KEY: Provider API key overrides
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Build information, populated by ldflags during build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
// Separated from main() to facilitate testing.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "agentd",
		Short: "agentd - autonomous AI-agent execution fabric",
		Long: `agentd hosts the reasoning loop, session router, multi-agent
orchestrator, security policy, scheduler, and lifecycle supervisor of an
autonomous AI agent behind a single HTTP/WebSocket gateway.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildServeCmd(),
		buildConfigCmd(),
	)

	return rootCmd
}

func resolveConfigPath(path string) string {
	if path != "" {
		return path
	}
	if env := os.Getenv("AGENTD_CONFIG"); env != "" {
		return env
	}
	return "agentd.yaml"
}

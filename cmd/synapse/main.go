// Package main provides the CLI entry point for Synapse, a single-agent
// runtime that exposes one conversation loop over two frontends: a
// terminal REPL and a Telegram bot, backed by a durable SQLite session
// store and an optional set of MCP tool servers.
//
// # Basic usage
//
// Start an interactive terminal session:
//
//	synapse repl
//
// Run the Telegram bot:
//
//	synapse telegram
//
// Inspect stored sessions:
//
//	synapse sessions list
//
// List the tools exposed by configured MCP servers:
//
//	synapse mcp list-tools
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Build information, populated by ldflags during release builds.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// A plain text/info bootstrap logger for anything that can fail before
	// a subcommand loads its configuration (flag parsing, unknown
	// commands). buildRuntime replaces this with the configured logger
	// (level and format from logging.*) as soon as a config is loaded.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd assembles the full command tree. Separated from main so
// tests can exercise it without touching os.Exit.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "synapse",
		Short: "Synapse - a single-agent AI runtime with REPL and Telegram frontends",
		Long: `Synapse runs one conversational agent loop against an LLM provider
(Anthropic or an OpenAI-compatible endpoint), optionally extended with
tools from MCP servers, and persists every session to SQLite.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to YAML configuration file")

	rootCmd.AddCommand(
		buildReplCmd(),
		buildTelegramCmd(),
		buildSessionsCmd(),
		buildMcpCmd(),
	)

	return rootCmd
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/synapse-run/synapse/internal/agent"
	"github.com/synapse-run/synapse/internal/config"
	"github.com/synapse-run/synapse/internal/mcp"
	"github.com/synapse-run/synapse/internal/provider"
	"github.com/synapse-run/synapse/internal/storage"
)

// runtime bundles the objects every subcommand needs, constructed once
// from the resolved configuration.
type runtime struct {
	cfg       config.Config
	store     storage.SessionStore
	mcpClient *mcp.Client
	agent     *agent.Agent
}

// buildRuntime loads configuration, opens the session store, connects any
// configured MCP servers, and wires up the agent. Callers must call
// shutdown() when done. defaultLogFormat is the handler used when the
// config file leaves logging.format unset, letting each entry point pick
// its own default (production entry points want JSON, the REPL's own
// diagnostic stream is fine as text).
func buildRuntime(ctx context.Context, configPath, defaultLogFormat string) (*runtime, error) {
	cfg, cfgErr := config.Load(configPath)
	if cfgErr != nil {
		return nil, fmt.Errorf("loading configuration: %w", cfgErr)
	}

	logger := buildLogger(cfg.Logging, defaultLogFormat)
	slog.SetDefault(logger)

	store, storeErr := storage.NewSqliteStore(ctx, cfg.Session.DatabaseURL)
	if storeErr != nil {
		return nil, fmt.Errorf("opening session store: %w", storeErr)
	}

	var mcpClient *mcp.Client
	if cfg.MCP.ConfigPath != "" {
		mcpCfg, mcpConfigErr := loadMCPConfig(cfg.MCP.ConfigPath)
		if mcpConfigErr != nil {
			logger.Warn("failed to load MCP server configuration, continuing without tools", "error", mcpConfigErr)
			mcpClient = mcp.Empty()
		} else {
			client, connErr := mcp.New(ctx, mcpCfg, logger)
			if connErr != nil {
				logger.Warn("failed to initialize MCP client, continuing without tools", "error", connErr)
				mcpClient = mcp.Empty()
			} else {
				mcpClient = client
			}
		}
	} else {
		mcpClient = mcp.Empty()
	}

	p, provErr := provider.New(provider.Config{
		Provider:  cfg.Provider,
		APIKey:    cfg.APIKey,
		Model:     cfg.Model,
		MaxTokens: cfg.MaxTokens,
	})
	if provErr != nil {
		mcpClient.Shutdown()
		_ = store.Close()
		return nil, fmt.Errorf("constructing provider: %s", provErr.Error())
	}

	ag := agent.New(p, mcpClient, cfg.SystemPrompt)

	if cfg.Session.AutoCleanup != nil && *cfg.Session.AutoCleanup {
		result, cleanupErr := store.Cleanup(ctx, storage.CleanupConfig{
			MaxSessions:   cfg.Session.MaxSessions,
			RetentionDays: cfg.Session.RetentionDays,
		})
		if cleanupErr != nil {
			logger.Warn("startup cleanup failed", "error", cleanupErr)
		} else if result.SessionsDeleted > 0 {
			logger.Info("removed stale sessions on startup",
				"deleted", result.SessionsDeleted,
				"by_retention", result.ByRetention,
				"by_max_limit", result.ByMaxLimit)
		}
	}

	return &runtime{cfg: cfg, store: store, mcpClient: mcpClient, agent: ag}, nil
}

func (r *runtime) shutdown() {
	r.agent.Shutdown()
	_ = r.store.Close()
}

// buildLogger constructs the process-wide logger from the resolved
// logging config, falling back to defaultFormat when the file left
// logging.format unset.
func buildLogger(cfg config.LoggingConfig, defaultFormat string) *slog.Logger {
	format := cfg.Format
	if format == "" {
		format = defaultFormat
	}

	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Level)}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func loadMCPConfig(path string) (mcp.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return mcp.Config{}, err
	}
	return mcp.ParseConfig(data)
}

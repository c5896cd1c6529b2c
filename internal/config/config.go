// Package config loads the YAML configuration file that shapes every
// subsystem's construction: provider selection, session storage, MCP
// server list, the Telegram frontend, and logging.
package config

import "fmt"

// Config is the top-level file shape, deserialized from YAML.
type Config struct {
	Provider         string         `yaml:"provider"`
	APIKey           string         `yaml:"api_key"`
	Model            string         `yaml:"model"`
	MaxTokens        int            `yaml:"max_tokens"`
	SystemPrompt     string         `yaml:"system_prompt"`
	SystemPromptFile string         `yaml:"system_prompt_file"`
	Session          SessionConfig  `yaml:"session"`
	MCP              MCPSettings    `yaml:"mcp"`
	Telegram         TelegramConfig `yaml:"telegram"`
	Logging          LoggingConfig  `yaml:"logging"`
}

// SessionConfig shapes the durable session store and its cleanup policy.
type SessionConfig struct {
	DatabaseURL   string `yaml:"database_url"`
	MaxSessions   int    `yaml:"max_sessions"`
	RetentionDays int    `yaml:"retention_days"`
	AutoCleanup   *bool  `yaml:"auto_cleanup"`
}

// MCPSettings points at the MCP server catalog file.
type MCPSettings struct {
	ConfigPath string `yaml:"config_path"`
}

// TelegramConfig is secure by default: an empty AllowedUsers list rejects
// every user.
type TelegramConfig struct {
	Token        string  `yaml:"token"`
	AllowedUsers []int64 `yaml:"allowed_users"`
}

// LoggingConfig shapes the process-wide slog logger. Level defaults to
// "info"; Format is left unset by default so each entry point can pick
// its own default (JSON for production entry points, text for the REPL's
// own diagnostic stream) while an explicit "text"/"json" in the file
// always wins.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Error is the configuration-loading failure taxonomy.
type Error struct {
	Path    string
	Message string
}

func (e *Error) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

func newErr(path, format string, args ...any) *Error {
	return &Error{Path: path, Message: fmt.Sprintf(format, args...)}
}

// applyDefaults fills in every field whose zero value is never a
// legitimate configured value, matching the documented default table.
func (c *Config) applyDefaults() {
	if c.Provider == "" {
		c.Provider = "deepseek"
	}
	if c.Model == "" {
		c.Model = "deepseek-chat"
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 4096
	}
	if c.Session.MaxSessions == 0 {
		c.Session.MaxSessions = 100
	}
	if c.Session.RetentionDays == 0 {
		c.Session.RetentionDays = 90
	}
	if c.Session.AutoCleanup == nil {
		autoCleanup := true
		c.Session.AutoCleanup = &autoCleanup
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

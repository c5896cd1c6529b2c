package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load resolves and parses the configuration file. Priority: explicit
// path argument, then ./synapse.yaml, then ~/.config/synapse/config.yaml.
// A missing explicit path is an error; a missing default-location file
// falls through to an empty, all-defaults configuration rather than
// failing, since every field has a sensible default.
func Load(explicitPath string) (Config, *Error) {
	path := explicitPath
	if path == "" {
		if _, err := os.Stat("synapse.yaml"); err == nil {
			path = "synapse.yaml"
		} else if home, err := os.UserHomeDir(); err == nil {
			candidate := filepath.Join(home, ".config", "synapse", "config.yaml")
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
			}
		}
	}

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, newErr(path, "failed to read config file: %s", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, newErr(path, "failed to parse config file: %s", err)
		}
	}

	cfg.applyDefaults()

	if err := resolveSystemPrompt(&cfg); err != nil {
		return Config{}, err
	}
	applyEnvOverrides(&cfg)

	return cfg, nil
}

// resolveSystemPrompt reads SystemPromptFile when SystemPrompt is unset.
// An inline value always wins; a whitespace-only file is treated as unset.
func resolveSystemPrompt(cfg *Config) *Error {
	if cfg.SystemPrompt != "" || cfg.SystemPromptFile == "" {
		return nil
	}
	data, err := os.ReadFile(cfg.SystemPromptFile)
	if err != nil {
		return newErr(cfg.SystemPromptFile, "failed to read system prompt file: %s", err)
	}
	trimmed := strings.TrimSpace(string(data))
	if trimmed != "" {
		cfg.SystemPrompt = trimmed
	}
	return nil
}

// applyEnvOverrides applies the environment variables that always beat
// the file, per the documented precedence. An empty environment value is
// treated as unset, not as an override to empty.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Session.DatabaseURL = v
	}
	if v := os.Getenv("SYNAPSE_MCP_CONFIG"); v != "" {
		cfg.MCP.ConfigPath = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.Token = v
	}
	if v := os.Getenv("SYNAPSE_ALLOWED_USERS"); v != "" {
		cfg.Telegram.AllowedUsers = parseAllowedUsers(v)
	}
}

func parseAllowedUsers(v string) []int64 {
	var ids []int64
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if id, err := strconv.ParseInt(part, 10, 64); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

package config

import "testing"

func TestApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.applyDefaults()

	if cfg.Provider != "deepseek" {
		t.Errorf("Provider = %q, want deepseek", cfg.Provider)
	}
	if cfg.Model != "deepseek-chat" {
		t.Errorf("Model = %q, want deepseek-chat", cfg.Model)
	}
	if cfg.MaxTokens != 4096 {
		t.Errorf("MaxTokens = %d, want 4096", cfg.MaxTokens)
	}
	if cfg.Session.MaxSessions != 100 {
		t.Errorf("Session.MaxSessions = %d, want 100", cfg.Session.MaxSessions)
	}
	if cfg.Session.RetentionDays != 90 {
		t.Errorf("Session.RetentionDays = %d, want 90", cfg.Session.RetentionDays)
	}
	if cfg.Session.AutoCleanup == nil || !*cfg.Session.AutoCleanup {
		t.Error("expected Session.AutoCleanup to default to true")
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want info", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "" {
		t.Errorf("Logging.Format = %q, want unset so each entry point can pick its own default", cfg.Logging.Format)
	}
}

func TestApplyDefaultsPreservesConfiguredValues(t *testing.T) {
	autoCleanup := false
	cfg := Config{
		Provider: "anthropic",
		Model:    "claude-test",
		Session:  SessionConfig{MaxSessions: 5, RetentionDays: 1, AutoCleanup: &autoCleanup},
	}
	cfg.applyDefaults()

	if cfg.Provider != "anthropic" || cfg.Model != "claude-test" {
		t.Errorf("expected configured provider/model to survive, got %+v", cfg)
	}
	if cfg.Session.MaxSessions != 5 || cfg.Session.RetentionDays != 1 {
		t.Errorf("expected configured session fields to survive, got %+v", cfg.Session)
	}
	if *cfg.Session.AutoCleanup {
		t.Error("expected an explicit false to survive applyDefaults")
	}
}

func TestErrorFormatting(t *testing.T) {
	withPath := newErr("synapse.yaml", "failed to read config file: %s", "no such file")
	if withPath.Error() != "synapse.yaml: failed to read config file: no such file" {
		t.Errorf("got %q", withPath.Error())
	}

	withoutPath := &Error{Message: "bad config"}
	if withoutPath.Error() != "bad config" {
		t.Errorf("got %q", withoutPath.Error())
	}
}

package provider

import (
	"os"
	"testing"
)

func TestNewUnknownProvider(t *testing.T) {
	_, failure := New(Config{Provider: "gpt-5000"})
	if failure == nil || failure.Kind != KindUnknownProvider {
		t.Fatalf("expected KindUnknownProvider, got %v", failure)
	}
}

func TestNewMissingAPIKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	_, failure := New(Config{Provider: "anthropic"})
	if failure == nil || failure.Kind != KindMissingAPIKey {
		t.Fatalf("expected KindMissingAPIKey, got %v", failure)
	}
}

func TestResolveAPIKeyPrefersEnvironmentOverConfigured(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "env-key")
	key, failure := resolveAPIKey("anthropic", "configured-key")
	if failure != nil {
		t.Fatalf("unexpected failure: %v", failure)
	}
	if key != "env-key" {
		t.Errorf("expected environment variable to win, got %q", key)
	}
}

func TestResolveAPIKeyFallsBackToConfiguredWhenEnvUnset(t *testing.T) {
	os.Unsetenv("DEEPSEEK_API_KEY")
	key, failure := resolveAPIKey("deepseek", "configured-key")
	if failure != nil {
		t.Fatalf("unexpected failure: %v", failure)
	}
	if key != "configured-key" {
		t.Errorf("expected configured key, got %q", key)
	}
}

func TestNewConstructsEachSupportedProvider(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "k")
	t.Setenv("OPENAI_API_KEY", "k")
	t.Setenv("DEEPSEEK_API_KEY", "k")

	for _, name := range []string{"anthropic", "openai", "deepseek"} {
		p, failure := New(Config{Provider: name, Model: "test-model"})
		if failure != nil {
			t.Fatalf("%s: unexpected failure: %v", name, failure)
		}
		if p.Name() != name {
			t.Errorf("expected provider name %q, got %q", name, p.Name())
		}
	}
}

func TestClassifyStatusCode(t *testing.T) {
	t.Run("401 with JSON error message", func(t *testing.T) {
		f := classifyStatusCode(401, `{"error":{"message":"nope"}}`)
		if f.Kind != KindAuthenticationError || f.Message != "nope" {
			t.Errorf("unexpected failure: %+v", f)
		}
	})

	t.Run("401 with unparseable body", func(t *testing.T) {
		f := classifyStatusCode(401, `not json`)
		if f.Kind != KindAuthenticationError || f.Message != "Invalid API key" {
			t.Errorf("unexpected failure: %+v", f)
		}
	})

	t.Run("non-401 non-2xx is a request failure", func(t *testing.T) {
		f := classifyStatusCode(500, "boom")
		if f.Kind != KindRequestFailed {
			t.Errorf("expected KindRequestFailed, got %v", f.Kind)
		}
	})
}

func TestExtractErrorMessage(t *testing.T) {
	cases := map[string]string{
		`{"error":{"message":"nested"}}`: "nested",
		`{"error":"flat"}`:                "flat",
		`not json at all`:                 "",
		`{}`:                              "",
	}
	for body, want := range cases {
		if got := extractErrorMessage(body); got != want {
			t.Errorf("extractErrorMessage(%q) = %q, want %q", body, got, want)
		}
	}
}

// Package provider is the uniform capability set over heterogeneous LLM
// HTTP APIs: complete, complete-with-tools, and stream, each translating
// between the neutral message model and a vendor-specific wire format.
package provider

import (
	"context"
	"encoding/json"
	"os"

	"github.com/synapse-run/synapse/internal/message"
)

// DefaultMaxTokens is the minimum sensible completion budget when a caller
// supplies no override.
const DefaultMaxTokens = 1024

// Provider is the capability set every adapter implements.
type Provider interface {
	// Complete returns a single assistant message for the given
	// conversation, with no tools advertised to the model.
	Complete(ctx context.Context, messages []message.Message) (message.Message, *Failure)

	// CompleteWithTools behaves like Complete but advertises toolDefs to
	// the model. An empty toolDefs behaves identically to Complete.
	CompleteWithTools(ctx context.Context, messages []message.Message, toolDefs []message.ToolDefinition) (message.Message, *Failure)

	// Stream yields StreamEvents for the given conversation. The returned
	// channel is closed after exactly one terminal event (Done or Error).
	Stream(ctx context.Context, messages []message.Message) <-chan StreamEvent

	// Name returns the provider's configured name (e.g. "anthropic").
	Name() string
}

// EventKind discriminates StreamEvent payloads.
type EventKind int

const (
	EventTextDelta EventKind = iota
	EventDone
	EventError
)

// StreamEvent is a single item from a Provider's Stream. Go has no
// tagged-union type, so Kind discriminates which of the payload fields is
// meaningful; use the constructors below rather than building one by hand.
type StreamEvent struct {
	Kind EventKind
	Text string
	Err  *Failure
}

// TextDelta builds a non-terminal text-delta event. text must be non-empty;
// callers MUST NOT emit an empty delta (see component design: "text deltas
// are guaranteed non-empty").
func TextDelta(text string) StreamEvent {
	return StreamEvent{Kind: EventTextDelta, Text: text}
}

// Done builds the terminal success event.
func Done() StreamEvent {
	return StreamEvent{Kind: EventDone}
}

// ErrorEvent builds the terminal failure event.
func ErrorEvent(f *Failure) StreamEvent {
	return StreamEvent{Kind: EventError, Err: f}
}

// Config is the factory input: the subset of application configuration the
// provider layer consumes.
type Config struct {
	Provider  string
	Model     string
	APIKey    string
	MaxTokens int
}

// envVarFor returns the environment variable name consulted for a given
// provider's credential, matching the per-provider naming the component
// design calls for.
func envVarFor(providerName string) string {
	switch providerName {
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	case "openai":
		return "OPENAI_API_KEY"
	case "deepseek":
		return "DEEPSEEK_API_KEY"
	default:
		return ""
	}
}

// resolveAPIKey applies the documented precedence: a non-empty environment
// variable wins over the configured key; an empty environment variable is
// treated as unset, not as an override to empty.
func resolveAPIKey(providerName, configured string) (string, *Failure) {
	envVar := envVarFor(providerName)
	if envVar != "" {
		if v := os.Getenv(envVar); v != "" {
			return v, nil
		}
	}
	if configured != "" {
		return configured, nil
	}
	return "", NewMissingAPIKey("Set " + envVar + " environment variable or add api_key to config")
}

// New constructs the provider adapter named by cfg.Provider. Supported names
// are exactly "anthropic", "openai", and "deepseek" (§4.1.4); any other name
// fails with KindUnknownProvider.
func New(cfg Config) (Provider, *Failure) {
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	switch cfg.Provider {
	case "anthropic":
		apiKey, f := resolveAPIKey(cfg.Provider, cfg.APIKey)
		if f != nil {
			return nil, f
		}
		return newAnthropicProvider(apiKey, cfg.Model, maxTokens), nil
	case "openai":
		apiKey, f := resolveAPIKey(cfg.Provider, cfg.APIKey)
		if f != nil {
			return nil, f
		}
		return newOpenAICompatProvider("openai", "https://api.openai.com/v1", apiKey, cfg.Model, maxTokens), nil
	case "deepseek":
		apiKey, f := resolveAPIKey(cfg.Provider, cfg.APIKey)
		if f != nil {
			return nil, f
		}
		return newOpenAICompatProvider("deepseek", "https://api.deepseek.com/v1", apiKey, cfg.Model, maxTokens), nil
	default:
		return nil, NewUnknownProvider(cfg.Provider)
	}
}

// extractErrorMessage pulls a human-readable message out of a JSON error
// body of the shape {"error": {"message": "..."}} or {"error": "..."},
// falling back to empty when the body isn't JSON-shaped that way.
func extractErrorMessage(body string) string {
	var withObject struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal([]byte(body), &withObject); err == nil && withObject.Error.Message != "" {
		return withObject.Error.Message
	}
	var withString struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal([]byte(body), &withString); err == nil && withString.Error != "" {
		return withString.Error
	}
	return ""
}

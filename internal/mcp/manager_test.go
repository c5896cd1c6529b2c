package mcp

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

func TestHasConstraints(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want bool
	}{
		{"empty object", `{}`, false},
		{"only type", `{"type":"object"}`, false},
		{"with properties", `{"type":"object","properties":{"q":{"type":"string"}}}`, true},
		{"with required", `{"type":"object","required":["q"]}`, true},
		{"invalid json", `not json`, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := hasConstraints(json.RawMessage(c.raw)); got != c.want {
				t.Errorf("hasConstraints(%s) = %v, want %v", c.raw, got, c.want)
			}
		})
	}
}

func TestCompileSchemaSkipsTrivialSchemas(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if s := compileSchema("noop", json.RawMessage(`{"type":"object"}`), logger); s != nil {
		t.Error("expected a nil schema for a trivial input_schema")
	}
}

func TestCompileSchemaSkipsInvalidSchemaButDoesNotPanic(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	raw := json.RawMessage(`{"type":"object","properties":{"q":"not-a-schema"}}`)
	if s := compileSchema("broken", raw, logger); s != nil {
		t.Error("expected a nil schema when compilation fails")
	}
}

func TestEmptyClientHasNoTools(t *testing.T) {
	c := Empty()
	if c.HasTools() {
		t.Error("expected Empty() client to report no tools")
	}
	if len(c.ToolDefinitions()) != 0 {
		t.Error("expected Empty() client to have no tool definitions")
	}
}

func TestCallToolUnknownToolName(t *testing.T) {
	c := Empty()
	_, err := c.CallTool(context.Background(), "does-not-exist", json.RawMessage(`{}`))
	if err == nil || err.Kind != KindToolError {
		t.Fatalf("expected KindToolError, got %v", err)
	}
}

func TestCallToolValidatesAgainstCompiledSchema(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	schema := json.RawMessage(`{"type":"object","properties":{"q":{"type":"string"}},"required":["q"]}`)
	c := &Client{
		servers:  map[string]*serverClient{"srv": {name: "srv"}},
		registry: map[string]string{"search": "srv"},
		schemas:  map[string]*jsonschema.Schema{"search": nil},
	}
	c.schemas["search"] = compileSchema("search", schema, logger)

	_, err := c.CallTool(context.Background(), "search", json.RawMessage(`{}`))
	if err == nil || err.Kind != KindToolError {
		t.Fatalf("expected a validation failure for missing required field, got %v", err)
	}
}

func TestParseConfig(t *testing.T) {
	data := []byte(`{"mcpServers":{"fs":{"command":"mcp-fs","args":["--root","/tmp"]}}}`)
	cfg, err := ParseConfig(data)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	srv, ok := cfg.McpServers["fs"]
	if !ok {
		t.Fatal("expected 'fs' server entry")
	}
	if srv.Command != "mcp-fs" || len(srv.Args) != 2 {
		t.Errorf("unexpected server config: %+v", srv)
	}
}

func TestParseConfigRejectsInvalidJSON(t *testing.T) {
	if _, err := ParseConfig([]byte("not json")); err == nil {
		t.Fatal("expected a parse error")
	}
}

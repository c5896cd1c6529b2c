package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"
)

// TestMain lets this binary double as the fake MCP server it tests
// against: when re-executed with GO_WANT_HELPER_PROCESS=1 it runs the
// helper server loop instead of the test suite. This avoids depending on
// any external interpreter being present on the test machine.
func TestMain(m *testing.M) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") == "1" {
		runHelperMCPServer()
		os.Exit(0)
	}
	os.Exit(m.Run())
}

// runHelperMCPServer speaks just enough MCP over stdio to exercise the
// client: initialize, notifications/initialized, tools/list (one "echo"
// tool), and tools/call (echoes its "text" argument back).
func runHelperMCPServer() {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var req map[string]json.RawMessage
		if err := json.Unmarshal(line, &req); err != nil {
			continue
		}
		var method string
		_ = json.Unmarshal(req["method"], &method)

		// Notifications carry no "id"; nothing to reply to.
		if _, hasID := req["id"]; !hasID {
			continue
		}
		var id int64
		_ = json.Unmarshal(req["id"], &id)

		switch method {
		case "initialize":
			writeHelperResponse(id, json.RawMessage(`{"protocolVersion":"2024-11-05"}`))
		case "tools/list":
			writeHelperResponse(id, json.RawMessage(`{"tools":[{"name":"echo","description":"echoes input","inputSchema":{"type":"object","properties":{"text":{"type":"string"}},"required":["text"]}}]}`))
		case "tools/call":
			var params struct {
				Arguments map[string]any `json:"arguments"`
			}
			_ = json.Unmarshal(req["params"], &params)
			text, _ := params.Arguments["text"].(string)
			result := fmt.Sprintf(`{"content":[{"type":"text","text":%q}]}`, text)
			writeHelperResponse(id, json.RawMessage(result))
		}
	}
}

func writeHelperResponse(id int64, result json.RawMessage) {
	resp := map[string]any{"jsonrpc": "2.0", "id": id, "result": result}
	data, _ := json.Marshal(resp)
	fmt.Fprintln(os.Stdout, string(data))
}

func helperServerConfig() ServerConfig {
	return ServerConfig{
		Command: os.Args[0],
		Args:    []string{"-test.run=^TestMain$"},
		Env:     map[string]string{"GO_WANT_HELPER_PROCESS": "1"},
	}
}

func TestConnectServerDiscoversTools(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, defs, err := connectServer(ctx, "echo-server", helperServerConfig())
	if err != nil {
		t.Fatalf("unexpected connection error: %v", err)
	}
	defer client.shutdown()

	if len(defs) != 1 || defs[0].Name != "echo" {
		t.Fatalf("expected exactly one 'echo' tool, got %+v", defs)
	}
}

func TestServerClientCallToolJoinsTextBlocks(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, _, err := connectServer(ctx, "echo-server", helperServerConfig())
	if err != nil {
		t.Fatalf("unexpected connection error: %v", err)
	}
	defer client.shutdown()

	result, callErr := client.callTool(ctx, "echo", json.RawMessage(`{"text":"hello"}`))
	if callErr != nil {
		t.Fatalf("unexpected call error: %v", callErr)
	}
	if result != "hello" {
		t.Errorf("got %q, want %q", result, "hello")
	}
}

func TestNewLogsAndSkipsServersThatFailToStart(t *testing.T) {
	cfg := Config{McpServers: map[string]ServerConfig{
		"broken": {Command: "/nonexistent/binary/that/does/not/exist"},
	}}
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	client, err := New(context.Background(), cfg, logger)
	if err != nil {
		t.Fatalf("New should not fail construction when a server fails to start: %v", err)
	}
	if client.HasTools() {
		t.Error("expected no tools discovered from a broken server")
	}
}

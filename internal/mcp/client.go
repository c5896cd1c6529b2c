package mcp

import (
	"context"
	"encoding/json"
	"strings"
)

// serverClient wraps a connected stdio transport with the MCP methods a
// tool server must support: initialize, tools/list, tools/call.
type serverClient struct {
	name      string
	transport *stdioTransport
}

type initializeParams struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ClientInfo      clientInfo     `json:"clientInfo"`
}

type clientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

const mcpProtocolVersion = "2024-11-05"

type listToolsResult struct {
	Tools []rawTool `json:"tools"`
}

type rawTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

type callToolParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

type callToolResult struct {
	Content []toolContentBlock `json:"content"`
	IsError bool               `json:"isError,omitempty"`
}

type toolContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

func connectServer(ctx context.Context, name string, config ServerConfig) (*serverClient, []ToolDefinition, *Error) {
	transport, err := startStdioTransport(ctx, config)
	if err != nil {
		return nil, nil, newConnectionError(name, "failed to spawn process: %s", err)
	}

	client := &serverClient{name: name, transport: transport}

	if _, err := transport.call(ctx, "initialize", initializeParams{
		ProtocolVersion: mcpProtocolVersion,
		Capabilities:    map[string]any{},
		ClientInfo:      clientInfo{Name: "synapse", Version: "0.1.0"},
	}); err != nil {
		transport.close()
		return nil, nil, newConnectionError(name, "failed to connect: %s", err)
	}
	if err := transport.notify("notifications/initialized", nil); err != nil {
		transport.close()
		return nil, nil, newConnectionError(name, "failed to connect: %s", err)
	}

	result, err := transport.call(ctx, "tools/list", map[string]any{})
	if err != nil {
		transport.close()
		return nil, nil, newConnectionError(name, "failed to list tools: %s", err)
	}
	var parsed listToolsResult
	if err := json.Unmarshal(result, &parsed); err != nil {
		transport.close()
		return nil, nil, newConnectionError(name, "failed to list tools: %s", err)
	}

	defs := make([]ToolDefinition, 0, len(parsed.Tools))
	for _, t := range parsed.Tools {
		schema := t.InputSchema
		if len(schema) == 0 {
			schema = json.RawMessage("{}")
		}
		defs = append(defs, ToolDefinition{Name: t.Name, Description: t.Description, InputSchema: schema})
	}

	return client, defs, nil
}

// callTool invokes a named tool with a JSON-object input and returns its
// text content blocks joined by newlines.
func (c *serverClient) callTool(ctx context.Context, name string, input json.RawMessage) (string, *Error) {
	var args map[string]any
	if len(input) > 0 {
		_ = json.Unmarshal(input, &args)
	}

	result, err := c.transport.call(ctx, "tools/call", callToolParams{Name: name, Arguments: args})
	if err != nil {
		return "", newToolError("tool call failed: %s", err)
	}

	var parsed callToolResult
	if err := json.Unmarshal(result, &parsed); err != nil {
		return "", newToolError("tool call failed: %s", err)
	}

	var parts []string
	for _, block := range parsed.Content {
		if block.Type == "text" {
			parts = append(parts, block.Text)
		}
	}
	return strings.Join(parts, "\n"), nil
}

func (c *serverClient) shutdown() {
	c.transport.close()
}

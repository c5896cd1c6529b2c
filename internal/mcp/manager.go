package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/synapse-run/synapse/internal/message"
)

// Client manages connections to zero or more MCP tool servers and presents
// a single flat tool catalog. It is read-only after construction: the tool
// registry never changes, so lookups need no lock.
type Client struct {
	servers  map[string]*serverClient
	registry map[string]string // tool name -> server name
	schemas  map[string]*jsonschema.Schema
	toolDefs []ToolDefinition
}

// New spawns a child process for every configured server, connects via
// stdio, and discovers its tools. A server that fails to start or
// enumerate is logged and skipped; construction still succeeds.
func New(ctx context.Context, config Config, logger *slog.Logger) (*Client, *Error) {
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		servers:  make(map[string]*serverClient),
		registry: make(map[string]string),
		schemas:  make(map[string]*jsonschema.Schema),
	}

	for name, serverConfig := range config.McpServers {
		client, defs, err := connectServer(ctx, name, serverConfig)
		if err != nil {
			logger.Warn("mcp server failed to start", "server", name, "error", err)
			continue
		}
		c.servers[name] = client
		for _, d := range defs {
			c.registry[d.Name] = name
			c.schemas[d.Name] = compileSchema(d.Name, d.InputSchema, logger)
			c.toolDefs = append(c.toolDefs, d)
		}
	}

	return c, nil
}

// Empty returns a client with no servers, for callers that run with no
// tools configured.
func Empty() *Client {
	return &Client{
		servers:  make(map[string]*serverClient),
		registry: make(map[string]string),
		schemas:  make(map[string]*jsonschema.Schema),
	}
}

func compileSchema(name string, raw json.RawMessage, logger *slog.Logger) *jsonschema.Schema {
	if !hasConstraints(raw) {
		return nil
	}
	compiler := jsonschema.NewCompiler()
	url := "mem://" + name + ".json"
	if err := compiler.AddResource(url, bytes.NewReader(raw)); err != nil {
		logger.Warn("mcp tool schema invalid, skipping validation", "tool", name, "error", err)
		return nil
	}
	schema, err := compiler.Compile(url)
	if err != nil {
		logger.Warn("mcp tool schema failed to compile, skipping validation", "tool", name, "error", err)
		return nil
	}
	return schema
}

// hasConstraints reports whether the schema is non-trivial enough to be
// worth validating against: it declares "properties" or "required".
func hasConstraints(raw json.RawMessage) bool {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return false
	}
	_, hasProps := obj["properties"]
	_, hasRequired := obj["required"]
	return hasProps || hasRequired
}

// ToolDefinitions returns every discovered tool in provider-neutral form.
func (c *Client) ToolDefinitions() []message.ToolDefinition {
	defs := make([]message.ToolDefinition, 0, len(c.toolDefs))
	for _, d := range c.toolDefs {
		defs = append(defs, message.ToolDefinition{Name: d.Name, Description: d.Description, InputSchema: d.InputSchema})
	}
	return defs
}

// HasTools reports whether any tool was discovered across all servers.
func (c *Client) HasTools() bool {
	return len(c.toolDefs) > 0
}

// CallTool routes a call to the server that registered name, validating
// the input against its schema first when one was compiled.
func (c *Client) CallTool(ctx context.Context, name string, input json.RawMessage) (string, *Error) {
	serverName, ok := c.registry[name]
	if !ok {
		return "", newToolError("unknown tool: %s", name)
	}
	server, ok := c.servers[serverName]
	if !ok {
		return "", newToolError("server '%s' not connected", serverName)
	}

	if schema, ok := c.schemas[name]; ok && schema != nil {
		var v any
		if err := json.Unmarshal(input, &v); err != nil {
			return "", newToolError("tool call failed: invalid JSON input: %s", err)
		}
		if err := schema.Validate(v); err != nil {
			return "", newToolError("tool call failed: %s", err)
		}
	}

	return server.callTool(ctx, name, input)
}

// Shutdown tears down every connected server concurrently. Errors are
// discarded: teardown is best-effort.
func (c *Client) Shutdown() {
	var wg sync.WaitGroup
	for _, server := range c.servers {
		wg.Add(1)
		go func(s *serverClient) {
			defer wg.Done()
			s.shutdown()
		}(server)
	}
	wg.Wait()
}

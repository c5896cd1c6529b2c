// Package agent implements the detect-execute-return tool-call loop that
// drives a conversation across many provider round-trips, optionally
// invoking external tools through an MCP client.
package agent

import (
	"context"
	"encoding/json"

	"github.com/synapse-run/synapse/internal/mcp"
	"github.com/synapse-run/synapse/internal/message"
	"github.com/synapse-run/synapse/internal/provider"
)

// maxIterations bounds the tool-call loop so a misbehaving model (or tool)
// cannot spin the agent forever.
const maxIterations = 10

// toolExecutor is the subset of *mcp.Client the agent depends on, narrowed
// to ease substituting a fake in tests.
type toolExecutor interface {
	ToolDefinitions() []message.ToolDefinition
	HasTools() bool
	CallTool(ctx context.Context, name string, input json.RawMessage) (string, *mcp.Error)
	Shutdown()
}

// Agent coordinates an LLM provider and an optional MCP client. Once
// constructed, its fields are never mutated, so it is safe for concurrent
// use by reference across concurrent turns without a lock.
type Agent struct {
	provider            provider.Provider
	mcpClient           toolExecutor
	defaultSystemPrompt string
}

// New constructs an agent. mcpClient may be nil, meaning no tools are
// available. defaultSystemPrompt is the process-wide fallback system
// message used when a session carries none of its own.
func New(p provider.Provider, mcpClient toolExecutor, defaultSystemPrompt string) *Agent {
	return &Agent{provider: p, mcpClient: mcpClient, defaultSystemPrompt: defaultSystemPrompt}
}

// BuildMessages prepends the effective system prompt ahead of history: a
// session-level prompt beats the process-wide default, which beats having
// none at all.
func (a *Agent) BuildMessages(sessionSystemPrompt string, history []message.Message) []message.Message {
	prompt := a.defaultSystemPrompt
	if sessionSystemPrompt != "" {
		prompt = sessionSystemPrompt
	}
	if prompt == "" {
		return history
	}
	out := make([]message.Message, 0, len(history)+1)
	out = append(out, message.NewSystem(prompt))
	out = append(out, history...)
	return out
}

func (a *Agent) toolDefinitions() []message.ToolDefinition {
	if a.mcpClient == nil || !a.mcpClient.HasTools() {
		return nil
	}
	return a.mcpClient.ToolDefinitions()
}

// Complete drives the tool-call loop to a terminal assistant text message,
// extending messages in place with every intermediate assistant/tool
// round-trip. Fails with KindMaxIterationsExceeded if the model keeps
// requesting tools past the iteration bound.
func (a *Agent) Complete(ctx context.Context, messages *[]message.Message) (message.Message, *Error) {
	tools := a.toolDefinitions()

	for i := 0; i < maxIterations; i++ {
		var response message.Message
		var failure *provider.Failure
		if len(tools) == 0 {
			response, failure = a.provider.Complete(ctx, *messages)
		} else {
			response, failure = a.provider.CompleteWithTools(ctx, *messages, tools)
		}
		if failure != nil {
			return message.Message{}, newProviderErr(failure)
		}

		if !response.HasToolCalls() {
			return response, nil
		}

		*messages = append(*messages, response)
		for _, call := range response.ToolCalls {
			result := a.executeTool(ctx, call.Name, call.Input)
			*messages = append(*messages, message.NewToolResult(call.ID, result))
		}
	}

	return message.Message{}, errMaxIterationsExceeded
}

// executeTool routes a single call through the MCP client, collapsing any
// failure into an "Error: "-prefixed string the model can see and react to.
func (a *Agent) executeTool(ctx context.Context, name string, input json.RawMessage) string {
	if a.mcpClient == nil {
		return "Error: no MCP client available"
	}
	result, err := a.mcpClient.CallTool(ctx, name, input)
	if err != nil {
		return "Error: " + err.Error()
	}
	return result
}

// Stream yields StreamEvents for the conversation. With no tools
// registered it forwards the provider's stream directly. With tools, it
// runs the full Complete loop internally (tool iterations are never
// streamed) and emits the final content as a single TextDelta plus Done.
func (a *Agent) Stream(ctx context.Context, messages *[]message.Message) <-chan StreamEvent {
	tools := a.toolDefinitions()

	out := make(chan StreamEvent)
	if len(tools) == 0 {
		go func() {
			defer close(out)
			for ev := range a.provider.Stream(ctx, *messages) {
				out <- fromProviderEvent(ev)
			}
		}()
		return out
	}

	go func() {
		defer close(out)
		response, err := a.Complete(ctx, messages)
		if err != nil {
			out <- StreamEvent{Kind: EventError, Err: err}
			return
		}
		if response.Content != "" {
			out <- StreamEvent{Kind: EventTextDelta, Text: response.Content}
		}
		out <- StreamEvent{Kind: EventDone}
	}()
	return out
}

// StreamOwned behaves like Stream but takes ownership of the message
// slice, so a caller doesn't need to keep it addressable across the
// lifetime of the returned channel.
func (a *Agent) StreamOwned(ctx context.Context, messages []message.Message) <-chan StreamEvent {
	return a.Stream(ctx, &messages)
}

// Shutdown tears down the MCP client, if one is present.
func (a *Agent) Shutdown() {
	if a.mcpClient != nil {
		a.mcpClient.Shutdown()
	}
}

// EventKind mirrors provider.EventKind at the agent boundary so callers
// don't need to import provider just to read a stream.
type EventKind int

const (
	EventTextDelta EventKind = iota
	EventDone
	EventError
)

// StreamEvent is the agent-level counterpart to provider.StreamEvent, with
// Err typed as *agent.Error instead of *provider.Failure.
type StreamEvent struct {
	Kind EventKind
	Text string
	Err  *Error
}

func fromProviderEvent(ev provider.StreamEvent) StreamEvent {
	switch ev.Kind {
	case provider.EventTextDelta:
		return StreamEvent{Kind: EventTextDelta, Text: ev.Text}
	case provider.EventDone:
		return StreamEvent{Kind: EventDone}
	default:
		return StreamEvent{Kind: EventError, Err: newProviderErr(ev.Err)}
	}
}

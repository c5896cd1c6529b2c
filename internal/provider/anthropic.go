package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/synapse-run/synapse/internal/message"
)

const (
	anthropicVersion = "2023-06-01"
	anthropicEndpoint = "https://api.anthropic.com/v1/messages"
)

type anthropicProvider struct {
	client    *http.Client
	apiKey    string
	model     string
	maxTokens int
}

func newAnthropicProvider(apiKey, model string, maxTokens int) *anthropicProvider {
	return &anthropicProvider{client: http.DefaultClient, apiKey: apiKey, model: model, maxTokens: maxTokens}
}

func (p *anthropicProvider) Name() string { return "anthropic" }

// anthropicContentBlock covers the three block shapes the Messages API uses:
// text, tool_use (request side), and tool_result (request side). A single
// struct with optional fields mirrors the original's approach of one block
// type discriminated by "type" rather than three separate wire shapes.
type anthropicContentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
}

// anthropicContent is either a plain string or a block array; MarshalJSON
// picks whichever was populated.
type anthropicContent struct {
	text   string
	blocks []anthropicContentBlock
	isText bool
}

func textContent(s string) anthropicContent {
	return anthropicContent{text: s, isText: true}
}

func blockContent(blocks []anthropicContentBlock) anthropicContent {
	return anthropicContent{blocks: blocks}
}

func (c anthropicContent) MarshalJSON() ([]byte, error) {
	if c.isText {
		return json.Marshal(c.text)
	}
	return json.Marshal(c.blocks)
}

type anthropicAPIMessage struct {
	Role    string           `json:"role"`
	Content anthropicContent `json:"content"`
}

type anthropicTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema"`
}

type anthropicAPIRequest struct {
	Model     string                `json:"model"`
	MaxTokens int                   `json:"max_tokens"`
	Messages  []anthropicAPIMessage `json:"messages"`
	System    string                `json:"system,omitempty"`
	Tools     []anthropicTool       `json:"tools,omitempty"`
}

type anthropicAPIResponse struct {
	Content []anthropicContentBlock `json:"content"`
}

// buildAnthropicMessages translates the neutral sequence, dropping System
// messages (handled separately by extractSystem) and synthesizing Tool
// messages as user-role tool_result blocks.
func buildAnthropicMessages(messages []message.Message) []anthropicAPIMessage {
	out := make([]anthropicAPIMessage, 0, len(messages))
	for _, m := range messages {
		switch {
		case m.Role == message.RoleSystem:
			continue
		case m.Role == message.RoleTool:
			out = append(out, anthropicAPIMessage{
				Role: "user",
				Content: blockContent([]anthropicContentBlock{{
					Type:      "tool_result",
					ToolUseID: m.ToolCallID,
					Content:   m.Content,
				}}),
			})
		case m.Role == message.RoleAssistant && len(m.ToolCalls) > 0:
			var blocks []anthropicContentBlock
			if m.Content != "" {
				blocks = append(blocks, anthropicContentBlock{Type: "text", Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				blocks = append(blocks, anthropicContentBlock{
					Type:  "tool_use",
					ID:    tc.ID,
					Name:  tc.Name,
					Input: tc.Input,
				})
			}
			out = append(out, anthropicAPIMessage{Role: "assistant", Content: blockContent(blocks)})
		default:
			role := "user"
			if m.Role == message.RoleAssistant {
				role = "assistant"
			}
			out = append(out, anthropicAPIMessage{Role: role, Content: textContent(m.Content)})
		}
	}
	return out
}

// extractSystem concatenates every System message's content, joined by a
// blank line, into the single top-level `system` field Anthropic expects.
// Returns "" when there are no System messages.
func extractSystem(messages []message.Message) string {
	var parts []string
	for _, m := range messages {
		if m.Role == message.RoleSystem {
			parts = append(parts, m.Content)
		}
	}
	return strings.Join(parts, "\n\n")
}

func (p *anthropicProvider) Complete(ctx context.Context, messages []message.Message) (message.Message, *Failure) {
	req := anthropicAPIRequest{
		Model:     p.model,
		MaxTokens: p.maxTokens,
		Messages:  buildAnthropicMessages(messages),
		System:    extractSystem(messages),
	}
	return p.sendRequest(ctx, &req)
}

func (p *anthropicProvider) CompleteWithTools(ctx context.Context, messages []message.Message, toolDefs []message.ToolDefinition) (message.Message, *Failure) {
	var tools []anthropicTool
	for _, d := range toolDefs {
		tools = append(tools, anthropicTool{Name: d.Name, Description: d.Description, InputSchema: d.InputSchema})
	}
	req := anthropicAPIRequest{
		Model:     p.model,
		MaxTokens: p.maxTokens,
		Messages:  buildAnthropicMessages(messages),
		System:    extractSystem(messages),
		Tools:     tools,
	}
	return p.sendRequest(ctx, &req)
}

func (p *anthropicProvider) sendRequest(ctx context.Context, req *anthropicAPIRequest) (message.Message, *Failure) {
	body, err := json.Marshal(req)
	if err != nil {
		return message.Message{}, NewProviderError(fmt.Sprintf("failed to encode request: %s", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, anthropicEndpoint, bytes.NewReader(body))
	if err != nil {
		return message.Message{}, NewRequestFailed(err.Error())
	}
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)
	httpReq.Header.Set("content-type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return message.Message{}, NewRequestFailed(err.Error())
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return message.Message{}, NewRequestFailed(err.Error())
	}

	if resp.StatusCode != http.StatusOK {
		return message.Message{}, classifyStatusCode(resp.StatusCode, string(respBody))
	}

	var parsed anthropicAPIResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return message.Message{}, NewProviderError(fmt.Sprintf("failed to parse response: %s", err))
	}

	var calls []message.ToolCall
	var textParts []string
	for _, block := range parsed.Content {
		switch block.Type {
		case "tool_use":
			if block.ID == "" || block.Name == "" {
				continue
			}
			input := block.Input
			if len(input) == 0 {
				input = json.RawMessage("{}")
			}
			calls = append(calls, message.ToolCall{ID: block.ID, Name: block.Name, Input: input})
		case "text":
			textParts = append(textParts, block.Text)
		}
	}

	content := strings.Join(textParts, "")
	if len(calls) > 0 {
		return message.NewAssistantWithToolCalls(content, calls), nil
	}
	return message.NewAssistant(content), nil
}

// Stream is a documented compatibility shim: it performs a non-streaming
// Complete internally and emits a single TextDelta (when the content is
// non-empty) followed by Done. See component design §4.1.2.
func (p *anthropicProvider) Stream(ctx context.Context, messages []message.Message) <-chan StreamEvent {
	out := make(chan StreamEvent, 2)
	go func() {
		defer close(out)
		msg, failure := p.Complete(ctx, messages)
		if failure != nil {
			out <- ErrorEvent(failure)
			return
		}
		if msg.Content != "" {
			out <- TextDelta(msg.Content)
		}
		out <- Done()
	}()
	return out
}

package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/synapse-run/synapse/internal/message"
)

// sseDoneMarker is the SSE sentinel OpenAI-compatible streaming APIs send
// to signal completion. It MUST be checked before attempting JSON parsing.
const sseDoneMarker = "[DONE]"

// openAICompatProvider is the shared adapter for every vendor speaking the
// OpenAI Chat Completions wire format ("openai" and "deepseek" — they
// differ only in base URL and credential).
type openAICompatProvider struct {
	name      string
	client    *http.Client
	baseURL   string
	apiKey    string
	model     string
	maxTokens int
}

func newOpenAICompatProvider(name, baseURL, apiKey, model string, maxTokens int) *openAICompatProvider {
	return &openAICompatProvider{
		name:      name,
		client:    http.DefaultClient,
		baseURL:   baseURL,
		apiKey:    apiKey,
		model:     model,
		maxTokens: maxTokens,
	}
}

func (p *openAICompatProvider) Name() string { return p.name }

// apiMessage is one message in the request body.
type apiMessage struct {
	Role       string        `json:"role"`
	Content    *string       `json:"content,omitempty"`
	ToolCalls  []oaiToolCall `json:"tool_calls,omitempty"`
	ToolCallID string        `json:"tool_call_id,omitempty"`
}

type oaiTool struct {
	Type     string      `json:"type"`
	Function oaiFunction `json:"function"`
}

type oaiFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters"`
}

type oaiToolCall struct {
	ID       string          `json:"id"`
	Type     string          `json:"type"`
	Function oaiToolCallFunc `json:"function"`
}

type oaiToolCallFunc struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type apiRequest struct {
	Model      string          `json:"model"`
	Messages   []apiMessage    `json:"messages"`
	MaxTokens  int             `json:"max_tokens"`
	Tools      []oaiTool       `json:"tools,omitempty"`
	ToolChoice string          `json:"tool_choice,omitempty"`
	Stream     bool            `json:"stream,omitempty"`
}

type apiResponse struct {
	Choices []struct {
		Message struct {
			Content   *string       `json:"content"`
			ToolCalls []oaiToolCall `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
}

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content *string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// buildAPIMessages translates the neutral sequence into OpenAI-compatible
// wire messages: roles map one-to-one, tool calls serialize with
// stringified JSON arguments, content is always present.
func buildAPIMessages(messages []message.Message) []apiMessage {
	out := make([]apiMessage, 0, len(messages))
	for _, m := range messages {
		content := m.Content
		am := apiMessage{
			Role:       string(m.Role),
			Content:    &content,
			ToolCallID: m.ToolCallID,
		}
		if len(m.ToolCalls) > 0 {
			calls := make([]oaiToolCall, 0, len(m.ToolCalls))
			for _, tc := range m.ToolCalls {
				calls = append(calls, oaiToolCall{
					ID:   tc.ID,
					Type: "function",
					Function: oaiToolCallFunc{
						Name:      tc.Name,
						Arguments: string(tc.Input),
					},
				})
			}
			am.ToolCalls = calls
		}
		out = append(out, am)
	}
	return out
}

// toOAITools returns nil when defs is empty, so the request can omit the
// "tools" field entirely rather than serializing an empty array.
func toOAITools(defs []message.ToolDefinition) []oaiTool {
	if len(defs) == 0 {
		return nil
	}
	tools := make([]oaiTool, 0, len(defs))
	for _, d := range defs {
		tools = append(tools, oaiTool{
			Type: "function",
			Function: oaiFunction{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  d.InputSchema,
			},
		})
	}
	return tools
}

func (p *openAICompatProvider) Complete(ctx context.Context, messages []message.Message) (message.Message, *Failure) {
	return p.completeRequest(ctx, messages, nil)
}

func (p *openAICompatProvider) CompleteWithTools(ctx context.Context, messages []message.Message, toolDefs []message.ToolDefinition) (message.Message, *Failure) {
	return p.completeRequest(ctx, messages, toolDefs)
}

func (p *openAICompatProvider) completeRequest(ctx context.Context, messages []message.Message, toolDefs []message.ToolDefinition) (message.Message, *Failure) {
	tools := toOAITools(toolDefs)
	req := apiRequest{
		Model:     p.model,
		Messages:  buildAPIMessages(messages),
		MaxTokens: p.maxTokens,
		Tools:     tools,
	}
	if len(tools) > 0 {
		req.ToolChoice = "auto"
	}

	body, err := json.Marshal(req)
	if err != nil {
		return message.Message{}, NewProviderError(fmt.Sprintf("failed to encode request: %s", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return message.Message{}, NewRequestFailed(err.Error())
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

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

	var parsed apiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return message.Message{}, NewProviderError(fmt.Sprintf("failed to parse response: %s", err))
	}
	if len(parsed.Choices) == 0 {
		return message.Message{}, NewProviderError("no choices in response")
	}

	choice := parsed.Choices[0]
	content := ""
	if choice.Message.Content != nil {
		content = *choice.Message.Content
	}

	var calls []message.ToolCall
	for _, tc := range choice.Message.ToolCalls {
		input := json.RawMessage(tc.Function.Arguments)
		if !json.Valid(input) {
			input = json.RawMessage("{}")
		}
		calls = append(calls, message.ToolCall{ID: tc.ID, Name: tc.Function.Name, Input: input})
	}

	if len(calls) > 0 {
		return message.NewAssistantWithToolCalls(content, calls), nil
	}
	return message.NewAssistant(content), nil
}

func (p *openAICompatProvider) Stream(ctx context.Context, messages []message.Message) <-chan StreamEvent {
	out := make(chan StreamEvent)
	go p.streamSSE(ctx, messages, out)
	return out
}

func (p *openAICompatProvider) streamSSE(ctx context.Context, messages []message.Message, out chan<- StreamEvent) {
	defer close(out)

	req := apiRequest{
		Model:     p.model,
		Messages:  buildAPIMessages(messages),
		MaxTokens: p.maxTokens,
		Stream:    true,
	}
	body, err := json.Marshal(req)
	if err != nil {
		out <- ErrorEvent(NewProviderError(fmt.Sprintf("failed to encode request: %s", err)))
		return
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		out <- ErrorEvent(NewRequestFailed(err.Error()))
		return
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		out <- ErrorEvent(NewRequestFailed(err.Error()))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		out <- ErrorEvent(classifyStatusCode(resp.StatusCode, string(respBody)))
		return
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			data, ok = strings.CutPrefix(line, "data:")
			if !ok {
				continue
			}
		}
		data = strings.TrimSpace(data)
		if data == "" {
			continue
		}
		if data == sseDoneMarker {
			out <- Done()
			return
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			out <- ErrorEvent(NewProviderError(fmt.Sprintf("failed to parse SSE: %s", err)))
			return
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		content := chunk.Choices[0].Delta.Content
		if content != nil && *content != "" {
			out <- TextDelta(*content)
		}
	}

	// Stream ended without [DONE] — still signal completion.
	out <- Done()
}

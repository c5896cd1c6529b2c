package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/synapse-run/synapse/internal/message"
)

func newTestOpenAICompatProvider(t *testing.T, handler http.HandlerFunc) (*openAICompatProvider, func()) {
	t.Helper()
	server := httptest.NewServer(handler)
	p := newOpenAICompatProvider("openai", server.URL, "test-key", "gpt-test", 1024)
	return p, server.Close
}

func TestOpenAICompatComplete(t *testing.T) {
	p, closeServer := newTestOpenAICompatProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("missing bearer auth header, got %q", got)
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"hello there"}}]}`))
	})
	defer closeServer()

	reply, failure := p.Complete(context.Background(), []message.Message{message.NewUser("hi")})
	if failure != nil {
		t.Fatalf("unexpected failure: %v", failure)
	}
	if reply.Content != "hello there" {
		t.Errorf("got content %q", reply.Content)
	}
	if reply.HasToolCalls() {
		t.Error("expected no tool calls")
	}
}

func TestOpenAICompatCompleteWithToolCalls(t *testing.T) {
	p, closeServer := newTestOpenAICompatProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"content":null,"tool_calls":[
			{"id":"call_1","type":"function","function":{"name":"search","arguments":"{\"q\":\"go\"}"}}
		]}}]}`))
	})
	defer closeServer()

	defs := []message.ToolDefinition{{Name: "search", InputSchema: json.RawMessage(`{"type":"object"}`)}}
	reply, failure := p.CompleteWithTools(context.Background(), []message.Message{message.NewUser("find it")}, defs)
	if failure != nil {
		t.Fatalf("unexpected failure: %v", failure)
	}
	if !reply.HasToolCalls() {
		t.Fatal("expected a tool call")
	}
	if reply.ToolCalls[0].Name != "search" || reply.ToolCalls[0].ID != "call_1" {
		t.Errorf("unexpected tool call: %+v", reply.ToolCalls[0])
	}
}

func TestOpenAICompatCompleteMalformedArgumentsDefaultToEmptyObject(t *testing.T) {
	p, closeServer := newTestOpenAICompatProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"content":null,"tool_calls":[
			{"id":"call_1","type":"function","function":{"name":"search","arguments":"not json"}}
		]}}]}`))
	})
	defer closeServer()

	reply, failure := p.CompleteWithTools(context.Background(), []message.Message{message.NewUser("x")}, nil)
	if failure != nil {
		t.Fatalf("unexpected failure: %v", failure)
	}
	if string(reply.ToolCalls[0].Input) != "{}" {
		t.Errorf("expected malformed arguments to fall back to {}, got %q", reply.ToolCalls[0].Input)
	}
}

func TestOpenAICompatCompleteUnauthorized(t *testing.T) {
	p, closeServer := newTestOpenAICompatProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"bad key"}}`))
	})
	defer closeServer()

	_, failure := p.Complete(context.Background(), []message.Message{message.NewUser("hi")})
	if failure == nil {
		t.Fatal("expected a failure")
	}
	if failure.Kind != KindAuthenticationError {
		t.Errorf("expected KindAuthenticationError, got %v", failure.Kind)
	}
	if failure.Message != "bad key" {
		t.Errorf("expected extracted error message, got %q", failure.Message)
	}
}

func TestOpenAICompatStreamEmitsDeltasThenDone(t *testing.T) {
	p, closeServer := newTestOpenAICompatProvider(t, func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"hel\"}}]}\n\n"))
		flusher.Flush()
		w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\n\n"))
		flusher.Flush()
		w.Write([]byte("data: [DONE]\n\n"))
		flusher.Flush()
	})
	defer closeServer()

	var texts []string
	var sawDone bool
	for ev := range p.Stream(context.Background(), []message.Message{message.NewUser("hi")}) {
		switch ev.Kind {
		case EventTextDelta:
			texts = append(texts, ev.Text)
		case EventDone:
			sawDone = true
		case EventError:
			t.Fatalf("unexpected error event: %v", ev.Err)
		}
	}
	if !sawDone {
		t.Error("expected a terminal Done event")
	}
	if len(texts) != 2 || texts[0] != "hel" || texts[1] != "lo" {
		t.Errorf("unexpected text deltas: %v", texts)
	}
}

func TestOpenAICompatStreamWithoutDoneStillTerminates(t *testing.T) {
	p, closeServer := newTestOpenAICompatProvider(t, func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"hi\"}}]}\n\n"))
		flusher.Flush()
	})
	defer closeServer()

	var sawDone bool
	for ev := range p.Stream(context.Background(), []message.Message{message.NewUser("hi")}) {
		if ev.Kind == EventDone {
			sawDone = true
		}
	}
	if !sawDone {
		t.Error("expected Done even though the server never sent [DONE]")
	}
}

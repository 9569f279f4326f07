package modelhttp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"aster/internal/engine/ports"
	xerrors "aster/internal/errors"
)

func newTestClient(url string) *Client {
	return New(Config{BaseURL: url, APIKey: "test-key", Model: "test-model"}, nil)
}

func TestCompleteTextResponse(t *testing.T) {
	var seen wireRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("authorization header = %q", got)
		}
		_ = json.NewDecoder(r.Body).Decode(&seen)
		_, _ = w.Write([]byte(`{
			"choices": [{"message": {"role": "assistant", "content": "hello"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 3, "total_tokens": 15}
		}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	resp, err := client.Complete(context.Background(), ports.CompletionRequest{
		Messages: []ports.Message{{Role: "user", Content: "hi"}},
		Tools:    []ports.ToolDefinition{{Name: "read_file"}},
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if resp.Content != "hello" || resp.StopReason != "stop" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Usage.TotalTokens != 15 {
		t.Fatalf("usage = %+v", resp.Usage)
	}

	if seen.Model != "test-model" {
		t.Errorf("request model = %q", seen.Model)
	}
	if len(seen.Tools) != 1 || seen.Tools[0].Function.Name != "read_file" {
		t.Errorf("tools not forwarded: %+v", seen.Tools)
	}
}

func TestCompleteToolCallResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{
			"choices": [{
				"message": {
					"role": "assistant",
					"tool_calls": [{
						"id": "call_1", "type": "function",
						"function": {"name": "read_file", "arguments": "{\"path\": \"a.txt\"}"}
					}]
				},
				"finish_reason": "tool_calls"
			}]
		}`))
	}))
	defer server.Close()

	resp, err := newTestClient(server.URL).Complete(context.Background(), ports.CompletionRequest{})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if len(resp.ToolCalls) != 1 {
		t.Fatalf("expected one tool call, got %d", len(resp.ToolCalls))
	}
	call := resp.ToolCalls[0]
	if call.ID != "call_1" || call.Name != "read_file" {
		t.Fatalf("unexpected call: %+v", call)
	}
	if call.Arguments["path"] != "a.txt" {
		t.Fatalf("arguments = %+v", call.Arguments)
	}
}

func TestCompleteServerErrorsAreTransient(t *testing.T) {
	for _, status := range []int{http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(status)
		}))
		_, err := newTestClient(server.URL).Complete(context.Background(), ports.CompletionRequest{})
		server.Close()
		if !xerrors.IsTransient(err) {
			t.Errorf("status %d: expected transient error, got %v", status, err)
		}
	}
}

func TestCompleteClientErrorsArePermanent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"message": "bad key"}}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Complete(context.Background(), ports.CompletionRequest{})
	if err == nil {
		t.Fatal("expected error")
	}
	if xerrors.IsTransient(err) {
		t.Fatalf("4xx must not be transient: %v", err)
	}
}

func TestCompleteUnreachableHostIsTransient(t *testing.T) {
	client := newTestClient("http://127.0.0.1:1")
	_, err := client.Complete(context.Background(), ports.CompletionRequest{})
	if !xerrors.IsTransient(err) {
		t.Fatalf("transport failure should be transient, got %v", err)
	}
}

func TestParseArgumentsRepairsAlmostJSON(t *testing.T) {
	client := newTestClient("http://unused")

	tests := []struct {
		name string
		raw  string
		want map[string]any
	}{
		{"empty", "", map[string]any{}},
		{"valid", `{"path": "a.txt"}`, map[string]any{"path": "a.txt"}},
		{"single quotes", `{'path': 'a.txt'}`, map[string]any{"path": "a.txt"}},
		{"trailing comma", `{"path": "a.txt",}`, map[string]any{"path": "a.txt"}},
		{"hopeless", `read the file please`, map[string]any{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := client.parseArguments("read_file", tt.raw)
			if len(got) != len(tt.want) {
				t.Fatalf("parseArguments(%q) = %v, want %v", tt.raw, got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("key %q = %v, want %v", k, got[k], v)
				}
			}
		})
	}
}

func TestCompleteRejectsEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices": []}`))
	}))
	defer server.Close()

	if _, err := newTestClient(server.URL).Complete(context.Background(), ports.CompletionRequest{}); err == nil {
		t.Fatal("empty choices should error")
	}
}

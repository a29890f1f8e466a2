package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// fakeCompletion builds a chat-completion response body.
func fakeCompletion(content string, toolCalls ...map[string]interface{}) map[string]interface{} {
	message := map[string]interface{}{
		"role":    "assistant",
		"content": content,
	}
	if len(toolCalls) > 0 {
		message["tool_calls"] = toolCalls
	}
	return map[string]interface{}{
		"id":    "cmpl-test",
		"model": "gpt-4o-mini",
		"choices": []map[string]interface{}{
			{"message": message, "finish_reason": "stop"},
		},
	}
}

func toolCall(name, arguments string) map[string]interface{} {
	return map[string]interface{}{
		"id":   "call-1",
		"type": "function",
		"function": map[string]interface{}{
			"name":      name,
			"arguments": arguments,
		},
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*OpenAIClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewOpenAIClient(
		WithBaseURL(srv.URL),
		WithAPIKey("sk-test"),
	)
	if err != nil {
		t.Fatalf("NewOpenAIClient: %v", err)
	}
	return client, srv
}

func TestStartConversationPayload(t *testing.T) {
	var captured map[string]interface{}

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("unexpected auth header %q", got)
		}
		json.NewDecoder(r.Body).Decode(&captured)
		json.NewEncoder(w).Encode(fakeCompletion("What a lovely drawing!"))
	})

	reply, err := client.StartConversation(context.Background(), "data:image/png;base64,AAAA")
	if err != nil {
		t.Fatalf("StartConversation: %v", err)
	}
	if reply.Text != "What a lovely drawing!" {
		t.Errorf("unexpected reply text %q", reply.Text)
	}

	messages := captured["messages"].([]interface{})
	if len(messages) != 2 {
		t.Fatalf("expected system + user messages, got %d", len(messages))
	}

	system := messages[0].(map[string]interface{})
	if system["role"] != "system" {
		t.Errorf("first message should be system, got %v", system["role"])
	}

	user := messages[1].(map[string]interface{})
	parts := user["content"].([]interface{})
	if len(parts) != 2 {
		t.Fatalf("expected text + image parts, got %d", len(parts))
	}
	img := parts[1].(map[string]interface{})
	if img["type"] != "image_url" {
		t.Errorf("expected image_url part, got %v", img["type"])
	}

	tools := captured["tools"].([]interface{})
	if len(tools) != 1 {
		t.Fatalf("expected exactly one tool schema, got %d", len(tools))
	}
}

func TestContinueConversationReplaysHistory(t *testing.T) {
	var captured map[string]interface{}

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&captured)
		json.NewEncoder(w).Encode(fakeCompletion("Blue is great!"))
	})

	turns := []Turn{
		NewImageTurn("look at this", "data:image/jpeg;base64,BBBB"),
		NewAssistantTurn("I see a boat!"),
		NewUserTurn("I like blue"),
	}

	if _, err := client.ContinueConversation(context.Background(), turns); err != nil {
		t.Fatalf("ContinueConversation: %v", err)
	}

	messages := captured["messages"].([]interface{})
	if len(messages) != len(turns)+1 {
		t.Fatalf("expected %d messages (system + history), got %d", len(turns)+1, len(messages))
	}
}

func TestColorCommandParsing(t *testing.T) {
	tests := []struct {
		name      string
		toolCalls []map[string]interface{}
		wantColor string
	}{
		{
			name:      "valid command",
			toolCalls: []map[string]interface{}{toolCall("change_background", `{"color":"#e0f7fa"}`)},
			wantColor: "#e0f7fa",
		},
		{
			name:      "malformed arguments dropped",
			toolCalls: []map[string]interface{}{toolCall("change_background", `{color: nope`)},
			wantColor: "",
		},
		{
			name:      "unknown tool ignored",
			toolCalls: []map[string]interface{}{toolCall("launch_rocket", `{"x":1}`)},
			wantColor: "",
		},
		{
			name: "first valid command wins",
			toolCalls: []map[string]interface{}{
				toolCall("change_background", `broken`),
				toolCall("change_background", `{"color":"pink"}`),
			},
			wantColor: "pink",
		},
		{
			name:      "no tool calls",
			toolCalls: nil,
			wantColor: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(fakeCompletion("ok", tt.toolCalls...))
			})

			reply, err := client.StartConversation(context.Background(), "data:image/png;base64,AAAA")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if reply.Color != tt.wantColor {
				t.Errorf("expected color %q, got %q", tt.wantColor, reply.Color)
			}
		})
	}
}

func TestAPIErrorSurfacesMessage(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]interface{}{
				"message": "Incorrect API key provided",
				"code":    "invalid_api_key",
			},
		})
	})

	_, err := client.StartConversation(context.Background(), "data:image/png;base64,AAAA")
	if err == nil {
		t.Fatal("expected error")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T", err)
	}
	if !apiErr.IsUnauthorized() {
		t.Errorf("expected unauthorized, got status %d", apiErr.StatusCode)
	}
	if !strings.Contains(err.Error(), "Incorrect API key provided") {
		t.Errorf("error should carry the API message, got %q", err.Error())
	}
}

func TestNoRetryByDefault(t *testing.T) {
	attempts := 0
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.StartConversation(context.Background(), "data:image/png;base64,AAAA")
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Errorf("expected a single attempt by default, got %d", attempts)
	}
}

func TestInputValidation(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	if _, err := client.StartConversation(context.Background(), ""); !errors.Is(err, ErrNoImage) {
		t.Errorf("expected ErrNoImage, got %v", err)
	}
	if _, err := client.ContinueConversation(context.Background(), nil); !errors.Is(err, ErrEmptyHistory) {
		t.Errorf("expected ErrEmptyHistory, got %v", err)
	}
}

func TestNewOpenAIClientRequiresKey(t *testing.T) {
	if _, err := NewOpenAIClient(); !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("expected ErrNoAPIKey, got %v", err)
	}
}

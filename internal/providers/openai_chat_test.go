package providers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const chatCompletionBody = `{
	"id": "chatcmpl-1",
	"object": "chat.completion",
	"created": 1700000000,
	"model": "gpt-35-turbo",
	"choices": [{
		"index": 0,
		"finish_reason": "stop",
		"message": {"role": "assistant", "content": "{\"HeatNumber\": \"H1\"}"}
	}],
	"usage": {"prompt_tokens": 100, "completion_tokens": 10, "total_tokens": 110}
}`

func TestAzureOpenAIChat(t *testing.T) {
	var payload map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/deployments/mtr-extract/chat/completions") {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if v := r.URL.Query().Get("api-version"); v != AzureOpenAIDefaultAPIVersion {
			t.Fatalf("api-version = %q", v)
		}
		if r.Header.Get("Api-Key") != "aoai-key" {
			t.Fatalf("missing api-key header")
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Fatalf("unmarshal body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(chatCompletionBody))
	}))
	defer server.Close()

	client := NewAzureOpenAIClient(AzureOpenAIConfig{
		Endpoint:   server.URL,
		APIKey:     "aoai-key",
		Deployment: "mtr-extract",
	})
	if client.Name() != AzureOpenAIName {
		t.Errorf("Name() = %q", client.Name())
	}

	result, err := client.Chat(context.Background(), &ChatRequest{
		Messages: []Message{
			{Role: "system", Content: "rules"},
			{Role: "user", Content: "text"},
		},
		Temperature: 0,
		MaxTokens:   4000,
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if !result.Success {
		t.Fatal("expected success")
	}
	if result.Content != `{"HeatNumber": "H1"}` {
		t.Errorf("Content = %q", result.Content)
	}
	if result.TotalTokens != 110 || result.PromptTokens != 100 {
		t.Errorf("tokens = %d/%d", result.PromptTokens, result.TotalTokens)
	}
	if result.FinishReason != "stop" {
		t.Errorf("FinishReason = %q", result.FinishReason)
	}

	if got, _ := payload["model"].(string); got != "mtr-extract" {
		t.Errorf("model = %q, want deployment name", got)
	}
	if got, ok := payload["temperature"].(float64); !ok || got != 0 {
		t.Errorf("temperature = %v, want explicit 0", payload["temperature"])
	}
	if got, _ := payload["max_tokens"].(float64); got != 4000 {
		t.Errorf("max_tokens = %v", payload["max_tokens"])
	}
	messages, _ := payload["messages"].([]any)
	if len(messages) != 2 {
		t.Fatalf("messages = %v", payload["messages"])
	}
	if role := messages[0].(map[string]any)["role"]; role != "system" {
		t.Errorf("first role = %v", role)
	}
}

func TestOpenAIChat(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/chat/completions" {
				t.Fatalf("unexpected path: %s", r.URL.Path)
			}
			if r.Header.Get("Authorization") != "Bearer sk-test" {
				t.Fatalf("missing bearer token")
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(chatCompletionBody))
		}))
		defer server.Close()

		client := NewOpenAIClient(OpenAIConfig{APIKey: "sk-test", BaseURL: server.URL})
		if client.Model() != OpenAIDefaultModel {
			t.Errorf("Model() = %q", client.Model())
		}
		result, err := client.Chat(context.Background(), &ChatRequest{
			Messages: []Message{{Role: "user", Content: "text"}},
		})
		if err != nil {
			t.Fatalf("Chat() error = %v", err)
		}
		if result.Provider != OpenAIName {
			t.Errorf("Provider = %q", result.Provider)
		}
	})

	t.Run("non-2xx becomes BackendError", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"message":"maximum context length exceeded","type":"invalid_request_error"}}`))
		}))
		defer server.Close()

		client := NewOpenAIClient(OpenAIConfig{APIKey: "sk-test", BaseURL: server.URL})
		result, err := client.Chat(context.Background(), &ChatRequest{
			Messages: []Message{{Role: "user", Content: "text"}},
		})
		var be *BackendError
		if !errors.As(err, &be) {
			t.Fatalf("error = %v, want *BackendError", err)
		}
		if be.StatusCode != http.StatusBadRequest {
			t.Errorf("StatusCode = %d", be.StatusCode)
		}
		if !strings.Contains(be.Preview, "maximum context length") {
			t.Errorf("Preview = %q", be.Preview)
		}
		if result == nil || result.Success {
			t.Error("expected a failed result")
		}
	})

	t.Run("empty choices", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","model":"m","choices":[]}`))
		}))
		defer server.Close()

		client := NewOpenAIClient(OpenAIConfig{APIKey: "sk-test", BaseURL: server.URL})
		_, err := client.Chat(context.Background(), &ChatRequest{
			Messages: []Message{{Role: "user", Content: "text"}},
		})
		var be *BackendError
		if !errors.As(err, &be) {
			t.Fatalf("error = %v, want *BackendError", err)
		}
	})
}

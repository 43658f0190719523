package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/Unigalactix/GasOps-DI-JSON/internal/prompts/extract"
	"github.com/Unigalactix/GasOps-DI-JSON/internal/providers"
)

func TestInvoker(t *testing.T) {
	if _, err := NewInvoker(InvokerConfig{}); err == nil {
		t.Fatal("expected error without a client")
	}

	t.Run("request shape", func(t *testing.T) {
		llm := providers.NewMockClient(`{"a": 1}`)
		inv, err := NewInvoker(InvokerConfig{Client: llm, Model: "mtr-extract"})
		if err != nil {
			t.Fatal(err)
		}
		if inv.Temperature() != 0 || inv.MaxTokens() != DefaultMaxTokens {
			t.Errorf("defaults = %v/%d", inv.Temperature(), inv.MaxTokens())
		}

		res, err := inv.Invoke(context.Background(), extract.Message{System: "sys", User: "usr", Version: "v1"})
		if err != nil {
			t.Fatalf("Invoke() error = %v", err)
		}
		if res.Content != `{"a": 1}` {
			t.Errorf("Content = %q", res.Content)
		}

		req := llm.LastRequest()
		if req.Model != "mtr-extract" || req.RequestID == "" {
			t.Errorf("request = %+v", req)
		}
		if req.Messages[0].Content != "sys" || req.Messages[1].Content != "usr" {
			t.Errorf("messages = %+v", req.Messages)
		}
	})

	t.Run("errors keep the result", func(t *testing.T) {
		llm := providers.NewMockClient("")
		llm.Err = &providers.BackendError{Provider: "mock", StatusCode: 500}
		inv, _ := NewInvoker(InvokerConfig{Client: llm, MaxTokens: 100})

		res, err := inv.Invoke(context.Background(), extract.Message{System: "s", User: "u"})
		var backend *providers.BackendError
		if !errors.As(err, &backend) {
			t.Fatalf("error = %v, want BackendError", err)
		}
		if res == nil {
			t.Error("result should be returned with the error")
		}
		if llm.LastRequest().MaxTokens != 100 {
			t.Errorf("MaxTokens = %d", llm.LastRequest().MaxTokens)
		}
	})
}

package anthropic_provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/provider"
)

func TestNewRequiresKeyAndModel(t *testing.T) {
	if _, err := New(Config{Model: "m"}); err == nil {
		t.Fatalf("expected missing api key error")
	}
	if _, err := New(Config{APIKey: "k"}); err == nil {
		t.Fatalf("expected missing model error")
	}
}

func TestCompleteJoinsTextBlocks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1", "type": "message", "role": "assistant", "model": "claude-test",
			"content": [{"type": "text", "text": "DECISION: ANSWER\nANSWER: 42"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 1, "output_tokens": 1}
		}`))
	}))
	defer srv.Close()

	c, err := New(Config{APIKey: "k", Model: "claude-test", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	out, err := c.Complete(context.Background(), provider.Request{Prompt: "q", MaxTokens: 100, Temperature: 0.7})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != "DECISION: ANSWER\nANSWER: 42" {
		t.Fatalf("unexpected text %q", out)
	}
}

func TestCompleteClassifiesOverload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(529)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`))
	}))
	defer srv.Close()

	c, err := New(Config{APIKey: "k", Model: "claude-test", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = c.Complete(context.Background(), provider.Request{Prompt: "q"})
	if !errors.Is(err, provider.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

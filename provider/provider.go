package provider

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
)

// Client represents different LLM providers
type Client string

const (
	OpenAI    Client = "openai"
	Anthropic Client = "anthropic"
)

// Request is a single completion call.
type Request struct {
	Prompt       string
	SystemPrompt string
	MaxTokens    int
	Temperature  float64
}

// Completer turns a prompt into text. Implementations make exactly one
// outbound call per Complete; retry lives in WithRetry.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Embedder produces dense vectors for texts.
type Embedder interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, req Request) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// Factory builds a raw backend for a provider type.
type Factory func() (Completer, error)

// NewProvider wraps the backend produced by the factory for client with
// the retry policy.
func NewProvider(client Client, factories map[Client]Factory, policy RetryPolicy, logger *log.Logger) (Completer, error) {
	f, ok := factories[Client(strings.ToLower(string(client)))]
	if !ok {
		return nil, errors.New("unsupported LLM provider")
	}
	backend, err := f()
	if err != nil {
		return nil, fmt.Errorf("init %s provider: %w", client, err)
	}
	return WithRetry(backend, policy, logger), nil
}

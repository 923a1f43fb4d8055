package core

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/models"
)

func TestBuildDecisionPromptIncludesToolsAndHistory(t *testing.T) {
	prompt := BuildDecisionPrompt(DecisionInput{
		Query:         "What is ML?",
		Tools:         testCatalog().All(),
		Iteration:     1,
		MaxIterations: 3,
		History: []models.ToolResult{{
			ToolName:  "search_knowledge_base",
			Result:    "Retrieved 2 relevant documents: x",
			Iteration: 0,
		}},
	})
	for _, want := range []string{
		"User Query: What is ML?",
		"Current Iteration: 1 (max: 3)",
		"- search_knowledge_base: Search the document knowledge base",
		"Iteration 0: Called search_knowledge_base, got: Retrieved 2 relevant documents: x...",
		"On the last iteration (2)",
	} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestBuildDecisionPromptWithoutToolsOrHistory(t *testing.T) {
	prompt := BuildDecisionPrompt(DecisionInput{Query: "q", MaxIterations: 3})
	if !strings.Contains(prompt, "(no tools available)") || !strings.Contains(prompt, "No previous tool results yet.") {
		t.Fatalf("unexpected prompt:\n%s", prompt)
	}
}

func TestPolicyDecideUsesSampling(t *testing.T) {
	backend := &scriptedBackend{responses: []string{answerML}}
	p := NewPolicy(backend, WithSampling(256, 0.2), WithPolicyLogger(quietLogger()))
	d, err := p.Decide(context.Background(), DecisionInput{Query: "q", MaxIterations: 3})
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if d.Kind() != DecisionAnswer {
		t.Fatalf("expected answer, got %s", d.Kind())
	}
	if backend.requests[0].MaxTokens != 256 || backend.requests[0].Temperature != 0.2 {
		t.Fatalf("sampling not applied: %+v", backend.requests[0])
	}
}

func TestPolicyDecideFallsBackOnGarbage(t *testing.T) {
	p := NewPolicy(&scriptedBackend{responses: []string{"???"}}, WithPolicyLogger(quietLogger()))
	d, err := p.Decide(context.Background(), DecisionInput{Query: "q", MaxIterations: 3})
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if d.Encode() != "ANSWER: "+FallbackAnswer {
		t.Fatalf("unexpected fallback %q", d.Encode())
	}
}

func TestPolicyDecideWrapsBackendError(t *testing.T) {
	boom := errors.New("boom")
	p := NewPolicy(&scriptedBackend{responses: []string{""}, failAt: 1, err: boom}, WithPolicyLogger(quietLogger()))
	if _, err := p.Decide(context.Background(), DecisionInput{Query: "q"}); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped backend error, got %v", err)
	}
}

package transform

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"sync"
	"testing"

	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/provider"
)

type echoBackend struct {
	mu    sync.Mutex
	calls []provider.Request
	err   error
}

// Complete answers with a quoted tag derived from the prompt's first line.
func (b *echoBackend) Complete(_ context.Context, req provider.Request) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, req)
	if b.err != nil {
		return "", b.err
	}
	first := strings.SplitN(req.Prompt, "\n", 2)[0]
	return "  \"" + first + "\"  ", nil
}

func newTestTransformer(b provider.Completer) *Transformer {
	return NewTransformer(b, log.New(io.Discard, "", 0))
}

func TestExpandProducesThirtyVariants(t *testing.T) {
	b := &echoBackend{}
	out, err := newTestTransformer(b).Expand(context.Background(), "How should I allocate my portfolio?", 1, Filter{})
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if len(out) != 30 || ExpansionFactor(Filter{}) != 30 {
		t.Fatalf("expected 30 variants, got %d", len(out))
	}
	// 5 persona calls + 5 x 2 rewritten complexities.
	if len(b.calls) != 15 {
		t.Fatalf("expected 15 backend calls, got %d", len(b.calls))
	}
	v := out[0]
	if v.Persona != "P1" || v.Complexity != "Q-" || v.ToolVariant != "correct" || v.SeedID != 1 {
		t.Fatalf("unexpected first variant %+v", v)
	}
	if strings.HasPrefix(v.TransformedQuery, "\"") || strings.HasPrefix(v.TransformedQuery, " ") {
		t.Fatalf("rewrite should be cleaned: %q", v.TransformedQuery)
	}
	if out[1].ToolVariant != "incorrect" || out[1].TransformedQuery != v.TransformedQuery {
		t.Fatalf("tool variants should share the rewrite: %+v", out[1])
	}
	unchanged := out[2]
	if unchanged.Complexity != "Q" || !strings.HasPrefix(unchanged.TransformedQuery, "Transform the following query") {
		t.Fatalf("Q should keep the persona rewrite unchanged: %+v", unchanged)
	}
	if b.calls[0].MaxTokens != 200 || b.calls[1].MaxTokens != 250 {
		t.Fatalf("unexpected token budgets %d/%d", b.calls[0].MaxTokens, b.calls[1].MaxTokens)
	}
}

func TestExpandWithFilter(t *testing.T) {
	b := &echoBackend{}
	f := Filter{Persona: "P3", Complexity: "Q"}
	out, err := newTestTransformer(b).Expand(context.Background(), "seed", 4, f)
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if len(out) != 2 || ExpansionFactor(f) != 2 {
		t.Fatalf("expected 2 variants, got %d", len(out))
	}
	if out[0].PersonaName != "Technical Analyst" || out[0].ComplexityName != "Original" {
		t.Fatalf("unexpected variant %+v", out[0])
	}
	if len(b.calls) != 1 {
		t.Fatalf("only the persona rewrite should hit the backend, got %d calls", len(b.calls))
	}
}

func TestExpandRejectsUnknownFilter(t *testing.T) {
	if _, err := newTestTransformer(&echoBackend{}).Expand(context.Background(), "s", 1, Filter{Persona: "P9"}); err == nil {
		t.Fatalf("expected unknown persona error")
	}
	if err := (Filter{Complexity: "Q++"}).Validate(); err == nil {
		t.Fatalf("expected unknown complexity error")
	}
	if err := (Filter{Persona: "all", Complexity: "ALL"}).Validate(); err != nil {
		t.Fatalf("all should be accepted: %v", err)
	}
}

func TestExpandPropagatesBackendError(t *testing.T) {
	boom := errors.New("backend down")
	_, err := newTestTransformer(&echoBackend{err: boom}).Expand(context.Background(), "s", 1, Filter{})
	if !errors.Is(err, boom) {
		t.Fatalf("expected backend error, got %v", err)
	}
}

func TestVariantMetadata(t *testing.T) {
	v := Variant{SeedQuery: "s", SeedID: 2, Persona: "P5", ToolVariant: "incorrect"}
	m := v.Metadata()
	if m["seed_id"] != 2 || m["persona"] != "P5" || m["tool_variant"] != "incorrect" {
		t.Fatalf("unexpected metadata %v", m)
	}
}

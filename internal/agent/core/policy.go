package core

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/internal/agent/telemetry"
	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/models"
	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/provider"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultPolicyMaxTokens   = 1000
	defaultPolicyTemperature = 0.7
	historyPreviewChars      = 100
)

// Policy asks the completion backend for the next step and parses the reply.
type Policy struct {
	backend     provider.Completer
	telemetry   *telemetry.Telemetry
	logger      *log.Logger
	maxTokens   int
	temperature float64
}

// PolicyOption customizes a Policy.
type PolicyOption func(*Policy)

// WithSampling overrides max tokens and temperature.
func WithSampling(maxTokens int, temperature float64) PolicyOption {
	return func(p *Policy) {
		if maxTokens > 0 {
			p.maxTokens = maxTokens
		}
		if temperature >= 0 {
			p.temperature = temperature
		}
	}
}

func WithPolicyTelemetry(t *telemetry.Telemetry) PolicyOption {
	return func(p *Policy) { p.telemetry = t }
}

func WithPolicyLogger(l *log.Logger) PolicyOption {
	return func(p *Policy) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewPolicy creates a decision policy backed by a completer.
func NewPolicy(backend provider.Completer, opts ...PolicyOption) *Policy {
	p := &Policy{
		backend:     backend,
		logger:      log.New(log.Writer(), "[POLICY] ", log.LstdFlags),
		maxTokens:   defaultPolicyMaxTokens,
		temperature: defaultPolicyTemperature,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Decide returns the next step. Backend failures are returned as-is;
// unparsable responses become a logged fallback answer.
func (p *Policy) Decide(ctx context.Context, in DecisionInput) (Decision, error) {
	ctx, span := tracer().Start(ctx, "policy.decide", trace.WithAttributes(
		attribute.Int("iteration", in.Iteration),
		attribute.Int("tools", len(in.Tools)),
	))
	defer span.End()

	prompt := BuildDecisionPrompt(in)
	response, err := p.backend.Complete(ctx, provider.Request{
		Prompt:      prompt,
		MaxTokens:   p.maxTokens,
		Temperature: p.temperature,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion failed")
		return nil, fmt.Errorf("decide iteration %d: %w", in.Iteration, err)
	}

	parsed := ParseDecision(response)
	span.SetAttributes(
		attribute.String("decision_type", string(parsed.Decision.Kind())),
		attribute.Bool("fallback", parsed.Fallback),
	)
	if parsed.Fallback {
		p.telemetry.RecordFallback()
		p.logger.Printf("warning: could not parse decision at iteration %d (%s); defaulting to ANSWER. response=%q",
			in.Iteration, parsed.Problem, truncate(response, 200))
	}
	return parsed.Decision, nil
}

// BuildDecisionPrompt renders the policy prompt for one iteration.
func BuildDecisionPrompt(in DecisionInput) string {
	return fmt.Sprintf(decisionPromptTemplate,
		in.Query,
		in.Iteration, in.MaxIterations,
		renderTools(in.Tools),
		RenderHistory(in.History),
		in.MaxIterations-1,
	)
}

func renderTools(tools []models.ToolDescriptor) string {
	if len(tools) == 0 {
		return "(no tools available)"
	}
	lines := make([]string, 0, len(tools))
	for _, t := range tools {
		lines = append(lines, fmt.Sprintf("- %s: %s", t.Name, t.Description))
	}
	return strings.Join(lines, "\n")
}

// RenderHistory formats prior tool results for the prompt.
func RenderHistory(history []models.ToolResult) string {
	if len(history) == 0 {
		return "No previous tool results yet."
	}
	lines := make([]string, 0, len(history))
	for _, r := range history {
		lines = append(lines, fmt.Sprintf("Iteration %d: Called %s, got: %s...",
			r.Iteration, r.ToolName, truncate(r.ResultText(), historyPreviewChars)))
	}
	return strings.Join(lines, "\n")
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

package core

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/internal/agent/telemetry"
	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/internal/capability"
	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/models"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultSearchTopK = 3
	searchPreviewDocs = 2
	snippetChars      = 100
)

// ToolExecutor runs the tools named by a CALL decision. Only the knowledge
// base search has real behavior; every other tool returns a placeholder.
type ToolExecutor struct {
	retriever Retriever
	validator ArgumentValidator
	topK      int
	telemetry *telemetry.Telemetry
	logger    *log.Logger
}

// ArgumentValidator checks tool arguments before execution.
type ArgumentValidator interface {
	ValidateArguments(name string, args map[string]interface{}) error
}

// ExecutorOption customizes a ToolExecutor.
type ExecutorOption func(*ToolExecutor)

func WithSearchTopK(k int) ExecutorOption {
	return func(e *ToolExecutor) {
		if k > 0 {
			e.topK = k
		}
	}
}

// WithArgumentValidator checks search arguments against the tool's
// declared parameters; rejected calls are reported as failed results.
func WithArgumentValidator(v ArgumentValidator) ExecutorOption {
	return func(e *ToolExecutor) { e.validator = v }
}

func WithExecutorTelemetry(t *telemetry.Telemetry) ExecutorOption {
	return func(e *ToolExecutor) { e.telemetry = t }
}

func WithExecutorLogger(l *log.Logger) ExecutorOption {
	return func(e *ToolExecutor) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewToolExecutor creates an executor; retriever may be nil, in which case
// searches report zero documents.
func NewToolExecutor(retriever Retriever, opts ...ExecutorOption) *ToolExecutor {
	e := &ToolExecutor{
		retriever: retriever,
		topK:      defaultSearchTopK,
		logger:    log.New(log.Writer(), "[EXECUTOR] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute returns one result per tool name, in order. It never fails.
func (e *ToolExecutor) Execute(ctx context.Context, tools []string, query string, iteration int) []models.ToolResult {
	out := make([]models.ToolResult, 0, len(tools))
	for _, name := range tools {
		out = append(out, e.run(ctx, name, query, iteration))
	}
	return out
}

func (e *ToolExecutor) run(ctx context.Context, name, query string, iteration int) models.ToolResult {
	ctx, span := tracer().Start(ctx, "executor.tool", trace.WithAttributes(
		attribute.String("tool", name),
		attribute.Int("iteration", iteration),
	))
	defer span.End()
	e.telemetry.RecordToolCall(name)

	if name != capability.SearchKnowledgeBase {
		return models.ToolResult{
			ToolName:  name,
			Result:    fmt.Sprintf("[Tool %s executed successfully]", name),
			Iteration: iteration,
		}
	}
	res := e.search(ctx, query, iteration)
	if msg, ok := res.Metadata["error"].(string); ok {
		span.SetStatus(codes.Error, msg)
	}
	n, _ := res.Metadata["n_results"].(int)
	span.SetAttributes(attribute.Int("n_results", n))
	return res
}

func (e *ToolExecutor) search(ctx context.Context, query string, iteration int) models.ToolResult {
	if e.validator != nil {
		args := map[string]interface{}{"query": query, "top_k": e.topK}
		err := e.validator.ValidateArguments(capability.SearchKnowledgeBase, args)
		if err != nil && !errors.Is(err, capability.ErrToolMissing) {
			e.logger.Printf("search_knowledge_base arguments rejected at iteration %d: %v", iteration, err)
			return models.ToolResult{
				ToolName:  capability.SearchKnowledgeBase,
				Result:    fmt.Sprintf("Knowledge base search rejected: %v", err),
				Iteration: iteration,
				Metadata:  map[string]interface{}{"n_results": 0, "error": err.Error()},
			}
		}
	}
	var passages []models.Passage
	if e.retriever != nil {
		var err error
		passages, err = e.retriever.Retrieve(ctx, query, e.topK)
		if err != nil {
			e.logger.Printf("search_knowledge_base failed at iteration %d: %v", iteration, err)
			return models.ToolResult{
				ToolName:  capability.SearchKnowledgeBase,
				Result:    fmt.Sprintf("Knowledge base search failed: %v", err),
				Iteration: iteration,
				Metadata:  map[string]interface{}{"n_results": 0, "error": err.Error()},
			}
		}
	}
	return models.ToolResult{
		ToolName:  capability.SearchKnowledgeBase,
		Result:    SummarizePassages(passages),
		Iteration: iteration,
		Metadata:  map[string]interface{}{"n_results": len(passages)},
	}
}

// SummarizePassages renders the search tool's textual result.
func SummarizePassages(passages []models.Passage) string {
	previews := make([]string, 0, searchPreviewDocs)
	for i, p := range passages {
		if i == searchPreviewDocs {
			break
		}
		previews = append(previews, truncate(p.Text, snippetChars)+"...")
	}
	return fmt.Sprintf("Retrieved %d relevant documents: ", len(passages)) + strings.Join(previews, " | ")
}

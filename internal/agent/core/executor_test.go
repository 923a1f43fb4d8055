package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/internal/capability"
	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/models"
)

func TestExecuteSearchSummarizesPassages(t *testing.T) {
	long := strings.Repeat("a", 150)
	retriever := &stubRetriever{passages: []models.Passage{{Text: long}, {Text: "short"}, {Text: "third"}}}
	e := NewToolExecutor(retriever, WithExecutorLogger(quietLogger()))

	results := e.Execute(context.Background(), []string{"search_knowledge_base"}, "q", 1)
	if len(results) != 1 {
		t.Fatalf("expected one result, got %d", len(results))
	}
	r := results[0]
	want := "Retrieved 3 relevant documents: " + strings.Repeat("a", 100) + "... | short..."
	if r.Result != want {
		t.Fatalf("unexpected result\nwant %q\ngot  %q", want, r.Result)
	}
	if r.Iteration != 1 || r.Metadata["n_results"] != 3 {
		t.Fatalf("unexpected result fields %+v", r)
	}
}

func TestExecutePreservesOrderAndPlaceholders(t *testing.T) {
	e := NewToolExecutor(&stubRetriever{}, WithExecutorLogger(quietLogger()))
	results := e.Execute(context.Background(), []string{"get_weather", "search_knowledge_base", "calc"}, "q", 0)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].ToolName != "get_weather" || results[0].Result != "[Tool get_weather executed successfully]" {
		t.Fatalf("unexpected first result %+v", results[0])
	}
	if results[1].Result != "Retrieved 0 relevant documents: " {
		t.Fatalf("unexpected empty search result %q", results[1].Result)
	}
	if results[2].ToolName != "calc" {
		t.Fatalf("order not preserved: %+v", results)
	}
}

func TestExecuteSearchErrorIsReportedAsResult(t *testing.T) {
	e := NewToolExecutor(&stubRetriever{err: errors.New("index closed")}, WithExecutorLogger(quietLogger()))
	results := e.Execute(context.Background(), []string{"search_knowledge_base"}, "q", 0)
	if len(results) != 1 {
		t.Fatalf("expected one result")
	}
	if !strings.Contains(results[0].ResultText(), "index closed") || results[0].Metadata["error"] != "index closed" {
		t.Fatalf("unexpected error result %+v", results[0])
	}
}

func TestExecuteCustomTopK(t *testing.T) {
	retriever := &stubRetriever{}
	e := NewToolExecutor(retriever, WithSearchTopK(7), WithExecutorLogger(quietLogger()))
	e.Execute(context.Background(), []string{"search_knowledge_base"}, "q", 0)
	if len(retriever.ks) != 1 || retriever.ks[0] != 7 {
		t.Fatalf("expected k=7, got %v", retriever.ks)
	}
}

type stubValidator struct{ err error }

func (v stubValidator) ValidateArguments(string, map[string]interface{}) error { return v.err }

func TestExecuteRejectsInvalidSearchArguments(t *testing.T) {
	retriever := &stubRetriever{passages: []models.Passage{{Text: "x"}}}
	e := NewToolExecutor(retriever,
		WithArgumentValidator(stubValidator{err: errors.New("missing property query")}),
		WithExecutorLogger(quietLogger()))
	results := e.Execute(context.Background(), []string{"search_knowledge_base"}, "", 0)
	if len(retriever.ks) != 0 {
		t.Fatalf("retriever should not run for rejected arguments")
	}
	if !strings.HasPrefix(results[0].ResultText(), "Knowledge base search rejected") || results[0].Metadata["n_results"] != 0 {
		t.Fatalf("unexpected result %+v", results[0])
	}
}

func TestExecuteIgnoresUndeclaredSearchTool(t *testing.T) {
	retriever := &stubRetriever{passages: []models.Passage{{Text: "x"}}}
	e := NewToolExecutor(retriever,
		WithArgumentValidator(stubValidator{err: fmt.Errorf("%w: search_knowledge_base", capability.ErrToolMissing)}),
		WithExecutorLogger(quietLogger()))
	results := e.Execute(context.Background(), []string{"search_knowledge_base"}, "q", 0)
	if len(retriever.ks) != 1 || results[0].Metadata["n_results"] != 1 {
		t.Fatalf("search should run when the tool is not declared: %+v", results[0])
	}
}

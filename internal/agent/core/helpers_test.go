package core

import (
	"context"
	"io"
	"log"
	"sync"

	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/internal/capability"
	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/models"
	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/provider"
)

func quietLogger() *log.Logger { return log.New(io.Discard, "", 0) }

// scriptedBackend returns responses in order, repeating the last one.
type scriptedBackend struct {
	mu        sync.Mutex
	responses []string
	err       error
	failAt    int // 1-based call number that fails; 0 disables
	requests  []provider.Request
}

func (b *scriptedBackend) Complete(_ context.Context, req provider.Request) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests = append(b.requests, req)
	n := len(b.requests)
	if b.failAt > 0 && n == b.failAt {
		return "", b.err
	}
	idx := n - 1
	if idx >= len(b.responses) {
		idx = len(b.responses) - 1
	}
	return b.responses[idx], nil
}

type stubRetriever struct {
	passages []models.Passage
	err      error
	queries  []string
	ks       []int
}

func (s *stubRetriever) Retrieve(_ context.Context, query string, k int) ([]models.Passage, error) {
	s.queries = append(s.queries, query)
	s.ks = append(s.ks, k)
	if s.err != nil {
		return nil, s.err
	}
	if len(s.passages) > k {
		return s.passages[:k], nil
	}
	return s.passages, nil
}

func testCatalog() *capability.Catalog {
	return capability.NewCatalog([]capability.ToolCard{
		{Name: capability.SearchKnowledgeBase, Description: "Search the document knowledge base", Parameters: map[string]interface{}{"query": "string"}},
		{Name: "get_account_info", Description: "Look up a client account"},
	}, "", quietLogger())
}

const (
	callSearch = "DECISION: CALL\nREASONING: I should search the documents first.\nTOOLS: search_knowledge_base"
	answerML   = "DECISION: ANSWER\nREASONING: The retrieved context explains it.\nANSWER: Machine learning is a subset of AI that learns from data."
	askAccount = "DECISION: ASK\nREASONING: This needs client-specific data.\nCLARIFICATION: Which account should I look up?"
)

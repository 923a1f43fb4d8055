package search

import (
	"context"
	"log"

	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/internal/knowledge"
	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/models"
	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/tools/embedding"
)

// Search is the knowledge retriever: BM25 over the index, fused with
// vector hits when an embedder is attached and the index holds vectors.
type Search struct {
	Index     *knowledge.Index
	Embedding *embedding.Embedding
	logger    *log.Logger
}

func NewSearch(index *knowledge.Index, emb *embedding.Embedding, logger *log.Logger) Search {
	if logger == nil {
		logger = log.New(log.Writer(), "[KNOWLEDGE] ", log.LstdFlags)
	}
	return Search{Index: index, Embedding: emb, logger: logger}
}

// Hits returns ranked hits for q.
func (s Search) Hits(ctx context.Context, q string, k int) ([]knowledge.Hit, error) {
	if k <= 0 || k > 50 {
		k = 10
	}

	// BM25
	bmHits, err := s.Index.Bm25Search(q, k)
	if err != nil {
		return nil, err
	}
	if s.Embedding == nil || !s.Index.HasVectors() {
		return bmHits, nil
	}

	// Vector
	qvecs, err := s.Embedding.EmbedMany(ctx, []string{q})
	if err != nil {
		s.logger.Printf("vector leg unavailable, using bm25 only: %v", err)
		return bmHits, nil
	}
	vecHits, err := s.Index.VectorSearch(qvecs[0], k)
	if err != nil {
		return nil, err
	}

	// Fuse
	return knowledge.FuseRRF(bmHits, vecHits, k), nil
}

// Retrieve returns up to k passages relevant to q. No match is an empty slice.
func (s Search) Retrieve(ctx context.Context, q string, k int) ([]models.Passage, error) {
	hits, err := s.Hits(ctx, q, k)
	if err != nil {
		return nil, err
	}
	out := make([]models.Passage, 0, len(hits))
	for _, h := range hits {
		meta := map[string]interface{}{
			"source":   h.Source,
			"chunk_id": h.ChunkID,
			"score":    h.Score,
		}
		if h.Page > 0 {
			meta["page_number"] = h.Page
		}
		out = append(out, models.Passage{Text: h.Text, Metadata: meta})
	}
	return out, nil
}

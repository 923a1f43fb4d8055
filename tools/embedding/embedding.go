package embedding

import (
	"context"
	"fmt"

	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/provider"
)

const defaultBatchSize = 64

type Embedding struct {
	provider  provider.Embedder
	batchSize int
}

type EmbedVec struct {
	DocID string    `json:"doc_id"`
	Vec   []float32 `json:"vec"`
}

func NewEmbedding(provider provider.Embedder) *Embedding {
	return &Embedding{
		provider:  provider,
		batchSize: defaultBatchSize,
	}
}

// EmbedMany embeds texts in provider-sized batches, preserving order.
func (e *Embedding) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if e == nil || e.provider == nil {
		return nil, fmt.Errorf("embedding provider not configured")
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := start + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		vecs, err := e.provider.CreateEmbedding(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("embed batch %d-%d: %w", start, end, err)
		}
		if len(vecs) != end-start {
			return nil, fmt.Errorf("embed batch %d-%d: got %d vectors", start, end, len(vecs))
		}
		out = append(out, vecs...)
	}
	return out, nil
}

package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/config"
	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/internal/knowledge"
	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/tools/embedding"
)

// Report summarizes one ingest call.
type Report struct {
	Documents  int      `json:"documents"`
	Chunks     int      `json:"chunks"`
	Added      int      `json:"added"`
	Duplicates int      `json:"duplicates"`
	Embedded   int      `json:"embedded"`
	Failed     []string `json:"failed,omitempty"`
}

// Ingester loads sources, chunks them and adds the chunks to the index.
type Ingester struct {
	index     *knowledge.Index
	embedding *embedding.Embedding
	fetcher   Fetcher
	cfg       config.RetrievalConfig
	logger    *log.Logger
}

// NewIngester wires an ingester. emb and fetcher may be nil; without a
// fetcher URLs are reported as failures.
func NewIngester(index *knowledge.Index, emb *embedding.Embedding, fetcher Fetcher, cfg config.RetrievalConfig, logger *log.Logger) *Ingester {
	if logger == nil {
		logger = log.New(log.Writer(), "[INGEST] ", log.LstdFlags)
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = DefaultChunkOverlap
	}
	if cfg.MinChunkChars <= 0 {
		cfg.MinChunkChars = DefaultMinChunkChars
	}
	return &Ingester{index: index, embedding: emb, fetcher: fetcher, cfg: cfg, logger: logger}
}

// Ingest loads every source. A source that cannot be loaded is recorded in
// Report.Failed and skipped; index and embedding failures abort.
func (in *Ingester) Ingest(ctx context.Context, sources []string) (Report, error) {
	var rep Report
	seen := make(map[string]bool, len(sources))
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		if IsURL(src) {
			canonical, err := CanonicalURL(src)
			if err != nil {
				in.logger.Printf("skipping %s: %v", src, err)
				rep.Failed = append(rep.Failed, src)
				continue
			}
			if seen[canonical] {
				continue
			}
			seen[canonical] = true
			src = canonical
		}
		docs, err := in.load(ctx, src)
		if err != nil {
			in.logger.Printf("skipping %s: %v", src, err)
			rep.Failed = append(rep.Failed, src)
			continue
		}
		for _, doc := range docs {
			rep.Documents++
			if err := in.addDocument(ctx, doc, &rep); err != nil {
				return rep, err
			}
		}
	}
	in.logger.Printf("ingested %d document(s): %d chunk(s), %d new, %d duplicate(s), %d embedded",
		rep.Documents, rep.Chunks, rep.Added, rep.Duplicates, rep.Embedded)
	return rep, nil
}

// IngestDocuments indexes already-loaded documents.
func (in *Ingester) IngestDocuments(ctx context.Context, docs []Document) (Report, error) {
	var rep Report
	for _, doc := range docs {
		rep.Documents++
		if err := in.addDocument(ctx, doc, &rep); err != nil {
			return rep, err
		}
	}
	return rep, nil
}

func (in *Ingester) load(ctx context.Context, src string) ([]Document, error) {
	if !IsURL(src) {
		return LoadPath(src)
	}
	if in.fetcher == nil {
		return nil, errors.New("no fetcher configured for urls")
	}
	doc, err := in.fetcher.Fetch(ctx, src)
	if err != nil {
		return nil, err
	}
	return []Document{doc}, nil
}

// chunkDocument windows each page separately so chunks never span pages.
// Chunk ids run on across pages.
func (in *Ingester) chunkDocument(doc Document) []knowledge.Chunk {
	pages := doc.Pages
	if len(pages) == 0 {
		pages = []string{doc.Text}
	}
	var chunks []knowledge.Chunk
	for i, text := range pages {
		page := 0
		if len(doc.Pages) > 0 {
			page = i + 1
		}
		for _, p := range ChunkWords(CleanText(text), in.cfg.ChunkSize, in.cfg.ChunkOverlap, in.cfg.MinChunkChars) {
			chunks = append(chunks, knowledge.Chunk{
				Text:      p,
				Source:    doc.Source,
				ChunkID:   len(chunks),
				CharCount: len(p),
				Page:      page,
			})
		}
	}
	return chunks
}

func (in *Ingester) addDocument(ctx context.Context, doc Document, rep *Report) error {
	chunks := in.chunkDocument(doc)
	rep.Chunks += len(chunks)

	added, dups, err := in.index.Add(chunks)
	if err != nil {
		return fmt.Errorf("index %s: %w", doc.Source, err)
	}
	rep.Added += len(added)
	rep.Duplicates += dups

	if in.embedding == nil || len(added) == 0 {
		return nil
	}
	texts := make([]string, len(added))
	for i, c := range added {
		texts[i] = c.Text
	}
	vecs, err := in.embedding.EmbedMany(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed %s: %w", doc.Source, err)
	}
	for i, c := range added {
		in.index.SetVector(c.ID, vecs[i])
	}
	rep.Embedded += len(vecs)
	return nil
}

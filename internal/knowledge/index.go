package knowledge

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/blevesearch/bleve"
	"github.com/blevesearch/bleve/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/mapping"
	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/tools/embedding"
)

const rrfK = 60 // reciprocal-rank-fusion constant

var storedFields = []string{"text", "source", "chunk_id", "page"}

// Chunk is one indexed piece of a source document.
type Chunk struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Source    string `json:"source"`
	ChunkID   int    `json:"chunk_id"`
	CharCount int    `json:"char_count"`
	// Page is the 1-based page for paginated sources, 0 otherwise.
	Page int `json:"page,omitempty"`
}

// Hit is a ranked search result.
type Hit struct {
	DocID   string  `json:"doc_id"`
	Text    string  `json:"text"`
	Source  string  `json:"source"`
	ChunkID int     `json:"chunk_id"`
	Page    int     `json:"page,omitempty"`
	Score   float64 `json:"score"`
	Rank    int     `json:"rank"`
}

// Index is a bleve-backed chunk store with an optional in-memory vector
// sidecar for hybrid search. Chunk ids are content hashes, so re-adding the
// same text is a no-op.
type Index struct {
	path    string
	bleve   bleve.Index
	vectors map[string][]float32
	mu      sync.RWMutex
	logger  *log.Logger
}

// ContentID returns the stable id of a chunk text.
func ContentID(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:16])
}

func newMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()
	doc := bleve.NewDocumentMapping()

	text := bleve.NewTextFieldMapping()
	text.Analyzer = standard.Name
	doc.AddFieldMappingsAt("text", text)

	source := bleve.NewTextFieldMapping()
	source.Analyzer = keyword.Name
	doc.AddFieldMappingsAt("source", source)

	doc.AddFieldMappingsAt("chunk_id", bleve.NewNumericFieldMapping())
	doc.AddFieldMappingsAt("char_count", bleve.NewNumericFieldMapping())
	doc.AddFieldMappingsAt("page", bleve.NewNumericFieldMapping())

	im.DefaultMapping = doc
	return im
}

// Open opens or creates the index at path. An empty path gives a memory-only index.
func Open(path string, logger *log.Logger) (*Index, error) {
	if logger == nil {
		logger = log.New(log.Writer(), "[KNOWLEDGE] ", log.LstdFlags)
	}
	ix := &Index{path: path, vectors: make(map[string][]float32), logger: logger}

	var err error
	switch {
	case path == "":
		ix.bleve, err = bleve.NewMemOnly(newMapping())
	case exists(path):
		ix.bleve, err = bleve.Open(path)
	default:
		if mkErr := os.MkdirAll(filepath.Dir(path), 0o755); mkErr != nil {
			return nil, fmt.Errorf("create index dir: %w", mkErr)
		}
		ix.bleve, err = bleve.New(path, newMapping())
	}
	if err != nil {
		return nil, fmt.Errorf("open index %q: %w", path, err)
	}
	if err := ix.loadVectors(); err != nil {
		logger.Printf("warning: ignoring vector sidecar: %v", err)
	}
	return ix, nil
}

func exists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

// Add indexes chunks, skipping any whose content is already present.
// It returns the chunks that were newly added and the number skipped.
func (ix *Index) Add(chunks []Chunk) ([]Chunk, int, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	batch := ix.bleve.NewBatch()
	seen := make(map[string]struct{}, len(chunks))
	var added []Chunk
	dups := 0
	now := time.Now().UTC().Format(time.RFC3339)
	for _, c := range chunks {
		if c.ID == "" {
			c.ID = ContentID(c.Text)
		}
		if _, ok := seen[c.ID]; ok {
			dups++
			continue
		}
		seen[c.ID] = struct{}{}
		doc, err := ix.bleve.Document(c.ID)
		if err != nil {
			return nil, 0, fmt.Errorf("lookup %s: %w", c.ID, err)
		}
		if doc != nil {
			dups++
			continue
		}
		if c.CharCount == 0 {
			c.CharCount = len(c.Text)
		}
		fields := map[string]interface{}{
			"text":        c.Text,
			"source":      c.Source,
			"chunk_id":    c.ChunkID,
			"char_count":  c.CharCount,
			"ingested_at": now,
		}
		if c.Page > 0 {
			fields["page"] = c.Page
		}
		if err := batch.Index(c.ID, fields); err != nil {
			return nil, 0, err
		}
		added = append(added, c)
	}
	if batch.Size() > 0 {
		if err := ix.bleve.Batch(batch); err != nil {
			return nil, 0, fmt.Errorf("index batch: %w", err)
		}
	}
	return added, dups, nil
}

// SetVector attaches an embedding to a chunk id.
func (ix *Index) SetVector(docID string, v []float32) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.vectors[docID] = v
}

// HasVectors reports whether any embeddings are attached.
func (ix *Index) HasVectors() bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.vectors) > 0
}

// Bm25Search runs a match query over chunk text.
func (ix *Index) Bm25Search(q string, k int) ([]Hit, error) {
	if k <= 0 {
		return nil, nil
	}
	query := bleve.NewMatchQuery(q)
	query.SetField("text")
	req := bleve.NewSearchRequestOptions(query, k, 0, false)
	req.Fields = storedFields

	ix.mu.RLock()
	res, err := ix.bleve.Search(req)
	ix.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	out := make([]Hit, 0, len(res.Hits))
	for i, h := range res.Hits {
		hit := hitFromFields(h.ID, h.Fields)
		hit.Score = h.Score
		hit.Rank = i + 1
		out = append(out, hit)
	}
	return out, nil
}

// VectorSearch ranks chunks by cosine similarity to q.
func (ix *Index) VectorSearch(q []float32, k int) ([]Hit, error) {
	ix.mu.RLock()
	type scored struct {
		id    string
		score float64
	}
	scoreds := make([]scored, 0, len(ix.vectors))
	for id, v := range ix.vectors {
		scoreds = append(scoreds, scored{id: id, score: cosine(q, v)})
	}
	ix.mu.RUnlock()

	sort.Slice(scoreds, func(i, j int) bool {
		if scoreds[i].score == scoreds[j].score {
			return scoreds[i].id < scoreds[j].id
		}
		return scoreds[i].score > scoreds[j].score
	})
	if len(scoreds) > k {
		scoreds = scoreds[:k]
	}
	ids := make([]string, len(scoreds))
	for i, s := range scoreds {
		ids[i] = s.id
	}
	docs, err := ix.lookup(ids)
	if err != nil {
		return nil, err
	}
	out := make([]Hit, 0, len(scoreds))
	for i, s := range scoreds {
		hit, ok := docs[s.id]
		if !ok {
			continue
		}
		hit.Score = s.score
		hit.Rank = i + 1
		out = append(out, hit)
	}
	return out, nil
}

func (ix *Index) lookup(ids []string) (map[string]Hit, error) {
	out := make(map[string]Hit, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	req := bleve.NewSearchRequestOptions(bleve.NewDocIDQuery(ids), len(ids), 0, false)
	req.Fields = storedFields
	ix.mu.RLock()
	res, err := ix.bleve.Search(req)
	ix.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	for _, h := range res.Hits {
		out[h.ID] = hitFromFields(h.ID, h.Fields)
	}
	return out, nil
}

// Sample returns up to k chunks matching any of the sample terms, deduplicated.
func (ix *Index) Sample(terms []string, perTerm int) ([]Hit, error) {
	seen := map[string]struct{}{}
	var out []Hit
	for _, term := range terms {
		hits, err := ix.Bm25Search(term, perTerm)
		if err != nil {
			return nil, err
		}
		for _, h := range hits {
			if _, ok := seen[h.DocID]; ok {
				continue
			}
			seen[h.DocID] = struct{}{}
			out = append(out, h)
		}
	}
	return out, nil
}

// FuseRRF merges two ranked lists with reciprocal-rank fusion.
func FuseRRF(a, b []Hit, k int) []Hit {
	type agg struct {
		item  Hit
		score float64
		order int
	}
	m := map[string]*agg{}
	n := 0
	add := func(list []Hit) {
		for _, h := range list {
			x, ok := m[h.DocID]
			if !ok {
				x = &agg{item: h, order: n}
				m[h.DocID] = x
				n++
			}
			x.score += 1.0 / float64(rrfK+h.Rank)
		}
	}
	add(a)
	add(b)
	items := make([]*agg, 0, len(m))
	for _, v := range m {
		items = append(items, v)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].score == items[j].score {
			return items[i].order < items[j].order
		}
		return items[i].score > items[j].score
	})
	out := make([]Hit, 0, min(k, len(items)))
	for i := 0; i < min(k, len(items)); i++ {
		h := items[i].item
		h.Score = items[i].score
		h.Rank = i + 1
		out = append(out, h)
	}
	return out
}

// Count returns the number of indexed chunks.
func (ix *Index) Count() (uint64, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.bleve.DocCount()
}

// Stats summarizes the index for the stats command.
type Stats struct {
	Chunks  uint64         `json:"chunks"`
	Vectors int            `json:"vectors"`
	Sources map[string]int `json:"sources"`
}

// Stats reports chunk counts per source using a facet over the source field.
func (ix *Index) Stats() (Stats, error) {
	count, err := ix.Count()
	if err != nil {
		return Stats{}, err
	}
	req := bleve.NewSearchRequestOptions(bleve.NewMatchAllQuery(), 0, 0, false)
	req.AddFacet("sources", bleve.NewFacetRequest("source", 1000))
	ix.mu.RLock()
	res, err := ix.bleve.Search(req)
	vectors := len(ix.vectors)
	ix.mu.RUnlock()
	if err != nil {
		return Stats{}, err
	}
	st := Stats{Chunks: count, Vectors: vectors, Sources: map[string]int{}}
	if f, ok := res.Facets["sources"]; ok && f.Terms != nil {
		for _, t := range f.Terms {
			st.Sources[t.Term] = t.Count
		}
	}
	return st, nil
}

// Close persists vectors and closes the bleve index.
func (ix *Index) Close() error {
	saveErr := ix.saveVectors()
	closeErr := ix.bleve.Close()
	return errors.Join(saveErr, closeErr)
}

func (ix *Index) vectorPath() string {
	if ix.path == "" {
		return ""
	}
	return ix.path + ".vectors.json"
}

func (ix *Index) loadVectors() error {
	p := ix.vectorPath()
	if p == "" || !exists(p) {
		return nil
	}
	raw, err := os.ReadFile(p)
	if err != nil {
		return err
	}
	var vecs []embedding.EmbedVec
	if err := json.Unmarshal(raw, &vecs); err != nil {
		return err
	}
	for _, v := range vecs {
		ix.vectors[v.DocID] = v.Vec
	}
	return nil
}

func (ix *Index) saveVectors() error {
	p := ix.vectorPath()
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if p == "" || len(ix.vectors) == 0 {
		return nil
	}
	vecs := make([]embedding.EmbedVec, 0, len(ix.vectors))
	for id, v := range ix.vectors {
		vecs = append(vecs, embedding.EmbedVec{DocID: id, Vec: v})
	}
	sort.Slice(vecs, func(i, j int) bool { return vecs[i].DocID < vecs[j].DocID })
	raw, err := json.Marshal(vecs)
	if err != nil {
		return err
	}
	return os.WriteFile(p, raw, 0o644)
}

func hitFromFields(id string, fields map[string]interface{}) Hit {
	h := Hit{DocID: id}
	if v, ok := fields["text"].(string); ok {
		h.Text = v
	}
	if v, ok := fields["source"].(string); ok {
		h.Source = v
	}
	if v, ok := fields["chunk_id"].(float64); ok {
		h.ChunkID = int(v)
	}
	if v, ok := fields["page"].(float64); ok {
		h.Page = int(v)
	}
	return h
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		ai := float64(a[i])
		bi := float64(b[i])
		dot += ai * bi
		na += ai * ai
		nb += bi * bi
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

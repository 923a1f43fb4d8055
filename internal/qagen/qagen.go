package qagen

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/internal/knowledge"
	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/models"
	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/provider"
)

const (
	questionMaxTokens = 400
	answerMaxTokens   = 500
	temperature       = 0.7
	chunkPromptChars  = 2000
	maxContextChars   = 3000
	answerContextK    = 3
	minChunksSampled  = 10
)

// ComplexityAll splits sampled chunks evenly across the three levels.
const ComplexityAll = "all"

var Complexities = []string{"simple", "medium", "complex"}

// Probe terms used to pull a spread of chunks from the index.
var sampleTerms = []string{"information", "process", "method", "concept", "explanation", "example", "analysis", "comparison"}

var ErrEmptyIndex = errors.New("knowledge index is empty; ingest documents first")

// ChunkSource is the part of the knowledge index used for sampling.
type ChunkSource interface {
	Count() (uint64, error)
	Sample(terms []string, perTerm int) ([]knowledge.Hit, error)
}

// Retriever supplies answer context.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]models.Passage, error)
}

// Pair is one generated question and its grounded answer.
type Pair struct {
	Question   string `json:"Q"`
	Answer     string `json:"A"`
	Complexity string `json:"complexity"`
	ChunkID    int    `json:"-"`
	Contexts   int    `json:"-"`
}

// Options controls a generation run.
type Options struct {
	Pairs             int
	Complexity        string
	QuestionsPerChunk int
	MinChunkChars     int
}

func (o Options) normalize() Options {
	if o.Pairs <= 0 {
		o.Pairs = 50
	}
	if o.Complexity == "" {
		o.Complexity = ComplexityAll
	}
	if o.QuestionsPerChunk <= 0 {
		o.QuestionsPerChunk = 3
	}
	if o.MinChunkChars <= 0 {
		o.MinChunkChars = 200
	}
	return o
}

// Generator builds question/answer pairs from indexed chunks.
type Generator struct {
	backend   provider.Completer
	chunks    ChunkSource
	retriever Retriever
	logger    *log.Logger
}

func NewGenerator(backend provider.Completer, chunks ChunkSource, retriever Retriever, logger *log.Logger) *Generator {
	if logger == nil {
		logger = log.New(log.Writer(), "[QAGEN] ", log.LstdFlags)
	}
	return &Generator{backend: backend, chunks: chunks, retriever: retriever, logger: logger}
}

// Generate samples chunks, asks questions about them and answers each
// question from retrieved context. Questions without context are dropped.
func (g *Generator) Generate(ctx context.Context, opts Options) ([]Pair, error) {
	opts = opts.normalize()
	if opts.Complexity != ComplexityAll {
		if _, ok := complexityGuidance[opts.Complexity]; !ok {
			return nil, fmt.Errorf("unknown complexity %q", opts.Complexity)
		}
	}
	total, err := g.chunks.Count()
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return nil, ErrEmptyIndex
	}

	need := max(minChunksSampled, opts.Pairs/opts.QuestionsPerChunk)
	need = min(need, int(total))
	chunks, err := g.sampleChunks(need, opts.MinChunkChars)
	if err != nil {
		return nil, err
	}
	g.logger.Printf("sampled %d chunk(s) of %d indexed", len(chunks), total)

	var questions []Pair
	if opts.Complexity == ComplexityAll {
		per := len(chunks) / len(Complexities)
		for i, level := range Complexities {
			qs, err := g.questionsFor(ctx, chunks[i*per:(i+1)*per], level, opts.QuestionsPerChunk)
			if err != nil {
				return nil, err
			}
			questions = append(questions, qs...)
		}
	} else {
		questions, err = g.questionsFor(ctx, chunks, opts.Complexity, opts.QuestionsPerChunk)
		if err != nil {
			return nil, err
		}
	}
	if len(questions) > opts.Pairs {
		questions = questions[:opts.Pairs]
	}

	out := make([]Pair, 0, len(questions))
	for _, q := range questions {
		passages, err := g.retriever.Retrieve(ctx, q.Question, answerContextK)
		if err != nil {
			return out, fmt.Errorf("retrieve context: %w", err)
		}
		if len(passages) == 0 {
			g.logger.Printf("warning: no context for %q", truncate(q.Question, 50))
			continue
		}
		texts := make([]string, len(passages))
		for i, p := range passages {
			texts[i] = p.Text
		}
		answer, err := g.Answer(ctx, q.Question, texts)
		if err != nil {
			return out, err
		}
		q.Answer = answer
		q.Contexts = len(passages)
		out = append(out, q)
	}
	g.logger.Printf("generated %d question/answer pair(s)", len(out))
	return out, nil
}

func (g *Generator) sampleChunks(n, minChars int) ([]knowledge.Hit, error) {
	hits, err := g.chunks.Sample(sampleTerms, n/len(sampleTerms)+1)
	if err != nil {
		return nil, fmt.Errorf("sample chunks: %w", err)
	}
	out := make([]knowledge.Hit, 0, n)
	for _, h := range hits {
		if len(h.Text) < minChars {
			continue
		}
		out = append(out, h)
		if len(out) == n {
			break
		}
	}
	return out, nil
}

func (g *Generator) questionsFor(ctx context.Context, chunks []knowledge.Hit, level string, perChunk int) ([]Pair, error) {
	var out []Pair
	for i, c := range chunks {
		qs, err := g.Questions(ctx, c.Text, perChunk, level)
		if err != nil {
			return nil, err
		}
		for _, q := range qs {
			out = append(out, Pair{Question: q, Complexity: level, ChunkID: i})
		}
	}
	return out, nil
}

// Questions asks for n questions about chunk at the given complexity.
func (g *Generator) Questions(ctx context.Context, chunk string, n int, level string) ([]string, error) {
	guidance, ok := complexityGuidance[level]
	if !ok {
		guidance = complexityGuidance["medium"]
	}
	prompt := fmt.Sprintf(questionPromptTemplate, n, truncate(chunk, chunkPromptChars), guidance)
	resp, err := g.backend.Complete(ctx, provider.Request{Prompt: prompt, MaxTokens: questionMaxTokens, Temperature: temperature})
	if err != nil {
		return nil, fmt.Errorf("generate questions: %w", err)
	}
	return ParseQuestions(resp), nil
}

// Answer answers question from the given context chunks.
func (g *Generator) Answer(ctx context.Context, question string, contexts []string) (string, error) {
	joined := strings.Join(contexts, "\n\n")
	if len(joined) > maxContextChars {
		joined = truncate(joined, maxContextChars) + "..."
	}
	resp, err := g.backend.Complete(ctx, provider.Request{
		Prompt:      fmt.Sprintf(answerPromptTemplate, joined, question),
		MaxTokens:   answerMaxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("generate answer: %w", err)
	}
	return ScrubReferences(resp), nil
}

var numbered = regexp.MustCompile(`^\d+\.\s*(.+)$`)

// ParseQuestions extracts the items of a numbered list.
func ParseQuestions(resp string) []string {
	var out []string
	for _, line := range strings.Split(strings.TrimSpace(resp), "\n") {
		m := numbered.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		if q := ScrubReferences(m[1]); q != "" {
			out = append(out, q)
		}
	}
	return out
}

var referencePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b(?i:figure|page|table|chart|section)\s+\d+\b`),
	regexp.MustCompile(`(?i)according to (the )?(document|text|passage|material)`),
	regexp.MustCompile(`(?i)(the )?(document|text|passage) (states|shows|indicates|mentions)`),
	regexp.MustCompile(`(?i)as (stated|shown|mentioned|indicated) in (the )?(document|text|passage)`),
}

var spaces = regexp.MustCompile(`\s+`)

// ScrubReferences removes figure, page and "according to the document"
// style references so records read as general knowledge.
func ScrubReferences(s string) string {
	for _, re := range referencePatterns {
		s = re.ReplaceAllString(s, "")
	}
	return strings.TrimSpace(spaces.ReplaceAllString(s, " "))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

package transform

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/provider"
)

const (
	personaMaxTokens    = 200
	complexityMaxTokens = 250
	temperature         = 0.7
)

// Persona describes a user style a query can be rewritten into.
type Persona struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Style       string `json:"style"`
}

// Complexity is a rewrite level. Q keeps the query unchanged.
type Complexity struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ToolVariant labels whether downstream tool data is meant to be correct.
type ToolVariant struct {
	ID          string `json:"id"`
	Description string `json:"description"`
}

var Personas = []Persona{
	{"P1", "First-time Investor", "New to investing, uses simple language, asks basic questions", "Simple, conversational, may be uncertain or ask for explanations"},
	{"P2", "Experienced Professional", "Familiar with investment concepts, direct and efficient", "Professional, concise, uses standard industry terminology"},
	{"P3", "Technical Analyst", "Data-driven, wants specific metrics and numbers", "Analytical, precise, requests quantitative details"},
	{"P4", "Anxious Investor", "Risk-averse, concerned about losses, seeks reassurance", "Cautious, uncertain, multiple questions, risk-focused"},
	{"P5", "Directive Executive", "Time-conscious, assertive, expects quick answers", "Direct commands, minimal details, action-oriented"},
}

var Complexities = []Complexity{
	{"Q-", "Simplified", "Break down into simpler terms, beginner-friendly"},
	{"Q", "Original", "Keep as-is"},
	{"Q+", "Complex", "Make more sophisticated, multi-faceted"},
}

var ToolVariants = []ToolVariant{
	{"correct", "Normal tool execution with valid data"},
	{"incorrect", "Tool returns mismatched or wrong data"},
}

// Variant is one expanded query.
type Variant struct {
	SeedQuery              string `json:"seed_query"`
	SeedID                 int    `json:"seed_id"`
	Persona                string `json:"persona"`
	PersonaName            string `json:"persona_name"`
	Complexity             string `json:"complexity"`
	ComplexityName         string `json:"complexity_name"`
	TransformedQuery       string `json:"transformed_query"`
	ToolVariant            string `json:"tool_variant"`
	ToolVariantDescription string `json:"tool_variant_description"`
}

// Metadata returns the variant as trajectory metadata.
func (v Variant) Metadata() map[string]interface{} {
	return map[string]interface{}{
		"seed_query":               v.SeedQuery,
		"seed_id":                  v.SeedID,
		"persona":                  v.Persona,
		"persona_name":             v.PersonaName,
		"complexity":               v.Complexity,
		"complexity_name":          v.ComplexityName,
		"transformed_query":        v.TransformedQuery,
		"tool_variant":             v.ToolVariant,
		"tool_variant_description": v.ToolVariantDescription,
	}
}

// Filter restricts expansion to one persona and/or complexity. Empty or
// "all" keeps every value.
type Filter struct {
	Persona    string
	Complexity string
}

func (f Filter) Validate() error {
	if !isAll(f.Persona) {
		if _, ok := PersonaByID(f.Persona); !ok {
			return fmt.Errorf("unknown persona %q", f.Persona)
		}
	}
	if !isAll(f.Complexity) {
		if _, ok := ComplexityByID(f.Complexity); !ok {
			return fmt.Errorf("unknown complexity %q", f.Complexity)
		}
	}
	return nil
}

func isAll(s string) bool { return s == "" || strings.EqualFold(s, "all") }

func PersonaByID(id string) (Persona, bool) {
	for _, p := range Personas {
		if p.ID == id {
			return p, true
		}
	}
	return Persona{}, false
}

func ComplexityByID(id string) (Complexity, bool) {
	for _, c := range Complexities {
		if c.ID == id {
			return c, true
		}
	}
	return Complexity{}, false
}

// ExpansionFactor is the number of variants per seed under a filter.
func ExpansionFactor(f Filter) int {
	p, c := len(Personas), len(Complexities)
	if !isAll(f.Persona) {
		p = 1
	}
	if !isAll(f.Complexity) {
		c = 1
	}
	return p * c * len(ToolVariants)
}

// Transformer rewrites seed queries through the completion backend.
type Transformer struct {
	backend provider.Completer
	logger  *log.Logger
}

func NewTransformer(backend provider.Completer, logger *log.Logger) *Transformer {
	if logger == nil {
		logger = log.New(log.Writer(), "[TRANSFORM] ", log.LstdFlags)
	}
	return &Transformer{backend: backend, logger: logger}
}

// Persona rewrites query in the persona's voice.
func (t *Transformer) Persona(ctx context.Context, query string, p Persona) (string, error) {
	prompt := fmt.Sprintf(personaPromptTemplate, p.Name, p.Description, p.Style, query, p.Name)
	return t.complete(ctx, prompt, personaMaxTokens)
}

// Complexity rewrites query to the given level; Q returns it unchanged.
func (t *Transformer) Complexity(ctx context.Context, query string, c Complexity) (string, error) {
	switch c.ID {
	case "Q":
		return query, nil
	case "Q-":
		return t.complete(ctx, fmt.Sprintf(simplifyPromptTemplate, query), complexityMaxTokens)
	case "Q+":
		return t.complete(ctx, fmt.Sprintf(complicatePromptTemplate, query), complexityMaxTokens)
	}
	return "", fmt.Errorf("unknown complexity %q", c.ID)
}

// Expand produces persona x complexity x tool-variant rewrites of one seed,
// in persona, complexity, tool-variant order.
func (t *Transformer) Expand(ctx context.Context, seed string, seedID int, f Filter) ([]Variant, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	out := make([]Variant, 0, ExpansionFactor(f))
	for _, p := range Personas {
		if !isAll(f.Persona) && p.ID != f.Persona {
			continue
		}
		personaQuery, err := t.Persona(ctx, seed, p)
		if err != nil {
			return out, fmt.Errorf("seed %d persona %s: %w", seedID, p.ID, err)
		}
		for _, c := range Complexities {
			if !isAll(f.Complexity) && c.ID != f.Complexity {
				continue
			}
			q, err := t.Complexity(ctx, personaQuery, c)
			if err != nil {
				return out, fmt.Errorf("seed %d %s/%s: %w", seedID, p.ID, c.ID, err)
			}
			for _, tv := range ToolVariants {
				out = append(out, Variant{
					SeedQuery:              seed,
					SeedID:                 seedID,
					Persona:                p.ID,
					PersonaName:            p.Name,
					Complexity:             c.ID,
					ComplexityName:         c.Name,
					TransformedQuery:       q,
					ToolVariant:            tv.ID,
					ToolVariantDescription: tv.Description,
				})
			}
		}
	}
	t.logger.Printf("seed %d expanded into %d variant(s)", seedID, len(out))
	return out, nil
}

func (t *Transformer) complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	resp, err := t.backend.Complete(ctx, provider.Request{Prompt: prompt, MaxTokens: maxTokens, Temperature: temperature})
	if err != nil {
		return "", err
	}
	return cleanRewrite(resp), nil
}

func cleanRewrite(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"`)
	return strings.Trim(s, "'")
}

package models

import "time"

// ToolDescriptor is a tool the decision policy may choose from.
type ToolDescriptor struct {
	Name        string                 `json:"name" yaml:"name"`
	Description string                 `json:"description" yaml:"description"`
	Parameters  map[string]interface{} `json:"parameters" yaml:"parameters"`
}

// ToolResult is the observed output of one tool execution.
type ToolResult struct {
	ToolName  string                 `json:"tool_name"`
	Result    interface{}            `json:"result"`
	Iteration int                    `json:"iteration"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// ResultText renders the result as a string for prompts.
func (r ToolResult) ResultText() string {
	switch v := r.Result.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return stringify(v)
	}
}

// IterationState is the per-trajectory working memory.
type IterationState struct {
	QueryID     string       `json:"query_id"`
	Query       string       `json:"query"`
	Iteration   int          `json:"iteration"`
	ToolResults []ToolResult `json:"tool_results"`
	CreatedAt   time.Time    `json:"created_at"`
}

// History returns a copy of the accumulated tool results.
func (s IterationState) History() []ToolResult {
	out := make([]ToolResult, len(s.ToolResults))
	copy(out, s.ToolResults)
	return out
}

// Passage is one retrieved text chunk.
type Passage struct {
	Text     string                 `json:"text"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

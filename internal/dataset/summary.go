package dataset

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/config"
	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/internal/agent/core"
)

// Summary describes a generated dataset.
type Summary struct {
	Queries          int            `json:"queries"`
	Examples         int            `json:"examples"`
	Decisions        map[string]int `json:"decisions"`
	Outcomes         map[string]int `json:"outcomes,omitempty"`
	Failed           int            `json:"failed"`
	ExamplesPerQuery float64        `json:"examples_per_query"`
	// Iterations maps trajectory length to the number of trajectories.
	Iterations map[int]int `json:"iterations"`
}

func newSummary() Summary {
	return Summary{Decisions: map[string]int{}, Outcomes: map[string]int{}, Iterations: map[int]int{}}
}

// Summarize aggregates in-memory trajectories.
func Summarize(trajs []core.Trajectory) Summary {
	s := newSummary()
	for _, t := range trajs {
		s.Queries++
		s.Examples += len(t.Examples)
		s.Outcomes[string(t.Outcome)]++
		if t.Outcome == core.OutcomeFailed {
			s.Failed++
		}
		s.Iterations[len(t.Examples)]++
		for _, ex := range t.Examples {
			s.Decisions[DecisionType(ex.Decision)]++
		}
	}
	s.finish()
	return s
}

// SummarizeJSONL aggregates a JSONL record file. Trajectories are grouped by
// metadata query_id; records without one count as their own query.
func SummarizeJSONL(r io.Reader, fields config.OutputFields) (Summary, error) {
	fields = config.OutputConfig{Fields: fields}.Normalize().Fields
	s := newSummary()
	perQuery := map[string]int{}
	var order []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16<<20)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		var rec map[string]interface{}
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			return s, fmt.Errorf("line %d: %w", line, err)
		}
		s.Examples++
		decision, _ := rec[fields.Decision].(string)
		s.Decisions[DecisionType(decision)]++

		key := fmt.Sprintf("line-%d", line)
		if meta, ok := rec["metadata"].(map[string]interface{}); ok {
			if id, ok := meta["query_id"]; ok {
				key = fmt.Sprint(id)
			}
		}
		if _, ok := perQuery[key]; !ok {
			order = append(order, key)
		}
		perQuery[key]++
	}
	if err := sc.Err(); err != nil {
		return s, err
	}
	s.Queries = len(order)
	for _, k := range order {
		s.Iterations[perQuery[k]]++
	}
	s.Outcomes = nil
	s.finish()
	return s, nil
}

func (s *Summary) finish() {
	if s.Queries > 0 {
		s.ExamplesPerQuery = float64(s.Examples) / float64(s.Queries)
	}
}

// DecisionType classifies an encoded decision string.
func DecisionType(decision string) string {
	switch {
	case strings.HasPrefix(decision, string(core.DecisionCall)):
		return string(core.DecisionCall)
	case strings.HasPrefix(decision, string(core.DecisionAsk)):
		return string(core.DecisionAsk)
	case strings.HasPrefix(decision, string(core.DecisionAnswer)):
		return string(core.DecisionAnswer)
	}
	return "UNKNOWN"
}

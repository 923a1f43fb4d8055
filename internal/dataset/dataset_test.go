package dataset

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/config"
	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/internal/agent/core"
	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/models"
)

func TestParseJSONShapes(t *testing.T) {
	cases := map[string]string{
		"array":   `["What is ML?", {"query": "What is AI?"}]`,
		"queries": `{"queries": ["What is ML?", {"Q": "What is AI?"}]}`,
		"seeds":   `{"seed_queries": ["What is ML?", {"transformed_query": "What is AI?", "persona": "P2"}]}`,
	}
	for name, raw := range cases {
		qs, err := ParseJSON([]byte(raw))
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if len(qs) != 2 || qs[0].Text != "What is ML?" || qs[1].Text != "What is AI?" {
			t.Fatalf("%s: unexpected queries %+v", name, qs)
		}
		if qs[1].ID != 2 || qs[1].Metadata["query_id"] != 2 {
			t.Fatalf("%s: unexpected id metadata %+v", name, qs[1])
		}
	}
	if _, err := ParseJSON([]byte(`{"items": []}`)); err == nil {
		t.Fatalf("expected error for unknown wrapper")
	}
}

func TestParseJSONLKeepsMetadataAndPositions(t *testing.T) {
	raw := `{"transformed_query": "Show me the allocation now.", "persona": "P5", "query_id": 99}

{"nothing": "here"}
"plain string"
`
	qs, err := ParseJSONL([]byte(raw))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(qs) != 2 {
		t.Fatalf("expected 2 queries, got %d", len(qs))
	}
	if qs[0].Metadata["persona"] != "P5" || qs[0].Metadata["query_id"] != 1 {
		t.Fatalf("unexpected metadata %v", qs[0].Metadata)
	}
	if qs[1].ID != 3 || qs[1].Text != "plain string" {
		t.Fatalf("skipped items should still consume ids: %+v", qs[1])
	}
	if _, err := ParseJSONL([]byte("{broken")); err == nil {
		t.Fatalf("expected invalid json error")
	}
}

func TestLoadQueriesByExtension(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "q.json")
	jsonlPath := filepath.Join(dir, "q.jsonl")
	if err := os.WriteFile(jsonPath, []byte(`["a", "b"]`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(jsonlPath, []byte("\"a\"\n\"b\"\n\"c\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if qs, err := LoadQueries(jsonPath); err != nil || len(qs) != 2 {
		t.Fatalf("json: %v %v", qs, err)
	}
	if qs, err := LoadQueries(jsonlPath); err != nil || len(qs) != 3 {
		t.Fatalf("jsonl: %v %v", qs, err)
	}
}

func sampleTrajectory(id int) core.Trajectory {
	return core.Trajectory{
		QueryID: "q",
		Query:   "What is ML?",
		Outcome: core.OutcomeAnswered,
		Examples: []core.TrainingExample{
			{
				Query: "What is ML?", ChainOfThought: "search", Decision: "CALL",
				ToolSet:  []models.ToolDescriptor{{Name: "search_knowledge_base", Description: "d", Parameters: map[string]interface{}{}}},
				Metadata: map[string]interface{}{"query_id": id, "iteration": 0},
			},
			{
				Query: "What is ML?", ChainOfThought: "enough", Decision: "ANSWER: learning from data",
				Context:  []core.ContextEntry{{Tool: "search_knowledge_base", Result: "Retrieved 1 relevant documents: x...", Iteration: 0}},
				Metadata: map[string]interface{}{"query_id": id, "iteration": 1},
			},
		},
	}
}

func TestJSONLSinkAppendsAndSummarizes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "trajectories.jsonl")
	for run := 1; run <= 2; run++ {
		sink, err := NewFileSink(path, config.OutputConfig{})
		if err != nil {
			t.Fatalf("sink: %v", err)
		}
		if err := sink.Write(context.Background(), sampleTrajectory(run)); err != nil {
			t.Fatalf("write: %v", err)
		}
		if err := sink.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 appended lines, got %d", len(lines))
	}
	if !strings.HasPrefix(lines[0], `{"Q":"What is ML?","COT":"search","Tool Set":[`) {
		t.Fatalf("unexpected first record %s", lines[0])
	}

	s, err := SummarizeJSONL(bytes.NewReader(raw), config.OutputFields{})
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if s.Queries != 2 || s.Examples != 4 || s.Decisions["CALL"] != 2 || s.Decisions["ANSWER"] != 2 {
		t.Fatalf("unexpected summary %+v", s)
	}
	if s.Iterations[2] != 2 || s.ExamplesPerQuery != 2 {
		t.Fatalf("unexpected histogram %+v", s)
	}
}

func TestJSONSinkWritesArrayWithCustomFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	sink, err := NewFileSink(path, config.OutputConfig{Format: "json", Fields: config.OutputFields{Query: "question"}})
	if err != nil {
		t.Fatalf("sink: %v", err)
	}
	if err := sink.Write(context.Background(), sampleTrajectory(1)); err != nil {
		t.Fatal(err)
	}
	if err := sink.Close(); err != nil {
		t.Fatal(err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var recs []map[string]interface{}
	if err := json.Unmarshal(raw, &recs); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(recs) != 2 || recs[0]["question"] != "What is ML?" {
		t.Fatalf("unexpected records %v", recs)
	}
	if _, ok := recs[0]["Context"]; ok {
		t.Fatalf("first record must not carry context")
	}
	if _, ok := recs[1]["Context"]; !ok {
		t.Fatalf("second record must carry context")
	}
}

func TestNewFileSinkRejectsUnknownFormat(t *testing.T) {
	if _, err := NewFileSink(filepath.Join(t.TempDir(), "x"), config.OutputConfig{Format: "parquet"}); err == nil {
		t.Fatalf("expected format error")
	}
}

func TestSummarizeTrajectories(t *testing.T) {
	failed := core.Trajectory{Outcome: core.OutcomeFailed, Examples: []core.TrainingExample{{Decision: "CALL"}}}
	s := Summarize([]core.Trajectory{sampleTrajectory(1), failed})
	if s.Queries != 2 || s.Examples != 3 || s.Failed != 1 {
		t.Fatalf("unexpected summary %+v", s)
	}
	if s.Outcomes["answered"] != 1 || s.Iterations[1] != 1 || s.Iterations[2] != 1 {
		t.Fatalf("unexpected breakdown %+v", s)
	}
	if DecisionType("ASK: which?") != "ASK" || DecisionType("???") != "UNKNOWN" {
		t.Fatalf("unexpected decision classification")
	}
}

func TestJSONLSinkWritesMarkupLiterally(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trajectories.jsonl")
	sink, err := NewFileSink(path, config.OutputConfig{})
	if err != nil {
		t.Fatalf("sink: %v", err)
	}
	traj := sampleTrajectory(1)
	traj.Examples[1].ChainOfThought = "x < y && y > z"
	if err := sink.Write(context.Background(), traj); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), `"COT":"x < y && y > z"`) {
		t.Fatalf("reasoning should be written without html escapes: %s", raw)
	}
}

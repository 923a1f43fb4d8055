package core

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/config"
	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/models"
)

func TestRecordKeyOrderAndOptionalFields(t *testing.T) {
	ex := TrainingExample{
		Query:          "What is ML?",
		ChainOfThought: "search first",
		Decision:       "CALL",
		ToolSet:        []models.ToolDescriptor{{Name: "search_knowledge_base", Description: "d", Parameters: map[string]interface{}{}}},
		Metadata:       map[string]interface{}{"iteration": 0},
	}
	b, err := json.Marshal(ex.Record(DefaultFields()))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(b)
	if !strings.HasPrefix(s, `{"Q":"What is ML?","COT":"search first","Tool Set":[`) {
		t.Fatalf("unexpected key order: %s", s)
	}
	if strings.Contains(s, `"Context"`) {
		t.Fatalf("context must be omitted at iteration 0: %s", s)
	}
	if !strings.HasSuffix(s, `"metadata":{"iteration":0}}`) {
		t.Fatalf("unexpected metadata tail: %s", s)
	}
}

func TestRecordCustomFieldNamesAndContext(t *testing.T) {
	ex := TrainingExample{
		Query:    "q",
		Decision: "ANSWER: a",
		Context:  []ContextEntry{{Tool: "t", Result: "r", Iteration: 0}},
	}
	b, err := json.Marshal(ex.Record(config.OutputFields{Query: "question", COT: "thought"}))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m["question"] != "q" || m["Decision"] != "ANSWER: a" {
		t.Fatalf("unexpected record %v", m)
	}
	if ts, ok := m["Tool Set"].([]interface{}); !ok || len(ts) != 0 {
		t.Fatalf("tool set should be an empty list, got %v", m["Tool Set"])
	}
	ctx, ok := m["Context"].([]interface{})
	if !ok || len(ctx) != 1 {
		t.Fatalf("expected one context entry, got %v", m["Context"])
	}
}

func TestRecordKeepsMarkupCharactersLiteral(t *testing.T) {
	ex := TrainingExample{
		Query:          "Is a < b && c > d?",
		ChainOfThought: "compare <values>",
		Decision:       "ANSWER: yes & no",
	}
	var buf strings.Builder
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(ex.Record(DefaultFields())); err != nil {
		t.Fatalf("encode: %v", err)
	}
	out := buf.String()
	if strings.Contains(out, `\u003c`) || strings.Contains(out, `\u003e`) || strings.Contains(out, `\u0026`) {
		t.Fatalf("markup characters were escaped: %s", out)
	}
	if !strings.Contains(out, `"COT":"compare <values>"`) || !strings.Contains(out, `"Decision":"ANSWER: yes & no"`) {
		t.Fatalf("unexpected record %s", out)
	}
	var back map[string]interface{}
	if err := json.Unmarshal([]byte(out), &back); err != nil || back["Q"] != "Is a < b && c > d?" {
		t.Fatalf("record should round-trip: %v %v", err, back)
	}
}

package core

import (
	"reflect"
	"testing"
)

func TestParseDecisionWellFormed(t *testing.T) {
	cases := []struct {
		name     string
		response string
		want     Decision
	}{
		{
			name:     "call",
			response: "DECISION: CALL\nREASONING: I should search the documents.\nTOOLS: search_knowledge_base, get_weather",
			want:     CallDecision{Reasoning: "I should search the documents.", Tools: []string{"search_knowledge_base", "get_weather"}},
		},
		{
			name:     "ask",
			response: "DECISION: ASK\nREASONING: Need the account.\nCLARIFICATION: Which account?",
			want:     AskDecision{Reasoning: "Need the account.", Clarification: "Which account?"},
		},
		{
			name:     "answer",
			response: "DECISION: ANSWER\nREASONING: Context suffices.\nANSWER: Machine learning learns from data.",
			want:     AnswerDecision{Reasoning: "Context suffices.", Answer: "Machine learning learns from data."},
		},
		{
			name:     "keyword is case-insensitive substring",
			response: "DECISION: i will call a tool\nREASONING: r\nTOOLS: search_knowledge_base",
			want:     CallDecision{Reasoning: "r", Tools: []string{"search_knowledge_base"}},
		},
		{
			name:     "call wins over answer when both appear",
			response: "DECISION: [CALL/ASK/ANSWER]\nREASONING: r\nTOOLS: x",
			want:     CallDecision{Reasoning: "r", Tools: []string{"x"}},
		},
	}
	for _, tc := range cases {
		res := ParseDecision(tc.response)
		if res.Fallback {
			t.Fatalf("%s: unexpected fallback (%s)", tc.name, res.Problem)
		}
		if !reflect.DeepEqual(res.Decision, tc.want) {
			t.Fatalf("%s: expected %#v, got %#v", tc.name, tc.want, res.Decision)
		}
	}
}

func TestParseDecisionMultiLineSections(t *testing.T) {
	response := `Some preamble that should be ignored.
DECISION: ANSWER

REASONING: First line of thought.
Second line of thought.

ANSWER: Part one.
Part two.`
	res := ParseDecision(response)
	ans, ok := res.Decision.(AnswerDecision)
	if !ok || res.Fallback {
		t.Fatalf("expected parsed answer, got %#v (fallback=%v)", res.Decision, res.Fallback)
	}
	if ans.Reasoning != "First line of thought. Second line of thought." {
		t.Fatalf("unexpected reasoning %q", ans.Reasoning)
	}
	if ans.Answer != "Part one. Part two." {
		t.Fatalf("unexpected answer %q", ans.Answer)
	}
}

func TestParseDecisionFallbackOnMissingKeyword(t *testing.T) {
	for _, response := range []string{"", "I think the answer is 42.", "DECISION: maybe\nREASONING: unsure"} {
		res := ParseDecision(response)
		ans, ok := res.Decision.(AnswerDecision)
		if !ok || !res.Fallback {
			t.Fatalf("%q: expected fallback answer, got %#v", response, res.Decision)
		}
		if ans.Answer == "" || ans.Reasoning == "" {
			t.Fatalf("%q: fallback must carry non-empty answer and reasoning: %#v", response, ans)
		}
	}
	res := ParseDecision("nothing useful")
	if res.Decision.(AnswerDecision).Answer != FallbackAnswer || res.Decision.Reason() != FallbackReasoning {
		t.Fatalf("expected default fallback strings, got %#v", res.Decision)
	}
}

func TestParseDecisionMalformedToolList(t *testing.T) {
	res := ParseDecision("DECISION: CALL\nREASONING: search first\nTOOLS: , ,")
	if !res.Fallback {
		t.Fatalf("expected fallback for empty tool list")
	}
	if res.Decision.Kind() != DecisionAnswer {
		t.Fatalf("expected ANSWER fallback, got %s", res.Decision.Kind())
	}
}

func TestParseDecisionToolsOnFollowingLines(t *testing.T) {
	res := ParseDecision("DECISION: CALL\nREASONING: r\nTOOLS:\n- search_knowledge_base\n- `get_weather`")
	call, ok := res.Decision.(CallDecision)
	if !ok {
		t.Fatalf("expected call, got %#v", res.Decision)
	}
	if !reflect.DeepEqual(call.Tools, []string{"search_knowledge_base", "get_weather"}) {
		t.Fatalf("unexpected tools %v", call.Tools)
	}
}

func TestParseDecisionFillsMissingReasoning(t *testing.T) {
	res := ParseDecision("DECISION: ASK\nCLARIFICATION: Which client?")
	if res.Fallback {
		t.Fatalf("did not expect fallback")
	}
	if res.Decision.Reason() == "" {
		t.Fatalf("expected non-empty reasoning")
	}
}

func TestDecisionEncoding(t *testing.T) {
	if got := (CallDecision{Tools: []string{"a"}}).Encode(); got != "CALL" {
		t.Fatalf("unexpected call encoding %q", got)
	}
	if got := (AskDecision{Clarification: "which?"}).Encode(); got != "ASK: which?" {
		t.Fatalf("unexpected ask encoding %q", got)
	}
	if got := (AnswerDecision{Answer: "42"}).Encode(); got != "ANSWER: 42" {
		t.Fatalf("unexpected answer encoding %q", got)
	}
}

package core

import (
	"strings"
)

const (
	FallbackAnswer        = "I apologize, but I need more information to answer your query properly."
	FallbackReasoning     = "Decision parsing failed, providing default response."
	DefaultReasoning      = "No reasoning was provided for this decision."
	DefaultClarification  = "Could you provide more details about what you need?"
	malformedToolsMessage = "decision was CALL but no tool names were listed"
)

type section int

const (
	sectionNone section = iota
	sectionDecision
	sectionReasoning
	sectionTools
	sectionClarification
	sectionAnswer
)

var labels = []struct {
	prefix string
	sec    section
}{
	{"DECISION:", sectionDecision},
	{"REASONING:", sectionReasoning},
	{"TOOLS:", sectionTools},
	{"CLARIFICATION:", sectionClarification},
	{"ANSWER:", sectionAnswer},
}

// ParseResult reports how a response was interpreted.
type ParseResult struct {
	Decision Decision
	// Fallback is set when the response could not be interpreted and a
	// default answer was substituted.
	Fallback bool
	// Problem describes why the fallback was used.
	Problem string
}

// ParseDecision interprets a labeled policy response. It never fails:
// unrecognizable input yields a default AnswerDecision with Fallback set.
func ParseDecision(response string) ParseResult {
	var (
		kind          DecisionType
		reasoning     []string
		tools         []string
		clarification []string
		answer        []string
		current       = sectionNone
	)

	for _, raw := range strings.Split(strings.TrimSpace(response), "\n") {
		line := strings.TrimSpace(raw)
		sec, rest, ok := matchLabel(line)
		if ok {
			current = sec
			switch sec {
			case sectionDecision:
				kind = decisionKeyword(rest)
			case sectionReasoning:
				reasoning = appendText(nil, rest)
			case sectionTools:
				tools = splitTools(nil, rest)
			case sectionClarification:
				clarification = appendText(nil, rest)
			case sectionAnswer:
				answer = appendText(nil, rest)
			}
			continue
		}
		if line == "" {
			continue
		}
		switch current {
		case sectionReasoning:
			reasoning = appendText(reasoning, line)
		case sectionClarification:
			clarification = appendText(clarification, line)
		case sectionAnswer:
			answer = appendText(answer, line)
		case sectionTools:
			tools = splitTools(tools, strings.TrimLeft(line, "-*• "))
		}
	}

	why := strings.Join(reasoning, " ")
	switch kind {
	case DecisionCall:
		if len(tools) == 0 {
			return fallback(why, strings.Join(answer, " "), malformedToolsMessage)
		}
		return ParseResult{Decision: CallDecision{Reasoning: orDefault(why, DefaultReasoning), Tools: tools}}
	case DecisionAsk:
		return ParseResult{Decision: AskDecision{
			Reasoning:     orDefault(why, DefaultReasoning),
			Clarification: orDefault(strings.Join(clarification, " "), DefaultClarification),
		}}
	case DecisionAnswer:
		return ParseResult{Decision: AnswerDecision{
			Reasoning: orDefault(why, DefaultReasoning),
			Answer:    orDefault(strings.Join(answer, " "), FallbackAnswer),
		}}
	}
	return fallback(why, strings.Join(answer, " "), "no decision keyword recognized")
}

func fallback(reasoning, answer, problem string) ParseResult {
	return ParseResult{
		Decision: AnswerDecision{
			Reasoning: orDefault(reasoning, FallbackReasoning),
			Answer:    orDefault(answer, FallbackAnswer),
		},
		Fallback: true,
		Problem:  problem,
	}
}

func matchLabel(line string) (section, string, bool) {
	for _, l := range labels {
		if strings.HasPrefix(line, l.prefix) {
			return l.sec, strings.TrimSpace(line[len(l.prefix):]), true
		}
	}
	return sectionNone, "", false
}

// decisionKeyword checks CALL, then ASK, then ANSWER by substring.
func decisionKeyword(text string) DecisionType {
	upper := strings.ToUpper(text)
	switch {
	case strings.Contains(upper, "CALL"):
		return DecisionCall
	case strings.Contains(upper, "ASK"):
		return DecisionAsk
	case strings.Contains(upper, "ANSWER"):
		return DecisionAnswer
	}
	return ""
}

func appendText(parts []string, s string) []string {
	if s == "" {
		return parts
	}
	return append(parts, s)
}

func splitTools(tools []string, s string) []string {
	for _, t := range strings.Split(s, ",") {
		t = strings.Trim(strings.TrimSpace(t), "[]`\"'")
		if t != "" {
			tools = append(tools, t)
		}
	}
	return tools
}

func orDefault(s, def string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	return s
}

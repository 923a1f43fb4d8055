package core

import (
	"context"

	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/models"
)

// DecisionType is the kind of step the policy chose.
type DecisionType string

const (
	DecisionCall   DecisionType = "CALL"
	DecisionAsk    DecisionType = "ASK"
	DecisionAnswer DecisionType = "ANSWER"
)

// Decision is one of CallDecision, AskDecision or AnswerDecision.
type Decision interface {
	Kind() DecisionType
	Reason() string
	// Encode renders the decision as it appears in a training record.
	Encode() string
	sealed()
}

// CallDecision requests tool execution.
type CallDecision struct {
	Reasoning string
	Tools     []string
}

// AskDecision requests clarification from the user.
type AskDecision struct {
	Reasoning     string
	Clarification string
}

// AnswerDecision is a final answer.
type AnswerDecision struct {
	Reasoning string
	Answer    string
}

func (CallDecision) Kind() DecisionType   { return DecisionCall }
func (AskDecision) Kind() DecisionType    { return DecisionAsk }
func (AnswerDecision) Kind() DecisionType { return DecisionAnswer }

func (d CallDecision) Reason() string   { return d.Reasoning }
func (d AskDecision) Reason() string    { return d.Reasoning }
func (d AnswerDecision) Reason() string { return d.Reasoning }

func (CallDecision) Encode() string     { return string(DecisionCall) }
func (d AskDecision) Encode() string    { return string(DecisionAsk) + ": " + d.Clarification }
func (d AnswerDecision) Encode() string { return string(DecisionAnswer) + ": " + d.Answer }

func (CallDecision) sealed()   {}
func (AskDecision) sealed()    {}
func (AnswerDecision) sealed() {}

// Outcome is the terminal state of a trajectory.
type Outcome string

const (
	OutcomeRunning   Outcome = "running"
	OutcomeAsked     Outcome = "asked"
	OutcomeAnswered  Outcome = "answered"
	OutcomeExhausted Outcome = "exhausted"
	OutcomeFailed    Outcome = "failed"
)

// ContextEntry is one prior tool result as shown in a training example.
type ContextEntry struct {
	Tool      string      `json:"tool"`
	Result    interface{} `json:"result"`
	Iteration int         `json:"iteration"`
}

// TrainingExample is the supervised record for one iteration.
type TrainingExample struct {
	Query          string
	ChainOfThought string
	ToolSet        []models.ToolDescriptor
	Decision       string
	// Context is nil at iteration 0.
	Context  []ContextEntry
	Metadata map[string]interface{}
}

// Trajectory is the ordered output of one query.
type Trajectory struct {
	QueryID  string            `json:"query_id"`
	Query    string            `json:"query"`
	Examples []TrainingExample `json:"-"`
	Outcome  Outcome           `json:"outcome"`
}

// TrajectoryRequest is the input to GenerateTrajectory.
type TrajectoryRequest struct {
	Query    string
	QueryID  string
	Metadata map[string]interface{}
}

// Retriever returns passages relevant to a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]models.Passage, error)
}

// Catalog is the read-only tool catalog.
type Catalog interface {
	All() []models.ToolDescriptor
	Lookup(name string) (models.ToolDescriptor, bool)
}

// Decider chooses the next step of a trajectory.
type Decider interface {
	Decide(ctx context.Context, in DecisionInput) (Decision, error)
}

// DecisionInput is everything the policy sees at one iteration.
type DecisionInput struct {
	Query         string
	History       []models.ToolResult
	Tools         []models.ToolDescriptor
	Iteration     int
	MaxIterations int
}

package core

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/internal/agent/telemetry"
	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/internal/capability"
	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/models"
	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/session"
	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/session/inmemory"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const DefaultMaxIterations = 3

const tracerName = "trajgen/internal/agent/core"

// tracer resolves against the current global provider on every call so a
// provider installed after package init is honored.
func tracer() trace.Tracer { return otel.Tracer(tracerName) }

// Orchestrator drives decide, act, observe cycles for a query and emits one
// training example per iteration.
type Orchestrator struct {
	policy        Decider
	executor      *ToolExecutor
	catalog       Catalog
	states        session.Store
	telemetry     *telemetry.Telemetry
	logger        *log.Logger
	maxIterations int
	debug         bool
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

func WithMaxIterations(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxIterations = n
		}
	}
}

func WithStateStore(s session.Store) Option {
	return func(o *Orchestrator) {
		if s != nil {
			o.states = s
		}
	}
}

func WithTelemetry(t *telemetry.Telemetry) Option {
	return func(o *Orchestrator) { o.telemetry = t }
}

func WithLogger(l *log.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

func WithDebug(debug bool) Option {
	return func(o *Orchestrator) { o.debug = debug }
}

// NewOrchestrator wires the policy, executor and catalog. Without
// WithStateStore the orchestrator owns a private in-memory state table.
func NewOrchestrator(policy Decider, executor *ToolExecutor, catalog Catalog, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		policy:        policy,
		executor:      executor,
		catalog:       catalog,
		states:        inmemory.NewInMemoryStateStore(),
		logger:        log.New(log.Writer(), "[ORCH] ", log.LstdFlags),
		maxIterations: DefaultMaxIterations,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.executor == nil {
		o.executor = NewToolExecutor(nil)
	}
	if o.catalog == nil {
		o.catalog = capability.NewCatalog(nil, "", o.logger)
	}
	return o
}

// MaxIterations returns the iteration cap.
func (o *Orchestrator) MaxIterations() int { return o.maxIterations }

// GenerateTrajectory runs one query to ASK, ANSWER or the iteration cap.
// On a policy failure the examples built so far are returned with the error.
func (o *Orchestrator) GenerateTrajectory(ctx context.Context, req TrajectoryRequest) (Trajectory, error) {
	queryID := strings.TrimSpace(req.QueryID)
	if queryID == "" {
		queryID = uuid.NewString()
	}
	traj := Trajectory{QueryID: queryID, Query: req.Query, Outcome: OutcomeRunning}

	ctx, span := tracer().Start(ctx, "trajectory.generate", trace.WithAttributes(
		attribute.String("query_id", queryID),
		attribute.Int("max_iterations", o.maxIterations),
	))
	defer span.End()
	start := time.Now()

	if _, err := o.states.Create(ctx, queryID, req.Query); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "state init failed")
		return traj, fmt.Errorf("start trajectory %s: %w", queryID, err)
	}
	defer func() {
		if err := o.states.Delete(context.WithoutCancel(ctx), queryID); err != nil {
			o.logger.Printf("failed to delete state for %s: %v", queryID, err)
		}
	}()

	o.logger.Printf("generating trajectory query_id=%s query=%q", queryID, truncate(req.Query, 100))
	tools := o.catalog.All()

	for iteration := 0; iteration < o.maxIterations && traj.Outcome == OutcomeRunning; iteration++ {
		st, err := o.states.Get(ctx, queryID)
		if err != nil {
			return o.fail(span, traj, fmt.Errorf("load state %s: %w", queryID, err))
		}
		history := st.History()

		decision, err := o.policy.Decide(ctx, DecisionInput{
			Query:         req.Query,
			History:       history,
			Tools:         tools,
			Iteration:     iteration,
			MaxIterations: o.maxIterations,
		})
		if err != nil {
			return o.fail(span, traj, err)
		}

		traj.Examples = append(traj.Examples, o.buildExample(req, history, decision, iteration))
		o.telemetry.RecordExample(string(decision.Kind()))
		if o.debug {
			o.logger.Printf("query_id=%s iteration=%d decision=%s", queryID, iteration, decision.Kind())
		}

		switch d := decision.(type) {
		case CallDecision:
			results := o.executor.Execute(ctx, d.Tools, req.Query, iteration)
			if _, err := o.states.AppendResults(ctx, queryID, results); err != nil {
				return o.fail(span, traj, fmt.Errorf("record tool results %s: %w", queryID, err))
			}
		case AskDecision:
			traj.Outcome = OutcomeAsked
		case AnswerDecision:
			traj.Outcome = OutcomeAnswered
		}
	}

	if traj.Outcome == OutcomeRunning {
		// The last example keeps whatever the policy returned; no answer is synthesized.
		traj.Outcome = OutcomeExhausted
		o.logger.Printf("warning: query_id=%s exhausted %d iterations without ASK or ANSWER", queryID, o.maxIterations)
	}

	span.SetAttributes(attribute.String("outcome", string(traj.Outcome)), attribute.Int("examples", len(traj.Examples)))
	o.telemetry.RecordTrajectory(string(traj.Outcome), len(traj.Examples), time.Since(start))
	o.logger.Printf("query_id=%s finished: %s after %d example(s)", queryID, traj.Outcome, len(traj.Examples))
	return traj, nil
}

func (o *Orchestrator) fail(span trace.Span, traj Trajectory, err error) (Trajectory, error) {
	traj.Outcome = OutcomeFailed
	o.telemetry.RecordFailure()
	span.RecordError(err)
	span.SetStatus(codes.Error, "trajectory failed")
	o.logger.Printf("query_id=%s failed after %d example(s): %v", traj.QueryID, len(traj.Examples), err)
	return traj, err
}

func (o *Orchestrator) buildExample(req TrajectoryRequest, history []models.ToolResult, decision Decision, iteration int) TrainingExample {
	meta := make(map[string]interface{}, len(req.Metadata)+2)
	for k, v := range req.Metadata {
		meta[k] = v
	}
	meta["iteration"] = iteration
	meta["decision_type"] = string(decision.Kind())

	ex := TrainingExample{
		Query:          req.Query,
		ChainOfThought: decision.Reason(),
		ToolSet:        []models.ToolDescriptor{},
		Decision:       decision.Encode(),
		Metadata:       meta,
	}
	if call, ok := decision.(CallDecision); ok {
		ex.ToolSet = o.toolSet(call.Tools)
	}
	if iteration > 0 {
		ex.Context = make([]ContextEntry, 0, len(history))
		for _, r := range history {
			ex.Context = append(ex.Context, ContextEntry{Tool: r.ToolName, Result: r.Result, Iteration: r.Iteration})
		}
	}
	return ex
}

func (o *Orchestrator) toolSet(names []string) []models.ToolDescriptor {
	out := make([]models.ToolDescriptor, 0, len(names))
	for _, name := range names {
		if td, ok := o.catalog.Lookup(name); ok {
			out = append(out, td)
			continue
		}
		out = append(out, models.ToolDescriptor{
			Name:        name,
			Description: fmt.Sprintf("Tool %s", name),
			Parameters:  map[string]interface{}{},
		})
	}
	return out
}

package store

import (
	"context"
	"errors"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/config"
	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/internal/agent/core"
	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/models"
)

var (
	insertRunSQL = regexp.QuoteMeta(`
INSERT INTO trajectory_runs (query_id, query, outcome, examples, error, metadata)
VALUES ($1,$2,$3,$4,$5,$6)
RETURNING id
`)
	insertExampleSQL = regexp.QuoteMeta(`
INSERT INTO training_examples (run_id, iteration, decision_type, tools, record)
VALUES ($1,$2,$3,$4,$5)
`)
)

func sampleTrajectory() core.Trajectory {
	return core.Trajectory{
		QueryID: "q-1",
		Query:   "What is ML?",
		Outcome: core.OutcomeAnswered,
		Examples: []core.TrainingExample{
			{
				Query: "What is ML?", ChainOfThought: "search", Decision: "CALL",
				ToolSet:  []models.ToolDescriptor{{Name: "search_knowledge_base"}},
				Metadata: map[string]interface{}{"persona": "P1", "iteration": 0, "decision_type": "CALL"},
			},
			{Query: "What is ML?", ChainOfThought: "done", Decision: "ANSWER: data", Metadata: map[string]interface{}{"iteration": 1}},
		},
	}
}

func TestSaveTrajectory(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	st := &Store{DB: db}

	mock.ExpectBegin()
	mock.ExpectQuery(insertRunSQL).
		WithArgs("q-1", "What is ML?", "answered", 2, nil, []byte(`{"persona":"P1"}`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("run-1"))
	mock.ExpectExec(insertExampleSQL).
		WithArgs("run-1", 0, "CALL", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insertExampleSQL).
		WithArgs("run-1", 1, "ANSWER", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	id, err := st.SaveTrajectory(context.Background(), sampleTrajectory(), config.OutputFields{}, nil)
	if err != nil {
		t.Fatalf("SaveTrajectory: %v", err)
	}
	if id != "run-1" {
		t.Fatalf("unexpected run id %q", id)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSaveTrajectoryRollsBackOnExampleFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	st := &Store{DB: db}

	mock.ExpectBegin()
	mock.ExpectQuery(insertRunSQL).
		WithArgs("q-1", "What is ML?", "failed", 2, "policy down", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("run-2"))
	mock.ExpectExec(insertExampleSQL).WillReturnError(errors.New("constraint violation"))
	mock.ExpectRollback()

	traj := sampleTrajectory()
	traj.Outcome = core.OutcomeFailed
	if _, err := st.SaveTrajectory(context.Background(), traj, config.OutputFields{}, errors.New("policy down")); err == nil {
		t.Fatalf("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestDecisionCountsAndCountExamples(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	st := &Store{DB: db}

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT decision_type, COUNT(*) FROM training_examples GROUP BY decision_type`)).
		WillReturnRows(sqlmock.NewRows([]string{"decision_type", "count"}).AddRow("CALL", 5).AddRow("ANSWER", 3))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM training_examples`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(8))

	counts, err := st.DecisionCounts(context.Background())
	if err != nil {
		t.Fatalf("DecisionCounts: %v", err)
	}
	if counts["CALL"] != 5 || counts["ANSWER"] != 3 {
		t.Fatalf("unexpected counts %v", counts)
	}
	n, err := st.CountExamples(context.Background())
	if err != nil || n != 8 {
		t.Fatalf("CountExamples: %d %v", n, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRecentRuns(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	st := &Store{DB: db}

	mock.ExpectQuery(regexp.QuoteMeta(`FROM trajectory_runs`)).
		WithArgs(20).
		WillReturnRows(sqlmock.NewRows([]string{"id", "query_id", "query", "outcome", "examples", "error"}).
			AddRow("r1", "q1", "What is ML?", "answered", 2, nil).
			AddRow("r2", "q2", "Balance?", "failed", 1, "throttled"))

	runs, err := st.RecentRuns(context.Background(), 0)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(runs) != 2 || runs[0].Error != nil || runs[1].Error == nil || *runs[1].Error != "throttled" {
		t.Fatalf("unexpected runs %+v", runs)
	}
}

func TestSinkMarksFailedRuns(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	traj := core.Trajectory{QueryID: "q", Query: "x", Outcome: core.OutcomeFailed}
	mock.ExpectBegin()
	mock.ExpectQuery(insertRunSQL).
		WithArgs("q", "x", "failed", 0, "trajectory failed", []byte("{}")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("run-3"))
	mock.ExpectCommit()

	sink := NewSink(&Store{DB: db}, config.OutputFields{})
	if err := sink.Write(context.Background(), traj); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

//go:build integration

package store_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/config"
	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/internal/agent/core"
	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/internal/store"
	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/models"
)

func TestStoreRoundTripAgainstPostgres(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	pgC, err := tcPostgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		tcPostgres.WithDatabase("trajgen"),
		tcPostgres.WithUsername("trajgen"),
		tcPostgres.WithPassword("trajgen"),
		testcontainers.WithWaitStrategy(wait.ForListeningPort("5432/tcp")),
	)
	if err != nil {
		t.Fatalf("postgres container: %v", err)
	}
	defer func() { _ = pgC.Terminate(ctx) }()

	host, err := pgC.Host(ctx)
	if err != nil {
		t.Fatalf("postgres host: %v", err)
	}
	port, err := pgC.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("postgres port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://trajgen:trajgen@%s:%s/trajgen?sslmode=disable", host, port.Port())

	if err := store.Migrate("file://../../migrations", dsn, "up", 0); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := store.Migrate("file://../../migrations", dsn, "up", 0); err != nil {
		t.Fatalf("second migrate should be a no-op: %v", err)
	}

	st, err := store.NewWithDSN(ctx, dsn)
	if err != nil {
		t.Fatalf("store init: %v", err)
	}
	defer st.Close()

	traj := core.Trajectory{
		QueryID: "q-1",
		Query:   "What is ML?",
		Outcome: core.OutcomeAnswered,
		Examples: []core.TrainingExample{
			{Query: "What is ML?", ChainOfThought: "search", Decision: "CALL",
				ToolSet:  []models.ToolDescriptor{{Name: "search_knowledge_base"}},
				Metadata: map[string]interface{}{"iteration": 0, "decision_type": "CALL"}},
			{Query: "What is ML?", ChainOfThought: "done", Decision: "ANSWER: learning from data",
				Metadata: map[string]interface{}{"iteration": 1, "decision_type": "ANSWER"}},
		},
	}
	if _, err := st.SaveTrajectory(ctx, traj, config.OutputFields{}, nil); err != nil {
		t.Fatalf("SaveTrajectory: %v", err)
	}
	failed := core.Trajectory{QueryID: "q-2", Query: "Balance?", Outcome: core.OutcomeFailed}
	if _, err := st.SaveTrajectory(ctx, failed, config.OutputFields{}, errors.New("throttled")); err != nil {
		t.Fatalf("SaveTrajectory failed run: %v", err)
	}

	n, err := st.CountExamples(ctx)
	if err != nil || n != 2 {
		t.Fatalf("CountExamples = %d, %v", n, err)
	}
	decisions, err := st.DecisionCounts(ctx)
	if err != nil || decisions["CALL"] != 1 || decisions["ANSWER"] != 1 {
		t.Fatalf("DecisionCounts = %v, %v", decisions, err)
	}
	outcomes, err := st.OutcomeCounts(ctx)
	if err != nil || outcomes["answered"] != 1 || outcomes["failed"] != 1 {
		t.Fatalf("OutcomeCounts = %v, %v", outcomes, err)
	}
	runs, err := st.RecentRuns(ctx, 10)
	if err != nil || len(runs) != 2 {
		t.Fatalf("RecentRuns = %+v, %v", runs, err)
	}
}

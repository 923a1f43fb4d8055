package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/config"
	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/internal/agent/core"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

func tracer() trace.Tracer { return otel.Tracer("trajgen/internal/store") }

type Store struct {
	DB *sql.DB
}

// RunRecord is a stored trajectory run.
type RunRecord struct {
	ID       string
	QueryID  string
	Query    string
	Outcome  string
	Examples int
	Error    *string
}

// NewWithDSN opens and pings a Postgres connection.
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{DB: db}, nil
}

func (s *Store) Close() error { return s.DB.Close() }

// SaveTrajectory stores a run and its examples in one transaction and
// returns the run id. runErr is recorded for failed runs.
func (s *Store) SaveTrajectory(ctx context.Context, traj core.Trajectory, fields config.OutputFields, runErr error) (string, error) {
	ctx, span := tracer().Start(ctx, "store.SaveTrajectory")
	defer span.End()
	span.SetAttributes(attribute.String("query_id", traj.QueryID), attribute.Int("examples", len(traj.Examples)))

	var errMsg *string
	if runErr != nil {
		m := runErr.Error()
		errMsg = &m
	}
	meta := []byte("{}")
	if len(traj.Examples) > 0 && len(traj.Examples[0].Metadata) > 0 {
		b, err := json.Marshal(withoutEngineKeys(traj.Examples[0].Metadata))
		if err != nil {
			return "", fmt.Errorf("marshal metadata: %w", err)
		}
		meta = b
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	var runID string
	err = tx.QueryRowContext(ctx, `
INSERT INTO trajectory_runs (query_id, query, outcome, examples, error, metadata)
VALUES ($1,$2,$3,$4,$5,$6)
RETURNING id
`, traj.QueryID, traj.Query, string(traj.Outcome), len(traj.Examples), errMsg, meta).Scan(&runID)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("insert run: %w", err)
	}

	for i, ex := range traj.Examples {
		rec, err := json.Marshal(ex.Record(fields))
		if err != nil {
			return "", fmt.Errorf("marshal example %d: %w", i, err)
		}
		tools := make([]string, 0, len(ex.ToolSet))
		for _, t := range ex.ToolSet {
			tools = append(tools, t.Name)
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO training_examples (run_id, iteration, decision_type, tools, record)
VALUES ($1,$2,$3,$4,$5)
`, runID, i, decisionType(ex.Decision), pq.Array(tools), rec); err != nil {
			span.RecordError(err)
			return "", fmt.Errorf("insert example %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	return runID, nil
}

func withoutEngineKeys(meta map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(meta))
	for k, v := range meta {
		if k == "iteration" || k == "decision_type" {
			continue
		}
		out[k] = v
	}
	return out
}

func decisionType(decision string) string {
	kind, _, _ := strings.Cut(decision, ":")
	return strings.TrimSpace(kind)
}

// CountExamples returns the number of stored training examples.
func (s *Store) CountExamples(ctx context.Context) (int64, error) {
	var n int64
	err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM training_examples`).Scan(&n)
	return n, err
}

// DecisionCounts groups stored examples by decision type.
func (s *Store) DecisionCounts(ctx context.Context) (map[string]int, error) {
	return s.groupCount(ctx, `SELECT decision_type, COUNT(*) FROM training_examples GROUP BY decision_type`)
}

// OutcomeCounts groups stored runs by outcome.
func (s *Store) OutcomeCounts(ctx context.Context) (map[string]int, error) {
	return s.groupCount(ctx, `SELECT outcome, COUNT(*) FROM trajectory_runs GROUP BY outcome`)
}

func (s *Store) groupCount(ctx context.Context, query string) (map[string]int, error) {
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return nil, err
		}
		out[key] = n
	}
	return out, rows.Err()
}

// RecentRuns lists the latest runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, query_id, query, outcome, examples, error
FROM trajectory_runs
ORDER BY created_at DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []RunRecord
	for rows.Next() {
		var r RunRecord
		var errMsg sql.NullString
		if err := rows.Scan(&r.ID, &r.QueryID, &r.Query, &r.Outcome, &r.Examples, &errMsg); err != nil {
			return nil, err
		}
		if errMsg.Valid {
			r.Error = &errMsg.String
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Sink adapts the store to the dataset sink interface.
type Sink struct {
	store  *Store
	fields config.OutputFields
}

func NewSink(s *Store, fields config.OutputFields) *Sink {
	return &Sink{store: s, fields: fields}
}

func (k *Sink) Write(ctx context.Context, traj core.Trajectory) error {
	var runErr error
	if traj.Outcome == core.OutcomeFailed {
		runErr = fmt.Errorf("trajectory failed")
	}
	_, err := k.store.SaveTrajectory(ctx, traj, k.fields, runErr)
	return err
}

// Close is a no-op; the connection belongs to the Store.
func (k *Sink) Close() error { return nil }

package worker

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/internal/agent/core"
	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/internal/dataset"
	"golang.org/x/sync/errgroup"
)

// Generator produces one trajectory per request.
type Generator interface {
	GenerateTrajectory(ctx context.Context, req core.TrajectoryRequest) (core.Trajectory, error)
}

// Result is the outcome of one query. Err is set for failed trajectories;
// Trajectory still holds any examples produced before the failure.
type Result struct {
	Query      dataset.Query
	Trajectory core.Trajectory
	Err        error
}

// Progress is called after each query finishes.
type Progress func(done, total int, res Result)

// Runner generates trajectories for a batch of queries with bounded
// concurrency. Results are delivered to the sink in input order.
type Runner struct {
	gen         Generator
	sink        dataset.Sink
	concurrency int
	timeout     time.Duration
	progress    Progress
	logger      *log.Logger
}

type RunnerOption func(*Runner)

func WithConcurrency(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithTimeout bounds each trajectory. Zero means no per-query limit.
func WithTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) { r.timeout = d }
}

func WithSink(s dataset.Sink) RunnerOption {
	return func(r *Runner) { r.sink = s }
}

func WithProgress(p Progress) RunnerOption {
	return func(r *Runner) { r.progress = p }
}

func WithLogger(l *log.Logger) RunnerOption {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

func NewRunner(gen Generator, opts ...RunnerOption) *Runner {
	r := &Runner{
		gen:         gen,
		concurrency: 1,
		logger:      log.New(log.Writer(), "[WORKER] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run processes every query. A failed trajectory does not stop the batch;
// a sink error or context cancellation does.
func (r *Runner) Run(ctx context.Context, queries []dataset.Query) ([]Result, error) {
	results := make([]Result, len(queries))
	finished := make([]bool, len(queries))
	var (
		mu      sync.Mutex
		flushed int
		done    int
	)

	// flush writes the contiguous prefix of finished results. Caller holds mu.
	flush := func(ctx context.Context) error {
		for flushed < len(results) && finished[flushed] {
			res := results[flushed]
			flushed++
			if r.sink == nil || len(res.Trajectory.Examples) == 0 {
				continue
			}
			if err := r.sink.Write(ctx, res.Trajectory); err != nil {
				return fmt.Errorf("write query %d: %w", res.Query.ID, err)
			}
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, q := range queries {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			qctx, cancel := gctx, context.CancelFunc(func() {})
			if r.timeout > 0 {
				qctx, cancel = context.WithTimeout(gctx, r.timeout)
			}
			traj, err := r.gen.GenerateTrajectory(qctx, q.Request())
			cancel()
			if err != nil {
				r.logger.Printf("query %d failed after %d example(s): %v", q.ID, len(traj.Examples), err)
			}
			res := Result{Query: q, Trajectory: traj, Err: err}

			mu.Lock()
			defer mu.Unlock()
			results[i] = res
			finished[i] = true
			done++
			if r.progress != nil {
				r.progress(done, len(queries), res)
			}
			return flush(gctx)
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}

// Trajectories extracts the trajectories from results.
func Trajectories(results []Result) []core.Trajectory {
	out := make([]core.Trajectory, 0, len(results))
	for _, r := range results {
		out = append(out, r.Trajectory)
	}
	return out
}

// Failures counts results with an error.
func Failures(results []Result) int {
	n := 0
	for _, r := range results {
		if r.Err != nil {
			n++
		}
	}
	return n
}

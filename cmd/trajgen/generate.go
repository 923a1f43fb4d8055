package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/internal/dataset"
	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/internal/worker"
)

func generateCMD(load loader) *cobra.Command {
	var (
		output        string
		maxIterations int
		concurrency   int
	)
	var cmd = &cobra.Command{
		Use:   "generate <queries_file>",
		Short: "Generate multi-iteration trajectories for a query file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if concurrency > 0 {
				cfg.Generation.Concurrency = concurrency
			}
			a := newApp(cfg)
			defer a.Close()
			a.startTelemetry(cmd.Context())

			queries, err := dataset.LoadQueries(args[0])
			if err != nil {
				return err
			}
			summary, err := a.generate(cmd.Context(), queries, output, maxIterations)
			if err != nil {
				return err
			}
			return printSummary(cmd.OutOrStdout(), summary, output)
		},
	}
	cmd.Flags().StringVar(&output, "output", "samples/trajectories.jsonl", "output file")
	cmd.Flags().IntVar(&maxIterations, "max-iterations", 0, "maximum iterations per trajectory (default from config)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "parallel trajectories (default from config)")
	return cmd
}

// generate runs the batch and writes every trajectory to output.
func (a *app) generate(ctx context.Context, queries []dataset.Query, output string, maxIterations int) (dataset.Summary, error) {
	orch, err := a.Orchestrator(ctx, maxIterations)
	if err != nil {
		return dataset.Summary{}, err
	}
	sink, err := a.Sink(ctx, output)
	if err != nil {
		return dataset.Summary{}, err
	}
	results, runErr := a.Runner(orch, sink).Run(ctx, queries)
	if err := sink.Close(); err != nil && runErr == nil {
		runErr = fmt.Errorf("close output: %w", err)
	}
	summary := dataset.Summarize(worker.Trajectories(results))
	summary.Failed = worker.Failures(results)
	return summary, runErr
}

func printSummary(w io.Writer, s dataset.Summary, output string) error {
	fmt.Fprintf(w, "queries: %d\nexamples: %d\nfailed: %d\noutput: %s\n", s.Queries, s.Examples, s.Failed, output)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

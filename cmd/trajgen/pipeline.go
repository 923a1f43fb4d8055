package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/internal/dataset"
	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/internal/transform"
)

type pipelineOptions struct {
	QueriesFile   string
	OutputDir     string
	SkipTransform bool
	MaxIterations int
	Filter        transform.Filter
}

type pipelineReport struct {
	Seeds          int
	Transformed    int
	TransformFile  string
	TrajectoryFile string
	Summary        dataset.Summary
}

func pipelineCMD(load loader) *cobra.Command {
	var opts pipelineOptions
	var cmd = &cobra.Command{
		Use:   "pipeline <queries_file>",
		Short: "Transform seed queries and generate trajectories in one run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.Filter.Validate(); err != nil {
				return err
			}
			cfg, err := load()
			if err != nil {
				return err
			}
			if opts.OutputDir == "" {
				opts.OutputDir = cfg.Pipeline.OutputDir
			}
			opts.QueriesFile = args[0]
			a := newApp(cfg)
			defer a.Close()
			a.startTelemetry(cmd.Context())

			rep, err := a.runPipeline(cmd.Context(), opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "seed queries: %d\n", rep.Seeds)
			if !opts.SkipTransform {
				fmt.Fprintf(out, "transformed queries: %d -> %s\n", rep.Transformed, rep.TransformFile)
			}
			return printSummary(out, rep.Summary, rep.TrajectoryFile)
		},
	}
	cmd.Flags().StringVar(&opts.OutputDir, "output-dir", "", "output directory (default pipeline.output_dir)")
	cmd.Flags().BoolVar(&opts.SkipTransform, "skip-transform", false, "use the queries as-is")
	cmd.Flags().IntVar(&opts.MaxIterations, "max-iterations", 0, "maximum iterations per trajectory (default from config)")
	cmd.Flags().StringVar(&opts.Filter.Persona, "persona", "all", "P1..P5 or all")
	cmd.Flags().StringVar(&opts.Filter.Complexity, "complexity", "all", "Q-, Q, Q+ or all")
	return cmd
}

// runPipeline expands seeds, writes them to transformed_queries.jsonl and
// generates trajectories for every variant into trajectories.<format>.
func (a *app) runPipeline(ctx context.Context, opts pipelineOptions) (pipelineReport, error) {
	rep := pipelineReport{TrajectoryFile: filepath.Join(opts.OutputDir, "trajectories."+a.cfg.Output.Format)}
	seeds, err := dataset.LoadQueries(opts.QueriesFile)
	if err != nil {
		return rep, err
	}
	rep.Seeds = len(seeds)

	queries := seeds
	if !opts.SkipTransform {
		backend, err := a.Backend()
		if err != nil {
			return rep, err
		}
		variants, err := expandSeeds(ctx, transform.NewTransformer(backend, nil), seeds, opts.Filter, a.logger)
		if err != nil {
			return rep, err
		}
		rep.Transformed = len(variants)
		rep.TransformFile = filepath.Join(opts.OutputDir, "transformed_queries.jsonl")
		if err := dataset.WriteJSONL(rep.TransformFile, variants); err != nil {
			return rep, fmt.Errorf("write %s: %w", rep.TransformFile, err)
		}
		if queries, err = dataset.LoadQueries(rep.TransformFile); err != nil {
			return rep, err
		}
	}

	rep.Summary, err = a.generate(ctx, queries, rep.TrajectoryFile, opts.MaxIterations)
	return rep, err
}

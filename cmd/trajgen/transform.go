package main

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/internal/dataset"
	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/internal/transform"
)

func transformCMD(load loader) *cobra.Command {
	var (
		output     string
		persona    string
		complexity string
	)
	var cmd = &cobra.Command{
		Use:   "transform <queries_file>",
		Short: "Expand seed queries across personas, complexities and tool variants",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := transform.Filter{Persona: persona, Complexity: complexity}
			if err := filter.Validate(); err != nil {
				return err
			}
			cfg, err := load()
			if err != nil {
				return err
			}
			a := newApp(cfg)
			defer a.Close()

			seeds, err := dataset.LoadQueries(args[0])
			if err != nil {
				return err
			}
			backend, err := a.Backend()
			if err != nil {
				return err
			}
			variants, err := expandSeeds(cmd.Context(), transform.NewTransformer(backend, nil), seeds, filter, a.logger)
			if err != nil {
				return err
			}
			if err := dataset.WriteJSONL(output, variants); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "expanded %d seed(s) into %d variant(s) (x%d) -> %s\n",
				len(seeds), len(variants), transform.ExpansionFactor(filter), output)
			return nil
		},
	}
	cmd.Flags().StringVar(&output, "output", "samples/transformed_queries.jsonl", "output file")
	cmd.Flags().StringVar(&persona, "persona", "all", "P1..P5 or all")
	cmd.Flags().StringVar(&complexity, "complexity", "all", "Q-, Q, Q+ or all")
	return cmd
}

// expandSeeds expands every seed in order. A seed whose rewrite fails is
// logged and keeps whatever variants were produced before the failure.
func expandSeeds(ctx context.Context, tx *transform.Transformer, seeds []dataset.Query, f transform.Filter, logger *log.Logger) ([]transform.Variant, error) {
	var out []transform.Variant
	for _, seed := range seeds {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		vs, err := tx.Expand(ctx, seed.Text, seed.ID, f)
		out = append(out, vs...)
		if err != nil {
			logger.Printf("seed %d: %v", seed.ID, err)
		}
	}
	if len(seeds) > 0 && len(out) == 0 {
		return nil, fmt.Errorf("no seed could be transformed")
	}
	return out, nil
}

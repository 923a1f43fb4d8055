package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/internal/dataset"
	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/internal/qagen"
)

func generateQACMD(load loader) *cobra.Command {
	var (
		limit      int
		complexity string
		perChunk   int
		output     string
	)
	var cmd = &cobra.Command{
		Use:   "generate-qa",
		Short: "Generate grounded Q&A pairs from the knowledge index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			a := newApp(cfg)
			defer a.Close()

			backend, err := a.Backend()
			if err != nil {
				return err
			}
			ix, err := a.Index()
			if err != nil {
				return err
			}
			retriever, err := a.Search()
			if err != nil {
				return err
			}
			gen := qagen.NewGenerator(backend, ix, retriever, nil)
			pairs, err := gen.Generate(cmd.Context(), qagen.Options{
				Pairs:             limit,
				Complexity:        complexity,
				QuestionsPerChunk: perChunk,
			})
			if err != nil {
				return err
			}
			if err := dataset.WriteJSONL(output, pairs); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "generated %d Q&A pair(s) -> %s\n", len(pairs), output)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "number of Q&A pairs to generate")
	cmd.Flags().StringVar(&complexity, "complexity", qagen.ComplexityAll, "simple, medium, complex or all")
	cmd.Flags().IntVar(&perChunk, "per-chunk", 3, "questions to request per chunk")
	cmd.Flags().StringVar(&output, "output", "samples/generated_qa.jsonl", "output file")
	return cmd
}

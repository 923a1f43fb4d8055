package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/internal/dataset"
)

func validateCMD(load loader) *cobra.Command {
	var maxIterations int

	var validate = &cobra.Command{
		Use:   "validate [file...]",
		Short: "Check trajectory JSONL files for structural problems",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if maxIterations <= 0 {
				maxIterations = cfg.Generation.MaxIterations
			}
			out := cmd.OutOrStdout()
			total := 0
			for _, path := range args {
				f, err := os.Open(path)
				if err != nil {
					return err
				}
				problems, err := dataset.ValidateJSONL(f, cfg.Output.Fields, maxIterations)
				f.Close()
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				for _, p := range problems {
					fmt.Fprintf(out, "%s: %s\n", path, p)
				}
				if len(problems) == 0 {
					fmt.Fprintf(out, "%s: ok\n", path)
				}
				total += len(problems)
			}
			if total > 0 {
				return fmt.Errorf("%d problem(s) found", total)
			}
			return nil
		},
	}
	validate.Flags().IntVar(&maxIterations, "max-iterations", 0, "iteration cap to check against (default generation.max_iterations)")
	return validate
}

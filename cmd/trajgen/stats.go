package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/config"
	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/internal/dataset"
)

func statsCMD(load loader) *cobra.Command {
	var files []string
	var cmd = &cobra.Command{
		Use:   "stats",
		Short: "Show index, output and database statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			a := newApp(cfg)
			defer a.Close()
			out := cmd.OutOrStdout()

			ix, err := a.Index()
			if err != nil {
				return err
			}
			st, err := ix.Stats()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Knowledge index (%s)\n  chunks: %d\n  vectors: %d\n", cfg.Retrieval.IndexPath, st.Chunks, st.Vectors)
			for _, src := range sortedKeys(st.Sources) {
				fmt.Fprintf(out, "  - %s: %d\n", src, st.Sources[src])
			}

			fmt.Fprintf(out, "Configuration\n  provider: %s\n  model: %s\n  embedding: %s\n  output format: %s\n  max tokens: %d\n  max iterations: %d\n",
				cfg.LLM.Provider, cfg.LLM.Model, cfg.LLM.EmbeddingModel, cfg.Output.Format, cfg.Generation.MaxTokens, cfg.Generation.MaxIterations)

			if len(files) == 0 {
				files, _ = filepath.Glob(filepath.Join(cfg.Pipeline.OutputDir, "*.jsonl"))
			}
			for _, f := range files {
				s, err := summarizeFile(f, cfg.Output.Fields)
				if err != nil {
					fmt.Fprintf(out, "Output %s: %v\n", f, err)
					continue
				}
				fmt.Fprintf(out, "Output %s\n  queries: %d\n  examples: %d\n  examples/query: %.2f\n", f, s.Queries, s.Examples, s.ExamplesPerQuery)
				for _, d := range sortedKeys(s.Decisions) {
					fmt.Fprintf(out, "  %s: %d\n", d, s.Decisions[d])
				}
			}

			db, err := a.Store(cmd.Context())
			if err != nil {
				return err
			}
			if db == nil {
				return nil
			}
			total, err := db.CountExamples(cmd.Context())
			if err != nil {
				return err
			}
			outcomes, err := db.OutcomeCounts(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Database\n  examples: %d\n", total)
			for _, o := range sortedKeys(outcomes) {
				fmt.Fprintf(out, "  %s: %d\n", o, outcomes[o])
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&files, "file", nil, "JSONL trajectory files to summarize (default: pipeline.output_dir/*.jsonl)")
	return cmd
}

func summarizeFile(path string, fields config.OutputFields) (dataset.Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return dataset.Summary{}, err
	}
	defer f.Close()
	return dataset.SummarizeJSONL(f, fields)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

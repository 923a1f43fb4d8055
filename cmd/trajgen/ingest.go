package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/internal/ingest"
)

func ingestCMD(load loader) *cobra.Command {
	var browser bool
	var timeout time.Duration
	var cmd = &cobra.Command{
		Use:   "ingest <file|dir|url>...",
		Short: "Chunk documents into the knowledge index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			a := newApp(cfg)
			defer a.Close()

			ix, err := a.Index()
			if err != nil {
				return err
			}
			fetcherType := ingest.HTTPFetcherType
			if browser {
				fetcherType = ingest.ChromedpFetcherType
			}
			fetcher, err := ingest.NewFetcher(fetcherType, timeout)
			if err != nil {
				return err
			}
			in := ingest.NewIngester(ix, a.Embedder(), fetcher, cfg.Retrieval, nil)
			rep, err := in.Ingest(cmd.Context(), args)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "documents: %d\nchunks: %d\nadded: %d\nduplicates: %d\nembedded: %d\n",
				rep.Documents, rep.Chunks, rep.Added, rep.Duplicates, rep.Embedded)
			for _, f := range rep.Failed {
				fmt.Fprintf(out, "failed: %s\n", f)
			}
			if len(rep.Failed) == len(args) {
				return fmt.Errorf("no sources could be ingested")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&browser, "browser", false, "fetch URLs with headless Chrome")
	cmd.Flags().DurationVar(&timeout, "fetch-timeout", 30*time.Second, "per-URL fetch timeout")
	return cmd
}

package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/internal/server"
	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/internal/store"
	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/internal/transform"
)

func serveCMD(load loader) *cobra.Command {
	var serveAddr string
	var serve = &cobra.Command{
		Use:   "serve",
		Short: "Run HTTP API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if serveAddr != "" {
				cfg.Server.Address = serveAddr
			}
			ctx := cmd.Context()
			a := newApp(cfg)
			defer a.Close()
			if err := a.tele.SetupTracing(ctx, "trajgen"); err != nil {
				a.logger.Printf("tracing disabled: %v", err)
			}

			orch, err := a.Orchestrator(ctx, 0)
			if err != nil {
				return err
			}
			backend, err := a.Backend()
			if err != nil {
				return err
			}
			ix, err := a.Index()
			if err != nil {
				return err
			}
			deps := server.Deps{
				Generator: orch,
				Expander:  transform.NewTransformer(backend, nil),
				Index:     ix,
				Metrics:   a.tele.Handler(),
				Fields:    cfg.Output.Fields,
			}
			db, err := a.Store(ctx)
			if err != nil {
				return err
			}
			if db != nil {
				deps.Stats = db
				deps.Sink = store.NewSink(db, cfg.Output.Fields)
			}

			if cfg.Pipeline.Schedule != "" {
				if err := a.startScheduler(ctx); err != nil {
					return err
				}
			}
			return server.Run(ctx, cfg.Server.Address, server.New(cfg.Server, deps))
		},
	}
	serve.Flags().StringVar(&serveAddr, "addr", "", "listen address (default server.address)")
	return serve
}

// startScheduler runs the configured pipeline on pipeline.schedule. With
// Redis configured, replicas share a lock so only one run happens per tick.
func (a *app) startScheduler(ctx context.Context) error {
	p := a.cfg.Pipeline
	var locker server.Locker
	rdb, err := a.Redis(ctx)
	if err != nil {
		return err
	}
	if rdb != nil {
		locker = server.RedisLocker{Rdb: rdb}
	}
	job := func(ctx context.Context) error {
		rep, err := a.runPipeline(ctx, pipelineOptions{QueriesFile: p.QueriesFile, OutputDir: p.OutputDir})
		if err != nil {
			return err
		}
		a.logger.Printf("scheduled pipeline: %d seed(s), %d example(s), %d failed", rep.Seeds, rep.Summary.Examples, rep.Summary.Failed)
		return nil
	}
	sched, err := server.NewScheduler(p.Schedule, job, locker, nil)
	if err != nil {
		return err
	}
	go sched.Start(ctx)
	a.logger.Printf("pipeline scheduled (%s), next run %s", p.Schedule, sched.Next(time.Now()))
	return nil
}

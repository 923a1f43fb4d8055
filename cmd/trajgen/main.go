package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/config"
)

func main() {
	var cfgPath string
	var root = &cobra.Command{
		Use:           "trajgen",
		Short:         "Synthetic tool-use trajectory generator",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is ./config/config.json)")

	load := func() (*config.Config, error) {
		cfg, err := config.LoadConfig(cfgPath)
		if err != nil {
			return nil, err
		}
		if err := teeLogs(cfg.Telemetry.LogFile); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	root.AddCommand(
		ingestCMD(load),
		generateQACMD(load),
		transformCMD(load),
		generateCMD(load),
		pipelineCMD(load),
		statsCMD(load),
		validateCMD(load),
		serveCMD(load),
		migrateCMD(load),
	)

	// .env is optional; real environment wins.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

type loader func() (*config.Config, error)

// teeLogs duplicates the standard logger to path. Component loggers pick up
// log.Writer() at construction, so this must run before wiring.
func teeLogs(path string) error {
	if path == "" {
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	log.SetOutput(io.MultiWriter(os.Stderr, f))
	return nil
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"sinogen/internal/cli"
	"sinogen/internal/config"
	"sinogen/internal/logging"
	"sinogen/internal/pipeline"
	"sinogen/internal/storage"

	// Input formats register themselves with the stack reader.
	_ "sinogen/internal/edf"
	_ "sinogen/internal/tiffio"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "sinogen: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, err := logging.Setup(cfg)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}

	store, err := storage.New(cfg.Paths.DatabasePath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pipe := pipeline.New(ctx, cfg.Processing.ParallelJobs, logger, store, &cfg.Assembly)
	defer pipe.Stop()

	rootCmd := cli.NewRootCmd(cfg, logger, store, pipe)
	return rootCmd.ExecuteContext(ctx)
}

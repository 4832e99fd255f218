package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"inkdown-client/internal/app"
	"inkdown-client/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := app.NewLogger(cfg.Logging, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to start")
	}

	// the token goes to stdout so a UI launcher can capture it
	fmt.Println(a.Token)

	if err := a.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("server stopped with error")
	}
	if err := a.Close(); err != nil {
		logger.Error().Err(err).Msg("failed to close")
		os.Exit(1)
	}

	logger.Info().Msg("stopped gracefully")
}

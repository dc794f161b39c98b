package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/layer-3/portal"
	"github.com/layer-3/portal/internal/config"
	"github.com/layer-3/portal/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}

	p, err := portal.New(cfg, logger)
	if err != nil {
		logger.Error("failed to start portal", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := p.Close(); err != nil {
			logger.Error("failed to shut down cleanly", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start server
	if err := p.Run(ctx); err != nil {
		logger.Error("server stopped", "error", err)
	}
}

// Package main provides the entry point for the jam development
// server: a local stand-in for the real jam backend.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jamqueueapp/jamqueue-client/internal/config"
	"github.com/jamqueueapp/jamqueue-client/internal/devserver"
	"github.com/jamqueueapp/jamqueue-client/internal/logger"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		AddSource:   cfg.App.Environment == "development",
		Environment: cfg.App.Environment,
	})

	store, err := devserver.OpenStore(cfg.Dev.DataPath, log)
	if err != nil {
		log.WithError(err).Error("Failed to open store", "path", cfg.Dev.DataPath)
		os.Exit(1)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := devserver.New(cfg, store, log)
	if err := srv.Start(ctx); err != nil {
		log.WithError(err).Error("Server error")
		os.Exit(1)
	}
}

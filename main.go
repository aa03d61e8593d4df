package main

import (
	"context"
	"log"

	"hospitality-server/internal/bootstrap"
	"hospitality-server/internal/config"
	"hospitality-server/internal/observability"
	"hospitality-server/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %s", err)
	}

	logger := observability.NewLogger()
	ctx := context.Background()

	deps, err := bootstrap.Initialize(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("failed to initialize dependencies: %s", err)
	}

	srv := server.New(cfg, deps, logger)
	srv.Setup()

	if err := srv.Start(ctx); err != nil {
		log.Fatalf("failed to start server: %s", err)
	}

	if err := srv.WaitForShutdown(ctx); err != nil {
		log.Fatalf("shutdown error: %s", err)
	}
}

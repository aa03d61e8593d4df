package bootstrap

import (
	"context"
	"fmt"

	redisclient "hospitality-server/internal/clients/redis"
	"hospitality-server/internal/config"
	hospitalityHandler "hospitality-server/internal/hospitality/handler"
	hospitalityProcessor "hospitality-server/internal/hospitality/processor"
	"hospitality-server/internal/jobs/scheduler"
	"hospitality-server/internal/jobs/scheduler/jobs"
	"hospitality-server/internal/observability"
	"hospitality-server/internal/rules"
	"hospitality-server/internal/store"
)

// Dependencies holds all initialized application dependencies
type Dependencies struct {
	// Core
	Store       store.Store
	Logger      *observability.Logger
	RedisClient *redisclient.Client
	RuleCatalog *rules.Catalog

	// Handlers
	HospitalityHandler hospitalityHandler.Handler

	// Background jobs
	Scheduler *scheduler.Scheduler
}

// Initialize creates and wires all application dependencies
func Initialize(ctx context.Context, cfg *config.Config, logger *observability.Logger) (*Dependencies, error) {
	deps := &Dependencies{Logger: logger}

	connectionString := cfg.Database.ConnectionString()
	var err error
	deps.Store, err = store.New(connectionString, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	deps.RedisClient, err = redisclient.NewClient(cfg.Redis, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	// Initialize rule catalog and warm it. A failed warm load is not fatal:
	// the catalog retries on the next decision and the engine degrades to
	// no-action answers until rules are available.
	deps.RuleCatalog = rules.NewCatalog(&deps.Store, deps.RedisClient, logger, cfg.Engine.CatalogRefreshInterval)
	if _, err := deps.RuleCatalog.ActiveRules(ctx); err != nil {
		logger.Warn(ctx, "initial rule catalog load failed", err)
	}

	// Initialize engagement processor and handler
	engineStore := hospitalityProcessor.NewEngineStore(deps.Store)
	recorder := hospitalityProcessor.NewActionRecorder(engineStore, logger)
	eventProc := hospitalityProcessor.New(engineStore, deps.RuleCatalog, recorder, deps.RedisClient, cfg.Engine, logger)
	deps.HospitalityHandler = hospitalityHandler.New(eventProc, logger)

	// Initialize background sweeps
	deps.Scheduler = scheduler.New(logger)
	deps.Scheduler.Register(jobs.NewDailyResetJob(deps.Store, logger, cfg.Jobs.DailyResetInterval))
	deps.Scheduler.Register(jobs.NewEventRetentionJob(deps.Store, logger, cfg.Jobs.EventRetentionDays, cfg.Jobs.RetentionInterval))
	deps.Scheduler.Register(jobs.NewActionExpiryJob(deps.Store, logger, cfg.Jobs.ActionExpiryTTL, cfg.Jobs.ActionExpiryInterval))

	return deps, nil
}

// Cleanup closes all resources that need cleanup
func (d *Dependencies) Cleanup() {
	if d.RedisClient != nil {
		d.RedisClient.Close()
	}
}

package jobs

import (
	"context"
	"fmt"
	"time"

	"hospitality-server/internal/observability"
	"hospitality-server/internal/store"
)

// EventRetentionJob purges behavior events past the retention window.
// Events are append-only and never updated, so deletion is the only write
// they ever see.
type EventRetentionJob struct {
	store         store.Store
	logger        *observability.Logger
	retentionDays int
	interval      time.Duration
}

// NewEventRetentionJob creates the behavior event purge sweep
func NewEventRetentionJob(store store.Store, logger *observability.Logger, retentionDays int, interval time.Duration) *EventRetentionJob {
	if retentionDays < 90 {
		// The engine never purges events younger than 90 days.
		retentionDays = 90
	}
	if interval == 0 {
		interval = 6 * time.Hour
	}
	return &EventRetentionJob{
		store:         store,
		logger:        logger,
		retentionDays: retentionDays,
		interval:      interval,
	}
}

// Name returns the job name
func (j *EventRetentionJob) Name() string {
	return "behavior_event_retention"
}

// Schedule returns how often the job should run
func (j *EventRetentionJob) Schedule() time.Duration {
	return j.interval
}

// Run deletes events older than the retention cutoff
func (j *EventRetentionJob) Run(ctx context.Context) error {
	cutoff := time.Now().AddDate(0, 0, -j.retentionDays)
	rows, err := j.store.PurgeBehaviorEventsBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to purge behavior events: %w", err)
	}
	if rows > 0 {
		j.logger.Info(ctx, fmt.Sprintf("Purged %d behavior events older than %d days", rows, j.retentionDays))
	}
	return nil
}

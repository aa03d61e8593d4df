package jobs

import (
	"context"
	"fmt"
	"time"

	"hospitality-server/internal/observability"
	"hospitality-server/internal/store"
)

// ActionExpiryJob completes the lifecycle of actions the UI never reported
// on: pending and displayed actions older than the TTL move to expired,
// with the matching audit rows appended in the same statement.
type ActionExpiryJob struct {
	store    store.Store
	logger   *observability.Logger
	ttl      time.Duration
	interval time.Duration
}

// NewActionExpiryJob creates the stale action expiry sweep
func NewActionExpiryJob(store store.Store, logger *observability.Logger, ttl, interval time.Duration) *ActionExpiryJob {
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	if interval == 0 {
		interval = 10 * time.Minute
	}
	return &ActionExpiryJob{
		store:    store,
		logger:   logger,
		ttl:      ttl,
		interval: interval,
	}
}

// Name returns the job name
func (j *ActionExpiryJob) Name() string {
	return "action_expiry"
}

// Schedule returns how often the job should run
func (j *ActionExpiryJob) Schedule() time.Duration {
	return j.interval
}

// Run expires stale actions
func (j *ActionExpiryJob) Run(ctx context.Context) error {
	now := time.Now()
	rows, err := j.store.ExpireStaleActions(ctx, now.Add(-j.ttl), now)
	if err != nil {
		return fmt.Errorf("failed to expire stale actions: %w", err)
	}
	if rows > 0 {
		j.logger.Info(ctx, fmt.Sprintf("Expired %d stale actions", rows))
	}
	return nil
}

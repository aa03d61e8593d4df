package jobs

import (
	"context"
	"fmt"
	"time"

	"hospitality-server/internal/observability"
	"hospitality-server/internal/store"
)

// DailyResetJob rolls the per-day trigger counters over the UTC day
// boundary. Matching also rolls rows over lazily on read, so the sweep is
// about keeping the stored counters honest for operators, not about
// correctness of rate limiting.
type DailyResetJob struct {
	store    store.Store
	logger   *observability.Logger
	interval time.Duration
}

// NewDailyResetJob creates the daily counter reset sweep
func NewDailyResetJob(store store.Store, logger *observability.Logger, interval time.Duration) *DailyResetJob {
	if interval == 0 {
		interval = 15 * time.Minute
	}
	return &DailyResetJob{
		store:    store,
		logger:   logger,
		interval: interval,
	}
}

// Name returns the job name
func (j *DailyResetJob) Name() string {
	return "cooldown_daily_reset"
}

// Schedule returns how often the job should run
func (j *DailyResetJob) Schedule() time.Duration {
	return j.interval
}

// Run zeroes times_triggered_today for every row whose last reset predates
// today. Session counters and cooldown windows are untouched.
func (j *DailyResetJob) Run(ctx context.Context) error {
	rows, err := j.store.ResetDailyCounters(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("failed to reset daily counters: %w", err)
	}
	if rows > 0 {
		j.logger.Info(ctx, fmt.Sprintf("Rolled over daily trigger counters for %d rows", rows))
	}
	return nil
}

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const sqlGetCooldownStates = `
SELECT identity_key, rule_id, times_triggered_session, times_triggered_today,
    times_triggered_total, last_triggered_at, cooldown_until, last_daily_reset
FROM cooldown_states
WHERE identity_key = $1
`

// GetCooldownStates loads every (identity, rule) counter row for the
// identity. The matcher indexes them by rule id; rules never triggered for
// this identity simply have no row.
func (t *Tx) GetCooldownStates(ctx context.Context, identityKey string) ([]CooldownState, error) {
	var states []CooldownState
	err := t.tx.SelectContext(ctx, &states, sqlGetCooldownStates, identityKey)
	if err != nil {
		t.logger.Error(ctx, "failed to get cooldown states", err)
		return nil, fmt.Errorf("failed to get cooldown states: %w", err)
	}
	return states, nil
}

// GetCooldownStatesByIdentity is the operator-facing read of the counters.
func (s *Store) GetCooldownStatesByIdentity(ctx context.Context, identityKey string) ([]CooldownState, error) {
	var states []CooldownState
	err := s.db.SelectContext(ctx, &states, sqlGetCooldownStates, identityKey)
	if err != nil {
		s.logger.Error(ctx, "failed to get cooldown states", err)
		return nil, fmt.Errorf("failed to get cooldown states: %w", err)
	}
	if states == nil {
		states = []CooldownState{}
	}
	return states, nil
}

const sqlRecordTrigger = `
INSERT INTO cooldown_states (
    identity_key, rule_id, times_triggered_session, times_triggered_today,
    times_triggered_total, last_triggered_at, cooldown_until, last_daily_reset
)
VALUES ($1, $2, 1, 1, 1, $3, $4, $5)
ON CONFLICT (identity_key, rule_id) DO UPDATE
SET times_triggered_session = cooldown_states.times_triggered_session + 1,
    times_triggered_today = CASE
        WHEN cooldown_states.last_daily_reset < $5 THEN 1
        ELSE cooldown_states.times_triggered_today + 1
    END,
    times_triggered_total = cooldown_states.times_triggered_total + 1,
    last_triggered_at = $3,
    cooldown_until = $4,
    last_daily_reset = $5
RETURNING identity_key, rule_id, times_triggered_session, times_triggered_today,
    times_triggered_total, last_triggered_at, cooldown_until, last_daily_reset
`

// RecordTrigger bumps the firing counters for one (identity, rule) pair,
// creating the row lazily on first trigger. Day rollover is folded in: a
// row last reset before today restarts the daily count at one.
func (t *Tx) RecordTrigger(ctx context.Context, identityKey string, ruleID uuid.UUID, now time.Time, cooldownSeconds int) (CooldownState, error) {
	var cooldownUntil *time.Time
	if cooldownSeconds > 0 {
		until := now.Add(time.Duration(cooldownSeconds) * time.Second)
		cooldownUntil = &until
	}
	today := now.UTC().Truncate(24 * time.Hour)

	var state CooldownState
	err := t.tx.GetContext(ctx, &state, sqlRecordTrigger,
		identityKey, ruleID, now, cooldownUntil, today)
	if err != nil {
		t.logger.Error(ctx, "failed to record trigger", err)
		return CooldownState{}, fmt.Errorf("failed to record trigger: %w", err)
	}
	return state, nil
}

const sqlResetSessionCounters = `
UPDATE cooldown_states
SET times_triggered_session = 0
WHERE identity_key = $1
`

// ResetSessionCounters zeroes the per-session counters for every rule of
// one identity. Called when the ingestor detects a new session.
func (t *Tx) ResetSessionCounters(ctx context.Context, identityKey string) error {
	_, err := t.tx.ExecContext(ctx, sqlResetSessionCounters, identityKey)
	if err != nil {
		t.logger.Error(ctx, "failed to reset session counters", err)
		return fmt.Errorf("failed to reset session counters: %w", err)
	}
	return nil
}

const sqlResetDailyCounters = `
UPDATE cooldown_states
SET times_triggered_today = 0,
    last_daily_reset = $1
WHERE last_daily_reset < $1
`

// ResetDailyCounters is the day-boundary sweep. It touches only the daily
// fields, leaving session counters and cooldown windows alone, and returns
// the number of rows rolled over.
func (s *Store) ResetDailyCounters(ctx context.Context, now time.Time) (int64, error) {
	today := now.UTC().Truncate(24 * time.Hour)
	result, err := s.db.ExecContext(ctx, sqlResetDailyCounters, today)
	if err != nil {
		s.logger.Error(ctx, "failed to reset daily counters", err)
		return 0, fmt.Errorf("failed to reset daily counters: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return rows, nil
}

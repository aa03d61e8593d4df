package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateActionParams represents parameters for materializing a rule firing
type CreateActionParams struct {
	RuleID      uuid.UUID
	IdentityKey string
	EventID     *uuid.UUID
	PersonaID   *uuid.UUID
	ActionType  string
	Content     string
	Buttons     JSONBArray
}

const sqlCreateAction = `
INSERT INTO engagement_actions (
    id, rule_id, identity_key, event_id, persona_id, action_type,
    content, buttons, outcome
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'pending')
RETURNING id, rule_id, identity_key, event_id, persona_id, action_type,
    content, buttons, outcome, outcome_at, created_at
`

// CreateAction persists one rule firing with its initial pending outcome.
func (t *Tx) CreateAction(ctx context.Context, params CreateActionParams) (Action, error) {
	var action Action
	err := t.tx.GetContext(ctx, &action, sqlCreateAction,
		uuid.New(),
		params.RuleID,
		params.IdentityKey,
		params.EventID,
		params.PersonaID,
		params.ActionType,
		params.Content,
		params.Buttons,
	)
	if err != nil {
		t.logger.Error(ctx, "failed to create action", err)
		return Action{}, fmt.Errorf("failed to create action: %w", err)
	}
	return action, nil
}

const sqlGetActionByID = `
SELECT id, rule_id, identity_key, event_id, persona_id, action_type,
    content, buttons, outcome, outcome_at, created_at
FROM engagement_actions
WHERE id = $1
`

// GetActionByID retrieves one action
func (s *Store) GetActionByID(ctx context.Context, actionID uuid.UUID) (Action, error) {
	var action Action
	err := s.db.GetContext(ctx, &action, sqlGetActionByID, actionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Action{}, ErrNotFound
		}
		s.logger.Error(ctx, "failed to get action by id", err)
		return Action{}, fmt.Errorf("failed to get action by id: %w", err)
	}
	return action, nil
}

const sqlGetActionForUpdate = sqlGetActionByID + `FOR UPDATE
`

// GetActionForUpdate retrieves one action with its row locked so a
// concurrent outcome report cannot interleave with this transition.
func (t *Tx) GetActionForUpdate(ctx context.Context, actionID uuid.UUID) (Action, error) {
	var action Action
	err := t.tx.GetContext(ctx, &action, sqlGetActionForUpdate, actionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Action{}, ErrNotFound
		}
		t.logger.Error(ctx, "failed to get action for update", err)
		return Action{}, fmt.Errorf("failed to get action for update: %w", err)
	}
	return action, nil
}

const sqlUpdateActionOutcome = `
UPDATE engagement_actions
SET outcome = $2,
    outcome_at = $3
WHERE id = $1
`

// UpdateActionOutcome writes the new lifecycle state. Transition validity
// is the recorder's responsibility; the store only persists.
func (t *Tx) UpdateActionOutcome(ctx context.Context, actionID uuid.UUID, outcome ActionOutcome, at time.Time) error {
	result, err := t.tx.ExecContext(ctx, sqlUpdateActionOutcome, actionID, string(outcome), at)
	if err != nil {
		t.logger.Error(ctx, "failed to update action outcome", err)
		return fmt.Errorf("failed to update action outcome: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateRuleEventParams represents parameters for one audit log row
type CreateRuleEventParams struct {
	ActionID    uuid.UUID
	RuleID      uuid.UUID
	IdentityKey string
	EventType   RuleEventType
	Context     JSONB
}

const sqlCreateRuleEvent = `
INSERT INTO rule_events (id, action_id, rule_id, identity_key, event_type, context)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, action_id, rule_id, identity_key, event_type, context, created_at
`

// CreateRuleEvent appends one audit row for an action lifecycle transition.
func (t *Tx) CreateRuleEvent(ctx context.Context, params CreateRuleEventParams) (RuleEvent, error) {
	var event RuleEvent
	err := t.tx.GetContext(ctx, &event, sqlCreateRuleEvent,
		uuid.New(),
		params.ActionID,
		params.RuleID,
		params.IdentityKey,
		string(params.EventType),
		params.Context,
	)
	if err != nil {
		t.logger.Error(ctx, "failed to create rule event", err)
		return RuleEvent{}, fmt.Errorf("failed to create rule event: %w", err)
	}
	return event, nil
}

const sqlGetRuleStats = `
SELECT $1::uuid as rule_id,
    COALESCE(COUNT(*) FILTER (WHERE event_type = 'triggered'), 0)::int as triggered,
    COALESCE(COUNT(*) FILTER (WHERE event_type = 'displayed'), 0)::int as displayed,
    COALESCE(COUNT(*) FILTER (WHERE event_type = 'button_clicked'), 0)::int as button_clicked,
    COALESCE(COUNT(*) FILTER (WHERE event_type = 'dismissed'), 0)::int as dismissed,
    COALESCE(COUNT(*) FILTER (WHERE event_type = 'expired'), 0)::int as expired,
    COALESCE(COUNT(*) FILTER (WHERE event_type = 'converted'), 0)::int as converted
FROM rule_events
WHERE rule_id = $1
`

// GetRuleStats aggregates the audit log for one rule
func (s *Store) GetRuleStats(ctx context.Context, ruleID uuid.UUID) (RuleStats, error) {
	var stats RuleStats
	err := s.db.GetContext(ctx, &stats, sqlGetRuleStats, ruleID)
	if err != nil {
		s.logger.Error(ctx, "failed to get rule stats", err)
		return RuleStats{}, fmt.Errorf("failed to get rule stats: %w", err)
	}
	return stats, nil
}

const sqlExpireStaleActions = `
WITH expired AS (
    UPDATE engagement_actions
    SET outcome = 'expired',
        outcome_at = $2
    WHERE outcome IN ('pending', 'displayed')
      AND created_at < $1
    RETURNING id, rule_id, identity_key
)
INSERT INTO rule_events (id, action_id, rule_id, identity_key, event_type, context)
SELECT gen_random_uuid(), id, rule_id, identity_key, 'expired', '{}'::jsonb
FROM expired
`

// ExpireStaleActions transitions actions the UI never reported on to
// expired, appending the matching audit rows in the same statement.
func (s *Store) ExpireStaleActions(ctx context.Context, cutoff, now time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, sqlExpireStaleActions, cutoff, now)
	if err != nil {
		s.logger.Error(ctx, "failed to expire stale actions", err)
		return 0, fmt.Errorf("failed to expire stale actions: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return rows, nil
}

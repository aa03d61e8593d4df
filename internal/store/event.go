package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateBehaviorEventParams represents parameters for appending a behavior event
type CreateBehaviorEventParams struct {
	IdentityKey string
	UserID      *uuid.UUID
	EventType   string
	Source      string
	Context     JSONB
	MetricValue *float64
	PageURL     *string
	PersonaID   *uuid.UUID
	OccurredAt  time.Time
}

const sqlCreateBehaviorEvent = `
INSERT INTO behavior_events (
    id, identity_key, user_id, event_type, source, context,
    metric_value, page_url, persona_id, occurred_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING id, identity_key, user_id, event_type, source, context,
    metric_value, page_url, persona_id, occurred_at, created_at
`

// CreateBehaviorEvent appends one immutable behavior event inside the
// ingest transaction.
func (t *Tx) CreateBehaviorEvent(ctx context.Context, params CreateBehaviorEventParams) (BehaviorEvent, error) {
	var event BehaviorEvent
	err := t.tx.GetContext(ctx, &event, sqlCreateBehaviorEvent,
		uuid.New(),
		params.IdentityKey,
		params.UserID,
		params.EventType,
		params.Source,
		params.Context,
		params.MetricValue,
		params.PageURL,
		params.PersonaID,
		params.OccurredAt,
	)
	if err != nil {
		t.logger.Error(ctx, "failed to create behavior event", err)
		return BehaviorEvent{}, fmt.Errorf("failed to create behavior event: %w", err)
	}
	return event, nil
}

const sqlPurgeBehaviorEvents = `
DELETE FROM behavior_events
WHERE occurred_at < $1
`

// PurgeBehaviorEventsBefore deletes events older than the retention cutoff
// and returns the number of rows removed.
func (s *Store) PurgeBehaviorEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, sqlPurgeBehaviorEvents, cutoff)
	if err != nil {
		s.logger.Error(ctx, "failed to purge behavior events", err)
		return 0, fmt.Errorf("failed to purge behavior events: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return rows, nil
}

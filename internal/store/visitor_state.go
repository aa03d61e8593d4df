package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateVisitorStateParams represents parameters for creating a visitor state
type CreateVisitorStateParams struct {
	IdentityKey  string
	UserID       *uuid.UUID
	SessionToken *string
	Now          time.Time
}

const sqlCreateVisitorState = `
INSERT INTO visitor_states (
    identity_key, user_id, session_token, page_views, session_count,
    total_time_on_site, current_session_start, last_activity_at,
    engagement_score, funnel_stage, popups_shown_today, popups_dismissed_today
)
VALUES ($1, $2, $3, 0, 1, 0, $4, $4, 0, 'visitor', 0, 0)
RETURNING identity_key, user_id, session_token, page_views, session_count,
    total_time_on_site, current_session_start, last_activity_at,
    engagement_score, funnel_stage, popups_shown_today, popups_dismissed_today,
    global_cooldown_until, created_at, updated_at
`

// CreateVisitorState inserts the snapshot row for an identity seen for the
// first time. The caller holds the per-identity lock, so no concurrent
// insert races this one.
func (t *Tx) CreateVisitorState(ctx context.Context, params CreateVisitorStateParams) (VisitorState, error) {
	var state VisitorState
	err := t.tx.GetContext(ctx, &state, sqlCreateVisitorState,
		params.IdentityKey, params.UserID, params.SessionToken, params.Now)
	if err != nil {
		t.logger.Error(ctx, "failed to create visitor state", err)
		return VisitorState{}, fmt.Errorf("failed to create visitor state: %w", err)
	}
	return state, nil
}

const sqlGetVisitorState = `
SELECT identity_key, user_id, session_token, page_views, session_count,
    total_time_on_site, current_session_start, last_activity_at,
    engagement_score, funnel_stage, popups_shown_today, popups_dismissed_today,
    global_cooldown_until, created_at, updated_at
FROM visitor_states
WHERE identity_key = $1
`

// GetVisitorState retrieves the snapshot for one identity
func (s *Store) GetVisitorState(ctx context.Context, identityKey string) (VisitorState, error) {
	var state VisitorState
	err := s.db.GetContext(ctx, &state, sqlGetVisitorState, identityKey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return VisitorState{}, ErrNotFound
		}
		s.logger.Error(ctx, "failed to get visitor state", err)
		return VisitorState{}, fmt.Errorf("failed to get visitor state: %w", err)
	}
	return state, nil
}

const sqlGetVisitorStateForUpdate = sqlGetVisitorState + `FOR UPDATE
`

// GetVisitorStateForUpdate retrieves the snapshot with a row lock held for
// the rest of the transaction.
func (t *Tx) GetVisitorStateForUpdate(ctx context.Context, identityKey string) (VisitorState, error) {
	var state VisitorState
	err := t.tx.GetContext(ctx, &state, sqlGetVisitorStateForUpdate, identityKey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return VisitorState{}, ErrNotFound
		}
		t.logger.Error(ctx, "failed to get visitor state for update", err)
		return VisitorState{}, fmt.Errorf("failed to get visitor state for update: %w", err)
	}
	return state, nil
}

const sqlUpdateVisitorState = `
UPDATE visitor_states
SET page_views = $2,
    session_count = $3,
    total_time_on_site = $4,
    current_session_start = $5,
    last_activity_at = $6,
    engagement_score = $7,
    funnel_stage = $8,
    popups_shown_today = $9,
    popups_dismissed_today = $10,
    global_cooldown_until = $11,
    updated_at = CURRENT_TIMESTAMP
WHERE identity_key = $1
`

// UpdateVisitorState writes back all mutable snapshot fields
func (t *Tx) UpdateVisitorState(ctx context.Context, state VisitorState) error {
	result, err := t.tx.ExecContext(ctx, sqlUpdateVisitorState,
		state.IdentityKey,
		state.PageViews,
		state.SessionCount,
		state.TotalTimeOnSite,
		state.CurrentSessionStart,
		state.LastActivityAt,
		state.EngagementScore,
		state.FunnelStage,
		state.PopupsShownToday,
		state.PopupsDismissed,
		state.GlobalCooldownUntil,
	)
	if err != nil {
		t.logger.Error(ctx, "failed to update visitor state", err)
		return fmt.Errorf("failed to update visitor state: %w", err)
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

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

const sqlListActiveRules = `
SELECT id, name, slug, target_audience, trigger_conditions, action_type,
    action_config, message_template, buttons, priority, is_active,
    valid_from, valid_until, max_per_session, max_per_day, cooldown_seconds,
    primary_persona_id, secondary_personas, created_at, updated_at
FROM engagement_rules
WHERE is_active = true
ORDER BY priority ASC, created_at ASC, id ASC
`

// ListActiveRules returns every active rule ordered by priority. The
// secondary sort keys keep equal-priority evaluation order stable across
// catalog reloads and process restarts.
func (s *Store) ListActiveRules(ctx context.Context) ([]EngagementRule, error) {
	var rules []EngagementRule
	err := s.db.SelectContext(ctx, &rules, sqlListActiveRules)
	if err != nil {
		s.logger.Error(ctx, "failed to list active rules", err)
		return nil, fmt.Errorf("failed to list active rules: %w", err)
	}
	if rules == nil {
		rules = []EngagementRule{}
	}
	return rules, nil
}

const sqlGetRuleByID = `
SELECT id, name, slug, target_audience, trigger_conditions, action_type,
    action_config, message_template, buttons, priority, is_active,
    valid_from, valid_until, max_per_session, max_per_day, cooldown_seconds,
    primary_persona_id, secondary_personas, created_at, updated_at
FROM engagement_rules
WHERE id = $1
`

// GetRuleByID retrieves one rule regardless of active state
func (s *Store) GetRuleByID(ctx context.Context, ruleID uuid.UUID) (EngagementRule, error) {
	var rule EngagementRule
	err := s.db.GetContext(ctx, &rule, sqlGetRuleByID, ruleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return EngagementRule{}, ErrNotFound
		}
		s.logger.Error(ctx, "failed to get rule by id", err)
		return EngagementRule{}, fmt.Errorf("failed to get rule by id: %w", err)
	}
	return rule, nil
}

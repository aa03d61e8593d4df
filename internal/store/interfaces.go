package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Storer defines all public methods available on the Store
type Storer interface {
	// Database
	DB() *sqlx.DB
	Begin(ctx context.Context) (*Tx, error)

	// Visitor state operations
	GetVisitorState(ctx context.Context, identityKey string) (VisitorState, error)

	// Behavior event operations
	PurgeBehaviorEventsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Cooldown operations
	GetCooldownStatesByIdentity(ctx context.Context, identityKey string) ([]CooldownState, error)
	ResetDailyCounters(ctx context.Context, now time.Time) (int64, error)

	// Rule operations
	ListActiveRules(ctx context.Context) ([]EngagementRule, error)
	GetRuleByID(ctx context.Context, ruleID uuid.UUID) (EngagementRule, error)

	// Action operations
	GetActionByID(ctx context.Context, actionID uuid.UUID) (Action, error)
	GetRuleStats(ctx context.Context, ruleID uuid.UUID) (RuleStats, error)
	ExpireStaleActions(ctx context.Context, cutoff, now time.Time) (int64, error)
}

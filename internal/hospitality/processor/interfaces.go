package processor

import (
	"context"
	"time"

	"hospitality-server/internal/store"

	"github.com/google/uuid"
)

// EngineTx is the transactional surface of one atomic read-evaluate-write
// cycle. Implemented by store.Tx; faked in tests.
type EngineTx interface {
	CreateVisitorState(ctx context.Context, params store.CreateVisitorStateParams) (store.VisitorState, error)
	GetVisitorStateForUpdate(ctx context.Context, identityKey string) (store.VisitorState, error)
	UpdateVisitorState(ctx context.Context, state store.VisitorState) error
	CreateBehaviorEvent(ctx context.Context, params store.CreateBehaviorEventParams) (store.BehaviorEvent, error)
	GetCooldownStates(ctx context.Context, identityKey string) ([]store.CooldownState, error)
	RecordTrigger(ctx context.Context, identityKey string, ruleID uuid.UUID, now time.Time, cooldownSeconds int) (store.CooldownState, error)
	ResetSessionCounters(ctx context.Context, identityKey string) error
	CreateAction(ctx context.Context, params store.CreateActionParams) (store.Action, error)
	GetActionForUpdate(ctx context.Context, actionID uuid.UUID) (store.Action, error)
	UpdateActionOutcome(ctx context.Context, actionID uuid.UUID, outcome store.ActionOutcome, at time.Time) error
	CreateRuleEvent(ctx context.Context, params store.CreateRuleEventParams) (store.RuleEvent, error)
	Commit() error
	Rollback() error
}

// EngineStore defines the database operations required by the engine
type EngineStore interface {
	Begin(ctx context.Context) (EngineTx, error)
	GetVisitorState(ctx context.Context, identityKey string) (store.VisitorState, error)
	GetCooldownStatesByIdentity(ctx context.Context, identityKey string) ([]store.CooldownState, error)
	GetActionByID(ctx context.Context, actionID uuid.UUID) (store.Action, error)
	GetRuleStats(ctx context.Context, ruleID uuid.UUID) (store.RuleStats, error)
	GetRuleByID(ctx context.Context, ruleID uuid.UUID) (store.EngagementRule, error)
}

// storeAdapter lifts store.Store onto EngineStore; only Begin needs help
// because Go will not convert the concrete *store.Tx return type.
type storeAdapter struct {
	store.Store
}

func (a *storeAdapter) Begin(ctx context.Context) (EngineTx, error) {
	return a.Store.Begin(ctx)
}

// NewEngineStore adapts the concrete store for the engine
func NewEngineStore(s store.Store) EngineStore {
	return &storeAdapter{Store: s}
}

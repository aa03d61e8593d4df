package processor

import (
	"context"
	"time"

	"hospitality-server/internal/store"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockEngineTx is a mock implementation of EngineTx
type MockEngineTx struct {
	mock.Mock
}

func (m *MockEngineTx) CreateVisitorState(ctx context.Context, params store.CreateVisitorStateParams) (store.VisitorState, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(store.VisitorState), args.Error(1)
}

func (m *MockEngineTx) GetVisitorStateForUpdate(ctx context.Context, identityKey string) (store.VisitorState, error) {
	args := m.Called(ctx, identityKey)
	return args.Get(0).(store.VisitorState), args.Error(1)
}

func (m *MockEngineTx) UpdateVisitorState(ctx context.Context, state store.VisitorState) error {
	args := m.Called(ctx, state)
	return args.Error(0)
}

func (m *MockEngineTx) CreateBehaviorEvent(ctx context.Context, params store.CreateBehaviorEventParams) (store.BehaviorEvent, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(store.BehaviorEvent), args.Error(1)
}

func (m *MockEngineTx) GetCooldownStates(ctx context.Context, identityKey string) ([]store.CooldownState, error) {
	args := m.Called(ctx, identityKey)
	return args.Get(0).([]store.CooldownState), args.Error(1)
}

func (m *MockEngineTx) RecordTrigger(ctx context.Context, identityKey string, ruleID uuid.UUID, now time.Time, cooldownSeconds int) (store.CooldownState, error) {
	args := m.Called(ctx, identityKey, ruleID, now, cooldownSeconds)
	return args.Get(0).(store.CooldownState), args.Error(1)
}

func (m *MockEngineTx) ResetSessionCounters(ctx context.Context, identityKey string) error {
	args := m.Called(ctx, identityKey)
	return args.Error(0)
}

func (m *MockEngineTx) CreateAction(ctx context.Context, params store.CreateActionParams) (store.Action, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(store.Action), args.Error(1)
}

func (m *MockEngineTx) GetActionForUpdate(ctx context.Context, actionID uuid.UUID) (store.Action, error) {
	args := m.Called(ctx, actionID)
	return args.Get(0).(store.Action), args.Error(1)
}

func (m *MockEngineTx) UpdateActionOutcome(ctx context.Context, actionID uuid.UUID, outcome store.ActionOutcome, at time.Time) error {
	args := m.Called(ctx, actionID, outcome, at)
	return args.Error(0)
}

func (m *MockEngineTx) CreateRuleEvent(ctx context.Context, params store.CreateRuleEventParams) (store.RuleEvent, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(store.RuleEvent), args.Error(1)
}

func (m *MockEngineTx) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockEngineTx) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

// MockEngineStore is a mock implementation of EngineStore
type MockEngineStore struct {
	mock.Mock
}

func (m *MockEngineStore) Begin(ctx context.Context) (EngineTx, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(EngineTx), args.Error(1)
}

func (m *MockEngineStore) GetVisitorState(ctx context.Context, identityKey string) (store.VisitorState, error) {
	args := m.Called(ctx, identityKey)
	return args.Get(0).(store.VisitorState), args.Error(1)
}

func (m *MockEngineStore) GetCooldownStatesByIdentity(ctx context.Context, identityKey string) ([]store.CooldownState, error) {
	args := m.Called(ctx, identityKey)
	return args.Get(0).([]store.CooldownState), args.Error(1)
}

func (m *MockEngineStore) GetActionByID(ctx context.Context, actionID uuid.UUID) (store.Action, error) {
	args := m.Called(ctx, actionID)
	return args.Get(0).(store.Action), args.Error(1)
}

func (m *MockEngineStore) GetRuleStats(ctx context.Context, ruleID uuid.UUID) (store.RuleStats, error) {
	args := m.Called(ctx, ruleID)
	return args.Get(0).(store.RuleStats), args.Error(1)
}

func (m *MockEngineStore) GetRuleByID(ctx context.Context, ruleID uuid.UUID) (store.EngagementRule, error) {
	args := m.Called(ctx, ruleID)
	return args.Get(0).(store.EngagementRule), args.Error(1)
}

// MockRuleSource is a mock implementation of rules.RuleSource
type MockRuleSource struct {
	mock.Mock
}

func (m *MockRuleSource) ListActiveRules(ctx context.Context) ([]store.EngagementRule, error) {
	args := m.Called(ctx)
	return args.Get(0).([]store.EngagementRule), args.Error(1)
}

package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hospitality-server/internal/observability"
	"hospitality-server/internal/rules"
	"hospitality-server/internal/store"

	"github.com/google/uuid"
)

var (
	ErrActionNotFound    = errors.New("action not found")
	ErrInvalidTransition = errors.New("invalid action outcome transition")
	ErrUnknownOutcome    = errors.New("unknown action outcome")
)

// validTransitions encodes the forward-only outcome state machine:
// pending -> displayed -> {button_clicked, dismissed, expired}, and
// converted is reachable only after displayed or button_clicked. States
// other than pending and displayed are terminal.
var validTransitions = map[store.ActionOutcome][]store.ActionOutcome{
	store.OutcomePending: {store.OutcomeDisplayed},
	store.OutcomeDisplayed: {
		store.OutcomeButtonClicked,
		store.OutcomeDismissed,
		store.OutcomeExpired,
		store.OutcomeConverted,
	},
	store.OutcomeButtonClicked: {store.OutcomeConverted},
}

// CanTransition reports whether from -> to is a legal outcome move
func CanTransition(from, to store.ActionOutcome) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// ActionRecorder materializes decisions into persisted actions and records
// outcome transitions as the UI layer reports them.
type ActionRecorder struct {
	store  EngineStore
	logger *observability.Logger
	now    func() time.Time
}

// NewActionRecorder creates an action recorder
func NewActionRecorder(engineStore EngineStore, logger *observability.Logger) *ActionRecorder {
	return &ActionRecorder{
		store:  engineStore,
		logger: logger,
		now:    time.Now,
	}
}

// create persists one firing inside the caller's ingest transaction: the
// action row with its initial pending outcome plus the triggered audit row.
func (r *ActionRecorder) create(ctx context.Context, tx EngineTx, rule rules.Rule, identityKey string, eventID *uuid.UUID, personaID *uuid.UUID, snapshot store.JSONB) (store.Action, error) {
	action, err := tx.CreateAction(ctx, store.CreateActionParams{
		RuleID:      rule.ID,
		IdentityKey: identityKey,
		EventID:     eventID,
		PersonaID:   personaID,
		ActionType:  string(rule.ActionType),
		Content:     rule.MessageTemplate,
		Buttons:     rule.Buttons,
	})
	if err != nil {
		return store.Action{}, fmt.Errorf("failed to record firing: %w", err)
	}

	_, err = tx.CreateRuleEvent(ctx, store.CreateRuleEventParams{
		ActionID:    action.ID,
		RuleID:      rule.ID,
		IdentityKey: identityKey,
		EventType:   store.RuleEventTriggered,
		Context:     snapshot,
	})
	if err != nil {
		return store.Action{}, fmt.Errorf("failed to record trigger audit row: %w", err)
	}
	return action, nil
}

// Transition moves an action's outcome forward and appends the matching
// audit row with the caller's context snapshot. Backward or sideways moves
// fail with ErrInvalidTransition and leave the action untouched.
func (r *ActionRecorder) Transition(ctx context.Context, actionID uuid.UUID, outcome string, snapshot store.JSONB) (store.Action, error) {
	ctx = observability.WithFields(ctx,
		observability.Field{Key: "action_id", Value: actionID.String()},
		observability.Field{Key: "outcome", Value: outcome},
	)

	if !store.IsValidOutcome(outcome) {
		return store.Action{}, fmt.Errorf("%q: %w", outcome, ErrUnknownOutcome)
	}
	target := store.ActionOutcome(outcome)

	tx, err := r.store.Begin(ctx)
	if err != nil {
		return store.Action{}, err
	}
	defer tx.Rollback()

	action, err := tx.GetActionForUpdate(ctx, actionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Action{}, ErrActionNotFound
		}
		return store.Action{}, err
	}

	if !CanTransition(store.ActionOutcome(action.Outcome), target) {
		return store.Action{}, fmt.Errorf("%s -> %s: %w", action.Outcome, outcome, ErrInvalidTransition)
	}

	now := r.now()
	if err := tx.UpdateActionOutcome(ctx, actionID, target, now); err != nil {
		return store.Action{}, err
	}

	_, err = tx.CreateRuleEvent(ctx, store.CreateRuleEventParams{
		ActionID:    action.ID,
		RuleID:      action.RuleID,
		IdentityKey: action.IdentityKey,
		EventType:   store.RuleEventType(outcome),
		Context:     snapshot,
	})
	if err != nil {
		return store.Action{}, err
	}

	// A dismissed popup feeds the per-day dismissal counter on the
	// visitor snapshot.
	if target == store.OutcomeDismissed && action.ActionType == string(store.ActionTypePopup) {
		if err := r.bumpDismissals(ctx, tx, action.IdentityKey); err != nil {
			return store.Action{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		r.logger.Error(ctx, "failed to commit outcome transition", err)
		return store.Action{}, fmt.Errorf("failed to commit outcome transition: %w", err)
	}

	action.Outcome = outcome
	action.OutcomeAt = &now
	r.logger.Info(ctx, "action outcome recorded")
	return action, nil
}

func (r *ActionRecorder) bumpDismissals(ctx context.Context, tx EngineTx, identityKey string) error {
	state, err := tx.GetVisitorStateForUpdate(ctx, identityKey)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Visitor rows are never deleted while actions exist, but a
			// missing row must not fail the transition.
			return nil
		}
		return err
	}
	state.PopupsDismissed++
	return tx.UpdateVisitorState(ctx, state)
}

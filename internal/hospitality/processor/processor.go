package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redisclient "hospitality-server/internal/clients/redis"
	"hospitality-server/internal/config"
	"hospitality-server/internal/observability"
	"hospitality-server/internal/rules"
	"hospitality-server/internal/store"

	"github.com/google/uuid"
)

var (
	ErrInvalidIdentity = errors.New("event requires exactly one of user id or session token")
	ErrEmptyEventType  = errors.New("event type is required")
	ErrRuleNotFound    = errors.New("rule not found")
	ErrVisitorNotFound = errors.New("visitor not found")
)

// Behavior event types with engine-side bookkeeping. Other event types
// still update last activity and feed rule matching.
const (
	EventTypePageView  = "page_view"
	EventTypeHeartbeat = "heartbeat"
)

const statsCacheTTL = 30 * time.Second

// EventProcessor is the hospitality decision engine: it accepts behavior
// events one at a time and decides whether to fire at most one configured
// action for the event's identity.
type EventProcessor struct {
	store    EngineStore
	catalog  *rules.Catalog
	recorder *ActionRecorder
	redis    *redisclient.Client
	locks    *identityLocks
	logger   *observability.Logger
	cfg      config.EngineConfig
	now      func() time.Time
}

// New creates the decision engine
func New(engineStore EngineStore, catalog *rules.Catalog, recorder *ActionRecorder, redis *redisclient.Client, cfg config.EngineConfig, logger *observability.Logger) *EventProcessor {
	return &EventProcessor{
		store:    engineStore,
		catalog:  catalog,
		recorder: recorder,
		redis:    redis,
		locks:    newIdentityLocks(),
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Ingest processes one behavior event: it updates the visitor snapshot,
// evaluates the rule catalog, and returns the decision. The whole cycle
// runs under the identity's exclusive lock and inside one transaction, so
// two concurrent events for the same identity can never both fire a rule
// past its rate limits. The decision is advisory to a live page render:
// every infrastructure failure degrades to a no-action answer instead of
// an error.
func (p *EventProcessor) Ingest(ctx context.Context, identity store.VisitorIdentity, event EventInput, reqCtx RequestContext) (Decision, error) {
	if err := identity.Validate(); err != nil {
		return Decision{}, ErrInvalidIdentity
	}
	if event.Type == "" {
		return Decision{}, ErrEmptyEventType
	}

	identityKey := identity.Key()
	ctx = observability.WithFields(ctx,
		observability.Field{Key: "identity_key", Value: identityKey},
		observability.Field{Key: "event_type", Value: event.Type},
	)

	ctx, cancel := context.WithTimeout(ctx, p.cfg.DecisionTimeout)
	defer cancel()

	release, err := p.locks.acquire(ctx, identityKey)
	if err != nil {
		p.logger.Warn(ctx, "decision timed out waiting for identity lock", err)
		return NoAction(ReasonTimeout), nil
	}
	defer release()

	decision, err := p.ingestLocked(ctx, identityKey, identity, event, reqCtx)
	if err != nil {
		// Fail closed: never guess, never error a page render.
		p.logger.Error(ctx, "ingest failed, degrading to no action", err)
		degraded := NoAction(ReasonStoreUnavailable)
		if errors.Is(err, context.DeadlineExceeded) {
			degraded = NoAction(ReasonTimeout)
		}
		degraded.Degraded = true
		return degraded, nil
	}
	return decision, nil
}

func (p *EventProcessor) ingestLocked(ctx context.Context, identityKey string, identity store.VisitorIdentity, event EventInput, reqCtx RequestContext) (Decision, error) {
	now := p.now()
	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = now
	}

	// The catalog read happens before the transaction: it is served from
	// memory in the common case and must not extend the row lock window.
	activeRules, err := p.catalog.ActiveRules(ctx)
	if err != nil {
		return Decision{}, err
	}

	tx, err := p.store.Begin(ctx)
	if err != nil {
		return Decision{}, err
	}
	defer tx.Rollback()

	state, newSession, err := p.loadState(ctx, tx, identityKey, identity, now)
	if err != nil {
		return Decision{}, err
	}
	applyEvent(&state, event, now)

	persisted, err := tx.CreateBehaviorEvent(ctx, store.CreateBehaviorEventParams{
		IdentityKey: identityKey,
		UserID:      identity.UserID,
		EventType:   event.Type,
		Source:      event.Source,
		Context:     contextDocument(event, reqCtx),
		MetricValue: event.MetricValue,
		PageURL:     event.PageURL,
		PersonaID:   event.PersonaID,
		OccurredAt:  occurredAt,
	})
	if err != nil {
		return Decision{}, err
	}

	if newSession {
		if err := tx.ResetSessionCounters(ctx, identityKey); err != nil {
			return Decision{}, err
		}
	}

	cooldowns, err := tx.GetCooldownStates(ctx, identityKey)
	if err != nil {
		return Decision{}, err
	}
	cooldownsByRule := make(map[uuid.UUID]store.CooldownState, len(cooldowns))
	for _, cd := range cooldowns {
		cooldownsByRule[cd.RuleID] = cd
	}

	matched := matchRule(activeRules, matchInput{
		state:     state,
		cooldowns: cooldownsByRule,
		class:     visitorClass(reqCtx.VisitorClass),
		context:   mergedContext(event, reqCtx),
		now:       now,
	})
	if matched == nil {
		reason := ReasonNoMatch
		if state.GlobalCooldownUntil != nil && state.GlobalCooldownUntil.After(now) {
			reason = ReasonGlobalCooldown
		}
		if err := tx.UpdateVisitorState(ctx, state); err != nil {
			return Decision{}, err
		}
		if err := tx.Commit(); err != nil {
			return Decision{}, err
		}
		return NoAction(reason), nil
	}

	personaID, resolved := selectPersona(*matched, mergedContext(event, reqCtx))

	eventID := persisted.ID
	action, err := p.recorder.create(ctx, tx, *matched, identityKey, &eventID, personaID, snapshotDocument(state, event))
	if err != nil {
		return Decision{}, err
	}

	if _, err := tx.RecordTrigger(ctx, identityKey, matched.ID, now, matched.CooldownSeconds); err != nil {
		return Decision{}, err
	}

	if matched.ActionType == store.ActionTypePopup {
		state.PopupsShownToday++
	}
	if err := tx.UpdateVisitorState(ctx, state); err != nil {
		return Decision{}, err
	}

	if err := tx.Commit(); err != nil {
		return Decision{}, err
	}

	p.logger.Info(ctx, "rule fired",
		observability.Field{Key: "rule_slug", Value: matched.Slug},
		observability.Field{Key: "action_id", Value: action.ID.String()},
		observability.Field{Key: "persona_resolved", Value: resolved},
	)

	return Decision{
		Fired:  true,
		Reason: ReasonMatched,
		Action: &FiredAction{
			ActionID:          action.ID,
			RuleID:            matched.ID,
			RuleSlug:          matched.Slug,
			ActionType:        matched.ActionType,
			PersonaID:         personaID,
			PersonaUnresolved: !resolved,
			Content:           matched.MessageTemplate,
			Buttons:           matched.Buttons,
			ActionConfig:      matched.ActionConfig,
		},
	}, nil
}

// loadState fetches the locked snapshot row, creating it on first contact,
// and detects session rollover from the idle gap.
func (p *EventProcessor) loadState(ctx context.Context, tx EngineTx, identityKey string, identity store.VisitorIdentity, now time.Time) (store.VisitorState, bool, error) {
	state, err := tx.GetVisitorStateForUpdate(ctx, identityKey)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return store.VisitorState{}, false, err
		}
		state, err = tx.CreateVisitorState(ctx, store.CreateVisitorStateParams{
			IdentityKey:  identityKey,
			UserID:       identity.UserID,
			SessionToken: identity.SessionToken,
			Now:          now,
		})
		if err != nil {
			return store.VisitorState{}, false, err
		}
		// A brand new identity is its own first session; counters are
		// already zero.
		return state, false, nil
	}

	if now.Sub(state.LastActivityAt) > p.cfg.SessionIdleGap {
		state.SessionCount++
		state.CurrentSessionStart = now
		return state, true, nil
	}
	return state, false, nil
}

// applyEvent folds one event into the in-memory snapshot. The engine only
// stores the externally supplied engagement score and funnel stage, it
// never computes them.
func applyEvent(state *store.VisitorState, event EventInput, now time.Time) {
	switch event.Type {
	case EventTypePageView:
		state.PageViews++
	case EventTypeHeartbeat:
		if event.MetricValue != nil && *event.MetricValue > 0 {
			state.TotalTimeOnSite += int(*event.MetricValue)
		}
	}
	state.LastActivityAt = now

	if event.EngagementScore != nil {
		score := *event.EngagementScore
		if score < 0 {
			score = 0
		}
		if score > 100 {
			score = 100
		}
		state.EngagementScore = score
	}
	if event.FunnelStage != nil && store.IsValidFunnelStage(*event.FunnelStage) {
		state.FunnelStage = *event.FunnelStage
	}
}

// mergedContext overlays the caller's request context on the event's own
// context document; request context wins on key collisions.
func mergedContext(event EventInput, reqCtx RequestContext) map[string]string {
	merged := make(map[string]string, len(event.Context)+len(reqCtx.Context))
	for k, v := range event.Context {
		merged[k] = v
	}
	for k, v := range reqCtx.Context {
		merged[k] = v
	}
	return merged
}

func contextDocument(event EventInput, reqCtx RequestContext) store.JSONB {
	doc := make(store.JSONB)
	for k, v := range mergedContext(event, reqCtx) {
		doc[k] = v
	}
	if reqCtx.VisitorClass != "" {
		doc["visitor_class"] = reqCtx.VisitorClass
	}
	return doc
}

// snapshotDocument captures the evaluation-time state stored with the
// triggered audit row.
func snapshotDocument(state store.VisitorState, event EventInput) store.JSONB {
	return store.JSONB{
		"event_type":       event.Type,
		"page_views":       state.PageViews,
		"session_count":    state.SessionCount,
		"time_on_site":     state.TotalTimeOnSite,
		"engagement_score": state.EngagementScore,
		"funnel_stage":     state.FunnelStage,
	}
}

// ReportOutcome records a UI-reported lifecycle transition for an action.
func (p *EventProcessor) ReportOutcome(ctx context.Context, actionID uuid.UUID, outcome string, snapshot store.JSONB) (store.Action, error) {
	return p.recorder.Transition(ctx, actionID, outcome, snapshot)
}

// GetVisitorReport returns the operator view of one identity: the current
// snapshot plus every cooldown counter row.
func (p *EventProcessor) GetVisitorReport(ctx context.Context, identityKey string) (VisitorReport, error) {
	state, err := p.store.GetVisitorState(ctx, identityKey)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return VisitorReport{}, ErrVisitorNotFound
		}
		return VisitorReport{}, err
	}
	cooldowns, err := p.store.GetCooldownStatesByIdentity(ctx, identityKey)
	if err != nil {
		return VisitorReport{}, err
	}
	return VisitorReport{State: state, Cooldowns: cooldowns}, nil
}

// GetRuleStats aggregates the audit log for one rule with derived rates,
// cached briefly in redis since operators poll it while tuning rules.
func (p *EventProcessor) GetRuleStats(ctx context.Context, ruleID uuid.UUID) (RuleStatsReport, error) {
	cacheKey := fmt.Sprintf("hospitality:rulestats:%s", ruleID)
	if cached, err := p.redis.Get(ctx, cacheKey); err == nil {
		var report RuleStatsReport
		if err := json.Unmarshal([]byte(cached), &report); err == nil {
			return report, nil
		}
	}

	if _, err := p.store.GetRuleByID(ctx, ruleID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return RuleStatsReport{}, ErrRuleNotFound
		}
		return RuleStatsReport{}, err
	}

	stats, err := p.store.GetRuleStats(ctx, ruleID)
	if err != nil {
		return RuleStatsReport{}, err
	}

	report := RuleStatsReport{RuleStats: stats}
	if stats.Displayed > 0 {
		report.ConversionRate = float64(stats.Converted) / float64(stats.Displayed)
		report.DismissalRate = float64(stats.Dismissed) / float64(stats.Displayed)
		report.ClickRate = float64(stats.ButtonClicked) / float64(stats.Displayed)
	}

	if encoded, err := json.Marshal(report); err == nil {
		if err := p.redis.Set(ctx, cacheKey, string(encoded), statsCacheTTL); err != nil {
			p.logger.Warn(ctx, "failed to cache rule stats", err)
		}
	}
	return report, nil
}

// CatalogSnapshot exposes the active rules and the load errors of the last
// refresh for the operator surface.
func (p *EventProcessor) CatalogSnapshot(ctx context.Context) ([]rules.Rule, []rules.LoadError, error) {
	active, err := p.catalog.ActiveRules(ctx)
	if err != nil {
		return nil, nil, err
	}
	return active, p.catalog.LoadErrors(), nil
}

// RefreshCatalog bumps the shared catalog version and reloads this
// process's copy, the invalidation hook for the external admin surface.
func (p *EventProcessor) RefreshCatalog(ctx context.Context) error {
	return p.catalog.BumpVersion(ctx)
}

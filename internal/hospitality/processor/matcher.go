package processor

import (
	"time"

	"hospitality-server/internal/rules"
	"hospitality-server/internal/store"

	"github.com/google/uuid"
)

// matchInput is everything rule matching reads: the post-update visitor
// snapshot, the cooldown counters, and the caller-supplied context.
type matchInput struct {
	state     store.VisitorState
	cooldowns map[uuid.UUID]store.CooldownState
	class     store.TargetAudience
	context   map[string]string
	now       time.Time
}

// matchRule walks the candidate rules in priority order and returns the
// first one that is applicable, whose conditions hold, and that is
// eligible under its rate limits. At most one rule fires per event: the
// walk stops at the first winner. Returns nil when nothing fires.
func matchRule(candidates []rules.Rule, in matchInput) *rules.Rule {
	// A live global cooldown suppresses every rule for this identity.
	if in.state.GlobalCooldownUntil != nil && in.state.GlobalCooldownUntil.After(in.now) {
		return nil
	}

	evalInput := rules.EvalInput{
		TimeOnSite:      in.state.TotalTimeOnSite,
		PageViews:       in.state.PageViews,
		EngagementScore: in.state.EngagementScore,
		SessionCount:    in.state.SessionCount,
		Context:         in.context,
	}

	for i := range candidates {
		rule := &candidates[i]
		if !rule.InWindow(in.now) {
			continue
		}
		if !rule.AppliesTo(in.class) {
			continue
		}
		if !rule.Conditions.Match(evalInput) {
			continue
		}
		if !eligible(*rule, in.cooldowns[rule.ID], in.now) {
			// Ineligible rules are skipped for this event, never
			// retried later in the same call.
			continue
		}
		return rule
	}
	return nil
}

// eligible applies the per-rule rate limits for one identity. A missing
// cooldown row is the zero value: never triggered, always eligible.
func eligible(rule rules.Rule, cooldown store.CooldownState, now time.Time) bool {
	if cooldown.TimesTriggeredSession >= rule.MaxPerSession {
		return false
	}
	if cooldown.EffectiveDailyCount(now) >= rule.MaxPerDay {
		return false
	}
	if cooldown.CooldownUntil != nil && cooldown.CooldownUntil.After(now) {
		return false
	}
	return true
}

// visitorClass normalizes the caller-supplied class, defaulting unknown
// values to the broadest class so misconfigured callers still only match
// audience-all rules.
func visitorClass(raw string) store.TargetAudience {
	switch store.TargetAudience(raw) {
	case store.AudienceVisitor, store.AudienceSubscriber, store.AudienceFree, store.AudiencePaid:
		return store.TargetAudience(raw)
	}
	return store.AudienceAll
}

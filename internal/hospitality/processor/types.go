package processor

import (
	"time"

	"hospitality-server/internal/store"

	"github.com/google/uuid"
)

// Decision reasons reported alongside a no-action answer
const (
	ReasonMatched          = "matched"
	ReasonNoMatch          = "no_match"
	ReasonGlobalCooldown   = "global_cooldown"
	ReasonTimeout          = "timeout"
	ReasonStoreUnavailable = "store_unavailable"
)

// EventInput is one behavior signal submitted by the caller
type EventInput struct {
	Type        string            `json:"type"`
	Source      string            `json:"source"`
	MetricValue *float64          `json:"metric_value,omitempty"`
	PageURL     *string           `json:"page_url,omitempty"`
	PersonaID   *uuid.UUID        `json:"persona_id,omitempty"`
	Context     map[string]string `json:"context,omitempty"`
	// EngagementScore is supplied by the external scoring collaborator;
	// the engine only stores it.
	EngagementScore *int      `json:"engagement_score,omitempty"`
	FunnelStage     *string   `json:"funnel_stage,omitempty"`
	OccurredAt      time.Time `json:"occurred_at,omitempty"`
}

// RequestContext carries caller-resolved classification for this event
type RequestContext struct {
	// VisitorClass is the audience class (visitor, subscriber, free,
	// paid) derived by the caller from subscription status.
	VisitorClass string `json:"visitor_class"`
	// Context holds presentation signals (language, time_of_day, topic
	// affinity) matched by rule conditions and persona criteria.
	Context map[string]string `json:"context,omitempty"`
}

// FiredAction describes the single action the engine decided to fire
type FiredAction struct {
	ActionID   uuid.UUID        `json:"action_id"`
	RuleID     uuid.UUID        `json:"rule_id"`
	RuleSlug   string           `json:"rule_slug"`
	ActionType store.ActionType `json:"action_type"`
	PersonaID  *uuid.UUID       `json:"persona_id,omitempty"`
	// PersonaUnresolved marks a firing with no resolvable persona: the
	// caller presents its default persona. Not an error.
	PersonaUnresolved bool                   `json:"persona_unresolved,omitempty"`
	Content           string                 `json:"content"`
	Buttons           store.JSONBArray       `json:"buttons,omitempty"`
	ActionConfig      map[string]interface{} `json:"action_config,omitempty"`
}

// Decision is the engine's answer for one event: at most one fired action.
type Decision struct {
	Fired  bool         `json:"fired"`
	Reason string       `json:"reason"`
	Action *FiredAction `json:"action,omitempty"`
	// Degraded marks a no-action answer caused by infrastructure rather
	// than rule evaluation; the event should be replayed by the caller
	// if durability matters.
	Degraded bool `json:"degraded,omitempty"`
}

// NoAction builds a no-fire decision with the given reason
func NoAction(reason string) Decision {
	return Decision{Fired: false, Reason: reason}
}

// VisitorReport is the operator view of one identity
type VisitorReport struct {
	State     store.VisitorState    `json:"state"`
	Cooldowns []store.CooldownState `json:"cooldowns"`
}

// RuleStatsReport aggregates the audit log with derived rates
type RuleStatsReport struct {
	store.RuleStats
	ConversionRate float64 `json:"conversion_rate"`
	DismissalRate  float64 `json:"dismissal_rate"`
	ClickRate      float64 `json:"click_rate"`
}

package store

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JSONB is a custom type for JSONB fields
type JSONB map[string]interface{}

// Value implements the driver.Valuer interface for JSONB
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements the sql.Scanner interface for JSONB
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("incompatible type for JSONB")
	}

	// Handle empty or null JSON
	if len(bytes) == 0 || string(bytes) == "null" {
		*j = make(JSONB)
		return nil
	}

	result := make(JSONB)
	err := json.Unmarshal(bytes, &result)
	if err != nil {
		return err
	}
	*j = result
	return nil
}

// JSONBArray is a custom type for JSONB fields holding a JSON array
type JSONBArray []map[string]interface{}

// Value implements the driver.Valuer interface for JSONBArray
func (a JSONBArray) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	return json.Marshal(a)
}

// Scan implements the sql.Scanner interface for JSONBArray
func (a *JSONBArray) Scan(value interface{}) error {
	if value == nil {
		*a = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("incompatible type for JSONBArray")
	}

	if len(bytes) == 0 || string(bytes) == "null" {
		*a = JSONBArray{}
		return nil
	}

	return json.Unmarshal(bytes, a)
}

// ============================================================================
// Visitor Identity
// ============================================================================

var ErrInvalidIdentity = errors.New("identity requires exactly one of user id or session token")

// VisitorIdentity is the unit of engagement tracking: one authenticated
// user or one anonymous session. Exactly one of the two fields is set.
type VisitorIdentity struct {
	UserID       *uuid.UUID `json:"user_id,omitempty"`
	SessionToken *string    `json:"session_token,omitempty"`
}

// Validate checks that exactly one identifier is present.
func (v VisitorIdentity) Validate() error {
	hasUser := v.UserID != nil && *v.UserID != uuid.Nil
	hasSession := v.SessionToken != nil && *v.SessionToken != ""
	if hasUser == hasSession {
		return ErrInvalidIdentity
	}
	return nil
}

// Key returns the join key used for all per-visitor state.
func (v VisitorIdentity) Key() string {
	if v.UserID != nil && *v.UserID != uuid.Nil {
		return "user:" + v.UserID.String()
	}
	if v.SessionToken != nil {
		return "session:" + *v.SessionToken
	}
	return ""
}

// ============================================================================
// Funnel stages and visitor classes
// ============================================================================

// FunnelStage is the ordered visitor lifecycle classification
type FunnelStage string

const (
	FunnelStageVisitor    FunnelStage = "visitor"
	FunnelStageInterested FunnelStage = "interested"
	FunnelStageEngaged    FunnelStage = "engaged"
	FunnelStageSubscriber FunnelStage = "subscriber"
	FunnelStageAdvocate   FunnelStage = "advocate"
)

// IsValidFunnelStage reports whether s names a known funnel stage
func IsValidFunnelStage(s string) bool {
	switch FunnelStage(s) {
	case FunnelStageVisitor, FunnelStageInterested, FunnelStageEngaged,
		FunnelStageSubscriber, FunnelStageAdvocate:
		return true
	}
	return false
}

// TargetAudience classifies which visitors a rule applies to
type TargetAudience string

const (
	AudienceAll        TargetAudience = "all"
	AudienceVisitor    TargetAudience = "visitor"
	AudienceSubscriber TargetAudience = "subscriber"
	AudienceFree       TargetAudience = "free"
	AudiencePaid       TargetAudience = "paid"
)

// ActionType names what a rule fires
type ActionType string

const (
	ActionTypePopup          ActionType = "popup"
	ActionTypeNotification   ActionType = "notification"
	ActionTypePersonaMessage ActionType = "persona_message"
	ActionTypeRedirect       ActionType = "redirect"
)

// ============================================================================
// Visitor State
// ============================================================================

// VisitorState is the durable per-identity engagement snapshot
type VisitorState struct {
	IdentityKey         string     `db:"identity_key" json:"identity_key"`
	UserID              *uuid.UUID `db:"user_id" json:"user_id,omitempty"`
	SessionToken        *string    `db:"session_token" json:"session_token,omitempty"`
	PageViews           int        `db:"page_views" json:"page_views"`
	SessionCount        int        `db:"session_count" json:"session_count"`
	TotalTimeOnSite     int        `db:"total_time_on_site" json:"total_time_on_site"`
	CurrentSessionStart time.Time  `db:"current_session_start" json:"current_session_start"`
	LastActivityAt      time.Time  `db:"last_activity_at" json:"last_activity_at"`
	EngagementScore     int        `db:"engagement_score" json:"engagement_score"`
	FunnelStage         string     `db:"funnel_stage" json:"funnel_stage"`
	PopupsShownToday    int        `db:"popups_shown_today" json:"popups_shown_today"`
	PopupsDismissed     int        `db:"popups_dismissed_today" json:"popups_dismissed_today"`
	GlobalCooldownUntil *time.Time `db:"global_cooldown_until" json:"global_cooldown_until,omitempty"`
	CreatedAt           time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at" json:"updated_at"`
}

// ============================================================================
// Behavior Events
// ============================================================================

// BehaviorEvent is an append-only visitor behavior signal
type BehaviorEvent struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	IdentityKey string     `db:"identity_key" json:"identity_key"`
	UserID      *uuid.UUID `db:"user_id" json:"user_id,omitempty"`
	EventType   string     `db:"event_type" json:"event_type"`
	Source      string     `db:"source" json:"source"`
	Context     JSONB      `db:"context" json:"context,omitempty"`
	MetricValue *float64   `db:"metric_value" json:"metric_value,omitempty"`
	PageURL     *string    `db:"page_url" json:"page_url,omitempty"`
	PersonaID   *uuid.UUID `db:"persona_id" json:"persona_id,omitempty"`
	OccurredAt  time.Time  `db:"occurred_at" json:"occurred_at"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

// ============================================================================
// Engagement Rules
// ============================================================================

// EngagementRule is the persisted form of a rule, owned by the external
// admin surface and read-only to the engine. Condition and persona
// documents are parsed by the rules package at catalog load time.
type EngagementRule struct {
	ID                uuid.UUID  `db:"id" json:"id"`
	Name              string     `db:"name" json:"name"`
	Slug              string     `db:"slug" json:"slug"`
	TargetAudience    string     `db:"target_audience" json:"target_audience"`
	TriggerConditions JSONB      `db:"trigger_conditions" json:"trigger_conditions"`
	ActionType        string     `db:"action_type" json:"action_type"`
	ActionConfig      JSONB      `db:"action_config" json:"action_config,omitempty"`
	MessageTemplate   *string    `db:"message_template" json:"message_template,omitempty"`
	Buttons           JSONBArray `db:"buttons" json:"buttons,omitempty"`
	Priority          int        `db:"priority" json:"priority"`
	IsActive          bool       `db:"is_active" json:"is_active"`
	ValidFrom         *time.Time `db:"valid_from" json:"valid_from,omitempty"`
	ValidUntil        *time.Time `db:"valid_until" json:"valid_until,omitempty"`
	MaxPerSession     int        `db:"max_per_session" json:"max_per_session"`
	MaxPerDay         int        `db:"max_per_day" json:"max_per_day"`
	CooldownSeconds   int        `db:"cooldown_seconds" json:"cooldown_seconds"`
	PrimaryPersonaID  *uuid.UUID `db:"primary_persona_id" json:"primary_persona_id,omitempty"`
	SecondaryPersonas JSONBArray `db:"secondary_personas" json:"secondary_personas,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

// ============================================================================
// Cooldown State
// ============================================================================

// CooldownState tracks firing counters for one (identity, rule) pair
type CooldownState struct {
	IdentityKey           string     `db:"identity_key" json:"identity_key"`
	RuleID                uuid.UUID  `db:"rule_id" json:"rule_id"`
	TimesTriggeredSession int        `db:"times_triggered_session" json:"times_triggered_session"`
	TimesTriggeredToday   int        `db:"times_triggered_today" json:"times_triggered_today"`
	TimesTriggeredTotal   int        `db:"times_triggered_total" json:"times_triggered_total"`
	LastTriggeredAt       *time.Time `db:"last_triggered_at" json:"last_triggered_at,omitempty"`
	CooldownUntil         *time.Time `db:"cooldown_until" json:"cooldown_until,omitempty"`
	LastDailyReset        time.Time  `db:"last_daily_reset" json:"last_daily_reset"`
}

// EffectiveDailyCount returns the daily trigger count adjusted for lazy
// day rollover: a row last reset before today's UTC date counts as zero
// even if the sweep has not visited it yet.
func (c CooldownState) EffectiveDailyCount(now time.Time) int {
	if c.LastDailyReset.UTC().Truncate(24 * time.Hour).Before(now.UTC().Truncate(24 * time.Hour)) {
		return 0
	}
	return c.TimesTriggeredToday
}

// ============================================================================
// Actions and their audit log
// ============================================================================

// ActionOutcome is the lifecycle state of a fired action
type ActionOutcome string

const (
	OutcomePending       ActionOutcome = "pending"
	OutcomeDisplayed     ActionOutcome = "displayed"
	OutcomeButtonClicked ActionOutcome = "button_clicked"
	OutcomeDismissed     ActionOutcome = "dismissed"
	OutcomeExpired       ActionOutcome = "expired"
	OutcomeConverted     ActionOutcome = "converted"
)

// IsValidOutcome reports whether s names a known action outcome
func IsValidOutcome(s string) bool {
	switch ActionOutcome(s) {
	case OutcomePending, OutcomeDisplayed, OutcomeButtonClicked,
		OutcomeDismissed, OutcomeExpired, OutcomeConverted:
		return true
	}
	return false
}

// Action is one materialized firing of a rule for one identity
type Action struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	RuleID      uuid.UUID  `db:"rule_id" json:"rule_id"`
	IdentityKey string     `db:"identity_key" json:"identity_key"`
	EventID     *uuid.UUID `db:"event_id" json:"event_id,omitempty"`
	PersonaID   *uuid.UUID `db:"persona_id" json:"persona_id,omitempty"`
	ActionType  string     `db:"action_type" json:"action_type"`
	Content     string     `db:"content" json:"content"`
	Buttons     JSONBArray `db:"buttons" json:"buttons,omitempty"`
	Outcome     string     `db:"outcome" json:"outcome"`
	OutcomeAt   *time.Time `db:"outcome_at" json:"outcome_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

// RuleEventType names an action lifecycle transition
type RuleEventType string

const (
	RuleEventTriggered     RuleEventType = "triggered"
	RuleEventDisplayed     RuleEventType = "displayed"
	RuleEventButtonClicked RuleEventType = "button_clicked"
	RuleEventDismissed     RuleEventType = "dismissed"
	RuleEventExpired       RuleEventType = "expired"
	RuleEventConverted     RuleEventType = "converted"
)

// RuleEvent is one append-only audit row for an action transition
type RuleEvent struct {
	ID          uuid.UUID `db:"id" json:"id"`
	ActionID    uuid.UUID `db:"action_id" json:"action_id"`
	RuleID      uuid.UUID `db:"rule_id" json:"rule_id"`
	IdentityKey string    `db:"identity_key" json:"identity_key"`
	EventType   string    `db:"event_type" json:"event_type"`
	Context     JSONB     `db:"context" json:"context,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// RuleStats aggregates rule_events counts for one rule
type RuleStats struct {
	RuleID        uuid.UUID `db:"rule_id" json:"rule_id"`
	Triggered     int       `db:"triggered" json:"triggered"`
	Displayed     int       `db:"displayed" json:"displayed"`
	ButtonClicked int       `db:"button_clicked" json:"button_clicked"`
	Dismissed     int       `db:"dismissed" json:"dismissed"`
	Expired       int       `db:"expired" json:"expired"`
	Converted     int       `db:"converted" json:"converted"`
}

// String renders a compact debug form
func (s RuleStats) String() string {
	return fmt.Sprintf("rule=%s triggered=%d displayed=%d clicked=%d dismissed=%d expired=%d converted=%d",
		s.RuleID, s.Triggered, s.Displayed, s.ButtonClicked, s.Dismissed, s.Expired, s.Converted)
}

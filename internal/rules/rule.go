package rules

import (
	"errors"
	"fmt"
	"time"

	"hospitality-server/internal/store"

	"github.com/google/uuid"
)

// ErrRuleConfig marks a rule whose stored documents are malformed. Such
// rules are excluded from matching at load time, never evaluated.
var ErrRuleConfig = errors.New("invalid rule configuration")

// Rule is the parsed, evaluation-ready form of an engagement rule.
type Rule struct {
	ID                uuid.UUID
	Name              string
	Slug              string
	TargetAudience    store.TargetAudience
	Conditions        Conditions
	ActionType        store.ActionType
	ActionConfig      map[string]interface{}
	MessageTemplate   string
	Buttons           store.JSONBArray
	Priority          int
	ValidFrom         *time.Time
	ValidUntil        *time.Time
	MaxPerSession     int
	MaxPerDay         int
	CooldownSeconds   int
	PrimaryPersonaID  *uuid.UUID
	SecondaryPersonas []SecondaryPersona
}

// SecondaryPersona is one fallback persona with its selection criteria.
// Entries are kept in ascending priority order.
type SecondaryPersona struct {
	PersonaID         uuid.UUID
	Priority          int
	SelectionCriteria map[string]string
}

// InWindow reports whether the rule's validity window covers now
func (r Rule) InWindow(now time.Time) bool {
	if r.ValidFrom != nil && now.Before(*r.ValidFrom) {
		return false
	}
	if r.ValidUntil != nil && !now.Before(*r.ValidUntil) {
		return false
	}
	return true
}

// AppliesTo reports whether the rule targets the given visitor class
func (r Rule) AppliesTo(class store.TargetAudience) bool {
	if r.TargetAudience == store.AudienceAll {
		return true
	}
	return r.TargetAudience == class
}

// Parse converts a stored rule into its evaluation-ready form, validating
// every document along the way. Any defect yields ErrRuleConfig.
func Parse(raw store.EngagementRule) (Rule, error) {
	switch store.TargetAudience(raw.TargetAudience) {
	case store.AudienceAll, store.AudienceVisitor, store.AudienceSubscriber,
		store.AudienceFree, store.AudiencePaid:
	default:
		return Rule{}, fmt.Errorf("rule %s: unknown target audience %q: %w", raw.Slug, raw.TargetAudience, ErrRuleConfig)
	}

	switch store.ActionType(raw.ActionType) {
	case store.ActionTypePopup, store.ActionTypeNotification,
		store.ActionTypePersonaMessage, store.ActionTypeRedirect:
	default:
		return Rule{}, fmt.Errorf("rule %s: unknown action type %q: %w", raw.Slug, raw.ActionType, ErrRuleConfig)
	}

	if raw.MaxPerSession < 1 {
		return Rule{}, fmt.Errorf("rule %s: max_per_session must be at least 1: %w", raw.Slug, ErrRuleConfig)
	}
	if raw.MaxPerDay < 1 {
		return Rule{}, fmt.Errorf("rule %s: max_per_day must be at least 1: %w", raw.Slug, ErrRuleConfig)
	}
	if raw.CooldownSeconds < 0 {
		return Rule{}, fmt.Errorf("rule %s: cooldown_seconds must not be negative: %w", raw.Slug, ErrRuleConfig)
	}

	conditions, err := ParseConditions(raw.TriggerConditions)
	if err != nil {
		return Rule{}, fmt.Errorf("rule %s: %w", raw.Slug, err)
	}

	secondaries, err := parseSecondaryPersonas(raw.SecondaryPersonas)
	if err != nil {
		return Rule{}, fmt.Errorf("rule %s: %w", raw.Slug, err)
	}

	rule := Rule{
		ID:                raw.ID,
		Name:              raw.Name,
		Slug:              raw.Slug,
		TargetAudience:    store.TargetAudience(raw.TargetAudience),
		Conditions:        conditions,
		ActionType:        store.ActionType(raw.ActionType),
		ActionConfig:      raw.ActionConfig,
		Buttons:           raw.Buttons,
		Priority:          raw.Priority,
		ValidFrom:         raw.ValidFrom,
		ValidUntil:        raw.ValidUntil,
		MaxPerSession:     raw.MaxPerSession,
		MaxPerDay:         raw.MaxPerDay,
		CooldownSeconds:   raw.CooldownSeconds,
		PrimaryPersonaID:  raw.PrimaryPersonaID,
		SecondaryPersonas: secondaries,
	}
	if raw.MessageTemplate != nil {
		rule.MessageTemplate = *raw.MessageTemplate
	}
	return rule, nil
}

func parseSecondaryPersonas(raw store.JSONBArray) ([]SecondaryPersona, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	personas := make([]SecondaryPersona, 0, len(raw))
	for i, entry := range raw {
		idValue, ok := entry["persona_id"].(string)
		if !ok {
			return nil, fmt.Errorf("secondary persona %d: missing persona_id: %w", i, ErrRuleConfig)
		}
		personaID, err := uuid.Parse(idValue)
		if err != nil {
			return nil, fmt.Errorf("secondary persona %d: bad persona_id: %w", i, ErrRuleConfig)
		}

		persona := SecondaryPersona{PersonaID: personaID}
		if p, ok := entry["priority"].(float64); ok {
			persona.Priority = int(p)
		}
		if criteria, ok := entry["selection_criteria"].(map[string]interface{}); ok {
			persona.SelectionCriteria = make(map[string]string, len(criteria))
			for k, v := range criteria {
				s, ok := v.(string)
				if !ok {
					return nil, fmt.Errorf("secondary persona %d: selection_criteria values must be strings: %w", i, ErrRuleConfig)
				}
				persona.SelectionCriteria[k] = s
			}
		}
		personas = append(personas, persona)
	}

	// Keep entries in ascending priority order; the selector takes the
	// first criteria match.
	for i := 1; i < len(personas); i++ {
		for j := i; j > 0 && personas[j].Priority < personas[j-1].Priority; j-- {
			personas[j], personas[j-1] = personas[j-1], personas[j]
		}
	}
	return personas, nil
}

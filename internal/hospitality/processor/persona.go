package processor

import (
	"hospitality-server/internal/rules"

	"github.com/google/uuid"
)

// selectPersona resolves which persona presents a fired rule. Secondary
// personas are consulted in ascending priority order and the first whose
// selection criteria are a subset of the context overrides the primary;
// there is no scoring beyond order. When neither the primary nor any
// secondary resolves, the second return is false and the caller presents
// its default persona.
func selectPersona(rule rules.Rule, context map[string]string) (*uuid.UUID, bool) {
	for _, secondary := range rule.SecondaryPersonas {
		if criteriaMatch(secondary.SelectionCriteria, context) {
			id := secondary.PersonaID
			return &id, true
		}
	}
	if rule.PrimaryPersonaID != nil {
		id := *rule.PrimaryPersonaID
		return &id, true
	}
	return nil, false
}

// criteriaMatch reports whether every criteria pair appears in context.
// Empty criteria never match: a secondary persona without criteria would
// otherwise always shadow the primary.
func criteriaMatch(criteria map[string]string, context map[string]string) bool {
	if len(criteria) == 0 {
		return false
	}
	for key, want := range criteria {
		got, ok := context[key]
		if !ok || got != want {
			return false
		}
	}
	return true
}

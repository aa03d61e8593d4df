package rules

import (
	"fmt"
)

// Conditions is the conjunctive trigger predicate of one rule: every set
// comparison must hold for the rule to match. An empty Conditions always
// matches. The vocabulary is a fixed set of named comparisons plus
// arbitrary context-key equality, extensible by adding new fields here and
// to ParseConditions.
type Conditions struct {
	TimeOnSiteGTE      *int
	PageViewsGTE       *int
	EngagementScoreGTE *int
	SessionCountGTE    *int
	ContextEquals      map[string]string
}

// EvalInput carries the visitor snapshot and per-event context the
// predicate is evaluated against.
type EvalInput struct {
	TimeOnSite      int
	PageViews       int
	EngagementScore int
	SessionCount    int
	Context         map[string]string
}

// Match evaluates the predicate. Context keys referenced by the rule but
// absent from the input fail the match, they are not an error.
func (c Conditions) Match(in EvalInput) bool {
	if c.TimeOnSiteGTE != nil && in.TimeOnSite < *c.TimeOnSiteGTE {
		return false
	}
	if c.PageViewsGTE != nil && in.PageViews < *c.PageViewsGTE {
		return false
	}
	if c.EngagementScoreGTE != nil && in.EngagementScore < *c.EngagementScoreGTE {
		return false
	}
	if c.SessionCountGTE != nil && in.SessionCount < *c.SessionCountGTE {
		return false
	}
	for key, want := range c.ContextEquals {
		got, ok := in.Context[key]
		if !ok || got != want {
			return false
		}
	}
	return true
}

// ParseConditions builds the predicate from the stored document. Unknown
// keys and non-numeric thresholds are configuration defects.
func ParseConditions(doc map[string]interface{}) (Conditions, error) {
	var c Conditions
	for key, value := range doc {
		switch key {
		case "time_on_site_gte":
			n, err := intThreshold(key, value)
			if err != nil {
				return Conditions{}, err
			}
			c.TimeOnSiteGTE = n
		case "page_views_gte":
			n, err := intThreshold(key, value)
			if err != nil {
				return Conditions{}, err
			}
			c.PageViewsGTE = n
		case "engagement_score_gte":
			n, err := intThreshold(key, value)
			if err != nil {
				return Conditions{}, err
			}
			c.EngagementScoreGTE = n
		case "session_count_gte":
			n, err := intThreshold(key, value)
			if err != nil {
				return Conditions{}, err
			}
			c.SessionCountGTE = n
		case "context_equals":
			pairs, ok := value.(map[string]interface{})
			if !ok {
				return Conditions{}, fmt.Errorf("context_equals must be an object: %w", ErrRuleConfig)
			}
			c.ContextEquals = make(map[string]string, len(pairs))
			for k, v := range pairs {
				s, ok := v.(string)
				if !ok {
					return Conditions{}, fmt.Errorf("context_equals values must be strings: %w", ErrRuleConfig)
				}
				c.ContextEquals[k] = s
			}
		default:
			return Conditions{}, fmt.Errorf("unknown condition %q: %w", key, ErrRuleConfig)
		}
	}
	return c, nil
}

func intThreshold(key string, value interface{}) (*int, error) {
	switch v := value.(type) {
	case float64:
		n := int(v)
		if n < 0 {
			return nil, fmt.Errorf("%s must not be negative: %w", key, ErrRuleConfig)
		}
		return &n, nil
	case int:
		if v < 0 {
			return nil, fmt.Errorf("%s must not be negative: %w", key, ErrRuleConfig)
		}
		return &v, nil
	default:
		return nil, fmt.Errorf("%s must be a number: %w", key, ErrRuleConfig)
	}
}

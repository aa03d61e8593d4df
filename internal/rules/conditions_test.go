package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(n int) *int { return &n }

func TestConditions_EmptyAlwaysMatches(t *testing.T) {
	assert.True(t, Conditions{}.Match(EvalInput{}))
}

func TestConditions_AllMustHold(t *testing.T) {
	c := Conditions{
		TimeOnSiteGTE: intPtr(30),
		PageViewsGTE:  intPtr(3),
	}

	assert.True(t, c.Match(EvalInput{TimeOnSite: 30, PageViews: 3}))
	assert.False(t, c.Match(EvalInput{TimeOnSite: 30, PageViews: 2}))
	assert.False(t, c.Match(EvalInput{TimeOnSite: 29, PageViews: 3}))
}

func TestConditions_ThresholdsAreInclusive(t *testing.T) {
	c := Conditions{EngagementScoreGTE: intPtr(50)}
	assert.True(t, c.Match(EvalInput{EngagementScore: 50}))
	assert.False(t, c.Match(EvalInput{EngagementScore: 49}))

	c = Conditions{SessionCountGTE: intPtr(2)}
	assert.True(t, c.Match(EvalInput{SessionCount: 2}))
	assert.False(t, c.Match(EvalInput{SessionCount: 1}))
}

func TestConditions_MissingContextKeyFailsClosed(t *testing.T) {
	c := Conditions{ContextEquals: map[string]string{"topic": "pricing"}}

	assert.False(t, c.Match(EvalInput{}))
	assert.False(t, c.Match(EvalInput{Context: map[string]string{"topic": "support"}}))
	assert.True(t, c.Match(EvalInput{Context: map[string]string{"topic": "pricing", "language": "en"}}))
}

func TestParseConditions_FullVocabulary(t *testing.T) {
	c, err := ParseConditions(map[string]interface{}{
		"time_on_site_gte":     float64(30),
		"page_views_gte":       float64(3),
		"engagement_score_gte": float64(60),
		"session_count_gte":    float64(2),
		"context_equals":       map[string]interface{}{"language": "en"},
	})
	require.NoError(t, err)
	assert.Equal(t, 30, *c.TimeOnSiteGTE)
	assert.Equal(t, 3, *c.PageViewsGTE)
	assert.Equal(t, 60, *c.EngagementScoreGTE)
	assert.Equal(t, 2, *c.SessionCountGTE)
	assert.Equal(t, map[string]string{"language": "en"}, c.ContextEquals)
}

func TestParseConditions_Rejections(t *testing.T) {
	cases := []struct {
		name string
		doc  map[string]interface{}
	}{
		{"unknown key", map[string]interface{}{"bounce_rate_gte": float64(1)}},
		{"negative threshold", map[string]interface{}{"page_views_gte": float64(-1)}},
		{"non-numeric threshold", map[string]interface{}{"page_views_gte": "3"}},
		{"context_equals not object", map[string]interface{}{"context_equals": "pricing"}},
		{"context_equals non-string value", map[string]interface{}{
			"context_equals": map[string]interface{}{"depth": float64(2)},
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseConditions(tc.doc)
			assert.ErrorIs(t, err, ErrRuleConfig)
		})
	}
}

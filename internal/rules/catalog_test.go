package rules

import (
	"context"
	"errors"
	"testing"
	"time"

	redisclient "hospitality-server/internal/clients/redis"
	"hospitality-server/internal/observability"
	"hospitality-server/internal/store"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockRuleSource is a mock implementation of RuleSource
type MockRuleSource struct {
	mock.Mock
}

func (m *MockRuleSource) ListActiveRules(ctx context.Context) ([]store.EngagementRule, error) {
	args := m.Called(ctx)
	return args.Get(0).([]store.EngagementRule), args.Error(1)
}

func testRedis(t *testing.T) *redisclient.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return redisclient.NewClientFromRedis(client, observability.NewLogger())
}

func TestCatalog_LoadsOnFirstRead(t *testing.T) {
	source := new(MockRuleSource)
	source.On("ListActiveRules", mock.Anything).Return([]store.EngagementRule{validRawRule()}, nil).Once()

	catalog := NewCatalog(source, nil, observability.NewLogger(), time.Hour)
	active, err := catalog.ActiveRules(context.Background())
	require.NoError(t, err)
	assert.Len(t, active, 1)

	// A second read within the refresh interval is served from memory.
	_, err = catalog.ActiveRules(context.Background())
	require.NoError(t, err)
	source.AssertExpectations(t)
}

func TestCatalog_ExcludesMalformedRules(t *testing.T) {
	good := validRawRule()
	bad := validRawRule()
	bad.Slug = "broken"
	bad.TriggerConditions = store.JSONB{"unknown_key": float64(1)}

	source := new(MockRuleSource)
	source.On("ListActiveRules", mock.Anything).Return([]store.EngagementRule{good, bad}, nil)

	catalog := NewCatalog(source, nil, observability.NewLogger(), time.Hour)
	active, err := catalog.ActiveRules(context.Background())
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, good.Slug, active[0].Slug)

	loadErrors := catalog.LoadErrors()
	require.Len(t, loadErrors, 1)
	assert.Equal(t, bad.ID, loadErrors[0].RuleID)
	assert.Equal(t, "broken", loadErrors[0].Slug)
	assert.Contains(t, loadErrors[0].Reason, "unknown condition")
}

func TestCatalog_VersionBumpInvalidatesBeforeTTL(t *testing.T) {
	first := validRawRule()
	second := validRawRule()
	second.Slug = "second-wave"

	source := new(MockRuleSource)
	source.On("ListActiveRules", mock.Anything).Return([]store.EngagementRule{first}, nil).Once()
	source.On("ListActiveRules", mock.Anything).Return([]store.EngagementRule{first, second}, nil)

	redis := testRedis(t)
	catalog := NewCatalog(source, redis, observability.NewLogger(), time.Hour)

	active, err := catalog.ActiveRules(context.Background())
	require.NoError(t, err)
	assert.Len(t, active, 1)

	// The refresh interval has not elapsed, but the bumped version makes
	// the next read reload anyway.
	require.NoError(t, catalog.BumpVersion(context.Background()))

	active, err = catalog.ActiveRules(context.Background())
	require.NoError(t, err)
	assert.Len(t, active, 2)
}

func TestCatalog_ServesStaleOnRefreshFailure(t *testing.T) {
	source := new(MockRuleSource)
	source.On("ListActiveRules", mock.Anything).Return([]store.EngagementRule{validRawRule()}, nil).Once()
	source.On("ListActiveRules", mock.Anything).Return([]store.EngagementRule(nil), errors.New("connection refused"))

	catalog := NewCatalog(source, nil, observability.NewLogger(), time.Nanosecond)

	active, err := catalog.ActiveRules(context.Background())
	require.NoError(t, err)
	require.Len(t, active, 1)

	time.Sleep(time.Millisecond)
	active, err = catalog.ActiveRules(context.Background())
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestCatalog_FailsWhenNeverLoaded(t *testing.T) {
	source := new(MockRuleSource)
	source.On("ListActiveRules", mock.Anything).Return([]store.EngagementRule(nil), errors.New("connection refused"))

	catalog := NewCatalog(source, nil, observability.NewLogger(), time.Hour)
	_, err := catalog.ActiveRules(context.Background())
	assert.Error(t, err)
}

func TestCatalog_BumpVersionWithoutRedisRefreshesDirectly(t *testing.T) {
	source := new(MockRuleSource)
	source.On("ListActiveRules", mock.Anything).Return([]store.EngagementRule{validRawRule()}, nil)

	catalog := NewCatalog(source, nil, observability.NewLogger(), time.Hour)
	require.NoError(t, catalog.BumpVersion(context.Background()))
	assert.Len(t, catalog.LoadErrors(), 0)

	active, err := catalog.ActiveRules(context.Background())
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

package store

import (
	"context"
	"testing"
	"time"

	"hospitality-server/internal/observability"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewWithDB(sqlx.NewDb(db, "sqlmock"), observability.NewLogger()), mock
}

func cooldownColumns() []string {
	return []string{
		"identity_key", "rule_id", "times_triggered_session", "times_triggered_today",
		"times_triggered_total", "last_triggered_at", "cooldown_until", "last_daily_reset",
	}
}

func TestGetVisitorState_NotFound(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("SELECT (.+) FROM visitor_states").
		WithArgs("session:missing").
		WillReturnRows(sqlmock.NewRows([]string{"identity_key"}))

	_, err := s.GetVisitorState(context.Background(), "session:missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateVisitorState_MissingRow(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE visitor_states").
		WillReturnResult(sqlmock.NewResult(0, 0))

	tx, err := s.Begin(context.Background())
	require.NoError(t, err)
	defer tx.Rollback()

	err = tx.UpdateVisitorState(context.Background(), VisitorState{IdentityKey: "session:gone", FunnelStage: "visitor"})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordTrigger_SetsCooldownWindow(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	today := now.Truncate(24 * time.Hour)
	until := now.Add(300 * time.Second)
	ruleID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO cooldown_states").
		WithArgs("session:tok-1", ruleID, now, &until, today).
		WillReturnRows(sqlmock.NewRows(cooldownColumns()).
			AddRow("session:tok-1", ruleID, 1, 1, 1, now, until, today))

	tx, err := s.Begin(context.Background())
	require.NoError(t, err)
	defer tx.Rollback()

	state, err := tx.RecordTrigger(context.Background(), "session:tok-1", ruleID, now, 300)
	require.NoError(t, err)
	assert.Equal(t, 1, state.TimesTriggeredSession)
	assert.Equal(t, 1, state.TimesTriggeredToday)
	require.NotNil(t, state.CooldownUntil)
	assert.True(t, state.CooldownUntil.Equal(until))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordTrigger_ZeroCooldownLeavesWindowUnset(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	today := now.Truncate(24 * time.Hour)
	ruleID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO cooldown_states").
		WithArgs("session:tok-1", ruleID, now, (*time.Time)(nil), today).
		WillReturnRows(sqlmock.NewRows(cooldownColumns()).
			AddRow("session:tok-1", ruleID, 1, 1, 1, now, nil, today))

	tx, err := s.Begin(context.Background())
	require.NoError(t, err)
	defer tx.Rollback()

	state, err := tx.RecordTrigger(context.Background(), "session:tok-1", ruleID, now, 0)
	require.NoError(t, err)
	assert.Nil(t, state.CooldownUntil)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResetDailyCounters(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Date(2025, 6, 2, 0, 15, 0, 0, time.UTC)
	today := now.Truncate(24 * time.Hour)

	mock.ExpectExec("UPDATE cooldown_states").
		WithArgs(today).
		WillReturnResult(sqlmock.NewResult(0, 17))

	rows, err := s.ResetDailyCounters(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(17), rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCooldownStatesByIdentity_EmptyIsNotNil(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("SELECT (.+) FROM cooldown_states").
		WithArgs("session:quiet").
		WillReturnRows(sqlmock.NewRows(cooldownColumns()))

	states, err := s.GetCooldownStatesByIdentity(context.Background(), "session:quiet")
	require.NoError(t, err)
	assert.NotNil(t, states)
	assert.Len(t, states, 0)
}

func TestPurgeBehaviorEventsBefore(t *testing.T) {
	s, mock := newMockStore(t)
	cutoff := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec("DELETE FROM behavior_events").
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 1234))

	purged, err := s.PurgeBehaviorEventsBefore(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1234), purged)
}

func TestExpireStaleActions(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cutoff := now.Add(-24 * time.Hour)

	mock.ExpectExec("WITH expired AS").
		WithArgs(cutoff, now).
		WillReturnResult(sqlmock.NewResult(0, 4))

	expired, err := s.ExpireStaleActions(context.Background(), cutoff, now)
	require.NoError(t, err)
	assert.Equal(t, int64(4), expired)
}

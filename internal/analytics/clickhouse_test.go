package analytics

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordEvent_Unavailable(t *testing.T) {
	var a *Analytics
	assert.ErrorIs(t, a.RecordEvent(context.Background(), Event{Kind: KindClick}), ErrUnavailable)
	assert.ErrorIs(t, (&Analytics{}).RecordEvent(context.Background(), Event{}), ErrUnavailable)
}

func TestRecordEvent_Insert(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = sqlDB.Close() }()

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO engine_events`)).
		WithArgs(sqlmock.AnyArg(), KindImpression, "", "u1", "c1", "img-1", "", "home", "forwarded", `{"slot":2}`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	a := &Analytics{DB: sqlDB}
	err = a.RecordEvent(context.Background(), Event{
		Kind:         KindImpression,
		UserID:       "u1",
		CampaignID:   "c1",
		SubElementID: "img-1",
		Screen:       "home",
		Outcome:      "forwarded",
		Metadata:     map[string]any{"slot": 2},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventsByUser(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = sqlDB.Close() }()

	ts := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM engine_events WHERE user_id=?`)).
		WithArgs("u1", 10).
		WillReturnRows(sqlmock.NewRows([]string{"timestamp", "kind", "event_id", "user_id", "campaign_id", "sub_element_id", "event_name", "screen", "outcome", "metadata"}).
			AddRow(ts, KindEvent, "e1", "u1", "", "", "opened", "home", "forwarded", `{"a":"b"}`).
			AddRow(ts, KindClick, "", "u1", "c1", "", "", "home", "failed", ""))

	a := &Analytics{DB: sqlDB}
	events, err := a.EventsByUser(context.Background(), "u1", 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "opened", events[0].EventName)
	assert.JSONEq(t, `{"a":"b"}`, string(events[0].Metadata))
	assert.Nil(t, events[1].Metadata)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMockAnalytics(t *testing.T) {
	m := NewMockAnalytics()
	require.NoError(t, m.RecordEvent(context.Background(), Event{Kind: KindClick}))
	assert.Len(t, m.Events(), 1)
}

package sequence

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db), mock
}

func stepRows(steps ...*Step) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "sequence_id", "position", "subject", "html_content", "delay_days", "delay_time",
		"created_at", "updated_at"})
	for _, s := range steps {
		rows.AddRow(s.ID, s.SequenceID, s.Position, s.Subject, s.HTMLContent, s.DelayDays,
			s.DelayTime, s.CreatedAt, s.UpdatedAt)
	}
	return rows
}

// TestResequenceSteps verifies a reorder lands steps back in delay
// chronology and writes positions 1..n.
func TestResequenceSteps(t *testing.T) {
	store, mock := newMockStore(t)
	seqID := uuid.New()
	now := time.Now()

	day3 := &Step{ID: uuid.New(), SequenceID: seqID, Position: 1, Subject: "day 3",
		DelayDays: 3, CreatedAt: now, UpdatedAt: now}
	day0 := &Step{ID: uuid.New(), SequenceID: seqID, Position: 2, Subject: "day 0",
		DelayDays: 0, CreatedAt: now, UpdatedAt: now}

	mock.ExpectQuery(`FROM sequence_steps WHERE sequence_id = \$1 ORDER BY position`).
		WithArgs(seqID).
		WillReturnRows(stepRows(day3, day0))
	mock.ExpectExec(`UPDATE sequence_steps SET position = \$1`).
		WithArgs(1, day0.ID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE sequence_steps SET position = \$1`).
		WithArgs(2, day3.ID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	got, err := store.ResequenceSteps(context.Background(), seqID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "day 0", got[0].Subject)
	assert.Equal(t, 1, got[0].Position)
	assert.Equal(t, "day 3", got[1].Subject)
	assert.Equal(t, 2, got[1].Position)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnroll(t *testing.T) {
	sequenceID := uuid.New()
	subscriberID := uuid.New()
	nextRun := time.Now()

	t.Run("new enrollment", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec(`INSERT INTO sequence_enrollments`).
			WithArgs(sqlmock.AnyArg(), sequenceID, subscriberID, nextRun).
			WillReturnResult(sqlmock.NewResult(0, 1))

		enrolled, err := store.Enroll(context.Background(), sequenceID, subscriberID, nextRun)
		require.NoError(t, err)
		assert.True(t, enrolled)
	})

	t.Run("already enrolled", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec(`INSERT INTO sequence_enrollments`).
			WithArgs(sqlmock.AnyArg(), sequenceID, subscriberID, nextRun).
			WillReturnResult(sqlmock.NewResult(0, 0))

		enrolled, err := store.Enroll(context.Background(), sequenceID, subscriberID, nextRun)
		require.NoError(t, err)
		assert.False(t, enrolled)
	})
}

func TestGetSequenceNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectQuery(`FROM sequences WHERE id = \$1`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "description", "trigger_event", "status", "created_at", "updated_at"}))

	seq, err := store.GetSequence(context.Background(), id)
	require.NoError(t, err)
	assert.Nil(t, seq)
}

func TestCancelEnrollmentsForSubscriber(t *testing.T) {
	store, mock := newMockStore(t)
	subscriberID := uuid.New()

	mock.ExpectExec(`UPDATE sequence_enrollments SET status = 'cancelled'`).
		WithArgs(subscriberID).
		WillReturnResult(sqlmock.NewResult(0, 2))

	err := store.CancelEnrollmentsForSubscriber(context.Background(), subscriberID)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

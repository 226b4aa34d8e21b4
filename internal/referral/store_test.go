package referral

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

func milestoneRows(milestones ...*Milestone) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "threshold", "name", "description", "reward_type", "reward_value",
		"created_at", "updated_at"})
	for _, m := range milestones {
		rows.AddRow(m.ID, m.Threshold, m.Name, m.Description, m.RewardType, m.RewardValue,
			m.CreatedAt, m.UpdatedAt)
	}
	return rows
}

func TestIncrementReferralCount(t *testing.T) {
	store, mock := newMockStore(t)
	referrerID := uuid.New()

	mock.ExpectQuery(`UPDATE subscribers SET referral_count = referral_count \+ 1`).
		WithArgs(referrerID).
		WillReturnRows(sqlmock.NewRows([]string{"referral_count"}).AddRow(3))

	count, err := store.IncrementReferralCount(context.Background(), referrerID)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertAchievement(t *testing.T) {
	subscriberID := uuid.New()
	milestoneID := uuid.New()

	t.Run("newly achieved", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec(`INSERT INTO referral_achievements`).
			WithArgs(sqlmock.AnyArg(), subscriberID, milestoneID).
			WillReturnResult(sqlmock.NewResult(0, 1))

		inserted, err := store.InsertAchievement(context.Background(), subscriberID, milestoneID)
		require.NoError(t, err)
		assert.True(t, inserted)
	})

	t.Run("already recorded", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec(`INSERT INTO referral_achievements`).
			WithArgs(sqlmock.AnyArg(), subscriberID, milestoneID).
			WillReturnResult(sqlmock.NewResult(0, 0))

		inserted, err := store.InsertAchievement(context.Background(), subscriberID, milestoneID)
		require.NoError(t, err)
		assert.False(t, inserted)
	})
}

func TestMilestonesUpTo(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()
	m1 := &Milestone{ID: uuid.New(), Threshold: 1, Name: "Starter", CreatedAt: now, UpdatedAt: now}
	m3 := &Milestone{ID: uuid.New(), Threshold: 3, Name: "Bronze Badge", CreatedAt: now, UpdatedAt: now}

	mock.ExpectQuery(`FROM referral_milestones WHERE threshold <= \$1 ORDER BY threshold`).
		WithArgs(3).
		WillReturnRows(milestoneRows(m1, m3))

	got, err := store.MilestonesUpTo(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].Threshold)
	assert.Equal(t, 3, got[1].Threshold)
}

func TestGetMilestoneNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectQuery(`FROM referral_milestones WHERE id = \$1`).
		WithArgs(id).
		WillReturnRows(milestoneRows())

	m, err := store.GetMilestone(context.Background(), id)
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestDeleteMilestone(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectExec(`DELETE FROM referral_milestones WHERE id = \$1`).
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 0))

	deleted, err := store.DeleteMilestone(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestNextMilestoneAfterNone(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`WHERE threshold > \$1 ORDER BY threshold LIMIT 1`).
		WithArgs(25).
		WillReturnRows(milestoneRows())

	m, err := store.NextMilestoneAfter(context.Background(), 25)
	require.NoError(t, err)
	assert.Nil(t, m)
}

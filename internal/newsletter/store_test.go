package newsletter

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T) (*Store, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	return NewStore(db), mock, func() { db.Close() }
}

func TestActivateSubscriberOnlyOncePerPending(t *testing.T) {
	store, mock, cleanup := setupStore(t)
	defer cleanup()

	id := uuid.New()

	// First confirmation flips pending -> active.
	mock.ExpectExec(`UPDATE subscribers SET status`).
		WithArgs(SubscriberActive, "ABC23456", id, SubscriberPending).
		WillReturnResult(sqlmock.NewResult(0, 1))

	activated, err := store.ActivateSubscriber(context.Background(), id, "ABC23456")
	require.NoError(t, err)
	assert.True(t, activated)

	// A retry finds no pending row and reports not-activated.
	mock.ExpectExec(`UPDATE subscribers SET status`).
		WithArgs(SubscriberActive, "ABC23456", id, SubscriberPending).
		WillReturnResult(sqlmock.NewResult(0, 0))

	activated, err = store.ActivateSubscriber(context.Background(), id, "ABC23456")
	require.NoError(t, err)
	assert.False(t, activated)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddToListSkipsCounterOnDuplicate(t *testing.T) {
	store, mock, cleanup := setupStore(t)
	defer cleanup()

	listID, subID := uuid.New(), uuid.New()

	// Membership already exists: ON CONFLICT swallows the insert and the
	// counter must not move.
	mock.ExpectExec(`INSERT INTO list_memberships`).
		WithArgs(listID, subID).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.AddToList(context.Background(), listID, subID))

	// Fresh membership: insert succeeds and the counter is bumped.
	mock.ExpectExec(`INSERT INTO list_memberships`).
		WithArgs(listID, subID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE contact_lists SET subscriber_count`).
		WithArgs(listID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.AddToList(context.Background(), listID, subID))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSubscriberByConfirmTokenNotFound(t *testing.T) {
	store, mock, cleanup := setupStore(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT .+ FROM subscribers WHERE confirm_token`).
		WithArgs("nope").
		WillReturnError(sql.ErrNoRows)

	sub, err := store.GetSubscriberByConfirmToken(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, sub)
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(&pq.Error{Code: "23505"}))
	assert.False(t, IsUniqueViolation(&pq.Error{Code: "23503"}))
	assert.False(t, IsUniqueViolation(errors.New("plain error")))
	assert.False(t, IsUniqueViolation(nil))
}

package sequence

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwell-hq/inkwell/internal/mailer"
)

func newMockRunner(t *testing.T, sender mailer.Sender) (*Runner, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRunner(db, sender, mailer.NewTemplates("https://news.example.com"), time.Second), mock
}

// TestAdvanceWithoutConfiguredSender covers the log-only deployment: a
// runner built with no sender still advances a due enrollment instead of
// dereferencing a nil interface.
func TestAdvanceWithoutConfiguredSender(t *testing.T) {
	runner, mock := newMockRunner(t, nil)
	seqID := uuid.New()
	now := time.Now()

	step := &Step{ID: uuid.New(), SequenceID: seqID, Position: 1,
		Subject: "Welcome", HTMLContent: "<p>Hi {{ first_name }}</p>",
		CreatedAt: now, UpdatedAt: now}
	e := &Enrollment{ID: uuid.New(), SequenceID: seqID, SubscriberID: uuid.New(),
		CurrentStep: 0, Status: EnrollmentActive, NextRunAt: &now}

	mock.ExpectQuery(`FROM sequence_steps WHERE sequence_id = \$1 ORDER BY position`).
		WithArgs(seqID).
		WillReturnRows(stepRows(step))
	mock.ExpectQuery(`SELECT email, first_name, referral_code, status`).
		WithArgs(e.SubscriberID).
		WillReturnRows(sqlmock.NewRows([]string{"email", "first_name", "referral_code", "status"}).
			AddRow("ada@example.com", "Ada", "ABCDE234", "active"))
	mock.ExpectExec(`UPDATE sequence_enrollments SET current_step`).
		WithArgs(1, EnrollmentCompleted, nil, sqlmock.AnyArg(), e.ID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	runner.advance(context.Background(), e)

	assert.Equal(t, EnrollmentCompleted, e.Status)
	require.NotNil(t, e.CompletedAt)
	assert.Nil(t, e.NextRunAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestAdvanceCancelsUnsubscribedRecipient verifies a recipient who
// unsubscribed mid-sequence gets cancelled instead of emailed.
func TestAdvanceCancelsUnsubscribedRecipient(t *testing.T) {
	runner, mock := newMockRunner(t, nil)
	seqID := uuid.New()
	now := time.Now()

	step := &Step{ID: uuid.New(), SequenceID: seqID, Position: 1,
		Subject: "Welcome", HTMLContent: "<p>Hi</p>",
		CreatedAt: now, UpdatedAt: now}
	e := &Enrollment{ID: uuid.New(), SequenceID: seqID, SubscriberID: uuid.New(),
		CurrentStep: 0, Status: EnrollmentActive, NextRunAt: &now}

	mock.ExpectQuery(`FROM sequence_steps WHERE sequence_id = \$1 ORDER BY position`).
		WithArgs(seqID).
		WillReturnRows(stepRows(step))
	mock.ExpectQuery(`SELECT email, first_name, referral_code, status`).
		WithArgs(e.SubscriberID).
		WillReturnRows(sqlmock.NewRows([]string{"email", "first_name", "referral_code", "status"}).
			AddRow("ada@example.com", "Ada", "ABCDE234", "unsubscribed"))
	mock.ExpectExec(`UPDATE sequence_enrollments SET current_step`).
		WithArgs(0, EnrollmentCancelled, nil, nil, e.ID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	runner.advance(context.Background(), e)

	assert.Equal(t, EnrollmentCancelled, e.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

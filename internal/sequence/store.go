package sequence

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Store provides database operations for sequences, steps, and
// enrollments.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// CreateSequence inserts a sequence in draft status.
func (s *Store) CreateSequence(ctx context.Context, seq *Sequence) error {
	seq.ID = uuid.New()
	if seq.TriggerEvent == "" {
		seq.TriggerEvent = "subscriber_confirmed"
	}
	if seq.Status == "" {
		seq.Status = StatusDraft
	}
	seq.CreatedAt = time.Now()
	seq.UpdatedAt = seq.CreatedAt
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sequences (id, name, description, trigger_event, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		seq.ID, seq.Name, seq.Description, seq.TriggerEvent, seq.Status, seq.CreatedAt, seq.UpdatedAt)
	return err
}

// GetSequence retrieves a sequence with its steps in position order.
func (s *Store) GetSequence(ctx context.Context, id uuid.UUID) (*Sequence, error) {
	seq := &Sequence{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, trigger_event, status, created_at, updated_at
		FROM sequences WHERE id = $1`, id).Scan(
		&seq.ID, &seq.Name, &seq.Description, &seq.TriggerEvent, &seq.Status,
		&seq.CreatedAt, &seq.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	seq.Steps, err = s.StepsForSequence(ctx, id)
	return seq, err
}

// ListSequences retrieves all sequences, newest first, without steps.
func (s *Store) ListSequences(ctx context.Context) ([]*Sequence, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, trigger_event, status, created_at, updated_at
		FROM sequences ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSequences(rows)
}

// ActiveSequences retrieves sequences matching the given trigger event.
func (s *Store) ActiveSequences(ctx context.Context, triggerEvent string) ([]*Sequence, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, trigger_event, status, created_at, updated_at
		FROM sequences WHERE status = 'active' AND trigger_event = $1`, triggerEvent)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSequences(rows)
}

func collectSequences(rows *sql.Rows) ([]*Sequence, error) {
	var sequences []*Sequence
	for rows.Next() {
		seq := &Sequence{}
		if err := rows.Scan(&seq.ID, &seq.Name, &seq.Description, &seq.TriggerEvent,
			&seq.Status, &seq.CreatedAt, &seq.UpdatedAt); err != nil {
			return nil, err
		}
		sequences = append(sequences, seq)
	}
	return sequences, rows.Err()
}

// UpdateSequence updates sequence metadata and status.
func (s *Store) UpdateSequence(ctx context.Context, seq *Sequence) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sequences SET name = $1, description = $2, trigger_event = $3, status = $4,
		updated_at = NOW() WHERE id = $5`,
		seq.Name, seq.Description, seq.TriggerEvent, seq.Status, seq.ID)
	return err
}

// DeleteSequence removes a sequence and, via cascade, its steps and
// enrollments.
func (s *Store) DeleteSequence(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sequences WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// CreateStep inserts a step. The caller re-sorts and persists positions
// afterwards via ResequenceSteps.
func (s *Store) CreateStep(ctx context.Context, step *Step) error {
	step.ID = uuid.New()
	step.CreatedAt = time.Now()
	step.UpdatedAt = step.CreatedAt
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sequence_steps (id, sequence_id, position, subject, html_content,
		delay_days, delay_time, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		step.ID, step.SequenceID, step.Position, step.Subject, step.HTMLContent,
		step.DelayDays, step.DelayTime, step.CreatedAt, step.UpdatedAt)
	return err
}

// GetStep retrieves one step, nil when absent.
func (s *Store) GetStep(ctx context.Context, id uuid.UUID) (*Step, error) {
	st := &Step{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, sequence_id, position, subject, html_content, delay_days, delay_time,
		created_at, updated_at
		FROM sequence_steps WHERE id = $1`, id).
		Scan(&st.ID, &st.SequenceID, &st.Position, &st.Subject, &st.HTMLContent,
			&st.DelayDays, &st.DelayTime, &st.CreatedAt, &st.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return st, nil
}

// StepsForSequence retrieves steps in position order.
func (s *Store) StepsForSequence(ctx context.Context, sequenceID uuid.UUID) ([]*Step, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, sequence_id, position, subject, html_content, delay_days, delay_time,
		created_at, updated_at
		FROM sequence_steps WHERE sequence_id = $1 ORDER BY position`, sequenceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var steps []*Step
	for rows.Next() {
		st := &Step{}
		if err := rows.Scan(&st.ID, &st.SequenceID, &st.Position, &st.Subject, &st.HTMLContent,
			&st.DelayDays, &st.DelayTime, &st.CreatedAt, &st.UpdatedAt); err != nil {
			return nil, err
		}
		steps = append(steps, st)
	}
	return steps, rows.Err()
}

// UpdateStep updates a step's content and delays.
func (s *Store) UpdateStep(ctx context.Context, step *Step) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sequence_steps SET subject = $1, html_content = $2, delay_days = $3,
		delay_time = $4, updated_at = NOW() WHERE id = $5`,
		step.Subject, step.HTMLContent, step.DelayDays, step.DelayTime, step.ID)
	return err
}

// DeleteStep removes a step.
func (s *Store) DeleteStep(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sequence_steps WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ResequenceSteps loads a sequence's steps, sorts them into delay
// chronology, and persists the new positions. Called after every step
// mutation and after drag-and-drop reorders.
func (s *Store) ResequenceSteps(ctx context.Context, sequenceID uuid.UUID) ([]*Step, error) {
	steps, err := s.StepsForSequence(ctx, sequenceID)
	if err != nil {
		return nil, err
	}
	SortSteps(steps)
	for _, st := range steps {
		if _, err := s.db.ExecContext(ctx,
			`UPDATE sequence_steps SET position = $1, updated_at = NOW() WHERE id = $2`,
			st.Position, st.ID); err != nil {
			return nil, err
		}
	}
	return steps, nil
}

// Enroll creates an enrollment. The unique (sequence, subscriber) pair
// makes re-enrollment a no-op; the return value says whether a row was
// created.
func (s *Store) Enroll(ctx context.Context, sequenceID, subscriberID uuid.UUID, nextRunAt time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO sequence_enrollments (id, sequence_id, subscriber_id, current_step, status,
		next_run_at, created_at, updated_at)
		VALUES ($1, $2, $3, 0, 'active', $4, NOW(), NOW())
		ON CONFLICT (sequence_id, subscriber_id) DO NOTHING`,
		uuid.New(), sequenceID, subscriberID, nextRunAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// DueEnrollments retrieves active enrollments whose next run is due.
func (s *Store) DueEnrollments(ctx context.Context, now time.Time, limit int) ([]*Enrollment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, sequence_id, subscriber_id, current_step, status, next_run_at, completed_at,
		created_at, updated_at
		FROM sequence_enrollments
		WHERE status = 'active' AND next_run_at IS NOT NULL AND next_run_at <= $1
		ORDER BY next_run_at LIMIT $2`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var enrollments []*Enrollment
	for rows.Next() {
		e := &Enrollment{}
		if err := rows.Scan(&e.ID, &e.SequenceID, &e.SubscriberID, &e.CurrentStep, &e.Status,
			&e.NextRunAt, &e.CompletedAt, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		enrollments = append(enrollments, e)
	}
	return enrollments, rows.Err()
}

// UpdateEnrollment persists progress, status, and scheduling changes.
func (s *Store) UpdateEnrollment(ctx context.Context, e *Enrollment) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sequence_enrollments SET current_step = $1, status = $2, next_run_at = $3,
		completed_at = $4, updated_at = NOW() WHERE id = $5`,
		e.CurrentStep, e.Status, e.NextRunAt, e.CompletedAt, e.ID)
	return err
}

// CancelEnrollmentsForSubscriber stops all active enrollments, used when a
// subscriber unsubscribes.
func (s *Store) CancelEnrollmentsForSubscriber(ctx context.Context, subscriberID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sequence_enrollments SET status = 'cancelled', next_run_at = NULL, updated_at = NOW()
		WHERE subscriber_id = $1 AND status = 'active'`, subscriberID)
	return err
}

// recipient is the subscriber slice the runner needs for one send.
type recipient struct {
	Email        string
	FirstName    string
	ReferralCode string
	Status       string
}

func (s *Store) recipientForEnrollment(ctx context.Context, subscriberID uuid.UUID) (*recipient, error) {
	r := &recipient{}
	var code sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT email, first_name, referral_code, status
		FROM subscribers WHERE id = $1`, subscriberID).Scan(
		&r.Email, &r.FirstName, &code, &r.Status)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	r.ReferralCode = code.String
	return r, nil
}

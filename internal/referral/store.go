package referral

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Store provides database operations for milestones, achievements, and
// referral counters.
type Store struct {
	db *sql.DB
}

// NewStore creates a new referral store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// CodeExists reports whether a referral code is already assigned.
func (s *Store) CodeExists(ctx context.Context, code string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM subscribers WHERE referral_code = $1`, code).Scan(&n)
	return n > 0, err
}

// IncrementReferralCount atomically bumps the referrer's count and returns
// the new value. UPDATE ... RETURNING is the arbiter under concurrent
// confirmations: two racing increments each observe a distinct new count.
func (s *Store) IncrementReferralCount(ctx context.Context, referrerID uuid.UUID) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`UPDATE subscribers SET referral_count = referral_count + 1, updated_at = NOW()
		WHERE id = $1 RETURNING referral_count`, referrerID).Scan(&count)
	return count, err
}

// CreateMilestone inserts a milestone. A duplicate threshold surfaces as a
// unique-constraint violation for the handler to map to 409.
func (s *Store) CreateMilestone(ctx context.Context, m *Milestone) error {
	m.ID = uuid.New()
	m.CreatedAt = time.Now()
	m.UpdatedAt = m.CreatedAt
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO referral_milestones (id, threshold, name, description, reward_type, reward_value,
		created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		m.ID, m.Threshold, m.Name, m.Description, m.RewardType, m.RewardValue, m.CreatedAt, m.UpdatedAt)
	return err
}

// GetMilestone retrieves a milestone by ID.
func (s *Store) GetMilestone(ctx context.Context, id uuid.UUID) (*Milestone, error) {
	m := &Milestone{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, threshold, name, description, reward_type, reward_value, created_at, updated_at
		FROM referral_milestones WHERE id = $1`, id).Scan(
		&m.ID, &m.Threshold, &m.Name, &m.Description, &m.RewardType, &m.RewardValue,
		&m.CreatedAt, &m.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return m, err
}

// GetMilestones retrieves all milestones in threshold order.
func (s *Store) GetMilestones(ctx context.Context) ([]*Milestone, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, threshold, name, description, reward_type, reward_value, created_at, updated_at
		FROM referral_milestones ORDER BY threshold`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMilestones(rows)
}

// MilestonesUpTo retrieves milestones whose threshold is at or below count,
// ascending. This is the candidate set for the achievement scan.
func (s *Store) MilestonesUpTo(ctx context.Context, count int) ([]*Milestone, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, threshold, name, description, reward_type, reward_value, created_at, updated_at
		FROM referral_milestones WHERE threshold <= $1 ORDER BY threshold`, count)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMilestones(rows)
}

func collectMilestones(rows *sql.Rows) ([]*Milestone, error) {
	var milestones []*Milestone
	for rows.Next() {
		m := &Milestone{}
		if err := rows.Scan(&m.ID, &m.Threshold, &m.Name, &m.Description, &m.RewardType,
			&m.RewardValue, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		milestones = append(milestones, m)
	}
	return milestones, rows.Err()
}

// UpdateMilestone updates milestone fields.
func (s *Store) UpdateMilestone(ctx context.Context, m *Milestone) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE referral_milestones SET threshold = $1, name = $2, description = $3,
		reward_type = $4, reward_value = $5, updated_at = NOW() WHERE id = $6`,
		m.Threshold, m.Name, m.Description, m.RewardType, m.RewardValue, m.ID)
	return err
}

// DeleteMilestone removes a milestone and, via cascade, its achievements.
func (s *Store) DeleteMilestone(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM referral_milestones WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// InsertAchievement attempts to record a milestone crossing. The return
// value says whether a row was actually created: true means this call won
// the race and the milestone is newly achieved; false means it was already
// recorded by an earlier confirmation or a concurrent one.
func (s *Store) InsertAchievement(ctx context.Context, subscriberID, milestoneID uuid.UUID) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO referral_achievements (id, subscriber_id, milestone_id, achieved_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (subscriber_id, milestone_id) DO NOTHING`,
		uuid.New(), subscriberID, milestoneID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// AchievementsForSubscriber retrieves a subscriber's achieved milestones in
// threshold order, for the public dashboard.
func (s *Store) AchievementsForSubscriber(ctx context.Context, subscriberID uuid.UUID) ([]AchievedMilestone, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT m.threshold, m.name, m.reward_type, a.achieved_at
		FROM referral_achievements a
		JOIN referral_milestones m ON m.id = a.milestone_id
		WHERE a.subscriber_id = $1 ORDER BY m.threshold`, subscriberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var achieved []AchievedMilestone
	for rows.Next() {
		var am AchievedMilestone
		if err := rows.Scan(&am.Threshold, &am.Name, &am.RewardType, &am.AchievedAt); err != nil {
			return nil, err
		}
		am.Badge = BadgeFor(am.Name, am.RewardType)
		achieved = append(achieved, am)
	}
	return achieved, rows.Err()
}

// NextMilestoneAfter returns the closest milestone above count, or nil when
// the subscriber has crossed them all.
func (s *Store) NextMilestoneAfter(ctx context.Context, count int) (*Milestone, error) {
	m := &Milestone{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, threshold, name, description, reward_type, reward_value, created_at, updated_at
		FROM referral_milestones WHERE threshold > $1 ORDER BY threshold LIMIT 1`, count).Scan(
		&m.ID, &m.Threshold, &m.Name, &m.Description, &m.RewardType, &m.RewardValue,
		&m.CreatedAt, &m.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return m, err
}

// RecordNotificationFailure persists a failed (or skipped) milestone
// notification for the admin stats view.
func (s *Store) RecordNotificationFailure(ctx context.Context, f *NotificationFailure) error {
	f.ID = uuid.New()
	f.OccurredAt = time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO referral_notification_failures (id, subscriber_id, milestone_id, channel, reason, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		f.ID, f.SubscriberID, f.MilestoneID, f.Channel, f.Reason, f.OccurredAt)
	return err
}

// GetStats assembles the admin referral-stats payload.
func (s *Store) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(referral_count), 0), COUNT(*) FILTER (WHERE referral_count > 0)
		FROM subscribers WHERE status = 'active'`).Scan(&stats.TotalReferrals, &stats.ActiveReferrers)
	if err != nil {
		return nil, err
	}

	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM referral_achievements`).Scan(&stats.TotalAchievements); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, email, referral_count FROM subscribers
		WHERE referral_count > 0 AND status = 'active'
		ORDER BY referral_count DESC, email LIMIT 10`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var tr TopReferrer
		if err := rows.Scan(&tr.SubscriberID, &tr.Email, &tr.ReferralCount); err != nil {
			rows.Close()
			return nil, err
		}
		stats.TopReferrers = append(stats.TopReferrers, tr)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx,
		`SELECT a.subscriber_id, sub.email, m.name, m.threshold, a.achieved_at
		FROM referral_achievements a
		JOIN referral_milestones m ON m.id = a.milestone_id
		JOIN subscribers sub ON sub.id = a.subscriber_id
		ORDER BY a.achieved_at DESC LIMIT 20`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var ra RecentAchievement
		if err := rows.Scan(&ra.SubscriberID, &ra.Email, &ra.Milestone, &ra.Threshold, &ra.AchievedAt); err != nil {
			rows.Close()
			return nil, err
		}
		stats.RecentAchievements = append(stats.RecentAchievements, ra)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx,
		`SELECT id, subscriber_id, milestone_id, channel, reason, occurred_at
		FROM referral_notification_failures ORDER BY occurred_at DESC LIMIT 50`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var nf NotificationFailure
		if err := rows.Scan(&nf.ID, &nf.SubscriberID, &nf.MilestoneID, &nf.Channel, &nf.Reason, &nf.OccurredAt); err != nil {
			rows.Close()
			return nil, err
		}
		stats.NotificationFailures = append(stats.NotificationFailures, nf)
	}
	rows.Close()
	return stats, rows.Err()
}

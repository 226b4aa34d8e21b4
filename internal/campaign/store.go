package campaign

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Store provides database operations for campaigns, A/B tests, and RSS
// feeds.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const campaignColumns = `id, list_id, name, subject, from_name, from_email, html_content, status,
	sent_count, open_count, click_count, scheduled_at, sent_at, created_at, updated_at`

// CreateCampaign inserts a draft campaign.
func (s *Store) CreateCampaign(ctx context.Context, c *Campaign) error {
	c.ID = uuid.New()
	if c.Status == "" {
		c.Status = StatusDraft
	}
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO campaigns (id, list_id, name, subject, from_name, from_email, html_content,
		status, scheduled_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		c.ID, c.ListID, c.Name, c.Subject, c.FromName, c.FromEmail, c.HTMLContent,
		c.Status, c.ScheduledAt, c.CreatedAt, c.UpdatedAt)
	return err
}

func scanCampaign(row *sql.Row) (*Campaign, error) {
	c := &Campaign{}
	err := row.Scan(&c.ID, &c.ListID, &c.Name, &c.Subject, &c.FromName, &c.FromEmail,
		&c.HTMLContent, &c.Status, &c.SentCount, &c.OpenCount, &c.ClickCount,
		&c.ScheduledAt, &c.SentAt, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

// GetCampaign retrieves a campaign by ID.
func (s *Store) GetCampaign(ctx context.Context, id uuid.UUID) (*Campaign, error) {
	return scanCampaign(s.db.QueryRowContext(ctx,
		`SELECT `+campaignColumns+` FROM campaigns WHERE id = $1`, id))
}

// ListCampaigns retrieves campaigns newest first, optionally filtered by
// status.
func (s *Store) ListCampaigns(ctx context.Context, status string) ([]*Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns`
	args := []interface{}{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var campaigns []*Campaign
	for rows.Next() {
		c := &Campaign{}
		if err := rows.Scan(&c.ID, &c.ListID, &c.Name, &c.Subject, &c.FromName, &c.FromEmail,
			&c.HTMLContent, &c.Status, &c.SentCount, &c.OpenCount, &c.ClickCount,
			&c.ScheduledAt, &c.SentAt, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}

// UpdateCampaign updates editable campaign fields.
func (s *Store) UpdateCampaign(ctx context.Context, c *Campaign) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE campaigns SET list_id = $1, name = $2, subject = $3, from_name = $4,
		from_email = $5, html_content = $6, status = $7, scheduled_at = $8, updated_at = NOW()
		WHERE id = $9`,
		c.ListID, c.Name, c.Subject, c.FromName, c.FromEmail, c.HTMLContent,
		c.Status, c.ScheduledAt, c.ID)
	return err
}

// DeleteCampaign removes a draft campaign. Sent campaigns are kept for
// their stats; the handler enforces that.
func (s *Store) DeleteCampaign(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM campaigns WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// MarkSent stamps a campaign sent with its final recipient count.
func (s *Store) MarkSent(ctx context.Context, id uuid.UUID, sentCount int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE campaigns SET status = 'sent', sent_count = $1, sent_at = NOW(), updated_at = NOW()
		WHERE id = $2`, sentCount, id)
	return err
}

// CreateABTest inserts a test with its two variants. The unique campaign
// constraint surfaces a second test as a conflict for the handler.
func (s *Store) CreateABTest(ctx context.Context, test *ABTest) error {
	test.ID = uuid.New()
	test.Status = TestRunning
	test.CreatedAt = time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ab_tests (id, campaign_id, test_ratio, status, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		test.ID, test.CampaignID, test.TestRatio, test.Status, test.CreatedAt)
	if err != nil {
		return err
	}
	for _, v := range test.Variants {
		v.ID = uuid.New()
		v.TestID = test.ID
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO ab_variants (id, test_id, label, subject) VALUES ($1, $2, $3, $4)`,
			v.ID, v.TestID, v.Label, v.Subject); err != nil {
			return err
		}
	}
	return nil
}

// GetABTestByCampaign retrieves a campaign's test with its variants in
// label order.
func (s *Store) GetABTestByCampaign(ctx context.Context, campaignID uuid.UUID) (*ABTest, error) {
	test := &ABTest{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, campaign_id, test_ratio, status, winner, decided_at, created_at
		FROM ab_tests WHERE campaign_id = $1`, campaignID).Scan(
		&test.ID, &test.CampaignID, &test.TestRatio, &test.Status, &test.Winner,
		&test.DecidedAt, &test.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	test.Variants, err = s.variantsForTest(ctx, test.ID)
	return test, err
}

func (s *Store) variantsForTest(ctx context.Context, testID uuid.UUID) ([]*Variant, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, test_id, label, subject, sent_count, open_count, click_count
		FROM ab_variants WHERE test_id = $1 ORDER BY label`, testID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var variants []*Variant
	for rows.Next() {
		v := &Variant{}
		if err := rows.Scan(&v.ID, &v.TestID, &v.Label, &v.Subject, &v.SentCount,
			&v.OpenCount, &v.ClickCount); err != nil {
			return nil, err
		}
		variants = append(variants, v)
	}
	return variants, rows.Err()
}

// RunningTests retrieves tests awaiting a winner decision.
func (s *Store) RunningTests(ctx context.Context) ([]*ABTest, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, campaign_id, test_ratio, status, winner, decided_at, created_at
		FROM ab_tests WHERE status = 'running'`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tests []*ABTest
	for rows.Next() {
		test := &ABTest{}
		if err := rows.Scan(&test.ID, &test.CampaignID, &test.TestRatio, &test.Status,
			&test.Winner, &test.DecidedAt, &test.CreatedAt); err != nil {
			return nil, err
		}
		tests = append(tests, test)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, test := range tests {
		variants, err := s.variantsForTest(ctx, test.ID)
		if err != nil {
			return nil, err
		}
		test.Variants = variants
	}
	return tests, nil
}

// DecideWinner stamps a test decided.
func (s *Store) DecideWinner(ctx context.Context, testID uuid.UUID, winner string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE ab_tests SET status = 'decided', winner = $1, decided_at = NOW() WHERE id = $2`,
		winner, testID)
	return err
}

// BumpVariantCounter increments one of a variant's engagement counters.
// counter must be one of sent_count, open_count, click_count.
func (s *Store) BumpVariantCounter(ctx context.Context, variantID uuid.UUID, counter string) error {
	switch counter {
	case "sent_count", "open_count", "click_count":
	default:
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE ab_variants SET `+counter+` = `+counter+` + 1 WHERE id = $1`, variantID)
	return err
}

// CreateRSSFeed inserts a watched feed.
func (s *Store) CreateRSSFeed(ctx context.Context, f *RSSFeed) error {
	f.ID = uuid.New()
	if f.PollInterval <= 0 {
		f.PollInterval = 60
	}
	if f.Status == "" {
		f.Status = "active"
	}
	f.CreatedAt = time.Now()
	f.UpdatedAt = f.CreatedAt
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO rss_feeds (id, list_id, name, feed_url, poll_interval_minutes, status,
		created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		f.ID, f.ListID, f.Name, f.FeedURL, f.PollInterval, f.Status, f.CreatedAt, f.UpdatedAt)
	return err
}

// ListRSSFeeds retrieves all feeds.
func (s *Store) ListRSSFeeds(ctx context.Context) ([]*RSSFeed, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, list_id, name, feed_url, last_item_guid, last_polled_at,
		poll_interval_minutes, status, created_at, updated_at
		FROM rss_feeds ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectFeeds(rows)
}

// DueRSSFeeds retrieves active feeds whose poll interval has elapsed.
func (s *Store) DueRSSFeeds(ctx context.Context, now time.Time) ([]*RSSFeed, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, list_id, name, feed_url, last_item_guid, last_polled_at,
		poll_interval_minutes, status, created_at, updated_at
		FROM rss_feeds
		WHERE status = 'active'
		AND (last_polled_at IS NULL OR last_polled_at + poll_interval_minutes * INTERVAL '1 minute' <= $1)`,
		now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectFeeds(rows)
}

func collectFeeds(rows *sql.Rows) ([]*RSSFeed, error) {
	var feeds []*RSSFeed
	for rows.Next() {
		f := &RSSFeed{}
		if err := rows.Scan(&f.ID, &f.ListID, &f.Name, &f.FeedURL, &f.LastItemGUID,
			&f.LastPolledAt, &f.PollInterval, &f.Status, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, err
		}
		feeds = append(feeds, f)
	}
	return feeds, rows.Err()
}

// MarkFeedPolled records the newest seen item after a poll.
func (s *Store) MarkFeedPolled(ctx context.Context, feedID uuid.UUID, lastItemGUID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE rss_feeds SET last_item_guid = $1, last_polled_at = NOW(), updated_at = NOW()
		WHERE id = $2`, lastItemGUID, feedID)
	return err
}

// DeleteRSSFeed removes a feed.
func (s *Store) DeleteRSSFeed(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM rss_feeds WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

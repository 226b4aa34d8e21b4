// Package campaign implements one-off email campaigns, subject-line A/B
// testing, and RSS-driven campaign drafts.
package campaign

import (
	"time"

	"github.com/google/uuid"
)

// Campaign statuses.
const (
	StatusDraft     = "draft"
	StatusScheduled = "scheduled"
	StatusSending   = "sending"
	StatusSent      = "sent"
)

// A/B test statuses.
const (
	TestRunning = "running"
	TestDecided = "decided"
)

// Campaign is a one-off send to a contact list.
type Campaign struct {
	ID          uuid.UUID  `json:"id"`
	ListID      *uuid.UUID `json:"list_id,omitempty"`
	Name        string     `json:"name"`
	Subject     string     `json:"subject"`
	FromName    string     `json:"from_name,omitempty"`
	FromEmail   string     `json:"from_email,omitempty"`
	HTMLContent string     `json:"html_content,omitempty"`
	Status      string     `json:"status"`
	SentCount   int        `json:"sent_count"`
	OpenCount   int        `json:"open_count"`
	ClickCount  int        `json:"click_count"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
	SentAt      *time.Time `json:"sent_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// ABTest holds a campaign's subject test. A campaign has at most one.
type ABTest struct {
	ID         uuid.UUID  `json:"id"`
	CampaignID uuid.UUID  `json:"campaign_id"`
	TestRatio  float64    `json:"test_ratio"`
	Status     string     `json:"status"`
	Winner     string     `json:"winner,omitempty"`
	DecidedAt  *time.Time `json:"decided_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	Variants   []*Variant `json:"variants,omitempty"`
}

// Variant is one arm of an A/B test, labeled "A" or "B".
type Variant struct {
	ID         uuid.UUID `json:"id"`
	TestID     uuid.UUID `json:"test_id"`
	Label      string    `json:"label"`
	Subject    string    `json:"subject"`
	SentCount  int       `json:"sent_count"`
	OpenCount  int       `json:"open_count"`
	ClickCount int       `json:"click_count"`
}

// RSSFeed is a watched feed that produces campaign drafts from new items.
type RSSFeed struct {
	ID           uuid.UUID  `json:"id"`
	ListID       *uuid.UUID `json:"list_id,omitempty"`
	Name         string     `json:"name"`
	FeedURL      string     `json:"feed_url"`
	LastItemGUID string     `json:"last_item_guid,omitempty"`
	LastPolledAt *time.Time `json:"last_polled_at,omitempty"`
	PollInterval int        `json:"poll_interval_minutes"`
	Status       string     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

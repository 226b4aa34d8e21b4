// Package referral implements the referral milestone engine: threshold
// detection on confirmed referrals, exactly-once achievement recording, and
// dual-channel notification dispatch.
package referral

import (
	"time"

	"github.com/google/uuid"
)

// Reward type constants.
const (
	RewardBadge    = "badge"
	RewardDiscount = "discount"
	RewardContent  = "content"
	RewardCustom   = "custom"
)

// ValidRewardType reports whether t is an accepted reward type. Empty is
// allowed: a milestone does not have to carry a reward.
func ValidRewardType(t string) bool {
	switch t {
	case "", RewardBadge, RewardDiscount, RewardContent, RewardCustom:
		return true
	}
	return false
}

// Milestone is an admin-configured referral-count threshold. Thresholds are
// globally unique positive integers.
type Milestone struct {
	ID          uuid.UUID `json:"id"`
	Threshold   int       `json:"threshold"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	RewardType  string    `json:"reward_type,omitempty"`
	RewardValue string    `json:"reward_value,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Achievement records a subscriber crossing a milestone. The
// (subscriber_id, milestone_id) pair is unique: a milestone is achieved at
// most once no matter how many times confirmations race or retry.
type Achievement struct {
	ID           uuid.UUID `json:"id"`
	SubscriberID uuid.UUID `json:"subscriber_id"`
	MilestoneID  uuid.UUID `json:"milestone_id"`
	AchievedAt   time.Time `json:"achieved_at"`
}

// NotificationFailure records a milestone notification that could not be
// delivered, so referral-stats can surface it instead of it vanishing into
// the logs.
type NotificationFailure struct {
	ID           uuid.UUID `json:"id"`
	SubscriberID uuid.UUID `json:"subscriber_id"`
	MilestoneID  uuid.UUID `json:"milestone_id"`
	Channel      string    `json:"channel"`
	Reason       string    `json:"reason"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// Notification channels.
const (
	ChannelAdmin      = "admin"
	ChannelSubscriber = "subscriber"
)

// Dashboard is the public referral dashboard payload for one subscriber.
type Dashboard struct {
	ReferralCode  string               `json:"referral_code"`
	ReferralCount int                  `json:"referral_count"`
	Achieved      []AchievedMilestone  `json:"achieved"`
	Next          *NextMilestone       `json:"next,omitempty"`
}

// AchievedMilestone pairs a milestone with when it was crossed.
type AchievedMilestone struct {
	Threshold  int       `json:"threshold"`
	Name       string    `json:"name"`
	RewardType string    `json:"reward_type,omitempty"`
	Badge      string    `json:"badge"`
	AchievedAt time.Time `json:"achieved_at"`
}

// NextMilestone describes the closest unachieved threshold.
type NextMilestone struct {
	Threshold int    `json:"threshold"`
	Name      string `json:"name"`
	Remaining int    `json:"remaining"`
}

// Stats is the admin referral-stats payload.
type Stats struct {
	TotalReferrals       int                   `json:"total_referrals"`
	ActiveReferrers      int                   `json:"active_referrers"`
	TotalAchievements    int                   `json:"total_achievements"`
	TopReferrers         []TopReferrer         `json:"top_referrers"`
	RecentAchievements   []RecentAchievement   `json:"recent_achievements"`
	NotificationFailures []NotificationFailure `json:"notification_failures"`
}

// TopReferrer is one row of the referral leaderboard.
type TopReferrer struct {
	SubscriberID  uuid.UUID `json:"subscriber_id"`
	Email         string    `json:"email"`
	ReferralCount int       `json:"referral_count"`
}

// RecentAchievement is one row of the recent-achievements feed.
type RecentAchievement struct {
	SubscriberID uuid.UUID `json:"subscriber_id"`
	Email        string    `json:"email"`
	Milestone    string    `json:"milestone"`
	Threshold    int       `json:"threshold"`
	AchievedAt   time.Time `json:"achieved_at"`
}

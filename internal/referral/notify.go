package referral

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/inkwell-hq/inkwell/internal/mailer"
	"github.com/inkwell-hq/inkwell/internal/pkg/logger"
)

// badgeTable maps normalized milestone-name keywords to badge emoji. This
// is presentation only; missing keywords fall back to the generic trophy.
var badgeTable = []struct {
	keyword string
	emoji   string
}{
	{"platinum", "💎"},
	{"gold", "🥇"},
	{"silver", "🥈"},
	{"bronze", "🥉"},
	{"starter", "⭐"},
}

// BadgeFor picks a badge emoji from milestone-name keywords, falling back
// to a trophy. The reward type currently does not influence the badge but
// is accepted for future copy decisions.
func BadgeFor(name, rewardType string) string {
	lower := strings.ToLower(name)
	for _, entry := range badgeTable {
		if strings.Contains(lower, entry.keyword) {
			return entry.emoji
		}
	}
	return "🏆"
}

// RewardCopy turns a reward type/value pair into human-readable email copy.
func RewardCopy(rewardType, rewardValue string) string {
	switch rewardType {
	case RewardBadge:
		return "a new badge for your collection"
	case RewardDiscount:
		if rewardValue != "" {
			return "a discount: " + rewardValue
		}
		return "a discount on your subscription"
	case RewardContent:
		return "exclusive subscriber-only content"
	case RewardCustom:
		if rewardValue != "" {
			return rewardValue
		}
		return "a special reward"
	}
	return ""
}

// Notifier dispatches milestone notifications on two independent channels:
// an admin alert and a subscriber congratulation. A failure on either
// channel is recorded and never propagates; achievements stand regardless
// of notification outcomes.
type Notifier struct {
	store      *Store
	sender     mailer.Sender
	templates  *mailer.Templates
	adminEmail string
}

// NewNotifier creates a milestone notifier. An empty adminEmail disables
// the admin channel (each skip is recorded with a reason).
func NewNotifier(store *Store, sender mailer.Sender, templates *mailer.Templates, adminEmail string) *Notifier {
	return &Notifier{store: store, sender: sender, templates: templates, adminEmail: adminEmail}
}

// Referrer is the slice of subscriber data the notifier needs.
type Referrer struct {
	ID            uuid.UUID
	Email         string
	FirstName     string
	ReferralCount int
}

// Dispatch sends both notifications for every newly achieved milestone, in
// the order given (threshold ascending). Nothing here returns an error:
// the confirmation contract is that notification failures are recorded,
// logged, and swallowed.
func (n *Notifier) Dispatch(ctx context.Context, referrer Referrer, milestones []*Milestone) {
	for _, m := range milestones {
		n.notifyAdmin(ctx, referrer, m)
		n.notifySubscriber(ctx, referrer, m)
	}
}

func (n *Notifier) notifyAdmin(ctx context.Context, referrer Referrer, m *Milestone) {
	if n.adminEmail == "" {
		logger.Warn("admin milestone alert skipped",
			"milestone", m.Name, "reason", "no admin address configured")
		n.recordFailure(ctx, referrer, m, ChannelAdmin, "no admin address configured")
		return
	}

	subject, html, err := n.templates.MilestoneAdminAlert(mailer.MilestoneEmail{
		SubscriberEmail: referrer.Email,
		MilestoneName:   m.Name,
		Threshold:       m.Threshold,
		Badge:           BadgeFor(m.Name, m.RewardType),
		RewardCopy:      RewardCopy(m.RewardType, m.RewardValue),
		ReferralCount:   referrer.ReferralCount,
	})
	if err == nil {
		err = n.sender.Send(ctx, n.adminEmail, subject, html)
	}
	if err != nil {
		logger.Error("admin milestone alert failed",
			"milestone", m.Name, "error", err)
		n.recordFailure(ctx, referrer, m, ChannelAdmin, err.Error())
	}
}

func (n *Notifier) notifySubscriber(ctx context.Context, referrer Referrer, m *Milestone) {
	subject, html, err := n.templates.MilestoneCongrats(mailer.MilestoneEmail{
		FirstName:     referrer.FirstName,
		MilestoneName: m.Name,
		Threshold:     m.Threshold,
		Badge:         BadgeFor(m.Name, m.RewardType),
		RewardCopy:    RewardCopy(m.RewardType, m.RewardValue),
		ReferralCount: referrer.ReferralCount,
	})
	if err == nil {
		err = n.sender.Send(ctx, referrer.Email, subject, html)
	}
	if err != nil {
		logger.Error("subscriber milestone email failed",
			"subscriber", referrer.Email, "milestone", m.Name, "error", err)
		n.recordFailure(ctx, referrer, m, ChannelSubscriber, err.Error())
	}
}

func (n *Notifier) recordFailure(ctx context.Context, referrer Referrer, m *Milestone, channel, reason string) {
	failure := &NotificationFailure{
		SubscriberID: referrer.ID,
		MilestoneID:  m.ID,
		Channel:      channel,
		Reason:       reason,
	}
	if err := n.store.RecordNotificationFailure(ctx, failure); err != nil {
		logger.Error("recording notification failure failed", "error", err)
	}
}

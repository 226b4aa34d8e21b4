package referral

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/inkwell-hq/inkwell/internal/pkg/logger"
)

// Engine runs the milestone check that follows every confirmed referral.
type Engine struct {
	store    *Store
	notifier *Notifier
}

func NewEngine(store *Store, notifier *Notifier) *Engine {
	return &Engine{store: store, notifier: notifier}
}

// OnReferralConfirmed is called once per newly confirmed referral. It
// atomically increments the referrer's count, records any newly crossed
// milestones, and dispatches notifications for them in threshold order.
//
// Achievement recording relies on the unique (subscriber, milestone) pair:
// a retried or concurrent confirmation finds the row already present and
// produces no duplicate notification. Notification failures are recorded
// by the notifier and never surface here.
func (e *Engine) OnReferralConfirmed(ctx context.Context, referrer Referrer) (int, []*Milestone, error) {
	newCount, err := e.store.IncrementReferralCount(ctx, referrer.ID)
	if err != nil {
		return 0, nil, fmt.Errorf("incrementing referral count: %w", err)
	}
	referrer.ReferralCount = newCount

	newly, err := e.CheckMilestones(ctx, referrer.ID, newCount)
	if err != nil {
		return newCount, nil, err
	}

	if len(newly) > 0 {
		logger.Info("referral milestones achieved",
			"subscriber", referrer.Email,
			"count", newCount,
			"milestones", len(newly))
		e.notifier.Dispatch(ctx, referrer, newly)
	}
	return newCount, newly, nil
}

// CheckMilestones records achievements for every milestone at or below
// count that the subscriber has not already achieved, and returns the
// newly recorded ones sorted by threshold ascending.
func (e *Engine) CheckMilestones(ctx context.Context, subscriberID uuid.UUID, count int) ([]*Milestone, error) {
	eligible, err := e.store.MilestonesUpTo(ctx, count)
	if err != nil {
		return nil, fmt.Errorf("loading eligible milestones: %w", err)
	}

	var newly []*Milestone
	for _, m := range eligible {
		inserted, err := e.store.InsertAchievement(ctx, subscriberID, m.ID)
		if err != nil {
			return newly, fmt.Errorf("recording achievement for threshold %d: %w", m.Threshold, err)
		}
		if inserted {
			newly = append(newly, m)
		}
	}
	return newly, nil
}

// BuildDashboard assembles the public referral dashboard for a subscriber.
func (e *Engine) BuildDashboard(ctx context.Context, subscriberID uuid.UUID, referralCode string, referralCount int) (*Dashboard, error) {
	achieved, err := e.store.AchievementsForSubscriber(ctx, subscriberID)
	if err != nil {
		return nil, err
	}
	nextMilestone, err := e.store.NextMilestoneAfter(ctx, referralCount)
	if err != nil {
		return nil, err
	}
	var next *NextMilestone
	if nextMilestone != nil {
		next = &NextMilestone{
			Threshold: nextMilestone.Threshold,
			Name:      nextMilestone.Name,
			Remaining: nextMilestone.Threshold - referralCount,
		}
	}
	return &Dashboard{
		ReferralCode:  referralCode,
		ReferralCount: referralCount,
		Achieved:      achieved,
		Next:          next,
	}, nil
}

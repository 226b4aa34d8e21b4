package campaign

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/inkwell-hq/inkwell/internal/pkg/distlock"
	"github.com/inkwell-hq/inkwell/internal/pkg/logger"
)

// Evaluator periodically scores running A/B tests and declares winners
// once the decision window has elapsed.
type Evaluator struct {
	store       *Store
	interval    time.Duration
	decideAfter time.Duration
	lock        distlock.DistLock
	ctx         context.Context
	cancel      context.CancelFunc

	// mu guards the tick status read by the health endpoint.
	mu        sync.Mutex
	lastRunAt time.Time
	healthy   bool
}

func NewEvaluator(db *sql.DB, interval, decideAfter time.Duration) *Evaluator {
	if interval <= 0 {
		interval = time.Minute
	}
	if decideAfter <= 0 {
		decideAfter = 4 * time.Hour
	}
	return &Evaluator{
		store:       NewStore(db),
		interval:    interval,
		decideAfter: decideAfter,
		lock:        distlock.NewPGAdvisoryLock(db, "ab-evaluator"),
		healthy:     true,
	}
}

func (e *Evaluator) Start() {
	e.ctx, e.cancel = context.WithCancel(context.Background())
	go func() {
		logger.Info("ab evaluator started",
			"interval", e.interval.String(), "decide_after", e.decideAfter.String())
		ticker := time.NewTicker(e.interval)
		defer ticker.Stop()
		for {
			select {
			case <-e.ctx.Done():
				logger.Info("ab evaluator stopped")
				return
			case <-ticker.C:
				e.evaluatePending()
			}
		}
	}()
}

func (e *Evaluator) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
}

func (e *Evaluator) IsHealthy() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.healthy
}

func (e *Evaluator) LastRunAt() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastRunAt
}

func (e *Evaluator) setHealthy(ok bool) {
	e.mu.Lock()
	e.healthy = ok
	e.mu.Unlock()
}

func (e *Evaluator) evaluatePending() {
	e.mu.Lock()
	e.lastRunAt = time.Now()
	e.mu.Unlock()
	ctx := e.ctx

	acquired, err := e.lock.Acquire(ctx)
	if err != nil {
		logger.Warn("ab evaluator lock check failed, skipping tick", "error", err)
		return
	}
	if !acquired {
		return
	}
	defer e.lock.Release(ctx)

	tests, err := e.store.RunningTests(ctx)
	if err != nil {
		logger.Error("listing running ab tests failed", "error", err)
		e.setHealthy(false)
		return
	}
	e.setHealthy(true)

	for _, test := range tests {
		if ctx.Err() != nil {
			return
		}
		if time.Since(test.CreatedAt) < e.decideAfter {
			continue
		}
		e.decide(ctx, test)
	}
}

// decide scores both arms and promotes the winner's subject onto the
// campaign so the remainder of the list gets the winning line.
func (e *Evaluator) decide(ctx context.Context, test *ABTest) {
	a, b := variantByLabel(test.Variants, "A"), variantByLabel(test.Variants, "B")
	if a == nil || b == nil {
		logger.Warn("ab test missing a variant", "test", test.ID)
		return
	}

	winner := DetermineWinner(a, b)
	if err := e.store.DecideWinner(ctx, test.ID, winner); err != nil {
		logger.Error("deciding ab winner failed", "test", test.ID, "error", err)
		return
	}

	winning := a
	if winner == "B" {
		winning = b
	}
	if _, err := e.store.db.ExecContext(ctx,
		`UPDATE campaigns SET subject = $1, updated_at = NOW() WHERE id = $2`,
		winning.Subject, test.CampaignID); err != nil {
		logger.Error("promoting winning subject failed", "campaign", test.CampaignID, "error", err)
		return
	}

	logger.Info("ab winner decided",
		"campaign", test.CampaignID, "winner", winner,
		"score_a", Score(a), "score_b", Score(b))
}

func variantByLabel(variants []*Variant, label string) *Variant {
	for _, v := range variants {
		if v.Label == label {
			return v
		}
	}
	return nil
}

package sequence

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/inkwell-hq/inkwell/internal/mailer"
	"github.com/inkwell-hq/inkwell/internal/pkg/distlock"
	"github.com/inkwell-hq/inkwell/internal/pkg/logger"
)

// Runner advances due enrollments on a fixed tick. A distributed lock
// keeps ticks single-flight when the server and worker binaries overlap.
type Runner struct {
	store     *Store
	sender    mailer.Sender
	templates *mailer.Templates
	interval  time.Duration
	batchSize int
	lock      distlock.DistLock
	ctx       context.Context
	cancel    context.CancelFunc

	// mu guards the tick status read by the health endpoint.
	mu        sync.Mutex
	lastRunAt time.Time
	healthy   bool
}

func NewRunner(db *sql.DB, sender mailer.Sender, templates *mailer.Templates, interval time.Duration) *Runner {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if sender == nil {
		sender = mailer.LogSender{}
	}
	return &Runner{
		store:     NewStore(db),
		sender:    sender,
		templates: templates,
		interval:  interval,
		batchSize: 100,
		lock:      distlock.NewPGAdvisoryLock(db, "sequence-runner"),
		healthy:   true,
	}
}

// SetRedisClient switches tick locking from advisory locks to Redis.
func (r *Runner) SetRedisClient(client *redis.Client) {
	r.lock = distlock.NewRedisLock(client, "sequence-runner", 2*r.interval)
}

func (r *Runner) Start() {
	r.ctx, r.cancel = context.WithCancel(context.Background())
	go func() {
		logger.Info("sequence runner started", "interval", r.interval.String())
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-r.ctx.Done():
				logger.Info("sequence runner stopped")
				return
			case <-ticker.C:
				r.processDue()
			}
		}
	}()
}

func (r *Runner) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
}

func (r *Runner) IsHealthy() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.healthy
}

func (r *Runner) LastRunAt() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastRunAt
}

func (r *Runner) setHealthy(ok bool) {
	r.mu.Lock()
	r.healthy = ok
	r.mu.Unlock()
}

// EnrollOnConfirmation enrolls a confirmed subscriber into every active
// sequence triggered by confirmation. Failures are logged and swallowed;
// enrollment must never abort a confirmation.
func (r *Runner) EnrollOnConfirmation(ctx context.Context, subscriberID uuid.UUID) {
	sequences, err := r.store.ActiveSequences(ctx, "subscriber_confirmed")
	if err != nil {
		logger.Error("loading active sequences failed", "error", err)
		return
	}

	now := time.Now()
	for _, seq := range sequences {
		steps, err := r.store.StepsForSequence(ctx, seq.ID)
		if err != nil {
			logger.Error("loading sequence steps failed", "sequence", seq.Name, "error", err)
			continue
		}
		if len(steps) == 0 {
			continue
		}

		firstRun := RunAt(now, steps[0])
		if firstRun.Before(now) {
			firstRun = now
		}
		enrolled, err := r.store.Enroll(ctx, seq.ID, subscriberID, firstRun)
		if err != nil {
			logger.Error("sequence enrollment failed", "sequence", seq.Name, "error", err)
			continue
		}
		if enrolled {
			logger.Info("subscriber enrolled", "sequence", seq.Name, "first_run", firstRun)
		}
	}
}

func (r *Runner) processDue() {
	r.mu.Lock()
	r.lastRunAt = time.Now()
	r.mu.Unlock()
	ctx := r.ctx

	acquired, err := r.lock.Acquire(ctx)
	if err != nil {
		logger.Warn("sequence runner lock check failed, skipping tick", "error", err)
		return
	}
	if !acquired {
		return
	}
	defer r.lock.Release(ctx)

	due, err := r.store.DueEnrollments(ctx, time.Now(), r.batchSize)
	if err != nil {
		logger.Error("listing due enrollments failed", "error", err)
		r.setHealthy(false)
		return
	}
	r.setHealthy(true)

	for _, e := range due {
		if ctx.Err() != nil {
			return
		}
		r.advance(ctx, e)
	}
}

// advance sends the current step and schedules the next one. Unsubscribed
// recipients get their enrollment cancelled instead of a send.
func (r *Runner) advance(ctx context.Context, e *Enrollment) {
	steps, err := r.store.StepsForSequence(ctx, e.SequenceID)
	if err != nil {
		logger.Error("loading steps failed", "enrollment", e.ID, "error", err)
		return
	}

	if e.CurrentStep >= len(steps) {
		r.complete(ctx, e)
		return
	}

	rec, err := r.store.recipientForEnrollment(ctx, e.SubscriberID)
	if err != nil {
		logger.Error("loading recipient failed", "enrollment", e.ID, "error", err)
		return
	}
	if rec == nil || rec.Status != "active" {
		e.Status = EnrollmentCancelled
		e.NextRunAt = nil
		if err := r.store.UpdateEnrollment(ctx, e); err != nil {
			logger.Error("cancelling enrollment failed", "enrollment", e.ID, "error", err)
		}
		return
	}

	step := steps[e.CurrentStep]
	bindings := r.templates.SubscriberBindings(rec.Email, rec.FirstName, rec.ReferralCode)

	subject, err := r.templates.Render(step.Subject, bindings)
	if err != nil {
		logger.Error("rendering step subject failed", "step", step.ID, "error", err)
		subject = step.Subject
	}
	html, err := r.templates.Render(step.HTMLContent, bindings)
	if err != nil {
		logger.Error("rendering step body failed", "step", step.ID, "error", err)
		html = step.HTMLContent
	}

	if err := r.sender.Send(ctx, rec.Email, subject, html); err != nil {
		// Leave next_run_at untouched so the next tick retries.
		logger.Error("sequence send failed", "subscriber", rec.Email, "step", step.ID, "error", err)
		return
	}

	e.CurrentStep++
	if e.CurrentStep >= len(steps) {
		r.complete(ctx, e)
		return
	}

	next := RunAt(time.Now(), nextStepAfter(steps[e.CurrentStep], step))
	e.NextRunAt = &next
	if err := r.store.UpdateEnrollment(ctx, e); err != nil {
		logger.Error("advancing enrollment failed", "enrollment", e.ID, "error", err)
	}
}

// nextStepAfter rebases the next step's delay relative to the step that
// just sent, so a day-1 then day-3 pair waits two days between sends even
// when the day-1 send slipped.
func nextStepAfter(next, prev *Step) *Step {
	rebased := *next
	rebased.DelayDays = next.DelayDays - prev.DelayDays
	if rebased.DelayDays < 0 {
		rebased.DelayDays = 0
	}
	return &rebased
}

func (r *Runner) complete(ctx context.Context, e *Enrollment) {
	now := time.Now()
	e.Status = EnrollmentCompleted
	e.CompletedAt = &now
	e.NextRunAt = nil
	if err := r.store.UpdateEnrollment(ctx, e); err != nil {
		logger.Error("completing enrollment failed", "enrollment", e.ID, "error", err)
	}
}

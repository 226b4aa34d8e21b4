// Package sequence implements drip sequences: timed email series that
// subscribers are enrolled into on confirmation and advanced through by a
// background runner.
package sequence

import (
	"time"

	"github.com/google/uuid"
)

// Sequence statuses.
const (
	StatusDraft    = "draft"
	StatusActive   = "active"
	StatusArchived = "archived"
)

// Enrollment statuses.
const (
	EnrollmentActive    = "active"
	EnrollmentCompleted = "completed"
	EnrollmentCancelled = "cancelled"
)

// DefaultSendTime is the clock time assumed for steps that do not set one.
const DefaultSendTime = "09:00"

// Sequence is a drip email series.
type Sequence struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	TriggerEvent string    `json:"trigger_event"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Steps        []*Step   `json:"steps,omitempty"`
}

// Step is one email in a sequence. DelayDays counts from enrollment;
// DelayTime is an optional "HH:MM" send time.
type Step struct {
	ID          uuid.UUID `json:"id"`
	SequenceID  uuid.UUID `json:"sequence_id"`
	Position    int       `json:"position"`
	Subject     string    `json:"subject"`
	HTMLContent string    `json:"html_content"`
	DelayDays   int       `json:"delay_days"`
	DelayTime   string    `json:"delay_time,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Enrollment tracks one subscriber's progress through a sequence.
type Enrollment struct {
	ID           uuid.UUID  `json:"id"`
	SequenceID   uuid.UUID  `json:"sequence_id"`
	SubscriberID uuid.UUID  `json:"subscriber_id"`
	CurrentStep  int        `json:"current_step"`
	Status       string     `json:"status"`
	NextRunAt    *time.Time `json:"next_run_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

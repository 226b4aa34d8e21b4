package sequence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func step(subject string, delayDays int, delayTime string) *Step {
	return &Step{Subject: subject, DelayDays: delayDays, DelayTime: delayTime}
}

func subjects(steps []*Step) []string {
	out := make([]string, len(steps))
	for i, s := range steps {
		out[i] = s.Subject
	}
	return out
}

func TestSortSteps(t *testing.T) {
	tests := []struct {
		name  string
		steps []*Step
		want  []string
	}{
		{
			name: "sorted by delay days",
			steps: []*Step{
				step("day 3", 3, ""),
				step("day 0", 0, ""),
				step("day 1", 1, ""),
			},
			want: []string{"day 0", "day 1", "day 3"},
		},
		{
			name: "same day ordered by send time",
			steps: []*Step{
				step("evening", 1, "18:00"),
				step("morning", 1, "08:00"),
			},
			want: []string{"morning", "evening"},
		},
		{
			name: "missing time defaults to 09:00",
			steps: []*Step{
				step("defaulted", 1, ""),
				step("early", 1, "08:30"),
				step("late", 1, "09:30"),
			},
			want: []string{"early", "defaulted", "late"},
		},
		{
			name: "equal delays keep relative order",
			steps: []*Step{
				step("first", 2, "09:00"),
				step("second", 2, ""),
			},
			want: []string{"first", "second"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			SortSteps(tt.steps)
			assert.Equal(t, tt.want, subjects(tt.steps))
			for i, s := range tt.steps {
				assert.Equal(t, i+1, s.Position)
			}
		})
	}
}

func TestValidDelayTime(t *testing.T) {
	assert.True(t, ValidDelayTime(""))
	assert.True(t, ValidDelayTime("09:00"))
	assert.True(t, ValidDelayTime("23:59"))
	assert.False(t, ValidDelayTime("24:00"))
	assert.False(t, ValidDelayTime("9:00"))
	assert.False(t, ValidDelayTime("09:60"))
	assert.False(t, ValidDelayTime("morning"))
}

func TestRunAt(t *testing.T) {
	base := time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)

	got := RunAt(base, step("welcome", 0, ""))
	assert.Equal(t, time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC), got)

	got = RunAt(base, step("follow up", 2, "18:15"))
	assert.Equal(t, time.Date(2026, 3, 12, 18, 15, 0, 0, time.UTC), got)
}

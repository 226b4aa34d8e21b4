package sequence

import (
	"fmt"
	"regexp"
	"sort"
	"time"
)

var delayTimePattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// ValidDelayTime reports whether t is empty or a valid "HH:MM" send time.
func ValidDelayTime(t string) bool {
	return t == "" || delayTimePattern.MatchString(t)
}

// effectiveTime is the clock time a step sends at; steps without one use
// DefaultSendTime.
func effectiveTime(s *Step) string {
	if s.DelayTime == "" {
		return DefaultSendTime
	}
	return s.DelayTime
}

// SortSteps orders steps by (delay_days, effective send time) and
// reassigns positions 1..n. Manual ordering is never preserved: a drag or
// edit always lands steps back in delay chronology. The sort is stable so
// steps with identical delays keep their relative order.
func SortSteps(steps []*Step) {
	sort.SliceStable(steps, func(i, j int) bool {
		if steps[i].DelayDays != steps[j].DelayDays {
			return steps[i].DelayDays < steps[j].DelayDays
		}
		return effectiveTime(steps[i]) < effectiveTime(steps[j])
	})
	for i, s := range steps {
		s.Position = i + 1
	}
}

// RunAt computes when a step should fire for an enrollment that started at
// base: base's date plus the step's delay in days, at the step's send time
// in base's location. A computed moment already in the past (relative to
// now) fires immediately.
func RunAt(base time.Time, step *Step) time.Time {
	var hour, minute int
	fmt.Sscanf(effectiveTime(step), "%d:%d", &hour, &minute)

	day := base.AddDate(0, 0, step.DelayDays)
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, base.Location())
}

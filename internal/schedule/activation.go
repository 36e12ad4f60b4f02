package schedule

import (
	"time"

	"cowork/backend/internal/model"
)

// ResolveActivation converts a template's start intent into a concrete
// phase-zero start instant. Manual policies resolve to nil: the
// schedule stays prepared until a user commences it explicitly.
func ResolveActivation(policy model.ActivationPolicy, now time.Time) *time.Time {
	switch policy.Kind {
	case model.ActivationManual:
		return nil
	case model.ActivationAtWallClock:
		if policy.At == nil {
			return nil
		}
		at := resolveWallClock(*policy.At, policy.DayOfWeek, now)
		return &at
	default:
		instant := now
		return &instant
	}
}

// resolveWallClock finds the next local instant >= now whose time of
// day matches at. An explicit weekday that already passed this week
// advances by 7 days; a nil weekday means today, or tomorrow if the
// time of day already passed.
func resolveWallClock(at model.ClockTime, day *time.Weekday, now time.Time) time.Time {
	candidate := time.Date(now.Year(), now.Month(), now.Day(), at.Hour, at.Minute, 0, 0, now.Location())

	if day == nil {
		if candidate.Before(now) {
			candidate = candidate.AddDate(0, 0, 1)
		}
		return candidate
	}

	offset := (int(*day) - int(now.Weekday()) + 7) % 7
	candidate = candidate.AddDate(0, 0, offset)
	if candidate.Before(now) {
		candidate = candidate.AddDate(0, 0, 7)
	}
	return candidate
}

// NextOccurrence advances a resolved start instant by the recurrence
// step until the occurrence has not fully elapsed (its start plus the
// schedule's total duration is still ahead of now). Missed occurrences
// are skipped, never auto-run.
func NextOccurrence(resolved time.Time, recurrence string, total time.Duration, now time.Time) time.Time {
	if recurrence == model.RecurrenceNone || recurrence == "" {
		return resolved
	}

	next := resolved
	for !next.Add(total).After(now) {
		switch recurrence {
		case model.RecurrenceDaily:
			next = next.AddDate(0, 0, 1)
		case model.RecurrenceWeekly:
			next = next.AddDate(0, 0, 7)
		case model.RecurrenceMonthly:
			next = next.AddDate(0, 1, 0)
		default:
			return next
		}
	}
	return next
}

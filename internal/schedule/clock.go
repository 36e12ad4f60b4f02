package schedule

import (
	"time"

	"cowork/backend/internal/model"
)

const (
	StatePending = "pending"
	StateRunning = "running"
	StateEnded   = "ended"
)

// Position is the derived clock state of a running schedule. It is
// recomputed from the authoritative phase-start timestamp on every
// tick; clients never accumulate elapsed time locally.
type Position struct {
	State      string        `json:"state"`
	PhaseIndex int           `json:"phaseIndex"`
	Remaining  time.Duration `json:"-"`
	UntilStart time.Duration `json:"-"`
}

// PhaseRemaining is the countdown for one live phase, derived from the
// authoritative phase-start timestamp rather than accumulated ticks. A
// start in the future reports the full duration.
func PhaseRemaining(phase model.Phase, startedAt, now time.Time) time.Duration {
	if now.Before(startedAt) {
		return phase.Duration()
	}
	remaining := phase.Duration() - now.Sub(startedAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// PositionAt locates now within a schedule that started at startedAt.
// A start in the future reports pending with a countdown to start; a
// schedule whose total duration is zero is ended immediately.
func PositionAt(s model.Schedule, startedAt, now time.Time) Position {
	if s.TotalDuration() == 0 {
		return Position{State: StateEnded, PhaseIndex: lastIndex(s)}
	}

	if now.Before(startedAt) {
		return Position{
			State:      StatePending,
			PhaseIndex: 0,
			Remaining:  s[0].Duration(),
			UntilStart: startedAt.Sub(now),
		}
	}

	elapsed := now.Sub(startedAt)
	for i, phase := range s {
		if elapsed < phase.Duration() {
			return Position{
				State:      StateRunning,
				PhaseIndex: i,
				Remaining:  phase.Duration() - elapsed,
			}
		}
		elapsed -= phase.Duration()
	}

	return Position{State: StateEnded, PhaseIndex: lastIndex(s)}
}

// LoopingPositionAt is PositionAt for schedules that repeat forever,
// such as ongoing demo session cards. The elapsed time is wrapped
// modulo the total schedule duration before walking the phase list, so
// the result stays correct indefinitely without per-tick state.
func LoopingPositionAt(s model.Schedule, startedAt, now time.Time) Position {
	total := s.TotalDuration()
	if total == 0 {
		return Position{State: StateEnded, PhaseIndex: lastIndex(s)}
	}

	if now.Before(startedAt) {
		return Position{
			State:      StatePending,
			PhaseIndex: 0,
			Remaining:  s[0].Duration(),
			UntilStart: startedAt.Sub(now),
		}
	}

	elapsed := now.Sub(startedAt) % total
	for i, phase := range s {
		if elapsed < phase.Duration() {
			return Position{
				State:      StateRunning,
				PhaseIndex: i,
				Remaining:  phase.Duration() - elapsed,
			}
		}
		elapsed -= phase.Duration()
	}

	// Unreachable: elapsed < total after the modulo.
	return Position{State: StateRunning, PhaseIndex: lastIndex(s)}
}

func lastIndex(s model.Schedule) int {
	if len(s) == 0 {
		return 0
	}
	return len(s) - 1
}

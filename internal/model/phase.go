package model

import "time"

const (
	PhaseFocus = "focus"
	PhaseBreak = "break"
)

const (
	DefaultFocusMinutes = 25
	DefaultBreakMinutes = 5
)

// Phase is one timed focus or break segment within a schedule.
// Phases are immutable once their schedule is running.
type Phase struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Kind            string `json:"kind"`
	DurationMinutes int    `json:"durationMinutes"`
	IsCustomLabel   bool   `json:"isCustomLabel"`
}

func (p Phase) Duration() time.Duration {
	return time.Duration(p.DurationMinutes) * time.Minute
}

// Schedule is an ordered sequence of phases. A schedule must be
// non-empty with positive durations before it can be activated.
type Schedule []Phase

func (s Schedule) TotalDuration() time.Duration {
	var total time.Duration
	for _, phase := range s {
		total += phase.Duration()
	}
	return total
}

func (s Schedule) TotalMinutes() int {
	total := 0
	for _, phase := range s {
		total += phase.DurationMinutes
	}
	return total
}

func IsValidPhaseKind(kind string) bool {
	return kind == PhaseFocus || kind == PhaseBreak
}

package model

import "time"

const (
	ActivationImmediate   = "immediate"
	ActivationManual      = "manual"
	ActivationAtWallClock = "at_wall_clock"
)

const (
	RecurrenceNone    = "none"
	RecurrenceDaily   = "daily"
	RecurrenceWeekly  = "weekly"
	RecurrenceMonthly = "monthly"
)

// ClockTime is a local time of day without a date.
type ClockTime struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

// ActivationPolicy declares when a prepared schedule starts.
// At and DayOfWeek are only meaningful for at_wall_clock; a nil
// DayOfWeek means "today, or tomorrow if the time already passed".
type ActivationPolicy struct {
	Kind      string        `json:"kind"`
	At        *ClockTime    `json:"at,omitempty"`
	DayOfWeek *time.Weekday `json:"dayOfWeek,omitempty"`
}

// ScheduleTemplate is a saved, reusable schedule plus its activation
// and recurrence settings, independent of any live session.
type ScheduleTemplate struct {
	ID         string           `json:"id"`
	OwnerID    string           `json:"ownerId"`
	Title      string           `json:"title"`
	Schedule   Schedule         `json:"schedule"`
	Activation ActivationPolicy `json:"activation"`
	Recurrence string           `json:"recurrence"`
	Color      string           `json:"color"`
	CreatedAt  time.Time        `json:"createdAt"`
	UpdatedAt  time.Time        `json:"updatedAt"`
}

func IsValidActivationKind(kind string) bool {
	return kind == ActivationImmediate || kind == ActivationManual || kind == ActivationAtWallClock
}

func IsValidRecurrence(recurrence string) bool {
	switch recurrence {
	case RecurrenceNone, RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly:
		return true
	}
	return false
}

func (c ClockTime) IsValid() bool {
	return c.Hour >= 0 && c.Hour < 24 && c.Minute >= 0 && c.Minute < 60
}

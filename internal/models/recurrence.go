package models

import (
	"time"
)

// TaskType distinguishes one-off nodes from recurring ones and habits.
type TaskType string

const (
	TaskTypeOneTime   TaskType = "one_time"
	TaskTypeRecurring TaskType = "recurring"
	TaskTypeHabit     TaskType = "habit"
)

// RecurrenceFrequency is the base cadence of a recurrence rule.
type RecurrenceFrequency string

const (
	FrequencyDaily   RecurrenceFrequency = "daily"
	FrequencyWeekly  RecurrenceFrequency = "weekly"
	FrequencyMonthly RecurrenceFrequency = "monthly"
)

// Recurrence describes how a recurring node repeats. Interval multiplies the
// frequency (every N days/weeks/months). DaysOfWeek constrains weekly rules
// (0 = Sunday, matching time.Weekday); DayOfMonth constrains monthly rules.
// EndDate (YYYY-MM-DD) is the last day an occurrence may fall on.
type Recurrence struct {
	Frequency  RecurrenceFrequency `json:"frequency"`
	Interval   int                 `json:"interval"`
	DaysOfWeek []int               `json:"days_of_week,omitempty"`
	DayOfMonth *int                `json:"day_of_month,omitempty"`
	EndDate    *string             `json:"end_date,omitempty"`
}

// DateLayout is the wire format for date-only fields.
const DateLayout = "2006-01-02"

// Next computes the first occurrence strictly after the given day.
// Returns false when the rule has no further occurrences (past EndDate)
// or the rule is malformed.
func (r *Recurrence) Next(after time.Time) (time.Time, bool) {
	interval := r.Interval
	if interval < 1 {
		interval = 1
	}
	day := time.Date(after.Year(), after.Month(), after.Day(), 0, 0, 0, 0, time.UTC)

	var next time.Time
	switch r.Frequency {
	case FrequencyDaily:
		next = day.AddDate(0, 0, interval)
	case FrequencyWeekly:
		if len(r.DaysOfWeek) > 0 {
			next = r.nextWeekday(day, interval)
		} else {
			next = day.AddDate(0, 0, 7*interval)
		}
	case FrequencyMonthly:
		next = day.AddDate(0, interval, 0)
		if r.DayOfMonth != nil {
			next = clampToMonthDay(next, *r.DayOfMonth)
		}
	default:
		return time.Time{}, false
	}

	if r.EndDate != nil {
		end, err := time.Parse(DateLayout, *r.EndDate)
		if err == nil && next.After(end) {
			return time.Time{}, false
		}
	}
	return next, true
}

// nextWeekday walks forward from day to the next allowed weekday. When the
// search crosses a week boundary the interval skip applies.
func (r *Recurrence) nextWeekday(day time.Time, interval int) time.Time {
	allowed := make(map[time.Weekday]bool, len(r.DaysOfWeek))
	for _, d := range r.DaysOfWeek {
		if d >= 0 && d <= 6 {
			allowed[time.Weekday(d)] = true
		}
	}
	if len(allowed) == 0 {
		return day.AddDate(0, 0, 7*interval)
	}
	cur := day
	for i := 0; i < 7; i++ {
		cur = cur.AddDate(0, 0, 1)
		if cur.Weekday() == time.Sunday && interval > 1 {
			// week rolled over; skip the intervening weeks
			cur = cur.AddDate(0, 0, 7*(interval-1))
		}
		if allowed[cur.Weekday()] {
			return cur
		}
	}
	return cur
}

func clampToMonthDay(t time.Time, day int) time.Time {
	if day < 1 {
		day = 1
	}
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1).Day()
	if day > last {
		day = last
	}
	return time.Date(t.Year(), t.Month(), day, 0, 0, 0, 0, time.UTC)
}

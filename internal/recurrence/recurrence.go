// Package recurrence expands an event's date range and recurrence rule into the
// concrete date-times at which the event occurs. It is pure: no clock reads, no I/O.
package recurrence

import (
	"sort"
	"strconv"
	"time"

	"github.com/gdg-garage/fitclass-api/internal/apperr"
)

type Type string

const (
	Single   Type = "SINGLE"
	Weekly   Type = "WEEKLY"
	Interval Type = "INTERVAL"
)

func (t Type) Valid() bool { return t == Single || t == Weekly || t == Interval }

// Pattern holds the rule parameters. Weekdays applies to WEEKLY (0=Sunday..6=Saturday),
// IntervalDays to INTERVAL. Both are unset for SINGLE.
type Pattern struct {
	Weekdays     []int `json:"weekdays,omitempty"`
	IntervalDays int   `json:"intervalDays,omitempty"`
}

// Schedule is one weekly time slot of an event with several slots,
// e.g. Monday 08:00 and Wednesday 18:00.
type Schedule struct {
	TimeOfDay string `json:"timeOfDay" validate:"required"`
	Weekdays  []int  `json:"weekdays" validate:"min=1,dive,min=0,max=6"`
}

// Engine generates occurrence date-times.
//
// DailyFallback controls what happens when a WEEKLY rule has no weekdays or an INTERVAL
// rule has no interval: with the flag set every day in range is emitted, without it the
// input is rejected.
type Engine struct {
	DailyFallback bool
}

// ParseTimeOfDay parses a 24-hour "HH:MM" string.
func ParseTimeOfDay(s string) (hour, minute int, err error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, 0, apperr.Validation("time of day %q must use the 24-hour HH:MM format", s)
	}
	hour, herr := strconv.Atoi(s[:2])
	minute, merr := strconv.Atoi(s[3:])
	if herr != nil || merr != nil || !isDigits(s[:2]) || !isDigits(s[3:]) {
		return 0, 0, apperr.Validation("time of day %q must use the 24-hour HH:MM format", s)
	}
	if hour > 23 || minute > 59 {
		return 0, 0, apperr.Validation("time of day %q is out of range", s)
	}
	return hour, minute, nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ValidateWeekdays checks that set is non-empty and every value is in [0,6].
func ValidateWeekdays(set []int) error {
	if len(set) == 0 {
		return apperr.Validation("at least one weekday is required")
	}
	for _, d := range set {
		if d < 0 || d > 6 {
			return apperr.Validation("weekday %d is out of range 0-6", d)
		}
	}
	return nil
}

// Generate expands a single-slot rule. start and end are calendar dates; only their
// year, month and day are used, in start's location. end before start is the caller's
// responsibility and yields nothing for WEEKLY and INTERVAL.
func (e Engine) Generate(start, end time.Time, timeOfDay string, typ Type, p Pattern) ([]time.Time, error) {
	hour, minute, err := ParseTimeOfDay(timeOfDay)
	if err != nil {
		return nil, err
	}

	switch typ {
	case Single:
		return []time.Time{at(start, 0, hour, minute)}, nil
	case Weekly:
		if len(p.Weekdays) == 0 {
			if !e.DailyFallback {
				return nil, apperr.Validation("weekly recurrence requires at least one weekday")
			}
			return stepDays(start, end, 1, hour, minute, nil), nil
		}
		if err := ValidateWeekdays(p.Weekdays); err != nil {
			return nil, err
		}
		return stepDays(start, end, 1, hour, minute, weekdaySet(p.Weekdays)), nil
	case Interval:
		step := p.IntervalDays
		if step < 0 {
			return nil, apperr.Validation("intervalDays must not be negative, got %d", step)
		}
		if step == 0 {
			if !e.DailyFallback {
				return nil, apperr.Validation("interval recurrence requires intervalDays >= 1")
			}
			step = 1
		}
		return stepDays(start, end, step, hour, minute, nil), nil
	default:
		return nil, apperr.Validation("unknown recurrence type %q", typ)
	}
}

// GenerateFromSchedules unions the weekly expansion of every schedule, ascending and
// without duplicates.
func (e Engine) GenerateFromSchedules(start, end time.Time, schedules []Schedule) ([]time.Time, error) {
	if len(schedules) == 0 {
		return nil, apperr.Validation("at least one schedule is required")
	}

	var out []time.Time
	for _, s := range schedules {
		if len(s.Weekdays) == 0 {
			return nil, apperr.Validation("schedule at %s has no weekdays", s.TimeOfDay)
		}
		dates, err := e.Generate(start, end, s.TimeOfDay, Weekly, Pattern{Weekdays: s.Weekdays})
		if err != nil {
			return nil, err
		}
		out = append(out, dates...)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	uniq := out[:0]
	for i, t := range out {
		if i > 0 && t.Equal(uniq[len(uniq)-1]) {
			continue
		}
		uniq = append(uniq, t)
	}
	return uniq, nil
}

func weekdaySet(days []int) map[time.Weekday]bool {
	set := make(map[time.Weekday]bool, len(days))
	for _, d := range days {
		set[time.Weekday(d)] = true
	}
	return set
}

// stepDays walks [start, end] every step days. A nil filter accepts every day.
func stepDays(start, end time.Time, step, hour, minute int, filter map[time.Weekday]bool) []time.Time {
	last := dateOnly(end.In(start.Location()))
	var out []time.Time
	for i := 0; ; i += step {
		day := at(start, i, 0, 0)
		if day.After(last) {
			break
		}
		if filter != nil && !filter[day.Weekday()] {
			continue
		}
		out = append(out, at(start, i, hour, minute))
	}
	return out
}

// at returns the calendar day offset days after d, at hour:minute in d's location.
// time.Date normalizes the day overflow, so DST never skips or repeats a day.
func at(d time.Time, offset, hour, minute int) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day()+offset, hour, minute, 0, 0, d.Location())
}

func dateOnly(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, d.Location())
}

// Package schedule is the pure recurrence model: it maps a frequency plus a
// "last run" timestamp to the next due timestamp. No I/O, no clock reads.
package schedule

import (
	"fmt"
	"strings"
	"time"
)

// Frequency is a recurrence kind.
type Frequency string

const (
	Hourly  Frequency = "hourly"
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Custom  Frequency = "custom"
)

// ParseFrequency normalizes and validates a frequency string.
func ParseFrequency(raw string) (Frequency, error) {
	f := Frequency(strings.ToLower(strings.TrimSpace(raw)))
	switch f {
	case Hourly, Daily, Weekly, Monthly, Custom:
		return f, nil
	default:
		return "", fmt.Errorf("unknown frequency %q", raw)
	}
}

// CustomSpec is the weekday+hour set for Custom schedules.
// Weekday indices follow time.Weekday (0 = Sunday). Hours are 0-23.
type CustomSpec struct {
	WeekDays []int
	Hours    []int
}

// Validate checks a frequency/custom pair at definition-creation time.
// Custom requires a spec with non-empty, in-range sets; every other
// frequency requires the spec to be absent.
func Validate(freq Frequency, custom *CustomSpec) error {
	switch freq {
	case Hourly, Daily, Weekly, Monthly:
		if custom != nil {
			return fmt.Errorf("custom schedule only allowed with frequency %q", Custom)
		}
		return nil
	case Custom:
		if custom == nil {
			return fmt.Errorf("frequency %q requires a custom schedule", Custom)
		}
		if len(custom.WeekDays) == 0 {
			return fmt.Errorf("custom schedule needs at least one weekday")
		}
		if len(custom.Hours) == 0 {
			return fmt.Errorf("custom schedule needs at least one hour")
		}
		for _, d := range custom.WeekDays {
			if d < 0 || d > 6 {
				return fmt.Errorf("weekday %d out of range 0-6", d)
			}
		}
		for _, h := range custom.Hours {
			if h < 0 || h > 23 {
				return fmt.Errorf("hour %d out of range 0-23", h)
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown frequency %q", freq)
	}
}

// Next computes the next due timestamp strictly after from.
//
//   - Hourly: from + 1 hour, seconds zeroed.
//   - Daily: next day, same time-of-day.
//   - Weekly: +7 days, same time-of-day.
//   - Monthly: same day-of-month in the next calendar month, clamped to that
//     month's last day when the day does not exist there.
//   - Custom: the earliest hour strictly after from whose weekday and hour
//     are both in the spec, minute and second zeroed.
func Next(freq Frequency, custom *CustomSpec, from time.Time) (time.Time, error) {
	switch freq {
	case Hourly:
		t := from.Add(time.Hour)
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, t.Location()), nil
	case Daily:
		return from.AddDate(0, 0, 1), nil
	case Weekly:
		return from.AddDate(0, 0, 7), nil
	case Monthly:
		return nextMonthly(from), nil
	case Custom:
		return nextCustom(custom, from)
	default:
		return time.Time{}, fmt.Errorf("unknown frequency %q", freq)
	}
}

func nextMonthly(from time.Time) time.Time {
	year, month := from.Year(), from.Month()
	month++
	if month > time.December {
		month = time.January
		year++
	}
	day := from.Day()
	if last := lastDayOfMonth(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day,
		from.Hour(), from.Minute(), from.Second(), from.Nanosecond(), from.Location())
}

func lastDayOfMonth(year int, month time.Month) int {
	// Day 0 of the following month normalizes to this month's last day.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// customLookahead bounds the hour walk. Weekday+hour combinations repeat
// weekly, so 8 days is always enough for a non-empty spec.
const customLookahead = 8 * 24

func nextCustom(custom *CustomSpec, from time.Time) (time.Time, error) {
	if err := Validate(Custom, custom); err != nil {
		return time.Time{}, err
	}
	days := make(map[int]bool, len(custom.WeekDays))
	for _, d := range custom.WeekDays {
		days[d] = true
	}
	hours := make(map[int]bool, len(custom.Hours))
	for _, h := range custom.Hours {
		hours[h] = true
	}

	start := time.Date(from.Year(), from.Month(), from.Day(), from.Hour(), 0, 0, 0, from.Location())
	for i := 1; i <= customLookahead; i++ {
		cand := start.Add(time.Duration(i) * time.Hour)
		if days[int(cand.Weekday())] && hours[cand.Hour()] {
			return cand, nil
		}
	}
	// Unreachable for a validated spec.
	return time.Time{}, fmt.Errorf("no matching slot within %d hours", customLookahead)
}

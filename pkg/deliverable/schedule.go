package deliverable

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kvkthecreator/yarnnn/pkg/domain"
)

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday,
	"wednesday": time.Wednesday, "thursday": time.Thursday, "friday": time.Friday, "saturday": time.Saturday,
}

// ComputeNextRunAt is a pure function (modulo DST, per spec §8's
// rescheduling-determinism property) mapping a schedule and a
// reference instant to the next run time, evaluated in the schedule's
// timezone.
func ComputeNextRunAt(schedule domain.Schedule, now time.Time) (time.Time, error) {
	loc, err := time.LoadLocation(schedule.Timezone)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timezone %q: %w", schedule.Timezone, err)
	}
	local := now.In(loc)

	hour, minute, err := parseClock(schedule.Time)
	if err != nil {
		return time.Time{}, err
	}

	switch schedule.Frequency {
	case domain.FrequencyDaily:
		return nextDaily(local, hour, minute, loc), nil
	case domain.FrequencyWeekly:
		wd, ok := weekdays[strings.ToLower(schedule.Day)]
		if !ok {
			return time.Time{}, fmt.Errorf("invalid weekday %q", schedule.Day)
		}
		return nextWeekly(local, wd, hour, minute, loc), nil
	case domain.FrequencyMonthly:
		day, err := strconv.Atoi(schedule.Day)
		if err != nil || day < 1 || day > 28 {
			return time.Time{}, fmt.Errorf("invalid day-of-month %q (must be 1-28 to exist in every month)", schedule.Day)
		}
		return nextMonthly(local, day, hour, minute, loc), nil
	default:
		return time.Time{}, fmt.Errorf("unknown schedule frequency %q", schedule.Frequency)
	}
}

func parseClock(s string) (hour, minute int, err error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q, want HH:MM", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid hour in %q: %w", s, err)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid minute in %q: %w", s, err)
	}
	return hour, minute, nil
}

func nextDaily(local time.Time, hour, minute int, loc *time.Location) time.Time {
	candidate := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
	if !candidate.After(local) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate
}

func nextWeekly(local time.Time, wd time.Weekday, hour, minute int, loc *time.Location) time.Time {
	candidate := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
	daysUntil := (int(wd) - int(local.Weekday()) + 7) % 7
	candidate = candidate.AddDate(0, 0, daysUntil)
	if !candidate.After(local) {
		candidate = candidate.AddDate(0, 0, 7)
	}
	return candidate
}

func nextMonthly(local time.Time, day, hour, minute int, loc *time.Location) time.Time {
	candidate := time.Date(local.Year(), local.Month(), day, hour, minute, 0, 0, loc)
	if !candidate.After(local) {
		candidate = time.Date(local.Year(), local.Month()+1, day, hour, minute, 0, 0, loc)
	}
	return candidate
}

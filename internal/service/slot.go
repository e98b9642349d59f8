package service

import (
	"strings"
	"time"
)

var slotLayouts = []string{
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
}

// ParseSlot parses a reservation date-time as wall-clock time in loc.  RFC
// 3339 values with an explicit offset are converted to loc.  The result is
// truncated to the minute, the granularity of the schedule template.
func ParseSlot(raw string, loc *time.Location) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range slotLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.Truncate(time.Minute), true
		}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.In(loc).Truncate(time.Minute), true
	}
	return time.Time{}, false
}

// ParseDate parses a calendar date (YYYY-MM-DD) and returns midnight of that
// day in loc.  A longer date-time value is accepted and truncated to its
// date part.
func ParseDate(raw string, loc *time.Location) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if len(s) > len("2006-01-02") {
		s = s[:len("2006-01-02")]
	}
	t, err := time.ParseInLocation("2006-01-02", s, loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// atTime places an HH:MM time of day on the calendar day of day.
func atTime(day time.Time, hhmm string) (time.Time, bool) {
	tod, err := time.Parse("15:04", hhmm)
	if err != nil {
		return time.Time{}, false
	}
	y, m, d := day.Date()
	return time.Date(y, m, d, tod.Hour(), tod.Minute(), 0, 0, day.Location()), true
}

func weekdayName(wd time.Weekday) string {
	return strings.ToLower(wd.String())
}

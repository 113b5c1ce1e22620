// Package timeunit computes calendar period boundaries in the location of the
// reference instant. Weeks are ISO weeks starting Monday 00:00; days start at
// local midnight.
package timeunit

import (
	"fmt"
	"strings"
	"time"
)

type Period int

const (
	Hour Period = iota
	Day
	Week
	Month
	Year
	All
)

var periodNames = []string{"hour", "day", "week", "month", "year", "all"}

// Periods lists every period in ascending granularity.
var Periods = []Period{Hour, Day, Week, Month, Year, All}

func (p Period) String() string {
	if p < Hour || p > All {
		return fmt.Sprintf("Period(%d)", int(p))
	}
	return periodNames[p]
}

func (p Period) Valid() bool {
	return p >= Hour && p <= All
}

// ParsePeriod accepts the names returned by String, case-insensitively.
func ParsePeriod(s string) (Period, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range periodNames {
		if name == s {
			return Period(i), nil
		}
	}
	return 0, fmt.Errorf("unknown period %q", s)
}

// Bounds returns the half-open interval [start, end) of period p containing
// ref. All has no bounds and returns zero times. Bounds panics on an invalid
// period.
func Bounds(p Period, ref time.Time) (time.Time, time.Time) {
	loc := ref.Location()
	y, m, d := ref.Date()
	switch p {
	case Hour:
		// Truncate on the instant: the repeated hour of a DST fall-back
		// has two starts, and time.Date would pick the first.
		start := ref.Add(-time.Duration(ref.Minute())*time.Minute -
			time.Duration(ref.Second())*time.Second -
			time.Duration(ref.Nanosecond()))
		return start, start.Add(time.Hour)
	case Day:
		start := time.Date(y, m, d, 0, 0, 0, 0, loc)
		return start, time.Date(y, m, d+1, 0, 0, 0, 0, loc)
	case Week:
		offset := int(ref.Weekday())
		if offset == 0 {
			offset = 7
		}
		start := time.Date(y, m, d-offset+1, 0, 0, 0, 0, loc)
		return start, time.Date(y, m, d-offset+8, 0, 0, 0, 0, loc)
	case Month:
		start := time.Date(y, m, 1, 0, 0, 0, 0, loc)
		return start, start.AddDate(0, 1, 0)
	case Year:
		start := time.Date(y, 1, 1, 0, 0, 0, 0, loc)
		return start, start.AddDate(1, 0, 0)
	case All:
		return time.Time{}, time.Time{}
	}
	panic(fmt.Sprintf("timeunit: invalid period %d", int(p)))
}

func StartOf(p Period, ref time.Time) time.Time {
	start, _ := Bounds(p, ref)
	return start
}

// EndOf returns the exclusive end of the period containing ref.
func EndOf(p Period, ref time.Time) time.Time {
	_, end := Bounds(p, ref)
	return end
}

// InPeriod reports whether t falls in the same period p as now, with t read
// in now's location. Every instant is in All.
func InPeriod(p Period, t, now time.Time) bool {
	if p == All {
		return true
	}
	start, end := Bounds(p, now)
	return !t.Before(start) && t.Before(end)
}

func SameHour(t, now time.Time) bool  { return InPeriod(Hour, t, now) }
func SameDay(t, now time.Time) bool   { return InPeriod(Day, t, now) }
func SameMonth(t, now time.Time) bool { return InPeriod(Month, t, now) }
func SameYear(t, now time.Time) bool  { return InPeriod(Year, t, now) }

// SameWeek compares ISO year and week number.
func SameWeek(t, now time.Time) bool {
	ty, tw := t.In(now.Location()).ISOWeek()
	ny, nw := now.ISOWeek()
	return ty == ny && tw == nw
}

// DayKey formats t as a local calendar date, e.g. "2026-10-14".
func DayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

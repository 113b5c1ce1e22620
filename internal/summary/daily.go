package summary

import (
	"time"

	"github.com/sadopc/itrack/internal/store"
	"github.com/sadopc/itrack/internal/timeunit"
)

// DayTotal is one calendar day of a report.
type DayTotal struct {
	Day          time.Time // local midnight
	Key          string    // 2006-01-02
	TotalSeconds float64
	ByCategory   []Summary
}

// Daily returns one DayTotal per calendar day from the day containing from
// through the day containing to, both read in from's location. Days with no
// entries are included with a zero total.
func Daily(entries []store.TimeEntry, categories []store.Category, userID string, from, to, now time.Time) []DayTotal {
	loc := from.Location()
	last := timeunit.StartOf(timeunit.Day, to.In(loc))

	var out []DayTotal
	for day := timeunit.StartOf(timeunit.Day, from); !day.After(last); day = day.AddDate(0, 0, 1) {
		var inDay []store.TimeEntry
		for _, e := range entries {
			if e.UserID == userID && timeunit.SameDay(e.StartTime, day) {
				inDay = append(inDay, e)
			}
		}
		// Percentages are relative to the day; live durations use now.
		sums := Aggregate(inDay, categories, Query{UserID: userID, Period: timeunit.All, Now: now})
		out = append(out, DayTotal{
			Day:          day,
			Key:          timeunit.DayKey(day),
			TotalSeconds: GrandTotal(sums),
			ByCategory:   sums,
		})
	}
	return out
}

// Package summary aggregates time entries into per-category totals for a
// period. Aggregation is a pure function of (entries, categories, query).
package summary

import (
	"math"
	"sort"
	"time"

	"github.com/sadopc/itrack/internal/store"
	"github.com/sadopc/itrack/internal/timeunit"
)

// Fallbacks for entries whose category is not in the category set.
const (
	UnknownName  = "Unknown"
	UnknownColor = "#8E8E93"
	UnknownIcon  = "questionmark.circle"
)

type Query struct {
	UserID string
	Period timeunit.Period
	Now    time.Time
}

type Summary struct {
	CategoryID    string
	CategoryName  string
	CategoryColor string
	Icon          string
	TotalSeconds  float64
	Percentage    float64
	EntryCount    int
}

// Filter keeps the user's entries whose start time falls in the query's
// period, in input order. An invalid period panics.
func Filter(entries []store.TimeEntry, q Query) []store.TimeEntry {
	var out []store.TimeEntry
	for _, e := range entries {
		if e.UserID != q.UserID {
			continue
		}
		if !timeunit.InPeriod(q.Period, e.StartTime, q.Now) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Aggregate groups the matching entries by category. Active entries count
// with their live duration at q.Now. The result is sorted by total
// descending; ties keep the order in which categories first appear.
func Aggregate(entries []store.TimeEntry, categories []store.Category, q Query) []Summary {
	byID := make(map[string]store.Category, len(categories))
	for _, c := range categories {
		byID[c.ID] = c
	}

	var out []Summary
	index := make(map[string]int)
	var grand float64
	for _, e := range Filter(entries, q) {
		d := clean(e.LiveDuration(q.Now))
		i, ok := index[e.CategoryID]
		if !ok {
			i = len(out)
			index[e.CategoryID] = i
			out = append(out, newSummary(e.CategoryID, byID))
		}
		out[i].TotalSeconds += d
		out[i].EntryCount++
		grand += d
	}

	if grand > 0 && !math.IsInf(grand, 0) {
		for i := range out {
			out[i].Percentage = out[i].TotalSeconds / grand * 100
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TotalSeconds > out[j].TotalSeconds })
	return out
}

// GrandTotal sums the totals of summaries, in seconds.
func GrandTotal(summaries []Summary) float64 {
	var total float64
	for _, s := range summaries {
		total += s.TotalSeconds
	}
	return total
}

func newSummary(categoryID string, byID map[string]store.Category) Summary {
	c, ok := byID[categoryID]
	if !ok {
		return Summary{CategoryID: categoryID, CategoryName: UnknownName, CategoryColor: UnknownColor, Icon: UnknownIcon}
	}
	return Summary{CategoryID: c.ID, CategoryName: c.Name, CategoryColor: c.Color, Icon: c.Icon}
}

func clean(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

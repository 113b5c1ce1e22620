package summary

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/sadopc/itrack/internal/errs"
	"github.com/sadopc/itrack/internal/store"
	"github.com/sadopc/itrack/internal/timeunit"
)

var now = time.Date(2026, 10, 14, 15, 30, 0, 0, time.UTC) // Wednesday

func cat(id, name string) store.Category {
	return store.Category{ID: id, UserID: "u1", Name: name, Color: "#007aff", Icon: "circle.fill", IsActive: true}
}

func entry(id, category string, start time.Time, seconds float64) store.TimeEntry {
	end := start.Add(time.Duration(seconds * float64(time.Second)))
	return store.TimeEntry{ID: id, UserID: "u1", CategoryID: category, StartTime: start, EndTime: &end, Duration: seconds}
}

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

// ============================================================
// Aggregate
// ============================================================

func TestAggregateAll(t *testing.T) {
	entries := []store.TimeEntry{
		entry("e1", "A", now.Add(-time.Hour), 100),
		entry("e2", "A", now.Add(-48*time.Hour), 300),
		entry("e3", "B", now.AddDate(-2, 0, 0), 200),
	}
	cats := []store.Category{cat("A", "Work"), cat("B", "Home")}

	got := Aggregate(entries, cats, Query{UserID: "u1", Period: timeunit.All, Now: now})
	if len(got) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(got))
	}
	if got[0].CategoryID != "A" || got[0].TotalSeconds != 400 || got[0].EntryCount != 2 {
		t.Fatalf("unexpected first summary: %+v", got[0])
	}
	if got[1].CategoryID != "B" || got[1].TotalSeconds != 200 || got[1].EntryCount != 1 {
		t.Fatalf("unexpected second summary: %+v", got[1])
	}
	if math.Round(got[0].Percentage*10)/10 != 66.7 || math.Round(got[1].Percentage*10)/10 != 33.3 {
		t.Fatalf("unexpected percentages: %v %v", got[0].Percentage, got[1].Percentage)
	}
	if got[0].CategoryName != "Work" || got[0].CategoryColor != "#007aff" {
		t.Fatalf("category metadata missing: %+v", got[0])
	}
}

func TestAggregatePeriods(t *testing.T) {
	entries := []store.TimeEntry{
		entry("hour", "A", now.Add(-10*time.Minute), 10),
		entry("day", "A", now.Add(-3*time.Hour), 20),
		entry("week", "A", now.AddDate(0, 0, -2), 40),     // Monday
		entry("month", "A", now.AddDate(0, 0, -10), 80),   // still October
		entry("year", "A", now.AddDate(0, -6, 0), 160),    // April
		entry("older", "A", now.AddDate(-1, 0, 0), 320),   // last year
		entry("future", "A", now.AddDate(0, 0, 1), 10000), // tomorrow, outside day
	}
	tests := []struct {
		period timeunit.Period
		want   float64
	}{
		{timeunit.Hour, 10},
		{timeunit.Day, 30},
		{timeunit.Week, 10070},
		{timeunit.Month, 10150},
		{timeunit.Year, 10310},
		{timeunit.All, 10630},
	}
	for _, tt := range tests {
		t.Run(tt.period.String(), func(t *testing.T) {
			got := Aggregate(entries, nil, Query{UserID: "u1", Period: tt.period, Now: now})
			if total := GrandTotal(got); total != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, total)
			}
		})
	}
}

func TestAggregateSumsMatchFilteredEntries(t *testing.T) {
	var entries []store.TimeEntry
	for i := 0; i < 40; i++ {
		start := now.Add(-time.Duration(i*7) * time.Hour)
		entries = append(entries, entry("e", []string{"A", "B", "C"}[i%3], start, float64(i*13+1)))
	}
	for _, p := range timeunit.Periods {
		got := Aggregate(entries, nil, Query{UserID: "u1", Period: p, Now: now})

		var want float64
		for _, e := range entries {
			if timeunit.InPeriod(p, e.StartTime, now) {
				want += e.Duration
			}
		}
		if total := GrandTotal(got); !approxEqual(total, want) {
			t.Fatalf("%s: total %v != filtered sum %v", p, total, want)
		}
		if want > 0 {
			var pct float64
			for _, s := range got {
				pct += s.Percentage
			}
			if !approxEqual(pct, 100) {
				t.Fatalf("%s: percentages sum to %v", p, pct)
			}
		}
	}
}

func TestAggregateEmpty(t *testing.T) {
	got := Aggregate(nil, nil, Query{UserID: "u1", Period: timeunit.All, Now: now})
	if len(got) != 0 {
		t.Fatalf("expected empty result, got %v", got)
	}
}

func TestAggregateZeroTotal(t *testing.T) {
	entries := []store.TimeEntry{entry("e1", "A", now, 0), entry("e2", "B", now, 0)}
	got := Aggregate(entries, nil, Query{UserID: "u1", Period: timeunit.All, Now: now})
	if len(got) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(got))
	}
	for _, s := range got {
		if s.Percentage != 0 {
			t.Fatalf("expected 0%% with zero total, got %v", s.Percentage)
		}
	}
}

func TestAggregateSanitizesBadDurations(t *testing.T) {
	entries := []store.TimeEntry{
		entry("nan", "A", now, math.NaN()),
		entry("neg", "A", now, -50),
		entry("inf", "B", now, math.Inf(1)),
		entry("ok", "B", now, 60),
	}
	got := Aggregate(entries, nil, Query{UserID: "u1", Period: timeunit.All, Now: now})
	for _, s := range got {
		if math.IsNaN(s.TotalSeconds) || math.IsNaN(s.Percentage) || s.TotalSeconds < 0 {
			t.Fatalf("bad value leaked: %+v", s)
		}
	}
	if got[0].CategoryID != "B" || got[0].TotalSeconds != 60 || got[0].Percentage != 100 {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestAggregateUsesLiveDuration(t *testing.T) {
	resumed := now.Add(-30 * time.Second)
	running := store.TimeEntry{ID: "live", UserID: "u1", CategoryID: "A", StartTime: now.Add(-time.Minute),
		ResumedAt: &resumed, Duration: 15, IsActive: true}
	got := Aggregate([]store.TimeEntry{running}, nil, Query{UserID: "u1", Period: timeunit.Day, Now: now})
	if got[0].TotalSeconds != 45 {
		t.Fatalf("expected 15 frozen + 30 live, got %v", got[0].TotalSeconds)
	}
}

func TestAggregateUnknownCategory(t *testing.T) {
	entries := []store.TimeEntry{entry("e1", "ghost", now, 10)}
	got := Aggregate(entries, []store.Category{cat("A", "Work")}, Query{UserID: "u1", Period: timeunit.All, Now: now})
	if got[0].CategoryName != UnknownName || got[0].CategoryColor != UnknownColor || got[0].CategoryID != "ghost" {
		t.Fatalf("unexpected fallback: %+v", got[0])
	}
}

func TestAggregateFiltersUser(t *testing.T) {
	other := entry("x", "A", now, 500)
	other.UserID = "u2"
	entries := []store.TimeEntry{entry("e1", "A", now, 10), other}
	got := Aggregate(entries, nil, Query{UserID: "u1", Period: timeunit.All, Now: now})
	if GrandTotal(got) != 10 {
		t.Fatalf("other user's entry counted: %v", GrandTotal(got))
	}
}

func TestAggregateStableTies(t *testing.T) {
	entries := []store.TimeEntry{
		entry("e1", "C", now, 50),
		entry("e2", "A", now, 50),
		entry("e3", "B", now, 50),
		entry("e4", "D", now, 70),
	}
	got := Aggregate(entries, nil, Query{UserID: "u1", Period: timeunit.All, Now: now})
	order := ""
	for _, s := range got {
		order += s.CategoryID
	}
	if order != "DCAB" {
		t.Fatalf("expected DCAB, got %s", order)
	}
}

func TestAggregateInvalidPeriodPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for invalid period")
		}
	}()
	Aggregate([]store.TimeEntry{entry("e1", "A", now, 1)}, nil, Query{UserID: "u1", Period: timeunit.Period(99), Now: now})
}

// ============================================================
// Daily
// ============================================================

func TestDaily(t *testing.T) {
	entries := []store.TimeEntry{
		entry("e1", "A", now, 100),
		entry("e2", "B", now.Add(-time.Hour), 50),
		entry("e3", "A", now.AddDate(0, 0, -2), 30),
		entry("e4", "A", now.AddDate(0, 0, -9), 999),
	}
	from := now.AddDate(0, 0, -2)
	days := Daily(entries, []store.Category{cat("A", "Work")}, "u1", from, now, now)
	if len(days) != 3 {
		t.Fatalf("expected 3 days, got %d", len(days))
	}
	if days[0].Key != "2026-10-12" || days[2].Key != "2026-10-14" {
		t.Fatalf("unexpected keys: %s .. %s", days[0].Key, days[2].Key)
	}
	if days[0].TotalSeconds != 30 || days[1].TotalSeconds != 0 || days[2].TotalSeconds != 150 {
		t.Fatalf("unexpected totals: %v %v %v", days[0].TotalSeconds, days[1].TotalSeconds, days[2].TotalSeconds)
	}
	if len(days[2].ByCategory) != 2 || days[2].ByCategory[0].CategoryName != "Work" {
		t.Fatalf("unexpected breakdown: %+v", days[2].ByCategory)
	}
	if !days[0].Day.Equal(time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("day should start at midnight, got %v", days[0].Day)
	}
}

func TestDailyEmptyRange(t *testing.T) {
	if got := Daily(nil, nil, "u1", now, now.AddDate(0, 0, -1), now); len(got) != 0 {
		t.Fatalf("expected no days, got %d", len(got))
	}
}

// ============================================================
// Service
// ============================================================

func newTestService(t *testing.T) (*Service, store.Backend) {
	t.Helper()
	b := store.NewMapBackend()
	return NewService(b, WithClock(func() time.Time { return now })), b
}

func TestServiceForPeriod(t *testing.T) {
	ctx := context.Background()
	s, b := newTestService(t)
	for _, c := range []store.Category{cat("A", "Work"), cat("B", "Home")} {
		c.CreatedAt, c.UpdatedAt = now, now
		b.Put(ctx, store.Categories, c.Record())
	}
	for _, e := range []store.TimeEntry{
		entry("e1", "A", now.Add(-time.Hour), 100),
		entry("e2", "B", now.AddDate(0, -2, 0), 200),
	} {
		e.CreatedAt, e.UpdatedAt = now, now
		b.Put(ctx, store.TimeEntries, e.Record())
	}

	day, err := s.ForPeriod(ctx, "u1", timeunit.Day)
	if err != nil {
		t.Fatal(err)
	}
	if len(day) != 1 || day[0].CategoryName != "Work" || day[0].Percentage != 100 {
		t.Fatalf("unexpected day summary: %+v", day)
	}
	all, _ := s.ForPeriod(ctx, "u1", timeunit.All)
	if len(all) != 2 || all[0].CategoryName != "Home" {
		t.Fatalf("unexpected all summary: %+v", all)
	}

	entries, _ := s.Entries(ctx, "u1", timeunit.All)
	if len(entries) != 2 || entries[0].ID != "e1" {
		t.Fatalf("expected newest first, got %+v", entries)
	}

	days, err := s.Daily(ctx, "u1", 7)
	if err != nil {
		t.Fatal(err)
	}
	if len(days) != 7 || days[6].TotalSeconds != 100 {
		t.Fatalf("unexpected daily report: %+v", days)
	}
	if _, err := s.Daily(ctx, "u1", 0); !errs.IsValidation(err) {
		t.Fatalf("expected ValidationError, got %v", err)
	}

	cats, _ := s.Categories(ctx, "u1")
	if len(cats) != 2 {
		t.Fatalf("expected 2 categories, got %d", len(cats))
	}
}

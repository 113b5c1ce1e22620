// Package export writes time entries and summaries to CSV and JSON files.
package export

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/sadopc/itrack/internal/store"
	"github.com/sadopc/itrack/internal/summary"
)

// EntriesToCSV writes one row per entry. Active entries are written with
// their duration as observed at now.
func EntriesToCSV(entries []store.TimeEntry, categories []store.Category, now time.Time, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"ID", "Category", "Start", "End", "Duration (s)", "Duration", "Status"}); err != nil {
		return err
	}

	names := byID(categories)
	for _, e := range entries {
		secs := wholeSeconds(e.LiveDuration(now))
		row := []string{
			e.ID,
			categoryName(names, e.CategoryID),
			e.StartTime.Local().Format(time.RFC3339),
			formatEnd(e.EndTime),
			strconv.FormatInt(secs, 10),
			FormatDuration(secs),
			status(e),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

// SummariesToCSV writes one row per category summary.
func SummariesToCSV(summaries []summary.Summary, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"Category", "Color", "Entries", "Total (s)", "Total", "Percentage"}); err != nil {
		return err
	}
	for _, s := range summaries {
		secs := wholeSeconds(s.TotalSeconds)
		row := []string{
			s.CategoryName,
			s.CategoryColor,
			strconv.Itoa(s.EntryCount),
			strconv.FormatInt(secs, 10),
			FormatDuration(secs),
			strconv.FormatFloat(s.Percentage, 'f', 1, 64),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

// FormatDuration renders seconds as HH:MM:SS; hours may exceed 24.
func FormatDuration(secs int64) string {
	if secs < 0 {
		secs = 0
	}
	h := secs / 3600
	m := (secs % 3600) / 60
	s := secs % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func wholeSeconds(v float64) int64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return int64(math.Round(v))
}

func byID(categories []store.Category) map[string]store.Category {
	m := make(map[string]store.Category, len(categories))
	for _, c := range categories {
		m[c.ID] = c
	}
	return m
}

func categoryName(m map[string]store.Category, id string) string {
	if c, ok := m[id]; ok {
		return c.Name
	}
	return summary.UnknownName
}

func formatEnd(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Local().Format(time.RFC3339)
}

func status(e store.TimeEntry) string {
	switch {
	case e.Finalized():
		return "done"
	case e.IsActive:
		return store.StateRunning
	default:
		return store.StatePaused
	}
}

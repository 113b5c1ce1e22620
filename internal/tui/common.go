package tui

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/sadopc/itrack/internal/category"
	"github.com/sadopc/itrack/internal/goals"
	"github.com/sadopc/itrack/internal/summary"
	"github.com/sadopc/itrack/internal/timer"
)

// Deps is everything the UI needs from the library.
type Deps struct {
	UserID     string
	Timer      *timer.Timer
	Categories *category.Service
	Summary    *summary.Service
	Goals      *goals.Service
	ExportDir  string
	Now        func() time.Time
}

func (d Deps) now() time.Time {
	if d.Now == nil {
		return time.Now()
	}
	return d.Now()
}

// viewState represents the currently active view.
type viewState int

const (
	viewTimer viewState = iota
	viewCategories
	viewSummary
	viewGoals
)

var viewNames = []string{"Timer", "Categories", "Summary", "Goals"}

// --- Messages ---

type timerChangedMsg struct {
	text string
}

type statusMsg struct {
	text    string
	isError bool
}

type tickMsg time.Time

type exportDoneMsg struct {
	path string
}

// --- Helpers ---

func bg() context.Context { return context.Background() }

func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func formatSeconds(secs float64) string {
	if math.IsNaN(secs) || math.IsInf(secs, 0) {
		secs = 0
	}
	return formatDuration(time.Duration(secs * float64(time.Second)))
}

func formatHours(secs float64) string {
	return fmt.Sprintf("%.1fh", secs/3600)
}

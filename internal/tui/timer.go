package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/itrack/internal/store"
	"github.com/sadopc/itrack/internal/summary"
	"github.com/sadopc/itrack/internal/timer"
	"github.com/sadopc/itrack/internal/timeunit"
)

const recentLimit = 5

// pickItem is one row of the category picker; children are indented.
type pickItem struct {
	category store.Category
	depth    int
}

type timerModel struct {
	deps   Deps
	width  int
	height int

	items  []pickItem
	names  map[string]store.Category
	today  []summary.Summary
	recent []store.TimeEntry

	picking      bool
	switching    bool // picker replaces the running category instead of starting
	pickerCursor int
}

func newTimerModel(d Deps) timerModel {
	return timerModel{deps: d, names: map[string]store.Category{}}
}

func (m *timerModel) setSize(w, h int) {
	m.width = w
	m.height = h
}

type timerDataMsg struct {
	items  []pickItem
	all    []store.Category
	today  []summary.Summary
	recent []store.TimeEntry
}

func (m timerModel) loadData() tea.Cmd {
	d := m.deps
	return func() tea.Msg {
		tree, err := d.Categories.Tree(bg(), d.UserID)
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Load categories: %v", err), isError: true}
		}
		var items []pickItem
		for _, n := range tree {
			items = append(items, pickItem{category: n.Category})
			for _, c := range n.Children {
				items = append(items, pickItem{category: c, depth: 1})
			}
		}
		all, _ := d.Categories.All(bg(), d.UserID)
		today, _ := d.Summary.ForPeriod(bg(), d.UserID, timeunit.Day)
		entries, _ := d.Summary.Entries(bg(), d.UserID, timeunit.All)
		if len(entries) > recentLimit {
			entries = entries[:recentLimit]
		}
		return timerDataMsg{items: items, all: all, today: today, recent: entries}
	}
}

func (m timerModel) state() timer.State { return m.deps.Timer.State() }

func (m timerModel) update(msg tea.Msg) (timerModel, tea.Cmd) {
	switch msg := msg.(type) {
	case timerDataMsg:
		m.items = msg.items
		m.names = make(map[string]store.Category, len(msg.all))
		for _, c := range msg.all {
			m.names[c.ID] = c
		}
		m.today = msg.today
		m.recent = msg.recent
		if m.pickerCursor >= len(m.items) {
			m.pickerCursor = max(0, len(m.items)-1)
		}
		return m, nil

	case timerChangedMsg:
		return m, m.loadData()

	case tea.KeyMsg:
		if m.picking {
			return m.updatePicker(msg)
		}

		switch {
		case key.Matches(msg, keys.Start), key.Matches(msg, keys.Switch):
			if len(m.items) == 0 {
				return m, func() tea.Msg {
					return statusMsg{text: "No categories yet. Press 2 to create one.", isError: true}
				}
			}
			m.switching = key.Matches(msg, keys.Switch)
			if m.switching && m.state() == timer.Idle {
				return m, func() tea.Msg { return statusMsg{text: "Timer is not running", isError: true} }
			}
			m.picking = true
			m.pickerCursor = 0
			return m, nil

		case key.Matches(msg, keys.Stop):
			return m, m.stop()

		case key.Matches(msg, keys.Pause):
			return m, m.togglePause()
		}
	}
	return m, nil
}

func (m timerModel) updatePicker(msg tea.KeyMsg) (timerModel, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Up):
		if m.pickerCursor > 0 {
			m.pickerCursor--
		}
	case key.Matches(msg, keys.Down):
		if m.pickerCursor < len(m.items)-1 {
			m.pickerCursor++
		}
	case key.Matches(msg, keys.Enter):
		m.picking = false
		if len(m.items) == 0 {
			return m, nil
		}
		c := m.items[m.pickerCursor].category
		if m.switching {
			return m, m.switchTo(c)
		}
		return m, m.start(c)
	case key.Matches(msg, keys.Back):
		m.picking = false
	}
	return m, nil
}

func (m timerModel) start(c store.Category) tea.Cmd {
	t := m.deps.Timer
	return func() tea.Msg {
		if _, err := t.Start(bg(), c.ID); err != nil {
			return statusMsg{text: fmt.Sprintf("Start: %v", err), isError: true}
		}
		return timerChangedMsg{text: "Tracking " + c.Name}
	}
}

func (m timerModel) switchTo(c store.Category) tea.Cmd {
	t := m.deps.Timer
	return func() tea.Msg {
		if _, err := t.SwitchCategory(bg(), c.ID); err != nil {
			return statusMsg{text: fmt.Sprintf("Switch: %v", err), isError: true}
		}
		return timerChangedMsg{text: "Switched to " + c.Name}
	}
}

func (m timerModel) stop() tea.Cmd {
	t := m.deps.Timer
	return func() tea.Msg {
		e, err := t.Stop(bg())
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Stop: %v", err), isError: true}
		}
		if e == nil {
			return statusMsg{text: "Timer is not running"}
		}
		return timerChangedMsg{text: "Timer stopped at " + formatSeconds(e.Duration)}
	}
}

func (m timerModel) togglePause() tea.Cmd {
	t := m.deps.Timer
	return func() tea.Msg {
		switch t.State() {
		case timer.Running:
			if _, err := t.Pause(bg()); err != nil {
				return statusMsg{text: fmt.Sprintf("Pause: %v", err), isError: true}
			}
			return timerChangedMsg{text: "Timer paused"}
		case timer.Paused:
			if _, err := t.Resume(bg()); err != nil {
				return statusMsg{text: fmt.Sprintf("Resume: %v", err), isError: true}
			}
			return timerChangedMsg{text: "Timer resumed"}
		}
		return nil
	}
}

func (m timerModel) categoryName(id string) (string, string) {
	if c, ok := m.names[id]; ok {
		return c.Name, c.Color
	}
	return summary.UnknownName, summary.UnknownColor
}

func (m timerModel) view() string {
	if m.width < 20 {
		return "Terminal too small"
	}
	w := m.width - 4

	bottom := m.renderRecentPanel(w)
	if m.picking {
		bottom = m.renderPicker(w)
	}
	return lipgloss.JoinVertical(lipgloss.Left, m.renderClock(w), m.renderToday(w), bottom)
}

func (m timerModel) renderClock(w int) string {
	clock := formatDuration(m.deps.Timer.Elapsed())

	switch m.state() {
	case timer.Running, timer.Paused:
		style, indicator := clockRunningStyle, successStyle.Render("●  RUNNING")
		if m.state() == timer.Paused {
			style, indicator = clockPausedStyle, warningStyle.Render("⏸  PAUSED")
		}
		line := ""
		if e, ok := m.deps.Timer.Current(); ok {
			name, color := m.categoryName(e.CategoryID)
			line = dot(color) + " " + highlightStyle.Render(name)
		}
		content := lipgloss.JoinVertical(lipgloss.Center, style.Width(w-6).Render(clock), indicator, line)
		return activePanelStyle.Width(w).Render(content)
	}

	content := lipgloss.JoinVertical(lipgloss.Center,
		clockStyle.Width(w-6).Render("00:00:00"),
		mutedStyle.Render("■  IDLE"),
		mutedStyle.Render("Press s to start tracking"),
	)
	return panelStyle.Width(w).Render(content)
}

func (m timerModel) renderToday(w int) string {
	header := fmt.Sprintf("%s  %s", titleStyle.Render("Today"), highlightStyle.Render(formatSeconds(summary.GrandTotal(m.today))))
	if len(m.today) == 0 {
		return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, header, mutedStyle.Render("Nothing tracked today")))
	}

	rows := []string{header}
	for _, s := range m.today {
		rows = append(rows, fmt.Sprintf("  %s %-20s %s  %5.1f%%  (%d entries)",
			dot(s.CategoryColor), s.CategoryName, formatSeconds(s.TotalSeconds), s.Percentage, s.EntryCount))
	}
	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}

func (m timerModel) renderRecentPanel(w int) string {
	title := titleStyle.Render("Recent Entries")
	if len(m.recent) == 0 {
		return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, title, mutedStyle.Render("No entries yet")))
	}

	now := m.deps.now()
	rows := []string{title}
	for _, e := range m.recent {
		name, color := m.categoryName(e.CategoryID)
		status := "✓"
		switch {
		case e.IsActive:
			status = "●"
		case !e.Finalized():
			status = "⏸"
		}
		rows = append(rows, fmt.Sprintf("  %s %s  %s %-16s %s",
			status, e.StartTime.Local().Format("Jan 02 15:04"), dot(color), name, formatSeconds(e.LiveDuration(now))))
	}
	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}

func (m timerModel) renderPicker(w int) string {
	title := "Select Category"
	if m.switching {
		title = "Switch Category"
	}
	rows := []string{titleStyle.Render(title)}
	for i, it := range m.items {
		cursor, style := "  ", normalItemStyle
		if i == m.pickerCursor {
			cursor, style = "> ", selectedItemStyle
		}
		indent := strings.Repeat("  ", it.depth)
		rows = append(rows, style.Render(fmt.Sprintf("%s%s%s %s", cursor, indent, dot(it.category.Color), it.category.Name)))
	}
	rows = append(rows, "", mutedStyle.Render("  enter: select  esc: cancel"))
	return activePanelStyle.Width(w).Render(strings.Join(rows, "\n"))
}

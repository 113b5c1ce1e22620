// Package tui is the terminal front end. It holds no timing or aggregation
// logic of its own; every action goes through the library services.
package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/itrack/internal/export"
	"github.com/sadopc/itrack/internal/timer"
	"github.com/sadopc/itrack/internal/timeunit"
)

var exportFormats = []string{"Entries (CSV)", "Entries (JSON)", "Summary (CSV)"}

// App is the root Bubble Tea model.
type App struct {
	deps   Deps
	width  int
	height int

	activeView    viewState
	showHelp      bool
	exportPicking bool
	exportCursor  int

	timer      timerModel
	categories categoriesModel
	summary    summaryModel
	goals      goalsModel

	help   help.Model
	status string
}

func NewApp(d Deps) App {
	h := help.New()
	h.ShowAll = false

	return App{
		deps:       d,
		activeView: viewTimer,
		timer:      newTimerModel(d),
		categories: newCategoriesModel(d),
		summary:    newSummaryModel(d),
		goals:      newGoalsModel(d),
		help:       h,
	}
}

func (a App) Init() tea.Cmd {
	return tea.Batch(
		a.timer.loadData(),
		tickCmd(),
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.help.Width = msg.Width
		contentHeight := a.height - 4 // header + footer
		a.timer.setSize(a.width, contentHeight)
		a.categories.setSize(a.width, contentHeight)
		a.summary.setSize(a.width, contentHeight)
		a.goals.setSize(a.width, contentHeight)
		return a, nil

	case tea.KeyMsg:
		if a.exportPicking {
			return a.updateExportPicker(msg)
		}

		// A child view capturing input (form, picker) sees keys first.
		if a.isCapturing() {
			return a.updateActiveView(msg)
		}

		switch {
		case key.Matches(msg, keys.Export):
			a.exportPicking = true
			a.exportCursor = 0
			return a, nil
		case key.Matches(msg, keys.Quit):
			return a, tea.Quit
		case key.Matches(msg, keys.Help):
			a.showHelp = !a.showHelp
			a.help.ShowAll = a.showHelp
			return a, nil
		case key.Matches(msg, keys.Tab1):
			a.activeView = viewTimer
			return a, a.refreshCurrentView()
		case key.Matches(msg, keys.Tab2):
			a.activeView = viewCategories
			return a, a.refreshCurrentView()
		case key.Matches(msg, keys.Tab3):
			a.activeView = viewSummary
			return a, a.refreshCurrentView()
		case key.Matches(msg, keys.Tab4):
			a.activeView = viewGoals
			return a, a.refreshCurrentView()
		case key.Matches(msg, keys.Tab):
			a.activeView = (a.activeView + 1) % viewState(len(viewNames))
			return a, a.refreshCurrentView()
		}

	case tickMsg:
		// Views read elapsed time from the timer on render; the tick only
		// schedules the next frame.
		return a, tickCmd()

	case statusMsg:
		a.status = msg.text
		if msg.isError {
			a.status = errorStyle.Render(msg.text)
		}
		return a, nil

	case timerChangedMsg:
		a.status = msg.text
		var cmd tea.Cmd
		a.timer, cmd = a.timer.update(msg)
		return a, cmd

	case exportDoneMsg:
		a.status = "Exported to " + msg.path
		a.exportPicking = false
		return a, nil

	case timerDataMsg:
		var cmd tea.Cmd
		a.timer, cmd = a.timer.update(msg)
		return a, cmd
	case categoriesDataMsg:
		if msg.status != "" {
			a.status = msg.status
		}
		var cmd tea.Cmd
		a.categories, cmd = a.categories.update(msg)
		return a, cmd
	case summaryDataMsg:
		var cmd tea.Cmd
		a.summary, cmd = a.summary.update(msg)
		return a, cmd
	case goalsDataMsg:
		if msg.status != "" {
			a.status = msg.status
		}
		var cmd tea.Cmd
		a.goals, cmd = a.goals.update(msg)
		return a, cmd
	}

	return a.updateActiveView(msg)
}

func (a App) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch a.activeView {
	case viewTimer:
		a.timer, cmd = a.timer.update(msg)
	case viewCategories:
		a.categories, cmd = a.categories.update(msg)
	case viewSummary:
		a.summary, cmd = a.summary.update(msg)
	case viewGoals:
		a.goals, cmd = a.goals.update(msg)
	}
	return a, cmd
}

func (a App) isCapturing() bool {
	switch a.activeView {
	case viewTimer:
		return a.timer.picking
	case viewCategories:
		return a.categories.formActive
	case viewGoals:
		return a.goals.formActive
	}
	return false
}

func (a App) refreshCurrentView() tea.Cmd {
	switch a.activeView {
	case viewTimer:
		return a.timer.loadData()
	case viewCategories:
		return a.categories.refresh()
	case viewSummary:
		return a.summary.refresh()
	case viewGoals:
		return a.goals.refresh()
	}
	return nil
}

func (a App) View() string {
	if a.width == 0 {
		return "Loading..."
	}

	header := a.renderHeader()
	footer := a.renderFooter()

	var content string
	switch a.activeView {
	case viewTimer:
		content = a.timer.view()
	case viewCategories:
		content = a.categories.view()
	case viewSummary:
		content = a.summary.view()
	case viewGoals:
		content = a.goals.view()
	}

	contentHeight := max(a.height-lipgloss.Height(header)-lipgloss.Height(footer), 1)
	if a.exportPicking {
		content = a.renderExportPicker()
	}

	content = lipgloss.NewStyle().
		Width(a.width).
		Height(contentHeight).
		Render(content)

	return lipgloss.JoinVertical(lipgloss.Left, header, content, footer)
}

func (a App) renderHeader() string {
	var tabs []string
	for i, name := range viewNames {
		if viewState(i) == a.activeView {
			tabs = append(tabs, activeTabStyle.Render(name))
		} else {
			tabs = append(tabs, inactiveTabStyle.Render(name))
		}
	}
	tabRow := lipgloss.JoinHorizontal(lipgloss.Bottom, tabs...)

	title := lipgloss.NewStyle().Bold(true).Foreground(colorPrimary).Render("itrack")
	gap := max(a.width-lipgloss.Width(title)-lipgloss.Width(tabRow)-4, 1)
	spacer := lipgloss.NewStyle().Width(gap).Render("")

	return headerStyle.Render(lipgloss.JoinHorizontal(lipgloss.Bottom, title, spacer, tabRow))
}

func (a App) renderFooter() string {
	status := ""
	if a.status != "" {
		status = mutedStyle.Render(" " + a.status)
	}

	timerInfo := ""
	if t := a.deps.Timer; t != nil {
		switch t.State() {
		case timer.Running:
			timerInfo = successStyle.Render(" ● " + formatDuration(t.Elapsed()))
		case timer.Paused:
			timerInfo = warningStyle.Render(" ⏸ " + formatDuration(t.Elapsed()))
		}
	}

	left := footerStyle.Render(a.help.View(keys))
	right := timerInfo + status
	gap := max(a.width-lipgloss.Width(left)-lipgloss.Width(right)-2, 1)
	spacer := lipgloss.NewStyle().Width(gap).Render("")

	return lipgloss.JoinHorizontal(lipgloss.Bottom, left, spacer, right)
}

func (a App) renderExportPicker() string {
	rows := []string{titleStyle.Render("Export"), ""}
	for i, f := range exportFormats {
		cursor, style := "  ", normalItemStyle
		if i == a.exportCursor {
			cursor, style = "> ", selectedItemStyle
		}
		rows = append(rows, style.Render(cursor+f))
	}
	rows = append(rows, "", mutedStyle.Render(fmt.Sprintf("  summary uses the %s period", a.summary.period)))
	rows = append(rows, mutedStyle.Render("  enter: export  esc: cancel"))

	return activePanelStyle.Width(a.width - 4).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (a App) updateExportPicker(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Up):
		if a.exportCursor > 0 {
			a.exportCursor--
		}
	case key.Matches(msg, keys.Down):
		if a.exportCursor < len(exportFormats)-1 {
			a.exportCursor++
		}
	case key.Matches(msg, keys.Enter):
		a.exportPicking = false
		return a, a.doExport(a.exportCursor, a.summary.period)
	case key.Matches(msg, keys.Back):
		a.exportPicking = false
	}
	return a, nil
}

func (a App) exportDir() string {
	if a.deps.ExportDir != "" {
		return a.deps.ExportDir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

func (a App) doExport(format int, period timeunit.Period) tea.Cmd {
	d, dir := a.deps, a.exportDir()
	return func() tea.Msg {
		now := d.now()
		stamp := now.Format("2006-01-02")

		var path string
		switch format {
		case 0, 1:
			entries, err := d.Summary.Entries(bg(), d.UserID, timeunit.All)
			if err != nil {
				return statusMsg{text: fmt.Sprintf("Export error: %v", err), isError: true}
			}
			cats, err := d.Summary.Categories(bg(), d.UserID)
			if err != nil {
				return statusMsg{text: fmt.Sprintf("Export error: %v", err), isError: true}
			}
			if format == 0 {
				path = filepath.Join(dir, fmt.Sprintf("itrack-entries-%s.csv", stamp))
				err = export.EntriesToCSV(entries, cats, now, path)
			} else {
				path = filepath.Join(dir, fmt.Sprintf("itrack-entries-%s.json", stamp))
				err = export.EntriesToJSON(entries, cats, now, path)
			}
			if err != nil {
				return statusMsg{text: fmt.Sprintf("Export error: %v", err), isError: true}
			}
		default:
			sums, err := d.Summary.ForPeriod(bg(), d.UserID, period)
			if err != nil {
				return statusMsg{text: fmt.Sprintf("Export error: %v", err), isError: true}
			}
			path = filepath.Join(dir, fmt.Sprintf("itrack-summary-%s-%s.csv", period, stamp))
			if err := export.SummariesToCSV(sums, path); err != nil {
				return statusMsg{text: fmt.Sprintf("Export error: %v", err), isError: true}
			}
		}
		return exportDoneMsg{path: path}
	}
}

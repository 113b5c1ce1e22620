package tui

import (
	"fmt"
	"strings"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/itrack/internal/summary"
	"github.com/sadopc/itrack/internal/timeunit"
)

type chartMode int

const (
	chartByCategory chartMode = iota
	chartDaily
)

const dailyDays = 7

type summaryModel struct {
	deps   Deps
	width  int
	height int

	period    timeunit.Period
	mode      chartMode
	summaries []summary.Summary
	days      []summary.DayTotal

	chart barchart.Model
}

func newSummaryModel(d Deps) summaryModel {
	return summaryModel{
		deps:   d,
		period: timeunit.Day,
		chart:  barchart.New(60, 12),
	}
}

func (s *summaryModel) setSize(w, h int) {
	s.width = w
	s.height = h
}

type summaryDataMsg struct {
	summaries []summary.Summary
	days      []summary.DayTotal
}

func (s summaryModel) refresh() tea.Cmd {
	d, period := s.deps, s.period
	return func() tea.Msg {
		sums, err := d.Summary.ForPeriod(bg(), d.UserID, period)
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Load summary: %v", err), isError: true}
		}
		days, err := d.Summary.Daily(bg(), d.UserID, dailyDays)
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Load summary: %v", err), isError: true}
		}
		return summaryDataMsg{summaries: sums, days: days}
	}
}

func (s summaryModel) update(msg tea.Msg) (summaryModel, tea.Cmd) {
	switch msg := msg.(type) {
	case summaryDataMsg:
		s.summaries = msg.summaries
		s.days = msg.days
		s.buildChart()
		return s, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Left):
			if s.period > timeunit.Hour {
				s.period--
			}
			return s, s.refresh()
		case key.Matches(msg, keys.Right):
			if s.period < timeunit.All {
				s.period++
			}
			return s, s.refresh()
		case key.Matches(msg, keys.Mode):
			if s.mode == chartByCategory {
				s.mode = chartDaily
			} else {
				s.mode = chartByCategory
			}
			s.buildChart()
			return s, nil
		}
	}
	return s, nil
}

func (s *summaryModel) buildChart() {
	chartWidth := max(s.width-8, 20)
	chartHeight := 12
	if s.height > 30 {
		chartHeight = 16
	}
	s.chart = barchart.New(chartWidth, chartHeight)

	var bars []barchart.BarData
	switch s.mode {
	case chartDaily:
		for _, day := range s.days {
			var values []barchart.BarValue
			for _, c := range day.ByCategory {
				values = append(values, barchart.BarValue{
					Name:  c.CategoryName,
					Value: c.TotalSeconds / 3600,
					Style: lipgloss.NewStyle().Foreground(termColor(c.CategoryColor)),
				})
			}
			if len(values) == 0 {
				values = []barchart.BarValue{{Value: 0, Style: lipgloss.NewStyle().Foreground(colorSubtle)}}
			}
			bars = append(bars, barchart.BarData{Label: day.Day.Format("Mon 02"), Values: values})
		}
	default:
		for _, c := range s.summaries {
			bars = append(bars, barchart.BarData{
				Label: truncate(c.CategoryName, 8),
				Values: []barchart.BarValue{{
					Name:  c.CategoryName,
					Value: c.TotalSeconds / 3600,
					Style: lipgloss.NewStyle().Foreground(termColor(c.CategoryColor)),
				}},
			})
		}
	}

	if len(bars) > 0 {
		s.chart.PushAll(bars)
	}
	s.chart.Draw()
}

func (s summaryModel) view() string {
	w := s.width - 4

	var tabs []string
	for _, p := range timeunit.Periods {
		name := periodLabel(p)
		if p == s.period {
			tabs = append(tabs, activeTabStyle.Render(name))
		} else {
			tabs = append(tabs, inactiveTabStyle.Render(name))
		}
	}
	modeLabel := "by category"
	if s.mode == chartDaily {
		modeLabel = fmt.Sprintf("last %d days", dailyDays)
	}
	header := lipgloss.JoinHorizontal(lipgloss.Bottom,
		titleStyle.Render("Summary"), "  ", lipgloss.JoinHorizontal(lipgloss.Bottom, tabs...), "  ", mutedStyle.Render(modeLabel),
	)

	nav := mutedStyle.Render("  ←/→: period  m: chart mode  e: export")

	return panelStyle.Width(w).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			header, "", s.chart.View(), "", s.renderTable(w), "", nav,
		),
	)
}

func (s summaryModel) renderTable(w int) string {
	if len(s.summaries) == 0 {
		return mutedStyle.Render("  No data for this period")
	}

	rows := []string{
		mutedStyle.Render(fmt.Sprintf("  %-22s %10s %8s %8s", "Category", "Duration", "Share", "Entries")),
		mutedStyle.Render("  " + strings.Repeat("─", min(w-6, 52))),
	}
	for _, c := range s.summaries {
		rows = append(rows, fmt.Sprintf("  %s %-20s %10s %7.1f%% %8d",
			dot(c.CategoryColor), c.CategoryName, formatSeconds(c.TotalSeconds), c.Percentage, c.EntryCount))
	}
	rows = append(rows, fmt.Sprintf("  %-22s %10s", "Total", highlightStyle.Render(formatHours(summary.GrandTotal(s.summaries)))))
	return strings.Join(rows, "\n")
}

func periodLabel(p timeunit.Period) string {
	name := p.String()
	return strings.ToUpper(name[:1]) + name[1:]
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

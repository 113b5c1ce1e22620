package tui

import "github.com/charmbracelet/lipgloss"

// Palette follows the system colors used by the default categories.
var (
	colorPrimary   = lipgloss.Color("#007AFF")
	colorMuted     = lipgloss.Color("#8E8E93")
	colorSuccess   = lipgloss.Color("#34C759")
	colorWarning   = lipgloss.Color("#FF9500")
	colorError     = lipgloss.Color("#FF3B30")
	colorFg        = lipgloss.Color("#E5E5EA")
	colorSubtle    = lipgloss.Color("#3A3A3C")
	colorHighlight = lipgloss.Color("#5AC8FA")
)

var (
	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary).
			Border(lipgloss.NormalBorder(), false, false, true, false).
			BorderForeground(colorPrimary).
			Padding(0, 2)

	inactiveTabStyle = lipgloss.NewStyle().
				Foreground(colorMuted).
				Padding(0, 2)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorSubtle).
			Padding(1, 2)

	activePanelStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(colorPrimary).
				Padding(1, 2)

	clockStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorMuted).
			Align(lipgloss.Center)

	clockRunningStyle = clockStyle.Foreground(colorSuccess)
	clockPausedStyle  = clockStyle.Foreground(colorWarning)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorFg)

	successStyle = lipgloss.NewStyle().
			Foreground(colorSuccess)

	warningStyle = lipgloss.NewStyle().
			Foreground(colorWarning)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorError)

	mutedStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	highlightStyle = lipgloss.NewStyle().
			Foreground(colorHighlight)

	doneStyle = mutedStyle.Strikethrough(true)

	headerStyle = lipgloss.NewStyle().
			Padding(0, 1)

	footerStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			Padding(0, 1)

	selectedItemStyle = lipgloss.NewStyle().
				Foreground(colorPrimary).
				Bold(true)

	normalItemStyle = lipgloss.NewStyle().
			Foreground(colorFg)
)

// dot renders a colored bullet for a category color.
// termColor drops the alpha pair of #rrggbbaa; terminals have no alpha.
func termColor(color string) lipgloss.Color {
	if len(color) == 9 {
		color = color[:7]
	}
	return lipgloss.Color(color)
}

func dot(color string) string {
	return lipgloss.NewStyle().Foreground(termColor(color)).Render("●")
}

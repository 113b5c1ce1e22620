package tui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/itrack/internal/store"
)

type goalsModel struct {
	deps   Deps
	width  int
	height int

	// goals holds today's open goals followed by today's completed ones.
	goals  []store.Goal
	cursor int

	formActive  bool
	form        *huh.Form
	formContent *string
}

func newGoalsModel(d Deps) goalsModel {
	content := ""
	return goalsModel{deps: d, formContent: &content}
}

func (g *goalsModel) setSize(w, h int) {
	g.width = w
	g.height = h
}

type goalsDataMsg struct {
	goals  []store.Goal
	status string
}

func (g goalsModel) refresh() tea.Cmd {
	d := g.deps
	return func() tea.Msg { return loadGoals(d, "") }
}

func loadGoals(d Deps, status string) tea.Msg {
	active, err := d.Goals.Active(bg(), d.UserID)
	if err != nil {
		return statusMsg{text: fmt.Sprintf("Load goals: %v", err), isError: true}
	}
	done, err := d.Goals.Completed(bg(), d.UserID)
	if err != nil {
		return statusMsg{text: fmt.Sprintf("Load goals: %v", err), isError: true}
	}
	return goalsDataMsg{goals: append(active, done...), status: status}
}

func (g goalsModel) update(msg tea.Msg) (goalsModel, tea.Cmd) {
	if g.formActive && g.form != nil {
		return g.updateForm(msg)
	}

	switch msg := msg.(type) {
	case goalsDataMsg:
		g.goals = msg.goals
		if g.cursor >= len(g.goals) {
			g.cursor = max(0, len(g.goals)-1)
		}
		return g, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Up):
			if g.cursor > 0 {
				g.cursor--
			}
		case key.Matches(msg, keys.Down):
			if g.cursor < len(g.goals)-1 {
				g.cursor++
			}
		case key.Matches(msg, keys.New):
			return g.showForm()
		case key.Matches(msg, keys.Toggle), key.Matches(msg, keys.Enter):
			if len(g.goals) > 0 {
				return g, g.toggle(g.goals[g.cursor])
			}
		case key.Matches(msg, keys.Delete):
			if len(g.goals) > 0 {
				return g, g.delete(g.goals[g.cursor])
			}
		}
	}
	return g, nil
}

func (g goalsModel) showForm() (goalsModel, tea.Cmd) {
	*g.formContent = ""
	g.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Goal for today").Value(g.formContent).Validate(func(s string) error {
				if strings.TrimSpace(s) == "" {
					return errors.New("goal is required")
				}
				return nil
			}),
		),
	).WithShowHelp(true).WithShowErrors(true)

	g.formActive = true
	return g, g.form.Init()
}

func (g goalsModel) updateForm(msg tea.Msg) (goalsModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && msg.String() == "esc" {
		g.formActive = false
		g.form = nil
		return g, nil
	}

	form, cmd := g.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		g.form = f
	}

	if g.form.State == huh.StateCompleted {
		g.formActive = false
		return g, g.add(*g.formContent)
	}
	return g, cmd
}

func (g goalsModel) add(content string) tea.Cmd {
	d := g.deps
	return func() tea.Msg {
		added, err := d.Goals.Add(bg(), d.UserID, content)
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Add goal: %v", err), isError: true}
		}
		return loadGoals(d, "Added "+added.Content)
	}
}

func (g goalsModel) toggle(goal store.Goal) tea.Cmd {
	d := g.deps
	return func() tea.Msg {
		updated, err := d.Goals.Toggle(bg(), d.UserID, goal.ID)
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Toggle goal: %v", err), isError: true}
		}
		status := "Reopened: " + updated.Content
		if updated.IsCompleted {
			status = "Completed: " + updated.Content
		}
		return loadGoals(d, status)
	}
}

func (g goalsModel) delete(goal store.Goal) tea.Cmd {
	d := g.deps
	return func() tea.Msg {
		if err := d.Goals.Delete(bg(), d.UserID, goal.ID); err != nil {
			return statusMsg{text: fmt.Sprintf("Delete goal: %v", err), isError: true}
		}
		return loadGoals(d, "Deleted goal")
	}
}

func (g goalsModel) view() string {
	w := g.width - 4
	title := titleStyle.Render("Today's Goals")

	if g.formActive && g.form != nil {
		return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, title, "", g.form.View()))
	}

	if len(g.goals) == 0 {
		return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left,
			title, "", mutedStyle.Render("No goals for today. Press n to add one.")))
	}

	open := 0
	for _, goal := range g.goals {
		if !goal.IsCompleted {
			open++
		}
	}
	rows := []string{fmt.Sprintf("%s  %s", title, mutedStyle.Render(fmt.Sprintf("%d open, %d done", open, len(g.goals)-open))), ""}
	for i, goal := range g.goals {
		cursor, style, box := "  ", normalItemStyle, "[ ]"
		if goal.IsCompleted {
			style, box = doneStyle, successStyle.Render("[✓]")
		}
		if i == g.cursor {
			cursor = "> "
			if !goal.IsCompleted {
				style = selectedItemStyle
			}
		}
		rows = append(rows, fmt.Sprintf("%s%s %s", cursor, box, style.Render(goal.Content)))
	}
	rows = append(rows, "", mutedStyle.Render("  n: new  space: toggle  d: delete"))

	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}

package tui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/itrack/internal/category"
	"github.com/sadopc/itrack/internal/store"
)

var categoryColors = []string{"#007AFF", "#34C759", "#FF9500", "#FF3B30", "#AF52DE", "#5AC8FA", "#FF2D92", "#30D158"}

type formKind int

const (
	formNone formKind = iota
	formCreate
	formDelete
)

type categoriesModel struct {
	deps   Deps
	width  int
	height int

	// path is the drill-down stack; the last element is the parent whose
	// children are listed. Empty lists top-level categories.
	path       []store.Category
	categories []store.Category
	cursor     int

	formActive bool
	form       *huh.Form
	formKind   formKind

	// Form field pointers survive value copies of the model.
	formName    *string
	formColor   *string
	formIcon    *string
	formConfirm *bool
}

func newCategoriesModel(d Deps) categoriesModel {
	name, color, icon, confirm := "", categoryColors[0], "", false
	return categoriesModel{
		deps:        d,
		formName:    &name,
		formColor:   &color,
		formIcon:    &icon,
		formConfirm: &confirm,
	}
}

func (c *categoriesModel) setSize(w, h int) {
	c.width = w
	c.height = h
}

type categoriesDataMsg struct {
	categories []store.Category
	status     string
}

func (c categoriesModel) parentID() *string {
	if len(c.path) == 0 {
		return nil
	}
	id := c.path[len(c.path)-1].ID
	return &id
}

func (c categoriesModel) refresh() tea.Cmd {
	d, parent := c.deps, c.parentID()
	return func() tea.Msg { return loadCategories(d, parent, "") }
}

func loadCategories(d Deps, parent *string, status string) tea.Msg {
	cats, err := d.Categories.List(bg(), d.UserID, parent)
	if err != nil {
		return statusMsg{text: fmt.Sprintf("Load categories: %v", err), isError: true}
	}
	return categoriesDataMsg{categories: cats, status: status}
}

func (c categoriesModel) update(msg tea.Msg) (categoriesModel, tea.Cmd) {
	if c.formActive && c.form != nil {
		return c.updateForm(msg)
	}

	switch msg := msg.(type) {
	case categoriesDataMsg:
		c.categories = msg.categories
		if c.cursor >= len(c.categories) {
			c.cursor = max(0, len(c.categories)-1)
		}
		return c, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Up):
			if c.cursor > 0 {
				c.cursor--
			}
		case key.Matches(msg, keys.Down):
			if c.cursor < len(c.categories)-1 {
				c.cursor++
			}
		case key.Matches(msg, keys.Enter):
			if len(c.categories) > 0 {
				c.path = append(c.path, c.categories[c.cursor])
				c.cursor = 0
				return c, c.refresh()
			}
		case key.Matches(msg, keys.Back):
			if len(c.path) > 0 {
				c.path = c.path[:len(c.path)-1]
				c.cursor = 0
				return c, c.refresh()
			}
		case key.Matches(msg, keys.New):
			return c.showCreateForm()
		case key.Matches(msg, keys.Delete):
			if len(c.categories) > 0 {
				return c.showDeleteForm()
			}
		}
	}
	return c, nil
}

func (c categoriesModel) showCreateForm() (categoriesModel, tea.Cmd) {
	*c.formName = ""
	*c.formColor = categoryColors[0]
	*c.formIcon = ""
	c.formKind = formCreate

	colorOptions := make([]huh.Option[string], len(categoryColors))
	for i, col := range categoryColors {
		colorOptions[i] = huh.NewOption(dot(col)+" "+col, col)
	}

	c.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Category Name").Value(c.formName).Validate(func(s string) error {
				if strings.TrimSpace(s) == "" {
					return errors.New("name is required")
				}
				return nil
			}),
			huh.NewSelect[string]().Title("Color").Options(colorOptions...).Value(c.formColor),
			huh.NewInput().Title("Icon").Placeholder(category.DefaultIcon).Value(c.formIcon),
		),
	).WithShowHelp(true).WithShowErrors(true)

	c.formActive = true
	return c, c.form.Init()
}

func (c categoriesModel) showDeleteForm() (categoriesModel, tea.Cmd) {
	*c.formConfirm = false
	c.formKind = formDelete
	target := c.categories[c.cursor]

	c.form = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Delete %q?", target.Name)).
				Description("Subcategories and their time entries are deleted too.").
				Affirmative("Delete").
				Negative("Cancel").
				Value(c.formConfirm),
		),
	)

	c.formActive = true
	return c, c.form.Init()
}

func (c categoriesModel) updateForm(msg tea.Msg) (categoriesModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && msg.String() == "esc" {
		c.formActive = false
		c.form = nil
		return c, nil
	}

	form, cmd := c.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		c.form = f
	}

	if c.form.State != huh.StateCompleted {
		return c, cmd
	}
	c.formActive = false

	switch c.formKind {
	case formCreate:
		return c, c.create(category.Input{
			Name:     *c.formName,
			Color:    *c.formColor,
			Icon:     *c.formIcon,
			ParentID: c.parentID(),
		})
	case formDelete:
		if *c.formConfirm && c.cursor < len(c.categories) {
			return c, c.delete(c.categories[c.cursor])
		}
	}
	return c, nil
}

func (c categoriesModel) create(in category.Input) tea.Cmd {
	d := c.deps
	return func() tea.Msg {
		created, err := d.Categories.Create(bg(), d.UserID, in)
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Create: %v", err), isError: true}
		}
		return loadCategories(d, in.ParentID, "Created "+created.Name)
	}
}

// delete also stops the timer through the service's delete hooks when it
// was tracking one of the removed categories.
func (c categoriesModel) delete(target store.Category) tea.Cmd {
	d, parent := c.deps, c.parentID()
	return func() tea.Msg {
		if err := d.Categories.Delete(bg(), d.UserID, target.ID); err != nil {
			return statusMsg{text: fmt.Sprintf("Delete: %v", err), isError: true}
		}
		return loadCategories(d, parent, "Deleted "+target.Name)
	}
}

func (c categoriesModel) breadcrumb() string {
	parts := []string{"Categories"}
	for _, p := range c.path {
		parts = append(parts, p.Name)
	}
	return strings.Join(parts, " › ")
}

func (c categoriesModel) view() string {
	w := c.width - 4
	title := titleStyle.Render(c.breadcrumb())

	if c.formActive && c.form != nil {
		return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, title, "", c.form.View()))
	}

	if len(c.categories) == 0 {
		hint := "No categories yet. Press n to create one."
		if len(c.path) > 0 {
			hint = "No subcategories. Press n to add one, esc to go back."
		}
		return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, title, "", mutedStyle.Render(hint)))
	}

	rows := []string{title, ""}
	rows = append(rows, mutedStyle.Render(fmt.Sprintf("  %-3s %-24s %-10s %s", "", "Name", "Color", "Icon")))
	for i, cat := range c.categories {
		cursor, style := "  ", normalItemStyle
		if i == c.cursor {
			cursor, style = "> ", selectedItemStyle
		}
		rows = append(rows, style.Render(fmt.Sprintf("%s%s %-24s %-10s %s", cursor, dot(cat.Color), cat.Name, cat.Color, cat.Icon)))
	}
	rows = append(rows, "", mutedStyle.Render("  n: new  d: delete  enter: subcategories  esc: up"))

	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}

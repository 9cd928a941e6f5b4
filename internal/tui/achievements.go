package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/focusquest/internal/progress"
)

type achievementsModel struct {
	engine *progress.Engine
	width  int
	height int

	list   []progress.Achievement
	cursor int
}

func newAchievementsModel(e *progress.Engine) achievementsModel {
	return achievementsModel{engine: e}
}

func (a *achievementsModel) setSize(w, h int) {
	a.width = w
	a.height = h
}

type achievementsDataMsg struct {
	list []progress.Achievement
}

func (a achievementsModel) refresh() tea.Cmd {
	return func() tea.Msg {
		return achievementsDataMsg{list: a.engine.Achievements()}
	}
}

func (a achievementsModel) update(msg tea.Msg) (achievementsModel, tea.Cmd) {
	switch msg := msg.(type) {
	case achievementsDataMsg:
		a.list = msg.list
		if a.cursor >= len(a.list) {
			a.cursor = max(len(a.list)-1, 0)
		}
		return a, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Up):
			if a.cursor > 0 {
				a.cursor--
			}
		case key.Matches(msg, keys.Down):
			if a.cursor < len(a.list)-1 {
				a.cursor++
			}
		}
	}
	return a, nil
}

func (a achievementsModel) unlocked() int {
	n := 0
	for _, ach := range a.list {
		if ach.Unlocked {
			n++
		}
	}
	return n
}

func (a achievementsModel) view() string {
	w := a.width - 4

	title := titleStyle.Render("Achievements")
	count := mutedStyle.Render(fmt.Sprintf("  %d/%d unlocked", a.unlocked(), len(a.list)))

	var rows []string
	rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Bottom, title, count), "")

	for i, ach := range a.list {
		cursor := "  "
		if i == a.cursor {
			cursor = "> "
		}
		mark := mutedStyle.Render("○")
		name := mutedStyle.Render(ach.Name)
		if ach.Unlocked {
			mark = successStyle.Render("✓")
			name = normalItemStyle.Render(ach.Name)
		}
		if i == a.cursor {
			name = selectedItemStyle.Render(ach.Name)
		}
		rows = append(rows, fmt.Sprintf("%s%s %s", cursor, mark, name))
	}

	if a.cursor < len(a.list) {
		sel := a.list[a.cursor]
		detail := sel.Description
		if sel.Unlocked && !sel.UnlockDate.IsZero() {
			detail += fmt.Sprintf(" · unlocked %s", sel.UnlockDate)
		}
		rows = append(rows, "", "  "+highlightStyle.Render(detail))
	}

	rows = append(rows, "", mutedStyle.Render("  ↑/↓: browse"))
	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}

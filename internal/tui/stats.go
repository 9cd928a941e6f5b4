package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/focusquest/internal/progress"
	"github.com/sadopc/focusquest/internal/store"
	"github.com/sadopc/focusquest/internal/timer"
)

type statsModel struct {
	store  *store.Store
	engine *progress.Engine
	clock  timer.Clock
	width  int
	height int

	offset  int // weeks back from the current one
	summary progress.Summary
	week    []progress.DayCount
	focus   []store.DailyTotal

	chart barchart.Model
}

func newStatsModel(s *store.Store, e *progress.Engine, clock timer.Clock) statsModel {
	return statsModel{
		store:  s,
		engine: e,
		clock:  clock,
		chart:  barchart.New(60, 12),
	}
}

func (r *statsModel) setSize(w, h int) {
	r.width = w
	r.height = h
	r.buildChart()
}

type statsDataMsg struct {
	summary progress.Summary
	week    []progress.DayCount
	focus   []store.DailyTotal
}

// day returns a moment inside the viewed week.
func (r statsModel) day() time.Time {
	return r.clock.Now().AddDate(0, 0, -7*r.offset)
}

func (r statsModel) refresh() tea.Cmd {
	return func() tea.Msg {
		today := r.day()
		msg := statsDataMsg{
			summary: r.engine.Summary(r.clock.Now()),
			week:    r.engine.WeeklyBreakdown(today),
		}
		if r.store != nil && len(msg.week) == 7 {
			from, err := msg.week[0].Date.In(today.Location())
			if err == nil {
				msg.focus, _ = r.store.DailyTotals(from, from.AddDate(0, 0, 7))
			}
		}
		return msg
	}
}

func (r statsModel) update(msg tea.Msg) (statsModel, tea.Cmd) {
	switch msg := msg.(type) {
	case statsDataMsg:
		r.summary = msg.summary
		r.week = msg.week
		r.focus = msg.focus
		r.buildChart()
		return r, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Left):
			r.offset++
			return r, r.refresh()
		case key.Matches(msg, keys.Right):
			if r.offset > 0 {
				r.offset--
			}
			return r, r.refresh()
		}
	}
	return r, nil
}

func (r *statsModel) buildChart() {
	chartWidth := max(r.width-8, 20)
	chartHeight := 10
	if r.height > 30 {
		chartHeight = 14
	}

	r.chart = barchart.New(chartWidth, chartHeight)

	var bars []barchart.BarData
	for _, d := range r.week {
		label := string(d.Date)
		if t, err := d.Date.Time(); err == nil {
			label = t.Format("Mon 02")
		}
		style := lipgloss.NewStyle().Foreground(colorPrimary)
		if d.Count == 0 {
			style = lipgloss.NewStyle().Foreground(colorSubtle)
		}
		bars = append(bars, barchart.BarData{
			Label: label,
			Values: []barchart.BarValue{{
				Name:  "sessions",
				Value: float64(d.Count),
				Style: style,
			}},
		})
	}

	r.chart.PushAll(bars)
	r.chart.Draw()
}

func (r statsModel) view() string {
	w := r.width - 4

	title := titleStyle.Render("Stats")
	rangeLabel := ""
	if len(r.week) == 7 {
		rangeLabel = mutedStyle.Render(fmt.Sprintf("%s — %s", r.week[0].Date, r.week[6].Date))
	}
	header := lipgloss.JoinHorizontal(lipgloss.Bottom, title, "  ", rangeLabel)

	nav := mutedStyle.Render("  ←/→: previous/next week")

	return panelStyle.Width(w).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			header, "", r.renderSummary(), "", r.chart.View(), "", r.renderFocusTable(w), "", nav,
		),
	)
}

func (r statsModel) renderSummary() string {
	s := r.summary
	label := lipgloss.NewStyle().Width(18)
	rows := [][2]string{
		{"Level", fmt.Sprintf("%d (%d XP, %d to next)", s.Level, s.Experience, s.XPToNextLevel)},
		{"Sessions", fmt.Sprintf("%d total · %d this week · %d today", s.TotalSessions, s.WeeklySessions, s.TodaySessions)},
		{"Focus time", s.Focus.String()},
		{"Streak", fmt.Sprintf("%d days (best %d)", s.CurrentStreak, s.LongestStreak)},
		{"Achievements", fmt.Sprintf("%d/%d", s.UnlockedCount, s.AchievementCount)},
	}
	var lines []string
	for _, row := range rows {
		lines = append(lines, "  "+label.Render(row[0])+highlightStyle.Render(row[1]))
	}
	return strings.Join(lines, "\n")
}

func (r statsModel) renderFocusTable(w int) string {
	if len(r.focus) == 0 {
		return mutedStyle.Render("  No logged sessions this week")
	}

	var rows []string
	rows = append(rows, mutedStyle.Render(fmt.Sprintf("  %-12s %10s %10s", "Date", "Focus", "Sessions")))
	rows = append(rows, mutedStyle.Render("  "+strings.Repeat("─", min(w-6, 34))))
	var total int64
	for _, d := range r.focus {
		total += d.FocusSeconds
		rows = append(rows, fmt.Sprintf("  %-12s %10s %10d", d.Date, formatSeconds(d.FocusSeconds), d.Sessions))
	}
	rows = append(rows, mutedStyle.Render(fmt.Sprintf("  %-12s %10s", "Total", formatHours(total))))
	return strings.Join(rows, "\n")
}

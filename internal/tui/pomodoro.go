package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	prog "github.com/sadopc/focusquest/internal/progress"
	"github.com/sadopc/focusquest/internal/timer"
)

const bell = "\a"

type pomodoroModel struct {
	engine *prog.Engine
	width  int
	height int

	timer   timerModel
	bar     progress.Model
	summary prog.Summary
}

func newPomodoroModel(e *prog.Engine, t timerModel) pomodoroModel {
	m := pomodoroModel{
		engine: e,
		timer:  t,
		bar:    newBar(40),
	}
	m.refreshSummary()
	return m
}

func newBar(width int) progress.Model {
	return progress.New(
		progress.WithGradient(string(colorPrimary), string(colorAccent)),
		progress.WithWidth(width),
		progress.WithoutPercentage(),
	)
}

func (p *pomodoroModel) setSize(w, h int) {
	p.width = w
	p.height = h
	p.bar.Width = max(10, min(60, w-16))
}

func (p *pomodoroModel) refreshSummary() {
	if p.engine != nil {
		p.summary = p.engine.Summary(p.timer.clock.Now())
	}
}

func (p pomodoroModel) update(msg tea.Msg) (pomodoroModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		before := p.timer.snapshot()
		done := p.timer.tick()
		cmd := p.handle(done)
		if p.timer.prefs.SoundTick && crossedMinute(before, p.timer.snapshot()) {
			cmd = tea.Batch(cmd, status(bell))
		}
		return p, cmd

	case prefsChangedMsg:
		p.bar = newBar(p.bar.Width)
		return p, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Start):
			if p.timer.snapshot().State == timer.Running {
				return p, nil
			}
			cmd := p.handle(p.timer.startWork())
			if p.timer.prefs.SoundStart {
				cmd = tea.Batch(cmd, status("Focus started "+bell))
			}
			return p, cmd
		case key.Matches(msg, keys.Break):
			if p.timer.snapshot().State == timer.Running {
				return p, nil
			}
			return p, p.handle(p.timer.startBreak())
		case key.Matches(msg, keys.Pause):
			return p, p.handle(p.timer.toggle())
		case key.Matches(msg, keys.Stop):
			if p.timer.snapshot().State == timer.Stopped {
				return p, nil
			}
			cmd := p.handle(p.timer.stop())
			return p, tea.Batch(cmd, status("Session stopped"))
		}
	}
	return p, nil
}

// handle turns finished sessions into status lines and refresh messages.
func (p *pomodoroModel) handle(done []completion) tea.Cmd {
	var cmds []tea.Cmd
	for _, c := range done {
		text := completionText(c)
		if p.timer.prefs.SoundEnd {
			text += " " + bell
		}
		isErr := c.err != nil
		cmds = append(cmds, func() tea.Msg { return statusMsg{text: text, isError: isErr} })
		if c.result != nil {
			p.refreshSummary()
			res := c.result
			cmds = append(cmds, func() tea.Msg { return progressChangedMsg{result: res} })
		}
	}
	return tea.Batch(cmds...)
}

func completionText(c completion) string {
	if c.session == timer.SessionBreak {
		return "Break over, ready to focus"
	}
	if c.result == nil {
		if c.err != nil {
			return fmt.Sprintf("Session not recorded: %v", c.err)
		}
		return "Session complete"
	}
	parts := []string{fmt.Sprintf("Session complete! +%d XP", c.result.XPGained)}
	if c.result.DidLevelUp {
		parts = append(parts, fmt.Sprintf("Level up! %d → %d", c.result.PreviousLevel, c.result.NewLevel))
	}
	for _, a := range c.result.NewlyUnlocked {
		parts = append(parts, "Unlocked: "+a.Name)
	}
	if c.err != nil {
		parts = append(parts, fmt.Sprintf("(not saved: %v)", c.err))
	}
	return strings.Join(parts, " · ")
}

func status(text string) tea.Cmd {
	return func() tea.Msg { return statusMsg{text: text} }
}

// crossedMinute reports whether a running countdown passed a whole minute.
func crossedMinute(before, after timer.Snapshot) bool {
	if before.State != timer.Running || after.State != timer.Running {
		return false
	}
	return before.Remaining/time.Minute != after.Remaining/time.Minute
}

func (p pomodoroModel) view() string {
	w := p.width - 4
	snap := p.timer.snapshot()

	title := titleStyle.Render("Pomodoro")

	var timeDisplay, phaseLabel, hint string
	clock := snap.FormattedRemaining()
	switch snap.State {
	case timer.Stopped:
		clock = timer.FormatClock(time.Duration(p.timer.prefs.WorkMinutes) * time.Minute)
		timeDisplay = timerStyle.Width(w - 6).Render(clock)
		phaseLabel = mutedStyle.Render("Ready to focus")
		hint = "s: focus  b: break"
	case timer.Running:
		style := timerRunningStyle
		label := accentStyle.Bold(true).Render("FOCUS")
		if snap.Session == timer.SessionBreak {
			style = timerRunningStyle.Foreground(colorSuccess)
			label = successStyle.Bold(true).Render("BREAK")
		}
		timeDisplay = style.Width(w - 6).Render(clock)
		phaseLabel = label
		hint = "space: pause  x: stop"
	case timer.Paused:
		timeDisplay = timerPausedStyle.Width(w - 6).Render(clock)
		phaseLabel = warningStyle.Bold(true).Render("PAUSED")
		hint = "space: resume  x: stop"
	case timer.Break:
		timeDisplay = successStyle.Bold(true).Width(w - 6).Align(lipgloss.Center).Render(clock)
		phaseLabel = successStyle.Bold(true).Render("BREAK READY")
		hint = "b: start break  s: skip and focus"
	}

	content := lipgloss.JoinVertical(lipgloss.Center,
		title,
		"",
		timeDisplay,
		phaseLabel,
		"",
		p.bar.ViewAs(snap.Progress()/100),
		"",
		p.renderDots(snap),
		"",
		p.renderLevel(),
	)

	return panelStyle.Width(w).Render(
		lipgloss.JoinVertical(lipgloss.Center, content, "", mutedStyle.Render(hint)),
	)
}

// renderDots shows progress toward the next long break.
func (p pomodoroModel) renderDots(snap timer.Snapshot) string {
	every := max(p.timer.prefs.LongBreakEvery, 1)
	done := snap.Completed % every
	if snap.Completed > 0 && done == 0 && snap.State == timer.Break {
		done = every
	}
	var parts []string
	for i := 0; i < every; i++ {
		switch {
		case i < done:
			parts = append(parts, successStyle.Render("●"))
		case i == done && snap.State == timer.Running && snap.Session == timer.SessionWork:
			parts = append(parts, accentStyle.Render("◐"))
		default:
			parts = append(parts, mutedStyle.Render("○"))
		}
	}
	counter := mutedStyle.Render(fmt.Sprintf("  %d today", p.summary.TodaySessions))
	return strings.Join(parts, " ") + counter
}

func (p pomodoroModel) renderLevel() string {
	s := p.summary
	if s.Level == 0 {
		return ""
	}
	line := fmt.Sprintf("Level %d · %d/%d XP", s.Level, s.XPIntoLevel, s.LevelRequirement)
	if s.CurrentStreak > 0 {
		line += fmt.Sprintf(" · %d-day streak", s.CurrentStreak)
	}
	return highlightStyle.Render(line)
}

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
	hclog "github.com/hashicorp/go-hclog"

	"github.com/sadopc/focusquest/internal/export"
	"github.com/sadopc/focusquest/internal/progress"
	"github.com/sadopc/focusquest/internal/store"
	"github.com/sadopc/focusquest/internal/timer"
)

// historyDays is how far back the history export reaches.
const historyDays = 90

var exportFormats = []string{"Sessions (CSV)", "Sessions (JSON)", "Daily history (CSV)"}

// Options carries optional collaborators for NewApp.
type Options struct {
	Logger    hclog.Logger
	Clock     timer.Clock
	ExportDir string
}

// App is the root Bubble Tea model.
type App struct {
	store     *store.Store
	engine    *progress.Engine
	logger    hclog.Logger
	exportDir string
	width     int
	height    int

	activeView    viewState
	showHelp      bool
	exportPicking bool
	exportCursor  int

	pomodoro     pomodoroModel
	stats        statsModel
	achievements achievementsModel
	settings     settingsModel

	help   help.Model
	status string
	isErr  bool
}

func NewApp(s *store.Store, e *progress.Engine, opts Options) App {
	h := help.New()
	h.ShowAll = false

	logger := opts.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	clock := opts.Clock
	if clock == nil {
		clock = timer.SystemClock{}
	}
	exportDir := opts.ExportDir
	if exportDir == "" {
		exportDir, _ = os.UserHomeDir()
	}

	prefs, err := s.Preferences()
	if err != nil {
		logger.Warn("preferences unavailable, using defaults", "error", err)
	}
	applyTheme(prefs.Theme)

	tm := newTimerModel(s, e, prefs, clock, logger)
	return App{
		store:        s,
		engine:       e,
		logger:       logger,
		exportDir:    exportDir,
		activeView:   viewTimer,
		pomodoro:     newPomodoroModel(e, tm),
		stats:        newStatsModel(s, e, clock),
		achievements: newAchievementsModel(e),
		settings:     newSettingsModel(s),
		help:         h,
	}
}

func (a App) Init() tea.Cmd {
	return tea.Batch(
		a.stats.refresh(),
		a.achievements.refresh(),
		a.settings.refresh(),
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
		a.pomodoro.setSize(a.width, contentHeight)
		a.stats.setSize(a.width, contentHeight)
		a.achievements.setSize(a.width, contentHeight)
		a.settings.setSize(a.width, contentHeight)
		return a, nil

	case tea.KeyMsg:
		if a.exportPicking {
			return a.updateExportPicker(msg)
		}

		// If a child view is capturing input (e.g. form), delegate first.
		if a.isFormActive() {
			return a.updateActiveView(msg)
		}

		switch {
		case key.Matches(msg, keys.Export):
			a.exportPicking = true
			a.exportCursor = 0
			return a, nil
		case key.Matches(msg, keys.Quit):
			return a, a.quit()
		case key.Matches(msg, keys.Help):
			a.showHelp = !a.showHelp
			a.help.ShowAll = a.showHelp
			return a, nil
		case key.Matches(msg, keys.Tab1):
			a.activeView = viewTimer
			return a, nil
		case key.Matches(msg, keys.Tab2):
			a.activeView = viewStats
			return a, a.stats.refresh()
		case key.Matches(msg, keys.Tab3):
			a.activeView = viewAchievements
			return a, a.achievements.refresh()
		case key.Matches(msg, keys.Tab4):
			a.activeView = viewSettings
			return a, a.settings.refresh()
		case key.Matches(msg, keys.Tab):
			a.activeView = (a.activeView + 1) % viewState(len(viewNames))
			return a, a.refreshCurrentView()
		}

		// Timer controls work from every view.
		switch {
		case key.Matches(msg, keys.Start), key.Matches(msg, keys.Break),
			key.Matches(msg, keys.Pause), key.Matches(msg, keys.Stop):
			var cmd tea.Cmd
			a.pomodoro, cmd = a.pomodoro.update(msg)
			return a, cmd
		}

	case tickMsg:
		var cmd tea.Cmd
		a.pomodoro, cmd = a.pomodoro.update(msg)
		return a, tea.Batch(tickCmd(), cmd)

	case statusMsg:
		a.status = msg.text
		a.isErr = msg.isError
		if msg.isError {
			a.logger.Warn(msg.text)
		}
		return a, nil

	case progressChangedMsg:
		return a, tea.Batch(a.stats.refresh(), a.achievements.refresh())

	case prefsChangedMsg:
		return a.applyPrefs()

	case exportDoneMsg:
		a.status = "Exported to " + msg.path
		a.isErr = false
		a.exportPicking = false
		return a, nil

	case statsDataMsg:
		var cmd tea.Cmd
		a.stats, cmd = a.stats.update(msg)
		return a, cmd

	case achievementsDataMsg:
		var cmd tea.Cmd
		a.achievements, cmd = a.achievements.update(msg)
		return a, cmd

	case settingsDataMsg:
		var cmd tea.Cmd
		a.settings, cmd = a.settings.update(msg)
		return a, cmd
	}

	return a.updateActiveView(msg)
}

// applyPrefs pushes saved preferences into the running machine and styles.
// A session in progress keeps its length.
func (a App) applyPrefs() (tea.Model, tea.Cmd) {
	prefs, err := a.store.Preferences()
	if err != nil {
		return a, func() tea.Msg {
			return statusMsg{text: fmt.Sprintf("Settings error: %v", err), isError: true}
		}
	}
	applyTheme(prefs.Theme)
	a.pomodoro.timer.applyPrefs(prefs)
	a.pomodoro, _ = a.pomodoro.update(prefsChangedMsg{})
	a.stats.buildChart()
	a.status = "Settings saved"
	a.isErr = false
	return a, nil
}

// quit abandons a running session so it lands in the log, then exits.
func (a App) quit() tea.Cmd {
	a.pomodoro.timer.stop()
	return tea.Quit
}

func (a App) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch a.activeView {
	case viewTimer:
		a.pomodoro, cmd = a.pomodoro.update(msg)
	case viewStats:
		a.stats, cmd = a.stats.update(msg)
	case viewAchievements:
		a.achievements, cmd = a.achievements.update(msg)
	case viewSettings:
		a.settings, cmd = a.settings.update(msg)
	}
	return a, cmd
}

func (a App) isFormActive() bool {
	return a.activeView == viewSettings && a.settings.formActive
}

func (a App) refreshCurrentView() tea.Cmd {
	switch a.activeView {
	case viewStats:
		return a.stats.refresh()
	case viewAchievements:
		return a.achievements.refresh()
	case viewSettings:
		return a.settings.refresh()
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
		content = a.pomodoro.view()
	case viewStats:
		content = a.stats.view()
	case viewAchievements:
		content = a.achievements.view()
	case viewSettings:
		content = a.settings.view()
	}

	headerHeight := lipgloss.Height(header)
	footerHeight := lipgloss.Height(footer)
	contentHeight := max(a.height-headerHeight-footerHeight, 1)

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

	title := lipgloss.NewStyle().Bold(true).Foreground(colorPrimary).Render("focusquest")
	gap := max(a.width-lipgloss.Width(title)-lipgloss.Width(tabRow)-4, 1)
	spacer := lipgloss.NewStyle().Width(gap).Render("")

	return headerStyle.Render(
		lipgloss.JoinHorizontal(lipgloss.Bottom, title, spacer, tabRow),
	)
}

func (a App) renderFooter() string {
	helpView := a.help.View(keys)

	status := ""
	if a.status != "" {
		style := mutedStyle
		if a.isErr {
			style = errorStyle
		}
		status = style.Render(" " + a.status)
	}

	// Countdown indicator when the timer view is not showing.
	timerInfo := ""
	snap := a.pomodoro.timer.snapshot()
	if a.activeView != viewTimer {
		switch snap.State {
		case timer.Running:
			timerInfo = successStyle.Render(" ● " + snap.FormattedRemaining())
		case timer.Paused:
			timerInfo = warningStyle.Render(" ⏸ " + snap.FormattedRemaining())
		}
	}

	left := footerStyle.Render(helpView)
	right := timerInfo + status

	gap := max(a.width-lipgloss.Width(left)-lipgloss.Width(right)-2, 1)
	spacer := lipgloss.NewStyle().Width(gap).Render("")

	return lipgloss.JoinHorizontal(lipgloss.Bottom, left, spacer, right)
}

func (a App) renderExportPicker() string {
	rows := []string{titleStyle.Render("Export"), ""}
	for i, f := range exportFormats {
		cursor := "  "
		style := normalItemStyle
		if i == a.exportCursor {
			cursor = "> "
			style = selectedItemStyle
		}
		rows = append(rows, style.Render(cursor+f))
	}
	rows = append(rows, "", mutedStyle.Render("  enter: export  esc: cancel"))

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
		return a, a.doExport(a.exportCursor)
	case key.Matches(msg, keys.Back):
		a.exportPicking = false
	}
	return a, nil
}

func (a App) doExport(format int) tea.Cmd {
	now := a.pomodoro.timer.clock.Now()
	return func() tea.Msg {
		dateStr := now.Format("2006-01-02")
		var path string
		var err error

		switch format {
		case 0, 1:
			sessions, lerr := a.store.ListSessions(store.SessionFilter{})
			if lerr != nil {
				return statusMsg{text: fmt.Sprintf("Export error: %v", lerr), isError: true}
			}
			if format == 0 {
				path = filepath.Join(a.exportDir, fmt.Sprintf("focusquest-sessions-%s.csv", dateStr))
				err = export.SessionsToCSV(sessions, path)
			} else {
				path = filepath.Join(a.exportDir, fmt.Sprintf("focusquest-sessions-%s.json", dateStr))
				err = export.SessionsToJSON(sessions, path)
			}
		default:
			path = filepath.Join(a.exportDir, fmt.Sprintf("focusquest-history-%s.csv", dateStr))
			err = export.HistoryToCSV(a.engine.History(now, historyDays), path)
		}
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Export error: %v", err), isError: true}
		}
		return exportDoneMsg{path: path}
	}
}

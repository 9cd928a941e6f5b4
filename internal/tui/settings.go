package tui

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/focusquest/internal/store"
)

type settingsModel struct {
	store  *store.Store
	width  int
	height int

	settings   []store.Setting
	formActive bool
	form       *huh.Form

	// Form values as pointers (survive value copies)
	draft  *store.Preferences
	xpText *string
}

func newSettingsModel(s *store.Store) settingsModel {
	return settingsModel{
		store: s,
		draft: &store.Preferences{},
	}
}

func (s *settingsModel) setSize(w, h int) {
	s.width = w
	s.height = h
}

type settingsDataMsg struct {
	settings []store.Setting
}

func (s settingsModel) refresh() tea.Cmd {
	return func() tea.Msg {
		settings, _ := s.store.GetAllSettings()
		return settingsDataMsg{settings: settings}
	}
}

func (s settingsModel) update(msg tea.Msg) (settingsModel, tea.Cmd) {
	if s.formActive && s.form != nil {
		return s.updateForm(msg)
	}

	switch msg := msg.(type) {
	case settingsDataMsg:
		s.settings = msg.settings
		return s, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Enter) {
			return s.showForm()
		}
	}
	return s, nil
}

func intOptions(values []int, unit string) []huh.Option[int] {
	opts := make([]huh.Option[int], 0, len(values))
	for _, v := range values {
		opts = append(opts, huh.NewOption(fmt.Sprintf("%d %s", v, unit), v))
	}
	return opts
}

func (s settingsModel) showForm() (settingsModel, tea.Cmd) {
	p, err := s.store.Preferences()
	if err != nil {
		p = store.DefaultPreferences()
	}
	*s.draft = p
	xp := strconv.Itoa(p.XPPerSession)
	xpField := &xp

	every := make([]int, 0, 7)
	for n := 2; n <= 8; n++ {
		every = append(every, n)
	}

	themeOpts := make([]huh.Option[string], 0, len(store.ThemeOptions))
	for _, t := range store.ThemeOptions {
		themeOpts = append(themeOpts, huh.NewOption(t, t))
	}

	s.form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[int]().Title("Focus length").
				Options(intOptions(store.WorkMinuteOptions, "min")...).Value(&s.draft.WorkMinutes),
			huh.NewSelect[int]().Title("Short break").
				Options(intOptions(store.BreakMinuteOptions, "min")...).Value(&s.draft.BreakMinutes),
			huh.NewSelect[int]().Title("Long break").
				Options(intOptions(store.LongBreakMinuteOptions, "min")...).Value(&s.draft.LongBreakMinutes),
			huh.NewSelect[int]().Title("Long break every").
				Options(intOptions(every, "sessions")...).Value(&s.draft.LongBreakEvery),
		).Title("Timer"),
		huh.NewGroup(
			huh.NewInput().Title("XP per session").Value(xpField).
				Validate(func(v string) error {
					return store.ValidateSetting(store.KeyXPPerSession, v)
				}),
			huh.NewSelect[string]().Title("Theme").Options(themeOpts...).Value(&s.draft.Theme),
			huh.NewConfirm().Title("Sound on start").Value(&s.draft.SoundStart),
			huh.NewConfirm().Title("Sound on end").Value(&s.draft.SoundEnd),
			huh.NewConfirm().Title("Sound every minute").Value(&s.draft.SoundTick),
		).Title("General"),
	).WithShowHelp(true).WithShowErrors(true)

	s.xpText = xpField
	s.formActive = true
	return s, s.form.Init()
}

func (s settingsModel) updateForm(msg tea.Msg) (settingsModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if msg.String() == "esc" {
			s.formActive = false
			s.form = nil
			return s, nil
		}
	}

	form, cmd := s.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		s.form = f
	}

	if s.form.State == huh.StateCompleted {
		s.formActive = false
		if err := s.saveSettings(); err != nil {
			return s, func() tea.Msg {
				return statusMsg{text: fmt.Sprintf("Settings not saved: %v", err), isError: true}
			}
		}
		return s, tea.Batch(s.refresh(), func() tea.Msg { return prefsChangedMsg{} })
	}

	return s, cmd
}

func (s settingsModel) saveSettings() error {
	if s.xpText != nil {
		n, err := strconv.Atoi(*s.xpText)
		if err != nil {
			return fmt.Errorf("%w: xp_per_session %q", store.ErrInvalidSetting, *s.xpText)
		}
		s.draft.XPPerSession = n
	}
	return s.store.SavePreferences(*s.draft)
}

func (s settingsModel) view() string {
	w := s.width - 4

	title := titleStyle.Render("Settings")
	if s.formActive && s.form != nil {
		return panelStyle.Width(w).Render(
			lipgloss.JoinVertical(lipgloss.Left, title, "", s.form.View()),
		)
	}

	var rows []string
	rows = append(rows, title, "")

	for _, setting := range s.settings {
		label := lipgloss.NewStyle().Width(24).Render(setting.Key)
		value := highlightStyle.Render(formatSettingValue(setting.Key, setting.Value))
		rows = append(rows, fmt.Sprintf("  %s %s", label, value))
	}

	rows = append(rows, "", mutedStyle.Render("Press enter to edit settings"))

	return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func formatSettingValue(k, v string) string {
	switch k {
	case store.KeyWorkMinutes, store.KeyBreakMinutes, store.KeyLongBreakMinutes:
		return v + " min"
	case store.KeyLongBreakEvery:
		return "every " + v + " sessions"
	case store.KeyXPPerSession:
		return v + " XP"
	case store.KeySoundStart, store.KeySoundEnd, store.KeySoundTick:
		if on, err := strconv.ParseBool(v); err == nil {
			if on {
				return "on"
			}
			return "off"
		}
	}
	return v
}

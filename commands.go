package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	hclog "github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sadopc/focusquest/internal/config"
	"github.com/sadopc/focusquest/internal/export"
	"github.com/sadopc/focusquest/internal/progress"
	"github.com/sadopc/focusquest/internal/store"
	"github.com/sadopc/focusquest/internal/timer"
)

const (
	dateLayout         = "2006-01-02"
	defaultExportDays  = 90
	defaultRunCycles   = 1
	exportFormatCSV    = "csv"
	exportFormatJSON   = "json"
	exportFormatDaily  = "history"
	completeFocusUnset = -1
)

var (
	runWork   int
	runBreak  int
	runCycles int
	runXP     int

	completeXP      int
	completeDate    string
	completeMinutes int

	exportFormat string
	exportOut    string
	exportDays   int

	configValidate bool
	configShowPath bool
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).Width(11)
	valueStyle   = lipgloss.NewStyle().Bold(true)
	goodStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#555555"))
)

// ============================================================
// run
// ============================================================

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a headless pomodoro in the terminal",
		Args:  cobra.NoArgs,
		RunE:  runRunCmd,
	}
	cmd.Flags().IntVar(&runWork, "work", 0, "work minutes (default from settings)")
	cmd.Flags().IntVar(&runBreak, "break", 0, "short break minutes (default from settings)")
	cmd.Flags().IntVar(&runCycles, "cycles", defaultRunCycles, "work sessions to run, with breaks in between")
	cmd.Flags().IntVar(&runXP, "xp", 0, "experience per finished session (default from settings)")
	return cmd
}

func runRunCmd(cmd *cobra.Command, _ []string) error {
	env, err := openEnv(cmd, os.Stderr)
	if err != nil {
		return err
	}
	defer env.Close()

	prefs, err := env.store.Preferences()
	if err != nil {
		env.logger.Warn("preferences unavailable, using defaults", "error", err)
	}
	applyIntFlag(cmd, "work", &prefs.WorkMinutes, runWork)
	applyIntFlag(cmd, "break", &prefs.BreakMinutes, runBreak)
	applyIntFlag(cmd, "xp", &prefs.XPPerSession, runXP)
	if prefs.WorkMinutes <= 0 || prefs.BreakMinutes <= 0 {
		return fmt.Errorf("--work and --break must be > 0")
	}
	if err := store.ValidateSetting(store.KeyXPPerSession, strconv.Itoa(prefs.XPPerSession)); err != nil {
		return fmt.Errorf("--xp: %w", err)
	}
	if runCycles <= 0 {
		return fmt.Errorf("--cycles must be > 0")
	}

	printer := newRunPrinter(cmd.OutOrStdout(), env.store, env.logger)
	m := timer.New(env.engine,
		timer.WithDurations(minutes(prefs.WorkMinutes), minutes(prefs.BreakMinutes)),
		timer.WithBreakPolicy(timer.LongBreakEvery(prefs.LongBreakEvery,
			minutes(prefs.BreakMinutes), minutes(prefs.LongBreakMinutes))),
		timer.WithXP(prefs.XPPerSession),
		timer.WithTicker(env.cfg.Tick),
		timer.WithObserver(printer),
		timer.WithLogger(env.logger.Named("timer")),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	runCycle(ctx, m, printer, runCycles)
	return nil
}

func minutes(n int) time.Duration { return time.Duration(n) * time.Minute }

// runCycle runs up to cycles work sessions, taking the queued break between
// them. Cancelling ctx abandons the current session.
func runCycle(ctx context.Context, m *timer.Machine, printer *runPrinter, cycles int) {
	defer m.Stop()
	for i := 0; i < cycles; i++ {
		m.StartWork()
		state := m.Run(ctx)
		if ctx.Err() != nil {
			printer.abandon()
			return
		}
		if i == cycles-1 || state != timer.Break {
			return
		}
		m.StartBreak()
		m.Run(ctx)
		if ctx.Err() != nil {
			printer.abandon()
			return
		}
	}
}

// runPrinter prints timer events and logs finished sessions. It runs on the
// ticker goroutine and never calls back into the machine.
type runPrinter struct {
	mu     sync.Mutex
	out    io.Writer
	store  *store.Store
	logger hclog.Logger

	session   timer.SessionType
	total     time.Duration
	remaining time.Duration
	startedAt time.Time
	active    bool
}

func newRunPrinter(out io.Writer, st *store.Store, logger hclog.Logger) *runPrinter {
	return &runPrinter{out: out, store: st, logger: logger}
}

func (p *runPrinter) Notify(ev timer.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch ev.Kind {
	case timer.EventStateChange:
		if ev.State == timer.Running {
			p.session, p.total, p.remaining = ev.Session, ev.Total, ev.Remaining
			p.startedAt = time.Now()
			p.active = true
			fmt.Fprintf(p.out, "%s started: %s\n", sessionLabel(ev.Session), timer.FormatClock(ev.Total))
		}
	case timer.EventTick:
		if crossedMinute(p.remaining, ev.Remaining) && ev.Remaining > 0 {
			fmt.Fprintf(p.out, "  %s left\n", timer.FormatClock(ev.Remaining))
		}
		p.remaining = ev.Remaining
	case timer.EventSessionComplete:
		p.active = false
		p.log(ev.Session, ev.Length, ev.Length, true)
		fmt.Fprintf(p.out, "%s finished.\n", sessionLabel(ev.Session))
		if ev.Result != nil {
			fmt.Fprintln(p.out, "  "+completionLine(*ev.Result))
		}
		if ev.Err != nil {
			fmt.Fprintf(p.out, "  progress not saved: %v\n", ev.Err)
		}
		if ev.State == timer.Break {
			fmt.Fprintf(p.out, "Break queued: %s\n", timer.FormatClock(ev.Remaining))
		}
	}
}

// abandon logs the session that was interrupted, if any.
func (p *runPrinter) abandon() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.active {
		return
	}
	p.active = false
	p.log(p.session, p.total, p.total-p.remaining, false)
	fmt.Fprintf(p.out, "%s abandoned with %s left.\n", sessionLabel(p.session), timer.FormatClock(p.remaining))
}

func (p *runPrinter) log(kind timer.SessionType, planned, elapsed time.Duration, completed bool) {
	k := store.KindWork
	if kind == timer.SessionBreak {
		k = store.KindBreak
	}
	_, err := p.store.LogSession(store.Session{
		Kind:           k,
		PlannedSeconds: int64(planned.Seconds()),
		ElapsedSeconds: int64(elapsed.Seconds()),
		Completed:      completed,
		StartedAt:      p.startedAt,
		EndedAt:        time.Now(),
	})
	if err != nil {
		p.logger.Warn("session not logged", "error", err)
	}
}

func sessionLabel(t timer.SessionType) string {
	if t == timer.SessionBreak {
		return "Break"
	}
	return "Focus session"
}

// crossedMinute reports whether a countdown moved into a new whole minute.
func crossedMinute(before, after time.Duration) bool {
	return before/time.Minute != after/time.Minute
}

func completionLine(r progress.CompletionResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "+%d XP (total %s)", r.XPGained, humanize.Comma(int64(r.Experience)))
	if r.DidLevelUp {
		fmt.Fprintf(&b, ", level up %d -> %d", r.PreviousLevel, r.NewLevel)
	}
	fmt.Fprintf(&b, ", streak %d", r.CurrentStreak)
	for _, a := range r.NewlyUnlocked {
		fmt.Fprintf(&b, ", unlocked %q", a.Name)
	}
	return b.String()
}

// ============================================================
// stats, week, badges
// ============================================================

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show level, streaks and totals",
		Args:  cobra.NoArgs,
		RunE:  runStatsCmd,
	}
}

func runStatsCmd(cmd *cobra.Command, _ []string) error {
	env, err := openEnv(cmd, os.Stderr)
	if err != nil {
		return err
	}
	defer env.Close()

	now := time.Now()
	_, abandoned, _, err := env.store.SessionStats(time.Time{}, now.Add(time.Second))
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	_, err = io.WriteString(out, renderStats(env.engine.Summary(now), abandoned, now, isTerminal(out)))
	return err
}

func renderStats(s progress.Summary, abandoned int, now time.Time, styled bool) string {
	rows := [][2]string{
		{"Level", fmt.Sprintf("%d (%s XP, %s to next)", s.Level,
			humanize.Comma(int64(s.Experience)), humanize.Comma(int64(s.XPToNextLevel)))},
		{"Progress", fmt.Sprintf("%s/%s (%.0f%%)", humanize.Comma(int64(s.XPIntoLevel)),
			humanize.Comma(int64(s.LevelRequirement)), s.LevelProgress()*100)},
		{"Sessions", fmt.Sprintf("%s total, %d today, %d this week",
			humanize.Comma(int64(s.TotalSessions)), s.TodaySessions, s.WeeklySessions)},
		{"Abandoned", humanize.Comma(int64(abandoned))},
		{"Focus", s.Focus.String()},
		{"Streak", fmt.Sprintf("%s (best %s)", pluralDays(s.CurrentStreak), pluralDays(s.LongestStreak))},
		{"Last", lastCompletion(s.LastCompletionDate, now)},
		{"Badges", fmt.Sprintf("%d/%d", s.UnlockedCount, s.AchievementCount)},
	}

	var b strings.Builder
	title := "FocusQuest"
	if styled {
		title = headingStyle.Render(title)
	}
	b.WriteString(title + "\n")
	for _, r := range rows {
		if styled {
			b.WriteString(labelStyle.Render(r[0]) + valueStyle.Render(r[1]) + "\n")
			continue
		}
		fmt.Fprintf(&b, "%-11s%s\n", r[0], r[1])
	}
	return b.String()
}

func pluralDays(n int) string {
	if n == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", n)
}

func lastCompletion(d progress.Date, now time.Time) string {
	if d.IsZero() {
		return "never"
	}
	if d == progress.DateOf(now) {
		return string(d) + " (today)"
	}
	t, err := d.Time()
	if err != nil {
		return string(d)
	}
	return fmt.Sprintf("%s (%s)", d, humanize.Time(t))
}

func newWeekCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "week",
		Short: "Show completed sessions for each day of this week",
		Args:  cobra.NoArgs,
		RunE:  runWeekCmd,
	}
}

func runWeekCmd(cmd *cobra.Command, _ []string) error {
	env, err := openEnv(cmd, os.Stderr)
	if err != nil {
		return err
	}
	defer env.Close()

	out := cmd.OutOrStdout()
	_, err = io.WriteString(out, renderWeek(env.engine.WeeklyBreakdown(time.Now()), isTerminal(out)))
	return err
}

func renderWeek(week []progress.DayCount, styled bool) string {
	var b strings.Builder
	total := 0
	for _, d := range week {
		total += d.Count
		day := string(d.Date)
		if t, err := d.Date.Time(); err == nil {
			day = t.Format("Mon 01-02")
		}
		bar := strings.Repeat("#", d.Count)
		if styled {
			bar = goodStyle.Render(strings.Repeat("█", d.Count))
		}
		fmt.Fprintf(&b, "%-10s %2d %s\n", day, d.Count, bar)
	}
	fmt.Fprintf(&b, "%-10s %2d\n", "Total", total)
	return b.String()
}

func newBadgesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "badges",
		Short: "List achievements",
		Args:  cobra.NoArgs,
		RunE:  runBadgesCmd,
	}
}

func runBadgesCmd(cmd *cobra.Command, _ []string) error {
	env, err := openEnv(cmd, os.Stderr)
	if err != nil {
		return err
	}
	defer env.Close()

	out := cmd.OutOrStdout()
	_, err = io.WriteString(out, renderBadges(env.engine.Achievements(), isTerminal(out)))
	return err
}

func renderBadges(achievements []progress.Achievement, styled bool) string {
	var b strings.Builder
	for _, a := range achievements {
		mark, when := "[ ]", ""
		if a.Unlocked {
			mark = "[x]"
			when = "  " + string(a.UnlockDate)
		}
		line := fmt.Sprintf("%s %-16s %s%s", mark, a.Name, a.Description, when)
		if styled {
			if a.Unlocked {
				line = goodStyle.Render(line)
			} else {
				line = dimStyle.Render(line)
			}
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// ============================================================
// complete
// ============================================================

func newCompleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "complete",
		Short: "Record a finished pomodoro without running the timer",
		Args:  cobra.NoArgs,
		RunE:  runCompleteCmd,
	}
	cmd.Flags().IntVar(&completeXP, "xp", 0, "experience to grant (default from settings)")
	cmd.Flags().StringVar(&completeDate, "date", "", "completion date (YYYY-MM-DD, default today)")
	cmd.Flags().IntVar(&completeMinutes, "minutes", completeFocusUnset, "focus minutes (default work length from settings)")
	return cmd
}

func runCompleteCmd(cmd *cobra.Command, _ []string) error {
	env, err := openEnv(cmd, os.Stderr)
	if err != nil {
		return err
	}
	defer env.Close()

	prefs, err := env.store.Preferences()
	if err != nil {
		env.logger.Warn("preferences unavailable, using defaults", "error", err)
	}
	xp := prefs.XPPerSession
	applyIntFlag(cmd, "xp", &xp, completeXP)
	focus := prefs.WorkMinutes
	applyIntFlag(cmd, "minutes", &focus, completeMinutes)
	if focus < 0 {
		return fmt.Errorf("--minutes must be >= 0")
	}

	date, err := parseDate(completeDate, time.Now())
	if err != nil {
		return err
	}

	res, err := env.engine.RecordCompletion(xp, date, minutes(focus))
	if err != nil && !isStorageError(err) {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), completionLine(res))
	if err != nil {
		logErrf("warning: progress not saved: %v\n", err)
	}
	return nil
}

func isStorageError(err error) bool {
	var serr *progress.StorageError
	return errors.As(err, &serr)
}

// parseDate parses YYYY-MM-DD in local time; empty means now.
func parseDate(value string, now time.Time) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return now, nil
	}
	t, err := time.ParseInLocation(dateLayout, value, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --date %q: want YYYY-MM-DD", value)
	}
	return t, nil
}

// ============================================================
// export
// ============================================================

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the session log or daily history",
		Args:  cobra.NoArgs,
		RunE:  runExportCmd,
	}
	cmd.Flags().StringVar(&exportFormat, "format", exportFormatCSV, "csv, json or history")
	cmd.Flags().StringVar(&exportOut, "out", "", "output file (default focusquest-<kind>-<date>.<ext> in the current directory)")
	cmd.Flags().IntVar(&exportDays, "days", defaultExportDays, "days of history to export")
	return cmd
}

func runExportCmd(cmd *cobra.Command, _ []string) error {
	env, err := openEnv(cmd, os.Stderr)
	if err != nil {
		return err
	}
	defer env.Close()

	now := time.Now()
	path := exportOut
	if path == "" {
		path = defaultExportPath(exportFormat, now)
	}

	switch exportFormat {
	case exportFormatCSV, exportFormatJSON:
		sessions, err := env.store.ListSessions(store.SessionFilter{})
		if err != nil {
			return err
		}
		if exportFormat == exportFormatCSV {
			err = export.SessionsToCSV(sessions, path)
		} else {
			err = export.SessionsToJSON(sessions, path)
		}
		if err != nil {
			return err
		}
	case exportFormatDaily:
		if exportDays <= 0 {
			return fmt.Errorf("--days must be > 0")
		}
		if err := export.HistoryToCSV(env.engine.History(now, exportDays), path); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown --format %q (want csv, json or history)", exportFormat)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported to %s\n", path)
	return nil
}

func defaultExportPath(format string, now time.Time) string {
	date := now.Format(dateLayout)
	switch format {
	case exportFormatJSON:
		return fmt.Sprintf("focusquest-sessions-%s.json", date)
	case exportFormatDaily:
		return fmt.Sprintf("focusquest-history-%s.csv", date)
	}
	return fmt.Sprintf("focusquest-sessions-%s.csv", date)
}

// ============================================================
// config
// ============================================================

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Open the config file in $EDITOR",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
	cmd.Flags().BoolVar(&configValidate, "validate", false, "check the config and progress file instead of editing")
	cmd.Flags().BoolVar(&configShowPath, "path", false, "print the config file path and exit")
	return cmd
}

func runConfigCmd(cmd *cobra.Command, _ []string) error {
	if configShowPath {
		fmt.Fprintln(cmd.OutOrStdout(), configPath)
		return nil
	}
	if configValidate {
		return validateFiles(cmd)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(configPath); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(configPath, []byte(config.DefaultTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	ed := exec.Command(parts[0], append(parts[1:], configPath)...)
	ed.Stdin = os.Stdin
	ed.Stdout = os.Stdout
	ed.Stderr = os.Stderr
	if err := ed.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

// validateFiles checks the config and, for the file backend, the progress
// file against its schema.
func validateFiles(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "config %s: ok\n", configPath)

	if cfg.Backend != config.BackendFile {
		fmt.Fprintf(out, "progress stored in %s\n", cfg.Database)
		return nil
	}
	fs := progress.NewFileStorage(cfg.ProgressFile)
	data, err := fs.Read()
	if err != nil {
		if errors.Is(err, progress.ErrNoState) {
			fmt.Fprintf(out, "progress %s: not created yet\n", fs.Path())
			return nil
		}
		return err
	}
	if err := progress.Validate(data); err != nil {
		return fmt.Errorf("progress %s: %w", fs.Path(), err)
	}
	fmt.Fprintf(out, "progress %s: ok\n", fs.Path())
	return nil
}

// ============================================================
// settings
// ============================================================

func newSettingsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "settings [key [value]]",
		Short: "List, read or change timer settings",
		Args:  cobra.MaximumNArgs(2),
		RunE:  runSettingsCmd,
	}
}

func runSettingsCmd(cmd *cobra.Command, args []string) error {
	env, err := openEnv(cmd, os.Stderr)
	if err != nil {
		return err
	}
	defer env.Close()

	out := cmd.OutOrStdout()
	switch len(args) {
	case 0:
		settings, err := env.store.GetAllSettings()
		if err != nil {
			return err
		}
		for _, kv := range settings {
			fmt.Fprintf(out, "%-20s %s\n", kv.Key, kv.Value)
		}
	case 1:
		value, err := env.store.GetSetting(args[0])
		if store.IsNotFound(err) {
			return fmt.Errorf("unknown setting %q", args[0])
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(out, value)
	default:
		if err := env.store.SetSetting(args[0], args[1]); err != nil {
			return err
		}
		fmt.Fprintf(out, "%s = %s\n", args[0], args[1])
	}
	return nil
}

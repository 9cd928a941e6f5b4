package tui

import (
	"fmt"
	"time"

	"github.com/sadopc/focusquest/internal/progress"
)

// viewState represents the currently active view.
type viewState int

const (
	viewTimer viewState = iota
	viewStats
	viewAchievements
	viewSettings
)

var viewNames = []string{"Timer", "Stats", "Achievements", "Settings"}

// --- Messages ---

type statusMsg struct {
	text    string
	isError bool
}

type tickMsg time.Time

// progressChangedMsg is sent after a work session was recorded.
type progressChangedMsg struct {
	result *progress.CompletionResult
}

// prefsChangedMsg carries freshly saved preferences to every view.
type prefsChangedMsg struct{}

type exportDoneMsg struct {
	path string
}

// --- Helpers ---

func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func formatSeconds(secs int64) string {
	return formatDuration(time.Duration(secs) * time.Second)
}

func formatHours(secs int64) string {
	h := float64(secs) / 3600
	return fmt.Sprintf("%.1fh", h)
}

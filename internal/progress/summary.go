package progress

import (
	"fmt"
	"time"
)

// DayCount is the number of completed work sessions on one day.
type DayCount struct {
	Date  Date
	Count int
}

// FocusBreakdown splits total focus time for display.
type FocusBreakdown struct {
	Hours   int64
	Minutes int64
}

func (f FocusBreakdown) String() string {
	if f.Hours == 0 {
		return fmt.Sprintf("%dm", f.Minutes)
	}
	return fmt.Sprintf("%dh %dm", f.Hours, f.Minutes)
}

func focusBreakdown(secs int64) FocusBreakdown {
	return FocusBreakdown{Hours: secs / 3600, Minutes: (secs % 3600) / 60}
}

// Summary is a read-only view of the state relative to a given day.
type Summary struct {
	Level              int
	Experience         int
	XPIntoLevel        int
	LevelRequirement   int
	XPToNextLevel      int
	TotalSessions      int
	TotalFocusSeconds  int64
	Focus              FocusBreakdown
	CurrentStreak      int
	LongestStreak      int
	LastCompletionDate Date
	UnlockedCount      int
	AchievementCount   int
	WeeklySessions     int
	TodaySessions      int
}

// LevelProgress returns the fraction of the current level already earned.
func (s Summary) LevelProgress() float64 {
	if s.LevelRequirement <= 0 {
		return 0
	}
	p := float64(s.XPIntoLevel) / float64(s.LevelRequirement)
	return min(max(p, 0), 1)
}

// weekStart returns the Monday of the ISO week containing today.
func weekStart(today time.Time) time.Time {
	day := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

func (e *Engine) Summary(today time.Time) Summary {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ensureLoadedLocked()
	s := e.state

	weekly := 0
	for _, d := range weekOf(s, today) {
		weekly += d.Count
	}
	into := s.Experience - LevelStart(s.Level)
	req := LevelRequirement(s.Level)
	return Summary{
		Level:              s.Level,
		Experience:         s.Experience,
		XPIntoLevel:        into,
		LevelRequirement:   req,
		XPToNextLevel:      req - into,
		TotalSessions:      s.TotalCompletedSessions,
		TotalFocusSeconds:  s.TotalFocusSeconds,
		Focus:              focusBreakdown(s.TotalFocusSeconds),
		CurrentStreak:      s.CurrentStreak,
		LongestStreak:      s.LongestStreak,
		LastCompletionDate: s.LastCompletionDate,
		UnlockedCount:      s.UnlockedCount(),
		AchievementCount:   len(s.Achievements),
		WeeklySessions:     weekly,
		TodaySessions:      s.DailySessions[string(DateOf(today))],
	}
}

// WeeklyBreakdown returns Monday..Sunday of the week containing today.
func (e *Engine) WeeklyBreakdown(today time.Time) []DayCount {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ensureLoadedLocked()
	return weekOf(e.state, today)
}

func weekOf(s State, today time.Time) []DayCount {
	start := weekStart(today)
	out := make([]DayCount, 7)
	for i := range out {
		day := DateOf(start.AddDate(0, 0, i))
		out[i] = DayCount{Date: day, Count: s.DailySessions[string(day)]}
	}
	return out
}

// History returns the trailing days ending with today, oldest first.
func (e *Engine) History(today time.Time, days int) []DayCount {
	if days <= 0 {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ensureLoadedLocked()

	end := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	out := make([]DayCount, days)
	for i := range out {
		day := DateOf(end.AddDate(0, 0, i-days+1))
		out[i] = DayCount{Date: day, Count: e.state.DailySessions[string(day)]}
	}
	return out
}

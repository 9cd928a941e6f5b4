// Package progress owns the persisted gamification state: completed sessions,
// experience and levels, day streaks and the achievement catalog.
package progress

import (
	"encoding/json"
	"maps"
	"math"
	"time"
)

const schemaVersion = 1

const dateLayout = "2006-01-02"

// Date is a calendar day in ISO form (YYYY-MM-DD). The zero value means "no date"
// and is encoded as JSON null.
type Date string

// DateOf returns the calendar day of t in t's own location.
func DateOf(t time.Time) Date {
	return Date(t.Format(dateLayout))
}

func (d Date) IsZero() bool { return d == "" }

// Time returns midnight UTC of the day.
func (d Date) Time() (time.Time, error) {
	return time.Parse(dateLayout, string(d))
}

// In returns midnight of the day in loc.
func (d Date) In(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(dateLayout, string(d), loc)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d == "" {
		return []byte("null"), nil
	}
	return json.Marshal(string(d))
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*d = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*d = Date(s)
	return nil
}

// daysBetween returns to-from in whole days. ok is false when either date
// does not parse.
func daysBetween(from, to Date) (int, bool) {
	a, err := from.Time()
	if err != nil {
		return 0, false
	}
	b, err := to.Time()
	if err != nil {
		return 0, false
	}
	return int(b.Sub(a).Hours() / 24), true
}

// Achievement is a one-way milestone flag.
type Achievement struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Unlocked    bool   `json:"unlocked"`
	UnlockDate  Date   `json:"unlock_date"`
}

// State is the persisted progress aggregate.
type State struct {
	SchemaVersion          int            `json:"schema_version"`
	TotalCompletedSessions int            `json:"total_completed_sessions"`
	TotalFocusSeconds      int64          `json:"total_focus_seconds"`
	Experience             int            `json:"experience"`
	Level                  int            `json:"level"`
	CurrentStreak          int            `json:"current_streak"`
	LongestStreak          int            `json:"longest_streak"`
	LastCompletionDate     Date           `json:"last_completion_date"`
	DailySessions          map[string]int `json:"daily_sessions"`
	Achievements           []Achievement  `json:"achievements"`
}

// NewState returns the default state: level 1, no experience, every
// achievement in the catalog present and locked.
func NewState() State {
	return State{
		SchemaVersion: schemaVersion,
		Level:         1,
		DailySessions: make(map[string]int),
		Achievements:  newCatalog(),
	}
}

func (s State) clone() State {
	c := s
	c.DailySessions = maps.Clone(s.DailySessions)
	if c.DailySessions == nil {
		c.DailySessions = make(map[string]int)
	}
	c.Achievements = append([]Achievement(nil), s.Achievements...)
	return c
}

// updateStreak applies the day-difference rule for a completion on day.
// Callers reject negative differences before getting here.
func (s *State) updateStreak(day Date) {
	diff, ok := daysBetween(s.LastCompletionDate, day)
	switch {
	case s.LastCompletionDate.IsZero() || !ok:
		s.CurrentStreak = 1
	case diff == 0:
		if s.CurrentStreak == 0 {
			s.CurrentStreak = 1
		}
	case diff == 1:
		s.CurrentStreak++
	default:
		s.CurrentStreak = 1
	}
	if s.CurrentStreak > s.LongestStreak {
		s.LongestStreak = s.CurrentStreak
	}
	s.LastCompletionDate = day
}

// applyLevels advances Level while Experience covers the next threshold.
func (s *State) applyLevels() {
	if s.Level < 1 {
		s.Level = 1
	}
	xp := min(s.Experience, MaxExperience)
	start := LevelStart(s.Level)
	for {
		req := LevelRequirement(s.Level)
		if start > math.MaxInt-req || xp < start+req {
			return
		}
		start += req
		s.Level++
	}
}

// unlockAchievements evaluates every locked achievement against s in catalog
// order and returns the ones unlocked by this call.
func (s *State) unlockAchievements(day Date) []Achievement {
	var unlocked []Achievement
	for i := range s.Achievements {
		a := &s.Achievements[i]
		if a.Unlocked {
			continue
		}
		r, ok := ruleByID[a.ID]
		if !ok || !r.met(s) {
			continue
		}
		a.Unlocked = true
		a.UnlockDate = day
		unlocked = append(unlocked, *a)
	}
	return unlocked
}

// UnlockedCount reports how many achievements are unlocked.
func (s State) UnlockedCount() int {
	n := 0
	for _, a := range s.Achievements {
		if a.Unlocked {
			n++
		}
	}
	return n
}

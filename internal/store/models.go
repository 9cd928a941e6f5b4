package store

import "time"

const (
	KindWork  = "work"
	KindBreak = "break"
)

// Session is one logged countdown, finished or abandoned.
type Session struct {
	ID             int64
	Kind           string
	PlannedSeconds int64
	ElapsedSeconds int64
	Completed      bool
	StartedAt      time.Time
	EndedAt        time.Time
}

type Setting struct {
	Key   string
	Value string
}

// SessionFilter is used to filter sessions in queries.
type SessionFilter struct {
	Kind          string
	From          *time.Time
	To            *time.Time
	CompletedOnly bool
	Limit         int
}

// DailyTotal aggregates finished work sessions per day.
type DailyTotal struct {
	Date         string
	Sessions     int
	FocusSeconds int64
}

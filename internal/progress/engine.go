package progress

import (
	"errors"
	"fmt"
	"sync"
	"time"

	hclog "github.com/hashicorp/go-hclog"
)

// CompletionResult describes what one completed work session changed.
type CompletionResult struct {
	DidLevelUp    bool
	PreviousLevel int
	NewLevel      int
	XPGained      int
	Experience    int
	NewlyUnlocked []Achievement
	CurrentStreak int
}

// Engine is the single owner of a State. All methods are safe for
// concurrent use; mutations are serialized and persisted before returning.
type Engine struct {
	mu      sync.Mutex
	storage Storage
	logger  hclog.Logger
	state   State
	loaded  bool
}

type Option func(*Engine)

func WithLogger(l hclog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

func NewEngine(storage Storage, opts ...Option) *Engine {
	e := &Engine{
		storage: storage,
		logger:  hclog.NewNullLogger(),
		state:   NewState(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Load reads the stored state. Missing or corrupt data yields the default
// state; the problem is logged, never returned.
func (e *Engine) Load() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = e.readLocked()
	e.loaded = true
	return e.state.clone()
}

func (e *Engine) readLocked() State {
	data, err := e.storage.Read()
	if err != nil {
		if !errors.Is(err, ErrNoState) {
			e.logger.Warn("progress unreadable, starting from defaults", "error", &StorageError{Op: "read", Err: err})
		}
		return NewState()
	}
	s, err := Decode(data)
	if err != nil {
		e.logger.Warn("progress corrupt, starting from defaults", "error", &StorageError{Op: "decode", Err: err})
		return NewState()
	}
	return s
}

func (e *Engine) ensureLoadedLocked() {
	if !e.loaded {
		e.state = e.readLocked()
		e.loaded = true
	}
}

// RecordCompletion applies one finished work session worth xpGain experience
// and focus time, completed on the calendar day of date.
//
// Completions dated before the last recorded one are rejected with
// ErrOutOfOrderCompletion and change nothing. If the update succeeds but
// cannot be persisted, the result is still returned together with a
// *StorageError; the in-memory state keeps the update.
func (e *Engine) RecordCompletion(xpGain int, date time.Time, focus time.Duration) (CompletionResult, error) {
	if xpGain < 0 || focus < 0 {
		return CompletionResult{}, fmt.Errorf("%w: xp %d, focus %s", ErrInvalidCompletion, xpGain, focus)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.ensureLoadedLocked()

	if xpGain > MaxExperience-e.state.Experience {
		return CompletionResult{}, fmt.Errorf("%w: xp %d would pass the %d experience cap", ErrInvalidCompletion, xpGain, MaxExperience)
	}

	day := DateOf(date)
	if last := e.state.LastCompletionDate; !last.IsZero() {
		if diff, ok := daysBetween(last, day); ok && diff < 0 {
			return CompletionResult{}, fmt.Errorf("%w: %s is before %s", ErrOutOfOrderCompletion, day, last)
		}
	}

	next := e.state.clone()
	prevLevel := next.Level

	next.TotalCompletedSessions++
	next.TotalFocusSeconds += int64(focus / time.Second)
	next.DailySessions[string(day)]++
	next.updateStreak(day)
	next.Experience += xpGain
	next.applyLevels()
	unlocked := next.unlockAchievements(day)

	e.state = next
	res := CompletionResult{
		DidLevelUp:    next.Level > prevLevel,
		PreviousLevel: prevLevel,
		NewLevel:      next.Level,
		XPGained:      xpGain,
		Experience:    next.Experience,
		NewlyUnlocked: unlocked,
		CurrentStreak: next.CurrentStreak,
	}

	if err := e.persistLocked(); err != nil {
		e.logger.Warn("progress not persisted, will retry on next completion", "error", err)
		return res, err
	}
	e.logger.Debug("completion recorded", "day", day, "level", res.NewLevel, "streak", res.CurrentStreak)
	return res, nil
}

func (e *Engine) persistLocked() error {
	data, err := Encode(e.state)
	if err != nil {
		return &StorageError{Op: "write", Err: err}
	}
	if err := e.storage.Write(data); err != nil {
		return &StorageError{Op: "write", Err: err}
	}
	return nil
}

// State returns a copy of the current state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ensureLoadedLocked()
	return e.state.clone()
}

// Achievements returns the catalog with unlock flags, in catalog order.
func (e *Engine) Achievements() []Achievement {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ensureLoadedLocked()
	return append([]Achievement(nil), e.state.Achievements...)
}

// Package timer implements the pomodoro countdown state machine.
//
// A Machine is driven either manually (Advance, Tick) or by its own ticker
// goroutine when built WithTicker. Finished work sessions are reported to a
// Recorder exactly once.
package timer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	hclog "github.com/hashicorp/go-hclog"

	"github.com/sadopc/focusquest/internal/progress"
)

type State int

const (
	Stopped State = iota
	Running
	Paused
	// Break means a work session just finished and a break is queued but
	// not counting down yet.
	Break
)

var stateNames = map[State]string{
	Stopped: "stopped",
	Running: "running",
	Paused:  "paused",
	Break:   "break",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("state(%d)", int(s))
}

type SessionType int

const (
	SessionWork SessionType = iota
	SessionBreak
)

func (t SessionType) String() string {
	if t == SessionBreak {
		return "break"
	}
	return "work"
}

// Recorder receives finished work sessions.
type Recorder interface {
	RecordCompletion(xp int, date time.Time, focus time.Duration) (progress.CompletionResult, error)
}

// Clock abstracts time so tests stay deterministic.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// BreakPolicy decides the break queued after the completed-th work session.
// Returning false stops the machine instead.
type BreakPolicy func(completed int) (time.Duration, bool)

// LongBreakEvery queues long after every n-th work session and short otherwise.
func LongBreakEvery(n int, short, long time.Duration) BreakPolicy {
	return func(completed int) (time.Duration, bool) {
		if n > 0 && completed > 0 && completed%n == 0 {
			return long, true
		}
		return short, true
	}
}

// Snapshot is a consistent view of the machine.
type Snapshot struct {
	State     State
	Session   SessionType
	Remaining time.Duration
	Total     time.Duration
	Completed int
}

// Progress returns elapsed/total as a percentage in [0,100], 0 when total is 0.
func (s Snapshot) Progress() float64 {
	if s.Total <= 0 {
		return 0
	}
	p := float64(s.Total-s.Remaining) / float64(s.Total) * 100
	return min(max(p, 0), 100)
}

// FormattedRemaining renders the remaining time as MM:SS.
func (s Snapshot) FormattedRemaining() string {
	return FormatClock(s.Remaining)
}

func FormatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	m := int(d.Minutes())
	sec := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d", m, sec)
}

type loopHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Machine is safe for concurrent use. Commands are serialized and their
// events are delivered to the observer in transition order.
type Machine struct {
	cmdMu sync.Mutex
	mu    sync.Mutex

	rec       Recorder
	clock     Clock
	logger    hclog.Logger
	observer  Observer
	policy    BreakPolicy
	xp        int
	work      time.Duration
	brk       time.Duration
	tickEvery time.Duration

	state     State
	session   SessionType
	remaining time.Duration
	total     time.Duration
	completed int
	lastTick  time.Time

	pending []Event
	gen     uint64
	loop    *loopHandle
	retired []*loopHandle
}

type Option func(*Machine)

func WithDurations(work, shortBreak time.Duration) Option {
	return func(m *Machine) {
		m.work = work
		m.brk = shortBreak
	}
}

func WithBreakPolicy(p BreakPolicy) Option {
	return func(m *Machine) { m.policy = p }
}

// WithXP sets the experience granted per finished work session.
func WithXP(xp int) Option {
	return func(m *Machine) { m.xp = xp }
}

func WithClock(c Clock) Option {
	return func(m *Machine) { m.clock = c }
}

// WithTicker makes the machine run its own ticker goroutine while Running.
func WithTicker(every time.Duration) Option {
	return func(m *Machine) { m.tickEvery = every }
}

func WithObserver(o Observer) Option {
	return func(m *Machine) { m.observer = o }
}

func WithLogger(l hclog.Logger) Option {
	return func(m *Machine) {
		if l != nil {
			m.logger = l
		}
	}
}

func New(rec Recorder, opts ...Option) *Machine {
	m := &Machine{
		rec:    rec,
		clock:  SystemClock{},
		logger: hclog.NewNullLogger(),
		xp:     100,
		work:   25 * time.Minute,
		brk:    5 * time.Minute,
		state:  Stopped,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetDurations changes the work and short break lengths for sessions started later.
func (m *Machine) SetDurations(work, shortBreak time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.work = work
	m.brk = shortBreak
}

func (m *Machine) SetBreakPolicy(p BreakPolicy) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.policy = p
}

func (m *Machine) SetXP(xp int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.xp = xp
}

// command runs fn under the state lock, delivers the events it queued and
// finally waits for ticker goroutines fn retired. Waiting happens after
// cmdMu is released because a retiring goroutine may be blocked on it.
func (m *Machine) command(fn func()) {
	m.cmdMu.Lock()
	m.mu.Lock()
	fn()
	events := m.pending
	m.pending = nil
	retired := m.retired
	m.retired = nil
	m.mu.Unlock()
	m.dispatch(events)
	m.cmdMu.Unlock()

	for _, h := range retired {
		h.cancel()
		<-h.done
	}
}

func (m *Machine) dispatch(events []Event) {
	if m.observer == nil {
		return
	}
	for _, ev := range events {
		m.observer.Notify(ev)
	}
}

func (m *Machine) emitLocked(kind EventKind) {
	m.pending = append(m.pending, Event{
		Kind:      kind,
		State:     m.state,
		Session:   m.session,
		Remaining: m.remaining,
		Total:     m.total,
	})
}

func (m *Machine) setStateLocked(s State) {
	if m.state == s {
		return
	}
	m.logger.Debug("state change", "from", m.state, "to", s, "session", m.session)
	m.state = s
	m.emitLocked(EventStateChange)
}

// StartWork begins a work session. It is a no-op while Running.
func (m *Machine) StartWork() {
	m.command(func() {
		if m.state == Running {
			return
		}
		m.beginLocked(SessionWork, m.work)
	})
}

// StartBreak begins a break. A break queued by the policy keeps its length;
// otherwise the policy (or the short break) decides it.
func (m *Machine) StartBreak() {
	m.command(func() {
		if m.state == Running {
			return
		}
		d := m.brk
		switch {
		case m.state == Break:
			d = m.total
		case m.policy != nil:
			if pd, ok := m.policy(m.completed); ok {
				d = pd
			}
		}
		m.beginLocked(SessionBreak, d)
	})
}

func (m *Machine) beginLocked(t SessionType, d time.Duration) {
	m.retireLoopLocked()
	m.session = t
	m.total = d
	m.remaining = d
	m.lastTick = m.clock.Now()
	m.setStateLocked(Running)
	m.startLoopLocked()
}

// Pause freezes a running countdown; no-op otherwise.
func (m *Machine) Pause() {
	m.command(func() {
		if m.state != Running {
			return
		}
		m.advanceLocked(m.clock.Now().Sub(m.lastTick))
		if m.state != Running {
			return
		}
		m.retireLoopLocked()
		m.setStateLocked(Paused)
	})
}

// Resume continues a paused countdown; no-op otherwise.
func (m *Machine) Resume() {
	m.command(func() {
		if m.state != Paused {
			return
		}
		m.lastTick = m.clock.Now()
		m.setStateLocked(Running)
		m.startLoopLocked()
	})
}

// Toggle pauses a running session or resumes a paused one.
func (m *Machine) Toggle() {
	switch m.Snapshot().State {
	case Running:
		m.Pause()
	case Paused:
		m.Resume()
	}
}

// Stop resets to Stopped from any state. When it returns the ticker
// goroutine, if any, has exited.
func (m *Machine) Stop() {
	m.command(func() {
		m.retireLoopLocked()
		m.remaining = 0
		m.total = 0
		m.session = SessionWork
		if m.state == Stopped {
			return
		}
		m.setStateLocked(Stopped)
	})
}

// Advance counts d off a running session.
func (m *Machine) Advance(d time.Duration) {
	m.command(func() {
		if m.state != Running {
			return
		}
		m.advanceLocked(d)
	})
}

// Tick counts off the time elapsed on the clock since the previous tick.
func (m *Machine) Tick() {
	m.command(func() {
		if m.state != Running {
			return
		}
		m.advanceLocked(m.clock.Now().Sub(m.lastTick))
	})
}

func (m *Machine) advanceLocked(d time.Duration) {
	m.lastTick = m.clock.Now()
	if d <= 0 {
		return
	}
	m.remaining -= d
	if m.remaining > 0 {
		m.emitLocked(EventTick)
		return
	}
	m.remaining = 0
	m.emitLocked(EventTick)
	m.completeLocked()
}

func (m *Machine) completeLocked() {
	finished := m.session
	ev := Event{Kind: EventSessionComplete, Session: finished, Length: m.total}

	if finished == SessionWork {
		m.completed++
		if m.rec != nil {
			res, err := m.rec.RecordCompletion(m.xp, m.clock.Now(), m.total)
			var serr *progress.StorageError
			if err == nil || errors.As(err, &serr) {
				ev.Result = &res
			}
			if err != nil {
				m.logger.Warn("completion not fully recorded", "error", err)
			}
			ev.Err = err
		}
	}

	next, d := Stopped, time.Duration(0)
	if finished == SessionWork && m.policy != nil {
		if pd, ok := m.policy(m.completed); ok {
			next, d = Break, pd
		}
	}
	if next == Break {
		m.session = SessionBreak
	} else {
		m.session = SessionWork
	}
	m.total = d
	m.remaining = d

	ev.State = next
	ev.Remaining = d
	ev.Total = d
	ev.Completed = m.completed
	m.pending = append(m.pending, ev)
	m.setStateLocked(next)
}

// Snapshot returns the current state. Observers may call it.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		State:     m.state,
		Session:   m.session,
		Remaining: m.remaining,
		Total:     m.total,
		Completed: m.completed,
	}
}

func (m *Machine) Progress() float64 { return m.Snapshot().Progress() }

func (m *Machine) FormattedRemaining() string { return m.Snapshot().FormattedRemaining() }

// Completed reports how many work sessions finished on this machine.
func (m *Machine) Completed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.completed
}

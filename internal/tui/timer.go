package tui

import (
	"time"

	hclog "github.com/hashicorp/go-hclog"

	"github.com/sadopc/focusquest/internal/progress"
	"github.com/sadopc/focusquest/internal/store"
	"github.com/sadopc/focusquest/internal/timer"
)

// timerModel couples the countdown machine with the session log. The
// machine is ticked from the Bubble Tea loop, and its events are drained
// after every call.
type timerModel struct {
	store   *store.Store
	machine *timer.Machine
	events  *timer.Recording
	clock   timer.Clock
	logger  hclog.Logger

	prefs     store.Preferences
	startedAt time.Time
}

// completion is one finished session as seen by the views.
type completion struct {
	session timer.SessionType
	length  time.Duration
	result  *progress.CompletionResult
	err     error
}

func newTimerModel(s *store.Store, rec timer.Recorder, prefs store.Preferences, clock timer.Clock, logger hclog.Logger) timerModel {
	if clock == nil {
		clock = timer.SystemClock{}
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	events := &timer.Recording{}
	t := timerModel{
		store:  s,
		events: events,
		clock:  clock,
		logger: logger,
		prefs:  prefs,
	}
	t.machine = timer.New(rec,
		timer.WithClock(clock),
		timer.WithObserver(events),
		timer.WithLogger(logger.Named("timer")),
	)
	t.applyPrefs(prefs)
	return t
}

func (t *timerModel) applyPrefs(p store.Preferences) {
	t.prefs = p
	short := time.Duration(p.BreakMinutes) * time.Minute
	long := time.Duration(p.LongBreakMinutes) * time.Minute
	t.machine.SetDurations(time.Duration(p.WorkMinutes)*time.Minute, short)
	t.machine.SetBreakPolicy(timer.LongBreakEvery(p.LongBreakEvery, short, long))
	t.machine.SetXP(p.XPPerSession)
}

func (t *timerModel) snapshot() timer.Snapshot {
	return t.machine.Snapshot()
}

func (t *timerModel) startWork() []completion {
	return t.begin(t.machine.StartWork)
}

func (t *timerModel) startBreak() []completion {
	return t.begin(t.machine.StartBreak)
}

func (t *timerModel) begin(start func()) []completion {
	before := t.snapshot()
	if before.State == timer.Running {
		return nil
	}
	if before.State == timer.Paused {
		t.logAbandoned(before)
	}
	start()
	t.startedAt = t.clock.Now()
	return t.drain()
}

func (t *timerModel) toggle() []completion {
	t.machine.Toggle()
	return t.drain()
}

// stop abandons the current session, logging it if it had started.
func (t *timerModel) stop() []completion {
	snap := t.snapshot()
	if snap.State == timer.Running || snap.State == timer.Paused {
		t.logAbandoned(snap)
	}
	t.machine.Stop()
	return t.drain()
}

func (t *timerModel) tick() []completion {
	t.machine.Tick()
	return t.drain()
}

// drain turns queued machine events into completions and logs them.
func (t *timerModel) drain() []completion {
	var out []completion
	for _, ev := range t.events.Drain() {
		if ev.Kind != timer.EventSessionComplete {
			continue
		}
		c := completion{session: ev.Session, length: ev.Length, result: ev.Result, err: ev.Err}
		t.logSession(ev.Session, ev.Length, ev.Length, true)
		out = append(out, c)
	}
	return out
}

func (t *timerModel) logAbandoned(s timer.Snapshot) {
	elapsed := s.Total - s.Remaining
	if elapsed <= 0 {
		return
	}
	t.logSession(s.Session, s.Total, elapsed, false)
}

func (t *timerModel) logSession(kind timer.SessionType, planned, elapsed time.Duration, completed bool) {
	if t.store == nil {
		return
	}
	end := t.clock.Now()
	start := t.startedAt
	if start.IsZero() || start.After(end) {
		start = end.Add(-elapsed)
	}
	_, err := t.store.LogSession(store.Session{
		Kind:           kind.String(),
		PlannedSeconds: int64(planned.Seconds()),
		ElapsedSeconds: int64(elapsed.Seconds()),
		Completed:      completed,
		StartedAt:      start,
		EndedAt:        end,
	})
	if err != nil {
		t.logger.Warn("session not logged", "kind", kind, "error", err)
	}
}

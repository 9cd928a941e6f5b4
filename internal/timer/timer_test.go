package timer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sadopc/focusquest/internal/progress"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, time.October, 12, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Add(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeRecorder struct {
	mu    sync.Mutex
	calls []time.Duration
	dates []time.Time
	xp    []int
	err   error
}

func (r *fakeRecorder) RecordCompletion(xp int, date time.Time, focus time.Duration) (progress.CompletionResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, focus)
	r.dates = append(r.dates, date)
	r.xp = append(r.xp, xp)
	return progress.CompletionResult{NewLevel: 1, XPGained: xp, CurrentStreak: len(r.calls)}, r.err
}

func (r *fakeRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func newTestMachine(t *testing.T, opts ...Option) (*Machine, *fakeRecorder, *fakeClock, *Recording) {
	t.Helper()
	rec := &fakeRecorder{}
	clk := newFakeClock()
	events := &Recording{}
	base := []Option{
		WithClock(clk),
		WithDurations(25*time.Minute, 5*time.Minute),
		WithObserver(events),
	}
	m := New(rec, append(base, opts...)...)
	t.Cleanup(m.Stop)
	return m, rec, clk, events
}

func kinds(evs []Event) []EventKind {
	out := make([]EventKind, len(evs))
	for i, ev := range evs {
		out[i] = ev.Kind
	}
	return out
}

// ============================================================
// Transitions
// ============================================================

func TestInitialState(t *testing.T) {
	m, _, _, _ := newTestMachine(t)
	s := m.Snapshot()
	if s.State != Stopped || s.Remaining != 0 || s.Total != 0 {
		t.Fatalf("unexpected initial snapshot: %+v", s)
	}
	if m.Progress() != 0 {
		t.Fatal("progress should be 0 with zero total")
	}
}

func TestStartWork(t *testing.T) {
	m, _, _, events := newTestMachine(t)
	m.StartWork()

	s := m.Snapshot()
	if s.State != Running || s.Session != SessionWork || s.Remaining != 25*time.Minute {
		t.Fatalf("unexpected snapshot: %+v", s)
	}
	if got := m.FormattedRemaining(); got != "25:00" {
		t.Fatalf("formatted = %q", got)
	}
	evs := events.Drain()
	if len(evs) != 1 || evs[0].Kind != EventStateChange || evs[0].State != Running {
		t.Fatalf("unexpected events: %+v", evs)
	}

	m.Advance(time.Minute)
	m.StartWork() // no-op while running
	if s := m.Snapshot(); s.Remaining != 24*time.Minute {
		t.Fatalf("StartWork while running reset the session: %+v", s)
	}
}

func TestPauseResume(t *testing.T) {
	m, _, clk, _ := newTestMachine(t)
	m.StartWork()

	clk.Add(90 * time.Second)
	m.Pause()
	s := m.Snapshot()
	if s.State != Paused {
		t.Fatalf("state = %s, want paused", s.State)
	}
	if s.Remaining != 25*time.Minute-90*time.Second {
		t.Fatalf("pause did not apply elapsed time: %s", s.Remaining)
	}

	clk.Add(10 * time.Minute)
	m.Tick()
	m.Advance(time.Minute)
	if got := m.Snapshot().Remaining; got != s.Remaining {
		t.Fatalf("paused timer moved: %s -> %s", s.Remaining, got)
	}

	m.Resume()
	if m.Snapshot().State != Running {
		t.Fatal("resume should run")
	}
	clk.Add(30 * time.Second)
	m.Tick()
	if got := m.Snapshot().Remaining; got != s.Remaining-30*time.Second {
		t.Fatalf("pause gap counted: remaining %s", got)
	}
}

func TestInvalidTransitionsAreNoOps(t *testing.T) {
	m, _, _, events := newTestMachine(t)
	m.Pause()
	m.Resume()
	m.Tick()
	m.Advance(time.Minute)
	if s := m.Snapshot(); s.State != Stopped {
		t.Fatalf("state = %s", s.State)
	}
	m.Stop()
	if evs := events.Drain(); len(evs) != 0 {
		t.Fatalf("no-op commands emitted events: %v", kinds(evs))
	}

	m.StartWork()
	m.Resume()
	if m.Snapshot().State != Running {
		t.Fatal("resume while running changed state")
	}
}

func TestToggle(t *testing.T) {
	m, _, _, _ := newTestMachine(t)
	m.Toggle()
	if m.Snapshot().State != Stopped {
		t.Fatal("toggle should not start the timer")
	}
	m.StartWork()
	m.Toggle()
	if m.Snapshot().State != Paused {
		t.Fatal("toggle should pause")
	}
	m.Toggle()
	if m.Snapshot().State != Running {
		t.Fatal("toggle should resume")
	}
}

func TestStopResets(t *testing.T) {
	for _, setup := range []func(*Machine){
		func(m *Machine) {},
		func(m *Machine) { m.StartWork() },
		func(m *Machine) { m.StartWork(); m.Pause() },
		func(m *Machine) { m.StartBreak() },
	} {
		m, _, _, _ := newTestMachine(t)
		setup(m)
		m.Stop()
		s := m.Snapshot()
		if s.State != Stopped || s.Remaining != 0 || s.Total != 0 {
			t.Fatalf("stop did not reset: %+v", s)
		}
	}
}

// ============================================================
// Completion
// ============================================================

func TestWorkCompletionRecordsOnce(t *testing.T) {
	m, rec, clk, events := newTestMachine(t, WithXP(120))
	m.StartWork()
	events.Drain()

	clk.Add(24 * time.Minute)
	m.Tick()
	clk.Add(2 * time.Minute) // overshoot
	m.Tick()
	m.Tick()
	m.Advance(time.Minute)

	if rec.count() != 1 {
		t.Fatalf("recorder called %d times, want 1", rec.count())
	}
	if rec.calls[0] != 25*time.Minute || rec.xp[0] != 120 {
		t.Fatalf("recorded focus %s xp %d", rec.calls[0], rec.xp[0])
	}
	if !rec.dates[0].Equal(clk.Now()) {
		t.Fatalf("recorded date %s, want %s", rec.dates[0], clk.Now())
	}
	s := m.Snapshot()
	if s.State != Stopped || s.Completed != 1 {
		t.Fatalf("after completion without policy: %+v", s)
	}

	evs := events.Drain()
	want := []EventKind{EventTick, EventTick, EventSessionComplete, EventStateChange}
	if got := kinds(evs); !equalKinds(got, want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	done := evs[2]
	if done.Session != SessionWork || done.Length != 25*time.Minute || done.Result == nil || done.Result.XPGained != 120 || done.Completed != 1 {
		t.Fatalf("unexpected completion event: %+v", done)
	}
	if evs[3].State != Stopped {
		t.Fatalf("state change to %s", evs[3].State)
	}
}

func TestBreakCompletionDoesNotRecord(t *testing.T) {
	m, rec, _, events := newTestMachine(t)
	m.StartBreak()
	if s := m.Snapshot(); s.Session != SessionBreak || s.Total != 5*time.Minute {
		t.Fatalf("unexpected break: %+v", s)
	}
	m.Advance(5 * time.Minute)

	if rec.count() != 0 {
		t.Fatal("break completion recorded as work")
	}
	if s := m.Snapshot(); s.State != Stopped || s.Completed != 0 {
		t.Fatalf("after break: %+v", s)
	}
	evs := events.Drain()
	last := evs[len(evs)-2]
	if last.Kind != EventSessionComplete || last.Session != SessionBreak || last.Result != nil {
		t.Fatalf("unexpected break completion event: %+v", last)
	}
}

func TestBreakPolicy(t *testing.T) {
	m, _, _, _ := newTestMachine(t, WithBreakPolicy(LongBreakEvery(4, 5*time.Minute, 15*time.Minute)))

	for i := 1; i <= 4; i++ {
		m.StartWork()
		m.Advance(25 * time.Minute)
		s := m.Snapshot()
		if s.State != Break || s.Session != SessionBreak {
			t.Fatalf("session %d: expected queued break, got %+v", i, s)
		}
		want := 5 * time.Minute
		if i == 4 {
			want = 15 * time.Minute
		}
		if s.Remaining != want {
			t.Fatalf("session %d: break %s, want %s", i, s.Remaining, want)
		}

		m.Advance(time.Minute) // queued break does not count down
		if got := m.Snapshot().Remaining; got != want {
			t.Fatalf("queued break moved to %s", got)
		}

		m.StartBreak()
		if s := m.Snapshot(); s.State != Running || s.Total != want {
			t.Fatalf("break start: %+v", s)
		}
		m.Advance(want)
		if m.Snapshot().State != Stopped {
			t.Fatal("break completion should stop")
		}
	}
	if m.Completed() != 4 {
		t.Fatalf("completed = %d", m.Completed())
	}
}

func TestStartWorkSkipsQueuedBreak(t *testing.T) {
	m, _, _, _ := newTestMachine(t, WithBreakPolicy(LongBreakEvery(4, 5*time.Minute, 15*time.Minute)))
	m.StartWork()
	m.Advance(25 * time.Minute)
	m.StartWork()
	if s := m.Snapshot(); s.State != Running || s.Session != SessionWork {
		t.Fatalf("expected new work session, got %+v", s)
	}
}

func TestRecorderErrorIsReported(t *testing.T) {
	m, rec, _, events := newTestMachine(t)
	rec.err = &progress.StorageError{Op: "write", Err: errors.New("read-only fs")}
	m.StartWork()
	m.Advance(25 * time.Minute)

	var done *Event
	for _, ev := range events.Drain() {
		if ev.Kind == EventSessionComplete {
			done = &ev
		}
	}
	if done == nil || done.Err == nil || done.Result == nil {
		t.Fatalf("write failure should carry both result and error: %+v", done)
	}

	rec.err = progress.ErrOutOfOrderCompletion
	m.StartWork()
	m.Advance(25 * time.Minute)
	for _, ev := range events.Drain() {
		if ev.Kind == EventSessionComplete && (ev.Result != nil || !errors.Is(ev.Err, progress.ErrOutOfOrderCompletion)) {
			t.Fatalf("rejected completion should carry only the error: %+v", ev)
		}
	}
	if m.Completed() != 2 {
		t.Fatalf("completed = %d, want 2", m.Completed())
	}
}

// ============================================================
// Derived queries
// ============================================================

func TestProgress(t *testing.T) {
	tests := []struct {
		snap Snapshot
		want float64
	}{
		{Snapshot{}, 0},
		{Snapshot{Total: 100 * time.Second, Remaining: 100 * time.Second}, 0},
		{Snapshot{Total: 100 * time.Second, Remaining: 25 * time.Second}, 75},
		{Snapshot{Total: 100 * time.Second}, 100},
		{Snapshot{Total: 100 * time.Second, Remaining: 200 * time.Second}, 0},
		{Snapshot{Total: 100 * time.Second, Remaining: -5 * time.Second}, 100},
	}
	for _, tt := range tests {
		if got := tt.snap.Progress(); got != tt.want {
			t.Errorf("Progress(%+v) = %v, want %v", tt.snap, got, tt.want)
		}
	}
}

func TestFormatClock(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "00:00"},
		{-time.Second, "00:00"},
		{59 * time.Second, "00:59"},
		{25 * time.Minute, "25:00"},
		{90*time.Minute + 5*time.Second, "90:05"},
	}
	for _, tt := range tests {
		if got := FormatClock(tt.d); got != tt.want {
			t.Errorf("FormatClock(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestStateNames(t *testing.T) {
	if Stopped.String() != "stopped" || Running.String() != "running" || Paused.String() != "paused" || Break.String() != "break" {
		t.Fatal("unexpected state names")
	}
	if SessionWork.String() != "work" || SessionBreak.String() != "break" {
		t.Fatal("unexpected session names")
	}
	if EventSessionComplete.String() != "session_complete" {
		t.Fatal("unexpected event name")
	}
}

func equalKinds(a, b []EventKind) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ============================================================
// Owned ticker
// ============================================================

func TestTickerCompletesSession(t *testing.T) {
	rec := &fakeRecorder{}
	m := New(rec,
		WithDurations(30*time.Millisecond, 10*time.Millisecond),
		WithTicker(5*time.Millisecond),
	)
	defer m.Stop()

	m.StartWork()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if got := m.Run(ctx); got != Stopped {
		t.Fatalf("run ended in %s", got)
	}
	if rec.count() != 1 {
		t.Fatalf("recorder called %d times", rec.count())
	}
}

func TestStopJoinsTicker(t *testing.T) {
	var mu sync.Mutex
	var afterStop []Event
	stopped := false

	rec := &fakeRecorder{}
	m := New(rec,
		WithDurations(time.Hour, time.Minute),
		WithTicker(time.Millisecond),
		WithObserver(ObserverFunc(func(ev Event) {
			mu.Lock()
			defer mu.Unlock()
			if stopped {
				afterStop = append(afterStop, ev)
			}
		})),
	)

	m.StartWork()
	time.Sleep(20 * time.Millisecond)
	m.Stop()
	mu.Lock()
	stopped = true
	mu.Unlock()

	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if len(afterStop) != 0 {
		t.Fatalf("events after stop returned: %v", kinds(afterStop))
	}
	if s := m.Snapshot(); s.State != Stopped || s.Remaining != 0 {
		t.Fatalf("late tick mutated state: %+v", s)
	}
}

func TestPauseStopsTicker(t *testing.T) {
	m := New(nil, WithDurations(time.Hour, time.Minute), WithTicker(time.Millisecond))
	defer m.Stop()

	m.StartWork()
	time.Sleep(10 * time.Millisecond)
	m.Pause()
	frozen := m.Snapshot().Remaining
	time.Sleep(20 * time.Millisecond)
	if got := m.Snapshot().Remaining; got != frozen {
		t.Fatalf("paused machine kept ticking: %s -> %s", frozen, got)
	}
	m.Resume()
	time.Sleep(20 * time.Millisecond)
	if got := m.Snapshot().Remaining; got >= frozen {
		t.Fatalf("resumed machine not ticking: %s", got)
	}
}

func TestRunCancelStops(t *testing.T) {
	m := New(nil, WithDurations(time.Hour, time.Minute), WithTicker(time.Millisecond))
	m.StartWork()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	if got := m.Run(ctx); got != Stopped {
		t.Fatalf("run returned %s", got)
	}
	if m.Snapshot().State != Stopped {
		t.Fatal("cancelled run should stop the machine")
	}
}

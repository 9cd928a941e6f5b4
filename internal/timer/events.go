package timer

import (
	"sync"
	"time"

	"github.com/sadopc/focusquest/internal/progress"
)

type EventKind int

const (
	EventTick EventKind = iota
	EventStateChange
	EventSessionComplete
)

func (k EventKind) String() string {
	switch k {
	case EventTick:
		return "tick"
	case EventStateChange:
		return "state_change"
	case EventSessionComplete:
		return "session_complete"
	}
	return "unknown"
}

// Event describes one transition. For EventSessionComplete, Session is the
// session that finished and State/Remaining describe what follows it.
type Event struct {
	Kind      EventKind
	State     State
	Session   SessionType
	Remaining time.Duration
	Total     time.Duration
	Completed int

	// Length is the planned length of the session that finished.
	Length time.Duration

	// Result is set when a work session was recorded, even if persisting
	// it failed; Err carries any recorder error.
	Result *progress.CompletionResult
	Err    error
}

// Observer receives events in the order the transitions happened. Notify
// runs on the goroutine that caused the transition and must not call
// Machine commands; queries such as Snapshot are fine.
type Observer interface {
	Notify(Event)
}

type ObserverFunc func(Event)

func (f ObserverFunc) Notify(ev Event) { f(ev) }

// Recording keeps every event it sees. The TUI drains it after each command.
type Recording struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recording) Notify(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

// Drain returns and forgets the recorded events.
func (r *Recording) Drain() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.events
	r.events = nil
	return out
}

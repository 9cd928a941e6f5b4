package timer

import (
	"context"
	"time"
)

// startLoopLocked launches the ticker goroutine for the current generation.
func (m *Machine) startLoopLocked() {
	if m.tickEvery <= 0 {
		return
	}
	m.gen++
	ctx, cancel := context.WithCancel(context.Background())
	h := &loopHandle{cancel: cancel, done: make(chan struct{})}
	m.loop = h
	go m.runLoop(ctx, m.gen, h.done)
}

// retireLoopLocked invalidates the running ticker goroutine. The caller's
// command waits for it to exit once the locks are released.
func (m *Machine) retireLoopLocked() {
	m.gen++
	if m.loop != nil {
		m.retired = append(m.retired, m.loop)
		m.loop = nil
	}
}

func (m *Machine) runLoop(ctx context.Context, gen uint64, done chan struct{}) {
	defer close(done)
	t := time.NewTicker(m.tickEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if !m.loopTick(gen) {
				return
			}
		}
	}
}

// loopTick advances the machine for generation gen and reports whether the
// goroutine should keep ticking.
func (m *Machine) loopTick(gen uint64) bool {
	m.cmdMu.Lock()
	defer m.cmdMu.Unlock()

	m.mu.Lock()
	if m.gen != gen || m.state != Running {
		m.mu.Unlock()
		return false
	}
	m.advanceLocked(m.clock.Now().Sub(m.lastTick))
	alive := m.state == Running
	events := m.pending
	m.pending = nil
	m.mu.Unlock()

	m.dispatch(events)
	return alive
}

// Run blocks until ctx is done or the machine leaves Running/Paused, then
// stops the machine. It is a convenience for headless callers that start a
// session and wait on it.
func (m *Machine) Run(ctx context.Context) State {
	poll := m.tickEvery
	if poll <= 0 {
		poll = time.Second
	}
	t := time.NewTicker(poll)
	defer t.Stop()
	for {
		switch s := m.Snapshot().State; s {
		case Stopped, Break:
			return s
		}
		select {
		case <-ctx.Done():
			m.Stop()
			return Stopped
		case <-t.C:
			if m.tickEvery <= 0 {
				m.Tick()
			}
		}
	}
}

package quiz

import (
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// TickFunc schedules fn to produce a message after d. tea.Tick satisfies it.
type TickFunc func(d time.Duration, fn func(time.Time) tea.Msg) tea.Cmd

var lastTimerID int64

func nextTimerID() int {
	return int(atomic.AddInt64(&lastTimerID, 1))
}

// TimerState is a read-only view of a Timer.
type TimerState struct {
	Remaining int
	Duration  int
	Running   bool
}

// TickMsg advances the Timer that scheduled it.
type TickMsg struct {
	id  int
	tag int
}

// Timer is a restartable countdown with one-second granularity.
//
// Every arming and every stop bumps the tag, so ticks scheduled by an earlier
// arming are dropped when they arrive.
type Timer struct {
	id        int
	tag       int
	duration  int
	remaining int
	running   bool
	tick      TickFunc
}

// NewTimer returns a stopped timer that schedules ticks with tick.
func NewTimer(tick TickFunc) *Timer {
	if tick == nil {
		tick = tea.Tick
	}
	return &Timer{id: nextTimerID(), tick: tick}
}

// Start arms the countdown from seconds. Starting a running timer re-arms it.
func (t *Timer) Start(seconds int) tea.Cmd {
	invariant(seconds > 0, "timer armed with %d seconds", seconds)
	t.tag++
	t.duration = seconds
	t.remaining = seconds
	t.running = true
	return t.schedule()
}

// Reset re-arms to seconds without firing expiry. A stopped timer stays stopped.
func (t *Timer) Reset(seconds int) tea.Cmd {
	invariant(seconds > 0, "timer reset to %d seconds", seconds)
	t.tag++
	t.duration = seconds
	t.remaining = seconds
	if !t.running {
		return nil
	}
	return t.schedule()
}

// Stop freezes the countdown. Stopping a stopped timer is a no-op.
func (t *Timer) Stop() {
	if !t.running {
		return
	}
	t.running = false
	t.tag++
}

// Update consumes a TickMsg. The bool reports expiry, which happens exactly once
// per arming.
func (t *Timer) Update(msg tea.Msg) (tea.Cmd, bool) {
	tick, ok := msg.(TickMsg)
	if !ok || tick.id != t.id || tick.tag != t.tag || !t.running {
		return nil, false
	}
	t.remaining--
	if t.remaining > 0 {
		return t.schedule(), false
	}
	t.remaining = 0
	t.running = false
	t.tag++
	return nil, true
}

// State returns a snapshot of the countdown.
func (t *Timer) State() TimerState {
	return TimerState{Remaining: t.remaining, Duration: t.duration, Running: t.running}
}

// Remaining returns the seconds left on the countdown.
func (t *Timer) Remaining() int {
	return t.remaining
}

// Running reports whether the countdown is active.
func (t *Timer) Running() bool {
	return t.running
}

func (t *Timer) schedule() tea.Cmd {
	id, tag := t.id, t.tag
	return t.tick(time.Second, func(time.Time) tea.Msg {
		return TickMsg{id: id, tag: tag}
	})
}

package executor

import (
	"fmt"
	"time"
)

// State is the detector's view of a running program.
type State int

const (
	Running State = iota
	Stalled
	AwaitingInput
	Finished
	StateTimedOut
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Stalled:
		return "stalled"
	case AwaitingInput:
		return "awaiting input"
	case Finished:
		return "finished"
	case StateTimedOut:
		return "timed out"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// activity is what a backend can tell about a live program between outputs.
type activity int

const (
	activityUnknown activity = iota
	// activityBusy means a thread was on CPU or in uninterruptible I/O.
	activityBusy
	// activityWaiting means the program is blocked reading its input.
	activityWaiting
	// activitySleeping means the program is in a timed sleep.
	activitySleeping
)

func (a activity) String() string {
	switch a {
	case activityBusy:
		return "busy"
	case activityWaiting:
		return "waiting"
	case activitySleeping:
		return "sleeping"
	default:
		return "unknown"
	}
}

// detector decides when a silent program is waiting for input. It holds no
// timers of its own; callers pass the current time so tests can drive it
// with a fake clock.
//
// A program is Stalled once it has been alive and silent for the quiescence
// window without being observed busy or asleep.
type detector struct {
	quiescence time.Duration
	maxRounds  int

	state        State
	lastActivity time.Time
	rounds       int
}

func newDetector(quiescence time.Duration, maxRounds int, now time.Time) *detector {
	return &detector{
		quiescence:   quiescence,
		maxRounds:    maxRounds,
		state:        Running,
		lastActivity: now,
	}
}

func (d *detector) State() State { return d.state }

// Rounds returns how many lines have been delivered.
func (d *detector) Rounds() int { return d.rounds }

func (d *detector) done() bool {
	return d.state == Finished || d.state == StateTimedOut
}

// Output records that bytes arrived.
func (d *detector) Output(now time.Time) {
	if d.done() {
		return
	}
	d.state = Running
	d.lastActivity = now
}

// Tick evaluates the program at a poll instant and returns the new state.
func (d *detector) Tick(now time.Time, act activity) State {
	if d.done() || d.state == AwaitingInput {
		return d.state
	}
	switch act {
	case activityBusy, activitySleeping:
		d.lastActivity = now
		d.state = Running
	default:
		if now.Sub(d.lastActivity) >= d.quiescence {
			d.state = Stalled
		}
	}
	return d.state
}

// AwaitInput moves a stalled program to AwaitingInput. It fails once the
// round limit has been reached.
func (d *detector) AwaitInput() error {
	if d.state != Stalled {
		return fmt.Errorf("await input in state %s", d.state)
	}
	if d.rounds >= d.maxRounds {
		return fmt.Errorf("%w: limit is %d", ErrTooManyInputs, d.maxRounds)
	}
	d.state = AwaitingInput
	return nil
}

// Delivered records that a line was written to the program.
func (d *detector) Delivered(now time.Time) {
	d.rounds++
	d.state = Running
	d.lastActivity = now
}

// Exited records that the program ended on its own.
func (d *detector) Exited() {
	if d.state != StateTimedOut {
		d.state = Finished
	}
}

// Expired records that the run deadline passed.
func (d *detector) Expired() {
	if d.state != Finished {
		d.state = StateTimedOut
	}
}

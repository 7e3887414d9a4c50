package receiver

import (
	"errors"
	"fmt"
)

var errForbiddenTransition = errors.New("receiver: forbidden lifecycle transition")

// State is the lifecycle of the network handler bound to one partition.
type State int8

const (
	// StateIdle - no handler exists; the next cycle builds one from scratch.
	StateIdle State = iota
	// StateOpening - handler construction and open are in progress.
	StateOpening
	// StateRunning - handler is open but the link has not attached yet.
	StateRunning
	// StateReady - link attached, pull work is allowed.
	StateReady
	// StateClosed - terminal. No reopen is permitted, a new receiver must
	// be constructed instead.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOpening:
		return "opening"
	case StateRunning:
		return "running"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("unknown state %d", int(s))
	}
}

// lifecycle guards transitions between handler states. It is owned by the
// single caller goroutine together with the rest of the receiver.
type lifecycle struct {
	state State
}

func (l *lifecycle) Current() State {
	return l.state
}

// Running reports whether a handler currently exists (open or attaching).
func (l *lifecycle) Running() bool {
	return l.state == StateRunning || l.state == StateReady
}

func (l *lifecycle) Closed() bool {
	return l.state == StateClosed
}

// To performs a guarded transition. Closed is absorbing: every transition
// out of it fails. Falling back to idle is legal from any live state and
// models the reconnect reset.
func (l *lifecycle) To(next State) error {
	if l.state == StateClosed {
		return fmt.Errorf("%w: %s -> %s", errForbiddenTransition, l.state, next)
	}

	var ok bool
	switch next {
	case StateIdle, StateClosed:
		ok = true
	case StateOpening:
		ok = l.state == StateIdle
	case StateRunning:
		ok = l.state == StateOpening
	case StateReady:
		ok = l.state == StateRunning
	}
	if !ok {
		return fmt.Errorf("%w: %s -> %s", errForbiddenTransition, l.state, next)
	}

	l.state = next

	return nil
}

// Package state implements the lifecycle of a pipeline.
package state

import (
	"errors"
	"fmt"
	"sync"
)

// ErrInvalidState is returned if state is not one of the known states.
var ErrInvalidState = errors.New("invalid state")

// State identifies one of the possible states pipeline can be in.
type State int

// states
const (
	VoidPending State = iota // VoidPending means no transition is in progress.
	Null                     // Null means resources are released.
	Ready                    // Ready means elements are allocated.
	Paused                   // Paused means caps are negotiated and the flow is prepared.
	Playing                  // Playing means data is flowing.
)

func (s State) String() string {
	switch s {
	case VoidPending:
		return "VoidPending"
	case Null:
		return "Null"
	case Ready:
		return "Ready"
	case Paused:
		return "Paused"
	case Playing:
		return "Playing"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Valid reports if state can be a target of transition.
func (s State) Valid() bool {
	return s >= Null && s <= Playing
}

// Change is a transition between two adjacent states.
type Change struct {
	From, To State
}

func (c Change) String() string {
	return fmt.Sprintf("%v->%v", c.From, c.To)
}

// Upward reports if the change moves toward Playing.
func (c Change) Upward() bool {
	return c.To > c.From
}

// Steps returns the adjacent changes needed to get from one state to
// another.
func Steps(from, to State) []Change {
	var steps []Change
	for s := from; s != to; {
		next := s + 1
		if to < s {
			next = s - 1
		}
		steps = append(steps, Change{From: s, To: next})
		s = next
	}
	return steps
}

// ChangeFunc executes a single change. If error is returned, the handle
// stays in the From state.
type ChangeFunc func(Change) error

// Event triggers the state change.
//
// Target identifies which state is expected after event is handled.
// Errc is used to provide feedback to the caller.
type Event interface {
	Target() State
	Errc() chan error
}

// Feedback is a wrapper for error channels. It's used to give feedback
// about state change or error occurred during that change.
type Feedback chan error

// Errc exposes error channel and used to satisfy Event interface.
func (f Feedback) Errc() chan error {
	return f
}

// NewFeedback returns a buffered feedback channel.
func NewFeedback() Feedback {
	return make(Feedback, 1)
}

// Set event requests transition to the state.
type Set struct {
	State
	Feedback
}

// Target state of the Set event.
func (e Set) Target() State {
	return e.State
}

// Close event brings handle to Null and stops the loop.
type Close struct {
	Feedback
}

// Target state of the Close event is Null.
func (Close) Target() State {
	return Null
}

// Handle manages the lifecycle of the pipeline.
type Handle struct {
	// Event channel used to handle new events for state machine.
	// created in constructor, never closed.
	Eventc   chan Event
	changeFn ChangeFunc

	mu      sync.RWMutex
	current State
	pending State
}

// NewHandle returns new initialized handle in Null state.
func NewHandle(fn ChangeFunc) *Handle {
	return &Handle{
		Eventc:   make(chan Event, 1),
		changeFn: fn,
		current:  Null,
		pending:  VoidPending,
	}
}

// Current returns the state handle is in.
func (h *Handle) Current() State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// Pending returns the target of transition in progress.
func (h *Handle) Pending() State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.pending
}

// Loop listens to events until Close event is handled.
func Loop(h *Handle) {
	for e := range h.Eventc {
		err := h.change(e.Target())
		respond(e.Errc(), err)
		if _, ok := e.(Close); ok {
			return
		}
	}
}

// change walks through all steps to the target.
func (h *Handle) change(target State) error {
	if !target.Valid() {
		return fmt.Errorf("%w: %v", ErrInvalidState, target)
	}
	h.setPending(target)
	defer h.setPending(VoidPending)
	for _, c := range Steps(h.Current(), target) {
		if err := h.changeFn(c); err != nil {
			return err
		}
		h.mu.Lock()
		h.current = c.To
		h.mu.Unlock()
	}
	return nil
}

func (h *Handle) setPending(s State) {
	h.mu.Lock()
	h.pending = s
	h.mu.Unlock()
}

// respond sends the error if any and closes the channel.
func respond(errc chan error, err error) {
	if errc == nil {
		return
	}
	if err != nil {
		errc <- err
	}
	close(errc)
}

// Wait for state transition or first error to occur.
func Wait(errc <-chan error) error {
	for err := range errc {
		if err != nil {
			return err
		}
	}
	return nil
}

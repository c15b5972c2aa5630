package pipeline

import (
	"context"
	"fmt"
	"time"

	"pipelined.dev/pipeline/internal/queue"
	"pipelined.dev/pipeline/internal/state"
)

// ErrBusClosed is returned when closed bus has no more messages.
var ErrBusClosed = queue.ErrClosed

// ErrTimeout is returned when no message is received in time.
var ErrTimeout = queue.ErrTimeout

// Object is a source of bus messages: pipeline or element.
type Object interface {
	Name() string
	Path() string
}

// Message is posted on the bus.
type Message interface {
	Source() Object
	Time() time.Time
}

type header struct {
	src Object
	ts  time.Time
}

func newHeader(src Object) header {
	return header{src: src, ts: time.Now()}
}

// Source returns object that posted the message.
func (h header) Source() Object {
	return h.src
}

// Time returns the moment message was posted.
func (h header) Time() time.Time {
	return h.ts
}

type (
	// EOS is posted when the sink received the end of stream.
	EOS struct {
		header
	}

	// Error is posted when element fails.
	Error struct {
		header
		Err     error
		Message string
		Debug   string
	}

	// Warning is posted when element faces a recoverable problem.
	Warning struct {
		header
		Message string
		Debug   string
	}

	// Info is posted with informational messages.
	Info struct {
		header
		Message string
	}

	// StateChanged is posted when element or pipeline changed state.
	StateChanged struct {
		header
		Old, New, Pending State
	}

	// StreamStart is posted when data flow is started.
	StreamStart struct {
		header
	}

	// ElementMessage is an element-specific message.
	ElementMessage struct {
		header
		Fields map[string]any
	}
)

// NewError returns error message with message and debug parts extracted
// from err.
func NewError(src Object, err error) *Error {
	message, debug := describe(err)
	return &Error{header: newHeader(src), Err: err, Message: message, Debug: debug}
}

// NewWarning returns warning message.
func NewWarning(src Object, message, debug string) *Warning {
	return &Warning{header: newHeader(src), Message: message, Debug: debug}
}

// NewInfo returns info message.
func NewInfo(src Object, message string) *Info {
	return &Info{header: newHeader(src), Message: message}
}

// NewElementMessage returns element-specific message.
func NewElementMessage(src Object, fields map[string]any) *ElementMessage {
	return &ElementMessage{header: newHeader(src), Fields: fields}
}

func newStateChanged(src Object, c state.Change, pending State) *StateChanged {
	return &StateChanged{header: newHeader(src), Old: c.From, New: c.To, Pending: pending}
}

func (m *Error) String() string {
	return fmt.Sprintf("error from %s: %s", m.src.Path(), m.Message)
}

func (m *StateChanged) String() string {
	return fmt.Sprintf("%s changed state from %v to %v", m.src.Path(), m.Old, m.New)
}

// Bus delivers messages from pipeline elements to the application in
// order they were posted.
type Bus struct {
	q *queue.Queue[Message]
}

// NewBus returns a new open bus.
func NewBus() *Bus {
	return &Bus{q: queue.New[Message]()}
}

// Post sends the message. False is returned if bus is closed.
func (b *Bus) Post(m Message) bool {
	return b.q.Push(m)
}

// Ready returns a channel that receives a value when bus has messages or
// was closed.
func (b *Bus) Ready() <-chan struct{} {
	return b.q.Ready()
}

// TryPop returns the next message without blocking.
func (b *Bus) TryPop() (Message, bool) {
	return b.q.TryPop()
}

// Pop blocks until the next message, context is done or bus is closed and
// drained.
func (b *Bus) Pop(ctx context.Context) (Message, error) {
	return b.q.Pop(ctx)
}

// TimedPop blocks until the next message for at most timeout. Negative
// timeout waits forever.
func (b *Bus) TimedPop(timeout time.Duration) (Message, error) {
	return b.q.TimedPop(timeout)
}

// Len returns the number of pending messages.
func (b *Bus) Len() int {
	return b.q.Len()
}

// Closed reports if bus is closed.
func (b *Bus) Closed() bool {
	return b.q.Closed()
}

// Close stops accepting new messages. Pending messages can still be
// popped.
func (b *Bus) Close() {
	b.q.Close()
}

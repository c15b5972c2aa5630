package pipeline

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"pipelined.dev/pipeline/internal/state"
)

var (
	// ErrElementNotFound is returned when factory is not registered.
	ErrElementNotFound = errors.New("element not found")
	// ErrMissingElement is matched by parse errors that reference
	// unknown factories.
	ErrMissingElement = errors.New("missing element")
	// ErrNotInitialized is returned when context is used before Init or
	// after Deinit.
	ErrNotInitialized = errors.New("context is not initialized")
	// ErrPipelinesAlive is returned by Deinit if some pipelines are not
	// closed.
	ErrPipelinesAlive = errors.New("pipelines are alive")
	// ErrDuplicateFactory is returned when factory name is already taken.
	ErrDuplicateFactory = errors.New("duplicate factory")
	// ErrDuplicateName is returned when element with the same name is
	// already in the pipeline.
	ErrDuplicateName = errors.New("duplicate element name")
	// ErrPipelineClosed is returned when closed pipeline is used.
	ErrPipelineClosed = errors.New("pipeline is closed")
	// ErrUnknownProperty is returned when element has no such property.
	ErrUnknownProperty = errors.New("unknown property")
	// ErrNotNegotiated is returned when elements of pipeline cannot agree
	// on the format.
	ErrNotNegotiated = errors.New("not negotiated")
	// ErrTopology is returned when pipeline is not a single linked chain
	// from one source to one sink.
	ErrTopology = errors.New("invalid topology")
	// ErrEmptyPipeline is returned when description has no elements.
	ErrEmptyPipeline = errors.New("empty pipeline")
	// ErrSyntax is returned for malformed launch descriptions.
	ErrSyntax = errors.New("syntax error")
)

// ElementNotFoundError is returned when element cannot be made because its
// factory is not registered.
type ElementNotFoundError struct {
	Factory string
}

func (e *ElementNotFoundError) Error() string {
	return fmt.Sprintf("no element %q", e.Factory)
}

// Is matches ErrElementNotFound.
func (e *ElementNotFoundError) Is(err error) bool {
	return err == ErrElementNotFound
}

// LinkError is returned when two pads cannot be linked.
type LinkError struct {
	Src, Sink string
	Err       error
}

func (e *LinkError) Error() string {
	return fmt.Sprintf("failed to link %s to %s: %v", e.Src, e.Sink, e.Err)
}

// Unwrap returns the cause of link failure.
func (e *LinkError) Unwrap() error {
	return e.Err
}

// ParseError is returned when launch description cannot be turned into a
// pipeline. Missing lists every unknown factory exactly once in order of
// appearance.
type ParseError struct {
	Desc    string
	Missing []string
	Err     error
}

func (e *ParseError) Error() string {
	if len(e.Missing) > 0 {
		quoted := make([]string, 0, len(e.Missing))
		for _, m := range e.Missing {
			quoted = append(quoted, strconv.Quote(m))
		}
		return fmt.Sprintf("parse %q: no element %s", e.Desc, strings.Join(quoted, ", "))
	}
	return fmt.Sprintf("parse %q: %v", e.Desc, e.Err)
}

// Is matches ErrMissingElement if some factories are missing.
func (e *ParseError) Is(err error) bool {
	return err == ErrMissingElement && len(e.Missing) > 0
}

// Unwrap returns the cause of parse failure.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// StateChangeError is returned when pipeline rejects a state transition.
type StateChangeError struct {
	Pipeline string
	Change   state.Change
	Err      error
}

func (e *StateChangeError) Error() string {
	return fmt.Sprintf("%s: state change %v failed: %v", e.Pipeline, e.Change, e.Err)
}

// Unwrap returns the cause of failed transition.
func (e *StateChangeError) Unwrap() error {
	return e.Err
}

// BusError is returned by Runner when error message is received from the
// bus.
type BusError struct {
	Source  string
	Message string
	Debug   string
	Err     error
}

func (e *BusError) Error() string {
	if e.Debug == "" {
		return fmt.Sprintf("error from %s: %s", e.Source, e.Message)
	}
	return fmt.Sprintf("error from %s: %s (%s)", e.Source, e.Message, e.Debug)
}

// Unwrap returns the error posted by the element.
func (e *BusError) Unwrap() error {
	return e.Err
}

// FlowError can be returned by elements to provide debug details along with
// the message.
type FlowError struct {
	Message string
	Debug   string
	Err     error
}

// NewFlowError wraps err with message and debug details.
func NewFlowError(err error, message, debug string) *FlowError {
	return &FlowError{Message: message, Debug: debug, Err: err}
}

func (e *FlowError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap returns the cause of flow error.
func (e *FlowError) Unwrap() error {
	return e.Err
}

// describe splits error into message and debug parts.
func describe(err error) (message, debug string) {
	var fe *FlowError
	if errors.As(err, &fe) {
		return fe.Message, fe.Debug
	}
	var inner error = err
	for {
		u := errors.Unwrap(inner)
		if u == nil {
			break
		}
		inner = u
	}
	if inner != err {
		return inner.Error(), err.Error()
	}
	return err.Error(), ""
}

package pipeline

import (
	"fmt"
	"sync"

	"github.com/rs/xid"
	"github.com/sirupsen/logrus"

	"pipelined.dev/pipeline/internal/state"
)

// State of the pipeline.
type State = state.State

// states
const (
	VoidPending = state.VoidPending
	Null        = state.Null
	Ready       = state.Ready
	Paused      = state.Paused
	Playing     = state.Playing
)

// Pipeline is a linear chain of elements: one source, zero or more filters
// and one sink. Pipeline owns its elements; they are released when the
// pipeline is closed.
type Pipeline struct {
	name   string
	id     string
	ctx    *Context
	log    logrus.FieldLogger
	bus    *Bus
	handle *state.Handle

	// stateMu serializes state events and close.
	stateMu sync.Mutex
	mu      sync.RWMutex
	closed  bool
	elems   []Element

	// flow is only accessed from the state loop.
	flow *flow
}

func newPipeline(c *Context, name string) *Pipeline {
	p := &Pipeline{
		name: name,
		id:   xid.New().String(),
		ctx:  c,
		log:  c.log.WithField("pipeline", name),
		bus:  NewBus(),
	}
	p.handle = state.NewHandle(p.change)
	go state.Loop(p.handle)
	return p
}

// Name returns the name of pipeline.
func (p *Pipeline) Name() string {
	return p.name
}

// ID returns the globally unique id of pipeline.
func (p *Pipeline) ID() string {
	return p.id
}

// Path returns the path of pipeline, e.g. /pipeline0.
func (p *Pipeline) Path() string {
	return "/" + p.name
}

// Bus returns the bus of pipeline.
func (p *Pipeline) Bus() *Bus {
	return p.bus
}

// State returns the current state.
func (p *Pipeline) State() State {
	return p.handle.Current()
}

// Add puts elements into the pipeline. Element names must be unique within
// pipeline and elements can be added only when pipeline is in Null state.
func (p *Pipeline) Add(elements ...Element) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPipelineClosed
	}
	if s := p.handle.Current(); s != Null {
		return fmt.Errorf("cannot add elements in %v state", s)
	}
	for _, e := range elements {
		for _, added := range p.elems {
			if added.Name() == e.Name() {
				return fmt.Errorf("%w: %s", ErrDuplicateName, e.Name())
			}
		}
		if err := e.base().setPipeline(p); err != nil {
			return err
		}
		p.elems = append(p.elems, e)
		p.log.WithField("element", e.Name()).Debug("element added")
	}
	return nil
}

// LinkMany links elements one by one in provided order.
func (p *Pipeline) LinkMany(elements ...Element) error {
	for i := 0; i < len(elements)-1; i++ {
		if err := elements[i].Link(elements[i+1]); err != nil {
			return err
		}
	}
	return nil
}

// ByName returns element with provided name or nil.
func (p *Pipeline) ByName(name string) Element {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, e := range p.elems {
		if e.Name() == name {
			return e
		}
	}
	return nil
}

// Elements returns elements in order they were added.
func (p *Pipeline) Elements() []Element {
	p.mu.RLock()
	defer p.mu.RUnlock()
	elements := make([]Element, len(p.elems))
	copy(elements, p.elems)
	return elements
}

// SetState moves pipeline to the state through all intermediate states.
// StateChanged messages are posted for every element and the pipeline
// after each step. If a step fails, *StateChangeError is returned and the
// pipeline stays in the last reached state.
func (p *Pipeline) SetState(s State) error {
	p.stateMu.Lock()
	defer p.stateMu.Unlock()
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return ErrPipelineClosed
	}
	f := state.NewFeedback()
	p.handle.Eventc <- state.Set{State: s, Feedback: f}
	return state.Wait(f)
}

// Close moves pipeline to Null, releases all elements and closes the bus.
// Messages posted before can still be popped. Consequent calls do nothing.
func (p *Pipeline) Close() error {
	p.stateMu.Lock()
	defer p.stateMu.Unlock()
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	f := state.NewFeedback()
	p.handle.Eventc <- state.Close{Feedback: f}
	err := state.Wait(f)
	for _, e := range p.Elements() {
		e.base().release()
	}
	p.bus.Close()
	p.ctx.release(p)
	p.log.Debug("pipeline closed")
	return err
}

// change is called by state loop for every step of transition.
func (p *Pipeline) change(c state.Change) error {
	var err error
	switch c.To {
	case Ready:
		if c.Upward() {
			p.flow, err = p.topology()
		} else {
			p.flow.reset()
		}
	case Paused:
		if c.Upward() {
			err = p.flow.prepare()
		} else {
			p.flow.stop()
		}
	case Playing:
		if err = p.flow.prepared(); err == nil {
			// state messages precede messages of the flow
			p.postStateChanged(c)
			p.flow.play(p)
			return nil
		}
	case Null:
		p.flow = nil
	}
	if err != nil {
		p.log.WithField("change", c).Debug(err)
		return &StateChangeError{Pipeline: p.name, Change: c, Err: err}
	}
	p.postStateChanged(c)
	return nil
}

// postStateChanged posts messages for all elements from sink to source and
// then for the pipeline itself.
func (p *Pipeline) postStateChanged(c state.Change) {
	pending := p.handle.Pending()
	if pending == c.To {
		pending = VoidPending
	}
	elements := p.Elements()
	for i := len(elements) - 1; i >= 0; i-- {
		p.bus.Post(newStateChanged(elements[i], c, VoidPending))
	}
	p.bus.Post(newStateChanged(p, c, pending))
	p.log.WithField("state", c.To).Debug("state changed")
}

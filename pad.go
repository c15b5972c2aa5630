package pipeline

import (
	"errors"
	"fmt"
	"sync"

	"pipelined.dev/pipeline/caps"
	"pipelined.dev/pipeline/media"
)

// Direction of the pad.
type Direction int

// pad directions
const (
	SrcPad Direction = iota
	SinkPad
)

func (d Direction) String() string {
	if d == SrcPad {
		return "src"
	}
	return "sink"
}

// ProbeReturn tells the pad what to do with the buffer after probe.
type ProbeReturn int

// probe returns
const (
	// ProbeOK passes the buffer and keeps the probe.
	ProbeOK ProbeReturn = iota
	// ProbeDrop drops the buffer and keeps the probe.
	ProbeDrop
	// ProbeRemove passes the buffer and removes the probe.
	ProbeRemove
)

// ProbeFunc is called on the streaming goroutine for every buffer pushed
// through the pad.
type ProbeFunc func(*Pad, *media.Buffer) ProbeReturn

// ProbeID identifies the probe on the pad.
type ProbeID uint64

type probe struct {
	id ProbeID
	fn ProbeFunc
}

// Pad is a typed port of the element.
type Pad struct {
	name     string
	dir      Direction
	template *caps.Caps
	parent   *Base

	mu      sync.RWMutex
	peer    *Pad
	current *caps.Caps
	probes  []probe
	nextID  ProbeID
}

// Name of the pad.
func (p *Pad) Name() string {
	return p.name
}

// Direction of the pad.
func (p *Pad) Direction() Direction {
	return p.dir
}

// Template returns caps pad can ever handle.
func (p *Pad) Template() *caps.Caps {
	return p.template
}

// Parent returns element that owns the pad.
func (p *Pad) Parent() Element {
	return p.parent.element()
}

// Path returns the path of the pad, e.g. /pipeline0/test_src:src.
func (p *Pad) Path() string {
	return p.parent.Path() + ":" + p.name
}

// Peer returns linked pad or nil.
func (p *Pad) Peer() *Pad {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.peer
}

// IsLinked reports if pad has a peer.
func (p *Pad) IsLinked() bool {
	return p.Peer() != nil
}

// CurrentCaps returns negotiated caps or nil if pad is not negotiated.
func (p *Pad) CurrentCaps() *caps.Caps {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}

// QueryCaps returns caps pad can handle now, limited by filter. Negotiated
// caps are returned if they are set.
func (p *Pad) QueryCaps(filter *caps.Caps) *caps.Caps {
	c := p.CurrentCaps()
	if c == nil {
		c = p.template
	}
	if filter == nil {
		return c.Copy()
	}
	return c.Intersect(filter)
}

func (p *Pad) setCurrent(c *caps.Caps) {
	p.mu.Lock()
	p.current = c
	p.mu.Unlock()
}

// Link connects src pad to the sink pad. Both pads must belong to the same
// pipeline and have compatible templates.
func (p *Pad) Link(sink *Pad) error {
	linkErr := func(err error) error {
		return &LinkError{Src: p.Path(), Sink: sink.Path(), Err: err}
	}
	if p.dir != SrcPad || sink.dir != SinkPad {
		return linkErr(fmt.Errorf("%w: wrong pad direction", ErrTopology))
	}
	if p.parent == sink.parent {
		return linkErr(fmt.Errorf("%w: element cannot be linked to itself", ErrTopology))
	}
	if p.parent.Pipeline() != sink.parent.Pipeline() {
		return linkErr(errors.New("elements belong to different pipelines"))
	}
	if !p.template.CanIntersect(sink.template) {
		return linkErr(fmt.Errorf("%w: %v and %v have nothing in common", ErrNotNegotiated, p.template, sink.template))
	}
	// pads are always locked from src to sink
	p.mu.Lock()
	defer p.mu.Unlock()
	sink.mu.Lock()
	defer sink.mu.Unlock()
	if p.peer != nil || sink.peer != nil {
		return linkErr(fmt.Errorf("%w: pad is already linked", ErrTopology))
	}
	p.peer = sink
	sink.peer = p
	return nil
}

// AddProbe installs the probe. Probes are called in order of installation
// for every buffer pushed out of src pad.
func (p *Pad) AddProbe(fn ProbeFunc) ProbeID {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	p.probes = append(p.probes, probe{id: p.nextID, fn: fn})
	return p.nextID
}

// RemoveProbe uninstalls the probe.
func (p *Pad) RemoveProbe(id ProbeID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.probes {
		if p.probes[i].id == id {
			p.probes = append(p.probes[:i], p.probes[i+1:]...)
			return
		}
	}
}

// chain calls all probes with the buffer. False is returned if buffer
// should be dropped.
func (p *Pad) chain(b *media.Buffer) bool {
	p.mu.RLock()
	if len(p.probes) == 0 {
		p.mu.RUnlock()
		return true
	}
	probes := make([]probe, len(p.probes))
	copy(probes, p.probes)
	p.mu.RUnlock()

	pass := true
	for _, pr := range probes {
		switch pr.fn(p, b) {
		case ProbeDrop:
			pass = false
		case ProbeRemove:
			p.RemoveProbe(pr.id)
		}
	}
	return pass
}

// release unlinks the pad, removes probes and negotiated caps.
func (p *Pad) release() {
	p.mu.Lock()
	peer := p.peer
	p.peer = nil
	p.probes = nil
	p.current = nil
	p.mu.Unlock()
	if peer != nil {
		peer.mu.Lock()
		if peer.peer == p {
			peer.peer = nil
		}
		peer.mu.Unlock()
	}
}

package pipeline

import (
	"context"
	"fmt"
	"sync"

	"pipelined.dev/pipeline/caps"
	"pipelined.dev/pipeline/media"
)

// Element is a processing stage of the pipeline. Elements are made by the
// Context and must embed *Base.
type Element interface {
	Name() string
	Factory() string
	Klass() string
	ID() string
	Path() string
	SetProperty(name string, value any) error
	Property(name string) (any, error)
	Properties() []Property
	StaticPad(name string) *Pad
	Pads() []*Pad
	Link(dst Element) error
	base() *Base
}

type (
	// SourceFunc produces the next buffer. It returns io.EOF when the stream
	// is over.
	SourceFunc func(context.Context) (*media.Buffer, error)

	// FilterFunc transforms the buffer into zero or more buffers.
	FilterFunc func(*media.Buffer) ([]*media.Buffer, error)

	// SinkFunc consumes the buffer.
	SinkFunc func(context.Context, *media.Buffer) error
)

// Source is an element that produces buffers. Start is called when the
// pipeline goes to Paused with fixed caps of the source pad.
type Source interface {
	Element
	Start(c *caps.Caps) (SourceFunc, error)
}

// Filter is an element that transforms buffers.
type Filter interface {
	Element
	// TransformCaps returns caps on the opposite side of the element given
	// caps on the pad of provided direction.
	TransformCaps(dir Direction, c *caps.Caps) *caps.Caps
	// Start returns transform function and output caps for provided input
	// caps.
	Start(in *caps.Caps) (FilterFunc, *caps.Caps, error)
}

// Sink is an element that consumes buffers.
type Sink interface {
	Element
	Start(c *caps.Caps) (SinkFunc, error)
}

// Flusher is implemented by elements that need to release resources when
// the data flow is stopped.
type Flusher interface {
	Flush(context.Context) error
}

// Fixater is implemented by sources that pick defaults out of allowed caps.
type Fixater interface {
	Fixate(c *caps.Caps) *caps.Caps
}

// Base implements the common part of all elements: identity, pads and
// properties.
type Base struct {
	self    Element
	name    string
	factory string
	klass   string
	id      string

	mu       sync.RWMutex
	pipeline *Pipeline
	pads     []*Pad
	props    []*property
}

// NewBase returns base that must be embedded into element.
func NewBase() *Base {
	return &Base{}
}

func (b *Base) base() *Base {
	return b
}

// Name returns the unique name of element within pipeline.
func (b *Base) Name() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.name
}

// Factory returns the name of factory that made the element.
func (b *Base) Factory() string {
	return b.factory
}

// Klass returns the role of the element.
func (b *Base) Klass() string {
	return b.klass
}

// ID returns the globally unique id of the element.
func (b *Base) ID() string {
	return b.id
}

// Path returns the path of the element, e.g. /pipeline0/test_src.
func (b *Base) Path() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.pipeline == nil {
		return "/" + b.name
	}
	return b.pipeline.Path() + "/" + b.name
}

// Pipeline returns the pipeline element belongs to.
func (b *Base) Pipeline() *Pipeline {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.pipeline
}

// Post sends message on the bus of element's pipeline. False is returned if
// element is not in pipeline or bus is closed.
func (b *Base) Post(m Message) bool {
	if p := b.Pipeline(); p != nil {
		return p.bus.Post(m)
	}
	return false
}

// AddPad creates a new pad with provided template.
func (b *Base) AddPad(name string, dir Direction, template *caps.Caps) *Pad {
	p := &Pad{
		name:     name,
		dir:      dir,
		template: template,
		parent:   b,
	}
	b.mu.Lock()
	b.pads = append(b.pads, p)
	b.mu.Unlock()
	return p
}

// StaticPad returns the pad by name or nil if there is no such pad.
func (b *Base) StaticPad(name string) *Pad {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, p := range b.pads {
		if p.name == name {
			return p
		}
	}
	return nil
}

// Pads returns all pads of element.
func (b *Base) Pads() []*Pad {
	b.mu.RLock()
	defer b.mu.RUnlock()
	pads := make([]*Pad, len(b.pads))
	copy(pads, b.pads)
	return pads
}

// Link links the first unlinked src pad of the element to the first
// unlinked sink pad of dst.
func (b *Base) Link(dst Element) error {
	src := b.freePad(SrcPad)
	sink := dst.base().freePad(SinkPad)
	if src == nil || sink == nil {
		return &LinkError{
			Src:  b.Path(),
			Sink: dst.Path(),
			Err:  fmt.Errorf("%w: no free pads", ErrTopology),
		}
	}
	return src.Link(sink)
}

func (b *Base) freePad(dir Direction) *Pad {
	for _, p := range b.Pads() {
		if p.dir == dir && !p.IsLinked() {
			return p
		}
	}
	return nil
}

// element returns the element that embeds the base.
func (b *Base) element() Element {
	if b.self == nil {
		return b
	}
	return b.self
}

// setPipeline attaches element to the pipeline. Elements can be added only
// once.
func (b *Base) setPipeline(p *Pipeline) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pipeline != nil {
		return fmt.Errorf("%s already belongs to %s", b.name, b.pipeline.Name())
	}
	b.pipeline = p
	return nil
}

// release unlinks all pads and removes their probes.
func (b *Base) release() {
	for _, p := range b.Pads() {
		p.release()
	}
	b.mu.Lock()
	b.pipeline = nil
	b.mu.Unlock()
}

// Package mock provides mock elements and allows to execute integration
// tests of pipelines.
package mock

import (
	"context"
	"io"
	"sync"
	"time"

	"pipelined.dev/pipeline"
	"pipelined.dev/pipeline/caps"
	"pipelined.dev/pipeline/media"
)

// Factory names of mock elements.
const (
	SourceFactory = "mocksrc"
	FilterFactory = "mockfilter"
	SinkFactory   = "mocksink"
)

// Plugin registers mock factories.
func Plugin(r *pipeline.Registry) error {
	return r.Register(
		pipeline.Factory{
			Name:        SourceFactory,
			Klass:       pipeline.KlassSource,
			Description: "Produces buffers of fixed size",
			New:         func() (pipeline.Element, error) { return NewSource(), nil },
		},
		pipeline.Factory{
			Name:        FilterFactory,
			Klass:       pipeline.KlassFilter,
			Description: "Passes buffers through",
			New:         func() (pipeline.Element, error) { return NewFilter(), nil },
		},
		pipeline.Factory{
			Name:        SinkFactory,
			Klass:       pipeline.KlassSink,
			Description: "Records received buffers",
			New:         func() (pipeline.Element, error) { return NewSink(), nil },
		},
	)
}

// ErrorFactory returns factory that fails to make elements.
func ErrorFactory(name string, errorOnMake error) pipeline.Factory {
	return pipeline.Factory{
		Name: name,
		New: func() (pipeline.Element, error) {
			return nil, errorOnMake
		},
	}
}

// Source mocks a source element. Number of buffers and their size are set
// with num-buffers and size properties. Caps property restricts negotiated
// caps.
type Source struct {
	*pipeline.Base
	counter
	Hooks
	Interval    time.Duration
	ErrorOnCall error
}

// NewSource returns mock source with ANY template.
func NewSource() *Source {
	m := &Source{Base: pipeline.NewBase()}
	m.AddPad("src", pipeline.SrcPad, caps.Any())
	m.InstallProperty(
		pipeline.Property{Name: "num-buffers", Kind: pipeline.KindInt, Default: 10},
		pipeline.Property{Name: "size", Kind: pipeline.KindInt, Default: 64},
		pipeline.Property{Name: "caps", Kind: pipeline.KindCaps},
	)
	return m
}

// Fixate picks caps set with property.
func (m *Source) Fixate(allowed *caps.Caps) *caps.Caps {
	if c := m.CapsProperty("caps"); c != nil {
		return allowed.Intersect(c).Fixate()
	}
	return allowed.Fixate()
}

// Start returns source function.
func (m *Source) Start(c *caps.Caps) (pipeline.SourceFunc, error) {
	if err := m.start(); err != nil {
		return nil, err
	}
	limit, size := m.IntProperty("num-buffers"), m.IntProperty("size")
	return func(ctx context.Context) (*media.Buffer, error) {
		if m.ErrorOnCall != nil {
			return nil, m.ErrorOnCall
		}
		n, _ := m.Count()
		if n >= limit {
			return nil, io.EOF
		}
		if m.Interval > 0 {
			select {
			case <-time.After(m.Interval):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		m.advance(size)
		return &media.Buffer{
			Data:     make([]byte, size),
			PTS:      time.Duration(n) * m.Interval,
			Duration: m.Interval,
			Offset:   uint64(n),
			Caps:     c,
		}, nil
	}, nil
}

// Filter mocks a filter element that passes buffers through.
type Filter struct {
	*pipeline.Base
	counter
	Hooks
	ErrorOnCall error
}

// NewFilter returns mock filter with ANY templates.
func NewFilter() *Filter {
	m := &Filter{Base: pipeline.NewBase()}
	m.AddPad("sink", pipeline.SinkPad, caps.Any())
	m.AddPad("src", pipeline.SrcPad, caps.Any())
	return m
}

// TransformCaps returns caps as is.
func (m *Filter) TransformCaps(_ pipeline.Direction, c *caps.Caps) *caps.Caps {
	return c
}

// Start returns filter function.
func (m *Filter) Start(in *caps.Caps) (pipeline.FilterFunc, *caps.Caps, error) {
	if err := m.start(); err != nil {
		return nil, nil, err
	}
	return func(b *media.Buffer) ([]*media.Buffer, error) {
		if m.ErrorOnCall != nil {
			return nil, m.ErrorOnCall
		}
		m.advance(b.Size())
		return []*media.Buffer{b}, nil
	}, in, nil
}

// Sink mocks a sink element and records received buffers.
type Sink struct {
	*pipeline.Base
	counter
	Hooks
	Discard     bool
	ErrorOnCall error

	buffers []*media.Buffer
}

// NewSink returns mock sink with ANY template.
func NewSink() *Sink {
	m := &Sink{Base: pipeline.NewBase()}
	m.AddPad("sink", pipeline.SinkPad, caps.Any())
	return m
}

// Start returns sink function.
func (m *Sink) Start(c *caps.Caps) (pipeline.SinkFunc, error) {
	if err := m.start(); err != nil {
		return nil, err
	}
	return func(_ context.Context, b *media.Buffer) error {
		if m.ErrorOnCall != nil {
			return m.ErrorOnCall
		}
		m.mu.Lock()
		if !m.Discard {
			m.buffers = append(m.buffers, b)
		}
		m.mu.Unlock()
		m.advance(b.Size())
		return nil
	}, nil
}

// Buffers returns received buffers.
func (m *Sink) Buffers() []*media.Buffer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*media.Buffer(nil), m.buffers...)
}

// Hooks allows to mock elements hooks.
type Hooks struct {
	hmu     sync.Mutex
	started int
	flushed int

	ErrorOnStart error
	ErrorOnFlush error
}

func (h *Hooks) start() error {
	h.hmu.Lock()
	defer h.hmu.Unlock()
	if h.ErrorOnStart != nil {
		return h.ErrorOnStart
	}
	h.started++
	return nil
}

// Flush implements pipeline.Flusher.
func (h *Hooks) Flush(context.Context) error {
	h.hmu.Lock()
	defer h.hmu.Unlock()
	h.flushed++
	return h.ErrorOnFlush
}

// Started returns the number of successful Start calls.
func (h *Hooks) Started() int {
	h.hmu.Lock()
	defer h.hmu.Unlock()
	return h.started
}

// Flushed returns the number of Flush calls.
func (h *Hooks) Flushed() int {
	h.hmu.Lock()
	defer h.hmu.Unlock()
	return h.flushed
}

// counter counts buffers and bytes.
type counter struct {
	mu      sync.Mutex
	buffers int
	bytes   int
}

func (c *counter) advance(size int) {
	c.mu.Lock()
	c.buffers++
	c.bytes += size
	c.mu.Unlock()
}

// Count returns the number of processed buffers and bytes.
func (c *counter) Count() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buffers, c.bytes
}

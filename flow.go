package pipeline

import (
	"context"
	"errors"
	"fmt"

	"pipelined.dev/pipeline/caps"
	"pipelined.dev/pipeline/internal/runner"
	"pipelined.dev/pipeline/metric"
)

// flow is a validated chain of pipeline elements. It negotiates caps in
// Paused and runs every element in its own goroutine in Playing.
type flow struct {
	source  Source
	filters []Filter
	sink    Sink

	srcFn     SourceFunc
	filterFns []FilterFunc
	sinkFn    SinkFunc
	played    bool

	cancel context.CancelFunc
	done   chan struct{}
}

// topology checks that pipeline is a single chain from one source to one
// sink.
func (p *Pipeline) topology() (*flow, error) {
	elements := p.Elements()
	if len(elements) == 0 {
		return nil, fmt.Errorf("%w: no elements", ErrTopology)
	}
	var sources []Element
	for _, e := range elements {
		if pad(e, SinkPad) == nil {
			sources = append(sources, e)
		}
	}
	if len(sources) != 1 {
		return nil, fmt.Errorf("%w: expected one source, got %d", ErrTopology, len(sources))
	}

	f := &flow{}
	var ok bool
	if f.source, ok = sources[0].(Source); !ok {
		return nil, fmt.Errorf("%w: %s is not a source", ErrTopology, sources[0].Name())
	}
	visited := 1
	for e := Element(f.source); ; {
		out := pad(e, SrcPad)
		if out == nil {
			if f.sink, ok = e.(Sink); !ok {
				return nil, fmt.Errorf("%w: %s is not a sink", ErrTopology, e.Name())
			}
			break
		}
		peer := out.Peer()
		if peer == nil {
			return nil, fmt.Errorf("%w: %s is not linked", ErrTopology, out.Path())
		}
		e = peer.Parent()
		visited++
		if pad(e, SrcPad) == nil {
			continue
		}
		filter, ok := e.(Filter)
		if !ok {
			return nil, fmt.Errorf("%w: %s is not a filter", ErrTopology, e.Name())
		}
		f.filters = append(f.filters, filter)
	}
	if visited != len(elements) {
		return nil, fmt.Errorf("%w: %d elements are not linked", ErrTopology, len(elements)-visited)
	}
	return f, nil
}

// elements returns the chain from source to sink.
func (f *flow) elements() []Element {
	elements := []Element{f.source}
	for _, filter := range f.filters {
		elements = append(elements, filter)
	}
	return append(elements, f.sink)
}

// negotiate finds fixed caps for the source pad. Allowed caps are
// accumulated from the sink upstream.
func (f *flow) negotiate() (*caps.Caps, error) {
	allowed := pad(f.sink, SinkPad).Template()
	for i := len(f.filters) - 1; i >= 0; i-- {
		filter := f.filters[i]
		allowed = allowed.Intersect(pad(filter, SrcPad).Template())
		allowed = filter.TransformCaps(SrcPad, allowed)
		allowed = allowed.Intersect(pad(filter, SinkPad).Template())
		if allowed.IsEmpty() {
			return nil, fmt.Errorf("%w: %s", ErrNotNegotiated, filter.Path())
		}
	}
	allowed = pad(f.source, SrcPad).Template().Intersect(allowed)
	if allowed.IsEmpty() {
		return nil, fmt.Errorf("%w: %s", ErrNotNegotiated, f.source.Path())
	}
	var fixed *caps.Caps
	if fixater, ok := f.source.(Fixater); ok {
		fixed = fixater.Fixate(allowed)
	} else {
		fixed = allowed.Fixate()
	}
	if !fixed.IsAny() && !fixed.IsFixed() {
		return nil, fmt.Errorf("%w: cannot fixate %v", ErrNotNegotiated, allowed)
	}
	return fixed, nil
}

// prepare negotiates caps and starts elements. Started elements are
// flushed if any of the following fails.
func (f *flow) prepare() (err error) {
	fixed, err := f.negotiate()
	if err != nil {
		return err
	}
	var started []Element
	defer func() {
		if err != nil {
			for _, e := range started {
				flush(e)
			}
			f.clear()
		}
	}()

	pad(f.source, SrcPad).setCurrent(fixed)
	if f.srcFn, err = f.source.Start(fixed); err != nil {
		return fmt.Errorf("%s: %w", f.source.Path(), err)
	}
	started = append(started, f.source)

	in := fixed
	f.filterFns = make([]FilterFunc, len(f.filters))
	for i, filter := range f.filters {
		pad(filter, SinkPad).setCurrent(in)
		var out *caps.Caps
		if f.filterFns[i], out, err = filter.Start(in); err != nil {
			return fmt.Errorf("%s: %w", filter.Path(), err)
		}
		started = append(started, filter)
		if out == nil {
			out = in
		}
		pad(filter, SrcPad).setCurrent(out)
		in = out
	}

	sinkPad := pad(f.sink, SinkPad)
	if !in.CanIntersect(sinkPad.Template()) {
		return fmt.Errorf("%w: %s does not accept %v", ErrNotNegotiated, f.sink.Path(), in)
	}
	sinkPad.setCurrent(in)
	if f.sinkFn, err = f.sink.Start(in); err != nil {
		return fmt.Errorf("%s: %w", f.sink.Path(), err)
	}
	f.played = false
	return nil
}

// prepared returns error if flow cannot be played.
func (f *flow) prepared() error {
	if f == nil || f.srcFn == nil || f.sinkFn == nil {
		return errors.New("flow is not prepared")
	}
	return nil
}

// play starts runners of all elements. Errors of runners are posted on the
// bus of pipeline and stop the flow. EOS is posted when it reaches the
// sink.
func (f *flow) play(p *Pipeline) {
	p.bus.Post(&StreamStart{header: newHeader(f.source)})
	ctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	f.done = make(chan struct{})
	f.played = true

	metrics := p.ctx.metrics
	elements := make(map[string]Element)
	var dones []metric.Done
	for _, e := range f.elements() {
		elements[e.Path()] = e
		dones = append(dones, metrics.Start(e.Factory()))
	}
	meter := func(e Element) metric.ResetFunc {
		return metrics.Meter(e.Factory(), e.Name())
	}

	out, errs := runner.Source{
		ID:    f.source.Path(),
		Fn:    f.srcFn,
		Flush: flusher(f.source),
		Meter: meter(f.source),
		Probe: pad(f.source, SrcPad).chain,
	}.Run(ctx)
	errcs := []<-chan error{errs}
	for i, filter := range f.filters {
		out, errs = runner.Filter{
			ID:    filter.Path(),
			Fn:    f.filterFns[i],
			Flush: flusher(filter),
			Meter: meter(filter),
			Probe: pad(filter, SrcPad).chain,
		}.Run(ctx, out)
		errcs = append(errcs, errs)
	}
	errcs = append(errcs, runner.Sink{
		ID:    f.sink.Path(),
		Fn:    f.sinkFn,
		Flush: flusher(f.sink),
		Meter: meter(f.sink),
		EOS: func() {
			p.bus.Post(&EOS{header: newHeader(p)})
		},
	}.Run(ctx, out))

	go func() {
		defer close(f.done)
		for err := range runner.Merge(errcs...) {
			var src Object = p
			var re *runner.Error
			if errors.As(err, &re) {
				if e, ok := elements[re.ID]; ok {
					src = e
				}
				err = re.Err
			}
			p.log.WithField("element", src.Name()).Debug(err)
			p.bus.Post(NewError(src, err))
			cancel()
		}
		for _, done := range dones {
			done()
		}
	}()
}

// stop cancels the runners and waits for them to return.
func (f *flow) stop() {
	if f == nil || f.cancel == nil {
		return
	}
	f.cancel()
	<-f.done
	f.cancel = nil
}

// reset stops the flow and drops negotiated caps. Elements that were
// started, but never played are flushed.
func (f *flow) reset() {
	if f == nil {
		return
	}
	f.stop()
	if !f.played && f.srcFn != nil {
		for _, e := range f.elements() {
			flush(e)
		}
	}
	f.clear()
}

func (f *flow) clear() {
	for _, e := range f.elements() {
		for _, p := range e.Pads() {
			p.setCurrent(nil)
		}
	}
	f.srcFn, f.filterFns, f.sinkFn = nil, nil, nil
	f.played = false
}

// pad returns the first pad of element with provided direction.
func pad(e Element, dir Direction) *Pad {
	for _, p := range e.Pads() {
		if p.Direction() == dir {
			return p
		}
	}
	return nil
}

func flusher(e Element) runner.Flush {
	if f, ok := e.(Flusher); ok {
		return f.Flush
	}
	return nil
}

func flush(e Element) {
	if f, ok := e.(Flusher); ok {
		_ = f.Flush(context.Background())
	}
}

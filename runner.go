package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"pipelined.dev/pipeline/caps"
)

// capsPrefix indents caps dump of inspected sink pad.
const capsPrefix = "     "

// Runner builds pipelines, runs them until EOS or error and tears them
// down. Diagnostic lines are written to the output.
type Runner struct {
	ctx     *Context
	out     io.Writer
	log     logrus.FieldLogger
	inspect string
	probes  bool
}

// RunnerOption provides a way to set functional parameters to runner.
type RunnerOption func(*Runner)

// WithOutput sets the writer of diagnostic lines. Stdout is used by
// default.
func WithOutput(w io.Writer) RunnerOption {
	return func(r *Runner) {
		r.out = w
	}
}

// InspectSink dumps caps of the sink pad of the named element every time
// the pipeline changes state.
func InspectSink(name string) RunnerOption {
	return func(r *Runner) {
		r.inspect = name
	}
}

// WithProbes observes every buffer pushed through links of pipeline and
// writes its payload size.
func WithProbes() RunnerOption {
	return func(r *Runner) {
		r.probes = true
	}
}

// NewRunner returns runner that uses provided context.
func NewRunner(c *Context, options ...RunnerOption) *Runner {
	r := &Runner{
		ctx: c,
		out: os.Stdout,
		log: c.Logger(),
	}
	for _, option := range options {
		option(r)
	}
	return r
}

// Build makes the pipeline from element descriptions.
func (r *Runner) Build(elements []ElementDesc) (*Pipeline, error) {
	return r.ctx.Build(&Description{Elements: elements})
}

// BuildLaunch makes the pipeline from launch description.
func (r *Runner) BuildLaunch(desc string) (*Pipeline, error) {
	return r.ctx.ParseLaunch(desc)
}

// Run sets the pipeline to Playing and handles bus messages until EOS or
// error is received or context is done. Pipeline is set to Null and closed
// afterwards regardless of the result. *StateChangeError is returned if
// pipeline cannot be started and *BusError if error message is received.
func (r *Runner) Run(ctx context.Context, p *Pipeline) error {
	log := r.log.WithField("pipeline", p.Name())
	defer func() {
		if err := p.Close(); err != nil {
			log.Warnf("failed to close pipeline: %v", err)
		}
	}()

	var obs *Observer
	if r.probes {
		obs = NewObserver()
		for _, e := range p.Elements() {
			if src := pad(e, SrcPad); src != nil && src.IsLinked() {
				obs.Attach(src)
			}
		}
		defer obs.Close()
	}

	if err := p.SetState(Playing); err != nil {
		r.teardown(log, p)
		return err
	}
	err := r.loop(ctx, p, obs)
	r.teardown(log, p)
	r.observe(obs)
	return err
}

// loop handles messages in order of arrival. Observations are written as
// soon as they are recorded.
func (r *Runner) loop(ctx context.Context, p *Pipeline, obs *Observer) error {
	bus := p.Bus()
	var observed <-chan struct{}
	if obs != nil {
		observed = obs.Ready()
	}
	for {
		select {
		case <-bus.Ready():
			for {
				m, ok := bus.TryPop()
				if !ok {
					break
				}
				if done, err := r.handle(p, m); done {
					r.observe(obs)
					return err
				}
			}
			if bus.Closed() {
				return nil
			}
		case <-observed:
			r.observe(obs)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// handle returns true if message terminates the loop.
func (r *Runner) handle(p *Pipeline, m Message) (bool, error) {
	switch m := m.(type) {
	case *EOS:
		fmt.Fprintln(r.out, "End of stream")
		return true, nil
	case *Error:
		src := m.Source().Path()
		fmt.Fprintf(r.out, "Error from %s: %s (%s)\n", src, m.Message, m.Debug)
		return true, &BusError{Source: src, Message: m.Message, Debug: m.Debug, Err: m.Err}
	case *Warning:
		fmt.Fprintf(r.out, "Warning from %s: %s (%s)\n", m.Source().Path(), m.Message, m.Debug)
	case *StateChanged:
		if m.Source() != Object(p) {
			return false, nil
		}
		fmt.Fprintf(r.out, "Pipeline state changed from %v to %v\n", m.Old, m.New)
		r.dumpSink(p)
	default:
		r.log.WithField("pipeline", p.Name()).Debugf("%T from %s", m, m.Source().Path())
	}
	return false, nil
}

// dumpSink writes caps of the inspected sink pad. Negotiated caps are used
// if available, otherwise the caps pad can accept.
func (r *Runner) dumpSink(p *Pipeline) {
	if r.inspect == "" {
		return
	}
	e := p.ByName(r.inspect)
	if e == nil {
		r.log.Warnf("no element %q to inspect", r.inspect)
		return
	}
	sink := e.StaticPad("sink")
	if sink == nil {
		r.log.Warnf("%s has no sink pad", e.Path())
		return
	}
	fmt.Fprintln(r.out, "Caps for the sink pad:")
	if err := caps.Dump(r.out, sink.QueryCaps(nil), capsPrefix); err != nil {
		r.log.Warnf("failed to dump caps: %v", err)
	}
}

func (r *Runner) observe(obs *Observer) {
	if obs == nil {
		return
	}
	for {
		o, ok := obs.Next()
		if !ok {
			return
		}
		fmt.Fprintf(r.out, "Buffer of %d bytes on %s\n", o.Size, o.Pad)
	}
}

// teardown sets pipeline to Null. Failure is logged, but not returned.
func (r *Runner) teardown(log logrus.FieldLogger, p *Pipeline) {
	if err := p.SetState(Null); err != nil {
		log.Warnf("unable to set the pipeline to the null state: %v", err)
	}
}

// Package runner executes elements of the running pipeline. Every element
// runs in its own goroutine and is connected with the next one by channel.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"pipelined.dev/pipeline/media"
	"pipelined.dev/pipeline/metric"
)

// Message is a main structure for pipeline transport. Either buffer or EOS
// is set.
type Message struct {
	Buffer *media.Buffer
	EOS    bool
}

type (
	// Source executes source elements.
	Source struct {
		ID    string
		Fn    func(context.Context) (*media.Buffer, error)
		Flush Flush
		Meter metric.ResetFunc
		Probe Probe
	}

	// Filter executes filter elements.
	Filter struct {
		ID    string
		Fn    func(*media.Buffer) ([]*media.Buffer, error)
		Flush Flush
		Meter metric.ResetFunc
		Probe Probe
	}

	// Sink executes sink elements.
	Sink struct {
		ID    string
		Fn    func(context.Context, *media.Buffer) error
		Flush Flush
		Meter metric.ResetFunc
		// EOS is called when end of stream reached the sink.
		EOS func()
	}
)

// Probe is called with every buffer pushed out of the element. If false is
// returned, buffer is dropped.
type Probe func(*media.Buffer) bool

func (fn Probe) call(b *media.Buffer) bool {
	if fn == nil {
		return true
	}
	return fn(b)
}

// Flush is a closure that triggers element flush function.
type Flush func(context.Context) error

func (fn Flush) call(ctx context.Context) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

// Error is returned when element fails.
type Error struct {
	ID  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.ID, e.Err)
}

// Unwrap returns the error of element.
func (e *Error) Unwrap() error {
	return e.Err
}

func meter(fn metric.ResetFunc) metric.MeasureFunc {
	if fn == nil {
		return func(*media.Buffer) {}
	}
	return fn()
}

// Run starts the Source runner.
func (r Source) Run(ctx context.Context) (<-chan Message, <-chan error) {
	out := make(chan Message, 1)
	errs := make(chan error, 1)
	measure := meter(r.Meter)
	go func() {
		defer close(out)
		defer close(errs)
		var err error
		// Flush hook on return
		defer func() {
			if ferr := r.Flush.call(ctx); ferr != nil && err == nil {
				errs <- &Error{ID: r.ID, Err: fmt.Errorf("error flushing source: %w", ferr)}
			}
		}()
		var b *media.Buffer
		for {
			if b, err = r.Fn(ctx); err != nil {
				if errors.Is(err, io.EOF) {
					err = nil
					send(ctx, out, Message{EOS: true})
				} else if ctx.Err() == nil {
					errs <- &Error{ID: r.ID, Err: err}
				}
				return
			}
			measure(b) // capture metrics
			if !r.Probe.call(b) {
				continue
			}
			if !send(ctx, out, Message{Buffer: b}) {
				return
			}
		}
	}()
	return out, errs
}

// Run starts the Filter runner.
func (r Filter) Run(ctx context.Context, in <-chan Message) (<-chan Message, <-chan error) {
	out := make(chan Message, 1)
	errs := make(chan error, 1)
	measure := meter(r.Meter)
	go func() {
		defer close(out)
		defer close(errs)
		var err error
		defer func() {
			if ferr := r.Flush.call(ctx); ferr != nil && err == nil {
				errs <- &Error{ID: r.ID, Err: fmt.Errorf("error flushing filter: %w", ferr)}
			}
		}()
		var (
			m  Message
			ok bool
			bs []*media.Buffer
		)
		for {
			// retrieve new message
			select {
			case m, ok = <-in:
				if !ok {
					return
				}
			case <-ctx.Done():
				return
			}
			if m.EOS {
				send(ctx, out, m)
				return
			}

			if bs, err = r.Fn(m.Buffer); err != nil {
				errs <- &Error{ID: r.ID, Err: err}
				return
			}
			for _, b := range bs {
				measure(b)
				if !r.Probe.call(b) {
					continue
				}
				if !send(ctx, out, Message{Buffer: b}) {
					return
				}
			}
		}
	}()
	return out, errs
}

// Run starts the Sink runner. Flush hook is called before EOS is reported.
func (r Sink) Run(ctx context.Context, in <-chan Message) <-chan error {
	errs := make(chan error, 1)
	measure := meter(r.Meter)
	go func() {
		defer close(errs)
		var (
			m       Message
			ok      bool
			err     error
			flushed bool
		)
		defer func() {
			if flushed {
				return
			}
			if ferr := r.Flush.call(ctx); ferr != nil && err == nil {
				errs <- &Error{ID: r.ID, Err: fmt.Errorf("error flushing sink: %w", ferr)}
			}
		}()
		for {
			select {
			case m, ok = <-in:
				if !ok {
					return
				}
			case <-ctx.Done():
				return
			}
			if m.EOS {
				flushed = true
				if err = r.Flush.call(ctx); err != nil {
					errs <- &Error{ID: r.ID, Err: fmt.Errorf("error flushing sink: %w", err)}
					return
				}
				if r.EOS != nil {
					r.EOS()
				}
				return
			}
			if err = r.Fn(ctx, m.Buffer); err != nil {
				if ctx.Err() == nil {
					errs <- &Error{ID: r.ID, Err: err}
				}
				return
			}
			measure(m.Buffer)
		}
	}()
	return errs
}

// send message further unless context is done.
func send(ctx context.Context, out chan<- Message, m Message) bool {
	select {
	case out <- m:
		return true
	case <-ctx.Done():
		return false
	}
}

// Merge error channels from all runners into one. Returned channel is closed
// when all runners are done.
func Merge(errcList ...<-chan error) <-chan error {
	var wg sync.WaitGroup
	errc := make(chan error, len(errcList))
	wg.Add(len(errcList))
	for _, ec := range errcList {
		go func(ec <-chan error) {
			defer wg.Done()
			for err := range ec {
				errc <- err
			}
		}(ec)
	}
	go func() {
		wg.Wait()
		close(errc)
	}()
	return errc
}

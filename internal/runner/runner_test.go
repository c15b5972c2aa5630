package runner_test

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"

	"pipelined.dev/pipeline/internal/runner"
	"pipelined.dev/pipeline/media"
)

var errTest = errors.New("test runner error")

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// source returns a source function that produces limit buffers of size bytes.
func source(limit, size int, errOnCall error) func(context.Context) (*media.Buffer, error) {
	var n int
	return func(ctx context.Context) (*media.Buffer, error) {
		if errOnCall != nil {
			return nil, errOnCall
		}
		if n >= limit {
			return nil, io.EOF
		}
		n++
		return &media.Buffer{Data: make([]byte, size), Offset: uint64(n)}, nil
	}
}

func TestLine(t *testing.T) {
	tests := []struct {
		name      string
		limit     int
		srcErr    error
		filterErr error
		sinkErr   error
		eos       bool
		sunk      int
		err       error
	}{
		{name: "eos", limit: 10, eos: true, sunk: 10},
		{name: "empty", limit: 0, eos: true, sunk: 0},
		{name: "source error", limit: 10, srcErr: errTest, err: errTest},
		{name: "filter error", limit: 10, filterErr: errTest, err: errTest},
		{name: "sink error", limit: 10, sinkErr: errTest, err: errTest},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var (
				probed  int32
				sunk    int
				eos     bool
				flushed int32
			)
			flushFn := func(context.Context) error {
				atomic.AddInt32(&flushed, 1)
				return nil
			}
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			src := runner.Source{
				ID: "src",
				Fn: source(test.limit, 16, test.srcErr),
				Probe: func(b *media.Buffer) bool {
					atomic.AddInt32(&probed, 1)
					return true
				},
				Flush: flushFn,
			}
			filter := runner.Filter{
				ID: "filter",
				Fn: func(b *media.Buffer) ([]*media.Buffer, error) {
					if test.filterErr != nil {
						return nil, test.filterErr
					}
					return []*media.Buffer{b}, nil
				},
				Flush: flushFn,
			}
			sink := runner.Sink{
				ID: "sink",
				Fn: func(_ context.Context, b *media.Buffer) error {
					if test.sinkErr != nil {
						return test.sinkErr
					}
					sunk++
					return nil
				},
				Flush: flushFn,
				EOS:   func() { eos = true },
			}
			out, srcErrs := src.Run(ctx)
			out, filterErrs := filter.Run(ctx, out)
			sinkErrs := sink.Run(ctx, out)

			var err error
			for e := range runner.Merge(srcErrs, filterErrs, sinkErrs) {
				if err == nil {
					err = e
				}
				cancel()
			}
			if test.err != nil {
				var re *runner.Error
				assert.True(t, errors.As(err, &re))
				assert.True(t, errors.Is(err, test.err))
			} else {
				assert.Nil(t, err)
			}
			assert.Equal(t, test.eos, eos)
			assert.Equal(t, test.sunk, sunk)
			assert.Equal(t, int32(3), atomic.LoadInt32(&flushed))
			if test.err == nil {
				assert.Equal(t, int32(test.limit), atomic.LoadInt32(&probed))
			}
		})
	}
}

func TestProbeDrop(t *testing.T) {
	ctx := context.Background()
	src := runner.Source{
		Fn: source(10, 1, nil),
		Probe: func(b *media.Buffer) bool {
			return b.Offset%2 == 0
		},
	}
	var sunk []uint64
	sink := runner.Sink{
		Fn: func(_ context.Context, b *media.Buffer) error {
			sunk = append(sunk, b.Offset)
			return nil
		},
	}
	out, errs := src.Run(ctx)
	for err := range runner.Merge(errs, sink.Run(ctx, out)) {
		assert.Nil(t, err)
	}
	assert.Equal(t, []uint64{2, 4, 6, 8, 10}, sunk)
}

func TestFilterFanOut(t *testing.T) {
	ctx := context.Background()
	src := runner.Source{Fn: source(3, 4, nil)}
	filter := runner.Filter{
		Fn: func(b *media.Buffer) ([]*media.Buffer, error) {
			return []*media.Buffer{
				{Data: b.Data[:2]},
				{Data: b.Data[2:]},
			}, nil
		},
	}
	var sunk int
	sink := runner.Sink{
		Fn: func(_ context.Context, b *media.Buffer) error {
			assert.Equal(t, 2, b.Size())
			sunk++
			return nil
		},
	}
	out, srcErrs := src.Run(ctx)
	out, filterErrs := filter.Run(ctx, out)
	for err := range runner.Merge(srcErrs, filterErrs, sink.Run(ctx, out)) {
		assert.Nil(t, err)
	}
	assert.Equal(t, 6, sunk)
}

func TestCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := runner.Source{
		Fn: func(ctx context.Context) (*media.Buffer, error) {
			return &media.Buffer{}, nil
		},
	}
	eos := false
	sink := runner.Sink{
		Fn: func(ctx context.Context, b *media.Buffer) error {
			cancel()
			return nil
		},
		EOS: func() { eos = true },
	}
	out, errs := src.Run(ctx)
	for err := range runner.Merge(errs, sink.Run(ctx, out)) {
		assert.Nil(t, err)
	}
	assert.False(t, eos)
}

func TestFlushErrorOnEOS(t *testing.T) {
	ctx := context.Background()
	src := runner.Source{Fn: source(1, 1, nil)}
	eos := false
	sink := runner.Sink{
		Fn:    func(context.Context, *media.Buffer) error { return nil },
		Flush: func(context.Context) error { return errTest },
		EOS:   func() { eos = true },
	}
	out, errs := src.Run(ctx)
	var err error
	for e := range runner.Merge(errs, sink.Run(ctx, out)) {
		err = e
	}
	assert.True(t, errors.Is(err, errTest))
	assert.False(t, eos)
}

package mock_test

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pipelined.dev/pipeline"
	"pipelined.dev/pipeline/caps"
	"pipelined.dev/pipeline/media"
	"pipelined.dev/pipeline/mock"
)

var errTest = errors.New("test error")

func TestSource(t *testing.T) {
	tests := []struct {
		name    string
		limit   int
		size    int
		errCall error
		calls   int
	}{
		{name: "3 buffers", limit: 3, size: 10, calls: 3},
		{name: "no buffers", limit: 0, size: 10, calls: 0},
		{name: "error on call", limit: 3, size: 10, errCall: errTest},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			src := mock.NewSource()
			src.ErrorOnCall = test.errCall
			require.NoError(t, src.SetProperty("num-buffers", test.limit))
			require.NoError(t, src.SetProperty("size", test.size))
			fn, err := src.Start(caps.Any())
			require.NoError(t, err)
			for {
				b, err := fn(context.Background())
				if err != nil {
					if test.errCall != nil {
						assert.Equal(t, test.errCall, err)
					} else {
						assert.Equal(t, io.EOF, err)
					}
					break
				}
				assert.Equal(t, test.size, b.Size())
			}
			buffers, bytes := src.Count()
			assert.Equal(t, test.calls, buffers)
			assert.Equal(t, test.calls*test.size, bytes)
		})
	}
}

func TestSourceFixate(t *testing.T) {
	src := mock.NewSource()
	require.NoError(t, src.SetProperty("caps", "audio/x-raw,rate=[8000,48000]"))
	fixed := src.Fixate(caps.MustParse("audio/x-raw,rate=[16000,96000],channels=[1,2]"))
	assert.Equal(t, "audio/x-raw, rate=(int)16000, channels=(int)1", fixed.String())
}

func TestSink(t *testing.T) {
	sink := mock.NewSink()
	fn, err := sink.Start(caps.Any())
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		assert.NoError(t, fn(context.Background(), &media.Buffer{Data: make([]byte, 2)}))
	}
	buffers, bytes := sink.Count()
	assert.Equal(t, 5, buffers)
	assert.Equal(t, 10, bytes)
	assert.Len(t, sink.Buffers(), 5)

	sink.ErrorOnCall = errTest
	assert.Equal(t, errTest, fn(context.Background(), &media.Buffer{}))
}

func TestHooks(t *testing.T) {
	filter := mock.NewFilter()
	filter.ErrorOnStart = errTest
	_, _, err := filter.Start(caps.Any())
	assert.Equal(t, errTest, err)
	assert.Equal(t, 0, filter.Started())

	filter.ErrorOnStart = nil
	_, out, err := filter.Start(caps.Any())
	assert.NoError(t, err)
	assert.True(t, out.IsAny())
	assert.Equal(t, 1, filter.Started())

	filter.ErrorOnFlush = errTest
	assert.Equal(t, errTest, filter.Flush(context.Background()))
	assert.Equal(t, 1, filter.Flushed())
}

func TestPlugin(t *testing.T) {
	r := pipeline.NewRegistry()
	require.NoError(t, mock.Plugin(r))
	for _, name := range []string{mock.SourceFactory, mock.FilterFactory, mock.SinkFactory} {
		_, err := r.Lookup(name)
		assert.NoError(t, err)
	}
	assert.Error(t, mock.Plugin(r))
}

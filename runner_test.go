package pipeline_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pipelined.dev/pipeline"
	"pipelined.dev/pipeline/media"
	"pipelined.dev/pipeline/mock"
)

func TestRunEOS(t *testing.T) {
	c := newContext(t)
	var out bytes.Buffer
	r := pipeline.NewRunner(c, pipeline.WithOutput(&out))
	p, err := r.BuildLaunch("mocksrc num-buffers=3 ! mocksink name=sink")
	require.NoError(t, err)

	require.NoError(t, r.Run(context.Background(), p))
	assert.Equal(t, pipeline.Null, p.State())
	assert.Equal(t, strings.Join([]string{
		"Pipeline state changed from Null to Ready",
		"Pipeline state changed from Ready to Paused",
		"Pipeline state changed from Paused to Playing",
		"End of stream",
		"",
	}, "\n"), out.String())

	buffers, _ := p.ByName("sink").(*mock.Sink).Count()
	assert.Equal(t, 3, buffers)
	assert.ErrorIs(t, p.SetState(pipeline.Playing), pipeline.ErrPipelineClosed)
}

func TestRunErrors(t *testing.T) {
	errTest := errors.New("test error")
	tests := []struct {
		name   string
		setup  func(*pipeline.Pipeline)
		source string
	}{
		{
			name: "source",
			setup: func(p *pipeline.Pipeline) {
				p.ByName("src").(*mock.Source).ErrorOnCall = errTest
			},
			source: "src",
		},
		{
			name: "filter",
			setup: func(p *pipeline.Pipeline) {
				p.ByName("filter").(*mock.Filter).ErrorOnCall = errTest
			},
			source: "filter",
		},
		{
			name: "sink",
			setup: func(p *pipeline.Pipeline) {
				p.ByName("sink").(*mock.Sink).ErrorOnCall = errTest
			},
			source: "sink",
		},
		{
			name: "sink flush",
			setup: func(p *pipeline.Pipeline) {
				p.ByName("sink").(*mock.Sink).ErrorOnFlush = errTest
			},
			source: "sink",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			c := newContext(t)
			var out bytes.Buffer
			r := pipeline.NewRunner(c, pipeline.WithOutput(&out))
			p, err := r.BuildLaunch("mocksrc name=src ! mockfilter name=filter ! mocksink name=sink")
			require.NoError(t, err)
			test.setup(p)

			err = r.Run(context.Background(), p)
			var be *pipeline.BusError
			require.ErrorAs(t, err, &be)
			assert.ErrorIs(t, err, errTest)
			path := "/" + p.Name() + "/" + test.source
			assert.Equal(t, path, be.Source)
			assert.Contains(t, out.String(), "Error from "+path+": ")
			assert.NotContains(t, out.String(), "End of stream")
			assert.Equal(t, pipeline.Null, p.State())
		})
	}
}

func TestRunStartError(t *testing.T) {
	c := newContext(t)
	var out bytes.Buffer
	r := pipeline.NewRunner(c, pipeline.WithOutput(&out))
	p, err := r.BuildLaunch("mocksrc name=src ! mocksink")
	require.NoError(t, err)
	errStart := errors.New("start error")
	src := p.ByName("src").(*mock.Source)
	src.ErrorOnStart = errStart

	err = r.Run(context.Background(), p)
	var sce *pipeline.StateChangeError
	require.ErrorAs(t, err, &sce)
	assert.ErrorIs(t, err, errStart)
	assert.Equal(t, pipeline.Ready, sce.Change.From)
	assert.Equal(t, pipeline.Paused, sce.Change.To)
	assert.Equal(t, pipeline.Null, p.State())
	assert.Equal(t, 0, src.Started())
	assert.Empty(t, out.String())
}

func TestRunCancel(t *testing.T) {
	c := newContext(t)
	r := pipeline.NewRunner(c, pipeline.WithOutput(&bytes.Buffer{}))
	p, err := r.BuildLaunch("mocksrc name=src num-buffers=100000 ! mocksink name=sink")
	require.NoError(t, err)
	p.ByName("src").(*mock.Source).Interval = time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = r.Run(ctx, p)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, pipeline.Null, p.State())
	buffers, _ := p.ByName("sink").(*mock.Sink).Count()
	assert.Less(t, buffers, 100000)
}

func TestRunInspectSink(t *testing.T) {
	tests := []struct {
		name     string
		desc     string
		inspect  string
		expected string
	}{
		{
			name:     "any",
			desc:     "mocksrc num-buffers=1 ! mocksink name=sink",
			inspect:  "sink",
			expected: "     ANY\n",
		},
		{
			name:     "structure",
			desc:     "mocksrc num-buffers=1 caps=audio/x-raw,rate=8000,channels=2 ! mocksink name=sink",
			inspect:  "sink",
			expected: "     audio/x-raw\n       rate:8000\n       channels:2\n",
		},
		{
			name:     "no sink pad",
			desc:     "mocksrc name=src num-buffers=1 ! mocksink",
			inspect:  "src",
			expected: "",
		},
		{
			name:     "no element",
			desc:     "mocksrc num-buffers=1 ! mocksink",
			inspect:  "nonexistent",
			expected: "",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			c := newContext(t)
			var out bytes.Buffer
			r := pipeline.NewRunner(c, pipeline.WithOutput(&out), pipeline.InspectSink(test.inspect))
			p, err := r.BuildLaunch(test.desc)
			require.NoError(t, err)
			require.NoError(t, r.Run(context.Background(), p))

			var dump string
			if test.expected != "" {
				dump = "Caps for the sink pad:\n" + test.expected
			}
			assert.Equal(t, strings.Join([]string{
				"Pipeline state changed from Null to Ready\n" + dump,
				"Pipeline state changed from Ready to Paused\n" + dump,
				"Pipeline state changed from Paused to Playing\n" + dump,
				"End of stream\n",
			}, ""), out.String())
		})
	}
}

func TestRunProbes(t *testing.T) {
	c := newContext(t)
	var out bytes.Buffer
	r := pipeline.NewRunner(c, pipeline.WithOutput(&out), pipeline.WithProbes())
	p, err := r.BuildLaunch("mocksrc name=src num-buffers=2 size=8 ! mockfilter name=filter ! mocksink")
	require.NoError(t, err)
	require.NoError(t, r.Run(context.Background(), p))

	path := "/" + p.Name()
	assert.Equal(t, 2, strings.Count(out.String(), "Buffer of 8 bytes on "+path+"/src:src\n"))
	assert.Equal(t, 2, strings.Count(out.String(), "Buffer of 8 bytes on "+path+"/filter:src\n"))
	assert.Equal(t, 4, strings.Count(out.String(), "Buffer of"))
}

func TestProbeDrop(t *testing.T) {
	c := newContext(t)
	p, err := c.ParseLaunch("mocksrc name=src num-buffers=6 ! mocksink name=sink")
	require.NoError(t, err)
	defer p.Close()

	var n int
	p.ByName("src").StaticPad("src").AddProbe(func(_ *pipeline.Pad, b *media.Buffer) pipeline.ProbeReturn {
		n++
		if b.Offset%2 == 0 {
			return pipeline.ProbeDrop
		}
		return pipeline.ProbeOK
	})
	require.NoError(t, p.SetState(pipeline.Playing))
	for {
		m, err := p.Bus().Pop(context.Background())
		require.NoError(t, err)
		if _, ok := m.(*pipeline.EOS); ok {
			break
		}
	}
	require.NoError(t, p.SetState(pipeline.Null))
	assert.Equal(t, 6, n)
	var offsets []uint64
	for _, b := range p.ByName("sink").(*mock.Sink).Buffers() {
		offsets = append(offsets, b.Offset)
	}
	assert.Equal(t, []uint64{1, 3, 5}, offsets)
}

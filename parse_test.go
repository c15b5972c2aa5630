package pipeline_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pipelined.dev/pipeline"
	"pipelined.dev/pipeline/log"
	"pipelined.dev/pipeline/mock"
)

func TestParseLaunch(t *testing.T) {
	c := newContext(t)
	p, err := c.ParseLaunch("videotestsrc name=test_src num-buffers=10 ! autovideosink name=test_sink")
	require.NoError(t, err)
	defer p.Close()

	elems := p.Elements()
	require.Len(t, elems, 2)
	assert.Equal(t, "test_src", elems[0].Name())
	assert.Equal(t, "videotestsrc", elems[0].Factory())
	assert.Equal(t, "test_sink", elems[1].Name())
	assert.Equal(t, "autovideosink", elems[1].Factory())
	v, err := elems[0].Property("num-buffers")
	require.NoError(t, err)
	assert.Equal(t, 10, v)
	assert.True(t, elems[0].StaticPad("src").IsLinked())
}

func TestParseLaunchSyntax(t *testing.T) {
	c := newContext(t)
	tests := []struct {
		desc     string
		elements []string
		names    []string
	}{
		{
			desc:     "mocksrc!mocksink",
			elements: []string{mock.SourceFactory, mock.SinkFactory},
		},
		{
			desc:     `mocksrc name="my source" ! mocksink name='my sink'`,
			elements: []string{mock.SourceFactory, mock.SinkFactory},
			names:    []string{"my source", "my sink"},
		},
		{
			desc:     "videotestsrc ! video/x-raw, width=(int)16, height=(int)8 ! fakesink",
			elements: []string{"videotestsrc", "capsfilter", "fakesink"},
		},
		{
			desc:     "videotestsrc ! video/x-raw,format=GRAY8 ! identity ! fakesink",
			elements: []string{"videotestsrc", "capsfilter", "identity", "fakesink"},
		},
	}
	for _, test := range tests {
		t.Run(test.desc, func(t *testing.T) {
			p, err := c.ParseLaunch(test.desc)
			require.NoError(t, err)
			defer p.Close()
			var factories, names []string
			for _, e := range p.Elements() {
				factories = append(factories, e.Factory())
				names = append(names, e.Name())
			}
			assert.Equal(t, test.elements, factories)
			if test.names != nil {
				assert.Equal(t, test.names, names)
			}
		})
	}
}

func TestParseLaunchCapsFilter(t *testing.T) {
	c := newContext(t)
	p, err := c.ParseLaunch("videotestsrc ! video/x-raw, width=(int)16, height=(int)8 ! fakesink")
	require.NoError(t, err)
	defer p.Close()
	v, err := p.Elements()[1].Property("caps")
	require.NoError(t, err)
	assert.Equal(t, "video/x-raw, width=(int)16, height=(int)8", v.(interface{ String() string }).String())
}

func TestParseLaunchMissing(t *testing.T) {
	c := newContext(t)
	tests := []struct {
		desc    string
		missing []string
	}{
		{desc: "nonexistent", missing: []string{"nonexistent"}},
		{desc: "foo ! foo ! bar", missing: []string{"foo", "bar"}},
		{desc: "videotestsrc ! bar ! foo ! bar ! fakesink", missing: []string{"bar", "foo"}},
	}
	for _, test := range tests {
		t.Run(test.desc, func(t *testing.T) {
			_, err := c.ParseLaunch(test.desc)
			var pe *pipeline.ParseError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, test.missing, pe.Missing)
			assert.ErrorIs(t, err, pipeline.ErrMissingElement)
		})
	}
}

func TestParseLaunchErrors(t *testing.T) {
	c := newContext(t)
	tests := []struct {
		desc string
		err  error
	}{
		{desc: "", err: pipeline.ErrEmptyPipeline},
		{desc: "   ", err: pipeline.ErrEmptyPipeline},
		{desc: "videotestsrc !", err: pipeline.ErrSyntax},
		{desc: "! fakesink", err: pipeline.ErrSyntax},
		{desc: "videotestsrc ! ! fakesink", err: pipeline.ErrSyntax},
		{desc: "videotestsrc num-buffers ! fakesink", err: pipeline.ErrSyntax},
		{desc: `videotestsrc pattern="black ! fakesink`, err: pipeline.ErrSyntax},
		{desc: "videotestsrc pattern=checkers ! fakesink"},
		{desc: "videotestsrc unknown=1 ! fakesink", err: pipeline.ErrUnknownProperty},
		{desc: "mocksrc name=dup ! mocksink name=dup", err: pipeline.ErrDuplicateName},
		{desc: "audiotestsrc ! autovideosink", err: pipeline.ErrNotNegotiated},
	}
	for _, test := range tests {
		t.Run(test.desc, func(t *testing.T) {
			_, err := c.ParseLaunch(test.desc)
			var pe *pipeline.ParseError
			require.ErrorAs(t, err, &pe)
			assert.Empty(t, pe.Missing)
			assert.False(t, errors.Is(err, pipeline.ErrMissingElement))
			if test.err != nil {
				assert.ErrorIs(t, err, test.err)
			}
		})
	}
}

func TestParseLaunchNotInitialized(t *testing.T) {
	c, err := pipeline.NewContext(pipeline.WithLogger(log.Silent()), pipeline.WithPlugins(mock.Plugin))
	require.NoError(t, err)
	_, err = c.ParseLaunch("mocksrc ! mocksink")
	assert.ErrorIs(t, err, pipeline.ErrNotInitialized)
}

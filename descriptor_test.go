package pipeline_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pipelined.dev/pipeline"
	"pipelined.dev/pipeline/mock"
)

const description = `
name: demo
elements:
  - factory: videotestsrc
    name: test_src
    properties:
      num-buffers: 4
      pattern: black
      is-live: false
  - factory: video/x-raw
    name: filter
  - factory: mocksink
    name: test_sink
`

func TestLoadDescription(t *testing.T) {
	d, err := pipeline.LoadDescription(strings.NewReader(description))
	require.NoError(t, err)
	assert.Equal(t, "demo", d.Name)
	require.Len(t, d.Elements, 3)
	assert.Equal(t, pipeline.ElementDesc{
		Factory: "videotestsrc",
		Name:    "test_src",
		Properties: map[string]any{
			"num-buffers": 4,
			"pattern":     "black",
			"is-live":     false,
		},
	}, d.Elements[0])

	_, err = pipeline.LoadDescription(strings.NewReader("elements: []"))
	assert.ErrorIs(t, err, pipeline.ErrEmptyPipeline)
	_, err = pipeline.LoadDescription(strings.NewReader("elements:\n  - factory: mocksrc\n    unknown: 1\n"))
	assert.Error(t, err)
	_, err = pipeline.LoadDescription(strings.NewReader("elements: ["))
	assert.Error(t, err)
}

func TestRunDescription(t *testing.T) {
	c := newContext(t)
	d, err := pipeline.LoadDescription(strings.NewReader(`
elements:
  - factory: videotestsrc
    properties:
      num-buffers: 4
      pattern: black
  - factory: capsfilter
    properties:
      caps: video/x-raw, format=(string)GRAY8, width=(int)4, height=(int)2
  - factory: mocksink
    name: sink
`))
	require.NoError(t, err)

	r := pipeline.NewRunner(c, pipeline.WithOutput(&bytes.Buffer{}))
	p, err := r.Build(d.Elements)
	require.NoError(t, err)
	require.NoError(t, r.Run(context.Background(), p))

	buffers := p.ByName("sink").(*mock.Sink).Buffers()
	require.Len(t, buffers, 4)
	for _, b := range buffers {
		assert.Equal(t, bytes.Repeat([]byte{16}, 8), b.Data)
	}
}

func TestBuildUnknownFactory(t *testing.T) {
	c := newContext(t)
	d, err := pipeline.LoadDescription(strings.NewReader(description))
	require.NoError(t, err)
	_, err = c.Build(d)
	assert.ErrorIs(t, err, pipeline.ErrElementNotFound)
}

package elements

import (
	"fmt"

	"pipelined.dev/pipeline"
	"pipelined.dev/pipeline/caps"
	"pipelined.dev/pipeline/media"
)

// CapsFilter restricts negotiated caps of the link and passes buffers
// through.
type CapsFilter struct {
	*pipeline.Base
}

// NewCapsFilter returns caps filter that allows ANY caps.
func NewCapsFilter() *CapsFilter {
	f := &CapsFilter{Base: pipeline.NewBase()}
	f.AddPad("sink", pipeline.SinkPad, caps.Any())
	f.AddPad("src", pipeline.SrcPad, caps.Any())
	f.InstallProperty(pipeline.Property{
		Name:        "caps",
		Description: "Restrict the possible allowed capabilities",
		Kind:        pipeline.KindCaps,
		Default:     caps.Any(),
	})
	return f
}

// TransformCaps restricts caps with filter caps in both directions.
func (f *CapsFilter) TransformCaps(_ pipeline.Direction, c *caps.Caps) *caps.Caps {
	return c.Intersect(f.filter())
}

// Start checks input caps against filter caps.
func (f *CapsFilter) Start(in *caps.Caps) (pipeline.FilterFunc, *caps.Caps, error) {
	if !in.CanIntersect(f.filter()) {
		return nil, nil, fmt.Errorf("%w: %v is not allowed by %v", pipeline.ErrNotNegotiated, in, f.filter())
	}
	return func(b *media.Buffer) ([]*media.Buffer, error) {
		return []*media.Buffer{b}, nil
	}, in, nil
}

func (f *CapsFilter) filter() *caps.Caps {
	if c := f.CapsProperty("caps"); c != nil {
		return c
	}
	return caps.Any()
}

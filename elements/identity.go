package elements

import (
	"errors"
	"fmt"
	"time"

	"pipelined.dev/pipeline"
	"pipelined.dev/pipeline/caps"
	"pipelined.dev/pipeline/media"
)

// ErrIdentity is returned by identity when error-after limit is reached.
var ErrIdentity = errors.New("identity error")

// Identity passes buffers through. It can fail after a number of buffers
// or delay every buffer.
type Identity struct {
	*pipeline.Base
}

// NewIdentity returns new identity filter.
func NewIdentity() *Identity {
	f := &Identity{Base: pipeline.NewBase()}
	f.AddPad("sink", pipeline.SinkPad, caps.Any())
	f.AddPad("src", pipeline.SrcPad, caps.Any())
	f.InstallProperty(
		pipeline.Property{
			Name:        "error-after",
			Description: "Error after N buffers, -1 to disable",
			Kind:        pipeline.KindInt,
			Default:     -1,
		},
		pipeline.Property{
			Name:        "sleep-time",
			Description: "Microseconds to sleep between processing",
			Kind:        pipeline.KindInt,
			Default:     0,
		},
		pipeline.Property{
			Name:        "silent",
			Description: "Don't post info messages",
			Kind:        pipeline.KindBool,
			Default:     true,
		},
	)
	return f
}

// TransformCaps returns caps as is.
func (f *Identity) TransformCaps(_ pipeline.Direction, c *caps.Caps) *caps.Caps {
	return c
}

// Start returns function that passes buffers through.
func (f *Identity) Start(in *caps.Caps) (pipeline.FilterFunc, *caps.Caps, error) {
	var (
		errorAfter = f.IntProperty("error-after")
		sleep      = time.Duration(f.IntProperty("sleep-time")) * time.Microsecond
		silent     = f.BoolProperty("silent")
		n          int
	)
	return func(b *media.Buffer) ([]*media.Buffer, error) {
		if errorAfter >= 0 && n >= errorAfter {
			return nil, pipeline.NewFlowError(
				ErrIdentity,
				"Failed to process buffer.",
				fmt.Sprintf("error-after limit of %d buffers reached", errorAfter),
			)
		}
		n++
		if sleep > 0 {
			time.Sleep(sleep)
		}
		if !silent {
			f.Post(pipeline.NewInfo(f, fmt.Sprintf("chain (%s) %v", f.Path(), b)))
		}
		return []*media.Buffer{b}, nil
	}, in, nil
}

package elements

import (
	"context"
	"fmt"

	"pipelined.dev/pipeline"
	"pipelined.dev/pipeline/caps"
	"pipelined.dev/pipeline/media"
)

// FakeSink discards buffers. If sync is set, buffers are consumed at the
// pace of their timestamps.
type FakeSink struct {
	*pipeline.Base
}

// NewFakeSink returns sink that accepts ANY caps.
func NewFakeSink() *FakeSink {
	return &FakeSink{Base: newSinkBase(caps.Any(), false)}
}

// Start returns function that discards buffers.
func (s *FakeSink) Start(c *caps.Caps) (pipeline.SinkFunc, error) {
	return discard(s), nil
}

// AutoVideoSink consumes raw video. There is no display, so frames are
// discarded at their frame rate.
type AutoVideoSink struct {
	*pipeline.Base
}

// NewAutoVideoSink returns sink that accepts raw video.
func NewAutoVideoSink() *AutoVideoSink {
	return &AutoVideoSink{Base: newSinkBase(caps.MustParse("video/x-raw"), true)}
}

// Start returns function that discards frames.
func (s *AutoVideoSink) Start(c *caps.Caps) (pipeline.SinkFunc, error) {
	if _, ok := c.Structure(0).Int("width"); !ok {
		return nil, fmt.Errorf("%w: no video size in %v", pipeline.ErrNotNegotiated, c)
	}
	return discard(s), nil
}

func newSinkBase(template *caps.Caps, sync bool) *pipeline.Base {
	b := pipeline.NewBase()
	b.AddPad("sink", pipeline.SinkPad, template)
	b.InstallProperty(
		pipeline.Property{
			Name:        "sync",
			Description: "Sync on the clock",
			Kind:        pipeline.KindBool,
			Default:     sync,
		},
		pipeline.Property{
			Name:        "silent",
			Description: "Don't post info messages",
			Kind:        pipeline.KindBool,
			Default:     true,
		},
	)
	return b
}

type sinkElement interface {
	pipeline.Element
	BoolProperty(string) bool
	Post(pipeline.Message) bool
}

// discard returns function that drops buffers. Messages are posted for
// every buffer unless sink is silent.
func discard(s sinkElement) pipeline.SinkFunc {
	var (
		sync   = s.BoolProperty("sync")
		silent = s.BoolProperty("silent")
		clk    clock
	)
	return func(ctx context.Context, b *media.Buffer) error {
		if sync {
			if err := clk.wait(ctx, b); err != nil {
				return err
			}
		}
		if !silent {
			s.Post(pipeline.NewInfo(s, fmt.Sprintf("chain (%s) %v", s.Path(), b)))
		}
		return nil
	}
}

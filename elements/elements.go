// Package elements provides the built-in element factories: test sources,
// filters and sinks.
package elements

import (
	"context"
	"time"

	"pipelined.dev/pipeline"
	"pipelined.dev/pipeline/media"
)

// Plugin registers all built-in factories.
func Plugin(r *pipeline.Registry) error {
	return r.Register(
		pipeline.Factory{
			Name:        "videotestsrc",
			Klass:       pipeline.KlassSource,
			Description: "Creates a test video stream",
			New:         func() (pipeline.Element, error) { return NewVideoTestSrc(), nil },
		},
		pipeline.Factory{
			Name:        "audiotestsrc",
			Klass:       pipeline.KlassSource,
			Description: "Creates audio test signals of given frequency and volume",
			New:         func() (pipeline.Element, error) { return NewAudioTestSrc(), nil },
		},
		pipeline.Factory{
			Name:        "capsfilter",
			Klass:       pipeline.KlassFilter,
			Description: "Restricts caps of the link",
			New:         func() (pipeline.Element, error) { return NewCapsFilter(), nil },
		},
		pipeline.Factory{
			Name:        "identity",
			Klass:       pipeline.KlassFilter,
			Description: "Passes data through, optionally failing or delaying it",
			New:         func() (pipeline.Element, error) { return NewIdentity(), nil },
		},
		pipeline.Factory{
			Name:        "fakesink",
			Klass:       pipeline.KlassSink,
			Description: "Discards buffers",
			New:         func() (pipeline.Element, error) { return NewFakeSink(), nil },
		},
		pipeline.Factory{
			Name:        "autovideosink",
			Klass:       pipeline.KlassSink,
			Description: "Consumes raw video at its frame rate",
			New:         func() (pipeline.Element, error) { return NewAutoVideoSink(), nil },
		},
		pipeline.Factory{
			Name:        "wavsink",
			Klass:       pipeline.KlassSink,
			Description: "Writes raw audio into WAV file",
			New:         func() (pipeline.Element, error) { return NewWavSink(), nil },
		},
		pipeline.Factory{
			Name:        "rtppay",
			Klass:       pipeline.KlassFilter,
			Description: "Packs raw media into RTP packets",
			New:         func() (pipeline.Element, error) { return NewRTPPay(), nil },
		},
	)
}

// numBuffers is a common property of test sources.
var numBuffers = pipeline.Property{
	Name:        "num-buffers",
	Description: "Number of buffers to output before sending EOS, -1 for unlimited",
	Kind:        pipeline.KindInt,
	Default:     -1,
}

// clock paces buffers by their timestamps relative to the first one.
type clock struct {
	start time.Time
	base  time.Duration
}

// wait blocks until the running time of buffer is reached.
func (c *clock) wait(ctx context.Context, b *media.Buffer) error {
	if b.PTS == media.None {
		return nil
	}
	if c.start.IsZero() {
		c.start, c.base = time.Now(), b.PTS
		return nil
	}
	d := time.Until(c.start.Add(b.PTS - c.base))
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

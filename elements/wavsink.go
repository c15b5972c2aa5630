package elements

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"pipelined.dev/pipeline"
	"pipelined.dev/pipeline/caps"
	"pipelined.dev/pipeline/media"
)

// wavPCM is the audio format of uncompressed WAV files.
const wavPCM = 1

// WavSink writes raw audio into WAV file. File is created with the first
// buffer and finalized on flush.
type WavSink struct {
	*pipeline.Base

	file    *os.File
	encoder *wav.Encoder
}

// NewWavSink returns new WAV sink.
func NewWavSink() *WavSink {
	s := &WavSink{Base: pipeline.NewBase()}
	s.AddPad("sink", pipeline.SinkPad, caps.MustParse(audioTemplate))
	s.InstallProperty(pipeline.Property{
		Name:        "location",
		Description: "Location of the file to write",
		Kind:        pipeline.KindString,
		Default:     "",
	})
	return s
}

// Start returns function that encodes buffers.
func (s *WavSink) Start(c *caps.Caps) (pipeline.SinkFunc, error) {
	location := s.StringProperty("location")
	if location == "" {
		return nil, errors.New("location is not set")
	}
	st := c.Structure(0)
	rate, _ := st.Int("rate")
	channels, _ := st.Int("channels")
	format := &audio.Format{NumChannels: channels, SampleRate: rate}
	return func(_ context.Context, b *media.Buffer) error {
		if s.encoder == nil {
			f, err := os.Create(location)
			if err != nil {
				return pipeline.NewFlowError(err, "Could not open file for writing.", location)
			}
			s.file = f
			s.encoder = wav.NewEncoder(f, rate, bitDepth, channels, wavPCM)
		}
		if err := s.encoder.Write(decodeS16LE(b.Data, format)); err != nil {
			return fmt.Errorf("error writing %s: %w", location, err)
		}
		return nil
	}, nil
}

// Flush finalizes WAV header and closes the file.
func (s *WavSink) Flush(context.Context) error {
	if s.encoder == nil {
		return nil
	}
	defer func() {
		s.file, s.encoder = nil, nil
	}()
	if err := s.encoder.Close(); err != nil {
		s.file.Close()
		return fmt.Errorf("error finalizing wav: %w", err)
	}
	return s.file.Close()
}

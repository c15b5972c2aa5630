package elements

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"math/rand"
	"time"

	"github.com/go-audio/audio"

	"pipelined.dev/pipeline"
	"pipelined.dev/pipeline/caps"
	"pipelined.dev/pipeline/media"
)

// FormatS16LE is the only raw audio format supported by audio elements.
const FormatS16LE = "S16LE"

const audioTemplate = "audio/x-raw, format=S16LE, layout=interleaved, " +
	"rate=[ 1, 2147483647 ], channels=[ 1, 2147483647 ]"

// Default audio format picked when downstream allows any.
const (
	DefaultRate     = 44100
	DefaultChannels = 1
)

const bitDepth = 16

// AudioTestSrc produces raw audio of test waveform.
type AudioTestSrc struct {
	*pipeline.Base
}

// NewAudioTestSrc returns new audio test source.
func NewAudioTestSrc() *AudioTestSrc {
	s := &AudioTestSrc{Base: pipeline.NewBase()}
	s.AddPad("src", pipeline.SrcPad, caps.MustParse(audioTemplate))
	s.InstallProperty(
		numBuffers,
		pipeline.Property{
			Name:        "samplesperbuffer",
			Description: "Number of samples in each outgoing buffer",
			Kind:        pipeline.KindInt,
			Default:     1024,
		},
		pipeline.Property{
			Name:        "freq",
			Description: "Frequency of test signal",
			Kind:        pipeline.KindFloat,
			Default:     440.0,
		},
		pipeline.Property{
			Name:        "volume",
			Description: "Volume of test signal",
			Kind:        pipeline.KindFloat,
			Default:     0.8,
		},
		pipeline.Property{
			Name:        "wave",
			Description: "Oscillator waveform",
			Kind:        pipeline.KindString,
			Default:     "sine",
			Choices:     []string{"sine", "square", "saw", "silence", "white-noise"},
		},
	)
	return s
}

// Fixate picks 44100 Hz mono if downstream allows it.
func (s *AudioTestSrc) Fixate(allowed *caps.Caps) *caps.Caps {
	st := allowed.Structure(0).Copy()
	st.FixateNearestInt("rate", DefaultRate)
	st.FixateNearestInt("channels", DefaultChannels)
	return caps.New(st).Fixate()
}

// Start returns function that produces interleaved S16LE samples.
func (s *AudioTestSrc) Start(c *caps.Caps) (pipeline.SourceFunc, error) {
	st := c.Structure(0)
	rate, _ := st.Int("rate")
	channels, _ := st.Int("channels")
	if rate <= 0 || channels <= 0 {
		return nil, fmt.Errorf("invalid audio format %v", c)
	}
	var (
		limit   = s.IntProperty("num-buffers")
		samples = s.IntProperty("samplesperbuffer")
		osc     = oscillator{
			wave:   s.StringProperty("wave"),
			freq:   s.FloatProperty("freq"),
			volume: s.FloatProperty("volume"),
			rate:   rate,
		}
		n      int
		offset int
	)
	if samples <= 0 {
		return nil, fmt.Errorf("invalid samplesperbuffer %d", samples)
	}
	format := &audio.Format{NumChannels: channels, SampleRate: rate}
	return func(context.Context) (*media.Buffer, error) {
		if limit >= 0 && n >= limit {
			return nil, io.EOF
		}
		buf := &audio.IntBuffer{
			Format:         format,
			SourceBitDepth: bitDepth,
			Data:           make([]int, samples*channels),
		}
		osc.fill(buf, offset)
		b := &media.Buffer{
			Data:     encodeS16LE(buf),
			PTS:      samplesDuration(offset, rate),
			Duration: samplesDuration(samples, rate),
			Offset:   uint64(offset),
			Caps:     c,
		}
		offset += samples
		n++
		return b, nil
	}, nil
}

type oscillator struct {
	wave   string
	freq   float64
	volume float64
	rate   int
}

// fill writes frames starting at offset into interleaved buffer.
func (o oscillator) fill(buf *audio.IntBuffer, offset int) {
	channels := buf.Format.NumChannels
	amplitude := o.volume * math.MaxInt16
	for i := 0; i < len(buf.Data)/channels; i++ {
		phase := math.Mod(o.freq*float64(offset+i)/float64(o.rate), 1)
		var v float64
		switch o.wave {
		case "sine":
			v = math.Sin(2 * math.Pi * phase)
		case "square":
			v = 1
			if phase >= 0.5 {
				v = -1
			}
		case "saw":
			v = 2*phase - 1
		case "white-noise":
			v = 2*rand.Float64() - 1
		}
		sample := int(v * amplitude)
		for c := 0; c < channels; c++ {
			buf.Data[i*channels+c] = sample
		}
	}
}

func encodeS16LE(buf *audio.IntBuffer) []byte {
	data := make([]byte, len(buf.Data)*2)
	for i, v := range buf.Data {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(int16(v)))
	}
	return data
}

func decodeS16LE(data []byte, format *audio.Format) *audio.IntBuffer {
	buf := &audio.IntBuffer{
		Format:         format,
		SourceBitDepth: bitDepth,
		Data:           make([]int, len(data)/2),
	}
	for i := range buf.Data {
		buf.Data[i] = int(int16(binary.LittleEndian.Uint16(data[i*2:])))
	}
	return buf
}

func samplesDuration(samples, rate int) time.Duration {
	return time.Duration(int64(samples) * int64(time.Second) / int64(rate))
}

package elements

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"time"

	"pipelined.dev/pipeline"
	"pipelined.dev/pipeline/caps"
	"pipelined.dev/pipeline/media"
)

// Video formats produced by videotestsrc.
const (
	FormatI420  = "I420"
	FormatRGB   = "RGB"
	FormatGRAY8 = "GRAY8"
)

const videoTemplate = "video/x-raw, format={ I420, RGB, GRAY8 }, " +
	"width=[ 1, 2147483647 ], height=[ 1, 2147483647 ], " +
	"framerate=[ 0/1, 2147483647/1 ]"

// Default video format picked when downstream allows any.
const (
	DefaultWidth  = 320
	DefaultHeight = 240
)

// DefaultFramerate of video test source.
var DefaultFramerate = caps.Frac(30, 1)

// smpte colour bars in RGB: white, yellow, cyan, green, magenta, red, blue.
var smpte = [][3]byte{
	{192, 192, 192},
	{192, 192, 0},
	{0, 192, 192},
	{0, 192, 0},
	{192, 0, 192},
	{192, 0, 0},
	{0, 0, 192},
}

// VideoTestSrc produces raw video frames of test pattern.
type VideoTestSrc struct {
	*pipeline.Base
}

// NewVideoTestSrc returns new video test source.
func NewVideoTestSrc() *VideoTestSrc {
	s := &VideoTestSrc{Base: pipeline.NewBase()}
	s.AddPad("src", pipeline.SrcPad, caps.MustParse(videoTemplate))
	s.InstallProperty(
		numBuffers,
		pipeline.Property{
			Name:        "pattern",
			Description: "Type of test pattern to generate",
			Kind:        pipeline.KindString,
			Default:     "smpte",
			Choices:     []string{"smpte", "black", "white", "snow"},
		},
		pipeline.Property{
			Name:        "is-live",
			Description: "Produce frames at their frame rate",
			Kind:        pipeline.KindBool,
			Default:     false,
		},
	)
	return s
}

// Fixate picks 320x240@30/1 if downstream allows it, the nearest values
// otherwise.
func (s *VideoTestSrc) Fixate(allowed *caps.Caps) *caps.Caps {
	st := allowed.Structure(0).Copy()
	st.FixateNearestInt("width", DefaultWidth)
	st.FixateNearestInt("height", DefaultHeight)
	st.FixateNearestFraction("framerate", DefaultFramerate)
	return caps.New(st).Fixate()
}

// FrameSize returns the size of a single frame in bytes.
func FrameSize(format string, width, height int) (int, error) {
	switch format {
	case FormatI420:
		return width*height + 2*((width+1)/2)*((height+1)/2), nil
	case FormatRGB:
		return width * height * 3, nil
	case FormatGRAY8:
		return width * height, nil
	}
	return 0, fmt.Errorf("unsupported format %q", format)
}

// Start returns function that produces frames.
func (s *VideoTestSrc) Start(c *caps.Caps) (pipeline.SourceFunc, error) {
	st := c.Structure(0)
	format, _ := st.StringField("format")
	width, _ := st.Int("width")
	height, _ := st.Int("height")
	framerate, ok := st.Fraction("framerate")
	if !ok {
		return nil, fmt.Errorf("no framerate in %v", c)
	}
	size, err := FrameSize(format, width, height)
	if err != nil {
		return nil, err
	}
	duration := media.None
	if framerate.Num > 0 {
		duration = time.Duration(int64(time.Second) * int64(framerate.Den) / int64(framerate.Num))
	}
	var (
		limit   = s.IntProperty("num-buffers")
		live    = s.BoolProperty("is-live")
		pattern = s.StringProperty("pattern")
		clk     clock
		n       int
	)
	frame := paint(pattern, format, width, height, size)
	return func(ctx context.Context) (*media.Buffer, error) {
		if limit >= 0 && n >= limit {
			return nil, io.EOF
		}
		b := &media.Buffer{
			Data:     make([]byte, size),
			Duration: duration,
			Offset:   uint64(n),
			Caps:     c,
		}
		if duration != media.None {
			b.PTS = time.Duration(n) * duration
		}
		if pattern == "snow" {
			for i := range b.Data {
				b.Data[i] = byte(rand.Intn(256))
			}
		} else {
			copy(b.Data, frame)
		}
		if live {
			if err := clk.wait(ctx, b); err != nil {
				return nil, err
			}
		}
		n++
		return b, nil
	}, nil
}

// paint returns a frame filled with pattern.
func paint(pattern, format string, width, height, size int) []byte {
	frame := make([]byte, size)
	if pattern == "snow" {
		return frame
	}
	rgb := func(x int) [3]byte {
		switch pattern {
		case "black":
			return [3]byte{0, 0, 0}
		case "white":
			return [3]byte{255, 255, 255}
		}
		return smpte[x*len(smpte)/width]
	}
	switch format {
	case FormatRGB:
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				px := rgb(x)
				copy(frame[(y*width+x)*3:], px[:])
			}
		}
	case FormatGRAY8, FormatI420:
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				frame[y*width+x] = luma(rgb(x))
			}
		}
		// chroma planes of I420 are neutral
		for i := width * height; i < size; i++ {
			frame[i] = 128
		}
	}
	return frame
}

// luma converts RGB to studio range Y.
func luma(px [3]byte) byte {
	y := 16 + (66*int(px[0])+129*int(px[1])+25*int(px[2])+128)>>8
	return byte(y)
}

package caps_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pipelined.dev/pipeline/caps"
)

const videoTemplate = "video/x-raw, format={ I420, RGB }, width=[ 1, 2147483647 ], height=[ 1, 2147483647 ], framerate=[ 0/1, 2147483647/1 ]"

func TestParse(t *testing.T) {
	tests := []struct {
		in     string
		any    bool
		empty  bool
		fixed  bool
		length int
		err    error
	}{
		{in: "ANY", any: true},
		{in: "EMPTY", empty: true},
		{in: "", empty: true},
		{in: "video/x-raw", fixed: true, length: 1},
		{in: "video/x-raw,width=320,height=240,framerate=30/1", fixed: true, length: 1},
		{in: "video/x-raw, width=(int)320; audio/x-raw, rate=(int)44100", length: 2},
		{in: videoTemplate, length: 1},
		{in: "video/x-raw, width=[ 10 ]", err: caps.ErrSyntax},
		{in: "video/x-raw, width", err: caps.ErrSyntax},
		{in: "video/x-raw, format={ I420", err: caps.ErrSyntax},
		{in: "video/x-raw, width=(float)1", err: caps.ErrSyntax},
		{in: "video/x-raw, framerate=(fraction)30/0", err: caps.ErrSyntax},
	}
	for _, test := range tests {
		c, err := caps.Parse(test.in)
		if test.err != nil {
			assert.True(t, errors.Is(err, test.err), test.in)
			continue
		}
		require.NoError(t, err, test.in)
		assert.Equal(t, test.any, c.IsAny(), test.in)
		assert.Equal(t, test.empty, c.IsEmpty(), test.in)
		assert.Equal(t, test.fixed, c.IsFixed(), test.in)
		assert.Equal(t, test.length, c.Len(), test.in)
	}
}

func TestParseValueTypes(t *testing.T) {
	c := caps.MustParse(`video/x-raw, width=320, framerate=30/1, interlaced=false, format=I420, name="with space", range=[ 1, 2 ], rates=[ 1/1, 60/1 ]`)
	s := c.Structure(0)
	expected := []caps.Field{
		{Name: "width", Value: caps.Int(320)},
		{Name: "framerate", Value: caps.Frac(30, 1)},
		{Name: "interlaced", Value: caps.Bool(false)},
		{Name: "format", Value: caps.String("I420")},
		{Name: "name", Value: caps.String("with space")},
		{Name: "range", Value: caps.IntRange{Min: 1, Max: 2}},
		{Name: "rates", Value: caps.FractionRange{Min: caps.Frac(1, 1), Max: caps.Frac(60, 1)}},
	}
	assert.Equal(t, expected, s.Fields())
}

func TestRoundTrip(t *testing.T) {
	for _, in := range []string{
		videoTemplate,
		"audio/x-raw, format=S16LE, rate=44100, channels=1, layout=interleaved",
		`application/x-rtp, media=video, payload=96, encoding-name=RAW`,
	} {
		c := caps.MustParse(in)
		again, err := caps.Parse(c.String())
		require.NoError(t, err)
		assert.Equal(t, c.String(), again.String())
	}
}

func TestIntersect(t *testing.T) {
	tests := []struct {
		a, b     string
		expected string
	}{
		{a: "ANY", b: "video/x-raw", expected: "video/x-raw"},
		{a: "video/x-raw", b: "ANY", expected: "video/x-raw"},
		{a: "EMPTY", b: "ANY", expected: "EMPTY"},
		{a: "video/x-raw", b: "audio/x-raw", expected: "EMPTY"},
		{
			a:        "video/x-raw, width=[ 1, 1000 ]",
			b:        "video/x-raw, width=320",
			expected: "video/x-raw, width=(int)320",
		},
		{
			a:        "video/x-raw, width=[ 1, 100 ]",
			b:        "video/x-raw, width=320",
			expected: "EMPTY",
		},
		{
			a:        "video/x-raw, width=[ 1, 100 ]",
			b:        "video/x-raw, width=[ 50, 200 ]",
			expected: "video/x-raw, width=(int)[ 50, 100 ]",
		},
		{
			a:        "video/x-raw, format={ I420, RGB, GRAY8 }",
			b:        "video/x-raw, format={ RGB, GRAY8 }",
			expected: "video/x-raw, format=(string){ RGB, GRAY8 }",
		},
		{
			a:        "video/x-raw, format={ I420, RGB }",
			b:        "video/x-raw, format=RGB, width=10",
			expected: "video/x-raw, format=(string)RGB, width=(int)10",
		},
		{
			a:        "video/x-raw, framerate=[ 0/1, 100/1 ]",
			b:        "video/x-raw, framerate=25/1",
			expected: "video/x-raw, framerate=(fraction)25/1",
		},
		{
			a:        "video/x-raw; audio/x-raw, rate=8000",
			b:        "audio/x-raw",
			expected: "audio/x-raw, rate=(int)8000",
		},
	}
	for _, test := range tests {
		result := caps.MustParse(test.a).Intersect(caps.MustParse(test.b))
		assert.Equal(t, test.expected, result.String(), "%s ∩ %s", test.a, test.b)
	}
}

func TestFixate(t *testing.T) {
	c := caps.MustParse(videoTemplate).Fixate()
	assert.True(t, c.IsFixed())
	assert.Equal(t, "video/x-raw, format=(string)I420, width=(int)1, height=(int)1, framerate=(fraction)0/1", c.String())

	s := caps.MustParse(videoTemplate).Structure(0)
	s.FixateNearestInt("width", 320)
	s.FixateNearestInt("height", 240)
	s.FixateNearestFraction("framerate", caps.Frac(30, 1))
	width, _ := s.Int("width")
	height, _ := s.Int("height")
	framerate, _ := s.Fraction("framerate")
	assert.Equal(t, 320, width)
	assert.Equal(t, 240, height)
	assert.Equal(t, caps.Frac(30, 1), framerate)

	assert.True(t, caps.Any().Fixate().IsAny())
	assert.True(t, caps.Empty().Fixate().IsEmpty())
}

func TestDump(t *testing.T) {
	tests := []struct {
		caps     *caps.Caps
		expected string
	}{
		{caps: caps.Any(), expected: "     ANY\n"},
		{caps: caps.Empty(), expected: "     EMPTY\n"},
		{
			caps: caps.MustParse("video/x-raw, format=I420, width=320, height=240, framerate=30/1"),
			expected: "     video/x-raw\n" +
				"       format:I420\n" +
				"       width:320\n" +
				"       height:240\n" +
				"       framerate:30/1\n",
		},
	}
	for _, test := range tests {
		var buf bytes.Buffer
		require.NoError(t, caps.Dump(&buf, test.caps, "     "))
		assert.Equal(t, test.expected, buf.String())
	}
}

func TestStructureSetKeepsOrder(t *testing.T) {
	s := caps.NewStructure("video/x-raw",
		caps.Field{Name: "width", Value: caps.Int(1)},
		caps.Field{Name: "height", Value: caps.Int(2)},
	)
	s.Set("width", caps.Int(3))
	s.Set("format", caps.String("RGB"))
	assert.Equal(t, "video/x-raw, width=(int)3, height=(int)2, format=(string)RGB", s.String())
}

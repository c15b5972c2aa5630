package elements

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"

	"pipelined.dev/pipeline"
	"pipelined.dev/pipeline/caps"
	"pipelined.dev/pipeline/media"
)

const (
	rtpHeaderSize  = 12
	videoClockRate = 90000
)

// RTPPay packs raw media into RTP packets. Every packet is pushed as a
// separate buffer.
type RTPPay struct {
	*pipeline.Base
}

// NewRTPPay returns new RTP payloader.
func NewRTPPay() *RTPPay {
	p := &RTPPay{Base: pipeline.NewBase()}
	p.AddPad("sink", pipeline.SinkPad, caps.MustParse("audio/x-raw; video/x-raw"))
	p.AddPad("src", pipeline.SrcPad, caps.MustParse("application/x-rtp"))
	p.InstallProperty(
		pipeline.Property{
			Name:        "pt",
			Description: "The payload type of the packets",
			Kind:        pipeline.KindInt,
			Default:     96,
		},
		pipeline.Property{
			Name:        "ssrc",
			Description: "The SSRC of the packets, 0 for random",
			Kind:        pipeline.KindInt,
			Default:     0,
		},
		pipeline.Property{
			Name:        "mtu",
			Description: "Maximum size of one packet",
			Kind:        pipeline.KindInt,
			Default:     1400,
		},
	)
	return p
}

// TransformCaps maps raw caps to RTP caps and back.
func (p *RTPPay) TransformCaps(dir pipeline.Direction, c *caps.Caps) *caps.Caps {
	if dir == pipeline.SinkPad {
		return caps.MustParse("application/x-rtp")
	}
	if c.CanIntersect(caps.MustParse("application/x-rtp")) {
		return p.StaticPad("sink").Template().Copy()
	}
	return caps.Empty()
}

// Start returns function that packetizes buffers.
func (p *RTPPay) Start(in *caps.Caps) (pipeline.FilterFunc, *caps.Caps, error) {
	var (
		pt   = p.IntProperty("pt")
		ssrc = uint32(p.IntProperty("ssrc"))
		mtu  = p.IntProperty("mtu")
	)
	if pt < 0 || pt > 127 {
		return nil, nil, fmt.Errorf("invalid payload type %d", pt)
	}
	if mtu <= rtpHeaderSize {
		return nil, nil, fmt.Errorf("mtu %d is too small", mtu)
	}
	if ssrc == 0 {
		ssrc = rand.Uint32()
	}

	st := in.Structure(0)
	kind, clockRate := "video", videoClockRate
	if st.Name() == "audio/x-raw" {
		kind = "audio"
		clockRate, _ = st.Int("rate")
	}
	out := caps.New(caps.NewStructure("application/x-rtp",
		caps.Field{Name: "media", Value: caps.String(kind)},
		caps.Field{Name: "clock-rate", Value: caps.Int(clockRate)},
		caps.Field{Name: "payload", Value: caps.Int(pt)},
		caps.Field{Name: "ssrc", Value: caps.Int(int(ssrc))},
	))

	var (
		payloader = &codecs.G711Payloader{}
		sequencer = rtp.NewRandomSequencer()
	)
	return func(b *media.Buffer) ([]*media.Buffer, error) {
		payloads := payloader.Payload(uint16(mtu-rtpHeaderSize), b.Data)
		var ts uint32
		if b.PTS != media.None {
			ts = uint32((int64(b.PTS)*int64(clockRate) + int64(time.Second)/2) / int64(time.Second))
		}
		result := make([]*media.Buffer, 0, len(payloads))
		for i, payload := range payloads {
			pkt := &rtp.Packet{
				Header: rtp.Header{
					Version:        2,
					Marker:         i == len(payloads)-1,
					PayloadType:    uint8(pt),
					SequenceNumber: sequencer.NextSequenceNumber(),
					Timestamp:      ts,
					SSRC:           ssrc,
				},
				Payload: payload,
			}
			data, err := pkt.Marshal()
			if err != nil {
				return nil, fmt.Errorf("error marshalling rtp packet: %w", err)
			}
			result = append(result, &media.Buffer{
				Data:     data,
				PTS:      b.PTS,
				Duration: media.None,
				Offset:   uint64(pkt.SequenceNumber),
				Caps:     out,
			})
		}
		return result, nil
	}, out, nil
}

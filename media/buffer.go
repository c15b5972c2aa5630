// Package media defines the data unit that flows through pipelines.
package media

import (
	"fmt"
	"time"

	"pipelined.dev/pipeline/caps"
)

// None is used for unknown timestamps and durations.
const None time.Duration = -1

// Buffer is a single data unit pushed from one pad to another.
type Buffer struct {
	Data     []byte
	PTS      time.Duration // presentation timestamp relative to stream start.
	Duration time.Duration
	Offset   uint64     // sequence number of the buffer in the stream.
	Caps     *caps.Caps // negotiated format of the data.
}

// Size returns payload size in bytes.
func (b *Buffer) Size() int {
	if b == nil {
		return 0
	}
	return len(b.Data)
}

// String returns a short description of the buffer.
func (b *Buffer) String() string {
	if b == nil {
		return "<nil>"
	}
	return fmt.Sprintf("buffer #%d pts %v dur %v size %d", b.Offset, b.PTS, b.Duration, len(b.Data))
}

// Copy returns a deep copy of the buffer.
func (b *Buffer) Copy() *Buffer {
	c := *b
	c.Data = make([]byte, len(b.Data))
	copy(c.Data, b.Data)
	return &c
}

package pipeline

import (
	"fmt"
	"sync"
	"time"

	"pipelined.dev/pipeline/internal/queue"
	"pipelined.dev/pipeline/media"
)

// Observation is recorded by the observing probe for every buffer that
// crossed the pad.
type Observation struct {
	Pad    string
	Size   int
	PTS    time.Duration
	Offset uint64
}

func (o Observation) String() string {
	return fmt.Sprintf("%s: buffer #%d of %d bytes", o.Pad, o.Offset, o.Size)
}

// Observer installs probes that only push observations into a queue. The
// queue is drained by the application goroutine, so probes never share
// state with it.
type Observer struct {
	q *queue.Queue[Observation]

	mu     sync.Mutex
	probes map[*Pad]ProbeID
}

// NewObserver returns observer without probes.
func NewObserver() *Observer {
	return &Observer{
		q:      queue.New[Observation](),
		probes: make(map[*Pad]ProbeID),
	}
}

// Attach installs observing probe on the pad. Pads are observed once.
func (o *Observer) Attach(pads ...*Pad) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, pad := range pads {
		if _, ok := o.probes[pad]; ok {
			continue
		}
		o.probes[pad] = pad.AddProbe(o.observe)
	}
}

func (o *Observer) observe(p *Pad, b *media.Buffer) ProbeReturn {
	o.q.Push(Observation{
		Pad:    p.Path(),
		Size:   b.Size(),
		PTS:    b.PTS,
		Offset: b.Offset,
	})
	return ProbeOK
}

// Ready returns a channel that receives a value when observations are
// available.
func (o *Observer) Ready() <-chan struct{} {
	return o.q.Ready()
}

// Next returns the next observation without blocking.
func (o *Observer) Next() (Observation, bool) {
	return o.q.TryPop()
}

// Len returns the number of pending observations.
func (o *Observer) Len() int {
	return o.q.Len()
}

// Close removes all probes and stops recording.
func (o *Observer) Close() {
	o.mu.Lock()
	for pad, id := range o.probes {
		pad.RemoveProbe(id)
	}
	o.probes = make(map[*Pad]ProbeID)
	o.mu.Unlock()
	o.q.Close()
}

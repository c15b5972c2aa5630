// Package metric captures per-element counters of running pipelines.
package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"pipelined.dev/pipeline/media"
)

const namespace = "pipeline"

const (
	// BufferCounter measures number of buffers.
	BufferCounter = "buffers"
	// ByteCounter measures payload bytes.
	ByteCounter = "bytes"
	// LatencyCounter measures latency between processing calls.
	LatencyCounter = "latency"
	// DurationCounter counts the media duration of buffers.
	DurationCounter = "duration"
	// ElementCounter counts number of running elements.
	ElementCounter = "elements"
)

// Metrics holds the collectors of all elements. Nil Metrics is valid and
// measures nothing.
type Metrics struct {
	buffers  *prometheus.CounterVec
	bytes    *prometheus.CounterVec
	duration *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	elements *prometheus.GaugeVec
}

// New creates collectors and registers them.
func New(reg prometheus.Registerer) (*Metrics, error) {
	labels := []string{"factory", "element"}
	m := &Metrics{
		buffers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      BufferCounter + "_total",
			Help:      "Number of buffers processed by element.",
		}, labels),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      ByteCounter + "_total",
			Help:      "Payload bytes processed by element.",
		}, labels),
		duration: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      DurationCounter + "_seconds_total",
			Help:      "Media duration of buffers processed by element.",
		}, labels),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      LatencyCounter + "_seconds",
			Help:      "Time between consequent buffers of element.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"factory"}),
		elements: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      ElementCounter,
			Help:      "Number of running elements.",
		}, []string{"factory"}),
	}
	for _, c := range []prometheus.Collector{m.buffers, m.bytes, m.duration, m.latency, m.elements} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ResetFunc returns new Measure closure. This closure is needed to postpone metrics
// capture until element is actually running.
type ResetFunc func() MeasureFunc

// MeasureFunc captures metrics when buffer is processed.
type MeasureFunc func(*media.Buffer)

// Done is called when element stops running.
type Done func()

// Meter creates new meter closure to capture element counters.
func (m *Metrics) Meter(factory, element string) ResetFunc {
	if m == nil {
		return func() MeasureFunc {
			return func(*media.Buffer) {}
		}
	}
	buffers := m.buffers.WithLabelValues(factory, element)
	bytes := m.bytes.WithLabelValues(factory, element)
	duration := m.duration.WithLabelValues(factory, element)
	latency := m.latency.WithLabelValues(factory)
	return func() MeasureFunc {
		calledAt := time.Now()
		return func(b *media.Buffer) {
			latency.Observe(time.Since(calledAt).Seconds())
			buffers.Inc()
			bytes.Add(float64(b.Size()))
			if b != nil && b.Duration > 0 {
				duration.Add(b.Duration.Seconds())
			}
			calledAt = time.Now()
		}
	}
}

// Start counts running element. Returned function must be called when
// element is done.
func (m *Metrics) Start(factory string) Done {
	if m == nil {
		return func() {}
	}
	g := m.elements.WithLabelValues(factory)
	g.Inc()
	return g.Dec
}

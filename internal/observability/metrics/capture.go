package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// CaptureMetrics covers the capture merger and its sources.
type CaptureMetrics struct {
	framesTotal     prometheus.Counter
	starvationTotal prometheus.Counter
	sourceFailures  *prometheus.CounterVec
	ringBytesUsed   prometheus.Gauge
	framesPerStep   prometheus.Histogram
	activeSources   prometheus.Gauge
}

// NewCaptureMetrics creates and registers capture metrics.
func NewCaptureMetrics(registry prometheus.Registerer) (*CaptureMetrics, error) {
	m := &CaptureMetrics{
		framesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "capture",
			Name:      "frames_total",
			Help:      "Frames merged into the stream",
		}),
		starvationTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "capture",
			Name:      "starvation_sleeps_total",
			Help:      "Loop iterations that found no frames and slept",
		}),
		sourceFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "capture",
			Name:      "source_failures_total",
			Help:      "Sources disabled after an error, by source kind",
		}, []string{"kind"}),
		ringBytesUsed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "capture",
			Name:      "ring_bytes_used",
			Help:      "Bytes held in the stream ring buffer",
		}),
		framesPerStep: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "capture",
			Name:      "frames_per_step",
			Help:      "Frames merged by one loop iteration",
			Buckets:   prometheus.ExponentialBuckets(16, 2, 12),
		}),
		activeSources: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "capture",
			Name:      "active_sources",
			Help:      "Sources currently contributing frames",
		}),
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordStep records one merge of n frames.
func (m *CaptureMetrics) RecordStep(n int, ringBytes int) {
	if m == nil {
		return
	}
	m.framesTotal.Add(float64(n))
	m.framesPerStep.Observe(float64(n))
	m.ringBytesUsed.Set(float64(ringBytes))
}

// RecordStarvation counts an idle sleep.
func (m *CaptureMetrics) RecordStarvation() {
	if m == nil {
		return
	}
	m.starvationTotal.Inc()
}

// RecordSourceFailure counts a disabled source.
func (m *CaptureMetrics) RecordSourceFailure(kind string) {
	if m == nil {
		return
	}
	m.sourceFailures.WithLabelValues(kind).Inc()
}

// SetActiveSources records the number of healthy sources.
func (m *CaptureMetrics) SetActiveSources(n int) {
	if m == nil {
		return
	}
	m.activeSources.Set(float64(n))
}

// Describe implements prometheus.Collector.
func (m *CaptureMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.framesTotal.Describe(ch)
	m.starvationTotal.Describe(ch)
	m.sourceFailures.Describe(ch)
	m.ringBytesUsed.Describe(ch)
	m.framesPerStep.Describe(ch)
	m.activeSources.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *CaptureMetrics) Collect(ch chan<- prometheus.Metric) {
	m.framesTotal.Collect(ch)
	m.starvationTotal.Collect(ch)
	m.sourceFailures.Collect(ch)
	m.ringBytesUsed.Collect(ch)
	m.framesPerStep.Collect(ch)
	m.activeSources.Collect(ch)
}

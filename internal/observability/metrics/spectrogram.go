package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SpectrogramMetrics covers the tile worker pool.
type SpectrogramMetrics struct {
	rendersTotal   prometheus.Counter
	jobsTotal      prometheus.Counter
	renderDuration prometheus.Histogram
	apertureFrom   prometheus.Gauge
	apertureTo     prometheus.Gauge
	workers        prometheus.Gauge
}

// NewSpectrogramMetrics creates and registers spectrogram metrics.
func NewSpectrogramMetrics(registry prometheus.Registerer) (*SpectrogramMetrics, error) {
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "spectrogram",
			Name:      name,
			Help:      help,
		})
	}
	m := &SpectrogramMetrics{
		rendersTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "spectrogram",
			Name:      "renders_total",
			Help:      "Completed spectrogram renders",
		}),
		jobsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "spectrogram",
			Name:      "jobs_total",
			Help:      "Tile jobs processed",
		}),
		renderDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "spectrogram",
			Name:      "render_duration_seconds",
			Help:      "Time from first job submitted to last result drained",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
		apertureFrom: gauge("aperture_from_db", "Lower bound of the display aperture"),
		apertureTo:   gauge("aperture_to_db", "Upper bound of the display aperture"),
		workers:      gauge("workers", "Running tile workers"),
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordRender records one completed render.
func (m *SpectrogramMetrics) RecordRender(jobs int, d time.Duration, from, to float64) {
	if m == nil {
		return
	}
	m.rendersTotal.Inc()
	m.jobsTotal.Add(float64(jobs))
	m.renderDuration.Observe(d.Seconds())
	m.apertureFrom.Set(from)
	m.apertureTo.Set(to)
}

// SetWorkers records the pool size.
func (m *SpectrogramMetrics) SetWorkers(n int) {
	if m == nil {
		return
	}
	m.workers.Set(float64(n))
}

// Describe implements prometheus.Collector.
func (m *SpectrogramMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.rendersTotal.Describe(ch)
	m.jobsTotal.Describe(ch)
	m.renderDuration.Describe(ch)
	m.apertureFrom.Describe(ch)
	m.apertureTo.Describe(ch)
	m.workers.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *SpectrogramMetrics) Collect(ch chan<- prometheus.Metric) {
	m.rendersTotal.Collect(ch)
	m.jobsTotal.Collect(ch)
	m.renderDuration.Collect(ch)
	m.apertureFrom.Collect(ch)
	m.apertureTo.Collect(ch)
	m.workers.Collect(ch)
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// EventMetrics covers the UI event bus.
type EventMetrics struct {
	published *prometheus.CounterVec
	dropped   *prometheus.CounterVec
}

// NewEventMetrics creates and registers event bus metrics.
func NewEventMetrics(registry prometheus.Registerer) (*EventMetrics, error) {
	m := &EventMetrics{
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Events delivered to the UI queue, by type",
		}, []string{"type"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "dropped_total",
			Help:      "Events dropped because the UI queue was full, by type",
		}, []string{"type"}),
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordPublished counts a delivered event.
func (m *EventMetrics) RecordPublished(kind string) {
	if m == nil {
		return
	}
	m.published.WithLabelValues(kind).Inc()
}

// RecordDropped counts a dropped event.
func (m *EventMetrics) RecordDropped(kind string) {
	if m == nil {
		return
	}
	m.dropped.WithLabelValues(kind).Inc()
}

// Describe implements prometheus.Collector.
func (m *EventMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.published.Describe(ch)
	m.dropped.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *EventMetrics) Collect(ch chan<- prometheus.Metric) {
	m.published.Collect(ch)
	m.dropped.Collect(ch)
}

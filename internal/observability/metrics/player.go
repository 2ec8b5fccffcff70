package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PlayerMetrics covers the playback engine. All methods are called from
// the audio callback and only touch atomic counters.
type PlayerMetrics struct {
	callbacksTotal  prometheus.Counter
	framesTotal     prometheus.Counter
	silenceFrames   prometheus.Counter
	crossfadesTotal prometheus.Counter
	configSwaps     prometheus.Counter
}

// NewPlayerMetrics creates and registers playback metrics.
func NewPlayerMetrics(registry prometheus.Registerer) (*PlayerMetrics, error) {
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "player",
			Name:      name,
			Help:      help,
		})
	}
	m := &PlayerMetrics{
		callbacksTotal:  counter("callbacks_total", "Audio device callbacks served"),
		framesTotal:     counter("frames_total", "Output frames rendered"),
		silenceFrames:   counter("silence_frames_total", "Output frames that read outside the retained stream"),
		crossfadesTotal: counter("crossfades_total", "Crossfades armed by seeks or time stretch"),
		configSwaps:     counter("config_swaps_total", "Playback configuration replacements"),
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordCallback records one device callback.
func (m *PlayerMetrics) RecordCallback(frames, silent int) {
	if m == nil {
		return
	}
	m.callbacksTotal.Inc()
	m.framesTotal.Add(float64(frames))
	if silent > 0 {
		m.silenceFrames.Add(float64(silent))
	}
}

// RecordCrossfade counts an armed crossfade.
func (m *PlayerMetrics) RecordCrossfade() {
	if m == nil {
		return
	}
	m.crossfadesTotal.Inc()
}

// RecordConfigSwap counts a configuration replacement.
func (m *PlayerMetrics) RecordConfigSwap() {
	if m == nil {
		return
	}
	m.configSwaps.Inc()
}

// Describe implements prometheus.Collector.
func (m *PlayerMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.callbacksTotal.Describe(ch)
	m.framesTotal.Describe(ch)
	m.silenceFrames.Describe(ch)
	m.crossfadesTotal.Describe(ch)
	m.configSwaps.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *PlayerMetrics) Collect(ch chan<- prometheus.Metric) {
	m.callbacksTotal.Collect(ch)
	m.framesTotal.Collect(ch)
	m.silenceFrames.Collect(ch)
	m.crossfadesTotal.Collect(ch)
	m.configSwaps.Collect(ch)
}

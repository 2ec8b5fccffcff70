// Package observability exposes the pipeline's Prometheus metrics over HTTP.
package observability

import (
	"fmt"
	stdlog "log"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wavescope/wavescope/internal/observability/metrics"
)

// Metrics holds all the metric collectors for the application.
type Metrics struct {
	registry    *prometheus.Registry
	Capture     *metrics.CaptureMetrics
	Player      *metrics.PlayerMetrics
	Spectrogram *metrics.SpectrogramMetrics
	Events      *metrics.EventMetrics
}

// NewMetrics creates a registry with every pipeline collector plus the Go
// runtime and process collectors.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	captureMetrics, err := metrics.NewCaptureMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create capture metrics: %w", err)
	}
	playerMetrics, err := metrics.NewPlayerMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create player metrics: %w", err)
	}
	spectrogramMetrics, err := metrics.NewSpectrogramMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create spectrogram metrics: %w", err)
	}
	eventMetrics, err := metrics.NewEventMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create event metrics: %w", err)
	}

	return &Metrics{
		registry:    registry,
		Capture:     captureMetrics,
		Player:      playerMetrics,
		Spectrogram: spectrogramMetrics,
		Events:      eventMetrics,
	}, nil
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// RegisterHandlers registers the metrics endpoint with the provided http.ServeMux.
func (m *Metrics) RegisterHandlers(mux *http.ServeMux) {
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog:      stdlog.New(os.Stderr, "metrics handler: ", stdlog.LstdFlags),
		ErrorHandling: promhttp.HTTPErrorOnError,
	}))
}

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCaptureMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewCaptureMetrics(reg)
	require.NoError(t, err)

	m.RecordStep(100, 400)
	m.RecordStep(37, 548)
	m.RecordStarvation()
	m.RecordSourceFailure("raw")

	assert.InDelta(t, 137, testutil.ToFloat64(m.framesTotal), 0)
	assert.InDelta(t, 548, testutil.ToFloat64(m.ringBytesUsed), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.sourceFailures.WithLabelValues("raw")), 0)

	_, err = NewCaptureMetrics(reg)
	assert.Error(t, err, "duplicate registration")
}

func TestNilReceiversAreNoOps(t *testing.T) {
	var c *CaptureMetrics
	var p *PlayerMetrics
	var s *SpectrogramMetrics
	var e *EventMetrics
	assert.NotPanics(t, func() {
		c.RecordStep(1, 1)
		c.RecordStarvation()
		p.RecordCallback(1, 1)
		p.RecordCrossfade()
		s.RecordRender(5, time.Millisecond, -100, -20)
		e.RecordDropped("capture")
	})
}

func TestSpectrogramAndPlayerRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	p, err := NewPlayerMetrics(reg)
	require.NoError(t, err)
	s, err := NewSpectrogramMetrics(reg)
	require.NoError(t, err)
	e, err := NewEventMetrics(reg)
	require.NoError(t, err)

	p.RecordCallback(512, 12)
	s.RecordRender(5, 3*time.Millisecond, -110, -30)
	e.RecordPublished("playback")

	assert.InDelta(t, 12, testutil.ToFloat64(p.silenceFrames), 0)
	assert.InDelta(t, -30, testutil.ToFloat64(s.apertureTo), 0)

	n, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Positive(t, n)
}

func TestRenderDurationHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	s, err := NewSpectrogramMetrics(reg)
	require.NoError(t, err)

	s.RecordRender(4, 2*time.Millisecond, -90, -10)
	s.RecordRender(4, 40*time.Millisecond, -90, -10)

	fams, err := reg.Gather()
	require.NoError(t, err)
	h := gatheredHistogram(t, fams, "wavescope_spectrogram_render_duration_seconds")
	assert.Equal(t, uint64(2), h.GetSampleCount())
	assert.InDelta(t, 0.042, h.GetSampleSum(), 1e-9)
}

func gatheredHistogram(t *testing.T, fams []*dto.MetricFamily, name string) *dto.Histogram {
	t.Helper()
	for _, f := range fams {
		if f.GetName() == name {
			require.Len(t, f.GetMetric(), 1)
			return f.GetMetric()[0].GetHistogram()
		}
	}
	require.Failf(t, "metric not gathered", "%s", name)
	return nil
}

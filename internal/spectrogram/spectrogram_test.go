package spectrogram

import (
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wavescope/wavescope/internal/errors"
	"github.com/wavescope/wavescope/internal/observability/metrics"
)

type fakeStream struct {
	channels int
	first    uint64
	data     []int16
}

func (f *fakeStream) Channels() int { return f.channels }

func (f *fakeStream) Frames() (first, total uint64) {
	return f.first, f.first + uint64(len(f.data)/f.channels)
}

func (f *fakeStream) Samples(first uint64, n int) []int16 {
	lo, hi := f.Frames()
	if first < lo || first+uint64(n) > hi {
		return nil
	}
	off := int(first-lo) * f.channels
	return f.data[off : off+n*f.channels]
}

// toneStream puts a sine of the given period (in frames) and amplitude on
// channel 0 and silence on the others.
func toneStream(channels, frames int, period, amplitude float64) *fakeStream {
	s := &fakeStream{channels: channels, data: make([]int16, frames*channels)}
	for i := range frames {
		s.data[i*channels] = int16(amplitude * 32767 * math.Sin(2*math.Pi*float64(i)/period))
	}
	return s
}

func testParams() Params {
	return Params{FFTSize: 256, Hop: 64, Width: 128, Height: 600, AutoGain: true}
}

func newTestPool(t *testing.T, workers int) *Pool {
	t.Helper()
	p := NewPool(workers)
	t.Cleanup(p.Stop)
	return p
}

func TestRenderSubmitsOneJobPerBand(t *testing.T) {
	reg := prometheus.NewRegistry()
	sm, err := metrics.NewSpectrogramMetrics(reg)
	require.NoError(t, err)

	p := testParams()
	s, err := New(newTestPool(t, 3), 2, p, WithMetrics(sm))
	require.NoError(t, err)

	src := toneStream(2, 599*p.Hop+p.FFTSize, 8, 0.5)
	stats := s.Render(src, []bool{true, false})

	// 600 rows in 128-row bands: 5 analyze and 5 paint jobs.
	assert.Equal(t, 10, stats.Jobs)
	assert.Equal(t, 10, stats.Results)
	assert.Equal(t, uint64(p.Width*p.Height), stats.Histogram.Total(), "every pixel is counted once")
	assert.Equal(t, uint64(len(src.data)/2), stats.End)

	n, err := testutil.GatherAndCount(reg, "wavescope_spectrogram_renders_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// The disabled layer was not touched.
	pix := s.Layers()[1].Image.Pix
	for i := 3; i < len(pix); i += 4 {
		require.Zero(t, pix[i])
	}
}

func TestRenderPlacesToneInColumn(t *testing.T) {
	p := testParams()
	p.Height = 4
	p.AutoGain = false
	p.ApertureFrom, p.ApertureTo = -100, 0

	s, err := New(newTestPool(t, 2), 1, p)
	require.NoError(t, err)

	// Period 8 frames puts the tone in bin 32 of 128, which is column 31.
	src := toneStream(1, 4096, 8, 0.5)
	s.Render(src, nil)

	l := s.Layers()[0]
	row := l.db[(p.Height-1)*p.Width : p.Height*p.Width]
	peak := 0
	for c := range row {
		if row[c] > row[peak] {
			peak = c
		}
	}
	assert.Equal(t, 31, peak)
	assert.InDelta(t, -6.02, row[peak], 0.1, "half-scale sine")

	px := l.Image.NRGBAAt(peak, p.Height-1)
	assert.Equal(t, l.Color.R, px.R)
	assert.InDelta(t, 0.94*255, float64(px.A), 2)
}

func TestRenderMissingHistoryIsTransparent(t *testing.T) {
	p := testParams()
	s, err := New(newTestPool(t, 2), 1, p)
	require.NoError(t, err)

	// Only enough frames for the bottom 100 rows.
	src := toneStream(1, 99*p.Hop+p.FFTSize, 16, 0.25)
	stats := s.Render(src, nil)

	assert.Equal(t, uint64(100*p.Width), stats.Histogram.Total())
	img := s.Layers()[0].Image
	assert.Zero(t, img.NRGBAAt(0, 0).A)
	assert.True(t, math.IsNaN(float64(s.Layers()[0].db[0])))
}

func TestRenderBatchesLargerThanQueues(t *testing.T) {
	p := testParams()
	p.Height = 2048
	p.FFTSize = 64
	p.Hop = 1
	pool := newTestPool(t, 1)

	s, err := New(pool, 2, p)
	require.NoError(t, err)

	stats := s.Render(toneStream(2, 4096, 8, 0.5), nil)
	jobs := 2 * 2 * (2048 / BandRows)
	require.Greater(t, jobs, cap(pool.results))
	assert.Equal(t, jobs, stats.Jobs)
	assert.Equal(t, jobs, stats.Results)
}

func TestAutoGainAperture(t *testing.T) {
	p := testParams()
	s, err := New(newTestPool(t, 2), 1, p)
	require.NoError(t, err)

	stats := s.Render(toneStream(1, 599*p.Hop+p.FFTSize, 8, 0.5), nil)
	assert.GreaterOrEqual(t, stats.To-stats.From, MinApertureSpread)
	assert.InDelta(t, -6, stats.To, 1, "the loudest bin sets the top of the aperture")
}

func TestParamsValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Params)
	}{
		{"fft not power of two", func(p *Params) { p.FFTSize = 1000 }},
		{"fft too small", func(p *Params) { p.FFTSize = 32 }},
		{"zero hop", func(p *Params) { p.Hop = 0 }},
		{"zero width", func(p *Params) { p.Width = 0 }},
		{"inverted manual aperture", func(p *Params) { p.AutoGain = false; p.ApertureFrom = 0; p.ApertureTo = -10 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testParams()
			tt.modify(&p)
			err := p.Validate()
			require.Error(t, err)
			assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
		})
	}
	assert.NoError(t, testParams().Validate())
}

func TestStopIsIdempotent(t *testing.T) {
	p := NewPool(2)
	p.Stop()
	p.Stop()
}

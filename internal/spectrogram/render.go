package spectrogram

import (
	"image"
	"image/color"
	"math"
	"math/bits"
	"sync"
	"time"

	"github.com/wavescope/wavescope/internal/errors"
	"github.com/wavescope/wavescope/internal/observability/metrics"
)

const (
	componentSpectrogram = "spectrogram"

	// BandRows is the height of the row band one job covers.
	BandRows = 128
)

// Reader is the read side of the captured stream.
type Reader interface {
	Channels() int
	Frames() (first, total uint64)
	Samples(first uint64, n int) []int16
}

// Params shapes the waterfall. Rows are time, newest at the bottom, one
// FFT every Hop frames; columns are frequency, lowest on the left.
type Params struct {
	FFTSize      int
	Hop          int
	Width        int
	Height       int
	Approximate  bool // fast log2 instead of log10
	AutoGain     bool
	ApertureFrom float64 // dB, used without auto gain
	ApertureTo   float64
}

// Validate checks the layout.
func (p Params) Validate() error {
	var problems []string
	if p.FFTSize < 64 || p.FFTSize > 65536 || bits.OnesCount(uint(p.FFTSize)) != 1 {
		problems = append(problems, "fft size must be a power of two in [64, 65536]")
	}
	if p.Hop < 1 {
		problems = append(problems, "hop must be positive")
	}
	if p.Width < 1 || p.Height < 1 {
		problems = append(problems, "width and height must be positive")
	}
	if !p.AutoGain && p.ApertureFrom >= p.ApertureTo {
		problems = append(problems, "aperture must span a positive range")
	}
	if len(problems) == 0 {
		return nil
	}
	return errors.Newf("invalid spectrogram parameters: %v", problems).
		Component(componentSpectrogram).
		Category(errors.CategoryValidation).
		Context("fft_size", p.FFTSize).
		Build()
}

// palette assigns each channel a color; intensity goes in alpha.
var palette = []color.NRGBA{
	{R: 0x4c, G: 0xc9, B: 0xf0, A: 0xff},
	{R: 0xf7, G: 0x25, B: 0x85, A: 0xff},
	{R: 0x80, G: 0xed, B: 0x99, A: 0xff},
	{R: 0xff, G: 0xb7, B: 0x03, A: 0xff},
	{R: 0xb5, G: 0x17, B: 0x9e, A: 0xff},
	{R: 0xe0, G: 0xe0, B: 0xe0, A: 0xff},
}

// Layer is one channel's waterfall image.
type Layer struct {
	Channel int
	Color   color.NRGBA
	Image   *image.NRGBA

	db []float32 // magnitudes, NaN where no data was retained
}

// Stats describes one render.
type Stats struct {
	Jobs      int // analyze plus paint jobs submitted
	Results   int // results drained
	Histogram Histogram
	From, To  float64 // aperture in dB
	End       uint64  // stream frame at the bottom row
	Duration  time.Duration
}

// renderState is shared read-only by the jobs of one render, except for
// the disjoint rows each job owns.
type renderState struct {
	params       Params
	src          Reader
	channels     int
	first, end   uint64
	apFrom, apTo float64
}

// Spectrogram owns one layer per stream channel and renders them on a Pool.
type Spectrogram struct {
	mu      sync.Mutex
	pool    *Pool
	params  Params
	layers  []*Layer
	metrics *metrics.SpectrogramMetrics
}

// Option configures a Spectrogram.
type Option func(*Spectrogram)

// WithMetrics records render statistics.
func WithMetrics(m *metrics.SpectrogramMetrics) Option {
	return func(s *Spectrogram) { s.metrics = m }
}

// New allocates layers for channels stream channels.
func New(pool *Pool, channels int, params Params, opts ...Option) (*Spectrogram, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	s := &Spectrogram{pool: pool, params: params}
	for _, opt := range opts {
		opt(s)
	}
	for ch := range channels {
		s.layers = append(s.layers, &Layer{
			Channel: ch,
			Color:   palette[ch%len(palette)],
			Image:   image.NewNRGBA(image.Rect(0, 0, params.Width, params.Height)),
			db:      make([]float32, params.Width*params.Height),
		})
	}
	s.metrics.SetWorkers(pool.Workers())
	return s, nil
}

// Layers returns every channel's layer. Images are only stable between renders.
func (s *Spectrogram) Layers() []*Layer { return s.layers }

// Params returns the render parameters.
func (s *Spectrogram) Params() Params { return s.params }

// Render recomputes the layers of enabled channels (all when enabled is
// nil) ending at the newest frame of src.
func (s *Spectrogram) Render(src Reader, enabled []bool) Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	first, end := src.Frames()
	st := &renderState{params: s.params, src: src, channels: src.Channels(), first: first, end: end}

	var analyze, paint []job
	for _, l := range s.layers {
		if enabled != nil && (l.Channel >= len(enabled) || !enabled[l.Channel]) {
			continue
		}
		if l.Channel >= st.channels {
			continue
		}
		for from := 0; from < s.params.Height; from += BandRows {
			to := min(from+BandRows, s.params.Height)
			analyze = append(analyze, job{kind: jobAnalyze, render: st, layer: l, from: from, to: to})
			paint = append(paint, job{kind: jobPaint, render: st, layer: l, from: from, to: to})
		}
	}

	var stats Stats
	merge := func(r result) {
		stats.Results++
		if r.hist != nil {
			stats.Histogram.Merge(r.hist)
		}
	}
	stats.Jobs += s.pool.run(analyze, merge)

	if s.params.AutoGain {
		st.apFrom, st.apTo = stats.Histogram.Aperture()
	} else {
		st.apFrom, st.apTo = s.params.ApertureFrom, s.params.ApertureTo
	}
	stats.Jobs += s.pool.run(paint, merge)

	stats.From, stats.To = st.apFrom, st.apTo
	stats.End = end
	stats.Duration = time.Since(start)
	s.metrics.RecordRender(stats.Jobs, stats.Duration, stats.From, stats.To)
	return stats
}

// analyze computes the magnitudes of rows [from, to) and their histogram.
func (st *renderState) analyze(ws *workerState, l *Layer, from, to int) *Histogram {
	p := st.params
	n := p.FFTSize
	bins := n/2 + 1
	win := hannWindow(n)
	fft := ws.fft(n)
	if len(ws.seq) != n {
		ws.seq = make([]float64, n)
		ws.coeffs = make([]complex128, bins)
	}

	h := &Histogram{}
	for r := from; r < to; r++ {
		row := l.db[r*p.Width : (r+1)*p.Width]
		samples := st.rowSamples(r)
		if samples == nil {
			for c := range row {
				row[c] = float32(math.NaN())
			}
			continue
		}

		for i := range ws.seq {
			ws.seq[i] = float64(samples[i*st.channels+l.Channel]) / 32768 * win.coeffs[i]
		}
		coeffs := fft.Coefficients(ws.coeffs, ws.seq)

		for c := range row {
			lo := 1 + c*(bins-1)/p.Width
			hi := max(1+(c+1)*(bins-1)/p.Width, lo+1)
			var peak float64
			for _, x := range coeffs[lo:min(hi, bins)] {
				peak = max(peak, real(x)*real(x)+imag(x)*imag(x))
			}
			db := powerToDB(peak*win.scale, p.Approximate)
			row[c] = db
			h.Add(db)
		}
	}
	return h
}

// rowSamples returns the FFT input of row r, or nil when any of it has
// been evicted or was never captured.
func (st *renderState) rowSamples(r int) []int16 {
	p := st.params
	back := uint64(p.Height-1-r) * uint64(p.Hop)
	n := uint64(p.FFTSize)
	if back+n > st.end {
		return nil
	}
	start := st.end - back - n
	if start < st.first {
		return nil
	}
	return st.src.Samples(start, p.FFTSize)
}

// paint maps rows [from, to) onto the layer image through the aperture.
func (st *renderState) paint(l *Layer, from, to int) {
	p := st.params
	span := st.apTo - st.apFrom
	for r := from; r < to; r++ {
		for c := range p.Width {
			off := l.Image.PixOffset(c, r)
			px := l.Image.Pix[off : off+4 : off+4]
			px[0], px[1], px[2] = l.Color.R, l.Color.G, l.Color.B

			db := float64(l.db[r*p.Width+c])
			if math.IsNaN(db) {
				px[3] = 0
				continue
			}
			a := min(max((db-st.apFrom)/span, 0), 1)
			px[3] = uint8(a*255 + 0.5)
		}
	}
}

// Package capture runs the merger that joins every source into the single
// multi-channel stream.
package capture

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/wavescope/wavescope/internal/audiocore"
	"github.com/wavescope/wavescope/internal/errors"
	"github.com/wavescope/wavescope/internal/logger"
	"github.com/wavescope/wavescope/internal/observability/metrics"
)

const (
	componentCapture = "capture"

	// DefaultIdleSleep is how long the loop sleeps when no source has data.
	DefaultIdleSleep = 2 * time.Millisecond
	// NotifyInterval limits capture-progress notifications to about 100 Hz.
	NotifyInterval = 10 * time.Millisecond
)

// ProgressFunc receives the total number of frames captured so far.
type ProgressFunc func(total uint64)

// Merger owns the capture goroutine: the only writer of the stream.
type Merger struct {
	stream  *audiocore.Stream
	sources []audiocore.Source
	offsets []int // first stream channel of each source
	failed  []bool

	idleSleep time.Duration
	progress  ProgressFunc
	notify    rate.Sometimes
	metrics   *metrics.CaptureMetrics

	enabled atomic.Bool // requested through SetEnabled
	applied bool        // state the sources were last switched to
	running atomic.Bool
	wg      sync.WaitGroup
	total   atomic.Uint64
}

// Option configures a Merger.
type Option func(*Merger)

// WithIdleSleep sets the sleep used when no source has data.
func WithIdleSleep(d time.Duration) Option {
	return func(m *Merger) {
		if d > 0 {
			m.idleSleep = d
		}
	}
}

// WithProgress installs the capture-progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(m *Merger) { m.progress = fn }
}

// WithMetrics records merge statistics.
func WithMetrics(cm *metrics.CaptureMetrics) Option {
	return func(m *Merger) { m.metrics = cm }
}

// NewMerger assigns each source a contiguous range of stream channels in
// the order given. The channel counts must add up to the stream's.
func NewMerger(stream *audiocore.Stream, sources []audiocore.Source, opts ...Option) (*Merger, error) {
	m := &Merger{
		stream:    stream,
		sources:   sources,
		offsets:   make([]int, len(sources)),
		failed:    make([]bool, len(sources)),
		idleSleep: DefaultIdleSleep,
		notify:    rate.Sometimes{Interval: NotifyInterval},
	}
	for _, opt := range opts {
		opt(m)
	}

	channels := 0
	for i, src := range sources {
		m.offsets[i] = channels
		channels += src.Channels()
	}
	if len(sources) == 0 || channels != stream.Channels() {
		return nil, errors.Newf("sources provide %d channels, stream has %d", channels, stream.Channels()).
			Component(componentCapture).
			Category(errors.CategoryConfiguration).
			Context("sources", len(sources)).
			Build()
	}

	m.enabled.Store(true)
	m.applied = true
	return m, nil
}

// TotalChannels sums the channel counts of sources.
func TotalChannels(sources []audiocore.Source) int {
	n := 0
	for _, s := range sources {
		n += s.Channels()
	}
	return n
}

// Open opens every source concurrently. A source that fails to open is
// logged and contributes silence; Open itself never fails.
func (m *Merger) Open() {
	errs := make([]error, len(m.sources))
	var g errgroup.Group
	for i, src := range m.sources {
		g.Go(func() error {
			errs[i] = src.Open()
			return nil
		})
	}
	_ = g.Wait()

	for i, err := range errs {
		if err != nil {
			m.markFailed(i, err)
		}
	}
	m.metrics.SetActiveSources(m.activeSources())
}

// Start launches the capture goroutine.
func (m *Merger) Start() {
	if m.running.Swap(true) {
		return
	}
	m.wg.Go(m.run)
	GetLogger().Info("capture started",
		logger.Int("sources", len(m.sources)),
		logger.Int("channels", m.stream.Channels()))
}

// Stop flips the running flag and joins the capture goroutine.
func (m *Merger) Stop() {
	if !m.running.Swap(false) {
		return
	}
	m.wg.Wait()
	GetLogger().Info("capture stopped", logger.Uint64("frames", m.total.Load()))
}

// SetEnabled pauses or resumes merging without stopping the goroutine. The
// change reaches the sources on the next Step: hardware sources are paused
// while capture is disabled, and on resume every source drops what it
// queued meanwhile so no channel lags the others.
func (m *Merger) SetEnabled(on bool) { m.enabled.Store(on) }

// Enabled reports whether capture is enabled.
func (m *Merger) Enabled() bool { return m.enabled.Load() }

// Total returns the number of frames captured so far.
func (m *Merger) Total() uint64 { return m.total.Load() }

func (m *Merger) run() {
	for m.running.Load() {
		if m.Step() == 0 {
			if m.applied {
				m.metrics.RecordStarvation()
			}
			time.Sleep(m.idleSleep)
		}
	}
}

// applyEnabled switches the sources to the requested state and reports
// whether capture is enabled. It runs on the capture goroutine, which owns
// the source buffers.
func (m *Merger) applyEnabled() bool {
	on := m.enabled.Load()
	if on == m.applied {
		return on
	}
	m.applied = on
	for _, src := range m.sources {
		if on {
			src.Resume()
		} else {
			src.Pause()
		}
	}
	GetLogger().Debug("capture toggled", logger.Bool("enabled", on))
	return on
}

// Step performs one merge iteration and returns the number of frames
// written. It is exported for deterministic tests; production code lets
// the capture goroutine call it.
func (m *Merger) Step() int {
	if !m.applyEnabled() {
		return 0
	}
	// Poll every source, then join on the slowest healthy one.
	frames := -1
	for i, src := range m.sources {
		src.Poll()
		if m.failed[i] {
			continue
		}
		n := src.Available()
		// A finished source still delivers what it buffered.
		if err := src.Err(); err != nil && n == 0 {
			m.markFailed(i, err)
			continue
		}
		if frames < 0 || n < frames {
			frames = n
		}
	}
	if frames <= 0 {
		return 0
	}

	dst := m.stream.Reserve(frames)
	channels := m.stream.Channels()
	frames = min(frames, len(dst)/channels)

	for i, src := range m.sources {
		off, ch := m.offsets[i], src.Channels()
		if m.failed[i] {
			for f := range frames {
				clear(dst[f*channels+off : f*channels+off+ch])
			}
			continue
		}
		in := src.Frames(frames)
		for f := range frames {
			copy(dst[f*channels+off:f*channels+off+ch], in[f*ch:(f+1)*ch])
		}
	}

	m.stream.Commit(frames)
	for i, src := range m.sources {
		if !m.failed[i] {
			src.Consume(frames)
		}
	}

	total := m.total.Add(uint64(frames))
	m.metrics.RecordStep(frames, m.stream.RingBytesUsed())
	if m.progress != nil {
		m.notify.Do(func() { m.progress(total) })
	}
	return frames
}

func (m *Merger) markFailed(i int, err error) {
	if m.failed[i] {
		return
	}
	m.failed[i] = true
	src := m.sources[i]
	GetLogger().Warn("source contributes silence from now on",
		logger.String("source", src.Name()),
		logger.Error(err))
	kind := src.Name()
	if d, err := audiocore.ParseDescriptor(src.Name(), m.stream.SampleRate()); err == nil {
		kind = string(d.Kind)
	}
	m.metrics.RecordSourceFailure(kind)
	m.metrics.SetActiveSources(m.activeSources())
}

func (m *Merger) activeSources() int {
	n := 0
	for _, f := range m.failed {
		if !f {
			n++
		}
	}
	return n
}

// Package player implements the playback engine: it reads the captured
// stream at an independently controllable rate inside the output device's
// callback and mixes every channel down to stereo.
package player

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/wavescope/wavescope/internal/equalizer"
	"github.com/wavescope/wavescope/internal/logger"
	"github.com/wavescope/wavescope/internal/observability/metrics"
)

const (
	// OutputChannels is the engine's output layout: interleaved stereo.
	OutputChannels = 2

	// JumpThreshold is the distance between read pointer and virtual
	// position that counts as a discontinuity.
	JumpThreshold = 20 * time.Millisecond
	// CrossfadeWindow is the blend length at pitch 1.
	CrossfadeWindow = 30 * time.Millisecond
	// NotifyInterval limits position notifications to about 100 Hz.
	NotifyInterval = 10 * time.Millisecond
)

// Reader is the read side of the captured stream.
type Reader interface {
	Channels() int
	SampleRate() int
	Frames() (first, total uint64)
	Samples(first uint64, n int) []int16
}

// PositionFunc receives the current read index and the frames produced
// since the previous call.
type PositionFunc func(index, produced uint64)

// snapshot is everything the callback needs from the configuration. It is
// replaced as a whole; filter and shifter state belongs to the callback
// once published.
type snapshot struct {
	cfg      Config
	master   float64
	filters  [OutputChannels]*equalizer.Chain
	shifters [OutputChannels]*shifter
}

// Engine is the playback state machine. Render runs on the audio callback
// thread; every other method may be called from any goroutine.
type Engine struct {
	src  Reader
	rate float64

	snap     atomic.Pointer[snapshot]
	channels atomic.Pointer[[]ChannelConfig]
	cfgMu    sync.Mutex // serializes writers only

	seekReq atomic.Int64 // requested frame, -1 when none
	posBits atomic.Uint64

	onPosition PositionFunc
	notify     rate.Sometimes
	metrics    *metrics.PlayerMetrics

	// owned by the callback
	position float64 // virtual position in source frames
	readPos  float64
	fading   bool
	fadeFrom float64
	fadePos  int
	fadeLen  int
	produced uint64
	wl, wr   []float64
}

// Option configures an Engine.
type Option func(*Engine)

// WithPositionFunc installs the playback-position callback.
func WithPositionFunc(fn PositionFunc) Option {
	return func(e *Engine) { e.onPosition = fn }
}

// WithMetrics records callback statistics.
func WithMetrics(m *metrics.PlayerMetrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine creates an engine reading src with the default configuration.
func NewEngine(src Reader, opts ...Option) *Engine {
	e := &Engine{
		src:    src,
		rate:   float64(src.SampleRate()),
		notify: rate.Sometimes{Interval: NotifyInterval},
		wl:     make([]float64, src.Channels()),
		wr:     make([]float64, src.Channels()),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.seekReq.Store(-1)
	e.channels.Store(&[]ChannelConfig{})
	e.snap.Store(e.buildSnapshot(nil, DefaultConfig()))
	return e
}

// SampleRate returns the output rate, which equals the stream rate.
func (e *Engine) SampleRate() int { return int(e.rate) }

// Config returns the configuration currently in effect.
func (e *Engine) Config() Config { return e.snap.Load().cfg }

// SetConfig publishes a new configuration. Pitch and stretch are clamped;
// changed cutoffs or shift take effect with fresh filter and oscillator state.
func (e *Engine) SetConfig(c Config) {
	c = c.Clamped()
	e.cfgMu.Lock()
	prev := e.snap.Load()
	if prev.cfg == c {
		e.cfgMu.Unlock()
		return
	}
	e.snap.Store(e.buildSnapshot(prev, c))
	e.cfgMu.Unlock()
	e.metrics.RecordConfigSwap()
}

func (e *Engine) buildSnapshot(prev *snapshot, c Config) *snapshot {
	s := &snapshot{cfg: c, master: dbToLinear(c.MasterGain)}

	if prev != nil && prev.cfg.HighPass == c.HighPass && prev.cfg.LowPass == c.LowPass {
		s.filters = prev.filters
	} else {
		for ch := range s.filters {
			s.filters[ch] = e.newFilterChain(c)
		}
	}

	if c.Shift != 0 {
		if prev != nil && prev.cfg.Shift == c.Shift {
			s.shifters = prev.shifters
		} else {
			for ch := range s.shifters {
				s.shifters[ch] = newShifter(c.Shift, e.rate)
			}
		}
	}
	return s
}

// newFilterChain returns nil when no filter is enabled. Cutoffs the
// filters reject are logged and skipped.
func (e *Engine) newFilterChain(c Config) *equalizer.Chain {
	var filters []*equalizer.Filter
	if c.HighPass > 0 {
		f, err := equalizer.NewHighPass(e.rate, c.HighPass, equalizer.Butterworth, FilterPasses)
		if err != nil {
			GetLogger().Warn("high-pass disabled", logger.Float64("cutoff", c.HighPass), logger.Error(err))
		}
		filters = append(filters, f)
	}
	if c.LowPass > 0 {
		f, err := equalizer.NewLowPass(e.rate, c.LowPass, equalizer.Butterworth, FilterPasses)
		if err != nil {
			GetLogger().Warn("low-pass disabled", logger.Float64("cutoff", c.LowPass), logger.Error(err))
		}
		filters = append(filters, f)
	}
	chain := equalizer.NewChain(filters...)
	if chain.Len() == 0 {
		return nil
	}
	return chain
}

// Channel returns the configuration of stream channel i.
func (e *Engine) Channel(i int) ChannelConfig {
	chans := *e.channels.Load()
	if i >= 0 && i < len(chans) {
		return chans[i]
	}
	return DefaultChannelConfig()
}

// SetChannel replaces the configuration of stream channel i. The channel
// table grows on demand; channels never set keep the default.
func (e *Engine) SetChannel(i int, cc ChannelConfig) {
	if i < 0 {
		return
	}
	e.cfgMu.Lock()
	defer e.cfgMu.Unlock()

	cur := *e.channels.Load()
	next := make([]ChannelConfig, max(len(cur), i+1))
	copy(next, cur)
	for j := len(cur); j < len(next); j++ {
		next[j] = DefaultChannelConfig()
	}
	next[i] = cc
	e.channels.Store(&next)
}

// Seek moves the virtual position. The callback crossfades to it.
func (e *Engine) Seek(seconds float64) {
	frame := int64(max(seconds, 0) * e.rate)
	e.seekReq.Store(frame)
	e.posBits.Store(math.Float64bits(float64(frame)))
}

// Position returns the virtual playback position in seconds.
func (e *Engine) Position() float64 {
	return math.Float64frombits(e.posBits.Load()) / e.rate
}

// Render fills out with interleaved stereo float32 frames. It never blocks
// and never allocates; frames outside the retained stream are silence.
func (e *Engine) Render(out []float32) {
	frames := len(out) / OutputChannels
	if frames == 0 {
		return
	}
	snap := e.snap.Load()
	cfg := snap.cfg
	e.loadWeights(*e.channels.Load())

	if t := e.seekReq.Swap(-1); t >= 0 {
		e.position = float64(t)
		// Filter memory belongs to the old position.
		snap.filters[0].Reset()
		snap.filters[1].Reset()
	}
	if !e.fading && (math.Abs(e.position-e.readPos) > JumpThreshold.Seconds()*e.rate || cfg.Stretch != 1) {
		e.armCrossfade(cfg.Pitch)
	}

	first, total := e.src.Frames()
	silent := 0
	for i := range frames {
		l, r, ok := e.mixAt(e.readPos, first, total)
		if e.fading {
			w := 1 - float64(e.fadePos)/float64(e.fadeLen)
			ol, or, _ := e.mixAt(e.fadeFrom, first, total)
			l = w*ol + (1-w)*l
			r = w*or + (1-w)*r
			e.fadeFrom += cfg.Pitch
			e.fadePos++
			if e.fadePos >= e.fadeLen {
				e.fading = false
			}
		}
		if !ok {
			silent++
		}
		e.readPos += cfg.Pitch
		e.position += cfg.Stretch

		l *= snap.master
		r *= snap.master
		if snap.shifters[0] != nil {
			l = snap.shifters[0].process(l)
			r = snap.shifters[1].process(r)
		}
		l = snap.filters[0].Process(l)
		r = snap.filters[1].Process(r)

		out[i*2] = clampSample(l)
		out[i*2+1] = clampSample(r)
	}

	e.posBits.Store(math.Float64bits(e.position))
	e.produced += uint64(frames)
	e.metrics.RecordCallback(frames, silent)
	if e.onPosition != nil {
		e.notify.Do(func() {
			e.onPosition(uint64(max(e.readPos, 0)), e.produced)
			e.produced = 0
		})
	}
}

// armCrossfade keeps the old pointer running and jumps the read pointer to
// the virtual position.
func (e *Engine) armCrossfade(pitch float64) {
	e.fadeFrom = e.readPos
	e.readPos = e.position
	e.fadeLen = min(max(int(CrossfadeWindow.Seconds()*e.rate/pitch), 1), int(e.rate))
	e.fadePos = 0
	e.fading = true
	e.metrics.RecordCrossfade()
}

func (e *Engine) loadWeights(chans []ChannelConfig) {
	for c := range e.wl {
		cc := DefaultChannelConfig()
		if c < len(chans) {
			cc = chans[c]
		}
		e.wl[c], e.wr[c] = cc.weights()
	}
}

// mixAt returns the stereo mix at fractional frame idx, interpolating
// linearly between neighbouring frames.
func (e *Engine) mixAt(idx float64, first, total uint64) (l, r float64, ok bool) {
	if idx < 0 {
		return 0, 0, false
	}
	i := uint64(idx)
	if i < first || i >= total {
		return 0, 0, false
	}
	a := e.src.Samples(i, 1)
	if a == nil {
		return 0, 0, false
	}
	b := a
	if i+1 < total {
		if next := e.src.Samples(i+1, 1); next != nil {
			b = next
		}
	}
	frac := idx - math.Floor(idx)
	for c := range e.wl {
		s := (float64(a[c]) + frac*(float64(b[c])-float64(a[c]))) / 32768
		l += s * e.wl[c]
		r += s * e.wr[c]
	}
	return l, r, true
}

func clampSample(v float64) float32 {
	return float32(min(max(v, -1), 1))
}

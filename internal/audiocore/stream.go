package audiocore

import (
	"math"

	"github.com/wavescope/wavescope/internal/errors"
	"github.com/wavescope/wavescope/internal/logger"
	"github.com/wavescope/wavescope/internal/ringbuf"
	"github.com/wavescope/wavescope/internal/wavecache"
)

// StreamConfig sizes a Stream.
type StreamConfig struct {
	Channels      int
	SampleRate    int
	BufferSeconds float64
	SummaryStep   int
	Mapped        bool // try the double-mapped ring
}

// Stream is the unified multi-channel history: interleaved int16 frames in a
// ring buffer plus the waveform summary fed from the same data. Frames are
// addressed by absolute index, counted from the first frame ever written.
//
// The capture goroutine is the only writer. Any goroutine may read; a reader
// can find that old frames were evicted since it last looked but never sees
// a frame before it is fully published.
type Stream struct {
	cfg        StreamConfig
	ring       *ringbuf.Buffer
	summary    *wavecache.Cache
	frameBytes uint64
	pending    []int16
}

// NewStream allocates the ring and summary. Failure here is fatal for startup.
func NewStream(cfg StreamConfig) (*Stream, error) {
	if cfg.Channels < 1 || cfg.SampleRate < 1 || cfg.BufferSeconds <= 0 {
		return nil, errors.Newf("invalid stream layout: %d channels, %d Hz, %.1f s",
			cfg.Channels, cfg.SampleRate, cfg.BufferSeconds).
			Component(ComponentAudioCore).
			Category(errors.CategoryValidation).
			Build()
	}
	if cfg.SummaryStep < 1 {
		cfg.SummaryStep = 256
	}

	var opts []ringbuf.Option
	if cfg.Mapped {
		opts = append(opts, ringbuf.WithMapping(true))
	}

	frames := int(math.Ceil(cfg.BufferSeconds * float64(cfg.SampleRate)))
	fb := 2 * cfg.Channels
	ring, err := ringbuf.New(frames*fb+1, opts...)
	if err != nil {
		return nil, err
	}
	summary, err := wavecache.New(cfg.SummaryStep, cfg.Channels, frames, opts...)
	if err != nil {
		_ = ring.Close()
		return nil, err
	}

	GetLogger().Info("stream allocated",
		logger.Int("channels", cfg.Channels),
		logger.Int("sample_rate", cfg.SampleRate),
		logger.Int("ring_bytes", ring.Size()),
		logger.Bool("mapped", ring.Mapped()),
		logger.Int("summary_step", cfg.SummaryStep))

	return &Stream{cfg: cfg, ring: ring, summary: summary, frameBytes: uint64(fb)}, nil
}

// Channels returns the channel count of the combined layout.
func (s *Stream) Channels() int { return s.cfg.Channels }

// SampleRate returns the stream rate in Hz.
func (s *Stream) SampleRate() int { return s.cfg.SampleRate }

// MaxWriteFrames is the largest frame count a single Reserve can hand out.
func (s *Stream) MaxWriteFrames() int { return (s.ring.Size() - 1) / int(s.frameBytes) }

// RingBytesUsed reports ring occupancy in bytes.
func (s *Stream) RingBytesUsed() int { return s.ring.BytesUsed() }

// Reserve returns an interleaved view for up to frames new frames, written in
// place by the capture goroutine. Publish them with Commit.
func (s *Stream) Reserve(frames int) []int16 {
	frames = min(frames, s.MaxWriteFrames())
	s.pending = BytesInt16(s.ring.Reserve(frames * int(s.frameBytes)))
	return s.pending
}

// Commit feeds the summary from the reserved frames and publishes them.
func (s *Stream) Commit(frames int) {
	frames = min(frames, len(s.pending)/s.cfg.Channels)
	if frames <= 0 {
		return
	}
	s.summary.FeedFrames(s.pending, frames, s.cfg.Channels)
	s.ring.WriteDone(frames * int(s.frameBytes))
	s.pending = nil
}

// Write copies whole interleaved frames into the stream.
func (s *Stream) Write(samples []int16) {
	frames := len(samples) / s.cfg.Channels
	if frames == 0 {
		return
	}
	samples = samples[:frames*s.cfg.Channels]
	s.summary.FeedFrames(samples, frames, s.cfg.Channels)
	s.ring.Write(Int16Bytes(samples))
}

// Frames returns the absolute range [first, total) of frames still retained.
func (s *Stream) Frames() (first, total uint64) {
	t := s.ring.Tail()
	total = s.ring.Head() / s.frameBytes
	first = (t + s.frameBytes - 1) / s.frameBytes
	return min(first, total), total
}

// Samples returns frames [first, first+n) as one contiguous interleaved view,
// or nil when any of them is not retained.
func (s *Stream) Samples(first uint64, n int) []int16 {
	if n <= 0 {
		return nil
	}
	return BytesInt16(s.ring.Slice(first*s.frameBytes, n*int(s.frameBytes)))
}

// View returns every retained frame as one contiguous view together with the
// absolute index of its first frame.
func (s *Stream) View() (first uint64, samples []int16) {
	first, total := s.Frames()
	if total <= first {
		return first, nil
	}
	samples = s.Samples(first, int(total-first))
	if samples == nil {
		// Evicted between the two loads; the next call sees a consistent range.
		first, total = s.Frames()
		samples = s.Samples(first, int(total-first))
	}
	return first, samples
}

// Summary returns the waveform summary, the absolute index of its first
// summary frame, the frame count and the stride in samples.
func (s *Stream) Summary() (first int64, data []int16, frames, stride int) {
	data, frames, stride = s.summary.Peek()
	return s.summary.Total() - int64(frames), data, frames, stride
}

// SummaryStep returns the summary decimation factor.
func (s *Stream) SummaryStep() int { return s.summary.Step() }

// Close releases ring and summary storage.
func (s *Stream) Close() error {
	return errors.Join(s.ring.Close(), s.summary.Close())
}

package audiocore

import (
	"github.com/wavescope/wavescope/internal/ringbuf"
)

// SampleBuffer is the small per-source queue of converted frames waiting for
// the merger. It has one writer (the source) and one reader (the merger).
// On overflow the oldest frames are dropped.
type SampleBuffer struct {
	ring       *ringbuf.Buffer
	channels   int
	frameBytes uint64
}

// NewSampleBuffer allocates room for at least capacityFrames frames.
func NewSampleBuffer(channels, capacityFrames int) (*SampleBuffer, error) {
	fb := 2 * channels
	ring, err := ringbuf.New(capacityFrames*fb + 1)
	if err != nil {
		return nil, err
	}
	return &SampleBuffer{ring: ring, channels: channels, frameBytes: uint64(fb)}, nil
}

// Channels returns the number of samples per frame.
func (b *SampleBuffer) Channels() int { return b.channels }

// Push appends whole interleaved frames; a trailing partial frame is dropped.
func (b *SampleBuffer) Push(samples []int16) {
	n := len(samples) / b.channels * b.channels
	if n == 0 {
		return
	}
	b.ring.Write(Int16Bytes(samples[:n]))
}

// Reserve returns room for up to frames frames to fill in place; commit with Commit.
func (b *SampleBuffer) Reserve(frames int) []int16 {
	return BytesInt16(b.ring.Reserve(frames * int(b.frameBytes)))
}

// Commit publishes frames written through Reserve.
func (b *SampleBuffer) Commit(frames int) {
	b.ring.WriteDone(frames * int(b.frameBytes))
}

// first returns the absolute byte position of the oldest whole frame.
// Overflow eviction works in bytes and may leave tail inside a frame.
func (b *SampleBuffer) first() uint64 {
	t := b.ring.Tail()
	return (t + b.frameBytes - 1) / b.frameBytes * b.frameBytes
}

// Available returns the number of whole frames queued.
func (b *SampleBuffer) Available() int {
	first := b.first()
	head := b.ring.Head()
	if head <= first {
		return 0
	}
	return int((head - first) / b.frameBytes)
}

// Frames returns a view of up to n queued frames, oldest first. The view
// stays valid until the next Push.
func (b *SampleBuffer) Frames(n int) []int16 {
	n = min(n, b.Available())
	if n <= 0 {
		return nil
	}
	return BytesInt16(b.ring.Slice(b.first(), n*int(b.frameBytes)))
}

// Consume drops the n oldest frames.
func (b *SampleBuffer) Consume(n int) {
	if n <= 0 {
		return
	}
	b.ring.Discard(b.first() + uint64(n)*b.frameBytes)
}

// Reset drops everything queued.
func (b *SampleBuffer) Reset() { b.ring.Reset() }

// Close releases the storage.
func (b *SampleBuffer) Close() error { return b.ring.Close() }

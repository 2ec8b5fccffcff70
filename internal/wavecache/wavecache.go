// Package wavecache keeps a decimated (min,max) summary of an interleaved
// int16 stream for drawing waveform overviews without rescanning raw history.
package wavecache

import (
	"math"
	"unsafe"

	"github.com/wavescope/wavescope/internal/errors"
	"github.com/wavescope/wavescope/internal/ringbuf"
)

// Cache folds every Step raw frames into one summary frame holding a
// (min,max) pair per channel. Summary frames are stored interleaved as
// [min0,max0,min1,max1,...] in a ring with the same overwrite policy as the
// raw stream. Only the capture goroutine may call FeedFrames.
type Cache struct {
	step     int
	channels int
	ring     *ringbuf.Buffer

	// partial bucket state
	folded int
	acc    []int16
	entry  []byte
}

// New creates a cache that can retain roughly capacityFrames raw frames of history.
func New(step, channels, capacityFrames int, opts ...ringbuf.Option) (*Cache, error) {
	if step < 1 || channels < 1 {
		return nil, errors.Newf("invalid summary geometry step=%d channels=%d", step, channels).
			Component("wavecache").
			Category(errors.CategoryValidation).
			Build()
	}

	entryBytes := 2 * channels * 2
	entries := max(capacityFrames/step, 1) + 1
	ring, err := ringbuf.New(entries*entryBytes, opts...)
	if err != nil {
		return nil, err
	}

	c := &Cache{
		step:     step,
		channels: channels,
		ring:     ring,
		acc:      make([]int16, 2*channels),
		entry:    make([]byte, entryBytes),
	}
	c.resetBucket()
	return c, nil
}

// Step returns the decimation factor.
func (c *Cache) Step() int { return c.step }

// Channels returns the channel count.
func (c *Cache) Channels() int { return c.channels }

// Close releases the summary storage.
func (c *Cache) Close() error { return c.ring.Close() }

func (c *Cache) resetBucket() {
	c.folded = 0
	for ch := range c.channels {
		c.acc[2*ch] = math.MaxInt16
		c.acc[2*ch+1] = math.MinInt16
	}
}

// FeedFrames folds frameCount interleaved frames of channelCount channels.
// Channels beyond the cache's channel count are ignored; missing channels fold as silence.
func (c *Cache) FeedFrames(samples []int16, frameCount, channelCount int) {
	if channelCount < 1 {
		return
	}
	frameCount = min(frameCount, len(samples)/channelCount)
	shared := min(channelCount, c.channels)

	for f := range frameCount {
		frame := samples[f*channelCount : f*channelCount+channelCount]
		for ch := range c.channels {
			var v int16
			if ch < shared {
				v = frame[ch]
			}
			if v < c.acc[2*ch] {
				c.acc[2*ch] = v
			}
			if v > c.acc[2*ch+1] {
				c.acc[2*ch+1] = v
			}
		}

		c.folded++
		if c.folded == c.step {
			c.flush()
		}
	}
}

// flush commits the completed bucket to the ring.
func (c *Cache) flush() {
	copy(c.entry, unsafe.Slice((*byte)(unsafe.Pointer(&c.acc[0])), len(c.entry)))
	c.ring.Write(c.entry)
	c.resetBucket()
}

// Peek returns all retained summary frames, the number of frames and the
// stride (samples between the same channel's pair in consecutive frames).
// The pair for channel ch of frame i is data[i*stride+2*ch] (min) and
// data[i*stride+2*ch+1] (max).
func (c *Cache) Peek() (data []int16, frames int, stride int) {
	stride = 2 * c.channels
	raw := c.ring.Peek()
	entryBytes := stride * 2

	// Drop a leading partial entry left by byte-granular eviction.
	if skip := len(raw) % entryBytes; skip != 0 {
		raw = raw[skip:]
	}
	frames = len(raw) / entryBytes
	if frames == 0 {
		return nil, 0, stride
	}
	data = unsafe.Slice((*int16)(unsafe.Pointer(&raw[0])), frames*stride)
	return data, frames, stride
}

// Total returns the number of summary frames ever produced.
func (c *Cache) Total() int64 {
	return int64(c.ring.Head() / uint64(4*c.channels))
}

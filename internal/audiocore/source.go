package audiocore

import (
	"sync"

	"github.com/wavescope/wavescope/internal/logger"
)

// Source produces frames asynchronously into its own SampleBuffer, already
// converted to int16 at the stream rate. The merger drives every method
// except Close from its single goroutine.
type Source interface {
	// Name returns the descriptor the source was built from.
	Name() string

	// Open performs device or file setup. A failed Open leaves the source
	// producing silence; the error is also recorded for Err.
	Open() error

	// Poll moves available input into the source buffer without blocking.
	Poll()

	// Pause suspends hardware-backed sources; others ignore it. Resume
	// restarts them and drops whatever was queued, so every source picks up
	// from the present and the channels stay aligned.
	Pause()
	Resume()

	// Channels returns the number of channels this source contributes.
	Channels() int

	// FrameSize returns the size in bytes of one converted frame.
	FrameSize() int

	// Available returns the number of frames ready to be merged.
	Available() int

	// Frames returns a view of up to n ready frames, oldest first.
	Frames(n int) []int16

	// Consume drops the n oldest ready frames.
	Consume(n int)

	// Err returns the error that disabled the source, or nil.
	Err() error

	// Close stops background work and releases resources.
	Close() error
}

// BaseSource carries the state every variant shares and the default no-op
// capabilities. Variants embed it and override what they support.
type BaseSource struct {
	Desc   Descriptor
	Buffer *SampleBuffer

	mu  sync.Mutex
	err error
}

// NewBaseSource allocates a source buffer that holds bufferFrames frames.
func NewBaseSource(desc Descriptor, bufferFrames int) (*BaseSource, error) {
	buf, err := NewSampleBuffer(desc.Spec.Channels, bufferFrames)
	if err != nil {
		return nil, err
	}
	return &BaseSource{Desc: desc, Buffer: buf}, nil
}

func (b *BaseSource) Name() string { return b.Desc.Raw }
func (b *BaseSource) Open() error  { return nil }
func (b *BaseSource) Poll()        {}
func (b *BaseSource) Pause()       {}
func (b *BaseSource) Resume()      { b.Buffer.Reset() }

func (b *BaseSource) Channels() int        { return b.Buffer.Channels() }
func (b *BaseSource) FrameSize() int       { return 2 * b.Buffer.Channels() }
func (b *BaseSource) Available() int       { return b.Buffer.Available() }
func (b *BaseSource) Frames(n int) []int16 { return b.Buffer.Frames(n) }
func (b *BaseSource) Consume(n int)        { b.Buffer.Consume(n) }

// Err returns the recorded failure.
func (b *BaseSource) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

// Fail records the first failure and logs it. The source then produces
// nothing and the merger substitutes silence.
func (b *BaseSource) Fail(err error) {
	if err == nil {
		return
	}
	b.mu.Lock()
	first := b.err == nil
	if first {
		b.err = err
	}
	b.mu.Unlock()
	if first {
		GetLogger().Warn("source disabled",
			logger.String("source", b.Desc.Raw),
			logger.Error(err))
	}
}

// Close releases the buffer.
func (b *BaseSource) Close() error { return b.Buffer.Close() }

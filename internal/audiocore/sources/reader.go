package sources

import (
	"context"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/wavescope/wavescope/internal/audiocore"
	"github.com/wavescope/wavescope/internal/errors"
	"github.com/wavescope/wavescope/internal/logger"
)

const (
	readChunk     = 16 * 1024
	queueFullWait = 2 * time.Millisecond
	dialTimeout   = 5 * time.Second
)

// openFunc opens the input of a reader source and reports its PCM layout.
type openFunc func(ctx context.Context) (io.ReadCloser, audiocore.Spec, error)

// readerSource drains a blocking io.Reader on its own goroutine. Inputs that
// are not live (files) are paced to real time so they play back at their
// natural speed instead of flooding the ring.
type readerSource struct {
	*queueSource

	open     openFunc
	paced    bool
	detached bool // Close does not wait for the reader goroutine

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	input io.Closer
}

func newReaderSource(desc audiocore.Descriptor, opts Options, open openFunc, paced bool) (*readerSource, error) {
	q, err := newQueueSource(desc, opts)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &readerSource{queueSource: q, open: open, paced: paced, ctx: ctx, cancel: cancel}, nil
}

func newRawFile(desc audiocore.Descriptor, opts Options) (audiocore.Source, error) {
	open := func(context.Context) (io.ReadCloser, audiocore.Spec, error) {
		f, err := os.Open(desc.Target)
		if err != nil {
			return nil, desc.Spec, errors.New(err).
				Component(componentSources).
				Category(errors.CategoryFileIO).
				Context("path", desc.Target).
				Build()
		}
		return f, desc.Spec, nil
	}
	return newReaderSource(desc, opts, open, true)
}

func newStdin(desc audiocore.Descriptor, opts Options) (audiocore.Source, error) {
	open := func(context.Context) (io.ReadCloser, audiocore.Spec, error) {
		return io.NopCloser(os.Stdin), desc.Spec, nil
	}
	s, err := newReaderSource(desc, opts, open, false)
	if err != nil {
		return nil, err
	}
	// A read blocked on standard input cannot be interrupted; it is
	// abandoned at shutdown.
	s.detached = true
	return s, nil
}

func newTCP(desc audiocore.Descriptor, opts Options) (audiocore.Source, error) {
	open := func(ctx context.Context) (io.ReadCloser, audiocore.Spec, error) {
		d := net.Dialer{Timeout: dialTimeout}
		conn, err := d.DialContext(ctx, "tcp", desc.Target)
		if err != nil {
			return nil, desc.Spec, errors.New(err).
				Component(componentSources).
				Category(errors.CategoryNetwork).
				Context("address", desc.Target).
				Build()
		}
		return conn, desc.Spec, nil
	}
	return newReaderSource(desc, opts, open, false)
}

// Open connects or opens the input and starts the reader goroutine.
func (s *readerSource) Open() error {
	rc, spec, err := s.open(s.ctx)
	if err != nil {
		err = sourceError(s.Desc, err)
		s.Fail(err)
		return err
	}
	s.setInput(spec)

	s.mu.Lock()
	s.input = rc
	s.mu.Unlock()

	var limiter *rate.Limiter
	if s.paced {
		bps := spec.SampleRate * spec.FrameBytes()
		burst := max(spec.FrameBytes(), min(readChunk, bps/20)/spec.FrameBytes()*spec.FrameBytes())
		limiter = rate.NewLimiter(rate.Limit(bps), burst)
	}

	s.wg.Add(1)
	go s.pump(rc, limiter)

	GetLogger().Info("source opened",
		logger.String("source", s.Desc.Raw),
		logger.String("spec", spec.String()),
		logger.Bool("paced", s.paced))
	return nil
}

func (s *readerSource) pump(r io.Reader, limiter *rate.Limiter) {
	defer s.wg.Done()

	chunk := readChunk
	if limiter != nil {
		chunk = limiter.Burst()
	}
	buf := make([]byte, chunk)

	for {
		if limiter != nil {
			if err := limiter.WaitN(s.ctx, chunk); err != nil {
				s.finish(err)
				return
			}
		}
		n, err := r.Read(buf)
		if n > 0 && !s.deliver(buf[:n]) {
			s.finish(s.ctx.Err())
			return
		}
		if err != nil {
			if s.ctx.Err() != nil {
				err = s.ctx.Err()
			}
			s.finish(err)
			return
		}
	}
}

// deliver hands p to the queue, waiting for the merger to make room.
// It returns false when the source is being closed.
func (s *readerSource) deliver(p []byte) bool {
	for len(p) > 0 {
		n := s.offer(p)
		p = p[n:]
		if len(p) == 0 {
			break
		}
		select {
		case <-s.ctx.Done():
			return false
		case <-time.After(queueFullWait):
		}
	}
	return true
}

// Close stops the reader goroutine and releases the source buffer.
func (s *readerSource) Close() error {
	s.cancel()
	s.mu.Lock()
	var err error
	if s.input != nil {
		err = s.input.Close()
		s.input = nil
	}
	s.mu.Unlock()
	if !s.detached {
		s.wg.Wait()
	}
	return errors.Join(err, s.BaseSource.Close())
}

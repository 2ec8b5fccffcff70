package sources

import (
	"sync/atomic"

	"github.com/smallnest/ringbuffer"

	"github.com/wavescope/wavescope/internal/audiocore"
)

// minQueueBytes bounds the hand-off queue from below for low-rate inputs.
const minQueueBytes = 64 * 1024

// queueSource is shared by every source whose input arrives on another
// goroutine (a blocking reader or a device callback). The producer writes
// raw bytes into a locked byte queue; Poll drains it without blocking,
// converts and pushes into the source buffer.
type queueSource struct {
	*audiocore.BaseSource

	dstRate int
	conv    *converter
	queue   *ringbuffer.RingBuffer
	scratch []byte

	finished atomic.Bool // producer is done; endErr holds why
	endErr   atomic.Pointer[error]
	dropped  atomic.Uint64
}

func newQueueSource(desc audiocore.Descriptor, opts Options) (*queueSource, error) {
	base, err := audiocore.NewBaseSource(desc, opts.bufferFrames())
	if err != nil {
		return nil, err
	}
	return &queueSource{BaseSource: base, dstRate: opts.SampleRate}, nil
}

// setInput fixes the external format once it is known and sizes the queue
// to half a second of input.
func (q *queueSource) setInput(spec audiocore.Spec) {
	q.conv = newConverter(spec, q.dstRate)
	q.queue = ringbuffer.New(max(minQueueBytes, spec.SampleRate*spec.FrameBytes()/2))
}

// offer queues as much of p as fits and returns the number of bytes taken.
// It never blocks.
func (q *queueSource) offer(p []byte) int {
	n := min(len(p), q.queue.Free())
	if n == 0 {
		return 0
	}
	w, _ := q.queue.Write(p[:n])
	return w
}

// offerFrames queues the whole frames of p that fit and returns the number
// of bytes taken. Producers that cannot retry use it so a full queue never
// splits a frame.
func (q *queueSource) offerFrames(p []byte) int {
	fb := q.conv.frameBytes
	n := min(len(p), q.queue.Free()) / fb * fb
	if n == 0 {
		return 0
	}
	w, _ := q.queue.Write(p[:n])
	return w
}

// Resume drops the queued input and the converted frames. The converter's
// carried partial frame is dropped with it, so input resumes on a frame
// boundary.
func (q *queueSource) Resume() {
	if q.queue != nil {
		fb := q.conv.frameBytes
		carry := len(q.conv.carry)
		if total := carry + q.queue.Length(); total >= fb {
			q.discard(total/fb*fb - carry)
			q.conv.carry = q.conv.carry[:0]
		}
	}
	q.BaseSource.Resume()
}

// discard reads and drops n queued bytes.
func (q *queueSource) discard(n int) {
	if cap(q.scratch) == 0 {
		q.scratch = make([]byte, minQueueBytes)
	}
	for n > 0 {
		r, _ := q.queue.Read(q.scratch[:min(n, cap(q.scratch))])
		if r == 0 {
			return
		}
		n -= r
	}
}

// finish marks the producer as done. Poll disables the source once the
// queue is drained.
func (q *queueSource) finish(err error) {
	q.endErr.Store(&err)
	q.finished.Store(true)
}

// Poll moves queued input into the source buffer.
func (q *queueSource) Poll() {
	if q.queue == nil || q.Err() != nil {
		return
	}
	finished := q.finished.Load()
	n := q.queue.Length()
	if n == 0 {
		if finished {
			q.Fail(sourceError(q.Desc, *q.endErr.Load()))
		}
		return
	}

	if cap(q.scratch) < n {
		q.scratch = make([]byte, n)
	}
	n, _ = q.queue.Read(q.scratch[:n])
	q.conv.Write(q.scratch[:n], q.Buffer)
}

// Package ringbuf implements a fixed-capacity byte ring with one writer, many
// readers and an overwrite-oldest policy. Every readable range is exposed as a
// single contiguous slice, including ranges that cross the logical end of the
// buffer: the storage is twice the capacity and its second half always mirrors
// the first, either through a double virtual mapping of the same physical pages
// or, portably, by writing every byte twice.
package ringbuf

import (
	"os"
	"sync/atomic"

	"github.com/shirou/gopsutil/v3/mem"

	"github.com/wavescope/wavescope/internal/errors"
	"github.com/wavescope/wavescope/internal/logger"
)

const componentRingBuf = "ringbuf"

// Buffer is a byte ring of capacity Size(). At most Size()-1 bytes are held;
// one byte always stays unused so a full buffer is distinguishable from an empty one.
//
// head and tail are monotonically increasing byte cursors interpreted modulo
// the capacity. Only the single writer advances head; tail is advanced by the
// writer on overflow and by Read.
type Buffer struct {
	data     []byte
	size     int
	mirrored bool // second half must be maintained in software
	mapped   bool
	release  func() error

	head atomic.Uint64
	tail atomic.Uint64
}

// Option configures a Buffer.
type Option func(*options)

type options struct {
	mapped bool
}

// WithMapping selects the double-mapped fast path when the platform supports it.
// If mapping fails the buffer falls back to the portable implementation.
func WithMapping(enabled bool) Option {
	return func(o *options) { o.mapped = enabled }
}

// New allocates a buffer of at least size bytes. The capacity is rounded up to
// a multiple of the page size.
func New(size int, opts ...Option) (*Buffer, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	b := &Buffer{}
	if err := b.allocate(size, o.mapped); err != nil {
		return nil, err
	}
	return b, nil
}

// SetSize reallocates the buffer and clears it. It must not be called while
// readers or the writer are active.
func (b *Buffer) SetSize(size int) error {
	mapped := b.mapped
	if err := b.Close(); err != nil {
		return err
	}
	return b.allocate(size, mapped)
}

func (b *Buffer) allocate(size int, mapped bool) error {
	if size < 2 {
		return errors.Newf("ring buffer size %d too small", size).
			Component(componentRingBuf).
			Category(errors.CategoryValidation).
			Build()
	}

	page := os.Getpagesize()
	size = (size + page - 1) / page * page

	if err := checkAvailableMemory(2 * size); err != nil {
		return err
	}

	b.head.Store(0)
	b.tail.Store(0)
	b.size = size

	if mapped {
		data, release, err := mapMirrored(size)
		if err == nil {
			b.data = data
			b.release = release
			b.mirrored = false
			b.mapped = true
			return nil
		}
		GetLogger().Debug("double mapping unavailable, using portable ring",
			logger.Int("size", size),
			logger.Error(err))
	}

	b.data = make([]byte, 2*size)
	b.release = nil
	b.mirrored = true
	b.mapped = false
	return nil
}

// checkAvailableMemory refuses allocations that cannot fit in available memory.
func checkAvailableMemory(n int) error {
	vm, err := mem.VirtualMemory()
	if err != nil || vm.Available == 0 {
		return nil
	}
	if uint64(n) > vm.Available {
		return errors.Newf("ring buffer needs %d bytes, only %d available", n, vm.Available).
			Component(componentRingBuf).
			Category(errors.CategorySystem).
			Context("requested", n).
			Build()
	}
	return nil
}

// Close releases the storage. The buffer is unusable until SetSize is called.
func (b *Buffer) Close() error {
	var err error
	if b.release != nil {
		err = b.release()
	}
	b.release = nil
	b.data = nil
	b.size = 0
	return err
}

// Size returns the capacity in bytes.
func (b *Buffer) Size() int { return b.size }

// Mapped reports whether the double-mapped fast path is in use.
func (b *Buffer) Mapped() bool { return b.mapped }

// Head returns the total number of bytes ever written.
func (b *Buffer) Head() uint64 { return b.head.Load() }

// Tail returns the absolute position of the oldest retained byte.
func (b *Buffer) Tail() uint64 { return b.tail.Load() }

// BytesUsed returns the number of readable bytes.
func (b *Buffer) BytesUsed() int {
	h := b.head.Load()
	t := b.tail.Load()
	if t >= h {
		return 0
	}
	return int(h - t)
}

// BytesFree returns how many bytes can be written before old data is evicted.
func (b *Buffer) BytesFree() int {
	return b.size - 1 - b.BytesUsed()
}

// Write appends p. When p does not fit, the oldest bytes are discarded;
// Write never blocks and never fails.
func (b *Buffer) Write(p []byte) {
	n := len(p)
	if n == 0 || b.size == 0 {
		return
	}

	h := b.head.Load()
	newHead := h + uint64(n)
	limit := b.size - 1
	if n > limit {
		p = p[n-limit:]
		h = newHead - uint64(limit)
	}

	b.evict(newHead)
	b.copyAt(int(h%uint64(b.size)), p)
	b.head.Store(newHead)
}

// WritePtr returns a view of the bytes at head for producers that compute
// output in place. The view is Size()-1 bytes long; writing into it
// overwrites the oldest data. Commit with WriteDone.
func (b *Buffer) WritePtr() []byte {
	if b.size == 0 {
		return nil
	}
	off := int(b.head.Load() % uint64(b.size))
	return b.data[off : off+b.size-1]
}

// Reserve evicts enough old data to make room for n bytes and returns an
// n-byte view at head (n is capped at Size()-1). Commit with WriteDone.
func (b *Buffer) Reserve(n int) []byte {
	if n <= 0 || b.size == 0 {
		return nil
	}
	n = min(n, b.size-1)
	h := b.head.Load()
	b.evict(h + uint64(n))
	off := int(h % uint64(b.size))
	return b.data[off : off+n]
}

// WriteDone publishes n bytes written through WritePtr or Reserve.
func (b *Buffer) WriteDone(n int) {
	if n <= 0 || b.size == 0 {
		return
	}
	n = min(n, b.size-1)

	h := b.head.Load()
	newHead := h + uint64(n)
	b.evict(newHead)
	if b.mirrored {
		b.mirror(int(h%uint64(b.size)), n)
	}
	b.head.Store(newHead)
}

// Peek returns all readable bytes as one contiguous slice starting at tail.
// The slice is valid until the next write.
func (b *Buffer) Peek() []byte {
	h := b.head.Load()
	t := b.tail.Load()
	if t >= h || b.size == 0 {
		return nil
	}
	off := int(t % uint64(b.size))
	return b.data[off : off+int(h-t)]
}

// Read returns up to n readable bytes starting at tail and consumes them.
func (b *Buffer) Read(n int) []byte {
	if n <= 0 || b.size == 0 {
		return nil
	}
	for {
		h := b.head.Load()
		t := b.tail.Load()
		if t >= h {
			return nil
		}
		take := min(uint64(n), h-t)
		if b.tail.CompareAndSwap(t, t+take) {
			off := int(t % uint64(b.size))
			return b.data[off : off+int(take)]
		}
	}
}

// Slice returns n bytes starting at absolute position pos, or nil when any
// part of the range is not retained.
func (b *Buffer) Slice(pos uint64, n int) []byte {
	if n <= 0 || b.size == 0 {
		return nil
	}
	h := b.head.Load()
	t := b.tail.Load()
	if pos < t || pos+uint64(n) > h {
		return nil
	}
	off := int(pos % uint64(b.size))
	return b.data[off : off+n]
}

// Discard drops every byte before absolute position pos. Positions beyond
// head are clamped; tail never moves backwards.
func (b *Buffer) Discard(pos uint64) {
	for {
		t := b.tail.Load()
		pos = min(pos, b.head.Load())
		if pos <= t || b.tail.CompareAndSwap(t, pos) {
			return
		}
	}
}

// Reset discards all readable data.
func (b *Buffer) Reset() {
	b.tail.Store(b.head.Load())
}

// evict advances tail so that newHead-tail never exceeds Size()-1.
func (b *Buffer) evict(newHead uint64) {
	limit := uint64(b.size - 1)
	if newHead <= limit {
		return
	}
	to := newHead - limit
	for {
		t := b.tail.Load()
		if t >= to || b.tail.CompareAndSwap(t, to) {
			return
		}
	}
}

// copyAt writes src at physical offset off (< Size()).
func (b *Buffer) copyAt(off int, src []byte) {
	n := copy(b.data[off:], src)
	if b.mirrored {
		b.mirror(off, n)
	}
}

// mirror makes [off, off+n) identical in both halves of the storage.
func (b *Buffer) mirror(off, n int) {
	c := b.size
	end := off + n
	if off < c {
		e := min(end, c)
		copy(b.data[off+c:e+c], b.data[off:e])
	}
	if end > c {
		s := max(off, c)
		copy(b.data[s-c:end-c], b.data[s:end])
	}
}

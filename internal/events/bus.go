package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/wavescope/wavescope/internal/logger"
	"github.com/wavescope/wavescope/internal/observability/metrics"
)

// DefaultBufferSize holds about a second of events at 100 Hz from both producers.
const DefaultBufferSize = 256

// Bus is a bounded queue with many producers and one consumer. Publishing
// never blocks: when the queue is full the event is dropped, which is
// harmless because every event supersedes the previous one of its type.
type Bus struct {
	ch      chan Event
	closed  atomic.Bool
	mu      sync.Mutex
	now     func() time.Time
	metrics *metrics.EventMetrics

	published atomic.Uint64
	dropped   atomic.Uint64
}

// Option configures a Bus.
type Option func(*Bus)

// WithMetrics records published and dropped events.
func WithMetrics(m *metrics.EventMetrics) Option {
	return func(b *Bus) { b.metrics = m }
}

// NewBus creates a bus holding up to size pending events.
func NewBus(size int, opts ...Option) *Bus {
	if size <= 0 {
		size = DefaultBufferSize
	}
	b := &Bus{ch: make(chan Event, size), now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// TryPublish queues e without blocking and reports whether it was accepted.
func (b *Bus) TryPublish(e Event) bool {
	if b == nil || b.closed.Load() {
		return false
	}
	if e.Time.IsZero() {
		e.Time = b.now()
	}
	select {
	case b.ch <- e:
		b.published.Add(1)
		b.metrics.RecordPublished(e.Type.String())
		return true
	default:
		if b.dropped.Add(1) == 1 {
			GetLogger().Debug("event queue full, dropping", logger.String("type", e.Type.String()))
		}
		b.metrics.RecordDropped(e.Type.String())
		return false
	}
}

// PublishCapture posts a capture-progress event.
func (b *Bus) PublishCapture(total uint64) {
	b.TryPublish(Event{Type: CaptureProgress, Frame: total})
}

// PublishPosition posts a playback-position event.
func (b *Bus) PublishPosition(index, produced uint64) {
	b.TryPublish(Event{Type: PlaybackPosition, Frame: index, Produced: produced})
}

// Events returns the consumer side of the queue. It is closed by Close.
func (b *Bus) Events() <-chan Event { return b.ch }

// Stats returns the bus counters.
func (b *Bus) Stats() Stats {
	return Stats{Published: b.published.Load(), Dropped: b.dropped.Load()}
}

// Close stops accepting events and closes the consumer channel. Producers
// must have stopped before Close is called.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed.Swap(true) {
		return
	}
	close(b.ch)
}

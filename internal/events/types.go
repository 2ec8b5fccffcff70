// Package events carries pipeline notifications from the capture goroutine
// and the audio callback to the UI goroutine without ever blocking the
// producer.
package events

import "time"

// Type identifies an event.
type Type uint8

const (
	// CaptureProgress reports the total number of frames captured so far.
	CaptureProgress Type = iota + 1
	// PlaybackPosition reports the current read index and the frames
	// rendered since the previous position event.
	PlaybackPosition
)

func (t Type) String() string {
	switch t {
	case CaptureProgress:
		return "capture"
	case PlaybackPosition:
		return "playback"
	default:
		return "unknown"
	}
}

// Event is a small value type; publishing it never allocates.
type Event struct {
	Type     Type
	Frame    uint64 // total frames captured, or the playback read index
	Produced uint64 // frames rendered since the previous position event
	Time     time.Time
}

// Stats are runtime counters of a Bus.
type Stats struct {
	Published uint64
	Dropped   uint64
}

package audiocore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStream(t *testing.T, channels int, seconds float64) *Stream {
	t.Helper()
	s, err := NewStream(StreamConfig{
		Channels:      channels,
		SampleRate:    1000,
		BufferSeconds: seconds,
		SummaryStep:   4,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStreamReserveCommit(t *testing.T) {
	s := newTestStream(t, 2, 1)

	dst := s.Reserve(3)
	require.Len(t, dst, 6)
	copy(dst, []int16{1, -1, 2, -2, 3, -3})
	s.Commit(3)

	first, total := s.Frames()
	assert.Equal(t, uint64(0), first)
	assert.Equal(t, uint64(3), total)
	assert.Equal(t, []int16{2, -2, 3, -3}, s.Samples(1, 2))
	assert.Nil(t, s.Samples(2, 2), "frame 3 was never written")
}

func TestStreamEvictionAndView(t *testing.T) {
	s := newTestStream(t, 3, 0.01)
	chunk := make([]int16, 3*100)
	for round := range 200 {
		for i := range 100 {
			v := int16(round*100 + i)
			chunk[3*i], chunk[3*i+1], chunk[3*i+2] = v, v, v
		}
		s.Write(chunk)
	}

	first, total := s.Frames()
	assert.Equal(t, uint64(20000), total)
	assert.Positive(t, first)

	vfirst, view := s.View()
	assert.Equal(t, first, vfirst)
	require.Len(t, view, int(total-first)*3)
	assert.Equal(t, int16(first), view[0])
	assert.Equal(t, int16(total-1), view[len(view)-1])
	assert.Nil(t, s.Samples(0, 1), "evicted frames read as unavailable")
}

func TestStreamSummaryTracksWrites(t *testing.T) {
	s := newTestStream(t, 1, 1)
	s.Write([]int16{1, 5, -3, 2, 7, 0, 0, -9, 4})

	first, data, frames, stride := s.Summary()
	assert.Equal(t, int64(0), first)
	require.Equal(t, 2, frames)
	assert.Equal(t, 2, stride)
	assert.Equal(t, []int16{-3, 5, -9, 7}, data[:4])
}

func TestNewStreamValidates(t *testing.T) {
	_, err := NewStream(StreamConfig{Channels: 0, SampleRate: 48000, BufferSeconds: 1})
	assert.Error(t, err)
}

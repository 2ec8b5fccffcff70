package sources

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wavescope/wavescope/internal/audiocore"
)

func TestConverterCarriesPartialFrames(t *testing.T) {
	spec := audiocore.Spec{Format: audiocore.Format{Sample: audiocore.FormatS16}, Channels: 2, SampleRate: testRate}
	conv := newConverter(spec, testRate)
	buf, err := audiocore.NewSampleBuffer(2, 64)
	require.NoError(t, err)
	defer buf.Close()

	raw := make([]byte, 4*3)
	for i := range 6 {
		binary.LittleEndian.PutUint16(raw[2*i:], uint16(int16(1000*(i+1))))
	}

	// Split at odd offsets so frames and samples straddle writes.
	conv.Write(raw[:3], buf)
	assert.Equal(t, 0, buf.Available())
	conv.Write(raw[3:7], buf)
	assert.Equal(t, 1, buf.Available())
	conv.Write(raw[7:], buf)
	require.Equal(t, 3, buf.Available())

	got := buf.Frames(3)
	for i, v := range got {
		assert.InDelta(t, 1000*(i+1), int(v), 1, "sample %d", i)
	}
}

func TestResamplerRatio(t *testing.T) {
	tests := []struct {
		name     string
		src, dst int
	}{
		{"upsample", 8000, 48000},
		{"downsample", 48000, 8000},
		{"fractional", 44100, 48000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newResampler(1, tt.src, tt.dst)
			in := make([]float32, tt.src) // one second of DC
			for i := range in {
				in[i] = 0.25
			}
			out := r.process(in, nil)

			assert.InDelta(t, tt.dst, len(out), 2)
			// Past the two-frame warm-up, DC passes unchanged.
			warm := 4 * max(1, tt.dst/tt.src)
			for i := warm; i < len(out); i++ {
				require.InDelta(t, 0.25, out[i], 1e-5, "sample %d", i)
			}
		})
	}
}

package equalizer

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wavescope/wavescope/internal/errors"
)

const testRate = 48000.0

func sine(freq float64, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(math.Sin(2 * math.Pi * freq * float64(i) / testRate))
	}
	return out
}

func rms(s []float32) float64 {
	var sum float64
	for _, v := range s {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum / float64(len(s)))
}

// apply filters samples in place, one sample at a time.
func apply(p interface{ Process(float64) float64 }, samples []float32) {
	for i, s := range samples {
		samples[i] = float32(p.Process(float64(s)))
	}
}

func TestFilterIsZero(t *testing.T) {
	assert.True(t, (&Filter{}).IsZero())
	assert.True(t, (*Filter)(nil).IsZero())

	f, err := NewLowPass(testRate, 1000, Butterworth, 1)
	require.NoError(t, err)
	assert.False(t, f.IsZero())
	assert.Equal(t, LowPass, f.Name())
}

func TestConstructorValidation(t *testing.T) {
	tests := []struct {
		name string
		fn   func() (*Filter, error)
	}{
		{"zero passes", func() (*Filter, error) { return NewLowPass(testRate, 1000, Butterworth, 0) }},
		{"above nyquist", func() (*Filter, error) { return NewHighPass(testRate, 30000, Butterworth, 2) }},
		{"zero frequency", func() (*Filter, error) { return NewHighPass(testRate, 0, Butterworth, 2) }},
		{"negative q", func() (*Filter, error) { return NewLowPass(testRate, 1000, -1, 2) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := tt.fn()
			require.Error(t, err)
			assert.Nil(t, f)
			assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
		})
	}
}

func TestLowPassDCGain(t *testing.T) {
	f, err := NewLowPass(testRate, 1000, Butterworth, 2)
	require.NoError(t, err)

	in := make([]float32, 2000)
	for i := range in {
		in[i] = 0.5
	}
	apply(f, in)
	for i := 1900; i < len(in); i++ {
		assert.InDelta(t, 0.5, in[i], 0.01, "sample %d", i)
	}
}

func TestHighPassRejectsDC(t *testing.T) {
	f, err := NewHighPass(testRate, 200, Butterworth, 2)
	require.NoError(t, err)

	in := make([]float32, 4000)
	for i := range in {
		in[i] = 0.5
	}
	apply(f, in)
	assert.InDelta(t, 0, in[len(in)-1], 0.001)
}

func TestPassesSteepenRolloff(t *testing.T) {
	// 4 kHz is two octaves above a 1 kHz cutoff.
	attenuation := func(passes int) float64 {
		f, err := NewLowPass(testRate, 1000, Butterworth, passes)
		require.NoError(t, err)
		s := sine(4000, 9600)
		apply(f, s)
		return 20 * math.Log10(rms(s[4800:])/(1/math.Sqrt2))
	}

	one, two := attenuation(1), attenuation(2)
	assert.Less(t, one, -20.0)
	assert.InDelta(t, 2*one, two, 1.5, "a second pass doubles the attenuation in dB")
}

func TestResetClearsState(t *testing.T) {
	f, err := NewLowPass(testRate, 1000, Butterworth, 2)
	require.NoError(t, err)

	first := f.Process(1)
	f.Process(1)
	f.Reset()
	assert.InDelta(t, first, f.Process(1), 1e-12)
}

func TestChain(t *testing.T) {
	hp, err := NewHighPass(testRate, 300, Butterworth, 2)
	require.NoError(t, err)
	lp, err := NewLowPass(testRate, 3000, Butterworth, 2)
	require.NoError(t, err)

	c := NewChain(hp, nil, &Filter{}, lp)
	assert.Equal(t, 2, c.Len(), "nil and uninitialized filters are skipped")

	pass := sine(1000, 9600)
	apply(c, pass)
	c.Reset()
	low := sine(50, 9600)
	apply(c, low)

	assert.InDelta(t, 1/math.Sqrt2, rms(pass[4800:]), 0.05, "passband is untouched")
	assert.Less(t, rms(low[4800:]), 0.01, "stopband is attenuated")

	var empty *Chain
	assert.Equal(t, 0, empty.Len())
	assert.InDelta(t, 0.25, empty.Process(0.25), 0)
}

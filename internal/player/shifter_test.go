package player

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

// power returns the Goertzel power of s at freq.
func power(s []float64, freq, rate float64) float64 {
	w := 2 * math.Pi * freq / rate
	coeff := 2 * math.Cos(w)
	var s1, s2 float64
	for _, x := range s {
		s0 := x + coeff*s1 - s2
		s2, s1 = s1, s0
	}
	return s1*s1 + s2*s2 - coeff*s1*s2
}

func TestHilbertKernelIsAntisymmetric(t *testing.T) {
	mid := (hilbertTaps - 1) / 2
	assert.Zero(t, hilbertKernel[mid])
	for k := 1; k <= mid; k++ {
		assert.InDelta(t, -hilbertKernel[mid-k], hilbertKernel[mid+k], 1e-15)
	}
}

func TestShifterMovesTone(t *testing.T) {
	const rate = 8000.0
	tests := []struct {
		name     string
		shift    float64
		in, want float64
		unwanted float64
	}{
		{"up", 1000, 2000, 3000, 1000},
		{"down", -500, 2000, 1500, 2500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newShifter(tt.shift, rate)
			out := make([]float64, 9600)
			for i := range out {
				out[i] = s.process(math.Sin(2 * math.Pi * tt.in * float64(i) / rate))
			}
			settled := out[4800:]
			shifted := power(settled, tt.want, rate)
			assert.Greater(t, shifted, 100*power(settled, tt.in, rate), "input tone is removed")
			assert.Greater(t, shifted, 100*power(settled, tt.unwanted, rate), "mirror sideband is suppressed")
		})
	}
}

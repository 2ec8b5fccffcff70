package player

import "math"

// hilbertTaps is the length of the Hilbert FIR; odd so the group delay is
// a whole number of samples.
const hilbertTaps = 127

var hilbertKernel = newHilbertKernel(hilbertTaps)

// newHilbertKernel returns a Blackman-windowed ideal Hilbert transformer.
func newHilbertKernel(n int) []float64 {
	mid := (n - 1) / 2
	taps := make([]float64, n)
	for k := range taps {
		m := k - mid
		if m%2 == 0 {
			continue
		}
		w := 0.42 - 0.5*math.Cos(2*math.Pi*float64(k)/float64(n-1)) +
			0.08*math.Cos(4*math.Pi*float64(k)/float64(n-1))
		taps[k] = w * 2 / (math.Pi * float64(m))
	}
	return taps
}

// shifter moves every frequency component up (or down, for a negative
// shift) by a fixed offset: the analytic signal is multiplied by a complex
// oscillator and the real part is kept.
type shifter struct {
	hist  [2 * hilbertTaps]float64 // delay line stored twice, read contiguously
	pos   int
	phase float64
	step  float64
}

func newShifter(shiftHz, sampleRate float64) *shifter {
	return &shifter{step: 2 * math.Pi * shiftHz / sampleRate}
}

func (s *shifter) process(x float64) float64 {
	s.pos++
	if s.pos == hilbertTaps {
		s.pos = 0
	}
	s.hist[s.pos] = x
	s.hist[s.pos+hilbertTaps] = x

	// window[j] holds x[n-(N-1)+j]; window[N-1] is the newest sample.
	window := s.hist[s.pos+1 : s.pos+1+hilbertTaps]
	var q float64
	for k, h := range hilbertKernel {
		if h != 0 {
			q += h * window[hilbertTaps-1-k]
		}
	}
	i := window[hilbertTaps-1-(hilbertTaps-1)/2]

	sin, cos := math.Sincos(s.phase)
	s.phase += s.step
	if s.phase > math.Pi {
		s.phase -= 2 * math.Pi
	} else if s.phase < -math.Pi {
		s.phase += 2 * math.Pi
	}
	return i*cos - q*sin
}

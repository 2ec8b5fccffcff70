package spectrogram

import (
	"math"
	"strconv"

	"github.com/patrickmn/go-cache"
)

// windows holds one Hann table per FFT size; entries never expire and no
// janitor goroutine runs.
var windows = cache.New(cache.NoExpiration, 0)

// window is a Hann table with its amplitude normalization.
type window struct {
	coeffs []float64
	// scale maps |X|^2 of a full-scale sine to power 1.
	scale float64
}

func hannWindow(n int) *window {
	key := "hann:" + strconv.Itoa(n)
	if w, ok := windows.Get(key); ok {
		return w.(*window)
	}

	w := &window{coeffs: make([]float64, n)}
	var sum float64
	for i := range w.coeffs {
		w.coeffs[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
		sum += w.coeffs[i]
	}
	w.scale = 4 / (sum * sum)
	// Two workers may build the same table; either copy is correct.
	windows.SetDefault(key, w)
	return w
}

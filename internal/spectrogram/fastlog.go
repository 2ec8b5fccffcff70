package spectrogram

import "math"

// dbPerLog2 converts a base-2 logarithm of power to decibels: 10*log10(2).
const dbPerLog2 = 3.0102999566398120

// fastLog2 approximates log2(x) for x > 0 from the IEEE-754 bit pattern:
// the exponent gives the integer part and a quadratic in the mantissa the
// fraction. The quadratic carries a +1 offset that the biased exponent
// absorbs. The absolute error stays below 0.005.
func fastLog2(x float32) float32 {
	bits := math.Float32bits(x)
	exp := float32(int32((bits>>23)&0xff) - 128)
	m := math.Float32frombits(bits&0x007fffff | 0x3f800000) // [1, 2)
	return exp + (-0.34484843*m+2.02466578)*m - 0.67487759
}

// powerToDB converts a power ratio to decibels, clamped to the histogram
// floor for silence.
func powerToDB(power float64, approximate bool) float32 {
	if power <= minPower {
		return MinDB
	}
	if approximate {
		return dbPerLog2 * fastLog2(float32(power))
	}
	return float32(10 * math.Log10(power))
}

// minPower is the power at MinDB.
var minPower = math.Pow(10, MinDB/10)

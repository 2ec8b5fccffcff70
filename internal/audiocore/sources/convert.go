package sources

import (
	"github.com/wavescope/wavescope/internal/audiocore"
)

// converter turns external PCM in any supported layout into int16 frames at
// the stream rate. Partial frames are carried over to the next call.
type converter struct {
	spec       audiocore.Spec
	frameBytes int
	carry      []byte
	floats     []float32
	out        []float32
	ints       []int16
	rs         *resampler
}

func newConverter(spec audiocore.Spec, dstRate int) *converter {
	c := &converter{spec: spec, frameBytes: spec.FrameBytes()}
	if spec.SampleRate != dstRate && spec.SampleRate > 0 {
		c.rs = newResampler(spec.Channels, spec.SampleRate, dstRate)
	}
	return c
}

// Write converts p and pushes the result into dst.
func (c *converter) Write(p []byte, dst *audiocore.SampleBuffer) {
	if len(c.carry) > 0 {
		need := c.frameBytes - len(c.carry)
		if len(p) < need {
			c.carry = append(c.carry, p...)
			return
		}
		c.carry = append(c.carry, p[:need]...)
		c.convert(c.carry, dst)
		c.carry = c.carry[:0]
		p = p[need:]
	}

	whole := len(p) / c.frameBytes * c.frameBytes
	if whole > 0 {
		c.convert(p[:whole], dst)
	}
	c.carry = append(c.carry, p[whole:]...)
}

func (c *converter) convert(p []byte, dst *audiocore.SampleBuffer) {
	n := len(p) / c.spec.Format.Sample.Bytes()
	if cap(c.floats) < n {
		c.floats = make([]float32, n)
	}
	c.floats = c.floats[:n]
	audiocore.DecodeFloat(c.spec.Format, c.floats, p)
	c.WriteFloat(c.floats, dst)
}

// WriteFloat pushes interleaved samples in [-1, 1] at the source rate.
func (c *converter) WriteFloat(samples []float32, dst *audiocore.SampleBuffer) {
	if c.rs != nil {
		c.out = c.rs.process(samples, c.out[:0])
		samples = c.out
	}
	if cap(c.ints) < len(samples) {
		c.ints = make([]int16, len(samples))
	}
	c.ints = c.ints[:len(samples)]
	for i, v := range samples {
		c.ints[i] = audiocore.FloatToInt16(v)
	}
	dst.Push(c.ints)
}

// resampler is a streaming Catmull-Rom interpolator over interleaved frames.
// It keeps four frames of history and emits output between the middle two,
// so it adds two frames of latency.
type resampler struct {
	channels int
	step     float64 // source frames per output frame
	pos      float64 // fractional position between hist[1] and hist[2]
	hist     [4][]float32
}

func newResampler(channels, srcRate, dstRate int) *resampler {
	r := &resampler{
		channels: channels,
		step:     float64(srcRate) / float64(dstRate),
	}
	for i := range r.hist {
		r.hist[i] = make([]float32, channels)
	}
	return r
}

func (r *resampler) process(in, out []float32) []float32 {
	ch := r.channels
	for f := 0; f+ch <= len(in); f += ch {
		r.hist[0], r.hist[1], r.hist[2], r.hist[3] = r.hist[1], r.hist[2], r.hist[3], r.hist[0]
		copy(r.hist[3], in[f:f+ch])

		for r.pos < 1 {
			t := float32(r.pos)
			for c := range ch {
				out = append(out, catmullRom(r.hist[0][c], r.hist[1][c], r.hist[2][c], r.hist[3][c], t))
			}
			r.pos += r.step
		}
		r.pos--
	}
	return out
}

func catmullRom(p0, p1, p2, p3, t float32) float32 {
	a0 := -0.5*p0 + 1.5*p1 - 1.5*p2 + 0.5*p3
	a1 := p0 - 2.5*p1 + 2*p2 - 0.5*p3
	a2 := -0.5*p0 + 0.5*p2
	return ((a0*t+a1)*t+a2)*t + p1
}

package sources

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/wavescope/wavescope/internal/audiocore"
	"github.com/wavescope/wavescope/internal/errors"
)

const (
	genFrequency     = 440.0
	genAmplitude     = 0.5
	sweepLow         = 20.0
	sweepHigh        = 20000.0
	sweepPeriodSecs  = 10.0
	maxGenerateFrame = 1 << 16
)

var waveforms = map[string]func(g *generator) float64{
	"sine": func(g *generator) float64 { return math.Sin(2 * math.Pi * g.phase) },
	"square": func(g *generator) float64 {
		if g.phase < 0.5 {
			return 1
		}
		return -1
	},
	"saw":      func(g *generator) float64 { return 2*g.phase - 1 },
	"triangle": func(g *generator) float64 { return 1 - 4*math.Abs(g.phase-0.5) },
	"noise":    func(g *generator) float64 { return 2*g.rng.Float64() - 1 },
	"sweep":    func(g *generator) float64 { return math.Sin(2 * math.Pi * g.phase) },
	"silence":  func(*generator) float64 { return 0 },
}

// generator synthesizes a test signal at the stream rate. It produces as
// many frames as wall-clock time since Open calls for, so it keeps pace with
// real sources without a goroutine of its own.
type generator struct {
	*audiocore.BaseSource

	wave     func(g *generator) float64
	sweep    bool
	rate     float64
	phase    float64 // cycles, in [0, 1)
	produced int64   // frames due so far
	clock    int64   // frames synthesized
	start    time.Time
	now      func() time.Time
	rng      *rand.Rand
}

func newGenerator(desc audiocore.Descriptor, opts Options) (audiocore.Source, error) {
	wave, ok := waveforms[desc.Target]
	if !ok {
		return nil, errors.Newf("unknown generator type %q", desc.Target).
			Component(componentSources).
			Category(errors.CategoryValidation).
			Context("source", desc.Raw).
			Build()
	}
	desc.Spec.SampleRate = opts.SampleRate
	base, err := audiocore.NewBaseSource(desc, opts.bufferFrames())
	if err != nil {
		return nil, err
	}
	return &generator{
		BaseSource: base,
		wave:       wave,
		sweep:      desc.Target == "sweep",
		rate:       float64(opts.SampleRate),
		now:        time.Now,
		rng:        rand.New(rand.NewPCG(1, 2)),
	}, nil
}

func (g *generator) Open() error {
	g.start = g.now()
	return nil
}

// Resume drops the queued frames and restarts the clock, so the time spent
// disabled is not synthesized in one burst.
func (g *generator) Resume() {
	g.BaseSource.Resume()
	if g.start.IsZero() {
		return
	}
	g.start = g.now()
	g.produced = 0
}

// Poll synthesizes the frames due since the last call.
func (g *generator) Poll() {
	if g.start.IsZero() {
		return
	}
	elapsed := g.now().Sub(g.start)
	rate := int64(g.rate)
	due := int64(elapsed/time.Second)*rate + int64(elapsed%time.Second)*rate/int64(time.Second) - g.produced
	if due <= 0 {
		return
	}
	g.generate(int(min(due, maxGenerateFrame)))
	g.produced += due
}

func (g *generator) generate(frames int) {
	ch := g.Channels()
	dst := g.Buffer.Reserve(frames)
	frames = len(dst) / ch
	for i := range frames {
		v := audiocore.FloatToInt16(float32(genAmplitude * g.wave(g)))
		for c := range ch {
			dst[i*ch+c] = v
		}
		g.advance()
	}
	g.Buffer.Commit(frames)
}

func (g *generator) advance() {
	freq := genFrequency
	if g.sweep {
		t := math.Mod(float64(g.clock)/g.rate, sweepPeriodSecs) / sweepPeriodSecs
		freq = sweepLow * math.Pow(sweepHigh/sweepLow, t)
	}
	g.phase += freq / g.rate
	g.phase -= math.Floor(g.phase)
	g.clock++
}

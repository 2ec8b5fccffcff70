package player

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRate = 8000

// fakeStream retains frames [first, first+len(data)/channels).
type fakeStream struct {
	channels int
	first    uint64
	data     []int16
}

func (f *fakeStream) Channels() int   { return f.channels }
func (f *fakeStream) SampleRate() int { return testRate }

func (f *fakeStream) Frames() (first, total uint64) {
	return f.first, f.first + uint64(len(f.data)/f.channels)
}

func (f *fakeStream) Samples(first uint64, n int) []int16 {
	lo, hi := f.Frames()
	if first < lo || first+uint64(n) > hi {
		return nil
	}
	off := int(first-lo) * f.channels
	return f.data[off : off+n*f.channels]
}

func newMono(frames int, value func(i int) int16) *fakeStream {
	s := &fakeStream{channels: 1, data: make([]int16, frames)}
	for i := range s.data {
		s.data[i] = value(i)
	}
	return s
}

func ramp(i int) int16 { return int16(i) }

func render(e *Engine, frames int) []float32 {
	out := make([]float32, frames*OutputChannels)
	e.Render(out)
	return out
}

func TestPassThrough(t *testing.T) {
	e := NewEngine(newMono(1000, ramp))
	out := render(e, 500)

	for i := range 500 {
		want := float32(i) / 32768
		require.InDelta(t, want, out[2*i], 1e-7, "left %d", i)
		require.InDelta(t, want, out[2*i+1], 1e-7, "right %d", i)
	}
	assert.InDelta(t, 500.0/testRate, e.Position(), 1e-9)
}

func TestPanLaw(t *testing.T) {
	tests := []struct {
		pan         float64
		left, right float64
	}{
		{-1, 1, 0},
		{-0.5, 1, 0.5},
		{0, 1, 1},
		{0.25, 0.75, 1},
		{1, 0, 1},
		{7, 0, 1},
	}
	for _, tt := range tests {
		l, r := ChannelConfig{Enabled: true, Pan: tt.pan}.weights()
		assert.InDelta(t, tt.left, l, 1e-12, "pan %v left", tt.pan)
		assert.InDelta(t, tt.right, r, 1e-12, "pan %v right", tt.pan)
	}

	l, r := ChannelConfig{Enabled: false}.weights()
	assert.Zero(t, l)
	assert.Zero(t, r)
}

func TestMixLevelsAndMasterGain(t *testing.T) {
	src := &fakeStream{channels: 2, data: make([]int16, 200)}
	for i := 0; i < len(src.data); i += 2 {
		src.data[i] = 16384  // 0.5
		src.data[i+1] = 8192 // 0.25
	}
	e := NewEngine(src)
	e.SetChannel(0, ChannelConfig{Enabled: true, Level: -6.020599913279624, Pan: -1})
	e.SetChannel(1, ChannelConfig{Enabled: true, Pan: 1})

	out := render(e, 10)
	assert.InDelta(t, 0.25, out[0], 1e-6, "channel 0 at half amplitude, left only")
	assert.InDelta(t, 0.25, out[1], 1e-6, "channel 1 right only")

	e.SetChannel(1, ChannelConfig{Enabled: false})
	c := e.Config()
	c.MasterGain = 6.020599913279624
	e.SetConfig(c)
	out = render(e, 10)
	assert.InDelta(t, 0.5, out[0], 1e-6)
	assert.InDelta(t, 0, out[1], 1e-6)
}

func TestSilenceOutsideRetainedRange(t *testing.T) {
	src := newMono(1000, func(int) int16 { return 10000 })
	src.first = 5000

	e := NewEngine(src)
	out := render(e, 100)
	for _, v := range out {
		require.Zero(t, v, "frames before the retained range are silent")
	}

	e.Seek(5999.0 / testRate)
	out = render(e, 400)
	settled := out[2*300:]
	for _, v := range settled {
		require.Zero(t, v, "frames beyond the newest frame are silent")
	}
}

func TestSeekCrossfadeIsContinuous(t *testing.T) {
	src := newMono(8000, func(i int) int16 {
		if i < 4000 {
			return 16384
		}
		return -16384
	})
	e := NewEngine(src)
	_ = render(e, 100)

	e.Seek(6000.0 / testRate)
	fade := int(CrossfadeWindow.Seconds() * testRate)
	out := render(e, fade+20)

	assert.InDelta(t, 0.5, out[0], 1e-6, "crossfade starts on the old pointer")
	maxStep := 0.0
	for i := 1; i < fade+20; i++ {
		maxStep = max(maxStep, math.Abs(float64(out[2*i]-out[2*(i-1)])))
	}
	assert.LessOrEqual(t, maxStep, 1.0/float64(fade)+1e-6, "no step larger than one crossfade increment")
	assert.InDelta(t, -0.5, out[2*(fade+10)], 1e-6, "crossfade ends on the seek target")
	assert.InDelta(t, float64(6000+fade+20)/testRate, e.Position(), 1e-9)
}

func TestSmallDriftDoesNotCrossfade(t *testing.T) {
	e := NewEngine(newMono(4000, ramp))
	_ = render(e, 100)

	// 10 ms is below the jump threshold: playback continues from the read pointer.
	e.Seek(110.0 / testRate)
	out := render(e, 10)
	assert.InDelta(t, 100.0/32768, out[0], 1e-7)
}

func TestStretchAdvancesVirtualPosition(t *testing.T) {
	e := NewEngine(newMono(8000, ramp))
	e.SetConfig(Config{Pitch: 1, Stretch: 2})

	for range 4 {
		_ = render(e, 200)
	}
	assert.InDelta(t, 1600.0/testRate, e.Position(), 1e-9)
}

func TestPitchStretchIdempotence(t *testing.T) {
	e := NewEngine(newMono(20000, ramp))
	e.SetConfig(Config{Pitch: 1.5, Stretch: 0.7, Shift: 300, HighPass: 50})
	for range 5 {
		_ = render(e, 100)
	}

	e.SetConfig(DefaultConfig())
	for range 10 {
		_ = render(e, 100)
	}

	out := render(e, 200)
	for i := 1; i < 200; i++ {
		require.InDelta(t, 1.0/32768, out[2*i]-out[2*(i-1)], 1e-6, "frame %d", i)
	}
}

func TestSetConfigClamps(t *testing.T) {
	e := NewEngine(newMono(10, ramp))

	e.SetConfig(Config{Pitch: 1000, Stretch: 0.0001, HighPass: -5})
	c := e.Config()
	assert.InDelta(t, MaxFactor, c.Pitch, 0)
	assert.InDelta(t, MinFactor, c.Stretch, 0)
	assert.Zero(t, c.HighPass)

	e.SetConfig(Config{Pitch: math.NaN(), Stretch: 1})
	assert.InDelta(t, 1, e.Config().Pitch, 0)
}

func TestSetChannelGrowsLazily(t *testing.T) {
	e := NewEngine(&fakeStream{channels: 4, data: make([]int16, 40)})

	e.SetChannel(3, ChannelConfig{Enabled: false, Level: -3})
	assert.Equal(t, DefaultChannelConfig(), e.Channel(1))
	assert.Equal(t, ChannelConfig{Enabled: false, Level: -3}, e.Channel(3))
	assert.Equal(t, DefaultChannelConfig(), e.Channel(9))

	e.SetChannel(-1, ChannelConfig{})
	assert.Len(t, *e.channels.Load(), 4)
}

func TestHighPassRemovesDC(t *testing.T) {
	e := NewEngine(newMono(8000, func(int) int16 { return 16384 }))
	e.SetConfig(Config{Pitch: 1, Stretch: 1, HighPass: 200})

	out := render(e, 4000)
	assert.InDelta(t, 0, out[2*3999], 1e-3)
}

func TestPositionEvents(t *testing.T) {
	var index, produced uint64
	calls := 0
	e := NewEngine(newMono(1000, ramp), WithPositionFunc(func(i, p uint64) {
		index, produced = i, p
		calls++
	}))

	_ = render(e, 64)
	require.Equal(t, 1, calls, "the first callback always reports")
	assert.Equal(t, uint64(64), index)
	assert.Equal(t, uint64(64), produced)

	_ = render(e, 64)
	assert.Equal(t, 1, calls, "reports are rate limited")
}

func TestLoadSave(t *testing.T) {
	src := &fakeStream{channels: 2, data: make([]int16, 20)}
	e := NewEngine(src)
	e.SetConfig(Config{MasterGain: -3, Shift: 120, Pitch: 0.5, Stretch: 2, HighPass: 80, LowPass: 3000})
	e.SetChannel(1, ChannelConfig{Enabled: false, Level: -12, Pan: 0.25})

	v := viper.New()
	e.Save(v)
	assert.InDelta(t, 0.25, v.GetFloat64("player.channel.1.pan"), 0)

	restored := NewEngine(src)
	restored.Load(v)
	assert.Equal(t, e.Config(), restored.Config())
	assert.Equal(t, e.Channel(0), restored.Channel(0))
	assert.Equal(t, e.Channel(1), restored.Channel(1))
}

func TestNewOutput(t *testing.T) {
	e := NewEngine(newMono(10, ramp))

	out, err := NewOutput(OutputConfig{Backend: BackendNone}, e)
	require.NoError(t, err)
	assert.Equal(t, BackendNone, out.Name())
	assert.NoError(t, out.Close())

	_, err = NewOutput(OutputConfig{Backend: "pipewire"}, e)
	assert.Error(t, err)
}

func TestFrameEncoderRendersInChunks(t *testing.T) {
	enc := newFrameEncoder(NewEngine(newMono(4000, ramp)), binary.LittleEndian, 10)
	scratch := &enc.scratch[0]
	chunk := len(enc.scratch) / OutputChannels

	frames := 3*chunk + 7
	dst := make([]byte, frames*OutputChannels*4)
	require.Equal(t, len(dst), enc.fill(dst))
	assert.Same(t, scratch, &enc.scratch[0], "fill does not reallocate")

	for _, i := range []int{0, chunk - 1, chunk, 2*chunk + 1, frames - 1} {
		left := math.Float32frombits(binary.LittleEndian.Uint32(dst[i*OutputChannels*4:]))
		assert.InDelta(t, float32(i)/32768, left, 1e-7, "frame %d", i)
	}
}

func TestSeekClearsFilterState(t *testing.T) {
	e := NewEngine(newMono(4000, func(int) int16 { return 16384 }))
	cfg := e.Config()
	cfg.LowPass = 1000
	e.SetConfig(cfg)

	out := render(e, 2000)
	require.InDelta(t, 0.5, out[2*1999], 0.01, "settled on the DC level")

	e.Seek(0)
	out = render(e, 1)
	assert.Less(t, out[0], float32(0.1), "the filter restarts from rest")
}

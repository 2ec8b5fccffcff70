package player

import (
	"encoding/binary"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/gen2brain/malgo"

	"github.com/wavescope/wavescope/internal/errors"
	"github.com/wavescope/wavescope/internal/logger"
)

const componentPlayer = "player"

// Output backend names.
const (
	BackendMalgo = "malgo"
	BackendOto   = "oto"
	BackendNone  = "none"
)

// DefaultBufferDuration is the device buffer requested when none is configured.
const DefaultBufferDuration = 20 * time.Millisecond

// Output drives an Engine from an audio device.
type Output interface {
	Name() string
	Close() error
}

// OutputConfig selects and sizes the output device.
type OutputConfig struct {
	Backend string
	Buffer  time.Duration
}

// NewOutput opens the configured backend and starts pulling from e.
func NewOutput(cfg OutputConfig, e *Engine) (Output, error) {
	if cfg.Buffer <= 0 {
		cfg.Buffer = DefaultBufferDuration
	}
	switch strings.ToLower(cfg.Backend) {
	case "", BackendMalgo:
		return openMalgo(cfg, e)
	case BackendOto:
		return openOto(cfg, e)
	case BackendNone:
		return Disabled(), nil
	default:
		return nil, errors.Newf("unknown output backend %q", cfg.Backend).
			Component(componentPlayer).
			Category(errors.CategoryConfiguration).
			Build()
	}
}

// OpenOrDisable opens the output and falls back to no playback when the
// device cannot be opened.
func OpenOrDisable(cfg OutputConfig, e *Engine) Output {
	out, err := NewOutput(cfg, e)
	if err != nil {
		GetLogger().Error("playback disabled", logger.String("backend", cfg.Backend), logger.Error(err))
		return Disabled()
	}
	return out
}

type noOutput struct{}

// Disabled returns an output that never calls the engine.
func Disabled() Output { return noOutput{} }

func (noOutput) Name() string { return BackendNone }
func (noOutput) Close() error { return nil }

// minEncoderFrames bounds the render chunk from below for tiny periods.
const minEncoderFrames = 256

// frameEncoder renders engine frames into a byte buffer in float32 layout.
// It runs on the audio thread and never allocates: a request larger than
// its scratch is rendered in scratch-sized chunks.
type frameEncoder struct {
	engine  *Engine
	order   binary.ByteOrder
	scratch []float32
}

// newFrameEncoder sizes the scratch for two periods of frames.
func newFrameEncoder(e *Engine, order binary.ByteOrder, periodFrames int) *frameEncoder {
	frames := max(2*periodFrames, minEncoderFrames)
	return &frameEncoder{engine: e, order: order, scratch: make([]float32, frames*OutputChannels)}
}

func periodFrames(d time.Duration, rate int) int {
	return int(d.Seconds()*float64(rate)) + 1
}

func (fe *frameEncoder) fill(dst []byte) int {
	frames := len(dst) / (4 * OutputChannels)
	chunk := len(fe.scratch) / OutputChannels
	written := 0
	for frames > 0 {
		n := min(frames, chunk)
		buf := fe.scratch[:n*OutputChannels]
		fe.engine.Render(buf)
		for i, v := range buf {
			fe.order.PutUint32(dst[written+i*4:], math.Float32bits(v))
		}
		written += len(buf) * 4
		frames -= n
	}
	return written
}

type malgoOutput struct {
	mu     sync.Mutex
	ctx    *malgo.AllocatedContext
	device *malgo.Device
}

func openMalgo(cfg OutputConfig, e *Engine) (*malgoOutput, error) {
	fail := func(err error, op string) error {
		return errors.New(err).
			Component(componentPlayer).
			Category(errors.CategoryAudioDevice).
			Context("backend", BackendMalgo).
			Context("operation", op).
			Build()
	}

	log := GetLogger()
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		log.Debug("malgo", logger.String("message", message))
	})
	if err != nil {
		return nil, fail(err, "init_context")
	}

	dc := malgo.DefaultDeviceConfig(malgo.Playback)
	dc.Playback.Format = malgo.FormatF32
	dc.Playback.Channels = OutputChannels
	dc.SampleRate = uint32(e.SampleRate())
	dc.PeriodSizeInMilliseconds = uint32(cfg.Buffer.Milliseconds())
	dc.Alsa.NoMMap = 1

	enc := newFrameEncoder(e, binary.NativeEndian, periodFrames(cfg.Buffer, e.SampleRate()))
	device, err := malgo.InitDevice(mctx.Context, dc, malgo.DeviceCallbacks{
		Data: func(out, _ []byte, _ uint32) { enc.fill(out) },
	})
	if err != nil {
		_ = mctx.Uninit()
		mctx.Free()
		return nil, fail(err, "init_device")
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		_ = mctx.Uninit()
		mctx.Free()
		return nil, fail(err, "start_device")
	}

	log.Info("playback started",
		logger.String("backend", BackendMalgo),
		logger.Int("sample_rate", int(device.SampleRate())),
		logger.Duration("buffer", cfg.Buffer))
	return &malgoOutput{ctx: mctx, device: device}, nil
}

func (o *malgoOutput) Name() string { return BackendMalgo }

func (o *malgoOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.device != nil {
		_ = o.device.Stop()
		o.device.Uninit()
		o.device = nil
	}
	var err error
	if o.ctx != nil {
		err = o.ctx.Uninit()
		o.ctx.Free()
		o.ctx = nil
	}
	return err
}

// otoReader adapts the engine to the pull-based io.Reader oto consumes.
type otoReader struct{ enc *frameEncoder }

func (r otoReader) Read(p []byte) (int, error) {
	return r.enc.fill(p), nil
}

type otoOutput struct {
	player *oto.Player
}

func openOto(cfg OutputConfig, e *Engine) (*otoOutput, error) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   e.SampleRate(),
		ChannelCount: OutputChannels,
		Format:       oto.FormatFloat32LE,
		BufferSize:   cfg.Buffer,
	})
	if err != nil {
		return nil, errors.New(err).
			Component(componentPlayer).
			Category(errors.CategoryAudioDevice).
			Context("backend", BackendOto).
			Build()
	}
	<-ready

	p := ctx.NewPlayer(otoReader{enc: newFrameEncoder(e, binary.LittleEndian, periodFrames(cfg.Buffer, e.SampleRate()))})
	p.Play()
	GetLogger().Info("playback started",
		logger.String("backend", BackendOto),
		logger.Int("sample_rate", e.SampleRate()),
		logger.Duration("buffer", cfg.Buffer))
	return &otoOutput{player: p}, nil
}

func (o *otoOutput) Name() string { return BackendOto }

// Close stops the player. oto keeps its context for the process lifetime.
func (o *otoOutput) Close() error {
	return o.player.Close()
}

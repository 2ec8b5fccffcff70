package sources

import (
	"runtime"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/wavescope/wavescope/internal/audiocore"
	"github.com/wavescope/wavescope/internal/errors"
	"github.com/wavescope/wavescope/internal/logger"
)

// deviceSource captures from a sound card through miniaudio. The device
// callback only queues bytes; conversion happens in Poll on the merger
// goroutine.
type deviceSource struct {
	*queueSource

	backends []malgo.Backend
	format   malgo.FormatType

	mu     sync.Mutex
	ctx    *malgo.AllocatedContext
	device *malgo.Device
	paused bool
}

func newCaptureDevice(desc audiocore.Descriptor, opts Options) (audiocore.Source, error) {
	return newDeviceSource(desc, opts, []malgo.Backend{platformBackend()})
}

func newJackDevice(desc audiocore.Descriptor, opts Options) (audiocore.Source, error) {
	return newDeviceSource(desc, opts, []malgo.Backend{malgo.BackendJack})
}

func newDeviceSource(desc audiocore.Descriptor, opts Options, backends []malgo.Backend) (*deviceSource, error) {
	// miniaudio has no 8-bit signed or 64-bit float capture formats.
	format, sample := malgoFormat(desc.Spec.Format.Sample)
	desc.Spec.Format = audiocore.Format{Sample: sample}

	q, err := newQueueSource(desc, opts)
	if err != nil {
		return nil, err
	}
	return &deviceSource{queueSource: q, backends: backends, format: format}, nil
}

// platformBackend returns the preferred capture backend for this OS.
func platformBackend() malgo.Backend {
	switch runtime.GOOS {
	case "linux":
		return malgo.BackendAlsa
	case "windows":
		return malgo.BackendWasapi
	case "darwin":
		return malgo.BackendCoreaudio
	default:
		return malgo.BackendNull
	}
}

func malgoFormat(f audiocore.SampleFormat) (malgo.FormatType, audiocore.SampleFormat) {
	switch f {
	case audiocore.FormatU8:
		return malgo.FormatU8, audiocore.FormatU8
	case audiocore.FormatS32:
		return malgo.FormatS32, audiocore.FormatS32
	case audiocore.FormatF32, audiocore.FormatF64:
		return malgo.FormatF32, audiocore.FormatF32
	default:
		return malgo.FormatS16, audiocore.FormatS16
	}
}

// Open initializes and starts the capture device.
func (s *deviceSource) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fail := func(err error, op string) error {
		err = errors.New(err).
			Component(componentSources).
			Category(errors.CategoryAudioDevice).
			Context("source", s.Desc.Raw).
			Context("operation", op).
			Build()
		s.Fail(err)
		return err
	}

	log := GetLogger().With(logger.String("source", s.Desc.Raw))
	mctx, err := malgo.InitContext(s.backends, malgo.ContextConfig{}, func(message string) {
		log.Debug("malgo", logger.String("message", message))
	})
	if err != nil {
		return fail(err, "init_context")
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = s.format
	cfg.Capture.Channels = uint32(s.Desc.Spec.Channels)
	cfg.SampleRate = uint32(s.Desc.Spec.SampleRate)
	cfg.Alsa.NoMMap = 1

	s.setInput(s.Desc.Spec)

	device, err := malgo.InitDevice(mctx.Context, cfg, malgo.DeviceCallbacks{
		Data: s.onData,
		Stop: func() { log.Warn("capture device stopped") },
	})
	if err != nil {
		_ = mctx.Uninit()
		mctx.Free()
		return fail(err, "init_device")
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		_ = mctx.Uninit()
		mctx.Free()
		return fail(err, "start_device")
	}

	s.ctx = mctx
	s.device = device
	log.Info("capture device started",
		logger.Int("channels", s.Desc.Spec.Channels),
		logger.Int("sample_rate", int(device.SampleRate())))
	return nil
}

// onData runs on the audio thread and must not block.
func (s *deviceSource) onData(_, input []byte, _ uint32) {
	if n := s.offerFrames(input); n < len(input) {
		s.dropped.Add(uint64(len(input) - n))
	}
}

// Pause stops the device without releasing it.
func (s *deviceSource) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.device == nil || s.paused {
		return
	}
	if err := s.device.Stop(); err != nil {
		GetLogger().Warn("pause failed", logger.String("source", s.Desc.Raw), logger.Error(err))
		return
	}
	s.paused = true
}

// Resume restarts a paused device and drops the input queued before the
// pause.
func (s *deviceSource) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queueSource.Resume()
	if s.device == nil || !s.paused {
		return
	}
	if err := s.device.Start(); err != nil {
		s.Fail(errors.New(err).
			Component(componentSources).
			Category(errors.CategoryAudioDevice).
			Context("source", s.Desc.Raw).
			Context("operation", "resume").
			Build())
		return
	}
	s.paused = false
}

// Close stops the device and releases the miniaudio context.
func (s *deviceSource) Close() error {
	s.mu.Lock()
	if s.device != nil {
		_ = s.device.Stop()
		s.device.Uninit()
		s.device = nil
	}
	var err error
	if s.ctx != nil {
		err = s.ctx.Uninit()
		s.ctx.Free()
		s.ctx = nil
	}
	s.mu.Unlock()

	if dropped := s.dropped.Load(); dropped > 0 {
		GetLogger().Debug("capture bytes dropped",
			logger.String("source", s.Desc.Raw),
			logger.Uint64("bytes", dropped))
	}
	return errors.Join(err, s.BaseSource.Close())
}

// DeviceInfo describes an audio device visible to miniaudio.
type DeviceInfo struct {
	Index     int
	Name      string
	ID        string
	IsDefault bool
	Capture   bool
}

// ListDevices enumerates capture and playback devices on the default backend.
func ListDevices() ([]DeviceInfo, error) {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, errors.New(err).
			Component(componentSources).
			Category(errors.CategoryAudioDevice).
			Context("operation", "init_context").
			Build()
	}
	defer func() {
		_ = mctx.Uninit()
		mctx.Free()
	}()

	var out []DeviceInfo
	for _, kind := range []malgo.DeviceType{malgo.Capture, malgo.Playback} {
		infos, err := mctx.Devices(kind)
		if err != nil {
			return nil, errors.New(err).
				Component(componentSources).
				Category(errors.CategoryAudioDevice).
				Context("operation", "enumerate").
				Build()
		}
		for i := range infos {
			out = append(out, DeviceInfo{
				Index:     i,
				Name:      infos[i].Name(),
				ID:        infos[i].ID.String(),
				IsDefault: infos[i].IsDefault != 0,
				Capture:   kind == malgo.Capture,
			})
		}
	}
	return out, nil
}

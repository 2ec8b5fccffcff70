// Package app assembles the capture, playback and analysis pipeline and runs
// the UI loop that consumes its events.
package app

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/wavescope/wavescope/internal/audiocore"
	"github.com/wavescope/wavescope/internal/audiocore/sources"
	"github.com/wavescope/wavescope/internal/buildinfo"
	"github.com/wavescope/wavescope/internal/capture"
	"github.com/wavescope/wavescope/internal/conf"
	"github.com/wavescope/wavescope/internal/errors"
	"github.com/wavescope/wavescope/internal/events"
	"github.com/wavescope/wavescope/internal/logger"
	"github.com/wavescope/wavescope/internal/observability"
	"github.com/wavescope/wavescope/internal/player"
	"github.com/wavescope/wavescope/internal/spectrogram"
)

const componentApp = "app"

// sentryFlushTimeout bounds how long shutdown waits for queued reports.
const sentryFlushTimeout = 2 * time.Second

// App owns every pipeline component. New builds them; Run starts them,
// drives the UI loop until the context is cancelled and shuts them down.
type App struct {
	settings *conf.Settings
	info     *buildinfo.Context
	log      logger.Logger

	metrics *observability.Metrics
	sources []audiocore.Source
	stream  *audiocore.Stream
	bus     *events.Bus
	merger  *capture.Merger
	engine  *player.Engine
	pool    *spectrogram.Pool
	spectro *spectrogram.Spectrogram
	output  player.Output

	quit      chan struct{}
	wg        sync.WaitGroup
	telemetry bool
	closeOnce sync.Once

	captured  atomic.Uint64
	playIndex atomic.Uint64
	renders   atomic.Uint64
	lastStats atomic.Pointer[spectrogram.Stats]
}

// Status is a point-in-time view of the UI loop.
type Status struct {
	Captured  uint64  // frames captured, from the last capture event
	PlayIndex uint64  // playback read index, from the last position event
	Position  float64 // playback position in seconds
	Renders   uint64
	Capturing bool
	Events    events.Stats
}

// New builds the pipeline from settings. Every error is a fatal setup error;
// whatever was built before the failure is released.
func New(settings *conf.Settings, info *buildinfo.Context) (*App, error) {
	a := &App{
		settings: settings,
		info:     info,
		log:      GetLogger().With(logger.String("session", uuid.NewString())),
		quit:     make(chan struct{}),
	}
	if err := a.build(); err != nil {
		a.release()
		return nil, err
	}
	return a, nil
}

func (a *App) build() error {
	settings, info := a.settings, a.info
	if settings.Telemetry.Enabled && settings.Telemetry.DSN != "" {
		if err := errors.InitSentry(settings.Telemetry.DSN, info.Version()); err != nil {
			a.log.Warn("telemetry disabled", logger.Error(err))
		} else {
			a.telemetry = true
		}
	}

	var err error
	if a.metrics, err = observability.NewMetrics(); err != nil {
		return err
	}

	if a.sources, err = sources.Build(settings.Sources, sources.Options{SampleRate: settings.SampleRate}); err != nil {
		return err
	}

	a.stream, err = audiocore.NewStream(audiocore.StreamConfig{
		Channels:      capture.TotalChannels(a.sources),
		SampleRate:    settings.SampleRate,
		BufferSeconds: settings.Capture.BufferSeconds,
		SummaryStep:   settings.Capture.SummaryStep,
		Mapped:        settings.Capture.Mapped,
	})
	if err != nil {
		return err
	}

	a.bus = events.NewBus(events.DefaultBufferSize, events.WithMetrics(a.metrics.Events))

	a.merger, err = capture.NewMerger(a.stream, a.sources,
		capture.WithIdleSleep(settings.Capture.IdleSleep),
		capture.WithProgress(a.bus.PublishCapture),
		capture.WithMetrics(a.metrics.Capture))
	if err != nil {
		return err
	}

	a.engine = player.NewEngine(a.stream,
		player.WithPositionFunc(a.bus.PublishPosition),
		player.WithMetrics(a.metrics.Player))
	a.engine.Load(settings.Node())

	sp := settings.Spectrogram
	a.pool = spectrogram.NewPool(sp.Workers)
	a.spectro, err = spectrogram.New(a.pool, a.stream.Channels(), spectrogram.Params{
		FFTSize:      sp.FFTSize,
		Hop:          sp.Hop,
		Width:        sp.Width,
		Height:       sp.Height,
		Approximate:  sp.Approximate,
		AutoGain:     sp.AutoGain,
		ApertureFrom: sp.ApertureFrom,
		ApertureTo:   sp.ApertureTo,
	}, spectrogram.WithMetrics(a.metrics.Spectrogram))
	if err != nil {
		return err
	}

	a.log.Info("pipeline ready",
		logger.String("version", info.Version()),
		logger.String("system_id", info.SystemID()),
		logger.Int("sources", len(a.sources)),
		logger.Int("channels", a.stream.Channels()),
		logger.Int("sample_rate", a.stream.SampleRate()),
		logger.Int("workers", a.pool.Workers()))
	return nil
}

// Engine returns the playback engine for configuration changes.
func (a *App) Engine() *player.Engine { return a.engine }

// SetCapture pauses or resumes capture. Playback and analysis keep running
// over the history already recorded.
func (a *App) SetCapture(on bool) {
	a.merger.SetEnabled(on)
	a.log.Info("capture toggled", logger.Bool("enabled", on))
}

// Stream returns the captured stream.
func (a *App) Stream() *audiocore.Stream { return a.stream }

// Run opens the sources and the output device, starts capture and the
// metrics endpoint, and runs the UI loop until ctx is done. Components are
// shut down before Run returns; an App runs once.
func (a *App) Run(ctx context.Context) error {
	a.merger.Open()
	a.merger.Start()

	a.output = player.OpenOrDisable(player.OutputConfig{
		Backend: a.settings.Output.Backend,
		Buffer:  time.Duration(a.settings.Output.BufferMs) * time.Millisecond,
	}, a.engine)

	if a.settings.Metrics.Enabled {
		observability.NewEndpoint(a.settings.Metrics.Listen, a.metrics).Start(&a.wg, a.quit)
	}

	a.log.Info("running", logger.String("output", a.output.Name()))
	err := a.loop(ctx)
	a.Close()
	return err
}

// loop is the UI goroutine: it consumes events, renders the spectrogram and
// writes snapshots until ctx is done.
func (a *App) loop(ctx context.Context) error {
	render := time.NewTicker(a.settings.Spectrogram.Interval)
	defer render.Stop()

	var snapshots <-chan time.Time
	if a.settings.UI.SnapshotPath != "" && a.settings.UI.SnapshotInterval > 0 {
		t := time.NewTicker(a.settings.UI.SnapshotInterval)
		defer t.Stop()
		snapshots = t.C
	}

	evs := a.bus.Events()
	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-evs:
			if !ok {
				return nil
			}
			a.handle(e)
		case <-render.C:
			a.render()
		case <-snapshots:
			if err := a.WriteSnapshot(a.settings.UI.SnapshotPath); err != nil {
				if !errors.IsRecoverable(err) {
					return err
				}
				a.log.Warn("snapshot failed", logger.Error(err))
			}
		}
	}
}

func (a *App) handle(e events.Event) {
	switch e.Type {
	case events.CaptureProgress:
		a.captured.Store(e.Frame)
	case events.PlaybackPosition:
		a.playIndex.Store(e.Frame)
	}
}

// render recomputes the layers of the channels enabled for playback.
func (a *App) render() spectrogram.Stats {
	enabled := make([]bool, a.stream.Channels())
	for i := range enabled {
		enabled[i] = a.engine.Channel(i).Enabled
	}
	stats := a.spectro.Render(a.stream, enabled)
	a.lastStats.Store(&stats)
	if a.renders.Add(1)%100 == 1 {
		a.log.Debug("spectrogram rendered",
			logger.Int("jobs", stats.Jobs),
			logger.Float64("from_db", stats.From),
			logger.Float64("to_db", stats.To),
			logger.Duration("elapsed", stats.Duration))
	}
	return stats
}

// Status returns the counters of the UI loop.
func (a *App) Status() Status {
	return Status{
		Captured:  a.captured.Load(),
		PlayIndex: a.playIndex.Load(),
		Position:  a.engine.Position(),
		Renders:   a.renders.Load(),
		Capturing: a.merger.Enabled(),
		Events:    a.bus.Stats(),
	}
}

// SaveConfig stores the playback state into the settings and writes them to
// path, or to the file they were loaded from when path is empty.
func (a *App) SaveConfig(path string) error {
	if path == "" {
		path = a.settings.ConfigFile()
	}
	if path == "" {
		path = conf.ConfigName + ".yaml"
	}
	a.engine.Save(a.settings.Writer())
	if err := a.settings.Refresh(); err != nil {
		return err
	}
	return conf.SaveYAMLConfig(path, a.settings)
}

// Close stops every component in dependency order: the output callback
// first, then capture and its sources, the workers, the event bus and the
// metrics endpoint. It is safe to call more than once.
func (a *App) Close() {
	a.closeOnce.Do(func() {
		if a.output != nil {
			if err := a.output.Close(); err != nil {
				a.log.Warn("closing output", logger.Error(err))
			}
		}
		if a.merger != nil {
			a.merger.Stop()
		}
		a.release()
		a.log.Info("stopped", logger.Uint64("captured", a.captured.Load()))
	})
}

// release frees whatever New built. Capture and playback must be stopped.
func (a *App) release() {
	for _, s := range a.sources {
		if err := s.Close(); err != nil {
			a.log.Warn("closing source", logger.String("source", s.Name()), logger.Error(err))
		}
	}
	if a.pool != nil {
		a.pool.Stop()
	}
	if a.bus != nil {
		a.bus.Close()
	}
	close(a.quit)
	a.wg.Wait()
	if a.stream != nil {
		if err := a.stream.Close(); err != nil {
			a.log.Warn("releasing stream", logger.Error(err))
		}
	}
	if a.telemetry {
		errors.FlushSentry(sentryFlushTimeout)
	}
}

// Package run implements the run command, which starts the pipeline.
package run

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wavescope/wavescope/internal/app"
	"github.com/wavescope/wavescope/internal/buildinfo"
	"github.com/wavescope/wavescope/internal/conf"
)

// LoadFunc loads the settings with command-line overrides applied.
type LoadFunc func(overrides map[string]any) (*conf.Settings, error)

type flags struct {
	sources    []string
	sampleRate int
	output     string
	pitch      float64
	stretch    float64
	snapshot   string
	metrics    bool
	duration   time.Duration
	save       string
}

// Command creates the run command.
func Command(load LoadFunc, info *buildinfo.Context) *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Capture, play back and analyze audio",
		Long: `Capture audio from one or more sources, merge them into one multi-channel
stream and play it back while rendering the spectrogram.

Sources are descriptors such as gen:sine, file:take.flac, raw:dump.pcm:s16:2:48000,
audio:s16:2, jack:2, tcp:host:4000:s16:1, ws:ws://host/stream#f32:2 or stdin:s16:1.`,
		Example: "  wavescope run --source gen:sine --source gen:noise --pitch 0.5",
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := load(overrides(cmd, &f))
			if err != nil {
				return err
			}
			return execute(cmd.Context(), settings, info, &f)
		},
	}

	fs := cmd.Flags()
	fs.StringSliceVarP(&f.sources, "source", "s", nil, "Source descriptor, repeatable")
	fs.IntVar(&f.sampleRate, "samplerate", conf.DefaultSampleRate, "Stream sample rate in Hz")
	fs.StringVarP(&f.output, "output", "o", "malgo", "Playback backend: malgo, oto or none")
	fs.Float64Var(&f.pitch, "pitch", 1, "Playback pitch factor")
	fs.Float64Var(&f.stretch, "stretch", 1, "Playback time-stretch factor")
	fs.StringVar(&f.snapshot, "snapshot", "", "Write a PNG snapshot to this path periodically")
	fs.BoolVar(&f.metrics, "metrics", false, "Serve Prometheus metrics")
	fs.DurationVar(&f.duration, "duration", 0, "Stop after this long (0 runs until interrupted)")
	fs.StringVar(&f.save, "save", "", "Save the playback settings to this file on exit")
	return cmd
}

// overrides returns the settings keys for the flags given on the command line.
func overrides(cmd *cobra.Command, f *flags) map[string]any {
	out := map[string]any{}
	set := func(flag, key string, value any) {
		if cmd.Flags().Changed(flag) {
			out[key] = value
		}
	}
	set("source", "sources", f.sources)
	set("samplerate", "samplerate", f.sampleRate)
	set("output", "output.backend", f.output)
	set("pitch", "player.pitch", f.pitch)
	set("stretch", "player.stretch", f.stretch)
	set("snapshot", "ui.snapshot_path", f.snapshot)
	set("metrics", "metrics.enabled", f.metrics)
	return out
}

func execute(parent context.Context, settings *conf.Settings, info *buildinfo.Context, f *flags) error {
	a, err := app.New(settings, info)
	if err != nil {
		return err
	}

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if f.duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.duration)
		defer cancel()
	}

	if err := a.Run(ctx); err != nil {
		return err
	}
	if f.save != "" {
		return a.SaveConfig(f.save)
	}
	return nil
}

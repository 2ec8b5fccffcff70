// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Default values shared with the CLI.
const (
	DefaultSampleRate = 48000
	DefaultSource     = "gen:sine"
	DefaultListen     = "localhost:9090"
)

// setDefaultConfig registers every key with its default so environment
// overrides and Unmarshal see the full tree.
func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("samplerate", DefaultSampleRate)
	v.SetDefault("sources", []string{DefaultSource})

	v.SetDefault("capture.buffer_seconds", 60.0)
	v.SetDefault("capture.summary_step", 256)
	v.SetDefault("capture.idle_sleep", 2*time.Millisecond)
	v.SetDefault("capture.mapped", true)

	v.SetDefault("player.master_gain", 0.0)
	v.SetDefault("player.shift", 0.0)
	v.SetDefault("player.pitch", 1.0)
	v.SetDefault("player.stretch", 1.0)
	v.SetDefault("player.filter_hp", 0.0)
	v.SetDefault("player.filter_lp", 0.0)

	v.SetDefault("output.backend", "malgo")
	v.SetDefault("output.buffer_ms", 20)

	v.SetDefault("spectrogram.fft_size", 2048)
	v.SetDefault("spectrogram.hop", 512)
	v.SetDefault("spectrogram.width", 1024)
	v.SetDefault("spectrogram.height", 512)
	v.SetDefault("spectrogram.workers", 0)
	v.SetDefault("spectrogram.approximate", true)
	v.SetDefault("spectrogram.autogain", true)
	v.SetDefault("spectrogram.aperture_from", -120.0)
	v.SetDefault("spectrogram.aperture_to", 0.0)
	v.SetDefault("spectrogram.interval", 100*time.Millisecond)

	v.SetDefault("ui.snapshot_path", "")
	v.SetDefault("ui.snapshot_interval", 5*time.Second)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen", DefaultListen)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.dsn", "")

	v.SetDefault("logging.default_level", "info")
	v.SetDefault("logging.timezone", "Local")
	v.SetDefault("logging.console.enabled", true)
	v.SetDefault("logging.console.level", "info")
	v.SetDefault("logging.file_output.enabled", false)
	v.SetDefault("logging.file_output.path", "logs/wavescope.log")
	v.SetDefault("logging.file_output.level", "debug")
}

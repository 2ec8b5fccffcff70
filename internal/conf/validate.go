// conf/validate.go

package conf

import (
	"fmt"
	"math/bits"
	"strings"

	"github.com/wavescope/wavescope/internal/errors"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return "validation errors: " + strings.Join(ve.Errors, "; ")
}

// ValidateSettings validates the entire Settings struct and reports every
// problem at once.
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}
	add := func(errs []string) { ve.Errors = append(ve.Errors, errs...) }

	if settings.SampleRate < 8000 || settings.SampleRate > 384000 {
		ve.Errors = append(ve.Errors, fmt.Sprintf("samplerate %d outside [8000, 384000]", settings.SampleRate))
	}
	if len(settings.Sources) == 0 {
		ve.Errors = append(ve.Errors, "at least one source is required")
	}
	add(validateCaptureSettings(&settings.Capture))
	add(validatePlayerSettings(&settings.Player))
	add(validateSpectrogramSettings(&settings.Spectrogram))
	add(validateMetricsSettings(&settings.Metrics))

	if len(ve.Errors) > 0 {
		return errors.New(ve).
			Component(componentConf).
			Category(errors.CategoryValidation).
			Context("count", len(ve.Errors)).
			Build()
	}
	return nil
}

func validateCaptureSettings(settings *CaptureSettings) []string {
	var errs []string
	if settings.BufferSeconds <= 0 {
		errs = append(errs, "capture.buffer_seconds must be positive")
	}
	if settings.SummaryStep < 1 {
		errs = append(errs, "capture.summary_step must be at least 1")
	}
	return errs
}

func validatePlayerSettings(settings *PlayerSettings) []string {
	var errs []string
	inFactorRange := func(v float64) bool { return v >= 0.01 && v <= 100 }
	if !inFactorRange(settings.Pitch) {
		errs = append(errs, fmt.Sprintf("player.pitch %g outside [0.01, 100]", settings.Pitch))
	}
	if !inFactorRange(settings.Stretch) {
		errs = append(errs, fmt.Sprintf("player.stretch %g outside [0.01, 100]", settings.Stretch))
	}
	if settings.FilterHP < 0 || settings.FilterLP < 0 {
		errs = append(errs, "player filter cutoffs must not be negative")
	}
	for idx, ch := range settings.Channel {
		if ch.Pan < -1 || ch.Pan > 1 {
			errs = append(errs, fmt.Sprintf("player.channel.%s.pan %g outside [-1, 1]", idx, ch.Pan))
		}
	}
	return errs
}

func validateSpectrogramSettings(settings *SpectrogramSettings) []string {
	var errs []string
	n := settings.FFTSize
	if n < 64 || n > 65536 || bits.OnesCount(uint(n)) != 1 {
		errs = append(errs, fmt.Sprintf("spectrogram.fft_size %d must be a power of two in [64, 65536]", n))
	}
	if settings.Hop < 1 {
		errs = append(errs, "spectrogram.hop must be at least 1")
	}
	if settings.Width < 1 || settings.Height < 1 {
		errs = append(errs, "spectrogram width and height must be positive")
	}
	if settings.Workers < 0 {
		errs = append(errs, "spectrogram.workers must not be negative")
	}
	if !settings.AutoGain && settings.ApertureFrom >= settings.ApertureTo {
		errs = append(errs, "spectrogram.aperture_from must be below aperture_to")
	}
	if settings.Interval <= 0 {
		errs = append(errs, "spectrogram.interval must be positive")
	}
	return errs
}

func validateMetricsSettings(settings *MetricsSettings) []string {
	if settings.Enabled && settings.Listen == "" {
		return []string{"metrics.listen is required when metrics are enabled"}
	}
	return nil
}

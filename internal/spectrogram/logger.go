package spectrogram

import (
	"github.com/wavescope/wavescope/internal/logger"
)

// GetLogger returns the spectrogram package logger scoped to the spectrogram module.
// Fetched dynamically to ensure it uses the current centralized logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("spectrogram")
}

package sources

import "github.com/wavescope/wavescope/internal/logger"

// GetLogger returns the sources module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("audiocore").Module("sources")
}

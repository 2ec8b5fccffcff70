package audiocore

import "github.com/wavescope/wavescope/internal/logger"

// GetLogger returns the audiocore module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("audiocore")
}

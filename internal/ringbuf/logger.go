package ringbuf

import "github.com/wavescope/wavescope/internal/logger"

// GetLogger returns the ringbuf package logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("ringbuf")
}

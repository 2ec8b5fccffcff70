package player

import "github.com/wavescope/wavescope/internal/logger"

// GetLogger returns the player module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("player")
}

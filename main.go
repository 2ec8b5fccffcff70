package main

import (
	"os"
	"path/filepath"

	"github.com/wavescope/wavescope/cmd"
	"github.com/wavescope/wavescope/internal/buildinfo"
	"github.com/wavescope/wavescope/internal/logger"
)

// Set with -ldflags "-X main.version=... -X main.buildDate=...".
var (
	version   = "dev"
	buildDate = ""
)

func main() {
	info := buildinfo.NewContext(version, buildDate, buildinfo.LoadSystemID(stateDir()))

	err := cmd.RootCommand(info).Execute()
	_ = logger.Global().Close()
	if err != nil {
		os.Exit(1)
	}
}

// stateDir is where per-install state such as the system id lives.
func stateDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(dir, "wavescope")
}

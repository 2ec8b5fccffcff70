// Package cmd wires the wavescope command line.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/wavescope/wavescope/cmd/devices"
	"github.com/wavescope/wavescope/cmd/run"
	"github.com/wavescope/wavescope/cmd/version"
	"github.com/wavescope/wavescope/internal/buildinfo"
	"github.com/wavescope/wavescope/internal/conf"
	"github.com/wavescope/wavescope/internal/logger"
)

// RootCommand creates and returns the root command.
func RootCommand(info *buildinfo.Context) *cobra.Command {
	var (
		configPath string
		debug      bool
	)

	rootCmd := &cobra.Command{
		Use:           "wavescope",
		Short:         "Real-time multi-source audio scope",
		SilenceUsage:  true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to wavescope.yaml (default: search ., ~/.config/wavescope, /etc/wavescope)")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug output")

	// load reads the settings once flags are parsed, so command-line values
	// take precedence over the file and the environment.
	load := func(overrides map[string]any) (*conf.Settings, error) {
		if overrides == nil {
			overrides = map[string]any{}
		}
		if debug {
			overrides["logging.default_level"] = "debug"
			overrides["logging.console.level"] = "debug"
		}
		settings, err := conf.Load(configPath, overrides)
		if err != nil {
			return nil, err
		}
		cl, err := logger.NewCentralLogger(&settings.Logging)
		if err != nil {
			return nil, err
		}
		logger.SetGlobal(cl)
		return settings, nil
	}

	rootCmd.AddCommand(
		run.Command(load, info),
		devices.Command(),
		version.Command(info),
	)
	return rootCmd
}

// Package version implements the version command.
package version

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wavescope/wavescope/internal/buildinfo"
)

// Command creates the version command.
func Command(info *buildinfo.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "wavescope %s\n", info.Version())
			fmt.Fprintf(out, "built:     %s\n", info.BuildDate())
			fmt.Fprintf(out, "system id: %s\n", info.SystemID())
		},
	}
}

// Package devices implements the devices command.
package devices

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/wavescope/wavescope/internal/audiocore/sources"
)

// Command creates the devices command.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List audio capture and playback devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			infos, err := sources.ListDevices()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TYPE\tINDEX\tDEFAULT\tNAME\tID")
			for _, d := range infos {
				kind := "playback"
				if d.Capture {
					kind = "capture"
				}
				def := ""
				if d.IsDefault {
					def = "*"
				}
				fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n", kind, d.Index, def, d.Name, d.ID)
			}
			return w.Flush()
		},
	}
}

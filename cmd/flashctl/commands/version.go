package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"flashcore/internal/buildinfo"
)

func newVersionCmd() *cobra.Command {
	var short bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		// Version must work without a readable configuration.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			if short {
				fmt.Fprintln(cmd.OutOrStdout(), buildinfo.Short())
				return
			}
			fmt.Fprint(cmd.OutOrStdout(), buildinfo.Describe("flashctl"))
		},
	}
	cmd.Flags().BoolVar(&short, "short", false, "Show only the version")
	return cmd
}

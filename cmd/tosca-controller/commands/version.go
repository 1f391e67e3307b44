package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tosca-iot/tosca-go/pkg/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the protocol version",
		Args:  cobra.NoArgs,
		// No configuration needed.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "tosca-controller protocol %s\n", version.Current)
		},
	}
}

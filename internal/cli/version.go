package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is the build version, overridable via -ldflags at build time.
var Version = "dev"

func init() {
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the plebiscito version",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintf(os.Stdout, "plebiscito %s\n", Version)
		return nil
	},
}

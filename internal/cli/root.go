// Package cli implements the plebiscito command-line tree: run, report,
// and version. Grounded on internal/cli/agent.go's command/flag
// registration style (init() registering subcommands, RunE handlers,
// cobra.ExactArgs) — only the root command and rootCmd itself are new,
// since the teacher's own root.go was never retrieved.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "plebiscito",
	Short: "A decentralized multi-layer GPU/CPU job scheduler",
	Long: `plebiscito runs a fleet of nodes that place multi-layer compute
jobs via a distributed auction with pairwise consensus, no central
scheduler and no shared state beyond the messages nodes exchange.`,
}

// Execute runs the command tree and, when a command returns an error,
// prints it and exits with exitCodeFor's code (1). run returns an error
// for a setup failure (config, dataset, controller, store) or a protocol
// violation from Controller.Run; an early end of the run and a
// report-write failure are only logged, so the process exits 0.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}

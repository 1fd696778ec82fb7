package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/plebiscito-net/plebiscito/internal/store"
)

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().StringP("db", "d", "", "Path to a run's sqlite database")
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarize a prior run's job outcomes from its sqlite database",
	Long: `report reopens a run's sqlite database and prints the jobs whose
outcome rows never reached full placement. "plebiscito run" stores only
per-node snapshots there, not job outcome rows, so for a database it
wrote, report finds no jobs to list.`,
	RunE: runReport,
}

func runReport(cmd *cobra.Command, args []string) error {
	dbPath, _ := cmd.Flags().GetString("db")
	if dbPath == "" {
		return fmt.Errorf("plebiscito: --db is required")
	}

	db, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("plebiscito: %w", err)
	}
	defer db.Close()

	incomplete, err := db.ListIncompleteJobs()
	if err != nil {
		return fmt.Errorf("plebiscito: list incomplete jobs: %w", err)
	}

	if len(incomplete) == 0 {
		fmt.Fprintln(os.Stdout, "every recorded job reached full placement")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%d job(s) never reached full placement:\n", len(incomplete))
	for _, jobID := range incomplete {
		outcome, err := db.GetJobOutcome(jobID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "plebiscito: %s: %v\n", jobID, err)
			continue
		}
		age := time.Since(outcome.DispatchedAt).Round(time.Second)
		fmt.Fprintf(os.Stdout, "  %s: %d/%d layers placed, dispatched %s ago\n",
			jobID, outcome.LayersPlaced, outcome.NLayer, age)
	}
	return nil
}

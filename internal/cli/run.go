package cli

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/plebiscito-net/plebiscito/internal/api"
	"github.com/plebiscito-net/plebiscito/internal/controller"
	"github.com/plebiscito-net/plebiscito/internal/daemon"
	"github.com/plebiscito-net/plebiscito/internal/dataset"
	"github.com/plebiscito-net/plebiscito/internal/domain"
	"github.com/plebiscito-net/plebiscito/internal/store"
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("config", "c", "", "Path to the daemon TOML config")
	runCmd.Flags().StringP("out", "o", ".", "Directory to write the run's CSV reports into")
	runCmd.Flags().StringP("name", "n", "run", "Base name for the run's report files")
	runCmd.Flags().Int64P("seed", "s", 1, "Seed for the node GPU-mix and dataset sampler RNGs")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the fleet to completion against a dataset",
	Long: `run loads the daemon configuration, builds a fleet of nodes over a
complete topology, drains every job the configured dataset produces
through the bidding and deconfliction protocol, and writes the
allocations and jobs CSV reports spec.md §6 names.`,
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	outDir, _ := cmd.Flags().GetString("out")
	baseName, _ := cmd.Flags().GetString("name")
	seed, _ := cmd.Flags().GetInt64("seed")

	cfg, err := daemon.Load(configPath)
	if err != nil {
		return fmt.Errorf("plebiscito: %w", err)
	}

	statFile, err := os.Open(cfg.Dataset.StatsPath)
	if err != nil {
		return fmt.Errorf("plebiscito: open dataset stats %s: %w", cfg.Dataset.StatsPath, err)
	}
	defer statFile.Close()

	datasetRNG := rand.New(rand.NewSource(seed))
	sampler, err := dataset.LoadCSV(statFile, dataset.Config{
		MinLayers: cfg.Dataset.MinLayers,
		MaxLayers: cfg.Dataset.MaxLayers,
		TotalJobs: cfg.Dataset.TotalJobs,
	}, datasetRNG)
	if err != nil {
		return fmt.Errorf("plebiscito: %w", err)
	}

	gpuRNG := rand.New(rand.NewSource(seed + 1))
	c, err := controller.New(cfg, sampler, randomGPUType(gpuRNG))
	if err != nil {
		return fmt.Errorf("plebiscito: %w", err)
	}

	var db *store.DB
	if cfg.Storage.Path != "" {
		db, err = store.Open(cfg.Storage.Path)
		if err != nil {
			return fmt.Errorf("plebiscito: %w", err)
		}
		defer db.Close()
	}

	var httpSrv *http.Server
	if cfg.Metrics.Enabled {
		srv := api.NewServer(fleetAdapter{c})
		srv.EnableMetrics()
		httpSrv = &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port),
			Handler: srv.Handler(),
		}
		go func() {
			if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				fmt.Fprintf(os.Stderr, "plebiscito: api server: %v\n", err)
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			httpSrv.Shutdown(ctx)
		}()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := c.Run(ctx); err != nil {
		if domain.IsProtocolViolation(err) {
			return err
		}
		fmt.Fprintf(os.Stderr, "plebiscito: run ended early: %v\n", err)
		return nil
	}

	c.ReportResourceUsage(func(format string, args ...interface{}) {
		fmt.Fprintf(os.Stdout, format+"\n", args...)
	})
	c.ReportReputation(func(format string, args ...interface{}) {
		fmt.Fprintf(os.Stdout, format+"\n", args...)
	})

	if err := c.WriteReports(outDir, baseName); err != nil {
		fmt.Fprintf(os.Stderr, "plebiscito: write reports: %v\n", err)
	}

	if db != nil {
		for i := 0; i < c.NumNodes(); i++ {
			snap, err := c.Snapshot(i)
			if err != nil {
				continue
			}
			if err := db.RecordNodeSnapshot(i, snap.UpdatedCPU, snap.UpdatedGPU, 0); err != nil {
				fmt.Fprintf(os.Stderr, "plebiscito: record node snapshot: %v\n", err)
			}
		}
	}

	return nil
}

// randomGPUType returns a closure that uniformly samples one of the four
// provisionable device classes, leaving MISC (the capability floor, not
// something a real node is provisioned as) out of the draw.
func randomGPUType(rng *rand.Rand) func() domain.GPUType {
	classes := []domain.GPUType{domain.T4, domain.P100, domain.V100, domain.A100}
	return func() domain.GPUType {
		return classes[rng.Intn(len(classes))]
	}
}

// fleetAdapter satisfies api.Snapshotter by translating
// internal/node.NodeSnapshot into the API's own decoupled response
// shape, so internal/api never needs to import internal/controller.
type fleetAdapter struct {
	c *controller.Controller
}

func (f fleetAdapter) NumNodes() int { return f.c.NumNodes() }

func (f fleetAdapter) Snapshot(nodeID int) (api.NodeSnapshot, error) {
	snap, err := f.c.Snapshot(nodeID)
	if err != nil {
		return api.NodeSnapshot{}, err
	}
	return api.NodeSnapshot{
		ID:         snap.ID,
		GPUType:    snap.GPUType.String(),
		UpdatedCPU: snap.UpdatedCPU,
		UpdatedGPU: snap.UpdatedGPU,
		JobCount:   len(snap.Bids),
	}, nil
}

package controller

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/dustin/go-humanize"
)

// reportName builds the "<filename>_<utility>_<schedalg>_<decrement>_
// <split|nosplit>_<rebid|norebid>_<suffix>" convention spec.md §6
// requires, mirroring Simulator_Plebiscito.__init__'s self.filename
// construction (simulator.py lines 49-58).
func (c *Controller) reportName(baseName, suffix string) string {
	split := "nosplit"
	if !c.cfg.Bidding.FGD {
		split = "split"
	}
	return fmt.Sprintf("%s_%s_FIFO_%s_%s_norebid_%s",
		baseName,
		c.cfg.Bidding.Utility,
		strconv.FormatFloat(c.cfg.Bidding.Decrement, 'f', -1, 64),
		split,
		suffix,
	)
}

// WriteReports emits the two CSVs a run produces: one row per placed
// layer (allocations) and one row per job (the jobs report), into dir
// under baseName's naming convention.
func (c *Controller) WriteReports(dir, baseName string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.writeAllocations(dir, baseName); err != nil {
		return err
	}
	return c.writeJobsReport(dir, baseName)
}

func (c *Controller) writeAllocations(dir, baseName string) error {
	path := filepath.Join(dir, c.reportName(baseName, "allocations.csv"))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("controller: create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"job_id", "layer", "node_id", "dispatched_at"}); err != nil {
		return err
	}
	for _, jobID := range c.sortedJobIDs() {
		o := c.outcomes[jobID]
		for layer, nodeID := range o.placements {
			row := []string{
				jobID,
				strconv.Itoa(layer),
				strconv.Itoa(nodeID),
				o.dispatchedAt.Format("2006-01-02T15:04:05Z07:00"),
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
	}
	return w.Error()
}

func (c *Controller) writeJobsReport(dir, baseName string) error {
	path := filepath.Join(dir, c.reportName(baseName, "jobs_report.csv"))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("controller: create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"job_id", "n_layer", "layers_placed", "duration", "gpu_type", "speedup", "completed_at"}); err != nil {
		return err
	}
	for _, jobID := range c.sortedJobIDs() {
		o := c.outcomes[jobID]
		row := []string{
			jobID,
			strconv.Itoa(o.spec.NLayer),
			strconv.Itoa(len(o.placements)),
			o.spec.Duration.String(),
			o.spec.GPUType.String(),
			humanize.FtoaWithDigits(o.spec.Speedup, 3),
			o.completedAt.Format("2006-01-02T15:04:05Z07:00"),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return w.Error()
}

func (c *Controller) sortedJobIDs() []string {
	ids := make([]string, 0, len(c.outcomes))
	for id := range c.outcomes {
		ids = append(ids, id)
	}
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1] > ids[j]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
	return ids
}

// ReportResourceUsage logs a human-readable utilization line per node —
// grounded on the teacher's use of go-humanize for operator-facing
// formatting, applied here to CPU/GPU quantities instead of byte counts.
func (c *Controller) ReportResourceUsage(logf func(format string, args ...interface{})) {
	for _, w := range c.workers {
		snap := w.Snapshot()
		logf("[controller] node %d (%s): cpu=%s gpu=%s",
			snap.ID,
			humanize.FtoaWithDigits(snap.UpdatedCPU, 2),
			humanize.FtoaWithDigits(snap.UpdatedGPU, 2),
		)
	}
}

// ReportReputation logs each node's trust tier, most trustworthy first —
// an operator's quick read on which nodes to keep using across runs.
func (c *Controller) ReportReputation(logf func(format string, args ...interface{})) {
	for _, rep := range c.Reputation.TopNodes(0) {
		logf("[controller] node %d: %s (score=%.2f, jobs=%d, penalties=%.2f)",
			rep.NodeID, rep.TrustTier(), rep.Overall(), rep.JobCount, rep.Penalties)
	}
}

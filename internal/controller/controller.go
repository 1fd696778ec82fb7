// Package controller wires a fleet of internal/node.Worker goroutines
// together, dispatches dataset-sourced jobs into the fleet, waits for
// each job to reach quiescence, and reports the outcome.
//
// Grounded on simulator.py's Simulator_Plebiscito: setup_nodes (wiring
// workers to their queues), the run() main loop (dispatch, collect,
// deallocate), and dispatch_job's broadcast-to-every-queue delivery
// (jobs_handler.py lines 7-33).
package controller

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/plebiscito-net/plebiscito/internal/bidding"
	"github.com/plebiscito-net/plebiscito/internal/daemon"
	"github.com/plebiscito-net/plebiscito/internal/dispatchqueue"
	"github.com/plebiscito-net/plebiscito/internal/domain"
	"github.com/plebiscito-net/plebiscito/internal/ledger"
	"github.com/plebiscito-net/plebiscito/internal/node"
	"github.com/plebiscito-net/plebiscito/internal/reputation"
	"github.com/plebiscito-net/plebiscito/internal/topology"
	"github.com/plebiscito-net/plebiscito/internal/trace"
)

// clientEdgeID marks a message as originating outside the fleet (the
// dispatcher), the Go analogue of dispatch_job handing a fresh job to
// every node's queue with no prior sender to exclude.
const clientEdgeID = -1

// nodeBandwidth is the per-node bandwidth budget ledger.New provisions
// every node with — independent of the inter-node edge capacity the
// topology's own BandwidthLedger models.
const nodeBandwidth = 1000.0

// Controller owns every node worker in the fleet and the shared
// bookkeeping (in-flight WaitGroup, outcome ledger) needed to drive a
// deterministic run to completion.
type Controller struct {
	cfg     daemon.Config
	workers []*node.Worker
	topo    *topology.Adjacency
	bw      domain.BandwidthLedger
	source  domain.DatasetSource

	wg       sync.WaitGroup
	mu       sync.Mutex
	outcomes map[string]*jobOutcome

	Reputation *reputation.Tracker
	Trace      *trace.Tracer
}

type jobOutcome struct {
	spec         domain.JobSpec
	dispatchedAt time.Time
	completedAt  time.Time
	placements   map[int]int // layer -> node id
}

// New builds a fleet of cfg.Topology.NumNodes workers over a complete
// topology, each provisioned with a random GPU type, wired to forward
// messages to one another, and driven by source.
func New(cfg daemon.Config, source domain.DatasetSource, rng func() domain.GPUType) (*Controller, error) {
	n := cfg.Topology.NumNodes
	topo := topology.NewComplete(n)
	bw := topology.NewSimpleBandwidthLedger(n, 1e9)

	c := &Controller{
		cfg:        cfg,
		topo:       topo,
		bw:         bw,
		source:     source,
		outcomes:   make(map[string]*jobOutcome),
		Reputation: reputation.NewTracker(reputation.DefaultTrackerConfig()),
		Trace:      trace.NewTracer(trace.DefaultConfig()),
	}

	c.workers = make([]*node.Worker, n)
	for i := 0; i < n; i++ {
		gpuType := rng()
		l, err := ledger.New(gpuType, nodeBandwidth, cfg.Bidding.FGD)
		if err != nil {
			return nil, fmt.Errorf("controller: provision node %d: %w", i, err)
		}
		w := node.New(node.Config{
			ID:      i,
			GPUType: gpuType,
			Policy: bidding.Policy{
				Utility:   cfg.Bidding.ResolveUtility(),
				Alpha:     cfg.Bidding.Alpha,
				Decrement: cfg.Bidding.Decrement,
			},
			FGD: cfg.Bidding.FGD,
		}, l, topo, nil, nil)
		w.Bandwidth = bw
		c.workers[i] = w
		c.Reputation.Register(i)
	}

	for _, w := range c.workers {
		w.Send = c.send
		w.Done = c.wg.Done
		nodeID := w.ID()
		w.OnViolation = func(err error) {
			c.Reputation.RecordPenalty(nodeID, reputation.PenaltyEvent{Severity: 1.0, Reason: err.Error()})
		}
	}

	return c, nil
}

// send delivers msg to node toID, accounting it against the shared
// in-flight WaitGroup before the channel send so Wait can never observe
// a false zero between a sender's Add and the receiver's eventual Done.
func (c *Controller) send(toID int, msg domain.JobMessage) {
	c.wg.Add(1)
	c.workers[toID].Inbox <- msg
}

// Run starts every node's event loop, dispatches every job source
// produces (one at a time, settling to quiescence before the next), and
// returns once the source reports exhaustion and the last job has
// settled.
func (c *Controller) Run(ctx context.Context) error {
	var workerWG sync.WaitGroup
	for _, w := range c.workers {
		workerWG.Add(1)
		go func(w *node.Worker) {
			defer workerWG.Done()
			w.Run(ctx)
		}(w)
	}

	queue := dispatchqueue.New(dispatchqueue.DefaultConfig())

	simTime := time.Now()
	for {
		jobs, exhausted := c.source.SelectJobs(simTime)
		for _, spec := range jobs {
			queue.Push(spec, simTime)
		}
		// Drain whatever the tick produced shortest-job-first, so a
		// job whose layers will sit occupied for hours never makes a
		// job that will finish in seconds wait behind it.
		for queue.Len() > 0 {
			item, _ := queue.Pop()
			if err := c.dispatch(ctx, item.Spec, simTime); err != nil {
				return err
			}
		}
		if exhausted {
			break
		}
		simTime = simTime.Add(time.Second)
	}

	for _, w := range c.workers {
		close(w.Inbox)
	}
	workerWG.Wait()
	return nil
}

// dispatch broadcasts spec to every node (dispatch_job's queue fan-out),
// waits for the fleet to converge, records the placement, then
// immediately releases the job's resources — the duration/speedup a
// real run would spend "running" is logical here, not wall-clock, since
// the original's own time_instant is an abstract tick counter rather
// than a wall-clock measurement.
func (c *Controller) dispatch(ctx context.Context, spec domain.JobSpec, at time.Time) error {
	if spec.TraceID == "" {
		spec.TraceID = uuid.NewString()
	}

	span := c.Trace.StartSpan(spec.JobID, "dispatch", map[string]string{"n_layer": strconv.Itoa(spec.NLayer)})
	var spanErr error
	defer func() { c.Trace.EndSpan(span, spanErr) }()

	msg := domain.JobMessage{
		JobID:      spec.JobID,
		User:       spec.User,
		EdgeID:     clientEdgeID,
		NLayer:     spec.NLayer,
		NLayerMin:  spec.NLayerMin,
		NLayerMax:  spec.NLayerMax,
		NNCpu:      append([]float64(nil), spec.NNCpu...),
		NNGpu:      append([]float64(nil), spec.NNGpu...),
		NNDataSize: append([]float64(nil), spec.NNDataSize...),
		GPUType:    spec.GPUType,
		Speedup:    spec.Speedup,
		Increase:   spec.Increase,
		Duration:   spec.Duration,
		TraceID:    spec.TraceID,
	}

	c.mu.Lock()
	c.outcomes[spec.JobID] = &jobOutcome{spec: spec, dispatchedAt: at}
	c.mu.Unlock()

	for _, w := range c.workers {
		c.send(w.ID(), msg.Clone())
	}
	c.wg.Wait()

	placements := make(map[int]int)
	for _, w := range c.workers {
		entry, ok := w.Book.Snapshot(spec.JobID)
		if !ok {
			continue
		}
		for layer, owner := range entry.AuctionID {
			if owner == w.ID() {
				placements[layer] = owner
			}
		}
	}

	c.mu.Lock()
	c.outcomes[spec.JobID].placements = placements
	c.outcomes[spec.JobID].completedAt = at.Add(spec.Duration)
	c.mu.Unlock()

	won := make(map[int]bool)
	for _, nodeID := range placements {
		won[nodeID] = true
	}
	for _, w := range c.workers {
		c.Reputation.RecordJob(w.ID(), reputation.JobOutcome{
			KeptPlacement: won[w.ID()],
			Agreed:        true,
		})
	}

	release := msg.Clone()
	release.Unallocate = true
	for _, w := range c.workers {
		c.send(w.ID(), release.Clone())
	}
	c.wg.Wait()

	select {
	case <-ctx.Done():
		spanErr = ctx.Err()
		return spanErr
	default:
		return nil
	}
}

// Snapshot returns node nodeID's current reportable state. Only valid
// after Run has returned (the worker goroutines have exited) or between
// dispatch calls while the in-flight WaitGroup is drained.
func (c *Controller) Snapshot(nodeID int) (node.NodeSnapshot, error) {
	if nodeID < 0 || nodeID >= len(c.workers) {
		return node.NodeSnapshot{}, fmt.Errorf("controller: node %d out of range", nodeID)
	}
	return c.workers[nodeID].Snapshot(), nil
}

// NumNodes returns the fleet size.
func (c *Controller) NumNodes() int { return len(c.workers) }

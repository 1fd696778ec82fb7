package domain

import "time"

// ─── External Collaborator Interfaces ──────────────────────────────────────
// These interfaces are the boundary of the core (§1, §6 of SPEC_FULL.md).
// The core depends only on these; dataset generation, scheduling policy,
// and network-topology bandwidth bookkeeping are implemented elsewhere
// and may be swapped freely.

// JobSpec is one row dispatch_job hands to the fleet: a fully-expanded
// job, already split into NLayer layers with per-layer resource vectors.
type JobSpec struct {
	JobID      string
	User       string
	NLayer     int
	NLayerMin  int
	NLayerMax  int
	NNCpu      []float64
	NNGpu      []float64
	NNDataSize []float64
	GPUType    GPUType
	Speedup    float64
	Increase   bool
	Duration   time.Duration
	TraceID    string
}

// DatasetSource abstracts dataset generation and scheduling policy
// (FIFO/SJF/…): the core consumes one JobSpec per SelectJobs call and
// never knows how the row was produced or ordered.
type DatasetSource interface {
	// SelectJobs returns the jobs that should be dispatched at the given
	// simulated instant, and whether the source is exhausted.
	SelectJobs(at time.Time) (jobs []JobSpec, exhausted bool)
}

// BandwidthLedger abstracts network-topology bandwidth bookkeeping beyond
// the abstract reserve/release operations the core calls out to. The
// internal representation of NN_data_size (matrix in some original code
// paths, vector in others — SPEC_FULL.md §9) is entirely this
// collaborator's concern; the core only ever calls these four methods.
type BandwidthLedger interface {
	ReserveTotal(jobID string, nodeID int, bw float64) error
	ReleaseTotal(jobID string, nodeID int, bw float64)
	ReleaseBetweenNodes(fromNode, toNode int, bw float64, jobID string)
	ReleaseNodeAndClient(nodeID int, bw float64, jobID string)
}

// Neighborhood abstracts the logical topology the gossip fan-out runs
// over: a bidirected adjacency relation plus best-effort node removal.
// Membership is fixed at construction — "dynamic membership (nodes may be
// detached but not added at runtime)" per the Non-goals.
type Neighborhood interface {
	// Neighbors returns the node ids with a live edge to id.
	Neighbors(id int) []int
	// Detach removes a node from the topology; edges touching it are
	// dropped on both sides.
	Detach(id int)
}

// Package topology implements the fixed logical adjacency a node's
// gossip fan-out runs over (domain.Neighborhood), and the bandwidth
// bookkeeping collaborator (domain.BandwidthLedger) used in
// network-topology mode.
//
// Grounded on the original simulator's logical_topology adjacency matrix
// (original_source/src/simulator.py) and network_topology bandwidth
// reservation calls referenced throughout node.py (get_available_bandwidth_with_client,
// release_bandwidth_node_and_client, release_bandwidth_between_nodes).
// Structurally grounded on the teacher's internal/infra/gossip.SWIM: a
// small mutex-guarded membership/adjacency struct with narrow query
// methods, though without SWIM's UDP transport — membership here is a
// fixed matrix, not dynamically discovered.
package topology

import (
	"fmt"
	"sync"
)

// Adjacency is a fixed, symmetric logical topology: a bidirected
// adjacency matrix over node ids [0, n). It implements
// domain.Neighborhood.
type Adjacency struct {
	mu    sync.RWMutex
	edges [][]bool
}

// NewComplete returns an Adjacency where every pair of distinct nodes in
// [0, n) is connected — the default logical topology when none is
// configured.
func NewComplete(n int) *Adjacency {
	a := &Adjacency{edges: make([][]bool, n)}
	for i := range a.edges {
		a.edges[i] = make([]bool, n)
		for j := range a.edges[i] {
			a.edges[i][j] = i != j
		}
	}
	return a
}

// NewFromMatrix wraps a caller-supplied adjacency matrix, e.g. one
// parsed from a topology config file.
func NewFromMatrix(m [][]bool) *Adjacency {
	cp := make([][]bool, len(m))
	for i, row := range m {
		cp[i] = append([]bool(nil), row...)
	}
	return &Adjacency{edges: cp}
}

// Neighbors returns the ids with a live edge to id.
func (a *Adjacency) Neighbors(id int) []int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if id < 0 || id >= len(a.edges) {
		return nil
	}
	var out []int
	for j, connected := range a.edges[id] {
		if connected {
			out = append(out, j)
		}
	}
	return out
}

// Detach removes a node from the topology in both directions — a
// crashed or decommissioned node stops receiving and forwarding
// messages, but membership never grows back (dynamic membership growth
// is a Non-goal).
func (a *Adjacency) Detach(id int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if id < 0 || id >= len(a.edges) {
		return
	}
	for j := range a.edges[id] {
		a.edges[id][j] = false
		a.edges[j][id] = false
	}
}

// SimpleBandwidthLedger is a minimal domain.BandwidthLedger: it tracks
// per-node available bandwidth and per-node reservations without
// resolving the NN_data_size matrix-vs-vector ambiguity the core stays
// silent on — each reservation is keyed by job id so a RELEASE can be
// matched to its RESERVE regardless of how the caller shaped the data.
type SimpleBandwidthLedger struct {
	mu        sync.Mutex
	available map[int]float64
	reserved  map[string]map[int]float64 // jobID -> nodeID -> amount
}

// NewSimpleBandwidthLedger seeds every node in [0, n) with cap bandwidth.
func NewSimpleBandwidthLedger(n int, cap float64) *SimpleBandwidthLedger {
	l := &SimpleBandwidthLedger{
		available: make(map[int]float64, n),
		reserved:  make(map[string]map[int]float64),
	}
	for i := 0; i < n; i++ {
		l.available[i] = cap
	}
	return l
}

func (l *SimpleBandwidthLedger) ReserveTotal(jobID string, nodeID int, bw float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.available[nodeID] < bw {
		return fmt.Errorf("topology: node %d has insufficient bandwidth for job %s (want %v, have %v)", nodeID, jobID, bw, l.available[nodeID])
	}
	l.available[nodeID] -= bw
	if l.reserved[jobID] == nil {
		l.reserved[jobID] = make(map[int]float64)
	}
	l.reserved[jobID][nodeID] += bw
	return nil
}

func (l *SimpleBandwidthLedger) ReleaseTotal(jobID string, nodeID int, bw float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.available[nodeID] += bw
	if m := l.reserved[jobID]; m != nil {
		m[nodeID] -= bw
	}
}

func (l *SimpleBandwidthLedger) ReleaseBetweenNodes(fromNode, toNode int, bw float64, jobID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.available[fromNode] += bw
	l.available[toNode] += bw
}

func (l *SimpleBandwidthLedger) ReleaseNodeAndClient(nodeID int, bw float64, jobID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.available[nodeID] += bw
}

// NopBandwidthLedger is a domain.BandwidthLedger that never constrains
// placement — used when network-topology mode is off and bandwidth is
// tracked, if at all, purely inside each node's ledger.Ledger.
type NopBandwidthLedger struct{}

func (NopBandwidthLedger) ReserveTotal(jobID string, nodeID int, bw float64) error { return nil }
func (NopBandwidthLedger) ReleaseTotal(jobID string, nodeID int, bw float64)       {}
func (NopBandwidthLedger) ReleaseBetweenNodes(fromNode, toNode int, bw float64, jobID string) {
}
func (NopBandwidthLedger) ReleaseNodeAndClient(nodeID int, bw float64, jobID string) {}

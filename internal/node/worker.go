// Package node implements the per-node event loop: one goroutine per
// node, fed by a dedicated inbound channel, owning its own
// ledger.Ledger and bidbook.Book with no shared mutable state against
// any other node — mirroring the teacher's gossip.SWIM goroutine/channel
// shape (one membership state machine per local process, messages
// delivered over a mailbox) but generalized from UDP wire messages to
// in-process domain.JobMessage values.
//
// Grounded on the original node's work()/extract_all_job_msg()/
// update_bid()/forward_to_neighbohors() (node.py lines 243-299,
// 1063-1267).
package node

import (
	"context"
	"log"
	"time"

	"github.com/plebiscito-net/plebiscito/internal/bidbook"
	"github.com/plebiscito-net/plebiscito/internal/bidding"
	"github.com/plebiscito-net/plebiscito/internal/deconfliction"
	"github.com/plebiscito-net/plebiscito/internal/domain"
	"github.com/plebiscito-net/plebiscito/internal/ledger"
)

// Sender delivers msg to node toID. The controller wires this to the
// other workers' Inbox channels.
type Sender func(toID int, msg domain.JobMessage)

// Config controls one node worker's identity and policy.
type Config struct {
	ID      int
	GPUType domain.GPUType
	Policy  bidding.Policy
	FGD     bool
}

// Worker is a single node's event loop state. Never shared across
// goroutines — Run is expected to be the only goroutine that ever
// touches Ledger or Book.
type Worker struct {
	cfg          Config
	Ledger       *ledger.Ledger
	Book         *bidbook.Book
	Neighborhood domain.Neighborhood
	Bandwidth    domain.BandwidthLedger
	Send         Sender
	Inbox        chan domain.JobMessage
	Logger       *log.Logger

	// Done, if set, is called once for every message this worker finishes
	// handling (bid, rebroadcast, or unallocate) — the controller wires
	// this to a sync.WaitGroup.Done so it can tell when a dispatched job
	// has fully converged across the fleet (wg.Add before every send,
	// Done after every receive-and-handle) without polling.
	Done func()

	// OnViolation, if set, is called whenever deconfliction reports a
	// protocol violation against this node — the controller wires this
	// to a reputation.Tracker penalty.
	OnViolation func(err error)

	lastSent map[string]domain.JobMessage
	counter  map[string]int
	pending  []domain.JobMessage
}

// New constructs a node worker. Bandwidth is left nil; while it is nil,
// bandwidth releases are skipped (see topology.NopBandwidthLedger for an
// explicit choice of the same behavior).
func New(cfg Config, l *ledger.Ledger, neighborhood domain.Neighborhood, send Sender, logger *log.Logger) *Worker {
	if logger == nil {
		logger = log.Default()
	}
	return &Worker{
		cfg:          cfg,
		Ledger:       l,
		Book:         bidbook.New(),
		Neighborhood: neighborhood,
		Send:         send,
		Inbox:        make(chan domain.JobMessage, 256),
		Logger:       logger,
		lastSent:     make(map[string]domain.JobMessage),
		counter:      make(map[string]int),
	}
}

// ID returns this worker's node id.
func (w *Worker) ID() int { return w.cfg.ID }

// GPUType returns the device class this worker was provisioned with.
func (w *Worker) GPUType() domain.GPUType { return w.cfg.GPUType }

// Snapshot returns this node's current state for reporting purposes.
// Only safe to call when the caller can prove this worker's goroutine is
// not concurrently inside processBatch — e.g. after a
// sync.WaitGroup covering every in-flight message has drained to zero,
// or after Run has returned. Grounded on collect_node_results'
// per-round (id, bids, counter, updated_cpu, updated_gpu, updated_bw,
// gpu_type) dictionary (node.py / simulator.py).
func (w *Worker) Snapshot() NodeSnapshot {
	bids := make(map[string]domain.BidBookEntry, w.Book.Len())
	for _, jobID := range w.Book.JobIDs() {
		if e, ok := w.Book.Snapshot(jobID); ok {
			bids[jobID] = e
		}
	}
	counters := make(map[string]int, len(w.counter))
	for jobID, c := range w.counter {
		counters[jobID] = c
	}
	return NodeSnapshot{
		ID:         w.cfg.ID,
		Bids:       bids,
		Counters:   counters,
		UpdatedCPU: w.Ledger.UpdatedCPU,
		UpdatedGPU: w.Ledger.UpdatedGPU,
		UpdatedBW:  w.Ledger.UpdatedBW,
		GPUType:    w.cfg.GPUType,
	}
}

// NodeSnapshot is one node's reportable state at a point of quiescence —
// the Go shape of the original's collect_node_results return_val entries.
type NodeSnapshot struct {
	ID         int
	Bids       map[string]domain.BidBookEntry
	Counters   map[string]int
	UpdatedCPU float64
	UpdatedGPU float64
	UpdatedBW  float64
	GPUType    domain.GPUType
}

// Run drains Inbox until ctx is cancelled, grouping consecutive messages
// for the same job id into one batch per the original's
// extract_all_job_msg, so a burst of deconfliction replies for one job
// is processed — and rebroadcast — as a unit rather than one wire
// message at a time.
func (w *Worker) Run(ctx context.Context) {
	for {
		batch, jobID, ok := w.nextBatch(ctx)
		if !ok {
			return
		}
		w.processBatch(jobID, batch)
	}
}

// nextBatch blocks for the next message, then greedily drains any
// immediately-available messages for the same job id, requeueing
// anything for a different job id for the following call.
func (w *Worker) nextBatch(ctx context.Context) ([]domain.JobMessage, string, bool) {
	var first domain.JobMessage
	if len(w.pending) > 0 {
		first = w.pending[0]
		w.pending = w.pending[1:]
	} else {
		select {
		case <-ctx.Done():
			return nil, "", false
		case m, ok := <-w.Inbox:
			if !ok {
				return nil, "", false
			}
			first = m
		}
	}

	jobID := first.JobID
	batch := []domain.JobMessage{first}

drain:
	for {
		select {
		case m, ok := <-w.Inbox:
			if !ok {
				break drain
			}
			if m.JobID == jobID {
				batch = append(batch, m)
			} else {
				w.pending = append(w.pending, m)
			}
		default:
			break drain
		}
	}
	return batch, jobID, true
}

func (w *Worker) processBatch(jobID string, batch []domain.JobMessage) {
	needRebroadcast := false
	firstMsg := false

	for _, msg := range batch {
		if msg.Unallocate {
			w.handleUnallocate(msg)
			continue
		}

		if _, seen := w.counter[msg.JobID]; !seen {
			firstMsg = true
		}
		w.counter[msg.JobID]++

		success := w.updateBid(msg)
		needRebroadcast = needRebroadcast || success
	}

	if firstMsg {
		w.announce(jobID, batch[0])
	}
	if needRebroadcast {
		if entry, ok := w.Book.Snapshot(jobID); ok {
			w.forward(jobID, entry.AuctionID, entry.Bid, entry.Timestamp, domain.Unclaimed)
		}
	}

	// Done only after this batch's own sends, so the in-flight count
	// never reaches zero while a follow-up message is still unsent.
	if w.Done != nil {
		for range batch {
			w.Done()
		}
	}
}

// updateBid is update_bid(): the consensus short-circuit, then either
// deconfliction + (re)bid, or — on a job's first sighting — a direct
// bid with no prior decision arrays to reconcile.
func (w *Worker) updateBid(msg domain.JobMessage) bool {
	if !msg.HasDecisionArrays() {
		w.bid(msg)
		return true
	}

	local, ok := w.Book.Snapshot(msg.JobID)
	if !ok {
		local = w.Book.InitNull(msg).Clone()
	}

	if local.SameAs(msg) && local.FullyClaimed() {
		if e := w.Book.Get(msg.JobID); e != nil {
			e.ConsensusCount++
		}
		return false
	}

	res, err := deconfliction.Run(w.cfg.ID, msg, local)
	if err != nil {
		w.Logger.Printf("[node %d] protocol violation on job %s: %v", w.cfg.ID, msg.JobID, err)
		if w.OnViolation != nil {
			w.OnViolation(err)
		}
		return false
	}

	if res.Reset {
		w.Book.Put(msg.JobID, res.Local)
		resendAuction := append([]int(nil), res.Local.AuctionID...)
		resendBid := append([]float64(nil), res.Local.Bid...)
		resendTS := append([]time.Time(nil), res.Local.Timestamp...)
		for _, idx := range res.ResetIDs {
			resendAuction[idx] = msg.AuctionID[idx]
			resendBid[idx] = msg.Bid[idx]
			resendTS[idx] = msg.Timestamp[idx]
		}
		w.forward(msg.JobID, resendAuction, resendBid, resendTS, domain.Unclaimed)
		return false
	}

	w.Ledger.ApplyDelta(res.CPUDelta, res.GPUDelta)
	if res.ReleaseToClient && w.Bandwidth != nil {
		w.Bandwidth.ReleaseNodeAndClient(w.cfg.ID, 0, msg.JobID)
	} else if res.PreviousWinnerID != domain.Unclaimed && w.Bandwidth != nil {
		w.Bandwidth.ReleaseBetweenNodes(res.PreviousWinnerID, w.cfg.ID, 0, msg.JobID)
	}
	w.Book.Put(msg.JobID, res.Local)

	bid := w.bid(msg)
	return bid || res.Rebroadcast
}

func (w *Worker) bid(msg domain.JobMessage) bool {
	var (
		ok  bool
		err error
	)
	if w.cfg.FGD {
		ok, err = bidding.BidFGD(w.cfg.ID, msg, w.Ledger, w.Book)
	} else {
		ok, err = bidding.Bid(w.cfg.ID, msg.GPUType, msg, w.Ledger, w.Book, w.cfg.Policy)
	}
	if err != nil {
		w.Logger.Printf("[node %d] bid error on job %s: %v", w.cfg.ID, msg.JobID, err)
		return false
	}
	return ok
}

// handleUnallocate releases any layers this node holds for msg.JobID and
// forgets the job entirely — grounded on check_if_hosting_job() /
// release_resources() (node.py lines 1094-1113).
func (w *Worker) handleUnallocate(msg domain.JobMessage) {
	entry := w.Book.Get(msg.JobID)
	if entry == nil {
		return
	}
	cpu, gpu := 0.0, 0.0
	hosting := false
	for i, owner := range entry.AuctionID {
		if owner == w.cfg.ID {
			hosting = true
			cpu += entry.NNCpu[i]
			gpu += entry.NNGpu[i]
		}
	}
	if hosting {
		if slots, ok := w.Ledger.AllocatedOn[msg.JobID]; ok && len(slots) > 0 {
			// FGD job: restore the individual slot fraction as well as the
			// aggregate pools (node.py:1111-1113 release_resources does
			// self.individual_gpu[id] += NN_gpu[n] per layer in addition to
			// the aggregate updated_cpu/updated_gpu restore).
			w.Ledger.ReleaseSlot(slots[0], cpu, entry.NNGpu[0], gpu)
			delete(w.Ledger.AllocatedOn, msg.JobID)
		} else {
			w.Ledger.Release(cpu, gpu)
		}
		w.Ledger.JobHosted[msg.JobID] = true
	}
	w.Book.Delete(msg.JobID)
	delete(w.counter, msg.JobID)
	delete(w.lastSent, msg.JobID)
}

// announce forwards a job's very first sighting to every neighbor
// except the sender — grounded on forward_to_neighbohors(first_msg=True).
func (w *Worker) announce(jobID string, msg domain.JobMessage) {
	out := msg.Clone()
	out.EdgeID = w.cfg.ID
	for _, nb := range w.Neighborhood.Neighbors(w.cfg.ID) {
		if nb == msg.EdgeID {
			continue
		}
		w.Send(nb, out)
	}
}

// forward rebroadcasts the node's current view of a job's decision
// arrays to every neighbor, skipped if identical to the last broadcast
// for this job — the last_sent_msg idempotence cache (node.py lines
// 281-287). The unused final parameter keeps call sites symmetric with
// the no-previous-winner case; it carries no meaning here.
func (w *Worker) forward(jobID string, auctionID []int, bid []float64, ts []time.Time, _ int) {
	candidate := domain.JobMessage{
		JobID:     jobID,
		EdgeID:    w.cfg.ID,
		AuctionID: auctionID,
		Bid:       bid,
		Timestamp: ts,
	}

	if prev, ok := w.lastSent[jobID]; ok && sameDecisionArrays(prev, candidate) {
		return
	}
	w.lastSent[jobID] = candidate.Clone()

	for _, nb := range w.Neighborhood.Neighbors(w.cfg.ID) {
		w.Send(nb, candidate)
	}
}

func sameDecisionArrays(a, b domain.JobMessage) bool {
	if len(a.AuctionID) != len(b.AuctionID) {
		return false
	}
	for i := range a.AuctionID {
		if a.AuctionID[i] != b.AuctionID[i] || a.Bid[i] != b.Bid[i] || !a.Timestamp[i].Equal(b.Timestamp[i]) {
			return false
		}
	}
	return true
}

// Package bidbook holds one node's view of every job it has ever seen: a
// map of job_id to domain.BidBookEntry, plus the counters and bookkeeping
// flags the bidding and deconfliction engines mutate as rounds progress.
// Grounded on the original node's self.bids dict (node.py init_null /
// get_node_status) and restructured in the teacher's "plain struct with a
// constructor and small accessor methods" style (see internal/infra/
// registry.Manager in the teacher repo).
package bidbook

import (
	"time"

	"github.com/plebiscito-net/plebiscito/internal/domain"
)

// Book is one node's bid book. Never shared across goroutines — each
// node.Worker owns exactly one.
type Book struct {
	entries map[string]*domain.BidBookEntry
}

// New returns an empty bid book.
func New() *Book {
	return &Book{entries: make(map[string]*domain.BidBookEntry)}
}

// InitNull seeds a fresh entry for msg.JobID if one does not already
// exist: every layer unclaimed, bid -Inf, timestamp one day in the past
// so any real bid beats it on first comparison.
func (b *Book) InitNull(msg domain.JobMessage) *domain.BidBookEntry {
	if e, ok := b.entries[msg.JobID]; ok {
		return e
	}

	n := msg.NLayer
	e := &domain.BidBookEntry{
		JobID:      msg.JobID,
		NLayer:     n,
		NLayerMin:  msg.NLayerMin,
		NLayerMax:  msg.NLayerMax,
		NNCpu:      append([]float64(nil), msg.NNCpu...),
		NNGpu:      append([]float64(nil), msg.NNGpu...),
		NNDataSize: append([]float64(nil), msg.NNDataSize...),
		AuctionID:  make([]int, n),
		Bid:        make([]float64, n),
		Timestamp:  make([]time.Time, n),

		LayerBidAlready: make([]bool, n),
		ArrivalTime:     time.Now(),
	}
	stale := time.Now().Add(-24 * time.Hour)
	for i := 0; i < n; i++ {
		e.AuctionID[i] = domain.Unclaimed
		e.Bid[i] = domain.NegInf()
		e.Timestamp[i] = stale
	}

	b.entries[msg.JobID] = e
	return e
}

// Get returns the entry for jobID, or nil if the book has never seen it.
func (b *Book) Get(jobID string) *domain.BidBookEntry {
	return b.entries[jobID]
}

// Has reports whether the book already tracks jobID.
func (b *Book) Has(jobID string) bool {
	_, ok := b.entries[jobID]
	return ok
}

// Delete forgets a job entirely — used once a job is torn down via an
// unallocate message and no rebid is expected.
func (b *Book) Delete(jobID string) {
	delete(b.entries, jobID)
}

// Snapshot returns a deep copy of jobID's entry, safe for a caller to
// mutate or hand across a channel without racing the book's owner.
func (b *Book) Snapshot(jobID string) (domain.BidBookEntry, bool) {
	e, ok := b.entries[jobID]
	if !ok {
		return domain.BidBookEntry{}, false
	}
	return e.Clone(), true
}

// Put replaces jobID's entry wholesale — used when the deconfliction
// engine commits a recomputed local_view back into the book (RESET path)
// or rolls back a rejected speculative update.
func (b *Book) Put(jobID string, e domain.BidBookEntry) {
	c := e.Clone()
	b.entries[jobID] = &c
}

// JobIDs returns every job currently tracked, in no particular order.
func (b *Book) JobIDs() []string {
	ids := make([]string, 0, len(b.entries))
	for id := range b.entries {
		ids = append(ids, id)
	}
	return ids
}

// Len reports how many jobs the book is currently tracking.
func (b *Book) Len() int { return len(b.entries) }

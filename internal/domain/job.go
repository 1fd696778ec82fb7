package domain

import (
	"math"
	"time"
)

// Unclaimed is the sentinel auction_id for a layer nobody has won yet.
// The original uses -inf; node ids are non-negative here, so -1 is the
// Go-native equivalent.
const Unclaimed = -1

// NegInf is the sentinel bid value paired with Unclaimed — invariant I5
// requires bid == NegInf iff auction_id == Unclaimed.
func NegInf() float64 { return math.Inf(-1) }

// JobMessage is the unit exchanged between nodes: a job announcement, a
// bid update (same shape plus the three per-layer decision arrays), or a
// release (Unallocate set).
type JobMessage struct {
	JobID  string
	User   string
	EdgeID int // sender's node id

	NLayer    int
	NLayerMin int
	NLayerMax int

	NNCpu      []float64
	NNGpu      []float64
	NNDataSize []float64

	GPUType  GPUType
	Speedup  float64
	Increase bool // rebid direction: true = only accept nodes that improve speedup

	AuctionID []int
	Bid       []float64
	Timestamp []time.Time

	Unallocate bool

	// Bookkeeping fields, copied verbatim through forwarding; they never
	// participate in the bidding or deconfliction decision tables.
	Duration time.Duration
	TraceID  string
}

// Clone deep-copies a JobMessage so no two goroutines ever alias the same
// backing slice — the Go expression of "deep copy at every message
// boundary" from the design notes, except here it happens once at the
// channel-send boundary rather than defensively on every read.
func (m JobMessage) Clone() JobMessage {
	out := m
	out.NNCpu = append([]float64(nil), m.NNCpu...)
	out.NNGpu = append([]float64(nil), m.NNGpu...)
	out.NNDataSize = append([]float64(nil), m.NNDataSize...)
	out.AuctionID = append([]int(nil), m.AuctionID...)
	out.Bid = append([]float64(nil), m.Bid...)
	out.Timestamp = append([]time.Time(nil), m.Timestamp...)
	return out
}

// HasDecisionArrays reports whether the message carries auction_id/bid/
// timestamp — i.e. is a bid update rather than a bare job announcement.
func (m JobMessage) HasDecisionArrays() bool {
	return m.AuctionID != nil
}

// BidBookEntry is a node's record of current winner assignments for one
// job: the per-layer decision arrays, protocol counters, lifecycle
// timestamps, and the layer_bid_already guard that enforces monotonicity
// within a single bidding round.
type BidBookEntry struct {
	JobID string

	NLayer    int
	NLayerMin int
	NLayerMax int

	NNCpu      []float64
	NNGpu      []float64
	NNDataSize []float64

	AuctionID []int
	Bid       []float64
	Timestamp []time.Time

	LayerBidAlready []bool

	Count            int
	ConsensusCount   int
	ForwardCount     int
	Deconflictions   int

	ArrivalTime       time.Time
	StartTime         time.Time
	Complete          bool
	CompleteTimestamp time.Time
}

// Clone deep-copies a BidBookEntry for the snapshot/rollback pattern the
// bidding and deconfliction engines rely on (tentative mutation, commit or
// discard).
func (e BidBookEntry) Clone() BidBookEntry {
	out := e
	out.NNCpu = append([]float64(nil), e.NNCpu...)
	out.NNGpu = append([]float64(nil), e.NNGpu...)
	out.NNDataSize = append([]float64(nil), e.NNDataSize...)
	out.AuctionID = append([]int(nil), e.AuctionID...)
	out.Bid = append([]float64(nil), e.Bid...)
	out.Timestamp = append([]time.Time(nil), e.Timestamp...)
	out.LayerBidAlready = append([]bool(nil), e.LayerBidAlready...)
	return out
}

// SameAs is the structural equality the consensus short-circuit uses:
// true iff auction_id, bid and timestamp are identical, element for
// element, to the arrays carried by msg.
func (e BidBookEntry) SameAs(msg JobMessage) bool {
	if len(e.AuctionID) != len(msg.AuctionID) {
		return false
	}
	for i := range e.AuctionID {
		if e.AuctionID[i] != msg.AuctionID[i] || e.Bid[i] != msg.Bid[i] || !e.Timestamp[i].Equal(msg.Timestamp[i]) {
			return false
		}
	}
	return true
}

// FullyClaimed reports whether every layer has a winner — the other half
// of the consensus short-circuit's precondition (no -inf remains).
func (e BidBookEntry) FullyClaimed() bool {
	for _, a := range e.AuctionID {
		if a == Unclaimed {
			return false
		}
	}
	return true
}

// ClaimedLayers returns the contiguous [a,b] range of layer indices self
// currently owns in this entry, and whether self owns anything at all.
func (e BidBookEntry) ClaimedLayers(self int) (a, b int, ok bool) {
	a, b = -1, -1
	for i, owner := range e.AuctionID {
		if owner == self {
			if a == -1 {
				a = i
			}
			b = i
		}
	}
	return a, b, a != -1
}

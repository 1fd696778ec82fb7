package bidding

import (
	"math"
	"time"

	"github.com/plebiscito-net/plebiscito/internal/bidbook"
	"github.com/plebiscito-net/plebiscito/internal/domain"
	"github.com/plebiscito-net/plebiscito/internal/ledger"
)

// BidFGD implements the fragmentation-minimizing dispatch policy: unlike
// Bid, it never splits a job across nodes — a node either claims the
// entire workload onto a single chosen GPU slot, or refuses outright.
// Grounded on the original node's bid_FGD() (node.py lines ~377-429).
func BidFGD(nodeID int, msg domain.JobMessage, l *ledger.Ledger, book *bidbook.Book) (bool, error) {
	totalCPU := 0.0
	for _, c := range msg.NNCpu {
		totalCPU += c
	}
	if totalCPU > l.UpdatedCPU {
		return false, nil
	}

	entry := book.InitNull(msg)
	for _, already := range entry.LayerBidAlready {
		if already {
			return false, nil
		}
	}
	for i := range entry.LayerBidAlready {
		entry.LayerBidAlready[i] = true
	}

	slot, frag, ok := l.BestSlot(msg.NNCpu, msg.NNGpu, 0)
	if !ok {
		return false, nil
	}

	fragmentation := -(frag * (1.0 / float64(len(msg.NNGpu))))

	bidTime := time.Now()
	won := false
	for i := range entry.Bid {
		if fragmentation > entry.Bid[i] || math.IsInf(entry.Bid[i], -1) {
			entry.Bid[i] = fragmentation
			entry.AuctionID[i] = nodeID
			entry.Timestamp[i] = bidTime
			won = true
		}
	}
	if !won {
		return false, nil
	}

	totalGPU := 0.0
	for _, g := range msg.NNGpu {
		totalGPU += g
	}
	if err := l.ReserveSlot(slot, totalCPU, msg.NNGpu[0], totalGPU); err != nil {
		return false, err
	}
	l.AllocatedOn[msg.JobID] = []int{slot}

	book.Put(msg.JobID, *entry)
	return true, nil
}

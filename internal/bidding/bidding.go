// Package bidding implements the per-node bidding engine: given an
// incoming job message, decide which contiguous run of layers (if any)
// this node should claim, respecting the monotone-safety precondition
// (a node that already owns a layer of a job may never bid again) and
// the N_layer_min/N_layer_max contiguity window.
//
// Grounded on the original node's bid() method (node.py lines ~438-623)
// and restructured as a pure-ish function operating on the three
// collaborators a node.Worker already owns: its ledger.Ledger, its
// bidbook.Book, and the domain utility function. The teacher shows this
// "engine takes its collaborators as arguments, no hidden globals" shape
// in internal/infra/mlscheduler.Scheduler.Place.
package bidding

import (
	"time"

	"github.com/plebiscito-net/plebiscito/internal/bidbook"
	"github.com/plebiscito-net/plebiscito/internal/domain"
	"github.com/plebiscito-net/plebiscito/internal/ledger"
)

// Policy bundles the parameters a node's bidding decisions are made
// under — its utility function choice and the tuning knobs that feed it.
type Policy struct {
	Utility   domain.Utility
	Alpha     float64
	Decrement float64
}

// layerScore is the original's compute_layer_score: "prefer the layer
// with the greatest GPU demand first". Left as its own function — not
// inlined — because the original explicitly flags it as a placeholder
// for a better heuristic.
func layerScore(cpu, gpu, dataSize float64) float64 {
	return gpu
}

// Bid attempts to place one or more contiguous layers of msg on this
// node. It mutates l (reserving resources on success) and book (recording
// the speculative bid on success) in place, and reports whether a bid was
// placed.
//
// Preconditions (monotone safety, I3): if this node already owns any
// layer of the job, Bid refuses outright — a node that has already won a
// layer must never re-enter the auction for the same job.
func Bid(nodeID int, jobGPUType domain.GPUType, msg domain.JobMessage, l *ledger.Ledger, book *bidbook.Book, pol Policy) (bool, error) {
	if !domain.CanHost(l.GPUType, jobGPUType) {
		return false, nil
	}

	speedup, err := domain.Speedup(l.GPUType, jobGPUType)
	if err != nil {
		return false, err
	}
	if speedup < msg.Speedup && msg.Increase {
		return false, nil
	}
	if speedup > msg.Speedup && !msg.Increase {
		return false, nil
	}
	// node.py:185 gates the affinity short-circuit on both conditions: the
	// node must already host this job AND the compute speedup on offer must
	// match the one it's already hosting at. A previously-hosting node
	// bidding at a different speedup (an improving rebid) must not be
	// short-circuited — it needs to go through EvaluateUtility normally.
	alreadyHosted := l.JobHosted[msg.JobID] && speedup == msg.Speedup
	if speedup == msg.Speedup && !l.JobHosted[msg.JobID] {
		return false, nil
	}

	entry := book.InitNull(msg)
	for _, a := range entry.AuctionID {
		if a == nodeID {
			// Already own a layer of this job — bidding again would
			// violate monotone safety.
			return false, nil
		}
	}

	tmp := entry.Clone()
	bidTime := time.Now()

	possible := make([]int, 0, msg.NLayer)
	for i := 0; i < msg.NLayer; i++ {
		if entry.LayerBidAlready[i] {
			continue
		}
		if msg.NNGpu[i] <= l.UpdatedGPU && msg.NNCpu[i] <= l.UpdatedCPU {
			possible = append(possible, i)
		}
	}

	for len(possible) > 0 {
		bestPlacement := -1
		bestScore := 0.0
		for _, li := range possible {
			score := layerScore(msg.NNCpu[li], msg.NNGpu[li], msg.NNDataSize[li])
			if bestPlacement < 0 || score > bestScore {
				bestScore = score
				bestPlacement = li
			}
		}

		ctx := domain.UtilityContext{
			NodeGPUType:   l.GPUType,
			JobGPUType:    jobGPUType,
			Alpha:         pol.Alpha,
			Decrement:     pol.Decrement,
			InitialCPU:    l.InitialCPU,
			InitialGPU:    l.InitialGPU,
			InitialBW:     l.InitialBW,
			AlreadyHosted: alreadyHosted,
			JobSpeedup:    msg.Speedup,
		}
		bid, err := domain.EvaluateUtility(pol.Utility, ctx, msg.NNCpu[0], msg.NNGpu[0], l.UpdatedBW, l.UpdatedCPU, l.UpdatedGPU)
		if err != nil {
			return false, err
		}

		entry.LayerBidAlready[bestPlacement] = true
		possible = removeInt(possible, bestPlacement)

		if !(bid > tmp.Bid[bestPlacement] || (bid == tmp.Bid[bestPlacement] && nodeID < tmp.AuctionID[bestPlacement])) {
			continue
		}

		gpu := msg.NNGpu[bestPlacement]
		cpu := msg.NNCpu[bestPlacement]
		nLayer := 1
		var claimed []int

		tmp.Bid[bestPlacement] = bid
		tmp.AuctionID[bestPlacement] = nodeID
		tmp.Timestamp[bestPlacement] = bidTime

		leftBound := bestPlacement
		rightBound := bestPlacement
		success := false

		for {
			if nLayer == msg.NLayerMax {
				success = true
				break
			}

			leftBound--
			rightBound++

			var leftScore, rightScore *float64
			if leftBound >= 0 && !entry.LayerBidAlready[leftBound] &&
				msg.NNGpu[leftBound] <= l.UpdatedGPU-gpu && msg.NNCpu[leftBound] <= l.UpdatedCPU-cpu {
				s := layerScore(msg.NNCpu[leftBound], msg.NNGpu[leftBound], msg.NNDataSize[leftBound])
				leftScore = &s
			}
			if rightBound < msg.NLayer && !entry.LayerBidAlready[rightBound] &&
				msg.NNGpu[rightBound] <= l.UpdatedGPU-gpu && msg.NNCpu[rightBound] <= l.UpdatedCPU-cpu {
				s := layerScore(msg.NNCpu[rightBound], msg.NNGpu[rightBound], msg.NNDataSize[rightBound])
				rightScore = &s
			}

			target := -1
			switch {
			case leftScore != nil && rightScore == nil:
				target = leftBound
				rightBound--
			case leftScore != nil && rightScore != nil && *leftScore >= *rightScore:
				target = leftBound
				rightBound--
			}
			switch {
			case rightScore != nil && leftScore == nil:
				target = rightBound
				leftBound++
			case leftScore != nil && rightScore != nil && *leftScore < *rightScore:
				target = rightBound
				leftBound++
			}

			if target < 0 {
				if nLayer >= msg.NLayerMin && nLayer <= msg.NLayerMax {
					success = true
				}
				break
			}

			bid2, err := domain.EvaluateUtility(pol.Utility, ctx, msg.NNCpu[0], msg.NNGpu[0], l.UpdatedBW, l.UpdatedCPU, l.UpdatedGPU)
			if err != nil {
				return false, err
			}
			if bid2 > tmp.Bid[target] || (bid2 == tmp.Bid[target] && nodeID < tmp.AuctionID[target]) {
				tmp.Bid[target] = bid2
				tmp.AuctionID[target] = nodeID
				tmp.Timestamp[target] = bidTime
				nLayer++
				claimed = append(claimed, target)
				cpu += msg.NNCpu[target]
				gpu += msg.NNGpu[target]
				continue
			}

			altTarget := -1
			if target == leftBound && rightScore != nil {
				altTarget = rightBound + 1
			}
			if target == rightBound && leftScore != nil {
				altTarget = leftBound - 1
			}
			if altTarget < 0 {
				if nLayer >= msg.NLayerMin && nLayer <= msg.NLayerMax {
					success = true
				}
				break
			}

			bid3, err := domain.EvaluateUtility(pol.Utility, ctx, msg.NNCpu[0], msg.NNGpu[0], l.UpdatedBW, l.UpdatedCPU, l.UpdatedGPU)
			if err != nil {
				return false, err
			}
			bid3 -= float64(nodeID) * 1e-9
			if bid3 > tmp.Bid[altTarget] || (bid3 == tmp.Bid[altTarget] && nodeID < tmp.AuctionID[altTarget]) {
				tmp.Bid[altTarget] = bid3
				tmp.AuctionID[altTarget] = nodeID
				tmp.Timestamp[altTarget] = bidTime
				nLayer++
				claimed = append(claimed, altTarget)
				cpu += msg.NNCpu[altTarget]
				gpu += msg.NNGpu[altTarget]
				continue
			}

			if nLayer >= msg.NLayerMin && nLayer <= msg.NLayerMax {
				success = true
			}
			break
		}

		if success {
			if err := l.Reserve(cpu, gpu); err != nil {
				return false, err
			}
			entry.AuctionID = tmp.AuctionID
			entry.Bid = tmp.Bid
			entry.Timestamp = tmp.Timestamp
			for _, li := range claimed {
				entry.LayerBidAlready[li] = true
			}
			book.Put(msg.JobID, *entry)
			return true, nil
		}
	}

	book.Put(msg.JobID, *entry)
	return false, nil
}

func removeInt(s []int, v int) []int {
	out := s[:0]
	for _, x := range s {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}

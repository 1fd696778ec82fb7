// Package deconfliction implements the pairwise consensus engine that
// reconciles an incoming job message's decision arrays (AuctionID, Bid,
// Timestamp) against a node's local bid-book view for the same job, one
// layer at a time.
//
// Grounded on the original node's deconfliction() method (node.py lines
// ~655-1061): a long branch tree keyed on the relation between the
// message sender k, the receiving node i, and the three-way comparison
// of (z_kj vs z_ij, y_kj vs y_ij, t_kj vs t_ij) per layer. It is kept as
// a literal branch-by-branch port rather than collapsed into a lookup
// table — the original's branches are not independent of one another
// (several share an index-advance side effect path), and flattening them
// risks silently changing behavior on the less-common branches that
// never executed in the original's own test corpus.
package deconfliction

import (
	"time"

	"github.com/plebiscito-net/plebiscito/internal/domain"
)

// Result reports what a single Run of the deconfliction loop produced:
// whether to rebroadcast, whether a RESET occurred (forcing a rebid
// round over the reset layers), and the resource deltas the caller's
// ledger.Ledger must apply.
type Result struct {
	Local           domain.BidBookEntry
	Rebroadcast     bool
	Reset           bool
	ResetIDs        []int
	ReleaseToClient bool
	// PreviousWinnerID is the node id this node should release bandwidth
	// toward in network-topology mode, or domain.Unclaimed if none.
	PreviousWinnerID int
	// CPUDelta/GPUDelta are signed deltas to apply to the node's ledger
	// availability: positive (a refund) when this node lost a layer it
	// used to hold, negative (a charge) when it newly gained one.
	CPUDelta float64
	GPUDelta float64
}

// Run reconciles msg (the incoming decision arrays, sender msg.EdgeID)
// against local (this node's current view for msg.JobID) and returns the
// new local view plus the bookkeeping the caller must act on.
//
// nodeID is this node's own id (i in the original). err is non-nil only
// for a genuine protocol violation: this node still owns a layer index
// it owned before, yet the layer immediately to its left changed owner
// without this node's own bid for that earlier layer ever being revised
// — a transition I3/I4 forbid.
func Run(nodeID int, msg domain.JobMessage, local domain.BidBookEntry) (Result, error) {
	k := msg.EdgeID
	i := nodeID

	tmpLocal := local.Clone()
	prevBet := local.Clone()

	res := Result{PreviousWinnerID: domain.Unclaimed}
	bidTime := time.Now()

	var resetIDs []int
	resetFlag := false

	index := 0
	for index < msg.NLayer {
		zKJ := msg.AuctionID[index]
		zIJ := tmpLocal.AuctionID[index]
		yKJ := msg.Bid[index]
		yIJ := tmpLocal.Bid[index]
		tKJ := msg.Timestamp[index]
		tIJ := tmpLocal.Timestamp[index]

		switch {
		case zKJ == k: // sender believes it is the winner
			switch {
			case zIJ == i: // we believe we are the winner
				switch {
				case yKJ > yIJ:
					res.Rebroadcast = true
					if index == 0 {
						res.ReleaseToClient = true
					} else if res.PreviousWinnerID == domain.Unclaimed {
						res.PreviousWinnerID = prevBet.AuctionID[index-1]
					}
					index = updateLocal(&tmpLocal, index, zKJ, yKJ, tKJ)
				case yKJ == yIJ && zKJ > zIJ:
					res.Rebroadcast = true
					if index == 0 {
						res.ReleaseToClient = true
					} else if res.PreviousWinnerID == domain.Unclaimed {
						res.PreviousWinnerID = prevBet.AuctionID[index-1]
					}
					index = updateLocal(&tmpLocal, index, zKJ, yKJ, tKJ)
				default: // y_kj < y_ij
					res.Rebroadcast = true
					index = updateLocal(&tmpLocal, index, zIJ, tmpLocal.Bid[index], bidTime)
				}

			case zIJ == k:
				if tKJ.After(tIJ) {
					index = updateLocal(&tmpLocal, index, zKJ, yKJ, tKJ)
					res.Rebroadcast = true
				} else {
					index++
				}

			case zIJ == domain.Unclaimed:
				index = updateLocal(&tmpLocal, index, zKJ, yKJ, tKJ)
				res.Rebroadcast = true

			case zIJ != i && zIJ != k:
				switch {
				case yKJ >= yIJ && !tKJ.Before(tIJ):
					index = updateLocal(&tmpLocal, index, zKJ, yKJ, tKJ)
					res.Rebroadcast = true
				case yKJ < yIJ && tKJ.Before(tIJ):
					index++
					res.Rebroadcast = true
				case yKJ == yIJ:
					res.Rebroadcast = true
					index++
				case yKJ < yIJ && !tKJ.Before(tIJ):
					index++
					res.Rebroadcast = true
				case yKJ > yIJ && tKJ.Before(tIJ):
					index = updateLocal(&tmpLocal, index, zKJ, yKJ, tKJ)
					res.Rebroadcast = true
				default:
					index++
					res.Rebroadcast = true
				}

			default:
				index++
			}

		case zKJ == i: // sender believes we are the winner
			switch {
			case zIJ == i:
				if tKJ.After(tIJ) {
					index = updateLocal(&tmpLocal, index, zKJ, yKJ, tKJ)
					res.Rebroadcast = true
				} else {
					index++
				}
			case zIJ == k:
				resetIDs = append(resetIDs, index)
				index++
				resetFlag = true
				res.Rebroadcast = true
			case zIJ == domain.Unclaimed:
				res.Rebroadcast = true
				index++
			default: // z_ij != i && z_ij != k
				res.Rebroadcast = true
				index++
			}

		case zKJ == domain.Unclaimed: // sender proposes no winner
			switch {
			case zIJ == i:
				res.Rebroadcast = true
				index++
			case zIJ == k:
				index = updateLocal(&tmpLocal, index, zKJ, yKJ, tKJ)
				res.Rebroadcast = true
			case zIJ == domain.Unclaimed:
				index++
			default: // z_ij != i && z_ij != k
				if tKJ.After(tIJ) {
					index = updateLocal(&tmpLocal, index, zKJ, yKJ, tKJ)
					res.Rebroadcast = true
				} else {
					index++
				}
			}

		default: // z_kj != i && z_kj != k — a third node wins, per sender
			switch {
			case zIJ == i:
				switch {
				case yKJ > yIJ:
					res.Rebroadcast = true
					if index == 0 {
						res.ReleaseToClient = true
					} else if res.PreviousWinnerID == domain.Unclaimed {
						res.PreviousWinnerID = prevBet.AuctionID[index-1]
					}
					index = updateLocal(&tmpLocal, index, zKJ, yKJ, tKJ)
				case yKJ == yIJ && zKJ > zIJ:
					res.Rebroadcast = true
					if index == 0 {
						res.ReleaseToClient = true
					} else if res.PreviousWinnerID == domain.Unclaimed {
						res.PreviousWinnerID = prevBet.AuctionID[index-1]
					}
					index = updateLocal(&tmpLocal, index, zKJ, yKJ, tKJ)
				default:
					res.Rebroadcast = true
					index = updateLocal(&tmpLocal, index, zIJ, tmpLocal.Bid[index], bidTime)
				}

			case zIJ == k:
				switch {
				case yKJ > yIJ:
					index = updateLocal(&tmpLocal, index, zKJ, yKJ, tKJ)
					res.Rebroadcast = true
				case tKJ.After(tIJ):
					index = updateLocal(&tmpLocal, index, zKJ, yKJ, tKJ)
					res.Rebroadcast = true
				default:
					index++
					res.Rebroadcast = true
				}

			case zIJ == zKJ:
				if tKJ.After(tIJ) {
					index = updateLocal(&tmpLocal, index, zKJ, yKJ, tKJ)
					res.Rebroadcast = true
				} else {
					index++
				}

			case zIJ == domain.Unclaimed:
				index = updateLocal(&tmpLocal, index, zKJ, yKJ, tKJ)
				res.Rebroadcast = true

			default: // z_ij != i, k, z_kj
				switch {
				case yKJ >= yIJ && !tKJ.Before(tIJ):
					index = updateLocal(&tmpLocal, index, zKJ, yKJ, tKJ)
					res.Rebroadcast = true
				case yKJ < yIJ && tKJ.Before(tIJ):
					res.Rebroadcast = true
					index++
				case yKJ < yIJ && tKJ.After(tIJ):
					index = updateLocal(&tmpLocal, index, zKJ, yKJ, tKJ)
					res.Rebroadcast = true
				case yKJ > yIJ && tKJ.Before(tIJ):
					index++
					res.Rebroadcast = true
				default:
					// Includes the yKJ < yIJ && tKJ == tIJ tie (#28): a
					// later timestamp is required to take over a higher
					// bid, so an equal timestamp keeps the current winner,
					// same as the zKJ == k sibling arm above.
					index++
				}
			}
		}
	}

	if resetFlag {
		stale := bidTime.Add(-24 * time.Hour)
		for _, idx := range resetIDs {
			tmpLocal.AuctionID[idx] = domain.Unclaimed
			tmpLocal.Bid[idx] = domain.NegInf()
			tmpLocal.Timestamp[idx] = stale
		}
		res.Local = tmpLocal
		res.Reset = true
		res.ResetIDs = resetIDs
		return res, nil
	}

	cpu, gpu := 0.0, 0.0
	first1, first2 := false, false
	for idx := 0; idx < msg.NLayer; idx++ {
		switch {
		case tmpLocal.AuctionID[idx] == i && prevBet.AuctionID[idx] == i:
			if idx != 0 && tmpLocal.AuctionID[idx-1] != prevBet.AuctionID[idx-1] {
				return res, &domain.ProtocolViolation{
					NodeID: nodeID,
					JobID:  msg.JobID,
					Layer:  idx,
					Reason: "node retained this layer but lost the adjacent one without a local bid revision",
				}
			}
		case tmpLocal.AuctionID[idx] == i && prevBet.AuctionID[idx] != i:
			cpu -= msg.NNCpu[idx]
			gpu -= msg.NNGpu[idx]
			first1 = true
		case tmpLocal.AuctionID[idx] != i && prevBet.AuctionID[idx] == i:
			cpu += msg.NNCpu[idx]
			gpu += msg.NNGpu[idx]
			first2 = true
		}
	}
	_ = first1
	_ = first2

	res.CPUDelta = cpu
	res.GPUDelta = gpu
	res.Local = tmpLocal
	return res, nil
}

func updateLocal(tmp *domain.BidBookEntry, index, id int, bid float64, ts time.Time) int {
	tmp.AuctionID[index] = id
	tmp.Bid[index] = bid
	tmp.Timestamp[index] = ts
	return index + 1
}

// Package ledger implements the per-node resource ledger: mutable
// accounting of available CPU, GPU, and (FGD only) individual GPU slots.
// Grounded on the original node's initial_cpu/updated_cpu bookkeeping and
// restructured as an owned-by-one-goroutine object, the same shape as
// internal/infra/resource.Governor in the teacher repo.
package ledger

import (
	"fmt"
	"math"

	"github.com/plebiscito-net/plebiscito/internal/domain"
)

// Ledger is one node's resource accounting. It is never shared across
// goroutines — each node.Worker owns exactly one.
type Ledger struct {
	GPUType domain.GPUType

	InitialCPU float64
	InitialGPU float64
	InitialBW  float64

	UpdatedCPU float64
	UpdatedGPU float64
	UpdatedBW  float64

	// IndividualGPU is non-nil only under the FGD utility: per-slot
	// fractional GPU availability, each initially 1.0.
	IndividualGPU []float64

	// AllocatedOn maps job_id -> chosen GPU slot index per layer, FGD only.
	AllocatedOn map[string][]int

	// JobHosted records jobs this node has previously hosted and released,
	// preserved across a job's lifetime so rebidding's affinity check
	// (§4.4 "job_id ∈ job_hosted") can still fire after a release.
	JobHosted map[string]bool
}

// New constructs a Ledger provisioned per the GPU catalog's capacity table
// for gpuType. bw is the node's assumed bandwidth capacity (an external
// collaborator concern in network-topology mode — see domain.BandwidthLedger
// — but still tracked locally as a default when no such collaborator is
// wired).
func New(gpuType domain.GPUType, bw float64, fgd bool) (*Ledger, error) {
	cpu, gpu, err := domain.ComputeResources(gpuType)
	if err != nil {
		return nil, err
	}
	l := &Ledger{
		GPUType:     gpuType,
		InitialCPU:  float64(cpu),
		InitialGPU:  float64(gpu),
		InitialBW:   bw,
		UpdatedCPU:  float64(cpu),
		UpdatedGPU:  float64(gpu),
		UpdatedBW:   bw,
		JobHosted:   make(map[string]bool),
		AllocatedOn: make(map[string][]int),
	}
	if fgd {
		l.IndividualGPU = make([]float64, gpu)
		for i := range l.IndividualGPU {
			l.IndividualGPU[i] = 1.0
		}
	}
	return l, nil
}

// AvailCPU returns currently available CPU.
func (l *Ledger) AvailCPU() float64 { return l.UpdatedCPU }

// AvailGPU returns currently available GPU.
func (l *Ledger) AvailGPU() float64 { return l.UpdatedGPU }

// AvailBW returns currently available bandwidth (non-net-topology mode).
func (l *Ledger) AvailBW() float64 { return l.UpdatedBW }

// UtilRate returns the node's combined CPU/GPU utilization, rounded; for a
// node with no GPU at all, its CPU utilization alone, rounded.
func (l *Ledger) UtilRate() float64 {
	cpuUtil := 1 - l.UpdatedCPU/nonZero(l.InitialCPU)
	if l.InitialGPU <= 0 {
		return round(cpuUtil)
	}
	gpuUtil := 1 - l.UpdatedGPU/l.InitialGPU
	return round((gpuUtil + cpuUtil) / 2)
}

// Reserve deducts cpu/gpu from availability. Returns an error rather than
// going negative — callers are expected to have already checked
// feasibility, so this is a defensive boundary, not a retry path.
func (l *Ledger) Reserve(cpu, gpu float64) error {
	if cpu > l.UpdatedCPU || gpu > l.UpdatedGPU {
		return fmt.Errorf("ledger: reserve(cpu=%v, gpu=%v) exceeds availability (cpu=%v, gpu=%v)", cpu, gpu, l.UpdatedCPU, l.UpdatedGPU)
	}
	l.UpdatedCPU -= cpu
	l.UpdatedGPU -= gpu
	return nil
}

// Release restores cpu/gpu to availability, clamped at the node's initial
// capacity — invariant I1.
func (l *Ledger) Release(cpu, gpu float64) {
	l.UpdatedCPU = clamp(l.UpdatedCPU+cpu, 0, l.InitialCPU)
	l.UpdatedGPU = clamp(l.UpdatedGPU+gpu, 0, l.InitialGPU)
}

// ApplyDelta applies a signed (cpu, gpu) adjustment directly — used by
// the deconfliction commit path, where the sign of the delta already
// encodes gain vs. loss of a layer. Clamped per invariant I1, same as
// Release.
func (l *Ledger) ApplyDelta(cpuDelta, gpuDelta float64) {
	l.UpdatedCPU = clamp(l.UpdatedCPU+cpuDelta, 0, l.InitialCPU)
	l.UpdatedGPU = clamp(l.UpdatedGPU+gpuDelta, 0, l.InitialGPU)
}

// quadrant classifies a candidate workload slice against a node's GPU
// slot occupancy, per the fragmentation-minimizing placement policy (FGD).
type quadrant int

const (
	quadrantOther quadrant = iota
	quadrantQ124
	quadrantQ3
)

// computeU is the "unallocated capacity" figure FGD fragmentation scoring
// is relative to: the count of fully-free slots plus the single largest
// partially-free slot.
func computeU(nodeGPUs []float64) float64 {
	fullyUnallocated := 0.0
	maxPartial := 0.0
	for _, g := range nodeGPUs {
		if g == 1 {
			fullyUnallocated++
		} else if g > maxPartial {
			maxPartial = g
		}
	}
	return fullyUnallocated + maxPartial
}

// computeQuadrant classifies a single layer's (cpu, gpu) demand against
// the node's current CPU availability and GPU slack u.
func (l *Ledger) computeQuadrant(cpu, gpu, u float64) quadrant {
	if gpu == 0 {
		return quadrantOther
	}
	if cpu > l.UpdatedCPU || gpu > u {
		return quadrantQ124
	}
	return quadrantQ3
}

// fragmentation scores how much GPU slack a workload would leave
// fragmented (as opposed to cleanly consumed) if placed against nodeGPUs,
// the candidate post-placement per-slot GPU occupancy.
func (l *Ledger) fragmentation(workloadCPU, workloadGPU, nodeGPUs []float64) float64 {
	u := computeU(nodeGPUs)
	f := 0.0
	for i := range workloadCPU {
		switch l.computeQuadrant(workloadCPU[i], workloadGPU[i], u) {
		case quadrantQ124:
			for _, g := range nodeGPUs {
				f += g
			}
		case quadrantQ3:
			min1 := workloadGPU[i]
			if min1 > 1 {
				min1 = 1
			}
			for _, g := range nodeGPUs {
				if g < min1 {
					f += g
				}
			}
		default:
			for _, g := range nodeGPUs {
				f += g
			}
		}
	}
	return f
}

// BestSlot finds the individual GPU slot whose occupation by a layer
// demanding gpuDemand would cause the least fragmentation increase,
// evaluated against the whole workload's (cpu, gpu) profile for context.
// Returns ok=false if no slot currently holds enough free capacity.
func (l *Ledger) BestSlot(workloadCPU, workloadGPU []float64, layer int) (slot int, score float64, ok bool) {
	gpuDemand := workloadGPU[layer]
	nodeGPUs := append([]float64(nil), l.IndividualGPU...)

	bestFrag := math.Inf(1)
	bestID := -1
	for j, avail := range nodeGPUs {
		if avail < gpuDemand {
			continue
		}
		before := l.fragmentation(workloadCPU, workloadGPU, nodeGPUs)
		nodeGPUs[j] -= gpuDemand
		after := l.fragmentation(workloadCPU, workloadGPU, nodeGPUs)
		frag := after - before
		nodeGPUs[j] += gpuDemand

		if frag < bestFrag {
			bestFrag = frag
			bestID = j
		}
	}
	if bestID < 0 {
		return -1, 0, false
	}
	return bestID, bestFrag, true
}

// ReserveSlot occupies fraction of individual GPU slot idx and deducts cpu
// and the job's total GPU demand (totalGPU, summed across every layer the
// job carries) from the node's aggregate pools. FGD-only. node.py:429 deducts
// self.updated_gpu per layer in the same loop that reserves the slot; here
// the caller sums that per-layer demand into totalGPU up front.
func (l *Ledger) ReserveSlot(idx int, cpu, gpuFraction, totalGPU float64) error {
	if idx < 0 || idx >= len(l.IndividualGPU) {
		return fmt.Errorf("ledger: slot %d out of range [0,%d)", idx, len(l.IndividualGPU))
	}
	if gpuFraction > l.IndividualGPU[idx] || cpu > l.UpdatedCPU || totalGPU > l.UpdatedGPU {
		return fmt.Errorf("ledger: reserveSlot(idx=%d, cpu=%v, gpu=%v, totalGPU=%v) exceeds availability", idx, cpu, gpuFraction, totalGPU)
	}
	l.IndividualGPU[idx] -= gpuFraction
	l.UpdatedCPU -= cpu
	l.UpdatedGPU -= totalGPU
	return nil
}

// ReleaseSlot restores fraction to individual GPU slot idx and the matching
// cpu and totalGPU to the aggregate pools, clamped per invariant I1. FGD-only.
func (l *Ledger) ReleaseSlot(idx int, cpu, gpuFraction, totalGPU float64) {
	if idx < 0 || idx >= len(l.IndividualGPU) {
		return
	}
	l.IndividualGPU[idx] = clamp(l.IndividualGPU[idx]+gpuFraction, 0, 1)
	l.UpdatedCPU = clamp(l.UpdatedCPU+cpu, 0, l.InitialCPU)
	l.UpdatedGPU = clamp(l.UpdatedGPU+totalGPU, 0, l.InitialGPU)
}

func nonZero(v float64) float64 {
	if v == 0 {
		return 1
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round(v float64) float64 {
	if v >= 0 {
		return float64(int(v + 0.5))
	}
	return float64(int(v - 0.5))
}

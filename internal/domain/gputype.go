package domain

import "math/rand"

// GPUType is a closed enumeration of device classes a node or a job may
// declare. Order matters: the zero value MISC is the least capable class
// and A100 the most capable — can_host and speedup are both defined over
// this total order.
type GPUType int

const (
	MISC GPUType = iota
	T4
	P100
	V100
	A100

	numGPUTypes // sentinel, not a valid class
)

func (t GPUType) String() string {
	switch t {
	case MISC:
		return "MISC"
	case T4:
		return "T4"
	case P100:
		return "P100"
	case V100:
		return "V100"
	case A100:
		return "A100"
	default:
		return "UNKNOWN"
	}
}

func (t GPUType) valid() bool { return t >= MISC && t < numGPUTypes }

// speedupTable[host][job] is the multiplicative performance factor a host
// of the row class offers a job requesting the column class. A zero entry
// means the host cannot serve that job class at all.
var speedupTable = [numGPUTypes][numGPUTypes]float64{
	MISC: {MISC: 1.0, T4: 0, P100: 0, V100: 0, A100: 0},
	T4:   {MISC: 1.2, T4: 1.0, P100: 0, V100: 0, A100: 0},
	P100: {MISC: 1.5, T4: 1.3, P100: 1.0, V100: 0, A100: 0},
	V100: {MISC: 2.0, T4: 1.8, P100: 1.4, V100: 1.0, A100: 0},
	A100: {MISC: 3.0, T4: 2.6, P100: 2.1, V100: 1.5, A100: 1.0},
}

// computeResources[class] is the (cpu, gpu) capacity a node provisioned
// with that GPU class is assumed to carry.
var computeResources = [numGPUTypes][2]int{
	MISC: {4, 0},
	T4:   {8, 1},
	P100: {16, 2},
	V100: {32, 4},
	A100: {64, 8},
}

// CanHost reports whether a node of class host is at least as capable as
// a job requesting class job on the fixed partial order.
func CanHost(host, job GPUType) bool {
	if !host.valid() || !job.valid() {
		return false
	}
	return speedupTable[host][job] > 0
}

// Speedup returns the non-negative multiplicative performance factor a host
// of class host offers a job of class job. Speedup(h,j) == 0 iff !CanHost(h,j).
func Speedup(host, job GPUType) (float64, error) {
	if !host.valid() || !job.valid() {
		return 0, ErrInvalidGPUClass
	}
	return speedupTable[host][job], nil
}

// mismatchLevel is the table-defined "k" in CorrectiveFactor: how many
// classes better the host is than what the job asked for. Zero means an
// exact match.
func mismatchLevel(host, job GPUType) float64 {
	d := int(host) - int(job)
	if d < 0 {
		d = -d
	}
	return float64(d)
}

// CorrectiveFactor modulates a bid slightly to prefer better-matched
// hardware: corrective_factor(h,j,d) = 1 - k*d, where k is the table-defined
// mismatch level between the two classes.
func CorrectiveFactor(host, job GPUType, decrement float64) (float64, error) {
	if !host.valid() || !job.valid() {
		return 0, ErrInvalidGPUClass
	}
	k := mismatchLevel(host, job)
	return 1 - k*decrement, nil
}

// ComputeResources returns the (cpu, gpu) capacity pair a node provisioned
// with GPU class t is assumed to carry.
func ComputeResources(t GPUType) (cpu, gpu int, err error) {
	if !t.valid() {
		return 0, 0, ErrInvalidGPUClass
	}
	r := computeResources[t]
	return r[0], r[1], nil
}

// RandomGPUType draws a GPU class uniformly at random, for fleet generation.
func RandomGPUType(rng *rand.Rand) GPUType {
	return GPUType(rng.Intn(int(numGPUTypes)))
}

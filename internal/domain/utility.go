package domain

import "math"

// affinityBid is the finite sentinel utility_function returns for a node
// that already hosts the job at the exact requested speedup (node.py:186).
// It must be finite, not -Inf, so the node's own re-bid still beats an
// unclaimed layer's -Inf floor in the bid update's tie-break comparison.
const affinityBid = -999999999

// Utility selects the scalar formula a node uses to score its available
// resources when bidding on a layer. FGD is handled entirely outside
// EvaluateUtility — see internal/bidding's FGD variant.
type Utility int

const (
	LGF Utility = iota
	SGF
	SPEEDUP
	SPEEDUPV2
	UTIL
	STEFANO
	ALPHA_GPU_CPU
	ALPHA_GPU_BW
	FGD
)

func (u Utility) String() string {
	switch u {
	case LGF:
		return "LGF"
	case SGF:
		return "SGF"
	case SPEEDUP:
		return "SPEEDUP"
	case SPEEDUPV2:
		return "SPEEDUPV2"
	case UTIL:
		return "UTIL"
	case STEFANO:
		return "STEFANO"
	case ALPHA_GPU_CPU:
		return "ALPHA_GPU_CPU"
	case ALPHA_GPU_BW:
		return "ALPHA_GPU_BW"
	case FGD:
		return "FGD"
	default:
		return "UNKNOWN"
	}
}

// UtilityContext carries the node- and job-scoped parameters
// EvaluateUtility needs beyond the three availability scalars: the node's
// own GPU class, its alpha/decrement tuning knobs, its initial capacity
// (for ratio-based formulas), and whether the job being bid on is already
// hosted here at the exact requested speedup (affinity short-circuit).
type UtilityContext struct {
	NodeGPUType   GPUType
	JobGPUType    GPUType
	Alpha         float64
	Decrement     float64
	InitialCPU    float64
	InitialGPU    float64
	InitialBW     float64
	AlreadyHosted bool // job_id in job_hosted AND speedup matches exactly
	JobSpeedup    float64
}

// stefanoKernel is the Gaussian-style kernel the STEFANO utility scores
// the node's CPU/GPU ratio against the job's requested ratio with.
func stefanoKernel(x, alpha, beta float64) float64 {
	if beta == 0 && x == 0 {
		return 1
	}
	if beta == 0 && x != 0 {
		return 0
	}
	return math.Exp(-math.Pow((alpha/100)*(x-beta), 2))
}

// EvaluateUtility scores a candidate placement of the node's currently
// available bandwidth/CPU/GPU under the node's configured Utility formula.
// Mirrors the original utility_function dispatch one-for-one, including
// its pre-dispatch affinity short-circuit (a node that already hosts this
// exact job at the exact requested speedup scores the finite affinityBid,
// low enough to lose to any real bid but above an unclaimed layer's -Inf).
func EvaluateUtility(u Utility, ctx UtilityContext, jobCPU0, jobGPU0 float64, availBW, availCPU, availGPU float64) (float64, error) {
	if ctx.AlreadyHosted {
		// Finite, not -Inf: an unclaimed layer's tie-break bid starts at
		// -Inf, so the hosting node's bid must beat that floor to reclaim
		// its own layers on a rebid (bid > tmp.Bid[l] in the bid update).
		// -Inf here would make it lose that comparison every time.
		return affinityBid, nil
	}

	switch u {
	case STEFANO:
		x := 0.0
		if jobGPU0 != 0 {
			x = jobCPU0 / jobGPU0
		}
		beta := 0.0
		if availGPU != 0 {
			beta = availCPU / availGPU
		}
		alpha := ctx.Alpha
		if alpha == 0 {
			// Open question (see SPEC_FULL.md §9): unclear whether this
			// substitution is a deliberate safety floor against a
			// division-shaped singularity or a transcription bug in the
			// original. Preserved verbatim rather than silently dropped.
			alpha = 0.01
		}
		return stefanoKernel(x, alpha, beta), nil

	case ALPHA_GPU_CPU:
		return ctx.Alpha*(availBW/nonZero(ctx.InitialBW)) + (1-ctx.Alpha)*(availCPU/nonZero(ctx.InitialCPU)), nil

	case ALPHA_GPU_BW:
		return ctx.Alpha*(availGPU/nonZero(ctx.InitialGPU)) + (1-ctx.Alpha)*(availBW/nonZero(ctx.InitialBW)), nil

	case LGF:
		cf, err := CorrectiveFactor(ctx.NodeGPUType, ctx.JobGPUType, ctx.Decrement)
		if err != nil {
			return 0, err
		}
		return availGPU * cf, nil

	case SGF:
		cf, err := CorrectiveFactor(ctx.NodeGPUType, ctx.JobGPUType, ctx.Decrement)
		if err != nil {
			return 0, err
		}
		return (ctx.InitialGPU - availGPU) * cf, nil

	case UTIL:
		return utilRate(ctx.InitialCPU, availCPU, ctx.InitialGPU, availGPU), nil

	case SPEEDUP:
		sp, err := Speedup(ctx.NodeGPUType, ctx.JobGPUType)
		if err != nil {
			return 0, err
		}
		return sp * availGPU, nil

	case SPEEDUPV2:
		sp, err := Speedup(ctx.NodeGPUType, ctx.JobGPUType)
		if err != nil {
			return 0, err
		}
		return sp * (availGPU / nonZero(ctx.InitialGPU)), nil

	default:
		return 0, ErrInvalidGPUClass
	}
}

// alphaGPUCPUByGPURatio is the "GPU vs CPU" variant of ALPHA_GPU_CPU that
// the original source defines as a *second* `elif self.utility ==
// Utility.ALPHA_GPU_CPU` branch immediately below the first. Because both
// branches test the same enum value, the first always wins and this one
// never runs. Per SPEC_FULL.md §9 Open Questions this is preserved
// unreachable rather than silently merged or deleted — do not wire this
// function in until the ambiguity is resolved upstream.
func alphaGPUCPUByGPURatio(ctx UtilityContext, availGPU, availCPU float64) float64 { //nolint:unused
	return ctx.Alpha*(availGPU/nonZero(ctx.InitialGPU)) + (1-ctx.Alpha)*(availCPU/nonZero(ctx.InitialCPU))
}

func nonZero(v float64) float64 {
	if v == 0 {
		return 1
	}
	return v
}

// utilRate reports the node's combined CPU/GPU utilization in [0,1],
// rounded to the nearest integer the way the original's util_rate does
// (it is a crude two-level signal, not a continuous one).
func utilRate(initialCPU, availCPU, initialGPU, availGPU float64) float64 {
	cpuUtil := 1 - availCPU/nonZero(initialCPU)
	if initialGPU <= 0 {
		return math.Round(cpuUtil)
	}
	gpuUtil := 1 - availGPU/initialGPU
	return math.Round((gpuUtil + cpuUtil) / 2)
}

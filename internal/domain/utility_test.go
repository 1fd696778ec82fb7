package domain

import (
	"math"
	"testing"
)

func TestEvaluateUtilityAffinityShortCircuit(t *testing.T) {
	ctx := UtilityContext{AlreadyHosted: true}
	got, err := EvaluateUtility(LGF, ctx, 1, 1, 0, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got != affinityBid {
		t.Errorf("EvaluateUtility(already hosted) = %v, want affinityBid (%v)", got, float64(affinityBid))
	}
}

func TestEvaluateUtilityLGFScalesWithCorrectiveFactor(t *testing.T) {
	ctx := UtilityContext{NodeGPUType: A100, JobGPUType: A100, InitialGPU: 8, InitialCPU: 64}
	got, err := EvaluateUtility(LGF, ctx, 1, 1, 0, 10, 5)
	if err != nil {
		t.Fatal(err)
	}
	if got != 5 {
		t.Errorf("EvaluateUtility(LGF, exact match) = %v, want 5 (availGPU * 1.0)", got)
	}
}

func TestEvaluateUtilitySGFIsInverseOfLGF(t *testing.T) {
	ctx := UtilityContext{NodeGPUType: A100, JobGPUType: A100, InitialGPU: 8, InitialCPU: 64}
	got, err := EvaluateUtility(SGF, ctx, 1, 1, 0, 10, 5)
	if err != nil {
		t.Fatal(err)
	}
	if got != 3 {
		t.Errorf("EvaluateUtility(SGF) = %v, want 3 ((8-5) * 1.0)", got)
	}
}

func TestEvaluateUtilityStefanoAlphaZeroFloor(t *testing.T) {
	ctx := UtilityContext{Alpha: 0}
	got, err := EvaluateUtility(STEFANO, ctx, 2, 2, 0, 4, 1)
	if err != nil {
		t.Fatal(err)
	}
	if got <= 0 || got > 1 {
		t.Errorf("EvaluateUtility(STEFANO, alpha=0) = %v, want value in (0,1]", got)
	}
}

func TestEvaluateUtilitySpeedupZeroWhenIncapable(t *testing.T) {
	ctx := UtilityContext{NodeGPUType: MISC, JobGPUType: A100}
	got, err := EvaluateUtility(SPEEDUP, ctx, 1, 1, 0, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if got != 0 {
		t.Errorf("EvaluateUtility(SPEEDUP, incapable host) = %v, want 0", got)
	}
}

func TestUtilRateNoGPU(t *testing.T) {
	got := utilRate(10, 5, 0, 0)
	if got != math.Round(0.5) {
		t.Errorf("utilRate(no gpu) = %v, want 1 (round(0.5) away from zero)", got)
	}
}

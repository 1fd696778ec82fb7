package reputation

import (
	"math"
	"testing"
	"time"
)

func newTestTracker(t *testing.T) *Tracker {
	t.Helper()
	tr := NewTracker(DefaultTrackerConfig())
	tr.now = func() time.Time {
		return time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	}
	return tr
}

func almostEqual(a, b, epsilon float64) bool {
	return math.Abs(a-b) < epsilon
}

func TestRegisterSetsNeutralDefaults(t *testing.T) {
	tr := newTestTracker(t)

	rep := tr.Register(0)
	if rep.NodeID != 0 {
		t.Errorf("NodeID = %d, want 0", rep.NodeID)
	}
	if rep.Components.Reliability != DefaultReputation {
		t.Errorf("Reliability = %f, want %f", rep.Components.Reliability, DefaultReputation)
	}
	if rep.Components.Longevity != 0 {
		t.Errorf("Longevity = %f, want 0", rep.Components.Longevity)
	}
	if rep.JobCount != 0 {
		t.Errorf("JobCount = %d, want 0", rep.JobCount)
	}
}

func TestRegisterIsIdempotent(t *testing.T) {
	tr := newTestTracker(t)
	first := tr.Register(1)
	second := tr.Register(1)
	if first != second {
		t.Error("Register should return the existing node, not a new one")
	}
}

func TestRecordJobOnUnregisteredNodeErrors(t *testing.T) {
	tr := newTestTracker(t)
	if err := tr.RecordJob(99, JobOutcome{KeptPlacement: true}); err == nil {
		t.Error("RecordJob on an unregistered node should error")
	}
}

func TestRecordJobMovesReliabilityTowardSignal(t *testing.T) {
	tr := newTestTracker(t)
	tr.Register(0)

	before := tr.Get(0).Components.Reliability
	if err := tr.RecordJob(0, JobOutcome{KeptPlacement: true, Agreed: true}); err != nil {
		t.Fatalf("RecordJob() error: %v", err)
	}
	after := tr.Get(0).Components.Reliability
	if after <= before {
		t.Errorf("reliability should rise after a kept placement: before=%f after=%f", before, after)
	}

	// Repeated failures should eventually pull it back down.
	for i := 0; i < 20; i++ {
		tr.RecordJob(0, JobOutcome{KeptPlacement: false, Agreed: false})
	}
	if tr.Get(0).Components.Reliability >= after {
		t.Error("reliability should fall after repeated lost placements")
	}
}

func TestPenaltyLowersOverallScore(t *testing.T) {
	tr := newTestTracker(t)
	tr.Register(0)

	before := tr.Get(0).Overall()
	if err := tr.RecordPenalty(0, PenaltyEvent{Severity: 1.0, Reason: "protocol violation"}); err != nil {
		t.Fatalf("RecordPenalty() error: %v", err)
	}
	after := tr.Get(0).Overall()
	if after >= before {
		t.Errorf("overall should fall after a penalty: before=%f after=%f", before, after)
	}
}

func TestTrustTierThresholds(t *testing.T) {
	rep := &NodeReputation{Components: Components{
		Reliability: 1, Agreement: 1, Availability: 1, Promptness: 1, Longevity: 1,
	}}
	if tier := rep.TrustTier(); tier != "EXCELLENT" {
		t.Errorf("TrustTier() = %q, want EXCELLENT", tier)
	}

	rep = &NodeReputation{Components: Components{
		Reliability: 0, Agreement: 0, Availability: 0, Promptness: 0, Longevity: 0,
	}}
	if tier := rep.TrustTier(); tier != "POOR" {
		t.Errorf("TrustTier() = %q, want POOR", tier)
	}
}

func TestTopNodesSortsDescending(t *testing.T) {
	tr := newTestTracker(t)
	tr.Register(0)
	tr.Register(1)
	tr.Register(2)

	tr.RecordJob(1, JobOutcome{KeptPlacement: true, Agreed: true})
	tr.RecordPenalty(2, PenaltyEvent{Severity: 1.0})

	top := tr.TopNodes(0)
	if len(top) != 3 {
		t.Fatalf("len(TopNodes) = %d, want 3", len(top))
	}
	for i := 1; i < len(top); i++ {
		if top[i].Overall() > top[i-1].Overall() {
			t.Errorf("TopNodes not sorted descending at index %d", i)
		}
	}
	if top[0].NodeID != 1 {
		t.Errorf("top node = %d, want 1 (the node with a kept placement)", top[0].NodeID)
	}
}

func TestApplyDecaySkipsRecentlyActiveNodes(t *testing.T) {
	tr := newTestTracker(t)
	tr.Register(0)
	if decayed := tr.ApplyDecay(); decayed != 0 {
		t.Errorf("ApplyDecay() = %d, want 0 for a freshly-registered node", decayed)
	}
}

func TestApplyDecayReducesInactiveNodes(t *testing.T) {
	tr := newTestTracker(t)
	rep := tr.Register(0)
	rep.Components.Reliability = 1.0

	later := tr.now().Add(15 * 24 * time.Hour)
	tr.now = func() time.Time { return later }

	decayed := tr.ApplyDecay()
	if decayed != 1 {
		t.Fatalf("ApplyDecay() = %d, want 1", decayed)
	}
	if tr.Get(0).Components.Reliability >= 1.0 {
		t.Error("reliability should decay below 1.0 for a two-week-inactive node")
	}
}

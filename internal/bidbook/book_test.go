package bidbook

import (
	"math"
	"testing"

	"github.com/plebiscito-net/plebiscito/internal/domain"
)

func testMsg() domain.JobMessage {
	return domain.JobMessage{
		JobID:  "job-1",
		NLayer: 3,
		NNCpu:  []float64{1, 1, 1},
		NNGpu:  []float64{1, 1, 1},
	}
}

func TestInitNullSeedsUnclaimedLayers(t *testing.T) {
	b := New()
	e := b.InitNull(testMsg())
	if len(e.AuctionID) != 3 {
		t.Fatalf("len(AuctionID) = %d, want 3", len(e.AuctionID))
	}
	for i, a := range e.AuctionID {
		if a != domain.Unclaimed {
			t.Errorf("AuctionID[%d] = %d, want Unclaimed", i, a)
		}
		if !math.IsInf(e.Bid[i], -1) {
			t.Errorf("Bid[%d] = %v, want -Inf", i, e.Bid[i])
		}
	}
}

func TestInitNullIsIdempotent(t *testing.T) {
	b := New()
	first := b.InitNull(testMsg())
	first.AuctionID[0] = 5
	second := b.InitNull(testMsg())
	if second.AuctionID[0] != 5 {
		t.Error("InitNull should not clobber an existing entry")
	}
}

func TestSnapshotIsIndependentCopy(t *testing.T) {
	b := New()
	b.InitNull(testMsg())
	snap, ok := b.Snapshot("job-1")
	if !ok {
		t.Fatal("Snapshot should find job-1")
	}
	snap.AuctionID[0] = 42
	if b.Get("job-1").AuctionID[0] == 42 {
		t.Error("Snapshot leaked a shared backing array")
	}
}

func TestSnapshotUnknownJob(t *testing.T) {
	b := New()
	if _, ok := b.Snapshot("nope"); ok {
		t.Error("Snapshot(unknown) should report ok=false")
	}
}

func TestPutReplacesEntry(t *testing.T) {
	b := New()
	e := b.InitNull(testMsg())
	updated := e.Clone()
	updated.AuctionID[0] = 7
	b.Put("job-1", updated)
	if b.Get("job-1").AuctionID[0] != 7 {
		t.Error("Put should replace the stored entry")
	}
}

func TestDeleteForgetsJob(t *testing.T) {
	b := New()
	b.InitNull(testMsg())
	b.Delete("job-1")
	if b.Has("job-1") {
		t.Error("Delete should remove the job from the book")
	}
}

func TestJobIDsAndLen(t *testing.T) {
	b := New()
	b.InitNull(testMsg())
	msg2 := testMsg()
	msg2.JobID = "job-2"
	b.InitNull(msg2)
	if b.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", b.Len())
	}
	ids := b.JobIDs()
	if len(ids) != 2 {
		t.Fatalf("len(JobIDs()) = %d, want 2", len(ids))
	}
}

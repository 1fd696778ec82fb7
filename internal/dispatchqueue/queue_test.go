package dispatchqueue

import (
	"testing"
	"time"

	"github.com/plebiscito-net/plebiscito/internal/domain"
)

func jobWithDuration(id string, d time.Duration) domain.JobSpec {
	return domain.JobSpec{JobID: id, Duration: d}
}

func TestPopReturnsShortestFirst(t *testing.T) {
	q := New(DefaultConfig())
	base := time.Now()
	q.Push(jobWithDuration("long", time.Hour), base)
	q.Push(jobWithDuration("short", time.Minute), base)
	q.Push(jobWithDuration("medium", 10*time.Minute), base)

	order := []string{}
	for {
		item, ok := q.Pop()
		if !ok {
			break
		}
		order = append(order, item.Spec.JobID)
	}

	want := []string{"short", "medium", "long"}
	for i, id := range want {
		if order[i] != id {
			t.Fatalf("order[%d] = %q, want %q (full order: %v)", i, order[i], id, order)
		}
	}
}

func TestPopOnEmptyQueueReturnsFalse(t *testing.T) {
	q := New(DefaultConfig())
	if _, ok := q.Pop(); ok {
		t.Error("Pop() on empty queue should return false")
	}
}

func TestLenTracksPushAndPop(t *testing.T) {
	q := New(DefaultConfig())
	if q.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", q.Len())
	}
	q.Push(jobWithDuration("a", time.Second), time.Now())
	q.Push(jobWithDuration("b", time.Second), time.Now())
	if q.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", q.Len())
	}
	q.Pop()
	if q.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", q.Len())
	}
}

func TestStarvationBoostSurfacesOldLongJob(t *testing.T) {
	cfg := Config{BoostInterval: time.Minute, MaxBoost: 10}
	q := New(cfg)

	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	q.now = func() time.Time { return fixed }

	// A long job submitted long enough ago to have been boosted past a
	// freshly-submitted short one.
	q.Push(jobWithDuration("old-long", 120*time.Minute), fixed.Add(-10*time.Minute))
	q.Push(jobWithDuration("new-short", time.Minute), fixed)

	item, ok := q.Pop()
	if !ok {
		t.Fatal("Pop() returned false")
	}
	if item.Spec.JobID != "old-long" {
		t.Errorf("Pop() = %q, want old-long to have been boosted ahead of new-short", item.Spec.JobID)
	}
}

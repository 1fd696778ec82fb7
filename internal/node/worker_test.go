package node

import (
	"context"
	"testing"
	"time"

	"github.com/plebiscito-net/plebiscito/internal/bidding"
	"github.com/plebiscito-net/plebiscito/internal/domain"
	"github.com/plebiscito-net/plebiscito/internal/ledger"
	"github.com/plebiscito-net/plebiscito/internal/topology"
)

func newTestWorker(t *testing.T, id int, gpuType domain.GPUType, adj *topology.Adjacency, sent *[]domain.JobMessage) *Worker {
	t.Helper()
	l, err := ledger.New(gpuType, 1000, false)
	if err != nil {
		t.Fatal(err)
	}
	send := func(to int, msg domain.JobMessage) {
		if sent != nil {
			*sent = append(*sent, msg)
		}
	}
	return New(Config{ID: id, GPUType: gpuType, Policy: bidding.Policy{Utility: domain.LGF}}, l, adj, send, nil)
}

func singleLayerJob(jobID string) domain.JobMessage {
	return domain.JobMessage{
		JobID:      jobID,
		NLayer:     1,
		NLayerMin:  1,
		NLayerMax:  1,
		NNCpu:      []float64{1},
		NNGpu:      []float64{1},
		NNDataSize: []float64{0},
		GPUType:    domain.MISC,
		Increase:   true,
		EdgeID:     99,
	}
}

func TestWorkerFirstSightingBidsAndAnnounces(t *testing.T) {
	adj := topology.NewComplete(2)
	var sent []domain.JobMessage
	w := newTestWorker(t, 0, domain.A100, adj, &sent)

	msg := singleLayerJob("job-1")
	w.Inbox <- msg
	close(w.Inbox)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	w.Run(ctx)

	entry, ok := w.Book.Snapshot("job-1")
	if !ok {
		t.Fatal("worker should have created a bid book entry for job-1")
	}
	if entry.AuctionID[0] != 0 {
		t.Errorf("AuctionID[0] = %d, want 0 (this node won the only layer)", entry.AuctionID[0])
	}
	if len(sent) != 2 {
		t.Fatalf("len(sent) = %d, want 2 (announce plus bid-state forward to the one other neighbor)", len(sent))
	}
}

func TestWorkerUnallocateReleasesResources(t *testing.T) {
	adj := topology.NewComplete(1)
	w := newTestWorker(t, 0, domain.A100, adj, nil)

	msg := singleLayerJob("job-1")
	w.Inbox <- msg
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	go func() {
		time.Sleep(50 * time.Millisecond)
		un := msg
		un.Unallocate = true
		w.Inbox <- un
		close(w.Inbox)
	}()
	w.Run(ctx)
	cancel()

	if w.Ledger.AvailCPU() != w.Ledger.InitialCPU {
		t.Errorf("AvailCPU() = %v, want InitialCPU after unallocate released the job", w.Ledger.AvailCPU())
	}
	if w.Book.Has("job-1") {
		t.Error("unallocate should forget the job from the bid book")
	}
}
